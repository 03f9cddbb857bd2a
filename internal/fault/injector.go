package fault

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"capkv/internal/configuration"
	"capkv/internal/message"
	"capkv/internal/metrics"
)

// DeliverFunc hands an envelope to the substrate.
type DeliverFunc func(env message.Envelope, to string) error

type delayedMessage struct {
	env message.Envelope
	to  string
	due time.Time
}

// Injector sits between an AP node and the substrate and drops, delays,
// reorders and corrupts its outbound writes.
type Injector struct {
	cfg       *configuration.APConfigurationProperties
	src       Source
	partition *PartitionSet
	deliver   DeliverFunc
	log       *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	queue []delayedMessage
}

func NewInjector(
	cfg *configuration.APConfigurationProperties,
	src Source,
	partition *PartitionSet,
	deliver DeliverFunc,
	log *slog.Logger,
) *Injector {
	if log == nil {
		log = slog.Default()
	}
	return &Injector{
		cfg:       cfg,
		src:       src,
		partition: partition,
		deliver:   deliver,
		log:       log,
		now:       time.Now,
	}
}

// Dispatch decides the fate of env separately for every peer.
func (i *Injector) Dispatch(env message.Envelope, peers []string) {
	for _, peer := range peers {
		switch {
		case i.partition != nil && i.partition.Isolated(peer):
			metrics.FaultsTotal.WithLabelValues("AP", "partition_drop").Inc()
		case Chance(i.src, i.cfg.DropRate):
			metrics.FaultsTotal.WithLabelValues("AP", "drop").Inc()
		case Chance(i.src, i.cfg.DelayRate):
			i.enqueue(env, peer)
		default:
			i.send(env, peer)
		}
	}
}

func (i *Injector) enqueue(env message.Envelope, peer string) {
	delay := i.cfg.MinDelayDuration() + time.Duration(i.src.IntN(int(i.cfg.MaxDelayDuration())))

	i.mu.Lock()
	i.queue = append(i.queue, delayedMessage{env: env, to: peer, due: i.now().Add(delay)})
	i.mu.Unlock()

	metrics.FaultsTotal.WithLabelValues("AP", "delay").Inc()
	metrics.DelayedMessages.Inc()
}

// Sweep delivers every due message in random order and returns how many it
// took off the queue. A message leaves the queue exactly once.
func (i *Injector) Sweep() int {
	now := i.now()

	i.mu.Lock()
	var due []delayedMessage
	kept := i.queue[:0]
	for _, m := range i.queue {
		if !m.due.After(now) {
			due = append(due, m)
		} else {
			kept = append(kept, m)
		}
	}
	clear(i.queue[len(kept):])
	i.queue = kept
	i.mu.Unlock()

	if len(due) == 0 {
		return 0
	}
	metrics.DelayedMessages.Sub(float64(len(due)))

	if len(due) > 1 {
		i.src.Shuffle(len(due), func(a, b int) { due[a], due[b] = due[b], due[a] })
		metrics.FaultsTotal.WithLabelValues("AP", "reorder").Inc()
	}

	for _, m := range due {
		i.send(m.env, m.to)
	}
	return len(due)
}

// Run sweeps the delay queue until ctx ends. Messages still queued then are
// discarded.
func (i *Injector) Run(ctx context.Context) {
	ticker := time.NewTicker(i.cfg.SweepDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			i.discard()
			return
		case <-ticker.C:
			i.Sweep()
		}
	}
}

func (i *Injector) Queued() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.queue)
}

func (i *Injector) discard() {
	i.mu.Lock()
	n := len(i.queue)
	i.queue = nil
	i.mu.Unlock()

	if n > 0 {
		metrics.DelayedMessages.Sub(float64(n))
		i.log.Debug("discarded delayed messages on stop", "count", n)
	}
}

func (i *Injector) send(env message.Envelope, peer string) {
	if env.Kind == message.KindWrite && Chance(i.src, i.cfg.CorruptRate) {
		env = env.WithValue(Corrupt(i.src, env.Value))
		metrics.FaultsTotal.WithLabelValues("AP", "corrupt").Inc()
	}

	if err := i.deliver(env, peer); err != nil {
		i.log.Warn("peer unreachable", "peer", peer, "error", err)
	}
}

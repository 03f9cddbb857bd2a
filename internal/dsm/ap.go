package dsm

import (
	"context"

	"capkv/internal/configuration"
	"capkv/internal/domain"
	"capkv/internal/fault"
	"capkv/internal/message"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// APNode never blocks on its peers. Writes are applied locally and gossiped
// through a fault injector; inbound writes resolve by last-writer-wins.
type APNode struct {
	*node
	cfg        *configuration.APConfigurationProperties
	stale      cmap.ConcurrentMap[string, string]
	timestamps cmap.ConcurrentMap[string, int64]
	partition  *fault.PartitionSet
	injector   *fault.Injector
	scheduler  *fault.PartitionScheduler
}

func NewAP(id string, endpoint domain.Endpoint, cfg *configuration.APConfigurationProperties, opts ...Option) *APNode {
	n := &APNode{
		node:       newNode(AP, id, endpoint, opts...),
		cfg:        cfg,
		stale:      cmap.New[string](),
		timestamps: cmap.New[int64](),
	}
	n.partition = fault.NewPartitionSet(id)
	n.injector = fault.NewInjector(cfg, n.src, n.partition, endpoint.Send, n.log)
	n.scheduler = fault.NewPartitionScheduler(cfg.Partition, n.src, n.partition, n.peerList, n.log)

	n.handle = n.Receive
	n.tasks = append(n.tasks, n.injector.Run, n.scheduler.Run)
	return n
}

func (n *APNode) Write(ctx context.Context, key, value string) (err error) {
	defer n.track("write")(&err)
	if n.stopped() {
		return ErrStopped
	}

	ts := n.clock.Next()
	n.timestamps.Upsert(key, ts, func(_ bool, _ int64, next int64) int64 {
		if prev, existed := n.store.Swap(key, value); existed && prev != value {
			n.stale.Set(key, prev)
		}
		return next
	})

	n.stall(ctx, n.cfg.WriteStallRate, n.cfg.WriteStall.MinDuration(), n.cfg.WriteStall.MaxDuration())

	n.injector.Dispatch(message.New(message.KindWrite, key, value, n.id, ts), n.peerList())
	return nil
}

// Read answers from the local replica, but sometimes hands back the value a
// key held before its last local write, or nothing at all.
func (n *APNode) Read(_ context.Context, key string) (value string, err error) {
	defer n.track("read")(&err)
	if n.stopped() {
		return "", ErrStopped
	}

	if fault.Chance(n.src, n.cfg.StaleReadRate) {
		if v, ok := n.stale.Get(key); ok {
			n.dropped("stale_read")
			return v, nil
		}
	}

	if fault.Chance(n.src, n.cfg.LostReadRate) {
		n.dropped("lost_read")
		return "", nil
	}

	return n.store.Value(key), nil
}

func (n *APNode) Receive(env message.Envelope) {
	if n.partition.Isolated(env.Sender) {
		n.dropped("partition_drop")
		return
	}

	n.stall(n.stopCtx, n.cfg.ReceiveJitterRate, n.cfg.ReceiveJitter.MinDuration(), n.cfg.ReceiveJitter.MaxDuration())

	if env.Kind != message.KindWrite {
		n.log.Debug("ignoring envelope", "kind", env.Kind.String(), "from", env.Sender)
		return
	}
	n.applyIfNewer(env.Key, env.Value, env.Timestamp)
}

// applyIfNewer stores value only when ts is strictly newer than the stamp of
// the write the key last took.
func (n *APNode) applyIfNewer(key, value string, ts int64) bool {
	applied := false
	n.timestamps.Upsert(key, ts, func(exist bool, cur int64, next int64) int64 {
		if exist && next <= cur {
			return cur
		}
		n.store.Set(key, value)
		applied = true
		return next
	})
	n.clock.Observe(ts)

	if !applied {
		n.log.Debug("discarding older write", "key", key, "ts", ts)
	}
	return applied
}

// Partition exposes the set of peers this node cannot reach.
func (n *APNode) Partition() *fault.PartitionSet {
	return n.partition
}

// Injector exposes the outbound fault injector.
func (n *APNode) Injector() *fault.Injector {
	return n.injector
}

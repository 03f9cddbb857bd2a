package dsm

import (
	"context"
	"fmt"
	"time"

	"capkv/internal/configuration"
	"capkv/internal/correlator"
	"capkv/internal/domain"
	"capkv/internal/fault"
	"capkv/internal/message"
)

// CANode waits for every node to acknowledge a write and refuses all work
// while it believes the cluster is partitioned.
type CANode struct {
	*node
	cfg       *configuration.CAConfigurationProperties
	corr      *correlator.Correlator
	flag      *fault.PartitionFlag
	scheduler *fault.FlagScheduler
}

func NewCA(id string, endpoint domain.Endpoint, cfg *configuration.CAConfigurationProperties, opts ...Option) *CANode {
	n := &CANode{
		node: newNode(CA, id, endpoint, opts...),
		cfg:  cfg,
	}
	n.corr = correlator.New(id, CA.String())
	n.flag = fault.NewPartitionFlag(id)
	n.scheduler = fault.NewFlagScheduler(n.stopCtx, cfg.Partition, n.src, n.flag, n.log)

	n.handle = n.Receive
	n.tasks = append(n.tasks, func(context.Context) { n.scheduler.Start() })
	n.onStop = append(n.onStop, n.scheduler.Wait, n.corr.CloseAll)
	return n
}

func (n *CANode) Write(ctx context.Context, key, value string) (err error) {
	defer n.track("write")(&err)
	if n.stopped() {
		return ErrStopped
	}
	if n.flag.Partitioned() {
		n.log.Warn("write rejected, partition in effect", "key", key)
		return fmt.Errorf("write %s: %w", key, ErrPartitioned)
	}

	peers := n.peerList()
	if len(peers) == 0 {
		n.store.Set(key, value)
		return nil
	}

	n.stall(ctx, n.cfg.StallRate, n.cfg.Stall.MinDuration(), n.cfg.Stall.MaxDuration())

	ts := n.clock.Next()
	p := n.corr.Open(key, correlator.Reply{Value: value, Timestamp: ts})
	defer n.corr.Close(p)

	n.store.Set(key, value)
	env := message.New(message.KindWrite, message.JoinKey(key, p.ID), value, n.id, ts)
	n.broadcast(env, peers)

	all := len(peers) + 1
	for attempt := 1; attempt <= n.cfg.MaxRetries; attempt++ {
		if n.waitAll(ctx, p, all, n.cfg.TimeoutDuration()) {
			n.log.Debug("write acknowledged by all nodes", "key", key, "attempt", attempt)
			return nil
		}
		if n.stopped() {
			return ErrStopped
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n.flag.Partitioned() {
			break
		}
		if attempt < n.cfg.MaxRetries {
			p.Retry()
			n.log.Warn("timeout, retrying write", "key", key, "attempt", attempt, "max", n.cfg.MaxRetries)
			n.broadcast(env, peers)
		}
	}
	p.Exhaust()

	if !n.flag.Partitioned() {
		missing := all - p.Count()
		ratio := float64(missing) / float64(all)
		if ratio >= n.cfg.PartitionThreshold {
			n.log.Warn("partition suspected", "key", key, "unreachable", fmt.Sprintf("%.1f%%", ratio*100))
			n.scheduler.Declare("missing acknowledgments")
		}
	}

	if n.flag.Partitioned() {
		return fmt.Errorf("write %s: %w", key, ErrPartitioned)
	}
	n.log.Error("write failed", "key", key, "acks", p.Count(), "required", all)
	return fmt.Errorf("write %s: %w", key, ErrAcksIncomplete)
}

// Read returns the local value, usually after asking the peers to fill it in
// if this node has none.
func (n *CANode) Read(ctx context.Context, key string) (value string, err error) {
	defer n.track("read")(&err)
	if n.stopped() {
		return "", ErrStopped
	}
	if n.flag.Partitioned() {
		n.log.Warn("read rejected, partition in effect", "key", key)
		return "", fmt.Errorf("read %s: %w", key, ErrPartitioned)
	}

	peers := n.peerList()
	if len(peers) > 0 && fault.Chance(n.src, n.cfg.SyncRate) {
		if !n.synchronize(ctx, key, peers) {
			if n.stopped() {
				return "", ErrStopped
			}
			n.log.Warn("synchronization incomplete", "key", key)
			if fault.Chance(n.src, n.cfg.SyncFailurePartitionRate) && n.scheduler.Declare("synchronization failed") {
				return "", fmt.Errorf("read %s: %w", key, ErrPartitioned)
			}
		}
	}

	if !n.flag.Partitioned() && fault.Chance(n.src, n.cfg.ReadDelayRate) {
		n.pause(ctx, n.cfg.ProcessingDelayDuration())
	}

	return n.store.Value(key), nil
}

func (n *CANode) synchronize(ctx context.Context, key string, peers []string) bool {
	p := n.corr.Open(key, correlator.Reply{Value: n.store.Value(key)})
	defer n.corr.Close(p)

	n.broadcast(message.New(message.KindSyncRequest, message.JoinKey(key, p.ID), "", n.id, 0), peers)
	return n.waitAll(ctx, p, len(peers)+1, n.cfg.SyncTimeoutDuration())
}

// waitAll waits up to timeout for k responders and gives up early once the
// partition flag trips.
func (n *CANode) waitAll(ctx context.Context, p *correlator.Pending, k int, timeout time.Duration) bool {
	wctx, cancel := n.bounded(ctx, timeout)
	defer cancel()

	tripped := n.flag.Tripped()
	go func() {
		select {
		case <-tripped:
			cancel()
		case <-wctx.Done():
		}
	}()

	return p.Wait(wctx, k)
}

func (n *CANode) Receive(env message.Envelope) {
	partitioned := n.flag.Partitioned()
	switch {
	case partitioned && fault.Chance(n.src, n.cfg.PartitionedLossRate):
		n.dropped("partition_drop")
		return
	case fault.Chance(n.src, n.cfg.MessageLossRate):
		n.dropped("drop")
		return
	case fault.Chance(n.src, n.cfg.NodeFailureRate):
		n.dropped("node_failure")
		return
	}

	if !partitioned && fault.Chance(n.src, n.cfg.ReceiveDelayRate) {
		n.pause(n.stopCtx, n.cfg.ProcessingDelayDuration())
	}

	key, requestID, ok := message.SplitKey(env.Key)
	if !ok {
		n.log.Debug("discarding envelope with malformed key", "kind", env.Kind.String(), "key", env.Key)
		return
	}

	switch env.Kind {
	case message.KindWrite:
		n.store.Set(key, env.Value)
		n.clock.Observe(env.Timestamp)
		n.send(message.Reply(env, message.KindAck, "", n.id, env.Timestamp), env.Sender)

	case message.KindAck:
		if !n.corr.Record(requestID, env.Sender, correlator.Reply{Timestamp: env.Timestamp}) {
			n.log.Debug("late acknowledgment", "key", key, "from", env.Sender)
		}

	case message.KindSyncRequest:
		n.send(message.Reply(env, message.KindSyncResponse, n.store.Value(key), n.id, 0), env.Sender)

	case message.KindSyncResponse:
		if env.Value != "" && n.store.SetIfEmpty(key, env.Value) {
			n.log.Debug("adopted value from peer", "key", key, "from", env.Sender)
		}
		n.corr.Record(requestID, env.Sender, correlator.Reply{Value: env.Value})

	default:
		n.log.Debug("ignoring envelope", "kind", env.Kind.String(), "from", env.Sender)
	}
}

// ForcePartition pins the partition flag to v, overriding the scheduler.
func (n *CANode) ForcePartition(v bool) {
	n.flag.Force(v)
}

func (n *CANode) Partitioned() bool {
	return n.flag.Partitioned()
}

// Pending reports how many requests are waiting for answers.
func (n *CANode) Pending() int {
	return n.corr.Len()
}

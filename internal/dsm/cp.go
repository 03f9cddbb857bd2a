package dsm

import (
	"context"
	"fmt"
	"sync"

	"capkv/internal/configuration"
	"capkv/internal/correlator"
	"capkv/internal/domain"
	"capkv/internal/fault"
	"capkv/internal/message"
	"capkv/internal/metrics"
	"capkv/internal/quorum"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// CPNode replicates through quorums: a write or read succeeds once a quorum
// of the cluster, the node itself included, has answered within the timeout.
type CPNode struct {
	*node
	cfg  *configuration.CPConfigurationProperties
	corr *correlator.Correlator

	// mu keeps a key's value and version in step.
	mu       sync.RWMutex
	versions cmap.ConcurrentMap[string, int64]
}

func NewCP(id string, endpoint domain.Endpoint, cfg *configuration.CPConfigurationProperties, opts ...Option) *CPNode {
	n := &CPNode{
		node:     newNode(CP, id, endpoint, opts...),
		cfg:      cfg,
		versions: cmap.New[int64](),
	}
	n.corr = correlator.New(id, CP.String())

	n.handle = n.Receive
	n.onStop = append(n.onStop, n.corr.CloseAll)
	return n
}

func (n *CPNode) quorumSize(peers int) int {
	q := quorum.Size(peers+1, n.cfg.QuorumFactor)
	metrics.QuorumSize.WithLabelValues(n.id).Set(float64(q))
	return q
}

func (n *CPNode) Write(ctx context.Context, key, value string) (err error) {
	defer n.track("write")(&err)
	if n.stopped() {
		return ErrStopped
	}

	peers := n.peerList()
	if len(peers) == 0 {
		n.apply(key, value, n.clock.Next())
		return nil
	}

	n.stall(ctx, n.cfg.StallRate, n.cfg.WriteStall.MinDuration(), n.cfg.WriteStall.MaxDuration())

	q := n.quorumSize(len(peers))
	ts := n.clock.Next()

	p := n.corr.Open(key, correlator.Reply{Value: value, Timestamp: ts})
	defer n.corr.Close(p)

	prev := n.apply(key, value, ts)
	n.broadcast(message.New(message.KindWrite, message.JoinKey(key, p.ID), value, n.id, ts), peers)

	wctx, cancel := n.bounded(ctx, n.cfg.TimeoutDuration())
	defer cancel()

	if p.Wait(wctx, q) {
		n.log.Debug("write quorum reached", "key", key, "acks", p.Count(), "quorum", q)
		return nil
	}
	p.Exhaust()

	if n.stopped() {
		return ErrStopped
	}

	n.log.Warn("write quorum not reached", "key", key, "acks", p.Count(), "quorum", q)
	if fault.Chance(n.src, n.cfg.RollbackRate) && n.rollback(key, ts, prev) {
		n.log.Warn("write rolled back", "key", key)
	}
	return fmt.Errorf("write %s: %w", key, ErrQuorumNotReached)
}

// Read collects the local value and the answers of its peers and returns the
// most recently written one. Without a quorum it either fails outright or
// returns the best value it saw together with ErrQuorumNotReached.
func (n *CPNode) Read(ctx context.Context, key string) (value string, err error) {
	defer n.track("read")(&err)
	if n.stopped() {
		return "", ErrStopped
	}

	peers := n.peerList()
	if len(peers) == 0 {
		return n.store.Value(key), nil
	}

	n.stall(ctx, n.cfg.StallRate, n.cfg.ReadStall.MinDuration(), n.cfg.ReadStall.MaxDuration())

	q := n.quorumSize(len(peers))
	own, version := n.current(key)

	p := n.corr.Open(key, correlator.Reply{Value: own, Timestamp: version})
	defer n.corr.Close(p)

	n.broadcast(message.New(message.KindReadRequest, message.JoinKey(key, p.ID), "", n.id, 0), peers)

	wctx, cancel := n.bounded(ctx, n.cfg.TimeoutDuration())
	defer cancel()

	if p.Wait(wctx, q) {
		return p.Best().Value, nil
	}
	p.Exhaust()

	if n.stopped() {
		return own, ErrStopped
	}

	n.log.Warn("read quorum not reached", "key", key, "responses", p.Count(), "quorum", q)
	if fault.Chance(n.src, n.cfg.ReadFailureRate) {
		return "", fmt.Errorf("read %s: %w", key, ErrUnavailable)
	}
	return p.Best().Value, fmt.Errorf("read %s: %w", key, ErrQuorumNotReached)
}

func (n *CPNode) Receive(env message.Envelope) {
	n.stall(n.stopCtx, n.cfg.ReceiveJitterRate, n.cfg.ReceiveJitter.MinDuration(), n.cfg.ReceiveJitter.MaxDuration())

	key, requestID, ok := message.SplitKey(env.Key)
	if !ok {
		n.log.Debug("discarding envelope with malformed key", "kind", env.Kind.String(), "key", env.Key)
		return
	}

	switch env.Kind {
	case message.KindWrite:
		n.apply(key, env.Value, env.Timestamp)
		n.send(message.Reply(env, message.KindAck, "", n.id, env.Timestamp), env.Sender)

	case message.KindAck:
		if !n.corr.Record(requestID, env.Sender, correlator.Reply{Timestamp: env.Timestamp}) {
			n.log.Debug("late acknowledgment", "key", key, "from", env.Sender)
		}

	case message.KindReadRequest:
		value, version := n.current(key)
		n.send(message.Reply(env, message.KindReadResponse, value, n.id, version), env.Sender)

	case message.KindReadResponse:
		if !n.corr.Record(requestID, env.Sender, correlator.Reply{Value: env.Value, Timestamp: env.Timestamp}) {
			n.log.Debug("late read response", "key", key, "from", env.Sender)
		}

	default:
		n.log.Debug("ignoring envelope", "kind", env.Kind.String(), "from", env.Sender)
	}
}

type prior struct {
	value   string
	existed bool
	stamp   int64
}

// apply stores value under stamp ts unconditionally and returns what it
// replaced.
func (n *CPNode) apply(key, value string, ts int64) prior {
	n.mu.Lock()
	defer n.mu.Unlock()

	var prev prior
	prev.value, prev.existed = n.store.Swap(key, value)
	prev.stamp, _ = n.versions.Get(key)
	n.versions.Set(key, ts)
	n.clock.Observe(ts)
	return prev
}

func (n *CPNode) current(key string) (string, int64) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	stamp, _ := n.versions.Get(key)
	return n.store.Value(key), stamp
}

// rollback restores prev unless a later write has replaced the one stamped ts.
func (n *CPNode) rollback(key string, ts int64, prev prior) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if cur, _ := n.versions.Get(key); cur != ts {
		return false
	}
	n.store.Restore(key, prev.value, prev.existed)
	if prev.existed {
		n.versions.Set(key, prev.stamp)
	} else {
		n.versions.Remove(key)
	}
	return true
}

// Pending reports how many requests are waiting for answers.
func (n *CPNode) Pending() int {
	return n.corr.Len()
}

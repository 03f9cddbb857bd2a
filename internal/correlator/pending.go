package correlator

import (
	"context"
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Reply is what a responder contributed to a request. Acknowledgments carry
// no value.
type Reply struct {
	Value     string
	Timestamp int64
}

// Pending tracks the distinct nodes that answered one request.
type Pending struct {
	ID        string
	Key       string
	CreatedAt time.Time

	responders cmap.ConcurrentMap[string, Reply]
	notify     chan struct{}
	state      atomic.Int32
}

func newPending(id, key string) *Pending {
	return &Pending{
		ID:         id,
		Key:        key,
		CreatedAt:  time.Now(),
		responders: cmap.New[Reply](),
		notify:     make(chan struct{}, 1),
	}
}

// Record adds from to the responder set. Repeated answers from the same node
// are ignored and reported as false.
func (p *Pending) Record(from string, r Reply) bool {
	if !p.responders.SetIfAbsent(from, r) {
		return false
	}
	select {
	case p.notify <- struct{}{}:
	default:
	}
	return true
}

func (p *Pending) Count() int {
	return p.responders.Count()
}

func (p *Pending) Responded(node string) bool {
	return p.responders.Has(node)
}

// Wait blocks until at least k distinct nodes have answered or ctx ends.
// It reports whether k was reached and marks the request Satisfied if so.
func (p *Pending) Wait(ctx context.Context, k int) bool {
	for {
		if p.Count() >= k {
			p.transition(Satisfied)
			return true
		}
		select {
		case <-ctx.Done():
			// last look: a reply may have landed together with the deadline
			if p.Count() >= k {
				p.transition(Satisfied)
				return true
			}
			return false
		case <-p.notify:
		}
	}
}

// Best returns the reply with the newest timestamp. Equal stamps resolve to
// the larger value so the choice does not depend on map order.
func (p *Pending) Best() Reply {
	var best Reply
	first := true
	for _, r := range p.responders.Items() {
		if first || r.Timestamp > best.Timestamp || (r.Timestamp == best.Timestamp && r.Value > best.Value) {
			best = r
			first = false
		}
	}
	return best
}

func (p *Pending) State() State {
	return State(p.state.Load())
}

func (p *Pending) Retry() {
	p.transition(Retrying)
}

func (p *Pending) Exhaust() {
	p.transition(Exhausted)
}

// transition moves to next unless the request already finished.
func (p *Pending) transition(next State) bool {
	for {
		cur := State(p.state.Load())
		if cur.Terminal() {
			return cur == next
		}
		if p.state.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

package correlator

import (
	"capkv/internal/metrics"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Correlator matches replies arriving through the receive loop with the
// blocking call that issued the request.
type Correlator struct {
	self    string
	variant string
	pending cmap.ConcurrentMap[string, *Pending]
}

func New(self, variant string) *Correlator {
	return &Correlator{
		self:    self,
		variant: variant,
		pending: cmap.New[*Pending](),
	}
}

// Open registers a new request under a fresh id with the local node already
// counted as a responder.
func (c *Correlator) Open(key string, own Reply) *Pending {
	p := newPending(uuid.NewString(), key)
	p.Record(c.self, own)
	c.pending.Set(p.ID, p)
	metrics.PendingRequests.WithLabelValues(c.variant).Inc()
	return p
}

func (c *Correlator) Get(id string) (*Pending, bool) {
	return c.pending.Get(id)
}

// Record credits from against request id. It returns false when the request
// is unknown or already closed, or when from had answered before.
func (c *Correlator) Record(id, from string, r Reply) bool {
	p, ok := c.pending.Get(id)
	if !ok {
		return false
	}
	return p.Record(from, r)
}

// Close forgets the request. Late replies for it are dropped by Record.
func (c *Correlator) Close(p *Pending) {
	if _, ok := c.pending.Pop(p.ID); !ok {
		return
	}
	if !p.State().Terminal() {
		p.Exhaust()
	}
	metrics.PendingRequests.WithLabelValues(c.variant).Dec()
	metrics.RequestsFinished.WithLabelValues(c.variant, p.State().String()).Inc()
}

func (c *Correlator) CloseAll() {
	for _, p := range c.pending.Items() {
		c.Close(p)
	}
}

func (c *Correlator) Len() int {
	return c.pending.Count()
}

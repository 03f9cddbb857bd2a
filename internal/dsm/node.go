package dsm

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"capkv/internal/domain"
	"capkv/internal/fault"
	"capkv/internal/message"
	"capkv/internal/metrics"
	"capkv/internal/storage"
	"capkv/internal/transport"

	cmap "github.com/orcaman/concurrent-map/v2"
)

type options struct {
	src   fault.Source
	log   *slog.Logger
	store domain.Store
}

type Option func(*options)

// WithSource sets the randomness behind every simulated fault.
func WithSource(src fault.Source) Option {
	return func(o *options) { o.src = src }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithStore(store domain.Store) Option {
	return func(o *options) { o.store = store }
}

// node is the part every variant shares: the replica, the peers it knows,
// the substrate endpoint and the receive loop.
type node struct {
	id       string
	variant  Variant
	endpoint domain.Endpoint
	store    domain.Store
	peers    cmap.ConcurrentMap[string, struct{}]
	src      fault.Source
	log      *slog.Logger
	clock    stampClock

	handle func(message.Envelope)
	tasks  []func(ctx context.Context)
	onStop []func()

	stopCtx    context.Context
	stopCancel context.CancelFunc
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
}

func newNode(variant Variant, id string, endpoint domain.Endpoint, opts ...Option) *node {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = fault.NewSource(0)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.store == nil {
		o.store = storage.NewService()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &node{
		id:         id,
		variant:    variant,
		endpoint:   endpoint,
		store:      o.store,
		peers:      cmap.New[struct{}](),
		src:        o.src,
		log:        o.log.With("node", id, "variant", variant.String()),
		stopCtx:    ctx,
		stopCancel: cancel,
	}
}

func (n *node) ID() string {
	return n.id
}

func (n *node) Variant() Variant {
	return n.variant
}

// Store exposes the local replica for inspection.
func (n *node) Store() domain.Store {
	return n.store
}

// AddKnownNode registers a peer. Registering the node itself is ignored.
func (n *node) AddKnownNode(id string) {
	if id == n.id {
		return
	}
	n.peers.Set(id, struct{}{})
}

func (n *node) peerList() []string {
	ids := n.peers.Keys()
	sort.Strings(ids)
	return ids
}

// Start launches the receive loop and the variant's background tasks.
func (n *node) Start() {
	n.startOnce.Do(func() {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.receiveLoop()
		}()

		for _, task := range n.tasks {
			n.wg.Add(1)
			go func() {
				defer n.wg.Done()
				task(n.stopCtx)
			}()
		}

		n.log.Info("node started", "peers", n.peers.Count())
	})
}

// Stop interrupts pending waits and background tasks, waits for them and
// detaches from the substrate.
func (n *node) Stop() {
	n.stopOnce.Do(func() {
		n.stopCancel()
		n.wg.Wait()
		for _, fn := range n.onStop {
			fn()
		}
		if err := n.endpoint.Close(); err != nil {
			n.log.Warn("closing endpoint failed", "error", err)
		}
		n.log.Info("node stopped")
	})
}

func (n *node) stopped() bool {
	return n.stopCtx.Err() != nil
}

func (n *node) receiveLoop() {
	for {
		env, err := n.endpoint.Receive(n.stopCtx)
		if err != nil {
			if n.stopped() || errors.Is(err, transport.ErrClosed) {
				return
			}
			n.log.Warn("receive failed", "error", err)
			continue
		}
		n.handle(env)
	}
}

// send delivers env to one peer. Failures are logged, never returned.
func (n *node) send(env message.Envelope, to string) {
	if err := n.endpoint.Send(env, to); err != nil {
		n.log.Warn("peer unreachable", "peer", to, "kind", env.Kind.String(), "error", err)
	}
}

func (n *node) broadcast(env message.Envelope, peers []string) {
	for _, id := range peers {
		n.send(env, id)
	}
}

// bounded derives a context that ends at the deadline, when ctx ends, or when
// the node stops, whichever comes first.
func (n *node) bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	stop := context.AfterFunc(n.stopCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// pause sleeps for d unless ctx ends or the node stops first.
func (n *node) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	ctx, cancel := n.bounded(ctx, d)
	defer cancel()
	<-ctx.Done()
	return !n.stopped() && !errors.Is(ctx.Err(), context.Canceled)
}

// stall pauses for a random duration in [lo, hi] with probability rate.
func (n *node) stall(ctx context.Context, rate float64, lo, hi time.Duration) {
	if fault.Chance(n.src, rate) {
		n.pause(ctx, fault.Between(n.src, lo, hi))
	}
}

// track times op; defer the returned func with the address of the named error.
func (n *node) track(op string) func(*error) {
	start := time.Now()
	return func(err *error) {
		v := n.variant.String()
		metrics.OperationsTotal.WithLabelValues(v, op, outcome(*err)).Inc()
		metrics.OperationDuration.WithLabelValues(v, op).Observe(time.Since(start).Seconds())
	}
}

func (n *node) dropped(kind string) {
	metrics.FaultsTotal.WithLabelValues(n.variant.String(), kind).Inc()
}

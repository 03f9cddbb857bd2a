package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"capkv/internal/configuration"
	"capkv/internal/message"
	"capkv/internal/metrics"

	cmap "github.com/orcaman/concurrent-map/v2"
)

var (
	ErrUnknownNode   = errors.New("unknown node")
	ErrInboxFull     = errors.New("inbox full")
	ErrClosed        = errors.New("endpoint closed")
	ErrDuplicateNode = errors.New("node already joined")
)

// Network is an in-process substrate. Every joined node gets a buffered inbox;
// envelopes travel encoded, so each recipient decodes its own copy.
type Network struct {
	inboxSize int
	endpoints cmap.ConcurrentMap[string, *Endpoint]
}

func NewNetwork(cfg *configuration.TransportConfigurationProperties) *Network {
	size := cfg.InboxSize
	if size <= 0 {
		slog.Warn("Inbox can't be smaller then 1. Setting inbox size to 1.")
		size = 1
	}
	return &Network{
		inboxSize: size,
		endpoints: cmap.New[*Endpoint](),
	}
}

func (n *Network) Join(id string) (*Endpoint, error) {
	e := &Endpoint{
		id:      id,
		network: n,
		inbox:   make(chan []byte, n.inboxSize),
		done:    make(chan struct{}),
	}
	if !n.endpoints.SetIfAbsent(id, e) {
		return nil, fmt.Errorf("join %s: %w", id, ErrDuplicateNode)
	}
	return e, nil
}

func (n *Network) Nodes() []string {
	return n.endpoints.Keys()
}

// Close detaches every endpoint.
func (n *Network) Close() {
	for _, e := range n.endpoints.Items() {
		e.Close()
	}
}

type Endpoint struct {
	id      string
	network *Network
	inbox   chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func (e *Endpoint) ID() string {
	return e.id
}

// Send never blocks: a full inbox rejects the envelope.
func (e *Endpoint) Send(env message.Envelope, to string) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	peer, ok := e.network.endpoints.Get(to)
	if !ok {
		metrics.MessageErrors.WithLabelValues("unknown_node").Inc()
		return fmt.Errorf("send %s to %s: %w", env.Kind, to, ErrUnknownNode)
	}

	select {
	case <-peer.done:
		metrics.MessageErrors.WithLabelValues("unknown_node").Inc()
		return fmt.Errorf("send %s to %s: %w", env.Kind, to, ErrUnknownNode)
	case peer.inbox <- message.Marshal(env):
		metrics.MessagesTotal.WithLabelValues("sent", env.Kind.String()).Inc()
		return nil
	default:
		metrics.MessageErrors.WithLabelValues("inbox_full").Inc()
		return fmt.Errorf("send %s to %s: %w", env.Kind, to, ErrInboxFull)
	}
}

// Receive blocks for the next envelope. Records that fail to decode are
// logged and skipped.
func (e *Endpoint) Receive(ctx context.Context) (message.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return message.Envelope{}, ctx.Err()
		case <-e.done:
			return message.Envelope{}, ErrClosed
		case b := <-e.inbox:
			env, err := message.Unmarshal(b)
			if err != nil {
				metrics.MessageErrors.WithLabelValues("decode").Inc()
				slog.Warn("dropping undecodable envelope", "node", e.id, "error", err)
				continue
			}
			metrics.MessagesTotal.WithLabelValues("received", env.Kind.String()).Inc()
			return env, nil
		}
	}
}

func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
		e.network.endpoints.RemoveCb(e.id, func(_ string, v *Endpoint, exists bool) bool {
			return exists && v == e
		})
	})
	return nil
}

package domain

import (
	"context"

	"capkv/internal/message"
)

// Store is a node-local replica map. Absent keys read as "".
type Store interface {
	Get(key string) (string, bool)
	Value(key string) string
	Set(key, value string)
	Swap(key, value string) (prev string, existed bool)
	SetIfEmpty(key, value string) bool
	Delete(key string)
	Restore(key, prev string, existed bool)
	Snapshot() map[string]string
	Len() int
}

// Endpoint is a node's attachment to the message substrate.
type Endpoint interface {
	ID() string
	Send(env message.Envelope, to string) error
	Receive(ctx context.Context) (message.Envelope, error)
	Close() error
}

// Replica is the client-facing contract shared by every consistency variant.
type Replica interface {
	ID() string
	Write(ctx context.Context, key, value string) error
	Read(ctx context.Context, key string) (string, error)
	Receive(env message.Envelope)
	AddKnownNode(id string)
	Start()
	Stop()
}

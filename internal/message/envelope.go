package message

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindWrite Kind = iota
	KindAck
	KindReadRequest
	KindReadResponse
	KindSyncRequest
	KindSyncResponse
)

func (k Kind) String() string {
	switch k {
	case KindWrite:
		return "WRITE"
	case KindAck:
		return "ACK"
	case KindReadRequest:
		return "READ_REQUEST"
	case KindReadResponse:
		return "READ_RESPONSE"
	case KindSyncRequest:
		return "SYNC_REQUEST"
	case KindSyncResponse:
		return "SYNC_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

func (k Kind) valid() bool {
	return k >= KindWrite && k <= KindSyncResponse
}

// Envelope is the unit exchanged between nodes. It is passed by value and
// never modified in place; helpers return changed copies.
type Envelope struct {
	Kind      Kind
	Key       string
	Value     string
	Sender    string
	Timestamp int64
}

func New(kind Kind, key, value, sender string, timestamp int64) Envelope {
	return Envelope{
		Kind:      kind,
		Key:       key,
		Value:     value,
		Sender:    sender,
		Timestamp: timestamp,
	}
}

// Reply builds the answer to env under the same composite key.
func Reply(env Envelope, kind Kind, value, sender string, timestamp int64) Envelope {
	return New(kind, env.Key, value, sender, timestamp)
}

func (e Envelope) WithValue(value string) Envelope {
	e.Value = value
	return e
}

func (e Envelope) String() string {
	return fmt.Sprintf("%s{key=%s from=%s ts=%d}", e.Kind, e.Key, e.Sender, e.Timestamp)
}

const keySeparator = ":"

// JoinKey tags a logical key with the request it belongs to.
func JoinKey(key, requestID string) string {
	return key + keySeparator + requestID
}

// SplitKey reverses JoinKey. The request id follows the last separator, so
// the logical key may itself contain one. ok is false when either part is
// missing or empty.
func SplitKey(composite string) (key, requestID string, ok bool) {
	i := strings.LastIndex(composite, keySeparator)
	if i <= 0 || i == len(composite)-1 {
		return "", "", false
	}
	return composite[:i], composite[i+1:], true
}

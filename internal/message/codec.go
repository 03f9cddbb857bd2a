package message

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the envelope wire record.
const (
	fieldKind      protowire.Number = 1
	fieldKey       protowire.Number = 2
	fieldValue     protowire.Number = 3
	fieldSender    protowire.Number = 4
	fieldTimestamp protowire.Number = 5
)

var ErrInvalidKind = errors.New("invalid envelope kind")

// Marshal encodes env in protobuf wire format. Empty strings are omitted.
func Marshal(env Envelope) []byte {
	b := make([]byte, 0, 32+len(env.Key)+len(env.Value)+len(env.Sender))

	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.Kind))

	b = appendString(b, fieldKey, env.Key)
	b = appendString(b, fieldValue, env.Value)
	b = appendString(b, fieldSender, env.Sender)

	if env.Timestamp != 0 {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(env.Timestamp))
	}

	return b
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes a record produced by Marshal. Unknown fields are skipped.
func Unmarshal(b []byte) (Envelope, error) {
	var env Envelope

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Envelope{}, fmt.Errorf("consume tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("consume kind: %w", protowire.ParseError(n))
			}
			env.Kind = Kind(v)
			b = b[n:]

		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("consume timestamp: %w", protowire.ParseError(n))
			}
			env.Timestamp = protowire.DecodeZigZag(v)
			b = b[n:]

		case (num == fieldKey || num == fieldValue || num == fieldSender) && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("consume field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case fieldKey:
				env.Key = s
			case fieldValue:
				env.Value = s
			case fieldSender:
				env.Sender = s
			}
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Envelope{}, fmt.Errorf("skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !env.Kind.valid() {
		return Envelope{}, fmt.Errorf("%w: %d", ErrInvalidKind, env.Kind)
	}

	return env, nil
}

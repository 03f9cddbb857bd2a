package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

type RecordType byte

const (
	RecordRun           RecordType = 1
	RecordOperation     RecordType = 2
	RecordInconsistency RecordType = 3
)

func (t RecordType) String() string {
	switch t {
	case RecordRun:
		return "run"
	case RecordOperation:
		return "operation"
	case RecordInconsistency:
		return "inconsistency"
	default:
		return fmt.Sprintf("RecordType(%d)", byte(t))
	}
}

var ErrUnknownRecord = errors.New("unknown journal record type")

// Record is one journal line. Op holds the operation name for operation
// records and the violated rule for inconsistencies; Detail holds the error
// of a failed operation or the description of an inconsistency.
type Record struct {
	Type      RecordType
	Variant   string
	Node      string
	Op        string
	Key       string
	Value     string
	Detail    string
	Timestamp int64
}

const (
	fieldVariant   protowire.Number = 1
	fieldNode      protowire.Number = 2
	fieldOp        protowire.Number = 3
	fieldKey       protowire.Number = 4
	fieldValue     protowire.Number = 5
	fieldDetail    protowire.Number = 6
	fieldTimestamp protowire.Number = 7
)

func encodePayload(r Record) []byte {
	b := make([]byte, 0, 64)
	for _, f := range []struct {
		num protowire.Number
		s   string
	}{
		{fieldVariant, r.Variant},
		{fieldNode, r.Node},
		{fieldOp, r.Op},
		{fieldKey, r.Key},
		{fieldValue, r.Value},
		{fieldDetail, r.Detail},
	} {
		if f.s == "" {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendString(b, f.s)
	}
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(r.Timestamp))
}

func decodePayload(t RecordType, b []byte) (Record, error) {
	r := Record{Type: t}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, protowire.ParseError(n)
		}
		b = b[n:]

		if num == fieldTimestamp && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			r.Timestamp = protowire.DecodeZigZag(v)
			b = b[n:]
			continue
		}

		if typ != protowire.BytesType {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}

		s, n := protowire.ConsumeString(b)
		if n < 0 {
			return Record{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldVariant:
			r.Variant = s
		case fieldNode:
			r.Node = s
		case fieldOp:
			r.Op = s
		case fieldKey:
			r.Key = s
		case fieldValue:
			r.Value = s
		case fieldDetail:
			r.Detail = s
		}
	}
	return r, nil
}

// marshalRecord frames a payload as type byte, uvarint length, payload.
func marshalRecord(r Record) []byte {
	payload := encodePayload(r)
	buf := make([]byte, 1+binary.MaxVarintLen64+len(payload))
	buf[0] = byte(r.Type)
	n := binary.PutUvarint(buf[1:], uint64(len(payload)))
	copy(buf[1+n:], payload)
	return buf[:1+n+len(payload)]
}

func unmarshalRecord(data []byte) (Record, error) {
	if len(data) < 2 {
		return Record{}, io.ErrUnexpectedEOF
	}
	t := RecordType(data[0])
	switch t {
	case RecordRun, RecordOperation, RecordInconsistency:
	default:
		return Record{}, fmt.Errorf("%w: %d", ErrUnknownRecord, data[0])
	}

	length, n := binary.Uvarint(data[1:])
	if n <= 0 {
		return Record{}, io.ErrUnexpectedEOF
	}
	start := 1 + n
	end := start + int(length)
	if end > len(data) {
		return Record{}, io.ErrUnexpectedEOF
	}

	r, err := decodePayload(t, data[start:end])
	if err != nil {
		return Record{}, fmt.Errorf("decode %s record: %w", t, err)
	}
	return r, nil
}

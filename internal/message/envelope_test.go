package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestSplitKey(t *testing.T) {
	tests := []struct {
		name      string
		composite string
		key       string
		requestID string
		ok        bool
	}{
		{"valid", "counter_node0:abc-123", "counter_node0", "abc-123", true},
		{"no separator", "counter_node0", "", "", false},
		{"key with separator", "user:42:abc-123", "user:42", "abc-123", true},
		{"empty key", ":abc", "", "", false},
		{"empty request id", "abc:", "", "", false},
		{"empty", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, requestID, ok := SplitKey(tt.composite)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.requestID, requestID)
		})
	}
}

func TestJoinKey_SplitsBack(t *testing.T) {
	key, requestID, ok := SplitKey(JoinKey("x", "req-1"))
	require.True(t, ok)
	assert.Equal(t, "x", key)
	assert.Equal(t, "req-1", requestID)

	key, requestID, ok = SplitKey(JoinKey("user:42", "req-2"))
	require.True(t, ok)
	assert.Equal(t, "user:42", key)
	assert.Equal(t, "req-2", requestID)
}

func TestReply_KeepsCompositeKey(t *testing.T) {
	req := New(KindReadRequest, JoinKey("k", "r1"), "", "node0", 10)
	resp := Reply(req, KindReadResponse, "42", "node3", 20)

	assert.Equal(t, KindReadResponse, resp.Kind)
	assert.Equal(t, req.Key, resp.Key)
	assert.Equal(t, "42", resp.Value)
	assert.Equal(t, "node3", resp.Sender)
	assert.Equal(t, int64(20), resp.Timestamp)
}

func TestWithValue_DoesNotTouchOriginal(t *testing.T) {
	orig := New(KindWrite, "k", "1", "node0", 5)
	changed := orig.WithValue("9")

	assert.Equal(t, "1", orig.Value)
	assert.Equal(t, "9", changed.Value)
}

func TestCodec_AllKinds(t *testing.T) {
	kinds := []Kind{KindWrite, KindAck, KindReadRequest, KindReadResponse, KindSyncRequest, KindSyncResponse}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			env := New(kind, JoinKey("counter_node1", "7f3a"), "17", "node1", 1_700_000_000_123_456_789)

			got, err := Unmarshal(Marshal(env))
			require.NoError(t, err)
			assert.Equal(t, env, got)
		})
	}
}

func TestCodec_EmptyFields(t *testing.T) {
	env := New(KindReadRequest, "k", "", "node2", 0)

	got, err := Unmarshal(Marshal(env))
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	b := Marshal(New(KindAck, "k:r", "", "node0", 3))
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")

	got, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, KindAck, got.Kind)
	assert.Equal(t, "k:r", got.Key)
}

func TestCodec_RejectsTruncated(t *testing.T) {
	b := Marshal(New(KindWrite, "key", "value", "node0", 1))

	_, err := Unmarshal(b[:len(b)-3])
	require.Error(t, err)
}

func TestCodec_RejectsUnknownKind(t *testing.T) {
	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, 42)

	_, err := Unmarshal(b)
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "SYNC_RESPONSE", KindSyncResponse.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}

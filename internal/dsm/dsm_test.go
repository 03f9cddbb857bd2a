package dsm

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"capkv/internal/configuration"
	"capkv/internal/fault"
	"capkv/internal/message"
	"capkv/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// calmConfig turns every simulated fault off.
func calmConfig() *configuration.Properties {
	cfg := configuration.Default()

	cfg.AP.DropRate = 0
	cfg.AP.DelayRate = 0
	cfg.AP.CorruptRate = 0
	cfg.AP.StaleReadRate = 0
	cfg.AP.LostReadRate = 0
	cfg.AP.WriteStallRate = 0
	cfg.AP.ReceiveJitterRate = 0
	cfg.AP.Partition.TriggerRate = 0

	cfg.CP.StallRate = 0
	cfg.CP.ReceiveJitterRate = 0
	cfg.CP.RollbackRate = 0
	cfg.CP.ReadFailureRate = 0

	cfg.CA.StallRate = 0
	cfg.CA.MessageLossRate = 0
	cfg.CA.NodeFailureRate = 0
	cfg.CA.PartitionedLossRate = 0
	cfg.CA.ReceiveDelayRate = 0
	cfg.CA.ReadDelayRate = 0
	cfg.CA.SyncRate = 0
	cfg.CA.SyncFailurePartitionRate = 0
	cfg.CA.Partition.StartRate = 0
	cfg.CA.Partition.TriggerRate = 0
	cfg.CA.Partition.ResolveRate = 0

	return cfg
}

func nodeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = "node" + strconv.Itoa(i)
	}
	return ids
}

// newCluster starts size fully meshed nodes of variant v.
func newCluster(t *testing.T, v Variant, size int, cfg *configuration.Properties, opts ...Option) []Replica {
	t.Helper()

	net := transport.NewNetwork(&cfg.Transport)
	ids := nodeIDs(size)
	nodes := make([]Replica, size)

	for i, id := range ids {
		ep, err := net.Join(id)
		require.NoError(t, err)
		node, err := New(v, id, ep, cfg, append([]Option{WithSource(fault.Never())}, opts...)...)
		require.NoError(t, err)
		for _, peer := range ids {
			node.AddKnownNode(peer)
		}
		nodes[i] = node
	}
	for _, node := range nodes {
		node.Start()
	}

	t.Cleanup(func() {
		for _, node := range nodes {
			node.Stop()
		}
	})
	return nodes
}

// newLonelyNode starts one node whose peers are joined to the network but
// never answer.
func newLonelyNode(t *testing.T, v Variant, cfg *configuration.Properties, src fault.Source, peers ...string) Replica {
	t.Helper()

	net := transport.NewNetwork(&cfg.Transport)
	ep, err := net.Join("node0")
	require.NoError(t, err)
	for _, id := range peers {
		_, err := net.Join(id)
		require.NoError(t, err)
	}

	node, err := New(v, "node0", ep, cfg, WithSource(src))
	require.NoError(t, err)
	for _, id := range peers {
		node.AddKnownNode(id)
	}
	node.Start()
	t.Cleanup(node.Stop)
	return node
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestParseVariant(t *testing.T) {
	for _, v := range []Variant{AP, CP, CA} {
		got, err := ParseVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}

	got, err := ParseVariant(" cp ")
	require.NoError(t, err)
	assert.Equal(t, CP, got)

	_, err = ParseVariant("AC")
	require.Error(t, err)
}

func TestNew_unknownVariant(t *testing.T) {
	cfg := calmConfig()
	net := transport.NewNetwork(&cfg.Transport)
	ep, _ := net.Join("node0")

	_, err := New(Variant(9), "node0", ep, cfg)
	require.Error(t, err)
}

func TestStampClock(t *testing.T) {
	var c stampClock

	prev := c.Next()
	for i := 0; i < 1000; i++ {
		next := c.Next()
		require.Greater(t, next, prev)
		prev = next
	}

	future := prev + int64(time.Hour)
	c.Observe(future)
	assert.Greater(t, c.Next(), future)

	c.Observe(1)
	assert.Greater(t, c.Next(), future)
}

func TestAddKnownNode_ignoresSelf(t *testing.T) {
	cfg := calmConfig()
	nodes := newCluster(t, CP, 3, cfg)

	cp := nodes[0].(*CPNode)
	assert.Equal(t, []string{"node1", "node2"}, cp.peerList())
}

func TestStop_isIdempotentAndRejectsLaterCalls(t *testing.T) {
	cfg := calmConfig()
	for _, v := range []Variant{AP, CP, CA} {
		t.Run(v.String(), func(t *testing.T) {
			nodes := newCluster(t, v, 2, cfg)

			nodes[0].Stop()
			nodes[0].Stop()

			require.ErrorIs(t, nodes[0].Write(testCtx(t), "k", "1"), ErrStopped)
			_, err := nodes[0].Read(testCtx(t), "k")
			require.ErrorIs(t, err, ErrStopped)
		})
	}
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "partitioned", outcome(fmt.Errorf("write k: %w", ErrPartitioned)))
	assert.Equal(t, "unavailable", outcome(ErrUnavailable))
	assert.Equal(t, "error", outcome(context.Canceled))
}

func writeEnv(key, value, from string, ts int64) message.Envelope {
	return message.New(message.KindWrite, key, value, from, ts)
}

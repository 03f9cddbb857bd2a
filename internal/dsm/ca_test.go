package dsm

import (
	"strconv"
	"testing"
	"time"

	"capkv/internal/fault"
	"capkv/internal/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCA_noPartitionAllWritesSatisfied(t *testing.T) {
	nodes := newCluster(t, CA, 5, calmConfig())
	ctx := testCtx(t)
	for _, n := range nodes {
		n.(*CANode).ForcePartition(false)
	}

	for i := 1; i <= 10; i++ {
		require.NoError(t, nodes[i%5].Write(ctx, "k", strconv.Itoa(i)))
	}

	for _, n := range nodes {
		assert.Equal(t, "10", n.Store().Value("k"), "all acks were in before the write returned")
		assert.Equal(t, 0, n.(*CANode).Pending())
	}
}

func TestCA_partitionRejectsEverything(t *testing.T) {
	nodes := newCluster(t, CA, 3, calmConfig())
	ctx := testCtx(t)
	node := nodes[0].(*CANode)
	node.ForcePartition(true)

	require.ErrorIs(t, node.Write(ctx, "k", "1"), ErrPartitioned)

	got, err := node.Read(ctx, "k")
	require.ErrorIs(t, err, ErrPartitioned)
	assert.Equal(t, "", got)

	_, ok := node.Store().Get("k")
	assert.False(t, ok, "rejected write is not applied")
}

func TestCA_missingAcksIncomplete(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.Timeout = 20
	cfg.CA.MaxRetries = 2
	cfg.CA.PartitionThreshold = 1
	node := newLonelyNode(t, CA, cfg, fault.Never(), "node1", "node2")

	err := node.Write(testCtx(t), "k", "1")

	require.ErrorIs(t, err, ErrAcksIncomplete)
	assert.False(t, node.(*CANode).Partitioned())
	assert.Equal(t, "1", node.Store().Value("k"))
}

func TestCA_missingAcksDeclarePartition(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.Timeout = 20
	cfg.CA.MaxRetries = 1
	cfg.CA.Partition.TriggerRate = 1
	node := newLonelyNode(t, CA, cfg, fault.Always(), "node1", "node2")

	err := node.Write(testCtx(t), "k", "1")

	require.ErrorIs(t, err, ErrPartitioned)
	assert.True(t, node.(*CANode).Partitioned())
}

func TestCA_trippedFlagAbortsWait(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.Timeout = 60_000
	node := newLonelyNode(t, CA, cfg, fault.Never(), "node1").(*CANode)

	go func() {
		time.Sleep(50 * time.Millisecond)
		node.ForcePartition(true)
	}()

	start := time.Now()
	err := node.Write(testCtx(t), "k", "1")

	require.ErrorIs(t, err, ErrPartitioned)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCA_syncAdoptsMissingValue(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.SyncRate = 1
	nodes := newCluster(t, CA, 3, cfg, WithSource(fault.Always()))

	nodes[1].Store().Set("k", "42")

	got, err := nodes[0].Read(testCtx(t), "k")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestCA_syncKeepsLocalValue(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.SyncRate = 1
	nodes := newCluster(t, CA, 2, cfg, WithSource(fault.Always()))

	nodes[0].Store().Set("k", "mine")
	nodes[1].Store().Set("k", "theirs")

	got, err := nodes[0].Read(testCtx(t), "k")
	require.NoError(t, err)
	assert.Equal(t, "mine", got)
}

func TestCA_syncFailureDeclaresPartition(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.Timeout = 40
	cfg.CA.SyncRate = 1
	cfg.CA.SyncFailurePartitionRate = 1
	cfg.CA.Partition.TriggerRate = 1
	node := newLonelyNode(t, CA, cfg, fault.Always(), "node1")

	_, err := node.Read(testCtx(t), "k")

	require.ErrorIs(t, err, ErrPartitioned)
	assert.True(t, node.(*CANode).Partitioned())
}

func TestCA_syncFailureWithoutPartitionServesLocalValue(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.Timeout = 40
	cfg.CA.SyncRate = 1
	cfg.CA.SyncFailurePartitionRate = 1
	node := newLonelyNode(t, CA, cfg, fault.Always(), "node1")
	node.Store().Set("k", "7")

	got, err := node.Read(testCtx(t), "k")

	require.NoError(t, err)
	assert.Equal(t, "7", got)
	assert.False(t, node.(*CANode).Partitioned())
}

func TestCA_keyWithSeparatorReplicates(t *testing.T) {
	nodes := newCluster(t, CA, 3, calmConfig())
	ctx := testCtx(t)

	require.NoError(t, nodes[0].Write(ctx, "user:42", "x"))
	for _, n := range nodes {
		assert.Equal(t, "x", n.Store().Value("user:42"), "node %s", n.ID())
		got, err := n.Read(ctx, "user:42")
		require.NoError(t, err)
		assert.Equal(t, "x", got)
	}
}

func TestCA_receiveAcksWrites(t *testing.T) {
	nodes := newCluster(t, CA, 2, calmConfig())
	ca := nodes[1].(*CANode)

	ca.Receive(writeEnv(message.JoinKey("k", "r1"), "3", "node0", 10))
	assert.Equal(t, "3", ca.Store().Value("k"))

	ca.Receive(writeEnv("k", "4", "node0", 11))
	assert.Equal(t, "3", ca.Store().Value("k"), "malformed key is discarded")
}

func TestCA_nodeFailureDropsInbound(t *testing.T) {
	cfg := calmConfig()
	cfg.CA.NodeFailureRate = 1
	node := newLonelyNode(t, CA, cfg, fault.Always(), "node1").(*CANode)

	node.Receive(writeEnv(message.JoinKey("k", "r1"), "3", "node1", 10))
	_, ok := node.Store().Get("k")
	assert.False(t, ok)
}

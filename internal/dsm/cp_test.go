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

func TestCP_readYourWrites(t *testing.T) {
	nodes := newCluster(t, CP, 5, calmConfig())
	ctx := testCtx(t)

	for i := 1; i <= 20; i++ {
		writer := nodes[i%5]
		reader := nodes[(i+2)%5]
		value := strconv.Itoa(i)

		require.NoError(t, writer.Write(ctx, "counter", value))

		got, err := reader.Read(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, value, got, "read after write %d", i)
	}
}

func TestCP_endToEndSequentialWrites(t *testing.T) {
	nodes := newCluster(t, CP, 5, calmConfig())
	ctx := testCtx(t)

	for i := 1; i <= 10; i++ {
		require.NoError(t, nodes[0].Write(ctx, "counter_node0", strconv.Itoa(i)))
	}

	for _, n := range nodes {
		require.Eventually(t, func() bool {
			return n.Store().Value("counter_node0") == "10"
		}, 2*time.Second, 10*time.Millisecond, "node %s", n.ID())
	}

	for _, n := range nodes {
		got, err := n.Read(ctx, "counter_node0")
		require.NoError(t, err)
		assert.Equal(t, "10", got)
		assert.Equal(t, 0, n.(*CPNode).Pending(), "requests are closed after use")
	}
}

func TestCP_keyWithSeparatorReplicates(t *testing.T) {
	nodes := newCluster(t, CP, 3, calmConfig())
	ctx := testCtx(t)

	require.NoError(t, nodes[0].Write(ctx, "user:42", "x"))
	for _, n := range nodes {
		got, err := n.Read(ctx, "user:42")
		require.NoError(t, err)
		assert.Equal(t, "x", got, "node %s", n.ID())
	}
	require.Eventually(t, func() bool {
		return nodes[2].Store().Value("user:42") == "x"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCP_readPicksNewestVersion(t *testing.T) {
	nodes := newCluster(t, CP, 3, calmConfig())
	ctx := testCtx(t)

	require.NoError(t, nodes[0].Write(ctx, "k", "new"))

	// node2 holds an older value but reads it through the quorum
	stale := nodes[2].(*CPNode)
	stale.apply("k", "old", 1)

	got, err := stale.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "new", got)
}

func TestCP_singleNodeIsLocal(t *testing.T) {
	nodes := newCluster(t, CP, 1, calmConfig())
	ctx := testCtx(t)

	require.NoError(t, nodes[0].Write(ctx, "k", "v"))
	got, err := nodes[0].Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestCP_writeWithoutQuorumKeepsValue(t *testing.T) {
	cfg := calmConfig()
	cfg.CP.Timeout = 30
	node := newLonelyNode(t, CP, cfg, fault.Never(), "node1", "node2")

	err := node.Write(testCtx(t), "k", "1")

	require.ErrorIs(t, err, ErrQuorumNotReached)
	assert.Equal(t, "1", node.Store().Value("k"))
	assert.Equal(t, 0, node.(*CPNode).Pending())
}

func TestCP_writeWithoutQuorumRollsBack(t *testing.T) {
	cfg := calmConfig()
	cfg.CP.Timeout = 30
	cfg.CP.RollbackRate = 1
	node := newLonelyNode(t, CP, cfg, fault.Always(), "node1", "node2")
	ctx := testCtx(t)

	require.ErrorIs(t, node.Write(ctx, "fresh", "1"), ErrQuorumNotReached)
	_, ok := node.Store().Get("fresh")
	assert.False(t, ok, "a key that did not exist is removed again")

	node.Store().Set("k", "5")
	require.ErrorIs(t, node.Write(ctx, "k", "6"), ErrQuorumNotReached)
	assert.Equal(t, "5", node.Store().Value("k"))
}

func TestCP_readWithoutQuorumReturnsBestKnown(t *testing.T) {
	cfg := calmConfig()
	cfg.CP.Timeout = 30
	node := newLonelyNode(t, CP, cfg, fault.Never(), "node1", "node2")
	node.(*CPNode).apply("k", "7", 100)

	got, err := node.Read(testCtx(t), "k")

	require.ErrorIs(t, err, ErrQuorumNotReached)
	assert.Equal(t, "7", got)
}

func TestCP_readWithoutQuorumUnavailable(t *testing.T) {
	cfg := calmConfig()
	cfg.CP.Timeout = 30
	cfg.CP.ReadFailureRate = 1
	node := newLonelyNode(t, CP, cfg, fault.Always(), "node1", "node2")
	node.(*CPNode).apply("k", "7", 100)

	got, err := node.Read(testCtx(t), "k")

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "", got)
}

func TestCP_stopInterruptsWait(t *testing.T) {
	cfg := calmConfig()
	cfg.CP.Timeout = 60_000
	node := newLonelyNode(t, CP, cfg, fault.Never(), "node1", "node2")

	ctx := testCtx(t)
	done := make(chan error, 1)
	go func() {
		done <- node.Write(ctx, "k", "1")
	}()

	require.Eventually(t, func() bool { return node.(*CPNode).Pending() == 1 }, time.Second, 5*time.Millisecond)
	node.Stop()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("write still blocked after stop")
	}
	assert.Equal(t, 0, node.(*CPNode).Pending())
}

func TestCP_receiveDiscardsMalformedAndLate(t *testing.T) {
	cfg := calmConfig()
	node := newLonelyNode(t, CP, cfg, fault.Never(), "node1").(*CPNode)

	node.Receive(writeEnv("no-request-id", "9", "node1", 5))
	node.Receive(writeEnv("k:", "9", "node1", 5))
	_, ok := node.Store().Get("no-request-id")
	assert.False(t, ok)
	_, ok = node.Store().Get("k")
	assert.False(t, ok)

	node.Receive(message.New(message.KindReadResponse, message.JoinKey("k", "gone"), "9", "node1", 5))
	node.Receive(message.New(message.KindAck, message.JoinKey("k", "gone"), "", "node1", 5))
	assert.Equal(t, 0, node.Pending())
	_, ok = node.Store().Get("k")
	assert.False(t, ok)
}

func TestCP_inboundWriteAppliesUnconditionally(t *testing.T) {
	cfg := calmConfig()
	node := newLonelyNode(t, CP, cfg, fault.Never(), "node1").(*CPNode)

	node.Receive(writeEnv(message.JoinKey("k", "r1"), "new", "node1", 200))
	node.Receive(writeEnv(message.JoinKey("k", "r2"), "old", "node1", 100))

	value, version := node.current("k")
	assert.Equal(t, "old", value)
	assert.Equal(t, int64(100), version)
}

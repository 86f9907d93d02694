package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/rm"
)

func makeRM() *ResourceManager {
	return NewResourceManager([]cluster.Node{
		cluster.NewLabeledNode("node1", map[string]string{"os": "linux"}),
		cluster.NewLabeledNode("node2", map[string]string{"os": "mac"}),
		cluster.NewLabeledNode("node3", map[string]string{"os": "linux"}),
	}, nil)
}

func TestGetAtMostNodes(t *testing.T) {
	r := makeRM()
	ctx := context.Background()

	linux := domain.SelectionPredicates{{Name: LabelPredicate, Args: map[string]string{"os": "linux"}}}
	nodes, err := r.GetAtMostNodes(ctx, 5, linux, domain.NewNodeExclusion("node1"))
	require.NoError(t, err)
	assert.Equal(t, []cluster.NodeId{"node3"}, nodes.Ids())

	state, err := r.GetState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, state.FreeNodes)
	assert.Equal(t, 3, state.TotalNodes)

	nodes, err = r.GetAtMostNodes(ctx, 1, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []cluster.NodeId{"node1"}, nodes.Ids())
}

func TestSelectionError(t *testing.T) {
	r := makeRM()
	_, err := r.GetAtMostNodes(context.Background(), 1, domain.SelectionPredicates{{Name: "bogus"}}, nil)
	assert.True(t, rm.IsSelectionError(err))
}

func TestFreeAndDown(t *testing.T) {
	reg := stats.NewFinagleStatsRegistry()
	stat := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg })
	r := NewResourceManager(cluster.NewIdNodes(2), stat)
	ctx := context.Background()

	nodes, _ := r.GetAtMostNodes(ctx, 2, nil, nil)
	require.Len(t, nodes, 2)
	assert.True(t, r.IsBusy("node1"))

	assert.NoError(t, r.FreeNodes(ctx, nodes[:1], &domain.Script{Name: "clean"}))
	assert.NoError(t, r.FreeDownNode(ctx, "node2"))
	assert.Equal(t, 1, r.FreeCount("node1"))
	assert.Equal(t, []string{"clean@node1"}, r.Cleanups())

	state, _ := r.GetState(ctx)
	assert.Equal(t, 1, state.FreeNodes)

	r.Revive("node2")
	state, _ = r.GetState(ctx)
	assert.Equal(t, 2, state.FreeNodes)

	stats.VerifyStats("rm", reg, t, map[string]stats.Rule{
		"rm/" + stats.RMNodesAcquiredCounter: {Checker: stats.Int64EqTest, Value: 2},
		"rm/" + stats.RMNodesFreedCounter:    {Checker: stats.Int64EqTest, Value: 1},
		"rm/" + stats.RMNodesDownCounter:     {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestUnavailable(t *testing.T) {
	r := makeRM()
	ctx := context.Background()
	r.SetAvailable(false)
	_, err := r.GetState(ctx)
	assert.Equal(t, rm.ErrNotConnected, err)
	assert.Error(t, r.Ping(ctx))
	assert.Error(t, r.Reconnect(ctx))
	r.SetAvailable(true)
	assert.NoError(t, r.Reconnect(ctx))
}

func TestUpdateMembership(t *testing.T) {
	r := NewResourceManager(cluster.NewIdNodes(1), nil)
	r.Update([]cluster.NodeUpdate{cluster.NewAdd(cluster.NewIdNode("node7"))})
	state, _ := r.GetState(context.Background())
	assert.Equal(t, 2, state.FreeNodes)
}

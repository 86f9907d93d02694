package cluster_test

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
)

func TestFetchCron(t *testing.T) {
	f := &fakeFetcher{}
	f.setResult(cluster.NewIdNodes(2), nil)
	updates := make(chan []cluster.NodeUpdate, 10)
	c := cluster.NewFetchCron(f, time.Millisecond, cluster.NewIdNodes(2), func(u []cluster.NodeUpdate) {
		updates <- u
	})
	defer c.Close()

	// no change, nothing applied
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, updates, 0)

	f.setResult([]cluster.Node{cluster.NewIdNode("node2"), cluster.NewIdNode("node3")}, nil)
	got := <-updates
	assert.Equal(t, []cluster.NodeUpdate{
		cluster.NewAdd(cluster.NewIdNode("node3")),
		cluster.NewRemove("node1"),
	}, got)

	// a failing fetch keeps the membership
	f.setResult(nil, errors.New("unreachable"))
	time.Sleep(10 * time.Millisecond)
	f.setResult([]cluster.Node{cluster.NewIdNode("node2"), cluster.NewIdNode("node3")}, nil)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, updates, 0)
}

func TestFileFetcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(`[{"Id": "a", "Labels": {"os": "linux"}}, {"Id": "b"}]`), 0644))
	nodes, err := (&cluster.FileFetcher{Path: path}).Fetch()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "linux", nodes[0].Labels()["os"])
	assert.Equal(t, cluster.NodeId("b"), nodes[1].Id())

	require.NoError(t, ioutil.WriteFile(path, []byte(`[{"Labels": {}}]`), 0644))
	_, err = (&cluster.FileFetcher{Path: path}).Fetch()
	assert.Error(t, err)

	_, err = (&cluster.FileFetcher{Path: filepath.Join(t.TempDir(), "missing.json")}).Fetch()
	assert.Error(t, err)
}

// fakeFetcher for testing fetch cron
type fakeFetcher struct {
	mutex sync.Mutex
	nodes []cluster.Node
	err   error
}

func (f *fakeFetcher) Fetch() ([]cluster.Node, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.nodes, f.err
}

func (f *fakeFetcher) setResult(nodes []cluster.Node, err error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.nodes = nodes
	f.err = err
}

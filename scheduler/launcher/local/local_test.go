package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/rm"
)

type collector struct {
	results chan *domain.TaskResult
}

func newCollector() *collector {
	return &collector{results: make(chan *domain.TaskResult, 10)}
}

func (c *collector) TaskTerminatedWithResult(id domain.TaskId, res *domain.TaskResult) {
	c.results <- res
}

func (c *collector) wait(t *testing.T) *domain.TaskResult {
	select {
	case r := <-c.results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no result delivered")
	}
	return nil
}

func makeLauncher(t *testing.T, f *Factory, name string, nodes ...string) launcher.Launcher {
	set := rm.NodeSet{}
	for _, n := range nodes {
		set = append(set, cluster.NewIdNode(n))
	}
	l, err := f.CreateLauncher(context.Background(), &domain.TaskDescriptor{Id: domain.NewTaskId(1, name)}, set)
	require.NoError(t, err)
	return l
}

func TestEcho(t *testing.T) {
	f := NewFactory()
	l := makeLauncher(t, f, "a", "node1")
	c := newCollector()
	require.NoError(t, l.DoTask(context.Background(), domain.Executable{Command: "echo", Args: []string{"hello", "world"}}, nil, c))
	res := c.wait(t)
	assert.Equal(t, domain.ResultSuccess, res.Kind)
	assert.Equal(t, "hello world", string(res.Value))
}

func TestFailCarriesExitCode(t *testing.T) {
	f := NewFactory()
	l := makeLauncher(t, f, "a", "node1")
	c := newCollector()
	require.NoError(t, l.DoTask(context.Background(), domain.Executable{Command: "fail", Args: []string{"3"}}, nil, c))
	res := c.wait(t)
	assert.Equal(t, domain.ResultTaskError, res.Kind)
	assert.Equal(t, 3, res.ExitCode)
}

func TestStepsSeesParents(t *testing.T) {
	f := NewFactory()
	l := makeLauncher(t, f, "b", "node1")
	c := newCollector()
	parents := []*domain.TaskResult{domain.NewSuccessResult(domain.NewTaskId(1, "a"), []byte("a"))}
	require.NoError(t, l.DoTask(context.Background(), domain.Executable{Command: "steps"}, parents, c))
	assert.Equal(t, "a\nb", string(c.wait(t).Value))
}

func TestUnknownCommand(t *testing.T) {
	f := NewFactory()
	l := makeLauncher(t, f, "a", "node1")
	assert.Error(t, l.DoTask(context.Background(), domain.Executable{Command: "nope"}, nil, newCollector()))
}

func TestNoNodes(t *testing.T) {
	f := NewFactory()
	_, err := f.CreateLauncher(context.Background(), &domain.TaskDescriptor{Id: domain.NewTaskId(1, "a")}, nil)
	assert.Error(t, err)
}

func TestNodeDown(t *testing.T) {
	f := NewFactory()
	f.SetDown("node2", true)
	l := makeLauncher(t, f, "a", "node1", "node2")
	err := l.DoTask(context.Background(), domain.Executable{Command: "echo"}, nil, newCollector())
	assert.True(t, launcher.IsNodeDown(err))

	f.SetDown("node2", false)
	l = makeLauncher(t, f, "b", "node2")
	c := newCollector()
	require.NoError(t, l.DoTask(context.Background(), domain.Executable{Command: "sleep", Args: []string{"1h"}}, nil, c))
	_, err = l.Progress(context.Background())
	assert.NoError(t, err)
	f.SetDown("node2", true)
	_, err = l.Progress(context.Background())
	assert.True(t, launcher.IsNodeDown(err))
	require.NoError(t, l.Terminate(true))
}

func TestTerminateDropsResult(t *testing.T) {
	f := NewFactory()
	l := makeLauncher(t, f, "a", "node1")

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	h := launcher.NewMockResultHandler(ctrl)

	require.NoError(t, l.DoTask(context.Background(), domain.Executable{Command: "sleep", Args: []string{"1h"}}, nil, h))
	assert.Equal(t, 1, f.Running())
	require.NoError(t, l.Terminate(true))
	require.NoError(t, l.Terminate(false))

	deadline := time.Now().Add(5 * time.Second)
	for f.Running() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 0, f.Running())
}

func TestProgressAndLogs(t *testing.T) {
	f := NewFactory()
	started := make(chan struct{})
	release := make(chan struct{})
	f.Register("half", func(ctx context.Context, env *Env) ([]byte, error) {
		env.SetProgress(150)
		env.SetProgress(50)
		env.Log.Write([]byte("halfway\n"))
		close(started)
		<-release
		return nil, nil
	})
	l := makeLauncher(t, f, "a", "node1")
	buf := &syncBuffer{}
	require.NoError(t, l.ActivateLogs(buf))
	c := newCollector()
	require.NoError(t, l.DoTask(context.Background(), domain.Executable{Command: "half"}, nil, c))
	<-started
	p, err := l.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, p)
	assert.Equal(t, "halfway\n", buf.String())
	close(release)
	assert.Equal(t, domain.ResultSuccess, c.wait(t).Kind)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/policy"
	"github.com/twitter/herd/scheduler/rm"
	storemem "github.com/twitter/herd/scheduler/store/memory"
)

type mockedService struct {
	s        *SchedulingService
	proxy    *rm.MockProxy
	factory  *launcher.MockFactory
	registry stats.StatsRegistry
}

// newMockedService returns a started service whose scheduling thread is not running,
// so that tests drive passes themselves.
func newMockedService(t *testing.T, ctrl *gomock.Controller, config SchedulerConfig) *mockedService {
	reg := stats.NewFinagleStatsRegistry()
	stat := stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg })
	proxy := rm.NewMockProxy(ctrl)
	factory := launcher.NewMockFactory(ctrl)
	s, err := NewSchedulingService(config, proxy, storemem.NewStore(), factory, policy.FifoPolicyName, nil, nil, stat)
	require.NoError(t, err)
	s.status = StatusStarted
	t.Cleanup(s.Close)
	return &mockedService{s: s, proxy: proxy, factory: factory, registry: reg}
}

func (m *mockedService) submit(t *testing.T, tasks ...*domain.Task) domain.JobId {
	id, err := m.s.SubmitJob(context.Background(), "alice", &domain.Job{
		JobInfo:      domain.JobInfo{Name: "test", Priority: domain.PriorityNormal},
		RestartDelay: time.Millisecond,
		Tasks:        tasks,
	})
	require.NoError(t, err)
	return id
}

func (m *mockedService) pass(t *testing.T) int {
	started, err := m.s.thread.method.schedule(context.Background(), true)
	require.NoError(t, err)
	return started
}

func (m *mockedService) taskStatus(t *testing.T, id domain.TaskId) domain.TaskStatus {
	task, err := m.s.jobs.Task(id)
	require.NoError(t, err)
	return task.Status
}

func named(name string) *domain.Task {
	return &domain.Task{Id: domain.TaskId{Name: name}, Executable: domain.Executable{Command: "echo"}}
}

func TestScheduleBatchWithinBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{LaunchTimeout: time.Second})
	id := m.submit(t, named("a"), named("b"), named("c"))

	n1, n2 := cluster.NewIdNode("node1"), cluster.NewIdNode("node2")
	gomock.InOrder(
		m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 2, TotalNodes: 2}, nil),
		m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 2, gomock.Any(), gomock.Any()).Return(rm.NodeSet{n1, n2}, nil),
		m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 0, TotalNodes: 2}, nil),
	)
	l := launcher.NewMockLauncher(ctrl)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), gomock.Any()).Return(l, nil).Times(2)
	l.EXPECT().ActivateLogs(gomock.Any()).Return(nil).Times(2)
	l.EXPECT().DoTask(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	assert.Equal(t, 2, m.pass(t))
	assert.Equal(t, domain.TaskRunning, m.taskStatus(t, domain.NewTaskId(id, "a")))
	assert.Equal(t, domain.TaskRunning, m.taskStatus(t, domain.NewTaskId(id, "b")))
	assert.Equal(t, domain.TaskPending, m.taskStatus(t, domain.NewTaskId(id, "c")))

	stats.VerifyStats("", m.registry, t, map[string]stats.Rule{
		stats.MethodTasksStartedCounter:   {Checker: stats.Int64EqTest, Value: 2},
		stats.MethodNodesRequestedCounter: {Checker: stats.Int64EqTest, Value: 2},
		stats.SchedRunningTasksGauge:      {Checker: stats.Int64EqTest, Value: 2},
	})
}

func TestScheduleSelectionErrorCancelsJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{})
	task := named("a")
	task.Selection = domain.SelectionPredicates{{Name: "gpu"}}
	id := m.submit(t, task)

	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 1, TotalNodes: 1}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 1, gomock.Any(), gomock.Any()).
		Return(nil, &rm.SelectionError{Predicate: task.Selection[0], Err: errors.New("no such predicate")})

	assert.Equal(t, 0, m.pass(t))

	job, err := m.s.jobs.Job(id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCanceled, job.Status)
	assert.Equal(t, domain.TaskFailed, job.Tasks[0].Status)

	res, err := m.s.GetTaskResult(context.Background(), "alice", domain.NewTaskId(id, "a"))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, domain.ResultSelectionError, res.Kind)

	stats.VerifyStats("", m.registry, t, map[string]stats.Rule{
		stats.MethodSelectionCancelsCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.MethodTasksStartedCounter:     {Checker: stats.DoesNotExistTest},
	})
}

func TestLaunchFailureReleasesNodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{})
	id := m.submit(t, named("a"))

	n1 := cluster.NewIdNode("node1")
	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 1, TotalNodes: 1}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 1, gomock.Any(), gomock.Any()).Return(rm.NodeSet{n1}, nil)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("no route to node")).Times(launcherCreationAttempts)
	m.proxy.EXPECT().FreeNodes(gomock.Any(), rm.NodeSet{n1}, gomock.Nil()).Return(nil)

	assert.Equal(t, 0, m.pass(t))
	assert.Equal(t, domain.TaskPending, m.taskStatus(t, domain.NewTaskId(id, "a")))
	stats.VerifyStats("", m.registry, t, map[string]stats.Rule{
		stats.MethodLaunchFailuresCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestMultiNodeTaskNeedsAllItsNodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{})
	task := named("mpi")
	task.NumNodes = 2
	id := m.submit(t, task)

	n1 := cluster.NewIdNode("node1")
	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 2, TotalNodes: 3}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 2, gomock.Any(), gomock.Any()).Return(rm.NodeSet{n1}, nil)
	m.proxy.EXPECT().FreeNodes(gomock.Any(), rm.NodeSet{n1}, gomock.Nil()).Return(nil)

	assert.Equal(t, 0, m.pass(t))
	assert.Equal(t, domain.TaskPending, m.taskStatus(t, domain.NewTaskId(id, "mpi")))
}

func TestMultiNodeTaskOverBudgetLetsSmallerTasksStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{LaunchTimeout: time.Second})
	mpi := named("mpi")
	mpi.NumNodes = 3
	id := m.submit(t, mpi, named("small"))

	// mpi is never requested
	n1 := cluster.NewIdNode("node1")
	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 2, TotalNodes: 3}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 1, gomock.Any(), gomock.Any()).Return(rm.NodeSet{n1}, nil)
	l := launcher.NewMockLauncher(ctrl)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), rm.NodeSet{n1}).Return(l, nil)
	l.EXPECT().ActivateLogs(gomock.Any()).Return(nil)
	l.EXPECT().DoTask(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	assert.Equal(t, 1, m.pass(t))
	assert.Equal(t, domain.TaskRunning, m.taskStatus(t, domain.NewTaskId(id, "small")))
	assert.Equal(t, domain.TaskPending, m.taskStatus(t, domain.NewTaskId(id, "mpi")))
}

func TestHungLaunchesDoNotHoldJobsForLong(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	const launchTimeout = 200 * time.Millisecond
	m := newMockedService(t, ctrl, SchedulerConfig{LaunchTimeout: launchTimeout})
	tasks := []*domain.Task{named("a"), named("b"), named("c"), named("d"), named("e")}
	id := m.submit(t, tasks...)

	nodes := cluster.NewIdNodes(len(tasks))
	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: len(nodes), TotalNodes: len(nodes)}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), len(nodes), gomock.Any(), gomock.Any()).Return(rm.NodeSet(nodes), nil)
	l := launcher.NewMockLauncher(ctrl)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), gomock.Any()).Return(l, nil).Times(len(tasks))
	l.EXPECT().ActivateLogs(gomock.Any()).Return(nil).Times(len(tasks))
	launched := make(chan struct{}, len(tasks))
	l.EXPECT().DoTask(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, exec domain.Executable, parents []*domain.TaskResult, h launcher.ResultHandler) error {
			launched <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		}).Times(len(tasks))
	l.EXPECT().Terminate(true).Return(nil).Times(len(tasks))
	m.proxy.EXPECT().FreeNodes(gomock.Any(), gomock.Any(), gomock.Nil()).Return(nil).Times(len(tasks))

	passDone := make(chan int)
	go func() {
		started, _ := m.s.thread.method.schedule(context.Background(), true)
		passDone <- started
	}()
	<-launched

	begin := time.Now()
	ok, err := m.s.PauseJob(context.Background(), "alice", id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Less(t, int64(time.Since(begin)), int64(3*launchTimeout))
	assert.Equal(t, 0, <-passDone)
}

func TestLaunchTimeoutAbandonsAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{LaunchTimeout: 50 * time.Millisecond})
	id := m.submit(t, named("a"))
	tid := domain.NewTaskId(id, "a")

	n1 := cluster.NewIdNode("node1")
	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 1, TotalNodes: 1}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 1, gomock.Any(), gomock.Any()).Return(rm.NodeSet{n1}, nil)
	l := launcher.NewMockLauncher(ctrl)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), gomock.Any()).Return(l, nil)
	l.EXPECT().ActivateLogs(gomock.Any()).Return(nil)

	handlers := make(chan launcher.ResultHandler, 1)
	l.EXPECT().DoTask(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, exec domain.Executable, parents []*domain.TaskResult, h launcher.ResultHandler) error {
			handlers <- h
			<-ctx.Done()
			return ctx.Err()
		})
	l.EXPECT().Terminate(true).Return(nil)
	m.proxy.EXPECT().FreeNodes(gomock.Any(), rm.NodeSet{n1}, gomock.Nil()).Return(nil)

	assert.Equal(t, 0, m.pass(t))
	assert.Equal(t, domain.TaskPending, m.taskStatus(t, tid))

	// a late result from the abandoned attempt changes nothing
	h := <-handlers
	h.TaskTerminatedWithResult(tid, domain.NewSuccessResult(tid, nil))
	assert.Equal(t, domain.TaskPending, m.taskStatus(t, tid))
}

func TestExtractBatch(t *testing.T) {
	x := domain.SelectionPredicates{{Name: "label", Args: map[string]string{"os": "linux"}}}
	y := domain.SelectionPredicates{{Name: "label", Args: map[string]string{"os": "mac"}}}
	desc := func(name string, nodes int, sel domain.SelectionPredicates) *domain.TaskDescriptor {
		return &domain.TaskDescriptor{Id: domain.NewTaskId(1, name), NumNodes: nodes, Selection: sel, Exclusion: domain.NodeExclusion{}}
	}
	a, b, c, d := desc("a", 1, x), desc("b", 1, y), desc("c", 2, x), desc("d", 1, x)
	tasks := []*domain.TaskDescriptor{a, b, c, d}

	batch, rest := extractBatch(tasks, 3)
	assert.Equal(t, []*domain.TaskDescriptor{a, c}, batch)
	assert.Equal(t, []*domain.TaskDescriptor{b}, rest)

	// c does not fit what a leaves, d still does
	batch, rest = extractBatch(tasks, 2)
	assert.Equal(t, []*domain.TaskDescriptor{a, d}, batch)
	assert.Equal(t, []*domain.TaskDescriptor{b}, rest)

	batch, rest = extractBatch([]*domain.TaskDescriptor{c, a}, 1)
	assert.Equal(t, []*domain.TaskDescriptor{a}, batch)
	assert.Empty(t, rest)

	batch, rest = extractBatch([]*domain.TaskDescriptor{c, b, a}, 1)
	assert.Equal(t, []*domain.TaskDescriptor{b}, batch)
	assert.Equal(t, []*domain.TaskDescriptor{a}, rest)

	batch, rest = extractBatch([]*domain.TaskDescriptor{c}, 1)
	assert.Empty(t, batch)
	assert.Empty(t, rest)
}

package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/async"
	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/livejobs"
	"github.com/twitter/herd/scheduler/rm"
)

const (
	launcherCreationAttempts = 3
	launcherCreationDelay    = 50 * time.Millisecond
)

// schedulingMethod runs one scheduling pass: it asks the policy for tasks, acquires
// nodes for compatible batches of them and launches each task on its nodes.
type schedulingMethod struct {
	s    *SchedulingService
	stat stats.StatsReceiver
}

func newSchedulingMethod(s *SchedulingService) *schedulingMethod {
	return &schedulingMethod{s: s, stat: s.stat}
}

// schedule makes one pass and returns the number of tasks started.
func (m *schedulingMethod) schedule(ctx context.Context, includePending bool) (int, error) {
	descs := m.s.jobs.LockJobsToSchedule(includePending)
	defer m.s.jobs.UnlockJobsToSchedule(descs)
	if len(descs) == 0 {
		return 0, nil
	}

	proxy := m.s.proxy()
	state, err := proxy.GetState(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "reading resource manager state")
	}
	tasks := m.s.currentPolicy().OrderedTasks(descs, state)
	if len(tasks) == 0 {
		return 0, nil
	}

	started := 0
	for first := true; len(tasks) > 0; first = false {
		if !first {
			if state, err = proxy.GetState(ctx); err != nil {
				return started, errors.Wrap(err, "reading resource manager state")
			}
		}
		if state.FreeNodes <= 0 {
			break
		}
		var batch []*domain.TaskDescriptor
		batch, tasks = extractBatch(tasks, state.FreeNodes)
		if len(batch) == 0 {
			break
		}

		need := 0
		for _, t := range batch {
			need += t.NumNodes
		}
		m.stat.Counter(stats.MethodNodesRequestedCounter).Inc(int64(need))
		nodes, err := proxy.GetAtMostNodes(ctx, need, batch[0].Selection, batch[0].Exclusion)
		if rm.IsSelectionError(err) {
			m.cancelBatch(batch, err)
			continue
		}
		if err != nil {
			return started, errors.Wrap(err, "acquiring nodes")
		}
		log.WithFields(log.Fields{"tasks": len(batch), "requested": need, "obtained": len(nodes)}).Debug("Nodes acquired for batch")
		started += m.startBatch(ctx, batch, nodes)
	}
	return started, nil
}

// extractBatch takes from tasks the compatible tasks fitting in budget nodes, headed by
// the first task that fits. A task needing more nodes than what is left of the budget
// sits out this pass so that later, smaller tasks still start. The incompatible tasks
// keep their order in rest.
func extractBatch(tasks []*domain.TaskDescriptor, budget int) (batch, rest []*domain.TaskDescriptor) {
	var head *domain.TaskDescriptor
	for _, t := range tasks {
		if head != nil && !head.Compatible(t) {
			rest = append(rest, t)
			continue
		}
		if t.NumNodes > budget {
			continue
		}
		if head == nil {
			head = t
		}
		batch = append(batch, t)
		budget -= t.NumNodes
	}
	return batch, rest
}

// startBatch binds nodes to tasks in order and frees whatever is left over. All
// launches of the batch run together on the launch pool, so the pass waits for at
// most about one LaunchTimeout.
func (m *schedulingMethod) startBatch(ctx context.Context, batch []*domain.TaskDescriptor, nodes rm.NodeSet) int {
	var launches []*pendingLaunch
	for _, t := range batch {
		if len(nodes) < t.NumNodes {
			continue
		}
		use := nodes[:t.NumNodes:t.NumNodes]
		nodes = nodes[t.NumNodes:]
		if p := m.launch(ctx, t, use); p != nil {
			launches = append(launches, p)
		}
	}
	if len(nodes) > 0 {
		if err := m.s.proxy().FreeNodes(ctx, nodes, nil); err != nil {
			log.WithError(err).Warn("Could not free unused nodes")
		}
	}

	started := 0
	for _, p := range launches {
		if m.awaitLaunch(ctx, p) {
			started++
		}
	}
	return started
}

// cancelBatch ends the jobs whose selection predicates cannot be evaluated.
func (m *schedulingMethod) cancelBatch(batch []*domain.TaskDescriptor, cause error) {
	seen := map[domain.JobId]bool{}
	for _, t := range batch {
		if seen[t.Id.Job] {
			continue
		}
		seen[t.Id.Job] = true
		td, err := m.s.jobs.SimulateJobStartAndCancel(t.Id, domain.NewSelectionErrorResult(t.Id, cause))
		if err != nil {
			log.WithFields(log.Fields{"taskId": t.Id, "err": err}).Info("Could not cancel job after selection error")
			continue
		}
		m.stat.Counter(stats.MethodSelectionCancelsCounter).Inc(1)
		m.s.drain(td)
	}
}

// pendingLaunch is a task whose DoTask was handed to the launch pool.
type pendingLaunch struct {
	t       *domain.TaskDescriptor
	nodes   rm.NodeSet
	l       launcher.Launcher
	h       *attemptHandler
	done    *async.AsyncError
	ctx     context.Context
	cancel  context.CancelFunc
	latency stats.Latency
	logger  *log.Entry
}

// launch creates the launcher of one task and submits its DoTask. On failure the nodes
// are released, the task stays eligible for a later pass and nil is returned.
func (m *schedulingMethod) launch(ctx context.Context, t *domain.TaskDescriptor, nodes rm.NodeSet) *pendingLaunch {
	latency := m.stat.Latency(stats.MethodLaunchLatency_ms).Time()
	logger := log.WithFields(log.Fields{"taskId": t.Id, "nodes": nodes.Ids(), "attempt": t.Attempt + 1})

	parents, err := m.parentResults(ctx, t)
	if err != nil {
		logger.WithError(err).Debug("Parent results not available yet")
		m.free(ctx, nodes, false)
		return nil
	}

	var l launcher.Launcher
	err = retry.Do(
		func() error {
			var err error
			l, err = m.s.launchers.CreateLauncher(ctx, t, nodes)
			return err
		},
		retry.Attempts(launcherCreationAttempts),
		retry.Delay(launcherCreationDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		logger.WithError(err).Warn("Could not create launcher")
		m.stat.Counter(stats.MethodLaunchFailuresCounter).Inc(1)
		m.free(ctx, nodes, launcher.IsNodeDown(err))
		return nil
	}

	if jl, ok := m.s.logs.Lookup(t.Id.Job); ok {
		if err := l.ActivateLogs(jl.Writer()); err != nil {
			logger.WithError(err).Debug("Could not activate task logs")
		}
	}

	h := &attemptHandler{s: m.s, attempt: t.Attempt + 1}
	launchCtx, cancel := context.WithTimeout(ctx, m.s.config.LaunchTimeout)
	done := m.s.launchPool.Submit(func() error {
		// queued past its deadline
		if err := launchCtx.Err(); err != nil {
			return err
		}
		return l.DoTask(launchCtx, t.Executable, parents, h)
	})
	return &pendingLaunch{
		t:       t,
		nodes:   nodes,
		l:       l,
		h:       h,
		done:    done,
		ctx:     launchCtx,
		cancel:  cancel,
		latency: latency,
		logger:  logger,
	}
}

// awaitLaunch waits for a submitted DoTask and records the task as started.
func (m *schedulingMethod) awaitLaunch(ctx context.Context, p *pendingLaunch) bool {
	defer p.latency.Stop()
	err := p.done.Wait(p.ctx)
	p.cancel()
	if err != nil {
		// The attempt is abandoned; a result it might still produce carries a stale attempt.
		p.logger.WithError(err).Warn("Launch failed")
		p.h.abandon()
		m.stat.Counter(stats.MethodLaunchFailuresCounter).Inc(1)
		if err := p.l.Terminate(true); err != nil {
			p.logger.WithError(err).Debug("Could not terminate abandoned launcher")
		}
		m.free(ctx, p.nodes, launcher.IsNodeDown(err))
		return false
	}

	td, err := m.s.jobs.TaskStarted(&livejobs.RunningTaskData{
		Task:     p.t.Id,
		Launcher: p.l,
		Nodes:    p.nodes,
		Cleanup:  p.t.Cleanup,
	})
	m.s.drain(td)
	if err != nil {
		p.logger.WithError(err).Info("Launched task was no longer eligible")
		return false
	}
	m.stat.Counter(stats.MethodTasksStartedCounter).Inc(1)
	p.logger.Info("Task started")
	return true
}

func (m *schedulingMethod) parentResults(ctx context.Context, t *domain.TaskDescriptor) ([]*domain.TaskResult, error) {
	if len(t.Parents) == 0 {
		return nil, nil
	}
	results := make([]*domain.TaskResult, 0, len(t.Parents))
	for _, p := range t.Parents {
		res, err := m.s.results.Get(ctx, p)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *schedulingMethod) free(ctx context.Context, nodes rm.NodeSet, down bool) {
	proxy := m.s.proxy()
	if !down {
		if err := proxy.FreeNodes(ctx, nodes, nil); err != nil {
			log.WithError(err).Warn("Could not free nodes")
		}
		return
	}
	for _, n := range nodes {
		if err := proxy.FreeDownNode(ctx, n.Id()); err != nil {
			log.WithError(err).Warn("Could not free down node")
		}
	}
}

// attemptHandler routes a launcher's result to the execution it was created for.
type attemptHandler struct {
	s         *SchedulingService
	attempt   int
	abandoned int32
}

func (h *attemptHandler) abandon() {
	atomic.StoreInt32(&h.abandoned, 1)
}

func (h *attemptHandler) TaskTerminatedWithResult(id domain.TaskId, res *domain.TaskResult) {
	if atomic.LoadInt32(&h.abandoned) == 1 {
		log.WithFields(log.Fields{"taskId": id, "attempt": h.attempt}).Info("Dropping result of abandoned launch")
		return
	}
	h.s.internalPool.Submit(func() error {
		h.s.taskTerminated(id, h.attempt, res)
		return nil
	})
}

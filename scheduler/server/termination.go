package server

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/livejobs"
	"github.com/twitter/herd/scheduler/store"
)

func restartKey(id domain.TaskId) string { return "restart:" + id.String() }
func removeKey(id domain.JobId) string   { return "remove:" + id.String() }

// drain carries out the side effects collected by a registry mutation, outside the registry lock.
// Failures are logged and counted; they never reach the client that caused the mutation.
func (s *SchedulingService) drain(td *livejobs.TerminationData) {
	if td == nil {
		return
	}
	ctx := context.Background()
	var errs *multierror.Error

	// Results go first so that children made eligible by this change can find them.
	for _, r := range td.Results {
		s.results.Put(r.Result, r.Precious)
		if err := s.store.SaveTaskResult(ctx, r.Result); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "saving result of %s", r.Result.Task))
		}
	}

	ids := make([]domain.TaskId, 0, len(td.Terminations))
	for id := range td.Terminations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		errs = multierror.Append(errs, s.release(ctx, td.Terminations[id]))
	}

	for _, info := range td.Jobs {
		if err := s.store.UpdateJob(ctx, info); err != nil && !store.IsNotFound(err) {
			errs = multierror.Append(errs, errors.Wrapf(err, "saving job %s", info.Id))
		}
	}
	for _, t := range td.Tasks {
		if err := s.store.UpdateTask(ctx, t); err != nil && !store.IsNotFound(err) {
			errs = multierror.Append(errs, errors.Wrapf(err, "saving task %s", t.Id))
		}
	}

	for _, n := range td.Events {
		s.dispatcher.Dispatch(n)
		s.logEvent(n)
	}

	for _, id := range td.Canceled {
		s.timer.Cancel(restartKey(id))
	}
	for _, r := range td.Restarts {
		id := r.Task
		s.timer.Schedule(restartKey(id), r.Delay, func() {
			s.internalPool.Submit(func() error {
				s.restartWaitingTask(id)
				return nil
			})
		})
	}

	for _, e := range td.Ended {
		s.results.ReleaseJob(e.Info.Id)
		if delay := s.removalDelay(e); delay > 0 {
			s.scheduleRemoval(e.Info.Id, delay)
		}
	}

	for _, id := range td.Removed {
		s.timer.Cancel(removeKey(id))
		s.results.ForgetJob(id)
		s.logs.Release(id)
		if err := s.store.RemoveJob(ctx, id); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "removing job %s", id))
		}
	}

	if td.WakeUp {
		s.thread.wakeUp()
	}

	if err := errs.ErrorOrNil(); err != nil {
		s.stat.Counter(stats.SchedTerminationErrorsCounter).Inc(int64(len(errs.Errors)))
		log.WithError(err).Warn("Errors while applying termination data")
	}
}

// release terminates a launcher if asked to and gives its nodes back. Termination errors
// are swallowed so that nodes are always freed.
func (s *SchedulingService) release(ctx context.Context, t *livejobs.TaskTermination) error {
	if t.Terminate && t.Launcher != nil {
		if err := t.Launcher.Terminate(t.Force); err != nil {
			log.WithFields(log.Fields{"taskId": t.Task, "err": err}).Info("Launcher termination failed")
		}
	}
	if len(t.Nodes) == 0 {
		return nil
	}
	proxy := s.proxy()
	if !t.NodesDown {
		return errors.Wrapf(proxy.FreeNodes(ctx, t.Nodes, t.Cleanup), "freeing nodes of %s", t.Task)
	}
	var errs *multierror.Error
	for _, n := range t.Nodes {
		if err := proxy.FreeDownNode(ctx, n.Id()); err != nil {
			errs = multierror.Append(errs, errors.Wrapf(err, "freeing down node %s", n.Id()))
		}
	}
	return errs.ErrorOrNil()
}

func (s *SchedulingService) logEvent(n domain.Notification) {
	var id domain.JobId
	switch n.Kind {
	case domain.JobNotification:
		id = n.Job.Id
	case domain.TaskNotification:
		id = n.Task.Id.Job
	default:
		return
	}
	if n.Event == domain.JobSubmitted {
		s.logs.Get(id).Logger().Info(n.String())
		return
	}
	if jl, ok := s.logs.Lookup(id); ok {
		jl.Logger().Info(n.String())
	}
}

func (s *SchedulingService) removalDelay(e livejobs.EndedJob) time.Duration {
	if e.HasErrors {
		if e.RemoveDelayOnError > 0 {
			return e.RemoveDelayOnError
		}
		return s.config.AutoRemoveErrorDelay
	}
	if e.RemoveDelay > 0 {
		return e.RemoveDelay
	}
	return s.config.AutoRemoveDelay
}

func (s *SchedulingService) scheduleRemoval(id domain.JobId, delay time.Duration) {
	if !s.jobs.MarkToBeRemoved(id) {
		return
	}
	s.timer.Schedule(removeKey(id), delay, func() {
		s.internalPool.Submit(func() error {
			s.removeJobNow(id)
			return nil
		})
	})
	log.WithFields(log.Fields{"jobId": id, "delay": delay}).Debug("Job removal scheduled")
}

func (s *SchedulingService) removeJobNow(id domain.JobId) bool {
	td, ok := s.jobs.RemoveJob(id)
	if ok {
		s.drain(td)
	}
	return ok
}

func (s *SchedulingService) restartWaitingTask(id domain.TaskId) {
	td, err := s.jobs.RestartWaitingTask(id)
	if err != nil {
		log.WithFields(log.Fields{"taskId": id, "err": err}).Debug("Delayed restart no longer applies")
		return
	}
	s.drain(td)
}

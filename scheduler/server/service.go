package server

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/async"
	"github.com/twitter/herd/common/log/hooks"
	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/dispatch"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/joblog"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/livejobs"
	"github.com/twitter/herd/scheduler/policy"
	"github.com/twitter/herd/scheduler/rm"
	"github.com/twitter/herd/scheduler/store"
)

const poolQueueLen = 1000

// Used to get proper logging from tests...
func init() {
	if loglevel := os.Getenv("HERD_LOGLEVEL"); loglevel != "" {
		level, err := log.ParseLevel(loglevel)
		if err != nil {
			log.Error(err)
			return
		}
		log.SetLevel(level)
		log.AddHook(hooks.NewContextHook())
	} else {
		// setting Error level to keep test output short
		log.SetLevel(log.ErrorLevel)
	}
}

// SchedulingService is the entry point of the scheduler. Client operations run on the
// client pool, side effects of launchers and timers on the internal pool. Every
// mutation locks the job registry, changes it, and then applies the resulting
// TerminationData outside the lock.
type SchedulingService struct {
	config        SchedulerConfig
	auth          Authorizer
	jobs          *livejobs.LiveJobs
	store         store.Store
	results       *store.ResultCache
	launchers     launcher.Factory
	dispatcher    *dispatch.Dispatcher
	logs          *joblog.Logs
	timer         *async.Timer
	policyConfigs policy.Configs
	stat          stats.StatsReceiver

	clientPool   *async.Pool
	internalPool *async.Pool
	launchPool   *async.Pool

	thread *schedulingThread
	pinger *pinger

	mu         sync.RWMutex
	status     Status
	rmProxy    rm.Proxy
	policy     policy.Policy
	policyName string

	startOnce sync.Once
	started   bool
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

var _ launcher.ResultHandler = (*SchedulingService)(nil)

// NewSchedulingService creates a stopped service. Call Recover to reload stored jobs,
// then Start.
func NewSchedulingService(
	config SchedulerConfig,
	proxy rm.Proxy,
	st store.Store,
	launchers launcher.Factory,
	policyName string,
	policyConfigs policy.Configs,
	auth Authorizer,
	stat stats.StatsReceiver,
) (*SchedulingService, error) {
	config = config.withDefaults()
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	if auth == nil {
		auth = AllowAll()
	}
	if policyConfigs == nil {
		policyConfigs = policy.StaticConfigs(policy.DefaultConfig())
	}
	pol, err := policy.New(policyName, policyConfigs)
	if err != nil {
		return nil, err
	}
	results, err := store.NewResultCache(st, config.ResultCacheSize, stat)
	if err != nil {
		return nil, err
	}

	s := &SchedulingService{
		config:        config,
		auth:          auth,
		jobs:          livejobs.NewLiveJobs(stat),
		store:         st,
		results:       results,
		launchers:     launchers,
		dispatcher:    dispatch.NewDispatcher(config.ListenerTimeout, 0, stat),
		logs:          joblog.NewLogs(config.JobLogLines, log.InfoLevel),
		timer:         async.NewTimer(),
		policyConfigs: policyConfigs,
		stat:          stat,
		clientPool:    async.NewPool("client", config.ClientWorkers, poolQueueLen),
		internalPool:  async.NewPool("internal", config.InternalWorkers, poolQueueLen),
		launchPool:    async.NewPool("launch", config.LaunchWorkers, poolQueueLen),
		status:        StatusStopped,
		rmProxy:       proxy,
		policy:        pol,
		policyName:    policyName,
		done:          make(chan struct{}),
	}
	s.thread = newSchedulingThread(s, newSchedulingMethod(s))
	s.pinger = newPinger(s)
	log.Infof("Created scheduling service with %s, policy %s", config, policyName)
	return s, nil
}

func (s *SchedulingService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *SchedulingService) proxy() rm.Proxy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rmProxy
}

func (s *SchedulingService) currentPolicy() policy.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func (s *SchedulingService) PolicyName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policyName
}

// Done is closed once the scheduler is shut down or killed.
func (s *SchedulingService) Done() <-chan struct{} {
	return s.done
}

// transition moves to status to when allowed accepts the current one, and emits the
// event of to.
func (s *SchedulingService) transition(allowed func(Status) bool, to Status) bool {
	return s.transitionEmitting(allowed, to, to.event())
}

// transitionEmitting is transition with an explicit event.
func (s *SchedulingService) transitionEmitting(allowed func(Status) bool, to Status, e domain.Event) bool {
	s.mu.Lock()
	from := s.status
	if !allowed(from) {
		s.mu.Unlock()
		log.WithFields(log.Fields{"status": from, "requested": to}).Info("Scheduler status change not applicable")
		return false
	}
	s.status = to
	s.mu.Unlock()
	log.WithFields(log.Fields{"from": from, "to": to}).Info("Scheduler status changed")
	s.dispatcher.Dispatch(domain.NewSchedulerNotification(e))
	s.thread.wakeUp()
	return true
}

func (s *SchedulingService) adminOp(user string, f func() bool) (bool, error) {
	if err := s.auth.Authorize(user, OpManageScheduler, ""); err != nil {
		return false, err
	}
	return f(), nil
}

// Scheduler lifecycle

func (s *SchedulingService) Start(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		if !s.transition(Status.isStartable, StatusStarted) {
			return false
		}
		s.startOnce.Do(func() {
			s.mu.Lock()
			s.started = true
			s.mu.Unlock()
			s.thread.start()
			s.pinger.start()
		})
		return true
	})
}

// Stop closes submission. Running jobs go on but pending jobs are not started.
func (s *SchedulingService) Stop(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		return s.transition(Status.isStoppable, StatusStopped)
	})
}

// Pause keeps running jobs going and holds pending ones.
func (s *SchedulingService) Pause(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		return s.transition(Status.isPausable, StatusPaused)
	})
}

// Freeze lets running tasks finish but starts nothing new.
func (s *SchedulingService) Freeze(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		return s.transition(Status.isFreezable, StatusFrozen)
	})
}

func (s *SchedulingService) Resume(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		return s.transitionEmitting(Status.isResumable, StatusStarted, domain.SchedulerResumed)
	})
}

// Shutdown stops scheduling, waits in the background for running tasks to end and
// then stops the engine. Done is closed when it is over.
func (s *SchedulingService) Shutdown(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		if !s.transition(Status.isShuttable, StatusShuttingDown) {
			return false
		}
		go s.waitForShutdown()
		return true
	})
}

func (s *SchedulingService) waitForShutdown() {
	ticker := time.NewTicker(s.config.SchedulingTimeout)
	defer ticker.Stop()
	for s.jobs.NumRunning() > 0 && s.Status() == StatusShuttingDown {
		<-ticker.C
	}
	if s.transition(func(st Status) bool { return st == StatusShuttingDown }, StatusShutdown) {
		s.stopEngine()
	}
}

// Kill kills every alive job and stops the engine at once.
func (s *SchedulingService) Kill(ctx context.Context, user string) (bool, error) {
	return s.adminOp(user, func() bool {
		if !s.transition(Status.isKillable, StatusKilled) {
			return false
		}
		for _, info := range s.jobs.Jobs() {
			if !info.Status.IsAlive() {
				continue
			}
			td, err := s.jobs.KillJob(info.Id)
			if err != nil {
				log.WithFields(log.Fields{"jobId": info.Id, "err": err}).Info("Could not kill job")
				continue
			}
			s.drain(td)
		}
		s.stopEngine()
		return true
	})
}

// stopEngine stops the scheduling thread, the pinger and pending timers.
func (s *SchedulingService) stopEngine() {
	s.stopOnce.Do(func() {
		s.mu.RLock()
		started := s.started
		s.mu.RUnlock()
		if started {
			s.thread.stop()
			s.pinger.stop()
		}
		s.timer.Stop()
		close(s.done)
	})
}

// Close releases every resource of the service whatever its status.
func (s *SchedulingService) Close() {
	s.closeOnce.Do(func() {
		s.startOnce.Do(func() {})
		s.stopEngine()
		s.clientPool.Stop()
		s.internalPool.Stop()
		s.launchPool.Stop()
		s.dispatcher.Stop()
	})
}

// Admin

// LinkResourceManager replaces the resource manager. An unlinked scheduler starts again.
func (s *SchedulingService) LinkResourceManager(ctx context.Context, user string, proxy rm.Proxy) (bool, error) {
	return s.adminOp(user, func() bool {
		s.mu.Lock()
		if s.status == StatusShutdown || s.status == StatusKilled {
			s.mu.Unlock()
			return false
		}
		s.rmProxy = proxy
		relinked := s.status == StatusUnlinked
		s.mu.Unlock()
		log.Info("Resource manager linked")
		if relinked {
			s.dispatcher.Dispatch(domain.NewSchedulerNotification(domain.RMUp))
			s.transition(func(st Status) bool { return st == StatusUnlinked }, StatusStarted)
		}
		return true
	})
}

func (s *SchedulingService) ChangePolicy(ctx context.Context, user string, name string) (bool, error) {
	if err := s.auth.Authorize(user, OpManageScheduler, ""); err != nil {
		return false, err
	}
	pol, err := policy.New(name, s.policyConfigs)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.policy = pol
	s.policyName = name
	s.mu.Unlock()
	log.WithField("policy", name).Info("Scheduling policy changed")
	s.dispatcher.Dispatch(domain.NewSchedulerNotification(domain.PolicyChanged))
	s.thread.wakeUp()
	return true, nil
}

// ReloadPolicyConfiguration re-reads the policy file. It returns false when the
// policy configuration does not come from a file.
func (s *SchedulingService) ReloadPolicyConfiguration(ctx context.Context, user string) (bool, error) {
	if err := s.auth.Authorize(user, OpManageScheduler, ""); err != nil {
		return false, err
	}
	r, ok := s.policyConfigs.(*policy.ConfigReloader)
	if !ok {
		return false, nil
	}
	if err := r.Reload(); err != nil {
		return false, err
	}
	return true, nil
}

// handlePassError decides whether a failed pass means the resource manager is gone.
// If reconnection fails the scheduler freezes and becomes unlinked until a new
// resource manager is linked.
func (s *SchedulingService) handlePassError(ctx context.Context, err error) {
	proxy := s.proxy()
	if perr := proxy.Ping(ctx); perr == nil {
		s.stat.Counter(stats.SchedPassErrorsCounter).Inc(1)
		log.WithError(err).Warn("Scheduling pass failed")
		return
	}
	log.WithError(err).Error("Resource manager is not answering, reconnecting")

	rerr := errors.Wrap(rm.ErrNotConnected, "no reconnect attempt allowed")
	if attempts := s.config.RMReconnectAttempts; attempts > 0 {
		b := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(s.config.RMReconnectDelay), uint64(attempts-1)), ctx)
		rerr = backoff.Retry(func() error { return proxy.Reconnect(ctx) }, b)
	}
	if rerr == nil {
		log.Info("Reconnected to resource manager")
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.stat.Counter(stats.SchedRMLostCounter).Inc(1)
	log.WithError(rerr).Error("Resource manager lost, scheduler unlinked")
	live := func(st Status) bool { return st.isSchedulable() || st == StatusFrozen }
	s.transition(live, StatusFrozen)
	s.transition(func(st Status) bool { return st == StatusFrozen }, StatusUnlinked)
}

// Client operations

// clientOp runs f on the client pool and waits for it.
func (s *SchedulingService) clientOp(ctx context.Context, f func() (bool, error)) (bool, error) {
	defer s.stat.Latency(stats.SchedClientOpLatency_ms).Time().Stop()
	var ok int32
	err := s.clientPool.Submit(func() error {
		done, err := f()
		if done {
			atomic.StoreInt32(&ok, 1)
		}
		return err
	}).Wait(ctx)
	return err == nil && atomic.LoadInt32(&ok) == 1, err
}

func (s *SchedulingService) usable() error {
	if s.Status().isUnusable() {
		return &domain.NotConnectedError{}
	}
	return nil
}

// authorizeJob checks that job id exists and that user may run op on it.
func (s *SchedulingService) authorizeJob(user string, op Operation, id domain.JobId) error {
	job, err := s.jobs.Identify(id)
	if err != nil {
		return err
	}
	return s.auth.Authorize(user, op, job.Owner)
}

func (s *SchedulingService) authorizeTask(user string, op Operation, id domain.TaskId) error {
	if err := s.authorizeJob(user, op, id.Job); err != nil {
		return err
	}
	_, err := s.jobs.Task(id)
	return err
}

// mutation applies the outcome of a registry call. A change that does not apply to the
// current state is reported as false rather than as an error.
func (s *SchedulingService) mutation(td *livejobs.TerminationData, err error) (bool, error) {
	s.drain(td)
	switch {
	case err == nil:
		return true, nil
	case livejobs.IsIllegalState(err), domain.IsAlreadyFinished(err):
		log.WithError(err).Debug("Operation not applicable")
		return false, nil
	}
	return false, err
}

func (s *SchedulingService) jobOp(ctx context.Context, user string, op Operation, id domain.JobId,
	f func() (*livejobs.TerminationData, error)) (bool, error) {
	return s.clientOp(ctx, func() (bool, error) {
		if err := s.usable(); err != nil {
			return false, err
		}
		if err := s.authorizeJob(user, op, id); err != nil {
			return false, err
		}
		return s.mutation(f())
	})
}

func (s *SchedulingService) taskOp(ctx context.Context, user string, op Operation, id domain.TaskId,
	f func() (*livejobs.TerminationData, error)) (bool, error) {
	return s.clientOp(ctx, func() (bool, error) {
		if err := s.usable(); err != nil {
			return false, err
		}
		if err := s.authorizeTask(user, op, id); err != nil {
			return false, err
		}
		return s.mutation(f())
	})
}

// SubmitJob validates and registers job for user and returns its id.
// The service takes ownership of job.
func (s *SchedulingService) SubmitJob(ctx context.Context, user string, job *domain.Job) (domain.JobId, error) {
	var submitted int64
	_, err := s.clientOp(ctx, func() (bool, error) {
		if st := s.Status(); !st.isSubmittable() {
			return false, &domain.SubmissionClosedError{Status: st.String()}
		}
		if err := s.auth.Authorize(user, OpSubmitJob, ""); err != nil {
			return false, err
		}
		if job.Priority.AdminOnly() {
			if err := s.auth.Authorize(user, OpSetAdminPriority, ""); err != nil {
				return false, err
			}
		}
		id, err := s.store.NextJobId(ctx)
		if err != nil {
			return false, errors.Wrap(err, "allocating job id")
		}
		job.Id = id
		job.Owner = user
		if err := job.Validate(); err != nil {
			return false, err
		}
		job.Status = domain.JobPending
		job.Submitted = time.Now()
		if err := s.store.AddJob(ctx, job); err != nil {
			return false, errors.Wrapf(err, "storing job %s", id)
		}
		td, err := s.jobs.JobSubmitted(job)
		if err != nil {
			return false, err
		}
		s.stat.Counter(stats.SchedJobsSubmittedCounter).Inc(1)
		s.drain(td)
		atomic.StoreInt64(&submitted, int64(id))
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return domain.JobId(atomic.LoadInt64(&submitted)), nil
}

func (s *SchedulingService) PauseJob(ctx context.Context, user string, id domain.JobId) (bool, error) {
	return s.jobOp(ctx, user, OpPauseJob, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.PauseJob(id)
	})
}

func (s *SchedulingService) ResumeJob(ctx context.Context, user string, id domain.JobId) (bool, error) {
	return s.jobOp(ctx, user, OpResumeJob, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.ResumeJob(id)
	})
}

func (s *SchedulingService) KillJob(ctx context.Context, user string, id domain.JobId) (bool, error) {
	return s.jobOp(ctx, user, OpKillJob, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.KillJob(id)
	})
}

func (s *SchedulingService) ChangeJobPriority(ctx context.Context, user string, id domain.JobId, p domain.Priority) (bool, error) {
	if !p.Valid() {
		return false, errors.Errorf("invalid priority %d", p)
	}
	return s.jobOp(ctx, user, OpChangeJobPriority, id, func() (*livejobs.TerminationData, error) {
		if p.AdminOnly() {
			if err := s.auth.Authorize(user, OpSetAdminPriority, ""); err != nil {
				return nil, err
			}
		}
		return s.jobs.ChangeJobPriority(id, p)
	})
}

// RemoveJob forgets a job, killing it first when still alive. With RemovedJobDelay set
// the removal only happens after that delay.
func (s *SchedulingService) RemoveJob(ctx context.Context, user string, id domain.JobId) (bool, error) {
	return s.clientOp(ctx, func() (bool, error) {
		if err := s.usable(); err != nil {
			return false, err
		}
		if err := s.authorizeJob(user, OpRemoveJob, id); err != nil {
			return false, err
		}
		if delay := s.config.RemovedJobDelay; delay > 0 {
			s.scheduleRemoval(id, delay)
			return true, nil
		}
		return s.removeJobNow(id), nil
	})
}

func (s *SchedulingService) KillTask(ctx context.Context, user string, id domain.TaskId) (bool, error) {
	return s.taskOp(ctx, user, OpKillTask, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.KillTask(id)
	})
}

// RestartTask stops a running task and runs it again after delay, using up one retry.
func (s *SchedulingService) RestartTask(ctx context.Context, user string, id domain.TaskId, delay time.Duration) (bool, error) {
	return s.taskOp(ctx, user, OpRestartTask, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.RestartTask(id, delay)
	})
}

// PreemptTask stops a task and runs it again after delay without using up a retry.
func (s *SchedulingService) PreemptTask(ctx context.Context, user string, id domain.TaskId, delay time.Duration) (bool, error) {
	return s.taskOp(ctx, user, OpPreemptTask, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.PreemptTask(id, delay)
	})
}

func (s *SchedulingService) RestartInErrorTask(ctx context.Context, user string, id domain.TaskId) (bool, error) {
	return s.taskOp(ctx, user, OpRestartInErrorTask, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.RestartInErrorTask(id)
	})
}

func (s *SchedulingService) FinishInErrorTask(ctx context.Context, user string, id domain.TaskId) (bool, error) {
	return s.taskOp(ctx, user, OpFinishInErrorTask, id, func() (*livejobs.TerminationData, error) {
		return s.jobs.FinishInErrorTask(id)
	})
}

// Queries

func (s *SchedulingService) GetJobState(ctx context.Context, user string, id domain.JobId) (*domain.Job, error) {
	if err := s.authorizeJob(user, OpGetJobState, id); err != nil {
		return nil, err
	}
	return s.jobs.Job(id)
}

func (s *SchedulingService) GetTaskState(ctx context.Context, user string, id domain.TaskId) (*domain.Task, error) {
	if err := s.authorizeJob(user, OpGetJobState, id.Job); err != nil {
		return nil, err
	}
	return s.jobs.Task(id)
}

// ListJobs returns the headers of the jobs user may see.
func (s *SchedulingService) ListJobs(ctx context.Context, user string) []*domain.JobInfo {
	visible := []*domain.JobInfo{}
	for _, info := range s.jobs.Jobs() {
		if s.auth.Authorize(user, OpGetJobState, info.Owner) == nil {
			visible = append(visible, info)
		}
	}
	return visible
}

// GetTaskResult returns nil without error while the task has no result.
func (s *SchedulingService) GetTaskResult(ctx context.Context, user string, id domain.TaskId) (*domain.TaskResult, error) {
	if err := s.authorizeTask(user, OpGetJobResult, id); err != nil {
		return nil, err
	}
	res, err := s.results.Get(ctx, id)
	if store.IsNotFound(err) {
		return nil, nil
	}
	return res, err
}

// GetJobResult collects the results available so far for a job.
func (s *SchedulingService) GetJobResult(ctx context.Context, user string, id domain.JobId) (*domain.JobResult, error) {
	if err := s.authorizeJob(user, OpGetJobResult, id); err != nil {
		return nil, err
	}
	job, err := s.jobs.Job(id)
	if err != nil {
		return nil, err
	}
	result := domain.NewJobResult(id)
	for _, t := range job.Tasks {
		res, err := s.results.Get(ctx, t.Id)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Results[t.Id.Name] = res
	}
	return result, nil
}

// GetJobLog returns the buffered scheduler log of a job.
func (s *SchedulingService) GetJobLog(ctx context.Context, user string, id domain.JobId) ([]string, error) {
	if err := s.authorizeJob(user, OpGetJobState, id); err != nil {
		return nil, err
	}
	if jl, ok := s.logs.Lookup(id); ok {
		return jl.Lines(), nil
	}
	return nil, nil
}

// Listeners

func (s *SchedulingService) AddListener(ctx context.Context, user string, l dispatch.Listener, f dispatch.Filter) (string, error) {
	if err := s.auth.Authorize(user, OpListen, ""); err != nil {
		return "", err
	}
	return s.dispatcher.AddListener(user, l, f)
}

func (s *SchedulingService) RemoveListener(ctx context.Context, id string) bool {
	return s.dispatcher.RemoveListener(id)
}

// Engine-internal operations

// TaskTerminatedWithResult applies a result to the current execution of a task.
func (s *SchedulingService) TaskTerminatedWithResult(id domain.TaskId, res *domain.TaskResult) {
	s.taskTerminated(id, 0, res)
}

func (s *SchedulingService) taskTerminated(id domain.TaskId, attempt int, res *domain.TaskResult) {
	td, err := s.jobs.TaskTerminatedWithResult(id, attempt, res)
	s.drain(td)
	if err != nil {
		log.WithFields(log.Fields{"taskId": id, "err": err}).Debug("Task result not applied")
	}
}

// RestartTaskOnNodeFailure restarts a task whose node died. A non-zero attempt
// limits the restart to that execution.
func (s *SchedulingService) RestartTaskOnNodeFailure(id domain.TaskId, attempt int) {
	td, err := s.jobs.RestartTaskOnNodeFailure(id, attempt)
	s.drain(td)
	if err != nil {
		log.WithFields(log.Fields{"taskId": id, "err": err}).Debug("Node failure restart not applied")
	}
}

// Recover loads the jobs of a previous run from the store. It must be called before Start.
func (s *SchedulingService) Recover(ctx context.Context) error {
	jobs, err := s.store.LoadJobs(ctx)
	if err != nil {
		return errors.Wrap(err, "loading stored jobs")
	}
	var errs *multierror.Error
	for _, job := range jobs {
		td, err := s.jobs.JobRecovered(job)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		s.drain(td)
	}
	log.WithField("jobs", len(jobs)).Info("Recovered jobs")
	return errs.ErrorOrNil()
}

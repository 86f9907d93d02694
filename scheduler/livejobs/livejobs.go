// Package livejobs is the in-memory registry of jobs known to the scheduler.
//
// Every state change of a job or task goes through LiveJobs, under a single lock.
// Mutations never do I/O: they return a *TerminationData listing the side effects
// (launchers to stop, nodes to free, records to persist, events to send, restarts
// and removals to schedule) which the caller applies once the lock is released.
//
// A scheduling pass takes ownership of the jobs it schedules with LockJobsToSchedule.
// Until UnlockJobsToSchedule, other mutations on those jobs wait. TaskStarted and
// SimulateJobStartAndCancel are the pass's own calls and never wait.
package livejobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/rm"
)

const NodeFailureMessage = "An error has occurred due to a node failure and the maximum amount of retries property has been reached."

const (
	KilledTaskMessage    = "The task has been manually killed."
	RestartedTaskMessage = "Aborted by user"
	PreemptedTaskMessage = "Preempted by admin"
)

// IllegalStateError means the operation does not apply to the job or task in its current state.
type IllegalStateError struct {
	What string
}

func (e *IllegalStateError) Error() string {
	return e.What
}

func IsIllegalState(err error) bool {
	_, ok := errors.Cause(err).(*IllegalStateError)
	return ok
}

func illegal(format string, args ...interface{}) error {
	return &IllegalStateError{What: fmt.Sprintf(format, args...)}
}

// RunningTaskData is the registry's record of a task execution in progress.
type RunningTaskData struct {
	Task     domain.TaskId
	Owner    string
	Attempt  int
	Launcher launcher.Launcher
	Nodes    rm.NodeSet
	Cleanup  *domain.Script
	Started  time.Time

	// Consecutive failed liveness probes.
	PingAttempts int
	Progress     int
}

type jobData struct {
	job        *domain.Job
	children   map[string][]string
	pausedFrom domain.JobStatus
	owned      bool
}

func newJobData(job *domain.Job) *jobData {
	jd := &jobData{job: job, children: map[string][]string{}}
	for _, t := range job.Tasks {
		for _, p := range t.Parents {
			jd.children[p] = append(jd.children[p], t.Id.Name)
		}
	}
	return jd
}

func (jd *jobData) parentsSatisfied(t *domain.Task) bool {
	for _, p := range t.Parents {
		pt := jd.job.Task(p)
		if pt == nil || !pt.Status.SatisfiesDependents() {
			return false
		}
	}
	return true
}

func (jd *jobData) descriptor() *domain.JobDescriptor {
	j := jd.job
	d := &domain.JobDescriptor{
		Id:        j.Id,
		Owner:     j.Owner,
		Priority:  j.Priority,
		Status:    j.Status,
		Submitted: j.Submitted,
	}
	for _, t := range j.Tasks {
		if t.Status != domain.TaskPending {
			continue
		}
		parents := make([]domain.TaskId, 0, len(t.Parents))
		for _, p := range t.Parents {
			parents = append(parents, domain.NewTaskId(j.Id, p))
		}
		d.Tasks = append(d.Tasks, &domain.TaskDescriptor{
			Id:         t.Id,
			Owner:      j.Owner,
			Priority:   j.Priority,
			NumNodes:   t.NumNodes,
			Selection:  append(domain.SelectionPredicates(nil), t.Selection...),
			Exclusion:  t.Exclusion.Copy(),
			Parents:    parents,
			Attempt:    t.Attempt,
			Executable: t.Executable,
			Cleanup:    t.Cleanup,
		})
	}
	return d
}

type LiveJobs struct {
	mu      sync.Mutex
	cond    *sync.Cond
	jobs    map[domain.JobId]*jobData
	running map[domain.TaskId]*RunningTaskData
	inPass  bool
	stat    stats.StatsReceiver
}

func NewLiveJobs(stat stats.StatsReceiver) *LiveJobs {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	l := &LiveJobs{
		jobs:    map[domain.JobId]*jobData{},
		running: map[domain.TaskId]*RunningTaskData{},
		stat:    stat,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// lockJob finds a job, waiting while a scheduling pass owns it. Called with mu held.
func (l *LiveJobs) lockJob(id domain.JobId) (*jobData, error) {
	for {
		jd, ok := l.jobs[id]
		if !ok {
			return nil, &domain.UnknownJobError{Id: id}
		}
		if !jd.owned {
			return jd, nil
		}
		l.cond.Wait()
	}
}

func (l *LiveJobs) lockTask(id domain.TaskId) (*jobData, *domain.Task, error) {
	jd, err := l.lockJob(id.Job)
	if err != nil {
		return nil, nil, err
	}
	t := jd.job.Task(id.Name)
	if t == nil {
		return nil, nil, &domain.UnknownTaskError{Id: id}
	}
	return jd, t, nil
}

func (l *LiveJobs) updateGauges() {
	l.stat.Gauge(stats.SchedLiveJobsGauge).Update(int64(len(l.jobs)))
	l.stat.Gauge(stats.SchedRunningTasksGauge).Update(int64(len(l.running)))
}

// LockJobsToSchedule takes ownership of every job with eligible tasks and returns
// copies of them. Running and stalled jobs are always included, pending ones only
// with includePending. Only one pass may hold jobs at a time.
func (l *LiveJobs) LockJobsToSchedule(includePending bool) []*domain.JobDescriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.inPass {
		l.cond.Wait()
	}
	l.inPass = true

	var descs []*domain.JobDescriptor
	for _, jd := range l.jobs {
		switch jd.job.Status {
		case domain.JobRunning, domain.JobStalled:
		case domain.JobPending:
			if !includePending {
				continue
			}
		default:
			continue
		}
		d := jd.descriptor()
		if len(d.Tasks) == 0 {
			continue
		}
		jd.owned = true
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Id < descs[j].Id })
	return descs
}

// UnlockJobsToSchedule releases the jobs taken by LockJobsToSchedule.
func (l *LiveJobs) UnlockJobsToSchedule(descs []*domain.JobDescriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range descs {
		if jd, ok := l.jobs[d.Id]; ok {
			jd.owned = false
		}
	}
	l.inPass = false
	l.cond.Broadcast()
}

// JobSubmitted registers a validated job. Tasks without parents become eligible.
func (l *LiveJobs) JobSubmitted(job *domain.Job) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.jobs[job.Id]; ok {
		return nil, errors.Errorf("job %s already registered", job.Id)
	}
	td := NewTerminationData()
	job.Status = domain.JobPending
	if job.Submitted.IsZero() {
		job.Submitted = time.Now()
	}
	jd := newJobData(job)
	for _, t := range job.Tasks {
		if len(t.Parents) == 0 {
			t.Status = domain.TaskPending
		} else {
			t.Status = domain.TaskSubmitted
		}
	}
	l.jobs[job.Id] = jd
	l.updateGauges()
	td.emit(domain.NewJobNotification(domain.JobSubmitted, job.Info()))
	td.WakeUp = true
	log.WithFields(log.Fields{"jobId": job.Id, "owner": job.Owner, "tasks": len(job.Tasks)}).Info("Job submitted")
	return td, nil
}

// JobRecovered registers a job loaded from the store after a restart.
// Executions lost with the previous process go back to pending and a running job becomes stalled.
// Jobs already ended are only kept until their removal.
func (l *LiveJobs) JobRecovered(job *domain.Job) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.jobs[job.Id]; ok {
		return nil, errors.Errorf("job %s already registered", job.Id)
	}
	td := NewTerminationData()
	jd := newJobData(job)
	l.jobs[job.Id] = jd
	l.updateGauges()

	if job.Status.IsTerminal() {
		td.Ended = append(td.Ended, endedJob(job))
		return td, nil
	}
	for _, t := range job.Tasks {
		switch t.Status {
		case domain.TaskRunning, domain.TaskWaiting:
			t.Status = domain.TaskPending
			t.Nodes = nil
			td.saveTask(t)
		}
	}
	for _, t := range job.Tasks {
		if t.Status == domain.TaskSubmitted && jd.parentsSatisfied(t) {
			t.Status = domain.TaskPending
			td.saveTask(t)
		}
	}
	switch job.Status {
	case domain.JobRunning:
		job.Status = domain.JobStalled
	case domain.JobPaused:
		jd.pausedFrom = domain.JobPending
		if !job.Started.IsZero() {
			jd.pausedFrom = domain.JobStalled
		}
	}
	td.saveJob(job)
	td.WakeUp = true
	log.WithFields(log.Fields{"jobId": job.Id, "status": job.Status}).Info("Job recovered")
	return td, nil
}

// TaskStarted records a launched execution. The task must still be eligible;
// otherwise the execution is released and an IllegalStateError returned.
func (l *LiveJobs) TaskStarted(r *RunningTaskData) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	td := NewTerminationData()
	reject := func(err error) (*TerminationData, error) {
		td.addTermination(&TaskTermination{Task: r.Task, Launcher: r.Launcher, Nodes: r.Nodes, Cleanup: r.Cleanup, Terminate: true, Force: true})
		return td, err
	}

	jd, ok := l.jobs[r.Task.Job]
	if !ok {
		return reject(&domain.UnknownJobError{Id: r.Task.Job})
	}
	j := jd.job
	t := j.Task(r.Task.Name)
	if t == nil {
		return reject(&domain.UnknownTaskError{Id: r.Task})
	}
	if _, running := l.running[r.Task]; running || t.Status != domain.TaskPending {
		return reject(illegal("task %s is %s, cannot start", t.Id, t.Status))
	}
	switch j.Status {
	case domain.JobPending, domain.JobRunning, domain.JobStalled:
	default:
		return reject(illegal("job %s is %s, cannot start tasks", j.Id, j.Status))
	}

	if r.Started.IsZero() {
		r.Started = time.Now()
	}
	t.Attempt++
	r.Attempt = t.Attempt
	r.Owner = j.Owner
	t.Status = domain.TaskRunning
	t.Nodes = r.Nodes.Ids()
	t.Started = r.Started
	t.Progress = 0
	l.running[t.Id] = r
	l.updateGauges()

	switch j.Status {
	case domain.JobPending:
		j.Status = domain.JobRunning
		j.Started = r.Started
		td.emit(domain.NewJobNotification(domain.JobPendingToRunning, j.Info()))
	case domain.JobStalled:
		j.Status = domain.JobRunning
	}
	td.emit(domain.NewTaskNotification(domain.TaskPendingToRunning, j.Owner, t.Copy()))
	td.saveTask(t)
	td.saveJob(j)
	return td, nil
}

// SimulateJobStartAndCancel ends a job whose task can never be placed: the job is
// marked started, the task gets res and the job is canceled.
func (l *LiveJobs) SimulateJobStartAndCancel(id domain.TaskId, res *domain.TaskResult) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, ok := l.jobs[id.Job]
	if !ok {
		return nil, &domain.UnknownJobError{Id: id.Job}
	}
	j := jd.job
	t := j.Task(id.Name)
	if t == nil {
		return nil, &domain.UnknownTaskError{Id: id}
	}
	if j.Status.IsTerminal() {
		return nil, &domain.AlreadyFinishedError{Id: j.Id}
	}
	td := NewTerminationData()
	if j.Status == domain.JobPending {
		j.Status = domain.JobRunning
		j.Started = time.Now()
		td.emit(domain.NewJobNotification(domain.JobPendingToRunning, j.Info()))
	}
	td.Results = append(td.Results, SavedResult{Result: res, Precious: t.Precious})
	l.setTerminal(t, domain.TaskFailed)
	td.saveTask(t)
	td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
	l.endJob(jd, domain.JobCanceled, td)
	log.WithFields(log.Fields{"jobId": j.Id, "taskId": id, "reason": res.Message}).Info("Job canceled, task cannot be placed")
	return td, nil
}

// TaskTerminatedWithResult applies the outcome of an execution. attempt identifies
// the execution, zero matches the current one. Results for tasks that are not running,
// or from an older execution, are dropped.
func (l *LiveJobs) TaskTerminatedWithResult(id domain.TaskId, attempt int, res *domain.TaskResult) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	td := NewTerminationData()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return td, err
	}
	r, ok := l.running[id]
	if !ok || t.Status != domain.TaskRunning || (attempt > 0 && r.Attempt != attempt) {
		log.WithFields(log.Fields{"taskId": id, "attempt": attempt, "status": t.Status}).Debug("Discarding result of task not running")
		return td, nil
	}
	if res.Started.IsZero() {
		res.Started = r.Started
	}
	j := jd.job
	td.Results = append(td.Results, SavedResult{Result: res, Precious: t.Precious})

	switch res.Kind {
	case domain.ResultSuccess:
		l.releaseRunning(id, false, false, false, td)
		l.setTerminal(t, domain.TaskFinished)
		t.Progress = 100
		td.saveTask(t)
		td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
		l.promoteChildren(jd, t, td)
		l.finishIfDone(jd, td)
	case domain.ResultTaskError:
		l.releaseRunning(id, false, false, false, td)
		l.taskFailed(jd, t, td)
	case domain.ResultInfrastructureError:
		l.nodeFailure(jd, t, td)
	case domain.ResultSelectionError:
		l.releaseRunning(id, false, false, false, td)
		l.setTerminal(t, domain.TaskFailed)
		td.saveTask(t)
		td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
		l.endJob(jd, domain.JobCanceled, td)
	}
	if j.Status.IsAlive() {
		td.saveJob(j)
	}
	log.WithFields(log.Fields{"taskId": id, "kind": res.Kind, "taskStatus": t.Status, "jobStatus": j.Status}).Debug("Task terminated")
	return td, nil
}

// RestartTaskOnNodeFailure handles a task whose node died. Restart mode is ignored:
// the task waits for an immediate restart while retries are left, otherwise the job fails.
// A non-zero attempt must match the running execution.
func (l *LiveJobs) RestartTaskOnNodeFailure(id domain.TaskId, attempt int) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	r, ok := l.running[id]
	if !ok || t.Status != domain.TaskRunning {
		return nil, illegal("task %s is %s, not running", id, t.Status)
	}
	if attempt > 0 && r.Attempt != attempt {
		return nil, illegal("task %s runs attempt %d, not %d", id, r.Attempt, attempt)
	}
	td := NewTerminationData()
	l.nodeFailure(jd, t, td)
	if jd.job.Status.IsAlive() {
		td.saveJob(jd.job)
	}
	return td, nil
}

// KillJob ends a live job as KILLED.
func (l *LiveJobs) KillJob(id domain.JobId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, err := l.lockJob(id)
	if err != nil {
		return nil, err
	}
	if jd.job.Status.IsTerminal() {
		return nil, &domain.AlreadyFinishedError{Id: id}
	}
	td := NewTerminationData()
	l.endJob(jd, domain.JobKilled, td)
	return td, nil
}

// KillTask stops a running or waiting task and fails it, without retry,
// following the job's OnTaskError policy.
func (l *LiveJobs) KillTask(id domain.TaskId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	td := NewTerminationData()
	switch t.Status {
	case domain.TaskRunning:
		l.releaseRunning(id, true, true, false, td)
	case domain.TaskWaiting:
		td.Canceled = append(td.Canceled, id)
	default:
		return nil, illegal("task %s is %s, cannot be killed", id, t.Status)
	}
	res := domain.NewTaskErrorResult(id, -1, errors.New(KilledTaskMessage))
	td.Results = append(td.Results, SavedResult{Result: res, Precious: t.Precious})
	l.applyOnTaskError(jd, t, td)
	if jd.job.Status.IsAlive() {
		td.saveJob(jd.job)
	}
	return td, nil
}

// RestartTask stops a running task and restarts it after delay, consuming one retry.
// A non-positive delay means the job's restart delay. With no retry left the task
// fails following the job's OnTaskError policy.
func (l *LiveJobs) RestartTask(id domain.TaskId, delay time.Duration) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskRunning {
		return nil, illegal("task %s is %s, cannot be restarted", id, t.Status)
	}
	td := NewTerminationData()
	l.releaseRunning(id, true, true, false, td)
	res := domain.NewTaskErrorResult(id, -1, errors.New(RestartedTaskMessage))
	td.Results = append(td.Results, SavedResult{Result: res, Precious: t.Precious})
	if t.RetriesLeft > 0 {
		t.RetriesLeft--
		if delay <= 0 {
			delay = jd.job.NextWaitingTime(t.Attempt)
		}
		l.waitForRestart(jd, t, delay, td)
	} else {
		l.applyOnTaskError(jd, t, td)
	}
	if jd.job.Status.IsAlive() {
		td.saveJob(jd.job)
	}
	return td, nil
}

// PreemptTask stops a running task to free its nodes. The task is eligible again
// after delay and no retry is consumed.
func (l *LiveJobs) PreemptTask(id domain.TaskId, delay time.Duration) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskRunning {
		return nil, illegal("task %s is %s, cannot be preempted", id, t.Status)
	}
	td := NewTerminationData()
	l.releaseRunning(id, true, true, false, td)
	res := domain.NewTaskErrorResult(id, -1, errors.New(PreemptedTaskMessage))
	td.Results = append(td.Results, SavedResult{Result: res, Precious: t.Precious})
	if delay > 0 {
		l.waitForRestart(jd, t, delay, td)
	} else {
		t.Status = domain.TaskPending
		t.Nodes = nil
		td.saveTask(t)
	}
	td.saveJob(jd.job)
	td.WakeUp = true
	return td, nil
}

// PauseJob stops new tasks of a job from starting. Running tasks continue.
func (l *LiveJobs) PauseJob(id domain.JobId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, err := l.lockJob(id)
	if err != nil {
		return nil, err
	}
	j := jd.job
	switch j.Status {
	case domain.JobPending, domain.JobRunning, domain.JobStalled:
	default:
		return nil, illegal("job %s is %s, cannot be paused", id, j.Status)
	}
	jd.pausedFrom = j.Status
	j.Status = domain.JobPaused
	td := NewTerminationData()
	td.saveJob(j)
	td.emit(domain.NewJobNotification(domain.JobPausedEvent, j.Info()))
	return td, nil
}

// ResumeJob undoes PauseJob. A job that never started goes back to pending.
func (l *LiveJobs) ResumeJob(id domain.JobId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, err := l.lockJob(id)
	if err != nil {
		return nil, err
	}
	j := jd.job
	if j.Status != domain.JobPaused {
		return nil, illegal("job %s is %s, not paused", id, j.Status)
	}
	switch {
	case j.Started.IsZero():
		j.Status = domain.JobPending
	case jd.pausedFrom == domain.JobStalled:
		j.Status = domain.JobStalled
	default:
		j.Status = domain.JobRunning
	}
	td := NewTerminationData()
	td.saveJob(j)
	td.emit(domain.NewJobNotification(domain.JobResumedEvent, j.Info()))
	td.WakeUp = true
	l.finishIfDone(jd, td)
	return td, nil
}

func (l *LiveJobs) ChangeJobPriority(id domain.JobId, p domain.Priority) (*TerminationData, error) {
	if !p.Valid() {
		return nil, errors.Errorf("invalid priority %d", p)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, err := l.lockJob(id)
	if err != nil {
		return nil, err
	}
	j := jd.job
	if j.Status.IsTerminal() {
		return nil, &domain.AlreadyFinishedError{Id: id}
	}
	j.Priority = p
	td := NewTerminationData()
	td.saveJob(j)
	td.emit(domain.NewJobNotification(domain.JobChangePriority, j.Info()))
	td.WakeUp = true
	return td, nil
}

// RestartWaitingTask makes a waiting task eligible again once its restart delay expired.
func (l *LiveJobs) RestartWaitingTask(id domain.TaskId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskWaiting || jd.job.Status.IsTerminal() {
		return nil, illegal("task %s is %s, not waiting", id, t.Status)
	}
	t.Status = domain.TaskPending
	t.Nodes = nil
	td := NewTerminationData()
	td.saveTask(t)
	td.WakeUp = true
	return td, nil
}

// RestartInErrorTask makes a task held in error eligible again.
func (l *LiveJobs) RestartInErrorTask(id domain.TaskId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskInError || jd.job.Status.IsTerminal() {
		return nil, illegal("task %s is %s, not in error", id, t.Status)
	}
	t.Status = domain.TaskPending
	t.Nodes = nil
	t.Finished = time.Time{}
	td := NewTerminationData()
	td.saveTask(t)
	td.saveJob(jd.job)
	td.emit(domain.NewJobNotification(domain.JobRestartedFromError, jd.job.Info()))
	td.WakeUp = true
	return td, nil
}

// FinishInErrorTask gives up on a task held in error: it fails and its children may run.
func (l *LiveJobs) FinishInErrorTask(id domain.TaskId) (*TerminationData, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, t, err := l.lockTask(id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TaskInError || jd.job.Status.IsTerminal() {
		return nil, illegal("task %s is %s, not in error", id, t.Status)
	}
	td := NewTerminationData()
	l.setTerminal(t, domain.TaskFailed)
	td.saveTask(t)
	td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, jd.job.Owner, t.Copy()))
	l.promoteChildren(jd, t, td)
	l.finishIfDone(jd, td)
	if jd.job.Status.IsAlive() {
		td.saveJob(jd.job)
	}
	return td, nil
}

// RemoveJob forgets a job, killing it first when still alive.
// It reports false when the job is not known, which makes removal idempotent.
func (l *LiveJobs) RemoveJob(id domain.JobId) (*TerminationData, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, err := l.lockJob(id)
	if err != nil {
		return nil, false
	}
	td := NewTerminationData()
	j := jd.job
	if j.Status.IsAlive() {
		l.endJob(jd, domain.JobKilled, td)
	}
	delete(l.jobs, id)
	l.updateGauges()
	l.stat.Counter(stats.SchedJobsRemovedCounter).Inc(1)
	j.Removed = time.Now()
	j.ToBeRemoved = false
	td.Removed = append(td.Removed, id)
	td.emit(domain.NewJobNotification(domain.JobRemoveFinished, j.Info()))
	log.WithFields(log.Fields{"jobId": id, "status": j.Status}).Info("Job removed")
	return td, true
}

// MarkToBeRemoved flags a job whose removal is scheduled.
func (l *LiveJobs) MarkToBeRemoved(id domain.JobId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, ok := l.jobs[id]
	if !ok {
		return false
	}
	jd.job.ToBeRemoved = true
	return true
}

// UpdateTaskProgress records a successful liveness probe. It emits TASK_PROGRESS
// when the progress changed.
func (l *LiveJobs) UpdateTaskProgress(id domain.TaskId, progress int) *TerminationData {
	l.mu.Lock()
	defer l.mu.Unlock()
	td := NewTerminationData()
	r, ok := l.running[id]
	if !ok {
		return td
	}
	r.PingAttempts = 0
	if r.Progress == progress {
		return td
	}
	r.Progress = progress
	jd, ok := l.jobs[id.Job]
	if !ok {
		return td
	}
	if t := jd.job.Task(id.Name); t != nil {
		t.Progress = progress
		td.emit(domain.NewTaskNotification(domain.TaskProgress, jd.job.Owner, t.Copy()))
	}
	return td
}

// RecordPingFailure counts a failed liveness probe and returns the consecutive failures.
func (l *LiveJobs) RecordPingFailure(id domain.TaskId) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.running[id]
	if !ok {
		return 0, false
	}
	r.PingAttempts++
	return r.PingAttempts, true
}

func (l *LiveJobs) Job(id domain.JobId) (*domain.Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, ok := l.jobs[id]
	if !ok {
		return nil, &domain.UnknownJobError{Id: id}
	}
	return jd.job.Copy(), nil
}

func (l *LiveJobs) Task(id domain.TaskId) (*domain.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, ok := l.jobs[id.Job]
	if !ok {
		return nil, &domain.UnknownJobError{Id: id.Job}
	}
	t := jd.job.Task(id.Name)
	if t == nil {
		return nil, &domain.UnknownTaskError{Id: id}
	}
	return t.Copy(), nil
}

// Identify returns what is needed to authorize an operation on a job.
func (l *LiveJobs) Identify(id domain.JobId) (domain.IdentifiedJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	jd, ok := l.jobs[id]
	if !ok {
		return domain.IdentifiedJob{}, &domain.UnknownJobError{Id: id}
	}
	return domain.IdentifiedJob{Id: id, Owner: jd.job.Owner, Finished: jd.job.Status.IsTerminal()}, nil
}

// Jobs returns the headers of all known jobs by id.
func (l *LiveJobs) Jobs() []*domain.JobInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	infos := make([]*domain.JobInfo, 0, len(l.jobs))
	for _, jd := range l.jobs {
		infos = append(infos, jd.job.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Id < infos[j].Id })
	return infos
}

// RunningTasks returns a snapshot of the executions in progress.
func (l *LiveJobs) RunningTasks() []RunningTaskData {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]RunningTaskData, 0, len(l.running))
	for _, r := range l.running {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Task.Job != out[j].Task.Job {
			return out[i].Task.Job < out[j].Task.Job
		}
		return out[i].Task.Name < out[j].Task.Name
	})
	return out
}

func (l *LiveJobs) NumRunning() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.running)
}

func (l *LiveJobs) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs)
}

// releaseRunning drops the running record of a task and schedules its release.
// Called with mu held; a task without a record is already released.
func (l *LiveJobs) releaseRunning(id domain.TaskId, terminate, force, down bool, td *TerminationData) {
	r, ok := l.running[id]
	if !ok {
		return
	}
	delete(l.running, id)
	l.updateGauges()
	td.addTermination(&TaskTermination{
		Task:      id,
		Launcher:  r.Launcher,
		Nodes:     r.Nodes,
		Cleanup:   r.Cleanup,
		Terminate: terminate,
		Force:     force,
		NodesDown: down,
	})
}

func (l *LiveJobs) setTerminal(t *domain.Task, s domain.TaskStatus) {
	t.Status = s
	t.Finished = time.Now()
}

func (l *LiveJobs) promoteChildren(jd *jobData, t *domain.Task, td *TerminationData) {
	for _, name := range jd.children[t.Id.Name] {
		c := jd.job.Task(name)
		if c == nil || c.Status != domain.TaskSubmitted || !jd.parentsSatisfied(c) {
			continue
		}
		c.Status = domain.TaskPending
		td.saveTask(c)
		td.WakeUp = true
	}
}

func (l *LiveJobs) finishIfDone(jd *jobData, td *TerminationData) {
	j := jd.job
	if j.Status.IsTerminal() || j.Status == domain.JobPending {
		return
	}
	for _, t := range j.Tasks {
		if !t.Status.IsTerminal() {
			return
		}
	}
	l.endJob(jd, domain.JobFinished, td)
}

// taskFailed applies the restart policy to a task whose execution erred.
func (l *LiveJobs) taskFailed(jd *jobData, t *domain.Task, td *TerminationData) {
	j := jd.job
	if j.OnTaskError == domain.CancelJob && t.RestartMode == domain.RestartNone {
		l.setTerminal(t, domain.TaskFailed)
		td.saveTask(t)
		td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
		l.endJob(jd, domain.JobCanceled, td)
		return
	}
	if t.RestartMode != domain.RestartNone && t.RetriesLeft > 0 {
		t.RetriesLeft--
		if t.RestartMode == domain.RestartElsewhere {
			for _, n := range t.Nodes {
				t.Exclusion[n] = struct{}{}
			}
		}
		l.stat.Counter(stats.SchedTaskRestartsCounter).Inc(1)
		l.waitForRestart(jd, t, j.NextWaitingTime(t.Attempt), td)
		return
	}
	l.applyOnTaskError(jd, t, td)
}

func (l *LiveJobs) waitForRestart(jd *jobData, t *domain.Task, delay time.Duration, td *TerminationData) {
	t.Status = domain.TaskWaiting
	td.saveTask(t)
	td.emit(domain.NewTaskNotification(domain.TaskWaitingForRestart, jd.job.Owner, t.Copy()))
	td.Restarts = append(td.Restarts, Restart{Task: t.Id, Delay: delay})
}

// applyOnTaskError fails a task for good and lets the job policy decide the rest.
func (l *LiveJobs) applyOnTaskError(jd *jobData, t *domain.Task, td *TerminationData) {
	j := jd.job
	if j.OnTaskError == domain.SuspendTask {
		t.Status = domain.TaskInError
		td.saveTask(t)
		td.emit(domain.NewTaskNotification(domain.TaskInErrorEvent, j.Owner, t.Copy()))
		return
	}
	l.setTerminal(t, domain.TaskFailed)
	td.saveTask(t)
	td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
	switch j.OnTaskError {
	case domain.ContinueJob:
		l.promoteChildren(jd, t, td)
		l.finishIfDone(jd, td)
	case domain.CancelJob:
		l.endJob(jd, domain.JobCanceled, td)
	default:
		l.endJob(jd, domain.JobFailed, td)
	}
}

func (l *LiveJobs) nodeFailure(jd *jobData, t *domain.Task, td *TerminationData) {
	j := jd.job
	l.releaseRunning(t.Id, true, true, true, td)
	if t.RetriesLeft > 0 {
		t.RetriesLeft--
		l.stat.Counter(stats.SchedNodeFailureRestartsCounter).Inc(1)
		l.waitForRestart(jd, t, 0, td)
		log.WithFields(log.Fields{"taskId": t.Id, "retriesLeft": t.RetriesLeft}).Info("Restarting task after node failure")
		return
	}
	res := domain.NewInfrastructureErrorResult(t.Id, errors.New(NodeFailureMessage))
	td.Results = append(td.Results, SavedResult{Result: res, Precious: t.Precious})
	l.setTerminal(t, domain.TaskFailed)
	td.saveTask(t)
	td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
	l.endJob(jd, domain.JobFailed, td)
	log.WithFields(log.Fields{"taskId": t.Id}).Warn(NodeFailureMessage)
}

// endJob moves a live job to a terminal status. Running tasks are aborted,
// tasks that never ran are canceled.
func (l *LiveJobs) endJob(jd *jobData, status domain.JobStatus, td *TerminationData) {
	j := jd.job
	if !domain.CanTransition(j.Status, status) {
		log.WithFields(log.Fields{"jobId": j.Id, "from": j.Status, "to": status}).Warn("Refusing job transition")
		return
	}
	for _, t := range j.Tasks {
		switch t.Status {
		case domain.TaskRunning:
			l.releaseRunning(t.Id, true, true, false, td)
			l.setTerminal(t, domain.TaskAborted)
			td.emit(domain.NewTaskNotification(domain.TaskRunningToFinished, j.Owner, t.Copy()))
		case domain.TaskWaiting:
			td.Canceled = append(td.Canceled, t.Id)
			l.setTerminal(t, domain.TaskCanceled)
		case domain.TaskSubmitted, domain.TaskPending:
			l.setTerminal(t, domain.TaskCanceled)
		case domain.TaskInError:
			l.setTerminal(t, domain.TaskFailed)
		default:
			continue
		}
		td.saveTask(t)
	}
	event := domain.JobRunningToFinished
	if j.Started.IsZero() {
		event = domain.JobPendingToFinished
	}
	j.Status = status
	j.Finished = time.Now()
	td.saveJob(j)
	td.emit(domain.NewJobNotification(event, j.Info()))
	td.Ended = append(td.Ended, endedJob(j))
	td.WakeUp = true
	l.stat.Counter(stats.SchedJobsTerminatedCounter).Inc(1)
	log.WithFields(log.Fields{"jobId": j.Id, "status": status}).Info("Job ended")
}

func endedJob(j *domain.Job) EndedJob {
	return EndedJob{
		Info:               j.Info(),
		HasErrors:          j.HasErrors(),
		RemoveDelay:        j.RemoveDelay,
		RemoveDelayOnError: j.RemoveDelayOnError,
	}
}

package domain

// JobStatus is the lifecycle state of a Job.
type JobStatus int

const (
	// Submitted, no task started yet
	JobPending JobStatus = iota

	// At least one task started
	JobRunning

	// Recovered as running after a cold restart, waiting for its first task to restart
	JobStalled

	// Running tasks continue but no new task is started
	JobPaused

	// Every task terminated
	JobFinished

	// Canceled on error or because a selection predicate could not be evaluated
	JobCanceled

	// A task failed with no retries left
	JobFailed

	// Killed on request
	JobKilled
)

var jobStatusNames = [...]string{"PENDING", "RUNNING", "STALLED", "PAUSED", "FINISHED", "CANCELED", "FAILED", "KILLED"}

func (s JobStatus) String() string {
	if s < 0 || int(s) >= len(jobStatusNames) {
		return "UNKNOWN"
	}
	return jobStatusNames[s]
}

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobFinished, JobCanceled, JobFailed, JobKilled:
		return true
	}
	return false
}

// IsAlive reports whether tasks of a job in this status may still run.
func (s JobStatus) IsAlive() bool {
	return !s.IsTerminal()
}

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending: {JobRunning, JobPaused, JobCanceled, JobFailed, JobKilled},
	JobRunning: {JobStalled, JobPaused, JobFinished, JobCanceled, JobFailed, JobKilled},
	JobStalled: {JobRunning, JobPaused, JobFinished, JobCanceled, JobFailed, JobKilled},
	JobPaused:  {JobPending, JobRunning, JobStalled, JobFinished, JobCanceled, JobFailed, JobKilled},
}

// CanTransition reports whether a job may move from one status to another.
// Terminal statuses never change.
func CanTransition(from, to JobStatus) bool {
	for _, s := range jobTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus int

const (
	// Accepted, dependencies not yet satisfied
	TaskSubmitted TaskStatus = iota

	// Eligible for scheduling
	TaskPending

	// Waiting for a delayed restart
	TaskWaiting

	TaskRunning
	TaskFinished
	TaskFailed

	// Never started because its job ended
	TaskCanceled

	// Stopped while running because its job ended or it was killed
	TaskAborted

	// Failed and held until an operator restarts or finishes it
	TaskInError
)

var taskStatusNames = [...]string{"SUBMITTED", "PENDING", "WAITING", "RUNNING", "FINISHED", "FAILED", "CANCELED", "ABORTED", "IN_ERROR"}

func (s TaskStatus) String() string {
	if s < 0 || int(s) >= len(taskStatusNames) {
		return "UNKNOWN"
	}
	return taskStatusNames[s]
}

// IsTerminal reports whether a task in this status will never run again without
// explicit operator action.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskFinished, TaskFailed, TaskCanceled, TaskAborted:
		return true
	}
	return false
}

// SatisfiesDependents reports whether children of a task in this status may run.
func (s TaskStatus) SatisfiesDependents() bool {
	return s == TaskFinished || s == TaskFailed
}

package livejobs

import (
	"fmt"
	"time"

	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/rm"
)

// TaskTermination says how to release one task execution: stop its launcher and
// give its nodes back to the resource manager.
type TaskTermination struct {
	Task     domain.TaskId
	Launcher launcher.Launcher
	Nodes    rm.NodeSet
	Cleanup  *domain.Script

	// Terminate the launcher before freeing, Force kills without cleanup.
	Terminate bool
	Force     bool

	// NodesDown frees the nodes as dead instead of running the cleanup script.
	NodesDown bool
}

type SavedResult struct {
	Result   *domain.TaskResult
	Precious bool
}

type Restart struct {
	Task  domain.TaskId
	Delay time.Duration
}

// EndedJob is a job that reached a terminal status and has to be removed later.
type EndedJob struct {
	Info               *domain.JobInfo
	HasErrors          bool
	RemoveDelay        time.Duration
	RemoveDelayOnError time.Duration
}

// TerminationData collects the side effects of registry mutations.
// It is built under the registry lock and applied by the caller after releasing it.
// Terminations are keyed by task so a task execution is released at most once.
type TerminationData struct {
	Terminations map[domain.TaskId]*TaskTermination
	Events       []domain.Notification
	Jobs         []*domain.JobInfo
	Tasks        []*domain.Task
	Results      []SavedResult
	Restarts     []Restart
	Canceled     []domain.TaskId // restarts no longer wanted
	Ended        []EndedJob
	Removed      []domain.JobId

	// WakeUp is set when the change may let the scheduler start more tasks.
	WakeUp bool
}

func NewTerminationData() *TerminationData {
	return &TerminationData{Terminations: map[domain.TaskId]*TaskTermination{}}
}

func (td *TerminationData) addTermination(t *TaskTermination) {
	if _, ok := td.Terminations[t.Task]; ok {
		return
	}
	td.Terminations[t.Task] = t
	td.WakeUp = true
}

func (td *TerminationData) emit(n domain.Notification) {
	td.Events = append(td.Events, n)
}

func (td *TerminationData) saveJob(j *domain.Job) {
	td.Jobs = append(td.Jobs, j.Info())
}

func (td *TerminationData) saveTask(t *domain.Task) {
	td.Tasks = append(td.Tasks, t.Copy())
}

// Merge appends the content of o. Terminations already present are kept.
func (td *TerminationData) Merge(o *TerminationData) {
	if o == nil {
		return
	}
	for _, t := range o.Terminations {
		td.addTermination(t)
	}
	td.Events = append(td.Events, o.Events...)
	td.Jobs = append(td.Jobs, o.Jobs...)
	td.Tasks = append(td.Tasks, o.Tasks...)
	td.Results = append(td.Results, o.Results...)
	td.Restarts = append(td.Restarts, o.Restarts...)
	td.Canceled = append(td.Canceled, o.Canceled...)
	td.Ended = append(td.Ended, o.Ended...)
	td.Removed = append(td.Removed, o.Removed...)
	td.WakeUp = td.WakeUp || o.WakeUp
}

func (td *TerminationData) IsEmpty() bool {
	return len(td.Terminations) == 0 && len(td.Events) == 0 && len(td.Jobs) == 0 &&
		len(td.Tasks) == 0 && len(td.Results) == 0 && len(td.Restarts) == 0 &&
		len(td.Canceled) == 0 && len(td.Ended) == 0 && len(td.Removed) == 0
}

// EventsOf returns the emitted events in order, handy for logs and tests.
func (td *TerminationData) EventsOf() []domain.Event {
	events := make([]domain.Event, 0, len(td.Events))
	for _, n := range td.Events {
		events = append(events, n.Event)
	}
	return events
}

func (td *TerminationData) String() string {
	return fmt.Sprintf("terminations:%d events:%v restarts:%d ended:%d removed:%v",
		len(td.Terminations), td.EventsOf(), len(td.Restarts), len(td.Ended), td.Removed)
}

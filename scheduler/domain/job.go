package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/twitter/herd/cloud/cluster"
)

// OnTaskError decides what happens to a job once one of its tasks fails.
type OnTaskError int

const (
	// A task failing with no retries left fails the whole job.
	FailJob OnTaskError = iota

	// Only the task fails; its children still run and the job continues.
	ContinueJob

	// The first error cancels the job, unless the task carries a restart mode.
	CancelJob

	// The task is held IN_ERROR until restarted or finished by an operator.
	SuspendTask
)

func (o OnTaskError) String() string {
	switch o {
	case FailJob:
		return "FAIL_JOB"
	case ContinueJob:
		return "CONTINUE_JOB"
	case CancelJob:
		return "CANCEL_JOB"
	case SuspendTask:
		return "SUSPEND_TASK"
	}
	return "UNKNOWN"
}

// RestartMode governs whether a task error is retried and where.
type RestartMode int

const (
	RestartNone RestartMode = iota
	RestartSameNode
	RestartElsewhere
)

func (m RestartMode) String() string {
	switch m {
	case RestartNone:
		return "NONE"
	case RestartSameNode:
		return "SAME_NODE"
	case RestartElsewhere:
		return "ELSEWHERE"
	}
	return "UNKNOWN"
}

// Executable is the payload handed to a launcher. It is opaque to the engine.
type Executable struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Script is run by the resource manager when nodes are given back.
type Script struct {
	Name    string
	Content string
}

// SelectionPredicate is evaluated by the resource manager against candidate nodes.
type SelectionPredicate struct {
	Name string
	Args map[string]string
}

func (p SelectionPredicate) String() string {
	keys := make([]string, 0, len(p.Args))
	for k := range p.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p.Args[k])
	}
	return p.Name + "(" + strings.Join(parts, ",") + ")"
}

type SelectionPredicates []SelectionPredicate

// Hash identifies a predicate list; equal lists always hash the same and different
// lists never do. Names, keys and values are quoted.
func (s SelectionPredicates) Hash() string {
	var b strings.Builder
	for _, p := range s {
		keys := make([]string, 0, len(p.Args))
		for k := range p.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(&b, "%q(", p.Name)
		for _, k := range keys {
			fmt.Fprintf(&b, "%q=%q,", k, p.Args[k])
		}
		b.WriteString(");")
	}
	return b.String()
}

// NodeExclusion is the set of nodes a task must not be placed on.
type NodeExclusion map[cluster.NodeId]struct{}

func NewNodeExclusion(ids ...cluster.NodeId) NodeExclusion {
	e := NodeExclusion{}
	for _, id := range ids {
		e[id] = struct{}{}
	}
	return e
}

func (e NodeExclusion) Contains(id cluster.NodeId) bool {
	_, ok := e[id]
	return ok
}

// Key is a canonical string for the set, equal sets share the same key.
func (e NodeExclusion) Key() string {
	ids := make([]string, 0, len(e))
	for id := range e {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = fmt.Sprintf("%q", id)
	}
	return strings.Join(quoted, ",")
}

func (e NodeExclusion) Copy() NodeExclusion {
	c := make(NodeExclusion, len(e))
	for id := range e {
		c[id] = struct{}{}
	}
	return c
}

// Task is one unit of work within a Job.
type Task struct {
	Id          TaskId
	Status      TaskStatus
	NumNodes    int
	Selection   SelectionPredicates
	Exclusion   NodeExclusion
	MaxRetries  int
	RetriesLeft int
	RestartMode RestartMode
	Parents     []string // names of tasks in the same job whose results feed this one
	Precious    bool     // result kept after the job is cleaned up
	Executable  Executable
	Cleanup     *Script

	Progress int
	Attempt  int // number of executions started
	Nodes    []cluster.NodeId
	Started  time.Time
	Finished time.Time
}

func (t *Task) Copy() *Task {
	c := *t
	c.Exclusion = t.Exclusion.Copy()
	c.Parents = append([]string(nil), t.Parents...)
	c.Nodes = append([]cluster.NodeId(nil), t.Nodes...)
	c.Selection = append(SelectionPredicates(nil), t.Selection...)
	return &c
}

func (t *Task) String() string {
	return fmt.Sprintf("task:%s status:%s nodes:%d retriesLeft:%d restart:%s", t.Id, t.Status, t.NumNodes, t.RetriesLeft, t.RestartMode)
}

// JobInfo is the task-less view of a job carried by notifications and stored by setJobEvent.
type JobInfo struct {
	Id          JobId
	Name        string
	Owner       string
	Priority    Priority
	Status      JobStatus
	Submitted   time.Time
	Started     time.Time
	Finished    time.Time
	Removed     time.Time
	ToBeRemoved bool

	NumTasks    int
	NumPending  int
	NumRunning  int
	NumFinished int
	NumFailed   int
}

// Job is a set of dependent tasks submitted together by one owner.
type Job struct {
	JobInfo
	OnTaskError OnTaskError

	// Base delay before a task error restart; the Nth retry waits N times this.
	RestartDelay time.Duration

	// Per-job removal overrides, zero means use the scheduler defaults.
	RemoveDelay        time.Duration
	RemoveDelayOnError time.Duration

	Tasks []*Task
}

func (j *Job) Task(name string) *Task {
	for _, t := range j.Tasks {
		if t.Id.Name == name {
			return t
		}
	}
	return nil
}

// Info returns a copy of the job's header with task counts refreshed.
func (j *Job) Info() *JobInfo {
	info := j.JobInfo
	info.NumTasks = len(j.Tasks)
	info.NumPending, info.NumRunning, info.NumFinished, info.NumFailed = 0, 0, 0, 0
	for _, t := range j.Tasks {
		switch t.Status {
		case TaskSubmitted, TaskPending, TaskWaiting:
			info.NumPending++
		case TaskRunning:
			info.NumRunning++
		case TaskFinished:
			info.NumFinished++
		case TaskFailed, TaskInError:
			info.NumFailed++
		}
	}
	return &info
}

// HasErrors reports whether a job ended abnormally or contains a failed task.
func (j *Job) HasErrors() bool {
	if j.Status == JobFailed || j.Status == JobCanceled || j.Status == JobKilled {
		return true
	}
	for _, t := range j.Tasks {
		if t.Status == TaskFailed || t.Status == TaskInError {
			return true
		}
	}
	return false
}

// NextWaitingTime is the delay applied before restarting a task that erred on the given attempt.
func (j *Job) NextWaitingTime(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return j.RestartDelay * time.Duration(attempt)
}

func (j *Job) Copy() *Job {
	c := *j
	c.Tasks = make([]*Task, 0, len(j.Tasks))
	for _, t := range j.Tasks {
		c.Tasks = append(c.Tasks, t.Copy())
	}
	return &c
}

func (j *Job) String() string {
	return fmt.Sprintf("job:%s owner:%s priority:%s status:%s tasks:%d", j.Id, j.Owner, j.Priority, j.Status, len(j.Tasks))
}

// Validate checks the task graph of a freshly defined job and fills defaults.
// Task ids are bound to the job id.
func (j *Job) Validate() error {
	if len(j.Tasks) == 0 {
		return errors.Errorf("job %s has no tasks", j.Id)
	}
	if !j.Priority.Valid() {
		return errors.Errorf("job %s has invalid priority %d", j.Id, j.Priority)
	}
	names := map[string]bool{}
	for _, t := range j.Tasks {
		if t.Id.Name == "" {
			return errors.Errorf("job %s has a task without a name", j.Id)
		}
		if names[t.Id.Name] {
			return errors.Errorf("job %s has duplicate task %s", j.Id, t.Id.Name)
		}
		names[t.Id.Name] = true
	}
	for _, t := range j.Tasks {
		for _, p := range t.Parents {
			if !names[p] || p == t.Id.Name {
				return errors.Errorf("task %s depends on unknown task %s", t.Id.Name, p)
			}
		}
	}
	if cyclic(j.Tasks) {
		return errors.Errorf("job %s has a dependency cycle", j.Id)
	}
	for _, t := range j.Tasks {
		t.Id.Job = j.Id
		if t.NumNodes < 1 {
			t.NumNodes = 1
		}
		if t.MaxRetries < 0 {
			t.MaxRetries = 0
		}
		t.RetriesLeft = t.MaxRetries
		if t.Exclusion == nil {
			t.Exclusion = NodeExclusion{}
		}
	}
	return nil
}

func cyclic(tasks []*Task) bool {
	parents := map[string][]string{}
	for _, t := range tasks {
		parents[t.Id.Name] = t.Parents
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var visit func(string) bool
	visit = func(n string) bool {
		switch state[n] {
		case visiting:
			return true
		case done:
			return false
		}
		state[n] = visiting
		for _, p := range parents[n] {
			if visit(p) {
				return true
			}
		}
		state[n] = done
		return false
	}
	for _, t := range tasks {
		if visit(t.Id.Name) {
			return true
		}
	}
	return false
}

// IdentifiedJob is what the service needs to authorize an operation on a job.
type IdentifiedJob struct {
	Id       JobId
	Owner    string
	Finished bool
}

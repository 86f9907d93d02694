package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ResultKind says how a task execution ended. Restart decisions switch on it.
type ResultKind int

const (
	ResultSuccess ResultKind = iota

	// The task logic failed, subject to the task's restart policy.
	ResultTaskError

	// The node or launcher failed, the task itself did not.
	ResultInfrastructureError

	// A selection predicate could not be evaluated; the task can never be placed.
	ResultSelectionError
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "SUCCESS"
	case ResultTaskError:
		return "TASK_ERROR"
	case ResultInfrastructureError:
		return "INFRASTRUCTURE_ERROR"
	case ResultSelectionError:
		return "SELECTION_ERROR"
	}
	return "UNKNOWN"
}

// TaskResult is the outcome of one task execution.
type TaskResult struct {
	Task     TaskId
	Kind     ResultKind
	Value    []byte
	Message  string
	ExitCode int
	Output   string
	Started  time.Time
	Finished time.Time
}

func NewSuccessResult(id TaskId, value []byte) *TaskResult {
	return &TaskResult{Task: id, Kind: ResultSuccess, Value: value, Finished: time.Now()}
}

func NewTaskErrorResult(id TaskId, exitCode int, err error) *TaskResult {
	return &TaskResult{Task: id, Kind: ResultTaskError, ExitCode: exitCode, Message: errMessage(err), Finished: time.Now()}
}

func NewInfrastructureErrorResult(id TaskId, err error) *TaskResult {
	return &TaskResult{Task: id, Kind: ResultInfrastructureError, Message: errMessage(err), Finished: time.Now()}
}

func NewSelectionErrorResult(id TaskId, err error) *TaskResult {
	return &TaskResult{Task: id, Kind: ResultSelectionError, Message: errMessage(err), Finished: time.Now()}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (r *TaskResult) HadError() bool {
	return r.Kind != ResultSuccess
}

// Err returns the failure carried by the result, nil on success.
func (r *TaskResult) Err() error {
	if !r.HadError() {
		return nil
	}
	return errors.Errorf("%s: %s", r.Kind, r.Message)
}

func (r *TaskResult) String() string {
	return fmt.Sprintf("result task:%s kind:%s exit:%d msg:%q", r.Task, r.Kind, r.ExitCode, r.Message)
}

// JobResult maps task names to results. It is filled lazily on request.
type JobResult struct {
	Job     JobId
	Results map[string]*TaskResult
}

func NewJobResult(id JobId) *JobResult {
	return &JobResult{Job: id, Results: map[string]*TaskResult{}}
}

func (r *JobResult) HadError() bool {
	for _, res := range r.Results {
		if res.HadError() {
			return true
		}
	}
	return false
}

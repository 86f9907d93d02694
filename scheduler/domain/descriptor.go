package domain

import "time"

// TaskDescriptor is the scheduling view of an eligible task.
type TaskDescriptor struct {
	Id         TaskId
	Owner      string
	Priority   Priority
	NumNodes   int
	Selection  SelectionPredicates
	Exclusion  NodeExclusion
	Parents    []TaskId
	Attempt    int
	Executable Executable
	Cleanup    *Script
}

// Compatible reports whether two tasks can share one node request.
func (t *TaskDescriptor) Compatible(o *TaskDescriptor) bool {
	return t.Selection.Hash() == o.Selection.Hash() && t.Exclusion.Key() == o.Exclusion.Key()
}

// JobDescriptor is a read-only projection of a job holding only its eligible tasks.
type JobDescriptor struct {
	Id        JobId
	Owner     string
	Priority  Priority
	Status    JobStatus
	Submitted time.Time
	Tasks     []*TaskDescriptor
}

// Package domain provides definitions for herd Jobs, Tasks and the
// notifications emitted as they change state.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// JobId identifies a job. Ids are allocated by the store and only ever grow.
type JobId int64

func (id JobId) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func ParseJobId(s string) (JobId, error) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid job id %q", s)
	}
	return JobId(i), nil
}

// TaskId identifies a task; Name is unique within its Job.
type TaskId struct {
	Job  JobId
	Name string
}

func NewTaskId(job JobId, name string) TaskId {
	return TaskId{Job: job, Name: name}
}

func (id TaskId) String() string {
	return fmt.Sprintf("%dt%s", id.Job, id.Name)
}

func ParseTaskId(s string) (TaskId, error) {
	idx := strings.Index(s, "t")
	if idx <= 0 || idx == len(s)-1 {
		return TaskId{}, errors.Errorf("invalid task id %q", s)
	}
	job, err := ParseJobId(s[:idx])
	if err != nil {
		return TaskId{}, err
	}
	return TaskId{Job: job, Name: s[idx+1:]}, nil
}

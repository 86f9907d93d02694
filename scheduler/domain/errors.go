package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

type UnknownJobError struct {
	Id JobId
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("unknown job %s", e.Id)
}

type UnknownTaskError struct {
	Id TaskId
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %s in job %s", e.Id.Name, e.Id.Job)
}

type PermissionError struct {
	User      string
	Operation string
	Reason    string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s is not allowed to %s: %s", e.User, e.Operation, e.Reason)
}

type AlreadyFinishedError struct {
	Id JobId
}

func (e *AlreadyFinishedError) Error() string {
	return fmt.Sprintf("job %s is already finished", e.Id)
}

// SubmissionClosedError is returned when the scheduler does not accept jobs in its current status.
type SubmissionClosedError struct {
	Status string
}

func (e *SubmissionClosedError) Error() string {
	return fmt.Sprintf("submission is closed, scheduler is %s", e.Status)
}

// NotConnectedError is returned when the scheduler has lost its resource manager.
type NotConnectedError struct{}

func (e *NotConnectedError) Error() string {
	return "scheduler is not linked to a resource manager"
}

func IsUnknownJob(err error) bool {
	_, ok := errors.Cause(err).(*UnknownJobError)
	return ok
}

func IsUnknownTask(err error) bool {
	_, ok := errors.Cause(err).(*UnknownTaskError)
	return ok
}

func IsPermission(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

func IsAlreadyFinished(err error) bool {
	_, ok := errors.Cause(err).(*AlreadyFinishedError)
	return ok
}

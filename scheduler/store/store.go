// Package store defines the persistent job/task database used for crash
// recovery and for reloading task results evicted from memory.
package store

//go:generate mockgen -source=store.go -package=store -destination=store_mock.go

import (
	"context"

	"github.com/pkg/errors"

	"github.com/twitter/herd/scheduler/domain"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	// NextJobId allocates a job id greater than any handed out before.
	NextJobId(ctx context.Context) (domain.JobId, error)

	AddJob(ctx context.Context, job *domain.Job) error

	// UpdateJob records a job state change.
	UpdateJob(ctx context.Context, info *domain.JobInfo) error

	// UpdateTask records a task state change.
	UpdateTask(ctx context.Context, task *domain.Task) error

	SaveTaskResult(ctx context.Context, res *domain.TaskResult) error

	LoadJobWithoutTasks(ctx context.Context, id domain.JobId) (*domain.JobInfo, error)
	LoadJob(ctx context.Context, id domain.JobId) (*domain.Job, error)
	LoadTask(ctx context.Context, id domain.TaskId) (*domain.Task, error)
	LoadTaskResult(ctx context.Context, id domain.TaskId) (*domain.TaskResult, error)

	// LoadJobs returns every stored job ordered by id.
	LoadJobs(ctx context.Context) ([]*domain.Job, error)

	// RemoveJob deletes a job, its tasks and results. Removing an unknown job is not an error.
	RemoveJob(ctx context.Context, id domain.JobId) error
}

func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

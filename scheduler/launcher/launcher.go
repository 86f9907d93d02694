// Package launcher defines how the scheduler starts a task on the nodes it was given
// and how it watches the task until a result comes back.
package launcher

//go:generate mockgen -source=launcher.go -package=launcher -destination=launcher_mock.go

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/rm"
)

// ErrNodeDown is returned, possibly wrapped, when a node running the task stopped answering.
var ErrNodeDown = errors.New("node is down")

func IsNodeDown(err error) bool {
	return err != nil && errors.Cause(err) == ErrNodeDown
}

// ResultHandler receives the outcome of a launched task. It may be called from any goroutine.
type ResultHandler interface {
	TaskTerminatedWithResult(id domain.TaskId, res *domain.TaskResult)
}

type Factory interface {
	// CreateLauncher prepares a launcher bound to one task execution on the given nodes.
	CreateLauncher(ctx context.Context, task *domain.TaskDescriptor, nodes rm.NodeSet) (Launcher, error)
}

type Launcher interface {
	// DoTask starts the task and returns once it is running.
	// The result is delivered later through the handler, exactly once unless terminated first.
	DoTask(ctx context.Context, exec domain.Executable, parents []*domain.TaskResult, h ResultHandler) error

	// Progress reports completion in percent, or ErrNodeDown.
	Progress(ctx context.Context) (int, error)

	// Terminate stops the execution. With force set the task is killed without cleanup.
	Terminate(force bool) error

	// ActivateLogs copies the task's output to w from now on.
	ActivateLogs(w io.Writer) error
}

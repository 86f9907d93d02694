package server

import (
	"github.com/twitter/herd/scheduler/domain"
)

type Operation string

const (
	OpSubmitJob          Operation = "submit a job"
	OpSetAdminPriority   Operation = "use an administrator priority"
	OpPauseJob           Operation = "pause a job"
	OpResumeJob          Operation = "resume a job"
	OpKillJob            Operation = "kill a job"
	OpRemoveJob          Operation = "remove a job"
	OpChangeJobPriority  Operation = "change the priority of a job"
	OpKillTask           Operation = "kill a task"
	OpRestartTask        Operation = "restart a task"
	OpPreemptTask        Operation = "preempt a task"
	OpRestartInErrorTask Operation = "restart a task in error"
	OpFinishInErrorTask  Operation = "finish a task in error"
	OpGetJobState        Operation = "get the state of a job"
	OpGetJobResult       Operation = "get the result of a job"
	OpListen             Operation = "listen to scheduler events"
	OpManageScheduler    Operation = "manage the scheduler"
)

// adminOnly operations are not tied to a job owner.
func (op Operation) adminOnly() bool {
	return op == OpManageScheduler || op == OpSetAdminPriority
}

// Authorizer decides whether user may run op. Owner is the owner of the targeted
// job, or empty for operations that do not target a job.
type Authorizer interface {
	Authorize(user string, op Operation, owner string) error
}

type allowAll struct{}

// AllowAll authorizes every operation.
func AllowAll() Authorizer { return allowAll{} }

func (allowAll) Authorize(string, Operation, string) error { return nil }

// AdminAuthorizer lets administrators do everything and other users manage only their own jobs.
type AdminAuthorizer struct {
	admins map[string]bool
}

func NewAdminAuthorizer(admins ...string) *AdminAuthorizer {
	a := &AdminAuthorizer{admins: map[string]bool{}}
	for _, u := range admins {
		a.admins[u] = true
	}
	return a
}

func (a *AdminAuthorizer) IsAdmin(user string) bool {
	return a.admins[user]
}

func (a *AdminAuthorizer) Authorize(user string, op Operation, owner string) error {
	switch {
	case a.admins[user]:
		return nil
	case op.adminOnly():
		return &domain.PermissionError{User: user, Operation: string(op), Reason: "administrator only"}
	case owner != "" && owner != user:
		return &domain.PermissionError{User: user, Operation: string(op), Reason: "job belongs to " + owner}
	}
	return nil
}

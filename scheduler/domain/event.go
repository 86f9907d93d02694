package domain

import "fmt"

// NotificationKind selects which part of a Notification is populated.
type NotificationKind int

const (
	SchedulerNotification NotificationKind = iota
	JobNotification
	TaskNotification
	UsersNotification
)

func (k NotificationKind) String() string {
	switch k {
	case SchedulerNotification:
		return "SCHEDULER"
	case JobNotification:
		return "JOB"
	case TaskNotification:
		return "TASK"
	case UsersNotification:
		return "USERS"
	}
	return "UNKNOWN"
}

type Event int

const (
	JobSubmitted Event = iota
	JobPendingToRunning
	JobRunningToFinished
	JobPendingToFinished
	JobPausedEvent
	JobResumedEvent
	JobChangePriority
	JobRemoveFinished
	JobRestartedFromError

	TaskPendingToRunning
	TaskRunningToFinished
	TaskWaitingForRestart
	TaskProgress
	TaskInErrorEvent

	SchedulerStarted
	SchedulerStopped
	SchedulerPaused
	SchedulerFrozen
	SchedulerResumed
	SchedulerShuttingDown
	SchedulerShutdown
	SchedulerKilled
	RMDown
	RMUp
	PolicyChanged

	UserConnected
	UserDisconnected
)

var eventNames = map[Event]string{
	JobSubmitted:          "JOB_SUBMITTED",
	JobPendingToRunning:   "JOB_PENDING_TO_RUNNING",
	JobRunningToFinished:  "JOB_RUNNING_TO_FINISHED",
	JobPendingToFinished:  "JOB_PENDING_TO_FINISHED",
	JobPausedEvent:        "JOB_PAUSED",
	JobResumedEvent:       "JOB_RESUMED",
	JobChangePriority:     "JOB_CHANGE_PRIORITY",
	JobRemoveFinished:     "JOB_REMOVE_FINISHED",
	JobRestartedFromError: "JOB_RESTARTED_FROM_ERROR",
	TaskPendingToRunning:  "TASK_PENDING_TO_RUNNING",
	TaskRunningToFinished: "TASK_RUNNING_TO_FINISHED",
	TaskWaitingForRestart: "TASK_WAITING_FOR_RESTART",
	TaskProgress:          "TASK_PROGRESS",
	TaskInErrorEvent:      "TASK_IN_ERROR",
	SchedulerStarted:      "STARTED",
	SchedulerStopped:      "STOPPED",
	SchedulerPaused:       "PAUSED",
	SchedulerFrozen:       "FROZEN",
	SchedulerResumed:      "RESUMED",
	SchedulerShuttingDown: "SHUTTING_DOWN",
	SchedulerShutdown:     "SHUTDOWN",
	SchedulerKilled:       "KILLED",
	RMDown:                "RM_DOWN",
	RMUp:                  "RM_UP",
	PolicyChanged:         "POLICY_CHANGED",
	UserConnected:         "USER_CONNECTED",
	UserDisconnected:      "USER_DISCONNECTED",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return fmt.Sprintf("EVENT(%d)", int(e))
}

// UserIdentification describes a connected listener.
type UserIdentification struct {
	SubscriptionId string
	User           string
}

// Notification is a single state change delivered to listeners.
// Kind tells which of Job, Task and User is set; scheduler notifications carry only Event.
type Notification struct {
	Kind  NotificationKind
	Event Event
	Owner string
	Job   *JobInfo
	Task  *Task
	User  *UserIdentification
}

func NewSchedulerNotification(e Event) Notification {
	return Notification{Kind: SchedulerNotification, Event: e}
}

func NewJobNotification(e Event, job *JobInfo) Notification {
	return Notification{Kind: JobNotification, Event: e, Owner: job.Owner, Job: job}
}

func NewTaskNotification(e Event, owner string, task *Task) Notification {
	return Notification{Kind: TaskNotification, Event: e, Owner: owner, Task: task}
}

func NewUsersNotification(e Event, user *UserIdentification) Notification {
	return Notification{Kind: UsersNotification, Event: e, Owner: user.User, User: user}
}

func (n Notification) String() string {
	switch n.Kind {
	case JobNotification:
		return fmt.Sprintf("%s job:%s status:%s", n.Event, n.Job.Id, n.Job.Status)
	case TaskNotification:
		return fmt.Sprintf("%s task:%s status:%s", n.Event, n.Task.Id, n.Task.Status)
	case UsersNotification:
		return fmt.Sprintf("%s user:%s", n.Event, n.User.User)
	}
	return n.Event.String()
}

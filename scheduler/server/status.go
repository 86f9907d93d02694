package server

import "github.com/twitter/herd/scheduler/domain"

// Status is the lifecycle state of the scheduling service.
type Status int

const (
	StatusStopped Status = iota
	StatusStarted
	StatusPaused
	StatusFrozen
	StatusUnlinked
	StatusShuttingDown
	StatusShutdown
	StatusKilled
)

var statusNames = [...]string{"STOPPED", "STARTED", "PAUSED", "FROZEN", "UNLINKED", "SHUTTING_DOWN", "SHUTDOWN", "KILLED"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// event is the scheduler notification emitted on entering s.
func (s Status) event() domain.Event {
	switch s {
	case StatusStarted:
		return domain.SchedulerStarted
	case StatusStopped:
		return domain.SchedulerStopped
	case StatusPaused:
		return domain.SchedulerPaused
	case StatusFrozen:
		return domain.SchedulerFrozen
	case StatusUnlinked:
		return domain.RMDown
	case StatusShuttingDown:
		return domain.SchedulerShuttingDown
	case StatusShutdown:
		return domain.SchedulerShutdown
	case StatusKilled:
		return domain.SchedulerKilled
	}
	return domain.SchedulerStopped
}

func (s Status) isSubmittable() bool {
	return s == StatusStarted || s == StatusPaused || s == StatusFrozen
}

func (s Status) isStartable() bool {
	return s == StatusStopped
}

func (s Status) isStoppable() bool {
	return s == StatusStarted || s == StatusPaused || s == StatusFrozen
}

func (s Status) isPausable() bool {
	return s == StatusStarted || s == StatusFrozen
}

func (s Status) isFreezable() bool {
	return s == StatusStarted || s == StatusPaused
}

func (s Status) isResumable() bool {
	return s == StatusPaused || s == StatusFrozen
}

func (s Status) isShuttable() bool {
	return s != StatusShuttingDown && s != StatusShutdown && s != StatusKilled
}

func (s Status) isKillable() bool {
	return s != StatusShutdown && s != StatusKilled
}

// isUnusable statuses reject every job operation.
func (s Status) isUnusable() bool {
	return s == StatusUnlinked || s == StatusShutdown || s == StatusKilled
}

// isSchedulable statuses keep the scheduling thread making passes.
func (s Status) isSchedulable() bool {
	return s == StatusStarted || s == StatusPaused || s == StatusStopped
}

// startsPending reports whether pending jobs may get their first task.
func (s Status) startsPending() bool {
	return s == StatusStarted
}

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/herd/scheduler/domain"
)

func TestStatusGuards(t *testing.T) {
	tests := []struct {
		status                       Status
		submit, schedule, pending    bool
		start, pause, freeze, resume bool
		unusable                     bool
	}{
		{StatusStopped, false, true, false, true, false, false, false, false},
		{StatusStarted, true, true, true, false, true, true, false, false},
		{StatusPaused, true, true, false, false, false, true, true, false},
		{StatusFrozen, true, false, false, false, true, false, true, false},
		{StatusUnlinked, false, false, false, false, false, false, false, true},
		{StatusShuttingDown, false, false, false, false, false, false, false, false},
		{StatusShutdown, false, false, false, false, false, false, false, true},
		{StatusKilled, false, false, false, false, false, false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.submit, tt.status.isSubmittable(), "submittable")
			assert.Equal(t, tt.schedule, tt.status.isSchedulable(), "schedulable")
			assert.Equal(t, tt.pending, tt.status.startsPending(), "startsPending")
			assert.Equal(t, tt.start, tt.status.isStartable(), "startable")
			assert.Equal(t, tt.pause, tt.status.isPausable(), "pausable")
			assert.Equal(t, tt.freeze, tt.status.isFreezable(), "freezable")
			assert.Equal(t, tt.resume, tt.status.isResumable(), "resumable")
			assert.Equal(t, tt.unusable, tt.status.isUnusable(), "unusable")
		})
	}
}

func TestStatusEvents(t *testing.T) {
	assert.Equal(t, domain.RMDown, StatusUnlinked.event())
	assert.Equal(t, domain.SchedulerShutdown, StatusShutdown.event())
	assert.Equal(t, "UNKNOWN", Status(42).String())
}

func TestAdminAuthorizer(t *testing.T) {
	a := NewAdminAuthorizer("root")
	assert.True(t, a.IsAdmin("root"))
	assert.False(t, a.IsAdmin("alice"))

	assert.NoError(t, a.Authorize("root", OpManageScheduler, ""))
	assert.NoError(t, a.Authorize("root", OpKillJob, "alice"))
	assert.NoError(t, a.Authorize("alice", OpKillJob, "alice"))
	assert.NoError(t, a.Authorize("alice", OpSubmitJob, ""))

	err := a.Authorize("alice", OpKillJob, "bob")
	assert.True(t, domain.IsPermission(err))
	assert.Contains(t, err.Error(), "job belongs to bob")

	err = a.Authorize("alice", OpSetAdminPriority, "")
	assert.True(t, domain.IsPermission(err))
	assert.Contains(t, err.Error(), "administrator only")

	assert.NoError(t, AllowAll().Authorize("anyone", OpManageScheduler, "root"))
}

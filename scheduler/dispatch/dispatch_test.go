package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
)

// recorder collects delivered notifications.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
	block  chan struct{}
}

func (r *recorder) Notify(ctx context.Context, n domain.Notification) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n.Event)
	return nil
}

func (r *recorder) got() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func jobEvent(e domain.Event, owner string) domain.Notification {
	return domain.NewJobNotification(e, &domain.JobInfo{Id: 1, Owner: owner})
}

func TestDeliveryInOrder(t *testing.T) {
	d := NewDispatcher(time.Second, 0, nil)
	defer d.Stop()
	r := &recorder{}
	_, err := d.AddListener("alice", r, Filter{})
	require.NoError(t, err)

	d.Dispatch(jobEvent(domain.JobSubmitted, "bob"))
	d.Dispatch(jobEvent(domain.JobPendingToRunning, "bob"))
	d.Dispatch(domain.NewSchedulerNotification(domain.SchedulerPaused))
	waitFor(t, func() bool { return len(r.got()) == 3 })
	assert.Equal(t, []domain.Event{domain.JobSubmitted, domain.JobPendingToRunning, domain.SchedulerPaused}, r.got())
}

func TestFilters(t *testing.T) {
	d := NewDispatcher(time.Second, 0, nil)
	defer d.Stop()
	own := &recorder{}
	some := &recorder{}
	_, err := d.AddListener("alice", own, Filter{OwnOnly: true})
	require.NoError(t, err)
	_, err = d.AddListener("carol", some, Filter{Events: []domain.Event{domain.JobRemoveFinished}})
	require.NoError(t, err)

	d.Dispatch(jobEvent(domain.JobSubmitted, "bob"))
	d.Dispatch(jobEvent(domain.JobSubmitted, "alice"))
	d.Dispatch(jobEvent(domain.JobRemoveFinished, "bob"))
	d.Dispatch(domain.NewSchedulerNotification(domain.SchedulerStopped))

	// carol's subscription reached alice as a users notification
	waitFor(t, func() bool { return len(own.got()) == 3 })
	assert.Equal(t, []domain.Event{domain.UserConnected, domain.JobSubmitted, domain.SchedulerStopped}, own.got())
	waitFor(t, func() bool { return len(some.got()) == 1 })
	assert.Equal(t, []domain.Event{domain.JobRemoveFinished}, some.got())
}

func TestFailingListenerIsDropped(t *testing.T) {
	reg := stats.NewFinagleStatsRegistry()
	d := NewDispatcher(time.Second, 0, stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg }))
	defer d.Stop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	bad := NewMockListener(ctrl)
	bad.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(errors.New("gone"))

	good := &recorder{}
	_, err := d.AddListener("good", good, Filter{})
	require.NoError(t, err)
	_, err = d.AddListener("bad", bad, Filter{Events: []domain.Event{domain.JobSubmitted}})
	require.NoError(t, err)

	d.Dispatch(jobEvent(domain.JobSubmitted, "x"))
	waitFor(t, func() bool { return len(d.Listeners()) == 1 })
	waitFor(t, func() bool { return len(good.got()) == 3 })
	assert.Equal(t, []domain.Event{domain.UserConnected, domain.JobSubmitted, domain.UserDisconnected}, good.got())

	stats.VerifyStats("dispatch", reg, t, map[string]stats.Rule{
		stats.DispatchDirtyListenersCounter: {Checker: stats.Int64EqTest, Value: 1},
		stats.DispatchListenersGauge:        {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestSlowListenerTimesOut(t *testing.T) {
	d := NewDispatcher(20*time.Millisecond, 0, nil)
	slow := &recorder{block: make(chan struct{})}
	defer close(slow.block)
	defer d.Stop()
	_, err := d.AddListener("slow", slow, Filter{})
	require.NoError(t, err)

	d.Dispatch(jobEvent(domain.JobSubmitted, "x"))
	waitFor(t, func() bool { return len(d.Listeners()) == 0 })
}

func TestFullQueueDropsListener(t *testing.T) {
	d := NewDispatcher(time.Minute, 1, nil)
	stuck := &recorder{block: make(chan struct{})}
	defer close(stuck.block)
	defer d.Stop()
	_, err := d.AddListener("stuck", stuck, Filter{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		d.Dispatch(jobEvent(domain.JobSubmitted, "x"))
	}
	assert.Empty(t, d.Listeners())
}

func TestRemoveListener(t *testing.T) {
	d := NewDispatcher(time.Second, 0, nil)
	defer d.Stop()
	a, b := &recorder{}, &recorder{}
	idA, err := d.AddListener("a", a, Filter{})
	require.NoError(t, err)
	_, err = d.AddListener("b", b, Filter{})
	require.NoError(t, err)

	assert.True(t, d.RemoveListener(idA))
	assert.False(t, d.RemoveListener(idA))
	waitFor(t, func() bool { return len(b.got()) == 1 })
	assert.Equal(t, []domain.Event{domain.UserDisconnected}, b.got())
	require.Len(t, d.Listeners(), 1)
	assert.Equal(t, "b", d.Listeners()[0].User)
}

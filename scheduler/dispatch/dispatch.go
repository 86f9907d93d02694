// Package dispatch delivers scheduler notifications to subscribed listeners.
//
// Each subscriber has its own queue and delivery goroutine, so notifications reach
// a listener in the order they were dispatched and a slow listener never delays
// the others. Delivery is best effort: a listener that fails, times out or lets its
// queue fill up is dropped and a USER_DISCONNECTED notification is sent to the rest.
package dispatch

//go:generate mockgen -source=dispatch.go -package=dispatch -destination=dispatch_mock.go

import (
	"context"
	"sort"
	"sync"
	"time"

	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
)

const (
	DefaultTimeout  = 5 * time.Second
	DefaultQueueLen = 1000
)

type Listener interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Filter selects the notifications a listener wants. The zero Filter accepts everything.
type Filter struct {
	// Events to deliver, all when empty.
	Events []domain.Event

	// OwnOnly restricts job and task notifications to those of the subscribing user.
	OwnOnly bool
}

func (f Filter) accepts(user string, n domain.Notification) bool {
	if len(f.Events) > 0 {
		found := false
		for _, e := range f.Events {
			if e == n.Event {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.OwnOnly && (n.Kind == domain.JobNotification || n.Kind == domain.TaskNotification) {
		return n.Owner == user
	}
	return true
}

type subscriber struct {
	ident    domain.UserIdentification
	listener Listener
	filter   Filter
	queue    chan domain.Notification
	stop     chan struct{}
}

type Dispatcher struct {
	mu       sync.Mutex
	subs     map[string]*subscriber
	timeout  time.Duration
	queueLen int
	stopped  bool
	wg       sync.WaitGroup
	stat     stats.StatsReceiver
}

func NewDispatcher(timeout time.Duration, queueLen int, stat stats.StatsReceiver) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	return &Dispatcher{
		subs:     map[string]*subscriber{},
		timeout:  timeout,
		queueLen: queueLen,
		stat:     stat,
	}
}

// AddListener subscribes l for user and returns the subscription id.
// Other listeners are told about the new user.
func (d *Dispatcher) AddListener(user string, l Listener, f Filter) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "generating subscription id")
	}
	s := &subscriber{
		ident:    domain.UserIdentification{SubscriptionId: id.String(), User: user},
		listener: l,
		filter:   f,
		queue:    make(chan domain.Notification, d.queueLen),
		stop:     make(chan struct{}),
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return "", errors.New("dispatcher stopped")
	}
	d.subs[s.ident.SubscriptionId] = s
	d.wg.Add(1)
	d.stat.Gauge(stats.DispatchListenersGauge).Update(int64(len(d.subs)))
	d.mu.Unlock()

	go d.deliver(s)
	log.WithFields(log.Fields{"user": user, "subscriptionId": s.ident.SubscriptionId}).Info("Listener added")
	ident := s.ident
	d.dispatchExcept(domain.NewUsersNotification(domain.UserConnected, &ident), s.ident.SubscriptionId)
	return s.ident.SubscriptionId, nil
}

// RemoveListener unsubscribes a listener. It reports false for an unknown id.
func (d *Dispatcher) RemoveListener(id string) bool {
	s, ok := d.remove(id)
	if !ok {
		return false
	}
	d.Dispatch(domain.NewUsersNotification(domain.UserDisconnected, &s.ident))
	return true
}

func (d *Dispatcher) remove(id string) (*subscriber, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.subs[id]
	if !ok {
		return nil, false
	}
	delete(d.subs, id)
	close(s.stop)
	d.stat.Gauge(stats.DispatchListenersGauge).Update(int64(len(d.subs)))
	return s, true
}

// Dispatch queues n for every listener whose filter accepts it. It never blocks.
func (d *Dispatcher) Dispatch(n domain.Notification) {
	d.dispatchExcept(n, "")
}

func (d *Dispatcher) dispatchExcept(n domain.Notification, except string) {
	var full []string
	d.mu.Lock()
	for id, s := range d.subs {
		if id == except || !s.filter.accepts(s.ident.User, n) {
			continue
		}
		select {
		case s.queue <- n:
		default:
			full = append(full, id)
		}
	}
	d.mu.Unlock()
	for _, id := range full {
		d.dropDirty(id, errors.New("notification queue full"))
	}
}

func (d *Dispatcher) deliver(s *subscriber) {
	defer d.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		case n := <-s.queue:
			if err := d.notify(s, n); err != nil {
				d.dropDirty(s.ident.SubscriptionId, err)
				return
			}
			d.stat.Counter(stats.DispatchDeliveredCounter).Inc(1)
		}
	}
}

// notify calls the listener, giving up after the timeout or on removal even if it ignores its context.
func (d *Dispatcher) notify(s *subscriber, n domain.Notification) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- errors.Errorf("listener panic: %v", r)
			}
		}()
		done <- s.listener.Notify(ctx, n)
	}()
	select {
	case err = <-done:
		return err
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "notifying %s", s.ident.User)
	case <-s.stop:
		return errors.New("listener removed")
	}
}

func (d *Dispatcher) dropDirty(id string, cause error) {
	s, ok := d.remove(id)
	if !ok {
		return
	}
	d.stat.Counter(stats.DispatchDirtyListenersCounter).Inc(1)
	log.WithError(cause).WithFields(log.Fields{"user": s.ident.User, "subscriptionId": id}).Warn("Dropping listener")
	d.Dispatch(domain.NewUsersNotification(domain.UserDisconnected, &s.ident))
}

// Listeners returns the connected users by subscription id.
func (d *Dispatcher) Listeners() []domain.UserIdentification {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.UserIdentification, 0, len(d.subs))
	for _, s := range d.subs {
		out = append(out, s.ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriptionId < out[j].SubscriptionId })
	return out
}

// Stop removes every listener and waits for their delivery goroutines to exit.
// Notifications still queued are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	for id, s := range d.subs {
		delete(d.subs, id)
		close(s.stop)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

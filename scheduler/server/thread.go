package server

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/twitter/herd/common/stats"
)

// schedulingThread repeatedly runs the scheduling method. It sleeps between passes that
// start nothing and loops right away, within its rate limit, after one that did.
type schedulingThread struct {
	s       *SchedulingService
	method  *schedulingMethod
	limiter *rate.Limiter
	wake    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newSchedulingThread(s *SchedulingService, method *schedulingMethod) *schedulingThread {
	ctx, cancel := context.WithCancel(context.Background())
	return &schedulingThread{
		s:       s,
		method:  method,
		limiter: rate.NewLimiter(rate.Limit(s.config.MaxPassesPerSecond), 1),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

func (t *schedulingThread) start() {
	go t.loop()
}

// stop ends the loop and waits for the current pass to finish.
func (t *schedulingThread) stop() {
	t.cancel()
	<-t.done
}

// wakeUp cuts the current sleep short. It never blocks.
func (t *schedulingThread) wakeUp() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *schedulingThread) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-t.wake:
	case <-timer.C:
	case <-t.ctx.Done():
	}
}

func (t *schedulingThread) loop() {
	defer close(t.done)
	timeout := t.s.config.SchedulingTimeout
	for t.ctx.Err() == nil {
		status := t.s.Status()
		if !status.isSchedulable() {
			t.sleep(timeout)
			continue
		}
		if err := t.limiter.Wait(t.ctx); err != nil {
			return
		}

		latency := t.s.stat.Latency(stats.SchedPassLatency_ms).Time()
		started, err := t.method.schedule(t.ctx, status.startsPending())
		latency.Stop()
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			t.s.handlePassError(t.ctx, err)
			t.sleep(timeout)
			continue
		}
		if started == 0 {
			t.sleep(timeout)
		} else {
			log.WithField("started", started).Debug("Scheduling pass")
		}
	}
}

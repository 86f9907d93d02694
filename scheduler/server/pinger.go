package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/livejobs"
)

// pinger probes every running task at a fixed period. A task whose nodes keep failing
// probes is restarted elsewhere. A probe that outlasts its period is left running and
// its task is skipped until it returns, so one stuck node does not delay the others.
type pinger struct {
	s        *SchedulingService
	interval time.Duration
	stat     stats.StatsReceiver

	mu       sync.Mutex
	inFlight map[domain.TaskId]bool

	cancel context.CancelFunc
	done   chan struct{}
}

func newPinger(s *SchedulingService) *pinger {
	return &pinger{s: s, interval: s.config.NodePingInterval, stat: s.stat, inFlight: map[domain.TaskId]bool{}}
}

func (p *pinger) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)
}

func (p *pinger) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *pinger) loop(ctx context.Context) {
	defer close(p.done)
	var g errgroup.Group
	g.SetLimit(p.s.config.PingWorkers)
	defer g.Wait()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pingAll(ctx, &g)
		}
	}
}

// pingAll starts a probe for every running task not already being probed, as far as
// free workers allow. It does not wait for the probes.
func (p *pinger) pingAll(ctx context.Context, g *errgroup.Group) {
	for _, r := range p.s.jobs.RunningTasks() {
		r := r
		if !p.claim(r.Task) {
			p.stat.Counter(stats.PingerSkippedCounter).Inc(1)
			continue
		}
		started := g.TryGo(func() error {
			defer p.release(r.Task)
			p.ping(ctx, r)
			return nil
		})
		if !started {
			p.release(r.Task)
			p.stat.Counter(stats.PingerSkippedCounter).Inc(1)
		}
	}
}

func (p *pinger) claim(id domain.TaskId) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[id] {
		return false
	}
	p.inFlight[id] = true
	return true
}

func (p *pinger) release(id domain.TaskId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}

func (p *pinger) ping(ctx context.Context, r livejobs.RunningTaskData) {
	logger := log.WithFields(log.Fields{"taskId": r.Task, "nodes": r.Nodes.Ids()})
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithField("panic", fmt.Sprint(rec)).Error("Recovered from panic while probing task")
		}
	}()
	if r.Launcher == nil {
		return
	}
	p.stat.Counter(stats.PingerProbesCounter).Inc(1)

	ctx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()
	progress, err := r.Launcher.Progress(ctx)
	if err == nil {
		p.s.drain(p.s.jobs.UpdateTaskProgress(r.Task, progress))
		return
	}
	if !launcher.IsNodeDown(err) {
		logger.WithError(err).Info("Task probe failed")
		return
	}
	attempts, ok := p.s.jobs.RecordPingFailure(r.Task)
	if !ok || attempts != p.s.config.NodePingAttempts {
		logger.WithField("attempts", attempts).Debug("Task node did not answer")
		return
	}
	p.stat.Counter(stats.PingerNodeDownCounter).Inc(1)
	logger.WithField("attempts", attempts).Warn("Task node is down, restarting task")
	id, attempt := r.Task, r.Attempt
	p.s.internalPool.Submit(func() error {
		p.s.RestartTaskOnNodeFailure(id, attempt)
		return nil
	})
}

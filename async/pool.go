package async

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrPoolStopped = errors.New("pool stopped")

// Pool runs submitted functions on a fixed set of goroutines.
// Work is taken in submission order; Submit blocks while the queue is full.
type Pool struct {
	name    string
	work    chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func NewPool(name string, workers, queueLen int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueLen < 0 {
		queueLen = 0
	}
	p := &Pool{name: name, work: make(chan func(), queueLen)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.loop()
	}
	return p
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for f := range p.work {
		f()
	}
}

// Submit queues f and returns an AsyncError completed with its result.
// A panic in f completes the AsyncError with an error instead of killing the worker.
func (p *Pool) Submit(f func() error) *AsyncError {
	res := NewAsyncError()
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		res.SetValue(errors.Wrap(ErrPoolStopped, p.name))
		return res
	}
	p.work <- func() {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(log.Fields{"pool": p.name, "panic": r}).Error("Recovered from panic in pool worker")
				res.SetValue(fmt.Errorf("%s: panic: %v", p.name, r))
			}
		}()
		res.SetValue(f())
	}
	return res
}

// Stop refuses further work, lets queued work finish and waits for the workers to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.work)
	p.mu.Unlock()
	p.wg.Wait()
}

// Package joblog keeps a bounded in-memory log per job. Scheduler decisions about a job
// and the output of its tasks go there, so a client can read what happened to its job.
package joblog

import (
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/scheduler/domain"
)

const DefaultMaxLines = 1000

// Buffer retains the last max lines written to it. Writes after Close are dropped.
type Buffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial string
	closed  bool
}

func NewBuffer(max int) *Buffer {
	if max < 1 {
		max = DefaultMaxLines
	}
	return &Buffer{max: max}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return len(p), nil
	}
	parts := strings.Split(b.partial+string(p), "\n")
	b.partial = parts[len(parts)-1]
	b.lines = append(b.lines, parts[:len(parts)-1]...)
	if over := len(b.lines) - b.max; over > 0 {
		b.lines = append(b.lines[:0:0], b.lines[over:]...)
	}
	return len(p), nil
}

// Lines returns the retained complete lines, oldest first.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.lines = nil
	b.partial = ""
	return nil
}

// JobLog is a job's logger together with the buffer it writes to.
type JobLog struct {
	buf    *Buffer
	logger *log.Logger
	entry  *log.Entry
}

func (j *JobLog) Logger() *log.Entry { return j.entry }

// Writer is where task output for the job is appended.
func (j *JobLog) Writer() io.Writer { return j.buf }

func (j *JobLog) Lines() []string { return j.buf.Lines() }

// Logs owns the per-job logs of the scheduler.
type Logs struct {
	mu       sync.Mutex
	maxLines int
	level    log.Level
	jobs     map[domain.JobId]*JobLog
}

func NewLogs(maxLines int, level log.Level) *Logs {
	return &Logs{maxLines: maxLines, level: level, jobs: map[domain.JobId]*JobLog{}}
}

// Get returns the log of a job, creating it on first use.
func (l *Logs) Get(id domain.JobId) *JobLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	if j, ok := l.jobs[id]; ok {
		return j
	}
	buf := NewBuffer(l.maxLines)
	logger := log.New()
	logger.Out = buf
	logger.Level = l.level
	logger.Formatter = &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	j := &JobLog{buf: buf, logger: logger, entry: logger.WithFields(log.Fields{"jobId": id})}
	l.jobs[id] = j
	return j
}

func (l *Logs) Lookup(id domain.JobId) (*JobLog, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	j, ok := l.jobs[id]
	return j, ok
}

// Release closes and forgets a job's log.
func (l *Logs) Release(id domain.JobId) {
	l.mu.Lock()
	j, ok := l.jobs[id]
	delete(l.jobs, id)
	l.mu.Unlock()
	if ok {
		j.buf.Close()
	}
}

func (l *Logs) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.jobs)
}

package main

import (
	"encoding/json"
	"io/ioutil"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/twitter/herd/scheduler/domain"
)

// jobFile is the JSON job description accepted by "herd run".
type jobFile struct {
	Name         string
	Priority     string // default NORMAL
	OnTaskError  string // FAIL_JOB, CONTINUE_JOB, CANCEL_JOB, SUSPEND_TASK
	RestartDelay string
	Tasks        []taskFile
}

type taskFile struct {
	Name        string
	Command     string
	Args        []string
	Parents     []string
	NumNodes    int
	MaxRetries  int
	RestartMode string // NONE, SAME_NODE, ELSEWHERE
	Selection   domain.SelectionPredicates
	Precious    bool
}

func readJobFile(path string) (*domain.Job, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading job file %s", path)
	}
	return parseJob(data)
}

func parseJob(data []byte) (*domain.Job, error) {
	f := jobFile{}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parsing job")
	}
	job := &domain.Job{JobInfo: domain.JobInfo{Name: f.Name, Priority: domain.PriorityNormal}}
	if f.Priority != "" {
		p, err := domain.ParsePriority(f.Priority)
		if err != nil {
			return nil, err
		}
		job.Priority = p
	}
	if f.OnTaskError != "" {
		o, ok := onTaskErrors[strings.ToUpper(f.OnTaskError)]
		if !ok {
			return nil, errors.Errorf("unknown OnTaskError %q", f.OnTaskError)
		}
		job.OnTaskError = o
	}
	if f.RestartDelay != "" {
		d, err := time.ParseDuration(f.RestartDelay)
		if err != nil {
			return nil, errors.Wrap(err, "parsing RestartDelay")
		}
		job.RestartDelay = d
	}
	for _, tf := range f.Tasks {
		t := &domain.Task{
			Id:         domain.TaskId{Name: tf.Name},
			NumNodes:   tf.NumNodes,
			MaxRetries: tf.MaxRetries,
			Parents:    tf.Parents,
			Selection:  tf.Selection,
			Precious:   tf.Precious,
			Executable: domain.Executable{Command: tf.Command, Args: tf.Args},
		}
		if tf.RestartMode != "" {
			m, ok := restartModes[strings.ToUpper(tf.RestartMode)]
			if !ok {
				return nil, errors.Errorf("task %s: unknown RestartMode %q", tf.Name, tf.RestartMode)
			}
			t.RestartMode = m
		}
		job.Tasks = append(job.Tasks, t)
	}
	return job, nil
}

var onTaskErrors = map[string]domain.OnTaskError{}
var restartModes = map[string]domain.RestartMode{}

func init() {
	for _, o := range []domain.OnTaskError{domain.FailJob, domain.ContinueJob, domain.CancelJob, domain.SuspendTask} {
		onTaskErrors[o.String()] = o
	}
	for _, m := range []domain.RestartMode{domain.RestartNone, domain.RestartSameNode, domain.RestartElsewhere} {
		restartModes[m.String()] = m
	}
}

// Package memory is a Store kept in process memory, used by tests and single-node setups.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/store"
)

type storedJob struct {
	job     *domain.Job
	results map[string]*domain.TaskResult
}

type Store struct {
	mu     sync.Mutex
	lastId domain.JobId
	jobs   map[domain.JobId]*storedJob
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{jobs: map[domain.JobId]*storedJob{}}
}

func (s *Store) NextJobId(ctx context.Context) (domain.JobId, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastId++
	return s.lastId, nil
}

func (s *Store) AddJob(ctx context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Id]; ok {
		return errors.Errorf("job %s already stored", job.Id)
	}
	s.jobs[job.Id] = &storedJob{job: job.Copy(), results: map[string]*domain.TaskResult{}}
	if job.Id > s.lastId {
		s.lastId = job.Id
	}
	return nil
}

func (s *Store) get(id domain.JobId) (*storedJob, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "job %s", id)
	}
	return j, nil
}

func (s *Store) UpdateJob(ctx context.Context, info *domain.JobInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(info.Id)
	if err != nil {
		return err
	}
	j.job.JobInfo = *info
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(task.Id.Job)
	if err != nil {
		return err
	}
	for i, t := range j.job.Tasks {
		if t.Id == task.Id {
			j.job.Tasks[i] = task.Copy()
			return nil
		}
	}
	return errors.Wrapf(store.ErrNotFound, "task %s", task.Id)
}

func (s *Store) SaveTaskResult(ctx context.Context, res *domain.TaskResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(res.Task.Job)
	if err != nil {
		return err
	}
	r := *res
	j.results[res.Task.Name] = &r
	return nil
}

func (s *Store) LoadJobWithoutTasks(ctx context.Context, id domain.JobId) (*domain.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return nil, err
	}
	info := j.job.JobInfo
	return &info, nil
}

func (s *Store) LoadJob(ctx context.Context, id domain.JobId) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return j.job.Copy(), nil
}

func (s *Store) LoadTask(ctx context.Context, id domain.TaskId) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id.Job)
	if err != nil {
		return nil, err
	}
	t := j.job.Task(id.Name)
	if t == nil {
		return nil, errors.Wrapf(store.ErrNotFound, "task %s", id)
	}
	return t.Copy(), nil
}

func (s *Store) LoadTaskResult(ctx context.Context, id domain.TaskId) (*domain.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.get(id.Job)
	if err != nil {
		return nil, err
	}
	r, ok := j.results[id.Name]
	if !ok {
		return nil, errors.Wrapf(store.ErrNotFound, "result of task %s", id)
	}
	c := *r
	return &c, nil
}

func (s *Store) LoadJobs(ctx context.Context) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j.job.Copy())
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Id < jobs[k].Id })
	return jobs, nil
}

func (s *Store) RemoveJob(ctx context.Context, id domain.JobId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

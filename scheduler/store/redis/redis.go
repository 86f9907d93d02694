// Package redis is a Store backed by a redis server.
//
// Layout under the configured prefix:
//   <prefix>jobId             counter for NextJobId
//   <prefix>jobs              set of stored job ids
//   <prefix>job:<id>          JSON job header (tasks omitted)
//   <prefix>job:<id>:tasks    hash of task name -> JSON task
//   <prefix>job:<id>:order    list of task names in declaration order
//   <prefix>job:<id>:results  hash of task name -> JSON task result
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/store"
)

const DefaultPrefix = "herd:"

type Store struct {
	db     redis.UniversalClient
	prefix string
}

var _ store.Store = (*Store)(nil)

func NewStore(db redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{db: db, prefix: prefix}
}

// Dial connects to addr and checks the server answers.
func Dial(addr, prefix string) (*Store, error) {
	db := redis.NewClient(&redis.Options{Addr: addr})
	if err := db.Ping().Err(); err != nil {
		return nil, errors.Wrapf(err, "connecting to redis at %s", addr)
	}
	return NewStore(db, prefix), nil
}

func (s *Store) jobIdKey() string { return s.prefix + "jobId" }
func (s *Store) jobsKey() string { return s.prefix + "jobs" }
func (s *Store) jobKey(id domain.JobId) string {
	return fmt.Sprintf("%sjob:%d", s.prefix, id)
}
func (s *Store) tasksKey(id domain.JobId) string { return s.jobKey(id) + ":tasks" }
func (s *Store) resultsKey(id domain.JobId) string { return s.jobKey(id) + ":results" }
func (s *Store) orderKey(id domain.JobId) string { return s.jobKey(id) + ":order" }

func (s *Store) NextJobId(ctx context.Context) (domain.JobId, error) {
	id, err := s.db.Incr(s.jobIdKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "allocating job id")
	}
	return domain.JobId(id), nil
}

func (s *Store) AddJob(ctx context.Context, job *domain.Job) error {
	header := *job
	header.Tasks = nil
	headerJson, err := json.Marshal(&header)
	if err != nil {
		return errors.Wrapf(err, "encoding job %s", job.Id)
	}
	tasks := map[string]interface{}{}
	order := make([]interface{}, 0, len(job.Tasks))
	for _, t := range job.Tasks {
		order = append(order, t.Id.Name)
		b, err := json.Marshal(t)
		if err != nil {
			return errors.Wrapf(err, "encoding task %s", t.Id)
		}
		tasks[t.Id.Name] = b
	}

	ok, err := s.db.SetNX(s.jobKey(job.Id), headerJson, 0).Result()
	if err != nil {
		return errors.Wrapf(err, "storing job %s", job.Id)
	}
	if !ok {
		return errors.Errorf("job %s already stored", job.Id)
	}
	_, err = s.db.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.SAdd(s.jobsKey(), int64(job.Id))
		if len(tasks) > 0 {
			pipe.HMSet(s.tasksKey(job.Id), tasks)
			pipe.RPush(s.orderKey(job.Id), order...)
		}
		return nil
	})
	return errors.Wrapf(err, "storing tasks of job %s", job.Id)
}

func (s *Store) loadHeader(id domain.JobId) (*domain.Job, error) {
	b, err := s.db.Get(s.jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(store.ErrNotFound, "job %s", id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "loading job %s", id)
	}
	job := &domain.Job{}
	if err := json.Unmarshal(b, job); err != nil {
		return nil, errors.Wrapf(err, "decoding job %s", id)
	}
	return job, nil
}

func (s *Store) UpdateJob(ctx context.Context, info *domain.JobInfo) error {
	job, err := s.loadHeader(info.Id)
	if err != nil {
		return err
	}
	job.JobInfo = *info
	b, err := json.Marshal(job)
	if err != nil {
		return errors.Wrapf(err, "encoding job %s", info.Id)
	}
	return errors.Wrapf(s.db.Set(s.jobKey(info.Id), b, 0).Err(), "updating job %s", info.Id)
}

func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) error {
	exists, err := s.db.HExists(s.tasksKey(task.Id.Job), task.Id.Name).Result()
	if err != nil {
		return errors.Wrapf(err, "updating task %s", task.Id)
	}
	if !exists {
		return errors.Wrapf(store.ErrNotFound, "task %s", task.Id)
	}
	b, err := json.Marshal(task)
	if err != nil {
		return errors.Wrapf(err, "encoding task %s", task.Id)
	}
	return errors.Wrapf(s.db.HSet(s.tasksKey(task.Id.Job), task.Id.Name, b).Err(), "updating task %s", task.Id)
}

func (s *Store) SaveTaskResult(ctx context.Context, res *domain.TaskResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return errors.Wrapf(err, "encoding result of task %s", res.Task)
	}
	return errors.Wrapf(s.db.HSet(s.resultsKey(res.Task.Job), res.Task.Name, b).Err(), "saving result of task %s", res.Task)
}

func (s *Store) LoadJobWithoutTasks(ctx context.Context, id domain.JobId) (*domain.JobInfo, error) {
	job, err := s.loadHeader(id)
	if err != nil {
		return nil, err
	}
	return &job.JobInfo, nil
}

func (s *Store) LoadJob(ctx context.Context, id domain.JobId) (*domain.Job, error) {
	job, err := s.loadHeader(id)
	if err != nil {
		return nil, err
	}
	raw, err := s.db.HGetAll(s.tasksKey(id)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "loading tasks of job %s", id)
	}
	order, err := s.db.LRange(s.orderKey(id), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "loading task order of job %s", id)
	}
	for _, name := range order {
		v, ok := raw[name]
		if !ok {
			continue
		}
		t := &domain.Task{}
		if err := json.Unmarshal([]byte(v), t); err != nil {
			return nil, errors.Wrapf(err, "decoding task %s of job %s", name, id)
		}
		job.Tasks = append(job.Tasks, t)
	}
	return job, nil
}

func (s *Store) LoadTask(ctx context.Context, id domain.TaskId) (*domain.Task, error) {
	b, err := s.db.HGet(s.tasksKey(id.Job), id.Name).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(store.ErrNotFound, "task %s", id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "loading task %s", id)
	}
	t := &domain.Task{}
	return t, errors.Wrapf(json.Unmarshal(b, t), "decoding task %s", id)
}

func (s *Store) LoadTaskResult(ctx context.Context, id domain.TaskId) (*domain.TaskResult, error) {
	b, err := s.db.HGet(s.resultsKey(id.Job), id.Name).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(store.ErrNotFound, "result of task %s", id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "loading result of task %s", id)
	}
	r := &domain.TaskResult{}
	return r, errors.Wrapf(json.Unmarshal(b, r), "decoding result of task %s", id)
}

func (s *Store) LoadJobs(ctx context.Context) ([]*domain.Job, error) {
	members, err := s.db.SMembers(s.jobsKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "listing jobs")
	}
	ids := make([]domain.JobId, 0, len(members))
	for _, m := range members {
		i, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			log.WithFields(log.Fields{"member": m}).Warn("Skipping malformed job id in store")
			continue
		}
		ids = append(ids, domain.JobId(i))
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })

	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.LoadJob(ctx, id)
		if store.IsNotFound(err) {
			continue
		} else if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *Store) RemoveJob(ctx context.Context, id domain.JobId) error {
	_, err := s.db.TxPipelined(func(pipe redis.Pipeliner) error {
		pipe.Del(s.jobKey(id), s.tasksKey(id), s.resultsKey(id), s.orderKey(id))
		pipe.SRem(s.jobsKey(), int64(id))
		return nil
	})
	return errors.Wrapf(err, "removing job %s", id)
}

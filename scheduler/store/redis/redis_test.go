package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/store"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	withStore(func(s *Store) {
		ctx := context.Background()
		id, err := s.NextJobId(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.JobId(1), id)

		job := &domain.Job{
			JobInfo: domain.JobInfo{Id: id, Name: "build", Owner: "bob", Priority: domain.PriorityHigh},
			Tasks: []*domain.Task{
				{Id: domain.NewTaskId(id, "z"), Executable: domain.Executable{Command: "echo", Args: []string{"hi"}}},
				{Id: domain.NewTaskId(id, "a"), Parents: []string{"z"}, Exclusion: domain.NewNodeExclusion(cluster.NodeId("node1"))},
			},
		}
		require.NoError(t, s.AddJob(ctx, job))
		assert.Error(t, s.AddJob(ctx, job))

		loaded, err := s.LoadJob(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "build", loaded.Name)
		require.Len(t, loaded.Tasks, 2)
		assert.Equal(t, "z", loaded.Tasks[0].Id.Name)
		assert.Equal(t, []string{"z"}, loaded.Tasks[1].Parents)
		assert.True(t, loaded.Tasks[1].Exclusion.Contains("node1"))
		assert.Equal(t, "echo", loaded.Tasks[0].Executable.Command)

		info := job.Info()
		info.Status = domain.JobRunning
		require.NoError(t, s.UpdateJob(ctx, info))
		header, err := s.LoadJobWithoutTasks(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobRunning, header.Status)

		task := job.Tasks[0].Copy()
		task.Status = domain.TaskFinished
		require.NoError(t, s.UpdateTask(ctx, task))
		reloaded, err := s.LoadTask(ctx, task.Id)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskFinished, reloaded.Status)

		require.NoError(t, s.SaveTaskResult(ctx, domain.NewSuccessResult(task.Id, []byte("out"))))
		res, err := s.LoadTaskResult(ctx, task.Id)
		require.NoError(t, err)
		assert.Equal(t, []byte("out"), res.Value)
		assert.Equal(t, domain.ResultSuccess, res.Kind)
	})
}

func TestRedisStoreMissing(t *testing.T) {
	withStore(func(s *Store) {
		ctx := context.Background()
		_, err := s.LoadJob(ctx, 42)
		assert.True(t, store.IsNotFound(err))
		_, err = s.LoadTaskResult(ctx, domain.NewTaskId(42, "a"))
		assert.True(t, store.IsNotFound(err))
		err = s.UpdateTask(ctx, &domain.Task{Id: domain.NewTaskId(42, "a")})
		assert.True(t, store.IsNotFound(err))
		err = s.UpdateJob(ctx, &domain.JobInfo{Id: 42})
		assert.True(t, store.IsNotFound(err))
	})
}

func TestRedisStoreLoadJobsAndRemove(t *testing.T) {
	withStore(func(s *Store) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			id, err := s.NextJobId(ctx)
			require.NoError(t, err)
			require.NoError(t, s.AddJob(ctx, &domain.Job{
				JobInfo: domain.JobInfo{Id: id},
				Tasks:   []*domain.Task{{Id: domain.NewTaskId(id, "t")}},
			}))
		}
		require.NoError(t, s.RemoveJob(ctx, 2))
		require.NoError(t, s.RemoveJob(ctx, 2))

		jobs, err := s.LoadJobs(ctx)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, domain.JobId(1), jobs[0].Id)
		assert.Equal(t, domain.JobId(3), jobs[1].Id)
	})
}

func withStore(action func(s *Store)) {
	db, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer db.Close()

	client := redis.NewClient(&redis.Options{Addr: db.Addr()})
	action(NewStore(client, "test:"))
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/store"
)

func TestMemoryStore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	id, err := s.NextJobId(ctx)
	require.NoError(t, err)
	job := &domain.Job{JobInfo: domain.JobInfo{Id: id, Owner: "bob"}, Tasks: []*domain.Task{{Id: domain.NewTaskId(id, "a")}}}
	require.NoError(t, s.AddJob(ctx, job))
	assert.Error(t, s.AddJob(ctx, job))

	info := job.Info()
	info.Status = domain.JobRunning
	require.NoError(t, s.UpdateJob(ctx, info))

	task := job.Tasks[0].Copy()
	task.Status = domain.TaskFinished
	require.NoError(t, s.UpdateTask(ctx, task))
	require.NoError(t, s.SaveTaskResult(ctx, domain.NewSuccessResult(task.Id, []byte("ok"))))

	loaded, err := s.LoadJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, loaded.Status)
	assert.Equal(t, domain.TaskFinished, loaded.Tasks[0].Status)

	res, err := s.LoadTaskResult(ctx, task.Id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), res.Value)

	next, _ := s.NextJobId(ctx)
	assert.True(t, next > id)

	require.NoError(t, s.RemoveJob(ctx, id))
	require.NoError(t, s.RemoveJob(ctx, id))
	_, err = s.LoadJobWithoutTasks(ctx, id)
	assert.True(t, store.IsNotFound(err))
}

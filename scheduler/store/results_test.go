package store

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
)

func TestResultCache_ReloadsEvicted(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	st := NewMockStore(mockCtrl)

	reg := stats.NewFinagleStatsRegistry()
	c, err := NewResultCache(st, 1, stats.NewCustomStatsReceiver(func() stats.StatsRegistry { return reg }))
	require.NoError(t, err)

	a := domain.NewSuccessResult(domain.NewTaskId(1, "a"), []byte("A"))
	b := domain.NewSuccessResult(domain.NewTaskId(1, "b"), []byte("B"))
	c.Put(a, false)
	c.Put(b, false) // evicts a

	st.EXPECT().LoadTaskResult(gomock.Any(), a.Task).Return(a, nil).Times(1)
	got, err := c.Get(context.Background(), a.Task)
	require.NoError(t, err)
	assert.Equal(t, []byte("A"), got.Value)

	// now cached again
	got, err = c.Get(context.Background(), a.Task)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	stats.VerifyStats("cache", reg, t, map[string]stats.Rule{
		stats.StoreResultReloadsCounter: {Checker: stats.Int64EqTest, Value: 1},
	})
}

func TestResultCache_PreciousSurvivesRelease(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	st := NewMockStore(mockCtrl)

	c, err := NewResultCache(st, 10, nil)
	require.NoError(t, err)
	p := domain.NewSuccessResult(domain.NewTaskId(2, "p"), nil)
	o := domain.NewSuccessResult(domain.NewTaskId(2, "o"), nil)
	c.Put(p, true)
	c.Put(o, false)

	c.ReleaseJob(2)
	assert.True(t, c.Contains(p.Task))
	assert.False(t, c.Contains(o.Task))

	c.ForgetJob(2)
	assert.False(t, c.Contains(p.Task))
}

func TestResultCache_MissingResult(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()
	st := NewMockStore(mockCtrl)
	c, _ := NewResultCache(st, 10, nil)

	id := domain.NewTaskId(3, "x")
	st.EXPECT().LoadTaskResult(gomock.Any(), id).Return(nil, ErrNotFound)
	_, err := c.Get(context.Background(), id)
	assert.True(t, IsNotFound(err))
}

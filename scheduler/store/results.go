package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
)

const DefaultResultCacheSize = 10000

// ResultCache keeps recent task results in memory and reloads evicted ones from the store.
// Results of precious tasks are pinned until their job is forgotten.
type ResultCache struct {
	store  Store
	cache  *lru.Cache
	mu     sync.Mutex
	pinned map[domain.TaskId]*domain.TaskResult
	stat   stats.StatsReceiver
}

func NewResultCache(store Store, size int, stat stats.StatsReceiver) (*ResultCache, error) {
	if size <= 0 {
		size = DefaultResultCacheSize
	}
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "creating result cache")
	}
	return &ResultCache{
		store:  store,
		cache:  cache,
		pinned: map[domain.TaskId]*domain.TaskResult{},
		stat:   stat,
	}, nil
}

func (c *ResultCache) Put(res *domain.TaskResult, precious bool) {
	if precious {
		c.mu.Lock()
		c.pinned[res.Task] = res
		c.mu.Unlock()
		return
	}
	c.cache.Add(res.Task, res)
}

// Get returns the result for a task, loading it from the store when it is no longer in memory.
func (c *ResultCache) Get(ctx context.Context, id domain.TaskId) (*domain.TaskResult, error) {
	c.mu.Lock()
	res, ok := c.pinned[id]
	c.mu.Unlock()
	if ok {
		return res, nil
	}
	if v, ok := c.cache.Get(id); ok {
		return v.(*domain.TaskResult), nil
	}

	res, err := c.store.LoadTaskResult(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reloading result of task %s", id)
	}
	c.stat.Counter(stats.StoreResultReloadsCounter).Inc(1)
	log.WithFields(log.Fields{"taskId": id}).Debug("Reloaded evicted task result")
	c.cache.Add(id, res)
	return res, nil
}

// Contains reports whether a result is held in memory.
func (c *ResultCache) Contains(id domain.TaskId) bool {
	c.mu.Lock()
	_, ok := c.pinned[id]
	c.mu.Unlock()
	return ok || c.cache.Contains(id)
}

// ReleaseJob drops the in-memory results of a finished job except the precious ones.
func (c *ResultCache) ReleaseJob(id domain.JobId) {
	for _, k := range c.cache.Keys() {
		if tid, ok := k.(domain.TaskId); ok && tid.Job == id {
			c.cache.Remove(k)
		}
	}
}

// ForgetJob drops every in-memory result of a removed job.
func (c *ResultCache) ForgetJob(id domain.JobId) {
	c.ReleaseJob(id)
	c.mu.Lock()
	defer c.mu.Unlock()
	for tid := range c.pinned {
		if tid.Job == id {
			delete(c.pinned, tid)
		}
	}
}

// Package policy decides in which order eligible tasks are offered to the scheduling method.
package policy

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/rm"
)

// Policy orders the eligible tasks of a scheduling pass. It only decides an order,
// the method still checks each task against the free nodes.
type Policy interface {
	OrderedTasks(jobs []*domain.JobDescriptor, state rm.State) []*domain.TaskDescriptor
}

const (
	FifoPolicyName      = "fifo"
	FairSharePolicyName = "fairshare"
)

// Factory builds a policy reading its settings from configs.
type Factory func(configs Configs) Policy

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		FifoPolicyName:      func(c Configs) Policy { return NewFifoPolicy(c) },
		FairSharePolicyName: func(c Configs) Policy { return NewFairSharePolicy(c) },
	}
)

// Register makes a policy available to New under name.
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New returns the policy registered under name.
func New(name string, configs Configs) (Policy, error) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	if !ok {
		return nil, errors.Errorf("unknown scheduling policy %q", name)
	}
	if configs == nil {
		configs = StaticConfigs(DefaultConfig())
	}
	return f(configs), nil
}

// Names lists the registered policies.
func Names() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// byPriorityThenId sorts jobs with higher priority first, then oldest first.
func byPriorityThenId(jobs []*domain.JobDescriptor) []*domain.JobDescriptor {
	sorted := append([]*domain.JobDescriptor(nil), jobs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].Id < sorted[j].Id
	})
	return sorted
}

// batcher hands out at most BatchSize tasks per call, skipping those already offered,
// so tasks behind a head that cannot be placed get their turn.
// The offered set is forgotten once every task was offered, when a call would return
// nothing, or when the free node count changed.
type batcher struct {
	mu       sync.Mutex
	configs  Configs
	offered  map[domain.TaskId]bool
	lastFree int
}

func newBatcher(configs Configs) batcher {
	return batcher{configs: configs, offered: map[domain.TaskId]bool{}, lastFree: -1}
}

func (b *batcher) next(ordered []*domain.TaskDescriptor, state rm.State) []*domain.TaskDescriptor {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(ordered) == 0 {
		b.offered = map[domain.TaskId]bool{}
		return nil
	}
	if state.FreeNodes != b.lastFree {
		b.offered = map[domain.TaskId]bool{}
		b.lastFree = state.FreeNodes
	}
	// forget tasks that left the eligible set
	present := make(map[domain.TaskId]bool, len(ordered))
	for _, t := range ordered {
		present[t.Id] = true
	}
	for id := range b.offered {
		if !present[id] {
			delete(b.offered, id)
		}
	}

	size := b.configs.Config().BatchSize
	out := b.take(ordered, size)
	if len(out) == 0 {
		b.offered = map[domain.TaskId]bool{}
		out = b.take(ordered, size)
	}
	if len(b.offered) == len(ordered) {
		b.offered = map[domain.TaskId]bool{}
	}
	return out
}

func (b *batcher) take(ordered []*domain.TaskDescriptor, size int) []*domain.TaskDescriptor {
	var out []*domain.TaskDescriptor
	for _, t := range ordered {
		if size > 0 && len(out) >= size {
			break
		}
		if b.offered[t.Id] {
			continue
		}
		b.offered[t.Id] = true
		out = append(out, t)
	}
	return out
}

// FifoPolicy serves jobs by priority, then submission order, tasks in declaration order.
type FifoPolicy struct {
	batcher
}

func NewFifoPolicy(configs Configs) *FifoPolicy {
	return &FifoPolicy{newBatcher(configs)}
}

func (p *FifoPolicy) OrderedTasks(jobs []*domain.JobDescriptor, state rm.State) []*domain.TaskDescriptor {
	var ordered []*domain.TaskDescriptor
	for _, j := range byPriorityThenId(jobs) {
		ordered = append(ordered, j.Tasks...)
	}
	return p.next(ordered, state)
}

// FairSharePolicy interleaves owners within each priority level, one task per owner
// in turn, so one user's large job does not hold back everybody else's.
type FairSharePolicy struct {
	batcher
}

func NewFairSharePolicy(configs Configs) *FairSharePolicy {
	return &FairSharePolicy{newBatcher(configs)}
}

func (p *FairSharePolicy) OrderedTasks(jobs []*domain.JobDescriptor, state rm.State) []*domain.TaskDescriptor {
	var ordered []*domain.TaskDescriptor
	sorted := byPriorityThenId(jobs)
	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Priority == sorted[start].Priority {
			end++
		}
		ordered = append(ordered, interleave(sorted[start:end])...)
		start = end
	}
	return p.next(ordered, state)
}

func interleave(jobs []*domain.JobDescriptor) []*domain.TaskDescriptor {
	var owners []string
	queues := map[string][]*domain.TaskDescriptor{}
	for _, j := range jobs {
		if _, ok := queues[j.Owner]; !ok {
			owners = append(owners, j.Owner)
		}
		queues[j.Owner] = append(queues[j.Owner], j.Tasks...)
	}
	var out []*domain.TaskDescriptor
	for left := true; left; {
		left = false
		for _, o := range owners {
			if q := queues[o]; len(q) > 0 {
				out = append(out, q[0])
				queues[o] = q[1:]
				left = true
			}
		}
	}
	return out
}

// Package memory is an in-process resource manager over a fixed or updatable
// set of cluster nodes. Selection predicates are matched against node labels.
package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/common/stats"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/rm"
)

// Predicate names understood by this resource manager.
const (
	// Every arg key must be a node label with the same value.
	LabelPredicate = "label"

	// Matches any node.
	AnyPredicate = "any"
)

type nodeState struct {
	busy bool
	down bool
}

// ResourceManager implements rm.Proxy in memory.
type ResourceManager struct {
	mu        sync.Mutex
	members   *cluster.State
	nodes     map[cluster.NodeId]*nodeState
	available bool
	freeCount map[cluster.NodeId]int
	cleanups  []string
	stat      stats.StatsReceiver
}

var _ rm.Proxy = (*ResourceManager)(nil)

func NewResourceManager(nodes []cluster.Node, stat stats.StatsReceiver) *ResourceManager {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	r := &ResourceManager{
		members:   cluster.MakeState(nodes),
		nodes:     map[cluster.NodeId]*nodeState{},
		available: true,
		freeCount: map[cluster.NodeId]int{},
		stat:      stat.Scope("rm"),
	}
	for _, n := range nodes {
		r.nodes[n.Id()] = &nodeState{}
	}
	r.updateGauges()
	return r
}

func (r *ResourceManager) GetState(ctx context.Context) (rm.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.available {
		return rm.State{}, rm.ErrNotConnected
	}
	return rm.State{FreeNodes: r.numFree(), TotalNodes: r.members.Len()}, nil
}

func (r *ResourceManager) numFree() int {
	free := 0
	for _, n := range r.members.Nodes() {
		if s := r.nodes[n.Id()]; !s.busy && !s.down {
			free++
		}
	}
	return free
}

func (r *ResourceManager) GetAtMostNodes(ctx context.Context, count int, selection domain.SelectionPredicates,
	exclusion domain.NodeExclusion) (rm.NodeSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.available {
		return nil, rm.ErrNotConnected
	}
	for _, p := range selection {
		if p.Name != LabelPredicate && p.Name != AnyPredicate {
			r.stat.Counter(stats.RMSelectionErrorCounter).Inc(1)
			return nil, &rm.SelectionError{Predicate: p, Err: errors.Errorf("unknown predicate %q", p.Name)}
		}
	}

	nodes := rm.NodeSet{}
	for _, n := range r.members.Nodes() {
		if len(nodes) >= count {
			break
		}
		s := r.nodes[n.Id()]
		if s.busy || s.down || exclusion.Contains(n.Id()) || !matches(n, selection) {
			continue
		}
		s.busy = true
		nodes = append(nodes, n)
	}
	r.stat.Counter(stats.RMNodesAcquiredCounter).Inc(int64(len(nodes)))
	r.updateGauges()
	log.WithFields(log.Fields{
		"requested": count,
		"acquired":  len(nodes),
		"selection": selection.Hash(),
		"excluded":  exclusion.Key(),
	}).Debug("Nodes acquired")
	return nodes, nil
}

func matches(n cluster.Node, selection domain.SelectionPredicates) bool {
	for _, p := range selection {
		if p.Name != LabelPredicate {
			continue
		}
		for k, v := range p.Args {
			if n.Labels()[k] != v {
				return false
			}
		}
	}
	return true
}

func (r *ResourceManager) FreeNodes(ctx context.Context, nodes rm.NodeSet, cleanup *domain.Script) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range nodes {
		s, ok := r.nodes[n.Id()]
		if !ok {
			continue
		}
		if !s.busy {
			log.WithFields(log.Fields{"node": n.Id()}).Warn("Freeing a node that is not busy")
		}
		s.busy = false
		r.freeCount[n.Id()]++
		if cleanup != nil {
			r.cleanups = append(r.cleanups, cleanup.Name+"@"+string(n.Id()))
		}
	}
	r.stat.Counter(stats.RMNodesFreedCounter).Inc(int64(len(nodes)))
	r.updateGauges()
	return nil
}

func (r *ResourceManager) FreeDownNode(ctx context.Context, id cluster.NodeId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.nodes[id]
	if !ok {
		return errors.Errorf("unknown node %s", id)
	}
	s.busy = false
	s.down = true
	r.freeCount[id]++
	r.stat.Counter(stats.RMNodesDownCounter).Inc(1)
	r.updateGauges()
	log.WithFields(log.Fields{"node": id}).Info("Node marked down")
	return nil
}

func (r *ResourceManager) Ping(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.available {
		return rm.ErrNotConnected
	}
	return nil
}

func (r *ResourceManager) Reconnect(ctx context.Context) error {
	return r.Ping(ctx)
}

// SetAvailable simulates losing or regaining the resource manager.
func (r *ResourceManager) SetAvailable(available bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = available
}

// Revive brings a down node back.
func (r *ResourceManager) Revive(id cluster.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.nodes[id]; ok {
		s.down = false
	}
	r.updateGauges()
}

// Update applies membership changes. Removed nodes that are busy are forgotten
// once they are freed.
func (r *ResourceManager) Update(updates []cluster.NodeUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	added, _ := r.members.Update(updates)
	for _, id := range added {
		if _, ok := r.nodes[id]; !ok {
			r.nodes[id] = &nodeState{}
		}
	}
	r.updateGauges()
}

// FreeCount returns how many times a node was given back.
func (r *ResourceManager) FreeCount(id cluster.NodeId) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.freeCount[id]
}

// Cleanups lists "script@node" for every cleanup run so far.
func (r *ResourceManager) Cleanups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cleanups...)
}

func (r *ResourceManager) IsBusy(id cluster.NodeId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.nodes[id]
	return ok && s.busy
}

func (r *ResourceManager) updateGauges() {
	r.stat.Gauge(stats.RMFreeNodesGauge).Update(int64(r.numFree()))
	r.stat.Gauge(stats.RMTotalNodesGauge).Update(int64(r.members.Len()))
}

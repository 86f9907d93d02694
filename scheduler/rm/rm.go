// Package rm defines what the scheduling engine needs from a resource manager:
// free-node counts, node acquisition under selection predicates, and node release.
package rm

//go:generate mockgen -source=rm.go -package=rm -destination=rm_mock.go

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/domain"
)

// State is the resource manager's view at the time of a call.
type State struct {
	FreeNodes  int
	TotalNodes int
}

type NodeSet []cluster.Node

func (s NodeSet) Ids() []cluster.NodeId {
	return cluster.Ids(s)
}

// Proxy is the resource manager as seen by the scheduler.
type Proxy interface {
	GetState(ctx context.Context) (State, error)

	// GetAtMostNodes may return fewer nodes than asked for, including none.
	// A predicate that cannot be evaluated yields a *SelectionError.
	GetAtMostNodes(ctx context.Context, count int, selection domain.SelectionPredicates, exclusion domain.NodeExclusion) (NodeSet, error)

	// FreeNodes gives nodes back, running cleanup on each first when set.
	FreeNodes(ctx context.Context, nodes NodeSet, cleanup *domain.Script) error

	// FreeDownNode gives back a node that is known to be dead.
	FreeDownNode(ctx context.Context, id cluster.NodeId) error

	// Ping checks that the resource manager is reachable.
	Ping(ctx context.Context) error

	// Reconnect re-establishes the connection after a failed Ping.
	Reconnect(ctx context.Context) error
}

// SelectionError means a selection predicate itself failed, as opposed to no node matching it.
type SelectionError struct {
	Predicate domain.SelectionPredicate
	Err       error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("selection predicate %s failed: %v", e.Predicate, e.Err)
}

func IsSelectionError(err error) bool {
	_, ok := errors.Cause(err).(*SelectionError)
	return ok
}

var ErrNotConnected = errors.New("resource manager is not reachable")

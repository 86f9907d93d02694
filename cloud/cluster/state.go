package cluster

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// State is a current view of cluster membership. It is not thread-safe.
type State struct {
	nodes       map[NodeId]Node
	nopCheckCnt int
}

func MakeState(nodes []Node) *State {
	s := &State{
		nodes: make(map[NodeId]Node),
	}
	s.SetAndDiff(nodes)
	return s
}

// SetAndDiff replaces the membership with newState and returns the updates
// that turn the old view into the new one, adds first.
func (s *State) SetAndDiff(newState []Node) []NodeUpdate {
	added := []Node{}
	oldStateLen := len(s.nodes)
	for _, n := range newState {
		if _, exists := s.nodes[n.Id()]; exists {
			// remove from s.nodes so that s.nodes only contains nodes removed in this diff
			delete(s.nodes, n.Id())
		} else {
			added = append(added, n)
		}
	}
	removed := []Node{}
	for _, n := range s.nodes {
		removed = append(removed, n)
	}
	sort.Sort(NodeSorter(added))
	sort.Sort(NodeSorter(removed))
	outgoing := []NodeUpdate{}
	for _, n := range added {
		outgoing = append(outgoing, NewAdd(n))
	}
	for _, n := range removed {
		outgoing = append(outgoing, NewRemove(n.Id()))
	}

	if len(added) > 0 || len(removed) > 0 {
		log.WithFields(log.Fields{
			"added":       len(added),
			"removed":     len(removed),
			"newSize":     len(newState),
			"oldSize":     oldStateLen,
			"quietChecks": s.nopCheckCnt,
		}).Info("Cluster membership changed")
		s.nopCheckCnt = 0
	} else {
		s.nopCheckCnt++
	}
	s.nodes = make(map[NodeId]Node)
	for _, n := range newState {
		s.nodes[n.Id()] = n
	}
	return outgoing
}

// Update applies updates in order. Returns the ids that were actually added and removed.
func (s *State) Update(updates []NodeUpdate) (added, removed []NodeId) {
	for _, u := range updates {
		switch u.UpdateType {
		case NodeAdded:
			if _, ok := s.nodes[u.Id]; !ok {
				added = append(added, u.Id)
			}
			s.nodes[u.Id] = u.Node
		case NodeRemoved:
			if _, ok := s.nodes[u.Id]; ok {
				removed = append(removed, u.Id)
			}
			delete(s.nodes, u.Id)
		}
	}
	return added, removed
}

func (s *State) Get(id NodeId) (Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// Nodes returns the members sorted by id.
func (s *State) Nodes() []Node {
	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Sort(NodeSorter(nodes))
	return nodes
}

func (s *State) Len() int {
	return len(s.nodes)
}

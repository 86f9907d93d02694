// Package cluster describes the compute nodes a resource manager hands out
// and tracks membership changes among them.
package cluster

import (
	"fmt"
	"sort"
	"strings"
)

type NodeId string

type Node interface {
	// A unique node identifier, like 'host:port'
	Id() NodeId

	// Attributes selection predicates are evaluated against.
	Labels() map[string]string
}

type labeledNode struct {
	id     NodeId
	labels map[string]string
}

func (n *labeledNode) String() string {
	if len(n.labels) == 0 {
		return string(n.id)
	}
	keys := make([]string, 0, len(n.labels))
	for k := range n.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{}
	for _, k := range keys {
		parts = append(parts, k+"="+n.labels[k])
	}
	return fmt.Sprintf("%s{%s}", n.id, strings.Join(parts, ","))
}

func NewIdNode(id string) Node {
	return &labeledNode{id: NodeId(id), labels: map[string]string{}}
}

func NewLabeledNode(id string, labels map[string]string) Node {
	l := map[string]string{}
	for k, v := range labels {
		l[k] = v
	}
	return &labeledNode{id: NodeId(id), labels: l}
}

func NewIdNodes(num int) []Node {
	r := []Node{}
	for i := 0; i < num; i++ {
		r = append(r, NewIdNode(fmt.Sprintf("node%d", i+1)))
	}
	return r
}

func (n *labeledNode) Id() NodeId {
	return n.id
}

func (n *labeledNode) Labels() map[string]string {
	return n.labels
}

var _ Node = (*labeledNode)(nil)

type NodeSorter []Node

func (n NodeSorter) Len() int           { return len(n) }
func (n NodeSorter) Swap(i, j int)      { n[i], n[j] = n[j], n[i] }
func (n NodeSorter) Less(i, j int) bool { return n[i].Id() < n[j].Id() }

// Ids returns the ids of nodes in order.
func Ids(nodes []Node) []NodeId {
	ids := make([]NodeId, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.Id())
	}
	return ids
}

type NodeUpdateType int

const (
	NodeAdded NodeUpdateType = iota
	NodeRemoved
)

func (t NodeUpdateType) String() string {
	if t == NodeAdded {
		return "NodeAdded"
	}
	return "NodeRemoved"
}

// NodeUpdate represents a change to the cluster
type NodeUpdate struct {
	UpdateType NodeUpdateType
	Id         NodeId
	Node       Node // Only set for adds
}

func (u *NodeUpdate) String() string {
	return fmt.Sprintf("%v %v %v", u.UpdateType, u.Id, u.Node)
}

// Helper functions to create NodeUpdates

func NewAdd(node Node) NodeUpdate {
	return NodeUpdate{
		UpdateType: NodeAdded,
		Id:         node.Id(),
		Node:       node,
	}
}

func NewRemove(id NodeId) NodeUpdate {
	return NodeUpdate{
		UpdateType: NodeRemoved,
		Id:         id,
	}
}

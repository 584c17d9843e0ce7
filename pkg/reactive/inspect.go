package reactive

import (
	"fmt"
	"sort"
)

// NodeInfo is a read-only snapshot of one node.
type NodeInfo struct {
	ID           NodeID   `json:"id"`
	Name         string   `json:"name"`
	Kind         Kind     `json:"kind"`
	Epoch        uint64   `json:"epoch"`
	Dirty        bool     `json:"dirty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty"`
}

// Nodes returns a snapshot of every node in registration order.
// Dependencies keep evaluation read order; dependents are sorted by name.
func (g *Graph) Nodes() []NodeInfo {
	out := make([]NodeInfo, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.info())
	}
	return out
}

// Lookup returns the snapshot of the node registered under name.
func (g *Graph) Lookup(name string) (NodeInfo, bool) {
	n, ok := g.byName[name]
	if !ok {
		return NodeInfo{}, false
	}
	return n.info(), true
}

func (n *node) info() NodeInfo {
	info := NodeInfo{
		ID:    n.id,
		Name:  n.name,
		Kind:  n.kind,
		Epoch: n.epoch,
		Dirty: n.dirty,
	}
	for _, d := range n.deps {
		info.Dependencies = append(info.Dependencies, d.node.name)
	}
	for d := range n.dependents {
		info.Dependents = append(info.Dependents, d.name)
	}
	sort.Strings(info.Dependents)
	return info
}

// Verify checks the graph invariants at a stable point: every clean derived
// value or sink observed the current epoch of each dependency it recorded,
// and reverse indices mirror the recorded dependency sets.
func (g *Graph) Verify() error {
	if g.disposed {
		return ErrDisposed
	}
	if len(g.stack) > 0 || g.batch > 0 || g.inFlush {
		return fmt.Errorf("graph %q is not at a stable point", g.name)
	}
	for _, n := range g.nodes {
		for _, d := range n.deps {
			if _, ok := d.node.dependents[n]; !ok {
				return fmt.Errorf("node %q reads %q but is missing from its dependents", n.name, d.node.name)
			}
			if !n.dirty && d.node.epoch != d.epoch {
				return fmt.Errorf("node %q is clean but observed %q at epoch %d (now %d)",
					n.name, d.node.name, d.epoch, d.node.epoch)
			}
		}
		for dep := range n.dependents {
			if !dep.reads(n) {
				return fmt.Errorf("node %q lists dependent %q that no longer reads it", n.name, dep.name)
			}
		}
	}
	return nil
}

func (n *node) reads(dep *node) bool {
	for _, d := range n.deps {
		if d.node == dep {
			return true
		}
	}
	return false
}

// Copyright 2026, Square, Inc.

// Package graph provides the node graph topology and its snapshots.
//
// A Graph is the mutable topology: nodes, their params and the connections
// between them. Renders never use a Graph directly. They take a Snapshot,
// which freezes the topology and every node's params, so that edits made
// while a render runs are not seen by it.
package graph

import (
	"fmt"
	"io"
	"sort"
	"sync"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
)

type vertex struct {
	node   node.Node
	params *param.Set
	inputs []string // input index -> upstream node name, "" if disconnected
}

// Graph is a directed acyclic graph of nodes. It is safe for concurrent use.
type Graph struct {
	mu       *sync.RWMutex
	vertices map[string]*vertex
	order    []string // insertion order
	version  uint64
}

func New() *Graph {
	return &Graph{
		mu:       &sync.RWMutex{},
		vertices: map[string]*vertex{},
	}
}

// Add adds node n with its params. Node names are unique.
func (g *Graph) Add(n node.Node, p *param.Set) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n.Name() == "" {
		return fmt.Errorf("node has no name")
	}
	if _, ok := g.vertices[n.Name()]; ok {
		return fmt.Errorf("node %s already exists", n.Name())
	}
	if p == nil {
		p = param.NewSet()
	}
	g.vertices[n.Name()] = &vertex{
		node:   n,
		params: p,
		inputs: make([]string, n.MaxInputs()),
	}
	g.order = append(g.order, n.Name())
	g.version++
	return nil
}

// Remove removes a node and disconnects every input connected to it.
func (g *Graph) Remove(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.vertices[name]; !ok {
		return rerr.NodeNotFound{Node: name}
	}
	delete(g.vertices, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	for _, v := range g.vertices {
		for i, src := range v.inputs {
			if src == name {
				v.inputs[i] = ""
			}
		}
	}
	g.version++
	return nil
}

// Connect connects input n of node dst to the output of node src, replacing
// any existing connection. It fails if n is out of range or the connection
// makes a cycle.
func (g *Graph) Connect(dst string, n int, src string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.vertices[dst]
	if !ok {
		return rerr.NodeNotFound{Node: dst}
	}
	if _, ok := g.vertices[src]; !ok {
		return rerr.NodeNotFound{Node: src}
	}
	if _, err := d.node.InputLabel(n); err != nil {
		return err
	}
	if g.reaches(src, dst) {
		return fmt.Errorf("connecting %s to input %d of %s makes a cycle", src, n, dst)
	}
	d.inputs[n] = src
	g.version++
	return nil
}

// Disconnect disconnects input n of node dst.
func (g *Graph) Disconnect(dst string, n int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d, ok := g.vertices[dst]
	if !ok {
		return rerr.NodeNotFound{Node: dst}
	}
	if _, err := d.node.InputLabel(n); err != nil {
		return err
	}
	d.inputs[n] = ""
	g.version++
	return nil
}

// Params returns the params of node name, or nil if there is no such node.
func (g *Graph) Params(name string) *param.Set {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if v, ok := g.vertices[name]; ok {
		return v.params
	}
	return nil
}

// Node returns node name, or nil if there is no such node.
func (g *Graph) Node(name string) node.Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if v, ok := g.vertices[name]; ok {
		return v.node
	}
	return nil
}

// Names returns the node names in the order they were added.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.order...)
}

// Snapshot returns an immutable copy of the topology and of every node's
// params.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s := &Snapshot{
		vertices: make(map[string]*Vertex, len(g.vertices)),
		order:    append([]string(nil), g.order...),
		Version:  g.version,
	}
	for name, v := range g.vertices {
		s.vertices[name] = &Vertex{
			Node:   v.node,
			Params: v.params.Snapshot(),
			Inputs: append([]string(nil), v.inputs...),
		}
	}
	return s
}

// reaches returns true if to is from or is upstream of from. Caller must hold
// the lock.
func (g *Graph) reaches(from, to string) bool {
	seen := map[string]bool{}
	var dfs func(name string) bool
	dfs = func(name string) bool {
		if name == to {
			return true
		}
		if seen[name] {
			return false
		}
		seen[name] = true
		for _, in := range g.vertices[name].inputs {
			if in != "" && dfs(in) {
				return true
			}
		}
		return false
	}
	return dfs(from)
}

// ------------------------------------------------------------------------- //

// Vertex is one node of a Snapshot.
type Vertex struct {
	Node   node.Node
	Params param.Snapshot
	Inputs []string // input index -> upstream node name, "" if disconnected
}

// Input returns the name of the node connected to input n.
func (v *Vertex) Input(n int) (string, bool) {
	if n < 0 || n >= len(v.Inputs) || v.Inputs[n] == "" {
		return "", false
	}
	return v.Inputs[n], true
}

// Connected returns, per input, whether it is connected.
func (v *Vertex) Connected() []bool {
	c := make([]bool, len(v.Inputs))
	for i, in := range v.Inputs {
		c[i] = in != ""
	}
	return c
}

// Snapshot is an immutable graph. It is safe for concurrent use.
type Snapshot struct {
	vertices map[string]*Vertex
	order    []string
	Version  uint64 // Graph version the snapshot was taken at
}

// Vertex returns node name.
func (s *Snapshot) Vertex(name string) (*Vertex, error) {
	v, ok := s.vertices[name]
	if !ok {
		return nil, rerr.NodeNotFound{Node: name}
	}
	return v, nil
}

// Names returns the node names in the order they were added to the graph.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.order...)
}

// Upstream returns the names of every node upstream of name, sorted.
func (s *Snapshot) Upstream(name string) []string {
	seen := map[string]bool{}
	var walk func(n string)
	walk = func(n string) {
		v, ok := s.vertices[n]
		if !ok {
			return
		}
		for _, in := range v.Inputs {
			if in != "" && !seen[in] {
				seen[in] = true
				walk(in)
			}
		}
	}
	walk(name)
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WriteDot writes the graph in DOT format, edges pointing downstream.
func (s *Snapshot) WriteDot(w io.Writer, title string) {
	fmt.Fprintf(w, "digraph {\n")
	fmt.Fprintf(w, "\trankdir=UD;\n")
	fmt.Fprintf(w, "\tlabelloc=\"t\";\n")
	fmt.Fprintf(w, "\tlabel=\"%s\"\n", title)
	fmt.Fprintf(w, "\tnode [style=filled,color=\"%s\",shape=box]\n", "#86cedf")
	for _, name := range s.order {
		v := s.vertices[name]
		fmt.Fprintf(w, "\t\"%s\" [label=\"%s\\n%s\"]\n", name, name, v.Node.Type())
	}
	for _, name := range s.order {
		v := s.vertices[name]
		for i, in := range v.Inputs {
			if in == "" {
				continue
			}
			label, _ := v.Node.InputLabel(i)
			fmt.Fprintf(w, "\t\"%s\" -> \"%s\" [label=\"%s\"];\n", in, name, label)
		}
	}
	fmt.Fprintln(w, "}")
}

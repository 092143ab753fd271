// Copyright 2026, Square, Inc.

// Package graphfile loads render graphs from YAML files.
//
// A graph file lists nodes by name with their type, params, animation keys
// and inputs, and viewer groups by name:
//
//	nodes:
//	  constant1:
//	    type: constant
//	    params: {r: 0.5, width: 640, height: 480}
//	    keys:
//	      r: [{time: 0, value: 0}, {time: 24, value: 1}]
//	  grade1:
//	    type: grade
//	    params: {gain: 2}
//	    inputs: [constant1]
//	viewers:
//	  viewer1:
//	    inputs: [grade1, constant1]
//
// Inputs are listed by input index; "" leaves an input disconnected. A viewer
// group has two processes, <name>.A and <name>.B, connected to its first and
// second input.
package graphfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/nodes"
	"github.com/square/rendergraph/param"
)

// File is a parsed graph file.
type File struct {
	Nodes   map[string]*NodeSpec   `yaml:"nodes"`
	Viewers map[string]*ViewerSpec `yaml:"viewers"`
}

type NodeSpec struct {
	Name   string                      `yaml:"-"` // key in File.Nodes
	Type   string                      `yaml:"type"`
	Params map[string]interface{}      `yaml:"params"`
	Keys   map[string][]param.Keyframe `yaml:"keys"`
	Inputs []string                    `yaml:"inputs"`
}

type ViewerSpec struct {
	Name          string                      `yaml:"-"` // key in File.Viewers
	Params        map[string]interface{}      `yaml:"params"`
	Keys          map[string][]param.Keyframe `yaml:"keys"`
	Inputs        []string                    `yaml:"inputs"` // A, B
	Authoritative int                         `yaml:"authoritative"`
}

// Project is a graph built from a File, with its viewer groups by name.
type Project struct {
	Graph   *graph.Graph
	Viewers map[string]*nodes.ViewerGroup
}

// ParseFile parses a graph file. `logFunc` is a Printf-like function used to
// log warnings, like unknown or duplicate fields. Errors are returned, not
// logged.
func ParseFile(file string, logFunc func(string, ...interface{})) (*File, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data, logFunc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return f, nil
}

// Parse parses graph file data. See ParseFile.
func Parse(data []byte, logFunc func(string, ...interface{})) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		logFunc("Warning: %s\n", err)
		f = File{}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	}
	for name, n := range f.Nodes {
		if n == nil {
			return nil, fmt.Errorf("node %s: empty", name)
		}
		n.Name = name
	}
	for name, v := range f.Viewers {
		if v == nil {
			v = &ViewerSpec{}
			f.Viewers[name] = v
		}
		v.Name = name
	}
	return &f, nil
}

// Build makes the nodes of f with factory and connects them.
func (f *File) Build(factory node.Factory) (*Project, error) {
	p := &Project{
		Graph:   graph.New(),
		Viewers: map[string]*nodes.ViewerGroup{},
	}
	g := p.Graph

	for _, name := range sortedKeys(f.Nodes) {
		desc := f.Nodes[name]
		n, params, err := factory.Make(desc.Type, name)
		if err != nil {
			return nil, fmt.Errorf("node %s: type %q: %w", name, desc.Type, err)
		}
		if err := setParams(params, desc.Params, desc.Keys); err != nil {
			return nil, fmt.Errorf("node %s: %w", name, err)
		}
		if err := g.Add(n, params); err != nil {
			return nil, err
		}
	}

	for _, name := range sortedKeys(f.Viewers) {
		desc := f.Viewers[name]
		if len(desc.Inputs) > 2 {
			return nil, fmt.Errorf("viewer %s: %d inputs, a viewer group has 2", name, len(desc.Inputs))
		}
		if desc.Authoritative < 0 || desc.Authoritative > 1 {
			return nil, fmt.Errorf("viewer %s: authoritative process must be 0 (A) or 1 (B), got %d", name, desc.Authoritative)
		}
		vg := nodes.NewViewerGroup(name)
		if err := setParams(vg.Params(), desc.Params, desc.Keys); err != nil {
			return nil, fmt.Errorf("viewer %s: %w", name, err)
		}
		vg.SetAuthoritative(desc.Authoritative)
		if err := vg.AddTo(g); err != nil {
			return nil, err
		}
		p.Viewers[name] = vg
	}

	for _, name := range sortedKeys(f.Nodes) {
		if err := connect(g, name, f.Nodes[name].Inputs); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(f.Viewers) {
		vg := p.Viewers[name]
		for i, src := range f.Viewers[name].Inputs {
			if err := connect(g, vg.Process(i).Name(), []string{src}); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// Load parses and builds a graph file with the built-in node types.
func Load(file string, logFunc func(string, ...interface{})) (*Project, error) {
	f, err := ParseFile(file, logFunc)
	if err != nil {
		return nil, err
	}
	return f.Build(nodes.Factory)
}

// Params returns the param set of node name, which can be a viewer group.
func (p *Project) Params(name string) *param.Set {
	if vg, ok := p.Viewers[name]; ok {
		return vg.Params()
	}
	return p.Graph.Params(name)
}

// Apply sets params of the project: node name -> param name -> value.
func (p *Project) Apply(params map[string]map[string]interface{}) error {
	names := sortedKeys(params)
	for _, name := range names {
		ps := p.Params(name)
		if ps == nil {
			return fmt.Errorf("node %s not found", name)
		}
		if err := ps.Check(params[name]); err != nil {
			return fmt.Errorf("node %s: %w", name, err)
		}
	}
	for _, name := range names {
		if err := p.Params(name).SetAll(params[name]); err != nil {
			return fmt.Errorf("node %s: %w", name, err)
		}
	}
	return nil
}

// ParseSetting parses a "node.param=value" setting, as given on the command
// line. The value is a YAML scalar: 2 is a number, true a bool, 2a a string.
// Viewer process names have a dot, so the param is after the last dot.
func ParseSetting(s string) (nodeName, paramName string, value interface{}, err error) {
	kv := strings.SplitN(s, "=", 2)
	if len(kv) != 2 {
		return "", "", nil, fmt.Errorf("invalid setting %q: expected node.param=value", s)
	}
	dot := strings.LastIndex(kv[0], ".")
	if dot <= 0 || dot == len(kv[0])-1 {
		return "", "", nil, fmt.Errorf("invalid setting %q: expected node.param=value", s)
	}
	if err := yaml.Unmarshal([]byte(kv[1]), &value); err != nil {
		return "", "", nil, fmt.Errorf("invalid setting %q: %s", s, err)
	}
	if value == nil {
		value = ""
	}
	return kv[0][:dot], kv[0][dot+1:], value, nil
}

// ------------------------------------------------------------------------- //

func setParams(ps *param.Set, values map[string]interface{}, keys map[string][]param.Keyframe) error {
	if err := ps.SetAll(values); err != nil {
		return err
	}
	for _, name := range sortedKeys(keys) {
		if err := ps.SetKeys(name, keys[name]...); err != nil {
			return err
		}
	}
	return nil
}

func connect(g *graph.Graph, dst string, inputs []string) error {
	for i, src := range inputs {
		if src == "" {
			continue
		}
		if err := g.Connect(dst, i, src); err != nil {
			return fmt.Errorf("connecting input %d of %s to %s: %w", i, dst, src, err)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

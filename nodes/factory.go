// Copyright 2026, Square, Inc.

// Package nodes implements the built-in node types and a factory to create
// them.
package nodes

import (
	"sort"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

// Factory is a node.Factory that makes every built-in node type.
var Factory node.Factory = factory{}

type factory struct{}

var makers = map[string]func(name string) (node.Node, *param.Set){
	"constant":   func(name string) (node.Node, *param.Set) { return NewConstant(name) },
	"ramp":       func(name string) (node.Node, *param.Set) { return NewRamp(name) },
	"dot":        func(name string) (node.Node, *param.Set) { return NewDot(name) },
	"timeoffset": func(name string) (node.Node, *param.Set) { return NewTimeOffset(name) },
	"grade":      func(name string) (node.Node, *param.Set) { return NewGrade(name) },
	"merge":      func(name string) (node.Node, *param.Set) { return NewMerge(name) },
	"shuffle":    func(name string) (node.Node, *param.Set) { return NewShuffle(name) },
	"viewer":     func(name string) (node.Node, *param.Set) { return NewViewer(name) },
}

// Make makes a node of the given type, with the given name. A "viewer" is a
// standalone viewer; viewer groups are made with NewViewerGroup.
func (f factory) Make(nodeType, nodeName string) (node.Node, *param.Set, error) {
	mk, ok := makers[nodeType]
	if !ok {
		return nil, nil, node.ErrUnknownNodeType
	}
	n, p := mk(nodeName)
	return n, p, nil
}

// Types returns the node types Factory makes, sorted.
func Types() []string {
	types := make([]string, 0, len(makers))
	for t := range makers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ------------------------------------------------------------------------- //

// newParams returns a param set with params plus the "disable" param every
// node has.
func newParams(params ...param.Param) *param.Set {
	return param.NewSet(append(params, param.Bool("disable", false))...)
}

// colorPlanes returns the requested planes in the Color layer that are
// available at the output.
func colorPlanes(requested []proto.Components, md *node.Metadata) []proto.Components {
	var planes []proto.Components
	for _, c := range requested {
		if c.IsColor() && (md == nil || md.HasPlane(c)) {
			planes = append(planes, c)
		}
	}
	return planes
}

func hasPlane(planes []proto.Components, c proto.Components) bool {
	for _, p := range planes {
		if p == c {
			return true
		}
	}
	return false
}

// widest returns the plane of layer in planes with the most channels.
func widest(planes []proto.Components, layer string) (proto.Components, bool) {
	var best proto.Components
	found := false
	for _, p := range planes {
		if p.Layer == layer && (!found || p.Count() > best.Count()) {
			best, found = p, true
		}
	}
	return best, found
}

// addPlane returns planes plus c, sorted, without duplicates.
func addPlane(planes []proto.Components, c proto.Components) []proto.Components {
	out := append([]proto.Components(nil), planes...)
	if !hasPlane(out, c) {
		out = append(out, c)
	}
	proto.SortComponents(out)
	return out
}

// copyInput copies plane out.Plane of input n into out, if the input has it.
func copyInput(args node.RenderArgs, n int, out *pixel.Buffer) {
	if src := args.Input(n, out.Plane); src != nil {
		out.CopyFrom(src)
	}
}

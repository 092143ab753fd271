// Copyright 2026, Square, Inc.

package render

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/proto"
)

// metaEntry is the memoized metadata of one node in a tree context.
type metaEntry struct {
	once sync.Once
	md   *node.Metadata
	// Metadata of each input, nil if the input is optional and not connected
	// or its branch was dropped.
	inputs []*node.Metadata
	err    error
}

// metadata returns the metadata of node name, computing it at most once per
// tree context. Metadata takes no time or view: it is the same for every
// sub-request of the render.
func (tc *treeContext) metadata(name string) (*metaEntry, error) {
	v, err := tc.snap.Vertex(name)
	if err != nil {
		return nil, err
	}
	e, _ := tc.meta.LoadOrStore(name, &metaEntry{})
	me := e.(*metaEntry)
	me.once.Do(func() {
		me.md, me.inputs, me.err = tc.computeMetadata(v)
	})
	if me.err != nil {
		return nil, me.err
	}
	return me, nil
}

func (tc *treeContext) computeMetadata(v *graph.Vertex) (*node.Metadata, []*node.Metadata, error) {
	n := v.Node
	name := n.Name()
	inputs := make([]*node.Metadata, n.MaxInputs())
	accepted := make([]proto.ComponentsSet, n.MaxInputs())

	for i := range inputs {
		optional, err := n.IsInputOptional(i)
		if err != nil {
			return nil, nil, err
		}
		if accepted[i], err = n.AcceptedComponents(i); err != nil {
			return nil, nil, err
		}
		src, ok := v.Input(i)
		if !ok {
			if !optional {
				return nil, nil, rerr.MetadataUnavailable{Node: name, Input: i, Reason: "input not connected"}
			}
			continue
		}
		me, err := tc.metadata(src)
		if err == nil && !acceptsAny(accepted[i], me.md.Components) {
			err = rerr.MetadataUnavailable{
				Node:   name,
				Input:  i,
				Reason: fmt.Sprintf("%s has no plane the input accepts", src),
			}
		}
		if err != nil {
			if optional && rerr.IsBranchError(err) {
				tc.log.WithFields(log.Fields{"node": name, "input": i}).Warnf("dropping optional input: %s", err)
				continue
			}
			return nil, nil, err
		}
		inputs[i] = me.md
	}

	def, err := defaultMetadata(n, inputs)
	if err != nil {
		return nil, nil, err
	}
	def.Accepted = accepted

	md, err := n.Metadata(node.MetadataArgs{
		Params:  v.Params,
		Inputs:  inputs,
		Default: def,
	})
	if err != nil {
		return nil, nil, err
	}
	md.Components = append([]proto.Components(nil), md.Components...)
	proto.SortComponents(md.Components)
	if md.Accepted == nil {
		md.Accepted = accepted
	}
	if md.PixelAspect <= 0 {
		md.PixelAspect = 1
	}
	return &md, inputs, nil
}

// defaultMetadata computes the metadata of a node from its declarations and
// its available inputs, before the node's own Metadata hook.
func defaultMetadata(n node.Node, inputs []*node.Metadata) (node.Metadata, error) {
	md := node.Metadata{PixelAspect: 1}

	deepest := proto.BITDEPTH_NONE
	connected := 0
	for _, in := range inputs {
		if in == nil {
			continue
		}
		if in.BitDepth > deepest {
			deepest = in.BitDepth
		}
		if connected == 0 {
			md.PixelAspect = in.PixelAspect
		}
		md.Format = md.Format.Union(in.Format)
		for _, c := range in.Components {
			if !containsPlane(md.Components, c) {
				md.Components = append(md.Components, c)
			}
		}
		connected++
	}
	proto.SortComponents(md.Components)

	depth, err := effectiveDepth(n, deepest)
	if err != nil {
		return md, err
	}
	md.BitDepth = depth

	policy := n.Capabilities().FrameRange
	if connected == 0 || policy == node.FRAMES_DECLARED {
		md.FrameRange = proto.INFINITE_RANGE
		return md, nil
	}
	first := true
	for _, in := range inputs {
		if in == nil {
			continue
		}
		switch {
		case first:
			md.FrameRange = in.FrameRange
			first = false
		case policy == node.FRAMES_INTERSECT:
			md.FrameRange = md.FrameRange.Intersect(in.FrameRange)
		default:
			md.FrameRange = md.FrameRange.Union(in.FrameRange)
		}
	}
	return md, nil
}

// effectiveDepth returns the narrowest depth the node supports that holds
// the deepest input depth, else the deepest depth it supports.
func effectiveDepth(n node.Node, deepest proto.BitDepth) (proto.BitDepth, error) {
	supported := n.SupportedBitDepths()
	if len(supported) == 0 {
		return proto.BITDEPTH_NONE, rerr.UnsupportedFormat{
			Node:   n.Name(),
			Plane:  "any",
			Depth:  deepest.String(),
			Reason: "node supports no bit depth",
		}
	}
	best := proto.BITDEPTH_NONE
	for _, d := range supported {
		if d >= deepest && (best == proto.BITDEPTH_NONE || d < best) {
			best = d
		}
	}
	if best != proto.BITDEPTH_NONE {
		return best, nil
	}
	for _, d := range supported {
		if d > best {
			best = d
		}
	}
	return best, nil
}

func acceptsAny(s proto.ComponentsSet, planes []proto.Components) bool {
	if len(planes) == 0 {
		return true
	}
	for _, c := range planes {
		if s.Accepts(c) {
			return true
		}
	}
	return false
}

func containsPlane(planes []proto.Components, c proto.Components) bool {
	for _, p := range planes {
		if p == c {
			return true
		}
	}
	return false
}

func supportsDepth(n node.Node, d proto.BitDepth) bool {
	for _, s := range n.SupportedBitDepths() {
		if s == d {
			return true
		}
	}
	return false
}

// Copyright 2026, Square, Inc.

package render

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

// execute runs the render action of the node of plan p with the fetched
// input planes and returns the produced planes over the plan region, in
// p.produced order.
//
// Output buffers are allocated at the node depth; a terminal display node
// renders at float and its display plane goes through the display pipeline.
// A node that does not support tiles renders its whole format and the
// result is cropped. Multi-planar nodes render every plane in one call, other
// nodes one plane per call.
func (tc *treeContext) execute(ctx context.Context, p *plan, inputs map[int][]*pixel.Buffer) ([]*pixel.Buffer, error) {
	n := p.vertex.Node
	name := n.Name()
	caps := n.Capabilities()

	window := p.region
	if !caps.SupportsTiles {
		window = p.md.Format.ToPixel(tc.scale)
	}
	depth := p.depth
	if p.display != nil {
		depth = proto.BITDEPTH_FLOAT
	}

	var calls [][]proto.Components
	if caps.MultiPlanar {
		calls = [][]proto.Components{p.produced}
	} else {
		for _, c := range p.produced {
			calls = append(calls, []proto.Components{c})
		}
	}

	out := make([]*pixel.Buffer, 0, len(p.produced))
	for _, planes := range calls {
		outputs := make([]*pixel.Buffer, len(planes))
		for i, c := range planes {
			buf, err := tc.e.alloc.New(name, c, depth, window)
			if err != nil {
				return nil, err
			}
			outputs[i] = buf
		}

		if ctx.Err() != nil {
			return nil, rerr.Cancelled{Node: name}
		}
		t0 := time.Now()
		err := n.Render(ctx, node.RenderArgs{
			Params:    p.vertex.Params,
			Time:      p.sub.time,
			View:      p.sub.view,
			Scale:     tc.scale,
			Window:    window,
			Outputs:   outputs,
			Inputs:    inputs,
			Metadata:  p.md,
			Selection: p.selection,
		})
		d := time.Since(t0)
		tc.stats.merge(name, func(s *proto.NodeRenderStats) {
			s.Renders++
			s.TimeSpent += d
			s.Scale = tc.scale
			s.TilesSupported = caps.SupportsTiles
			addPlanes(s, planes)
		})
		if err != nil {
			return nil, renderError(ctx, name, err)
		}
		out = append(out, outputs...)
	}

	for i, buf := range out {
		if window != p.region {
			buf = buf.Crop(p.region)
		}
		if p.display != nil {
			if buf.Plane == proto.COMPONENTS_RGBA {
				var err error
				if buf, err = applyDisplay(buf, p.settings, p.depth); err != nil {
					return nil, rerr.ComputeFailure{Node: name, Err: err}
				}
			} else {
				buf = convertDepth(buf, p.depth)
			}
		}
		out[i] = buf
	}

	tc.log.WithFields(log.Fields{
		"node":   name,
		"region": p.region.String(),
		"depth":  p.depth.String(),
	}).Debugf("rendered %d planes", len(out))
	return out, nil
}

// renderError maps an error returned by Node.Render: it is a cancellation if
// the render was cancelled, errors of the errors package are returned as is,
// anything else is a ComputeFailure of the node.
func renderError(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil {
		return rerr.Cancelled{Node: name}
	}
	if rerr.NodeOf(err) != "" {
		return err
	}
	return rerr.ComputeFailure{Node: name, Err: err}
}

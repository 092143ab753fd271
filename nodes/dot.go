// Copyright 2026, Square, Inc.

package nodes

import (
	"context"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// Dot is a routing node: its output is always its input.
type Dot struct {
	node.Base
}

func NewDot(name string) (*Dot, *param.Set) {
	n := &Dot{
		Base: node.Base{
			NodeName: name,
			NodeType: "dot",
			Inputs:   []node.Input{{Label: "Source", Accepted: proto.ACCEPT_ALL}},
			Depths:   node.ALL_DEPTHS,
			Caps: node.Capabilities{
				SupportsTiles: true,
				MultiPlanar:   true,
				PassThrough:   node.PASS_THROUGH_NON_RENDERED_PLANES,
			},
		},
	}
	return n, newParams()
}

func (n *Dot) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	return node.Identity{IsIdentity: true, Input: 0, Time: args.Time, View: args.View}, nil
}

// Render copies the input. A render never calls it because Dot is always an
// identity.
func (n *Dot) Render(ctx context.Context, args node.RenderArgs) error {
	for _, out := range args.Outputs {
		copyInput(args, 0, out)
	}
	return nil
}

// ------------------------------------------------------------------------- //

// TimeOffset shifts its input in time: its output at time t is its input at
// t - offset. Its frame range is the input frame range shifted by offset.
type TimeOffset struct {
	node.Base
}

func NewTimeOffset(name string) (*TimeOffset, *param.Set) {
	n := &TimeOffset{
		Base: node.Base{
			NodeName: name,
			NodeType: "timeoffset",
			Inputs:   []node.Input{{Label: "Source", Accepted: proto.ACCEPT_ALL}},
			Depths:   node.ALL_DEPTHS,
			Caps: node.Capabilities{
				SupportsTiles: true,
				MultiPlanar:   true,
				PassThrough:   node.PASS_THROUGH_NON_RENDERED_PLANES,
				FrameRange:    node.FRAMES_DECLARED,
			},
		},
	}
	p := newParams(
		param.Int("offset", 0).Metadata(),
	)
	return n, p
}

func (n *TimeOffset) Metadata(args node.MetadataArgs) (node.Metadata, error) {
	md := args.Default
	offset := float64(args.Params.Int("offset", 0))
	md.FrameRange = proto.FrameRange{First: md.FrameRange.First + offset, Last: md.FrameRange.Last + offset}
	return md, nil
}

func (n *TimeOffset) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	offset := proto.Time(args.Params.Int("offset", 0))
	return node.Identity{IsIdentity: true, Input: 0, Time: args.Time - offset, View: args.View}, nil
}

// Render copies the input. A render never calls it because TimeOffset is
// always an identity.
func (n *TimeOffset) Render(ctx context.Context, args node.RenderArgs) error {
	for _, out := range args.Outputs {
		copyInput(args, 0, out)
	}
	return nil
}

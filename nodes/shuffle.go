// Copyright 2026, Square, Inc.

package nodes

import (
	"context"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// Shuffle copies the channels of plane "from" of its input into plane "to",
// by position, repeating the source channels if "to" has more. "to" is added
// to the planes available downstream. All other planes pass through.
type Shuffle struct {
	node.Base
}

func NewShuffle(name string) (*Shuffle, *param.Set) {
	n := &Shuffle{
		Base: node.Base{
			NodeName: name,
			NodeType: "shuffle",
			Inputs:   []node.Input{{Label: "Source", Accepted: proto.ACCEPT_ALL}},
			Depths:   node.ALL_DEPTHS,
			Caps: node.Capabilities{
				SupportsTiles: true,
				MultiPlanar:   false,
				PassThrough:   node.PASS_THROUGH_NON_RENDERED_PLANES,
			},
		},
	}
	p := newParams(
		param.String("from", "Depth.Z").Metadata(),
		param.String("to", "Color.A").Metadata(),
	)
	return n, p
}

func (n *Shuffle) planes(p param.Snapshot) (from, to proto.Components, err error) {
	if from, err = proto.ParseComponents(p.String("from")); err != nil {
		return
	}
	to, err = proto.ParseComponents(p.String("to"))
	return
}

func (n *Shuffle) Metadata(args node.MetadataArgs) (node.Metadata, error) {
	from, to, err := n.planes(args.Params)
	if err != nil {
		return node.Metadata{}, rerr.MetadataUnavailable{Node: n.NodeName, Input: -1, Reason: err.Error()}
	}
	if len(args.Inputs) == 0 || args.Inputs[0] == nil || !args.Inputs[0].HasPlane(from) {
		return node.Metadata{}, rerr.MetadataUnavailable{Node: n.NodeName, Input: 0, Reason: "plane " + from.String() + " not available"}
	}
	md := args.Default
	md.Components = addPlane(md.Components, to)
	return md, nil
}

func (n *Shuffle) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	from, to, err := n.planes(args.Params)
	if err == nil && from == to {
		return node.Identity{IsIdentity: true, Input: 0, Time: args.Time, View: args.View}, nil
	}
	return node.NotIdentity, nil
}

func (n *Shuffle) Components(args node.ComponentsArgs) (node.Needs, error) {
	needs := node.Needs{Inputs: map[int][]proto.Components{}}
	from, to, err := n.planes(args.Params)
	if err != nil {
		return needs, err
	}
	if hasPlane(args.Planes, to) {
		needs.Produced = []proto.Components{to}
		needs.Inputs[0] = []proto.Components{from}
	}
	return needs, nil
}

func (n *Shuffle) Render(ctx context.Context, args node.RenderArgs) error {
	from, _, err := n.planes(args.Params)
	if err != nil {
		return err
	}
	src := args.Input(0, from)
	if src == nil {
		return nil
	}
	for _, out := range args.Outputs {
		r := out.Bounds
		for y := r.Y1; y < r.Y2; y++ {
			for x := r.X1; x < r.X2; x++ {
				for c := 0; c < out.NComps(); c++ {
					out.Set(x, y, c, src.At(x, y, c%src.NComps()))
				}
			}
		}
	}
	return nil
}

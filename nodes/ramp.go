// Copyright 2026, Square, Inc.

package nodes

import (
	"context"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// Ramp is a generator of two planes: a Color.RGBA ramp, red increasing left
// to right and green bottom to top, and a Depth.Z plane increasing bottom to
// top from 1 to 2. The offset param is added to red and blue.
//
// Ramp renders one plane per call and always renders its whole format.
type Ramp struct {
	node.Base
}

func NewRamp(name string) (*Ramp, *param.Set) {
	n := &Ramp{
		Base: node.Base{
			NodeName: name,
			NodeType: "ramp",
			Depths:   []proto.BitDepth{proto.BITDEPTH_FLOAT},
			Caps: node.Capabilities{
				SupportsTiles: false,
				MultiPlanar:   false,
				PassThrough:   node.BLOCK_NON_RENDERED_PLANES,
				FrameRange:    node.FRAMES_DECLARED,
			},
			Planes: []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH},
		},
	}
	p := newParams(
		param.Float("offset", 0),
		param.Int("width", 256).Metadata(),
		param.Int("height", 256).Metadata(),
	)
	return n, p
}

func (n *Ramp) Metadata(args node.MetadataArgs) (node.Metadata, error) {
	return generatorMetadata(&n.Base, args, n.Planes), nil
}

func (n *Ramp) Render(ctx context.Context, args node.RenderArgs) error {
	scale := args.Scale.Normalized()
	w := args.Metadata.Format.X2 - args.Metadata.Format.X1
	h := args.Metadata.Format.Y2 - args.Metadata.Format.Y1
	offset := args.Params.Float("offset", args.Time)

	for _, out := range args.Outputs {
		r := out.Bounds
		for y := r.Y1; y < r.Y2; y++ {
			if y%64 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			v := (float64(y) + 0.5) / scale.Y / h
			for x := r.X1; x < r.X2; x++ {
				u := (float64(x) + 0.5) / scale.X / w
				switch out.Plane {
				case proto.COMPONENTS_RGBA:
					out.Set(x, y, 0, float32(u+offset))
					out.Set(x, y, 1, float32(v))
					out.Set(x, y, 2, float32(offset))
					out.Set(x, y, 3, 1)
				case proto.COMPONENTS_DEPTH:
					out.Set(x, y, 0, float32(1+v))
				}
			}
		}
	}
	return nil
}

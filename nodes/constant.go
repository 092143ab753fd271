// Copyright 2026, Square, Inc.

package nodes

import (
	"context"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// Constant is a generator that fills its format with one color. The color
// can be animated.
type Constant struct {
	node.Base
}

func NewConstant(name string) (*Constant, *param.Set) {
	n := &Constant{
		Base: node.Base{
			NodeName: name,
			NodeType: "constant",
			Depths:   node.ALL_DEPTHS,
			Caps: node.Capabilities{
				SupportsTiles: true,
				MultiPlanar:   true,
				PassThrough:   node.BLOCK_NON_RENDERED_PLANES,
				FrameRange:    node.FRAMES_DECLARED,
			},
			Planes: []proto.Components{proto.COMPONENTS_RGBA},
		},
	}
	p := newParams(
		param.Float("r", 0),
		param.Float("g", 0),
		param.Float("b", 0),
		param.Float("a", 1),
		param.Int("width", 256).Metadata(),
		param.Int("height", 256).Metadata(),
		param.String("depth", "").Metadata(),
	)
	return n, p
}

func (n *Constant) Metadata(args node.MetadataArgs) (node.Metadata, error) {
	return generatorMetadata(&n.Base, args, []proto.Components{proto.COMPONENTS_RGBA}), nil
}

func (n *Constant) Render(ctx context.Context, args node.RenderArgs) error {
	px := []float32{
		float32(args.Params.Float("r", args.Time)),
		float32(args.Params.Float("g", args.Time)),
		float32(args.Params.Float("b", args.Time)),
		float32(args.Params.Float("a", args.Time)),
	}
	for _, out := range args.Outputs {
		out.Fill(px)
	}
	return nil
}

// generatorMetadata sets the format, planes and frame range of a generator
// from its width and height params, and its depth from the depth param if
// set to a depth the node supports.
func generatorMetadata(b *node.Base, args node.MetadataArgs, planes []proto.Components) node.Metadata {
	md := args.Default
	md.Format = proto.RectD{
		X2: float64(args.Params.Int("width", 0)),
		Y2: float64(args.Params.Int("height", 0)),
	}
	md.Components = append([]proto.Components(nil), planes...)
	proto.SortComponents(md.Components)
	md.FrameRange = proto.INFINITE_RANGE
	if d, ok := proto.BitDepthValue[args.Params.String("depth")]; ok {
		for _, s := range b.Depths {
			if s == d {
				md.BitDepth = d
			}
		}
	}
	return md
}

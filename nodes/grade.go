// Copyright 2026, Square, Inc.

package nodes

import (
	"context"
	"fmt"
	"math"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

const (
	GRADE_SOURCE = 0
	GRADE_MASK   = 1
)

// Grade applies gain, offset and gamma to the color channels of the Color
// planes: out = pow(max(in*gain + offset, 0), 1/gamma). Alpha is unchanged.
// The result is mixed with the input by mix times the alpha of the optional
// mask input. Other planes pass through from the source.
type Grade struct {
	node.Base
}

func NewGrade(name string) (*Grade, *param.Set) {
	n := &Grade{
		Base: node.Base{
			NodeName: name,
			NodeType: "grade",
			Inputs: []node.Input{
				{Label: "Source", Accepted: proto.ACCEPT_1 | proto.ACCEPT_3 | proto.ACCEPT_4},
				{Label: "Mask", Optional: true, Accepted: proto.ACCEPT_1 | proto.ACCEPT_4},
			},
			Depths: []proto.BitDepth{proto.BITDEPTH_HALF, proto.BITDEPTH_FLOAT},
			Caps: node.Capabilities{
				SupportsTiles:    true,
				MultiPlanar:      true,
				PassThrough:      node.PASS_THROUGH_NON_RENDERED_PLANES,
				PassThroughInput: GRADE_SOURCE,
			},
		},
	}
	p := newParams(
		param.Float("gain", 1),
		param.Float("offset", 0),
		param.Float("gamma", 1),
		param.Float("mix", 1),
	)
	return n, p
}

func (n *Grade) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	p, t := args.Params, args.Time
	noop := p.Float("gain", t) == 1 && p.Float("offset", t) == 0 && p.Float("gamma", t) == 1
	if noop || p.Float("mix", t) == 0 {
		return node.Identity{IsIdentity: true, Input: GRADE_SOURCE, Time: t, View: args.View}, nil
	}
	return node.NotIdentity, nil
}

func (n *Grade) Components(args node.ComponentsArgs) (node.Needs, error) {
	needs := node.Needs{
		Produced: colorPlanes(args.Planes, args.Metadata),
		Inputs:   map[int][]proto.Components{},
	}
	if len(needs.Produced) == 0 {
		return needs, nil
	}
	if avail := inputPlanes(args, GRADE_SOURCE); avail != nil {
		var read []proto.Components
		for _, c := range needs.Produced {
			if hasPlane(avail, c) {
				read = append(read, c)
			}
		}
		needs.Inputs[GRADE_SOURCE] = read
	}
	if mask, ok := widest(inputPlanes(args, GRADE_MASK), "Color"); ok {
		needs.Inputs[GRADE_MASK] = []proto.Components{mask}
	}
	return needs, nil
}

func (n *Grade) Render(ctx context.Context, args node.RenderArgs) error {
	p, t := args.Params, args.Time
	gain := p.Float("gain", t)
	offset := p.Float("offset", t)
	gamma := p.Float("gamma", t)
	mix := p.Float("mix", t)
	if gamma <= 0 {
		return fmt.Errorf("gamma %f must be positive", gamma)
	}

	var mask *pixel.Buffer
	maskCh := -1
	if in := args.Inputs[GRADE_MASK]; len(in) > 0 && in[0] != nil {
		mask = in[0]
		maskCh = mask.Plane.Index('A')
		if maskCh < 0 && mask.NComps() == 1 {
			maskCh = 0
		}
	}

	for _, out := range args.Outputs {
		src := args.Input(GRADE_SOURCE, out.Plane)
		if src == nil {
			continue
		}
		alpha := out.Plane.Index('A')
		single := out.NComps() == 1 // alpha-only planes are graded
		r := out.Bounds
		for y := r.Y1; y < r.Y2; y++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for x := r.X1; x < r.X2; x++ {
				m := mix
				if mask != nil && maskCh >= 0 {
					m *= float64(mask.At(x, y, maskCh))
				}
				for c := 0; c < out.NComps(); c++ {
					v := float64(src.At(x, y, c))
					if c == alpha && !single {
						out.Set(x, y, c, float32(v))
						continue
					}
					g := math.Pow(math.Max(v*gain+offset, 0), 1/gamma)
					out.Set(x, y, c, float32(v+(g-v)*m))
				}
			}
		}
	}
	return nil
}

// inputPlanes returns the planes available at input n, nil if it is not
// connected or was dropped.
func inputPlanes(args node.ComponentsArgs, n int) []proto.Components {
	if n < len(args.InputPlanes) {
		return args.InputPlanes[n]
	}
	return nil
}

// Copyright 2026, Square, Inc.

package nodes

import (
	"context"
	"fmt"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

const (
	MERGE_B = 0
	MERGE_A = 1
)

var mergeOps = map[string]func(a, b, aa float64) float64{
	"over":     func(a, b, aa float64) float64 { return a + b*(1-aa) },
	"plus":     func(a, b, aa float64) float64 { return a + b },
	"multiply": func(a, b, aa float64) float64 { return a * b },
}

// Merge composites its optional A input onto its B input in the Color planes.
// Other planes pass through from B. With A disconnected, Merge is B.
type Merge struct {
	node.Base
}

func NewMerge(name string) (*Merge, *param.Set) {
	n := &Merge{
		Base: node.Base{
			NodeName: name,
			NodeType: "merge",
			Inputs: []node.Input{
				{Label: "B", Accepted: proto.ACCEPT_ALL},
				{Label: "A", Optional: true, Accepted: proto.ACCEPT_ALL},
			},
			Depths: []proto.BitDepth{proto.BITDEPTH_SHORT, proto.BITDEPTH_HALF, proto.BITDEPTH_FLOAT},
			Caps: node.Capabilities{
				SupportsTiles:    true,
				MultiPlanar:      true,
				PassThrough:      node.PASS_THROUGH_NON_RENDERED_PLANES,
				PassThroughInput: MERGE_B,
				FrameRange:       node.FRAMES_UNION,
			},
		},
	}
	p := newParams(
		param.String("operation", "over"),
		param.Float("mix", 1),
	)
	return n, p
}

func (n *Merge) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	aConnected := len(args.Connected) > MERGE_A && args.Connected[MERGE_A]
	if !aConnected || args.Params.Float("mix", args.Time) == 0 {
		return node.Identity{IsIdentity: true, Input: MERGE_B, Time: args.Time, View: args.View}, nil
	}
	return node.NotIdentity, nil
}

func (n *Merge) Components(args node.ComponentsArgs) (node.Needs, error) {
	needs := node.Needs{
		Produced: colorPlanes(args.Planes, args.Metadata),
		Inputs:   map[int][]proto.Components{},
	}
	if len(needs.Produced) == 0 {
		return needs, nil
	}
	if avail := inputPlanes(args, MERGE_B); avail != nil {
		var read []proto.Components
		for _, c := range needs.Produced {
			if hasPlane(avail, c) {
				read = append(read, c)
			}
		}
		needs.Inputs[MERGE_B] = read
	}
	if a, ok := widest(inputPlanes(args, MERGE_A), "Color"); ok {
		needs.Inputs[MERGE_A] = []proto.Components{a}
	}
	return needs, nil
}

func (n *Merge) Render(ctx context.Context, args node.RenderArgs) error {
	opName := args.Params.String("operation")
	op, ok := mergeOps[opName]
	if !ok {
		return fmt.Errorf("unknown operation %q", opName)
	}
	mix := args.Params.Float("mix", args.Time)

	aPlane := args.InputLayer(MERGE_A, "Color")
	aAlpha := -1
	if aPlane != nil {
		aAlpha = aPlane.Plane.Index('A')
	}

	for _, out := range args.Outputs {
		b := args.Input(MERGE_B, out.Plane)
		r := out.Bounds
		for y := r.Y1; y < r.Y2; y++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for x := r.X1; x < r.X2; x++ {
				aa := 0.0
				if aPlane != nil {
					aa = 1
					if aAlpha >= 0 {
						aa = float64(aPlane.At(x, y, aAlpha))
					}
				}
				for c := 0; c < out.NComps(); c++ {
					var bv, av float64
					if b != nil {
						bv = float64(b.At(x, y, c))
					}
					if aPlane != nil {
						if ac := aPlane.Plane.Index(out.Plane.Channels[c]); ac >= 0 {
							av = float64(aPlane.At(x, y, ac))
						}
					}
					v := op(av, bv, aa)
					out.Set(x, y, c, float32(bv+(v-bv)*mix))
				}
			}
		}
	}
	return nil
}

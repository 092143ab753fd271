// Copyright 2026, Square, Inc.

package render

import (
	"math"

	"github.com/square/rendergraph/lut"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

// Rec.709 luma weights.
const (
	LUMA_R = 0.2126
	LUMA_G = 0.7152
	LUMA_B = 0.0722
)

// applyDisplay runs the display pipeline on the RGBA plane src of a terminal
// display node and returns the result at depth:
//
//  1. channel mapping (RGB, a single channel replicated, luminance, matte)
//  2. gain, in f-stops
//  3. auto-contrast: min/max normalization over the buffer
//  4. gamma
//  5. the colorspace table of the display
//
// The display is opaque: alpha is 1. src is not modified.
func applyDisplay(src *pixel.Buffer, s node.DisplaySettings, depth proto.BitDepth) (*pixel.Buffer, error) {
	table, err := lut.For(s.Colorspace)
	if err != nil {
		return nil, err
	}
	out := pixel.NewBuffer(src.Plane, depth, src.Bounds)
	if src.IsEmpty() {
		return out, nil
	}
	if src.NComps() != 4 {
		out.CopyFrom(src)
		return out, nil
	}

	rgb := make([]float64, src.Bounds.Area()*3)
	for i, j := 0, 0; i < len(src.Data); i, j = i+4, j+3 {
		r, g, b, a := float64(src.Data[i]), float64(src.Data[i+1]), float64(src.Data[i+2]), float64(src.Data[i+3])
		switch s.Channels {
		case proto.DISPLAY_R:
			g, b = r, r
		case proto.DISPLAY_G:
			r, b = g, g
		case proto.DISPLAY_B:
			r, g = b, b
		case proto.DISPLAY_A:
			r, g, b = a, a, a
		case proto.DISPLAY_LUMINANCE:
			l := LUMA_R*r + LUMA_G*g + LUMA_B*b
			r, g, b = l, l, l
		case proto.DISPLAY_MATTE:
			// Alpha shown as a red overlay.
			r = r*(1-0.5*a) + 0.5*a
			g = g * (1 - 0.5*a)
			b = b * (1 - 0.5*a)
		}
		rgb[j], rgb[j+1], rgb[j+2] = r, g, b
	}

	if s.Gain != 0 {
		f := math.Pow(2, s.Gain)
		for i := range rgb {
			rgb[i] *= f
		}
	}

	if s.AutoContrast {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range rgb {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi > lo {
			for i := range rgb {
				rgb[i] = (rgb[i] - lo) / (hi - lo)
			}
		}
	}

	if s.Gamma > 0 && s.Gamma != 1 {
		inv := 1 / s.Gamma
		for i := range rgb {
			rgb[i] = math.Pow(math.Max(rgb[i], 0), inv)
		}
	}

	for i, j := 0, 0; i < len(out.Data); i, j = i+4, j+3 {
		for c := 0; c < 3; c++ {
			v := float32(rgb[j+c])
			if depth == proto.BITDEPTH_BYTE {
				out.Data[i+c] = float32(table.ToDisplayByte(v)) / 255
			} else {
				out.Data[i+c] = pixel.Quantize(depth, table.ToDisplay(v))
			}
		}
		out.Data[i+3] = 1
	}
	return out, nil
}

// convertDepth returns b at depth, or b itself if it already is at depth.
func convertDepth(b *pixel.Buffer, depth proto.BitDepth) *pixel.Buffer {
	if b.Depth == depth {
		return b
	}
	out := pixel.NewBuffer(b.Plane, depth, b.Bounds)
	out.CopyFrom(b)
	return out
}

// Copyright 2026, Square, Inc.

package proto

import (
	"fmt"
	"math"
)

// RectI is a pixel rectangle. X1,Y1 are inclusive and X2,Y2 exclusive.
type RectI struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r RectI) Width() int {
	if r.X2 <= r.X1 {
		return 0
	}
	return r.X2 - r.X1
}

func (r RectI) Height() int {
	if r.Y2 <= r.Y1 {
		return 0
	}
	return r.Y2 - r.Y1
}

// Area returns Width * Height.
func (r RectI) Area() int {
	return r.Width() * r.Height()
}

func (r RectI) IsEmpty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

// Contains returns true if the pixel at x,y is inside r.
func (r RectI) Contains(x, y int) bool {
	return x >= r.X1 && x < r.X2 && y >= r.Y1 && y < r.Y2
}

// ContainsRect returns true if o is entirely inside r. An empty o is contained
// by anything.
func (r RectI) ContainsRect(o RectI) bool {
	if o.IsEmpty() {
		return true
	}
	return o.X1 >= r.X1 && o.Y1 >= r.Y1 && o.X2 <= r.X2 && o.Y2 <= r.Y2
}

// Intersect returns the overlap of r and o, which may be empty.
func (r RectI) Intersect(o RectI) RectI {
	x := RectI{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
	if x.IsEmpty() {
		return RectI{}
	}
	return x
}

// Union returns the bounding box of r and o. Empty rects are ignored.
func (r RectI) Union(o RectI) RectI {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return RectI{
		X1: min(r.X1, o.X1),
		Y1: min(r.Y1, o.Y1),
		X2: max(r.X2, o.X2),
		Y2: max(r.Y2, o.Y2),
	}
}

func (r RectI) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", r.X1, r.Y1, r.X2, r.Y2)
}

// RectD is a rectangle in canonical (full resolution, unscaled) coordinates.
type RectD struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (r RectD) IsEmpty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

// ToPixel converts r to pixel coordinates at scale s, rounding outward so the
// pixel rect covers the whole canonical rect.
func (r RectD) ToPixel(s RenderScale) RectI {
	if r.IsEmpty() {
		return RectI{}
	}
	s = s.Normalized()
	p := RectI{
		X1: int(math.Floor(r.X1 * s.X)),
		Y1: int(math.Floor(r.Y1 * s.Y)),
		X2: int(math.Ceil(r.X2 * s.X)),
		Y2: int(math.Ceil(r.Y2 * s.Y)),
	}
	if p.IsEmpty() {
		return RectI{}
	}
	return p
}

// Union returns the smallest rect containing r and o. Empty rects are
// ignored.
func (r RectD) Union(o RectD) RectD {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	return RectD{
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
		X2: math.Max(r.X2, o.X2),
		Y2: math.Max(r.Y2, o.Y2),
	}
}

func (r RectD) String() string {
	return fmt.Sprintf("[%g,%g,%g,%g]", r.X1, r.Y1, r.X2, r.Y2)
}

// RenderScale is the proxy/mipmap scale of a render. 1,1 is full resolution.
type RenderScale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScaleFromMipMapLevel returns 1/2^level on both axes.
func ScaleFromMipMapLevel(level uint) RenderScale {
	f := 1 / float64(uint(1)<<level)
	return RenderScale{X: f, Y: f}
}

// Normalized returns s with zero or negative components replaced by 1.
func (s RenderScale) Normalized() RenderScale {
	if s.X <= 0 {
		s.X = 1
	}
	if s.Y <= 0 {
		s.Y = 1
	}
	return s
}

// FrameRange is an inclusive range of frames.
type FrameRange struct {
	First float64 `json:"first" yaml:"first"`
	Last  float64 `json:"last" yaml:"last"`
}

// INFINITE_RANGE is the frame range of a node that can render any frame.
var INFINITE_RANGE = FrameRange{First: math.Inf(-1), Last: math.Inf(1)}

func (f FrameRange) IsEmpty() bool {
	return f.Last < f.First
}

func (f FrameRange) Contains(t Time) bool {
	return float64(t) >= f.First && float64(t) <= f.Last
}

func (f FrameRange) Union(o FrameRange) FrameRange {
	if f.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return f
	}
	return FrameRange{First: math.Min(f.First, o.First), Last: math.Max(f.Last, o.Last)}
}

func (f FrameRange) Intersect(o FrameRange) FrameRange {
	return FrameRange{First: math.Max(f.First, o.First), Last: math.Min(f.Last, o.Last)}
}

func (f FrameRange) String() string {
	return fmt.Sprintf("[%g,%g]", f.First, f.Last)
}

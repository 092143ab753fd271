// Copyright 2026, Square, Inc.

// Package pixel provides the pixel buffers produced by a render.
//
// A Buffer holds one plane over a pixel rectangle. Samples are stored as
// interleaved float32 whatever the bit depth; integer depths are quantized on
// write so that a buffer's content is exactly what its depth can represent.
// Buffers handed out by a render or the cache are shared and must be treated
// as read-only.
package pixel

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/proto"
)

// Bytes per sample for each depth, used to check allocations against a limit.
var bytesPerSample = map[proto.BitDepth]int64{
	proto.BITDEPTH_BYTE:  1,
	proto.BITDEPTH_SHORT: 2,
	proto.BITDEPTH_HALF:  2,
	proto.BITDEPTH_FLOAT: 4,
}

type Buffer struct {
	Plane  proto.Components
	Depth  proto.BitDepth
	Bounds proto.RectI
	Data   []float32 // len = Bounds.Area() * Plane.Count()
}

// An Allocator makes buffers, refusing any buffer larger than Limit bytes.
// A zero Limit means no limit.
type Allocator struct {
	Limit int64
}

// Size returns the number of bytes a buffer of plane c at depth d over r takes.
func Size(c proto.Components, d proto.BitDepth, r proto.RectI) int64 {
	bps, ok := bytesPerSample[d]
	if !ok {
		bps = 4
	}
	return int64(r.Area()) * int64(c.Count()) * bps
}

// New makes a zero-filled buffer. node is only used to report errors.
func (a Allocator) New(node string, c proto.Components, d proto.BitDepth, r proto.RectI) (*Buffer, error) {
	if a.Limit > 0 {
		if n := Size(c, d, r); n > a.Limit {
			return nil, rerr.OutOfMemory{Node: node, Bytes: n, Limit: a.Limit}
		}
	}
	return NewBuffer(c, d, r), nil
}

// NewBuffer makes a zero-filled buffer without a size limit.
func NewBuffer(c proto.Components, d proto.BitDepth, r proto.RectI) *Buffer {
	if r.IsEmpty() {
		r = proto.RectI{}
	}
	return &Buffer{
		Plane:  c,
		Depth:  d,
		Bounds: r,
		Data:   make([]float32, r.Area()*c.Count()),
	}
}

// IsEmpty is true for a buffer with no pixels, the explicit empty result.
func (b *Buffer) IsEmpty() bool {
	return b == nil || b.Bounds.IsEmpty()
}

// NComps returns the number of channels per pixel.
func (b *Buffer) NComps() int {
	return b.Plane.Count()
}

// Offset returns the index of the first sample of pixel x,y. The pixel must
// be inside Bounds.
func (b *Buffer) Offset(x, y int) int {
	return ((y-b.Bounds.Y1)*b.Bounds.Width() + (x - b.Bounds.X1)) * b.NComps()
}

// At returns channel ch of pixel x,y, or 0 outside Bounds.
func (b *Buffer) At(x, y, ch int) float32 {
	if !b.Bounds.Contains(x, y) || ch < 0 || ch >= b.NComps() {
		return 0
	}
	return b.Data[b.Offset(x, y)+ch]
}

// Set sets channel ch of pixel x,y, quantizing to the buffer depth. Writes
// outside Bounds are ignored.
func (b *Buffer) Set(x, y, ch int, v float32) {
	if !b.Bounds.Contains(x, y) || ch < 0 || ch >= b.NComps() {
		return
	}
	b.Data[b.Offset(x, y)+ch] = Quantize(b.Depth, v)
}

// Fill sets every pixel to the values in px (one per channel).
func (b *Buffer) Fill(px []float32) {
	n := b.NComps()
	q := make([]float32, n)
	for c := 0; c < n && c < len(px); c++ {
		q[c] = Quantize(b.Depth, px[c])
	}
	for i := 0; i < len(b.Data); i += n {
		copy(b.Data[i:i+n], q)
	}
}

// CopyFrom copies the overlap of src into b, channel by channel for the
// channels both planes share by name.
func (b *Buffer) CopyFrom(src *Buffer) {
	if src.IsEmpty() || b.IsEmpty() {
		return
	}
	r := b.Bounds.Intersect(src.Bounds)
	if r.IsEmpty() {
		return
	}
	if src.Plane == b.Plane && src.Depth == b.Depth {
		w := r.Width() * b.NComps()
		for y := r.Y1; y < r.Y2; y++ {
			copy(b.Data[b.Offset(r.X1, y):b.Offset(r.X1, y)+w], src.Data[src.Offset(r.X1, y):src.Offset(r.X1, y)+w])
		}
		return
	}
	for dc := 0; dc < b.NComps(); dc++ {
		sc := src.Plane.Index(b.Plane.Channels[dc])
		if sc < 0 {
			continue
		}
		for y := r.Y1; y < r.Y2; y++ {
			for x := r.X1; x < r.X2; x++ {
				b.Set(x, y, dc, src.Data[src.Offset(x, y)+sc])
			}
		}
	}
}

// Crop returns a new buffer with the pixels of b inside r.
func (b *Buffer) Crop(r proto.RectI) *Buffer {
	out := NewBuffer(b.Plane, b.Depth, b.Bounds.Intersect(r))
	out.CopyFrom(b)
	return out
}

// Equal returns true if a and b have the same plane, depth, bounds and
// bit-identical samples.
func Equal(a, b *Buffer) bool {
	if a.IsEmpty() || b.IsEmpty() {
		return a.IsEmpty() == b.IsEmpty()
	}
	if a.Plane != b.Plane || a.Depth != b.Depth || a.Bounds != b.Bounds || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Data {
		if math.Float32bits(a.Data[i]) != math.Float32bits(b.Data[i]) {
			return false
		}
	}
	return true
}

// Checksum returns an FNV-1a digest of the buffer header and samples. Equal
// buffers have equal checksums.
func (b *Buffer) Checksum() uint64 {
	h := fnv.New64a()
	if b.IsEmpty() {
		return h.Sum64()
	}
	h.Write([]byte(b.Plane.String()))
	var buf [4]byte
	for _, v := range []int{int(b.Depth), b.Bounds.X1, b.Bounds.Y1, b.Bounds.X2, b.Bounds.Y2} {
		binary.LittleEndian.PutUint32(buf[:], uint32(v))
		h.Write(buf[:])
	}
	for _, v := range b.Data {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// Quantize rounds v to the nearest value representable at depth d. Integer
// depths are clamped to [0, 1].
func Quantize(d proto.BitDepth, v float32) float32 {
	levels := d.Levels()
	if levels == 0 {
		if d == proto.BITDEPTH_HALF {
			return toHalf(v)
		}
		return v
	}
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return float32(math.Floor(float64(v*levels)+0.5)) / levels
}

// toHalf rounds v to the nearest IEEE 754 half precision value (10 bits of
// mantissa). Out of range values saturate to +-65504. Half subnormals are
// not modelled.
func toHalf(v float32) float32 {
	if v != v || v == 0 {
		return v
	}
	const maxHalf = 65504
	if v > maxHalf {
		return maxHalf
	}
	if v < -maxHalf {
		return -maxHalf
	}
	bits := math.Float32bits(v)
	// Drop the 13 low mantissa bits with round-to-nearest.
	bits = (bits + 0x1000) &^ 0x1fff
	return math.Float32frombits(bits)
}

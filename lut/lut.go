// Copyright 2026, Square, Inc.

// Package lut provides colorspace transform tables used to map linear samples
// to display values. Tables are built once at init and are immutable, so one
// table is shared by every concurrent render.
package lut

import (
	"fmt"
	"math"

	"github.com/square/rendergraph/proto"
)

// Number of entries sampling the linear [0, 1] range. 12 bits is more than
// enough for 8-bit output and close enough for float output with interpolation.
const tableSize = 4096

// A Table maps linear values to a display colorspace and back. All lookups are
// monotonic non-decreasing.
type Table struct {
	cs       proto.Colorspace
	toDisp   [tableSize]float32 // linear [0,1] -> display [0,1]
	toByte   [tableSize]uint8   // linear [0,1] -> display byte
	fromByte [256]float32       // display byte -> linear
	linear   bool
}

var tables = map[proto.Colorspace]*Table{}

func init() {
	tables[proto.COLORSPACE_LINEAR] = build(proto.COLORSPACE_LINEAR, func(v float64) float64 { return v }, func(v float64) float64 { return v })
	tables[proto.COLORSPACE_SRGB] = build(proto.COLORSPACE_SRGB, srgbEncode, srgbDecode)
	tables[proto.COLORSPACE_REC709] = build(proto.COLORSPACE_REC709, rec709Encode, rec709Decode)
}

// For returns the shared table for colorspace cs.
func For(cs proto.Colorspace) (*Table, error) {
	t, ok := tables[cs]
	if !ok {
		return nil, fmt.Errorf("no lookup table for colorspace %d", cs)
	}
	return t, nil
}

// ForName returns the shared table for a colorspace name like "sRGB".
func ForName(name string) (*Table, error) {
	cs, ok := proto.ColorspaceValue[name]
	if !ok {
		return nil, fmt.Errorf("unknown colorspace %q", name)
	}
	return For(cs)
}

func build(cs proto.Colorspace, encode, decode func(float64) float64) *Table {
	t := &Table{cs: cs, linear: cs == proto.COLORSPACE_LINEAR}
	for i := 0; i < tableSize; i++ {
		d := encode(float64(i) / (tableSize - 1))
		t.toDisp[i] = float32(d)
		t.toByte[i] = clampByte(d*255 + 0.5)
	}
	for i := 0; i < 256; i++ {
		t.fromByte[i] = float32(decode(float64(i) / 255))
	}
	return t
}

func (t *Table) Colorspace() proto.Colorspace {
	return t.cs
}

// IsLinear is true for the identity table.
func (t *Table) IsLinear() bool {
	return t.linear
}

// ToDisplay maps a linear sample to the display colorspace. The linear table
// passes values through unchanged, other tables clamp to [0, 1] and
// interpolate between entries.
func (t *Table) ToDisplay(v float32) float32 {
	if t.linear {
		return v
	}
	if v <= 0 || v != v { // NaN sorts as black
		return t.toDisp[0]
	}
	if v >= 1 {
		return t.toDisp[tableSize-1]
	}
	f := v * (tableSize - 1)
	i := int(f)
	if i >= tableSize-1 {
		return t.toDisp[tableSize-1]
	}
	frac := f - float32(i)
	return t.toDisp[i] + (t.toDisp[i+1]-t.toDisp[i])*frac
}

// ToDisplayByte maps a linear sample to an 8-bit display value.
func (t *Table) ToDisplayByte(v float32) uint8 {
	if v <= 0 || v != v {
		return t.toByte[0]
	}
	if v >= 1 {
		return t.toByte[tableSize-1]
	}
	return t.toByte[int(v*(tableSize-1)+0.5)]
}

// FromDisplayByte maps an 8-bit display value back to linear.
func (t *Table) FromDisplayByte(b uint8) float32 {
	return t.fromByte[b]
}

// --------------------------------------------------------------------------

func srgbEncode(v float64) float64 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

func srgbDecode(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

func rec709Encode(v float64) float64 {
	if v < 0.018 {
		return v * 4.5
	}
	return 1.099*math.Pow(v, 0.45) - 0.099
}

func rec709Decode(v float64) float64 {
	if v < 0.081 {
		return v / 4.5
	}
	return math.Pow((v+0.099)/1.099, 1/0.45)
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

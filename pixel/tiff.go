// Copyright 2026, Square, Inc.

package pixel

import (
	"image"
	"image/color"
	"io"

	"golang.org/x/image/tiff"

	"github.com/square/rendergraph/proto"
)

// Image converts b to an image.Image: 8-bit buffers become image.NRGBA (or
// image.Gray for one channel), other depths 16-bit image.NRGBA64 (or
// image.Gray16). Rows are flipped because buffers are y-up. Float samples
// are clamped to [0, 1].
func (b *Buffer) Image() image.Image {
	w, h := b.Bounds.Width(), b.Bounds.Height()
	rect := image.Rect(0, 0, w, h)
	n := b.NComps()
	deep := b.Depth != proto.BITDEPTH_BYTE

	switch {
	case n == 1 && deep:
		img := image.NewGray16(rect)
		b.each(func(x, y int, px []float32) {
			img.SetGray16(x, h-1-y, color.Gray16{Y: to16(px[0])})
		})
		return img
	case n == 1:
		img := image.NewGray(rect)
		b.each(func(x, y int, px []float32) {
			img.SetGray(x, h-1-y, color.Gray{Y: to8(px[0])})
		})
		return img
	case deep:
		img := image.NewNRGBA64(rect)
		b.each(func(x, y int, px []float32) {
			r, g, bl, a := rgba(px)
			img.SetNRGBA64(x, h-1-y, color.NRGBA64{R: to16(r), G: to16(g), B: to16(bl), A: to16(a)})
		})
		return img
	default:
		img := image.NewNRGBA(rect)
		b.each(func(x, y int, px []float32) {
			r, g, bl, a := rgba(px)
			img.SetNRGBA(x, h-1-y, color.NRGBA{R: to8(r), G: to8(g), B: to8(bl), A: to8(a)})
		})
		return img
	}
}

// EncodeTIFF writes b as a deflate-compressed TIFF.
func (b *Buffer) EncodeTIFF(w io.Writer) error {
	return tiff.Encode(w, b.Image(), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// each calls fn with image-relative coordinates (0,0 is the first pixel of
// Bounds) and the samples of every pixel.
func (b *Buffer) each(fn func(x, y int, px []float32)) {
	n := b.NComps()
	for y := b.Bounds.Y1; y < b.Bounds.Y2; y++ {
		for x := b.Bounds.X1; x < b.Bounds.X2; x++ {
			i := b.Offset(x, y)
			fn(x-b.Bounds.X1, y-b.Bounds.Y1, b.Data[i:i+n])
		}
	}
}

func rgba(px []float32) (r, g, b, a float32) {
	a = 1
	switch len(px) {
	case 2:
		r, g = px[0], px[1]
	case 3:
		r, g, b = px[0], px[1], px[2]
	case 4:
		r, g, b, a = px[0], px[1], px[2], px[3]
	}
	return
}

func to8(v float32) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func to16(v float32) uint16 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 1 {
		return 65535
	}
	return uint16(v*65535 + 0.5)
}

// Copyright 2026, Square, Inc.

package render

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/fnv"
	"math"
	"sort"

	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/proto"
)

// Key is a cache key: a digest of everything that determines the pixels a
// node produces for a sub-request. Keys are stable across requests and
// processes: the same topology, params and upstream keys always make the
// same key.
type Key uint64

func (k Key) String() string {
	return fmt.Sprintf("%016x", uint64(k))
}

// emptyKey is the key of an explicitly empty result.
var emptyKey = Key(fnv64("empty"))

func fnv64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// accumulator builds a Key incrementally. Every value is written with a fixed
// width, little-endian, and strings are length-prefixed, so that different
// sequences of values never write the same bytes.
type accumulator struct {
	h   hash.Hash64
	buf [8]byte
}

func newAccumulator() *accumulator {
	return &accumulator{h: fnv.New64a()}
}

// Write lets nodes append private state (node.Hasher).
func (a *accumulator) Write(p []byte) (int, error) {
	a.u64(uint64(len(p)))
	return a.h.Write(p)
}

func (a *accumulator) u64(v uint64) {
	binary.LittleEndian.PutUint64(a.buf[:], v)
	a.h.Write(a.buf[:])
}

func (a *accumulator) i64(v int64) { a.u64(uint64(v)) }

func (a *accumulator) f64(v float64) { a.u64(math.Float64bits(v)) }

func (a *accumulator) str(s string) {
	a.u64(uint64(len(s)))
	a.h.Write([]byte(s))
}

func (a *accumulator) planes(cs []proto.Components) {
	a.u64(uint64(len(cs)))
	for _, c := range cs {
		a.str(c.String())
	}
}

func (a *accumulator) rect(r proto.RectI) {
	a.i64(int64(r.X1))
	a.i64(int64(r.Y1))
	a.i64(int64(r.X2))
	a.i64(int64(r.Y2))
}

func (a *accumulator) sum() Key {
	return Key(a.h.Sum64())
}

// inputKey is the key of the output of one consumed input.
type inputKey struct {
	input int
	key   Key
}

// hashArgs is what appendToHash digests besides the vertex.
type hashArgs struct {
	time      proto.Time
	view      proto.ViewIdx
	scale     proto.RenderScale
	region    proto.RectI
	depth     proto.BitDepth
	inputs    []inputKey // consumed inputs only
	terminal  bool
	selection *node.Selection
}

// appendToHash appends the state of a node for one sub-request to acc:
// topology identity, the param digest sampled at the time, private node
// state, the keys of the consumed inputs sorted by input index, then time,
// view, scale, region and depth.
func appendToHash(acc *accumulator, v *graph.Vertex, args hashArgs) {
	acc.str(v.Node.Name())
	acc.str(v.Node.Type())

	acc.u64(v.Params.Digest(args.time))
	acc.u64(v.Params.MetadataDigest())
	if h, ok := v.Node.(node.Hasher); ok {
		h.AppendHash(acc, v.Params, args.time)
	}

	inputs := append([]inputKey(nil), args.inputs...)
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].input < inputs[j].input })
	acc.u64(uint64(len(inputs)))
	for _, in := range inputs {
		acc.i64(int64(in.input))
		acc.u64(uint64(in.key))
	}

	acc.f64(float64(args.time))
	acc.i64(int64(args.view))
	scale := args.scale.Normalized()
	acc.f64(scale.X)
	acc.f64(scale.Y)
	acc.rect(args.region)
	acc.u64(uint64(args.depth))

	if args.terminal {
		acc.u64(1)
	} else {
		acc.u64(0)
	}
	if s := args.selection; s != nil {
		acc.str(s.ColorLayer.String())
		acc.str(s.AlphaLayer.String())
		acc.i64(int64(s.AlphaChannel))
		acc.u64(uint64(s.Channels))
	}
}

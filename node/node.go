// Copyright 2026, Square, Inc.

// Package node provides the interface implemented by every processing node.
//
// A node is a polymorphic processing unit: it declares its inputs, the bit
// depths and planes it can produce and its capabilities, and implements four
// routines used by a render: Metadata, IsIdentity, Components and Render.
// Nodes never hold a reference to the graph they belong to. Everything a
// routine needs (params, upstream metadata, input pixels) is passed in its
// args struct.
//
// Node methods are called concurrently by many renders. A node must not
// mutate its own state from any of them; its state is its params, which are
// owned by the graph and passed in as an immutable param.Snapshot. The layer
// menu of a display node is not node state: the engine refreshes it after a
// render of that node completes, never while one is evaluated.
package node

import (
	"context"
	"errors"
	"io"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

// PassThrough classifies what a render does with requested planes a node
// does not produce itself.
type PassThrough byte

const (
	// Planes the node does not produce are fetched unchanged from the
	// pass-through input.
	PASS_THROUGH_NON_RENDERED_PLANES PassThrough = iota

	// Planes the node does not produce are returned zero-filled.
	BLOCK_NON_RENDERED_PLANES

	// The node renders every requested plane itself.
	RENDER_ALL_REQUESTED_PLANES
)

var PassThroughName = map[PassThrough]string{
	PASS_THROUGH_NON_RENDERED_PLANES: "PassThroughNonRenderedPlanes",
	BLOCK_NON_RENDERED_PLANES:        "BlockNonRenderedPlanes",
	RENDER_ALL_REQUESTED_PLANES:      "RenderAllRequestedPlanes",
}

// FrameRangePolicy is how a node's frame range derives from its inputs.
type FrameRangePolicy byte

const (
	FRAMES_UNION     FrameRangePolicy = iota // union of the connected inputs
	FRAMES_INTERSECT                         // intersection of the connected inputs
	FRAMES_DECLARED                          // set by the node's Metadata hook
)

// Capabilities are static flags a render uses to plan the work of a node.
type Capabilities struct {
	SupportsTiles    bool // can render any sub-region of its format
	MultiPlanar      bool // renders all planes in one call
	PassThrough      PassThrough
	PassThroughInput int // input non-rendered planes are fetched from
	FrameRange       FrameRangePolicy
}

// Metadata is the time-invariant description of a node's output.
type Metadata struct {
	BitDepth    proto.BitDepth
	PixelAspect float64
	FrameRange  proto.FrameRange
	Format      proto.RectD           // canonical coordinates
	Components  []proto.Components    // planes available at the output, sorted
	Accepted    []proto.ComponentsSet // per input
}

// HasPlane returns true if plane c is available at the output.
func (m *Metadata) HasPlane(c proto.Components) bool {
	for _, o := range m.Components {
		if o == c {
			return true
		}
	}
	return false
}

// Proto returns the metadata of node name as reported by the render server.
func (m *Metadata) Proto(name string) proto.NodeMetadata {
	return proto.NodeMetadata{
		Node:        name,
		BitDepth:    m.BitDepth.String(),
		PixelAspect: m.PixelAspect,
		FrameRange:  m.FrameRange.String(),
		Format:      m.Format,
		Planes:      m.Components,
	}
}

// Layer returns the first available plane of the given layer.
func (m *Metadata) Layer(layer string) (proto.Components, bool) {
	for _, o := range m.Components {
		if o.Layer == layer {
			return o, true
		}
	}
	return proto.COMPONENTS_NONE, false
}

// ------------------------------------------------------------------------- //

// MetadataArgs are passed to Node.Metadata. Default is the metadata a render
// computed from the node's declarations and its inputs. Inputs is indexed by
// input; disconnected optional inputs and dropped optional branches are nil.
// There is no time or view: metadata is the same at every time.
type MetadataArgs struct {
	Params  param.Snapshot
	Inputs  []*Metadata
	Default Metadata
}

// IdentityArgs are passed to Node.IsIdentity.
type IdentityArgs struct {
	Params    param.Snapshot
	Time      proto.Time
	View      proto.ViewIdx
	Scale     proto.RenderScale
	RoI       proto.RectI // pixel coordinates at Scale
	Metadata  *Metadata
	Connected []bool // per input
	Terminal  bool   // node is the requested node of the render
}

// Identity is the result of Node.IsIdentity. When IsIdentity is true, the
// output of the node equals the output of input Input at Time and View.
type Identity struct {
	IsIdentity bool
	Input      int
	Time       proto.Time
	View       proto.ViewIdx
}

// NotIdentity is returned by nodes that must render.
var NotIdentity = Identity{Input: -1}

// ComponentsArgs are passed to Node.Components.
type ComponentsArgs struct {
	Params      param.Snapshot
	Time        proto.Time
	View        proto.ViewIdx
	Planes      []proto.Components // requested
	Metadata    *Metadata
	InputPlanes [][]proto.Components // planes available per input, nil if disconnected or dropped
	Selection   *Selection           // terminal display nodes only
}

// Needs is the result of Node.Components: which of the requested planes the
// node produces itself and which planes it reads from each input to produce
// them. Inputs that are not in the map are not read.
type Needs struct {
	Produced []proto.Components
	Inputs   map[int][]proto.Components
}

// RenderArgs are passed to Node.Render.
type RenderArgs struct {
	Params param.Snapshot
	Time   proto.Time
	View   proto.ViewIdx
	Scale  proto.RenderScale

	// Window is the pixel region to fill. Nodes that do not support tiles
	// always get their whole format.
	Window proto.RectI

	// Outputs are allocated by the render, one per plane to produce in this
	// call: every produced plane for multi-planar nodes, one otherwise.
	Outputs []*pixel.Buffer

	// Inputs are the planes fetched per input, as asked for by Needs. A
	// plane that is not available is nil.
	Inputs map[int][]*pixel.Buffer

	Metadata  *Metadata
	Selection *Selection
}

// Input returns plane c of input n, or nil.
func (a RenderArgs) Input(n int, c proto.Components) *pixel.Buffer {
	for _, b := range a.Inputs[n] {
		if b != nil && b.Plane == c {
			return b
		}
	}
	return nil
}

// InputLayer returns the first plane of input n in the given layer, or nil.
func (a RenderArgs) InputLayer(n int, layer string) *pixel.Buffer {
	for _, b := range a.Inputs[n] {
		if b != nil && b.Plane.Layer == layer {
			return b
		}
	}
	return nil
}

// ------------------------------------------------------------------------- //

// Node is a processing node. Every input-indexed method returns an
// errors.InputOutOfRange for n outside [0, MaxInputs()).
type Node interface {
	Name() string
	Type() string

	MaxInputs() int
	InputLabel(n int) (string, error)
	IsInputOptional(n int) (bool, error)
	AcceptedComponents(n int) (proto.ComponentsSet, error)

	// SupportedBitDepths returns the depths the node can render at, from
	// narrowest to deepest.
	SupportedBitDepths() []proto.BitDepth
	Capabilities() Capabilities

	// Metadata can override the metadata computed by the render.
	Metadata(MetadataArgs) (Metadata, error)

	// IsIdentity reports if the output equals one input, possibly at another
	// time or view.
	IsIdentity(IdentityArgs) (Identity, error)

	// Components reports the planes the node produces and those it reads.
	Components(ComponentsArgs) (Needs, error)

	// Render fills args.Outputs over args.Window.
	Render(ctx context.Context, args RenderArgs) error
}

// A Hasher is a node with private state that affects its output and is not
// in its params. AppendHash writes that state to w; it is part of the node's
// cache key.
type Hasher interface {
	AppendHash(w io.Writer, p param.Snapshot, t proto.Time)
}

// ------------------------------------------------------------------------- //

// Input declares one input of a node.
type Input struct {
	Label    string
	Optional bool
	Accepted proto.ComponentsSet
}

// Base implements the declarative part of Node and default routines. Node
// variants embed it and implement Render.
type Base struct {
	NodeName string
	NodeType string
	Inputs   []Input
	Depths   []proto.BitDepth
	Caps     Capabilities

	// Planes the node produces. Nil means every requested plane that is
	// available at the output.
	Planes []proto.Components
}

func (b *Base) Name() string { return b.NodeName }
func (b *Base) Type() string { return b.NodeType }

func (b *Base) MaxInputs() int { return len(b.Inputs) }

func (b *Base) input(n int) (Input, error) {
	if n < 0 || n >= len(b.Inputs) {
		return Input{}, rerr.InputOutOfRange{Node: b.NodeName, Input: n, Max: len(b.Inputs)}
	}
	return b.Inputs[n], nil
}

func (b *Base) InputLabel(n int) (string, error) {
	in, err := b.input(n)
	return in.Label, err
}

func (b *Base) IsInputOptional(n int) (bool, error) {
	in, err := b.input(n)
	return in.Optional, err
}

func (b *Base) AcceptedComponents(n int) (proto.ComponentsSet, error) {
	in, err := b.input(n)
	return in.Accepted, err
}

func (b *Base) SupportedBitDepths() []proto.BitDepth { return b.Depths }

func (b *Base) Capabilities() Capabilities { return b.Caps }

func (b *Base) Metadata(args MetadataArgs) (Metadata, error) {
	return args.Default, nil
}

func (b *Base) IsIdentity(args IdentityArgs) (Identity, error) {
	return NotIdentity, nil
}

// Components returns the default needs: the node produces the requested
// planes in Planes (all requested planes available at the output if Planes
// is nil) and reads the same planes from every input that has them.
func (b *Base) Components(args ComponentsArgs) (Needs, error) {
	needs := Needs{Inputs: map[int][]proto.Components{}}
	for _, c := range args.Planes {
		if b.produces(c, args.Metadata) {
			needs.Produced = append(needs.Produced, c)
		}
	}
	for n, avail := range args.InputPlanes {
		if avail == nil {
			continue
		}
		var read []proto.Components
		for _, c := range needs.Produced {
			if contains(avail, c) {
				read = append(read, c)
			}
		}
		if len(read) > 0 {
			needs.Inputs[n] = read
		}
	}
	return needs, nil
}

func (b *Base) produces(c proto.Components, md *Metadata) bool {
	if b.Planes == nil {
		return md == nil || md.HasPlane(c)
	}
	return contains(b.Planes, c)
}

func contains(cs []proto.Components, c proto.Components) bool {
	for _, o := range cs {
		if o == c {
			return true
		}
	}
	return false
}

// ALL_DEPTHS is every bit depth, narrowest to deepest.
var ALL_DEPTHS = []proto.BitDepth{
	proto.BITDEPTH_BYTE,
	proto.BITDEPTH_SHORT,
	proto.BITDEPTH_HALF,
	proto.BITDEPTH_FLOAT,
}

var ErrUnknownNodeType = errors.New("unknown node type")

// A Factory instantiates a node of the given type with its default params.
// If the type is unknown, ErrUnknownNodeType is returned.
type Factory interface {
	Make(nodeType, nodeName string) (Node, *param.Set, error)
}

// Copyright 2026, Square, Inc.

package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/proto"
)

var (
	ErrRender = errors.New("forced error in render")
)

// Node is a configurable node.Node. Each routine calls its Func if set, else
// the node.Base default. Render fills every output with Fill by default.
type Node struct {
	node.Base
	Fill []float32

	MetadataFunc   func(node.MetadataArgs) (node.Metadata, error)
	IsIdentityFunc func(node.IdentityArgs) (node.Identity, error)
	ComponentsFunc func(node.ComponentsArgs) (node.Needs, error)
	RenderFunc     func(context.Context, node.RenderArgs) error

	// --
	renders     int
	windows     []proto.RectI
	*sync.Mutex // guards renders and windows
}

// NewNode makes a mock node with n mandatory inputs that accept every plane.
// It supports tiles, is multi-planar, renders at every depth and produces
// every requested plane available at its output.
func NewNode(name string, n int) *Node {
	inputs := make([]node.Input, n)
	for i := range inputs {
		inputs[i] = node.Input{Label: string(rune('A' + i)), Accepted: proto.ACCEPT_ALL}
	}
	return &Node{
		Base: node.Base{
			NodeName: name,
			NodeType: "mock",
			Inputs:   inputs,
			Depths:   node.ALL_DEPTHS,
			Caps: node.Capabilities{
				SupportsTiles: true,
				MultiPlanar:   true,
			},
		},
		Fill:  []float32{0.5, 0.25, 0.125, 1},
		Mutex: &sync.Mutex{},
	}
}

// Generator returns a mock node with no inputs producing Color.RGBA over
// format.
func Generator(name string, format proto.RectD) *Node {
	n := NewNode(name, 0)
	n.Caps.PassThrough = node.BLOCK_NON_RENDERED_PLANES
	n.MetadataFunc = func(args node.MetadataArgs) (node.Metadata, error) {
		md := args.Default
		md.Format = format
		md.Components = []proto.Components{proto.COMPONENTS_RGBA}
		return md, nil
	}
	return n
}

func (n *Node) Metadata(args node.MetadataArgs) (node.Metadata, error) {
	if n.MetadataFunc != nil {
		return n.MetadataFunc(args)
	}
	return n.Base.Metadata(args)
}

func (n *Node) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	if n.IsIdentityFunc != nil {
		return n.IsIdentityFunc(args)
	}
	return n.Base.IsIdentity(args)
}

func (n *Node) Components(args node.ComponentsArgs) (node.Needs, error) {
	if n.ComponentsFunc != nil {
		return n.ComponentsFunc(args)
	}
	return n.Base.Components(args)
}

func (n *Node) Render(ctx context.Context, args node.RenderArgs) error {
	n.Lock()
	n.renders++
	n.windows = append(n.windows, args.Window)
	n.Unlock()
	if n.RenderFunc != nil {
		return n.RenderFunc(ctx, args)
	}
	for _, out := range args.Outputs {
		out.Fill(n.Fill)
	}
	return nil
}

// Renders returns the number of Render calls.
func (n *Node) Renders() int {
	n.Lock()
	defer n.Unlock()
	return n.renders
}

// Windows returns the window of every Render call.
func (n *Node) Windows() []proto.RectI {
	n.Lock()
	defer n.Unlock()
	return append([]proto.RectI(nil), n.windows...)
}

// Copyright 2026, Square, Inc.

package nodes

import (
	"context"
	"fmt"
	"sync/atomic"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// layerMenu is the list of layers a viewer offers to choose from.
type layerMenu struct {
	layers atomic.Pointer[[]proto.Components]
}

// Viewer is the display node. When it is the requested node of a render, it
// shows the selected layer and alpha channel of its input through the display
// pipeline; otherwise it is its input.
type Viewer struct {
	node.Base
	menu      *layerMenu
	refresh   atomic.Bool
	refreshes atomic.Uint64
}

var _ node.Display = &Viewer{}

// NewViewer makes a standalone viewer. It refreshes its layer menu.
func NewViewer(name string) (*Viewer, *param.Set) {
	return newViewer(name, &layerMenu{}), viewerParams()
}

func newViewer(name string, menu *layerMenu) *Viewer {
	v := &Viewer{
		Base: node.Base{
			NodeName: name,
			NodeType: "viewer",
			Inputs:   []node.Input{{Label: "Source", Optional: true, Accepted: proto.ACCEPT_ALL}},
			Depths:   []proto.BitDepth{proto.BITDEPTH_BYTE, proto.BITDEPTH_FLOAT},
			Caps: node.Capabilities{
				SupportsTiles: true,
				MultiPlanar:   true,
				PassThrough:   node.RENDER_ALL_REQUESTED_PLANES,
			},
		},
		menu: menu,
	}
	v.refresh.Store(true)
	return v
}

func viewerParams() *param.Set {
	return newParams(
		param.String("outputLayer", "Color"),
		param.String("alphaChannel", "Color.A"),
		param.String("displayChannels", "RGB"),
		param.Float("gain", 0),
		param.Float("gamma", 1),
		param.Bool("autoContrast", false),
		param.String("deviceColorspace", "sRGB").Metadata(),
	)
}

// Metadata adds Color.RGBA, the display plane, to the upstream planes. The
// depth is 32-bit float for a linear display, 8-bit otherwise.
func (v *Viewer) Metadata(args node.MetadataArgs) (node.Metadata, error) {
	md := args.Default
	md.Components = addPlane(md.Components, proto.COMPONENTS_RGBA)
	cs, ok := proto.ColorspaceValue[args.Params.String("deviceColorspace")]
	if !ok {
		reason := fmt.Sprintf("invalid deviceColorspace %q", args.Params.String("deviceColorspace"))
		return md, rerr.MetadataUnavailable{Node: v.NodeName, Input: -1, Reason: reason}
	}
	md.BitDepth = proto.BITDEPTH_BYTE
	if cs == proto.COLORSPACE_LINEAR {
		md.BitDepth = proto.BITDEPTH_FLOAT
	}
	return md, nil
}

func (v *Viewer) IsIdentity(args node.IdentityArgs) (node.Identity, error) {
	connected := len(args.Connected) > 0 && args.Connected[0]
	if !args.Terminal && connected {
		return node.Identity{IsIdentity: true, Input: 0, Time: args.Time, View: args.View}, nil
	}
	return node.NotIdentity, nil
}

func (v *Viewer) Components(args node.ComponentsArgs) (node.Needs, error) {
	needs := node.Needs{
		Produced: append([]proto.Components(nil), args.Planes...),
		Inputs:   map[int][]proto.Components{},
	}
	avail := inputPlanes(args, 0)
	if avail == nil {
		return needs, nil
	}
	var read []proto.Components
	if args.Selection != nil {
		for _, c := range args.Selection.Planes() {
			if hasPlane(avail, c) {
				read = append(read, c)
			}
		}
	}
	for _, c := range args.Planes {
		if c != proto.COMPONENTS_RGBA && hasPlane(avail, c) && !hasPlane(read, c) {
			read = append(read, c)
		}
	}
	if len(read) > 0 {
		needs.Inputs[0] = read
	}
	return needs, nil
}

// Render composes the display plane from the selected color layer and alpha
// channel: one channel layers are shown as gray, the alpha is 0 if no alpha is
// selected. Other requested planes are copied from the input.
func (v *Viewer) Render(ctx context.Context, args node.RenderArgs) error {
	for _, out := range args.Outputs {
		if out.Plane != proto.COMPONENTS_RGBA || args.Selection == nil {
			copyInput(args, 0, out)
			continue
		}
		sel := args.Selection
		color := args.Input(0, sel.ColorLayer)
		alpha := args.Input(0, sel.AlphaLayer)
		if !sel.HasAlpha() {
			alpha = nil
		}
		r := out.Bounds
		for y := r.Y1; y < r.Y2; y++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for x := r.X1; x < r.X2; x++ {
				if color != nil {
					n := color.NComps()
					for c := 0; c < 3; c++ {
						if n == 1 {
							out.Set(x, y, c, color.At(x, y, 0))
						} else if c < n {
							out.Set(x, y, c, color.At(x, y, c))
						}
					}
				}
				if alpha != nil {
					out.Set(x, y, 3, alpha.At(x, y, sel.AlphaChannel))
				}
			}
		}
	}
	return nil
}

func (v *Viewer) DisplaySettings(p param.Snapshot, t proto.Time) node.DisplaySettings {
	return node.DisplaySettings{
		OutputLayer:  p.String("outputLayer"),
		AlphaChannel: p.String("alphaChannel"),
		Channels:     proto.DisplayChannelsValue[p.String("displayChannels")],
		Gain:         p.Float("gain", t),
		Gamma:        p.Float("gamma", t),
		AutoContrast: p.Bool("autoContrast"),
		Colorspace:   proto.ColorspaceValue[p.String("deviceColorspace")],
	}
}

// SetRefreshLayerAndAlphaChoiceEnabled enables or disables refreshing the
// layer menu from the layers available upstream.
func (v *Viewer) SetRefreshLayerAndAlphaChoiceEnabled(enabled bool) {
	v.refresh.Store(enabled)
}

func (v *Viewer) RefreshLayerAndAlphaChoiceEnabled() bool {
	return v.refresh.Load()
}

// RefreshLayerAndAlphaChoice sets the layer menu. It is a no-op if refresh is
// disabled.
func (v *Viewer) RefreshLayerAndAlphaChoice(layers []proto.Components) {
	if !v.refresh.Load() {
		return
	}
	cp := append([]proto.Components(nil), layers...)
	v.menu.layers.Store(&cp)
	v.refreshes.Add(1)
}

// LayerChoices returns the layer menu.
func (v *Viewer) LayerChoices() []proto.Components {
	p := v.menu.layers.Load()
	if p == nil {
		return nil
	}
	return append([]proto.Components(nil), (*p)...)
}

// Refreshes returns how many times this viewer refreshed the layer menu.
func (v *Viewer) Refreshes() uint64 {
	return v.refreshes.Load()
}

// ------------------------------------------------------------------------- //

// ViewerGroup is a viewer made of two cooperating viewer processes, A and B,
// for comparing two inputs. The processes share one param set, so one layer
// and alpha choice, and one layer menu. Only the authoritative process, A
// unless changed, refreshes the menu; the other reads it.
type ViewerGroup struct {
	name          string
	params        *param.Set
	menu          *layerMenu
	processes     [2]*Viewer
	authoritative atomic.Int32
}

var viewerProcessNames = [2]string{"A", "B"}

func NewViewerGroup(name string) *ViewerGroup {
	g := &ViewerGroup{
		name:   name,
		params: viewerParams(),
		menu:   &layerMenu{},
	}
	for i := range g.processes {
		g.processes[i] = newViewer(name+"."+viewerProcessNames[i], g.menu)
	}
	g.SetAuthoritative(0)
	return g
}

func (g *ViewerGroup) Name() string { return g.name }

// Params returns the param set shared by both processes.
func (g *ViewerGroup) Params() *param.Set { return g.params }

// Process returns process i: 0 is A, 1 is B.
func (g *ViewerGroup) Process(i int) *Viewer {
	return g.processes[i]
}

// SetAuthoritative makes process i the only one that refreshes the layer
// menu.
func (g *ViewerGroup) SetAuthoritative(i int) {
	g.authoritative.Store(int32(i))
	for j, p := range g.processes {
		p.SetRefreshLayerAndAlphaChoiceEnabled(j == i)
	}
}

func (g *ViewerGroup) Authoritative() int {
	return int(g.authoritative.Load())
}

// AddTo adds both processes to gr with the shared param set.
func (g *ViewerGroup) AddTo(gr *graph.Graph) error {
	for _, p := range g.processes {
		if err := gr.Add(p, g.params); err != nil {
			return err
		}
	}
	return nil
}

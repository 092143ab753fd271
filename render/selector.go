// Copyright 2026, Square, Inc.

package render

import (
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// resolveSelection returns the planes display node d shows at time t, given
// the planes available at its input.
//
// The color layer is the widest plane of the configured output layer. If
// that layer is not available, it falls back to the widest plane of the
// first available layer. The alpha channel is configured as "Layer.C"; if
// that layer or channel is not available there is no alpha.
func resolveSelection(d node.Display, p param.Snapshot, t proto.Time, available []proto.Components) node.Selection {
	s := d.DisplaySettings(p, t)
	sel := node.Selection{
		AlphaChannel: -1,
		Channels:     s.Channels,
	}

	if c, ok := widestPlane(available, s.OutputLayer); ok {
		sel.ColorLayer = c
	} else if len(available) > 0 {
		sel.ColorLayer, _ = widestPlane(available, available[0].Layer)
	}

	if a, err := proto.ParseComponents(s.AlphaChannel); err == nil && a.Count() == 1 {
		if c, ok := widestPlane(available, a.Layer); ok {
			if i := c.Index(a.Channels[0]); i >= 0 {
				sel.AlphaLayer = c
				sel.AlphaChannel = i
			}
		}
	}
	return sel
}

// refreshLayerMenu publishes the layers available at the input of d as its
// layer menu, if d is the node allowed to refresh it.
func refreshLayerMenu(d node.Display, available []proto.Components) bool {
	if !d.RefreshLayerAndAlphaChoiceEnabled() {
		return false
	}
	d.RefreshLayerAndAlphaChoice(available)
	return true
}

// refreshMenu refreshes the layer menu of the requested node of a render
// after it rendered. It runs once per render, outside node evaluation.
func (tc *treeContext) refreshMenu(sub subRequest) {
	p, err := tc.plan(sub)
	if err != nil || p.display == nil {
		return
	}
	if refreshLayerMenu(p.display, p.available) {
		tc.log.WithField("node", sub.node).Debugf("layer menu refreshed: %d layers", len(p.available))
	}
}

func widestPlane(planes []proto.Components, layer string) (proto.Components, bool) {
	var best proto.Components
	found := false
	for _, c := range planes {
		if c.Layer == layer && (!found || c.Count() > best.Count()) {
			best, found = c, true
		}
	}
	return best, found
}

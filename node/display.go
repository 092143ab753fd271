// Copyright 2026, Square, Inc.

package node

import (
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

// Selection is which upstream planes a display node shows. AlphaChannel is
// the index of the alpha channel in AlphaLayer, or -1 for no alpha.
type Selection struct {
	ColorLayer   proto.Components
	AlphaLayer   proto.Components
	AlphaChannel int
	Channels     proto.DisplayChannels
}

// HasAlpha is true if an alpha channel is selected.
func (s Selection) HasAlpha() bool {
	return s.AlphaChannel >= 0 && !s.AlphaLayer.IsNone()
}

// Planes returns the upstream planes the selection reads, without
// duplicates.
func (s Selection) Planes() []proto.Components {
	var planes []proto.Components
	if !s.ColorLayer.IsNone() {
		planes = append(planes, s.ColorLayer)
	}
	if s.HasAlpha() && s.AlphaLayer != s.ColorLayer {
		planes = append(planes, s.AlphaLayer)
	}
	return planes
}

// DisplaySettings are the display params of a display node sampled at a
// time. OutputLayer is a layer name, AlphaChannel is "Layer.C" or empty for
// no alpha.
type DisplaySettings struct {
	OutputLayer  string
	AlphaChannel string
	Channels     proto.DisplayChannels
	Gain         float64 // f-stops
	Gamma        float64
	AutoContrast bool
	Colorspace   proto.Colorspace
}

// A Display node is a terminal display: when it is the requested node of a
// render, its output goes through the channel/layer selection and the display
// pipeline (gain, auto-contrast, gamma, colorspace).
//
// A display node keeps the menu of layers a user can choose from. It is
// refreshed by renders from the layers available upstream, unless refresh is
// disabled. The menu is the only node state a render writes.
type Display interface {
	Node
	DisplaySettings(p param.Snapshot, t proto.Time) DisplaySettings

	SetRefreshLayerAndAlphaChoiceEnabled(enabled bool)
	RefreshLayerAndAlphaChoiceEnabled() bool
	RefreshLayerAndAlphaChoice(layers []proto.Components)
	LayerChoices() []proto.Components
}

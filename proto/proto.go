// Copyright 2026, Square, Inc.

// Package proto provides render value types, API message structures and constants.
package proto

import (
	"fmt"
	"strings"
	"time"
)

// Time is a frame time. Fractional times are valid (motion blur, retiming).
type Time float64

// ViewIdx identifies a view (eye) of a multi-view project. 0 is the main view.
type ViewIdx int

// ------------------------------------------------------------------------- //
// Bit depth
// ------------------------------------------------------------------------- //

// BitDepth is the storage depth of pixel samples. Depths are ordered from
// narrowest to deepest.
type BitDepth byte

const (
	BITDEPTH_NONE BitDepth = iota
	BITDEPTH_BYTE
	BITDEPTH_SHORT
	BITDEPTH_HALF
	BITDEPTH_FLOAT
)

var BitDepthName = map[BitDepth]string{
	BITDEPTH_NONE:  "none",
	BITDEPTH_BYTE:  "8u",
	BITDEPTH_SHORT: "16u",
	BITDEPTH_HALF:  "16f",
	BITDEPTH_FLOAT: "32f",
}

var BitDepthValue = map[string]BitDepth{
	"none": BITDEPTH_NONE,
	"8u":   BITDEPTH_BYTE,
	"16u":  BITDEPTH_SHORT,
	"16f":  BITDEPTH_HALF,
	"32f":  BITDEPTH_FLOAT,
}

func (d BitDepth) String() string {
	if s, ok := BitDepthName[d]; ok {
		return s
	}
	return fmt.Sprintf("bitdepth(%d)", byte(d))
}

// Levels returns the number of quantization levels minus one for integer
// depths (255, 65535), or 0 for floating point depths.
func (d BitDepth) Levels() float32 {
	switch d {
	case BITDEPTH_BYTE:
		return 255
	case BITDEPTH_SHORT:
		return 65535
	}
	return 0
}

// ------------------------------------------------------------------------- //
// Components (planes / layers)
// ------------------------------------------------------------------------- //

// Components is a named group of channels: a plane or layer. Each byte of
// Channels is one channel name, e.g. Layer "Color", Channels "RGBA".
type Components struct {
	Layer    string `json:"layer" yaml:"layer"`
	Channels string `json:"channels" yaml:"channels"`
}

var (
	COMPONENTS_NONE   = Components{}
	COMPONENTS_RGBA   = Components{Layer: "Color", Channels: "RGBA"}
	COMPONENTS_RGB    = Components{Layer: "Color", Channels: "RGB"}
	COMPONENTS_ALPHA  = Components{Layer: "Color", Channels: "A"}
	COMPONENTS_DEPTH  = Components{Layer: "Depth", Channels: "Z"}
	COMPONENTS_MOTION = Components{Layer: "Motion", Channels: "UV"}
)

// ParseComponents parses "Layer.Channels", e.g. "Color.RGBA" or "Depth.Z".
func ParseComponents(s string) (Components, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return Components{}, fmt.Errorf("invalid plane %q: expected Layer.Channels", s)
	}
	c := Components{Layer: s[:i], Channels: s[i+1:]}
	if c.Count() > 4 {
		return Components{}, fmt.Errorf("invalid plane %q: more than 4 channels", s)
	}
	return c, nil
}

func (c Components) String() string {
	if c.IsNone() {
		return "none"
	}
	return c.Layer + "." + c.Channels
}

// Count returns the number of channels.
func (c Components) Count() int {
	return len(c.Channels)
}

func (c Components) IsNone() bool {
	return c.Layer == "" && c.Channels == ""
}

// Index returns the index of channel ch, or -1 if the plane does not have it.
func (c Components) Index(ch byte) int {
	return strings.IndexByte(c.Channels, ch)
}

// IsColor is true for the Color layer, whatever its channel layout.
func (c Components) IsColor() bool {
	return c.Layer == COMPONENTS_RGBA.Layer
}

// SortComponents sorts planes by their string form so that plane sets have a
// deterministic order.
func SortComponents(cs []Components) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j].String() < cs[j-1].String(); j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}

// ComponentsSet is a bitset of accepted channel counts: bit N is set when
// planes with N+1 channels are accepted.
type ComponentsSet uint8

const (
	ACCEPT_1 ComponentsSet = 1 << iota // alpha / single channel
	ACCEPT_2                           // XY, UV
	ACCEPT_3                           // RGB
	ACCEPT_4                           // RGBA

	ACCEPT_NONE ComponentsSet = 0
	ACCEPT_ALL                = ACCEPT_1 | ACCEPT_2 | ACCEPT_3 | ACCEPT_4
)

// Accepts returns true if planes with the channel count of c are in the set.
func (s ComponentsSet) Accepts(c Components) bool {
	n := c.Count()
	if n < 1 || n > 4 {
		return false
	}
	return s&(1<<uint(n-1)) != 0
}

// ------------------------------------------------------------------------- //
// Display
// ------------------------------------------------------------------------- //

// DisplayChannels selects what a display node shows from the selected layer.
type DisplayChannels byte

const (
	DISPLAY_RGB DisplayChannels = iota
	DISPLAY_R
	DISPLAY_G
	DISPLAY_B
	DISPLAY_A
	DISPLAY_LUMINANCE
	DISPLAY_MATTE
)

var DisplayChannelsName = map[DisplayChannels]string{
	DISPLAY_RGB:       "RGB",
	DISPLAY_R:         "R",
	DISPLAY_G:         "G",
	DISPLAY_B:         "B",
	DISPLAY_A:         "A",
	DISPLAY_LUMINANCE: "Luminance",
	DISPLAY_MATTE:     "Matte",
}

var DisplayChannelsValue = map[string]DisplayChannels{
	"RGB":       DISPLAY_RGB,
	"R":         DISPLAY_R,
	"G":         DISPLAY_G,
	"B":         DISPLAY_B,
	"A":         DISPLAY_A,
	"Luminance": DISPLAY_LUMINANCE,
	"Matte":     DISPLAY_MATTE,
}

// Colorspace identifies a display colorspace.
type Colorspace byte

const (
	COLORSPACE_LINEAR Colorspace = iota
	COLORSPACE_SRGB
	COLORSPACE_REC709
)

var ColorspaceName = map[Colorspace]string{
	COLORSPACE_LINEAR: "Linear",
	COLORSPACE_SRGB:   "sRGB",
	COLORSPACE_REC709: "Rec.709",
}

var ColorspaceValue = map[string]Colorspace{
	"Linear":  COLORSPACE_LINEAR,
	"sRGB":    COLORSPACE_SRGB,
	"Rec.709": COLORSPACE_REC709,
}

// ------------------------------------------------------------------------- //
// Render requests and results
// ------------------------------------------------------------------------- //

// RenderRequest is what a viewer or render asks for. It is an immutable value:
// one request fans out into many per-node sub-requests during a walk.
type RenderRequest struct {
	Id     string       `json:"id,omitempty"`     // optional, generated if not set
	Node   string       `json:"node"`             // node to render
	Time   Time         `json:"time"`             // frame
	View   ViewIdx      `json:"view"`             // view index
	Scale  RenderScale  `json:"scale"`            // proxy/mipmap scale, zero means 1:1
	RoI    RectD        `json:"roi"`              // region of interest, canonical coordinates
	Planes []Components `json:"planes,omitempty"` // requested planes, default Color.RGBA
}

// NodeRenderStats are the counters of one node for one render.
type NodeRenderStats struct {
	Node               string        `json:"node"`
	Renders            uint          `json:"renders"`            // render action invocations
	IdentitySkips      uint          `json:"identitySkips"`      // evaluations short-circuited by identity
	CacheHits          uint          `json:"cacheHits"`          // evaluations served by the shared cache
	SharedWaits        uint          `json:"sharedWaits"`        // evaluations that reused another request's in-flight render
	PassThroughFetches uint          `json:"passThroughFetches"` // planes fetched from the pass-through input
	InputsDropped      uint          `json:"inputsDropped"`      // optional inputs dropped while rendering
	TimeSpent          time.Duration `json:"timeSpent"`          // time spent in the render action
	Planes             []string      `json:"planes,omitempty"`   // planes rendered
	Scale              RenderScale   `json:"scale"`
	TilesSupported     bool          `json:"tilesSupported"`
	IdentityInput      string        `json:"identityInput,omitempty"` // node the evaluation was forwarded to
	IdentityTime       Time          `json:"identityTime,omitempty"`
}

// RenderStats maps node name to its stats for one top-level render.
type RenderStats map[string]NodeRenderStats

// PlaneInfo describes one rendered plane in an API response.
type PlaneInfo struct {
	Plane  string `json:"plane"`
	Depth  string `json:"depth"`
	Bounds RectI  `json:"bounds"`
}

// RenderResponse is the API response for a render.
type RenderResponse struct {
	RequestId string      `json:"requestId"`
	Status    byte        `json:"status"` // STATUS_* const
	Planes    []PlaneInfo `json:"planes,omitempty"`
	Stats     RenderStats `json:"stats,omitempty"`
}

// RunningRender is one in-progress render reported by the render server.
type RunningRender struct {
	RequestId string    `json:"requestId"`
	Node      string    `json:"node"`
	Time      Time      `json:"time"`
	View      ViewIdx   `json:"view"`
	StartedAt time.Time `json:"startedAt"`
}

// CacheStatus reports the shared pixel cache.
type CacheStatus struct {
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
}

// NodeMetadata is the metadata of one node in an API response. The frame
// range is a string because infinite ranges are not JSON numbers.
type NodeMetadata struct {
	Node        string       `json:"node"`
	BitDepth    string       `json:"bitDepth"`
	PixelAspect float64      `json:"pixelAspect"`
	FrameRange  string       `json:"frameRange"`
	Format      RectD        `json:"format"`
	Planes      []Components `json:"planes"`
}

// Error is the standard response for all handled errors.
type Error struct {
	Message    string `json:"message"`        // human-readable and loggable error message
	RequestId  string `json:"requestId"`      // render request that caused the error, if any
	Node       string `json:"node,omitempty"` // originating node, if known
	HTTPStatus int    `json:"httpStatus"`     // HTTP status code
}

func NewError(msgFmt string, msgArgs ...interface{}) Error {
	e := Error{}
	if msgFmt != "" {
		e.Message = fmt.Sprintf(msgFmt, msgArgs...)
	}
	return e
}

func (e Error) String() string {
	return e.Message
}

func (e Error) Error() string {
	return e.Message
}

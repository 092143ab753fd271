// Copyright 2026, Square, Inc.

package render_test

import (
	"context"
	"testing"

	"github.com/go-test/deep"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/lut"
	"github.com/square/rendergraph/nodes"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/render"
	"github.com/square/rendergraph/test"
)

// viewerGraph returns constant1 -> viewer1. constant1 is 32-bit float so
// its values are exact.
func viewerGraph(t *testing.T, viewerParams map[string]interface{}) *graph.Graph {
	c, cp := constant(t, "constant1", 0.25, 0.125, 0, 0.5)
	cp.Set("depth", "32f")
	v, vp := nodes.NewViewer("viewer1")
	for name, val := range viewerParams {
		if err := vp.Set(name, val); err != nil {
			t.Fatal(err)
		}
	}
	g := graph.New()
	if err := test.Chain(g, test.V(c, cp), test.V(v, vp)); err != nil {
		t.Fatal(err)
	}
	return g
}

func pixelAt(res render.Result) []float32 {
	b := res.Plane(proto.COMPONENTS_RGBA)
	return []float32{b.At(0, 0, 0), b.At(0, 0, 1), b.At(0, 0, 2), b.At(0, 0, 3)}
}

func TestViewerLinearGain(t *testing.T) {
	g := viewerGraph(t, map[string]interface{}{"deviceColorspace": "Linear", "gain": 1})
	res := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "viewer1", RoI: test.RoI(8, 8)})
	if res.Planes[0].Depth != proto.BITDEPTH_FLOAT {
		t.Errorf("depth %s, expected 32f", res.Planes[0].Depth)
	}
	if diff := deep.Equal(pixelAt(res), []float32{0.5, 0.25, 0, 1}); diff != nil {
		t.Error(diff)
	}
	if res.Stats["viewer1"].Renders != 1 {
		t.Errorf("viewer1 renders = %d, expected 1", res.Stats["viewer1"].Renders)
	}
}

func TestViewerColorspace(t *testing.T) {
	g := viewerGraph(t, nil)
	res := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "viewer1", RoI: test.RoI(8, 8)})
	if res.Planes[0].Depth != proto.BITDEPTH_BYTE {
		t.Errorf("depth %s, expected 8u", res.Planes[0].Depth)
	}
	table, err := lut.For(proto.COLORSPACE_SRGB)
	if err != nil {
		t.Fatal(err)
	}
	expect := []float32{
		float32(table.ToDisplayByte(0.25)) / 255,
		float32(table.ToDisplayByte(0.125)) / 255,
		float32(table.ToDisplayByte(0)) / 255,
		1,
	}
	if diff := deep.Equal(pixelAt(res), expect); diff != nil {
		t.Error(diff)
	}
}

func TestViewerDisplayChannels(t *testing.T) {
	r, gr, b := 0.25, 0.125, 0.0
	l := float32(render.LUMA_R*r + render.LUMA_G*gr + render.LUMA_B*b)

	tests := []struct {
		name   string
		params map[string]interface{}
		expect []float32
	}{
		{"red", map[string]interface{}{"displayChannels": "R"}, []float32{0.25, 0.25, 0.25, 1}},
		{"alpha", map[string]interface{}{"displayChannels": "A"}, []float32{0.5, 0.5, 0.5, 1}},
		{"luminance", map[string]interface{}{"displayChannels": "Luminance"}, []float32{l, l, l, 1}},
		{"layer fallback", map[string]interface{}{"outputLayer": "Missing"}, []float32{0.25, 0.125, 0, 1}},
		{"no alpha", map[string]interface{}{"displayChannels": "A", "alphaChannel": "Missing.A"}, []float32{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		tt.params["deviceColorspace"] = "Linear"
		g := viewerGraph(t, tt.params)
		res := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "viewer1", RoI: test.RoI(8, 8)})
		if diff := deep.Equal(pixelAt(res), tt.expect); diff != nil {
			t.Errorf("%s: %v", tt.name, diff)
		}
	}
}

func TestViewerAutoContrast(t *testing.T) {
	r, rp := nodes.NewRamp("ramp1")
	v, vp := nodes.NewViewer("viewer1")
	vp.Set("deviceColorspace", "Linear")
	vp.Set("displayChannels", "R")
	vp.Set("autoContrast", true)
	g := graph.New()
	if err := test.Chain(g, test.V(r, rp), test.V(v, vp)); err != nil {
		t.Fatal(err)
	}
	res := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "viewer1", RoI: test.RoI(16, 16)})
	b := res.Planes[0]
	if b.At(0, 0, 0) != 0 || b.At(15, 0, 0) != 1 {
		t.Errorf("auto-contrast range [%f, %f], expected [0, 1]", b.At(0, 0, 0), b.At(15, 0, 0))
	}
}

func TestViewerLayerSelection(t *testing.T) {
	r, rp := nodes.NewRamp("ramp1")
	v, vp := nodes.NewViewer("viewer1")
	vp.Set("deviceColorspace", "Linear")
	vp.Set("outputLayer", "Depth")
	g := graph.New()
	if err := test.Chain(g, test.V(r, rp), test.V(v, vp)); err != nil {
		t.Fatal(err)
	}
	roi := test.RoI(16, 16)
	res := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "viewer1", RoI: roi})
	depth := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "ramp1", RoI: roi, Planes: []proto.Components{proto.COMPONENTS_DEPTH}})

	b := res.Planes[0]
	z := depth.Planes[0].At(3, 7, 0)
	if b.At(3, 7, 0) != z || b.At(3, 7, 1) != z || b.At(3, 7, 2) != z {
		t.Errorf("got %f %f %f, expected gray %f", b.At(3, 7, 0), b.At(3, 7, 1), b.At(3, 7, 2), z)
	}
	expect := []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH}
	if diff := deep.Equal(v.LayerChoices(), expect); diff != nil {
		t.Error(diff)
	}
}

func TestViewerNotTerminal(t *testing.T) {
	g := viewerGraph(t, nil)
	d, dp := nodes.NewDot("dot1")
	g.Add(d, dp)
	g.Connect("dot1", 0, "viewer1")
	res := evaluate(t, newEngine(), g, proto.RenderRequest{Node: "dot1", RoI: test.RoI(8, 8)})
	if res.Stats["viewer1"].IdentitySkips != 1 {
		t.Errorf("viewer1 stats %+v, expected an identity skip", res.Stats["viewer1"])
	}
	if res.Planes[0].At(0, 0, 3) != 0.5 {
		t.Error("display pipeline applied to a viewer that is not the requested node")
	}
}

func TestViewerGroupMenu(t *testing.T) {
	vg := nodes.NewViewerGroup("viewer1")
	g := graph.New()
	g.Add(nodes.NewRamp("ramp1"))
	g.Add(constant(t, "constant1", 1))
	if err := vg.AddTo(g); err != nil {
		t.Fatal(err)
	}
	g.Connect("viewer1.A", 0, "ramp1")
	g.Connect("viewer1.B", 0, "constant1")
	a, b := vg.Process(0), vg.Process(1)
	e := newEngine()
	req := proto.RenderRequest{RoI: test.RoI(8, 8)}

	// Computing a key renders nothing and does not refresh the menu
	if _, err := e.Key(g.Snapshot(), proto.RenderRequest{Node: "viewer1.A", RoI: test.RoI(8, 8)}); err != nil {
		t.Fatal(err)
	}
	if a.Refreshes() != 0 || a.LayerChoices() != nil {
		t.Errorf("Key refreshed the menu: %v", a.LayerChoices())
	}

	// B is not authoritative: rendering it does not refresh the menu
	req.Node = "viewer1.B"
	evaluate(t, e, g, req)
	if b.Refreshes() != 0 || b.LayerChoices() != nil {
		t.Errorf("B refreshed the menu: %v", b.LayerChoices())
	}

	// A is, and B sees the menu A refreshed
	req.Node = "viewer1.A"
	evaluate(t, e, g, req)
	expect := []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH}
	if diff := deep.Equal(b.LayerChoices(), expect); diff != nil {
		t.Error(diff)
	}

	vg.SetAuthoritative(1)
	if vg.Authoritative() != 1 {
		t.Errorf("authoritative = %d, expected 1", vg.Authoritative())
	}
	evaluate(t, e, g, req)
	req.Node = "viewer1.B"
	evaluate(t, e, g, req)
	if diff := deep.Equal(a.LayerChoices(), []proto.Components{proto.COMPONENTS_RGBA}); diff != nil {
		t.Error(diff)
	}
	if a.Refreshes() != 1 || b.Refreshes() != 1 {
		t.Errorf("refreshes A=%d B=%d, expected 1 and 1", a.Refreshes(), b.Refreshes())
	}

	// One param set for both processes
	vg.Params().Set("gain", 1)
	snap := g.Snapshot()
	va, _ := snap.Vertex("viewer1.A")
	vb, _ := snap.Vertex("viewer1.B")
	if va.Params.Float("gain", 0) != 1 || vb.Params.Float("gain", 0) != 1 {
		t.Error("processes do not share params")
	}
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	e := render.NewEngine(render.Config{Tracer: tp.Tracer("test")})

	g := graph.New()
	gr, gp := nodes.NewGrade("grade1")
	gp.Set("gain", 2)
	if err := test.Chain(g, test.V(constant(t, "constant1", 0.5)), test.V(gr, gp)); err != nil {
		t.Fatal(err)
	}
	evaluate(t, e, g, proto.RenderRequest{Node: "grade1", RoI: test.RoI(8, 8)})

	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	if diff := deep.Equal(names, map[string]int{"render.Evaluate": 1, "render.node": 2}); diff != nil {
		t.Error(diff)
	}

	// A failed render is an error span
	g.Params("grade1").Set("gamma", 0)
	if _, err := e.Evaluate(context.Background(), g.Snapshot(), proto.RenderRequest{Node: "grade1", RoI: test.RoI(8, 8)}); err == nil {
		t.Fatal("no error")
	}
	spans := sr.Ended()
	last := spans[len(spans)-1]
	if last.Name() != "render.Evaluate" || last.Status().Code != codes.Error {
		t.Errorf("last span %s status %v, expected render.Evaluate error", last.Name(), last.Status().Code)
	}
}

func TestKeyframedViewerGain(t *testing.T) {
	g := viewerGraph(t, map[string]interface{}{"deviceColorspace": "Linear"})
	g.Params("viewer1").SetKeys("gain", param.Keyframe{Time: 0, Value: 0}, param.Keyframe{Time: 2, Value: 2})
	e := newEngine()
	res := evaluate(t, e, g, proto.RenderRequest{Node: "viewer1", Time: 1, RoI: test.RoI(4, 4)})
	if r := pixelAt(res)[0]; r != 0.5 {
		t.Errorf("red at time 1 = %f, expected 0.5", r)
	}
	res = evaluate(t, e, g, proto.RenderRequest{Node: "viewer1", Time: 2, RoI: test.RoI(4, 4)})
	if r := pixelAt(res)[0]; r != 1 {
		t.Errorf("red at time 2 = %f, expected 1", r)
	}
}

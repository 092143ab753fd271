// Copyright 2026, Square, Inc.

package nodes_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-test/deep"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/nodes"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

var region = proto.RectI{X2: 4, Y2: 4}

func rgba(r, g, b, a float32) *pixel.Buffer {
	buf := pixel.NewBuffer(proto.COMPONENTS_RGBA, proto.BITDEPTH_FLOAT, region)
	buf.Fill([]float32{r, g, b, a})
	return buf
}

func out(c proto.Components) *pixel.Buffer {
	return pixel.NewBuffer(c, proto.BITDEPTH_FLOAT, region)
}

func at(b *pixel.Buffer) []float32 {
	px := make([]float32, b.NComps())
	for c := range px {
		px[c] = b.At(1, 2, c)
	}
	return px
}

func TestFactory(t *testing.T) {
	for _, typ := range nodes.Types() {
		n, p, err := nodes.Factory.Make(typ, typ+"1")
		if err != nil {
			t.Errorf("%s: %s", typ, err)
			continue
		}
		if n.Type() != typ || n.Name() != typ+"1" {
			t.Errorf("made %s %s, expected %s %s1", n.Type(), n.Name(), typ, typ)
		}
		if !p.Snapshot().Has("disable") {
			t.Errorf("%s has no disable param", typ)
		}
	}

	_, _, err := nodes.Factory.Make("blur", "blur1")
	if err != node.ErrUnknownNodeType {
		t.Errorf("err = %v, expected ErrUnknownNodeType", err)
	}

	expect := []string{"constant", "dot", "grade", "merge", "ramp", "shuffle", "timeoffset", "viewer"}
	if diff := deep.Equal(nodes.Types(), expect); diff != nil {
		t.Error(diff)
	}
}

func TestGradeIdentity(t *testing.T) {
	n, p := nodes.NewGrade("grade1")
	isIdentity := func() bool {
		id, err := n.IsIdentity(node.IdentityArgs{Params: p.Snapshot(), Time: 3, Connected: []bool{true, false}})
		if err != nil {
			t.Fatal(err)
		}
		return id.IsIdentity && id.Input == nodes.GRADE_SOURCE && id.Time == 3
	}

	if !isIdentity() {
		t.Error("default grade is not an identity")
	}
	p.Set("gain", 2)
	if isIdentity() {
		t.Error("gain 2 is an identity")
	}
	p.Set("mix", 0)
	if !isIdentity() {
		t.Error("mix 0 is not an identity")
	}
}

func TestGradeRender(t *testing.T) {
	n, p := nodes.NewGrade("grade1")
	p.Set("gain", 2)
	p.Set("offset", 0.125)

	dst := out(proto.COMPONENTS_RGBA)
	err := n.Render(context.Background(), node.RenderArgs{
		Params:  p.Snapshot(),
		Window:  region,
		Outputs: []*pixel.Buffer{dst},
		Inputs:  map[int][]*pixel.Buffer{nodes.GRADE_SOURCE: {rgba(0.25, 0.5, 0, 0.5)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	// Alpha is not graded
	if diff := deep.Equal(at(dst), []float32{0.625, 1.125, 0.125, 0.5}); diff != nil {
		t.Error(diff)
	}

	// A mask of 0.5 alpha grades half way
	mask := out(proto.COMPONENTS_ALPHA)
	mask.Fill([]float32{0.5})
	err = n.Render(context.Background(), node.RenderArgs{
		Params:  p.Snapshot(),
		Window:  region,
		Outputs: []*pixel.Buffer{dst},
		Inputs: map[int][]*pixel.Buffer{
			nodes.GRADE_SOURCE: {rgba(0.25, 0.5, 0, 0.5)},
			nodes.GRADE_MASK:   {mask},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(at(dst), []float32{0.4375, 0.8125, 0.0625, 0.5}); diff != nil {
		t.Error(diff)
	}

	p.Set("gamma", 0)
	err = n.Render(context.Background(), node.RenderArgs{Params: p.Snapshot(), Window: region, Outputs: []*pixel.Buffer{dst}})
	if err == nil {
		t.Error("no error for gamma 0")
	}
}

func TestGradeComponents(t *testing.T) {
	n, p := nodes.NewGrade("grade1")
	md := &node.Metadata{Components: []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH}}
	needs, err := n.Components(node.ComponentsArgs{
		Params:      p.Snapshot(),
		Planes:      []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH},
		Metadata:    md,
		InputPlanes: [][]proto.Components{md.Components, {proto.COMPONENTS_ALPHA, proto.COMPONENTS_RGBA}},
	})
	if err != nil {
		t.Fatal(err)
	}
	expect := node.Needs{
		Produced: []proto.Components{proto.COMPONENTS_RGBA},
		Inputs: map[int][]proto.Components{
			nodes.GRADE_SOURCE: {proto.COMPONENTS_RGBA},
			nodes.GRADE_MASK:   {proto.COMPONENTS_RGBA},
		},
	}
	if diff := deep.Equal(needs, expect); diff != nil {
		t.Error(diff)
	}
}

func TestMergeOperations(t *testing.T) {
	tests := []struct {
		op     string
		mix    float64
		expect []float32
	}{
		{"over", 1, []float32{0.625, 0.125, 0.125, 1}},
		{"plus", 1, []float32{0.75, 0.25, 0.25, 1.5}},
		{"multiply", 1, []float32{0.125, 0, 0, 0.5}},
		{"plus", 0.5, []float32{0.5, 0.25, 0.25, 1.25}},
	}
	n, p := nodes.NewMerge("merge1")
	for _, tt := range tests {
		p.Set("operation", tt.op)
		p.Set("mix", tt.mix)
		dst := out(proto.COMPONENTS_RGBA)
		err := n.Render(context.Background(), node.RenderArgs{
			Params:  p.Snapshot(),
			Window:  region,
			Outputs: []*pixel.Buffer{dst},
			Inputs: map[int][]*pixel.Buffer{
				nodes.MERGE_B: {rgba(0.25, 0.25, 0.25, 1)},
				nodes.MERGE_A: {rgba(0.5, 0, 0, 0.5)},
			},
		})
		if err != nil {
			t.Fatal(err)
		}
		if diff := deep.Equal(at(dst), tt.expect); diff != nil {
			t.Errorf("%s mix %v: %v", tt.op, tt.mix, diff)
		}
	}

	p.Set("operation", "screen")
	err := n.Render(context.Background(), node.RenderArgs{Params: p.Snapshot(), Window: region, Outputs: []*pixel.Buffer{out(proto.COMPONENTS_RGBA)}})
	if err == nil {
		t.Error("no error for an unknown operation")
	}
}

func TestMergeIdentity(t *testing.T) {
	n, p := nodes.NewMerge("merge1")
	id, _ := n.IsIdentity(node.IdentityArgs{Params: p.Snapshot(), Connected: []bool{true, false}})
	if !id.IsIdentity || id.Input != nodes.MERGE_B {
		t.Errorf("merge with A disconnected: %+v, expected identity on B", id)
	}
	id, _ = n.IsIdentity(node.IdentityArgs{Params: p.Snapshot(), Connected: []bool{true, true}})
	if id.IsIdentity {
		t.Error("merge with A connected is an identity")
	}
}

func TestShuffle(t *testing.T) {
	n, p := nodes.NewShuffle("shuffle1")
	in := &node.Metadata{Components: []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH}}
	md, err := n.Metadata(node.MetadataArgs{Params: p.Snapshot(), Inputs: []*node.Metadata{in}, Default: *in})
	if err != nil {
		t.Fatal(err)
	}
	expect := []proto.Components{proto.COMPONENTS_ALPHA, proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH}
	if diff := deep.Equal(md.Components, expect); diff != nil {
		t.Error(diff)
	}

	needs, err := n.Components(node.ComponentsArgs{
		Params: p.Snapshot(),
		Planes: []proto.Components{proto.COMPONENTS_ALPHA, proto.COMPONENTS_RGBA},
	})
	if err != nil {
		t.Fatal(err)
	}
	expectNeeds := node.Needs{
		Produced: []proto.Components{proto.COMPONENTS_ALPHA},
		Inputs:   map[int][]proto.Components{0: {proto.COMPONENTS_DEPTH}},
	}
	if diff := deep.Equal(needs, expectNeeds); diff != nil {
		t.Error(diff)
	}

	z := out(proto.COMPONENTS_DEPTH)
	z.Fill([]float32{1.5})
	dst := out(proto.COMPONENTS_ALPHA)
	err = n.Render(context.Background(), node.RenderArgs{
		Params:  p.Snapshot(),
		Window:  region,
		Outputs: []*pixel.Buffer{dst},
		Inputs:  map[int][]*pixel.Buffer{0: {z}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if dst.At(1, 2, 0) != 1.5 {
		t.Errorf("got %f, expected 1.5", dst.At(1, 2, 0))
	}
}

func TestShuffleMissingPlane(t *testing.T) {
	n, p := nodes.NewShuffle("shuffle1")
	p.Set("from", "Motion.UV")
	in := &node.Metadata{Components: []proto.Components{proto.COMPONENTS_RGBA}}
	_, err := n.Metadata(node.MetadataArgs{Params: p.Snapshot(), Inputs: []*node.Metadata{in}, Default: *in})
	var mu rerr.MetadataUnavailable
	if !errors.As(err, &mu) {
		t.Fatalf("err = %v, expected MetadataUnavailable", err)
	}
	if mu.Node != "shuffle1" || mu.Input != 0 {
		t.Errorf("got %+v", mu)
	}
}

func TestShuffleSamePlaneIsIdentity(t *testing.T) {
	n, p := nodes.NewShuffle("shuffle1")
	p.Set("from", "Color.A")
	id, _ := n.IsIdentity(node.IdentityArgs{Params: p.Snapshot(), Connected: []bool{true}})
	if !id.IsIdentity {
		t.Error("Color.A to Color.A is not an identity")
	}
}

func TestTimeOffset(t *testing.T) {
	n, p := nodes.NewTimeOffset("timeoffset1")
	p.Set("offset", 10)
	def := node.Metadata{FrameRange: proto.FrameRange{First: 1, Last: 24}}
	md, err := n.Metadata(node.MetadataArgs{Params: p.Snapshot(), Default: def})
	if err != nil {
		t.Fatal(err)
	}
	if md.FrameRange != (proto.FrameRange{First: 11, Last: 34}) {
		t.Errorf("frame range %+v, expected 11-34", md.FrameRange)
	}
	id, _ := n.IsIdentity(node.IdentityArgs{Params: p.Snapshot(), Time: 15, View: 1})
	if diff := deep.Equal(id, node.Identity{IsIdentity: true, Input: 0, Time: 5, View: 1}); diff != nil {
		t.Error(diff)
	}
}

func TestConstantDepth(t *testing.T) {
	n, p := nodes.NewConstant("constant1")
	def := node.Metadata{BitDepth: proto.BITDEPTH_BYTE}
	args := func() node.MetadataArgs { return node.MetadataArgs{Params: p.Snapshot(), Default: def} }

	md, _ := n.Metadata(args())
	if md.BitDepth != proto.BITDEPTH_BYTE || md.Format != (proto.RectD{X2: 256, Y2: 256}) {
		t.Errorf("default metadata %+v", md)
	}
	p.Set("depth", "16f")
	if md, _ = n.Metadata(args()); md.BitDepth != proto.BITDEPTH_HALF {
		t.Errorf("depth %s, expected 16f", md.BitDepth)
	}
	p.Set("depth", "bogus")
	if md, _ = n.Metadata(args()); md.BitDepth != proto.BITDEPTH_BYTE {
		t.Errorf("depth %s, expected the default 8u", md.BitDepth)
	}
}

func TestViewerComponents(t *testing.T) {
	v, p := nodes.NewViewer("viewer1")
	sel := &node.Selection{
		ColorLayer:   proto.COMPONENTS_DEPTH,
		AlphaLayer:   proto.COMPONENTS_RGBA,
		AlphaChannel: 3,
	}
	needs, err := v.Components(node.ComponentsArgs{
		Params:      p.Snapshot(),
		Planes:      []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_MOTION},
		InputPlanes: [][]proto.Components{{proto.COMPONENTS_RGBA, proto.COMPONENTS_DEPTH}},
		Selection:   sel,
	})
	if err != nil {
		t.Fatal(err)
	}
	expect := node.Needs{
		Produced: []proto.Components{proto.COMPONENTS_RGBA, proto.COMPONENTS_MOTION},
		Inputs:   map[int][]proto.Components{0: {proto.COMPONENTS_DEPTH, proto.COMPONENTS_RGBA}},
	}
	if diff := deep.Equal(needs, expect); diff != nil {
		t.Error(diff)
	}
}

func TestViewerInvalidColorspace(t *testing.T) {
	v, p := nodes.NewViewer("viewer1")
	p.Set("deviceColorspace", "P3")
	_, err := v.Metadata(node.MetadataArgs{Params: p.Snapshot()})
	var mu rerr.MetadataUnavailable
	if !errors.As(err, &mu) {
		t.Errorf("err = %v, expected MetadataUnavailable", err)
	}
}

func TestViewerGroupProcesses(t *testing.T) {
	vg := nodes.NewViewerGroup("viewer1")
	a, b := vg.Process(0), vg.Process(1)
	if a.Name() != "viewer1.A" || b.Name() != "viewer1.B" {
		t.Errorf("process names %s %s", a.Name(), b.Name())
	}
	if !a.RefreshLayerAndAlphaChoiceEnabled() || b.RefreshLayerAndAlphaChoiceEnabled() {
		t.Error("A is not the only process refreshing the menu")
	}

	b.RefreshLayerAndAlphaChoice([]proto.Components{proto.COMPONENTS_MOTION})
	if b.LayerChoices() != nil {
		t.Error("B refreshed the menu")
	}
	a.RefreshLayerAndAlphaChoice([]proto.Components{proto.COMPONENTS_DEPTH})
	if diff := deep.Equal(b.LayerChoices(), []proto.Components{proto.COMPONENTS_DEPTH}); diff != nil {
		t.Error(diff)
	}
}

func TestDisableParam(t *testing.T) {
	_, p := nodes.NewGrade("grade1")
	if err := p.Set("disable", true); err != nil {
		t.Fatal(err)
	}
	if !p.Snapshot().Bool("disable") {
		t.Error("disable not set")
	}
	// disable is not a metadata param: it must not change metadata digests
	_, p2 := nodes.NewGrade("grade1")
	if p.Snapshot().MetadataDigest() != p2.Snapshot().MetadataDigest() {
		t.Error("disable changed the metadata digest")
	}
}

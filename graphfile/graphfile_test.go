// Copyright 2026, Square, Inc.

package graphfile_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-test/deep"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graphfile"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/nodes"
	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/render"
	"github.com/square/rendergraph/test"
)

func graphFile(name string) string {
	return filepath.Join(test.GraphPath, name)
}

type logger struct {
	lines []string
}

func (l *logger) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func TestLoad(t *testing.T) {
	l := &logger{}
	p, err := graphfile.Load(graphFile("comp.yaml"), l.Printf)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.lines) != 0 {
		t.Errorf("warnings: %v", l.lines)
	}

	expect := []string{"constant1", "dot1", "grade1", "merge1", "ramp1", "viewer1.A", "viewer1.B"}
	if diff := deep.Equal(p.Graph.Names(), expect); diff != nil {
		t.Error(diff)
	}

	snap := p.Graph.Snapshot()
	v, err := snap.Vertex("merge1")
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(v.Inputs, []string{"grade1", "ramp1"}); diff != nil {
		t.Error(diff)
	}
	if v.Params.String("operation") != "plus" {
		t.Errorf("operation = %s, expected plus", v.Params.String("operation"))
	}

	c, _ := snap.Vertex("constant1")
	if c.Params.Float("b", 5) != 0.5 {
		t.Errorf("b at time 5 = %f, expected 0.5", c.Params.Float("b", 5))
	}
	if c.Params.Int("width", 0) != 64 || c.Params.String("depth") != "32f" {
		t.Errorf("constant1 params not set: %v", c.Params.Names())
	}

	vb, _ := snap.Vertex("viewer1.B")
	if diff := deep.Equal(vb.Inputs, []string{"ramp1"}); diff != nil {
		t.Error(diff)
	}
	vg := p.Viewers["viewer1"]
	if vg == nil || vg.Authoritative() != 0 {
		t.Fatalf("viewer1 not built: %+v", p.Viewers)
	}
	if vb.Params.String("deviceColorspace") != "Linear" {
		t.Error("viewer params not set")
	}
}

func TestLoadAndRender(t *testing.T) {
	p, err := graphfile.Load(graphFile("comp.yaml"), t.Logf)
	if err != nil {
		t.Fatal(err)
	}
	e := render.NewEngine(render.Config{})
	res, err := e.Evaluate(context.Background(), p.Graph.Snapshot(), proto.RenderRequest{
		Node: "viewer1.A",
		RoI:  test.RoI(64, 64),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != proto.STATUS_OK {
		t.Errorf("status %s, expected OK", proto.StatusName[res.Status])
	}
	if res.Stats["dot1"].IdentitySkips != 1 {
		t.Errorf("dot1 stats %+v, expected an identity skip", res.Stats["dot1"])
	}
	for _, name := range []string{"constant1", "grade1", "merge1", "viewer1.A"} {
		if res.Stats[name].Renders == 0 {
			t.Errorf("%s not rendered", name)
		}
	}
}

func TestParseWarning(t *testing.T) {
	l := &logger{}
	p, err := graphfile.Load(graphFile("warn-unknown-field.yaml"), l.Printf)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.lines) != 1 || !strings.HasPrefix(l.lines[0], "Warning:") {
		t.Errorf("warnings: %v, expected 1", l.lines)
	}
	if p.Graph.Node("constant1") == nil {
		t.Error("constant1 not built")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		file string
		err  string
	}{
		{"fail-parse.yaml", "unmarshal"},
		{"fail-unknown-type.yaml", `type "blur"`},
		{"fail-cycle.yaml", "cycle"},
		{"fail-input.yaml", "constant1"},
		{"does-not-exist.yaml", "no such file"},
	}
	for _, tt := range tests {
		_, err := graphfile.Load(graphFile(tt.file), t.Logf)
		if err == nil {
			t.Errorf("%s: no error", tt.file)
			continue
		}
		if !strings.Contains(err.Error(), tt.err) {
			t.Errorf("%s: error %q does not contain %q", tt.file, err, tt.err)
		}
	}
}

func TestUnknownTypeError(t *testing.T) {
	_, err := graphfile.Load(graphFile("fail-unknown-type.yaml"), t.Logf)
	if !errors.Is(err, node.ErrUnknownNodeType) {
		t.Errorf("err = %v, expected ErrUnknownNodeType", err)
	}
	_, err = graphfile.Load(graphFile("fail-input.yaml"), t.Logf)
	var nf rerr.NodeNotFound
	if !errors.As(err, &nf) || nf.Node != "constant1" {
		t.Errorf("err = %v, expected NodeNotFound constant1", err)
	}
}

func TestBuildViewerErrors(t *testing.T) {
	data := `
nodes:
  constant1: {type: constant}
viewers:
  viewer1:
    authoritative: 2
`
	f, err := graphfile.Parse([]byte(data), t.Logf)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Build(nodes.Factory); err == nil {
		t.Error("no error for authoritative process 2")
	}

	f.Viewers["viewer1"].Authoritative = 1
	f.Viewers["viewer1"].Inputs = []string{"constant1", "constant1", "constant1"}
	if _, err := f.Build(nodes.Factory); err == nil {
		t.Error("no error for 3 viewer inputs")
	}

	f.Viewers["viewer1"].Inputs = []string{"", "constant1"}
	p, err := f.Build(nodes.Factory)
	if err != nil {
		t.Fatal(err)
	}
	if p.Viewers["viewer1"].Authoritative() != 1 {
		t.Error("authoritative process not set")
	}
	if len(p.Graph.Snapshot().Upstream("viewer1.A")) != 0 {
		t.Error("viewer1.A connected")
	}
}

func TestApply(t *testing.T) {
	p, err := graphfile.Load(graphFile("comp.yaml"), t.Logf)
	if err != nil {
		t.Fatal(err)
	}
	err = p.Apply(map[string]map[string]interface{}{
		"grade1":  {"gain": 4},
		"viewer1": {"displayChannels": "R"},
	})
	if err != nil {
		t.Fatal(err)
	}
	snap := p.Graph.Snapshot()
	g, _ := snap.Vertex("grade1")
	if g.Params.Float("gain", 0) != 4 {
		t.Errorf("gain = %f, expected 4", g.Params.Float("gain", 0))
	}
	v, _ := snap.Vertex("viewer1.B")
	if v.Params.String("displayChannels") != "R" {
		t.Error("viewer group params not applied")
	}

	if err := p.Apply(map[string]map[string]interface{}{"blur1": {"size": 1}}); err == nil {
		t.Error("no error for unknown node")
	}
	if err := p.Apply(map[string]map[string]interface{}{"grade1": {"gain": "high"}}); err == nil {
		t.Error("no error for string gain")
	}

	// Nothing is applied if any value is invalid
	version := p.Graph.Params("grade1").Version()
	err = p.Apply(map[string]map[string]interface{}{
		"grade1":  {"gain": 2, "offset": 0.5},
		"viewer1": {"gamma": "x"},
	})
	if err == nil {
		t.Error("no error for string gamma")
	}
	g, _ = p.Graph.Snapshot().Vertex("grade1")
	if g.Params.Float("gain", 0) != 4 || g.Params.Float("offset", 0) != 0 {
		t.Errorf("grade1 changed by a failed update: gain %f offset %f", g.Params.Float("gain", 0), g.Params.Float("offset", 0))
	}
	if p.Graph.Params("grade1").Version() != version {
		t.Error("grade1 version changed by a failed update")
	}
}

func TestParseSetting(t *testing.T) {
	tests := []struct {
		s     string
		node  string
		param string
		value interface{}
	}{
		{"grade1.gain=2", "grade1", "gain", 2},
		{"grade1.gain=0.5", "grade1", "gain", 0.5},
		{"viewer1.A.autoContrast=true", "viewer1.A", "autoContrast", true},
		{"viewer1.outputLayer=Depth", "viewer1", "outputLayer", "Depth"},
		{"merge1.operation=", "merge1", "operation", ""},
	}
	for _, tt := range tests {
		n, p, v, err := graphfile.ParseSetting(tt.s)
		if err != nil {
			t.Errorf("%s: %s", tt.s, err)
			continue
		}
		if diff := deep.Equal([]interface{}{n, p, v}, []interface{}{tt.node, tt.param, tt.value}); diff != nil {
			t.Errorf("%s: %v", tt.s, diff)
		}
	}

	for _, s := range []string{"gain=2", "grade1.gain", ".gain=2", "grade1.=2"} {
		if _, _, _, err := graphfile.ParseSetting(s); err == nil {
			t.Errorf("%s: no error", s)
		}
	}
}

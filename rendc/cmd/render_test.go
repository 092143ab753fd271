// Copyright 2026, Square, Inc.

package cmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/rendc/app"
	"github.com/square/rendergraph/rendc/cmd"
	"github.com/square/rendergraph/rendc/config"
	"github.com/square/rendergraph/test/mock"
)

func TestRender(t *testing.T) {
	output := &bytes.Buffer{}
	var gotReq proto.RenderRequest
	b := &mock.Backend{
		RenderFunc: func(req proto.RenderRequest) (proto.RenderResponse, error) {
			gotReq = req
			return proto.RenderResponse{
				RequestId: "r1",
				Status:    proto.STATUS_OK,
				Planes:    []proto.PlaneInfo{{Plane: "Color.RGBA", Depth: "32f", Bounds: proto.RectI{X2: 8, Y2: 4}}},
				Stats: proto.RenderStats{
					"grade1":    {Node: "grade1", Renders: 1, TimeSpent: time.Millisecond, Planes: []string{"Color.RGBA"}},
					"constant1": {Node: "constant1", CacheHits: 1},
				},
			}, nil
		},
	}
	ctx := app.Context{
		Out:     output,
		Backend: b,
		Command: config.Command{
			Cmd:  "render",
			Args: []string{"grade1", "time=3", "view=1", "scale=0.5", "roi=0,0,16,8", "planes=Color.RGBA,Depth.Z"},
		},
	}
	render := cmd.NewRender(ctx)
	if err := render.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := render.Run(); err != nil {
		t.Fatal(err)
	}

	expectReq := proto.RenderRequest{
		Node:   "grade1",
		Time:   3,
		View:   1,
		Scale:  proto.RenderScale{X: 0.5, Y: 0.5},
		RoI:    proto.RectD{X2: 16, Y2: 8},
		Planes: []proto.Components{proto.COMPONENTS_RGBA, {Layer: "Depth", Channels: "Z"}},
	}
	if diff := deep.Equal(gotReq, expectReq); diff != nil {
		t.Error(diff)
	}

	expect := `r1 OK
  Color.RGBA           32f  8x4
NODE                  RENDERS   IDENTITY  CACHED  SHARED        TIME  PLANES
constant1                   0          0       1       0          0s  
grade1                      1          0       0       0         1ms  Color.RGBA
`
	if output.String() != expect {
		t.Errorf("got output:\n%s\nexpected:\n%s\n", output, expect)
	}
}

func TestRenderDefaultRoIAndTIFF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "grade1.tif")
	var gotReq proto.RenderRequest
	var gotPlane string
	b := &mock.Backend{
		MetadataFunc: func(node string) (proto.NodeMetadata, error) {
			return proto.NodeMetadata{Node: node, Format: proto.RectD{X2: 64, Y2: 32}}, nil
		},
		RenderTIFFFunc: func(req proto.RenderRequest, plane string) ([]byte, proto.RenderResponse, error) {
			gotReq = req
			gotPlane = plane
			return []byte("II*\x00"), proto.RenderResponse{RequestId: "r1", Status: proto.STATUS_OK}, nil
		},
	}
	output := &bytes.Buffer{}
	ctx := app.Context{
		Out:     output,
		Backend: b,
		Command: config.Command{
			Cmd:  "render",
			Args: []string{"grade1", "out=" + out, "plane=Color.RGBA"},
		},
	}
	render := cmd.NewRender(ctx)
	if err := render.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := render.Run(); err != nil {
		t.Fatal(err)
	}
	if gotReq.RoI != (proto.RectD{X2: 64, Y2: 32}) {
		t.Errorf("roi %+v, expected the node format", gotReq.RoI)
	}
	if gotPlane != "Color.RGBA" {
		t.Errorf("plane = %s, expected Color.RGBA", gotPlane)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "II*\x00" {
		t.Errorf("file contents %q, expected the image", data)
	}
	if !strings.Contains(output.String(), "wrote "+out) {
		t.Errorf("output does not report the file:\n%s", output)
	}
}

func TestRenderPrepareErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"grade1", "time"},
		{"grade1", "time=soon"},
		{"grade1", "scale=2"},
		{"grade1", "roi=0,0,16"},
		{"grade1", "planes=RGBA"},
		{"grade1", "plane=Color.RGBA"},
		{"grade1", "color=on"},
	}
	for _, args := range tests {
		ctx := app.Context{
			Out:     &bytes.Buffer{},
			Backend: &mock.Backend{},
			Command: config.Command{Cmd: "render", Args: args},
		}
		if err := cmd.NewRender(ctx).Prepare(); err == nil {
			t.Errorf("no error for args %v", args)
		}
	}
}

func TestRenderError(t *testing.T) {
	b := &mock.Backend{
		RenderFunc: func(req proto.RenderRequest) (proto.RenderResponse, error) {
			return proto.RenderResponse{}, mock.ErrBackend
		},
	}
	var hookErr error
	ctx := app.Context{
		Out:     &bytes.Buffer{},
		Backend: b,
		Command: config.Command{Cmd: "render", Args: []string{"grade1", "roi=0,0,4,4"}},
		Hooks: app.Hooks{
			CommandRunResult: func(v interface{}, err error) { hookErr = err },
		},
	}
	render := cmd.NewRender(ctx)
	if err := render.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := render.Run(); err != nil {
		t.Errorf("Run returned %v, expected the error passed to the hook", err)
	}
	if hookErr != mock.ErrBackend {
		t.Errorf("hook got %v, expected %v", hookErr, mock.ErrBackend)
	}
}

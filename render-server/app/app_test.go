// Copyright 2026, Square, Inc.

package app_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/square/rendergraph/config"
	"github.com/square/rendergraph/render-server/app"
	"github.com/square/rendergraph/test"
)

const viewerGraph = `
nodes:
  ramp1:
    type: ramp
    params: {width: 8, height: 8}
  viewer2:
    type: viewer
    inputs: [ramp1]
viewers:
  viewer1:
    params:
      deviceColorspace: Linear
    inputs: [ramp1]
`

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "render-server.yaml")
	data := []byte("graph_file: comp.yaml\ncache:\n  capacity: 5\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RENDERGRAPH_CONFIG", file)
	t.Setenv("RENDERGRAPH_WORKERS", "4")

	cfg, err := app.LoadConfig(app.Defaults())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GraphFile != "comp.yaml" || cfg.Cache.Capacity != 5 || cfg.Render.Workers != 4 {
		t.Errorf("config %+v, expected graph file, capacity and workers set", cfg)
	}
	if cfg.Server.Addr != config.DEFAULT_ADDR {
		t.Errorf("addr = %s, expected default %s", cfg.Server.Addr, config.DEFAULT_ADDR)
	}

	t.Setenv("RENDERGRAPH_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := app.LoadConfig(app.Defaults()); err == nil {
		t.Error("no error loading a config file that does not exist")
	}
}

func TestMakeProject(t *testing.T) {
	file := filepath.Join(t.TempDir(), "viewers.yaml")
	if err := os.WriteFile(file, []byte(viewerGraph), 0644); err != nil {
		t.Fatal(err)
	}
	appCtx := app.Defaults()
	appCtx.Config = config.Defaults()
	appCtx.Config.GraphFile = file
	appCtx.Config.Render.DefaultColorspace = "Rec.709"

	p, err := app.MakeProject(appCtx)
	if err != nil {
		t.Fatal(err)
	}
	snap := p.Graph.Snapshot()
	expect := map[string]string{
		"viewer2":   "Rec.709", // not set, default applied
		"viewer1.A": "Linear",  // set in the graph file
	}
	for name, cs := range expect {
		v, err := snap.Vertex(name)
		if err != nil {
			t.Fatal(err)
		}
		if got := v.Params.String("deviceColorspace"); got != cs {
			t.Errorf("%s deviceColorspace = %s, expected %s", name, got, cs)
		}
	}

	appCtx.Config.GraphFile = filepath.Join(test.GraphPath, "fail-unknown-type.yaml")
	if _, err := app.MakeProject(appCtx); err == nil {
		t.Error("no error making a project with an unknown node type")
	}
}

func TestMakeEngine(t *testing.T) {
	appCtx := app.Defaults()
	appCtx.Config = config.Defaults()
	appCtx.Config.Cache.Capacity = 7
	appCtx.Config.Trace.Enabled = true
	e, err := app.MakeEngine(appCtx)
	if err != nil {
		t.Fatal(err)
	}
	if e.Cache().Status().Capacity != 7 {
		t.Errorf("cache capacity = %d, expected 7", e.Cache().Status().Capacity)
	}
}

func TestServerURL(t *testing.T) {
	appCtx := app.Defaults()
	appCtx.Config = config.Defaults()
	url, err := app.ServerURL(appCtx)
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://"+config.DEFAULT_ADDR {
		t.Errorf("url = %s, expected http://%s", url, config.DEFAULT_ADDR)
	}

	appCtx.Config.Server.TLS = config.TLS{CertFile: "cert.pem", KeyFile: "key.pem"}
	url, _ = app.ServerURL(appCtx)
	if url != "https://"+config.DEFAULT_ADDR {
		t.Errorf("url = %s, expected https://%s", url, config.DEFAULT_ADDR)
	}

	appCtx.Config.Server.Addr = ""
	if _, err := app.ServerURL(appCtx); err == nil {
		t.Error("no error with server.addr not set")
	}
}

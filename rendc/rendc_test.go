// Copyright 2026, Square, Inc.

package rendc_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/square/rendergraph/rendc"
	"github.com/square/rendergraph/rendc/app"
	"github.com/square/rendergraph/test"
)

func context(out *bytes.Buffer) app.Context {
	return app.Context{
		In:        os.Stdin,
		Out:       out,
		Hooks:     app.Hooks{},
		Factories: app.Factories{},
	}
}

func args(t *testing.T, a ...string) {
	// No config files: only the command line is used.
	noConfig := filepath.Join(t.TempDir(), "rendc.yaml")
	os.Args = append([]string{"rendc", "--config", noConfig}, a...)
}

func TestArgsNoCommand(t *testing.T) {
	args(t, "--addr", "http://localhost")
	err := rendc.Run(context(&bytes.Buffer{}))
	if err != app.ErrHelp {
		t.Errorf("got error '%v', expected ErrHelp", err)
	}
}

func TestArgsHelpCommand(t *testing.T) {
	out := &bytes.Buffer{}
	args(t, "--help")
	err := rendc.Run(context(out))
	if err != app.ErrHelp {
		t.Errorf("got error '%v', expected ErrHelp", err)
	}
	if !strings.Contains(out.String(), "Commands:") {
		t.Errorf("no usage printed:\n%s", out)
	}
}

func TestNoBackend(t *testing.T) {
	args(t, "nodes")
	if err := rendc.Run(context(&bytes.Buffer{})); err == nil {
		t.Error("no error without --addr or --graph")
	}
}

func TestLocalRenderWithSet(t *testing.T) {
	out := &bytes.Buffer{}
	graph := filepath.Join(test.GraphPath, "comp.yaml")
	args(t, "--graph", graph, "--set", "constant1.width=16", "--set", "viewer1.gain=1", "metadata", "constant1")
	if err := rendc.Run(context(out)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "format:       0,0,16,64") {
		t.Errorf("--set not applied:\n%s", out)
	}

	out.Reset()
	tif := filepath.Join(t.TempDir(), "viewer.tif")
	args(t, "--graph", graph, "render", "viewer1.A", "roi=0,0,8,8", "out="+tif)
	if err := rendc.Run(context(out)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), " OK\n") {
		t.Errorf("render not OK:\n%s", out)
	}
	if _, err := os.Stat(tif); err != nil {
		t.Error(err)
	}
}

func TestSetErrors(t *testing.T) {
	graph := filepath.Join(test.GraphPath, "comp.yaml")
	for _, set := range []string{"gain=2", "blur1.size=1", "grade1.gain=high"} {
		args(t, "--graph", graph, "--set", set, "nodes")
		if err := rendc.Run(context(&bytes.Buffer{})); err == nil {
			t.Errorf("no error for --set %s", set)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	args(t, "--graph", filepath.Join(test.GraphPath, "comp.yaml"), "start")
	err := rendc.Run(context(&bytes.Buffer{}))
	if err == nil || !strings.Contains(err.Error(), "Unknown command: start") {
		t.Errorf("got error '%v', expected unknown command", err)
	}
}

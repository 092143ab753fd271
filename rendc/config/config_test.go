// Copyright 2026, Square, Inc.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/rendergraph/rendc/config"
)

func TestParseCommandLine(t *testing.T) {
	def := config.Options{Addr: "http://127.0.0.1:32310", Timeout: config.DEFAULT_TIMEOUT}
	args := []string{"--set", "grade1.gain=2", "--set", "viewer1.gamma=1.2", "render", "viewer1.A", "time=3"}
	c, err := config.ParseCommandLine(def, args)
	if err != nil {
		t.Fatal(err)
	}
	if c.Addr != def.Addr || c.Timeout != def.Timeout {
		t.Errorf("options %+v, expected defaults kept", c.Options)
	}
	if diff := deep.Equal(c.Set, []string{"grade1.gain=2", "viewer1.gamma=1.2"}); diff != nil {
		t.Error(diff)
	}
	expect := config.Command{Cmd: "render", Args: []string{"viewer1.A", "time=3"}}
	if diff := deep.Equal(c.Command, expect); diff != nil {
		t.Error(diff)
	}

	c, err = config.ParseCommandLine(def, []string{"--help"})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Help {
		t.Error("Help not set with --help")
	}

	if _, err := config.ParseCommandLine(def, []string{"--bogus"}); err == nil {
		t.Error("no error for unknown option")
	}
}

func TestParseConfigFiles(t *testing.T) {
	dir := t.TempDir()
	f1 := filepath.Join(dir, "rendc.yaml")
	f2 := filepath.Join(dir, "user.yaml")
	if err := os.WriteFile(f1, []byte("addr: http://render1:32310\ntimeout: 1000\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f2, []byte("graph: comp.yaml\n"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "missing.yaml")

	o := config.ParseConfigFiles(f1+","+missing+","+f2, false)
	expect := config.Options{Addr: "http://render1:32310", Graph: "comp.yaml", Timeout: 1000}
	if diff := deep.Equal(o, expect); diff != nil {
		t.Error(diff)
	}
}

// Copyright 2026, Square, Inc.

package config_test

import (
	"os"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/rendergraph/config"
)

func createTempFile(t *testing.T, content []byte) string {
	tmpfile, err := os.CreateTemp("", "for_test")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := tmpfile.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	return tmpfile.Name()
}

func TestLoadConfigFileNotExist(t *testing.T) {
	// Config file doesn't exist.
	err := config.Load("nonexistant_file.txt", nil)
	if !os.IsNotExist(err) {
		t.Errorf("expected a 'file does not exist' error, did not get one")
	}
}

func TestLoadConfigBadContent(t *testing.T) {
	// Config file exists, but contains bad content.
	content := []byte("%%---invalid_yaml")
	fileName := createTempFile(t, content)
	defer os.Remove(fileName)

	var actualConfig config.RenderServer
	err := config.Load(fileName, &actualConfig)
	if err == nil {
		t.Error("expected an error, did not get one")
	}
}

func TestLoadConfigRenderServer(t *testing.T) {
	// Valid render server config file, over the defaults
	content := []byte(`
---
server:
  addr: ":8888"
  tls:
    cert_file: server.crt
    key_file: server.key
render:
  workers: 4
  default_colorspace: Rec.709
cache:
  capacity: 500
graph_file: /var/lib/rendergraph/comp.yaml
trace:
  enabled: true
`)
	fileName := createTempFile(t, content)
	defer os.Remove(fileName)

	actualConfig := config.Defaults()
	err := config.Load(fileName, &actualConfig)
	if err != nil {
		t.Errorf("err = %s, expected nil", err)
	}

	expectedConfig := config.RenderServer{
		Server: config.Server{
			Addr: ":8888",
			TLS: config.TLS{
				CertFile: "server.crt",
				KeyFile:  "server.key",
			},
		},
		Render: config.Render{
			Workers:           4,
			MaxBufferBytes:    config.DEFAULT_MAX_BUFFER,
			DefaultColorspace: "Rec.709",
		},
		Cache: config.Cache{
			Capacity: 500,
		},
		GraphFile: "/var/lib/rendergraph/comp.yaml",
		LogLevel:  config.DEFAULT_LOG_LEVEL,
		Trace: config.Trace{
			Enabled: true,
		},
	}

	if diff := deep.Equal(actualConfig, expectedConfig); diff != nil {
		t.Error(diff)
	}
	if err := actualConfig.Validate(); err != nil {
		t.Errorf("Validate: %s", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RENDERGRAPH_SERVER_ADDR", ":9999")
	t.Setenv("RENDERGRAPH_WORKERS", "8")
	t.Setenv("RENDERGRAPH_LOG_LEVEL", "debug")

	cfg := config.Defaults()
	if err := config.ApplyEnv(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" || cfg.Render.Workers != 8 || cfg.LogLevel != "debug" {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.Cache.Capacity != config.DEFAULT_CACHE_CAPACITY {
		t.Errorf("cache capacity = %d, expected default %d", cfg.Cache.Capacity, config.DEFAULT_CACHE_CAPACITY)
	}

	t.Setenv("RENDERGRAPH_CACHE_CAPACITY", "lots")
	if err := config.ApplyEnv(&cfg); err == nil {
		t.Error("no error for an invalid RENDERGRAPH_CACHE_CAPACITY")
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("RENDERGRAPH_TEST_EMPTY", "")
	if v := config.Env("RENDERGRAPH_TEST_EMPTY", "def"); v != "" {
		t.Errorf("got %q, expected the empty value of a set env var", v)
	}
	if v := config.Env("RENDERGRAPH_TEST_NOT_SET", "def"); v != "def" {
		t.Errorf("got %q, expected def", v)
	}
}

func TestValidate(t *testing.T) {
	valid := config.Defaults()
	valid.GraphFile = "comp.yaml"
	if err := valid.Validate(); err != nil {
		t.Fatalf("defaults with a graph file: %s", err)
	}

	invalid := []func(*config.RenderServer){
		func(c *config.RenderServer) { c.GraphFile = "" },
		func(c *config.RenderServer) { c.Server.Addr = "" },
		func(c *config.RenderServer) { c.Render.Workers = -1 },
		func(c *config.RenderServer) { c.Render.MaxBufferBytes = -1 },
		func(c *config.RenderServer) { c.Cache.Capacity = -1 },
		func(c *config.RenderServer) { c.Render.DefaultColorspace = "P3" },
		func(c *config.RenderServer) { c.LogLevel = "loud" },
	}
	for i, set := range invalid {
		cfg := valid
		set(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: no error", i)
		}
	}
}

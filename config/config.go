// Copyright 2026, Square, Inc.

package config

import (
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/square/rendergraph/proto"
)

const (
	DEFAULT_CONFIG_FILE    = "/etc/rendergraph/render-server.yaml"
	DEFAULT_ADDR           = "127.0.0.1:32310"
	DEFAULT_WORKERS        = 0       // no limit
	DEFAULT_CACHE_CAPACITY = 10000   // planes
	DEFAULT_MAX_BUFFER     = 1 << 30 // bytes, 1 GiB
	DEFAULT_LOG_LEVEL      = "info"
)

///////////////////////////////////////////////////////////////////////////////
// High-Level Config Structs
///////////////////////////////////////////////////////////////////////////////

// The config used by the render server. This is read from in
// render-server/bin/main.go
type RenderServer struct {
	// The config that the render server will run with.
	Server Server `yaml:"server"`

	// How the server renders.
	Render Render `yaml:"render"`

	// The pixel cache shared by every render.
	Cache Cache `yaml:"cache"`

	// The graph file (see package graphfile) the server renders.
	GraphFile string `yaml:"graph_file"`

	// Log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Trace Trace `yaml:"trace"`
}

///////////////////////////////////////////////////////////////////////////////
// Config Components
///////////////////////////////////////////////////////////////////////////////

// Configuration for a web server.
type Server struct {
	// The address the server will listen on (ex: "127.0.0.1:80").
	Addr string `yaml:"addr"`

	// The TLS config used by the server.
	TLS TLS `yaml:"tls"`
}

// Configuration of the render engine.
type Render struct {
	// Number of inputs of one node evaluated concurrently. 0 is no limit.
	Workers int `yaml:"workers"`

	// The largest buffer one render action can allocate, in bytes. 0 is no
	// limit.
	MaxBufferBytes int64 `yaml:"max_buffer_bytes"`

	// Device colorspace of viewers that do not set one in the graph file:
	// Linear, sRGB or Rec.709.
	DefaultColorspace string `yaml:"default_colorspace"`
}

// Configuration of the pixel cache.
type Cache struct {
	// Maximum number of cached planes. 0 disables caching.
	Capacity int `yaml:"capacity"`
}

// Configuration of render tracing.
type Trace struct {
	// Log a debug line per span.
	Enabled bool `yaml:"enabled"`
}

// TLS configuration.
type TLS struct {
	// The certificate file to use.
	CertFile string `yaml:"cert_file"`

	// The key file to use.
	KeyFile string `yaml:"key_file"`
}

///////////////////////////////////////////////////////////////////////////////
// Loading Config
///////////////////////////////////////////////////////////////////////////////

// Defaults returns the default render server config. The config file and
// env vars override it.
func Defaults() RenderServer {
	return RenderServer{
		Server: Server{
			Addr: DEFAULT_ADDR,
		},
		Render: Render{
			Workers:        DEFAULT_WORKERS,
			MaxBufferBytes: DEFAULT_MAX_BUFFER,
		},
		Cache: Cache{
			Capacity: DEFAULT_CACHE_CAPACITY,
		},
		LogLevel: DEFAULT_LOG_LEVEL,
	}
}

// Load loads a configuration file into the struct pointed to by the
// configStruct argument. Only the values set in the file are changed.
func Load(configFile string, configStruct interface{}) error {
	// Make sure the file exists.
	_, err := os.Stat(configFile)
	if err != nil {
		return err
	}

	// Read the file.
	data, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}

	// Unmarshal the contents of the file into the provided struct.
	err = yaml.Unmarshal(data, configStruct)
	if err != nil {
		return err
	}

	return nil
}

// Env returns the value of env var envvar, or def if it is not set.
func Env(envvar, def string) string {
	if v, ok := os.LookupEnv(envvar); ok {
		return v
	}
	return def
}

// ApplyEnv overrides cfg with the RENDERGRAPH_* env vars that are set.
func ApplyEnv(cfg *RenderServer) error {
	cfg.Server.Addr = Env("RENDERGRAPH_SERVER_ADDR", cfg.Server.Addr)
	cfg.GraphFile = Env("RENDERGRAPH_GRAPH_FILE", cfg.GraphFile)
	cfg.LogLevel = Env("RENDERGRAPH_LOG_LEVEL", cfg.LogLevel)
	cfg.Render.DefaultColorspace = Env("RENDERGRAPH_DEFAULT_COLORSPACE", cfg.Render.DefaultColorspace)

	if v := Env("RENDERGRAPH_WORKERS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RENDERGRAPH_WORKERS: %s", err)
		}
		cfg.Render.Workers = n
	}
	if v := Env("RENDERGRAPH_CACHE_CAPACITY", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RENDERGRAPH_CACHE_CAPACITY: %s", err)
		}
		cfg.Cache.Capacity = n
	}
	return nil
}

// Validate returns an error if a value of cfg is invalid.
func (cfg RenderServer) Validate() error {
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr not set")
	}
	if cfg.GraphFile == "" {
		return fmt.Errorf("graph_file not set")
	}
	if cfg.Render.Workers < 0 {
		return fmt.Errorf("render.workers must be >= 0, got %d", cfg.Render.Workers)
	}
	if cfg.Render.MaxBufferBytes < 0 {
		return fmt.Errorf("render.max_buffer_bytes must be >= 0, got %d", cfg.Render.MaxBufferBytes)
	}
	if cfg.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must be >= 0, got %d", cfg.Cache.Capacity)
	}
	if cs := cfg.Render.DefaultColorspace; cs != "" {
		if _, ok := proto.ColorspaceValue[cs]; !ok {
			return fmt.Errorf("render.default_colorspace: invalid colorspace %q", cs)
		}
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %s", err)
	}
	return nil
}

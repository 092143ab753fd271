// Copyright 2026, Square, Inc.

// Package app provides app-wide context, hooks, and factories for the render
// server. Defaults are used unless the caller provides their own.
package app

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	log "github.com/sirupsen/logrus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/square/rendergraph/config"
	"github.com/square/rendergraph/graphfile"
	"github.com/square/rendergraph/nodes"
	"github.com/square/rendergraph/render"
	"github.com/square/rendergraph/render/cache"
)

type Context struct {
	Hooks     Hooks
	Factories Factories

	Config config.RenderServer
}

type Factories struct {
	MakeEngine  func(Context) (*render.Engine, error)
	MakeProject func(Context) (*graphfile.Project, error)
}

type Hooks struct {
	LoadConfig func(Context) (config.RenderServer, error)
	Auth       func(*http.Request) (bool, error)

	// RunAPI runs the render server API. It should block until the API is
	// stopped via a call to StopAPI. If this hook is provided, it is called
	// instead of api.Run, and StopAPI must be provided as well.
	RunAPI func() error

	// StopAPI stops running the render server API. It's called when the
	// server is stopped, and it should cause RunAPI to return.
	StopAPI func() error
}

func Defaults() Context {
	return Context{
		Factories: Factories{
			MakeEngine:  MakeEngine,
			MakeProject: MakeProject,
		},
		Hooks: Hooks{
			LoadConfig: LoadConfig,
		},
	}
}

// LoadConfig loads the config file named by RENDERGRAPH_CONFIG, or the default
// config file if it exists, over the defaults. Env vars override both.
func LoadConfig(appCtx Context) (config.RenderServer, error) {
	cfg := config.Defaults()
	file, set := os.LookupEnv("RENDERGRAPH_CONFIG")
	if !set {
		file = config.DEFAULT_CONFIG_FILE
	}
	if err := config.Load(file, &cfg); err != nil {
		if set || !os.IsNotExist(err) {
			return cfg, err
		}
		log.Infof("config file %s does not exist, using defaults", file)
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MakeEngine makes the render engine and its cache. With tracing enabled,
// render spans are logged at debug level.
func MakeEngine(appCtx Context) (*render.Engine, error) {
	cfg := appCtx.Config
	engineCfg := render.Config{
		MaxBufferBytes: cfg.Render.MaxBufferBytes,
		Workers:        cfg.Render.Workers,
		Cache:          cache.NewMemory(cfg.Cache.Capacity),
	}
	if cfg.Trace.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(LogExporter{}))
		engineCfg.Tracer = tp.Tracer(render.TRACER_NAME)
	}
	return render.NewEngine(engineCfg), nil
}

// MakeProject loads the graph file. Viewers that do not set a device
// colorspace get the default one from the config.
func MakeProject(appCtx Context) (*graphfile.Project, error) {
	cfg := appCtx.Config
	f, err := graphfile.ParseFile(cfg.GraphFile, log.Warnf)
	if err != nil {
		return nil, err
	}
	if cs := cfg.Render.DefaultColorspace; cs != "" {
		for _, n := range f.Nodes {
			if n.Type == "viewer" {
				n.Params = withDefault(n.Params, "deviceColorspace", cs)
			}
		}
		for _, v := range f.Viewers {
			v.Params = withDefault(v.Params, "deviceColorspace", cs)
		}
	}
	p, err := f.Build(nodes.Factory)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", cfg.GraphFile, err)
	}
	return p, nil
}

// ServerURL returns the base URL of the server, from Server.Addr in the
// config. The scheme is https if TLS is configured.
func ServerURL(appCtx Context) (string, error) {
	var serverURL url.URL
	serverURL.Host = appCtx.Config.Server.Addr
	if serverURL.Host == "" {
		return "", fmt.Errorf("server.addr not set in config")
	}
	if appCtx.Config.Server.TLS.CertFile != "" && appCtx.Config.Server.TLS.KeyFile != "" {
		serverURL.Scheme = "https"
	} else {
		serverURL.Scheme = "http"
	}
	return serverURL.String(), nil
}

func withDefault(params map[string]interface{}, name string, v interface{}) map[string]interface{} {
	if params == nil {
		params = map[string]interface{}{}
	}
	if _, ok := params[name]; !ok {
		params[name] = v
	}
	return params
}

// Copyright 2026, Square, Inc.

// Package backend provides the backends rendc renders with: the render server,
// or a graph file rendered in-process.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graphfile"
	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/rendc/app"
	"github.com/square/rendergraph/rendc/config"
	"github.com/square/rendergraph/render"
	rs "github.com/square/rendergraph/render-server"
	"github.com/square/rendergraph/render/cache"
	"github.com/square/rendergraph/util"
)

// Planes cached by an in-process backend. rendc runs one command, so this
// only matters for renders that read a node more than once.
const LOCAL_CACHE_CAPACITY = 1000

// DefaultFactory makes a Local backend if --graph is set, else a render
// server client for --addr.
type DefaultFactory struct{}

func (f DefaultFactory) Make(ctx app.Context) (app.Backend, error) {
	o := ctx.Options
	timeout := time.Duration(o.Timeout) * time.Millisecond
	if o.Graph != "" {
		if o.Debug {
			app.Debug("graph: %s", o.Graph)
		}
		engine := render.NewEngine(render.Config{Cache: cache.NewMemory(LOCAL_CACHE_CAPACITY)})
		return NewLocal(o.Graph, engine, timeout)
	}
	if o.Addr == "" {
		return nil, fmt.Errorf("Render server address is not set."+
			" It is best to specify addr in a config file (%s). Or, specify"+
			" --addr on the command line or set the ADDR environment"+
			" variable. Use --graph to render a graph file without a server.", config.DEFAULT_CONFIG_FILES)
	}
	if o.Debug {
		app.Debug("addr: %s", o.Addr)
	}
	httpClient := &http.Client{Timeout: timeout}
	if o.TLS.Set() {
		tlsConfig, err := util.NewTLSConfig(o.TLS.CAFile, o.TLS.CertFile, o.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("Error loading TLS config: %s", err)
		}
		httpClient.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
	return rs.NewClient(httpClient, o.Addr), nil
}

// Local loads a graph file and renders it in-process.
type Local struct {
	file    string
	project *graphfile.Project
	engine  *render.Engine
	timeout time.Duration
}

var _ app.Backend = &Local{}

// NewLocal loads the graph file. Renders are cancelled after timeout, if not
// zero.
func NewLocal(file string, engine *render.Engine, timeout time.Duration) (*Local, error) {
	project, err := graphfile.Load(file, log.Warnf)
	if err != nil {
		return nil, err
	}
	return &Local{
		file:    file,
		project: project,
		engine:  engine,
		timeout: timeout,
	}, nil
}

func (l *Local) evaluate(req proto.RenderRequest) (render.Result, error) {
	ctx := context.Background()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.engine.Evaluate(ctx, l.project.Graph.Snapshot(), req)
}

func (l *Local) Render(req proto.RenderRequest) (proto.RenderResponse, error) {
	res, err := l.evaluate(req)
	return res.Response(), err
}

func (l *Local) RenderTIFF(req proto.RenderRequest, plane string) ([]byte, proto.RenderResponse, error) {
	var c proto.Components
	if plane != "" {
		var err error
		if c, err = proto.ParseComponents(plane); err != nil {
			return nil, proto.RenderResponse{}, err
		}
	}
	res, err := l.evaluate(req)
	if err != nil || res.Status != proto.STATUS_OK {
		return nil, res.Response(), err
	}
	img, err := res.TIFF(c)
	return img, res.Response(), err
}

// Running returns no renders: in-process renders return before the next
// command runs.
func (l *Local) Running() ([]proto.RunningRender, error) {
	return []proto.RunningRender{}, nil
}

func (l *Local) Stop(requestId string) error {
	return fmt.Errorf("%s: %w", requestId, app.ErrNotRunning)
}

func (l *Local) Nodes() ([]string, error) {
	return l.project.Graph.Names(), nil
}

func (l *Local) Metadata(node string) (proto.NodeMetadata, error) {
	md, err := l.engine.Metadata(l.project.Graph.Snapshot(), node)
	if err != nil {
		return proto.NodeMetadata{}, err
	}
	return md.Proto(node), nil
}

func (l *Local) SetParams(node string, values map[string]interface{}) error {
	if l.project.Params(node) == nil {
		return rerr.NodeNotFound{Node: node}
	}
	return l.project.Apply(map[string]map[string]interface{}{node: values})
}

func (l *Local) Graph() (string, error) {
	var buf bytes.Buffer
	l.project.Graph.Snapshot().WriteDot(&buf, l.file)
	return buf.String(), nil
}

func (l *Local) CacheStatus() (proto.CacheStatus, error) {
	return l.engine.Cache().Status(), nil
}

func (l *Local) PurgeCache() error {
	l.engine.Cache().Purge()
	return nil
}

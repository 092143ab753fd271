// Copyright 2026, Square, Inc.

// Package api provides controllers for each api endpoint. Controllers are
// "dumb wiring"; there is little to no application logic in this package.
// Controllers call and coordinate other packages to satisfy the api endpoint.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graphfile"
	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/render"
	"github.com/square/rendergraph/render-server/app"
	"github.com/square/rendergraph/util"
	"github.com/square/rendergraph/version"
)

const (
	API_ROOT = "/api/v1/"

	CONTENT_TYPE_TIFF = "image/tiff"
	CONTENT_TYPE_DOT  = "text/vnd.graphviz"

	HEADER_REQUEST_ID    = "X-Request-Id"
	HEADER_RENDER_STATUS = "X-Render-Status"
)

var (
	// Errors related to getting and setting renders in the render repo.
	ErrDuplicateRender = errors.New("render already running")
	ErrRenderNotFound  = errors.New("render not found")
	ErrInvalidRender   = errors.New("render found, but type is invalid")

	// Error when the render server is shutting down and not starting new renders
	ErrShuttingDown = errors.New("render server is shutting down - no new renders are being started")
)

// Config are all the things the API needs to run.
type Config struct {
	AppCtx       app.Context
	Engine       *render.Engine
	Project      *graphfile.Project
	RenderRepo   cmap.ConcurrentMap // requestId => *Running
	ShutdownChan chan struct{}
}

// Running is a render in progress.
type Running struct {
	proto.RunningRender
	Cancel context.CancelFunc
}

// Stop cancels the render. It returns immediately; the render stops at the
// next node boundary or render action.
func (r *Running) Stop() {
	r.Cancel()
}

// API provides controllers for endpoints it registers with a router.
type API struct {
	appCtx       app.Context
	engine       *render.Engine
	project      *graphfile.Project
	renderRepo   cmap.ConcurrentMap
	shutdownChan chan struct{}
	// --
	echo *echo.Echo
}

// NewAPI creates a new API struct. It initializes an echo web server within the
// struct, and registers all of the API's routes with it.
func NewAPI(cfg Config) *API {
	api := &API{
		appCtx:       cfg.AppCtx,
		engine:       cfg.Engine,
		project:      cfg.Project,
		renderRepo:   cfg.RenderRepo,
		shutdownChan: cfg.ShutdownChan,
		// --
		echo: echo.New(),
	}

	// //////////////////////////////////////////////////////////////////////
	// Routes
	// //////////////////////////////////////////////////////////////////////
	// Render a node: JSON stats, or a TIFF image with ?format=tiff.
	api.echo.POST(API_ROOT+"renders", api.renderHandler)
	// Running renders.
	api.echo.GET(API_ROOT+"renders/running", api.runningHandler)
	// Stop a running render.
	api.echo.PUT(API_ROOT+"renders/:requestId/stop", api.stopHandler)

	// Nodes, their metadata, and setting params.
	api.echo.GET(API_ROOT+"nodes", api.nodesHandler)
	api.echo.GET(API_ROOT+"nodes/:node/metadata", api.metadataHandler)
	api.echo.PUT(API_ROOT+"nodes/:node/params", api.paramsHandler)
	// The graph in DOT format.
	api.echo.GET(API_ROOT+"graph", api.graphHandler)

	// Shared pixel cache.
	api.echo.GET(API_ROOT+"cache", api.cacheHandler)
	api.echo.DELETE(API_ROOT+"cache", api.purgeCacheHandler)

	api.echo.GET(API_ROOT+"version", api.versionHandler)

	// //////////////////////////////////////////////////////////////////////
	// Middleware and hooks
	// //////////////////////////////////////////////////////////////////////
	api.echo.Use(middleware.Recover())
	api.echo.Use(middleware.Logger())

	// Auth hook
	api.echo.Use((func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if api.appCtx.Hooks.Auth == nil {
				return next(c) // no auth
			}
			ok, err := api.appCtx.Hooks.Auth(c.Request())
			if err != nil {
				return err
			}
			if !ok {
				return echo.ErrUnauthorized // 401
			}
			return next(c) // auth OK
		}
	}))

	return api
}

// Run runs the API server. It blocks until the server is stopped.
func (api *API) Run() error {
	cfg := api.appCtx.Config.Server
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		return api.echo.StartTLS(cfg.Addr, cfg.TLS.CertFile, cfg.TLS.KeyFile)
	}
	return api.echo.Start(cfg.Addr)
}

// Stop stops the API server.
func (api *API) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cfg := api.appCtx.Config.Server
	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		return api.echo.TLSServer.Shutdown(ctx)
	}
	return api.echo.Server.Shutdown(ctx)
}

func (api *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	api.echo.ServeHTTP(w, r)
}

// ============================== CONTROLLERS ============================== //

// POST <API_ROOT>/renders
// Render a node of the graph. The graph is snapshotted when the request
// arrives. The response is a proto.RenderResponse, or with ?format=tiff the
// first requested plane (or ?plane=Layer.Channels) as a TIFF image. Renders
// that are not OK always get a JSON response.
func (api *API) renderHandler(c echo.Context) error {
	// If the server is shutting down, don't start any new renders.
	select {
	case <-api.shutdownChan:
		return handleError(ErrShuttingDown, "", c)
	default:
	}

	var req proto.RenderRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Id == "" {
		req.Id = util.XID().String()
	}

	// Cancelled when the client goes away or the render is stopped.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	r := &Running{
		RunningRender: proto.RunningRender{
			RequestId: req.Id,
			Node:      req.Node,
			Time:      req.Time,
			View:      req.View,
			StartedAt: time.Now(),
		},
		Cancel: cancel,
	}
	if !api.renderRepo.SetIfAbsent(req.Id, r) {
		return handleError(ErrDuplicateRender, req.Id, c)
	}
	defer api.renderRepo.Remove(req.Id)

	res, err := api.engine.Evaluate(ctx, api.project.Graph.Snapshot(), req)
	c.Response().Header().Set(HEADER_REQUEST_ID, res.RequestId)
	c.Response().Header().Set(HEADER_RENDER_STATUS, proto.StatusName[res.Status])
	if err != nil {
		return handleError(err, req.Id, c)
	}

	if res.Status == proto.STATUS_OK && wantsTIFF(c) {
		var plane proto.Components
		if p := c.QueryParam("plane"); p != "" {
			if plane, err = proto.ParseComponents(p); err != nil {
				return handleError(badRequest{err}, req.Id, c)
			}
		}
		img, err := res.TIFF(plane)
		if err != nil {
			if errors.Is(err, render.ErrPlaneNotRendered) {
				err = badRequest{err}
			}
			return handleError(err, req.Id, c)
		}
		return c.Blob(http.StatusOK, CONTENT_TYPE_TIFF, img)
	}

	return c.JSON(http.StatusOK, res.Response())
}

// GET <API_ROOT>/renders/running
// Renders in progress, oldest first.
func (api *API) runningHandler(c echo.Context) error {
	running := []proto.RunningRender{}
	for item := range api.renderRepo.IterBuffered() {
		r, ok := item.Val.(*Running)
		if !ok {
			continue
		}
		running = append(running, r.RunningRender)
	}
	sort.Slice(running, func(i, j int) bool {
		return running[i].StartedAt.Before(running[j].StartedAt)
	})
	return c.JSON(http.StatusOK, running)
}

// PUT <API_ROOT>/renders/{requestId}/stop
// Stop a running render. The render returns STATUS_CANCELLED to its caller.
func (api *API) stopHandler(c echo.Context) error {
	requestId := c.Param("requestId")

	val, exists := api.renderRepo.Get(requestId)
	if !exists {
		return handleError(ErrRenderNotFound, requestId, c)
	}
	r, ok := val.(*Running)
	if !ok {
		return handleError(ErrInvalidRender, requestId, c)
	}

	// This is expected to return quickly. The render removes itself from
	// the repo when it returns.
	r.Stop()
	log.WithField("requestId", requestId).Info("render stopped")
	return c.NoContent(http.StatusOK)
}

// GET <API_ROOT>/nodes
func (api *API) nodesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, api.project.Graph.Names())
}

// GET <API_ROOT>/nodes/{node}/metadata
func (api *API) metadataHandler(c echo.Context) error {
	name := c.Param("node")
	md, err := api.engine.Metadata(api.project.Graph.Snapshot(), name)
	if err != nil {
		return handleError(err, "", c)
	}
	return c.JSON(http.StatusOK, md.Proto(name))
}

// PUT <API_ROOT>/nodes/{node}/params
// Set params of a node (or viewer group) from a JSON object: param name =>
// value. Renders already running are not affected.
func (api *API) paramsHandler(c echo.Context) error {
	name := c.Param("node")
	var values map[string]interface{}
	if err := c.Bind(&values); err != nil {
		return err
	}
	if api.project.Params(name) == nil {
		return handleError(rerr.NodeNotFound{Node: name}, "", c)
	}
	if err := api.project.Apply(map[string]map[string]interface{}{name: values}); err != nil {
		return handleError(badRequest{err}, "", c)
	}
	return c.NoContent(http.StatusOK)
}

// GET <API_ROOT>/graph
func (api *API) graphHandler(c echo.Context) error {
	var buf bytes.Buffer
	api.project.Graph.Snapshot().WriteDot(&buf, api.appCtx.Config.GraphFile)
	return c.Blob(http.StatusOK, CONTENT_TYPE_DOT, buf.Bytes())
}

// GET <API_ROOT>/cache
func (api *API) cacheHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, api.engine.Cache().Status())
}

// DELETE <API_ROOT>/cache
func (api *API) purgeCacheHandler(c echo.Context) error {
	api.engine.Cache().Purge()
	return c.NoContent(http.StatusOK)
}

// GET <API_ROOT>/version
func (api *API) versionHandler(c echo.Context) error {
	return c.String(http.StatusOK, version.Version())
}

// ------------------------------------------------------------------------- //

type badRequest struct {
	error
}

func handleError(err error, requestId string, c echo.Context) error {
	ret := proto.Error{
		Message:    err.Error(),
		RequestId:  requestId,
		Node:       rerr.NodeOf(err),
		HTTPStatus: http.StatusInternalServerError,
	}

	var (
		nnf rerr.NodeNotFound
		mu  rerr.MetadataUnavailable
		uf  rerr.UnsupportedFormat
		ior rerr.InputOutOfRange
		di  rerr.DanglingIdentity
		oom rerr.OutOfMemory
		br  badRequest
	)
	switch {
	case errors.As(err, &nnf):
		ret.HTTPStatus = http.StatusNotFound
	case errors.As(err, &mu), errors.As(err, &uf), errors.As(err, &ior), errors.As(err, &di), errors.As(err, &br):
		ret.HTTPStatus = http.StatusUnprocessableEntity
	case errors.As(err, &oom):
		ret.HTTPStatus = http.StatusServiceUnavailable
	}

	switch err {
	case ErrRenderNotFound:
		ret.HTTPStatus = http.StatusNotFound
	case ErrDuplicateRender:
		ret.HTTPStatus = http.StatusConflict
	case ErrShuttingDown:
		ret.HTTPStatus = http.StatusServiceUnavailable
	}

	return c.JSON(ret.HTTPStatus, ret)
}

func wantsTIFF(c echo.Context) bool {
	if c.QueryParam("format") == "tiff" {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), CONTENT_TYPE_TIFF)
}

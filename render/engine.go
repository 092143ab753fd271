// Copyright 2026, Square, Inc.

// Package render evaluates render requests on graph snapshots.
//
// An Engine walks the graph depth-first from the requested node. For every
// node it computes the metadata (once per render), decides if the node is an
// identity of one of its inputs, computes the cache key of what the node must
// produce and returns it from the shared cache, from a computation of the
// same key running for another render, or by evaluating the inputs the node
// reads and rendering it. Sibling inputs are evaluated concurrently.
//
// A render is cancelled with its context. Cancellation is checked at every
// node boundary and before every render action, and a cancelled render
// returns STATUS_CANCELLED, not an error.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/render/cache"
	"github.com/square/rendergraph/util"
)

const TRACER_NAME = "github.com/square/rendergraph/render"

var ErrPlaneNotRendered = errors.New("plane not rendered")

// Config configures an Engine. The zero value is valid: no buffer size
// limit, no cache, unlimited concurrency and the global tracer provider.
type Config struct {
	// MaxBufferBytes is the largest buffer a render action can allocate.
	// Zero means no limit.
	MaxBufferBytes int64

	// Workers is the number of inputs of one node evaluated concurrently.
	// Zero means no limit.
	Workers int

	// Cache is the pixel cache shared by every render of the engine.
	Cache cache.Cache

	Tracer trace.Tracer
}

// Result is the outcome of a render. Planes are in the order of the
// requested planes. They are shared with the cache and must not be modified.
type Result struct {
	RequestId string
	Status    byte // proto.STATUS_*
	Planes    []*pixel.Buffer
	Stats     proto.RenderStats
}

// Plane returns the result plane c, or nil.
func (r Result) Plane(c proto.Components) *pixel.Buffer {
	for _, b := range r.Planes {
		if b != nil && b.Plane == c {
			return b
		}
	}
	return nil
}

// Response returns the result without pixels, as reported by the render
// server.
func (r Result) Response() proto.RenderResponse {
	resp := proto.RenderResponse{
		RequestId: r.RequestId,
		Status:    r.Status,
		Stats:     r.Stats,
	}
	for _, b := range r.Planes {
		if b == nil {
			continue
		}
		resp.Planes = append(resp.Planes, proto.PlaneInfo{
			Plane:  b.Plane.String(),
			Depth:  b.Depth.String(),
			Bounds: b.Bounds,
		})
	}
	return resp
}

// TIFF returns plane c of the result as a TIFF image, or the first plane if
// c is none.
func (r Result) TIFF(c proto.Components) ([]byte, error) {
	var b *pixel.Buffer
	if c.IsNone() {
		if len(r.Planes) > 0 {
			b = r.Planes[0]
		}
	} else {
		b = r.Plane(c)
	}
	if b == nil {
		return nil, fmt.Errorf("%s: %w", c, ErrPlaneNotRendered)
	}
	var buf bytes.Buffer
	if err := b.EncodeTIFF(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Engine renders graph snapshots. It is safe for concurrent use: renders of
// the same engine share its cache and the computations running for a key.
type Engine struct {
	cache   cache.Cache
	alloc   pixel.Allocator
	flights *flightGroup
	tracer  trace.Tracer
	workers int
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		cache:   cfg.Cache,
		alloc:   pixel.Allocator{Limit: cfg.MaxBufferBytes},
		flights: newFlightGroup(),
		tracer:  cfg.Tracer,
		workers: cfg.Workers,
	}
	if e.cache == nil {
		e.cache = cache.NewMemory(0)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(TRACER_NAME)
	}
	return e
}

// Cache returns the cache shared by the renders of the engine.
func (e *Engine) Cache() cache.Cache {
	return e.cache
}

// Evaluate renders req on snap. The request id is generated if not set, and
// Color.RGBA is rendered if no planes are requested.
//
// The error is nil when the status is STATUS_OK, STATUS_EMPTY or
// STATUS_CANCELLED. A region of interest with no pixels at the request scale
// is STATUS_EMPTY with empty planes. On STATUS_FAILED the error is one of the
// errors package and names the node that caused it.
func (e *Engine) Evaluate(ctx context.Context, snap *graph.Snapshot, req proto.RenderRequest) (Result, error) {
	if req.Id == "" {
		req.Id = util.XID().String()
	}
	if len(req.Planes) == 0 {
		req.Planes = []proto.Components{proto.COMPONENTS_RGBA}
	}
	res := Result{RequestId: req.Id}

	ctx, span := e.tracer.Start(ctx, "render.Evaluate", trace.WithAttributes(
		attribute.String("render.request_id", req.Id),
		attribute.String("render.node", req.Node),
		attribute.Float64("render.time", float64(req.Time)),
		attribute.Int("render.view", int(req.View)),
	))
	defer span.End()

	tc := newTreeContext(e, snap, req)
	tc.log.WithFields(log.Fields{"node": req.Node, "time": req.Time, "roi": req.RoI.String()}).Debug("render")

	if _, err := snap.Vertex(req.Node); err != nil {
		res.Status = proto.STATUS_FAILED
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}

	roi := req.RoI.ToPixel(tc.scale)
	if roi.IsEmpty() {
		res.Status = proto.STATUS_EMPTY
		res.Planes = emptyPlanes(req.Planes, proto.BITDEPTH_NONE)
		res.Stats = tc.stats.copy()
		return res, nil
	}

	sub := subRequest{
		node:     req.Node,
		time:     req.Time,
		view:     req.View,
		roi:      roi,
		planes:   req.Planes,
		terminal: true,
	}
	out, err := tc.evaluate(ctx, sub)
	res.Stats = tc.stats.copy()

	var empty rerr.RegionEmpty
	switch {
	case err == nil:
		res.Planes = out.planes
		res.Status = proto.STATUS_EMPTY
		for _, b := range out.planes {
			if !b.IsEmpty() {
				res.Status = proto.STATUS_OK
				break
			}
		}
		tc.refreshMenu(sub)
	case isCancelled(err):
		tc.log.Infof("render cancelled at node %s", rerr.NodeOf(err))
		res.Status = proto.STATUS_CANCELLED
		span.SetAttributes(attribute.Bool("render.cancelled", true))
		return res, nil
	case errors.As(err, &empty):
		res.Status = proto.STATUS_EMPTY
		res.Planes = emptyPlanes(req.Planes, proto.BITDEPTH_NONE)
	default:
		tc.log.WithField("node", rerr.NodeOf(err)).Warnf("render failed: %s", err)
		res.Status = proto.STATUS_FAILED
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(attribute.String("render.status", proto.StatusName[res.Status]))
	return res, nil
}

// Metadata returns the metadata of node name in snap. Metadata does not
// depend on time or view.
func (e *Engine) Metadata(snap *graph.Snapshot, name string) (node.Metadata, error) {
	tc := newTreeContext(e, snap, proto.RenderRequest{Node: name})
	me, err := tc.metadata(name)
	if err != nil {
		return node.Metadata{}, err
	}
	return *me.md, nil
}

// Key returns the cache key of the result of req on snap, without rendering.
// Equal keys mean equal results.
func (e *Engine) Key(snap *graph.Snapshot, req proto.RenderRequest) (Key, error) {
	if len(req.Planes) == 0 {
		req.Planes = []proto.Components{proto.COMPONENTS_RGBA}
	}
	tc := newTreeContext(e, snap, req)
	p, err := tc.plan(subRequest{
		node:     req.Node,
		time:     req.Time,
		view:     req.View,
		roi:      req.RoI.ToPixel(tc.scale),
		planes:   req.Planes,
		terminal: true,
	})
	if err != nil {
		return 0, err
	}
	return p.out, nil
}

func isCancelled(err error) bool {
	return rerr.IsCancelled(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Copyright 2026, Square, Inc.

package render

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

// subRequest is what one node is asked for during a render. A render request
// fans out into one sub-request per node, time and region it needs.
type subRequest struct {
	node     string
	time     proto.Time
	view     proto.ViewIdx
	roi      proto.RectI // pixel coordinates at the render scale
	planes   []proto.Components
	terminal bool // node is the requested node of the render
}

func (s subRequest) id() string {
	planes := make([]string, len(s.planes))
	for i, c := range s.planes {
		planes[i] = c.String()
	}
	return fmt.Sprintf("%s|%v|%d|%s|%s|%t", s.node, s.time, s.view, s.roi, strings.Join(planes, ","), s.terminal)
}

// rendered is the output of a node evaluation. It is partial if an optional
// input was dropped while rendering it or anything upstream. A partial output
// does not match its cache key and is never stored in the shared cache.
type rendered struct {
	planes  []*pixel.Buffer
	partial bool
}

// treeContext is the state of one top-level render: the graph snapshot, the
// memoized metadata and plans of its nodes, and its stats. It is shared by
// every goroutine of the render.
type treeContext struct {
	e     *Engine
	snap  *graph.Snapshot
	req   proto.RenderRequest
	scale proto.RenderScale
	log   *log.Entry
	stats *stats
	meta  sync.Map // node name => *metaEntry
	plans sync.Map // subRequest.id() => *plan
}

func newTreeContext(e *Engine, snap *graph.Snapshot, req proto.RenderRequest) *treeContext {
	return &treeContext{
		e:     e,
		snap:  snap,
		req:   req,
		scale: req.Scale.Normalized(),
		log:   log.WithFields(log.Fields{"requestId": req.Id, "graphVersion": snap.Version}),
		stats: newStats(),
	}
}

// plan is everything decided about a sub-request before any pixel is
// rendered: metadata, identity, planes produced and read, the sub-requests
// of the inputs and the cache keys. Planning a sub-request plans its whole
// upstream tree, so every branch error is known before rendering starts.
type plan struct {
	once sync.Once
	err  error

	sub    subRequest
	vertex *graph.Vertex
	md     *node.Metadata
	inputs []*node.Metadata // per input, nil if unusable
	region proto.RectI      // sub.roi clipped to the node format
	depth  proto.BitDepth

	empty    bool
	identity *node.Identity

	// Terminal display node only
	display   node.Display
	settings  node.DisplaySettings
	selection *node.Selection
	available []proto.Components // planes at its input, for its layer menu

	produced    []proto.Components // requested planes the node renders
	passThrough []proto.Components // requested planes it does not render
	passSub     *subRequest        // where passThrough planes come from, nil for zero-filled
	inputOrder  []int
	inputSubs   map[int]subRequest
	optional    []bool

	key Key // of the produced planes
	out Key // of the whole result of the sub-request
}

func (p *plan) identitySub() subRequest {
	src, _ := p.vertex.Input(p.identity.Input)
	return subRequest{
		node:   src,
		time:   p.identity.Time,
		view:   p.identity.View,
		roi:    p.sub.roi,
		planes: p.sub.planes,
	}
}

func (p *plan) flightKey() string {
	planes := make([]string, len(p.produced))
	for i, c := range p.produced {
		planes[i] = c.String()
	}
	return p.key.String() + "/" + strings.Join(planes, ",")
}

// plan returns the plan of sub, making it at most once per tree context.
func (tc *treeContext) plan(sub subRequest) (*plan, error) {
	e, _ := tc.plans.LoadOrStore(sub.id(), &plan{sub: sub})
	p := e.(*plan)
	p.once.Do(func() {
		p.err = tc.makePlan(p)
	})
	return p, p.err
}

func (tc *treeContext) makePlan(p *plan) error {
	sub := p.sub
	v, err := tc.snap.Vertex(sub.node)
	if err != nil {
		return err
	}
	me, err := tc.metadata(sub.node)
	if err != nil {
		return err
	}
	n := v.Node
	name := n.Name()
	caps := n.Capabilities()

	p.vertex = v
	p.md = me.md
	p.inputs = me.inputs
	p.depth = me.md.BitDepth
	p.region = sub.roi.Intersect(me.md.Format.ToPixel(tc.scale))

	id, empty, err := tc.resolveIdentity(p)
	if err != nil {
		return err
	}
	if empty {
		p.empty = true
		p.out = emptyKey
		return nil
	}
	if id.IsIdentity {
		p.identity = &id
		target, err := tc.plan(p.identitySub())
		if err != nil {
			return err
		}
		p.out = target.out
		return nil
	}

	if d, ok := n.(node.Display); ok && sub.terminal {
		var avail []proto.Components
		if len(p.inputs) > 0 && p.inputs[0] != nil {
			avail = p.inputs[0].Components
		}
		sel := resolveSelection(d, v.Params, sub.time, avail)
		p.display = d
		p.available = avail
		p.settings = d.DisplaySettings(v.Params, sub.time)
		p.selection = &sel
	}

	inputPlanes := make([][]proto.Components, len(p.inputs))
	for i, md := range p.inputs {
		if md != nil {
			inputPlanes[i] = append([]proto.Components{}, md.Components...)
		}
	}
	needs, err := n.Components(node.ComponentsArgs{
		Params:      v.Params,
		Time:        sub.time,
		View:        sub.view,
		Planes:      sub.planes,
		Metadata:    p.md,
		InputPlanes: inputPlanes,
		Selection:   p.selection,
	})
	if err != nil {
		return err
	}
	if caps.PassThrough == node.RENDER_ALL_REQUESTED_PLANES {
		needs.Produced = sub.planes
	}
	for _, c := range sub.planes {
		if containsPlane(p.produced, c) || containsPlane(p.passThrough, c) {
			continue
		}
		if containsPlane(needs.Produced, c) {
			p.produced = append(p.produced, c)
		} else {
			p.passThrough = append(p.passThrough, c)
		}
	}

	if len(p.produced) > 0 {
		if err := tc.planInputs(p, needs); err != nil {
			return err
		}
	}
	passKey, err := tc.planPassThrough(p)
	if err != nil {
		return err
	}

	acc := newAccumulator()
	acc.str(name)
	acc.u64(uint64(p.key))
	acc.planes(sub.planes)
	acc.rect(p.region)
	if p.passSub != nil {
		acc.u64(uint64(passKey))
	}
	p.out = acc.sum()
	return nil
}

// planInputs plans the inputs the node reads to render its produced planes
// and computes the cache key of those planes.
func (tc *treeContext) planInputs(p *plan, needs node.Needs) error {
	v := p.vertex
	n := v.Node
	name := n.Name()
	sub := p.sub

	if !supportsDepth(n, p.depth) {
		return rerr.UnsupportedFormat{
			Node:   name,
			Plane:  p.produced[0].String(),
			Depth:  p.depth.String(),
			Reason: "bit depth not supported",
		}
	}

	roi := p.region
	if !n.Capabilities().SupportsTiles {
		roi = p.md.Format.ToPixel(tc.scale)
	}

	indexes := make([]int, 0, len(needs.Inputs))
	for i := range needs.Inputs {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	p.inputSubs = map[int]subRequest{}
	p.optional = make([]bool, len(p.inputs))
	var keys []inputKey
	for _, i := range indexes {
		planes := needs.Inputs[i]
		if i < 0 || i >= len(p.inputs) {
			return rerr.InputOutOfRange{Node: name, Input: i, Max: len(p.inputs)}
		}
		if p.inputs[i] == nil || len(planes) == 0 {
			continue
		}
		for _, c := range planes {
			if i >= len(p.md.Accepted) || !p.md.Accepted[i].Accepts(c) {
				return rerr.UnsupportedFormat{
					Node:   name,
					Plane:  c.String(),
					Depth:  p.depth.String(),
					Reason: fmt.Sprintf("input %d does not accept %d channel planes", i, c.Count()),
				}
			}
		}
		optional, err := n.IsInputOptional(i)
		if err != nil {
			return err
		}
		src, _ := v.Input(i)
		isub := subRequest{
			node:   src,
			time:   sub.time,
			view:   sub.view,
			roi:    roi,
			planes: planes,
		}
		ip, err := tc.plan(isub)
		if err != nil {
			if optional && rerr.IsBranchError(err) {
				tc.log.WithFields(log.Fields{"node": name, "input": i}).Warnf("dropping optional input: %s", err)
				continue
			}
			return err
		}
		p.inputOrder = append(p.inputOrder, i)
		p.inputSubs[i] = isub
		p.optional[i] = optional
		keys = append(keys, inputKey{input: i, key: ip.out})
	}

	acc := newAccumulator()
	appendToHash(acc, v, hashArgs{
		time:      sub.time,
		view:      sub.view,
		scale:     tc.scale,
		region:    p.region,
		depth:     p.depth,
		inputs:    keys,
		terminal:  sub.terminal,
		selection: p.selection,
	})
	p.key = acc.sum()
	return nil
}

// planPassThrough plans where the planes the node does not render come from.
// With PASS_THROUGH_NON_RENDERED_PLANES they are fetched from the pass-through
// input if it is usable. Otherwise they are zero-filled.
func (tc *treeContext) planPassThrough(p *plan) (Key, error) {
	caps := p.vertex.Node.Capabilities()
	if len(p.passThrough) == 0 || caps.PassThrough != node.PASS_THROUGH_NON_RENDERED_PLANES {
		return 0, nil
	}
	i := caps.PassThroughInput
	src, ok := p.vertex.Input(i)
	if !ok || i >= len(p.inputs) || p.inputs[i] == nil {
		return 0, nil
	}
	psub := subRequest{
		node:   src,
		time:   p.sub.time,
		view:   p.sub.view,
		roi:    p.region,
		planes: p.passThrough,
	}
	pp, err := tc.plan(psub)
	if err != nil {
		optional, _ := p.vertex.Node.IsInputOptional(i)
		if optional && rerr.IsBranchError(err) {
			tc.log.WithFields(log.Fields{"node": p.vertex.Node.Name(), "input": i}).Warnf("dropping pass-through input: %s", err)
			return 0, nil
		}
		return 0, err
	}
	p.passSub = &psub
	return pp.out, nil
}

// ------------------------------------------------------------------------- //

// evaluate returns the planes of sub, in sub.planes order. Cancellation is
// checked first: it is checked at every node boundary.
func (tc *treeContext) evaluate(ctx context.Context, sub subRequest) (rendered, error) {
	if ctx.Err() != nil {
		return rendered{}, rerr.Cancelled{Node: sub.node}
	}
	p, err := tc.plan(sub)
	if err != nil {
		return rendered{}, err
	}
	if p.empty {
		return rendered{planes: emptyPlanes(sub.planes, p.depth)}, nil
	}
	if p.identity != nil {
		target := p.identitySub()
		tc.stats.merge(sub.node, func(s *proto.NodeRenderStats) {
			s.IdentitySkips++
			s.IdentityInput = target.node
			s.IdentityTime = target.time
			s.Scale = tc.scale
		})
		return tc.evaluate(ctx, target)
	}

	ctx, span := tc.e.tracer.Start(ctx, "render.node", trace.WithAttributes(
		attribute.String("render.node", sub.node),
		attribute.String("render.key", p.key.String()),
		attribute.String("render.region", p.region.String()),
	))
	defer span.End()

	produced, err := tc.produce(ctx, p)
	if err != nil {
		return rendered{}, err
	}

	partial := produced.partial
	byPlane := make(map[proto.Components]*pixel.Buffer, len(sub.planes))
	for i, c := range p.produced {
		byPlane[c] = produced.planes[i]
	}
	if len(p.passThrough) > 0 {
		if p.passSub != nil {
			pass, err := tc.evaluate(ctx, *p.passSub)
			if err != nil {
				return rendered{}, err
			}
			partial = partial || pass.partial
			for i, c := range p.passSub.planes {
				byPlane[c] = pass.planes[i]
			}
			tc.stats.merge(sub.node, func(s *proto.NodeRenderStats) {
				s.PassThroughFetches += uint(len(pass.planes))
			})
		} else {
			for _, c := range p.passThrough {
				byPlane[c] = pixel.NewBuffer(c, p.depth, p.region)
			}
		}
	}

	out := make([]*pixel.Buffer, len(sub.planes))
	for i, c := range sub.planes {
		out[i] = byPlane[c]
	}
	return rendered{planes: out, partial: partial}, nil
}

// produce returns the planes the node of p renders: from the shared cache,
// from a computation of the same key already running, or by computing them.
func (tc *treeContext) produce(ctx context.Context, p *plan) (rendered, error) {
	if len(p.produced) == 0 {
		return rendered{}, nil
	}
	name := p.vertex.Node.Name()
	if bufs, ok := tc.cached(p); ok {
		tc.stats.merge(name, func(s *proto.NodeRenderStats) { s.CacheHits++ })
		return rendered{planes: bufs}, nil
	}

	computed := false
	out, _, err := tc.e.flights.do(ctx, p.flightKey(), func(fctx context.Context) (rendered, error) {
		computed = true
		return tc.compute(fctx, p)
	})
	if err != nil {
		if ctx.Err() != nil {
			return rendered{}, rerr.Cancelled{Node: name}
		}
		return rendered{}, err
	}
	if !computed {
		tc.stats.merge(name, func(s *proto.NodeRenderStats) { s.SharedWaits++ })
	}
	return out, nil
}

// compute evaluates the inputs of p concurrently, then renders the node and
// stores the result in the shared cache. The first fatal input error cancels
// the other inputs. A branch error on an optional input drops that input, and
// the output is partial: p.key counts the dropped input, so it is not cached.
func (tc *treeContext) compute(ctx context.Context, p *plan) (rendered, error) {
	name := p.vertex.Node.Name()
	if bufs, ok := tc.cached(p); ok {
		tc.stats.merge(name, func(s *proto.NodeRenderStats) { s.CacheHits++ })
		return rendered{planes: bufs}, nil
	}

	results := make([]rendered, len(p.inputOrder))
	dropped := make([]bool, len(p.inputOrder))
	g, gctx := errgroup.WithContext(ctx)
	if tc.e.workers > 0 {
		g.SetLimit(tc.e.workers)
	}
	for j, i := range p.inputOrder {
		g.Go(func() error {
			in, err := tc.evaluate(gctx, p.inputSubs[i])
			if err != nil {
				if p.optional[i] && rerr.IsBranchError(err) {
					tc.log.WithFields(log.Fields{"node": name, "input": i}).Warnf("dropping optional input: %s", err)
					dropped[j] = true
					return nil
				}
				return err
			}
			results[j] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rendered{}, err
	}
	partial := false
	inputs := make(map[int][]*pixel.Buffer, len(p.inputOrder))
	for j, i := range p.inputOrder {
		if dropped[j] {
			partial = true
			tc.stats.merge(name, func(s *proto.NodeRenderStats) { s.InputsDropped++ })
			continue
		}
		partial = partial || results[j].partial
		if results[j].planes != nil {
			inputs[i] = results[j].planes
		}
	}

	if ctx.Err() != nil {
		return rendered{}, rerr.Cancelled{Node: name}
	}
	bufs, err := tc.execute(ctx, p, inputs)
	if err != nil {
		return rendered{}, err
	}
	if !partial {
		for _, b := range bufs {
			tc.e.cache.Put(uint64(p.key), b)
		}
	}
	return rendered{planes: bufs, partial: partial}, nil
}

// cached returns every produced plane of p from the shared cache, or false
// if any is missing.
func (tc *treeContext) cached(p *plan) ([]*pixel.Buffer, bool) {
	bufs := make([]*pixel.Buffer, len(p.produced))
	for i, c := range p.produced {
		b, ok := tc.e.cache.Get(uint64(p.key), c)
		if !ok {
			return nil, false
		}
		bufs[i] = b
	}
	return bufs, true
}

func emptyPlanes(planes []proto.Components, depth proto.BitDepth) []*pixel.Buffer {
	out := make([]*pixel.Buffer, len(planes))
	for i, c := range planes {
		out[i] = pixel.NewBuffer(c, depth, proto.RectI{})
	}
	return out
}

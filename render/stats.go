// Copyright 2026, Square, Inc.

package render

import (
	"sync"

	"github.com/square/rendergraph/proto"
)

// stats accumulates per-node statistics for one render. Concurrent node
// evaluations merge into it; the lock is held only for the merge.
type stats struct {
	*sync.Mutex
	nodes proto.RenderStats
}

func newStats() *stats {
	return &stats{
		Mutex: &sync.Mutex{},
		nodes: proto.RenderStats{},
	}
}

// merge calls fn with the stats of node name.
func (s *stats) merge(name string, fn func(*proto.NodeRenderStats)) {
	s.Lock()
	defer s.Unlock()
	ns, ok := s.nodes[name]
	if !ok {
		ns = proto.NodeRenderStats{Node: name}
	}
	fn(&ns)
	s.nodes[name] = ns
}

// copy returns a copy of the stats.
func (s *stats) copy() proto.RenderStats {
	s.Lock()
	defer s.Unlock()
	cp := make(proto.RenderStats, len(s.nodes))
	for name, ns := range s.nodes {
		ns.Planes = append([]string(nil), ns.Planes...)
		cp[name] = ns
	}
	return cp
}

// addPlanes adds planes to the stats, once each.
func addPlanes(ns *proto.NodeRenderStats, planes []proto.Components) {
	for _, c := range planes {
		s := c.String()
		found := false
		for _, p := range ns.Planes {
			if p == s {
				found = true
				break
			}
		}
		if !found {
			ns.Planes = append(ns.Planes, s)
		}
	}
}

// Copyright 2026, Square, Inc.

package render

import (
	rerr "github.com/square/rendergraph/errors"
	"github.com/square/rendergraph/node"
)

// resolveIdentity decides if the node of plan p needs to render. It returns
// an identity when the output of the node equals one of its inputs, and
// empty=true when the node produces nothing for the sub-request.
//
// The generic rules come first: a disabled node is its first input, or
// empty if it has none, and an empty region is empty. Then the node's own
// IsIdentity is asked. The identity a node returns is checked: it must name
// an input that is connected and whose branch was not dropped.
func (tc *treeContext) resolveIdentity(p *plan) (id node.Identity, empty bool, err error) {
	n := p.vertex.Node
	sub := p.sub

	usable := make([]bool, len(p.inputs))
	for i, md := range p.inputs {
		usable[i] = md != nil
	}

	if p.vertex.Params.Bool("disable") {
		if len(usable) > 0 && usable[0] {
			return node.Identity{IsIdentity: true, Input: 0, Time: sub.time, View: sub.view}, false, nil
		}
		return node.NotIdentity, true, nil
	}
	if p.region.IsEmpty() {
		return node.NotIdentity, true, nil
	}

	id, err = n.IsIdentity(node.IdentityArgs{
		Params:    p.vertex.Params,
		Time:      sub.time,
		View:      sub.view,
		Scale:     tc.scale,
		RoI:       p.region,
		Metadata:  p.md,
		Connected: usable,
		Terminal:  sub.terminal,
	})
	if err != nil {
		return node.NotIdentity, false, err
	}
	if !id.IsIdentity {
		return node.NotIdentity, false, nil
	}
	if id.Input < 0 || id.Input >= len(usable) || !usable[id.Input] {
		return node.NotIdentity, false, rerr.DanglingIdentity{Node: n.Name(), Input: id.Input}
	}
	return id, false, nil
}

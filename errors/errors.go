// Copyright 2026, Square, Inc.

// Package errors provides the errors of a render. All errors carry the name of
// the node that caused them so a failure deep in a graph can be reported in
// context. Messages are terse because they are always reported with the
// request that produced them.
//
// Errors fall in three classes. Branch errors (MetadataUnavailable,
// UnsupportedFormat, DanglingIdentity) abort only the branch of the graph that
// needs the node when that branch is optional for the requested output. Fatal
// errors (ComputeFailure, OutOfMemory, and the others) abort the whole render.
// Cancelled and RegionEmpty are not failures: a cancelled render returns with a
// cancelled status, an empty region returns an explicit empty result.
package errors

import (
	"errors"
	"fmt"
)

var _ error = MetadataUnavailable{}

// MetadataUnavailable is returned when upstream metadata cannot be computed:
// a mandatory input is disconnected or produces something the node cannot accept.
type MetadataUnavailable struct {
	Node   string
	Input  int
	Reason string
}

func (e MetadataUnavailable) Error() string {
	return fmt.Sprintf("node %s: metadata unavailable for input %d: %s", e.Node, e.Input, e.Reason)
}

// --------------------------------------------------------------------------

var _ error = UnsupportedFormat{}

// UnsupportedFormat is returned when a node is asked for a bit depth or plane
// it cannot produce. It is never silently degraded.
type UnsupportedFormat struct {
	Node   string
	Plane  string
	Depth  string
	Reason string
}

func (e UnsupportedFormat) Error() string {
	return fmt.Sprintf("node %s: cannot produce plane %s at depth %s: %s", e.Node, e.Plane, e.Depth, e.Reason)
}

// --------------------------------------------------------------------------

var _ error = DanglingIdentity{}

// DanglingIdentity is returned when a node declares it is an identity of an
// input that does not exist or is not connected.
type DanglingIdentity struct {
	Node  string
	Input int
}

func (e DanglingIdentity) Error() string {
	return fmt.Sprintf("node %s: identity of input %d which is not connected", e.Node, e.Input)
}

// --------------------------------------------------------------------------

var _ error = InputOutOfRange{}

// InputOutOfRange is returned by every input-indexed query when the index is
// not in [0, Max).
type InputOutOfRange struct {
	Node  string
	Input int
	Max   int
}

func (e InputOutOfRange) Error() string {
	return fmt.Sprintf("node %s: input %d out of range, node has %d inputs", e.Node, e.Input, e.Max)
}

// --------------------------------------------------------------------------

var _ error = RegionEmpty{}

// RegionEmpty reports a zero-area region of interest. It is not a failure.
type RegionEmpty struct {
	Node string
}

func (e RegionEmpty) Error() string {
	return fmt.Sprintf("node %s: empty region of interest", e.Node)
}

// --------------------------------------------------------------------------

var _ error = Cancelled{}

// Cancelled is returned up the graph when a render is aborted by its caller.
type Cancelled struct {
	Node string
}

func (e Cancelled) Error() string {
	return fmt.Sprintf("render cancelled at node %s", e.Node)
}

// --------------------------------------------------------------------------

var _ error = ComputeFailure{}

// ComputeFailure wraps an error returned by a node's own processing routine.
type ComputeFailure struct {
	Node string
	Err  error
}

func (e ComputeFailure) Error() string {
	return fmt.Sprintf("node %s: render failed: %s", e.Node, e.Err)
}

func (e ComputeFailure) Unwrap() error {
	return e.Err
}

// --------------------------------------------------------------------------

var _ error = OutOfMemory{}

// OutOfMemory is returned when the buffers for a region exceed the limit.
// It is not retried.
type OutOfMemory struct {
	Node  string
	Bytes int64
	Limit int64
}

func (e OutOfMemory) Error() string {
	return fmt.Sprintf("node %s: out of memory: %d bytes requested, limit %d", e.Node, e.Bytes, e.Limit)
}

// --------------------------------------------------------------------------

var _ error = NodeNotFound{}

type NodeNotFound struct {
	Node string
}

func (e NodeNotFound) Error() string {
	return fmt.Sprintf("node %s not found", e.Node)
}

// --------------------------------------------------------------------------

// IsBranchError returns true if err only aborts the branch that needs the
// failing node when that branch is optional.
func IsBranchError(err error) bool {
	var mu MetadataUnavailable
	var uf UnsupportedFormat
	var di DanglingIdentity
	return errors.As(err, &mu) || errors.As(err, &uf) || errors.As(err, &di)
}

// IsCancelled returns true if err is, or wraps, a Cancelled error.
func IsCancelled(err error) bool {
	var c Cancelled
	return errors.As(err, &c)
}

// NodeOf returns the name of the node that caused err, if err is one of the
// errors in this package.
func NodeOf(err error) string {
	var (
		mu  MetadataUnavailable
		uf  UnsupportedFormat
		di  DanglingIdentity
		ior InputOutOfRange
		re  RegionEmpty
		c   Cancelled
		cf  ComputeFailure
		oom OutOfMemory
		nnf NodeNotFound
	)
	switch {
	case errors.As(err, &cf):
		return cf.Node
	case errors.As(err, &oom):
		return oom.Node
	case errors.As(err, &mu):
		return mu.Node
	case errors.As(err, &uf):
		return uf.Node
	case errors.As(err, &di):
		return di.Node
	case errors.As(err, &ior):
		return ior.Node
	case errors.As(err, &re):
		return re.Node
	case errors.As(err, &c):
		return c.Node
	case errors.As(err, &nnf):
		return nnf.Node
	}
	return ""
}

// IsFatal returns true if err aborts the whole request wherever it occurs:
// anything that is not a branch error, a cancellation or an empty region.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var re RegionEmpty
	return !IsBranchError(err) && !IsCancelled(err) && !errors.As(err, &re)
}

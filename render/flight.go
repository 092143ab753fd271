// Copyright 2026, Square, Inc.

package render

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// flightGroup runs at most one computation per key at a time. Callers with
// the same key wait for and share the result of the running computation.
//
// The computation does not run with the context of the caller that started
// it: a caller that is cancelled leaves the flight and the others keep
// waiting. The computation is cancelled only when every caller has left.
type flightGroup struct {
	sf singleflight.Group
	// --
	calls       map[string]*flight
	*sync.Mutex // guards calls
}

// flight is the state of one computation.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func newFlightGroup() *flightGroup {
	return &flightGroup{
		calls: map[string]*flight{},
		Mutex: &sync.Mutex{},
	}
}

// do returns the result of fn for key, calling fn only if no computation for
// key is running. shared is true if the result was also returned to another
// caller. If ctx is done before the result, do returns ctx.Err().
func (g *flightGroup) do(ctx context.Context, key string, fn func(ctx context.Context) (rendered, error)) (out rendered, shared bool, err error) {
	g.Lock()
	f, ok := g.calls[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		g.calls[key] = f
	}
	f.waiters++
	// Join under the lock so that a caller counted in waiters is always a
	// caller of the running computation.
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		return fn(f.ctx)
	})
	g.Unlock()

	select {
	case res := <-ch:
		g.leave(key, f, false)
		if res.Err != nil {
			return rendered{}, res.Shared, res.Err
		}
		return res.Val.(rendered), res.Shared, nil
	case <-ctx.Done():
		g.leave(key, f, true)
		return rendered{}, false, ctx.Err()
	}
}

// leave removes a caller from flight f. When the last caller leaves, the
// flight is removed; if that caller was cancelled, the computation is
// cancelled and forgotten so that a new caller starts a new one.
func (g *flightGroup) leave(key string, f *flight, cancelled bool) {
	g.Lock()
	defer g.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if g.calls[key] == f {
		delete(g.calls, key)
	}
	if cancelled {
		g.sf.Forget(key)
	}
	f.cancel()
}

// waiters returns the number of callers waiting on key.
func (g *flightGroup) waiters(key string) int {
	g.Lock()
	defer g.Unlock()
	if f, ok := g.calls[key]; ok {
		return f.waiters
	}
	return 0
}

// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"
	"time"

	"github.com/square/rendergraph/rendc/app"
)

type Running struct {
	ctx app.Context
}

func NewRunning(ctx app.Context) *Running {
	return &Running{
		ctx: ctx,
	}
}

func (c *Running) Prepare() error {
	return nil
}

func (c *Running) Run() error {
	running, err := c.ctx.Backend.Running()
	if c.ctx.Options.Debug {
		app.Debug("running: %#v", running)
	}
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(running, err)
		return nil
	}
	if err != nil {
		return err
	}
	if len(running) == 0 {
		return nil
	}

	now := time.Now()
	hdr := "%-20s  %6s  %4s  %6s  %s\n"
	line := "%-20s  %6g  %4d  %6s  %s\n"
	fmt.Fprintf(c.ctx.Out, hdr, "ID", "TIME", "VIEW", "RUNTIME", "NODE")
	for _, r := range running {
		runtime := fmt.Sprintf("%.1f", now.Sub(r.StartedAt).Seconds())
		fmt.Fprintf(c.ctx.Out, line, r.RequestId, float64(r.Time), r.View, runtime, r.Node)
	}
	return nil
}

func (c *Running) Cmd() string {
	return "running"
}

func (c *Running) Help() string {
	return "'rendc running' lists the renders in progress on the render server, oldest first.\n"
}

// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
)

type Stop struct {
	ctx   app.Context
	reqId string
}

func NewStop(ctx app.Context) *Stop {
	return &Stop{
		ctx: ctx,
	}
}

func (c *Stop) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: rendc stop <request ID>\n")
	}
	c.reqId = c.ctx.Command.Args[0]
	return nil
}

func (c *Stop) Run() error {
	err := c.ctx.Backend.Stop(c.reqId)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(nil, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.ctx.Out, "OK, stopped %s\n", c.reqId)
	return nil
}

func (c *Stop) Cmd() string {
	return "stop " + c.reqId
}

func (c *Stop) Help() string {
	return "'rendc stop <request ID>' stops a render running on the render server. The render returns CANCELLED.\n"
}

// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
)

type Nodes struct {
	ctx app.Context
}

func NewNodes(ctx app.Context) *Nodes {
	return &Nodes{
		ctx: ctx,
	}
}

func (c *Nodes) Prepare() error {
	return nil
}

func (c *Nodes) Run() error {
	names, err := c.ctx.Backend.Nodes()
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(names, err)
		return nil
	}
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(c.ctx.Out, name)
	}
	return nil
}

func (c *Nodes) Cmd() string {
	return "nodes"
}

func (c *Nodes) Help() string {
	return "'rendc nodes' lists the nodes of the graph.\n"
}

// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
)

type Graph struct {
	ctx app.Context
}

func NewGraph(ctx app.Context) *Graph {
	return &Graph{
		ctx: ctx,
	}
}

func (c *Graph) Prepare() error {
	return nil
}

func (c *Graph) Run() error {
	dot, err := c.ctx.Backend.Graph()
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(dot, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprint(c.ctx.Out, dot)
	return nil
}

func (c *Graph) Cmd() string {
	return "graph"
}

func (c *Graph) Help() string {
	return "'rendc graph' prints the graph in DOT format. Pipe it to 'dot -Tpng' to draw it.\n"
}

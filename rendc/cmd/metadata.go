// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
)

type Metadata struct {
	ctx  app.Context
	node string
}

func NewMetadata(ctx app.Context) *Metadata {
	return &Metadata{
		ctx: ctx,
	}
}

func (c *Metadata) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: rendc metadata <node>\n")
	}
	c.node = c.ctx.Command.Args[0]
	return nil
}

func (c *Metadata) Run() error {
	md, err := c.ctx.Backend.Metadata(c.node)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(md, err)
		return nil
	}
	if err != nil {
		return err
	}

	line := "%-13s %s\n"
	fmt.Fprintf(c.ctx.Out, line, "node:", md.Node)
	fmt.Fprintf(c.ctx.Out, line, "bit depth:", md.BitDepth)
	fmt.Fprintf(c.ctx.Out, line, "pixel aspect:", fmt.Sprintf("%g", md.PixelAspect))
	fmt.Fprintf(c.ctx.Out, line, "frame range:", md.FrameRange)
	fmt.Fprintf(c.ctx.Out, line, "format:", fmt.Sprintf("%g,%g,%g,%g", md.Format.X1, md.Format.Y1, md.Format.X2, md.Format.Y2))
	for i, p := range md.Planes {
		label := ""
		if i == 0 {
			label = "planes:"
		}
		fmt.Fprintf(c.ctx.Out, line, label, p.String())
	}
	return nil
}

func (c *Metadata) Cmd() string {
	return "metadata " + c.node
}

func (c *Metadata) Help() string {
	return "'rendc metadata <node>' prints the bit depth, frame range, format and planes of a node.\n"
}

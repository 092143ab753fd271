// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
	v "github.com/square/rendergraph/version"
)

type Version struct {
	ctx app.Context
}

func NewVersion(ctx app.Context) *Version {
	return &Version{
		ctx: ctx,
	}
}

func (c *Version) Prepare() error {
	return nil
}

func (c *Version) Run() error {
	fmt.Fprintln(c.ctx.Out, "rendc "+v.Version())
	return nil
}

func (c *Version) Cmd() string {
	return "version"
}

func (c *Version) Help() string {
	return "'rendc version' prints the rendergraph version.\n"
}

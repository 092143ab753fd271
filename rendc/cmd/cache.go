// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
)

type Cache struct {
	ctx   app.Context
	purge bool
}

func NewCache(ctx app.Context) *Cache {
	return &Cache{
		ctx: ctx,
	}
}

func (c *Cache) Prepare() error {
	args := c.ctx.Command.Args
	switch {
	case len(args) == 0:
	case len(args) == 1 && args[0] == "purge":
		c.purge = true
	default:
		return fmt.Errorf("Usage: rendc cache [purge]\n")
	}
	return nil
}

func (c *Cache) Run() error {
	if c.purge {
		if err := c.ctx.Backend.PurgeCache(); err != nil {
			return err
		}
	}
	status, err := c.ctx.Backend.CacheStatus()
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(status, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.ctx.Out, "entries: %d/%d  hits: %d  misses: %d\n",
		status.Entries, status.Capacity, status.Hits, status.Misses)
	return nil
}

func (c *Cache) Cmd() string {
	if c.purge {
		return "cache purge"
	}
	return "cache"
}

func (c *Cache) Help() string {
	return "'rendc cache' prints the status of the pixel cache. 'rendc cache purge' empties it first.\n"
}

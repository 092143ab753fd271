// Copyright 2026, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/rendergraph/rendc/app"
	"github.com/square/rendergraph/rendc/config"
)

var commands = []string{"render", "metadata", "nodes", "graph", "running", "stop", "cache", "version"}

type Help struct {
	ctx app.Context
}

func NewHelp(ctx app.Context) *Help {
	return &Help{
		ctx: ctx,
	}
}

func (c *Help) Prepare() error {
	return nil
}

// Run prints help and returns app.ErrHelp.
func (c *Help) Run() error {
	args := c.ctx.Command.Args
	if c.ctx.Command.Cmd != "help" || len(args) == 0 {
		c.Usage()
		return app.ErrHelp
	}

	// rendc help <cmd>
	factory := c.ctx.Factories.Command
	if factory == nil {
		factory = &DefaultFactory{}
	}
	rendcCmd, err := factory.Make(args[0], c.ctx)
	if err != nil {
		return fmt.Errorf("'%s' is not a valid command. Run 'rendc help' to list commands.", args[0])
	}
	fmt.Fprint(c.ctx.Out, rendcCmd.Help())
	return app.ErrHelp
}

func (c *Help) Usage() {
	fmt.Fprintf(c.ctx.Out, "Usage:\n"+
		"  rendc [options] <command> [args]\n\n"+
		"Options:\n"+
		"  --addr     Render server address (ex: http://127.0.0.1:32310)\n"+
		"  --graph    Graph file to render in-process instead of on a render server\n"+
		"  --config   Config files (default: %s)\n"+
		"  --set      node.param=value, applied before the command (repeatable)\n"+
		"  --timeout  Render and API timeout, in milliseconds (default: %d)\n"+
		"  --ping     Ping the render server\n"+
		"  --debug    Print debug output to stderr\n"+
		"  --version  Print version\n\n"+
		"Commands:\n", config.DEFAULT_CONFIG_FILES, config.DEFAULT_TIMEOUT)
	for _, name := range commands {
		fmt.Fprintf(c.ctx.Out, "  %s\n", name)
	}
	fmt.Fprintf(c.ctx.Out, "\n'rendc help <command>' prints help for a command.\n")
}

func (c *Help) Cmd() string {
	return "help"
}

func (c *Help) Help() string {
	return "'rendc help [command]' prints help.\n"
}

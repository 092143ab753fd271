// Copyright 2026, Square, Inc.

// Package rendc provides a framework for integration with other programs.
package rendc

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/square/rendergraph/graphfile"
	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/rendc/app"
	"github.com/square/rendergraph/rendc/backend"
	"github.com/square/rendergraph/rendc/cmd"
	"github.com/square/rendergraph/rendc/config"
)

// Run runs rendc and returns when done. When using a standard rendc bin, Run is
// called by rendc/bin/main.go. When rendc is wrapped by custom code, that code
// imports this pkg then calls rendc.Run() with its custom factories. If a
// factory is not set (nil), then the default factory is used.
//
// Run returns app.ErrHelp after printing help.
func Run(ctx app.Context) error {
	// //////////////////////////////////////////////////////////////////////
	// Config and command line
	// //////////////////////////////////////////////////////////////////////

	// Options are set in this order: config -> env var -> cmd line option.
	// So first we must apply config files, then do cmd line parsing which
	// will apply env vars and cmd line options.

	// Parse cmd line to get --config files
	cmdLine, err := config.ParseCommandLine(config.Options{}, os.Args[1:])
	if err != nil {
		return err
	}

	// --config files override defaults if given
	configFiles := config.DEFAULT_CONFIG_FILES
	if cmdLine.Config != "" {
		configFiles = cmdLine.Config
	}
	if cmdLine.Debug {
		log.SetLevel(log.DebugLevel)
	}

	// Parse default options from config files
	def := config.ParseConfigFiles(configFiles, cmdLine.Debug)
	if def.Timeout == 0 {
		def.Timeout = config.DEFAULT_TIMEOUT
	}

	// Parse env vars and cmd line options, override default config
	cmdLine, err = config.ParseCommandLine(def, os.Args[1:])
	if err != nil {
		return err
	}

	// Final options and commands
	var o config.Options = cmdLine.Options
	var c config.Command = cmdLine.Command
	if o.Debug {
		app.Debug("command: %#v", c)
		app.Debug("options: %#v", o)
	}

	if ctx.Hooks.AfterParseOptions != nil {
		if o.Debug {
			app.Debug("calling hook AfterParseOptions")
		}
		ctx.Hooks.AfterParseOptions(&o)

		// Dump options again to see if hook changed them
		if o.Debug {
			app.Debug("options: %#v", o)
		}
	}
	ctx.Options = o
	ctx.Command = c

	// //////////////////////////////////////////////////////////////////////
	// Help and version
	// //////////////////////////////////////////////////////////////////////
	if o.Help || c.Cmd == "" || c.Cmd == "help" {
		return cmd.NewHelp(ctx).Run()
	}
	if o.Version {
		c.Cmd = "version"
	}

	// //////////////////////////////////////////////////////////////////////
	// Backend: render server or in-process
	// //////////////////////////////////////////////////////////////////////
	if c.Cmd != "version" {
		factory := ctx.Factories.Backend
		if factory == nil {
			factory = backend.DefaultFactory{}
		}
		ctx.Backend, err = factory.Make(ctx)
		if err != nil {
			return err
		}

		if o.Ping {
			if _, err := ctx.Backend.Nodes(); err != nil {
				return fmt.Errorf("Ping failed: %s", err)
			}
			fmt.Fprintf(ctx.Out, "%s OK\n", o.Addr)
			return nil
		}

		// --set node.param=value
		for _, s := range o.Set {
			nodeName, paramName, value, err := graphfile.ParseSetting(s)
			if err != nil {
				return err
			}
			if err := ctx.Backend.SetParams(nodeName, map[string]interface{}{paramName: value}); err != nil {
				return fmt.Errorf("--set %s: %s", s, err)
			}
		}
	}

	// //////////////////////////////////////////////////////////////////////
	// Commands
	// //////////////////////////////////////////////////////////////////////
	cmdFactory := &cmd.DefaultFactory{}

	var run app.Command
	if ctx.Factories.Command != nil {
		run, err = ctx.Factories.Command.Make(c.Cmd, ctx)
		if err != nil {
			switch err {
			case cmd.ErrNotExist:
				if o.Debug {
					app.Debug("user cmd factory cannot make a %s cmd, trying default factory", c.Cmd)
				}
			default:
				return fmt.Errorf("User command factory error: %s", err)
			}
		}
	}
	if run == nil {
		if o.Debug {
			app.Debug("using default factory to make a %s cmd", c.Cmd)
		}
		run, err = cmdFactory.Make(c.Cmd, ctx)
		if err != nil {
			switch err {
			case cmd.ErrNotExist:
				return fmt.Errorf("Unknown command: %s. Run 'rendc help' to list commands.", c.Cmd)
			default:
				return fmt.Errorf("Command factory error: %s", err)
			}
		}
	}

	if err := run.Prepare(); err != nil {
		if o.Debug {
			app.Debug("%s Prepare error: %s", c.Cmd, err)
		}
		return err
	}

	if err := run.Run(); err != nil {
		if o.Debug {
			app.Debug("%s Run error: %s", c.Cmd, err)
		}
		if perr, ok := err.(proto.Error); ok && perr.Node != "" {
			return fmt.Errorf("%s (node %s, request %s)", perr.Message, perr.Node, perr.RequestId)
		}
		return err
	}
	return nil
}

// Copyright 2026, Square, Inc.

// Package app provides app-wide data structs and functions.
package app

import (
	"errors"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/rendc/config"
)

var (
	ErrHelp       = errors.New("print help")
	ErrNotRunning = errors.New("render not running")
)

// Context represents how to run rendc. A context is passed to rendc.Run().
// A default context is created in main.go. Wrapper code can integrate with
// rendc by passing a custom context to rendc.Run(). Integration is done
// primarily with hooks and factories.
type Context struct {
	// Set in main.go or by wrapper
	In        io.Reader // where to read user input (default: stdin)
	Out       io.Writer // where to print output (default: stdout)
	Hooks     Hooks     // for integration with other code
	Factories Factories // for integration with other code

	// Set automatically in rendc.Run()
	Options config.Options // command line options (--addr, etc.)
	Command config.Command // command and args, if any ("render <node>", etc.)
	Backend Backend        // render server or in-process renderer
}

// Backend renders and reports on a graph: the render server, or a graph file
// loaded and rendered in-process.
type Backend interface {
	Render(proto.RenderRequest) (proto.RenderResponse, error)
	RenderTIFF(req proto.RenderRequest, plane string) ([]byte, proto.RenderResponse, error)
	Running() ([]proto.RunningRender, error)
	Stop(requestId string) error
	Nodes() ([]string, error)
	Metadata(node string) (proto.NodeMetadata, error)
	SetParams(node string, values map[string]interface{}) error
	Graph() (string, error)
	CacheStatus() (proto.CacheStatus, error)
	PurgeCache() error
}

type Command interface {
	Prepare() error
	Run() error
	Cmd() string
	Help() string
}

type CommandFactory interface {
	Make(string, Context) (Command, error)
}

type BackendFactory interface {
	Make(Context) (Backend, error)
}

type Factories struct {
	Backend BackendFactory
	Command CommandFactory
}

type Hooks struct {
	AfterParseOptions func(*config.Options)
	CommandRunResult  func(interface{}, error)
}

func Debug(fmt string, v ...interface{}) {
	log.Debugf(fmt, v...)
}

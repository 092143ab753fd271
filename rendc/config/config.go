// Copyright 2026, Square, Inc.

// Package config handles config files, --config, and env vars at startup.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	DEFAULT_CONFIG_FILES = "/etc/rendergraph/rendc.yaml,~/.rendc.yaml"
	DEFAULT_TIMEOUT      = 30000 // 30s
)

// Options represents typical command line options: --addr, --graph, etc.
// With --graph, rendc loads the graph file and renders in-process. Else it
// talks to the render server at --addr.
type Options struct {
	Addr    string   `arg:"env" yaml:"addr"`
	Graph   string   `arg:"env" yaml:"graph"`
	Config  string   `arg:"env"`
	Set     []string `arg:"--set,separate" help:"node.param=value, applied before the command"`
	Debug   bool
	Help    bool
	Ping    bool
	Timeout uint `arg:"env" yaml:"timeout"`
	Version bool

	// Client TLS, from config files only. Used only if all files are set.
	TLS TLS `arg:"-" yaml:"tls"`
}

type TLS struct {
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Set returns true if all files are set.
func (t TLS) Set() bool {
	return t.CAFile != "" && t.CertFile != "" && t.KeyFile != ""
}

// Command represents a command (render, metadata, etc.) and its values.
type Command struct {
	Cmd  string   `arg:"positional"`
	Args []string `arg:"positional"`
}

// CommandLine represents options (--addr, etc.) and commands (render, etc.).
// The caller is expected to copy and use the embedded structs separately, like:
//
//	var o config.Options = cmdLine.Options
//	var c config.Command = cmdLine.Command
type CommandLine struct {
	Options
	Command
}

// ParseCommandLine parses args (without the program name) and env vars.
// Command line options override env vars. Default options are used unless
// overridden by env vars or command line options. Defaults are usually parsed
// from config files.
func ParseCommandLine(def Options, args []string) (CommandLine, error) {
	var c CommandLine
	c.Options = def
	p, err := arg.NewParser(arg.Config{Program: "rendc"}, &c)
	if err != nil {
		return c, fmt.Errorf("arg.NewParser: %s", err)
	}
	if err := p.Parse(args); err != nil {
		switch err {
		case arg.ErrHelp:
			c.Help = true
		case arg.ErrVersion:
			c.Version = true
		default:
			return c, fmt.Errorf("Error parsing command line: %s", err)
		}
	}
	return c, nil
}

// ParseConfigFiles parses the comma-separated config files, in order. Files
// that do not exist or are invalid are skipped.
func ParseConfigFiles(files string, debug bool) Options {
	var def Options
	for _, file := range strings.Split(files, ",") {
		// If file starts with ~/, we need to expand this to the user home dir
		// because this is a shell expansion, not something Go knows about.
		if strings.HasPrefix(file, "~/") {
			usr, err := user.Current()
			if err != nil {
				continue
			}
			file = filepath.Join(usr.HomeDir, file[2:])
		}

		absfile, err := filepath.Abs(file)
		if err != nil {
			if debug {
				log.Debugf("filepath.Abs(%s) error: %s", file, err)
			}
			continue
		}

		bytes, err := os.ReadFile(absfile)
		if err != nil {
			if debug {
				log.Debugf("Cannot read config file %s: %s", file, err)
			}
			continue
		}

		var o Options
		if err := yaml.Unmarshal(bytes, &o); err != nil {
			if debug {
				log.Debugf("Invalid YAML in config file %s: %s", file, err)
			}
			continue
		}

		// Set options from this config file only if they're set
		if debug {
			log.Debugf("Applying config file %s (%s)", file, absfile)
		}
		if o.Addr != "" {
			def.Addr = o.Addr
		}
		if o.Graph != "" {
			def.Graph = o.Graph
		}
		if o.Timeout != 0 {
			def.Timeout = o.Timeout
		}
		if o.TLS.Set() {
			def.TLS = o.TLS
		}
	}
	return def
}

// Copyright 2026, Square, Inc.

// Package cmd provides all the commands that rendc can run: render, metadata, etc.
package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/square/rendergraph/rendc/app"
)

var (
	ErrNotExist = errors.New("command does not exist")
)

type DefaultFactory struct {
}

func (f *DefaultFactory) Make(name string, ctx app.Context) (app.Command, error) {
	switch name {
	case "render":
		return NewRender(ctx), nil
	case "metadata":
		return NewMetadata(ctx), nil
	case "nodes":
		return NewNodes(ctx), nil
	case "graph":
		return NewGraph(ctx), nil
	case "running":
		return NewRunning(ctx), nil
	case "stop":
		return NewStop(ctx), nil
	case "cache":
		return NewCache(ctx), nil
	case "version":
		return NewVersion(ctx), nil
	default:
		return nil, ErrNotExist
	}
}

// keyValues splits args of the form key=value. Keys not in valid are an error.
func keyValues(args []string, valid ...string) (map[string]string, error) {
	kv := map[string]string{}
	for _, arg := range args {
		split := strings.SplitN(arg, "=", 2)
		if len(split) != 2 {
			return nil, fmt.Errorf("Invalid command arg %s: expected arg of form key=value", arg)
		}
		ok := false
		for _, k := range valid {
			if split[0] == k {
				ok = true
				break
			}
		}
		if !ok {
			return nil, fmt.Errorf("Invalid command arg %s: key must be one of %s", arg, strings.Join(valid, ", "))
		}
		kv[split[0]] = split[1]
	}
	return kv, nil
}

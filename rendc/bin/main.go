// Copyright 2026, Square, Inc.

package main

import (
	"fmt"
	"os"

	"github.com/square/rendergraph/rendc"
	"github.com/square/rendergraph/rendc/app"
)

func main() {
	defaultContext := app.Context{
		In:        os.Stdin,
		Out:       os.Stdout,
		Hooks:     app.Hooks{},
		Factories: app.Factories{},
	}
	if err := rendc.Run(defaultContext); err != nil {
		if err != app.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

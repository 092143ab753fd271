// Copyright 2026, Square, Inc.

package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/square/rendergraph/render-server/app"
	"github.com/square/rendergraph/render-server/server"
)

func main() {
	s := server.NewServer(app.Defaults())
	if err := s.Boot(); err != nil {
		log.Fatalf("Error starting render server: %s", err)
	}
	err := s.Run(true)
	log.Fatalf("Render server stopped: %s", err)
}

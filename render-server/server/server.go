// Copyright 2026, Square, Inc.

// Package server bootstraps and runs the render server.
package server

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"

	"github.com/square/rendergraph/render-server/api"
	"github.com/square/rendergraph/render-server/app"
)

type Server struct {
	appCtx     app.Context
	api        *api.API
	renderRepo cmap.ConcurrentMap

	shutdownChan chan struct{}
	apiStopped   chan struct{}
	stopMux      sync.Mutex
	stopped      bool
}

func NewServer(appCtx app.Context) *Server {
	return &Server{
		appCtx:       appCtx,
		stopMux:      sync.Mutex{},
		apiStopped:   make(chan struct{}),
		shutdownChan: make(chan struct{}),
	}
}

// Run runs the render server API in the foreground. It returns when the API
// stops running (either from an error, or after a call to Stop). If a custom
// RunAPI hook has been provided, it is called to run the API instead of the
// default api.Run.
//
// If stopOnSignal = true, the server listens for TERM and INT signals from the
// OS and calls Stop when they are received. Else, the caller must call Stop.
func (s *Server) Run(stopOnSignal bool) error {
	if s.api == nil {
		panic("Server.Run called before Server.Boot")
	}
	if s.stopped {
		return fmt.Errorf("server stopped")
	}

	if stopOnSignal {
		go s.waitForShutdown()
	}

	var err error
	if s.appCtx.Hooks.RunAPI != nil {
		err = s.appCtx.Hooks.RunAPI()
	} else {
		err = s.api.Run()
	}

	// If the server was stopped (as opposed to some error within the API), wait
	// to make sure it's done shutting down the API before returning.
	if s.stopped {
		<-s.apiStopped
	}

	if err != nil {
		return fmt.Errorf("error from API: %s", err)
	}
	return nil
}

// Boot loads the config and the graph file, and makes the engine and the API.
// It must be called before calling Run.
func (s *Server) Boot() error {
	// Only run Boot once.
	if s.api != nil {
		return nil
	}

	// Either both or neither RunAPI and StopAPI hooks must be provided.
	if (s.appCtx.Hooks.RunAPI == nil) != (s.appCtx.Hooks.StopAPI == nil) {
		return fmt.Errorf("only one of RunAPI and StopAPI hooks provided - either both or neither must be provided")
	}

	cfg, err := s.appCtx.Hooks.LoadConfig(s.appCtx)
	if err != nil {
		return fmt.Errorf("error loading config: %s", err)
	}
	s.appCtx.Config = cfg
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("error loading config: %s", err)
	}
	log.SetLevel(level)
	cfgstr, _ := json.MarshalIndent(cfg, "", "  ")
	log.Printf("Config: %s", cfgstr)

	if err := s.makeAPI(); err != nil {
		return err
	}
	return nil
}

// Stop stops the server. It stops running renders, then stops the API (using
// either the default api.Stop or the StopAPI hook if provided). Once Stop has
// been called, the server cannot be reused.
func (s *Server) Stop() error {
	// Only stop once. The whole call is locked so that no call returns before
	// the server has actually been shut down.
	s.stopMux.Lock()
	defer s.stopMux.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true

	log.Infof("Stopping render server")

	// The API refuses new renders once shutdownChan is closed.
	close(s.shutdownChan)

	for item := range s.renderRepo.IterBuffered() {
		if r, ok := item.Val.(*api.Running); ok {
			log.WithField("requestId", r.RequestId).Info("stopping render")
			r.Stop()
		}
	}

	// Cancelled renders return at the next node boundary. Timeout if they
	// aren't done within 10 seconds, and continue to shutting down the API.
	timeout := time.After(10 * time.Second)
WAIT_FOR_RENDERS:
	for !s.renderRepo.IsEmpty() {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-timeout:
			break WAIT_FOR_RENDERS
		}
	}

	var err error
	if s.appCtx.Hooks.StopAPI != nil {
		err = s.appCtx.Hooks.StopAPI()
	} else {
		err = s.api.Stop()
	}
	close(s.apiStopped) // indicate to Run that the API is done shutting down

	if err != nil {
		return fmt.Errorf("error stopping API: %s", err)
	}
	return nil
}

// API returns the render server API created in Boot.
func (s *Server) API() *api.API {
	return s.api
}

// --------------------------------------------------------------------------

// Catch TERM and INT signals to gracefully shut down the render server
func (s *Server) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan

	err := s.Stop()
	if err != nil {
		log.Errorf("error shutting down server: %s", err)
	}
}

func (s *Server) makeAPI() error {
	project, err := s.appCtx.Factories.MakeProject(s.appCtx)
	if err != nil {
		return fmt.Errorf("error loading graph file: %s", err)
	}
	log.Infof("Loaded %d nodes from %s", len(project.Graph.Names()), s.appCtx.Config.GraphFile)

	// One engine for every render: renders share its cache and the
	// computations running for a key.
	engine, err := s.appCtx.Factories.MakeEngine(s.appCtx)
	if err != nil {
		return fmt.Errorf("error making render engine: %s", err)
	}

	// Running renders by request id, so they can be listed and stopped.
	s.renderRepo = cmap.New()

	apiCfg := api.Config{
		AppCtx:       s.appCtx,
		Engine:       engine,
		Project:      project,
		RenderRepo:   s.renderRepo,
		ShutdownChan: s.shutdownChan,
	}
	s.api = api.NewAPI(apiCfg)
	return nil
}

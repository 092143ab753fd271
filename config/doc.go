// Copyright 2026, Square, Inc.

// Package config provides the ability to load config files into predefined
// structures. The render server uses the RenderServer struct in
// render-server/bin/main.go, which provides all of the config information
// needed to run it.
//
// Types of config structs provided by this package:
//
//   - RenderServer: all of the config needed to run the render server
//   - Server: the configuration for running a webserver (ex: the listen
//     address the server should run on, the TLS config it should run with)
//   - Render: the configuration of the render engine (ex: how many inputs are
//     evaluated concurrently, the largest buffer a node can allocate)
//   - Cache: the configuration of the pixel cache shared by every render
//   - TLS: the certificate and key files the server runs with
//
// Values are set, in order of precedence, by RENDERGRAPH_* env vars, the
// config file, and Defaults.
package config

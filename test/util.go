// Copyright 2026, Square, Inc.

// Package test provides helper functions for tests.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"runtime"

	"github.com/square/rendergraph/graph"
	"github.com/square/rendergraph/node"
	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

var (
	GraphPath string // Where test graph files are stored.
)

func init() {
	_, filename, _, _ := runtime.Caller(0)
	GraphPath, _ = filepath.Abs(path.Join(filepath.Dir(filename), "graphs/"))
}

// MakeHTTPRequest is a helper function for making an http request. The response
// body of the http request is unmarshalled into the struct pointed to by the
// respStruct argument (if it's not nil). The status code of the response and
// the response headers are returned.
func MakeHTTPRequest(httpVerb, url string, payload []byte, respStruct interface{}) (int, http.Header, error) {
	var statusCode int
	// Make the http request.
	req, err := http.NewRequest(httpVerb, url, bytes.NewReader(payload))
	if err != nil {
		return statusCode, http.Header{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := (http.DefaultClient).Do(req)
	if err != nil {
		return statusCode, http.Header{}, err
	}
	defer res.Body.Close()

	if respStruct != nil {
		decoder := json.NewDecoder(res.Body)
		err = decoder.Decode(respStruct)
		if err != nil {
			return res.StatusCode, res.Header, fmt.Errorf("error decoding response body")
		}
	}

	return res.StatusCode, res.Header, nil
}

// Vertex is a node and its params, as returned by the node constructors:
// test.V(nodes.NewConstant("c1")).
type Vertex struct {
	Node   node.Node
	Params *param.Set
}

func V(n node.Node, p *param.Set) Vertex {
	return Vertex{Node: n, Params: p}
}

// Chain adds the vertices to g and connects input 0 of each to the output of
// the previous one.
func Chain(g *graph.Graph, vs ...Vertex) error {
	for i, v := range vs {
		if err := g.Add(v.Node, v.Params); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		if err := g.Connect(v.Node.Name(), 0, vs[i-1].Node.Name()); err != nil {
			return err
		}
	}
	return nil
}

// RoI returns the canonical rect [0,0,w,h].
func RoI(w, h float64) proto.RectD {
	return proto.RectD{X2: w, Y2: h}
}

func Dump(v interface{}) {
	bytes, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(bytes))
}

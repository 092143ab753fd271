// Copyright 2026, Square, Inc.

// Package rs provides an HTTP client for interacting with the render server API.
package rs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/rendergraph/proto"
	"github.com/square/rendergraph/retry"
)

const (
	// Idempotent GET requests are retried on connection errors.
	GET_TRIES      = 3
	GET_RETRY_WAIT = 200 * time.Millisecond
)

// A Client is an HTTP client used for interacting with the render server API.
type Client interface {
	// Render renders a node and returns the stats of the render.
	Render(proto.RenderRequest) (proto.RenderResponse, error)

	// RenderTIFF renders a node and returns one plane as a TIFF image. If plane
	// is empty, the first requested plane is returned. If the render status is
	// not OK, there is no image and the response describes the render.
	RenderTIFF(req proto.RenderRequest, plane string) ([]byte, proto.RenderResponse, error)

	// Running returns the renders in progress, oldest first.
	Running() ([]proto.RunningRender, error)

	// Stop stops a running render.
	Stop(requestId string) error

	// Nodes returns the names of the nodes of the graph.
	Nodes() ([]string, error)

	// Metadata returns the metadata of a node.
	Metadata(node string) (proto.NodeMetadata, error)

	// SetParams sets params of a node or viewer group.
	SetParams(node string, values map[string]interface{}) error

	// Graph returns the graph in DOT format.
	Graph() (string, error)

	// CacheStatus returns the status of the pixel cache.
	CacheStatus() (proto.CacheStatus, error)

	// PurgeCache removes every entry of the pixel cache.
	PurgeCache() error

	// Version returns the render server version.
	Version() (string, error)
}

type client struct {
	*http.Client
	baseUrl string
}

// NewClient takes an http.Client and base API URL and creates a Client.
func NewClient(c *http.Client, baseUrl string) Client {
	return &client{
		Client:  c,
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
	}
}

func (c *client) Render(req proto.RenderRequest) (proto.RenderResponse, error) {
	// POST /api/v1/renders
	var res proto.RenderResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return res, err
	}

	resp, body, err := c.post(c.baseUrl+"/api/v1/renders", payload)
	if err != nil {
		return res, err
	}
	if resp.StatusCode != http.StatusOK {
		return res, apiError(resp, body)
	}
	err = json.Unmarshal(body, &res)
	return res, err
}

func (c *client) RenderTIFF(req proto.RenderRequest, plane string) ([]byte, proto.RenderResponse, error) {
	// POST /api/v1/renders?format=tiff&plane=${plane}
	var res proto.RenderResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, res, err
	}
	q := url.Values{}
	q.Set("format", "tiff")
	if plane != "" {
		q.Set("plane", plane)
	}

	resp, body, err := c.post(c.baseUrl+"/api/v1/renders?"+q.Encode(), payload)
	if err != nil {
		return nil, res, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, res, apiError(resp, body)
	}
	res.RequestId = resp.Header.Get("X-Request-Id")
	res.Status = proto.StatusValue[resp.Header.Get("X-Render-Status")]
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		// No image: the render was empty or cancelled.
		err = json.Unmarshal(body, &res)
		return nil, res, err
	}
	return body, res, nil
}

func (c *client) Running() ([]proto.RunningRender, error) {
	// GET /api/v1/renders/running
	var running []proto.RunningRender
	err := c.getJSON(c.baseUrl+"/api/v1/renders/running", &running)
	return running, err
}

func (c *client) Stop(requestId string) error {
	// PUT /api/v1/renders/${requestId}/stop
	resp, body, err := c.put(fmt.Sprintf(c.baseUrl+"/api/v1/renders/%s/stop", url.PathEscape(requestId)), nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp, body)
	}
	return nil
}

func (c *client) Nodes() ([]string, error) {
	// GET /api/v1/nodes
	var names []string
	err := c.getJSON(c.baseUrl+"/api/v1/nodes", &names)
	return names, err
}

func (c *client) Metadata(node string) (proto.NodeMetadata, error) {
	// GET /api/v1/nodes/${node}/metadata
	var md proto.NodeMetadata
	err := c.getJSON(fmt.Sprintf(c.baseUrl+"/api/v1/nodes/%s/metadata", url.PathEscape(node)), &md)
	return md, err
}

func (c *client) SetParams(node string, values map[string]interface{}) error {
	// PUT /api/v1/nodes/${node}/params
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	resp, body, err := c.put(fmt.Sprintf(c.baseUrl+"/api/v1/nodes/%s/params", url.PathEscape(node)), payload)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp, body)
	}
	return nil
}

func (c *client) Graph() (string, error) {
	// GET /api/v1/graph
	body, err := c.getOK(c.baseUrl + "/api/v1/graph")
	return string(body), err
}

func (c *client) CacheStatus() (proto.CacheStatus, error) {
	// GET /api/v1/cache
	var status proto.CacheStatus
	err := c.getJSON(c.baseUrl+"/api/v1/cache", &status)
	return status, err
}

func (c *client) PurgeCache() error {
	// DELETE /api/v1/cache
	req, err := http.NewRequest("DELETE", c.baseUrl+"/api/v1/cache", nil)
	if err != nil {
		return err
	}
	resp, body, err := c.do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp, body)
	}
	return nil
}

func (c *client) Version() (string, error) {
	// GET /api/v1/version
	body, err := c.getOK(c.baseUrl + "/api/v1/version")
	return string(body), err
}

// ------------------------------------------------------------------------- //

// apiError returns the proto.Error in body, or an error with the status code
// and body if body is not a proto.Error.
func apiError(resp *http.Response, body []byte) error {
	var perr proto.Error
	if err := json.Unmarshal(body, &perr); err == nil && perr.Message != "" {
		if perr.HTTPStatus == 0 {
			perr.HTTPStatus = resp.StatusCode
		}
		return perr
	}
	return fmt.Errorf("unsuccessful status code: %d (response body: %s)", resp.StatusCode, string(body))
}

func (c *client) getJSON(url string, v interface{}) error {
	body, err := c.getOK(url)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// getOK gets url, retrying connection errors, and returns the body if the
// status code is 200.
func (c *client) getOK(url string) ([]byte, error) {
	var resp *http.Response
	var body []byte
	err := retry.Do(GET_TRIES, GET_RETRY_WAIT,
		func() error {
			var err error
			resp, body, err = c.get(url)
			return err
		},
		func(err error) {
			log.WithField("url", url).Warnf("retrying: %s", err)
		},
	)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp, body)
	}
	return body, nil
}

func (c *client) get(url string) (*http.Response, []byte, error) {
	// Create the request.
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, nil, err
	}

	// Send the request.
	return c.do(req)
}

func (c *client) put(url string, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequest("PUT", url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	return c.do(req)
}

func (c *client) post(url string, payload []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequest("POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	return c.do(req)
}

func (c *client) do(req *http.Request) (*http.Response, []byte, error) {
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("http.Client.Do: %s", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("io.ReadAll: %s", err)
	}

	return resp, body, nil
}

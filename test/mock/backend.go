// Copyright 2026, Square, Inc.

package mock

import (
	"errors"

	"github.com/square/rendergraph/proto"
)

var (
	ErrBackend = errors.New("forced error in backend")
)

// Backend is a configurable rendc backend. Each method calls its Func if set,
// else returns zero values.
type Backend struct {
	RenderFunc      func(proto.RenderRequest) (proto.RenderResponse, error)
	RenderTIFFFunc  func(proto.RenderRequest, string) ([]byte, proto.RenderResponse, error)
	RunningFunc     func() ([]proto.RunningRender, error)
	StopFunc        func(string) error
	NodesFunc       func() ([]string, error)
	MetadataFunc    func(string) (proto.NodeMetadata, error)
	SetParamsFunc   func(string, map[string]interface{}) error
	GraphFunc       func() (string, error)
	CacheStatusFunc func() (proto.CacheStatus, error)
	PurgeCacheFunc  func() error
}

func (b *Backend) Render(req proto.RenderRequest) (proto.RenderResponse, error) {
	if b.RenderFunc != nil {
		return b.RenderFunc(req)
	}
	return proto.RenderResponse{}, nil
}

func (b *Backend) RenderTIFF(req proto.RenderRequest, plane string) ([]byte, proto.RenderResponse, error) {
	if b.RenderTIFFFunc != nil {
		return b.RenderTIFFFunc(req, plane)
	}
	return nil, proto.RenderResponse{}, nil
}

func (b *Backend) Running() ([]proto.RunningRender, error) {
	if b.RunningFunc != nil {
		return b.RunningFunc()
	}
	return nil, nil
}

func (b *Backend) Stop(requestId string) error {
	if b.StopFunc != nil {
		return b.StopFunc(requestId)
	}
	return nil
}

func (b *Backend) Nodes() ([]string, error) {
	if b.NodesFunc != nil {
		return b.NodesFunc()
	}
	return nil, nil
}

func (b *Backend) Metadata(node string) (proto.NodeMetadata, error) {
	if b.MetadataFunc != nil {
		return b.MetadataFunc(node)
	}
	return proto.NodeMetadata{}, nil
}

func (b *Backend) SetParams(node string, values map[string]interface{}) error {
	if b.SetParamsFunc != nil {
		return b.SetParamsFunc(node, values)
	}
	return nil
}

func (b *Backend) Graph() (string, error) {
	if b.GraphFunc != nil {
		return b.GraphFunc()
	}
	return "", nil
}

func (b *Backend) CacheStatus() (proto.CacheStatus, error) {
	if b.CacheStatusFunc != nil {
		return b.CacheStatusFunc()
	}
	return proto.CacheStatus{}, nil
}

func (b *Backend) PurgeCache() error {
	if b.PurgeCacheFunc != nil {
		return b.PurgeCacheFunc()
	}
	return nil
}

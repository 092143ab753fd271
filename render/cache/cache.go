// Copyright 2026, Square, Inc.

// Package cache provides the pixel cache shared by all renders.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"

	"github.com/square/rendergraph/pixel"
	"github.com/square/rendergraph/proto"
)

// Cache stores rendered planes by cache key and plane. An entry is written
// once: a second Put for the same key and plane keeps the first buffer.
// Buffers returned by Get are shared and must not be modified.
type Cache interface {
	Get(key uint64, plane proto.Components) (*pixel.Buffer, bool)
	Put(key uint64, buf *pixel.Buffer) bool
	Status() proto.CacheStatus
	Purge()
}

// Entry is one cached plane.
type Entry struct {
	Key     uint64
	Plane   proto.Components
	Depth   proto.BitDepth
	Buffer  *pixel.Buffer
	Created time.Time
}

func entryId(key uint64, plane proto.Components) string {
	return fmt.Sprintf("%016x/%s", key, plane)
}

// Memory is an in-memory Cache holding at most Capacity entries. When full,
// the oldest entry is evicted. A zero capacity disables caching.
type Memory struct {
	capacity int
	entries  cmap.ConcurrentMap // entryId => *Entry
	hits     uint64
	misses   uint64
	// --
	order       []string // entry ids, oldest first
	*sync.Mutex          // guards order
}

var _ Cache = &Memory{}

func NewMemory(capacity int) *Memory {
	return &Memory{
		capacity: capacity,
		entries:  cmap.New(),
		order:    []string{},
		Mutex:    &sync.Mutex{},
	}
}

func (m *Memory) Get(key uint64, plane proto.Components) (*pixel.Buffer, bool) {
	v, ok := m.entries.Get(entryId(key, plane))
	if !ok {
		atomic.AddUint64(&m.misses, 1)
		return nil, false
	}
	atomic.AddUint64(&m.hits, 1)
	return v.(*Entry).Buffer, true
}

// Put stores buf under key and the buffer's plane. It returns false if the
// entry already exists or caching is disabled.
func (m *Memory) Put(key uint64, buf *pixel.Buffer) bool {
	if m.capacity <= 0 || buf == nil {
		return false
	}
	id := entryId(key, buf.Plane)
	e := &Entry{
		Key:     key,
		Plane:   buf.Plane,
		Depth:   buf.Depth,
		Buffer:  buf,
		Created: time.Now(),
	}
	if !m.entries.SetIfAbsent(id, e) {
		return false
	}

	m.Lock()
	m.order = append(m.order, id)
	var evicted int
	for len(m.order) > m.capacity {
		m.entries.Remove(m.order[0])
		m.order = m.order[1:]
		evicted++
	}
	m.Unlock()

	if evicted > 0 {
		log.Debugf("cache full (%d entries): evicted %d", m.capacity, evicted)
	}
	return true
}

func (m *Memory) Status() proto.CacheStatus {
	return proto.CacheStatus{
		Entries:  m.entries.Count(),
		Capacity: m.capacity,
		Hits:     atomic.LoadUint64(&m.hits),
		Misses:   atomic.LoadUint64(&m.misses),
	}
}

// Purge removes every entry. Hit and miss counters are kept.
func (m *Memory) Purge() {
	m.Lock()
	defer m.Unlock()
	for _, id := range m.order {
		m.entries.Remove(id)
	}
	m.order = []string{}
}

// Entries returns a copy of every entry, oldest first.
func (m *Memory) Entries() []Entry {
	m.Lock()
	defer m.Unlock()
	entries := make([]Entry, 0, len(m.order))
	for _, id := range m.order {
		if v, ok := m.entries.Get(id); ok {
			entries = append(entries, *v.(*Entry))
		}
	}
	return entries
}

// Copyright 2026, Square, Inc.

// Package param provides the parameter holding layer.
//
// A Set is the mutable parameter state of one node. It is edited outside of
// renders (by a graph file, the API, a script) and snapshotted before a
// render begins. Renders only ever see a Snapshot, which never changes, so
// parameter edits during a render cannot be observed by it.
package param

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/square/rendergraph/proto"
)

type Kind byte

const (
	KIND_FLOAT Kind = iota
	KIND_INT
	KIND_BOOL
	KIND_STRING
)

var KindName = map[Kind]string{
	KIND_FLOAT:  "float",
	KIND_INT:    "int",
	KIND_BOOL:   "bool",
	KIND_STRING: "string",
}

// A Keyframe is the value of an animated numeric param at a time. Values
// between keyframes are interpolated linearly and held constant before the
// first and after the last keyframe.
type Keyframe struct {
	Time  proto.Time `yaml:"time"`
	Value float64    `yaml:"value"`
}

// Param is one named parameter. Numeric and bool values are stored in Num,
// strings in Str.
type Param struct {
	Name string
	Kind Kind
	Num  float64
	Str  string
	Keys []Keyframe // animation, numeric kinds only

	// AffectsOutput params are part of the render digest. Params that only
	// label or annotate a node do not invalidate cached renders.
	AffectsOutput bool

	// AffectsMetadata params can change node metadata (format, depth, frame
	// range). They must not be animated: metadata is the same at every time.
	AffectsMetadata bool
}

// Float returns a float param that affects output.
func Float(name string, v float64) Param {
	return Param{Name: name, Kind: KIND_FLOAT, Num: v, AffectsOutput: true}
}

// Int returns an int param that affects output.
func Int(name string, v int) Param {
	return Param{Name: name, Kind: KIND_INT, Num: float64(v), AffectsOutput: true}
}

// Bool returns a bool param that affects output.
func Bool(name string, v bool) Param {
	p := Param{Name: name, Kind: KIND_BOOL, AffectsOutput: true}
	if v {
		p.Num = 1
	}
	return p
}

// String returns a string param that affects output.
func String(name string, v string) Param {
	return Param{Name: name, Kind: KIND_STRING, Str: v, AffectsOutput: true}
}

// Metadata returns a copy of p flagged as affecting metadata.
func (p Param) Metadata() Param {
	p.AffectsMetadata = true
	return p
}

// Label returns a copy of p flagged as not affecting output.
func (p Param) Label() Param {
	p.AffectsOutput = false
	return p
}

// IsAnimated is true if p has keyframes.
func (p Param) IsAnimated() bool {
	return len(p.Keys) > 0
}

// At returns the numeric value of p at time t.
func (p Param) At(t proto.Time) float64 {
	if len(p.Keys) == 0 {
		return p.Num
	}
	k := p.Keys
	if t <= k[0].Time {
		return k[0].Value
	}
	if t >= k[len(k)-1].Time {
		return k[len(k)-1].Value
	}
	i := sort.Search(len(k), func(i int) bool { return k[i].Time > t }) // k[i-1].Time <= t < k[i].Time
	a, b := k[i-1], k[i]
	f := float64(t-a.Time) / float64(b.Time-a.Time)
	return a.Value + (b.Value-a.Value)*f
}

// ------------------------------------------------------------------------- //

// Set is the mutable parameter state of one node. It is safe for concurrent
// use.
type Set struct {
	mu      *sync.RWMutex
	params  map[string]*Param
	version uint64
}

// NewSet makes a Set with the given params at their default values.
func NewSet(params ...Param) *Set {
	s := &Set{
		mu:     &sync.RWMutex{},
		params: map[string]*Param{},
	}
	for _, p := range params {
		s.Define(p)
	}
	return s
}

// Define adds param p, replacing any param with the same name.
func (s *Set) Define(p Param) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Keys = append([]Keyframe(nil), p.Keys...)
	s.params[p.Name] = &p
	s.version++
}

// Set sets the static value of a param, removing any animation. Numeric
// params accept any Go int or float type; yaml and json values decode to
// those.
func (s *Set) Set(name string, v interface{}) error {
	return s.SetAll(map[string]interface{}{name: v})
}

// SetAll sets the static values of several params as one change. If any
// value is invalid, no param is changed.
func (s *Set) SetAll(values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.check(values)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	for name, p := range set {
		s.params[name] = p
	}
	s.version++
	return nil
}

// Check returns the error SetAll would return for values, without changing
// any param.
func (s *Set) Check(values map[string]interface{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.check(values)
	return err
}

// check returns the params with values set. Caller must hold s.mu.
func (s *Set) check(values map[string]interface{}) (map[string]*Param, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	set := make(map[string]*Param, len(values))
	for _, name := range names {
		cur, ok := s.params[name]
		if !ok {
			return nil, fmt.Errorf("param %s not found", name)
		}
		p := *cur
		v := values[name]
		switch p.Kind {
		case KIND_STRING:
			str, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("param %s: expected string, got %T", name, v)
			}
			p.Str = str
		case KIND_BOOL:
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("param %s: expected bool, got %T", name, v)
			}
			p.Num = 0
			if b {
				p.Num = 1
			}
		default:
			f, err := toFloat(v)
			if err != nil {
				return nil, fmt.Errorf("param %s: %s", name, err)
			}
			if p.Kind == KIND_INT {
				f = math.Round(f)
			}
			p.Num = f
		}
		p.Keys = nil
		set[name] = &p
	}
	return set, nil
}

// SetKeys animates a numeric param. Keys are sorted by time; a key at the
// same time as an earlier one replaces it.
func (s *Set) SetKeys(name string, keys ...Keyframe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[name]
	if !ok {
		return fmt.Errorf("param %s not found", name)
	}
	if p.Kind != KIND_FLOAT && p.Kind != KIND_INT {
		return fmt.Errorf("param %s: cannot animate %s param", name, KindName[p.Kind])
	}
	if p.AffectsMetadata {
		return fmt.Errorf("param %s: cannot animate a param that affects metadata", name)
	}

	sorted := append([]Keyframe(nil), keys...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })
	dedup := sorted[:0]
	for _, k := range sorted {
		if n := len(dedup); n > 0 && dedup[n-1].Time == k.Time {
			dedup[n-1] = k
			continue
		}
		dedup = append(dedup, k)
	}
	p.Keys = dedup
	s.version++
	return nil
}

// Version returns a counter incremented by every change to the Set.
func (s *Set) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns an immutable copy of the current params.
func (s *Set) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := make(map[string]Param, len(s.params))
	for name, p := range s.params {
		cp := *p
		cp.Keys = append([]Keyframe(nil), p.Keys...)
		m[name] = cp
	}
	return Snapshot{params: m}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

// ------------------------------------------------------------------------- //

// Snapshot is an immutable copy of a Set. The zero value is an empty
// snapshot: every getter returns the zero value.
type Snapshot struct {
	params map[string]Param
}

// Has returns true if the snapshot has a param named name.
func (s Snapshot) Has(name string) bool {
	_, ok := s.params[name]
	return ok
}

// Get returns the param named name.
func (s Snapshot) Get(name string) (Param, bool) {
	p, ok := s.params[name]
	return p, ok
}

// Names returns the param names, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s.params))
	for name := range s.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Float returns the value of a numeric param at time t.
func (s Snapshot) Float(name string, t proto.Time) float64 {
	return s.params[name].At(t)
}

// Int returns the value of a numeric param at time t, rounded.
func (s Snapshot) Int(name string, t proto.Time) int {
	return int(math.Round(s.params[name].At(t)))
}

// Bool returns the value of a bool param.
func (s Snapshot) Bool(name string) bool {
	return s.params[name].Num != 0
}

// String returns the value of a string param.
func (s Snapshot) String(name string) string {
	return s.params[name].Str
}

// Digest returns a digest of every param that affects output, animated
// params sampled at time t. Equal snapshots have equal digests at the same
// time.
func (s Snapshot) Digest(t proto.Time) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, name := range s.Names() {
		p := s.params[name]
		if !p.AffectsOutput {
			continue
		}
		h.Write([]byte(name))
		h.Write([]byte{0, byte(p.Kind)})
		if p.Kind == KIND_STRING {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(p.Str)))
			h.Write(buf[:])
			h.Write([]byte(p.Str))
			continue
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.At(t)))
		h.Write(buf[:])
	}
	return h.Sum64()
}

// MetadataDigest returns a digest of every param that affects metadata. It
// does not depend on time.
func (s Snapshot) MetadataDigest() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, name := range s.Names() {
		p := s.params[name]
		if !p.AffectsMetadata {
			continue
		}
		h.Write([]byte(name))
		h.Write([]byte{0, byte(p.Kind)})
		h.Write([]byte(p.Str))
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Num))
		h.Write(buf[:])
	}
	return h.Sum64()
}

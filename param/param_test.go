// Copyright 2026, Square, Inc.

package param_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/square/rendergraph/param"
	"github.com/square/rendergraph/proto"
)

func newSet() *param.Set {
	return param.NewSet(
		param.Float("gain", 1),
		param.Int("width", 64).Metadata(),
		param.Bool("disable", false),
		param.String("label", "").Label(),
		param.String("operation", "over"),
	)
}

func TestSetTypes(t *testing.T) {
	s := newSet()
	if err := s.Set("gain", 2); err != nil {
		t.Error(err)
	}
	if err := s.Set("width", 99.6); err != nil {
		t.Error(err)
	}
	if err := s.Set("disable", true); err != nil {
		t.Error(err)
	}
	if err := s.Set("disable", 1); err == nil {
		t.Error("no error setting bool param to int")
	}
	if err := s.Set("operation", 1.0); err == nil {
		t.Error("no error setting string param to float")
	}
	if err := s.Set("nope", 1.0); err == nil {
		t.Error("no error setting unknown param")
	}

	snap := s.Snapshot()
	if v := snap.Float("gain", 0); v != 2 {
		t.Errorf("gain = %f, expected 2", v)
	}
	if v := snap.Int("width", 0); v != 100 {
		t.Errorf("width = %d, expected 100", v)
	}
	if !snap.Bool("disable") {
		t.Error("disable = false, expected true")
	}
}

func TestSetAll(t *testing.T) {
	s := newSet()
	v := s.Version()
	err := s.SetAll(map[string]interface{}{"gain": 2, "operation": 1.0})
	if err == nil {
		t.Error("no error setting string param to float")
	}
	if s.Version() != v {
		t.Errorf("version = %d, expected %d", s.Version(), v)
	}
	if g := s.Snapshot().Float("gain", 0); g != 1 {
		t.Errorf("gain = %f, expected 1: set before the invalid value", g)
	}
	if err := s.Check(map[string]interface{}{"gain": 2, "operation": "plus"}); err != nil {
		t.Error(err)
	}
	if g := s.Snapshot().Float("gain", 0); g != 1 {
		t.Errorf("gain = %f, expected 1 after Check", g)
	}

	if err := s.SetAll(map[string]interface{}{"gain": 2, "operation": "plus"}); err != nil {
		t.Fatal(err)
	}
	if s.Version() != v+1 {
		t.Errorf("version = %d, expected %d", s.Version(), v+1)
	}
	snap := s.Snapshot()
	if snap.Float("gain", 0) != 2 || snap.String("operation") != "plus" {
		t.Errorf("gain %f operation %s, expected 2 and plus", snap.Float("gain", 0), snap.String("operation"))
	}
}

func TestKeyframes(t *testing.T) {
	s := newSet()
	err := s.SetKeys("gain",
		param.Keyframe{Time: 10, Value: 2},
		param.Keyframe{Time: 0, Value: 0},
		param.Keyframe{Time: 10, Value: 4}, // replaces the first key at 10
	)
	if err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	tests := map[proto.Time]float64{-5: 0, 0: 0, 2.5: 1, 5: 2, 10: 4, 20: 4}
	for tm, expect := range tests {
		if got := snap.Float("gain", tm); got != expect {
			t.Errorf("gain at %f = %f, expected %f", tm, got, expect)
		}
	}

	p, _ := snap.Get("gain")
	expectKeys := []param.Keyframe{{Time: 0, Value: 0}, {Time: 10, Value: 4}}
	if diff := deep.Equal(p.Keys, expectKeys); diff != nil {
		t.Error(diff)
	}

	if err := s.SetKeys("width", param.Keyframe{Time: 1, Value: 1}); err == nil {
		t.Error("no error animating a metadata param")
	}
	if err := s.SetKeys("operation", param.Keyframe{Time: 1, Value: 1}); err == nil {
		t.Error("no error animating a string param")
	}

	// Set removes animation
	if err := s.Set("gain", 3); err != nil {
		t.Fatal(err)
	}
	if v := s.Snapshot().Float("gain", 5); v != 3 {
		t.Errorf("gain = %f, expected 3", v)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := newSet()
	before := s.Snapshot()
	v := s.Version()
	if err := s.Set("gain", 5); err != nil {
		t.Fatal(err)
	}
	if s.Version() == v {
		t.Error("version not incremented by Set")
	}
	if g := before.Float("gain", 0); g != 1 {
		t.Errorf("snapshot changed after Set: gain = %f", g)
	}
}

func TestDigest(t *testing.T) {
	a := newSet()
	b := newSet()
	if a.Snapshot().Digest(1) != b.Snapshot().Digest(1) {
		t.Fatal("equal sets have different digests")
	}

	// Label params do not affect output
	if err := b.Set("label", "hello"); err != nil {
		t.Fatal(err)
	}
	if a.Snapshot().Digest(1) != b.Snapshot().Digest(1) {
		t.Error("label param changed the digest")
	}

	if err := b.Set("operation", "plus"); err != nil {
		t.Fatal(err)
	}
	if a.Snapshot().Digest(1) == b.Snapshot().Digest(1) {
		t.Error("operation param did not change the digest")
	}

	// Animated params are sampled at the digest time
	c := newSet()
	if err := c.SetKeys("gain", param.Keyframe{Time: 0, Value: 0}, param.Keyframe{Time: 2, Value: 2}); err != nil {
		t.Fatal(err)
	}
	if a.Snapshot().Digest(1) != c.Snapshot().Digest(1) {
		t.Error("gain sampled at 1 is 1 but digests differ")
	}
	if a.Snapshot().Digest(0) == c.Snapshot().Digest(0) {
		t.Error("gain sampled at 0 is 0 but digests are equal")
	}
}

func TestMetadataDigest(t *testing.T) {
	a := newSet()
	d := a.Snapshot().MetadataDigest()

	// Output params do not change the metadata digest
	if err := a.Set("gain", 3); err != nil {
		t.Fatal(err)
	}
	if a.Snapshot().MetadataDigest() != d {
		t.Error("gain changed the metadata digest")
	}

	if err := a.Set("width", 128); err != nil {
		t.Fatal(err)
	}
	if a.Snapshot().MetadataDigest() == d {
		t.Error("width did not change the metadata digest")
	}
}

func TestZeroSnapshot(t *testing.T) {
	var s *param.Set
	snap := s.Snapshot()
	if snap.Has("gain") || snap.Float("gain", 0) != 0 || snap.String("x") != "" {
		t.Error("zero snapshot not empty")
	}
	if len(snap.Names()) != 0 {
		t.Errorf("names = %v, expected none", snap.Names())
	}
}

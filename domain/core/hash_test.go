package core

import (
	"testing"
)

func TestNewFingerprint_Deterministic(t *testing.T) {
	fields := map[string]float64{
		"p_value":         0.0023,
		"uplift_absolute": 0.0143,
		"ci_low":          0.005,
	}

	first := NewFingerprint(fields)
	second := NewFingerprint(fields)
	if !first.Equals(second) {
		t.Error("Identical fields produced different fingerprints")
	}
}

func TestNewFingerprint_SensitiveToValues(t *testing.T) {
	base := NewFingerprint(map[string]float64{"p_value": 0.05})
	changed := NewFingerprint(map[string]float64{"p_value": 0.05000000000000001})
	if base.Equals(changed) {
		t.Error("Fingerprint ignored a bit-level value change")
	}
}

func TestNewFingerprint_OrderIndependent(t *testing.T) {
	// Maps iterate in random order; canonical key sorting must hide that.
	for i := 0; i < 50; i++ {
		a := NewFingerprint(map[string]float64{"a": 1, "b": 2, "c": 3})
		b := NewFingerprint(map[string]float64{"c": 3, "a": 1, "b": 2})
		if !a.Equals(b) {
			t.Fatal("Fingerprint depends on map iteration order")
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := map[ID]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Fatal("Generated empty ID")
		}
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

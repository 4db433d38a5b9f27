// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common numeric test helpers to reduce code
// duplication across test files and improve test maintainability.
package testutil

import (
	"math"
	"testing"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertInDelta checks that got is within delta of want.
func AssertInDelta(t *testing.T, got, want, delta float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v ± %v", got, want, delta)
	}
}

// AssertFinite fails the test if v is NaN or infinite.
func AssertFinite(t *testing.T, v float64) {
	t.Helper()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		t.Fatalf("value is not finite: %v", v)
	}
}

// CountTrue returns the number of true entries in a mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}

// UniformSlice returns a slice of length n with every element set to v.
func UniformSlice(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, unit := range ValidUnits {
		if !IsValid(unit) {
			t.Errorf("IsValid(%q) = false, want true", unit)
		}
	}
	for _, unit := range []string{"", "degrees", "arcmin", "RAD"} {
		if IsValid(unit) {
			t.Errorf("IsValid(%q) = true, want false", unit)
		}
	}
}

func TestConversionRoundTrip(t *testing.T) {
	if got := ToRadians(180, Deg); math.Abs(got-math.Pi) > 1e-12 {
		t.Errorf("ToRadians(180, deg) = %v, want pi", got)
	}
	if got := FromRadians(math.Pi/2, Deg); math.Abs(got-90) > 1e-12 {
		t.Errorf("FromRadians(pi/2, deg) = %v, want 90", got)
	}
	// Radians pass through unchanged.
	if got := ToRadians(1.2, Rad); got != 1.2 {
		t.Errorf("ToRadians(1.2, rad) = %v", got)
	}
	// Unknown units fall back to radians.
	if got := ToRadians(0.5, "furlongs"); got != 0.5 {
		t.Errorf("ToRadians with unknown unit = %v, want passthrough", got)
	}
}

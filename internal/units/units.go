// Package units provides shared constants and validation for angle units
package units

import "math"

// Unit constants
const (
	Rad = "rad"
	Deg = "deg"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Rad, Deg}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "rad, deg"
}

// ToRadians converts an angle in the given unit to radians.
// Internal computation is always in radians.
func ToRadians(angle float64, unit string) float64 {
	switch unit {
	case Deg:
		return angle * math.Pi / 180
	default:
		return angle
	}
}

// FromRadians converts an angle in radians to the target unit.
func FromRadians(rad float64, targetUnit string) float64 {
	switch targetUnit {
	case Deg:
		return rad * 180 / math.Pi
	default:
		return rad
	}
}

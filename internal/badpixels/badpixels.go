// Package badpixels derives per-telescope unsuitable-pixel masks from
// pedestal statistics: dead pixels (no pedestal fluctuation at all) and
// pixels whose pedestal RMS sits far outside the camera-wide
// distribution, indicating unusable noise behavior.
package badpixels

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Config controls the pedestal-based bad pixel classification.
type Config struct {
	// PedestalLevel flags pixels whose pedestal mean exceeds this
	// absolute charge level.
	PedestalLevel float64
	// PedestalLevelVariance flags pixels whose pedestal RMS deviates
	// from the camera median by more than this many times the robust
	// scatter of the RMS distribution.
	PedestalLevelVariance float64
}

// DefaultConfig mirrors the reference analysis settings.
func DefaultConfig() Config {
	return Config{
		PedestalLevel:         400,
		PedestalLevelVariance: 4.5,
	}
}

// Validate rejects operator errors at startup.
func (c Config) Validate() error {
	if c.PedestalLevel <= 0 || math.IsNaN(c.PedestalLevel) {
		return fmt.Errorf("pedestal level must be positive, got %v", c.PedestalLevel)
	}
	if c.PedestalLevelVariance <= 0 || math.IsNaN(c.PedestalLevelVariance) {
		return fmt.Errorf("pedestal level variance must be positive, got %v", c.PedestalLevelVariance)
	}
	return nil
}

// Calculator classifies pixels from pedestal statistics. It holds no
// per-event state, so one instance can serve all workers of a run.
type Calculator struct {
	cfg Config
}

// NewCalculator builds a calculator, validating the config.
func NewCalculator(cfg Config) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bad pixel config: %w", err)
	}
	return &Calculator{cfg: cfg}, nil
}

// UnsuitableMask combines the dead and noisy classifications into the
// mask consumed by the cleaning engine. pedMean and pedRMS are the
// per-pixel pedestal statistics for one telescope; mismatched lengths
// return an error because they indicate a calibration wiring bug.
func (c *Calculator) UnsuitableMask(pedMean, pedRMS []float64) ([]bool, error) {
	if len(pedMean) != len(pedRMS) {
		return nil, fmt.Errorf("pedestal mean/RMS lengths differ: %d vs %d", len(pedMean), len(pedRMS))
	}

	mask := c.DeadMask(pedRMS)
	noisy := c.NoisyMask(pedMean, pedRMS)
	for i := range mask {
		mask[i] = mask[i] || noisy[i]
	}
	return mask, nil
}

// DeadMask marks pixels with no pedestal fluctuation (RMS of zero) or a
// non-finite RMS. A channel that never fluctuates is not reading out.
func (c *Calculator) DeadMask(pedRMS []float64) []bool {
	mask := make([]bool, len(pedRMS))
	for i, rms := range pedRMS {
		if rms == 0 || math.IsNaN(rms) || math.IsInf(rms, 0) {
			mask[i] = true
		}
	}
	return mask
}

// NoisyMask marks pixels whose pedestal RMS deviates from the camera
// median by more than PedestalLevelVariance times the robust scatter, or
// whose pedestal mean exceeds PedestalLevel outright. Dead pixels are
// ignored when forming the reference distribution.
func (c *Calculator) NoisyMask(pedMean, pedRMS []float64) []bool {
	mask := make([]bool, len(pedRMS))

	live := make([]float64, 0, len(pedRMS))
	for _, rms := range pedRMS {
		if rms > 0 && !math.IsInf(rms, 0) {
			live = append(live, rms)
		}
	}
	if len(live) == 0 {
		return mask
	}
	sort.Float64s(live)
	median := stat.Quantile(0.5, stat.Empirical, live, nil)

	// Robust scatter: median absolute deviation from the median.
	dev := make([]float64, len(live))
	for i, rms := range live {
		dev[i] = math.Abs(rms - median)
	}
	sort.Float64s(dev)
	mad := stat.Quantile(0.5, stat.Empirical, dev, nil)
	if mad == 0 {
		// Perfectly uniform camera; only the absolute mean cut applies.
		for i := range mask {
			mask[i] = pedMean[i] > c.cfg.PedestalLevel
		}
		return mask
	}

	for i := range mask {
		if math.Abs(pedRMS[i]-median) > c.cfg.PedestalLevelVariance*mad {
			mask[i] = true
		}
		if pedMean[i] > c.cfg.PedestalLevel {
			mask[i] = true
		}
	}
	return mask
}

package badpixels

import (
	"math"
	"testing"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/testutil"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestDeadMask(t *testing.T) {
	c := newTestCalculator(t)
	rms := []float64{2.0, 0, 2.1, math.NaN(), math.Inf(1), 1.9}
	mask := c.DeadMask(rms)
	want := []bool{false, true, false, true, true, false}
	for i := range want {
		if mask[i] != want[i] {
			t.Errorf("pixel %d: dead=%v, want %v", i, mask[i], want[i])
		}
	}
}

func TestNoisyMaskFlagsOutlierRMS(t *testing.T) {
	c := newTestCalculator(t)

	n := 100
	mean := testutil.UniformSlice(n, 50.0)
	rms := make([]float64, n)
	for i := range rms {
		rms[i] = 2.0 + 0.01*float64(i%7) // mild spread
	}
	rms[13] = 40.0 // wildly noisy channel

	mask := c.NoisyMask(mean, rms)
	if !mask[13] {
		t.Error("outlier RMS channel not flagged")
	}
	flagged := testutil.CountTrue(mask)
	if flagged > 3 {
		t.Errorf("flagged %d channels, expected only the outlier region", flagged)
	}
}

func TestNoisyMaskFlagsHighPedestalMean(t *testing.T) {
	c := newTestCalculator(t)

	n := 50
	mean := testutil.UniformSlice(n, 50.0)
	rms := make([]float64, n)
	for i := range rms {
		rms[i] = 2.0 + 0.01*float64(i%5)
	}
	mean[7] = 500.0 // above PedestalLevel 400

	mask := c.NoisyMask(mean, rms)
	if !mask[7] {
		t.Error("high-pedestal channel not flagged")
	}
}

func TestUnsuitableMaskCombines(t *testing.T) {
	c := newTestCalculator(t)

	mean := []float64{50, 50, 500, 50}
	rms := []float64{2, 0, 2, 2}
	mask, err := c.UnsuitableMask(mean, rms)
	testutil.AssertNoError(t, err)

	if !mask[1] {
		t.Error("dead pixel not in combined mask")
	}
	if mask[0] || mask[3] {
		t.Error("healthy pixel flagged")
	}

	if _, err := c.UnsuitableMask(mean, rms[:2]); err == nil {
		t.Error("mismatched lengths should be rejected")
	}
}

func TestConfigValidation(t *testing.T) {
	if _, err := NewCalculator(Config{PedestalLevel: 0, PedestalLevelVariance: 4.5}); err == nil {
		t.Error("zero pedestal level should be rejected")
	}
	if _, err := NewCalculator(Config{PedestalLevel: 400, PedestalLevelVariance: -1}); err == nil {
		t.Error("negative variance factor should be rejected")
	}
}

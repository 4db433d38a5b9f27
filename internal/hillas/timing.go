package hillas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
)

// TimingParameters describes the arrival-time evolution along the shower
// image: a charge-weighted linear fit of pixel time against the
// longitudinal coordinate on the major axis.
type TimingParameters struct {
	Slope     float64 // time units per metre along the major axis
	Intercept float64 // fitted time at the centroid
	Deviation float64 // weighted RMS of fit residuals
}

// Timing fits the time gradient over the selected pixels. Requires a
// usable set of Hillas parameters for the same mask; fewer than two
// selected pixels make the fit ill-defined and return an error.
func Timing(geom *camera.Geometry, image, times []float64, p Parameters, mask []bool) (TimingParameters, error) {
	n := geom.NumPixels()
	if len(times) != n {
		return TimingParameters{}, fmt.Errorf("time map length %d does not match camera size %d", len(times), n)
	}

	long, weights := longitudinal(geom, image, mask, p)
	var ts []float64
	for i := 0; i < n; i++ {
		if !mask[i] || !(image[i] > 0) {
			continue
		}
		ts = append(ts, times[i])
	}
	if len(long) < 2 {
		return TimingParameters{}, fmt.Errorf("timing fit ill-defined: %d pixels", len(long))
	}

	intercept, slope := stat.LinearRegression(long, ts, weights, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return TimingParameters{}, fmt.Errorf("timing fit degenerate: all pixels at one longitudinal coordinate")
	}

	var sumSq, sumW float64
	for i := range long {
		r := ts[i] - (intercept + slope*long[i])
		sumSq += weights[i] * r * r
		sumW += weights[i]
	}
	dev := 0.0
	if sumW > 0 {
		dev = math.Sqrt(sumSq / sumW)
	}

	return TimingParameters{Slope: slope, Intercept: intercept, Deviation: dev}, nil
}

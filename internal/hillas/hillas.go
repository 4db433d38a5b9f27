// Package hillas reduces a cleaned camera image to its geometric shape
// statistics: the Hillas ellipse (second moments), the arrival-time
// gradient along the major axis, and the border leakage fractions.
package hillas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
)

// Parameters is the Hillas ellipse of one cleaned image. Lengths are in
// camera-plane metres, angles in radians. A Width of zero or NaN marks
// the ellipse unusable for stereo combination.
type Parameters struct {
	Intensity float64 // sum of cleaned charge
	X, Y      float64 // charge-weighted centroid
	Length    float64 // RMS spread along the major axis
	Width     float64 // RMS spread along the minor axis
	Psi       float64 // major-axis orientation
	R, Phi    float64 // centroid in polar camera coordinates
	Skewness  float64 // third standardized moment along the major axis
	Kurtosis  float64 // fourth standardized moment along the major axis

	NumPixels  int // selected pixels contributing charge
	NumIslands int // attached by the orchestrator, advisory
}

// Usable reports whether the ellipse can contribute to stereo
// combination: a zero or undefined width makes the orientation, and any
// line derived from it, meaningless.
func (p Parameters) Usable() bool {
	return p.Width != 0 && !math.IsNaN(p.Width)
}

// Moments computes the Hillas parameters over the pixels selected by
// mask, weighting positions by pixel charge. A mask with fewer than two
// charged pixels, or with non-positive total intensity, is an
// input-data failure: the shape is ill-defined and an error is returned
// so the caller can skip the telescope.
func Moments(geom *camera.Geometry, image []float64, mask []bool) (Parameters, error) {
	n := geom.NumPixels()
	if len(image) != n || len(mask) != n {
		return Parameters{}, fmt.Errorf("image/mask length %d/%d does not match camera size %d", len(image), len(mask), n)
	}

	var intensity, sumX, sumY float64
	numPixels := 0
	for i := 0; i < n; i++ {
		if !mask[i] || !(image[i] > 0) {
			continue
		}
		x, y := geom.PixelPosition(i)
		intensity += image[i]
		sumX += image[i] * x
		sumY += image[i] * y
		numPixels++
	}
	if numPixels < 2 || !(intensity > 0) {
		return Parameters{}, fmt.Errorf("moments ill-defined: %d charged pixels, intensity %v", numPixels, intensity)
	}

	meanX := sumX / intensity
	meanY := sumY / intensity

	var covXX, covXY, covYY float64
	for i := 0; i < n; i++ {
		if !mask[i] || !(image[i] > 0) {
			continue
		}
		x, y := geom.PixelPosition(i)
		dx, dy := x-meanX, y-meanY
		covXX += image[i] * dx * dx
		covXY += image[i] * dx * dy
		covYY += image[i] * dy * dy
	}
	covXX /= intensity
	covXY /= intensity
	covYY /= intensity

	var eig mat.EigenSym
	cov := mat.NewSymDense(2, []float64{covXX, covXY, covXY, covYY})
	if !eig.Factorize(cov, true) {
		return Parameters{}, fmt.Errorf("eigendecomposition of image covariance failed")
	}
	vals := eig.Values(nil) // ascending
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	width := math.Sqrt(math.Max(vals[0], 0))
	length := math.Sqrt(math.Max(vals[1], 0))
	psi := math.Atan2(vecs.At(1, 1), vecs.At(0, 1))
	// Fold orientation into (-pi/2, pi/2]; the axis is undirected.
	if psi > math.Pi/2 {
		psi -= math.Pi
	} else if psi <= -math.Pi/2 {
		psi += math.Pi
	}

	p := Parameters{
		Intensity: intensity,
		X:         meanX,
		Y:         meanY,
		Length:    length,
		Width:     width,
		Psi:       psi,
		R:         math.Hypot(meanX, meanY),
		Phi:       math.Atan2(meanY, meanX),
		NumPixels: numPixels,
	}

	// Higher moments along the major axis. Undefined for a point-like
	// image (length zero); NaN is the honest answer there.
	long, weights := longitudinal(geom, image, mask, p)
	if length > 0 {
		m3 := stat.Moment(3, long, weights)
		m4 := stat.Moment(4, long, weights)
		p.Skewness = m3 / (length * length * length)
		p.Kurtosis = m4 / (length * length * length * length)
	} else {
		p.Skewness = math.NaN()
		p.Kurtosis = math.NaN()
	}

	return p, nil
}

// longitudinal projects the selected pixels onto the major axis, returning
// coordinates relative to the centroid and the matching charge weights.
func longitudinal(geom *camera.Geometry, image []float64, mask []bool, p Parameters) (coords, weights []float64) {
	cosPsi, sinPsi := math.Cos(p.Psi), math.Sin(p.Psi)
	for i := 0; i < geom.NumPixels(); i++ {
		if !mask[i] || !(image[i] > 0) {
			continue
		}
		x, y := geom.PixelPosition(i)
		coords = append(coords, (x-p.X)*cosPsi+(y-p.Y)*sinPsi)
		weights = append(weights, image[i])
	}
	return coords, weights
}

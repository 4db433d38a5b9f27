package hillas

import (
	"math"
	"testing"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/testutil"
)

func testGeometry(t *testing.T, rings int) *camera.Geometry {
	t.Helper()
	g, err := camera.Hexagonal("test", rings, 0.03, 17.0)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// gaussianImage paints an elliptical Gaussian on the camera: centroid
// (cx, cy), axis sigmas (sl, sw), orientation psi.
func gaussianImage(geom *camera.Geometry, amp, cx, cy, sl, sw, psi float64) []float64 {
	img := make([]float64, geom.NumPixels())
	cosP, sinP := math.Cos(psi), math.Sin(psi)
	for i := range img {
		x, y := geom.PixelPosition(i)
		dx, dy := x-cx, y-cy
		l := dx*cosP + dy*sinP
		w := -dx*sinP + dy*cosP
		img[i] = amp * math.Exp(-l*l/(2*sl*sl)-w*w/(2*sw*sw))
	}
	return img
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

func TestMomentsRecoverEllipse(t *testing.T) {
	geom := testGeometry(t, 10)
	psi := 0.5
	img := gaussianImage(geom, 100, 0.04, 0.02, 0.10, 0.04, psi)

	p, err := Moments(geom, img, allTrue(geom.NumPixels()))
	testutil.AssertNoError(t, err)

	testutil.AssertInDelta(t, p.X, 0.04, 0.01)
	testutil.AssertInDelta(t, p.Y, 0.02, 0.01)
	testutil.AssertInDelta(t, p.Psi, psi, 0.1)
	if p.Length <= p.Width {
		t.Errorf("length %v not greater than width %v", p.Length, p.Width)
	}
	if !p.Usable() {
		t.Error("elongated Gaussian should produce a usable ellipse")
	}
	testutil.AssertFinite(t, p.Skewness)
	testutil.AssertFinite(t, p.Kurtosis)
}

func TestMomentsSymmetricBlobNearCircular(t *testing.T) {
	geom := testGeometry(t, 10)
	img := gaussianImage(geom, 100, 0, 0, 0.06, 0.06, 0)

	p, err := Moments(geom, img, allTrue(geom.NumPixels()))
	testutil.AssertNoError(t, err)
	testutil.AssertInDelta(t, p.Length/p.Width, 1.0, 0.1)
	testutil.AssertInDelta(t, p.R, 0, 1e-6)
}

func TestMomentsCollinearPixelsDegenerate(t *testing.T) {
	geom := testGeometry(t, 6)
	n := geom.NumPixels()
	img := make([]float64, n)
	mask := make([]bool, n)

	// Select only pixels lying on the y=0 row.
	for i := 0; i < n; i++ {
		_, y := geom.PixelPosition(i)
		if math.Abs(y) < 1e-9 {
			img[i] = 10
			mask[i] = true
		}
	}

	p, err := Moments(geom, img, mask)
	testutil.AssertNoError(t, err)
	if p.Width > 1e-9 {
		t.Errorf("collinear image should have zero width, got %v", p.Width)
	}
	if p.Usable() {
		t.Error("zero-width ellipse must be flagged unusable")
	}
	testutil.AssertInDelta(t, math.Abs(p.Psi), 0, 1e-6)
}

func TestMomentsIllDefinedInputs(t *testing.T) {
	geom := testGeometry(t, 3)
	n := geom.NumPixels()

	if _, err := Moments(geom, make([]float64, n), make([]bool, n)); err == nil {
		t.Error("empty mask should be ill-defined")
	}

	img := make([]float64, n)
	mask := make([]bool, n)
	img[0] = 5
	mask[0] = true
	if _, err := Moments(geom, img, mask); err == nil {
		t.Error("single pixel should be ill-defined")
	}

	if _, err := Moments(geom, make([]float64, n-1), allTrue(n)); err == nil {
		t.Error("length mismatch should be rejected")
	}
}

func TestTimingRecoversGradient(t *testing.T) {
	geom := testGeometry(t, 8)
	n := geom.NumPixels()
	psi := 0.0
	img := gaussianImage(geom, 100, 0, 0, 0.08, 0.03, psi)
	mask := allTrue(n)

	p, err := Moments(geom, img, mask)
	testutil.AssertNoError(t, err)

	// Arrival time rises linearly along x (the major axis here).
	const slope = 25.0 // time units per metre
	times := make([]float64, n)
	for i := range times {
		x, _ := geom.PixelPosition(i)
		times[i] = 30.0 + slope*x
	}

	tp, err := Timing(geom, img, times, p, mask)
	testutil.AssertNoError(t, err)
	testutil.AssertInDelta(t, tp.Slope, slope, 0.5)
	testutil.AssertInDelta(t, tp.Intercept, 30.0, 0.5)
	testutil.AssertInDelta(t, tp.Deviation, 0, 1e-6)
}

func TestTimingIllDefined(t *testing.T) {
	geom := testGeometry(t, 3)
	n := geom.NumPixels()
	img := make([]float64, n)
	mask := make([]bool, n)
	img[0], img[1] = 5, 5
	mask[0] = true

	if _, err := Timing(geom, img, make([]float64, n), Parameters{}, mask); err == nil {
		t.Error("single-pixel timing fit should fail")
	}
}

func TestLeakageCentredVsEdge(t *testing.T) {
	geom := testGeometry(t, 6)
	n := geom.NumPixels()

	// Compact blob at the centre: zero leakage.
	img := gaussianImage(geom, 100, 0, 0, 0.02, 0.02, 0)
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = img[i] > 5
	}
	l := ComputeLeakage(geom, img, mask)
	if l.IntensityWidth1 != 0 || l.IntensityWidth2 != 0 {
		t.Errorf("centred blob should not leak: %+v", l)
	}

	// Mask covering the whole camera leaks by construction.
	full := allTrue(n)
	l = ComputeLeakage(geom, img, full)
	if !(l.PixelsWidth1 > 0 && l.PixelsWidth2 > l.PixelsWidth1) {
		t.Errorf("full-camera mask should leak, ring2 >= ring1: %+v", l)
	}
}

func TestLeakageEmptyMask(t *testing.T) {
	geom := testGeometry(t, 3)
	l := ComputeLeakage(geom, make([]float64, geom.NumPixels()), make([]bool, geom.NumPixels()))
	if l != (Leakage{}) {
		t.Errorf("empty mask should yield zero leakage: %+v", l)
	}
}

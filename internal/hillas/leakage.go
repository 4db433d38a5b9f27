package hillas

import "github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"

// Leakage quantifies how much of the cleaned image touches the camera
// edge. Large values flag images truncated by the field of view, whose
// moments underestimate the true shower shape.
type Leakage struct {
	PixelsWidth1    float64 // fraction of selected pixels on the outermost ring
	PixelsWidth2    float64 // fraction on the outermost two rings
	IntensityWidth1 float64 // fraction of cleaned charge on the outermost ring
	IntensityWidth2 float64 // fraction on the outermost two rings
}

// ComputeLeakage evaluates the border fractions over the full (uncleaned)
// image restricted to the cleaning mask, matching how the reference
// analysis feeds it.
func ComputeLeakage(geom *camera.Geometry, image []float64, mask []bool) Leakage {
	border1 := geom.BorderMask(1)
	border2 := geom.BorderMask(2)

	var selected, onRing1, onRing2 int
	var intensity, intensityRing1, intensityRing2 float64
	for i := 0; i < geom.NumPixels(); i++ {
		if i >= len(mask) || !mask[i] {
			continue
		}
		selected++
		intensity += image[i]
		if border1[i] {
			onRing1++
			intensityRing1 += image[i]
		}
		if border2[i] {
			onRing2++
			intensityRing2 += image[i]
		}
	}

	var l Leakage
	if selected > 0 {
		l.PixelsWidth1 = float64(onRing1) / float64(selected)
		l.PixelsWidth2 = float64(onRing2) / float64(selected)
	}
	if intensity > 0 {
		l.IntensityWidth1 = intensityRing1 / intensity
		l.IntensityWidth2 = intensityRing2 / intensity
	}
	return l
}

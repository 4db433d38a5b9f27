package cleaning

import (
	"math"
	"sort"
)

// hotPixelMask flags pixels statistically inconsistent with their
// neighborhood: a pixel is "hot" when it would pass the picture threshold
// while every suitable neighbor stays below the boundary threshold and
// its charge exceeds HotPixelFactor times the median neighbor charge.
// A genuine shower core always drags bright neighbors along, so signal
// pixels never satisfy the second condition.
//
// The exact statistical test is a policy knob (HotPixelFactor); the MARS
// chain derives it from pedestal statistics instead, which arrive here
// through the unsuitable-pixel mask.
func (e *Engine) hotPixelMask(image []float64, excluded []bool) []bool {
	n := e.geom.NumPixels()
	hot := make([]bool, n)

	var nbCharges []float64
	for i := 0; i < n; i++ {
		if excluded[i] || !(image[i] >= e.cfg.PictureThreshold) {
			continue
		}

		nbCharges = nbCharges[:0]
		brightNeighbor := false
		for _, nb := range e.geom.Neighbors(i) {
			if excluded[nb] {
				continue
			}
			if image[nb] >= e.cfg.BoundaryThreshold {
				brightNeighbor = true
				break
			}
			if !math.IsNaN(image[nb]) {
				nbCharges = append(nbCharges, image[nb])
			}
		}
		if brightNeighbor || len(nbCharges) == 0 {
			continue
		}

		med := median(nbCharges)
		if med < 0 {
			med = 0
		}
		// Against a dark neighborhood any core-level charge is anomalous;
		// against a dim one, demand the configured factor.
		if image[i] > e.cfg.HotPixelFactor*med {
			hot[i] = true
		}
	}
	return hot
}

func median(v []float64) float64 {
	sort.Float64s(v)
	m := len(v) / 2
	if len(v)%2 == 1 {
		return v[m]
	}
	return (v[m-1] + v[m]) / 2
}

package stereo

import (
	"fmt"
	"math"
)

// Intersector reconstructs the shower by intersecting image-axis lines
// pairwise: once in the tangent (nominal) sky plane for the arrival
// direction, and once in the ground plane for the impact point. All
// pairwise estimates are blended by a normalized weighted average, which
// generalizes to any number of telescopes without a two-telescope
// special case.
type Intersector struct{}

// NewIntersector returns the pairwise line-intersection strategy.
func NewIntersector() *Intersector { return &Intersector{} }

// Name implements Reconstructor.
func (in *Intersector) Name() string { return "intersection" }

// skyLine is an image axis projected into the nominal plane: a point and
// a unit direction.
type skyLine struct {
	px, py float64
	dx, dy float64
}

func (in *Intersector) reconstruct(views []view, ref vec3) (*Result, error) {
	refAlt, refAz := vectorToAltAz(ref)
	eAz, eAlt := pointingBasis(refAlt, refAz)

	lines := make([]skyLine, len(views))
	for i, v := range views {
		cu, cw, okC := planeProjection(v.centroid, ref, eAz, eAlt)
		au, aw, okA := planeProjection(v.axis, ref, eAz, eAlt)
		if !okC || !okA {
			return nil, fmt.Errorf("telescope %d looks away from the reference direction", v.tel)
		}
		du, dw := au-cu, aw-cw
		n := math.Hypot(du, dw)
		if n == 0 {
			return nil, fmt.Errorf("telescope %d has a zero-length axis projection", v.tel)
		}
		lines[i] = skyLine{px: cu, py: cw, dx: du / n, dy: dw / n}
	}

	var dirU, dirW, dirWeight float64
	var coreX, coreY, coreWeight float64

	for i := 0; i < len(views); i++ {
		for j := i + 1; j < len(views); j++ {
			// Direction: intersect the two sky lines.
			li, lj := lines[i], lines[j]
			det := li.dx*lj.dy - li.dy*lj.dx
			if w := pairWeight(views[i], views[j], math.Abs(det)); w > 0 && math.Abs(det) > 1e-12 {
				rx, ry := lj.px-li.px, lj.py-li.py
				s := (rx*lj.dy - ry*lj.dx) / det
				dirU += w * (li.px + s*li.dx)
				dirW += w * (li.py + s*li.dy)
				dirWeight += w
			}

			// Impact point: intersect the two ground traces.
			if w := pairWeight(views[i], views[j], groundSeparation(views[i], views[j])); w > 0 {
				if x, y, ok := intersectGround(views[i], views[j]); ok {
					coreX += w * x
					coreY += w * y
					coreWeight += w
				}
			}
		}
	}

	if dirWeight == 0 || coreWeight == 0 {
		return nil, fmt.Errorf("all telescope pairs are parallel, no finite intersection")
	}

	dir := planeDirection(dirU/dirWeight, dirW/dirWeight, ref, eAz, eAlt)
	alt, az := vectorToAltAz(dir)

	return &Result{
		Alt:    alt,
		Az:     az,
		CoreX:  coreX / coreWeight,
		CoreY:  coreY / coreWeight,
		Weight: dirWeight,
	}, nil
}

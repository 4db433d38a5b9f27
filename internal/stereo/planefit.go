package stereo

import (
	"fmt"
)

// PlaneFitter reconstructs the shower in three dimensions: each view
// constrains the axis to a plane, and the direction common to a pair of
// planes is the cross product of their normals. Pairwise directions are
// averaged with the same weighting scheme as the Intersector, making the
// two strategies interchangeable cross-checks behind identical gating.
type PlaneFitter struct{}

// NewPlaneFitter returns the axis-plane pairwise strategy.
func NewPlaneFitter() *PlaneFitter { return &PlaneFitter{} }

// Name implements Reconstructor.
func (pf *PlaneFitter) Name() string { return "planefit" }

func (pf *PlaneFitter) reconstruct(views []view, ref vec3) (*Result, error) {
	var dirSum vec3
	var dirWeight float64
	var coreX, coreY, coreWeight float64

	for i := 0; i < len(views); i++ {
		for j := i + 1; j < len(views); j++ {
			// The magnitude of the normal cross product is the sine of
			// the angle between the two planes.
			cross := views[i].normal.cross(views[j].normal)
			sinSep := cross.norm()
			if w := pairWeight(views[i], views[j], sinSep); w > 0 && sinSep > 1e-12 {
				d := cross.unit()
				// The cross product fixes the axis only up to sign;
				// orient it into the viewing hemisphere.
				if d.dot(views[i].centroid.add(views[j].centroid)) < 0 {
					d = d.scale(-1)
				}
				dirSum = dirSum.add(d.scale(w))
				dirWeight += w
			}

			if w := pairWeight(views[i], views[j], groundSeparation(views[i], views[j])); w > 0 {
				if x, y, ok := intersectGround(views[i], views[j]); ok {
					coreX += w * x
					coreY += w * y
					coreWeight += w
				}
			}
		}
	}

	if dirWeight == 0 || coreWeight == 0 || dirSum.norm() == 0 {
		return nil, fmt.Errorf("all telescope pairs are parallel, no finite intersection")
	}

	alt, az := vectorToAltAz(dirSum.unit())
	return &Result{
		Alt:    alt,
		Az:     az,
		CoreX:  coreX / coreWeight,
		CoreY:  coreY / coreWeight,
		Weight: dirWeight,
	}, nil
}

package source

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/stereo"
)

// GeneratorConfig controls the shape of synthetic shower images. All
// angles are radians in the camera tangent plane; times use the same
// arbitrary sample unit as the cleaning windows.
type GeneratorConfig struct {
	Length         float64 // major-axis RMS of the light pool
	Width          float64 // minor-axis RMS
	Amplitude      float64 // peak pixel charge in photoelectrons
	CentroidOffset float64 // angular distance from source to image centroid
	NoiseRMS       float64 // pedestal fluctuation per pixel
	TimeSlope      float64 // arrival-time gradient along the major axis
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Length:         0.0045,
		Width:          0.0018,
		Amplitude:      120,
		CentroidOffset: 0.02,
		NoiseRMS:       1.2,
		TimeSlope:      200,
	}
}

// Generator produces events whose images are geometrically consistent
// with a known shower direction and core position, so the full chain
// from cleaning through stereo reconstruction can be validated against
// ground truth.
type Generator struct {
	geom      *camera.Geometry
	positions map[int]stereo.Position
	cfg       GeneratorConfig
	rng       *rand.Rand
}

// NewGenerator builds a generator for an array whose telescopes all
// carry the same camera. The seed fixes the noise stream.
func NewGenerator(geom *camera.Geometry, positions map[int]stereo.Position, cfg GeneratorConfig, seed int64) *Generator {
	return &Generator{
		geom:      geom,
		positions: positions,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Shower generates one stereo event for the given truth. Every
// telescope points at the true direction and images the shower axis as
// an elliptical light pool whose major axis is the projection of the
// shower plane into the camera.
func (g *Generator) Shower(obsID, eventID int64, truth MCTruth) Event {
	ev := Event{ObsID: obsID, EventID: eventID, MC: &truth}

	sa, ca := math.Sin(truth.Alt), math.Cos(truth.Alt)
	sz, cz := math.Sin(truth.Az), math.Cos(truth.Az)
	// Ground frame: X east, Y north, Z up. Azimuth turns clockwise
	// from north.
	p := [3]float64{ca * sz, ca * cz, sa}
	eAz := [3]float64{cz, -sz, 0}
	eAlt := [3]float64{-sa * sz, -sa * cz, ca}

	tels := make([]int, 0, len(g.positions))
	for tel := range g.positions {
		tels = append(tels, tel)
	}
	sort.Ints(tels)

	for _, tel := range tels {
		pos := g.positions[tel]
		toCore := [3]float64{truth.CoreX - pos.X, truth.CoreY - pos.Y, -pos.Z}
		normal := cross3(toCore, p)
		axis := unit3(cross3(normal, p))
		psi := math.Atan2(dot3(axis, eAlt), dot3(axis, eAz))

		ev.Telescopes = append(ev.Telescopes, g.telescopeImage(tel, truth, psi))
	}
	return ev
}

// telescopeImage paints the elliptical pool for one camera. The
// centroid sits a fixed angular distance from the source along the
// image axis, which keeps it exactly in the shower plane.
func (g *Generator) telescopeImage(tel int, truth MCTruth, psi float64) TelescopeEvent {
	cfg := g.cfg
	n := g.geom.NumPixels()
	cx := cfg.CentroidOffset * math.Cos(psi)
	cy := cfg.CentroidOffset * math.Sin(psi)
	cosP, sinP := math.Cos(psi), math.Sin(psi)

	te := TelescopeEvent{
		TelescopeID: tel,
		PointingAlt: truth.Alt,
		PointingAz:  truth.Az,
		Image:       make([]float64, n),
		PeakTimes:   make([]float64, n),
		PedMean:     make([]float64, n),
		PedRMS:      make([]float64, n),
	}

	for i := 0; i < n; i++ {
		ax, ay := g.geom.AngularOffset(i)
		dl := (ax-cx)*cosP + (ay-cy)*sinP
		dt := -(ax-cx)*sinP + (ay-cy)*cosP

		signal := cfg.Amplitude * math.Exp(-dl*dl/(2*cfg.Length*cfg.Length)-dt*dt/(2*cfg.Width*cfg.Width))
		te.Image[i] = signal + g.rng.NormFloat64()*cfg.NoiseRMS

		if signal > 3*cfg.NoiseRMS {
			te.PeakTimes[i] = 20 + cfg.TimeSlope*dl + g.rng.NormFloat64()*0.3
		} else {
			// Night-sky background peaks anywhere in the readout.
			te.PeakTimes[i] = g.rng.Float64() * 50
		}
		te.PedMean[i] = 100 + g.rng.NormFloat64()*2
		te.PedRMS[i] = cfg.NoiseRMS * (1 + 0.05*g.rng.NormFloat64())
	}
	return te
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func unit3(a [3]float64) [3]float64 {
	n := math.Sqrt(dot3(a, a))
	if n == 0 {
		return a
	}
	return [3]float64{a[0] / n, a[1] / n, a[2] / n}
}

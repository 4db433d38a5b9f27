// Package stereo fuses per-telescope shower ellipses into a single
// estimate of the shower's arrival direction and ground impact point.
//
// Every ellipse constrains the shower axis to a plane containing the
// telescope; two or more telescopes break the monocular degeneracy.
// Degenerate inputs (too few telescopes, zero or undefined ellipse
// width) are declined with an explicit reason rather than producing a
// fabricated zero-valued result, and the gating is identical for every
// reconstruction strategy.
package stereo

import (
	"fmt"
	"math"
	"sort"
)

// Ellipse is one telescope's contribution: the Hillas ellipse expressed
// as angular offsets from the telescope's optical axis (radians) plus
// its total cleaned intensity.
type Ellipse struct {
	TelescopeID int
	X, Y        float64 // centroid offset, radians
	Length      float64 // angular RMS along the major axis
	Width       float64 // angular RMS along the minor axis
	Psi         float64 // major-axis orientation in the camera plane
	Intensity   float64 // total cleaned charge
}

// Pointing is where a telescope was aimed for one event.
type Pointing struct {
	Alt, Az float64 // radians
}

// Position is a telescope's location on the ground, metres in the array
// frame (X east, Y north).
type Position struct {
	X, Y, Z float64
}

// ArrayGeometry holds the static ground positions of all telescopes.
type ArrayGeometry struct {
	Positions map[int]Position
}

// Validate rejects malformed array geometry at startup.
func (a ArrayGeometry) Validate() error {
	if len(a.Positions) < 2 {
		return fmt.Errorf("array geometry needs at least 2 telescope positions, got %d", len(a.Positions))
	}
	for id, p := range a.Positions {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
			return fmt.Errorf("telescope %d has a NaN position", id)
		}
	}
	return nil
}

// Result is a computed stereo estimate. It exists only when gating
// passed; callers must treat a missing Result as "not computed", never
// as a zero-valued estimate.
type Result struct {
	Alt, Az      float64 // reconstructed shower direction, radians
	CoreX, CoreY float64 // ground impact point, metres in the array frame
	Weight       float64 // summed pairwise weight, quality indicator
	NumTels      int
	Method       string
}

// Reason identifies why stereo combination was declined.
type Reason int

const (
	// InsufficientTelescopes: fewer than two telescopes contributed an
	// ellipse.
	InsufficientTelescopes Reason = iota
	// ZeroWidth: a contributing ellipse has width == 0.
	ZeroWidth
	// UndefinedWidth: a contributing ellipse has width == NaN.
	UndefinedWidth
)

func (r Reason) String() string {
	switch r {
	case InsufficientTelescopes:
		return "insufficient telescopes"
	case ZeroWidth:
		return "degenerate ellipse (zero width)"
	case UndefinedWidth:
		return "degenerate ellipse (undefined width)"
	default:
		return "unknown"
	}
}

// Unavailable explains a declined combination. It is a diagnostic
// outcome, not an error: per-telescope results remain valid.
type Unavailable struct {
	Reason      Reason
	TelescopeID int // offending telescope for width gates, -1 otherwise
}

func (u *Unavailable) String() string {
	if u.TelescopeID >= 0 {
		return fmt.Sprintf("%s (telescope %d)", u.Reason, u.TelescopeID)
	}
	return u.Reason.String()
}

// Reconstructor is a stereo combination strategy. Implementations
// receive pre-validated views (gating already passed) and must handle
// near-parallel geometry by down-weighting, never by failing; an error
// is reserved for fully degenerate inputs where no finite estimate
// exists (for example, all axes exactly parallel).
type Reconstructor interface {
	Name() string
	reconstruct(views []view, ref vec3) (*Result, error)
}

// view is a telescope's ellipse resolved into sky geometry: the
// centroid direction, a second direction along the major axis, and the
// normal of the plane they span with the telescope.
type view struct {
	tel       int
	intensity float64
	pos       Position
	centroid  vec3 // sky direction of the image centroid
	axis      vec3 // sky direction of a point displaced along the major axis
	normal    vec3 // unit normal of the image-axis plane
}

// axisStep is the angular displacement used to take a second point on
// the major axis. Small enough to stay in the tangent-plane regime,
// large enough to be numerically clean.
const axisStep = 0.01

// Combine applies the shared gating and, when all gates pass, runs the
// chosen reconstruction strategy. The gate order is fixed and each gate
// yields a distinct diagnostic outcome:
//
//  1. fewer than 2 ellipses           -> insufficient telescopes
//  2. any ellipse with width == 0     -> degenerate ellipse (zero width)
//  3. any ellipse with width == NaN   -> degenerate ellipse (undefined width)
//
// Telescopes missing from pointings or array positions are configuration
// errors and reported as errors, not Unavailable outcomes.
func Combine(rec Reconstructor, ellipses []Ellipse, pointings map[int]Pointing, array ArrayGeometry) (*Result, *Unavailable, error) {
	if len(ellipses) < 2 {
		return nil, &Unavailable{Reason: InsufficientTelescopes, TelescopeID: -1}, nil
	}
	for _, e := range ellipses {
		if e.Width == 0 {
			return nil, &Unavailable{Reason: ZeroWidth, TelescopeID: e.TelescopeID}, nil
		}
	}
	for _, e := range ellipses {
		if math.IsNaN(e.Width) {
			return nil, &Unavailable{Reason: UndefinedWidth, TelescopeID: e.TelescopeID}, nil
		}
	}

	views, ref, err := buildViews(ellipses, pointings, array)
	if err != nil {
		return nil, nil, err
	}

	res, err := rec.reconstruct(views, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("%s reconstruction: %w", rec.Name(), err)
	}
	res.NumTels = len(views)
	res.Method = rec.Name()
	return res, nil, nil
}

// buildViews resolves each ellipse into sky geometry and computes the
// reference direction (mean pointing) used for tangent-plane work.
func buildViews(ellipses []Ellipse, pointings map[int]Pointing, array ArrayGeometry) ([]view, vec3, error) {
	views := make([]view, 0, len(ellipses))
	var refSum vec3

	// Deterministic ordering regardless of caller's map iteration.
	sorted := append([]Ellipse(nil), ellipses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TelescopeID < sorted[j].TelescopeID })

	for _, e := range sorted {
		pt, ok := pointings[e.TelescopeID]
		if !ok {
			return nil, vec3{}, fmt.Errorf("no pointing for telescope %d", e.TelescopeID)
		}
		pos, ok := array.Positions[e.TelescopeID]
		if !ok {
			return nil, vec3{}, fmt.Errorf("no array position for telescope %d", e.TelescopeID)
		}

		centroid := skyDirection(pt.Alt, pt.Az, e.X, e.Y)
		axis := skyDirection(pt.Alt, pt.Az, e.X+axisStep*math.Cos(e.Psi), e.Y+axisStep*math.Sin(e.Psi))
		normal := centroid.cross(axis).unit()

		views = append(views, view{
			tel:       e.TelescopeID,
			intensity: e.Intensity,
			pos:       pos,
			centroid:  centroid,
			axis:      axis,
			normal:    normal,
		})
		refSum = refSum.add(altAzToVector(pt.Alt, pt.Az))
	}
	return views, refSum.unit(), nil
}

// pairWeight grows with both intensities and with the angular separation
// factor sinSep in [0, 1]. Near-parallel geometry is continuously
// down-weighted rather than discarded, so the combined estimate varies
// smoothly as geometry changes across events.
func pairWeight(a, b view, sinSep float64) float64 {
	sum := a.intensity + b.intensity
	if sum <= 0 {
		return 0
	}
	return (a.intensity * b.intensity / sum) * sinSep
}

// groundTrace returns the ground-plane line constrained by one view: the
// image-axis plane contains the telescope, so its trace on the ground
// passes through the telescope's position. ok is false when the plane is
// horizontal and leaves no trace direction.
func groundTrace(v view) (dir vec3, ok bool) {
	t := v.normal.cross(vec3{0, 0, 1})
	if t.norm() < 1e-12 {
		return vec3{}, false
	}
	return t.unit(), true
}

// intersectGround solves the pairwise intersection of two ground traces.
// Returns ok=false for exactly parallel traces (the caller's weight is
// zero there anyway).
func intersectGround(a, b view) (x, y float64, ok bool) {
	da, okA := groundTrace(a)
	db, okB := groundTrace(b)
	if !okA || !okB {
		return 0, 0, false
	}
	det := da.X*db.Y - da.Y*db.X
	if math.Abs(det) < 1e-12 {
		return 0, 0, false
	}
	// a.pos + s*da = b.pos + t*db
	rx := b.pos.X - a.pos.X
	ry := b.pos.Y - a.pos.Y
	s := (rx*db.Y - ry*db.X) / det
	return a.pos.X + s*da.X, a.pos.Y + s*da.Y, true
}

// groundSeparation is the sine of the angle between two ground traces,
// used as the angular-separation factor for core weighting.
func groundSeparation(a, b view) float64 {
	da, okA := groundTrace(a)
	db, okB := groundTrace(b)
	if !okA || !okB {
		return 0
	}
	return da.cross(db).norm()
}

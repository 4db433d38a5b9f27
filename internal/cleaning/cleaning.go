// Package cleaning selects shower-signal pixels in a calibrated camera
// image. The rule is a two-threshold tail cut over the pixel neighbor
// graph with an optional arrival-time coincidence layer: bright "core"
// pixels seed the selection and lower-threshold "boundary" pixels join it
// by flood fill through the adjacency graph.
package cleaning

import (
	"fmt"
	"math"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
)

// maxTimeRejectionPasses bounds the core time-outlier rejection loop.
// The fixed point is normally reached in one or two passes; the cap
// guarantees termination on adversarial inputs.
const maxTimeRejectionPasses = 5

// DefaultHotPixelFactor is the default multiplier for the hot-pixel test
// when the config leaves it unset.
const DefaultHotPixelFactor = 10.0

// Config holds the cleaning thresholds and behavior switches for one
// telescope type.
type Config struct {
	// PictureThreshold is the minimum charge for a pixel to act as a
	// core seed.
	PictureThreshold float64
	// BoundaryThreshold is the minimum charge for a pixel to be retained
	// when adjacent to an already-selected pixel. Expected to be lower
	// than PictureThreshold.
	BoundaryThreshold float64
	// MaxTimeOffset is the maximum deviation of a core pixel's arrival
	// time from the image reference time. Ignored unless UseTime.
	MaxTimeOffset float64
	// MaxTimeDifference is the maximum arrival-time difference between a
	// boundary pixel and an accepted neighbor. Ignored unless UseTime.
	MaxTimeDifference float64
	// UseTime enables the temporal coincidence layer.
	UseTime bool
	// UseSumTimeReference selects a charge-weighted mean over core
	// candidates as the reference time; otherwise the unweighted mean.
	UseSumTimeReference bool
	// FindHotPixels additionally excludes pixels anomalously bright
	// compared to their neighbors before thresholding. Meant for real
	// detector data, not simulation.
	FindHotPixels bool
	// HotPixelFactor is the hot-pixel multiplier (see hotPixelMask).
	// Zero means DefaultHotPixelFactor.
	HotPixelFactor float64
}

// Validate rejects configurations that are operator errors: negative or
// inverted thresholds, negative time windows. Fatal at startup by design.
func (c Config) Validate() error {
	if c.PictureThreshold < 0 || math.IsNaN(c.PictureThreshold) {
		return fmt.Errorf("picture threshold must be >= 0, got %v", c.PictureThreshold)
	}
	if c.BoundaryThreshold < 0 || math.IsNaN(c.BoundaryThreshold) {
		return fmt.Errorf("boundary threshold must be >= 0, got %v", c.BoundaryThreshold)
	}
	if c.BoundaryThreshold > c.PictureThreshold {
		return fmt.Errorf("boundary threshold %v exceeds picture threshold %v", c.BoundaryThreshold, c.PictureThreshold)
	}
	if c.UseTime {
		if c.MaxTimeOffset < 0 || math.IsNaN(c.MaxTimeOffset) {
			return fmt.Errorf("max time offset must be >= 0, got %v", c.MaxTimeOffset)
		}
		if c.MaxTimeDifference < 0 || math.IsNaN(c.MaxTimeDifference) {
			return fmt.Errorf("max time difference must be >= 0, got %v", c.MaxTimeDifference)
		}
	}
	if c.HotPixelFactor < 0 {
		return fmt.Errorf("hot pixel factor must be >= 0, got %v", c.HotPixelFactor)
	}
	return nil
}

// Engine applies the cleaning rule for one camera geometry. It is
// stateless apart from the immutable geometry and config and is safe for
// concurrent use.
type Engine struct {
	geom *camera.Geometry
	cfg  Config
}

// NewEngine builds a cleaning engine. Config errors are returned here so
// they surface at startup, never mid-run.
func NewEngine(geom *camera.Geometry, cfg Config) (*Engine, error) {
	if geom == nil {
		return nil, fmt.Errorf("cleaning engine needs a camera geometry")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cleaning config: %w", err)
	}
	if cfg.HotPixelFactor == 0 {
		cfg.HotPixelFactor = DefaultHotPixelFactor
	}
	return &Engine{geom: geom, cfg: cfg}, nil
}

// Config returns the engine's cleaning configuration.
func (e *Engine) Config() Config { return e.cfg }

// Clean returns the boolean selection mask over all N pixels. unsuitable
// may be nil (all pixels considered). The input image and time map are
// never modified; zeroing excluded pixels for downstream shape
// computation is the caller's job.
//
// An image with no surviving core pixel yields an all-false mask; that is
// "cleaning failed" for the caller, not an error. NaN or infinite charge
// fails every threshold comparison and is therefore excluded, by design.
func (e *Engine) Clean(image, times []float64, unsuitable []bool) []bool {
	n := e.geom.NumPixels()
	mask := make([]bool, n)
	if len(image) != n || len(times) != n {
		// Length mismatch is a wiring bug upstream; treat as an image
		// that fails cleaning rather than corrupting memory.
		return mask
	}

	excluded := make([]bool, n)
	if unsuitable != nil {
		copy(excluded, unsuitable)
	}
	if e.cfg.FindHotPixels {
		for i, hot := range e.hotPixelMask(image, excluded) {
			if hot {
				excluded[i] = true
			}
		}
	}

	// Step 2: core candidates by picture threshold.
	core := make([]bool, n)
	anyCore := false
	for i, q := range image {
		if !excluded[i] && q >= e.cfg.PictureThreshold {
			core[i] = true
			anyCore = true
		}
	}
	if !anyCore {
		return mask
	}

	// Step 3: iterative time-outlier rejection of core pixels against a
	// recomputed reference time, to a bounded fixed point.
	if e.cfg.UseTime {
		core = e.rejectCoreTimeOutliers(image, times, core)
		anyCore = false
		for _, c := range core {
			if c {
				anyCore = true
				break
			}
		}
		if !anyCore {
			return mask
		}
	}

	copy(mask, core)

	// Step 5: boundary expansion to a fixed point. Pass-based so a pixel
	// can qualify through any accepted neighbor, including ones selected
	// later in the same round.
	for {
		grew := false
		for i := 0; i < n; i++ {
			if mask[i] || excluded[i] {
				continue
			}
			if !(image[i] >= e.cfg.BoundaryThreshold) {
				continue
			}
			if e.hasCoincidentNeighbor(i, times, mask) {
				mask[i] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	return mask
}

// hasCoincidentNeighbor reports whether pixel i has a selected neighbor
// and, when time filtering is on, whether at least one selected neighbor
// is within MaxTimeDifference of pixel i's arrival time.
func (e *Engine) hasCoincidentNeighbor(i int, times []float64, mask []bool) bool {
	for _, nb := range e.geom.Neighbors(i) {
		if !mask[nb] {
			continue
		}
		if !e.cfg.UseTime {
			return true
		}
		if math.Abs(times[i]-times[nb]) <= e.cfg.MaxTimeDifference {
			return true
		}
	}
	return false
}

// rejectCoreTimeOutliers drops core pixels whose arrival time deviates
// from the reference time by more than MaxTimeOffset. Removing outliers
// shifts the reference, so the reference/rejection step iterates until
// the accepted set stops changing, capped at maxTimeRejectionPasses.
func (e *Engine) rejectCoreTimeOutliers(image, times []float64, core []bool) []bool {
	accepted := append([]bool(nil), core...)

	for pass := 0; pass < maxTimeRejectionPasses; pass++ {
		ref, ok := e.referenceTime(image, times, accepted)
		if !ok {
			// No finite reference can be formed; every comparison below
			// would fail anyway.
			return make([]bool, len(core))
		}

		changed := false
		for i, c := range accepted {
			if !c {
				continue
			}
			if !(math.Abs(times[i]-ref) <= e.cfg.MaxTimeOffset) {
				accepted[i] = false
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return accepted
}

// referenceTime computes the mean arrival time over currently-accepted
// core pixels, charge-weighted when UseSumTimeReference is set.
func (e *Engine) referenceTime(image, times []float64, accepted []bool) (float64, bool) {
	var sum, weight float64
	for i, c := range accepted {
		if !c || math.IsNaN(times[i]) {
			continue
		}
		w := 1.0
		if e.cfg.UseSumTimeReference {
			w = image[i]
			if !(w > 0) {
				continue
			}
		}
		sum += w * times[i]
		weight += w
	}
	if weight == 0 {
		return 0, false
	}
	ref := sum / weight
	if math.IsNaN(ref) || math.IsInf(ref, 0) {
		return 0, false
	}
	return ref, true
}

// Package pipeline orchestrates the per-event analysis chain: image
// cleaning, island counting, Hillas parameterisation, and stereo
// reconstruction, with results fanned into the storage sinks.
package pipeline

import (
	"fmt"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/badpixels"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/cleaning"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/hillas"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/monitoring"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/source"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/stereo"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/storage/sqlite"
)

// HillasSink receives per-telescope image parameters. *sqlite.HillasStore
// satisfies it.
type HillasSink interface {
	Insert(*sqlite.HillasRecord) error
}

// StereoSink receives stereo reconstructions. *sqlite.StereoStore
// satisfies it.
type StereoSink interface {
	Insert(*sqlite.StereoRecord) error
}

// Telescope bundles everything the pipeline needs to process one
// telescope's images.
type Telescope struct {
	ID        int
	Geometry  *camera.Geometry
	Cleaner   *cleaning.Engine
	BadPixels *badpixels.Calculator
	Position  stereo.Position
}

// Processor runs the analysis chain for one run. It is safe for
// concurrent use by multiple workers; the sinks are written from a
// single collector goroutine in Run.
type Processor struct {
	RunID string
	ObsID int64

	Telescopes    map[int]*Telescope
	Reconstructor stereo.Reconstructor
	Array         stereo.ArrayGeometry

	Hillas HillasSink
	Stereo StereoSink
}

// EventResult is the full output for one event. Stereo is nil when the
// event was gated or combination failed.
type EventResult struct {
	EventID int64
	Hillas  []sqlite.HillasRecord
	Stereo  *sqlite.StereoRecord
}

// Validate checks the processor wiring before a run starts.
func (p *Processor) Validate() error {
	if p.RunID == "" {
		return fmt.Errorf("pipeline: run ID not set")
	}
	if len(p.Telescopes) == 0 {
		return fmt.Errorf("pipeline: no telescopes configured")
	}
	if p.Reconstructor == nil {
		return fmt.Errorf("pipeline: no stereo reconstructor configured")
	}
	if p.Hillas == nil {
		return fmt.Errorf("pipeline: no hillas sink wired")
	}
	if p.Stereo == nil {
		return fmt.Errorf("pipeline: no stereo sink wired")
	}
	for id, tel := range p.Telescopes {
		if tel == nil || tel.Geometry == nil || tel.Cleaner == nil {
			return fmt.Errorf("pipeline: telescope %d incompletely configured", id)
		}
		if _, ok := p.Array.Positions[id]; !ok {
			return fmt.Errorf("pipeline: telescope %d has no array position", id)
		}
	}
	return p.Array.Validate()
}

// ProcessEvent runs the full chain on one event. Per-telescope
// failures skip that telescope and are logged; only malformed input
// that invalidates the whole event returns an error.
func (p *Processor) ProcessEvent(ev *source.Event) (*EventResult, error) {
	if ev == nil {
		return nil, fmt.Errorf("pipeline: nil event")
	}

	res := &EventResult{EventID: ev.EventID}
	var ellipses []stereo.Ellipse
	pointings := make(map[int]stereo.Pointing)

	for i := range ev.Telescopes {
		te := &ev.Telescopes[i]
		tel, ok := p.Telescopes[te.TelescopeID]
		if !ok {
			monitoring.Eventf(ev.ObsID, ev.EventID, te.TelescopeID, "no telescope configured, skipping")
			continue
		}

		rec, ellipse := p.processTelescope(ev, te, tel)
		if rec == nil {
			continue
		}
		res.Hillas = append(res.Hillas, *rec)
		ellipses = append(ellipses, *ellipse)
		pointings[te.TelescopeID] = stereo.Pointing{Alt: te.PointingAlt, Az: te.PointingAz}
	}

	stereoRes, unavail, err := stereo.Combine(p.Reconstructor, ellipses, pointings, p.Array)
	switch {
	case err != nil:
		monitoring.Eventf(ev.ObsID, ev.EventID, -1, "stereo combination failed: %v", err)
	case unavail != nil:
		monitoring.Eventf(ev.ObsID, ev.EventID, -1, "stereo unavailable: %s", unavail)
	case stereoRes != nil:
		res.Stereo = &sqlite.StereoRecord{
			RunID:   p.RunID,
			ObsID:   ev.ObsID,
			EventID: ev.EventID,
			Result:  *stereoRes,
		}
	}

	return res, nil
}

// processTelescope runs cleaning and parameterisation for one
// telescope. It returns nil when the image yields no parameters.
// Every parameterised image contributes an ellipse, degenerate or not;
// the stereo gating decides what to do with it.
func (p *Processor) processTelescope(ev *source.Event, te *source.TelescopeEvent, tel *Telescope) (*sqlite.HillasRecord, *stereo.Ellipse) {
	obsID, eventID, telID := ev.ObsID, ev.EventID, te.TelescopeID

	if len(te.Image) != tel.Geometry.NumPixels() {
		monitoring.Eventf(obsID, eventID, telID, "image has %d pixels, camera %q has %d, skipping",
			len(te.Image), tel.Geometry.Name, tel.Geometry.NumPixels())
		return nil, nil
	}

	var unsuitable []bool
	if tel.BadPixels != nil && len(te.PedMean) > 0 {
		var err error
		unsuitable, err = tel.BadPixels.UnsuitableMask(te.PedMean, te.PedRMS)
		if err != nil {
			monitoring.Eventf(obsID, eventID, telID, "bad pixel mask failed: %v, proceeding without", err)
			unsuitable = nil
		}
	}

	mask := tel.Cleaner.Clean(te.Image, te.PeakTimes, unsuitable)
	selected := 0
	for _, m := range mask {
		if m {
			selected++
		}
	}
	if selected == 0 {
		monitoring.Eventf(obsID, eventID, telID, "image empty after cleaning, skipping")
		return nil, nil
	}

	_, numIslands := cleaning.IslandLabels(tel.Geometry, mask)

	params, err := hillas.Moments(tel.Geometry, te.Image, mask)
	if err != nil {
		monitoring.Eventf(obsID, eventID, telID, "parameterisation failed: %v, skipping", err)
		return nil, nil
	}
	params.NumIslands = numIslands

	rec := &sqlite.HillasRecord{
		RunID:       p.RunID,
		ObsID:       obsID,
		EventID:     eventID,
		TelescopeID: telID,
		Params:      params,
	}

	if tel.Cleaner.Config().UseTime {
		timing, err := hillas.Timing(tel.Geometry, te.Image, te.PeakTimes, params, mask)
		if err != nil {
			monitoring.Eventf(obsID, eventID, telID, "timing fit failed: %v", err)
		} else {
			rec.Timing = &timing
		}
	}

	leak := hillas.ComputeLeakage(tel.Geometry, te.Image, mask)
	rec.Leakage = &leak

	// Degenerate ellipses (width zero or NaN) are still forwarded; the
	// stereo gating owns that diagnostic and names the offender.
	f := tel.Geometry.FocalLength
	ellipse := &stereo.Ellipse{
		TelescopeID: telID,
		X:           params.X / f,
		Y:           params.Y / f,
		Length:      params.Length / f,
		Width:       params.Width / f,
		Psi:         params.Psi,
		Intensity:   params.Intensity,
	}
	return rec, ellipse
}

package source

import (
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/stereo"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/testutil"
)

func TestFileSourceRoundTrip(t *testing.T) {
	events := []Event{
		{
			ObsID: 5093174, EventID: 1,
			Telescopes: []TelescopeEvent{{
				TelescopeID: 1,
				PointingAlt: 1.2, PointingAz: 0.3,
				Image:     []float64{1, 2, 3},
				PeakTimes: []float64{10, 11, 12},
			}},
		},
		{
			ObsID: 5093174, EventID: 2,
			Telescopes: []TelescopeEvent{
				{TelescopeID: 1, Image: []float64{0}, PeakTimes: []float64{0}},
				{TelescopeID: 2, Image: []float64{4}, PeakTimes: []float64{9}},
			},
			MC: &MCTruth{Alt: 1.3, Az: 0.1, CoreX: 10, CoreY: -20},
		},
	}

	path := filepath.Join(t.TempDir(), "events.jsonl")
	testutil.AssertNoError(t, WriteEventsFile(path, events))

	src, err := Open(path)
	testutil.AssertNoError(t, err)
	defer src.Close()

	var got []Event
	for {
		ev, err := src.Next()
		if err == io.EOF {
			break
		}
		testutil.AssertNoError(t, err)
		got = append(got, *ev)
	}

	if diff := cmp.Diff(events, got); diff != "" {
		t.Errorf("events changed in round trip (-want +got):\n%s", diff)
	}
}

func TestOpenRejectsWrongExtension(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "events.json"))
	testutil.AssertError(t, err)
}

func TestSliceSourceExhausts(t *testing.T) {
	src := NewSliceSource([]Event{{EventID: 7}})
	ev, err := src.Next()
	testutil.AssertNoError(t, err)
	if ev.EventID != 7 {
		t.Errorf("EventID = %d, want 7", ev.EventID)
	}
	if _, err := src.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestGeneratorShowerShape(t *testing.T) {
	geom, err := camera.Hexagonal("test-cam", 12, 0.03, 17.0)
	testutil.AssertNoError(t, err)

	positions := map[int]stereo.Position{
		1: {X: -50, Y: 0},
		2: {X: 50, Y: 0},
	}
	gen := NewGenerator(geom, positions, DefaultGeneratorConfig(), 1)
	truth := MCTruth{Alt: 1.2, Az: 0.3, CoreX: 10, CoreY: 20}

	ev := gen.Shower(1, 42, truth)
	if ev.EventID != 42 || ev.MC == nil {
		t.Fatalf("event metadata wrong: %+v", ev)
	}
	if len(ev.Telescopes) != 2 {
		t.Fatalf("telescope count = %d, want 2", len(ev.Telescopes))
	}

	for _, te := range ev.Telescopes {
		if len(te.Image) != geom.NumPixels() {
			t.Fatalf("tel %d: image size %d, want %d", te.TelescopeID, len(te.Image), geom.NumPixels())
		}
		if te.PointingAlt != truth.Alt || te.PointingAz != truth.Az {
			t.Errorf("tel %d: pointing (%v,%v) not at source", te.TelescopeID, te.PointingAlt, te.PointingAz)
		}

		peak := 0.0
		bright := 0
		for i, q := range te.Image {
			if math.IsNaN(q) {
				t.Fatalf("tel %d: NaN charge at pixel %d", te.TelescopeID, i)
			}
			if q > peak {
				peak = q
			}
			if q > 30 {
				bright++
			}
		}
		if peak < 50 {
			t.Errorf("tel %d: peak charge %v, expected a bright pool", te.TelescopeID, peak)
		}
		if bright < 3 {
			t.Errorf("tel %d: only %d bright pixels", te.TelescopeID, bright)
		}
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	geom, err := camera.Hexagonal("test-cam", 8, 0.03, 17.0)
	testutil.AssertNoError(t, err)
	positions := map[int]stereo.Position{1: {X: -50}, 2: {X: 50}}
	truth := MCTruth{Alt: 1.2, Az: 0.3, CoreX: 10, CoreY: 20}

	a := NewGenerator(geom, positions, DefaultGeneratorConfig(), 99).Shower(1, 1, truth)
	b := NewGenerator(geom, positions, DefaultGeneratorConfig(), 99).Shower(1, 1, truth)

	if len(a.Telescopes) != len(b.Telescopes) {
		t.Fatal("telescope counts differ")
	}
	for i := range a.Telescopes {
		at, bt := a.Telescopes[i], b.Telescopes[i]
		if at.TelescopeID != bt.TelescopeID {
			t.Fatalf("telescope order differs at %d", i)
		}
		for j := range at.Image {
			if at.Image[j] != bt.Image[j] {
				t.Fatalf("tel %d pixel %d: %v != %v", at.TelescopeID, j, at.Image[j], bt.Image[j])
			}
		}
	}
}

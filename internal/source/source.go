// Package source provides event input for the analysis pipeline. Events
// arrive either from JSON-lines files written by the calibration stage
// or from the synthetic generator used for validation runs.
package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TelescopeEvent is one telescope's view of an air shower: calibrated
// pixel charges, signal peak arrival times, and the drive pointing at
// trigger time. Pedestal statistics are carried when the calibration
// stage produced them and are empty otherwise.
type TelescopeEvent struct {
	TelescopeID int       `json:"telescope_id"`
	PointingAlt float64   `json:"pointing_alt_rad"`
	PointingAz  float64   `json:"pointing_az_rad"`
	Image       []float64 `json:"image_pe"`
	PeakTimes   []float64 `json:"peak_times_ns"`
	PedMean     []float64 `json:"ped_mean,omitempty"`
	PedRMS      []float64 `json:"ped_rms,omitempty"`
}

// MCTruth holds the simulated shower parameters for generated events.
type MCTruth struct {
	Alt    float64 `json:"alt_rad"`
	Az     float64 `json:"az_rad"`
	CoreX  float64 `json:"core_x_m"`
	CoreY  float64 `json:"core_y_m"`
	Energy float64 `json:"energy_tev,omitempty"`
}

// Event is one stereo trigger: the same shower seen by one or more
// telescopes.
type Event struct {
	ObsID      int64            `json:"obs_id"`
	EventID    int64            `json:"event_id"`
	Telescopes []TelescopeEvent `json:"telescopes"`
	MC         *MCTruth         `json:"mc,omitempty"`
}

// EventSource yields events in trigger order. Next returns io.EOF when
// the stream is exhausted.
type EventSource interface {
	Next() (*Event, error)
	Close() error
}

// Events can carry full-camera images, so lines run well past the
// bufio default.
const maxLineBytes = 16 << 20

// FileSource reads events from a JSON-lines file, one event per line.
type FileSource struct {
	f    *os.File
	scan *bufio.Scanner
	line int
}

// Open opens a .jsonl event file for reading.
func Open(path string) (*FileSource, error) {
	if filepath.Ext(path) != ".jsonl" {
		return nil, fmt.Errorf("event file must have .jsonl extension, got %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	scan := bufio.NewScanner(f)
	scan.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &FileSource{f: f, scan: scan}, nil
}

// Next returns the next event, or io.EOF at end of file.
func (s *FileSource) Next() (*Event, error) {
	for s.scan.Scan() {
		s.line++
		raw := s.scan.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", s.f.Name(), s.line, err)
		}
		return &ev, nil
	}
	if err := s.scan.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

// WriteEvents writes events as JSON lines.
func WriteEvents(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteEventsFile writes events to a .jsonl file, creating or
// truncating it.
func WriteEventsFile(path string, events []Event) error {
	if filepath.Ext(path) != ".jsonl" {
		return fmt.Errorf("event file must have .jsonl extension, got %q", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := WriteEvents(bw, events); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SliceSource serves a fixed list of events, mainly for tests and the
// synthetic generator.
type SliceSource struct {
	events []Event
	next   int
}

func NewSliceSource(events []Event) *SliceSource {
	return &SliceSource{events: events}
}

func (s *SliceSource) Next() (*Event, error) {
	if s.next >= len(s.events) {
		return nil, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return &ev, nil
}

func (s *SliceSource) Close() error { return nil }

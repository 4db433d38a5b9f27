package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run records one pass of the pipeline over an observation.
type Run struct {
	RunID           string          `json:"run_id"`
	ObsID           int64           `json:"obs_id"`
	SourceFile      string          `json:"source_file,omitempty"`
	StereoMethod    string          `json:"stereo_method"`
	ConfigJSON      json.RawMessage `json:"config_json,omitempty"`
	EventsProcessed int64           `json:"events_processed"`
	StartedAtNs     int64           `json:"started_at_ns"`
	FinishedAtNs    *int64          `json:"finished_at_ns,omitempty"`
}

// RunStore provides persistence for analysis runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun creates a new run row. If run.RunID is empty, a new UUID
// is generated.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.StartedAtNs == 0 {
		run.StartedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO analysis_runs (
			run_id, obs_id, source_file, stereo_method, config_json,
			events_processed, started_at_ns, finished_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			run.RunID,
			run.ObsID,
			nullString(run.SourceFile),
			run.StereoMethod,
			nullString(string(run.ConfigJSON)),
			run.EventsProcessed,
			run.StartedAtNs,
			nullInt64(run.FinishedAtNs),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun marks a run complete with its final event count.
func (s *RunStore) FinishRun(runID string, eventsProcessed int64) error {
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(
			"UPDATE analysis_runs SET events_processed = ?, finished_at_ns = ? WHERE run_id = ?",
			eventsProcessed, time.Now().UnixNano(), runID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	query := `
		SELECT run_id, obs_id, source_file, stereo_method, config_json,
		       events_processed, started_at_ns, finished_at_ns
		FROM analysis_runs
		WHERE run_id = ?
	`

	var run Run
	var sourceFile, configJSON sql.NullString
	var finishedAtNs sql.NullInt64

	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.ObsID,
		&sourceFile,
		&run.StereoMethod,
		&configJSON,
		&run.EventsProcessed,
		&run.StartedAtNs,
		&finishedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.SourceFile = sourceFile.String
	if configJSON.Valid {
		run.ConfigJSON = json.RawMessage(configJSON.String)
	}
	if finishedAtNs.Valid {
		run.FinishedAtNs = &finishedAtNs.Int64
	}
	return &run, nil
}

// ListRuns returns all runs for an observation, newest first.
func (s *RunStore) ListRuns(obsID int64) ([]Run, error) {
	query := `
		SELECT run_id, obs_id, source_file, stereo_method, config_json,
		       events_processed, started_at_ns, finished_at_ns
		FROM analysis_runs
		WHERE obs_id = ?
		ORDER BY started_at_ns DESC
	`

	rows, err := s.db.Query(query, obsID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var sourceFile, configJSON sql.NullString
		var finishedAtNs sql.NullInt64
		if err := rows.Scan(
			&run.RunID, &run.ObsID, &sourceFile, &run.StereoMethod,
			&configJSON, &run.EventsProcessed, &run.StartedAtNs, &finishedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.SourceFile = sourceFile.String
		if configJSON.Valid {
			run.ConfigJSON = json.RawMessage(configJSON.String)
		}
		if finishedAtNs.Valid {
			run.FinishedAtNs = &finishedAtNs.Int64
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid}
}

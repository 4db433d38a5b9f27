package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/stereo"
)

// StereoRecord is one event's stereo reconstruction. Events whose
// reconstruction was gated have no record at all.
type StereoRecord struct {
	RunID       string
	ObsID       int64
	EventID     int64
	Result      stereo.Result
	CreatedAtNs int64
}

// StereoStore provides persistence for stereo reconstructions.
type StereoStore struct {
	db *sql.DB
}

// NewStereoStore creates a new StereoStore.
func NewStereoStore(db *sql.DB) *StereoStore {
	return &StereoStore{db: db}
}

// Insert writes one record.
func (s *StereoStore) Insert(rec *StereoRecord) error {
	if rec.CreatedAtNs == 0 {
		rec.CreatedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO stereo_params (
			run_id, obs_id, event_id,
			alt_rad, az_rad, core_x_m, core_y_m,
			weight, num_tels, method, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	r := rec.Result
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			rec.RunID, rec.ObsID, rec.EventID,
			r.Alt, r.Az, r.CoreX, r.CoreY,
			r.Weight, r.NumTels, r.Method, rec.CreatedAtNs,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert stereo params: %w", err)
	}
	return nil
}

// GetEvent returns the reconstruction for one event, or nil if the
// event has none.
func (s *StereoStore) GetEvent(runID string, eventID int64) (*StereoRecord, error) {
	query := `
		SELECT run_id, obs_id, event_id,
		       alt_rad, az_rad, core_x_m, core_y_m,
		       weight, num_tels, method, created_at_ns
		FROM stereo_params
		WHERE run_id = ? AND event_id = ?
	`

	var rec StereoRecord
	r := &rec.Result
	err := s.db.QueryRow(query, runID, eventID).Scan(
		&rec.RunID, &rec.ObsID, &rec.EventID,
		&r.Alt, &r.Az, &r.CoreX, &r.CoreY,
		&r.Weight, &r.NumTels, &r.Method, &rec.CreatedAtNs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stereo params: %w", err)
	}
	return &rec, nil
}

// CountByRun returns how many events were reconstructed in a run.
func (s *StereoStore) CountByRun(runID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM stereo_params WHERE run_id = ?", runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count stereo params: %w", err)
	}
	return n, nil
}

// ListByRun returns all reconstructions for a run in event order.
func (s *StereoStore) ListByRun(runID string) ([]StereoRecord, error) {
	query := `
		SELECT run_id, obs_id, event_id,
		       alt_rad, az_rad, core_x_m, core_y_m,
		       weight, num_tels, method, created_at_ns
		FROM stereo_params
		WHERE run_id = ?
		ORDER BY event_id
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("list stereo params: %w", err)
	}
	defer rows.Close()

	var recs []StereoRecord
	for rows.Next() {
		var rec StereoRecord
		r := &rec.Result
		if err := rows.Scan(
			&rec.RunID, &rec.ObsID, &rec.EventID,
			&r.Alt, &r.Az, &r.CoreX, &r.CoreY,
			&r.Weight, &r.NumTels, &r.Method, &rec.CreatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan stereo params: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

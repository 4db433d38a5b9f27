package sqlite

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/hillas"
)

// HillasRecord is one telescope's image parameterisation for one
// event. Timing and Leakage are nil when the corresponding computation
// was skipped or failed.
type HillasRecord struct {
	RunID       string
	ObsID       int64
	EventID     int64
	TelescopeID int
	Params      hillas.Parameters
	Timing      *hillas.TimingParameters
	Leakage     *hillas.Leakage
	CreatedAtNs int64
}

// HillasStore provides persistence for per-telescope image parameters.
type HillasStore struct {
	db *sql.DB
}

// NewHillasStore creates a new HillasStore.
func NewHillasStore(db *sql.DB) *HillasStore {
	return &HillasStore{db: db}
}

// Insert writes one record.
func (s *HillasStore) Insert(rec *HillasRecord) error {
	if rec.CreatedAtNs == 0 {
		rec.CreatedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO hillas_params (
			run_id, obs_id, event_id, telescope_id,
			intensity, x_m, y_m, length_m, width_m, psi_rad, r_m, phi_rad,
			skewness, kurtosis, num_pixels, num_islands,
			time_slope, time_intercept, time_deviation,
			leakage_pixels1, leakage_pixels2, leakage_intensity1, leakage_intensity2,
			created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var slope, intercept, deviation sql.NullFloat64
	if rec.Timing != nil {
		slope = nullFloat64(rec.Timing.Slope, true)
		intercept = nullFloat64(rec.Timing.Intercept, true)
		deviation = nullFloat64(rec.Timing.Deviation, true)
	}
	var lp1, lp2, li1, li2 sql.NullFloat64
	if rec.Leakage != nil {
		lp1 = nullFloat64(rec.Leakage.PixelsWidth1, true)
		lp2 = nullFloat64(rec.Leakage.PixelsWidth2, true)
		li1 = nullFloat64(rec.Leakage.IntensityWidth1, true)
		li2 = nullFloat64(rec.Leakage.IntensityWidth2, true)
	}

	p := rec.Params
	err := retryOnBusy(func() error {
		_, err := s.db.Exec(query,
			rec.RunID, rec.ObsID, rec.EventID, rec.TelescopeID,
			p.Intensity, p.X, p.Y, p.Length, p.Width, p.Psi, p.R, p.Phi,
			p.Skewness, p.Kurtosis, p.NumPixels, p.NumIslands,
			slope, intercept, deviation,
			lp1, lp2, li1, li2,
			rec.CreatedAtNs,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert hillas params: %w", err)
	}
	return nil
}

// GetEvent returns all telescope records for one event in a run,
// ordered by telescope ID.
func (s *HillasStore) GetEvent(runID string, eventID int64) ([]HillasRecord, error) {
	query := `
		SELECT run_id, obs_id, event_id, telescope_id,
		       intensity, x_m, y_m, length_m, width_m, psi_rad, r_m, phi_rad,
		       skewness, kurtosis, num_pixels, num_islands,
		       time_slope, time_intercept, time_deviation,
		       leakage_pixels1, leakage_pixels2, leakage_intensity1, leakage_intensity2,
		       created_at_ns
		FROM hillas_params
		WHERE run_id = ? AND event_id = ?
		ORDER BY telescope_id
	`

	rows, err := s.db.Query(query, runID, eventID)
	if err != nil {
		return nil, fmt.Errorf("get hillas params: %w", err)
	}
	defer rows.Close()

	var recs []HillasRecord
	for rows.Next() {
		rec, err := scanHillas(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// CountByRun returns how many telescope images were parameterised in a
// run.
func (s *HillasStore) CountByRun(runID string) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM hillas_params WHERE run_id = ?", runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count hillas params: %w", err)
	}
	return n, nil
}

func scanHillas(rows *sql.Rows) (*HillasRecord, error) {
	var rec HillasRecord
	var slope, intercept, deviation sql.NullFloat64
	var lp1, lp2, li1, li2 sql.NullFloat64
	// NaN doubles come back as NULL from sqlite.
	var skew, kurt sql.NullFloat64

	p := &rec.Params
	err := rows.Scan(
		&rec.RunID, &rec.ObsID, &rec.EventID, &rec.TelescopeID,
		&p.Intensity, &p.X, &p.Y, &p.Length, &p.Width, &p.Psi, &p.R, &p.Phi,
		&skew, &kurt, &p.NumPixels, &p.NumIslands,
		&slope, &intercept, &deviation,
		&lp1, &lp2, &li1, &li2,
		&rec.CreatedAtNs,
	)
	if err != nil {
		return nil, fmt.Errorf("scan hillas params: %w", err)
	}

	p.Skewness = math.NaN()
	p.Kurtosis = math.NaN()
	if skew.Valid {
		p.Skewness = skew.Float64
	}
	if kurt.Valid {
		p.Kurtosis = kurt.Float64
	}

	if slope.Valid {
		rec.Timing = &hillas.TimingParameters{
			Slope:     slope.Float64,
			Intercept: intercept.Float64,
			Deviation: deviation.Float64,
		}
	}
	if lp1.Valid {
		rec.Leakage = &hillas.Leakage{
			PixelsWidth1:    lp1.Float64,
			PixelsWidth2:    lp2.Float64,
			IntensityWidth1: li1.Float64,
			IntensityWidth2: li2.Float64,
		}
	}
	return &rec, nil
}

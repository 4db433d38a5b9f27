package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultConfigPath is the path to the canonical analysis defaults
// file. This is the single source of truth for all default analysis
// values.
const DefaultConfigPath = "config/analysis.defaults.json"

// CleaningConfig holds per-telescope image cleaning parameters. All
// fields are pointers so a partial JSON file only overrides what it
// names; the Get* methods supply the MAGIC defaults.
type CleaningConfig struct {
	PictureThreshold    *float64 `json:"picture_threshold,omitempty"`
	BoundaryThreshold   *float64 `json:"boundary_threshold,omitempty"`
	MaxTimeOffset       *float64 `json:"max_time_offset,omitempty"`
	MaxTimeDifference   *float64 `json:"max_time_difference,omitempty"`
	UseTime             *bool    `json:"use_time,omitempty"`
	UseSumTimeReference *bool    `json:"use_sum,omitempty"`
	FindHotPixels       *bool    `json:"find_hotpixels,omitempty"`
	HotPixelFactor      *float64 `json:"hotpixel_factor,omitempty"`
}

// TelescopeConfig describes one telescope: its camera definition file,
// ground position, and cleaning overrides.
type TelescopeConfig struct {
	CameraFile *string         `json:"camera_file,omitempty"`
	PositionX  *float64        `json:"position_x_m,omitempty"`
	PositionY  *float64        `json:"position_y_m,omitempty"`
	PositionZ  *float64        `json:"position_z_m,omitempty"`
	Cleaning   *CleaningConfig `json:"cleaning,omitempty"`
}

// AnalysisConfig is the root configuration for an analysis run. The
// telescopes map is keyed by decimal telescope ID.
type AnalysisConfig struct {
	StereoMethod          *string                     `json:"stereo_method,omitempty"`
	PedestalLevel         *float64                    `json:"pedestal_level,omitempty"`
	PedestalLevelVariance *float64                    `json:"pedestal_level_variance,omitempty"`
	Cleaning              *CleaningConfig             `json:"cleaning,omitempty"`
	Telescopes            map[string]*TelescopeConfig `json:"telescopes,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }

// EmptyAnalysisConfig returns an AnalysisConfig with all fields set to
// nil. Use LoadAnalysisConfig to load actual values from a file.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config populated with the standard
// MAGIC two-threshold values.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		StereoMethod:          ptrString("intersection"),
		PedestalLevel:         ptrFloat64(400),
		PedestalLevelVariance: ptrFloat64(4.5),
		Cleaning: &CleaningConfig{
			PictureThreshold:    ptrFloat64(6),
			BoundaryThreshold:   ptrFloat64(3.5),
			MaxTimeOffset:       ptrFloat64(4.5 * 1.64),
			MaxTimeDifference:   ptrFloat64(1.5 * 1.64),
			UseTime:             ptrBool(true),
			UseSumTimeReference: ptrBool(true),
			FindHotPixels:       ptrBool(true),
			HotPixelFactor:      ptrFloat64(10),
		},
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is
// under the max file size. Fields omitted from the JSON file fall back
// to defaults through the Get* methods, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyAnalysisConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical analysis defaults from
// DefaultConfigPath. It searches for the file in the current directory
// and common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *AnalysisConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadAnalysisConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.StereoMethod != nil {
		switch *c.StereoMethod {
		case "intersection", "planefit":
		default:
			return fmt.Errorf("stereo_method must be \"intersection\" or \"planefit\", got %q", *c.StereoMethod)
		}
	}
	if c.PedestalLevel != nil && *c.PedestalLevel <= 0 {
		return fmt.Errorf("pedestal_level must be positive, got %f", *c.PedestalLevel)
	}
	if c.PedestalLevelVariance != nil && *c.PedestalLevelVariance <= 0 {
		return fmt.Errorf("pedestal_level_variance must be positive, got %f", *c.PedestalLevelVariance)
	}
	if err := c.Cleaning.validate("cleaning"); err != nil {
		return err
	}
	for id, tc := range c.Telescopes {
		if _, err := strconv.Atoi(id); err != nil {
			return fmt.Errorf("telescope key %q is not a decimal ID", id)
		}
		if tc == nil {
			continue
		}
		if err := tc.Cleaning.validate("telescopes." + id + ".cleaning"); err != nil {
			return err
		}
	}
	return nil
}

func (c *CleaningConfig) validate(where string) error {
	if c == nil {
		return nil
	}
	if c.PictureThreshold != nil && *c.PictureThreshold < 0 {
		return fmt.Errorf("%s.picture_threshold must be non-negative, got %f", where, *c.PictureThreshold)
	}
	if c.BoundaryThreshold != nil && *c.BoundaryThreshold < 0 {
		return fmt.Errorf("%s.boundary_threshold must be non-negative, got %f", where, *c.BoundaryThreshold)
	}
	if c.PictureThreshold != nil && c.BoundaryThreshold != nil && *c.BoundaryThreshold > *c.PictureThreshold {
		return fmt.Errorf("%s: boundary_threshold %f exceeds picture_threshold %f", where, *c.BoundaryThreshold, *c.PictureThreshold)
	}
	if c.HotPixelFactor != nil && *c.HotPixelFactor <= 0 {
		return fmt.Errorf("%s.hotpixel_factor must be positive, got %f", where, *c.HotPixelFactor)
	}
	return nil
}

// Telescope returns the per-telescope section for the given ID, or nil
// if none is configured.
func (c *AnalysisConfig) Telescope(id int) *TelescopeConfig {
	if c.Telescopes == nil {
		return nil
	}
	return c.Telescopes[strconv.Itoa(id)]
}

// CleaningFor resolves the effective cleaning section for a telescope:
// the per-telescope override if present, else the run-level section.
func (c *AnalysisConfig) CleaningFor(id int) *CleaningConfig {
	if tc := c.Telescope(id); tc != nil && tc.Cleaning != nil {
		return tc.Cleaning
	}
	return c.Cleaning
}

// GetStereoMethod returns the stereo_method value or the default.
func (c *AnalysisConfig) GetStereoMethod() string {
	if c.StereoMethod == nil {
		return "intersection"
	}
	return *c.StereoMethod
}

// GetPedestalLevel returns the pedestal_level value or the default.
func (c *AnalysisConfig) GetPedestalLevel() float64 {
	if c.PedestalLevel == nil {
		return 400
	}
	return *c.PedestalLevel
}

// GetPedestalLevelVariance returns the pedestal_level_variance value
// or the default.
func (c *AnalysisConfig) GetPedestalLevelVariance() float64 {
	if c.PedestalLevelVariance == nil {
		return 4.5
	}
	return *c.PedestalLevelVariance
}

// GetPictureThreshold returns the picture_threshold value or the default.
func (c *CleaningConfig) GetPictureThreshold() float64 {
	if c == nil || c.PictureThreshold == nil {
		return 6
	}
	return *c.PictureThreshold
}

// GetBoundaryThreshold returns the boundary_threshold value or the default.
func (c *CleaningConfig) GetBoundaryThreshold() float64 {
	if c == nil || c.BoundaryThreshold == nil {
		return 3.5
	}
	return *c.BoundaryThreshold
}

// GetMaxTimeOffset returns the max_time_offset value or the default.
func (c *CleaningConfig) GetMaxTimeOffset() float64 {
	if c == nil || c.MaxTimeOffset == nil {
		return 4.5 * 1.64
	}
	return *c.MaxTimeOffset
}

// GetMaxTimeDifference returns the max_time_difference value or the default.
func (c *CleaningConfig) GetMaxTimeDifference() float64 {
	if c == nil || c.MaxTimeDifference == nil {
		return 1.5 * 1.64
	}
	return *c.MaxTimeDifference
}

// GetUseTime returns the use_time value or the default.
func (c *CleaningConfig) GetUseTime() bool {
	if c == nil || c.UseTime == nil {
		return true
	}
	return *c.UseTime
}

// GetUseSumTimeReference returns the use_sum value or the default.
func (c *CleaningConfig) GetUseSumTimeReference() bool {
	if c == nil || c.UseSumTimeReference == nil {
		return true
	}
	return *c.UseSumTimeReference
}

// GetFindHotPixels returns the find_hotpixels value or the default.
func (c *CleaningConfig) GetFindHotPixels() bool {
	if c == nil || c.FindHotPixels == nil {
		return true
	}
	return *c.FindHotPixels
}

// GetHotPixelFactor returns the hotpixel_factor value or the default.
func (c *CleaningConfig) GetHotPixelFactor() float64 {
	if c == nil || c.HotPixelFactor == nil {
		return 10
	}
	return *c.HotPixelFactor
}

package camera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// geometryFile is the on-disk JSON schema for measured camera geometries.
type geometryFile struct {
	Name        string    `json:"name"`
	FocalLength float64   `json:"focal_length_m"`
	PixX        []float64 `json:"pix_x_m"`
	PixY        []float64 `json:"pix_y_m"`
}

// LoadFile reads a camera geometry from a JSON file. The same validation
// as New applies; a malformed file is fatal to startup, never mid-run.
func LoadFile(path string) (*Geometry, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("geometry file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read geometry file: %w", err)
	}

	var gf geometryFile
	if err := json.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("parse geometry file %s: %w", cleanPath, err)
	}

	return New(gf.Name, gf.PixX, gf.PixY, gf.FocalLength)
}

// WriteFile saves a geometry in the JSON schema understood by LoadFile.
func WriteFile(path string, g *Geometry) error {
	gf := geometryFile{
		Name:        g.Name,
		FocalLength: g.FocalLength,
		PixX:        g.pixX,
		PixY:        g.pixY,
	}
	data, err := json.MarshalIndent(&gf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write geometry file: %w", err)
	}
	return nil
}

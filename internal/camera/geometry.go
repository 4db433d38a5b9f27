// Package camera describes the pixel topology of an imaging atmospheric
// Cherenkov telescope camera: pixel positions in the camera plane and the
// undirected neighbor graph over pixel indices.
//
// A Geometry is built once at startup from static instrument data and is
// immutable afterwards, so it can be shared by concurrent workers without
// locking.
package camera

import (
	"fmt"
	"math"
)

// neighborRadiusFactor scales the minimum pixel spacing to decide which
// pixels count as geometric neighbors. 1.4 accepts the six direct
// neighbors of a hexagonal pixel while rejecting the second ring.
const neighborRadiusFactor = 1.4

// MAGICAberration is the optical aberration factor of the MAGIC reflector.
// Pixel positions read from instrument data are divided by it before moment
// computation.
const MAGICAberration = 1.0713

// Geometry is the immutable per-telescope-type pixel topology.
type Geometry struct {
	Name        string
	FocalLength float64 // metres; converts camera-plane metres to angles

	pixX, pixY []float64
	neighbors  [][]int

	// borderMask[0] marks the outermost pixel ring, borderMask[1] the
	// outermost two rings. Used by leakage computation.
	borderMask [2][]bool
}

// New builds a Geometry from pixel positions (metres in the camera plane).
// The neighbor graph is derived from positions: two pixels are neighbors
// when their separation is below 1.4x the minimum pixel spacing. The
// resulting adjacency is symmetric and irreflexive by construction.
//
// Malformed geometry (mismatched lengths, no pixels, non-positive focal
// length) is an operator error and is rejected here, at startup.
func New(name string, pixX, pixY []float64, focalLength float64) (*Geometry, error) {
	if len(pixX) == 0 {
		return nil, fmt.Errorf("camera %q has no pixels", name)
	}
	if len(pixX) != len(pixY) {
		return nil, fmt.Errorf("camera %q pixel coordinate lengths differ: %d vs %d", name, len(pixX), len(pixY))
	}
	if focalLength <= 0 || math.IsNaN(focalLength) {
		return nil, fmt.Errorf("camera %q focal length must be positive, got %v", name, focalLength)
	}
	for i := range pixX {
		if math.IsNaN(pixX[i]) || math.IsNaN(pixY[i]) || math.IsInf(pixX[i], 0) || math.IsInf(pixY[i], 0) {
			return nil, fmt.Errorf("camera %q pixel %d has non-finite position", name, i)
		}
	}

	g := &Geometry{
		Name:        name,
		FocalLength: focalLength,
		pixX:        append([]float64(nil), pixX...),
		pixY:        append([]float64(nil), pixY...),
	}
	g.buildNeighbors()
	g.buildBorderMasks()
	return g, nil
}

// Hexagonal generates a regular hexagonal pixel grid with nRings rings
// around a central pixel (3n(n+1)+1 pixels total). Used for synthetic
// cameras in tests and tools; real cameras load measured positions.
func Hexagonal(name string, nRings int, spacing, focalLength float64) (*Geometry, error) {
	if nRings < 0 {
		return nil, fmt.Errorf("camera %q needs nRings >= 0, got %d", name, nRings)
	}
	if spacing <= 0 {
		return nil, fmt.Errorf("camera %q needs positive pixel spacing, got %v", name, spacing)
	}

	var xs, ys []float64
	for q := -nRings; q <= nRings; q++ {
		for r := -nRings; r <= nRings; r++ {
			if abs(q+r) > nRings {
				continue
			}
			xs = append(xs, spacing*(float64(q)+float64(r)/2))
			ys = append(ys, spacing*math.Sqrt(3)/2*float64(r))
		}
	}
	return New(name, xs, ys, focalLength)
}

// NumPixels returns the pixel count N.
func (g *Geometry) NumPixels() int { return len(g.pixX) }

// PixelPosition returns the camera-plane position of a pixel in metres.
func (g *Geometry) PixelPosition(pix int) (x, y float64) {
	return g.pixX[pix], g.pixY[pix]
}

// Neighbors returns the pixel indices adjacent to pix. The returned slice
// is shared and must not be modified.
func (g *Geometry) Neighbors(pix int) []int { return g.neighbors[pix] }

// BorderMask returns the mask of pixels within `width` rings of the camera
// edge. Only widths 1 and 2 are defined. The returned slice is shared and
// must not be modified.
func (g *Geometry) BorderMask(width int) []bool {
	if width < 1 || width > 2 {
		return nil
	}
	return g.borderMask[width-1]
}

// Scale returns a copy of the geometry with all pixel positions scaled by
// a constant factor. Used to correct for optical aberration before moment
// computation; the neighbor graph is unchanged by a uniform scaling so it
// is carried over as-is.
func (g *Geometry) Scale(factor float64) (*Geometry, error) {
	if factor <= 0 || math.IsNaN(factor) {
		return nil, fmt.Errorf("camera %q scale factor must be positive, got %v", g.Name, factor)
	}
	scaled := &Geometry{
		Name:        g.Name,
		FocalLength: g.FocalLength,
		pixX:        make([]float64, len(g.pixX)),
		pixY:        make([]float64, len(g.pixY)),
		neighbors:   g.neighbors,
		borderMask:  g.borderMask,
	}
	for i := range g.pixX {
		scaled.pixX[i] = factor * g.pixX[i]
		scaled.pixY[i] = factor * g.pixY[i]
	}
	return scaled, nil
}

// AngularOffset converts a pixel's camera-plane position to small-angle
// offsets (radians) from the telescope's optical axis.
func (g *Geometry) AngularOffset(pix int) (dx, dy float64) {
	return g.pixX[pix] / g.FocalLength, g.pixY[pix] / g.FocalLength
}

func (g *Geometry) buildNeighbors() {
	n := len(g.pixX)
	g.neighbors = make([][]int, n)
	if n == 1 {
		return
	}

	// Minimum pairwise spacing sets the neighbor radius. O(N^2) over ~1k
	// pixels, runs once at startup.
	minSpacing := math.Inf(1)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(g.pixX[i]-g.pixX[j], g.pixY[i]-g.pixY[j])
			if d > 0 && d < minSpacing {
				minSpacing = d
			}
		}
	}
	if math.IsInf(minSpacing, 1) {
		return // all pixels coincident; leave graph empty
	}

	radius := neighborRadiusFactor * minSpacing
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := math.Hypot(g.pixX[i]-g.pixX[j], g.pixY[i]-g.pixY[j])
			if d <= radius {
				g.neighbors[i] = append(g.neighbors[i], j)
				g.neighbors[j] = append(g.neighbors[j], i)
			}
		}
	}
}

func (g *Geometry) buildBorderMasks() {
	n := len(g.pixX)

	// Edge pixels have fewer neighbors than the interior maximum.
	maxNeighbors := 0
	for _, nb := range g.neighbors {
		if len(nb) > maxNeighbors {
			maxNeighbors = len(nb)
		}
	}

	ring1 := make([]bool, n)
	for i, nb := range g.neighbors {
		if len(nb) < maxNeighbors {
			ring1[i] = true
		}
	}

	ring2 := make([]bool, n)
	copy(ring2, ring1)
	for i, isEdge := range ring1 {
		if !isEdge {
			continue
		}
		for _, nb := range g.neighbors[i] {
			ring2[nb] = true
		}
	}

	g.borderMask[0] = ring1
	g.borderMask[1] = ring2
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

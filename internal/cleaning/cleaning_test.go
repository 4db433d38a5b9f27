package cleaning

import (
	"math"
	"testing"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/testutil"
)

func testGeometry(t *testing.T, rings int) *camera.Geometry {
	t.Helper()
	g, err := camera.Hexagonal("test", rings, 0.03, 17.0)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func testConfig() Config {
	return Config{
		PictureThreshold:    6,
		BoundaryThreshold:   3.5,
		MaxTimeOffset:       4.5 * 1.64,
		MaxTimeDifference:   1.5 * 1.64,
		UseTime:             true,
		UseSumTimeReference: true,
	}
}

func newTestEngine(t *testing.T, geom *camera.Geometry, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(geom, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestAllBelowBoundaryYieldsEmptyMask(t *testing.T) {
	geom := testGeometry(t, 3)
	e := newTestEngine(t, geom, testConfig())

	image := testutil.UniformSlice(geom.NumPixels(), 3.0) // below boundary 3.5
	times := testutil.UniformSlice(geom.NumPixels(), 10.0)

	mask := e.Clean(image, times, nil)
	if got := testutil.CountTrue(mask); got != 0 {
		t.Errorf("selected %d pixels, want 0", got)
	}
}

func TestUnsuitablePixelsNeverSelected(t *testing.T) {
	geom := testGeometry(t, 3)

	for _, useTime := range []bool{false, true} {
		cfg := testConfig()
		cfg.UseTime = useTime
		e := newTestEngine(t, geom, cfg)

		image := testutil.UniformSlice(geom.NumPixels(), 50.0)
		times := testutil.UniformSlice(geom.NumPixels(), 10.0)
		unsuitable := make([]bool, geom.NumPixels())
		unsuitable[0] = true
		unsuitable[7] = true

		mask := e.Clean(image, times, unsuitable)
		if mask[0] || mask[7] {
			t.Errorf("useTime=%v: unsuitable pixel selected", useTime)
		}
	}
}

func TestThresholdMonotonicity(t *testing.T) {
	geom := testGeometry(t, 4)
	n := geom.NumPixels()

	// Gradient image: charge falls off with pixel index.
	image := make([]float64, n)
	times := make([]float64, n)
	for i := range image {
		image[i] = 40.0 * float64(n-i) / float64(n)
		times[i] = 10.0
	}

	base := testConfig()
	baseline := testutil.CountTrue(newTestEngine(t, geom, base).Clean(image, times, nil))

	raisedPicture := base
	raisedPicture.PictureThreshold = 12
	if got := testutil.CountTrue(newTestEngine(t, geom, raisedPicture).Clean(image, times, nil)); got > baseline {
		t.Errorf("raising picture threshold grew selection: %d > %d", got, baseline)
	}

	raisedBoundary := base
	raisedBoundary.BoundaryThreshold = 5.5
	if got := testutil.CountTrue(newTestEngine(t, geom, raisedBoundary).Clean(image, times, nil)); got > baseline {
		t.Errorf("raising boundary threshold grew selection: %d > %d", got, baseline)
	}
}

func TestCleanIsIdempotentAtFixedPoint(t *testing.T) {
	geom := testGeometry(t, 4)
	n := geom.NumPixels()
	e := newTestEngine(t, geom, testConfig())

	image := make([]float64, n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		image[i] = 4.0 + float64(i%3)*3.0
		times[i] = 10.0 + 0.1*float64(i%5)
	}

	first := e.Clean(image, times, nil)

	// Zero everything outside the mask and re-run: the fixed point must
	// reproduce itself.
	imageClean := make([]float64, n)
	for i, sel := range first {
		if sel {
			imageClean[i] = image[i]
		}
	}
	second := e.Clean(imageClean, times, nil)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("mask not stable at pixel %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestSingleIslandScenario(t *testing.T) {
	// A 20-pixel blob with charges well above picture threshold and
	// uniform times selects all 20 pixels and counts one island,
	// independent of the time layer.
	geom := testGeometry(t, 4)
	n := geom.NumPixels()

	blob := connectedPatch(geom, 0, 20)
	if len(blob) != 20 {
		t.Fatalf("patch has %d pixels, want 20", len(blob))
	}

	image := make([]float64, n)
	times := testutil.UniformSlice(n, 12.0)
	for _, p := range blob {
		image[p] = 30.0
	}

	for _, useTime := range []bool{false, true} {
		cfg := testConfig()
		cfg.UseTime = useTime
		e := newTestEngine(t, geom, cfg)

		mask := e.Clean(image, times, nil)
		if got := testutil.CountTrue(mask); got != 20 {
			t.Errorf("useTime=%v: selected %d pixels, want 20", useTime, got)
		}
		for _, p := range blob {
			if !mask[p] {
				t.Errorf("useTime=%v: blob pixel %d not selected", useTime, p)
			}
		}
		if islands := CountIslands(geom, mask); islands != 1 {
			t.Errorf("useTime=%v: %d islands, want 1", useTime, islands)
		}
	}
}

func TestBoundaryRecruitsTransitively(t *testing.T) {
	// One core pixel with a chain of boundary-level neighbors: boundary
	// pixels must recruit further boundary pixels through the graph, not
	// only direct core neighbors.
	geom := testGeometry(t, 4)
	n := geom.NumPixels()

	chain := connectedPath(geom, 0, 4)
	image := make([]float64, n)
	times := testutil.UniformSlice(n, 5.0)
	image[chain[0]] = 10.0 // core
	for _, p := range chain[1:] {
		image[p] = 4.0 // boundary level, below picture
	}

	e := newTestEngine(t, geom, testConfig())
	mask := e.Clean(image, times, nil)
	for i, p := range chain {
		if !mask[p] {
			t.Fatalf("chain pixel %d (index %d) not selected", p, i)
		}
	}
}

func TestCoreTimeOutlierRejected(t *testing.T) {
	geom := testGeometry(t, 4)
	n := geom.NumPixels()

	blob := connectedPatch(geom, 0, 6)
	image := make([]float64, n)
	times := testutil.UniformSlice(n, 10.0)
	for _, p := range blob {
		image[p] = 30.0
	}
	// One core pixel out of time: far enough to fail the offset window,
	// close enough that it does not drag the reference away from the rest.
	late := blob[len(blob)-1]
	times[late] = 10.0 + 20.0

	cfg := testConfig()
	e := newTestEngine(t, geom, cfg)
	mask := e.Clean(image, times, nil)
	if mask[late] {
		t.Error("time-outlier core pixel survived cleaning")
	}
	for _, p := range blob[:len(blob)-1] {
		if !mask[p] {
			t.Errorf("in-time core pixel %d rejected", p)
		}
	}

	// With the time layer off the same pixel survives.
	cfg.UseTime = false
	e = newTestEngine(t, geom, cfg)
	if mask := e.Clean(image, times, nil); !mask[late] {
		t.Error("pixel rejected although time filtering is disabled")
	}
}

func TestBoundaryTimeCoincidence(t *testing.T) {
	geom := testGeometry(t, 4)
	n := geom.NumPixels()

	core := 0
	nbs := geom.Neighbors(core)
	if len(nbs) < 2 {
		t.Fatal("need at least two neighbors")
	}

	image := make([]float64, n)
	times := testutil.UniformSlice(n, 10.0)
	image[core] = 30.0
	image[nbs[0]] = 4.0
	image[nbs[1]] = 4.0
	times[nbs[1]] = 10.0 + 100.0 // far out of time

	e := newTestEngine(t, geom, testConfig())
	mask := e.Clean(image, times, nil)
	if !mask[nbs[0]] {
		t.Error("in-time boundary pixel not selected")
	}
	if mask[nbs[1]] {
		t.Error("out-of-time boundary pixel selected")
	}
}

func TestNaNChargeExcluded(t *testing.T) {
	geom := testGeometry(t, 3)
	n := geom.NumPixels()

	image := testutil.UniformSlice(n, 30.0)
	times := testutil.UniformSlice(n, 10.0)
	image[0] = math.NaN()
	image[1] = math.Inf(1) // passes thresholds; must propagate, not panic

	e := newTestEngine(t, geom, testConfig())
	mask := e.Clean(image, times, nil)
	if mask[0] {
		t.Error("NaN-charge pixel selected")
	}
}

func TestHotPixelExcluded(t *testing.T) {
	geom := testGeometry(t, 4)
	n := geom.NumPixels()

	// Isolated spike on a dark camera vs a genuine blob elsewhere.
	image := make([]float64, n)
	times := testutil.UniformSlice(n, 10.0)
	spike := 0
	image[spike] = 500.0
	blob := connectedPatch(geom, n-1, 5)
	for _, p := range blob {
		image[p] = 30.0
	}

	cfg := testConfig()
	cfg.FindHotPixels = true
	e := newTestEngine(t, geom, cfg)
	mask := e.Clean(image, times, nil)
	if mask[spike] {
		t.Error("isolated hot pixel selected")
	}
	for _, p := range blob {
		if !mask[p] {
			t.Errorf("genuine blob pixel %d lost to hot-pixel exclusion", p)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"negative picture", func(c *Config) { c.PictureThreshold = -1 }},
		{"negative boundary", func(c *Config) { c.BoundaryThreshold = -1 }},
		{"inverted thresholds", func(c *Config) { c.BoundaryThreshold = c.PictureThreshold + 1 }},
		{"negative time offset", func(c *Config) { c.MaxTimeOffset = -1 }},
		{"negative time difference", func(c *Config) { c.MaxTimeDifference = -1 }},
		{"negative hot factor", func(c *Config) { c.HotPixelFactor = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mut(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	// Time windows are ignored entirely when UseTime is off.
	cfg := testConfig()
	cfg.UseTime = false
	cfg.MaxTimeOffset = -1
	if err := cfg.Validate(); err != nil {
		t.Errorf("time windows should be ignored when UseTime is off: %v", err)
	}
}

// connectedPatch grows a connected set of `size` pixels from a seed by
// breadth-first traversal of the adjacency graph.
func connectedPatch(geom *camera.Geometry, seed, size int) []int {
	picked := map[int]bool{seed: true}
	out := []int{seed}
	for i := 0; i < len(out) && len(out) < size; i++ {
		for _, nb := range geom.Neighbors(out[i]) {
			if !picked[nb] {
				picked[nb] = true
				out = append(out, nb)
				if len(out) == size {
					break
				}
			}
		}
	}
	return out
}

// connectedPath walks a simple path of `size` pixels from a seed.
func connectedPath(geom *camera.Geometry, seed, size int) []int {
	out := []int{seed}
	used := map[int]bool{seed: true}
	for len(out) < size {
		last := out[len(out)-1]
		advanced := false
		for _, nb := range geom.Neighbors(last) {
			if !used[nb] {
				out = append(out, nb)
				used[nb] = true
				advanced = true
				break
			}
		}
		if !advanced {
			break
		}
	}
	return out
}

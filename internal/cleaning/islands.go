package cleaning

import "github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"

// IslandLabels assigns a 1-based island label to every selected pixel by
// flood fill over the adjacency graph restricted to the mask. Unselected
// pixels keep label 0. Returns the labels and the island count.
func IslandLabels(geom *camera.Geometry, mask []bool) ([]int, int) {
	n := geom.NumPixels()
	labels := make([]int, n)
	if len(mask) != n {
		return labels, 0
	}

	count := 0
	var frontier []int
	for i := 0; i < n; i++ {
		if !mask[i] || labels[i] != 0 {
			continue
		}
		count++
		labels[i] = count
		frontier = append(frontier[:0], i)
		for len(frontier) > 0 {
			p := frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
			for _, nb := range geom.Neighbors(p) {
				if mask[nb] && labels[nb] == 0 {
					labels[nb] = count
					frontier = append(frontier, nb)
				}
			}
		}
	}
	return labels, count
}

// CountIslands counts the disjoint connected components among selected
// pixels. A single shower ideally yields one island; more indicates noise
// contamination or a split image. The count is advisory metadata for the
// downstream ellipse record — rejection by island count is the
// orchestrator's policy, not this package's.
func CountIslands(geom *camera.Geometry, mask []bool) int {
	_, count := IslandLabels(geom, mask)
	return count
}

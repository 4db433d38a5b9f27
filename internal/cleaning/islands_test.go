package cleaning

import (
	"testing"
)

func TestCountIslandsEmptyMask(t *testing.T) {
	geom := testGeometry(t, 3)
	mask := make([]bool, geom.NumPixels())
	if got := CountIslands(geom, mask); got != 0 {
		t.Errorf("CountIslands = %d, want 0", got)
	}
}

func TestCountIslandsSingleBlob(t *testing.T) {
	geom := testGeometry(t, 3)
	mask := make([]bool, geom.NumPixels())
	for _, p := range connectedPatch(geom, 0, 7) {
		mask[p] = true
	}
	if got := CountIslands(geom, mask); got != 1 {
		t.Errorf("CountIslands = %d, want 1", got)
	}
}

func TestCountIslandsTwoIsolatedPixels(t *testing.T) {
	geom := testGeometry(t, 3)
	n := geom.NumPixels()
	mask := make([]bool, n)

	// Pick two pixels that are not adjacent.
	a := 0
	b := -1
	for i := 1; i < n; i++ {
		adjacent := false
		for _, nb := range geom.Neighbors(a) {
			if nb == i {
				adjacent = true
				break
			}
		}
		if !adjacent {
			b = i
			break
		}
	}
	if b < 0 {
		t.Fatal("no non-adjacent pixel pair found")
	}

	mask[a] = true
	mask[b] = true
	if got := CountIslands(geom, mask); got != 2 {
		t.Errorf("CountIslands = %d, want 2", got)
	}
}

func TestIslandLabelsConsistent(t *testing.T) {
	geom := testGeometry(t, 4)
	n := geom.NumPixels()
	mask := make([]bool, n)

	blobA := connectedPatch(geom, 0, 5)
	blobB := connectedPatch(geom, n-1, 5)
	for _, p := range blobA {
		mask[p] = true
	}
	for _, p := range blobB {
		mask[p] = true
	}

	labels, count := IslandLabels(geom, mask)
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	// All pixels of one blob share a label; unselected pixels keep 0.
	for _, p := range blobA[1:] {
		if labels[p] != labels[blobA[0]] {
			t.Errorf("blob A pixel %d has label %d, want %d", p, labels[p], labels[blobA[0]])
		}
	}
	for _, p := range blobB[1:] {
		if labels[p] != labels[blobB[0]] {
			t.Errorf("blob B pixel %d has label %d, want %d", p, labels[p], labels[blobB[0]])
		}
	}
	if labels[blobA[0]] == labels[blobB[0]] {
		t.Error("disjoint blobs share a label")
	}
	for i, l := range labels {
		if !mask[i] && l != 0 {
			t.Errorf("unselected pixel %d labelled %d", i, l)
		}
	}
}

package testutil

import (
	"context"
	"fmt"

	"github.com/roach88/radcache/internal/volume"
)

// MemoryRegions is an in-memory extract.RegionSource keyed by
// (patient, nodule, annotation).
type MemoryRegions struct {
	regions map[string]*volume.Region
}

// NewMemoryRegions creates an empty region source.
func NewMemoryRegions() *MemoryRegions {
	return &MemoryRegions{regions: make(map[string]*volume.Region)}
}

func regionKey(patientID string, noduleID, annotationID int) string {
	return fmt.Sprintf("%s/%d/%d", patientID, noduleID, annotationID)
}

// Add registers a region.
func (m *MemoryRegions) Add(patientID string, noduleID, annotationID int, r *volume.Region) {
	m.regions[regionKey(patientID, noduleID, annotationID)] = r
}

// Region implements extract.RegionSource.
func (m *MemoryRegions) Region(_ context.Context, patientID string, noduleID, annotationID int) (*volume.Region, error) {
	r, ok := m.regions[regionKey(patientID, noduleID, annotationID)]
	if !ok {
		return nil, fmt.Errorf("no region for %s", regionKey(patientID, noduleID, annotationID))
	}
	return r, nil
}

// CubeRegion returns a size^3 signal ramp from lower to upper with a centred
// cubic mask of side size-2 (at least 1).
func CubeRegion(size int, lower, upper float64) *volume.Region {
	dims := [3]int{size, size, size}
	sig := volume.New(dims)
	n := len(sig.Data)
	for i := range sig.Data {
		if n > 1 {
			sig.Data[i] = lower + (upper-lower)*float64(i)/float64(n-1)
		} else {
			sig.Data[i] = lower
		}
	}

	m := volume.NewMask(dims)
	lo, hi := 1, size-1
	if size < 3 {
		lo, hi = 0, size
	}
	for z := lo; z < hi; z++ {
		for y := lo; y < hi; y++ {
			for x := lo; x < hi; x++ {
				m.Set(x, y, z)
			}
		}
	}
	return &volume.Region{Signal: sig, Mask: m, BBox: volume.BoxAt([3]int{}, dims)}
}

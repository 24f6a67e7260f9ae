package volume

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// DefaultConsensusLevel is the observer agreement fraction for consensus masks.
const DefaultConsensusLevel = 0.5

// PlacedMask is an observer mask positioned in scan coordinates.
type PlacedMask struct {
	Mask   *Mask
	Offset [3]int
}

// BBox returns the scan-space box covered by the mask grid.
func (p PlacedMask) BBox() BBox {
	return BoxAt(p.Offset, p.Mask.Dims)
}

// Consensus fuses observer masks by majority vote. A voxel is inside the
// result when at least level (0 < level <= 1) of the observers include it.
// The result covers the union of the observers' boxes.
func Consensus(masks []PlacedMask, level float64) (*Mask, BBox, error) {
	if len(masks) == 0 {
		return nil, BBox{}, fmt.Errorf("consensus: no masks")
	}
	if level <= 0 || level > 1 {
		return nil, BBox{}, fmt.Errorf("consensus: level %v not in (0, 1]", level)
	}

	box := masks[0].BBox()
	for _, pm := range masks[1:] {
		box = box.Union(pm.BBox())
	}
	dims := box.Size()

	// Translate each observer into the union frame.
	placed := make([]*roaring.Bitmap, len(masks))
	for i, pm := range masks {
		shift := [3]int{pm.Offset[0] - box.Min[0], pm.Offset[1] - box.Min[1], pm.Offset[2] - box.Min[2]}
		bm := roaring.New()
		it := pm.Mask.Bits.Iterator()
		for it.HasNext() {
			idx := int(it.Next())
			x := idx % pm.Mask.Dims[0]
			y := (idx / pm.Mask.Dims[0]) % pm.Mask.Dims[1]
			z := idx / (pm.Mask.Dims[0] * pm.Mask.Dims[1])
			bm.Add(uint32(index(dims, x+shift[0], y+shift[1], z+shift[2])))
		}
		placed[i] = bm
	}

	// atLeast[j] holds the voxels included by more than j observers seen so far.
	need := quorum(len(masks), level)
	atLeast := make([]*roaring.Bitmap, need)
	for i := range atLeast {
		atLeast[i] = roaring.New()
	}
	for _, bm := range placed {
		for j := need - 1; j > 0; j-- {
			atLeast[j].Or(roaring.And(atLeast[j-1], bm))
		}
		atLeast[0].Or(bm)
	}

	out := NewMask(dims)
	out.Bits = atLeast[need-1]
	return out, box, nil
}

// quorum is the smallest vote count k with k/n >= level.
func quorum(n int, level float64) int {
	for k := 1; k < n; k++ {
		if float64(k)/float64(n) >= level {
			return k
		}
	}
	return n
}

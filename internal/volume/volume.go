package volume

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Volume is a dense 3-D scalar field.
type Volume struct {
	Dims [3]int
	Data []float64
}

// New returns a zero-filled volume.
func New(dims [3]int) *Volume {
	return &Volume{Dims: dims, Data: make([]float64, dims[0]*dims[1]*dims[2])}
}

// Len returns the voxel count.
func (v *Volume) Len() int {
	return v.Dims[0] * v.Dims[1] * v.Dims[2]
}

func index(dims [3]int, x, y, z int) int {
	return x + dims[0]*(y+dims[1]*z)
}

// At returns the voxel at (x, y, z).
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[index(v.Dims, x, y, z)]
}

// Set assigns the voxel at (x, y, z).
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[index(v.Dims, x, y, z)] = value
}

// Crop copies the voxels inside b into a new volume of size b.Size().
func (v *Volume) Crop(b BBox) (*Volume, error) {
	if !b.Valid() || !b.Within(v.Dims) {
		return nil, fmt.Errorf("crop %v outside volume %v", b, v.Dims)
	}
	out := New(b.Size())
	for z := b.Min[2]; z < b.Max[2]; z++ {
		for y := b.Min[1]; y < b.Max[1]; y++ {
			src := index(v.Dims, b.Min[0], y, z)
			dst := index(out.Dims, 0, y-b.Min[1], z-b.Min[2])
			copy(out.Data[dst:dst+out.Dims[0]], v.Data[src:src+out.Dims[0]])
		}
	}
	return out, nil
}

// BBox is a half-open box [Min, Max) in voxel coordinates.
type BBox struct {
	Min [3]int `yaml:"min" json:"min"`
	Max [3]int `yaml:"max" json:"max"`
}

// BoxAt returns the box of the given size whose corner is at offset.
func BoxAt(offset, size [3]int) BBox {
	return BBox{
		Min: offset,
		Max: [3]int{offset[0] + size[0], offset[1] + size[1], offset[2] + size[2]},
	}
}

// Size returns the extent along each axis.
func (b BBox) Size() [3]int {
	return [3]int{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Valid reports whether the box is non-empty on every axis.
func (b BBox) Valid() bool {
	for i := 0; i < 3; i++ {
		if b.Min[i] < 0 || b.Max[i] <= b.Min[i] {
			return false
		}
	}
	return true
}

// Within reports whether b fits inside a volume of the given dims.
func (b BBox) Within(dims [3]int) bool {
	for i := 0; i < 3; i++ {
		if b.Max[i] > dims[i] {
			return false
		}
	}
	return true
}

// Union returns the smallest box containing both boxes.
func (b BBox) Union(o BBox) BBox {
	u := b
	for i := 0; i < 3; i++ {
		u.Min[i] = min(u.Min[i], o.Min[i])
		u.Max[i] = max(u.Max[i], o.Max[i])
	}
	return u
}

// Mask is a binary delineation over a grid of Dims voxels.
type Mask struct {
	Dims [3]int
	Bits *roaring.Bitmap
}

// NewMask returns an empty mask.
func NewMask(dims [3]int) *Mask {
	return &Mask{Dims: dims, Bits: roaring.New()}
}

// Len returns the number of grid voxels (set or not).
func (m *Mask) Len() int {
	return m.Dims[0] * m.Dims[1] * m.Dims[2]
}

// Set marks (x, y, z) as inside the delineation.
func (m *Mask) Set(x, y, z int) {
	m.Bits.Add(uint32(index(m.Dims, x, y, z)))
}

// Has reports whether (x, y, z) is inside the delineation.
func (m *Mask) Has(x, y, z int) bool {
	return m.Bits.Contains(uint32(index(m.Dims, x, y, z)))
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	return int(m.Bits.GetCardinality())
}

// Bytes returns the mask as one byte per voxel, 1 inside and 0 outside.
func (m *Mask) Bytes() []byte {
	out := make([]byte, m.Len())
	it := m.Bits.Iterator()
	for it.HasNext() {
		out[it.Next()] = 1
	}
	return out
}

// MaskFromVolume sets every voxel whose value is non-zero.
func MaskFromVolume(v *Volume) *Mask {
	m := NewMask(v.Dims)
	for i, value := range v.Data {
		if value != 0 {
			m.Bits.Add(uint32(i))
		}
	}
	return m
}

// Region is the input of one extraction: a signal crop and the mask over
// the same grid, with the crop's position in the scan.
type Region struct {
	Signal *Volume
	Mask   *Mask
	BBox   BBox
}

// Validate checks that signal and mask share a grid and the mask is not empty.
func (r *Region) Validate() error {
	if r.Signal == nil || r.Mask == nil {
		return fmt.Errorf("region: missing signal or mask")
	}
	if r.Signal.Dims != r.Mask.Dims {
		return fmt.Errorf("region: signal dims %v != mask dims %v", r.Signal.Dims, r.Mask.Dims)
	}
	if r.Mask.Count() == 0 {
		return fmt.Errorf("region: empty mask")
	}
	return nil
}

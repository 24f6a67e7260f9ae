// Package volume holds the 3-D signal and mask types handed to the
// extraction engine, the windowing/quantization transform, majority-vote
// consensus of observer masks, and an NRRD codec for the engine's working
// files.
//
// Voxels are stored x-fastest: index = x + nx*(y + ny*z). Masks are sparse
// and kept as roaring bitmaps of set voxel indices.
package volume

package volume

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Window is the intensity range mapped onto [0, 1] before quantization.
type Window struct {
	Lower float64 `yaml:"lower" json:"lower"`
	Upper float64 `yaml:"upper" json:"upper"`
}

// DefaultWindow is the lung window in Hounsfield units.
var DefaultWindow = Window{Lower: -1350, Upper: 150}

// Width returns Upper - Lower.
func (w Window) Width() float64 {
	return w.Upper - w.Lower
}

// Validate reports whether the window is a finite, non-empty range.
func (w Window) Validate() error {
	if math.IsNaN(w.Lower) || math.IsNaN(w.Upper) || math.IsInf(w.Lower, 0) || math.IsInf(w.Upper, 0) {
		return fmt.Errorf("window %v: bounds must be finite", w)
	}
	if w.Upper <= w.Lower {
		return fmt.Errorf("window %v: upper must exceed lower", w)
	}
	return nil
}

// BinWidth returns the engine bin width matching numLevels quantization.
func (w Window) BinWidth(numLevels int) float64 {
	return w.Width() / float64(numLevels)
}

// Preprocess returns a transformed copy of v:
//
//  1. if noiseScale > 0, Gaussian noise with standard deviation
//     noiseScale/100 is added in standardized space (zero mean, unit
//     variance) and the result mapped back to original units
//  2. values are normalized to [0, 1] through the window and clamped
//  3. values are rounded to numLevels evenly spaced levels
//  4. values are mapped back to window units
//
// The result is deterministic when noiseScale is 0; rng is only used
// otherwise and may then not be nil.
func Preprocess(v *Volume, w Window, numLevels int, noiseScale float64, rng *rand.Rand) (*Volume, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if numLevels <= 1 {
		return nil, fmt.Errorf("preprocess: num levels %d <= 1", numLevels)
	}
	if noiseScale < 0 || math.IsNaN(noiseScale) {
		return nil, fmt.Errorf("preprocess: noise scale %v < 0", noiseScale)
	}

	out := &Volume{Dims: v.Dims, Data: append([]float64(nil), v.Data...)}

	if noiseScale > 0 {
		if rng == nil {
			return nil, fmt.Errorf("preprocess: noise requested without random source")
		}
		addNoise(out.Data, noiseScale/100, rng)
	}

	steps := float64(numLevels - 1)
	width := w.Width()
	for i, x := range out.Data {
		n := (x - w.Lower) / width
		n = math.Min(math.Max(n, 0), 1)
		q := math.RoundToEven(n*steps) / steps
		out.Data[i] = width*q + w.Lower
	}
	return out, nil
}

// addNoise perturbs data in place. A constant signal has no spread to scale
// the noise by and is left unchanged.
func addNoise(data []float64, sigma float64, rng *rand.Rand) {
	mean, std := meanStd(data)
	if std == 0 {
		return
	}
	for i, x := range data {
		z := (x-mean)/std + rng.NormFloat64()*sigma
		data[i] = z*std + mean
	}
}

// meanStd returns the mean and population standard deviation.
func meanStd(data []float64) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range data {
		sum += x
	}
	mean := sum / float64(len(data))
	var ss float64
	for _, x := range data {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(data)))
}

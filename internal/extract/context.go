package extract

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/volume"
)

// RegionSource provides the signal crop and mask for one annotation.
// annotationID may be model.ConsensusAnnotation.
type RegionSource interface {
	Region(ctx context.Context, patientID string, noduleID, annotationID int) (*volume.Region, error)
}

// Context computes feature values for condition keys.
type Context struct {
	Regions RegionSource
	Engine  Engine
	Window  volume.Window

	// WorkDir holds the NRRD working files. Empty means os.TempDir().
	WorkDir string

	// Rand drives the noise perturbation. When nil, each condition gets a
	// source seeded from its digest, so a noisy condition always reproduces
	// the same perturbation.
	Rand *rand.Rand

	// KeepWorkFiles leaves the working files in WorkDir after the call.
	KeepWorkFiles bool

	Logger *slog.Logger
}

// Compute runs one extraction for key covering every spec and returns the
// values keyed by identifier. Either every requested value is returned or
// the call fails with an *ExtractionError.
func (c *Context) Compute(ctx context.Context, key model.ConditionKey, specs []feature.Spec) (map[model.FeatureID]float64, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, failure(StageRegion, key, err, "invalid key")
	}
	if len(specs) == 0 {
		return map[model.FeatureID]float64{}, nil
	}
	logger := c.logger()

	region, err := c.Regions.Region(ctx, key.PatientID, key.NoduleID, key.AnnotationID)
	if err != nil {
		return nil, failure(StageRegion, key, err, "load region")
	}
	if err := region.Validate(); err != nil {
		return nil, failure(StageRegion, key, err, "bad region")
	}

	rng := c.Rand
	if rng == nil && key.NoiseScale > 0 {
		rng = seededRand(key)
	}
	signal, err := volume.Preprocess(region.Signal, c.window(), key.NumLevels, key.NoiseScale, rng)
	if err != nil {
		return nil, failure(StagePreprocess, key, err, "preprocess signal")
	}

	signalPath, maskPath, err := c.writeWorkFiles(key, signal, region.Mask)
	if err != nil {
		return nil, failure(StageWorkFiles, key, err, "write working files")
	}
	if !c.KeepWorkFiles {
		defer os.Remove(signalPath)
		defer os.Remove(maskPath)
	}

	req := Request{
		SignalPath: signalPath,
		MaskPath:   maskPath,
		BinWidth:   c.window().BinWidth(key.NumLevels),
		Features:   feature.Group(specs),
	}
	logger.Info("extracting features",
		"patient", key.PatientID, "nodule", key.NoduleID, "annotation", key.AnnotationID,
		"levels", key.NumLevels, "noise", key.NoiseScale,
		"features", len(specs), "voxels", region.Mask.Count())

	results, err := c.Engine.Execute(ctx, req)
	if err != nil {
		return nil, failure(StageEngine, key, err, "engine failed")
	}

	out := make(map[model.FeatureID]float64, len(specs))
	for _, s := range specs {
		v, ok := results[s.ResultKey()]
		if !ok {
			return nil, failure(StageResult, key, nil, "engine returned no value for %s", s.ID)
		}
		if math.IsNaN(v) {
			return nil, failure(StageResult, key, nil, "engine returned NaN for %s", s.ID)
		}
		out[s.ID] = v
	}
	return out, nil
}

func (c *Context) window() volume.Window {
	if c.Window == (volume.Window{}) {
		return volume.DefaultWindow
	}
	return c.Window
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Context) writeWorkFiles(key model.ConditionKey, signal *volume.Volume, mask *volume.Mask) (string, string, error) {
	dir := c.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	stem := key.Digest()[:16]
	signalPath := filepath.Join(dir, stem+"_signal.nrrd")
	maskPath := filepath.Join(dir, stem+"_mask.nrrd")

	if err := volume.WriteFile(signalPath, signal, volume.TypeFloat64); err != nil {
		return "", "", err
	}
	if err := volume.WriteMaskFile(maskPath, mask); err != nil {
		os.Remove(signalPath)
		return "", "", err
	}
	return signalPath, maskPath, nil
}

func seededRand(key model.ConditionKey) *rand.Rand {
	sum, err := hex.DecodeString(key.Digest())
	if err != nil || len(sum) < 16 {
		panic(fmt.Sprintf("condition digest %q is not 128+ bits of hex", key.Digest()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))
}

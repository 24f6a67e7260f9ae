package extract_test

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/radcache/internal/extract"
	"github.com/roach88/radcache/internal/feature"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/testutil"
	"github.com/roach88/radcache/internal/volume"
)

func newContext(t *testing.T) (*extract.Context, *testutil.SpyEngine) {
	t.Helper()
	regions := testutil.NewMemoryRegions()
	regions.Add("AA-00", 0, 1, testutil.CubeRegion(5, -1350, 150))
	engine := testutil.NewSpyEngine(nil)
	return &extract.Context{
		Regions: regions,
		Engine:  engine,
		WorkDir: t.TempDir(),
	}, engine
}

func specs(t *testing.T, ids ...model.FeatureID) []feature.Spec {
	t.Helper()
	out, err := feature.Default().Resolve(ids)
	require.NoError(t, err)
	return out
}

func key(annotation, levels int, noise float64) model.ConditionKey {
	return model.ConditionKey{PatientID: "AA-00", NoduleID: 0, AnnotationID: annotation, NumLevels: levels, NoiseScale: noise}
}

func TestCompute_SingleEngineCall(t *testing.T) {
	c, engine := newContext(t)
	ss := specs(t, "firstorder/Energy", "glcm/Contrast", "firstorder/Entropy")

	got, err := c.Compute(context.Background(), key(1, 128, 0), ss)
	require.NoError(t, err)

	require.Equal(t, 1, engine.Calls())
	req := engine.Requests()[0]
	assert.Equal(t, 1500.0/128, req.BinWidth)
	assert.Equal(t, []string{"Energy", "Entropy"}, req.Features["firstorder"])
	assert.Equal(t, []string{"Contrast"}, req.Features["glcm"])

	assert.Equal(t, map[model.FeatureID]float64{
		"firstorder/Energy":  17,
		"glcm/Contrast":      float64(len("glcm_Contrast")),
		"firstorder/Entropy": float64(len("firstorder_Entropy")),
	}, got)
}

func TestCompute_WritesReadableWorkFiles(t *testing.T) {
	c, _ := newContext(t)
	c.KeepWorkFiles = true
	var seen extract.Request
	c.Engine = extract.EngineFunc(func(_ context.Context, req extract.Request) (map[string]float64, error) {
		seen = req
		return map[string]float64{"firstorder_Mean": -600}, nil
	})

	_, err := c.Compute(context.Background(), key(1, 4, 0), specs(t, "firstorder/Mean"))
	require.NoError(t, err)

	sig, err := volume.ReadFile(seen.SignalPath)
	require.NoError(t, err)
	mask, err := volume.ReadMaskFile(seen.MaskPath)
	require.NoError(t, err)
	assert.Equal(t, sig.Dims, mask.Dims)
	assert.Equal(t, 27, mask.Count())

	// 4 levels over the default window: -1350, -850, -350, 150
	for _, v := range sig.Data {
		onLevel := false
		for _, l := range []float64{-1350, -850, -350, 150} {
			if math.Abs(v-l) < 1e-9 {
				onLevel = true
			}
		}
		assert.True(t, onLevel, "value %v not on a level", v)
	}
}

func TestCompute_RemovesWorkFiles(t *testing.T) {
	c, engine := newContext(t)
	_, err := c.Compute(context.Background(), key(1, 16, 0), specs(t, "firstorder/Mean"))
	require.NoError(t, err)

	req := engine.Requests()[0]
	_, err = os.Stat(req.SignalPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(req.MaskPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCompute_NoiseIsReproducible(t *testing.T) {
	var sums []float64
	for i := 0; i < 2; i++ {
		c, _ := newContext(t)
		c.Engine = extract.EngineFunc(func(_ context.Context, req extract.Request) (map[string]float64, error) {
			v, err := volume.ReadFile(req.SignalPath)
			if err != nil {
				return nil, err
			}
			var sum float64
			for _, x := range v.Data {
				sum += x
			}
			return map[string]float64{"firstorder_Mean": sum}, nil
		})
		got, err := c.Compute(context.Background(), key(1, 64, 5), specs(t, "firstorder/Mean"))
		require.NoError(t, err)
		sums = append(sums, got["firstorder/Mean"])
	}
	assert.Equal(t, sums[0], sums[1])
}

func TestCompute_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("missing region", func(t *testing.T) {
		c, engine := newContext(t)
		_, err := c.Compute(ctx, key(2, 64, 0), specs(t, "firstorder/Mean"))
		requireStage(t, err, extract.StageRegion)
		assert.Equal(t, 0, engine.Calls())
	})

	t.Run("engine error", func(t *testing.T) {
		c, engine := newContext(t)
		engine.SetFail(true)
		_, err := c.Compute(ctx, key(1, 64, 0), specs(t, "firstorder/Mean"))
		requireStage(t, err, extract.StageEngine)
		assert.ErrorIs(t, err, testutil.ErrEngineFailed)
	})

	t.Run("value missing from output", func(t *testing.T) {
		c, engine := newContext(t)
		engine.Omit = map[string]bool{"glcm_Contrast": true}
		_, err := c.Compute(ctx, key(1, 64, 0), specs(t, "firstorder/Mean", "glcm/Contrast"))
		requireStage(t, err, extract.StageResult)
	})

	t.Run("invalid key", func(t *testing.T) {
		c, _ := newContext(t)
		_, err := c.Compute(ctx, key(1, 1, 0), specs(t, "firstorder/Mean"))
		requireStage(t, err, extract.StageRegion)
		assert.ErrorIs(t, err, model.ErrInvalidKey)
	})
}

func TestCompute_NoSpecs(t *testing.T) {
	c, engine := newContext(t)
	got, err := c.Compute(context.Background(), key(1, 64, 0), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, engine.Calls())
}

func requireStage(t *testing.T, err error, stage extract.Stage) {
	t.Helper()
	require.Error(t, err)
	require.True(t, extract.IsExtractionError(err), "want ExtractionError, got %v", err)
	var ee *extract.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, stage, ee.Stage)
}

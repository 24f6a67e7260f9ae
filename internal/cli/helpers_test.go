package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/radcache/internal/archive"
	"github.com/roach88/radcache/internal/model"
	"github.com/roach88/radcache/internal/store"
	"github.com/roach88/radcache/internal/volume"
)

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

// seedStore creates a store with a few rows for AA-00.
func seedStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "features.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	write := func(nodule, annotation int, id model.FeatureID, v float64) {
		k := model.ConditionKey{PatientID: "AA-00", NoduleID: nodule, AnnotationID: annotation, NumLevels: 256}
		require.NoError(t, st.WriteValue(ctx, k, id, v))
	}
	write(0, 0, "glcm/Contrast", 1)
	write(0, 1, "glcm/Contrast", 3)
	write(0, -1, "glcm/Contrast", 2)
	write(0, -1, "firstorder/Energy", 0)
	write(2, 0, "glcm/Contrast", 5)
	return path
}

func cube(side int) *volume.Mask {
	m := volume.NewMask([3]int{side, side, side})
	for z := 0; z < side; z++ {
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				m.Set(x, y, z)
			}
		}
	}
	return m
}

// writePlan writes an archive with patient AA-00 (one nodule, two observers)
// and a plan over it; extra is appended to the plan.
func writePlan(t *testing.T, extra string) (planPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	scan := volume.New([3]int{12, 12, 12})
	for i := range scan.Data {
		scan.Data[i] = float64(i%300) - 900
	}
	require.NoError(t, archive.WritePatient(filepath.Join(dir, "archive"), "AA-00", scan, [][]volume.PlacedMask{{
		{Mask: cube(4), Offset: [3]int{3, 3, 3}},
		{Mask: cube(4), Offset: [3]int{4, 4, 4}},
	}}))

	plan := `database: features.db
archive: archive
work_dir: work
num_levels: [16, 32]
features: [firstorder/Energy, glcm/Contrast]
` + extra
	planPath = filepath.Join(dir, "plan.yaml")
	require.NoError(t, os.WriteFile(planPath, []byte(plan), 0o644))
	return planPath, filepath.Join(dir, "features.db")
}

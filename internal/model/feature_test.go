package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureIDParts(t *testing.T) {
	f := FeatureID("firstorder/Entropy")
	assert.Equal(t, "firstorder", f.Class())
	assert.Equal(t, "Entropy", f.Name())
	assert.True(t, f.Valid())
}

func TestFeatureIDValid(t *testing.T) {
	valid := []FeatureID{"glcm/IMC1", "shape3D/MaxAxialDiameter", "x/1"}
	for _, f := range valid {
		assert.True(t, f.Valid(), string(f))
	}

	invalid := []FeatureID{"", "Entropy", "/Entropy", "firstorder/", "a/b/c", "first_order/Entropy", "glcm/Id mn", "glcm/Idm;--"}
	for _, f := range invalid {
		assert.False(t, f.Valid(), string(f))
	}
}

func TestColumnRoundTrip(t *testing.T) {
	for _, f := range []FeatureID{"firstorder/Entropy", "shape3D/MaxAxialDiameter", "glrlm/LRHGLE"} {
		col, err := f.Column()
		require.NoError(t, err)
		assert.NotContains(t, col, FeatureSeparator)

		back, err := FeatureIDFromColumn(col)
		require.NoError(t, err)
		assert.Equal(t, f, back)
	}
}

func TestColumnMangling(t *testing.T) {
	col, err := FeatureID("firstorder/Entropy").Column()
	require.NoError(t, err)
	assert.Equal(t, "firstorder_Entropy", col)
}

func TestColumnRejectsMalformed(t *testing.T) {
	_, err := FeatureID("bad id").Column()
	assert.Error(t, err)

	_, err = FeatureIDFromColumn("patient_id")
	assert.NoError(t, err, "patient_id unmangles to a well-formed id; callers exclude key columns")

	_, err = FeatureIDFromColumn("noisescale")
	assert.Error(t, err)
}

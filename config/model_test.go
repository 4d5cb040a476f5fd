package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMobileFaceNetIdeal5Landmarks(t *testing.T) {
	template := MobileFaceNetIdeal5Landmarks()
	for _, p := range template {
		assert.True(t, p.X > 0 && p.X < 1)
		assert.True(t, p.Y > 0 && p.Y < 1)
	}
	assert.InDelta(t, 38.2946/112.0, template[0].X, 1e-7)

	// the accessor hands out a copy
	template[0].X = 0
	assert.NotEqual(t, float32(0), MobileFaceNetIdeal5Landmarks()[0].X)

	tmpl := FaceTemplateTensor()
	assert.Equal(t, []int{5, 2}, []int(tmpl.Shape()))
	assert.InDelta(t, 92.2041/112.0, tmpl.Float32s()[9], 1e-7)
}

func TestFaceAlignmentParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultFaceAlignmentParams.Validate())

	params := NewFaceAlignmentParams(RemoveSideColumns, LaplacianHardThreshold, 10, 4, true)
	assert.NoError(t, params.Validate())
	assert.Equal(t, uint8(114), params.FillColor.R)

	params.FaceSize = 224
	assert.Error(t, params.Validate())

	params = NewFaceAlignmentParams(RemoveSideColumns, LaplacianHardThreshold, 10, 0, false)
	assert.Error(t, params.Validate())

	params = NewFaceAlignmentParams(FaceSize, LaplacianHardThreshold, 10, 1, false)
	assert.Error(t, params.Validate())
}

func TestFaceEmbeddingParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultFaceEmbeddingParams.Validate())
	assert.Error(t, NewFaceEmbeddingParams("", 192, 0).Validate())
}

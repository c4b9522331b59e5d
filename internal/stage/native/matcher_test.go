package native

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verid-io/verid/internal/stage"
)

func TestMatcher_EmbedDeterministic(t *testing.T) {
	img := toImage(t, checkerRaster(120, 120, 30, 30, 60, 60))
	box := stage.FaceBox{X: 30, Y: 30, W: 60, H: 60, Confidence: 0.9}

	m := NewMatcher(MatcherConfig{Threshold: 0.30})

	a, err := m.Embed(context.Background(), img, box)
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), img, box)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, embeddingSide*embeddingSide)
}

func TestMatcher_SameFaceVerifies(t *testing.T) {
	img := toImage(t, checkerRaster(120, 120, 30, 30, 60, 60))
	box := stage.FaceBox{X: 30, Y: 30, W: 60, H: 60}

	m := NewMatcher(MatcherConfig{Threshold: 0.30})

	a, err := m.Embed(context.Background(), img, box)
	require.NoError(t, err)

	metrics := m.Compare(a, a)
	assert.InDelta(t, 1.0, metrics.Cosine, 1e-9)
	assert.InDelta(t, 0.0, metrics.Euclidean, 1e-9)
	assert.True(t, metrics.Verified)
	assert.Equal(t, 0.30, metrics.Threshold)
}

func TestMatcher_DifferentTexturesScoreLower(t *testing.T) {
	imgA := toImage(t, checkerRaster(120, 120, 30, 30, 60, 60))
	// Shift the checker phase so the crops disagree.
	imgB := toImage(t, checkerRaster(120, 120, 35, 35, 60, 60))
	box := stage.FaceBox{X: 30, Y: 30, W: 60, H: 60}

	m := NewMatcher(MatcherConfig{Threshold: 0.30})

	a, err := m.Embed(context.Background(), imgA, box)
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), imgB, box)
	require.NoError(t, err)

	metrics := m.Compare(a, b)
	assert.Less(t, metrics.Cosine, 1.0)
	assert.Greater(t, metrics.Euclidean, 0.0)
}

func TestMatcher_CosineAtThresholdVerifies(t *testing.T) {
	// Identical embeddings give exactly cosine 1.0; at threshold 1.0 the
	// greater-or-equal comparison must still verify.
	m := NewMatcher(MatcherConfig{Threshold: 1.0})

	e := stage.Embedding{3, 4}
	metrics := m.Compare(e, e)
	assert.Equal(t, 1.0, metrics.Cosine)
	assert.True(t, metrics.Verified)
}

func TestMatcher_BoxOutsideImageFails(t *testing.T) {
	img := toImage(t, checkerRaster(50, 50, 0, 0, 50, 50))
	m := NewMatcher(MatcherConfig{Threshold: 0.30})

	_, err := m.Embed(context.Background(), img, stage.FaceBox{X: 200, Y: 200, W: 40, H: 40})
	assert.Error(t, err)
}

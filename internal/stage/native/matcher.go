package native

import (
	"context"
	"errors"
	"math"

	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
)

// embeddingSide is the side of the normalized face crop; the embedding has
// embeddingSide² dimensions.
const embeddingSide = 32

// MatcherConfig tunes the embedding comparison.
type MatcherConfig struct {
	// Threshold is the cosine similarity at or above which two faces verify.
	Threshold float64
}

// Matcher derives a deterministic embedding from a contrast-normalized
// grayscale face crop. Identical image bytes always produce identical
// embeddings.
type Matcher struct {
	cfg MatcherConfig
}

func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// Embed crops the face box, resizes it to a fixed side, normalizes contrast
// and returns the unit-length pixel vector.
func (m *Matcher) Embed(ctx context.Context, img *imaging.Image, box stage.FaceBox) (stage.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	crop := imaging.NewPlane(img.Raster).Region(box.X, box.Y, box.W, box.H)
	if crop.W == 0 || crop.H == 0 {
		return nil, errors.New("face box outside image bounds")
	}

	face := crop.Resize(embeddingSide, embeddingSide)

	// Zero-mean, unit-variance contrast normalization before the final
	// L2 normalization, so lighting shifts move the embedding less.
	mean := face.Mean()
	std := math.Sqrt(face.Variance())
	if std < 1e-6 {
		std = 1e-6
	}

	emb := make(stage.Embedding, len(face.Pix))
	for i, v := range face.Pix {
		emb[i] = (v - mean) / std
	}
	return stage.Normalize(emb), nil
}

// Compare computes cosine and euclidean metrics on unit-normalized copies
// and applies the verification threshold. Cosine equal to the threshold
// verifies.
func (m *Matcher) Compare(a, b stage.Embedding) stage.MatchMetrics {
	na := stage.Normalize(a)
	nb := stage.Normalize(b)

	cos := stage.CosineSimilarity(na, nb)
	return stage.MatchMetrics{
		Cosine:    cos,
		Euclidean: stage.EuclideanDistance(na, nb),
		Verified:  cos >= m.cfg.Threshold,
		Threshold: m.cfg.Threshold,
	}
}

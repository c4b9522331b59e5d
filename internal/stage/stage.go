// Package stage defines the narrow contracts of the four inference stages
// and the registry that owns their lifecycles. Stages are the only places
// where ML backends are invoked; everything above them works with plain
// values.
package stage

import (
	"context"
	"math"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
)

// FaceBox is a face bounding rectangle within an image plus the detector's
// confidence in [0, 1].
type FaceBox struct {
	X          int
	Y          int
	W          int
	H          int
	Confidence float64
}

// Embedding is a fixed-length face descriptor. Opaque to the orchestrator
// except for length equality and cosine comparability.
type Embedding []float64

// MatchMetrics is the outcome of comparing two embeddings.
type MatchMetrics struct {
	Cosine    float64
	Euclidean float64
	Verified  bool
	Threshold float64
}

// Evaluation summarizes a liveness frame sequence.
type Evaluation struct {
	Blinks             int
	Orientations       []domain.Orientation
	FaceDetectionRatio float64
}

// Detector locates the primary face in an image. A nil FaceBox with a nil
// error means no face was found; errors are reserved for backend failures.
type Detector interface {
	Detect(ctx context.Context, img *imaging.Image) (*FaceBox, error)
}

// Matcher produces embeddings from face crops and compares them.
type Matcher interface {
	Embed(ctx context.Context, img *imaging.Image, box FaceBox) (Embedding, error)
	Compare(a, b Embedding) MatchMetrics
}

// OCRExtractor pulls free text and structured fields from a document image.
// It never fails for low confidence; it returns its best effort.
type OCRExtractor interface {
	Extract(ctx context.Context, img *imaging.Image) (*domain.OCRData, error)
}

// LivenessEvaluator consumes an ordered frame sequence and reports blink
// count, per-frame orientations and the face detection ratio.
type LivenessEvaluator interface {
	Evaluate(ctx context.Context, frames *imaging.FrameSeq) (*Evaluation, error)
}

// CosineSimilarity computes the cosine of the angle between two embeddings.
// Returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance computes the L2 distance between two embeddings.
func EuclideanDistance(a, b Embedding) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Normalize scales an embedding to unit length.
func Normalize(e Embedding) Embedding {
	if len(e) == 0 {
		return e
	}

	var norm float64
	for _, v := range e {
		norm += v * v
	}
	if norm == 0 {
		return e
	}

	norm = math.Sqrt(norm)
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = v / norm
	}
	return out
}

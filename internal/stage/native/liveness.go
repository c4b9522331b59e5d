package native

import (
	"context"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
)

// LivenessConfig tunes blink and head-turn detection.
type LivenessConfig struct {
	// EyeClosedRatio: the eye band counts as closed when its variance drops
	// below this fraction of the whole face's variance.
	EyeClosedRatio float64

	// ClosedFramesForBlink: consecutive closed frames required before a
	// reopening counts as one blink.
	ClosedFramesForBlink int

	// TurnOffsetRatio: horizontal face-center offset (as a fraction of frame
	// width) beyond which a frame counts as a left or right turn.
	TurnOffsetRatio float64
}

// DefaultLivenessConfig returns the evaluator defaults.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		EyeClosedRatio:       0.25,
		ClosedFramesForBlink: 2,
		TurnOffsetRatio:      0.10,
	}
}

// Evaluator derives blink counts and per-frame head orientations from a
// frame sequence. All state lives within a single Evaluate call; instances
// are safe for concurrent use.
type Evaluator struct {
	cfg      LivenessConfig
	detector stage.Detector
}

func NewEvaluator(cfg LivenessConfig, detector stage.Detector) *Evaluator {
	return &Evaluator{cfg: cfg, detector: detector}
}

// Evaluate consumes the frames in order. Undecodable frames count as
// face-not-detected with orientation NONE, keeping the orientation list
// aligned with the input length. Blinks are counted on the closed-to-open
// transition after enough consecutive closed frames.
func (e *Evaluator) Evaluate(ctx context.Context, frames *imaging.FrameSeq) (*stage.Evaluation, error) {
	frames.Reset()

	var (
		orientations []domain.Orientation
		blinks       int
		closedRun    int
		detected     int
		total        int
	)

	for {
		img, decodeErr, ok := frames.Next()
		if !ok {
			break
		}
		total++

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if decodeErr != nil {
			orientations = append(orientations, domain.OrientationNone)
			closedRun = 0
			continue
		}

		box, err := e.detector.Detect(ctx, img)
		if err != nil {
			return nil, err
		}
		if box == nil {
			orientations = append(orientations, domain.OrientationNone)
			closedRun = 0
			continue
		}
		detected++

		if e.eyesClosed(img, box) {
			closedRun++
		} else {
			if closedRun >= e.cfg.ClosedFramesForBlink {
				blinks++
			}
			closedRun = 0
		}

		orientations = append(orientations, e.orientation(img, box))
	}

	ratio := 0.0
	if total > 0 {
		ratio = float64(detected) / float64(total)
	}

	return &stage.Evaluation{
		Blinks:             blinks,
		Orientations:       orientations,
		FaceDetectionRatio: ratio,
	}, nil
}

// eyesClosed compares the texture of the eye band against the whole face.
// Closed lids flatten the band, collapsing its variance.
func (e *Evaluator) eyesClosed(img *imaging.Image, box *stage.FaceBox) bool {
	face := imaging.NewPlane(img.Raster).Region(box.X, box.Y, box.W, box.H)
	if face.W == 0 || face.H == 0 {
		return false
	}

	eye := face.Region(
		int(0.15*float64(face.W)),
		int(0.20*float64(face.H)),
		int(0.70*float64(face.W)),
		int(0.25*float64(face.H)),
	)
	if eye.W == 0 || eye.H == 0 {
		return false
	}

	openness := eye.Variance() / (face.Variance() + 1e-6)
	return openness < e.cfg.EyeClosedRatio
}

// orientation classifies a head turn from the horizontal offset of the face
// box center relative to the frame center.
func (e *Evaluator) orientation(img *imaging.Image, box *stage.FaceBox) domain.Orientation {
	frameW := float64(img.Width())
	if frameW == 0 {
		return domain.OrientationNone
	}

	boxCenter := float64(box.X) + float64(box.W)/2
	offset := (boxCenter - frameW/2) / frameW

	switch {
	case offset <= -e.cfg.TurnOffsetRatio:
		return domain.OrientationLeft
	case offset >= e.cfg.TurnOffsetRatio:
		return domain.OrientationRight
	default:
		return domain.OrientationNone
	}
}

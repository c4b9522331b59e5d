package native

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
)

// blockDetector locates the non-background block in test frames by scanning
// for pixels that deviate from the 128 fill.
type blockDetector struct{}

func (blockDetector) Detect(_ context.Context, img *imaging.Image) (*stage.FaceBox, error) {
	plane := imaging.NewPlane(img.Raster)

	minX, minY := plane.W, plane.H
	maxX, maxY := -1, -1
	for y := 0; y < plane.H; y++ {
		for x := 0; x < plane.W; x++ {
			v := plane.At(x, y)
			if v > 98 && v < 158 {
				continue
			}
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return nil, nil
	}
	return &stage.FaceBox{
		X: minX, Y: minY,
		W: maxX - minX + 1, H: maxY - minY + 1,
		Confidence: 0.9,
	}, nil
}

const (
	frameW = 160
	frameH = 120
	faceW  = 40
	faceH  = 40
)

// openFrame draws a fully textured face block at (fx, fy).
func openFrame(t *testing.T, fx, fy int) string {
	return toBase64Frame(t, checkerRaster(frameW, frameH, fx, fy, faceW, faceH))
}

// closedFrame flattens the eye band of the face block, collapsing its
// variance the way closed lids do.
func closedFrame(t *testing.T, fx, fy int) string {
	raster := checkerRaster(frameW, frameH, fx, fy, faceW, faceH)
	for y := fy + 8; y < fy+18; y++ {
		for x := fx + 1; x < fx+faceW-1; x++ {
			raster.SetGray(x, y, color.Gray{Y: 200})
		}
	}
	return toBase64Frame(t, raster)
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(DefaultLivenessConfig(), blockDetector{})
}

func TestEvaluator_CountsBlinkOnClosedToOpen(t *testing.T) {
	// Centered face: open, closed, closed, open, open.
	cx := (frameW - faceW) / 2
	cy := (frameH - faceH) / 2
	frames := imaging.NewFrameSeq([]string{
		openFrame(t, cx, cy),
		closedFrame(t, cx, cy),
		closedFrame(t, cx, cy),
		openFrame(t, cx, cy),
		openFrame(t, cx, cy),
	}, 0)

	eval, err := newTestEvaluator().Evaluate(context.Background(), frames)
	require.NoError(t, err)

	assert.Equal(t, 1, eval.Blinks)
	assert.Len(t, eval.Orientations, 5)
	assert.Equal(t, 1.0, eval.FaceDetectionRatio)
}

func TestEvaluator_SingleClosedFrameIsNotABlink(t *testing.T) {
	cx := (frameW - faceW) / 2
	cy := (frameH - faceH) / 2
	frames := imaging.NewFrameSeq([]string{
		openFrame(t, cx, cy),
		closedFrame(t, cx, cy),
		openFrame(t, cx, cy),
	}, 0)

	eval, err := newTestEvaluator().Evaluate(context.Background(), frames)
	require.NoError(t, err)

	assert.Equal(t, 0, eval.Blinks)
}

func TestEvaluator_Orientations(t *testing.T) {
	cy := (frameH - faceH) / 2
	// Face near the left edge, centered, then near the right edge.
	frames := imaging.NewFrameSeq([]string{
		openFrame(t, 8, cy),
		openFrame(t, (frameW-faceW)/2, cy),
		openFrame(t, frameW-faceW-8, cy),
	}, 0)

	eval, err := newTestEvaluator().Evaluate(context.Background(), frames)
	require.NoError(t, err)

	require.Len(t, eval.Orientations, 3)
	assert.Equal(t, domain.OrientationLeft, eval.Orientations[0])
	assert.Equal(t, domain.OrientationNone, eval.Orientations[1])
	assert.Equal(t, domain.OrientationRight, eval.Orientations[2])
}

func TestEvaluator_UndecodableFrameCountsAsNotDetected(t *testing.T) {
	cx := (frameW - faceW) / 2
	cy := (frameH - faceH) / 2
	frames := imaging.NewFrameSeq([]string{
		openFrame(t, cx, cy),
		"not-a-frame",
		openFrame(t, cx, cy),
	}, 0)

	eval, err := newTestEvaluator().Evaluate(context.Background(), frames)
	require.NoError(t, err)

	require.Len(t, eval.Orientations, 3)
	assert.Equal(t, domain.OrientationNone, eval.Orientations[1])
	assert.InDelta(t, 2.0/3.0, eval.FaceDetectionRatio, 1e-9)
}

func TestEvaluator_EmptySequence(t *testing.T) {
	eval, err := newTestEvaluator().Evaluate(context.Background(), imaging.NewFrameSeq(nil, 0))
	require.NoError(t, err)

	assert.Equal(t, 0, eval.Blinks)
	assert.Empty(t, eval.Orientations)
	assert.Equal(t, 0.0, eval.FaceDetectionRatio)
}

func TestEvaluator_NoFaceFrames(t *testing.T) {
	// Plain background frames: detector returns nil everywhere.
	flat := checkerRaster(frameW, frameH, 0, 0, 0, 0)
	frames := imaging.NewFrameSeq([]string{
		toBase64Frame(t, flat),
		toBase64Frame(t, flat),
	}, 0)

	eval, err := newTestEvaluator().Evaluate(context.Background(), frames)
	require.NoError(t, err)

	assert.Equal(t, 0.0, eval.FaceDetectionRatio)
	assert.Equal(t, []domain.Orientation{domain.OrientationNone, domain.OrientationNone}, eval.Orientations)
}

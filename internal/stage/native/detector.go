// Package native provides pure-Go pixel-heuristic backends for the inference
// stages. They favor determinism and zero external dependencies over model
// accuracy, and serve as the default backend and the reference for tests.
package native

import (
	"context"
	"sync"

	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
)

const (
	// detectorWorkWidth is the width the scan plane is downscaled to.
	detectorWorkWidth = 160

	// varianceRef normalizes window variance into a confidence.
	varianceRef = 2000.0
)

// DetectorConfig tunes the sliding-window face detector.
type DetectorConfig struct {
	// MinConfidence is the floor below which a candidate window is not a face.
	MinConfidence float64
}

// DefaultDetectorConfig returns the detector defaults.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinConfidence: 0.3,
	}
}

// scanGrid holds the scan parameters derived from one input size. It is a
// value type; Detect copies it out of the critical section before scanning.
type scanGrid struct {
	inputW, inputH int
	workW, workH   int
	windows        []int
}

func buildScanGrid(w, h int) scanGrid {
	workW := detectorWorkWidth
	if w < workW {
		workW = w
	}
	workH := h * workW / w
	if workH < 1 {
		workH = 1
	}

	minDim := workW
	if workH < minDim {
		minDim = workH
	}

	grid := scanGrid{inputW: w, inputH: h, workW: workW, workH: workH}
	for _, frac := range []float64{0.30, 0.45, 0.60} {
		win := int(float64(minDim) * frac)
		if win >= 8 {
			grid.windows = append(grid.windows, win)
		}
	}
	if len(grid.windows) == 0 {
		grid.windows = []int{minDim}
	}
	return grid
}

// Detector finds the highest-scoring face-like window in an image. The
// instance carries the last-used input size; when a request arrives with a
// different size, the scan grid is reconfigured under a short critical
// section instead of rebuilding the detector. The scan itself runs on
// per-call state, so requests with differing dimensions never interfere.
type Detector struct {
	cfg DetectorConfig

	mu   sync.Mutex
	grid scanGrid
}

func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Detect returns the best face candidate above MinConfidence, or nil when
// the image has no face-like region.
func (d *Detector) Detect(ctx context.Context, img *imaging.Image) (*stage.FaceBox, error) {
	w, h := img.Width(), img.Height()

	d.mu.Lock()
	if d.grid.inputW != w || d.grid.inputH != h {
		d.grid = buildScanGrid(w, h)
	}
	grid := d.grid
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	plane := imaging.NewPlane(img.Raster).Resize(grid.workW, grid.workH)

	var best *stage.FaceBox
	bestScore := 0.0
	for _, win := range grid.windows {
		stride := win / 4
		if stride < 1 {
			stride = 1
		}
		for y := 0; y+win <= grid.workH; y += stride {
			for x := 0; x+win <= grid.workW; x += stride {
				region := plane.Region(x, y, win, win)
				score := region.Variance() * (0.5 + region.EdgeDensity(20))
				if score <= bestScore {
					continue
				}
				bestScore = score
				conf := imaging.Clamp(score/varianceRef, 0, 1)
				scaleX := float64(w) / float64(grid.workW)
				scaleY := float64(h) / float64(grid.workH)
				best = &stage.FaceBox{
					X:          int(float64(x) * scaleX),
					Y:          int(float64(y) * scaleY),
					W:          int(float64(win) * scaleX),
					H:          int(float64(win) * scaleY),
					Confidence: conf,
				}
			}
		}
	}

	if best == nil || best.Confidence < d.cfg.MinConfidence {
		return nil, nil
	}
	return best, nil
}

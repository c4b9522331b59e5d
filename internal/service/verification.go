package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
	"github.com/verid-io/verid/internal/stage/ocr"
)

// StageRegistry hands out the shared inference stages. Construction errors
// surface as NOT_READY.
type StageRegistry interface {
	Detector() (stage.Detector, error)
	Matcher() (stage.Matcher, error)
	OCR() (stage.OCRExtractor, error)
	Liveness() (stage.LivenessEvaluator, error)
}

// VerificationConfig holds the scoring policy knobs.
type VerificationConfig struct {
	SimilarityThreshold float64
	PendingFaceFloor    float64
	PendingOCRFloor     float64
}

// DefaultVerificationConfig returns the default scoring policy.
func DefaultVerificationConfig() VerificationConfig {
	return VerificationConfig{
		SimilarityThreshold: 0.30,
		PendingFaceFloor:    0.35,
		PendingOCRFloor:     0.5,
	}
}

// VerificationService runs the KYC verification pipeline: face detection on
// both images, then face matching and OCR in parallel, then scoring.
type VerificationService struct {
	stages StageRegistry
	cfg    VerificationConfig
}

func NewVerificationService(stages StageRegistry, cfg VerificationConfig) *VerificationService {
	return &VerificationService{
		stages: stages,
		cfg:    cfg,
	}
}

// Verify compares the face on the identity document with the selfie and
// extracts document data. idDocBack is optional; when present its OCR result
// is merged into the front's.
func (s *VerificationService) Verify(ctx context.Context, idDoc, idDocBack, selfie *imaging.Image) (*domain.VerificationVerdict, error) {
	start := time.Now()

	detector, err := s.stages.Detector()
	if err != nil {
		return nil, err
	}
	matcher, err := s.stages.Matcher()
	if err != nil {
		return nil, err
	}
	extractor, err := s.stages.OCR()
	if err != nil {
		return nil, err
	}

	// Both detections run concurrently; the id-document result is checked
	// first so its no-face error wins when both images are faceless.
	var idBox, selfieBox *stage.FaceBox
	dg, dctx := errgroup.WithContext(ctx)
	dg.Go(func() error {
		var derr error
		idBox, derr = detector.Detect(dctx, idDoc)
		if derr != nil {
			return fmt.Errorf("detect face in id document: %w", derr)
		}
		return nil
	})
	dg.Go(func() error {
		var derr error
		selfieBox, derr = detector.Detect(dctx, selfie)
		if derr != nil {
			return fmt.Errorf("detect face in selfie: %w", derr)
		}
		return nil
	})
	if err := dg.Wait(); err != nil {
		return nil, mapStageError(ctx, err)
	}
	if idBox == nil {
		return nil, domain.ErrNoFaceInID
	}
	if selfieBox == nil {
		return nil, domain.ErrNoFaceInSelfie
	}

	// Face matching and OCR are independent; the first failure cancels the
	// other task.
	var (
		match   stage.MatchMetrics
		ocrData *domain.OCRData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		idEmb, gerr := matcher.Embed(gctx, idDoc, *idBox)
		if gerr != nil {
			return fmt.Errorf("embed id document face: %w", gerr)
		}
		selfieEmb, gerr := matcher.Embed(gctx, selfie, *selfieBox)
		if gerr != nil {
			return fmt.Errorf("embed selfie face: %w", gerr)
		}
		match = matcher.Compare(idEmb, selfieEmb)
		return nil
	})
	g.Go(func() error {
		front, gerr := extractor.Extract(gctx, idDoc)
		if gerr != nil {
			return fmt.Errorf("ocr id document: %w", gerr)
		}
		if idDocBack != nil {
			back, gerr := extractor.Extract(gctx, idDocBack)
			if gerr != nil {
				return fmt.Errorf("ocr id document back: %w", gerr)
			}
			front = ocr.Merge(front, back)
		}
		ocrData = front
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, mapStageError(ctx, err)
	}

	verdict := s.score(match, ocrData)
	verdict.ProcessingTimeMs = time.Since(start).Milliseconds()
	verdict.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return verdict, nil
}

// ExtractDocument runs the OCR stage alone, for the standalone OCR endpoint.
func (s *VerificationService) ExtractDocument(ctx context.Context, doc *imaging.Image) (*domain.OCRData, error) {
	extractor, err := s.stages.OCR()
	if err != nil {
		return nil, err
	}

	data, err := extractor.Extract(ctx, doc)
	if err != nil {
		return nil, mapStageError(ctx, err)
	}
	return data, nil
}

// score applies the scoring policy to the joined stage results.
func (s *VerificationService) score(match stage.MatchMetrics, ocrData *domain.OCRData) *domain.VerificationVerdict {
	cos := match.Cosine
	ocrConf := ocrData.Confidence

	verified := cos >= s.cfg.SimilarityThreshold
	confidence := imaging.Clamp(0.6*cos+0.4*ocrConf, 0, 1)

	status := domain.StatusRejected
	if verified {
		if cos >= s.cfg.PendingFaceFloor || ocrConf >= s.cfg.PendingOCRFloor {
			status = domain.StatusApproved
		} else {
			status = domain.StatusPending
		}
	}

	var message string
	if verified {
		message = fmt.Sprintf("Faces match (%.1f%% similarity)", cos*100)
	} else {
		message = fmt.Sprintf("Faces do not match (%.1f%% similarity, threshold: %.1f%%)",
			cos*100, s.cfg.SimilarityThreshold*100)
	}

	faceScore := imaging.Clamp(cos, 0, 1)
	return &domain.VerificationVerdict{
		VerificationStatus: status,
		ConfidenceScore:    confidence,
		FaceMatchScore:     faceScore,
		OCRData:            ocrData,
		FaceVerificationDetails: &domain.FaceVerificationDetails{
			Verified:   verified,
			Confidence: faceScore,
			SimilarityMetrics: domain.SimilarityMetrics{
				CosineSimilarity:  cos,
				EuclideanDistance: match.Euclidean,
			},
			ThresholdUsed: s.cfg.SimilarityThreshold,
			Message:       message,
		},
	}
}

// mapStageError translates stage failures into the domain error taxonomy.
// Deadline expiry wins over whatever error the cancelled stage reported.
func mapStageError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ErrTimeout.WithError(err)
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return domain.ErrBackendFailure.WithError(err)
}

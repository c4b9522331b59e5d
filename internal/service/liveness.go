package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/verid-io/verid/internal/challenge"
	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
)

// ChallengeStore is the slice of the challenge store the orchestrator uses.
type ChallengeStore interface {
	Issue() (*challenge.Record, error)
	Lookup(id string) (*challenge.Record, bool)
	Consume(id, claimedSignature string) challenge.ConsumeResult
}

// LivenessConfig holds the liveness validation knobs.
type LivenessConfig struct {
	MinFrames      int
	FaceRatioFloor float64
	MaxFrameBytes  int64
}

// DefaultLivenessConfig returns the default liveness validation settings.
func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		MinFrames:      10,
		FaceRatioFloor: 0.5,
	}
}

// LivenessService runs challenge-response liveness: issue a signed challenge,
// evaluate a frame sequence against its predicates, consume on pass.
type LivenessService struct {
	stages StageRegistry
	store  ChallengeStore
	cfg    LivenessConfig
}

func NewLivenessService(stages StageRegistry, store ChallengeStore, cfg LivenessConfig) *LivenessService {
	return &LivenessService{
		stages: stages,
		store:  store,
		cfg:    cfg,
	}
}

// IssueChallenge creates and stores a fresh signed challenge.
func (s *LivenessService) IssueChallenge() (*challenge.Record, error) {
	rec, err := s.store.Issue()
	if err != nil {
		return nil, domain.ErrInternal.WithError(fmt.Errorf("issue challenge: %w", err))
	}
	return rec, nil
}

// Verify checks a frame sequence against the challenge's predicates. All
// outcomes, pass or not, are verdicts; errors are reserved for stage
// failures.
func (s *LivenessService) Verify(ctx context.Context, challengeID string, frames []string) (*domain.LivenessVerdict, error) {
	start := time.Now()

	rec, ok := s.store.Lookup(challengeID)
	if !ok {
		return s.verdict(challengeID, start, domain.LivenessInvalid, "Challenge not found or expired", nil), nil
	}

	if len(frames) < s.cfg.MinFrames {
		return s.verdict(challengeID, start, domain.LivenessFail, "not enough frames", nil), nil
	}

	eval, err := s.evaluate(ctx, frames)
	if err != nil {
		return nil, err
	}
	results := s.detectionResults(eval)

	if eval.FaceDetectionRatio < s.cfg.FaceRatioFloor {
		return s.verdict(challengeID, start, domain.LivenessFail, "face not consistently visible", results), nil
	}

	completed, failed := checkPredicates(rec.Predicates, eval)
	if len(failed) > 0 {
		msg := fmt.Sprintf("Completed: %s. Failed: %s", joinPredicates(completed), joinPredicates(failed))
		return s.verdict(challengeID, start, domain.LivenessFail, msg, results), nil
	}

	// The pass only stands if this request wins the consume; a racing
	// duplicate downgrades to invalid.
	switch s.store.Consume(rec.ID, rec.Signature) {
	case challenge.ConsumeOK:
		msg := "All challenges completed: " + joinPredicates(completed)
		return s.verdict(challengeID, start, domain.LivenessPass, msg, results), nil
	case challenge.ConsumeExpired:
		return s.verdict(challengeID, start, domain.LivenessExpired, "Challenge expired", results), nil
	default:
		return s.verdict(challengeID, start, domain.LivenessInvalid, "Challenge already consumed", results), nil
	}
}

// Detect evaluates frames without a challenge, for incremental client-side
// feedback. initialBlinkCount carries the count accumulated by earlier calls.
func (s *LivenessService) Detect(ctx context.Context, frames []string, initialBlinkCount int) (*domain.DetectionResults, error) {
	eval, err := s.evaluate(ctx, frames)
	if err != nil {
		return nil, err
	}

	results := s.detectionResults(eval)
	results.Blinks += initialBlinkCount
	return results, nil
}

func (s *LivenessService) evaluate(ctx context.Context, frames []string) (*stage.Evaluation, error) {
	evaluator, err := s.stages.Liveness()
	if err != nil {
		return nil, err
	}

	eval, err := evaluator.Evaluate(ctx, imaging.NewFrameSeq(frames, s.cfg.MaxFrameBytes))
	if err != nil {
		return nil, mapStageError(ctx, fmt.Errorf("evaluate liveness: %w", err))
	}
	return eval, nil
}

func (s *LivenessService) detectionResults(eval *stage.Evaluation) *domain.DetectionResults {
	// The summary orientation is the last decisive turn in the sequence.
	last := domain.OrientationNone
	for _, o := range eval.Orientations {
		if o != domain.OrientationNone {
			last = o
		}
	}

	return &domain.DetectionResults{
		Blinks:       eval.Blinks,
		Orientation:  last,
		Orientations: eval.Orientations,
		FaceDetected: eval.FaceDetectionRatio >= s.cfg.FaceRatioFloor,
	}
}

func (s *LivenessService) verdict(challengeID string, start time.Time, status domain.LivenessStatus, message string, results *domain.DetectionResults) *domain.LivenessVerdict {
	return &domain.LivenessVerdict{
		ChallengeID:      challengeID,
		Status:           status,
		Message:          message,
		DetectionResults: results,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}
}

// checkPredicates splits the challenge predicates into satisfied and
// unsatisfied, preserving challenge order.
func checkPredicates(predicates []domain.ChallengeType, eval *stage.Evaluation) (completed, failed []domain.ChallengeType) {
	sawLeft, sawRight := false, false
	for _, o := range eval.Orientations {
		switch o {
		case domain.OrientationLeft:
			sawLeft = true
		case domain.OrientationRight:
			sawRight = true
		}
	}

	for _, p := range predicates {
		satisfied := false
		switch p {
		case domain.ChallengeBlink:
			satisfied = eval.Blinks >= 1
		case domain.ChallengeTurnLeft:
			satisfied = sawLeft
		case domain.ChallengeTurnRight:
			satisfied = sawRight
		}
		if satisfied {
			completed = append(completed, p)
		} else {
			failed = append(failed, p)
		}
	}
	return completed, failed
}

func joinPredicates(predicates []domain.ChallengeType) string {
	if len(predicates) == 0 {
		return "none"
	}
	names := make([]string, len(predicates))
	for i, p := range predicates {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/verid-io/verid/internal/challenge"
	"github.com/verid-io/verid/internal/domain"
)

// LivenessService interface for the service
type LivenessService interface {
	IssueChallenge() (*challenge.Record, error)
	Verify(ctx context.Context, challengeID string, frames []string) (*domain.LivenessVerdict, error)
	Detect(ctx context.Context, frames []string, initialBlinkCount int) (*domain.DetectionResults, error)
}

// LivenessHandler handles challenge-response liveness requests
type LivenessHandler struct {
	service LivenessService
	logger  *slog.Logger
}

// NewLivenessHandler creates a new LivenessHandler instance
func NewLivenessHandler(service LivenessService, logger *slog.Logger) *LivenessHandler {
	return &LivenessHandler{
		service: service,
		logger:  logger,
	}
}

// ChallengeResponse is the issued challenge as returned to the client.
type ChallengeResponse struct {
	ChallengeID    string                 `json:"challenge_id"`
	MultiChallenge bool                   `json:"multi_challenge"`
	ChallengeTypes []domain.ChallengeType `json:"challenge_types"`
	Questions      []string               `json:"questions"`
	Instructions   []string               `json:"instructions"`
	Timestamp      int64                  `json:"timestamp"`
	ExpiresAt      int64                  `json:"expires_at"`
	Nonce          string                 `json:"nonce"`
	Signature      string                 `json:"signature"`
}

// VerifyLivenessRequest is the body of POST /api/v1/liveness/verify.
type VerifyLivenessRequest struct {
	ChallengeID string   `json:"challenge_id"`
	Frames      []string `json:"frames"`
}

// DetectRequest is the body of POST /api/v1/liveness/detect.
type DetectRequest struct {
	Frames            []string `json:"frames"`
	InitialBlinkCount int      `json:"initial_blink_count"`
}

// DetectResponse wraps the challenge-free detection summary.
type DetectResponse struct {
	DetectionResults *domain.DetectionResults `json:"detection_results"`
	ProcessingTimeMs int64                    `json:"processing_time_ms"`
	Timestamp        string                   `json:"timestamp"`
}

// Challenge GET /api/v1/liveness/challenge - issue a signed challenge
func (h *LivenessHandler) Challenge(c *fiber.Ctx) error {
	rec, err := h.service.IssueChallenge()
	if err != nil {
		return err
	}

	questions := make([]string, len(rec.Predicates))
	instructions := make([]string, len(rec.Predicates))
	for i, p := range rec.Predicates {
		questions[i] = challenge.Question(p)
		instructions[i] = challenge.Instruction(p)
	}

	return c.JSON(ChallengeResponse{
		ChallengeID:    rec.ID,
		MultiChallenge: len(rec.Predicates) > 1,
		ChallengeTypes: rec.Predicates,
		Questions:      questions,
		Instructions:   instructions,
		Timestamp:      rec.IssuedAt.Unix(),
		ExpiresAt:      rec.ExpiresAt.Unix(),
		Nonce:          rec.Nonce,
		Signature:      rec.Signature,
	})
}

// Verify POST /api/v1/liveness/verify - verify frames against a challenge.
// All verdicts, including fail/expired/invalid, are HTTP 200.
func (h *LivenessHandler) Verify(c *fiber.Ctx) error {
	// 1. Parse and validate body
	var req VerifyLivenessRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadInput.WithError(err)
	}
	if req.ChallengeID == "" {
		return domain.ErrBadInput.WithMessage("challenge_id is required")
	}
	if len(req.Frames) == 0 {
		return domain.ErrBadInput.WithMessage("frames are required")
	}

	// 2. Run the liveness pipeline
	verdict, err := h.service.Verify(c.UserContext(), req.ChallengeID, req.Frames)
	if err != nil {
		return err
	}

	// 3. Return verdict
	return c.JSON(verdict)
}

// Detect POST /api/v1/liveness/detect - evaluate frames without a challenge
func (h *LivenessHandler) Detect(c *fiber.Ctx) error {
	start := time.Now()

	// 1. Parse and validate body
	var req DetectRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.ErrBadInput.WithError(err)
	}
	if len(req.Frames) == 0 {
		return domain.ErrBadInput.WithMessage("frames are required")
	}
	if req.InitialBlinkCount < 0 {
		return domain.ErrBadInput.WithMessage("initial_blink_count must not be negative")
	}

	// 2. Evaluate
	results, err := h.service.Detect(c.UserContext(), req.Frames, req.InitialBlinkCount)
	if err != nil {
		return err
	}

	// 3. Return summary
	return c.JSON(DetectResponse{
		DetectionResults: results,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	})
}

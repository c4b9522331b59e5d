package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verid-io/verid/internal/api/middleware"
	"github.com/verid-io/verid/internal/challenge"
	"github.com/verid-io/verid/internal/domain"
)

// livenessStub is a func-backed LivenessService.
type livenessStub struct {
	issue  func() (*challenge.Record, error)
	verify func(ctx context.Context, challengeID string, frames []string) (*domain.LivenessVerdict, error)
	detect func(ctx context.Context, frames []string, initialBlinkCount int) (*domain.DetectionResults, error)
}

func (s *livenessStub) IssueChallenge() (*challenge.Record, error) {
	return s.issue()
}

func (s *livenessStub) Verify(ctx context.Context, challengeID string, frames []string) (*domain.LivenessVerdict, error) {
	return s.verify(ctx, challengeID, frames)
}

func (s *livenessStub) Detect(ctx context.Context, frames []string, initialBlinkCount int) (*domain.DetectionResults, error) {
	return s.detect(ctx, frames, initialBlinkCount)
}

func newLivenessApp(service LivenessService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
	h := NewLivenessHandler(service, testLogger())
	app.Get("/api/v1/liveness/challenge", h.Challenge)
	app.Post("/api/v1/liveness/verify", h.Verify)
	app.Post("/api/v1/liveness/detect", h.Detect)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) (int, *bytes.Buffer) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, buf
}

func TestLivenessChallenge_Issue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	service := &livenessStub{
		issue: func() (*challenge.Record, error) {
			return &challenge.Record{
				ID:         "c-1",
				Predicates: []domain.ChallengeType{domain.ChallengeBlink, domain.ChallengeTurnLeft},
				IssuedAt:   now,
				ExpiresAt:  now.Add(120 * time.Second),
				Nonce:      "deadbeef",
				Signature:  "cafe",
			}, nil
		},
	}
	app := newLivenessApp(service)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/v1/liveness/challenge", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body ChallengeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "c-1", body.ChallengeID)
	assert.True(t, body.MultiChallenge)
	assert.Equal(t, []domain.ChallengeType{domain.ChallengeBlink, domain.ChallengeTurnLeft}, body.ChallengeTypes)
	require.Len(t, body.Questions, 2)
	assert.Equal(t, "Please blink your eyes", body.Questions[0])
	require.Len(t, body.Instructions, 2)
	assert.Equal(t, now.Unix(), body.Timestamp)
	assert.Equal(t, now.Unix()+120, body.ExpiresAt)
	assert.Equal(t, "deadbeef", body.Nonce)
	assert.Equal(t, "cafe", body.Signature)
}

func TestLivenessVerify_FailVerdictIsHTTP200(t *testing.T) {
	service := &livenessStub{
		verify: func(_ context.Context, challengeID string, frames []string) (*domain.LivenessVerdict, error) {
			assert.Equal(t, "c-1", challengeID)
			assert.Len(t, frames, 2)
			return &domain.LivenessVerdict{
				ChallengeID: challengeID,
				Status:      domain.LivenessFail,
				Message:     "not enough frames",
			}, nil
		},
	}
	app := newLivenessApp(service)

	code, body := postJSON(t, app, "/api/v1/liveness/verify", VerifyLivenessRequest{
		ChallengeID: "c-1",
		Frames:      []string{"f1", "f2"},
	})
	assert.Equal(t, 200, code)

	var verdict domain.LivenessVerdict
	require.NoError(t, json.Unmarshal(body.Bytes(), &verdict))
	assert.Equal(t, domain.LivenessFail, verdict.Status)
}

func TestLivenessVerify_MissingChallengeID(t *testing.T) {
	app := newLivenessApp(&livenessStub{})

	code, body := postJSON(t, app, "/api/v1/liveness/verify", VerifyLivenessRequest{
		Frames: []string{"f1"},
	})
	assert.Equal(t, 400, code)
	assert.Equal(t, "BAD_INPUT", errorCode(t, body))
}

func TestLivenessVerify_MissingFrames(t *testing.T) {
	app := newLivenessApp(&livenessStub{})

	code, body := postJSON(t, app, "/api/v1/liveness/verify", VerifyLivenessRequest{
		ChallengeID: "c-1",
	})
	assert.Equal(t, 400, code)
	assert.Equal(t, "BAD_INPUT", errorCode(t, body))
}

func TestLivenessDetect_Success(t *testing.T) {
	service := &livenessStub{
		detect: func(_ context.Context, frames []string, initialBlinkCount int) (*domain.DetectionResults, error) {
			assert.Len(t, frames, 3)
			assert.Equal(t, 2, initialBlinkCount)
			return &domain.DetectionResults{
				Blinks:       3,
				Orientation:  domain.OrientationLeft,
				Orientations: []domain.Orientation{domain.OrientationLeft, domain.OrientationNone, domain.OrientationNone},
				FaceDetected: true,
			}, nil
		},
	}
	app := newLivenessApp(service)

	code, body := postJSON(t, app, "/api/v1/liveness/detect", DetectRequest{
		Frames:            []string{"f1", "f2", "f3"},
		InitialBlinkCount: 2,
	})
	assert.Equal(t, 200, code)

	var out DetectResponse
	require.NoError(t, json.Unmarshal(body.Bytes(), &out))
	require.NotNil(t, out.DetectionResults)
	assert.Equal(t, 3, out.DetectionResults.Blinks)
	assert.Len(t, out.DetectionResults.Orientations, 3)
}

func TestLivenessDetect_NegativeInitialCount(t *testing.T) {
	app := newLivenessApp(&livenessStub{})

	code, body := postJSON(t, app, "/api/v1/liveness/detect", DetectRequest{
		Frames:            []string{"f1"},
		InitialBlinkCount: -1,
	})
	assert.Equal(t, 400, code)
	assert.Equal(t, "BAD_INPUT", errorCode(t, body))
}

func TestLivenessDetect_MissingFrames(t *testing.T) {
	app := newLivenessApp(&livenessStub{})

	code, body := postJSON(t, app, "/api/v1/liveness/detect", DetectRequest{})
	assert.Equal(t, 400, code)
	assert.Equal(t, "BAD_INPUT", errorCode(t, body))
}

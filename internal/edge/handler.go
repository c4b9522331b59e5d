package edge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/verid-io/verid/internal/domain"
)

// KYCGateway is the slice of the Inference Gateway client the handler needs.
type KYCGateway interface {
	VerifyKYC(ctx context.Context, idDoc, idDocBack, selfie []byte) (*domain.VerificationVerdict, error)
	Health(ctx context.Context) error
}

// EnduserVerifyResponse is the legacy verification response. Approved,
// pending and rejected are all carried on HTTP 200.
type EnduserVerifyResponse struct {
	VerificationID string                      `json:"verificationId"`
	Status         string                      `json:"status"`
	Message        string                      `json:"message"`
	Result         *domain.VerificationVerdict `json:"result,omitempty"`
}

// EnduserHandler serves the legacy /v2/enduser endpoints.
type EnduserHandler struct {
	gateway        KYCGateway
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewEnduserHandler(gateway KYCGateway, maxUploadBytes int64, logger *slog.Logger) *EnduserHandler {
	return &EnduserHandler{
		gateway:        gateway,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Verify handles POST /v2/enduser/verify. The endpoint accepts both the
// JSON document envelope and a plain multipart upload.
func (h *EnduserHandler) Verify(c *fiber.Ctx) error {
	// 1. Locate the front-ID and selfie payloads
	idDoc, selfie, err := h.extractPayloads(c)
	if err != nil {
		return err
	}

	// 2. Normalize to raw image bytes; the gateway gets canonical multipart
	idBytes, err := idDoc.Decode(h.maxUploadBytes)
	if err != nil {
		return err
	}
	selfieBytes, err := selfie.Decode(h.maxUploadBytes)
	if err != nil {
		return err
	}

	// 3. Call the Inference Gateway
	verdict, err := h.gateway.VerifyKYC(c.UserContext(), idBytes, nil, selfieBytes)
	if err != nil {
		return h.mapGatewayError(c, err)
	}

	// 4. Wrap the canonical verdict in the legacy envelope
	return c.JSON(verdictResponse(verdict))
}

func (h *EnduserHandler) extractPayloads(c *fiber.Ctx) (idDoc, selfie DocumentPayload, err error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		idDoc, err = h.formPayload(c, "id_document")
		if err != nil {
			return idDoc, selfie, err
		}
		selfie, err = h.formPayload(c, "selfie_image")
		return idDoc, selfie, err
	}

	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return idDoc, selfie, domain.ErrBadInput.WithMessage("invalid request body").WithError(err)
	}
	if len(req.Documents) == 0 {
		return idDoc, selfie, domain.ErrBadInput.WithMessage("documents array is required")
	}
	return req.ExtractImages()
}

func (h *EnduserHandler) formPayload(c *fiber.Ctx, field string) (DocumentPayload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return DocumentPayload{}, domain.ErrBadInput.WithMessage(field + " is required").WithError(err)
	}
	if file.Size > h.maxUploadBytes {
		return DocumentPayload{}, domain.ErrPayloadTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return DocumentPayload{}, domain.ErrBadInput.WithError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return DocumentPayload{}, domain.ErrBadInput.WithError(err)
	}
	return DocumentPayload{Kind: PayloadMultipart, Bytes: data}, nil
}

// mapGatewayError translates gateway failures into legacy responses.
// No-face outcomes are terminal verdicts for the legacy contract, not errors.
func (h *EnduserHandler) mapGatewayError(c *fiber.Ctx, err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Code {
		case domain.ErrNoFaceInID.Code, domain.ErrNoFaceInSelfie.Code:
			return c.JSON(EnduserVerifyResponse{
				VerificationID: uuid.New().String(),
				Status:         string(domain.StatusRejected),
				Message:        gwErr.Message,
			})
		}
		return &domain.AppError{
			Code:       gwErr.Code,
			Message:    gwErr.Message,
			StatusCode: gwErr.StatusCode,
		}
	}

	h.logger.Error("gateway call failed", "error", err)
	return domain.ErrBackendFailure.WithError(err)
}

func verdictResponse(verdict *domain.VerificationVerdict) EnduserVerifyResponse {
	message := statusMessage(verdict.VerificationStatus)
	if verdict.FaceVerificationDetails != nil && verdict.FaceVerificationDetails.Message != "" {
		message = verdict.FaceVerificationDetails.Message
	}

	return EnduserVerifyResponse{
		VerificationID: uuid.New().String(),
		Status:         string(verdict.VerificationStatus),
		Message:        message,
		Result:         verdict,
	}
}

func statusMessage(status domain.VerificationStatus) string {
	switch status {
	case domain.StatusApproved:
		return "Identity verified"
	case domain.StatusPending:
		return "Verification pending further checks"
	case domain.StatusRejected:
		return "Identity could not be verified"
	default:
		return "Verification completed"
	}
}

// Health handles GET /health. It reports the edge process together with
// the gateway's reachability.
func (h *EnduserHandler) Health(c *fiber.Ctx) error {
	status := "healthy"
	gateway := "reachable"
	code := fiber.StatusOK

	if err := h.gateway.Health(c.UserContext()); err != nil {
		h.logger.Warn("gateway unreachable", "error", err)
		status = "degraded"
		gateway = "unreachable"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"gateway": gateway,
	})
}

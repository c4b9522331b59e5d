package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"BAD_INPUT"`
	Message string `json:"message" example:"Malformed request body or undecodable image"`
}

// StageStatus represents the load state of one inference stage
type StageStatus struct {
	Loaded bool    `json:"loaded" example:"true"`
	Name   string  `json:"name" example:"native-detector"`
	Error  *string `json:"error"`
}

// HealthResponse represents the readiness report
type HealthResponse struct {
	Status  string                 `json:"status" example:"healthy"`
	Models  map[string]StageStatus `json:"models"`
	Version string                 `json:"version" example:"0.1.0"`
}

// SimilarityMetrics holds the raw face comparison measurements
type SimilarityMetrics struct {
	CosineSimilarity  float64 `json:"cosine_similarity" example:"0.85"`
	EuclideanDistance float64 `json:"euclidean_distance" example:"0.42"`
}

// FaceVerificationDetails is the face-match sub-record of a verdict
type FaceVerificationDetails struct {
	Verified          bool              `json:"verified" example:"true"`
	Confidence        float64           `json:"confidence" example:"0.85"`
	SimilarityMetrics SimilarityMetrics `json:"similarity_metrics"`
	ThresholdUsed     float64           `json:"threshold_used" example:"0.30"`
	Message           string            `json:"message" example:"Faces match (85.0% similarity)"`
}

// OCRFields carries the structured identity fields
type OCRFields struct {
	FullName       *string `json:"full_name" example:"JANE DOE"`
	DateOfBirth    *string `json:"date_of_birth" example:"12.03.1990"`
	DocumentNumber *string `json:"document_number" example:"AB1234567"`
	Nationality    *string `json:"nationality" example:"Utopian"`
	IssueDate      *string `json:"issue_date" example:"15.01.2020"`
	ExpiryDate     *string `json:"expiry_date" example:"15.01.2030"`
	PlaceOfBirth   *string `json:"place_of_birth" example:"Springfield"`
	Address        *string `json:"address" example:"42 Main Street"`
	Gender         *string `json:"gender" example:"F"`
}

// OCRData is the OCR stage output
type OCRData struct {
	DocumentType  string    `json:"document_type" example:"passport"`
	Confidence    float64   `json:"confidence" example:"0.92"`
	ExtractedText string    `json:"extracted_text" example:"PASSPORT ..."`
	Fields        OCRFields `json:"fields"`
}

// VerificationVerdictResponse is the canonical verification response
type VerificationVerdictResponse struct {
	VerificationStatus      string                  `json:"verification_status" example:"approved"`
	ConfidenceScore         float64                 `json:"confidence_score" example:"0.878"`
	FaceMatchScore          float64                 `json:"face_match_score" example:"0.85"`
	OCRData                 OCRData                 `json:"ocr_data"`
	ProcessingTimeMs        int64                   `json:"processing_time_ms" example:"412"`
	Timestamp               string                  `json:"timestamp" example:"2025-06-01T12:00:00Z"`
	FaceVerificationDetails FaceVerificationDetails `json:"face_verification_details"`
}

// OCRWrapperResponse wraps the standalone OCR result
type OCRWrapperResponse struct {
	OCRData          OCRData `json:"ocr_data"`
	ProcessingTimeMs int64   `json:"processing_time_ms" example:"120"`
	Timestamp        string  `json:"timestamp" example:"2025-06-01T12:00:00Z"`
}

// ChallengeResponse is an issued liveness challenge
type ChallengeResponse struct {
	ChallengeID    string   `json:"challenge_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	MultiChallenge bool     `json:"multi_challenge" example:"true"`
	ChallengeTypes []string `json:"challenge_types" example:"blink,turn_left"`
	Questions      []string `json:"questions" example:"Please blink your eyes"`
	Instructions   []string `json:"instructions" example:"Blink naturally while looking at the camera"`
	Timestamp      int64    `json:"timestamp" example:"1748779200"`
	ExpiresAt      int64    `json:"expires_at" example:"1748779320"`
	Nonce          string   `json:"nonce" example:"9f86d081884c7d65"`
	Signature      string   `json:"signature" example:"a3f1..."`
}

// DetectionResults summarizes what the liveness evaluator observed
type DetectionResults struct {
	Blinks       int      `json:"blinks" example:"2"`
	Orientation  *string  `json:"orientation" example:"left"`
	Orientations []string `json:"orientations"`
	FaceDetected bool     `json:"face_detected" example:"true"`
}

// LivenessVerdictResponse is the challenge verification outcome
type LivenessVerdictResponse struct {
	ChallengeID      string           `json:"challenge_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status           string           `json:"status" example:"pass"`
	Message          string           `json:"message" example:"All challenges completed: blink, turn_left"`
	DetectionResults DetectionResults `json:"detection_results"`
	ProcessingTimeMs int64            `json:"processing_time_ms" example:"215"`
	Timestamp        string           `json:"timestamp" example:"2025-06-01T12:00:00Z"`
}

// VerifyLivenessRequest is the liveness verification body
type VerifyLivenessRequest struct {
	ChallengeID string   `json:"challenge_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Frames      []string `json:"frames"`
}

// DetectRequest is the challenge-free detection body
type DetectRequest struct {
	Frames            []string `json:"frames"`
	InitialBlinkCount int      `json:"initial_blink_count" example:"0"`
}

// DetectResponse wraps the challenge-free detection summary
type DetectResponse struct {
	DetectionResults DetectionResults `json:"detection_results"`
	ProcessingTimeMs int64            `json:"processing_time_ms" example:"180"`
	Timestamp        string           `json:"timestamp" example:"2025-06-01T12:00:00Z"`
}

// NewSwagger creates and configures the Swagger documentation
func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Verid KYC Verification API",
		Version:     "v1.0.0",
		Description: "Identity document verification, OCR extraction and challenge-response liveness detection",
		Host:        "localhost:8000",
		Path:        "/api/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// GET /api/v1/health - Stage readiness
		endpoint.New(
			endpoint.GET,
			"/health",
			endpoint.WithTags("Health"),
			endpoint.WithSummary("Inference stage readiness"),
			endpoint.WithDescription("Reports per-stage load state. Returns 503 when any stage failed to load."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(HealthResponse{}, "200", "All stages loaded"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(HealthResponse{Status: "unhealthy"}, "503", "One or more stages not loaded"),
			}),
		),

		// POST /api/v1/kyc/verify - Document verification
		endpoint.New(
			endpoint.POST,
			"/kyc/verify",
			endpoint.WithTags("KYC"),
			endpoint.WithSummary("Verify an identity document against a selfie"),
			endpoint.WithDescription("Runs face detection on both images, face matching and OCR in parallel, and applies the scoring policy. Fields: id_document (required), id_document_back (optional), selfie_image (required)."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(VerificationVerdictResponse{}, "200", "Verification completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_INPUT", Message: "Malformed request body or undecodable image"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "NO_FACE_IN_ID", Message: "No face detected in the identity document"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "NO_FACE_IN_SELFIE", Message: "No face detected in the selfie image"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "Uploaded payload exceeds the configured size cap"}, "413", "Payload Too Large"),
				response.New(ErrorResponse{Code: "BACKEND_FAILURE", Message: "Inference backend failed"}, "500", "Internal Server Error"),
				response.New(ErrorResponse{Code: "NOT_READY", Message: "Required inference stage is not loaded"}, "503", "Service Unavailable"),
				response.New(ErrorResponse{Code: "TIMEOUT", Message: "Verification deadline exceeded"}, "504", "Gateway Timeout"),
			}),
		),

		// POST /api/v1/kyc/ocr - Standalone OCR
		endpoint.New(
			endpoint.POST,
			"/kyc/ocr",
			endpoint.WithTags("KYC"),
			endpoint.WithSummary("Extract document data without verification"),
			endpoint.WithDescription("Runs the OCR stage alone on the uploaded document image. Field: document (required)."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(OCRWrapperResponse{}, "200", "Extraction completed"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_INPUT", Message: "Malformed request body or undecodable image"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "PAYLOAD_TOO_LARGE", Message: "Uploaded payload exceeds the configured size cap"}, "413", "Payload Too Large"),
				response.New(ErrorResponse{Code: "NOT_READY", Message: "Required inference stage is not loaded"}, "503", "Service Unavailable"),
			}),
		),

		// GET /api/v1/liveness/challenge - Issue challenge
		endpoint.New(
			endpoint.GET,
			"/liveness/challenge",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Issue a signed liveness challenge"),
			endpoint.WithDescription("Creates a challenge with randomly chosen predicates, signed with the process HMAC secret. Challenges expire after the configured TTL."),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ChallengeResponse{}, "200", "Challenge issued"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "INTERNAL", Message: "An unexpected error occurred"}, "500", "Internal Server Error"),
			}),
		),

		// POST /api/v1/liveness/verify - Verify challenge
		endpoint.New(
			endpoint.POST,
			"/liveness/verify",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Verify a frame sequence against a challenge"),
			endpoint.WithDescription("Evaluates the frames for blinks and head turns and checks the challenge predicates. Pass, fail, expired and invalid are all returned as HTTP 200 verdicts."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LivenessVerdictResponse{}, "200", "Verdict produced"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_INPUT", Message: "challenge_id is required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "BACKEND_FAILURE", Message: "Inference backend failed"}, "500", "Internal Server Error"),
				response.New(ErrorResponse{Code: "NOT_READY", Message: "Required inference stage is not loaded"}, "503", "Service Unavailable"),
			}),
		),

		// POST /api/v1/liveness/detect - Challenge-free detection
		endpoint.New(
			endpoint.POST,
			"/liveness/detect",
			endpoint.WithTags("Liveness"),
			endpoint.WithSummary("Detect blinks and head turns without a challenge"),
			endpoint.WithDescription("Evaluates a frame batch for incremental client-side feedback. initial_blink_count carries the count accumulated by earlier calls."),
			endpoint.WithConsume([]mime.MIME{mime.JSON}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(DetectResponse{}, "200", "Detection summary produced"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "BAD_INPUT", Message: "frames are required"}, "400", "Bad Request"),
				response.New(ErrorResponse{Code: "NOT_READY", Message: "Required inference stage is not loaded"}, "503", "Service Unavailable"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}

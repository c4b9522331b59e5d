package domain

// VerificationStatus is the terminal outcome of a KYC verification.
type VerificationStatus string

const (
	StatusApproved VerificationStatus = "approved"
	StatusRejected VerificationStatus = "rejected"
	StatusPending  VerificationStatus = "pending"
	StatusError    VerificationStatus = "error"
)

// DocumentType labels the kind of identity document recognized by OCR.
type DocumentType string

const (
	DocPassport       DocumentType = "passport"
	DocDriversLicense DocumentType = "drivers_license"
	DocNationalID     DocumentType = "national_id"
	DocIDCard         DocumentType = "id_card"
	DocPANCard        DocumentType = "pan_card"
	DocOther          DocumentType = "other"
)

// OCRFields carries the structured identity fields extracted from a document.
// All nine keys are always serialized; undetected fields are null.
type OCRFields struct {
	FullName       *string `json:"full_name"`
	DateOfBirth    *string `json:"date_of_birth"`
	DocumentNumber *string `json:"document_number"`
	Nationality    *string `json:"nationality"`
	IssueDate      *string `json:"issue_date"`
	ExpiryDate     *string `json:"expiry_date"`
	PlaceOfBirth   *string `json:"place_of_birth"`
	Address        *string `json:"address"`
	Gender         *string `json:"gender"`
}

// OCRData is the OCR stage output embedded in verdicts and the /kyc/ocr response.
type OCRData struct {
	DocumentType  DocumentType `json:"document_type"`
	Confidence    float64      `json:"confidence"`
	ExtractedText string       `json:"extracted_text"`
	Fields        OCRFields    `json:"fields"`
}

// SimilarityMetrics holds the raw face comparison measurements.
type SimilarityMetrics struct {
	CosineSimilarity  float64 `json:"cosine_similarity"`
	EuclideanDistance float64 `json:"euclidean_distance"`
}

// FaceVerificationDetails is the face-match sub-record of a verification verdict.
type FaceVerificationDetails struct {
	Verified          bool              `json:"verified"`
	Confidence        float64           `json:"confidence"`
	SimilarityMetrics SimilarityMetrics `json:"similarity_metrics"`
	ThresholdUsed     float64           `json:"threshold_used"`
	Message           string            `json:"message"`
}

// VerificationVerdict is the canonical response of POST /api/v1/kyc/verify.
type VerificationVerdict struct {
	VerificationStatus      VerificationStatus       `json:"verification_status"`
	ConfidenceScore         float64                  `json:"confidence_score"`
	FaceMatchScore          float64                  `json:"face_match_score"`
	OCRData                 *OCRData                 `json:"ocr_data,omitempty"`
	ProcessingTimeMs        int64                    `json:"processing_time_ms"`
	Timestamp               string                   `json:"timestamp"`
	FaceVerificationDetails *FaceVerificationDetails `json:"face_verification_details,omitempty"`
}

// LivenessStatus is the outcome of a challenge-response liveness verification.
type LivenessStatus string

const (
	LivenessPass    LivenessStatus = "pass"
	LivenessFail    LivenessStatus = "fail"
	LivenessExpired LivenessStatus = "expired"
	LivenessInvalid LivenessStatus = "invalid"
)

// Orientation is the per-frame head direction. The zero value means no
// discernible turn and serializes as JSON null.
type Orientation string

const (
	OrientationLeft  Orientation = "left"
	OrientationRight Orientation = "right"
	OrientationNone  Orientation = ""
)

func (o Orientation) MarshalJSON() ([]byte, error) {
	if o == OrientationNone {
		return []byte("null"), nil
	}
	return []byte(`"` + string(o) + `"`), nil
}

func (o *Orientation) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null", `""`:
		*o = OrientationNone
	case `"left"`:
		*o = OrientationLeft
	case `"right"`:
		*o = OrientationRight
	default:
		*o = OrientationNone
	}
	return nil
}

// DetectionResults summarizes what the liveness evaluator observed.
type DetectionResults struct {
	Blinks       int           `json:"blinks"`
	Orientation  Orientation   `json:"orientation"`
	Orientations []Orientation `json:"orientations"`
	FaceDetected bool          `json:"face_detected"`
}

// LivenessVerdict is the response of POST /api/v1/liveness/verify. Pass, fail,
// expired and invalid are all valid verdicts carried on HTTP 200.
type LivenessVerdict struct {
	ChallengeID      string            `json:"challenge_id"`
	Status           LivenessStatus    `json:"status"`
	Message          string            `json:"message"`
	DetectionResults *DetectionResults `json:"detection_results,omitempty"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Timestamp        string            `json:"timestamp"`
}

// ChallengeType is a liveness predicate the user must perform on camera.
type ChallengeType string

const (
	ChallengeBlink     ChallengeType = "blink"
	ChallengeTurnLeft  ChallengeType = "turn_left"
	ChallengeTurnRight ChallengeType = "turn_right"
)

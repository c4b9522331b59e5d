package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// WithMessage returns a copy with a more specific user-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    message,
		StatusCode: e.StatusCode,
		Err:        e.Err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadInput = &AppError{
		Code:       "BAD_INPUT",
		Message:    "Malformed request body or undecodable image",
		StatusCode: 400,
	}

	ErrPayloadTooLarge = &AppError{
		Code:       "PAYLOAD_TOO_LARGE",
		Message:    "Uploaded payload exceeds the configured size cap",
		StatusCode: 413,
	}

	ErrNoFaceInID = &AppError{
		Code:       "NO_FACE_IN_ID",
		Message:    "No face detected in the identity document",
		StatusCode: 400,
	}

	ErrNoFaceInSelfie = &AppError{
		Code:       "NO_FACE_IN_SELFIE",
		Message:    "No face detected in the selfie image",
		StatusCode: 400,
	}

	ErrNotReady = &AppError{
		Code:       "NOT_READY",
		Message:    "Required inference stage is not loaded",
		StatusCode: 503,
	}

	ErrChallengeNotFound = &AppError{
		Code:       "CHALLENGE_NOT_FOUND",
		Message:    "Challenge not found or expired",
		StatusCode: 404,
	}

	ErrSignatureInvalid = &AppError{
		Code:       "SIGNATURE_INVALID",
		Message:    "Challenge signature does not match",
		StatusCode: 400,
	}

	ErrTimeout = &AppError{
		Code:       "TIMEOUT",
		Message:    "Verification deadline exceeded",
		StatusCode: 504,
	}

	ErrBackendFailure = &AppError{
		Code:       "BACKEND_FAILURE",
		Message:    "Inference backend failed",
		StatusCode: 500,
	}

	ErrRateLimited = &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, slow down",
		StatusCode: 429,
	}
)

package ocr

import (
	"context"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
)

// Extractor is the OCR stage. With a sidecar client it recognizes text and
// parses the structured fields; without one it degrades to an empty
// best-effort result with zero confidence. Low confidence is never an error.
type Extractor struct {
	client *Client
}

// NewExtractor builds the stage. A nil client selects degraded mode.
func NewExtractor(client *Client) *Extractor {
	return &Extractor{client: client}
}

// Extract runs text recognition on the document image.
func (e *Extractor) Extract(ctx context.Context, img *imaging.Image) (*domain.OCRData, error) {
	if e.client == nil {
		return &domain.OCRData{
			DocumentType: domain.DocOther,
			Confidence:   0,
		}, nil
	}

	resp, err := e.client.Recognize(ctx, img.Bytes)
	if err != nil {
		return nil, domain.ErrBackendFailure.WithError(err)
	}

	docType, fields := ParseFields(resp.Text)
	return &domain.OCRData{
		DocumentType:  docType,
		Confidence:    imaging.Clamp(resp.Confidence, 0, 1),
		ExtractedText: resp.Text,
		Fields:        fields,
	}, nil
}

// Merge combines the front and back sides of a document. Front values win;
// back fills the gaps. Text is concatenated and confidence takes the higher
// of the two.
func Merge(front, back *domain.OCRData) *domain.OCRData {
	if back == nil {
		return front
	}
	if front == nil {
		return back
	}

	out := *front
	if out.DocumentType == domain.DocOther {
		out.DocumentType = back.DocumentType
	}
	if back.Confidence > out.Confidence {
		out.Confidence = back.Confidence
	}
	if back.ExtractedText != "" {
		if out.ExtractedText != "" {
			out.ExtractedText += "\n" + back.ExtractedText
		} else {
			out.ExtractedText = back.ExtractedText
		}
	}

	fillMissing(&out.Fields, &back.Fields)
	return &out
}

func fillMissing(dst, src *domain.OCRFields) {
	if dst.FullName == nil {
		dst.FullName = src.FullName
	}
	if dst.DateOfBirth == nil {
		dst.DateOfBirth = src.DateOfBirth
	}
	if dst.DocumentNumber == nil {
		dst.DocumentNumber = src.DocumentNumber
	}
	if dst.Nationality == nil {
		dst.Nationality = src.Nationality
	}
	if dst.IssueDate == nil {
		dst.IssueDate = src.IssueDate
	}
	if dst.ExpiryDate == nil {
		dst.ExpiryDate = src.ExpiryDate
	}
	if dst.PlaceOfBirth == nil {
		dst.PlaceOfBirth = src.PlaceOfBirth
	}
	if dst.Address == nil {
		dst.Address = src.Address
	}
	if dst.Gender == nil {
		dst.Gender = src.Gender
	}
}

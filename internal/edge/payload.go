// Package edge implements the public Edge Gateway: it accepts the legacy
// enduser verification contract, normalizes its document payloads and calls
// the Inference Gateway's canonical multipart API.
package edge

import (
	"strings"

	"github.com/verid-io/verid/internal/domain"
	"github.com/verid-io/verid/internal/imaging"
)

// PayloadKind tags where a legacy document carries its image.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	// PayloadMultipart is a file part of a multipart upload
	PayloadMultipart
	// PayloadBase64Flat is documents[i].base64 or documents[i].data
	PayloadBase64Flat
	// PayloadBase64Nested is documents[i].pages[0].base64
	PayloadBase64Nested
)

// DocumentPayload is the normalized image payload of one legacy document.
// Base64 carries the encoded forms; Bytes carries multipart uploads.
type DocumentPayload struct {
	Kind   PayloadKind
	Base64 string
	Bytes  []byte
}

// Decode normalizes a payload to raw image bytes under the size cap. This is
// the single place the payload variants converge.
func (p DocumentPayload) Decode(maxBytes int64) ([]byte, error) {
	switch p.Kind {
	case PayloadMultipart:
		if maxBytes > 0 && int64(len(p.Bytes)) > maxBytes {
			return nil, domain.ErrPayloadTooLarge
		}
		return p.Bytes, nil
	case PayloadBase64Flat, PayloadBase64Nested:
		img, err := imaging.DecodeBase64(p.Base64, maxBytes)
		if err != nil {
			return nil, err
		}
		return img.Bytes, nil
	default:
		return nil, domain.ErrBadInput.WithMessage("document carries no image payload")
	}
}

// Page is one page of a legacy document.
type Page struct {
	Base64 string `json:"base64"`
}

// Document is one entry of the legacy documents array. The image can live
// in three places for historical reasons; Payload picks one.
type Document struct {
	Type   string `json:"type"`
	Base64 string `json:"base64,omitempty"`
	Data   string `json:"data,omitempty"`
	Pages  []Page `json:"pages,omitempty"`
}

// VerifyRequest is the JSON body of the legacy POST /v2/enduser/verify.
type VerifyRequest struct {
	Documents []Document `json:"documents"`
}

// front-ID and selfie type labels accepted by the legacy contract
var (
	frontIDTypes = map[string]bool{
		"id_card":         true,
		"passport":        true,
		"drivers_license": true,
		"id-card":         true,
	}
	selfieTypes = map[string]bool{
		"selfie": true,
		"face":   true,
	}
)

// Payload normalizes the document's image location. The nested page form
// wins, then base64, then data.
func (d Document) Payload() DocumentPayload {
	if len(d.Pages) > 0 && d.Pages[0].Base64 != "" {
		return DocumentPayload{Kind: PayloadBase64Nested, Base64: d.Pages[0].Base64}
	}
	if d.Base64 != "" {
		return DocumentPayload{Kind: PayloadBase64Flat, Base64: d.Base64}
	}
	if d.Data != "" {
		return DocumentPayload{Kind: PayloadBase64Flat, Base64: d.Data}
	}
	return DocumentPayload{Kind: PayloadNone}
}

// ExtractImages pulls the front-ID and selfie payloads out of the legacy
// document list. The first matching document of each role wins.
func (r *VerifyRequest) ExtractImages() (idDoc, selfie DocumentPayload, err error) {
	for _, doc := range r.Documents {
		docType := strings.ToLower(strings.TrimSpace(doc.Type))
		payload := doc.Payload()
		if payload.Kind == PayloadNone {
			continue
		}

		switch {
		case frontIDTypes[docType] && idDoc.Kind == PayloadNone:
			idDoc = payload
		case selfieTypes[docType] && selfie.Kind == PayloadNone:
			selfie = payload
		}
	}

	if idDoc.Kind == PayloadNone {
		return idDoc, selfie, domain.ErrBadInput.WithMessage("no identity document found in request")
	}
	if selfie.Kind == PayloadNone {
		return idDoc, selfie, domain.ErrBadInput.WithMessage("no selfie found in request")
	}
	return idDoc, selfie, nil
}

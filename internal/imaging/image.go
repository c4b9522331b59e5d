package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/verid-io/verid/internal/domain"
)

// MaxDimension caps either side of a decoded raster. Anything larger is
// almost certainly not a document photo or a webcam frame.
const MaxDimension = 4096

// Image is a decoded raster together with its original bytes and the
// detected content type. Stage implementations receive it as a borrowed
// view and must not retain it past the call.
type Image struct {
	Raster      image.Image
	Bytes       []byte
	ContentType string
}

// Width returns the raster width in pixels.
func (i *Image) Width() int {
	return i.Raster.Bounds().Dx()
}

// Height returns the raster height in pixels.
func (i *Image) Height() int {
	return i.Raster.Bounds().Dy()
}

// Decode validates and decodes JPEG or PNG bytes.
func Decode(data []byte, maxBytes int64) (*Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrBadInput.WithError(errors.New("empty image payload"))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, domain.ErrPayloadTooLarge.WithError(
			fmt.Errorf("image is %d bytes, cap is %d", len(data), maxBytes))
	}

	raster, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrBadInput.WithError(fmt.Errorf("decode image: %w", err))
	}

	var contentType string
	switch format {
	case "jpeg":
		contentType = "image/jpeg"
	case "png":
		contentType = "image/png"
	default:
		return nil, domain.ErrBadInput.WithError(fmt.Errorf("unsupported image format %q", format))
	}

	b := raster.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, domain.ErrBadInput.WithError(errors.New("image has zero area"))
	}
	if b.Dx() > MaxDimension || b.Dy() > MaxDimension {
		return nil, domain.ErrBadInput.WithError(
			fmt.Errorf("image is %dx%d, max dimension is %d", b.Dx(), b.Dy(), MaxDimension))
	}

	return &Image{
		Raster:      raster,
		Bytes:       data,
		ContentType: contentType,
	}, nil
}

// DecodeBase64 decodes a base64 string into an Image, tolerating a
// data URI prefix (everything up to the first comma is dropped).
func DecodeBase64(encoded string, maxBytes int64) (*Image, error) {
	data, err := decodeBase64Bytes(encoded)
	if err != nil {
		return nil, domain.ErrBadInput.WithError(fmt.Errorf("decode base64: %w", err))
	}
	return Decode(data, maxBytes)
}

func decodeBase64Bytes(encoded string) ([]byte, error) {
	if idx := strings.IndexByte(encoded, ','); idx >= 0 && strings.Contains(encoded[:idx], "base64") {
		encoded = encoded[idx+1:]
	}
	encoded = strings.TrimSpace(encoded)

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err == nil {
		return data, nil
	}
	// Some browsers emit URL-safe alphabets for canvas captures.
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
}

// Package rekognition provides the AWS-backed face detector stage, selected
// with STAGE_BACKEND=rekognition. Rekognition's CompareFaces API works on
// image bytes and exposes no embeddings, so matching, OCR and liveness stay
// on their default backends.
package rekognition

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/verid-io/verid/internal/imaging"
	"github.com/verid-io/verid/internal/stage"
)

const (
	// maxImageSize is the request size limit of the Rekognition image API (5MB).
	maxImageSize = 5 * 1024 * 1024

	errCodeAccessDenied  = "AccessDeniedException"
	errCodeInvalidImage  = "InvalidImageFormatException"
	errCodeImageTooLarge = "ImageTooLargeException"
	errCodeThrottling    = "ThrottlingException"
)

var (
	ErrInvalidCredentials = errors.New("invalid AWS credentials")
	ErrImageRejected      = errors.New("image rejected by Rekognition")
)

// Config holds configuration for the Rekognition detector.
type Config struct {
	Region        string
	MinConfidence float64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 0.5,
	}
}

// api is the slice of the Rekognition client the detector uses.
type api interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// Detector locates faces through the AWS Rekognition DetectFaces API.
// Rekognition handles arbitrary input dimensions server-side, so the
// detector holds no per-size state.
type Detector struct {
	client api
	cfg    Config
}

// NewDetector builds the detector using the AWS default credential chain.
func NewDetector(ctx context.Context, cfg Config) (*Detector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &Detector{
		client: rekognition.NewFromConfig(awsCfg),
		cfg:    cfg,
	}, nil
}

// Detect returns the highest-confidence face above MinConfidence, or nil
// when Rekognition reports no faces.
func (d *Detector) Detect(ctx context.Context, img *imaging.Image) (*stage.FaceBox, error) {
	if len(img.Bytes) > maxImageSize {
		return nil, fmt.Errorf("%w: image is %d bytes, API limit is %d", ErrImageRejected, len(img.Bytes), maxImageSize)
	}

	input := &rekognition.DetectFacesInput{
		Image: &types.Image{
			Bytes: img.Bytes,
		},
		Attributes: []types.Attribute{types.AttributeDefault},
	}

	output, err := d.client.DetectFaces(ctx, input)
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case errCodeAccessDenied:
				return nil, ErrInvalidCredentials
			case errCodeInvalidImage, errCodeImageTooLarge:
				return nil, fmt.Errorf("%w: %v", ErrImageRejected, err)
			case errCodeThrottling:
				return nil, fmt.Errorf("rekognition throttled: %w", err)
			}
		}
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	var best *stage.FaceBox
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil || detail.Confidence == nil {
			continue
		}

		conf := float64(*detail.Confidence) / 100.0
		if conf < d.cfg.MinConfidence {
			continue
		}
		if best != nil && conf <= best.Confidence {
			continue
		}

		// Rekognition boxes are ratios of the frame; map them to pixels.
		w := float64(img.Width())
		h := float64(img.Height())
		best = &stage.FaceBox{
			X:          int(float64(*detail.BoundingBox.Left) * w),
			Y:          int(float64(*detail.BoundingBox.Top) * h),
			W:          int(float64(*detail.BoundingBox.Width) * w),
			H:          int(float64(*detail.BoundingBox.Height) * h),
			Confidence: conf,
		}
	}

	return best, nil
}

package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const minHMACSecretBytes = 32

type Config struct {
	// Server
	Port           int    `envconfig:"PORT" default:"8000"`
	Environment    string `envconfig:"ENV" default:"development"`
	RequestTimeout int    `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"60"`

	// Uploads
	MaxUploadSizeMB    int    `envconfig:"MAX_UPLOAD_SIZE_MB" default:"10"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Stages
	StageBackend  string `envconfig:"STAGE_BACKEND" default:"native"`
	OCRSidecarURL string `envconfig:"OCR_SIDECAR_URL" default:""`
	AWSRegion     string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Scoring
	SimilarityThreshold float64 `envconfig:"SIMILARITY_THRESHOLD" default:"0.30"`
	PendingFaceFloor    float64 `envconfig:"PENDING_FACE_FLOOR" default:"0.35"`
	PendingOCRFloor     float64 `envconfig:"PENDING_OCR_FLOOR" default:"0.5"`

	// Liveness
	HMACSecret             string `envconfig:"HMAC_SECRET" required:"true"`
	ChallengeTTLSeconds    int    `envconfig:"CHALLENGE_TTL_SECONDS" default:"120"`
	ChallengeCount         int    `envconfig:"CHALLENGE_COUNT" default:"2"`
	LivenessMinFrames      int    `envconfig:"LIVENESS_MIN_FRAMES" default:"10"`
	LivenessFaceRatioFloor float64 `envconfig:"LIVENESS_FACE_RATIO_FLOOR" default:"0.5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations that would weaken the challenge protocol.
func (c *Config) Validate() error {
	if len(c.HMACSecret) < minHMACSecretBytes {
		return fmt.Errorf("HMAC_SECRET must be at least %d bytes, got %d", minHMACSecretBytes, len(c.HMACSecret))
	}
	if c.ChallengeCount < 1 {
		return fmt.Errorf("CHALLENGE_COUNT must be at least 1, got %d", c.ChallengeCount)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in [0,1], got %f", c.SimilarityThreshold)
	}
	switch c.StageBackend {
	case "native", "rekognition":
	default:
		return fmt.Errorf("STAGE_BACKEND must be native or rekognition, got %q", c.StageBackend)
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// EdgeConfig configures the browser-facing Edge Gateway process.
type EdgeConfig struct {
	Port               int    `envconfig:"EDGE_PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	GatewayURL         string `envconfig:"GATEWAY_URL" default:"http://localhost:8000"`
	MaxUploadSizeMB    int    `envconfig:"MAX_UPLOAD_SIZE_MB" default:"10"`
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	RequestTimeout     int    `envconfig:"REQUEST_TIMEOUT_SECONDS" default:"60"`
}

func LoadEdge() (*EdgeConfig, error) {
	var cfg EdgeConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load edge config: %w", err)
	}
	return &cfg, nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *EdgeConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

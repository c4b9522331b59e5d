package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/verid-io/verid/internal/stage"
)

// StageReadiness reports per-stage load state.
type StageReadiness interface {
	Readiness() map[string]stage.Status
	Healthy() bool
}

type HealthHandler struct {
	stages StageReadiness
}

func NewHealthHandler(stages StageReadiness) *HealthHandler {
	return &HealthHandler{stages: stages}
}

type HealthResponse struct {
	Status  string                  `json:"status"`
	Models  map[string]stage.Status `json:"models"`
	Version string                  `json:"version,omitempty"`
}

// Health GET /api/v1/health - readiness of the four inference stages
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	if !h.stages.Healthy() {
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(HealthResponse{
		Status:  status,
		Models:  h.stages.Readiness(),
		Version: "0.1.0",
	})
}

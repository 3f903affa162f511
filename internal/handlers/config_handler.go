package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sintonia/internal/config"
	"sintonia/internal/models"
)

// ConfigHandler serves public application settings and the health probe
type ConfigHandler struct {
	config *config.Config
	checks []HealthCheck
}

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config, checks ...HealthCheck) *ConfigHandler {
	return &ConfigHandler{config: cfg, checks: checks}
}

// ForumBounds are the length limits the forum enforces, in characters
type ForumBounds struct {
	TitleMin  int `json:"title_min"`
	TitleMax  int `json:"title_max"`
	BodyMin   int `json:"body_min"`
	BodyMax   int `json:"body_max"`
	AnswerMin int `json:"answer_min"`
	AnswerMax int `json:"answer_max"`
}

// AppConfigResponse represents the public application configuration
type AppConfigResponse struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Environment string      `json:"environment"`
	Forum       ForumBounds `json:"forum"`
}

// HealthResponse reports the state of each dependency
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// GetAppConfig returns the public application configuration
// @Summary Get application configuration
// @Description Application metadata and the forum length limits, for the frontend
// @Tags Configuration
// @Produce json
// @Success 200 {object} AppConfigResponse
// @Router /config/app [get]
func (h *ConfigHandler) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, AppConfigResponse{
		Name:        h.config.App.Name,
		Version:     h.config.App.Version,
		Environment: h.config.App.Env,
		Forum: ForumBounds{
			TitleMin:  models.ForumTitleMinLength,
			TitleMax:  models.ForumTitleMaxLength,
			BodyMin:   models.ForumQuestionMinLength,
			BodyMax:   models.ForumQuestionMaxLength,
			AnswerMin: models.ForumAnswerMinLength,
			AnswerMax: models.ForumAnswerMaxLength,
		},
	})
}

// Health probes the database and, when enabled, Vault
// @Summary Health check
// @Tags Configuration
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *ConfigHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			slog.Warn("Health check failed", "check", check.Name, "error", err)
			resp.Checks[check.Name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}
	respondWithJSON(w, status, resp)
}

package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"prom-markup/internal/domain"
	"prom-markup/internal/middleware"
	"prom-markup/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SavePromAPIKeyRequest represents the API key payload
type SavePromAPIKeyRequest struct {
	PromAPIKey string `json:"promApiKey"`
}

// SettingsHandler handles the remote API key setting
type SettingsHandler struct {
	settingsService service.SettingsService
	logger          *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settingsService service.SettingsService, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		logger:          logger,
	}
}

// RegisterRoutes registers all settings routes
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/settings", func(r chi.Router) {
		r.Get("/prom-api-key", h.GetPromAPIKey)
		r.Put("/prom-api-key", h.SavePromAPIKey)
	})
}

// GetPromAPIKey returns the stored key and whether the remote API accepts it
func (h *SettingsHandler) GetPromAPIKey(w http.ResponseWriter, r *http.Request) {
	status, err := h.settingsService.GetAPIKey(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, status)
}

// SavePromAPIKey stores the key; a rejected key is still saved and reported as invalid
func (h *SettingsHandler) SavePromAPIKey(w http.ResponseWriter, r *http.Request) {
	var req SavePromAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Save API key decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, err := h.settingsService.SaveAPIKey(r.Context(), req.PromAPIKey)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialMissing) {
			middleware.RespondWithKeyedError(w, http.StatusBadRequest, middleware.ErrorKeyPromAPIKey, domain.ErrCredentialMissing.Error())
			return
		}
		respondWithServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Prom API key saved", zap.Bool("is_valid", status.IsValid))
	middleware.RespondWithJSON(w, http.StatusOK, status)
}

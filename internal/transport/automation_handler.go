package transport

import (
	"net/http"

	"prom-markup/internal/middleware"
	"prom-markup/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	errorKeyAutomations = "automations"
	errorKeyAutomation  = "automation"
)

// AutomationHandler handles HTTP requests for scheduled markups
type AutomationHandler struct {
	automationService service.AutomationService
	logger            *zap.Logger
}

// NewAutomationHandler creates a new AutomationHandler
func NewAutomationHandler(automationService service.AutomationService, logger *zap.Logger) *AutomationHandler {
	return &AutomationHandler{
		automationService: automationService,
		logger:            logger,
	}
}

// RegisterRoutes registers all automation routes
func (h *AutomationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/automations", func(r chi.Router) {
		r.Get("/", h.ListAutomations)
		r.Delete("/{id}", h.RemoveAutomation)
	})
}

// ListAutomations returns every automation with the group it re-runs
func (h *AutomationHandler) ListAutomations(w http.ResponseWriter, r *http.Request) {
	automations, err := h.automationService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list automations", zap.Error(err))
		middleware.RespondWithKeyedError(w, http.StatusInternalServerError, errorKeyAutomations, "Failed to get automations")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, automations)
}

// RemoveAutomation disarms and deletes an automation
func (h *AutomationHandler) RemoveAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.automationService.Remove(r.Context(), id); err != nil {
		h.logger.Error("Failed to remove automation", zap.String("automation_id", id.String()), zap.Error(err))
		middleware.RespondWithKeyedError(w, http.StatusInternalServerError, errorKeyAutomation, "Failed to remove automation")
		return
	}

	h.logger.Info("Automation removed", zap.String("automation_id", id.String()))
	middleware.RespondWithJSON(w, http.StatusOK, nil)
}

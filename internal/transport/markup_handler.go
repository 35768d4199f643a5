package transport

import (
	"errors"
	"net/http"

	"prom-markup/internal/domain"
	"prom-markup/internal/middleware"
	"prom-markup/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AutomationRequest schedules the resolved changes instead of sending them now
type AutomationRequest struct {
	Frequency string `json:"frequency" validate:"required"`
	StartTime string `json:"startTime" validate:"required"`
}

// RunMarkupRequest represents the markup submission payload
type RunMarkupRequest struct {
	CatalogURLs      []string                 `json:"catalogUrls" validate:"required,min=1,dive,url"`
	Automation       *AutomationRequest       `json:"automation,omitempty"`
	GlobalSettings   *domain.GlobalSetting    `json:"globalSettings,omitempty"`
	CategorySettings []domain.CategorySetting `json:"categorySettings,omitempty" validate:"dive"`
	OfferSettings    []domain.OfferSetting    `json:"offerSettings,omitempty" validate:"dive"`
}

func (req *RunMarkupRequest) toInput() service.RunMarkupInput {
	input := service.RunMarkupInput{
		CatalogURLs: req.CatalogURLs,
		Settings: domain.MarkupSettings{
			Global:           req.GlobalSettings,
			CategorySettings: req.CategorySettings,
			OfferSettings:    req.OfferSettings,
		},
	}
	if req.Automation != nil {
		input.Automation = &service.AutomationInput{
			Frequency: req.Automation.Frequency,
			StartTime: req.Automation.StartTime,
		}
	}
	return input
}

// MarkupHandler handles markup runs and the change history they leave behind
type MarkupHandler struct {
	markupService service.MarkupService
	logger        *zap.Logger
}

// NewMarkupHandler creates a new MarkupHandler
func NewMarkupHandler(markupService service.MarkupService, logger *zap.Logger) *MarkupHandler {
	return &MarkupHandler{
		markupService: markupService,
		logger:        logger,
	}
}

// RegisterRoutes registers markup and changes routes
func (h *MarkupHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/markups", h.RunMarkup)

	r.Route("/api/changes", func(r chi.Router) {
		r.Get("/logs", h.ListLogs)
		r.Get("/groups/{id}", h.GetGroup)
		r.Delete("/groups/{id}", h.DeleteGroup)
	})
}

// RunMarkup resolves the submitted settings and either applies them now or schedules them
func (h *MarkupHandler) RunMarkup(w http.ResponseWriter, r *http.Request) {
	var req RunMarkupRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Markup validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	result, err := h.markupService.Run(r.Context(), req.toInput())
	if err != nil {
		h.logger.Warn("Markup run failed", zap.Error(err))

		// The group was saved but applying it failed; it stays in the history with a failed log
		if result != nil && (errors.Is(err, domain.ErrRemoteUpdateFailed) || errors.Is(err, domain.ErrCredentialMissing)) {
			key, message := middleware.ErrorKeyPromAPI, "Failed to update prices"
			if errors.Is(err, domain.ErrCredentialMissing) {
				key, message = middleware.ErrorKeyPromAPIKey, domain.ErrCredentialMissing.Error()
			}
			middleware.RespondWithEnvelope(w, http.StatusBadGateway, middleware.Envelope{
				Data:  result,
				Error: map[string]middleware.ErrorDetail{key: {Message: message}},
			})
			return
		}

		respondWithServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("Markup run completed",
		zap.String("changes_group_id", result.ChangesGroup.ID.String()),
		zap.Bool("scheduled", result.Automation != nil),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, result)
}

// ListLogs returns a page of change logs joined with their groups
func (h *MarkupHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	page, err := intQueryParam(r, "page")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage, err := intQueryParam(r, "perPage")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := h.markupService.ListLogs(r.Context(), page, perPage)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, logs)
}

// GetGroup returns a changes group with all of its offer changes
func (h *MarkupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	group, err := h.markupService.GetGroup(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, group)
}

// DeleteGroup removes a changes group together with its logs and automations
func (h *MarkupHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.markupService.DeleteGroup(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, nil)
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

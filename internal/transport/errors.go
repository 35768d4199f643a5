package transport

import (
	"errors"
	"net/http"
	"strconv"

	"prom-markup/internal/domain"
	"prom-markup/internal/markup"
	"prom-markup/internal/middleware"

	"go.uber.org/zap"
)

// respondWithServiceError maps a service error to its HTTP status and envelope key
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrChangesGroupNotFound),
		errors.Is(err, domain.ErrAutomationNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, domain.ErrCatalogNotLoaded):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())

	case errors.Is(err, domain.ErrUnsupportedFrequency),
		errors.Is(err, domain.ErrInvalidStartTime),
		errors.Is(err, domain.ErrCyclicCategoryGraph),
		errors.Is(err, markup.ErrInvalidSettings):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, domain.ErrCredentialMissing):
		middleware.RespondWithKeyedError(w, http.StatusBadRequest, middleware.ErrorKeyPromAPIKey, domain.ErrCredentialMissing.Error())

	case errors.Is(err, domain.ErrCredentialInvalid):
		middleware.RespondWithKeyedError(w, http.StatusBadGateway, middleware.ErrorKeyPromAPIKey, domain.ErrCredentialInvalid.Error())

	case errors.Is(err, domain.ErrRemoteUpdateFailed):
		middleware.RespondWithKeyedError(w, http.StatusBadGateway, middleware.ErrorKeyPromAPI, "Failed to update prices")

	default:
		logger.Error("Unhandled service error", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondWithDecodeError answers a body that failed to decode or validate
func respondWithDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// intQueryParam reads a non-negative integer query parameter; absent means 0
func intQueryParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errInvalidQueryParam{name: name}
	}
	return v, nil
}

type errInvalidQueryParam struct {
	name string
}

func (e errInvalidQueryParam) Error() string {
	return "invalid query parameter " + e.name
}

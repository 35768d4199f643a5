package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Error keys used by the API envelope
const (
	ErrorKeyGeneral    = "general"
	ErrorKeyValidation = "validation"
	ErrorKeyPromAPI    = "promApi"
	ErrorKeyPromAPIKey = "promApiKey"
)

// Envelope is the uniform response body of every API endpoint
type Envelope struct {
	IsSuccess bool                   `json:"isSuccess"`
	Data      interface{}            `json:"data,omitempty"`
	Error     map[string]ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// RespondWithError sends an envelope carrying a single error under the general key
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithKeyedError(w, statusCode, ErrorKeyGeneral, message)
}

// RespondWithKeyedError sends an envelope carrying a single error under key
func RespondWithKeyedError(w http.ResponseWriter, statusCode int, key, message string) {
	RespondWithEnvelope(w, statusCode, Envelope{
		Error: map[string]ErrorDetail{key: {Message: message}},
	})
}

// RespondWithValidationErrors sends validation error response
func RespondWithValidationErrors(w http.ResponseWriter, errors []ValidationError) {
	RespondWithEnvelope(w, http.StatusBadRequest, Envelope{
		Error: map[string]ErrorDetail{
			ErrorKeyValidation: {Message: "validation failed", Details: errors},
		},
	})
}

// ErrorHandlingMiddleware catches panics and converts them to 500 errors
func ErrorHandlingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("Panic recovered",
						zap.Any("error", err),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
					)

					RespondWithError(w, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RespondWithJSON sends a successful envelope wrapping payload
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	RespondWithEnvelope(w, statusCode, Envelope{IsSuccess: true, Data: payload})
}

// RespondWithEnvelope writes env as is
func RespondWithEnvelope(w http.ResponseWriter, statusCode int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(env)
}

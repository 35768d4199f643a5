package middleware

import (
	"net/http"
	"slices"

	"go.uber.org/zap"
)

// Token scopes
const (
	ScopeRead  = "markup:read"
	ScopeWrite = "markup:write"
)

// RequireScope ensures the authenticated token carries scope
func RequireScope(scope string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopes, ok := GetScopes(r.Context())
			if !ok {
				logger.Warn("Scopes not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			if !slices.Contains(scopes, scope) {
				operator, _ := GetOperator(r.Context())
				logger.Warn("Operator attempted a call outside its scopes",
					zap.String("operator", operator),
					zap.String("required_scope", scope),
					zap.String("path", r.URL.Path),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireScopeByMethod requires ScopeRead for safe methods and ScopeWrite for everything else
func RequireScopeByMethod(logger *zap.Logger) func(http.Handler) http.Handler {
	read := RequireScope(ScopeRead, logger)
	write := RequireScope(ScopeWrite, logger)

	return func(next http.Handler) http.Handler {
		readHandler := read(next)
		writeHandler := write(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				readHandler.ServeHTTP(w, r)
			default:
				writeHandler.ServeHTTP(w, r)
			}
		})
	}
}

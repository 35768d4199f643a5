package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prom-markup/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "server-test-secret"

type fakeDatabase struct {
	status string
	closed bool
}

func (f *fakeDatabase) DB() *sql.DB { return nil }

func (f *fakeDatabase) Health(ctx context.Context) map[string]string {
	return map[string]string{"status": f.status}
}

func (f *fakeDatabase) Close() error {
	f.closed = true
	return nil
}

func testConfig(secret string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: "0", Env: "test", AllowedOrigins: []string{"http://localhost:5173"}},
		JWT:     config.JWTConfig{Secret: secret},
		PromAPI: config.PromAPIConfig{BaseURL: "http://prom.invalid/api/v1/", Timeout: time.Second, BatchSize: 100},
		Feed:    config.FeedConfig{Timeout: time.Second},
	}
}

func newTestServer(t *testing.T, secret, dbStatus string) (*Server, *fakeDatabase) {
	t.Helper()
	db := &fakeDatabase{status: dbStatus}
	srv, err := NewServer(testConfig(secret), zap.NewNop(), db)
	require.NoError(t, err)
	return srv, db
}

func serve(srv *Server, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader("{}"))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	return w
}

func operatorToken(t *testing.T, scope string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "operator-1",
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		dbStatus string
		want     int
	}{
		{"database up", "up", http.StatusOK},
		{"database down", "down", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, "", tt.dbStatus)

			w := serve(srv, http.MethodGet, "/health", "")
			assert.Equal(t, tt.want, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.want == http.StatusOK, body["isSuccess"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "", "up")

	w := serve(srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIWithoutAuth(t *testing.T) {
	srv, _ := newTestServer(t, "", "up")

	w := serve(srv, http.MethodGet, "/api/catalogs/categories?url=https://a.example/feed.xml", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAPIWithAuth(t *testing.T) {
	srv, _ := newTestServer(t, testSecret, "up")

	tests := []struct {
		name   string
		method string
		target string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/api/catalogs/offers?url=https://a.example/feed.xml", "", http.StatusUnauthorized},
		{"read scope may read", http.MethodGet, "/api/catalogs/offers?url=https://a.example/feed.xml", operatorToken(t, "markup:read"), http.StatusOK},
		{"read scope may not write", http.MethodPost, "/api/markups", operatorToken(t, "markup:read"), http.StatusForbidden},
		{"health stays public", http.MethodGet, "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(srv, tt.method, tt.target, tt.token)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestClose(t *testing.T) {
	srv, db := newTestServer(t, "", "up")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, srv.Close(ctx))
	assert.True(t, db.closed)
}

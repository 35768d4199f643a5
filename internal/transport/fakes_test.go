package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prom-markup/internal/catalog"
	"prom-markup/internal/domain"
	"prom-markup/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeCatalogService struct {
	store  *catalog.Store
	result *service.LoadCatalogsResult
	loaded []string
}

func (f *fakeCatalogService) LoadCatalogs(ctx context.Context, urls []string) *service.LoadCatalogsResult {
	f.loaded = urls
	return f.result
}

func (f *fakeCatalogService) Categories(urls []string, q catalog.Query) ([]domain.Category, error) {
	return f.store.Categories(urls, q)
}

func (f *fakeCatalogService) Offers(urls []string, q catalog.Query) []domain.Offer {
	return f.store.Offers(urls, q)
}

type fakeMarkupService struct {
	input     service.RunMarkupInput
	result    *service.RunMarkupResult
	err       error
	groups    map[uuid.UUID]*domain.ChangesGroup
	logsPage  *service.LogsPage
	logsArgs  [2]int
	deleteErr error
}

func (f *fakeMarkupService) Run(ctx context.Context, input service.RunMarkupInput) (*service.RunMarkupResult, error) {
	f.input = input
	return f.result, f.err
}

func (f *fakeMarkupService) ListLogs(ctx context.Context, page, perPage int) (*service.LogsPage, error) {
	f.logsArgs = [2]int{page, perPage}
	return f.logsPage, nil
}

func (f *fakeMarkupService) GetGroup(ctx context.Context, id uuid.UUID) (*domain.ChangesGroup, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, domain.ErrChangesGroupNotFound
	}
	return group, nil
}

func (f *fakeMarkupService) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.groups[id]; !ok {
		return domain.ErrChangesGroupNotFound
	}
	delete(f.groups, id)
	return nil
}

type fakeAutomationService struct {
	entries []*domain.AutomationEntry
	removed []uuid.UUID
	err     error
}

func (f *fakeAutomationService) List(ctx context.Context) ([]*domain.AutomationEntry, error) {
	return f.entries, f.err
}

func (f *fakeAutomationService) Remove(ctx context.Context, id uuid.UUID) error {
	f.removed = append(f.removed, id)
	return f.err
}

type fakeSettingsService struct {
	key   string
	valid bool
}

func (f *fakeSettingsService) GetAPIKey(ctx context.Context) (*service.APIKeyStatus, error) {
	return &service.APIKeyStatus{PromAPIKey: f.key, IsValid: f.key != "" && f.valid}, nil
}

func (f *fakeSettingsService) SaveAPIKey(ctx context.Context, key string) (*service.APIKeyStatus, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrCredentialMissing
	}
	f.key = key
	return &service.APIKeyStatus{PromAPIKey: key, IsValid: f.valid}, nil
}

type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

func newTestRouter(handlers ...routeRegistrar) http.Handler {
	r := chi.NewRouter()
	for _, h := range handlers {
		h.RegisterRoutes(r)
	}
	return r
}

type envelope struct {
	IsSuccess bool                                `json:"isSuccess"`
	Data      json.RawMessage                     `json:"data"`
	Error     map[string]struct{ Message string } `json:"error"`
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an envelope: %v: %s", err, w.Body.String())
	}
	return w, env
}

var testLogger = zap.NewNop()

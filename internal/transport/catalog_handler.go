package transport

import (
	"net/http"

	"prom-markup/internal/catalog"
	"prom-markup/internal/middleware"
	"prom-markup/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoadCatalogsRequest represents the catalog load payload
type LoadCatalogsRequest struct {
	CatalogURLs []string `json:"catalogUrls" validate:"required,min=1,dive,url"`
}

type catalogQuery struct {
	URLs     []string `validate:"required,min=1,dive,url"`
	Page     int
	PageSize int `validate:"lte=1000"`
	Search   string
}

// CatalogHandler handles HTTP requests for loaded catalogs
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes registers all catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/catalogs", func(r chi.Router) {
		r.Post("/load", h.LoadCatalogs)
		r.Get("/categories", h.GetCategories)
		r.Get("/offers", h.GetOffers)
	})
}

// LoadCatalogs downloads every URL and reports per-URL counts or errors.
// Errors are keyed by catalog URL and do not hide the URLs that loaded.
func (h *CatalogHandler) LoadCatalogs(w http.ResponseWriter, r *http.Request) {
	var req LoadCatalogsRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Load catalogs validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	result := h.catalogService.LoadCatalogs(r.Context(), req.CatalogURLs)

	env := middleware.Envelope{
		IsSuccess: !result.HasErrors(),
		Data:      result.Data,
	}
	status := http.StatusOK
	if result.HasErrors() {
		env.Error = make(map[string]middleware.ErrorDetail, len(result.Errors))
		for url, message := range result.Errors {
			env.Error[url] = middleware.ErrorDetail{Message: message}
		}
		if len(result.Data) == 0 {
			status = http.StatusBadGateway
		}
	}

	middleware.RespondWithEnvelope(w, status, env)
}

// GetCategories handles category listing across the requested catalogs
func (h *CatalogHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	categories, err := h.catalogService.Categories(q.URLs, catalog.Query{Search: q.Search, Page: q.Page, PageSize: q.PageSize})
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// GetOffers handles offer listing; catalogs that are not loaded contribute nothing
func (h *CatalogHandler) GetOffers(w http.ResponseWriter, r *http.Request) {
	q, ok := h.parseQuery(w, r)
	if !ok {
		return
	}

	offers := h.catalogService.Offers(q.URLs, catalog.Query{Search: q.Search, Page: q.Page, PageSize: q.PageSize})
	middleware.RespondWithJSON(w, http.StatusOK, offers)
}

func (h *CatalogHandler) parseQuery(w http.ResponseWriter, r *http.Request) (*catalogQuery, bool) {
	page, err := intQueryParam(r, "page")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	pageSize, err := intQueryParam(r, "pageSize")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	q := &catalogQuery{
		URLs:     r.URL.Query()["url"],
		Page:     page,
		PageSize: pageSize,
		Search:   r.URL.Query().Get("query"),
	}
	if err := middleware.ValidateRequest(q); err != nil {
		respondWithDecodeError(w, err)
		return nil, false
	}

	return q, true
}

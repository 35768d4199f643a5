package service

import (
	"context"
	"time"

	"prom-markup/internal/catalog"
	"prom-markup/internal/domain"
	"prom-markup/internal/metrics"

	"go.uber.org/zap"
)

// CatalogFetcher downloads and parses one feed
type CatalogFetcher interface {
	Fetch(ctx context.Context, url string) (*domain.CatalogSnapshot, error)
}

// LoadCatalogsResult maps every requested URL either to its stats or to an error message
type LoadCatalogsResult struct {
	Data   map[string]domain.CatalogStats
	Errors map[string]string
}

func (r *LoadCatalogsResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// CatalogService defines the interface for catalog loading and browsing
type CatalogService interface {
	LoadCatalogs(ctx context.Context, urls []string) *LoadCatalogsResult
	Categories(urls []string, q catalog.Query) ([]domain.Category, error)
	Offers(urls []string, q catalog.Query) []domain.Offer
}

type catalogService struct {
	store   *catalog.Store
	fetcher CatalogFetcher
	logger  *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(store *catalog.Store, fetcher CatalogFetcher, logger *zap.Logger) CatalogService {
	return &catalogService{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// LoadCatalogs loads the URLs one after another. A failing URL does not stop
// the others and keeps its previously cached snapshot.
func (s *catalogService) LoadCatalogs(ctx context.Context, urls []string) *LoadCatalogsResult {
	result := &LoadCatalogsResult{
		Data:   make(map[string]domain.CatalogStats),
		Errors: make(map[string]string),
	}

	for _, url := range urls {
		started := time.Now()
		stats, err := s.loadCatalog(ctx, url)
		metrics.RecordCatalogLoad(url, stats.NumberOfProducts, time.Since(started), err)

		if err != nil {
			s.logger.Warn("Failed to load catalog",
				zap.String("catalog_url", url),
				zap.Error(err),
			)
			result.Errors[url] = err.Error()
			continue
		}

		s.logger.Info("Catalog loaded",
			zap.String("catalog_url", url),
			zap.Int("offers", stats.NumberOfProducts),
			zap.Int("categories", stats.NumberOfCategories),
			zap.Duration("duration", time.Since(started)),
		)
		result.Data[url] = stats
	}

	return result
}

func (s *catalogService) loadCatalog(ctx context.Context, url string) (domain.CatalogStats, error) {
	snapshot, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.CatalogStats{}, err
	}

	categories, err := catalog.AggregateOfferCounts(snapshot.Categories, snapshot.Offers)
	if err != nil {
		return domain.CatalogStats{}, err
	}
	snapshot.Categories = categories

	s.store.Set(url, snapshot)

	return domain.CatalogStats{
		NumberOfProducts:   len(snapshot.Offers),
		NumberOfCategories: len(snapshot.Categories),
	}, nil
}

func (s *catalogService) Categories(urls []string, q catalog.Query) ([]domain.Category, error) {
	return s.store.Categories(urls, q)
}

func (s *catalogService) Offers(urls []string, q catalog.Query) []domain.Offer {
	return s.store.Offers(urls, q)
}

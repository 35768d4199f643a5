package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"prom-markup/internal/domain"
)

// Query narrows a catalog listing. Page is 1-based; PageSize 0 returns everything.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// Store keeps the most recently loaded snapshot of every catalog URL in memory
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.CatalogSnapshot
}

func NewStore() *Store {
	return &Store{snapshots: make(map[string]*domain.CatalogSnapshot)}
}

// Set replaces the snapshot held for url
func (s *Store) Set(url string, snapshot *domain.CatalogSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[url] = snapshot
}

func (s *Store) Get(url string) (*domain.CatalogSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[url]
	return snapshot, ok
}

func (s *Store) Clear(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, url)
}

func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = make(map[string]*domain.CatalogSnapshot)
}

// URLs lists the loaded catalog URLs in lexical order
func (s *Store) URLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	urls := make([]string, 0, len(s.snapshots))
	for url := range s.snapshots {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}

// Offers concatenates the offers of the given catalogs in URL order, keeps
// those whose name contains the search text and returns the requested page.
// URLs that were never loaded contribute nothing.
func (s *Store) Offers(urls []string, q Query) []domain.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	offers := []domain.Offer{}
	for _, url := range urls {
		snapshot, ok := s.snapshots[url]
		if !ok {
			continue
		}
		for _, o := range snapshot.Offers {
			if search != "" && !strings.Contains(strings.ToLower(o.Name), search) {
				continue
			}
			offers = append(offers, o)
		}
	}

	return paginate(offers, q.Page, q.PageSize)
}

// Categories works like Offers but matches the search text as a prefix of the
// category name or id, and fails with ErrCatalogNotLoaded for an unknown URL.
func (s *Store) Categories(urls []string, q Query) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	categories := []domain.Category{}
	for _, url := range urls {
		snapshot, ok := s.snapshots[url]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogNotLoaded, url)
		}
		for _, c := range snapshot.Categories {
			if search != "" &&
				!strings.HasPrefix(strings.ToLower(c.Name), search) &&
				!strings.HasPrefix(strings.ToLower(c.ID), search) {
				continue
			}
			categories = append(categories, c)
		}
	}

	return paginate(categories, q.Page, q.PageSize), nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

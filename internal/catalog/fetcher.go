package catalog

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"prom-markup/internal/domain"
)

const userAgent = "prom-markup/1.0"

// Fetcher downloads and parses YML feeds over HTTP
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a fetcher whose requests give up after timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewFetcherWithClient is used by tests to point the fetcher at a fake server
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{httpClient: client}
}

// Fetch downloads url and parses it. Offer counts are not aggregated yet.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.CatalogSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download catalog: unexpected status %d", resp.StatusCode)
	}

	snapshot, err := ParseReader(resp.Body)
	if err != nil {
		return nil, err
	}
	snapshot.LoadedAt = time.Now()
	return snapshot, nil
}

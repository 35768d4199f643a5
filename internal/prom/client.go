package prom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prom-markup/internal/domain"
	"prom-markup/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://my.prom.ua/api/v1/"
	DefaultTimeout   = 2 * time.Minute
	DefaultBatchSize = 100

	userAgent = "prom-markup/1.0"
)

// TokenSource supplies the bearer token attached to every request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	BatchSize         int
}

// Client talks to the Prom.ua seller API
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tokens     TokenSource
	limiter    *rate.Limiter
	batchSize  int
	logger     *zap.Logger
}

type productEdit struct {
	ID       string   `json:"id"`
	Presence string   `json:"presence"`
	Price    float64  `json:"price"`
	OldPrice *float64 `json:"oldprice"`
}

type editResponse struct {
	Errors map[string]json.RawMessage `json:"errors"`
}

func NewClient(cfg Config, tokens TokenSource, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid prom api base url: %w", err)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		tokens:     tokens,
		limiter:    rate.NewLimiter(limit, 1),
		batchSize:  cfg.BatchSize,
		logger:     logger,
	}, nil
}

// UpdateProducts sends changes in sequential batches. A non-2xx batch aborts the
// remaining batches with ErrRemoteUpdateFailed; offers listed in a batch's
// errors map are reported as failed and the run continues.
func (c *Client) UpdateProducts(ctx context.Context, changes []domain.OfferChange) ([]domain.OfferChangeResult, error) {
	results := make([]domain.OfferChangeResult, 0, len(changes))

	for start := 0; start < len(changes); start += c.batchSize {
		end := start + c.batchSize
		if end > len(changes) {
			end = len(changes)
		}

		batchResults, err := c.updateBatch(ctx, changes[start:end])
		if err != nil {
			return results, err
		}
		results = append(results, batchResults...)
	}

	return results, nil
}

func (c *Client) updateBatch(ctx context.Context, batch []domain.OfferChange) ([]domain.OfferChangeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", domain.ErrRemoteUpdateFailed, err)
	}

	body := make([]productEdit, len(batch))
	for i, change := range batch {
		body[i] = productEdit{
			ID:       change.OfferID,
			Presence: "available",
			Price:    change.NewPrice,
			OldPrice: change.OldPrice,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode products: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "products/edit_by_external_id", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteBatch(0, time.Since(started))
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUpdateFailed, err)
	}
	defer resp.Body.Close()
	metrics.RecordRemoteBatch(resp.StatusCode, time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrRemoteUpdateFailed, resp.StatusCode)
	}

	var decoded editResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrRemoteUpdateFailed, err)
	}

	results := make([]domain.OfferChangeResult, len(batch))
	failed := 0
	for i, change := range batch {
		reason, rejected := decoded.Errors[change.OfferID]
		if rejected {
			failed++
			c.logger.Warn("Remote platform rejected offer update",
				zap.String("offer_id", change.OfferID),
				zap.Float64("new_price", change.NewPrice),
				zap.ByteString("reason", reason),
			)
		}
		results[i] = domain.OfferChangeResult{OfferID: change.OfferID, IsSuccess: !rejected}
	}
	metrics.RecordRemoteOffers(len(batch)-failed, failed)

	return results, nil
}

// CheckCredential probes the API with the current token. It returns
// ErrCredentialMissing for an empty token and ErrCredentialInvalid for any
// answer other than 200.
func (c *Client) CheckCredential(ctx context.Context) error {
	query := url.Values{}
	query.Set("limit", "1")

	req, err := c.newRequest(ctx, http.MethodGet, "products/list", query, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCredentialInvalid, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrCredentialInvalid, resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read api key: %w", err)
	}
	if token == "" {
		return nil, domain.ErrCredentialMissing
	}

	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})
	if query != nil {
		endpoint.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
)

const serpAPIEndpoint = "https://serpapi.com/search.json"

// SerpAPIProvider queries Google News through SerpAPI.
type SerpAPIProvider struct {
	apiKey     string
	httpClient *http.Client
	// minimal politeness gap between calls
	rateLimit time.Duration
	lastCall  time.Time
}

// NewSerpAPIProvider creates a SerpAPI provider. The API key is required.
func NewSerpAPIProvider(apiKey string) (*SerpAPIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("SEARCH_API_KEY not set: %w", core.ErrConfigMissing)
	}
	return &SerpAPIProvider{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		rateLimit:  time.Second,
	}, nil
}

func (p *SerpAPIProvider) Name() string { return "serpapi" }

// Search runs one news query against SerpAPI's Google News engine.
func (p *SerpAPIProvider) Search(ctx context.Context, query string, cfg Config) ([]core.RawArticle, error) {
	if elapsed := time.Since(p.lastCall); elapsed < p.rateLimit {
		select {
		case <-time.After(p.rateLimit - elapsed):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.lastCall = time.Now()

	num := cfg.NumResults
	if num <= 0 {
		num = 10
	}
	if num > core.MaxSearchResults {
		num = core.MaxSearchResults
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("tbm", "nws")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))
	params.Set("api_key", p.apiKey)
	if cfg.Language != "" {
		params.Set("hl", cfg.Language)
	}
	if cfg.Country != "" {
		params.Set("gl", cfg.Country)
	}
	if cfg.TimeWindow != "" {
		params.Set("tbs", "qdr:"+TimeWindowParam(cfg.TimeWindow))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpAPIEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request failed: %w: %v", core.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serpapi returned status %d: %s: %w", resp.StatusCode, string(body), core.ErrUpstreamUnavailable)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode serpapi response: %w", core.ErrParseFailed)
	}

	records := Normalize(payload)
	logger.Debug("serpapi search completed", "query", query, "results", len(records))
	return records, nil
}

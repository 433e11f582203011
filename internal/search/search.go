// Package search adapts upstream news-search providers to a uniform
// article record.
package search

import (
	"context"
	"fmt"
	"strings"

	"newsmosaic/internal/core"
)

// Config holds per-call search parameters.
type Config struct {
	NumResults int
	Language   string
	Country    string
	TimeWindow string // 1d, 1w, 1m, 1y
}

// Provider is the upstream news-search port.
type Provider interface {
	// Search runs one news query and returns normalized records.
	// Records lacking a title or URL are dropped.
	Search(ctx context.Context, query string, cfg Config) ([]core.RawArticle, error)
	// Name returns the provider identifier.
	Name() string
}

// timeWindowParams maps the request time window to the provider's
// recency filter value.
var timeWindowParams = map[string]string{
	"1d": "d",
	"1w": "w",
	"1m": "m",
	"1y": "y",
}

// TimeWindowParam returns the provider filter value for a window,
// defaulting to one week for unknown windows.
func TimeWindowParam(window string) string {
	if v, ok := timeWindowParams[strings.ToLower(window)]; ok {
		return v
	}
	return "w"
}

// NewProvider creates a search provider by name.
func NewProvider(name, apiKey string) (Provider, error) {
	switch strings.ToLower(name) {
	case "serpapi", "google", "":
		return NewSerpAPIProvider(apiKey)
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", name)
	}
}

package search

import (
	"errors"
	"testing"

	"newsmosaic/internal/core"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name         string
		providerName string
		apiKey       string
		wantErr      bool
	}{
		{"serpapi with key", "serpapi", "key", false},
		{"default is serpapi", "", "key", false},
		{"serpapi without key", "serpapi", "", true},
		{"mock needs no key", "mock", "", false},
		{"unknown provider", "bing", "key", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.providerName, tt.apiKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewProvider(%q) error = %v, wantErr %v", tt.providerName, err, tt.wantErr)
			}
		})
	}
}

func TestSerpAPIProviderRequiresKey(t *testing.T) {
	_, err := NewSerpAPIProvider("")
	if !errors.Is(err, core.ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing, got %v", err)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
)

// BatchResult pairs one request's response with its position in the
// batch.
type BatchResult struct {
	Index    int       `json:"index"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ProcessBatch fans the requests out under the configured concurrency
// cap. Results come back in request order; individual failures do not
// abort the batch.
func (c *Coordinator) ProcessBatch(ctx context.Context, requests []Request) ([]BatchResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if len(requests) > maxBatchRequests {
		return nil, fmt.Errorf("batch size %d exceeds limit %d: %w",
			len(requests), maxBatchRequests, core.ErrInvariantViolation)
	}

	results := make([]BatchResult, len(requests))
	sem := make(chan struct{}, c.cfg.BatchMaxConcurrent)
	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			resp, err := c.Process(ctx, req)
			if err != nil {
				logger.Warn("batch request failed", "index", i, "error", err.Error())
				results[i] = BatchResult{Index: i, Error: err.Error()}
				return
			}
			results[i] = BatchResult{Index: i, Response: resp}
		}(i, req)
	}
	wg.Wait()
	return results, nil
}

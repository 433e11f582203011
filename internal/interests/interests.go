// Package interests manages per-user topic tag sets.
package interests

import (
	"context"
	"strings"

	"newsmosaic/internal/core"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
	"newsmosaic/internal/store"
)

// Store manages a user's bounded interest tag set.
type Store struct {
	db   *store.Store
	chat llm.ChatClient
}

// New creates an interest store. chat may be nil; Related then uses only
// the static fallback.
func New(db *store.Store, chat llm.ChatClient) *Store {
	return &Store{db: db, chat: chat}
}

// Get returns the user's interests in insertion order.
func (s *Store) Get(ctx context.Context, userID string) ([]string, error) {
	return s.db.GetInterests(ctx, userID)
}

// Add unions tags into the user's interests. When the set exceeds the cap,
// only the most recent entries are kept. Returns the resulting set.
func (s *Store) Add(ctx context.Context, userID string, tags []string) ([]string, error) {
	current, err := s.db.GetInterests(ctx, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(current))
	for _, tag := range current {
		seen[tag] = true
	}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		current = append(current, tag)
	}

	if len(current) > core.MaxInterests {
		current = current[len(current)-core.MaxInterests:]
	}

	if err := s.db.SaveInterests(ctx, userID, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Remove drops tags from the user's interests. Returns the resulting set.
func (s *Store) Remove(ctx context.Context, userID string, tags []string) ([]string, error) {
	current, err := s.db.GetInterests(ctx, userID)
	if err != nil {
		return nil, err
	}

	drop := make(map[string]bool, len(tags))
	for _, tag := range tags {
		drop[strings.TrimSpace(tag)] = true
	}

	kept := current[:0]
	for _, tag := range current {
		if !drop[tag] {
			kept = append(kept, tag)
		}
	}

	if err := s.db.SaveInterests(ctx, userID, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Clear empties the user's interests.
func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.db.SaveInterests(ctx, userID, []string{})
}

// Related returns the subset of the user's interests semantically related
// to keyword. The language model proposes candidates which are validated
// against the actual tag set; on model failure a static keyword table plus
// substring matching takes over.
func (s *Store) Related(ctx context.Context, userID, keyword string) ([]string, error) {
	current, err := s.db.GetInterests(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(current) == 0 {
		return nil, nil
	}

	if s.chat != nil {
		if related := s.relatedByModel(ctx, current, keyword); len(related) > 0 {
			return related, nil
		}
	}
	return relatedByTable(current, keyword), nil
}

func (s *Store) relatedByModel(ctx context.Context, current []string, keyword string) []string {
	prompt := relatedPrompt(current, keyword)
	resp, err := s.chat.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, llm.Options{})
	if err != nil {
		logger.Warn("related-interest model call failed", "error", err.Error())
		return nil
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" || answer == "无" {
		return nil
	}

	var related []string
	seen := map[string]bool{}
	for _, candidate := range splitTags(answer) {
		// only accept tags the user actually has; rejects hallucinations
		for _, tag := range current {
			if seen[tag] {
				continue
			}
			if strings.EqualFold(candidate, tag) ||
				containsFold(tag, candidate) || containsFold(candidate, tag) {
				seen[tag] = true
				related = append(related, tag)
			}
		}
	}
	return related
}

// splitTags splits a model answer on ASCII and fullwidth commas.
func splitTags(answer string) []string {
	answer = strings.ReplaceAll(answer, "、", ",")
	answer = strings.ReplaceAll(answer, "，", ",")
	var tags []string
	for _, part := range strings.Split(answer, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

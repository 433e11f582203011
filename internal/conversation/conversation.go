// Package conversation tracks per-user memory profiles and per-session
// discussion state, and retrieves memories by similarity to the current
// query.
package conversation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"newsmosaic/internal/core"
	"newsmosaic/internal/llm"
	"newsmosaic/internal/logger"
)

const (
	// memories scoring below this never surface in retrieval
	minSimilarity = 0.3
	// context bundles carry at most this many memories
	contextMemoryLimit        = 5
	contextMinImportance      = 0.4
	defaultRetentionDays      = 30
	defaultMaxMemoriesPerUser = 100
)

// ScoredMemory pairs a memory item with its similarity to the query.
type ScoredMemory struct {
	Memory core.MemoryItem `json:"memory"`
	Score  float64         `json:"score"`
}

// QueryFilter restricts which memories are considered before scoring.
type QueryFilter struct {
	Types         []core.MemoryType
	MinImportance float64
	Since         time.Time
}

// ContextBundle is the fused personalization context handed to prompts.
type ContextBundle struct {
	UserID               string                    `json:"user_id"`
	Memories             []ScoredMemory            `json:"memories"`
	PreferredCategories  []string                  `json:"preferred_categories"`
	DislikedCategories   []string                  `json:"disliked_categories"`
	CommunicationStyle   string                    `json:"communication_style"`
	ResponseFormat       string                    `json:"response_format"`
	AnalysisDepth        string                    `json:"analysis_depth"`
	Session              *core.ConversationContext `json:"session,omitempty"`
	Summary              string                    `json:"summary"`
	PersonalizationScore float64                   `json:"personalization_score"`
}

// Manager holds memory profiles and session contexts in process memory.
type Manager struct {
	mu       sync.RWMutex
	profiles map[string]*core.MemoryProfile
	sessions map[string]*core.ConversationContext

	embedder      llm.Embedder
	retentionDays int
	maxMemories   int
	now           func() time.Time
}

// NewManager creates a manager. embedder may be nil; memories then carry
// no embedding and similarity retrieval returns nothing.
func NewManager(embedder llm.Embedder) *Manager {
	return &Manager{
		profiles:      make(map[string]*core.MemoryProfile),
		sessions:      make(map[string]*core.ConversationContext),
		embedder:      embedder,
		retentionDays: defaultRetentionDays,
		maxMemories:   defaultMaxMemoriesPerUser,
		now:           time.Now,
	}
}

func (m *Manager) profile(userID string) *core.MemoryProfile {
	p, ok := m.profiles[userID]
	if !ok {
		p = &core.MemoryProfile{UserID: userID}
		m.profiles[userID] = p
	}
	return p
}

func countActive(memories []core.MemoryItem) int {
	n := 0
	for _, mem := range memories {
		if mem.Active {
			n++
		}
	}
	return n
}

// AddMemory stores a typed note about the user and returns it.
func (m *Manager) AddMemory(ctx context.Context, userID string, memType core.MemoryType,
	content string, importance float64, expiresAt *time.Time) (*core.MemoryItem, error) {

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("empty memory content: %w", core.ErrInvariantViolation)
	}

	item := core.MemoryItem{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       memType,
		Content:    content,
		Importance: core.ClampScore(importance, 0, 1),
		CreatedAt:  m.now(),
		ExpiresAt:  expiresAt,
		Active:     true,
	}

	if m.embedder != nil {
		vectors, err := m.embedder.Embed(ctx, []string{content})
		if err != nil {
			logger.Warn("memory embedding failed, storing without vector", "error", err.Error())
		} else if len(vectors) == 1 {
			item.Embedding = vectors[0]
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(userID)
	p.Memories = append(p.Memories, item)
	m.enforceCapLocked(p)
	p.TotalMemories = countActive(p.Memories)
	p.UpdatedAt = m.now()
	return &item, nil
}

// SetPreferences updates the profile's category and style preferences.
func (m *Manager) SetPreferences(userID string, preferred, disliked []string, style, format, depth string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.profile(userID)
	if preferred != nil {
		p.PreferredCategories = preferred
	}
	if disliked != nil {
		p.DislikedCategories = disliked
	}
	if style != "" {
		p.CommunicationStyle = style
	}
	if format != "" {
		p.ResponseFormat = format
	}
	if depth != "" {
		p.AnalysisDepth = depth
	}
	p.UpdatedAt = m.now()
}

// QueryMemories retrieves the user's memories most similar to query.
// Type, importance, and time filters apply before scoring.
func (m *Manager) QueryMemories(ctx context.Context, userID, query string, k int, filter QueryFilter) ([]ScoredMemory, error) {
	if k <= 0 {
		k = contextMemoryLimit
	}

	m.mu.RLock()
	p, ok := m.profiles[userID]
	var candidates []core.MemoryItem
	if ok {
		for _, mem := range p.Memories {
			if !mem.Active {
				continue
			}
			if len(filter.Types) > 0 && !containsType(filter.Types, mem.Type) {
				continue
			}
			if mem.Importance < filter.MinImportance {
				continue
			}
			if !filter.Since.IsZero() && mem.CreatedAt.Before(filter.Since) {
				continue
			}
			candidates = append(candidates, mem)
		}
	}
	m.mu.RUnlock()

	if len(candidates) == 0 || m.embedder == nil {
		return nil, nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	queryVec := vectors[0]

	var scored []ScoredMemory
	for _, mem := range candidates {
		if len(mem.Embedding) == 0 {
			continue
		}
		score := llm.CosineSimilarity(queryVec, mem.Embedding)
		if score < minSimilarity {
			continue
		}
		scored = append(scored, ScoredMemory{Memory: mem, Score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// GetRelevantContext fuses memories, session context, and user preferences
// into one bundle for prompt construction.
func (m *Manager) GetRelevantContext(ctx context.Context, userID, query, sessionID string) (*ContextBundle, error) {
	memories, err := m.QueryMemories(ctx, userID, query, contextMemoryLimit,
		QueryFilter{MinImportance: contextMinImportance})
	if err != nil {
		logger.Warn("memory retrieval failed, continuing without memories", "error", err.Error())
		memories = nil
	}

	m.mu.RLock()
	bundle := &ContextBundle{UserID: userID, Memories: memories}
	if p, ok := m.profiles[userID]; ok {
		bundle.PreferredCategories = append([]string(nil), p.PreferredCategories...)
		bundle.DislikedCategories = append([]string(nil), p.DislikedCategories...)
		bundle.CommunicationStyle = p.CommunicationStyle
		bundle.ResponseFormat = p.ResponseFormat
		bundle.AnalysisDepth = p.AnalysisDepth
	}
	if sess, ok := m.sessions[sessionID]; ok {
		copied := *sess
		bundle.Session = &copied
	}
	m.mu.RUnlock()

	bundle.Summary = summarize(bundle)
	bundle.PersonalizationScore = personalizationScore(bundle)
	return bundle, nil
}

// CleanupExpired deactivates memories past their expiry or older than the
// retention window and enforces the per-user cap. Returns the number of
// memories deactivated.
func (m *Manager) CleanupExpired(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.profiles[userID]
	if !ok {
		return 0
	}

	now := m.now()
	cutoff := now.AddDate(0, 0, -m.retentionDays)
	removed := 0
	for i := range p.Memories {
		mem := &p.Memories[i]
		if !mem.Active {
			continue
		}
		expired := mem.ExpiresAt != nil && mem.ExpiresAt.Before(now)
		stale := mem.CreatedAt.Before(cutoff)
		if expired || stale {
			mem.Active = false
			removed++
		}
	}
	removed += m.enforceCapLocked(p)
	p.TotalMemories = countActive(p.Memories)
	p.UpdatedAt = now
	return removed
}

// enforceCapLocked deactivates the oldest active memories beyond the cap.
func (m *Manager) enforceCapLocked(p *core.MemoryProfile) int {
	active := countActive(p.Memories)
	removed := 0
	for i := range p.Memories {
		if active <= m.maxMemories {
			break
		}
		mem := &p.Memories[i]
		if mem.Active {
			mem.Active = false
			active--
			removed++
		}
	}
	return removed
}

// ObserveTurn updates (creating if needed) the session's conversation
// context from one user message.
func (m *Manager) ObserveTurn(sessionID, userID, message, topic string, entities []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &core.ConversationContext{SessionID: sessionID, UserID: userID}
		m.sessions[sessionID] = sess
	}

	sess.MessageCount++
	if topic != "" && topic != sess.CurrentTopic {
		if sess.CurrentTopic != "" {
			sess.DiscussedTopics = appendUnique(sess.DiscussedTopics, sess.CurrentTopic)
		}
		sess.CurrentTopic = topic
	}
	for _, e := range entities {
		sess.MentionedNames = appendUnique(sess.MentionedNames, e)
	}
	if strings.Contains(message, "?") || strings.Contains(message, "？") {
		sess.UserQuestions = append(sess.UserQuestions, message)
	}
	sess.LastUpdatedAt = m.now()
}

// SessionContext returns the session's conversation context, or nil.
func (m *Manager) SessionContext(sessionID string) *core.ConversationContext {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil
	}
	copied := *sess
	return &copied
}

// EvictSession drops the session's conversation context.
func (m *Manager) EvictSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Profile returns a snapshot of the user's memory profile, or nil.
func (m *Manager) Profile(userID string) *core.MemoryProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil
	}
	copied := *p
	copied.Memories = append([]core.MemoryItem(nil), p.Memories...)
	return &copied
}

func summarize(b *ContextBundle) string {
	var parts []string
	if b.Session != nil && b.Session.CurrentTopic != "" {
		parts = append(parts, "当前话题: "+b.Session.CurrentTopic)
	}
	if b.Session != nil && len(b.Session.DiscussedTopics) > 0 {
		parts = append(parts, "已讨论: "+strings.Join(b.Session.DiscussedTopics, "、"))
	}
	if len(b.PreferredCategories) > 0 {
		parts = append(parts, "偏好类别: "+strings.Join(b.PreferredCategories, "、"))
	}
	for _, sm := range b.Memories {
		parts = append(parts, "记忆: "+sm.Memory.Content)
	}
	return strings.Join(parts, "\n")
}

// personalizationScore estimates how much user-specific signal the bundle
// carries, in [0, 1].
func personalizationScore(b *ContextBundle) float64 {
	score := 0.0
	if len(b.PreferredCategories) > 0 || len(b.DislikedCategories) > 0 {
		score += 0.3
	}
	if b.CommunicationStyle != "" || b.ResponseFormat != "" || b.AnalysisDepth != "" {
		score += 0.1
	}
	if b.Session != nil && b.Session.MessageCount > 0 {
		score += 0.2
	}
	score += 0.1 * float64(len(b.Memories))
	return core.ClampScore(score, 0, 1)
}

func containsType(types []core.MemoryType, t core.MemoryType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

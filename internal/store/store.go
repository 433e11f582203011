// Package store persists articles, user profiles, session memories, and
// append-only history records in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newsmosaic/internal/core"
	"newsmosaic/internal/logger"
)

// Store is the document datastore backing every persistent collection.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and initializes the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %v", core.ErrDependencyDown, err)
	}
	// sqlite allows one writer; serialize access through a single conn
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS news (
			id TEXT PRIMARY KEY,
			scope TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL,
			source TEXT,
			snippet TEXT,
			date TEXT NOT NULL,
			content TEXT,
			keywords TEXT,
			embedded INTEGER NOT NULL DEFAULT 0,
			category TEXT,
			sentiment TEXT,
			created_at TIMESTAMP,
			updated_at TIMESTAMP,
			UNIQUE(scope, title, url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_news_scope_date ON news(scope, date)`,
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			interests TEXT,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_memory (
			session_id TEXT PRIMARY KEY,
			memory TEXT NOT NULL,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			weight INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, category)
		)`,
		`CREATE TABLE IF NOT EXISTS search_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT,
			query TEXT,
			keywords TEXT,
			result_count INTEGER,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS api_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			endpoint TEXT,
			duration_ms INTEGER,
			status TEXT,
			created_at TIMESTAMP
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// --- news collection ---

// FindArticle looks up an article by its scope dedup key.
func (s *Store) FindArticle(ctx context.Context, scope, title, url string) (*core.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scope, title, url, source, snippet, date, content, keywords,
		        embedded, category, sentiment, created_at, updated_at
		 FROM news WHERE scope = ? AND title = ? AND url = ?`,
		scope, title, url)
	return scanArticle(row)
}

// GetArticle looks up an article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (*core.Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, scope, title, url, source, snippet, date, content, keywords,
		        embedded, category, sentiment, created_at, updated_at
		 FROM news WHERE id = ?`, id)
	return scanArticle(row)
}

// InsertArticle inserts a new article row.
func (s *Store) InsertArticle(ctx context.Context, a *core.Article) error {
	keywords, err := json.Marshal(a.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO news (id, scope, title, url, source, snippet, date, content,
		                   keywords, embedded, category, sentiment, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Scope, a.Title, a.URL, a.Source, a.Snippet, a.Date, a.Content,
		string(keywords), boolToInt(a.Embedded), a.Category, a.Sentiment,
		a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert article: %w", err)
	}
	return nil
}

// UpdateArticleKeywords replaces an article's keyword set.
func (s *Store) UpdateArticleKeywords(ctx context.Context, id string, keywords []string) error {
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE news SET keywords = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update keywords: %w", err)
	}
	return nil
}

// SetArticleEmbedded flips the embedded flag.
func (s *Store) SetArticleEmbedded(ctx context.Context, id string, embedded bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE news SET embedded = ?, updated_at = ? WHERE id = ?`,
		boolToInt(embedded), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set embedded flag: %w", err)
	}
	return nil
}

// ListArticles returns a scope's articles ordered newest first.
func (s *Store) ListArticles(ctx context.Context, scope string, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, title, url, source, snippet, date, content, keywords,
		        embedded, category, sentiment, created_at, updated_at
		 FROM news WHERE scope = ? ORDER BY date DESC, created_at DESC LIMIT ?`,
		scope, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// ListArticlesOlderThan returns a scope's articles dated strictly before
// cutoffDate (YYYY-MM-DD, lexicographic comparison).
func (s *Store) ListArticlesOlderThan(ctx context.Context, scope, cutoffDate string) ([]core.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, title, url, source, snippet, date, content, keywords,
		        embedded, category, sentiment, created_at, updated_at
		 FROM news WHERE scope = ? AND date < ?`,
		scope, cutoffDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// DeleteArticlesOlderThan removes a scope's articles dated strictly before
// cutoffDate and returns the number deleted.
func (s *Store) DeleteArticlesOlderThan(ctx context.Context, scope, cutoffDate string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM news WHERE scope = ? AND date < ?`, scope, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("failed to evict articles: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info("evicted stale articles", "scope", scope, "cutoff", cutoffDate, "count", n)
	}
	return n, nil
}

// CountArticles counts a scope's articles.
func (s *Store) CountArticles(ctx context.Context, scope string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM news WHERE scope = ?`, scope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return n, nil
}

// SessionStats aggregates a scope's article counts and date span.
func (s *Store) SessionStats(ctx context.Context, scope string) (*core.SessionStats, error) {
	articles, err := s.ListArticles(ctx, scope, 1000)
	if err != nil {
		return nil, err
	}

	stats := &core.SessionStats{
		Scope:         scope,
		TotalArticles: len(articles),
		KeywordCounts: map[string]int{},
	}
	for _, a := range articles {
		for _, kw := range a.Keywords {
			stats.KeywordCounts[kw]++
		}
		if stats.OldestDate == "" || a.Date < stats.OldestDate {
			stats.OldestDate = a.Date
		}
		if a.Date > stats.NewestDate {
			stats.NewestDate = a.Date
		}
	}
	return stats, nil
}

// --- users collection (interest tags) ---

// GetInterests returns a user's interest tags in insertion order.
func (s *Store) GetInterests(ctx context.Context, userID string) ([]string, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		`SELECT interests FROM users WHERE user_id = ?`, userID).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load interests: %w", err)
	}

	var interests []string
	if err := json.Unmarshal([]byte(encoded), &interests); err != nil {
		return nil, fmt.Errorf("corrupt interests for user %s: %w", userID, core.ErrParseFailed)
	}
	return interests, nil
}

// SaveInterests replaces a user's interest tags.
func (s *Store) SaveInterests(ctx context.Context, userID string, interests []string) error {
	encoded, err := json.Marshal(interests)
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (user_id, interests, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET interests = excluded.interests,
		                                    updated_at = excluded.updated_at`,
		userID, string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save interests: %w", err)
	}
	return nil
}

// --- session_memory collection ---

// GetSessionMemory loads a session's memory blob. Returns ErrNotFound when
// the session has no memory yet.
func (s *Store) GetSessionMemory(ctx context.Context, sessionID string) (*core.SessionMemory, error) {
	var encoded string
	err := s.db.QueryRowContext(ctx,
		`SELECT memory FROM session_memory WHERE session_id = ?`, sessionID).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session memory: %w", err)
	}

	var mem core.SessionMemory
	if err := json.Unmarshal([]byte(encoded), &mem); err != nil {
		return nil, fmt.Errorf("corrupt memory for session %s: %w", sessionID, core.ErrParseFailed)
	}
	return &mem, nil
}

// SaveSessionMemory upserts a session's memory blob.
func (s *Store) SaveSessionMemory(ctx context.Context, sessionID string, mem *core.SessionMemory) error {
	encoded, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("failed to encode session memory: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_memory (session_id, memory, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET memory = excluded.memory,
		                                       updated_at = excluded.updated_at`,
		sessionID, string(encoded), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session memory: %w", err)
	}
	return nil
}

// DeleteSessionMemory removes a session's memory blob.
func (s *Store) DeleteSessionMemory(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_memory WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session memory: %w", err)
	}
	return nil
}

// --- user_preferences collection ---

// BumpPreference increments a user's weight for a category.
func (s *Store) BumpPreference(ctx context.Context, userID, category string) error {
	if category == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, category, weight) VALUES (?, ?, 1)
		 ON CONFLICT(user_id, category) DO UPDATE SET weight = weight + 1`,
		userID, category)
	if err != nil {
		return fmt.Errorf("failed to bump preference: %w", err)
	}
	return nil
}

// GetPreferences returns a user's category weights.
func (s *Store) GetPreferences(ctx context.Context, userID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, weight FROM user_preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	defer rows.Close()

	prefs := map[string]int{}
	for rows.Next() {
		var category string
		var weight int
		if err := rows.Scan(&category, &weight); err != nil {
			return nil, err
		}
		prefs[category] = weight
	}
	return prefs, rows.Err()
}

// --- search_history and api_logs (append-only) ---

// AddSearchRecord appends one search-history entry.
func (s *Store) AddSearchRecord(ctx context.Context, rec core.SearchRecord) error {
	keywords, err := json.Marshal(rec.Keywords)
	if err != nil {
		return fmt.Errorf("failed to encode keywords: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_history (user_id, query, keywords, result_count, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.UserID, rec.Query, string(keywords), rec.ResultCount, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// RecentSearches returns a user's latest search records, newest first.
func (s *Store) RecentSearches(ctx context.Context, userID string, limit int) ([]core.SearchRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, query, keywords, result_count, created_at
		 FROM search_history WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load search history: %w", err)
	}
	defer rows.Close()

	var records []core.SearchRecord
	for rows.Next() {
		var rec core.SearchRecord
		var keywords string
		if err := rows.Scan(&rec.UserID, &rec.Query, &keywords, &rec.ResultCount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if keywords != "" {
			_ = json.Unmarshal([]byte(keywords), &rec.Keywords)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AddAPILog appends one pipeline-run log entry.
func (s *Store) AddAPILog(ctx context.Context, rec core.APILogRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_logs (endpoint, duration_ms, status, created_at)
		 VALUES (?, ?, ?, ?)`,
		rec.Endpoint, rec.Duration.Milliseconds(), rec.Status, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record api log: %w", err)
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*core.Article, error) {
	var a core.Article
	var keywords sql.NullString
	var source, snippet, content, category, sentiment sql.NullString
	var embedded int
	err := row.Scan(&a.ID, &a.Scope, &a.Title, &a.URL, &source, &snippet, &a.Date,
		&content, &keywords, &embedded, &category, &sentiment, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan article: %w", err)
	}

	a.Source = source.String
	a.Snippet = snippet.String
	a.Content = content.String
	a.Category = category.String
	a.Sentiment = sentiment.String
	a.Embedded = embedded != 0
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &a.Keywords); err != nil {
			return nil, fmt.Errorf("corrupt keywords for article %s: %w", a.ID, core.ErrParseFailed)
		}
	}
	return &a, nil
}

func scanArticles(rows *sql.Rows) ([]core.Article, error) {
	var articles []core.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package memory persists short per-session conversation state.
package memory

import (
	"context"
	"errors"
	"sync"

	"newsmosaic/internal/core"
	"newsmosaic/internal/store"
)

// Store keeps a bounded transcript and free-form context per session.
// Writes to the same session are serialized so concurrent turns cannot
// interleave a read-modify-write.
type Store struct {
	db *store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db *store.Store) *Store {
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}
}

func (s *Store) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// Get returns the session's memory, or nil when the session is unknown.
func (s *Store) Get(ctx context.Context, sessionID string) (*core.SessionMemory, error) {
	mem, err := s.db.GetSessionMemory(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return mem, nil
}

// Save persists the session memory, truncating the transcript to the
// most recent turns.
func (s *Store) Save(ctx context.Context, sessionID string, mem *core.SessionMemory) error {
	if mem == nil {
		return nil
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	if len(mem.ConversationHistory) > core.MaxHistoryTurns {
		mem.ConversationHistory = mem.ConversationHistory[len(mem.ConversationHistory)-core.MaxHistoryTurns:]
	}
	return s.db.SaveSessionMemory(ctx, sessionID, mem)
}

// AppendTurn adds one exchange to the session transcript, creating the
// session when absent.
func (s *Store) AppendTurn(ctx context.Context, sessionID string, turn core.ConversationTurn) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	mem, err := s.db.GetSessionMemory(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		mem = &core.SessionMemory{UserContext: map[string]string{}}
	} else if err != nil {
		return err
	}

	mem.ConversationHistory = append(mem.ConversationHistory, turn)
	if len(mem.ConversationHistory) > core.MaxHistoryTurns {
		mem.ConversationHistory = mem.ConversationHistory[len(mem.ConversationHistory)-core.MaxHistoryTurns:]
	}
	return s.db.SaveSessionMemory(ctx, sessionID, mem)
}

// Clear removes all memory for the session. Clearing an unknown session
// is not an error.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	err := s.db.DeleteSessionMemory(ctx, sessionID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

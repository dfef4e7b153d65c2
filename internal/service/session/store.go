package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/esperancapontalsul/hope/backend/internal/model/chat"
	"github.com/esperancapontalsul/hope/backend/internal/service/transcript"
)

var (
	ErrSessionIDRequired = errors.New("session id is required")
	ErrNotFound          = errors.New("session not found")
)

// Store keeps browser sessions in memory. Transcripts are held as JSON so
// that what comes back out is always the plain storage shape.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*chat.Session
	locks    map[string]*sync.Mutex
	ttl      time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after ttl of inactivity.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*chat.Session),
		locks:    make(map[string]*sync.Mutex),
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Ensure returns the live session with id, creating it when it is absent or
// expired. Expired sessions come back empty.
func (s *Store) Ensure(_ context.Context, id string) (chat.Session, error) {
	if id == "" {
		return chat.Session{}, ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	session, ok := s.sessions[id]
	if !ok || s.expired(session, now) {
		session = &chat.Session{ID: id, CreatedAt: now}
		s.sessions[id] = session
	}
	session.LastSeen = now
	return *session, nil
}

// Get retrieves a live session.
func (s *Store) Get(_ context.Context, id string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || s.expired(session, s.now()) {
		return chat.Session{}, ErrNotFound
	}
	return *session, nil
}

// Transcript returns the stored transcript of id. A missing session, an
// expired one or an unreadable payload yield whatever the decoder will make
// of it: nil means a fresh conversation.
func (s *Store) Transcript(ctx context.Context, id string) transcript.Stored {
	session, err := s.Get(ctx, id)
	if err != nil || len(session.Transcript) == 0 {
		return nil
	}

	var stored transcript.Stored
	if err := json.Unmarshal(session.Transcript, &stored); err != nil {
		// hand the decoder something it will reject so the engine logs and resets
		return transcript.Stored{string(session.Transcript)}
	}
	return stored
}

// SaveTranscript replaces the transcript of id.
func (s *Store) SaveTranscript(_ context.Context, id string, stored transcript.Stored) error {
	if id == "" {
		return ErrSessionIDRequired
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		now := s.now()
		session = &chat.Session{ID: id, CreatedAt: now}
		s.sessions[id] = session
	}
	session.Transcript = payload
	session.LastSeen = s.now()
	return nil
}

// ResetTranscript starts a new conversation for id.
func (s *Store) ResetTranscript(_ context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		session.Transcript = nil
	}
}

// Rotate moves the session stored under oldID to newID, keeping its
// transcript. The old id stops resolving.
func (s *Store) Rotate(_ context.Context, oldID, newID string) error {
	if oldID == "" || newID == "" {
		return ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[oldID]
	if !ok || s.expired(session, s.now()) {
		return ErrNotFound
	}
	if _, taken := s.sessions[newID]; taken {
		return fmt.Errorf("session id %q already in use", newID)
	}

	delete(s.sessions, oldID)
	moved := *session
	moved.ID = newID
	moved.LastSeen = s.now()
	s.sessions[newID] = &moved
	return nil
}

// SetAdmin flags or unflags the session as logged into the admin area.
func (s *Store) SetAdmin(_ context.Context, id string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	session.Admin = admin
	return nil
}

// IsAdmin reports whether the session is logged into the admin area.
func (s *Store) IsAdmin(ctx context.Context, id string) bool {
	session, err := s.Get(ctx, id)
	return err == nil && session.Admin
}

// Lock serialises turns of one session so concurrent submits cannot drop a
// turn. The returned function releases the lock.
func (s *Store) Lock(id string) func() {
	s.mu.Lock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Sweep evicts sessions idle for longer than the TTL and returns how many
// were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if !s.expired(session, now) {
			continue
		}
		delete(s.sessions, id)
		if lock, ok := s.locks[id]; ok && lock.TryLock() {
			lock.Unlock()
			delete(s.locks, id)
		}
		removed++
	}
	return removed
}

// Len reports the number of sessions held, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) expired(session *chat.Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(session.LastSeen) > s.ttl
}

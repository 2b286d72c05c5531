package session

import (
	"sync"
	"time"
)

// Gender is the classification attached to a captured name.
type Gender string

const (
	GenderUnset     Gender = ""
	GenderMasculine Gender = "masculino"
	GenderFeminine  Gender = "femenino"
	GenderUnknown   Gender = "desconocido"
)

// Stage identifies where a user sits in the onboarding flow.
type Stage int

const (
	StageNew Stage = iota
	StageAwaitingName
	StageEstablished
)

// Session captures the single onboarding fact kept per user for the life of
// the process.
type Session struct {
	UserID    int64     `json:"userId"`
	Name      string    `json:"name,omitempty"`
	Gender    Gender    `json:"gender,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stage derives the onboarding state from the stored fields.
func (s Session) Stage() Stage {
	if s.Gender == GenderUnset {
		return StageAwaitingName
	}
	return StageEstablished
}

// Store abstracts session persistence so the orchestrator never touches
// process-global state.
type Store interface {
	Get(userID int64) (Session, bool)
	Put(s Session)
	Len() int
}

// MemoryStore keeps sessions in a mutex-guarded map. Put is last-write-wins;
// the only race it admits is two first messages from the same new user, and
// both writers store the identical awaiting-name session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]Session
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

// Get retrieves the session for a user id.
func (s *MemoryStore) Get(userID int64) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Put stores or replaces the session for its user id.
func (s *MemoryStore) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.UpdatedAt = time.Now().UTC()
	if existing, ok := s.sessions[sess.UserID]; ok {
		sess.CreatedAt = existing.CreatedAt
	} else if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.UpdatedAt
	}
	s.sessions[sess.UserID] = sess
}

// Len reports how many users have a session.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Package history records message exchanges for audit and the ops surface.
// Transcripts are never fed back into prompt construction; the bot answers
// each message in isolation.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Exchange persists one inbound/outbound pair for audit/debug.
type Exchange struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Inbound   string    `json:"inbound"`
	Outbound  string    `json:"outbound"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service keeps transcripts in memory for the life of the process.
type Service struct {
	mu        sync.RWMutex
	exchanges map[int64][]Exchange
	total     int
}

// NewService bootstraps the in-memory transcript recorder.
func NewService() *Service {
	return &Service{exchanges: make(map[int64][]Exchange)}
}

// Record appends an exchange to the user's transcript.
func (s *Service) Record(userID int64, inbound, outbound string) {
	exchange := Exchange{
		ID:        uuid.NewString(),
		UserID:    userID,
		Inbound:   inbound,
		Outbound:  outbound,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.exchanges[userID] = append(s.exchanges[userID], exchange)
	s.total++
	s.mu.Unlock()
}

// Transcript returns a copy of the stored exchanges for the user.
func (s *Service) Transcript(userID int64) []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exchanges := s.exchanges[userID]
	copied := make([]Exchange, len(exchanges))
	copy(copied, exchanges)
	return copied
}

// Totals reports how many users and exchanges have been recorded.
func (s *Service) Totals() (users, exchanges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.exchanges), s.total
}

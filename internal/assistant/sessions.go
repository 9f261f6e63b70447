package assistant

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"agriassist/internal/domain"
	"agriassist/internal/metrics"
)

// Sessions holds the in-memory conversations, keyed by adapter session
// (web cookie, telegram chat, cli). Nothing is persisted; a restart starts
// every session over with the greeting turn.
type Sessions struct {
	mu     sync.RWMutex
	convs  map[string]*domain.Conversation
	logger *slog.Logger
}

func NewSessions(logger *slog.Logger) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		convs:  make(map[string]*domain.Conversation),
		logger: logger,
	}
}

// GetOrCreate returns the conversation for a session key, seeding a new
// greeted conversation on first use.
func (s *Sessions) GetOrCreate(key string) *domain.Conversation {
	s.mu.RLock()
	conv, ok := s.convs[key]
	s.mu.RUnlock()
	if ok {
		return conv
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[key]; ok {
		return conv
	}
	conv = domain.NewConversation(uuid.NewString())
	s.convs[key] = conv
	metrics.ActiveConversations.Set(int64(len(s.convs)))
	s.logger.Debug("conversation created", "session", key, "conversation", conv.ID)
	return conv
}

// Reset drops the session's conversation; the next GetOrCreate starts fresh.
func (s *Sessions) Reset(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, key)
	metrics.ActiveConversations.Set(int64(len(s.convs)))
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}

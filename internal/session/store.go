// Package session holds short-lived per-conversation turn history with
// idle-based expiry. The store is an injected abstraction so the in-memory
// map can be swapped for an external cache in multi-instance deployments.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/pkg/logger"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Store abstracts session history persistence. Implementations create a
// session on first reference to an unseen identifier. Callers that may issue
// concurrent requests for the same session must serialize them; the store
// only guarantees that individual operations are safe.
type Store interface {
	History(ctx context.Context, sessionID string) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turns ...Turn) error
	Touch(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string) error
}

// MintID derives a session identifier: the user ID plus a random suffix when
// present, otherwise a fresh UUID. Collision resistance comes from the
// random component; there is no global uniqueness registry.
func MintID(userID string) string {
	if userID == "" {
		return uuid.New().String()
	}

	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return userID + "_" + uuid.New().String()[:8]
	}
	return userID + "_" + hex.EncodeToString(suffix)
}

type memorySession struct {
	turns        []Turn
	lastActivity time.Time
}

// MemoryStore is the process-local Store with a periodic idle sweep.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*memorySession
	timeout      time.Duration
	historyLimit int

	sweepTicker *time.Ticker
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func NewMemoryStore(timeout, sweepInterval time.Duration, historyLimit int) *MemoryStore {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	s := &MemoryStore{
		sessions:     make(map[string]*memorySession),
		timeout:      timeout,
		historyLimit: historyLimit,
		sweepTicker:  time.NewTicker(sweepInterval),
		stopCh:       make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

func (s *MemoryStore) History(ctx context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(sessionID)
	history := make([]Turn, len(sess.turns))
	copy(history, sess.turns)

	return history, nil
}

func (s *MemoryStore) Append(ctx context.Context, sessionID string, turns ...Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.getOrCreateLocked(sessionID)
	sess.turns = append(sess.turns, turns...)
	if s.historyLimit > 0 && len(sess.turns) > s.historyLimit {
		sess.turns = sess.turns[len(sess.turns)-s.historyLimit:]
	}
	sess.lastActivity = time.Now()

	return nil
}

func (s *MemoryStore) Touch(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getOrCreateLocked(sessionID).lastActivity = time.Now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

// Sweep removes sessions idle beyond the timeout and returns how many were
// dropped. A sweep racing a live request only ever deletes; the next access
// recreates an empty session.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivity) > s.timeout {
			delete(s.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		logger.Debug("Idle sessions swept", zap.Int("removed", removed))
	}

	return removed
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		s.sweepTicker.Stop()
		close(s.stopCh)
	})
}

func (s *MemoryStore) getOrCreateLocked(sessionID string) *memorySession {
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &memorySession{lastActivity: time.Now()}
		s.sessions[sessionID] = sess
	}
	return sess
}

func (s *MemoryStore) sweepLoop() {
	for {
		select {
		case <-s.sweepTicker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

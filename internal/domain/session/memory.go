package session

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	deviceID  string
	expiresAt time.Time
}

// MemoryRepository - токены в памяти процесса, для сервера без базы данных.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]memorySession), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, deviceID string, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[tokenHash] = memorySession{deviceID: deviceID, expiresAt: expiresAt}
	return nil
}

func (r *MemoryRepository) Validate(_ context.Context, tokenHash string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[tokenHash]
	if !ok || !s.expiresAt.After(r.now()) {
		return "", ErrInvalidToken
	}
	return s.deviceID, nil
}

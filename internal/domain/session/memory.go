package session

import (
	"context"
	"errors"
	"sync"
)

var errMissingUID = errors.New("session: user id is required")

// MemoryStore keeps the indicators in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	byUID map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUID: map[string]map[string]string{}}
}

func (m *MemoryStore) Put(_ context.Context, in Indicator) error {
	if in.UserID == "" {
		return errMissingUID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byUID[in.UserID] = in.Fields()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byUID, uid)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, uid string) (Indicator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FromFields(m.byUID[uid]), nil
}

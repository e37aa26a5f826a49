package sessions

import (
	"context"
	"sync"

	"github.com/cordialrun/agentrt/pkg/models"
)

// MemoryStore is an in-memory Store implementation for testing and local
// runs: conversations are kept keyed by session id and cloned on every
// load/save so callers can never mutate another caller's copy.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string]*models.Conversation
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: map[string]*models.Conversation{}}
}

func (m *MemoryStore) Load(ctx context.Context, sessionID string) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.convs[sessionID]
	if !ok {
		return &models.Conversation{}, nil
	}
	return conv.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, sessionID string, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv == nil {
		conv = &models.Conversation{}
	}
	m.convs[sessionID] = conv.Clone()
	return nil
}

func (m *MemoryStore) Reset(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.convs, sessionID)
	return nil
}

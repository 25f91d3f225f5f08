package collab

import (
	"context"
	"sync"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// ConversationStore is an in-process Memory implementation. Unknown
// conversations yield an empty snapshot, so it doubles as a null store
// for one-shot requests.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*models.MemorySnapshot
}

var _ Memory = (*ConversationStore)(nil)

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{convs: make(map[string]*models.MemorySnapshot)}
}

// Retrieve returns a copy of the conversation's snapshot.
func (s *ConversationStore) Retrieve(_ context.Context, conversationID string) (models.MemorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.convs[conversationID]
	if !ok {
		return models.MemorySnapshot{ConversationID: conversationID}, nil
	}

	out := models.MemorySnapshot{
		ConversationID: conversationID,
		Turns:          snap.Turns,
		Items:          make(map[string]any, len(snap.Items)),
	}
	for k, v := range snap.Items {
		out.Items[k] = v
	}
	return out, nil
}

// AddTurn increments the conversation's turn counter.
func (s *ConversationStore) AddTurn(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot(conversationID).Turns++
}

// Remember stores a key/value item on the conversation.
func (s *ConversationStore) Remember(conversationID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot(conversationID).Items[key] = value
}

// snapshot returns the mutable snapshot for a conversation, creating
// it on first use. Callers must hold the write lock.
func (s *ConversationStore) snapshot(conversationID string) *models.MemorySnapshot {
	snap, ok := s.convs[conversationID]
	if !ok {
		snap = &models.MemorySnapshot{
			ConversationID: conversationID,
			Items:          make(map[string]any),
		}
		s.convs[conversationID] = snap
	}
	return snap
}

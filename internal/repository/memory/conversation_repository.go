package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"websearch-agent/internal/domain"
)

const (
	defaultExpiration = 24 * time.Hour
	cleanupInterval   = 30 * time.Minute
)

type conversation struct {
	messages []domain.Message
	turns    int
}

// ConversationRepository keeps conversations in process memory. It backs the
// dev server when no DynamoDB table is configured.
type ConversationRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{cache: cache.New(defaultExpiration, cleanupInterval)}
}

func (r *ConversationRepository) GetHistory(_ context.Context, conversationID string) (domain.History, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.load(conversationID)
	if !ok {
		return domain.History{}, nil
	}
	out := make([]domain.Message, len(conv.messages))
	copy(out, conv.messages)
	return domain.History{Messages: out, Turns: conv.turns}, nil
}

// SaveTurn applies removals and appends added under one lock, so readers see
// either the whole turn or none of it. It fails with
// domain.ErrConversationConflict when another turn was saved since the
// history holding expectedTurns was read.
func (r *ConversationRepository) SaveTurn(_ context.Context, conversationID string, expectedTurns int, removals []domain.RemoveMessage, added []domain.Message) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("memory: SaveTurn: conversation id is required")
	}
	for _, m := range added {
		if m.ID == "" {
			return errors.New("memory: SaveTurn: message id is required")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conv, _ := r.load(conversationID)
	if conv.turns != expectedTurns {
		return fmt.Errorf("memory: SaveTurn: %w", domain.ErrConversationConflict)
	}
	state := domain.ConversationState{Messages: conv.messages}
	state.Apply(removals)
	state.Append(added...)

	r.cache.Set(conversationID, conversation{messages: state.Messages, turns: conv.turns + 1}, cache.DefaultExpiration)
	return nil
}

func (r *ConversationRepository) load(conversationID string) (conversation, bool) {
	x, found := r.cache.Get(conversationID)
	if !found {
		return conversation{}, false
	}
	return x.(conversation), true
}

package statestore

import (
	"context"
	"log/slog"

	"github.com/taskwire/taskwire/internal/domain"
	"github.com/taskwire/taskwire/internal/platform/logger"
)

// conversationKeyPrefix namespaces conversation entries within the store.
const conversationKeyPrefix = "conversation:"

// ConversationStore externalizes chat history so any stateless replica can
// resume a conversation regardless of which replica served the previous
// turn. It sits on the hot path of every chat turn, so reads degrade to
// empty history when the state backend is unavailable instead of failing
// the request.
type ConversationStore struct {
	accessor *Accessor
	logger   *slog.Logger
}

// NewConversationStore creates a ConversationStore over the given accessor.
func NewConversationStore(accessor *Accessor, logger *slog.Logger) *ConversationStore {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ConversationStore")
	}
	return &ConversationStore{
		accessor: accessor,
		logger:   logger.With(slog.String("component", "conversation_store")),
	}
}

// Load returns the ordered message list for a conversation. An absent or
// expired conversation yields an empty list. A state-backend failure also
// yields an empty list, logged for operators, never a hard error to the
// caller.
func (s *ConversationStore) Load(ctx context.Context, conversationID string) []domain.Message {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var messages []domain.Message
	found, err := s.accessor.GetJSON(ctx, conversationKeyPrefix+conversationID, &messages)
	if err != nil {
		log.Warn("state store unavailable, degrading to empty conversation history",
			"conversation_id", conversationID,
			"error", err)
		return []domain.Message{}
	}
	if !found || messages == nil {
		return []domain.Message{}
	}
	return messages
}

// Save overwrites the full message list for a conversation with the given
// TTL in seconds. Last writer wins per conversation ID.
func (s *ConversationStore) Save(
	ctx context.Context,
	conversationID string,
	messages []domain.Message,
	ttlSeconds int,
) error {
	if messages == nil {
		messages = []domain.Message{}
	}
	return s.accessor.PutJSON(ctx, conversationKeyPrefix+conversationID, messages, ttlSeconds)
}

// Delete removes a conversation's history outright.
func (s *ConversationStore) Delete(ctx context.Context, conversationID string) error {
	return s.accessor.Delete(ctx, conversationKeyPrefix+conversationID)
}

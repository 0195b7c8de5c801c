package websearch

import "websearch-agent/internal/domain"

// MaxWindowMessages is the number of most recent messages kept in context.
const MaxWindowMessages = 10

// TrimWindow bounds messages to the most recent MaxWindowMessages entries.
// It returns the retained messages and one removal per older entry, oldest
// first. Inputs within the bound come back unchanged with no removals.
// The input slice is never modified; the caller owns applying the removals.
func TrimWindow(messages []domain.Message) ([]domain.Message, []domain.RemoveMessage) {
	if len(messages) <= MaxWindowMessages {
		return messages, nil
	}
	excess := len(messages) - MaxWindowMessages
	removals := make([]domain.RemoveMessage, 0, excess)
	for _, m := range messages[:excess] {
		removals = append(removals, domain.RemoveMessage{ID: m.ID})
	}
	return messages[excess:], removals
}

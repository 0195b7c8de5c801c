package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func msgs(ids ...string) []Message {
	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, Message{ID: id, Role: RoleUser, Content: "q-" + id})
	}
	return out
}

func TestApply_RemovesTargetedMessagesPreservingOrder(t *testing.T) {
	s := &ConversationState{Messages: msgs("a", "b", "c", "d")}
	s.Apply([]RemoveMessage{{ID: "a"}, {ID: "c"}})
	require.Equal(t, msgs("b", "d"), s.Messages)
}

func TestApply_IgnoresUnknownIDs(t *testing.T) {
	s := &ConversationState{Messages: msgs("a", "b")}
	s.Apply([]RemoveMessage{{ID: "zzz"}})
	require.Equal(t, msgs("a", "b"), s.Messages)
}

func TestApply_NoRemovalsIsIdentity(t *testing.T) {
	original := msgs("a", "b")
	s := &ConversationState{Messages: original}
	s.Apply(nil)
	require.Equal(t, original, s.Messages)
}

func TestSetSearchResults_MarksRetrieved(t *testing.T) {
	s := &ConversationState{}
	require.False(t, s.Retrieved)
	s.SetSearchResults(nil)
	require.True(t, s.Retrieved)
	require.Empty(t, s.SearchResults)
}

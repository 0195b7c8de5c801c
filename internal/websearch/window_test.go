package websearch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"websearch-agent/internal/domain"
)

func makeHistory(n int) []domain.Message {
	out := make([]domain.Message, 0, n)
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		out = append(out, domain.Message{ID: fmt.Sprintf("m%02d", i), Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return out
}

func TestTrimWindow_TwelveMessages(t *testing.T) {
	history := makeHistory(12)
	kept, removals := TrimWindow(history)

	require.Equal(t, []domain.RemoveMessage{{ID: "m00"}, {ID: "m01"}}, removals)
	require.Equal(t, history[2:], kept)
}

func TestTrimWindow_WithinBoundIsIdentity(t *testing.T) {
	for _, n := range []int{0, 1, 9, 10} {
		history := makeHistory(n)
		kept, removals := TrimWindow(history)
		require.Nil(t, removals, "n=%d", n)
		require.Equal(t, history, kept, "n=%d", n)
	}
}

func TestTrimWindow_LengthAndOrderForAllSizes(t *testing.T) {
	for n := 0; n <= 30; n++ {
		history := makeHistory(n)
		kept, removals := TrimWindow(history)

		require.Len(t, kept, min(n, MaxWindowMessages), "n=%d", n)
		require.Len(t, removals, max(0, n-MaxWindowMessages), "n=%d", n)
		for i, r := range removals {
			require.Equal(t, history[i].ID, r.ID)
		}
		require.Equal(t, history[len(removals):], kept)
	}
}

func TestTrimWindow_DoesNotModifyInput(t *testing.T) {
	history := makeHistory(15)
	snapshot := append([]domain.Message(nil), history...)
	TrimWindow(history)
	require.Equal(t, snapshot, history)
}

func TestTrimWindow_RemovalsApplyToState(t *testing.T) {
	state := &domain.ConversationState{Messages: makeHistory(14)}
	kept, removals := TrimWindow(state.Messages)
	state.Apply(removals)
	require.Equal(t, kept, state.Messages)
	require.Len(t, state.Messages, MaxWindowMessages)
}

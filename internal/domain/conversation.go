package domain

import (
	"errors"
	"time"
)

// ErrConversationConflict is returned by conversation stores when another
// turn was saved after the history was loaded.
var ErrConversationConflict = errors.New("conversation was modified concurrently")

// Message is a single conversation turn. ID is used only to target deletions.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// History is a stored conversation. Turns counts completed turns and acts as
// the version expected by the next save.
type History struct {
	Messages []Message
	Turns    int
}

// RemoveMessage instructs the conversation owner to drop the message with ID.
type RemoveMessage struct {
	ID string `json:"id"`
}

// SearchResult is one record supplied by the retrieval collaborator.
// A nil Content is valid and excludes the record from citation labelling.
type SearchResult struct {
	Content  *string        `json:"content,omitempty"`
	Title    string         `json:"title,omitempty"`
	URL      string         `json:"url,omitempty"`
	Score    float64        `json:"score,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RefinedQueryResult is the structured output of the question rewriting stage.
type RefinedQueryResult struct {
	RefinedQuestion    string `json:"refined_question"`
	RequireEnhancement bool   `json:"require_enhancement"`
}

// ConversationState is threaded through both workflow stages of a turn.
// It is not safe for concurrent use; turns of one conversation must be
// serialized by the caller.
type ConversationState struct {
	Messages []Message
	Question *Message

	// Refined is nil until the rewriting stage has run.
	Refined *RefinedQueryResult

	SearchResults []SearchResult
	// Retrieved reports whether the retrieval collaborator has populated
	// SearchResults for this turn, possibly with zero records.
	Retrieved bool
}

// SetSearchResults records the retrieval output for the turn.
func (s *ConversationState) SetSearchResults(results []SearchResult) {
	s.SearchResults = results
	s.Retrieved = true
}

// Apply removes every message targeted by removals as a single batch.
// Unknown IDs are ignored.
func (s *ConversationState) Apply(removals []RemoveMessage) {
	if len(removals) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(removals))
	for _, r := range removals {
		drop[r.ID] = struct{}{}
	}
	kept := make([]Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if _, ok := drop[m.ID]; ok {
			continue
		}
		kept = append(kept, m)
	}
	s.Messages = kept
}

// Append adds messages in temporal order.
func (s *ConversationState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

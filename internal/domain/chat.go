package domain

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// workflow stages and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JSONSchema constrains a completion to a strict structured result.
type JSONSchema struct {
	Name   string
	Schema json.RawMessage
}

// CompletionRequest is one call to the language model collaborator.
// A nil Schema requests free text.
type CompletionRequest struct {
	Model      string
	Credential string
	Messages   []ChatMessage
	Schema     *JSONSchema
}

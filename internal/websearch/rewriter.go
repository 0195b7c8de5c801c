package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"websearch-agent/internal/domain"
	"websearch-agent/internal/logger"
)

const stageRewrite = "rewrite"

// LLMClient is the language model collaborator. Complete returns raw text,
// which is a JSON document when req.Schema is set.
type LLMClient interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// ModelConfig selects the model variant and credential a stage calls with.
type ModelConfig struct {
	ModelID string
	// Credential is an opaque reference the LLM client resolves to a secret.
	Credential string
}

func (c ModelConfig) validate() error {
	if strings.TrimSpace(c.ModelID) == "" {
		return errors.New("websearch: model id must not be empty")
	}
	if strings.TrimSpace(c.Credential) == "" {
		return errors.New("websearch: credential must not be empty")
	}
	return nil
}

var refinedQuerySchema = &domain.JSONSchema{
	Name: "refined_query_result",
	Schema: json.RawMessage(`{
		"type":"object",
		"additionalProperties":false,
		"properties":{
			"refined_question":{"type":"string","description":"The user's question rewritten as a standalone question optimized for web search."},
			"require_enhancement":{"type":"boolean","description":"Whether the question needed rewriting because it was ambiguous or depended on earlier turns."}
		},
		"required":["refined_question","require_enhancement"]
	}`),
}

// RewriteResult is the outcome of the rewriting stage. Removals are the
// window deletions the conversation owner must apply.
type RewriteResult struct {
	Refined  domain.RefinedQueryResult
	Removals []domain.RemoveMessage
}

// QuestionRewriter turns the latest question into a standalone search query.
type QuestionRewriter struct {
	llm   LLMClient
	model ModelConfig
	log   logger.Logger
}

func NewQuestionRewriter(llm LLMClient, model ModelConfig, log logger.Logger) (*QuestionRewriter, error) {
	if llm == nil {
		return nil, errors.New("websearch: llm client must not be nil")
	}
	if err := model.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &QuestionRewriter{llm: llm, model: model, log: log}, nil
}

// Rewrite trims the conversation window and asks the model for a standalone
// restatement of state.Question. state is not modified.
func (r *QuestionRewriter) Rewrite(ctx context.Context, state *domain.ConversationState) (RewriteResult, error) {
	if state == nil || state.Question == nil {
		return RewriteResult{}, newError(ErrorMalformedState, stageRewrite, ReasonMissingQuestion, nil)
	}

	window, removals := TrimWindow(state.Messages)
	history := window
	if n := len(history); n > 0 && isQuestion(history[n-1], state.Question) {
		history = history[:n-1]
	}

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: rewriterSystemPrompt})
	messages = append(messages, toChatMessages(history)...)
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: state.Question.Content})

	r.log.Debug(stageRewrite, "prompt constructed", map[string]any{"messages": messages})

	raw, err := r.llm.Complete(ctx, domain.CompletionRequest{
		Model:      r.model.ModelID,
		Credential: r.model.Credential,
		Messages:   messages,
		Schema:     refinedQuerySchema,
	})
	if err != nil {
		return RewriteResult{}, newError(ErrorCollaborator, stageRewrite, ReasonLLM, err)
	}

	refined, err := parseRefinedQuery(raw)
	if err != nil {
		return RewriteResult{}, newError(ErrorCollaborator, stageRewrite, ReasonSchemaViolation, err)
	}

	r.log.Info(stageRewrite, "question refined", map[string]any{
		"refined_question":    refined.RefinedQuestion,
		"require_enhancement": refined.RequireEnhancement,
		"removals":            len(removals),
	})
	return RewriteResult{Refined: refined, Removals: removals}, nil
}

func isQuestion(m domain.Message, question *domain.Message) bool {
	if question.ID != "" {
		return m.ID == question.ID
	}
	return m.Role == domain.RoleUser && m.Content == question.Content
}

type refinedQueryPayload struct {
	RefinedQuestion    *string `json:"refined_question"`
	RequireEnhancement *bool   `json:"require_enhancement"`
}

// parseRefinedQuery validates the structured output. Both fields must be
// present and the question must not be blank.
func parseRefinedQuery(raw string) (domain.RefinedQueryResult, error) {
	var out refinedQueryPayload
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return domain.RefinedQueryResult{}, fmt.Errorf("websearch: decode refined query: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return domain.RefinedQueryResult{}, errors.New("websearch: decode refined query: multiple JSON values")
		}
		return domain.RefinedQueryResult{}, fmt.Errorf("websearch: decode refined query trailing data: %w", err)
	}
	if out.RefinedQuestion == nil {
		return domain.RefinedQueryResult{}, errors.New("websearch: refined query missing refined_question")
	}
	if out.RequireEnhancement == nil {
		return domain.RefinedQueryResult{}, errors.New("websearch: refined query missing require_enhancement")
	}
	question := strings.TrimSpace(*out.RefinedQuestion)
	if question == "" {
		return domain.RefinedQueryResult{}, errors.New("websearch: refined query has empty refined_question")
	}
	return domain.RefinedQueryResult{
		RefinedQuestion:    question,
		RequireEnhancement: *out.RequireEnhancement,
	}, nil
}

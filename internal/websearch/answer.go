package websearch

import (
	"context"
	"errors"
	"time"

	"websearch-agent/internal/domain"
	"websearch-agent/internal/logger"
)

const stageAnswer = "answer"

// AnswerResult is the outcome of the answer stage.
type AnswerResult struct {
	Answer    string
	Citations CitationMap
}

// AnswerGenerator synthesizes the final grounded answer of a turn.
type AnswerGenerator struct {
	llm   LLMClient
	model ModelConfig
	log   logger.Logger
	now   func() time.Time
}

type AnswerOption func(*AnswerGenerator)

// WithClock overrides the time source stamped into the system prompt.
func WithClock(now func() time.Time) AnswerOption {
	return func(g *AnswerGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

func NewAnswerGenerator(llm LLMClient, model ModelConfig, log logger.Logger, opts ...AnswerOption) (*AnswerGenerator, error) {
	if llm == nil {
		return nil, errors.New("websearch: llm client must not be nil")
	}
	if err := model.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	g := &AnswerGenerator{llm: llm, model: model, log: log, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Answer runs the second stage of a turn: it indexes state.SearchResults,
// hands the citation map to notify, builds the grounded conversation and
// generates the answer. notify may be nil.
func (g *AnswerGenerator) Answer(ctx context.Context, state *domain.ConversationState, notify CitationNotifier) (AnswerResult, error) {
	if state == nil || state.Question == nil {
		return AnswerResult{}, newError(ErrorMalformedState, stageAnswer, ReasonMissingQuestion, nil)
	}
	if !state.Retrieved {
		return AnswerResult{}, newError(ErrorMalformedState, stageAnswer, ReasonMissingSearchResults, nil)
	}

	citations := IndexCitations(state.SearchResults)
	if notify != nil {
		notify(citations)
	}

	conversation := BuildGroundedConversation(citations, state.Question.Content, state.Messages, g.now())
	g.log.Debug(stageAnswer, "prompt constructed", map[string]any{
		"citations": citations.Labels(),
		"messages":  conversation,
	})

	answer, err := g.Generate(ctx, conversation)
	if err != nil {
		return AnswerResult{}, err
	}
	return AnswerResult{Answer: answer, Citations: citations}, nil
}

// Generate calls the model with conversation and returns its free-text reply.
func (g *AnswerGenerator) Generate(ctx context.Context, conversation []domain.ChatMessage) (string, error) {
	answer, err := g.llm.Complete(ctx, domain.CompletionRequest{
		Model:      g.model.ModelID,
		Credential: g.model.Credential,
		Messages:   conversation,
	})
	if err != nil {
		return "", newError(ErrorCollaborator, stageAnswer, ReasonLLM, err)
	}
	g.log.Info(stageAnswer, "answer generated", map[string]any{"length": len(answer)})
	return answer, nil
}

package websearch

import (
	"context"
	"errors"

	"websearch-agent/internal/domain"
)

type llmResponse struct {
	text string
	err  error
}

// fakeLLM replays responses in order and records every request.
type fakeLLM struct {
	responses []llmResponse
	requests  []domain.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if len(f.responses) == 0 {
		return "", errors.New("no llm response configured")
	}
	idx := len(f.requests) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx].text, f.responses[idx].err
}

func replying(text string) *fakeLLM {
	return &fakeLLM{responses: []llmResponse{{text: text}}}
}

func failing(err error) *fakeLLM {
	return &fakeLLM{responses: []llmResponse{{err: err}}}
}

var testModel = ModelConfig{ModelID: "gpt-test", Credential: "/prefix/open-ai-token"}

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"websearch-agent/handler"
	"websearch-agent/internal/domain"
	"websearch-agent/internal/logger"
	"websearch-agent/internal/usecase"
	"websearch-agent/internal/websearch"
)

type stubUseCase struct {
	out usecase.AskOutput
	err error
	in  usecase.AskInput
}

func (s *stubUseCase) Ask(_ context.Context, in usecase.AskInput) (usecase.AskOutput, error) {
	s.in = in
	if s.err != nil {
		return usecase.AskOutput{}, s.err
	}
	if in.OnCitations != nil {
		in.OnCitations(s.out.Citations)
	}
	return s.out, nil
}

func sampleOutput() usecase.AskOutput {
	return usecase.AskOutput{
		Answer:         "Frank Herbert [1].",
		ConversationID: "conv-1",
		Citations: websearch.IndexCitations([]domain.SearchResult{
			{Content: domain.StringPtr("Dune was written by Frank Herbert."), URL: "https://example.com"},
		}),
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAsk_ReturnsAnswer(t *testing.T) {
	uc := &stubUseCase{out: sampleOutput()}
	app := newApp(uc, logger.NewNop())

	resp, err := app.Test(postJSON("/api/ask", `{"question":"Who wrote Dune?","conversationId":"conv-1"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(correlationHeader))

	var out handler.AskResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "Frank Herbert [1].", out.Answer)
	require.Equal(t, "conv-1", uc.in.ConversationID)
	require.Nil(t, uc.in.OnCitations)
}

func TestAsk_KeepsCorrelationID(t *testing.T) {
	app := newApp(&stubUseCase{out: sampleOutput()}, logger.NewNop())
	req := postJSON("/api/ask", `{"question":"Who wrote Dune?"}`)
	req.Header.Set("x-correlation-id", "corr-7")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "corr-7", resp.Header.Get(correlationHeader))
}

func TestAsk_InvalidBody(t *testing.T) {
	app := newApp(&stubUseCase{}, logger.NewNop())
	resp, err := app.Test(postJSON("/api/ask", `{"question":""}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAsk_MapsErrors(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorRateLimited, Reason: "search_rate_limited"}}
	app := newApp(uc, logger.NewNop())
	resp, err := app.Test(postJSON("/api/ask", `{"question":"Who wrote Dune?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	var out handler.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "RATE_LIMITED", out.Error)
	require.Equal(t, "search_rate_limited", out.Reason)
}

func TestAskStream_CitationsBeforeAnswer(t *testing.T) {
	uc := &stubUseCase{out: sampleOutput()}
	app := newApp(uc, logger.NewNop())

	resp, err := app.Test(postJSON("/api/ask/stream", `{"question":"Who wrote Dune?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)

	citationsAt := strings.Index(body, "event: citations")
	answerAt := strings.Index(body, "event: answer")
	require.GreaterOrEqual(t, citationsAt, 0)
	require.Greater(t, answerAt, citationsAt)
	require.Contains(t, body, `"1":{"content":"Dune was written by Frank Herbert."`)
	require.NotNil(t, uc.in.OnCitations)
}

func TestAskStream_Error(t *testing.T) {
	uc := &stubUseCase{err: &usecase.Error{Code: usecase.ErrorUpstream, Reason: "answer_error"}}
	app := newApp(uc, logger.NewNop())

	resp, err := app.Test(postJSON("/api/ask/stream", `{"question":"Who wrote Dune?"}`))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "event: error")
	require.Contains(t, string(raw), "UPSTREAM_ERROR")
}

func TestHealth(t *testing.T) {
	app := newApp(&stubUseCase{}, logger.NewNop())
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

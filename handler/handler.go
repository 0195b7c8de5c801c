package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"websearch-agent/internal/logger"
	"websearch-agent/internal/usecase"
	"websearch-agent/internal/websearch"
)

const (
	correlationHeader = "X-Correlation-Id"
	moduleName        = "handler"
)

type AskUseCase interface {
	Ask(ctx context.Context, in usecase.AskInput) (usecase.AskOutput, error)
}

type Handler struct {
	uc       AskUseCase
	log      logger.Logger
	validate *validator.Validate
}

type AskRequest struct {
	Question       string `json:"question" validate:"required"`
	ConversationID string `json:"conversationId" validate:"omitempty,max=128"`
}

type AskResponse struct {
	Answer             string                `json:"answer"`
	ConversationID     string                `json:"conversationId"`
	SearchQuery        string                `json:"searchQuery,omitempty"`
	RequireEnhancement bool                  `json:"requireEnhancement"`
	Citations          websearch.CitationMap `json:"citations"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc AskUseCase, log logger.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{uc: uc, log: log, validate: validator.New()}, nil
}

// Handle serves POST /ask behind an API Gateway proxy integration.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	req, err := DecodeAskRequest(h.validate, []byte(event.Body))
	if err != nil {
		h.log.Warn(moduleName, "invalid request", map[string]any{"correlation_id": correlationID, "error": err.Error()})
		return jsonResponse(http.StatusBadRequest, correlationID, ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}), nil
	}

	out, err := h.uc.Ask(ctx, usecase.AskInput{Question: req.Question, ConversationID: req.ConversationID})
	if err != nil {
		status, body := MapError(err)
		h.log.Error(moduleName, "ask failed", map[string]any{
			"correlation_id": correlationID,
			"status":         status,
			"error":          err,
		})
		return jsonResponse(status, correlationID, body), nil
	}

	return jsonResponse(http.StatusOK, correlationID, NewAskResponse(out)), nil
}

// DecodeAskRequest parses and validates an ask request body.
func DecodeAskRequest(v *validator.Validate, body []byte) (AskRequest, error) {
	var req AskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return AskRequest{}, err
	}
	if err := v.Struct(req); err != nil {
		return AskRequest{}, err
	}
	return req, nil
}

func NewAskResponse(out usecase.AskOutput) AskResponse {
	return AskResponse{
		Answer:             out.Answer,
		ConversationID:     out.ConversationID,
		SearchQuery:        out.SearchQuery,
		RequireEnhancement: out.RequireEnhancement,
		Citations:          out.Citations,
	}
}

// MapError converts a use case error to an HTTP status and body.
func MapError(err error) (int, ErrorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal)}
	}
	body := ErrorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput, usecase.ErrorInvalidQuestion:
		return http.StatusBadRequest, body
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, body
	case usecase.ErrorConflict:
		return http.StatusConflict, body
	case usecase.ErrorUpstream:
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal), Reason: ucErr.Reason}
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	payload, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(payload),
	}
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"

	"websearch-agent/handler"
	"websearch-agent/internal/logger"
	"websearch-agent/internal/usecase"
	"websearch-agent/internal/websearch"
)

const correlationHeader = "X-Correlation-Id"

type routes struct {
	uc       handler.AskUseCase
	log      logger.Logger
	validate *validator.Validate
}

func newApp(uc handler.AskUseCase, log logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, " + correlationHeader,
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(func(c *fiber.Ctx) error {
		id := c.Get(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals("correlationId", id)
		c.Set(correlationHeader, id)
		return c.Next()
	})

	r := &routes{uc: uc, log: log, validate: validator.New()}
	api := app.Group("/api")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	api.Post("/ask", r.ask)
	api.Post("/ask/stream", r.askStream)
	return app
}

func (r *routes) ask(c *fiber.Ctx) error {
	req, err := handler.DecodeAskRequest(r.validate, c.Body())
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(handler.ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"})
	}
	out, err := r.uc.Ask(c.UserContext(), usecase.AskInput{Question: req.Question, ConversationID: req.ConversationID})
	if err != nil {
		status, body := handler.MapError(err)
		r.log.Error("devserver", "ask failed", map[string]any{"correlation_id": c.Locals("correlationId"), "error": err})
		return c.Status(status).JSON(body)
	}
	return c.JSON(handler.NewAskResponse(out))
}

// askStream emits a "citations" event as soon as the sources are indexed and
// an "answer" event once generation finishes.
func (r *routes) askStream(c *fiber.Ctx) error {
	req, err := handler.DecodeAskRequest(r.validate, c.Body())
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(handler.ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"})
	}
	correlationID := c.Locals("correlationId")

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		out, err := r.uc.Ask(ctx, usecase.AskInput{
			Question:       req.Question,
			ConversationID: req.ConversationID,
			OnCitations: func(m websearch.CitationMap) {
				writeEvent(w, "citations", m)
			},
		})
		if err != nil {
			_, body := handler.MapError(err)
			r.log.Error("devserver", "streamed ask failed", map[string]any{"correlation_id": correlationID, "error": err})
			writeEvent(w, "error", body)
			return
		}
		writeEvent(w, "answer", handler.NewAskResponse(out))
	})
	return nil
}

func writeEvent(w *bufio.Writer, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	_ = w.Flush()
}

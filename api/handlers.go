package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/misaka-coder/chronos/pkg/memory"
	"github.com/misaka-coder/chronos/pkg/storage"
)

// ErrorResponse is the JSON error envelope for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TurnRequest is the body for POST /v1/turns.
type TurnRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// TurnResponse carries the assistant's final reply for a processed turn.
type TurnResponse struct {
	UserID string `json:"user_id"`
	Reply  string `json:"reply"`
}

// RecallResponse carries the investigator's answer for a date-scoped lookup.
type RecallResponse struct {
	Date   string `json:"date"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleProcessTurn runs one conversational turn end to end.
func (s *Server) handleProcessTurn(c *fiber.Ctx) error {
	var req TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id required"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message required"})
	}

	reply, err := s.engine.ProcessTurn(c.Context(), req.UserID, req.Message)
	if err != nil {
		s.logger.Error("turn failed",
			zap.String("user", req.UserID),
			zap.String("kind", memory.ClassifyError(err)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(TurnResponse{UserID: req.UserID, Reply: reply})
}

// handleRecall answers a question from one day's raw log.
func (s *Server) handleRecall(c *fiber.Ctx) error {
	date := c.Query("date")
	query := c.Query("q")

	if date == "" || query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "date and q parameters required"})
	}

	answer, err := s.engine.Investigator().Recall(c.Context(), date, query)
	if err != nil {
		s.logger.Error("recall failed",
			zap.String("date", date),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(RecallResponse{Date: date, Query: query, Answer: answer})
}

// handleGetSummary returns the compacted summary for a date key.
func (s *Server) handleGetSummary(c *fiber.Ctx) error {
	date := c.Params("date")
	if date == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "date parameter required"})
	}

	summary, err := s.storer.GetSummary(c.Context(), date)
	if err != nil {
		var notFound storage.ErrNotFound
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "summary not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load summary"})
	}

	return c.JSON(summary)
}

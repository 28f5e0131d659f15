package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/chat"
	"github.com/campus-agent/backend/internal/metrics"
	"github.com/campus-agent/backend/pkg/logger"
)

type ChatHandler struct {
	orchestrator *chat.Orchestrator
}

func NewChatHandler(orchestrator *chat.Orchestrator) *ChatHandler {
	return &ChatHandler{
		orchestrator: orchestrator,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Question  string `json:"question"`
		UserID    string `json:"user_id"`
		SessionID string `json:"session_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	start := time.Now()

	response, err := h.orchestrator.Chat(c.Context(), chat.Request{
		Question:  req.Question,
		UserID:    req.UserID,
		SessionID: req.SessionID,
	})

	metrics.ChatDuration.WithLabelValues("http").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ChatTotal.WithLabelValues("error").Inc()
		logger.Error("Failed to process chat turn", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process question",
		})
	}

	metrics.ChatTotal.WithLabelValues("ok").Inc()

	return c.JSON(fiber.Map{
		"answer":     response.Answer,
		"session_id": response.SessionID,
	})
}

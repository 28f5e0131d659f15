package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campus-agent/backend/internal/gaps"
	"github.com/campus-agent/backend/internal/storage/models"
	"github.com/campus-agent/backend/pkg/logger"
)

// GapsHandler exposes the knowledge-gap ledger to staff tooling.
type GapsHandler struct {
	ledger *gaps.Ledger
}

func NewGapsHandler(ledger *gaps.Ledger) *GapsHandler {
	return &GapsHandler{
		ledger: ledger,
	}
}

func (h *GapsHandler) ListGaps(c *fiber.Ctx) error {
	filter := gaps.ListFilter{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		SortBy:   c.Query("sort"),
	}

	stats, entries, err := h.ledger.List(filter)
	if err != nil {
		logger.Error("Failed to list knowledge gaps", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list knowledge gaps",
		})
	}

	return c.JSON(fiber.Map{
		"stats":   stats,
		"entries": entries,
	})
}

func (h *GapsHandler) GetGap(c *fiber.Ctx) error {
	entry, err := h.ledger.Get(c.Params("id"))
	if err != nil {
		return h.ledgerError(c, err, "Failed to load knowledge gap")
	}

	return c.JSON(entry)
}

func (h *GapsHandler) ResolveGap(c *fiber.Ctx) error {
	var req struct {
		Answer     string `json:"answer"`
		ResolvedBy string `json:"resolved_by"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	entry, err := h.ledger.Resolve(c.Params("id"), req.Answer, req.ResolvedBy)
	if err != nil {
		return h.ledgerError(c, err, "Failed to resolve knowledge gap")
	}

	return c.JSON(entry)
}

func (h *GapsHandler) AssignGap(c *fiber.Ctx) error {
	var req struct {
		Assignee string `json:"assignee"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Assignee == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Assignee is required",
		})
	}

	entry, err := h.ledger.Assign(c.Params("id"), req.Assignee)
	if err != nil {
		return h.ledgerError(c, err, "Failed to assign knowledge gap")
	}

	return c.JSON(entry)
}

func (h *GapsHandler) DeleteGap(c *fiber.Ctx) error {
	if err := h.ledger.Delete(c.Params("id")); err != nil {
		return h.ledgerError(c, err, "Failed to delete knowledge gap")
	}

	return c.JSON(fiber.Map{
		"deleted": true,
	})
}

func (h *GapsHandler) ledgerError(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, models.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Knowledge gap not found",
		})
	}

	if errors.Is(err, gaps.ErrAlreadyResolved) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Error(msg, zap.Error(err), zap.String("entry_id", c.Params("id")))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
	})
}

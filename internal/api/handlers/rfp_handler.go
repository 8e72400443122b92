package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/ingestion"
	"github.com/onelens/backend/pkg/logger"
)

type RFPHandler struct {
	processor *ingestion.Processor
}

func NewRFPHandler(processor *ingestion.Processor) *RFPHandler {
	return &RFPHandler{processor: processor}
}

// HandleProcess runs a whole RFP document synchronously and returns the
// summary. Clients wanting per-question progress use the websocket endpoint.
func (h *RFPHandler) HandleProcess(c *fiber.Ctx) error {
	var doc ingestion.Document

	if err := c.BodyParser(&doc); err != nil {
		logger.Error("Failed to parse RFP document", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.processor.Process(c.Context(), doc, nil)
	if err != nil {
		return errorResponse(c, err, "Failed to process RFP document")
	}

	return c.JSON(result)
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/dedup"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
	"github.com/onelens/backend/pkg/logger"
)

type RequestHandler struct {
	dedup *dedup.Deduplicator
}

func NewRequestHandler(deduplicator *dedup.Deduplicator) *RequestHandler {
	return &RequestHandler{dedup: deduplicator}
}

// HandleResolve takes one incoming feature request and either attaches it to
// the duplicate feature or creates a new one.
func (h *RequestHandler) HandleResolve(c *fiber.Ctx) error {
	var req struct {
		Text                string  `json:"text"`
		Title               string  `json:"title"`
		Segment             string  `json:"segment"`
		Urgency             string  `json:"urgency"`
		EstimatedDealImpact float64 `json:"estimated_deal_impact"`
		Source              string  `json:"source"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resolution, err := h.dedup.Resolve(c.Context(), models.IncomingRequest{
		Text:                req.Text,
		Title:               req.Title,
		Segment:             models.CustomerSegment(req.Segment),
		Urgency:             models.UrgencyLevel(req.Urgency),
		EstimatedDealImpact: req.EstimatedDealImpact,
		Source:              models.RequestSource(req.Source),
	})

	if err != nil {
		return errorResponse(c, err, "Failed to resolve request")
	}

	status := fiber.StatusOK
	if resolution.Created {
		status = fiber.StatusCreated
	}

	return c.Status(status).JSON(fiber.Map{
		"feature_id":  resolution.FeatureID,
		"created":     resolution.Created,
		"match_score": resolution.MatchScore,
		"title":       resolution.Title,
	})
}

// HandleSearch runs a read-only similarity search against the corpus.
func (h *RequestHandler) HandleSearch(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	matches, err := h.dedup.SearchSimilar(c.Context(), req.Text)
	if err != nil {
		return errorResponse(c, err, "Failed to search features")
	}

	results := make([]fiber.Map, len(matches))
	for i, m := range matches {
		results[i] = fiber.Map{
			"feature_id": m.FeatureID,
			"score":      m.Score,
		}
	}

	return c.JSON(fiber.Map{
		"matches": results,
	})
}

// errorResponse maps domain errors to HTTP statuses. Validation failures and
// missing resources report their real message; everything else is an opaque
// 500 with the detail only in the log.
func errorResponse(c *fiber.Ctx, err error, fallback string) error {
	if errs.IsValidation(err) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if errs.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	logger.Error(fallback, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": fallback,
	})
}

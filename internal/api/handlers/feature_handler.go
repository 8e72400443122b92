package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/embedding"
	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/internal/storage/sqlite"
	"github.com/onelens/backend/pkg/logger"
)

// ScoreInvalidator drops cached score snapshots for features this handler
// deletes. Satisfied by the scoring engine.
type ScoreInvalidator interface {
	InvalidateScore(ctx context.Context, featureID string)
}

type FeatureHandler struct {
	db       *sqlite.Client
	provider embedding.Provider
	scores   ScoreInvalidator
}

func NewFeatureHandler(db *sqlite.Client, provider embedding.Provider, scores ScoreInvalidator) *FeatureHandler {
	return &FeatureHandler{db: db, provider: provider, scores: scores}
}

// HandleCreate registers a feature directly, bypassing deduplication. Used
// for seeding the corpus from an existing roadmap.
func (h *FeatureHandler) HandleCreate(c *fiber.Ctx) error {
	var req struct {
		Title               string `json:"title"`
		Description         string `json:"description"`
		IsKeyDifferentiator bool   `json:"is_key_differentiator"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	normalized := models.NormalizedText(title, req.Description)

	vector, err := h.provider.Embed(c.Context(), normalized)
	if err != nil {
		return errorResponse(c, err, "Failed to embed feature text")
	}

	now := time.Now()
	feature := &models.Feature{
		ID:                  uuid.NewString(),
		Title:               title,
		Description:         req.Description,
		NormalizedText:      normalized,
		Embedding:           vector,
		IsKeyDifferentiator: req.IsKeyDifferentiator,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := h.db.InsertFeature(feature); err != nil {
		return errorResponse(c, err, "Failed to create feature")
	}
	metrics.FeaturesTotal.Inc()

	logger.Info("Feature created directly", zap.String("feature_id", feature.ID))

	return c.Status(fiber.StatusCreated).JSON(featureJSON(feature))
}

func (h *FeatureHandler) HandleList(c *fiber.Ctx) error {
	minRequests := c.QueryInt("min_requests", 0)
	limit := c.QueryInt("limit", 100)
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	features, err := h.db.ListFeatures(minRequests, limit)
	if err != nil {
		return errorResponse(c, err, "Failed to list features")
	}

	out := make([]fiber.Map, len(features))
	for i := range features {
		out[i] = featureJSON(&features[i])
	}

	return c.JSON(fiber.Map{
		"features": out,
		"count":    len(out),
	})
}

func (h *FeatureHandler) HandleGet(c *fiber.Ctx) error {
	feature, err := h.db.GetFeature(c.Params("id"))
	if err != nil {
		return errorResponse(c, err, "Failed to get feature")
	}

	requests, err := h.db.ListRequests(feature.ID)
	if err != nil {
		return errorResponse(c, err, "Failed to list feature requests")
	}

	reqOut := make([]fiber.Map, len(requests))
	for i, r := range requests {
		reqOut[i] = fiber.Map{
			"id":                    r.ID,
			"segment":               r.Segment,
			"urgency":               r.Urgency,
			"estimated_deal_impact": r.EstimatedDealImpact,
			"source":                r.Source,
			"justification":         r.Justification,
			"created_at":            r.CreatedAt,
		}
	}

	body := featureJSON(feature)
	body["requests"] = reqOut

	return c.JSON(body)
}

// HandleUpdate rewrites a feature's display text. The normalized matching
// key and embedding are regenerated in the same write.
func (h *FeatureHandler) HandleUpdate(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	id := c.Params("id")
	normalized := models.NormalizedText(title, req.Description)

	vector, err := h.provider.Embed(c.Context(), normalized)
	if err != nil {
		return errorResponse(c, err, "Failed to embed feature text")
	}

	if err := h.db.UpdateFeatureText(id, title, req.Description, normalized, vector); err != nil {
		return errorResponse(c, err, "Failed to update feature")
	}

	feature, err := h.db.GetFeature(id)
	if err != nil {
		return errorResponse(c, err, "Failed to get feature")
	}

	return c.JSON(featureJSON(feature))
}

func (h *FeatureHandler) HandleDelete(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.db.DeleteFeature(id); err != nil {
		return errorResponse(c, err, "Failed to delete feature")
	}

	metrics.FeaturesTotal.Dec()
	h.scores.InvalidateScore(c.Context(), id)

	return c.SendStatus(fiber.StatusNoContent)
}

func featureJSON(f *models.Feature) fiber.Map {
	return fiber.Map{
		"id":                    f.ID,
		"title":                 f.Title,
		"description":           f.Description,
		"request_count":         f.RequestCount,
		"is_key_differentiator": f.IsKeyDifferentiator,
		"created_at":            f.CreatedAt,
		"updated_at":            f.UpdatedAt,
	}
}

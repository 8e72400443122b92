package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/onelens/backend/internal/evaluation"
	"github.com/onelens/backend/internal/scoring"
	"github.com/onelens/backend/internal/storage/models"
)

type ScoringHandler struct {
	engine    *scoring.Engine
	evaluator *evaluation.Evaluator
}

func NewScoringHandler(engine *scoring.Engine, evaluator *evaluation.Evaluator) *ScoringHandler {
	return &ScoringHandler{engine: engine, evaluator: evaluator}
}

func (h *ScoringHandler) HandleGetScore(c *fiber.Ctx) error {
	score, err := h.engine.Latest(c.Context(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err, "Failed to get score")
	}

	return c.JSON(scoreJSON(score))
}

// HandleCalculate computes a fresh snapshot. With ?refresh=true the analysis
// producers are re-queried first.
func (h *ScoringHandler) HandleCalculate(c *fiber.Ctx) error {
	refresh := c.QueryBool("refresh", false)

	score, err := h.engine.Score(c.Context(), c.Params("id"), refresh)
	if err != nil {
		return errorResponse(c, err, "Failed to calculate score")
	}

	return c.Status(fiber.StatusCreated).JSON(scoreJSON(score))
}

func (h *ScoringHandler) HandleRanking(c *fiber.Ctx) error {
	ranking, err := h.engine.Ranking(c.QueryInt("limit", 50))
	if err != nil {
		return errorResponse(c, err, "Failed to get ranking")
	}

	out := make([]fiber.Map, len(ranking))
	for i, r := range ranking {
		out[i] = fiber.Map{
			"rank":          r.Rank,
			"feature_id":    r.FeatureID,
			"title":         r.Title,
			"final_score":   r.FinalScore,
			"calculated_at": r.CalculatedAt,
		}
	}

	return c.JSON(fiber.Map{
		"ranking": out,
	})
}

func (h *ScoringHandler) HandleRecalculateAll(c *fiber.Ctx) error {
	scored, err := h.engine.RecalculateAll(c.Context())
	if err != nil {
		return errorResponse(c, err, "Failed to recalculate scores")
	}

	return c.JSON(fiber.Map{
		"features_scored": scored,
	})
}

func (h *ScoringHandler) HandleCalibration(c *fiber.Ctx) error {
	report, err := h.evaluator.Calibrate()
	if err != nil {
		return errorResponse(c, err, "Failed to generate calibration report")
	}

	if c.Query("format") == "text" {
		return c.SendString(h.evaluator.FormatReport(report))
	}

	return c.JSON(report)
}

func scoreJSON(s *models.PriorityScore) fiber.Map {
	return fiber.Map{
		"id":                       s.ID,
		"feature_id":               s.FeatureID,
		"final_score":              s.FinalScore,
		"customer_impact_score":    s.CustomerImpactScore,
		"trend_alignment_score":    s.TrendAlignmentScore,
		"business_impact_score":    s.BusinessImpactScore,
		"market_opportunity_score": s.MarketOpportunityScore,
		"segment_diversity_score":  s.SegmentDiversityScore,
		"weights_used":             s.WeightsUsed,
		"algorithm_version":        s.AlgorithmVersion,
		"calculated_at":            s.CalculatedAt,
	}
}

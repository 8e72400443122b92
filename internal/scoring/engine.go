// Package scoring computes weighted 0-100 priority scores for features from
// their linked requests and collected analysis signals. Snapshots are
// append-only and carry full provenance.
package scoring

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/analysis"
	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
	"github.com/onelens/backend/pkg/logger"
)

const (
	WeightCustomerImpact    = 0.30
	WeightTrendAlignment    = 0.20
	WeightBusinessImpact    = 0.25
	WeightMarketOpportunity = 0.20
	WeightSegmentDiversity  = 0.05

	// neutralScore substitutes for any missing analysis signal so scoring
	// never fails on absent data.
	neutralScore = 50.0
)

var segmentWeights = map[models.CustomerSegment]float64{
	models.SegmentSmall:      1.0,
	models.SegmentMedium:     2.5,
	models.SegmentLarge:      5.0,
	models.SegmentEnterprise: 10.0,
}

var urgencyMultipliers = map[models.UrgencyLevel]float64{
	models.UrgencyLow:      0.5,
	models.UrgencyMedium:   1.0,
	models.UrgencyHigh:     1.5,
	models.UrgencyCritical: 2.0,
}

// Store is the persistence slice the engine needs.
type Store interface {
	GetFeature(id string) (*models.Feature, error)
	ListRequests(featureID string) ([]models.FeatureRequest, error)
	ListFeatureIDs() ([]string, error)
	InsertPriorityScore(score *models.PriorityScore) error
	LatestScore(featureID string) (*models.PriorityScore, error)
	FeatureRanking(limit int) ([]models.RankedFeature, error)
}

// ScoreCache is an optional read-through cache for latest snapshots.
type ScoreCache interface {
	GetScore(ctx context.Context, featureID string) (*models.PriorityScore, error)
	SetScore(ctx context.Context, featureID string, score *models.PriorityScore, ttl time.Duration) error
	InvalidateScore(ctx context.Context, featureID string) error
	InvalidateAllScores(ctx context.Context) error
}

type Engine struct {
	store      Store
	aggregator *analysis.Aggregator
	cache      ScoreCache
	version    string
	cacheTTL   time.Duration
}

func NewEngine(store Store, aggregator *analysis.Aggregator, cache ScoreCache, version string) (*Engine, error) {
	if err := validateWeights(); err != nil {
		return nil, err
	}

	return &Engine{
		store:      store,
		aggregator: aggregator,
		cache:      cache,
		version:    version,
		cacheTTL:   time.Hour,
	}, nil
}

func validateWeights() error {
	sum := WeightCustomerImpact + WeightTrendAlignment + WeightBusinessImpact +
		WeightMarketOpportunity + WeightSegmentDiversity
	if math.Abs(sum-1.0) > 1e-9 {
		return errs.Invariantf("scoring weights sum to %v, want 1.0", sum)
	}
	return nil
}

// Compute builds a snapshot from in-memory inputs. Pure apart from the
// timestamp and id; the caller persists.
func (e *Engine) Compute(feature *models.Feature, signals map[analysis.Kind]*analysis.Signal, requests []models.FeatureRequest) (*models.PriorityScore, error) {
	customerImpact := customerImpactScore(requests)
	trendAlignment := trendAlignmentScore(signals[analysis.KindTrend])
	businessImpact := businessImpactScore(signals[analysis.KindBusinessImpact])
	marketOpportunity := marketOpportunityScore(signals[analysis.KindCompetitive])
	segmentDiversity := segmentDiversityScore(requests)

	for name, component := range map[string]float64{
		"customer_impact":    customerImpact,
		"trend_alignment":    trendAlignment,
		"business_impact":    businessImpact,
		"market_opportunity": marketOpportunity,
		"segment_diversity":  segmentDiversity,
	} {
		if component < 0 || component > 100 {
			return nil, errs.Invariantf("%s component score %v outside [0,100]", name, component)
		}
	}

	final := WeightCustomerImpact*customerImpact +
		WeightTrendAlignment*trendAlignment +
		WeightBusinessImpact*businessImpact +
		WeightMarketOpportunity*marketOpportunity +
		WeightSegmentDiversity*segmentDiversity
	final = clamp(final, 0, 100)

	return &models.PriorityScore{
		ID:                     uuid.NewString(),
		FeatureID:              feature.ID,
		FinalScore:             final,
		CustomerImpactScore:    customerImpact,
		TrendAlignmentScore:    trendAlignment,
		BusinessImpactScore:    businessImpact,
		MarketOpportunityScore: marketOpportunity,
		SegmentDiversityScore:  segmentDiversity,
		WeightsUsed: map[string]float64{
			"customer_impact":    WeightCustomerImpact,
			"trend_alignment":    WeightTrendAlignment,
			"business_impact":    WeightBusinessImpact,
			"market_opportunity": WeightMarketOpportunity,
			"segment_diversity":  WeightSegmentDiversity,
		},
		AlgorithmVersion: e.version,
		CalculatedAt:     time.Now(),
	}, nil
}

// Score computes and persists a fresh snapshot for one feature. When refresh
// is set the analysis sources are re-queried; otherwise the latest stored
// signals are used. An unknown feature id is a validation error.
func (e *Engine) Score(ctx context.Context, featureID string, refresh bool) (*models.PriorityScore, error) {
	start := time.Now()

	feature, err := e.store.GetFeature(featureID)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, errs.Validationf("feature %s does not exist", featureID)
		}
		return nil, err
	}

	var signals map[analysis.Kind]*analysis.Signal
	if refresh {
		signals = e.aggregator.Collect(ctx, feature)
	} else {
		signals, err = e.aggregator.LoadLatest(featureID)
		if err != nil {
			return nil, err
		}
	}

	requests, err := e.store.ListRequests(featureID)
	if err != nil {
		return nil, err
	}

	score, err := e.Compute(feature, signals, requests)
	if err != nil {
		return nil, err
	}

	if err := e.store.InsertPriorityScore(score); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetScore(ctx, featureID, score, e.cacheTTL); err != nil {
			logger.Warn("Score cache write failed", zap.Error(err))
		}
	}

	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	metrics.FinalScores.Observe(score.FinalScore)

	logger.Info("Priority score calculated",
		zap.String("feature_id", featureID),
		zap.Float64("final_score", score.FinalScore),
		zap.Bool("refreshed_signals", refresh),
	)

	return score, nil
}

// Latest returns the current snapshot, going through the cache when one is
// configured.
func (e *Engine) Latest(ctx context.Context, featureID string) (*models.PriorityScore, error) {
	if e.cache != nil {
		cached, err := e.cache.GetScore(ctx, featureID)
		if err != nil {
			logger.Warn("Score cache read failed", zap.Error(err))
		} else if cached != nil {
			metrics.CacheHits.WithLabelValues("score").Inc()
			return cached, nil
		}
		metrics.CacheMisses.WithLabelValues("score").Inc()
	}

	score, err := e.store.LatestScore(featureID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.SetScore(ctx, featureID, score, e.cacheTTL); err != nil {
			logger.Warn("Score cache write failed", zap.Error(err))
		}
	}

	return score, nil
}

// InvalidateScore drops a feature's cached snapshot. Used when the feature
// itself is deleted, so readers stop seeing a score for a gone feature.
func (e *Engine) InvalidateScore(ctx context.Context, featureID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateScore(ctx, featureID); err != nil {
		logger.Warn("Score cache invalidation failed",
			zap.String("feature_id", featureID),
			zap.Error(err),
		)
	}
}

// RecalculateAll rescores every feature from its stored signals. Returns the
// number of features scored; individual failures are logged and skipped.
func (e *Engine) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := e.store.ListFeatureIDs()
	if err != nil {
		return 0, err
	}

	// Flush the whole score cache first so snapshots of features deleted
	// since the last run don't linger; each Score call repopulates its entry.
	if e.cache != nil {
		if err := e.cache.InvalidateAllScores(ctx); err != nil {
			logger.Warn("Score cache flush failed", zap.Error(err))
		}
	}

	scored := 0
	for _, id := range ids {
		select {
		case <-ctx.Done():
			return scored, ctx.Err()
		default:
		}

		if _, err := e.Score(ctx, id, false); err != nil {
			logger.Warn("Failed to rescore feature", zap.String("feature_id", id), zap.Error(err))
			continue
		}
		scored++
	}

	logger.Info("Recalculated all priority scores",
		zap.Int("scored", scored),
		zap.Int("total", len(ids)),
	)

	return scored, nil
}

func (e *Engine) Ranking(limit int) ([]models.RankedFeature, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return e.store.FeatureRanking(limit)
}

// customerImpactScore sums segment weight times urgency multiplier over all
// linked requests, scaled by 5 and capped at 100. No requests scores 0, not
// the neutral default: a feature nobody asked for has no customer impact.
func customerImpactScore(requests []models.FeatureRequest) float64 {
	if len(requests) == 0 {
		return 0
	}

	var raw float64
	for _, req := range requests {
		weight := segmentWeights[req.Segment]
		multiplier, ok := urgencyMultipliers[req.Urgency]
		if !ok {
			multiplier = 1.0
		}
		raw += weight * multiplier
	}

	return clamp(raw*5, 0, 100)
}

func trendAlignmentScore(sig *analysis.Signal) float64 {
	if sig == nil || sig.Trend == nil {
		return neutralScore
	}
	return clamp(sig.Trend.AlignmentScore*100, 0, 100)
}

func businessImpactScore(sig *analysis.Signal) float64 {
	if sig == nil || sig.Business == nil {
		return neutralScore
	}
	return clamp(sig.Business.ImpactScore, 0, 100)
}

func marketOpportunityScore(sig *analysis.Signal) float64 {
	if sig == nil || sig.Competitive == nil || sig.Competitive.TotalCompetitors <= 0 {
		return neutralScore
	}
	ratio := float64(sig.Competitive.NotProviding) / float64(sig.Competitive.TotalCompetitors)
	return clamp(ratio*100, 0, 100)
}

func segmentDiversityScore(requests []models.FeatureRequest) float64 {
	unique := make(map[models.CustomerSegment]bool)
	for _, req := range requests {
		if req.Segment.Valid() {
			unique[req.Segment] = true
		}
	}
	return math.Min(float64(len(unique))*25, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

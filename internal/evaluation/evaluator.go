// Package evaluation produces a calibration report over the latest priority
// score snapshots: how scores distribute across bands, how much each
// component contributes, and which features run entirely on default signals.
package evaluation

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/logger"
)

type Store interface {
	ListLatestScores() ([]models.PriorityScore, error)
}

type Evaluator struct {
	store Store
}

type CalibrationReport struct {
	TotalFeatures int

	MeanScore   float64
	MedianScore float64
	StdDev      float64
	MinScore    float64
	MaxScore    float64

	// Bands is the count of features per 20-point band, lowest first.
	Bands [5]int

	AvgCustomerImpact    float64
	AvgTrendAlignment    float64
	AvgBusinessImpact    float64
	AvgMarketOpportunity float64
	AvgSegmentDiversity  float64

	// NeutralDefaultCount is how many features scored with all three
	// signal-backed components pinned at the 50-point default, meaning no
	// analysis signal was available at scoring time.
	NeutralDefaultCount int
}

func NewEvaluator(store Store) *Evaluator {
	return &Evaluator{store: store}
}

func (e *Evaluator) Calibrate() (*CalibrationReport, error) {
	scores, err := e.store.ListLatestScores()
	if err != nil {
		return nil, fmt.Errorf("failed to load score snapshots: %w", err)
	}

	report := &CalibrationReport{TotalFeatures: len(scores)}
	if len(scores) == 0 {
		return report, nil
	}

	finals := make([]float64, len(scores))
	var sum float64
	report.MinScore = scores[0].FinalScore
	report.MaxScore = scores[0].FinalScore

	for i, s := range scores {
		finals[i] = s.FinalScore
		sum += s.FinalScore

		if s.FinalScore < report.MinScore {
			report.MinScore = s.FinalScore
		}
		if s.FinalScore > report.MaxScore {
			report.MaxScore = s.FinalScore
		}

		band := int(s.FinalScore / 20)
		if band > 4 {
			band = 4
		}
		report.Bands[band]++

		report.AvgCustomerImpact += s.CustomerImpactScore
		report.AvgTrendAlignment += s.TrendAlignmentScore
		report.AvgBusinessImpact += s.BusinessImpactScore
		report.AvgMarketOpportunity += s.MarketOpportunityScore
		report.AvgSegmentDiversity += s.SegmentDiversityScore

		if s.TrendAlignmentScore == 50 && s.BusinessImpactScore == 50 && s.MarketOpportunityScore == 50 {
			report.NeutralDefaultCount++
		}
	}

	n := float64(len(scores))
	report.MeanScore = sum / n
	report.AvgCustomerImpact /= n
	report.AvgTrendAlignment /= n
	report.AvgBusinessImpact /= n
	report.AvgMarketOpportunity /= n
	report.AvgSegmentDiversity /= n

	sort.Float64s(finals)
	mid := len(finals) / 2
	if len(finals)%2 == 0 {
		report.MedianScore = (finals[mid-1] + finals[mid]) / 2
	} else {
		report.MedianScore = finals[mid]
	}

	var variance float64
	for _, f := range finals {
		variance += (f - report.MeanScore) * (f - report.MeanScore)
	}
	report.StdDev = math.Sqrt(variance / n)

	logger.Info("Calibration report generated",
		zap.Int("features", report.TotalFeatures),
		zap.Float64("mean", report.MeanScore),
		zap.Float64("stddev", report.StdDev),
		zap.Int("neutral_defaults", report.NeutralDefaultCount),
	)

	return report, nil
}

func (e *Evaluator) FormatReport(report *CalibrationReport) string {
	return fmt.Sprintf(`
Priority Score Calibration
==========================

Features Scored: %d

Distribution:
- Mean:   %.2f
- Median: %.2f
- StdDev: %.2f
- Range:  [%.2f, %.2f]

Bands:
-   0-19: %d
-  20-39: %d
-  40-59: %d
-  60-79: %d
- 80-100: %d

Component Averages:
- Customer Impact:    %.2f
- Trend Alignment:    %.2f
- Business Impact:    %.2f
- Market Opportunity: %.2f
- Segment Diversity:  %.2f

Features on all-default signals: %d
`,
		report.TotalFeatures,
		report.MeanScore,
		report.MedianScore,
		report.StdDev,
		report.MinScore, report.MaxScore,
		report.Bands[0], report.Bands[1], report.Bands[2], report.Bands[3], report.Bands[4],
		report.AvgCustomerImpact,
		report.AvgTrendAlignment,
		report.AvgBusinessImpact,
		report.AvgMarketOpportunity,
		report.AvgSegmentDiversity,
		report.NeutralDefaultCount,
	)
}

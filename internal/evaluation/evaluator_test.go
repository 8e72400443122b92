package evaluation

import (
	"math"
	"testing"

	"github.com/onelens/backend/internal/storage/models"
)

type memStore struct {
	scores []models.PriorityScore
}

func (s *memStore) ListLatestScores() ([]models.PriorityScore, error) {
	return s.scores, nil
}

func snapshot(final, trend, business, market float64) models.PriorityScore {
	return models.PriorityScore{
		FinalScore:             final,
		TrendAlignmentScore:    trend,
		BusinessImpactScore:    business,
		MarketOpportunityScore: market,
	}
}

func TestCalibrateEmptyCorpus(t *testing.T) {
	e := NewEvaluator(&memStore{})

	report, err := e.Calibrate()
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	if report.TotalFeatures != 0 {
		t.Errorf("total = %d, want 0", report.TotalFeatures)
	}
}

func TestCalibrateStatistics(t *testing.T) {
	store := &memStore{scores: []models.PriorityScore{
		snapshot(20, 60, 70, 80),
		snapshot(40, 50, 50, 50),
		snapshot(60, 90, 40, 30),
		snapshot(80, 70, 60, 20),
	}}

	report, err := NewEvaluator(store).Calibrate()
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	if report.TotalFeatures != 4 {
		t.Fatalf("total = %d, want 4", report.TotalFeatures)
	}
	if report.MeanScore != 50 {
		t.Errorf("mean = %v, want 50", report.MeanScore)
	}
	if report.MedianScore != 50 {
		t.Errorf("median = %v, want 50", report.MedianScore)
	}
	if report.MinScore != 20 || report.MaxScore != 80 {
		t.Errorf("range = [%v, %v], want [20, 80]", report.MinScore, report.MaxScore)
	}

	wantStdDev := math.Sqrt((900 + 100 + 100 + 900) / 4.0)
	if math.Abs(report.StdDev-wantStdDev) > 1e-9 {
		t.Errorf("stddev = %v, want %v", report.StdDev, wantStdDev)
	}

	// Band edges are [0,20) [20,40) [40,60) [60,80) [80,100].
	wantBands := [5]int{0, 1, 1, 1, 1}
	if report.Bands != wantBands {
		t.Errorf("bands = %v, want %v", report.Bands, wantBands)
	}

	// Only the second snapshot sits on all three neutral defaults.
	if report.NeutralDefaultCount != 1 {
		t.Errorf("neutral defaults = %d, want 1", report.NeutralDefaultCount)
	}
}

func TestCalibrateTopBandIncludesHundred(t *testing.T) {
	store := &memStore{scores: []models.PriorityScore{snapshot(100, 0, 0, 0)}}

	report, err := NewEvaluator(store).Calibrate()
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	if report.Bands[4] != 1 {
		t.Errorf("score 100 should land in the top band, bands = %v", report.Bands)
	}
}

func TestFormatReportContainsTotals(t *testing.T) {
	e := NewEvaluator(&memStore{})
	report := &CalibrationReport{TotalFeatures: 7, MeanScore: 41.5}

	out := e.FormatReport(report)
	if out == "" {
		t.Fatal("empty report")
	}
}

package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/onelens/backend/internal/storage/models"
)

type memStore struct {
	mu      sync.Mutex
	records []models.AnalysisSignalRecord
}

func (s *memStore) InsertSignal(record *models.AnalysisSignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *record)
	return nil
}

func (s *memStore) LatestSignals(featureID string) ([]models.AnalysisSignalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []models.AnalysisSignalRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		r := s.records[i]
		if r.FeatureID != featureID || seen[r.Kind] {
			continue
		}
		seen[r.Kind] = true
		out = append(out, r)
	}
	return out, nil
}

func trendSource(score float64) SourceFunc {
	return func(ctx context.Context, f *models.Feature) (*Signal, error) {
		return &Signal{Kind: KindTrend, Trend: &TrendSignal{AlignmentScore: score, Confidence: 0.9}}, nil
	}
}

func TestCollectToleratesFailedSource(t *testing.T) {
	store := &memStore{}

	sources := map[Kind]SourceFunc{
		KindTrend: trendSource(0.8),
		KindBusinessImpact: func(ctx context.Context, f *models.Feature) (*Signal, error) {
			return nil, errors.New("producer down")
		},
	}

	agg := NewAggregator(sources, store, Config{SignalTimeout: time.Second, MaxWorkers: 2})
	feature := &models.Feature{ID: "feat-1", Title: "SSO"}

	collected := agg.Collect(context.Background(), feature)

	if len(collected) != 1 {
		t.Fatalf("expected 1 collected signal, got %d", len(collected))
	}
	if collected[KindTrend] == nil {
		t.Fatal("trend signal missing")
	}
	if len(store.records) != 1 {
		t.Errorf("expected 1 persisted record, got %d", len(store.records))
	}
}

func TestCollectTimesOutSlowSource(t *testing.T) {
	store := &memStore{}

	sources := map[Kind]SourceFunc{
		KindTrend: trendSource(0.8),
		KindGeographic: func(ctx context.Context, f *models.Feature) (*Signal, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return &Signal{Kind: KindGeographic, Geographic: &GeographicSignal{}}, nil
			}
		},
	}

	agg := NewAggregator(sources, store, Config{SignalTimeout: 50 * time.Millisecond, MaxWorkers: 2})

	start := time.Now()
	collected := agg.Collect(context.Background(), &models.Feature{ID: "feat-1"})

	if time.Since(start) > 2*time.Second {
		t.Fatal("Collect did not respect signal timeout")
	}
	if collected[KindGeographic] != nil {
		t.Error("timed-out signal should be absent")
	}
	if collected[KindTrend] == nil {
		t.Error("fast signal should still be collected")
	}
}

func TestLoadLatestPicksNewestOfKind(t *testing.T) {
	store := &memStore{}
	agg := NewAggregator(nil, store, Config{})

	old := &Signal{Kind: KindTrend, Trend: &TrendSignal{AlignmentScore: 0.2}}
	fresh := &Signal{Kind: KindTrend, Trend: &TrendSignal{AlignmentScore: 0.9}}

	if err := agg.persist("feat-1", old); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := agg.persist("feat-1", fresh); err != nil {
		t.Fatalf("persist: %v", err)
	}

	signals, err := agg.LoadLatest("feat-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}

	if len(signals) != 1 {
		t.Fatalf("expected 1 signal kind, got %d", len(signals))
	}
	if signals[KindTrend].Trend.AlignmentScore != 0.9 {
		t.Errorf("got alignment %v, want the newest 0.9", signals[KindTrend].Trend.AlignmentScore)
	}
}

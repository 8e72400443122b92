package analysis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/logger"
)

// SourceFunc fetches one signal kind for a feature.
type SourceFunc func(ctx context.Context, feature *models.Feature) (*Signal, error)

// Store is the persistence slice the aggregator needs.
type Store interface {
	InsertSignal(record *models.AnalysisSignalRecord) error
	LatestSignals(featureID string) ([]models.AnalysisSignalRecord, error)
}

type Config struct {
	SignalTimeout time.Duration
	MaxWorkers    int
}

// Aggregator fans out to all registered sources and returns whatever
// arrived. A failed or timed-out source costs only its own signal; scoring
// substitutes defaults for anything missing.
type Aggregator struct {
	sources map[Kind]SourceFunc
	store   Store
	timeout time.Duration
	sem     chan struct{}
}

func NewAggregator(sources map[Kind]SourceFunc, store Store, cfg Config) *Aggregator {
	if cfg.SignalTimeout == 0 {
		cfg.SignalTimeout = 30 * time.Second
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 4
	}

	return &Aggregator{
		sources: sources,
		store:   store,
		timeout: cfg.SignalTimeout,
		sem:     make(chan struct{}, cfg.MaxWorkers),
	}
}

// Collect fetches all signal kinds concurrently, persists successes, and
// returns the collected set keyed by kind.
func (a *Aggregator) Collect(ctx context.Context, feature *models.Feature) map[Kind]*Signal {
	var mu sync.Mutex
	var wg sync.WaitGroup
	collected := make(map[Kind]*Signal)

	for kind, source := range a.sources {
		wg.Add(1)
		go func(kind Kind, source SourceFunc) {
			defer wg.Done()

			a.sem <- struct{}{}
			defer func() { <-a.sem }()

			sigCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			sig, err := source(sigCtx, feature)
			if err != nil {
				metrics.SignalFetches.WithLabelValues(string(kind), "error").Inc()
				logger.Warn("Analysis signal fetch failed",
					zap.String("kind", string(kind)),
					zap.String("feature_id", feature.ID),
					zap.Error(err),
				)
				return
			}

			metrics.SignalFetches.WithLabelValues(string(kind), "ok").Inc()

			if err := a.persist(feature.ID, sig); err != nil {
				logger.Error("Failed to persist analysis signal",
					zap.String("kind", string(kind)),
					zap.String("feature_id", feature.ID),
					zap.Error(err),
				)
			}

			mu.Lock()
			collected[kind] = sig
			mu.Unlock()
		}(kind, source)
	}

	wg.Wait()

	logger.Debug("Analysis signals collected",
		zap.String("feature_id", feature.ID),
		zap.Int("count", len(collected)),
	)

	return collected
}

// LoadLatest rebuilds the signal set from the store without contacting any
// source. Used when scoring a feature whose signals are still fresh.
func (a *Aggregator) LoadLatest(featureID string) (map[Kind]*Signal, error) {
	records, err := a.store.LatestSignals(featureID)
	if err != nil {
		return nil, err
	}

	signals := make(map[Kind]*Signal, len(records))
	for i := range records {
		sig, err := FromRecord(&records[i])
		if err != nil {
			logger.Warn("Skipping unreadable stored signal",
				zap.String("signal_id", records[i].ID),
				zap.Error(err),
			)
			continue
		}
		signals[sig.Kind] = sig
	}

	return signals, nil
}

func (a *Aggregator) persist(featureID string, sig *Signal) error {
	payload, err := sig.payload()
	if err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return a.store.InsertSignal(&models.AnalysisSignalRecord{
		ID:         uuid.NewString(),
		FeatureID:  featureID,
		Kind:       string(sig.Kind),
		Confidence: sig.Confidence(),
		Payload:    string(data),
		CreatedAt:  time.Now(),
	})
}

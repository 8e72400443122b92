// Package dedup resolves incoming feature requests against the existing
// feature corpus: each request either attaches to the feature it duplicates
// or becomes a new canonical feature.
package dedup

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onelens/backend/internal/embedding"
	"github.com/onelens/backend/internal/matcher"
	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
	"github.com/onelens/backend/pkg/logger"
)

// Store is the slice of the storage layer deduplication needs.
type Store interface {
	ListEmbeddings() ([]models.FeatureEmbedding, error)
	InsertFeature(f *models.Feature) error
	IncrementRequestCount(id string) error
	LinkRequest(req *models.FeatureRequest) error
}

// Index is an optional approximate-neighbor accelerator. When present it
// answers searches instead of the brute-force scan; insert keeps it in sync
// with the store. Index failures degrade to the scan, never to an error.
type Index interface {
	Search(ctx context.Context, vector []float32, topK int) ([]matcher.Match, error)
	Insert(ctx context.Context, featureID string, vector []float32) error
}

type Config struct {
	AutoLinkThreshold float64
	SearchThreshold   float64
	TopK              int
	MaxTitleLength    int
}

type Resolution struct {
	FeatureID  string
	Created    bool
	MatchScore float64
	Title      string
}

type Deduplicator struct {
	store    Store
	index    Index
	provider embedding.Provider
	cfg      Config
}

func NewDeduplicator(store Store, index Index, provider embedding.Provider, cfg Config) *Deduplicator {
	if cfg.MaxTitleLength == 0 {
		cfg.MaxTitleLength = 100
	}
	if cfg.TopK == 0 {
		cfg.TopK = 10
	}

	return &Deduplicator{
		store:    store,
		index:    index,
		provider: provider,
		cfg:      cfg,
	}
}

// Resolve embeds the request text, finds the closest existing feature, and
// either attaches the request to it or creates a new feature from it. The
// request is always linked to exactly one feature on success.
func (d *Deduplicator) Resolve(ctx context.Context, req models.IncomingRequest) (*Resolution, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errs.Validationf("request text is empty")
	}
	if req.Segment != "" && !req.Segment.Valid() {
		return nil, errs.Validationf("unknown customer segment %q", req.Segment)
	}
	if req.Urgency != "" && !req.Urgency.Valid() {
		return nil, errs.Validationf("unknown urgency level %q", req.Urgency)
	}

	start := time.Now()
	vector, err := d.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	metrics.EmbeddingDuration.WithLabelValues(d.provider.Name()).Observe(time.Since(start).Seconds())

	matches, err := d.search(ctx, vector, 1, d.cfg.AutoLinkThreshold)
	if err != nil {
		return nil, err
	}

	if len(matches) > 0 {
		best := matches[0]
		metrics.MatchSimilarity.Observe(best.Score)

		if err := d.attach(&req, best.FeatureID); err != nil {
			return nil, err
		}

		metrics.RequestsResolved.WithLabelValues("attached").Inc()
		logger.Info("Request attached to existing feature",
			zap.String("feature_id", best.FeatureID),
			zap.Float64("similarity", best.Score),
		)

		return &Resolution{FeatureID: best.FeatureID, MatchScore: best.Score}, nil
	}

	feature, err := d.create(ctx, &req, text)
	if err != nil {
		return nil, err
	}

	metrics.RequestsResolved.WithLabelValues("created").Inc()
	logger.Info("New feature created from request",
		zap.String("feature_id", feature.ID),
		zap.String("title", feature.Title),
	)

	return &Resolution{FeatureID: feature.ID, Created: true, Title: feature.Title}, nil
}

// SearchSimilar runs an interactive similarity search at the looser search
// threshold. Nothing is written.
func (d *Deduplicator) SearchSimilar(ctx context.Context, text string) ([]matcher.Match, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.Validationf("search text is empty")
	}

	vector, err := d.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	return d.search(ctx, vector, d.cfg.TopK, d.cfg.SearchThreshold)
}

func (d *Deduplicator) search(ctx context.Context, vector []float32, topK int, threshold float64) ([]matcher.Match, error) {
	if d.index != nil {
		matches, err := d.index.Search(ctx, vector, topK)
		if err == nil {
			filtered := matches[:0]
			for _, m := range matches {
				if m.Score >= threshold {
					filtered = append(filtered, m)
				}
			}
			return filtered, nil
		}
		logger.Warn("Vector index search failed, falling back to scan", zap.Error(err))
	}

	corpus, err := d.store.ListEmbeddings()
	if err != nil {
		return nil, err
	}

	return matcher.FindSimilar(vector, corpus, threshold, topK), nil
}

func (d *Deduplicator) attach(req *models.IncomingRequest, featureID string) error {
	if err := d.store.IncrementRequestCount(featureID); err != nil {
		return err
	}

	return d.store.LinkRequest(&models.FeatureRequest{
		ID:                  uuid.NewString(),
		FeatureID:           featureID,
		Segment:             req.Segment,
		Urgency:             req.Urgency,
		EstimatedDealImpact: req.EstimatedDealImpact,
		Source:              req.Source,
		Justification:       req.Text,
		CreatedAt:           time.Now(),
	})
}

func (d *Deduplicator) create(ctx context.Context, req *models.IncomingRequest, text string) (*models.Feature, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = ExtractTitle(text, d.cfg.MaxTitleLength)
	}

	normalized := models.NormalizedText(title, text)

	vector, err := d.provider.Embed(ctx, normalized)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	feature := &models.Feature{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    text,
		NormalizedText: normalized,
		Embedding:      vector,
		RequestCount:   1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := d.store.InsertFeature(feature); err != nil {
		return nil, err
	}
	metrics.FeaturesTotal.Inc()

	if d.index != nil {
		if err := d.index.Insert(ctx, feature.ID, vector); err != nil {
			logger.Warn("Vector index insert failed", zap.String("feature_id", feature.ID), zap.Error(err))
		}
	}

	if err := d.store.LinkRequest(&models.FeatureRequest{
		ID:                  uuid.NewString(),
		FeatureID:           feature.ID,
		Segment:             req.Segment,
		Urgency:             req.Urgency,
		EstimatedDealImpact: req.EstimatedDealImpact,
		Source:              req.Source,
		Justification:       req.Text,
		CreatedAt:           now,
	}); err != nil {
		return nil, err
	}

	return feature, nil
}

// questionWords covers interrogatives plus the pronouns that trail them, so
// "Can we export..." reduces to "export...".
var questionWords = map[string]bool{
	"can": true, "could": true, "would": true, "will": true,
	"do": true, "does": true, "is": true, "are": true,
	"how": true, "what": true, "when": true, "where": true,
	"why": true, "which": true,
	"we": true, "you": true, "i": true,
}

// ExtractTitle derives a display title from raw request text: leading
// question words and trailing punctuation are stripped, the first letter is
// capitalized, and long titles are truncated with an ellipsis.
func ExtractTitle(text string, maxLength int) string {
	words := strings.Fields(strings.TrimSpace(text))

	for len(words) > 0 && questionWords[strings.ToLower(words[0])] {
		words = words[1:]
	}

	title := strings.Join(words, " ")
	title = strings.TrimRight(title, "?!.")
	title = strings.TrimSpace(title)

	if title == "" {
		return "Feature Request"
	}

	runes := []rune(title)
	runes[0] = unicode.ToUpper(runes[0])

	// Truncation counts runes, not bytes, so multibyte text stays valid.
	if maxLength > 3 && len(runes) > maxLength {
		return string(runes[:maxLength-3]) + "..."
	}

	return string(runes)
}

package dedup

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onelens/backend/internal/metrics"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
)

type fakeStore struct {
	embeddings []models.FeatureEmbedding
	features   map[string]*models.Feature
	requests   []models.FeatureRequest
	increments map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		features:   make(map[string]*models.Feature),
		increments: make(map[string]int),
	}
}

func (s *fakeStore) ListEmbeddings() ([]models.FeatureEmbedding, error) {
	return s.embeddings, nil
}

func (s *fakeStore) InsertFeature(f *models.Feature) error {
	s.features[f.ID] = f
	s.embeddings = append(s.embeddings, models.FeatureEmbedding{
		FeatureID: f.ID,
		Embedding: f.Embedding,
		CreatedAt: f.CreatedAt,
	})
	return nil
}

func (s *fakeStore) IncrementRequestCount(id string) error {
	s.increments[id]++
	return nil
}

func (s *fakeStore) LinkRequest(req *models.FeatureRequest) error {
	s.requests = append(s.requests, *req)
	return nil
}

// fakeProvider returns canned vectors per text and a fallback for anything
// else, so match outcomes are fully controlled by the test.
type fakeProvider struct {
	vectors  map[string][]float32
	fallback []float32
}

func (p *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := p.vectors[text]; ok {
		return v, nil
	}
	return p.fallback, nil
}

func (p *fakeProvider) Dimension() int { return 2 }
func (p *fakeProvider) Name() string   { return "fake" }

func seededDeduplicator(store *fakeStore, provider *fakeProvider) *Deduplicator {
	return NewDeduplicator(store, nil, provider, Config{
		AutoLinkThreshold: 0.85,
		SearchThreshold:   0.7,
		TopK:              10,
		MaxTitleLength:    100,
	})
}

func seedMFAFeature(store *fakeStore) {
	store.embeddings = append(store.embeddings, models.FeatureEmbedding{
		FeatureID: "mfa-feature",
		Embedding: []float32{1, 0},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func TestResolveAttachesNearDuplicate(t *testing.T) {
	store := newFakeStore()
	seedMFAFeature(store)

	provider := &fakeProvider{
		vectors: map[string][]float32{
			"Do you support 2FA login?": {1, 0.1},
		},
		fallback: []float32{0, 1},
	}

	d := seededDeduplicator(store, provider)

	res, err := d.Resolve(context.Background(), models.IncomingRequest{
		Text:    "Do you support 2FA login?",
		Segment: models.SegmentEnterprise,
		Urgency: models.UrgencyHigh,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if res.Created {
		t.Fatal("near-duplicate request should attach, not create")
	}
	if res.FeatureID != "mfa-feature" {
		t.Errorf("attached to %s, want mfa-feature", res.FeatureID)
	}
	if res.MatchScore < 0.85 {
		t.Errorf("match score %v below auto-link threshold", res.MatchScore)
	}
	if store.increments["mfa-feature"] != 1 {
		t.Errorf("request count incremented %d times, want 1", store.increments["mfa-feature"])
	}
	if len(store.requests) != 1 {
		t.Fatalf("expected 1 linked request, got %d", len(store.requests))
	}
	if store.requests[0].FeatureID != "mfa-feature" {
		t.Errorf("request linked to %s", store.requests[0].FeatureID)
	}
}

func TestResolveCreatesFeatureWithExtractedTitle(t *testing.T) {
	store := newFakeStore()
	seedMFAFeature(store)

	provider := &fakeProvider{
		vectors: map[string][]float32{
			"Can we export reports to PDF?": {0, 1},
		},
		fallback: []float32{0, 1},
	}

	d := seededDeduplicator(store, provider)

	res, err := d.Resolve(context.Background(), models.IncomingRequest{
		Text:    "Can we export reports to PDF?",
		Segment: models.SegmentMedium,
		Urgency: models.UrgencyMedium,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !res.Created {
		t.Fatal("dissimilar request should create a new feature")
	}
	if res.Title != "Export reports to PDF" {
		t.Errorf("extracted title = %q, want %q", res.Title, "Export reports to PDF")
	}

	feature := store.features[res.FeatureID]
	if feature == nil {
		t.Fatal("created feature not stored")
	}
	if feature.RequestCount != 1 {
		t.Errorf("new feature request count = %d, want 1", feature.RequestCount)
	}
	if len(store.requests) != 1 {
		t.Errorf("expected 1 linked request, got %d", len(store.requests))
	}
}

// Creating a feature moves the corpus-size gauge; attaching does not.
func TestResolveTracksFeatureGauge(t *testing.T) {
	store := newFakeStore()
	seedMFAFeature(store)

	provider := &fakeProvider{
		vectors: map[string][]float32{
			"Do you support 2FA login?": {1, 0.1},
		},
		fallback: []float32{0, 1},
	}
	d := seededDeduplicator(store, provider)

	before := testutil.ToFloat64(metrics.FeaturesTotal)

	if _, err := d.Resolve(context.Background(), models.IncomingRequest{Text: "Do you support 2FA login?"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := testutil.ToFloat64(metrics.FeaturesTotal) - before; got != 0 {
		t.Errorf("gauge moved by %v on attach, want 0", got)
	}

	if _, err := d.Resolve(context.Background(), models.IncomingRequest{Text: "Can we schedule exports nightly?"}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := testutil.ToFloat64(metrics.FeaturesTotal) - before; got != 1 {
		t.Errorf("gauge moved by %v on create, want 1", got)
	}
}

func TestResolveRejectsEmptyText(t *testing.T) {
	d := seededDeduplicator(newFakeStore(), &fakeProvider{fallback: []float32{0, 1}})

	_, err := d.Resolve(context.Background(), models.IncomingRequest{Text: "   "})
	if !errs.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestResolveRejectsUnknownSegment(t *testing.T) {
	d := seededDeduplicator(newFakeStore(), &fakeProvider{fallback: []float32{0, 1}})

	_, err := d.Resolve(context.Background(), models.IncomingRequest{
		Text:    "something",
		Segment: "Gigantic",
	})
	if !errs.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// Resolving the same near-duplicate twice against a stable corpus must land
// on the same feature both times.
func TestResolveIdempotentAttach(t *testing.T) {
	store := newFakeStore()
	seedMFAFeature(store)

	provider := &fakeProvider{
		vectors: map[string][]float32{
			"Do you support 2FA login?": {1, 0.1},
		},
		fallback: []float32{0, 1},
	}

	d := seededDeduplicator(store, provider)
	req := models.IncomingRequest{Text: "Do you support 2FA login?", Segment: models.SegmentLarge, Urgency: models.UrgencyLow}

	first, err := d.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := d.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}

	if first.FeatureID != second.FeatureID {
		t.Errorf("attached to different features: %s then %s", first.FeatureID, second.FeatureID)
	}
	if store.increments["mfa-feature"] != 2 {
		t.Errorf("request count incremented %d times, want 2", store.increments["mfa-feature"])
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"question words and trailing mark", "Can we export reports to PDF?", "Export reports to PDF"},
		{"stacked question words", "Could you support SSO?", "Support SSO"},
		{"multiple leading question words", "How do you handle audit logs?", "Handle audit logs"},
		{"no question words", "Bulk user import from CSV.", "Bulk user import from CSV"},
		{"capitalizes first letter", "does the api support webhooks", "The api support webhooks"},
		{"only question words", "What is?", "Feature Request"},
		{"empty text", "   ", "Feature Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.in, 100); got != tt.want {
				t.Errorf("ExtractTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractTitleTruncation(t *testing.T) {
	long := "Support "
	for i := 0; i < 30; i++ {
		long += "extremely "
	}
	long += "long titles"

	got := ExtractTitle(long, 100)
	if len(got) != 100 {
		t.Errorf("truncated title length = %d, want 100", len(got))
	}
	if got[len(got)-3:] != "..." {
		t.Errorf("truncated title should end with ellipsis, got %q", got[len(got)-10:])
	}
}

// Truncation must cut between runes, never through one.
func TestExtractTitleTruncationMultibyte(t *testing.T) {
	long := "Können wir Berichte " + strings.Repeat("äöüäöü ", 30) + "exportieren?"

	got := ExtractTitle(long, 100)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated title is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != 100 {
		t.Errorf("truncated title rune count = %d, want 100", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("truncated title should end with ellipsis, got %q", got)
	}
}

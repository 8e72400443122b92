package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/onelens/backend/internal/dedup"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
)

type memStore struct {
	embeddings []models.FeatureEmbedding
	features   map[string]*models.Feature
	requests   []models.FeatureRequest
}

func newMemStore() *memStore {
	return &memStore{features: make(map[string]*models.Feature)}
}

func (s *memStore) ListEmbeddings() ([]models.FeatureEmbedding, error) { return s.embeddings, nil }

func (s *memStore) InsertFeature(f *models.Feature) error {
	s.features[f.ID] = f
	s.embeddings = append(s.embeddings, models.FeatureEmbedding{
		FeatureID: f.ID,
		Embedding: f.Embedding,
		CreatedAt: f.CreatedAt,
	})
	return nil
}

func (s *memStore) IncrementRequestCount(id string) error { return nil }

func (s *memStore) LinkRequest(req *models.FeatureRequest) error {
	s.requests = append(s.requests, *req)
	return nil
}

type constProvider struct{}

func (constProvider) Embed(_ context.Context, text string) ([]float32, error) {
	// Spread texts across two directions by length parity so some pairs
	// match and others don't.
	if len(text)%2 == 0 {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

func (constProvider) Dimension() int { return 2 }
func (constProvider) Name() string   { return "const" }

func testProcessor(store *memStore) *Processor {
	d := dedup.NewDeduplicator(store, nil, constProvider{}, dedup.Config{
		AutoLinkThreshold: 0.85,
		SearchThreshold:   0.7,
		TopK:              10,
		MaxTitleLength:    100,
	})
	return NewProcessor(d, 100)
}

func TestProcessEmptyDocument(t *testing.T) {
	p := testProcessor(newMemStore())

	_, err := p.Process(context.Background(), Document{Name: "empty"}, nil)
	if !errs.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestProcessCreatesAndReportsProgress(t *testing.T) {
	store := newMemStore()
	p := testProcessor(store)

	doc := Document{
		Name:    "Acme RFP",
		Segment: models.SegmentEnterprise,
		Urgency: models.UrgencyHigh,
		QAPairs: []QAPair{
			{Question: "Can we export reports to PDF?", Answer: "Not yet."},
			{Question: "Do you support SSO?", Answer: "Partially."},
		},
	}

	var events []ProgressEvent
	result, err := p.Process(context.Background(), doc, func(e ProgressEvent) {
		events = append(events, e)
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.QuestionsProcessed != 2 {
		t.Errorf("processed = %d, want 2", result.QuestionsProcessed)
	}
	if result.FeaturesCreated+result.FeaturesLinked != 2 {
		t.Errorf("created+linked = %d, want 2", result.FeaturesCreated+result.FeaturesLinked)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 progress events, got %d", len(events))
	}
	if events[0].Total != 2 || events[1].Index != 1 {
		t.Errorf("bad progress bookkeeping: %+v", events)
	}
	if len(store.requests) != 2 {
		t.Errorf("expected 2 linked requests, got %d", len(store.requests))
	}
	for _, r := range store.requests {
		if r.Source != models.SourceRFP {
			t.Errorf("request source = %v, want RFP", r.Source)
		}
		if r.Segment != models.SegmentEnterprise {
			t.Errorf("request segment = %v, want Enterprise", r.Segment)
		}
	}
}

func TestProcessSkipsFailedPair(t *testing.T) {
	store := newMemStore()
	p := testProcessor(store)

	doc := Document{
		Name:    "mixed",
		Segment: models.SegmentSmall,
		Urgency: models.UrgencyLow,
		QAPairs: []QAPair{
			{Question: "", Answer: ""},
			{Question: "Do you support webhooks?", Answer: "Yes, outbound only."},
		},
	}

	result, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if result.QuestionsProcessed != 1 {
		t.Errorf("processed = %d, want 1", result.QuestionsProcessed)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "Do you support SSO?", "Do you support SSO?"},
		{"whitespace collapsed", "Do  you \n support   SSO?", "Do you support SSO?"},
		{"tags removed", "<p>Do you support <b>SSO</b>?</p>", "Do you support SSO?"},
		{"script dropped", "<p>Hello</p><script>alert(1)</script>", "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.in); got != tt.want {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractBusinessContext(t *testing.T) {
	pairs := []QAPair{
		{Question: "Is the API rate limited?", Answer: "This is urgent for us."},
		{Question: "How is security handled?", Answer: "We need SSO integration."},
	}

	ctx := extractBusinessContext(pairs)

	if ctx.TotalQuestions != 2 {
		t.Errorf("total questions = %d, want 2", ctx.TotalQuestions)
	}
	if len(ctx.UrgencyIndicators) != 1 || ctx.UrgencyIndicators[0] != "urgent" {
		t.Errorf("urgency indicators = %v", ctx.UrgencyIndicators)
	}

	want := map[string]bool{"api": true, "integration": true, "security": true}
	if len(ctx.TechnicalRequirements) != len(want) {
		t.Errorf("technical requirements = %v", ctx.TechnicalRequirements)
	}
	for _, k := range ctx.TechnicalRequirements {
		if !want[k] {
			t.Errorf("unexpected technical requirement %q", k)
		}
	}
	if ctx.ExtractedAt.IsZero() || time.Since(ctx.ExtractedAt) > time.Minute {
		t.Errorf("bad extraction timestamp %v", ctx.ExtractedAt)
	}
}

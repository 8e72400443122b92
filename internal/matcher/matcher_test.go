package matcher

import (
	"math"
	"testing"
	"time"

	"github.com/onelens/backend/internal/storage/models"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{
			name: "identical vectors",
			a:    []float32{1, 2, 3},
			b:    []float32{1, 2, 3},
			want: 1.0,
		},
		{
			name: "opposite vectors",
			a:    []float32{1, 0},
			b:    []float32{-1, 0},
			want: 0.0,
		},
		{
			name: "orthogonal vectors",
			a:    []float32{1, 0},
			b:    []float32{0, 1},
			want: 0.5,
		},
		{
			name: "zero norm left",
			a:    []float32{0, 0},
			b:    []float32{1, 1},
			want: 0.0,
		},
		{
			name: "zero norm right",
			a:    []float32{1, 1},
			b:    []float32{0, 0},
			want: 0.0,
		},
		{
			name: "dimension mismatch",
			a:    []float32{1, 2},
			b:    []float32{1, 2, 3},
			want: 0.0,
		},
		{
			name: "empty vectors",
			a:    nil,
			b:    nil,
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func corpusEntry(id string, vec []float32, createdAt time.Time) models.FeatureEmbedding {
	return models.FeatureEmbedding{FeatureID: id, Embedding: vec, CreatedAt: createdAt}
}

func TestFindSimilarOrdering(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	corpus := []models.FeatureEmbedding{
		corpusEntry("far", []float32{0, 1}, base),
		corpusEntry("close", []float32{1, 0.1}, base),
		corpusEntry("exact", []float32{1, 0}, base),
	}

	matches := FindSimilar([]float32{1, 0}, corpus, 0.0, 0)

	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].FeatureID != "exact" || matches[1].FeatureID != "close" || matches[2].FeatureID != "far" {
		t.Errorf("wrong order: %v %v %v", matches[0].FeatureID, matches[1].FeatureID, matches[2].FeatureID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestFindSimilarTieBreakByCreatedAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	corpus := []models.FeatureEmbedding{
		corpusEntry("newer", []float32{1, 0}, base.Add(time.Hour)),
		corpusEntry("older", []float32{1, 0}, base),
	}

	matches := FindSimilar([]float32{1, 0}, corpus, 0.0, 0)

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].FeatureID != "older" {
		t.Errorf("tie should go to the earlier feature, got %s first", matches[0].FeatureID)
	}
}

func TestFindSimilarThresholdFilter(t *testing.T) {
	base := time.Now()
	corpus := []models.FeatureEmbedding{
		corpusEntry("hit", []float32{1, 0}, base),
		corpusEntry("miss", []float32{-1, 0}, base),
	}

	matches := FindSimilar([]float32{1, 0}, corpus, 0.7, 0)

	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].FeatureID != "hit" {
		t.Errorf("expected hit, got %s", matches[0].FeatureID)
	}
}

func TestFindSimilarTopK(t *testing.T) {
	base := time.Now()
	corpus := make([]models.FeatureEmbedding, 0, 10)
	for i := 0; i < 10; i++ {
		corpus = append(corpus, corpusEntry(string(rune('a'+i)), []float32{1, float32(i) * 0.01}, base))
	}

	matches := FindSimilar([]float32{1, 0}, corpus, 0.0, 3)

	if len(matches) != 3 {
		t.Errorf("expected topK=3 matches, got %d", len(matches))
	}
}

// Raising the threshold must never grow the candidate set.
func TestThresholdMonotonicity(t *testing.T) {
	base := time.Now()
	corpus := []models.FeatureEmbedding{
		corpusEntry("a", []float32{1, 0}, base),
		corpusEntry("b", []float32{0.9, 0.2}, base),
		corpusEntry("c", []float32{0, 1}, base),
		corpusEntry("d", []float32{-0.5, 0.5}, base),
	}
	query := []float32{1, 0}

	prev := len(FindSimilar(query, corpus, 0.0, 0))
	for threshold := 0.1; threshold <= 1.0; threshold += 0.1 {
		count := len(FindSimilar(query, corpus, threshold, 0))
		if count > prev {
			t.Errorf("threshold %.1f yielded %d candidates, more than %d at lower threshold", threshold, count, prev)
		}
		prev = count
	}
}

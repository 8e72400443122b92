package matcher

import (
	"math"
	"sort"

	"github.com/onelens/backend/internal/storage/models"
)

// Match is one scored corpus entry. Score is cosine similarity rescaled to
// [0,1] so downstream thresholds never deal with negative values.
type Match struct {
	FeatureID string
	Score     float64
}

// FindSimilar scores the query against every corpus entry, keeps entries at
// or above threshold, orders by score descending with created-at breaking
// ties, and truncates to topK. topK <= 0 means unlimited.
func FindSimilar(query []float32, corpus []models.FeatureEmbedding, threshold float64, topK int) []Match {
	type scored struct {
		match     Match
		createdAt int64
	}

	candidates := make([]scored, 0, len(corpus))
	for _, entry := range corpus {
		score := Similarity(query, entry.Embedding)
		if score < threshold {
			continue
		}
		candidates = append(candidates, scored{
			match:     Match{FeatureID: entry.FeatureID, Score: score},
			createdAt: entry.CreatedAt.UnixNano(),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].match.Score != candidates[j].match.Score {
			return candidates[i].match.Score > candidates[j].match.Score
		}
		if candidates[i].createdAt != candidates[j].createdAt {
			return candidates[i].createdAt < candidates[j].createdAt
		}
		return candidates[i].match.FeatureID < candidates[j].match.FeatureID
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = c.match
	}
	return matches
}

// Similarity returns (cosine+1)/2. Mismatched dimensions or a zero-norm
// vector on either side score 0.
func Similarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	cosine := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cosine + 1) / 2
}

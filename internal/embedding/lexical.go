package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/onelens/backend/pkg/logger"
)

// domainKeywords are product-feedback terms whose presence gets a dedicated
// slot at the front of the vector. They sharpen matches between requests
// that phrase the same ask differently.
var domainKeywords = []string{
	"export", "import", "report", "dashboard", "integration", "api",
	"sso", "authentication", "permission", "notification", "mobile",
	"search", "filter", "bulk", "automation", "audit", "compliance",
	"analytics", "custom", "schedule",
}

// LexicalProvider is the deterministic offline provider. It hashes tokens
// into buckets and prefixes keyword-density slots, so identical texts always
// produce identical vectors and no network call is ever made.
type LexicalProvider struct {
	dimension int
}

func NewLexicalProvider(dimension int) *LexicalProvider {
	if dimension <= len(domainKeywords)+4 {
		dimension = 384
	}

	logger.Info("Lexical embedding provider initialized", zap.Int("dimension", dimension))

	return &LexicalProvider{dimension: dimension}
}

func (p *LexicalProvider) Name() string {
	return "lexical"
}

func (p *LexicalProvider) Dimension() int {
	return p.dimension
}

func (p *LexicalProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimension)
	if !hasContent(text) {
		return vec, nil
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	lower := strings.ToLower(text)
	for i, keyword := range domainKeywords {
		vec[i] = float32(strings.Count(lower, keyword)) / float32(len(tokens))
	}

	statsOffset := len(domainKeywords)
	vec[statsOffset] = float32(math.Min(float64(len(tokens))/100.0, 1.0))
	vec[statsOffset+1] = float32(math.Min(avgTokenLength(tokens)/12.0, 1.0))
	vec[statsOffset+2] = float32(uniqueRatio(tokens))
	vec[statsOffset+3] = float32(math.Min(float64(len(text))/1000.0, 1.0))

	bucketOffset := statsOffset + 4
	buckets := p.dimension - bucketOffset
	for _, token := range tokens {
		h := fnv.New32a()
		h.Write([]byte(strings.ToLower(token)))
		vec[bucketOffset+int(h.Sum32())%buckets] += 1.0 / float32(len(tokens))
	}

	return vec, nil
}

func tokenize(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		// Tokenizer failure falls back to whitespace splitting so the
		// provider stays total.
		return strings.Fields(text)
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		if isWordToken(tok.Text) {
			tokens = append(tokens, tok.Text)
		}
	}
	return tokens
}

func isWordToken(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

func avgTokenLength(tokens []string) float64 {
	total := 0
	for _, t := range tokens {
		total += len(t)
	}
	return float64(total) / float64(len(tokens))
}

func uniqueRatio(tokens []string) float64 {
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[strings.ToLower(t)] = true
	}
	return float64(len(seen)) / float64(len(tokens))
}

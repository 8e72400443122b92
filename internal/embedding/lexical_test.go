package embedding

import (
	"context"
	"testing"
)

func TestLexicalDeterminism(t *testing.T) {
	p := NewLexicalProvider(384)
	text := "Can we export reports to PDF with custom branding?"

	first, err := p.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := p.Embed(context.Background(), text)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(first) != 384 {
		t.Fatalf("dimension = %d, want 384", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, first[i], second[i])
		}
	}
}

// Embed is total: blank text maps to the zero vector instead of an error.
func TestLexicalEmptyTextMapsToZeroVector(t *testing.T) {
	p := NewLexicalProvider(384)

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := p.Embed(context.Background(), text)
		if err != nil {
			t.Fatalf("Embed(%q): %v", text, err)
		}
		if len(vec) != 384 {
			t.Fatalf("Embed(%q) dimension = %d, want 384", text, len(vec))
		}
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("Embed(%q)[%d] = %v, want 0", text, i, v)
			}
		}
	}
}

func TestLexicalNonZeroForRealText(t *testing.T) {
	p := NewLexicalProvider(384)

	vec, err := p.Embed(context.Background(), "export dashboard analytics")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		t.Error("embedding of real text should have non-zero norm")
	}
}

func TestLexicalSmallDimensionFallsBack(t *testing.T) {
	p := NewLexicalProvider(5)
	if p.Dimension() != 384 {
		t.Errorf("dimension = %d, want fallback 384", p.Dimension())
	}
}

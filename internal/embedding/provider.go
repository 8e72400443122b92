// Package embedding turns request and feature text into fixed-dimension
// vectors for similarity matching. Providers are interchangeable; the rest
// of the system only assumes that similar texts land near each other and
// that dimensions agree within one deployment.
package embedding

import "context"

type Provider interface {
	// Embed returns a vector of Dimension() length. Total over all inputs:
	// empty or whitespace-only text maps to the zero vector. Rejecting empty
	// requests is the caller's concern, not the provider's.
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

func hasContent(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/onelens/backend/pkg/logger"
	"github.com/onelens/backend/pkg/utils"
)

// Cache is the slice of the cache client this package needs. A miss is
// (nil, nil); cache errors are returned so the decorator can log and move on.
type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32) error
}

// CachedProvider wraps another provider with a lookaside cache keyed on
// normalized text. Cache failures never fail the embed; the inner provider
// is always the source of truth.
type CachedProvider struct {
	inner Provider
	cache Cache
}

func NewCachedProvider(inner Provider, cache Cache) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache}
}

func (p *CachedProvider) Name() string {
	return p.inner.Name() + "+cache"
}

func (p *CachedProvider) Dimension() int {
	return p.inner.Dimension()
}

func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	// Blank text maps to the zero vector and is never cached.
	if !hasContent(text) {
		return p.inner.Embed(ctx, text)
	}

	key := utils.HashText(text)

	cached, err := p.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	} else if cached != nil {
		logger.Debug("Embedding cache hit", zap.String("key", key))
		return cached, nil
	}

	embedding, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := p.cache.SetEmbedding(ctx, key, embedding); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}

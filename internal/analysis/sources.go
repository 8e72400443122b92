package analysis

import (
	"context"
	"fmt"

	"github.com/onelens/backend/internal/llm"
	"github.com/onelens/backend/internal/storage/models"
	"github.com/onelens/backend/pkg/errs"
)

// LLMSources wires every signal kind to the LLM client's analyzer prompts.
func LLMSources(client *llm.Client) map[Kind]SourceFunc {
	return map[Kind]SourceFunc{
		KindTrend: func(ctx context.Context, f *models.Feature) (*Signal, error) {
			content, err := client.AnalyzeTrend(ctx, f.Title, f.Description)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrTransientProvider, err)
			}
			sig, err := ParseTrend(content)
			if err != nil {
				return nil, err
			}
			return &Signal{Kind: KindTrend, Trend: sig}, nil
		},

		KindBusinessImpact: func(ctx context.Context, f *models.Feature) (*Signal, error) {
			content, err := client.AnalyzeBusinessImpact(ctx, f.Title, f.Description, f.RequestCount)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrTransientProvider, err)
			}
			sig, err := ParseBusinessImpact(content)
			if err != nil {
				return nil, err
			}
			return &Signal{Kind: KindBusinessImpact, Business: sig}, nil
		},

		KindCompetitive: func(ctx context.Context, f *models.Feature) (*Signal, error) {
			content, err := client.AnalyzeCompetitive(ctx, f.Title, f.Description)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrTransientProvider, err)
			}
			sig, err := ParseCompetitive(content)
			if err != nil {
				return nil, err
			}
			return &Signal{Kind: KindCompetitive, Competitive: sig}, nil
		},

		KindGeographic: func(ctx context.Context, f *models.Feature) (*Signal, error) {
			content, err := client.AnalyzeGeographic(ctx, f.Title, f.Description)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errs.ErrTransientProvider, err)
			}
			sig, err := ParseGeographic(content)
			if err != nil {
				return nil, err
			}
			return &Signal{Kind: KindGeographic, Geographic: sig}, nil
		},
	}
}

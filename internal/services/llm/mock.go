package llm

import (
	"context"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/textutil"
)

// MockScorer scores by include keyword hits without network access.
type MockScorer struct {
	high    article.Tier
	include []string
}

// NewMockScorer builds a mock scorer for the configured labels and keywords.
func NewMockScorer(cfg *config.Config) *MockScorer {
	return &MockScorer{high: cfg.HighTier(), include: append([]string(nil), cfg.Keywords.Include...)}
}

// Score returns the high label when title or summary mentions an include
// keyword, otherwise Low.
func (m *MockScorer) Score(ctx context.Context, input article.ScoreInput) (article.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return article.Verdict{}, err
	}
	if keyword, ok := textutil.FirstContainedFold(input.Title+" "+input.Summary, m.include); ok {
		return article.Verdict{Tier: m.high, Reason: "Mentions topic: " + keyword}, nil
	}
	return article.Verdict{Tier: article.TierLow, Reason: "No topic keywords mentioned"}, nil
}

package main

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/api/option"

	"scholardigest/internal/config"
	"scholardigest/internal/pipeline"
	"scholardigest/internal/report"
	"scholardigest/internal/scoring"
	"scholardigest/internal/services/gmail"
	"scholardigest/internal/services/llm"
	"scholardigest/internal/services/scholar"
	"scholardigest/internal/services/webfetch"
	"scholardigest/internal/storage"
)

// newMailSource is replaced in tests.
var newMailSource = gmailSource

func gmailSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.MailSource, error) {
	oauthCfg, err := gmail.LoadOAuthConfig(cfg.Paths.CredentialsFile)
	if err != nil {
		return nil, err
	}
	client, err := gmail.HTTPClient(ctx, oauthCfg, cfg.Paths.TokenFile)
	if err != nil {
		return nil, err
	}
	client.Timeout = time.Duration(cfg.Gmail.TimeoutSeconds) * time.Second
	return gmail.NewSource(ctx, gmail.SettingsFromConfig(cfg), logger, option.WithHTTPClient(client))
}

func newScorer(cfg *config.Config) (scoring.Scorer, error) {
	if cfg.LLM.Provider == config.ProviderMock {
		return llm.NewMockScorer(cfg), nil
	}
	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewScorer(cfg, client), nil
}

// buildRunner wires the pipeline. mail may be nil for report-only runs.
func buildRunner(cfg *config.Config, logger *slog.Logger, store *storage.Store, mail pipeline.MailSource) (*pipeline.Runner, error) {
	scorer, err := newScorer(cfg)
	if err != nil {
		return nil, err
	}
	fetcher, err := webfetch.New(webfetch.ConfigFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	renderer, err := report.NewRenderer(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(pipeline.Dependencies{
		Config:    cfg,
		Store:     store,
		Watermark: newWatermark(cfg, logger),
		Mail:      mail,
		Extractor: scholar.NewExtractor(),
		Scorer:    scorer,
		Fetcher:   fetcher,
		Renderer:  renderer,
		Logger:    logger,
	})
}

package testsupport

import (
	"path/filepath"
	"testing"

	"scholardigest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It uses the mock LLM provider so no API key is needed, and applies any
// provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CredentialsFile = filepath.Join(base, "credentials.json")
	cfgVal.Paths.TokenFile = filepath.Join(base, "token.json")
	cfgVal.Output.ReportDir = cfgVal.Paths.ReportDir
	cfgVal.Output.ReportTiers = []string{"High", "Medium"}
	cfgVal.Enrichment.TargetTiers = []string{"High", "Medium"}
	cfgVal.LLM.Provider = config.ProviderMock
	cfgVal.LLM.Model = "mock"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithExcludeKeywords sets the scoring exclusion keywords.
func WithExcludeKeywords(keywords ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Keywords.Exclude = keywords
	}
}

// WithIncludeKeywords sets the topics of interest.
func WithIncludeKeywords(keywords ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Keywords.Include = keywords
	}
}

// WithParallelScoring enables the scoring pool with the given worker count.
func WithParallelScoring(workers int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.Parallel.Enable = true
		b.cfg.Scoring.Parallel.Workers = workers
	}
}

// WithEnrichment toggles web article enrichment.
func WithEnrichment(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Enrichment.EnableWebArticle = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

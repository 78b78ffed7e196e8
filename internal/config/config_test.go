package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("SCHOLARDIGEST_LLM_API_KEY", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "scholardigest")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.RecordsCSVPath() != filepath.Join(wantData, "scholar_articles.csv") {
		t.Fatalf("unexpected csv path: %q", cfg.RecordsCSVPath())
	}
	if cfg.LLM.APIKey != "test-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Provider != config.ProviderOpenAI {
		t.Fatalf("unexpected provider: %q", cfg.LLM.Provider)
	}
	if !strings.Contains(cfg.LLM.BaseURL, "api.openai.com") {
		t.Fatalf("unexpected base url: %q", cfg.LLM.BaseURL)
	}
	if cfg.Enrichment.EnableWebArticle {
		t.Fatal("expected enrichment disabled by default")
	}
	if cfg.ScoringWorkers() != 1 {
		t.Fatalf("expected sequential scoring by default, got %d workers", cfg.ScoringWorkers())
	}
	tiers := cfg.EnrichmentTiers()
	if len(tiers) != 2 || tiers[0] != article.TierHigh || tiers[1] != article.TierMedium {
		t.Fatalf("unexpected enrichment tiers: %v", tiers)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ReportDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadMissingAPIKeyFails(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SCHOLARDIGEST_LLM_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[llm]\nmodel = \"openai:gpt-4o\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil {
		t.Fatal("expected missing api key error")
	}
	if !strings.Contains(err.Error(), "llm.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadProviderPrefixAndTierLabels(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("SCHOLARDIGEST_LLM_API_KEY", "")
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := config.Default()
	cfg.LLM.Model = "google:gemini-2.0-flash"
	cfg.Enrichment.TargetTiers = []string{"high"}
	cfg.Output.ReportTiers = []string{"medium", "HIGH", "low"}
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	loaded, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if loaded.LLM.Provider != config.ProviderGoogle || loaded.LLM.Model != "gemini-2.0-flash" {
		t.Fatalf("unexpected llm: %+v", loaded.LLM)
	}
	if loaded.LLM.APIKey != "g-key" {
		t.Fatalf("expected GOOGLE_API_KEY fallback, got %q", loaded.LLM.APIKey)
	}
	if got := loaded.EnrichmentTiers(); len(got) != 1 || got[0] != article.TierHigh {
		t.Fatalf("unexpected enrichment tiers: %v", got)
	}
	got := loaded.ReportTiers()
	want := []article.Tier{article.TierMedium, article.TierHigh, article.TierLow}
	if len(got) != len(want) {
		t.Fatalf("unexpected report tiers: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("report tier %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadLegacyYAML(t *testing.T) {
	t.Setenv("SCHOLARDIGEST_LLM_API_KEY", "")
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	yamlConfig := `
scoring:
  high_threshold: High
  medium_threshold: Medium
  parallel:
    enable: true
    workers: 3
enrichment:
  enable_web_article: true
keywords:
  include: [catalysis]
  exclude: [battery, biomass]
output:
  report_dir: ` + filepath.Join(dir, "reports") + `
llm:
  model: "mock:offline"
prompt_template: "Rate this article."
`
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(yamlConfig), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ScoringWorkers() != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.ScoringWorkers())
	}
	if !cfg.Enrichment.EnableWebArticle {
		t.Fatal("expected enrichment enabled")
	}
	if len(cfg.Keywords.Exclude) != 2 {
		t.Fatalf("unexpected exclude keywords: %v", cfg.Keywords.Exclude)
	}
	if cfg.Paths.ReportDir != filepath.Join(dir, "reports") {
		t.Fatalf("expected output.report_dir to win, got %q", cfg.Paths.ReportDir)
	}
	if cfg.LLM.Provider != config.ProviderMock {
		t.Fatalf("expected mock provider, got %q", cfg.LLM.Provider)
	}
	if cfg.Prompt() != "Rate this article." {
		t.Fatalf("expected top-level prompt template, got %q", cfg.Prompt())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name: "workers",
			mutate: func(c *config.Config) {
				c.Scoring.Parallel.Enable = true
				c.Scoring.Parallel.Workers = 0
			},
			want: "scoring.parallel.workers",
		},
		{
			name:   "low enrichment tier",
			mutate: func(c *config.Config) { c.Enrichment.TargetTiers = []string{"Low"} },
			want:   "never enriched",
		},
		{
			name:   "provider",
			mutate: func(c *config.Config) { c.LLM.Provider = "anthropic-direct" },
			want:   "llm.provider",
		},
		{
			name:   "log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
		{
			name:   "proxy",
			mutate: func(c *config.Config) { c.Proxy.URL = "not a url" },
			want:   "proxy.url",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.LLM.Provider = config.ProviderMock
			cfg.Paths.DataDir = t.TempDir()
			cfg.Paths.ReportDir = t.TempDir()
			cfg.Enrichment.TargetTiers = []string{"High", "Medium"}
			cfg.Output.ReportTiers = []string{"High", "Medium"}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sample-key")
	t.Setenv("SCHOLARDIGEST_LLM_API_KEY", "")
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config did not load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected sample model: %q", cfg.LLM.Model)
	}
}

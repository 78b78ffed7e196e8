package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"scholardigest/internal/article"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains data, report, and credential locations.
type Paths struct {
	DataDir         string `toml:"data_dir" yaml:"data_dir"`
	ReportDir       string `toml:"report_dir" yaml:"report_dir"`
	LogDir          string `toml:"log_dir" yaml:"log_dir"`
	CredentialsFile string `toml:"credentials_file" yaml:"credentials_file"`
	TokenFile       string `toml:"token_file" yaml:"token_file"`
}

// Gmail contains configuration for the alert mailbox.
type Gmail struct {
	User           string `toml:"user" yaml:"user"`
	QuerySender    string `toml:"query_sender" yaml:"query_sender"`
	MaxResults     int64  `toml:"max_results" yaml:"max_results"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Parallel controls the scoring worker pool.
type Parallel struct {
	Enable  bool `toml:"enable" yaml:"enable"`
	Workers int  `toml:"workers" yaml:"workers"`
}

// Scoring contains relevance scoring settings. HighThreshold and
// MediumThreshold are the tier labels stored on records.
type Scoring struct {
	HighThreshold   string   `toml:"high_threshold" yaml:"high_threshold"`
	MediumThreshold string   `toml:"medium_threshold" yaml:"medium_threshold"`
	TimeoutSeconds  int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	RetryErrors     bool     `toml:"retry_errors" yaml:"retry_errors"`
	Parallel        Parallel `toml:"parallel" yaml:"parallel"`
}

// Enrichment contains web article enrichment settings.
type Enrichment struct {
	EnableWebArticle bool     `toml:"enable_web_article" yaml:"enable_web_article"`
	TargetTiers      []string `toml:"target_tiers" yaml:"target_tiers"`
	TimeoutSeconds   int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	UserAgent        string   `toml:"user_agent" yaml:"user_agent"`
	MaxChars         int      `toml:"max_chars" yaml:"max_chars"`
}

// Keywords feed the scoring prompt (include) and pre-filter (exclude).
type Keywords struct {
	Include []string `toml:"include" yaml:"include"`
	Exclude []string `toml:"exclude" yaml:"exclude"`
}

// Output contains report rendering settings.
type Output struct {
	ReportDir    string   `toml:"report_dir" yaml:"report_dir"`
	TemplateFile string   `toml:"template_file" yaml:"template_file"`
	ReportTiers  []string `toml:"report_tiers" yaml:"report_tiers"`
}

// LLM contains chat completion connection settings.
type LLM struct {
	Provider       string  `toml:"provider" yaml:"provider"`
	Model          string  `toml:"model" yaml:"model"`
	APIKey         string  `toml:"api_key" yaml:"api_key"`
	BaseURL        string  `toml:"base_url" yaml:"base_url"`
	Temperature    float64 `toml:"temperature" yaml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Referer        string  `toml:"referer" yaml:"referer"`
	Title          string  `toml:"title" yaml:"title"`
	PromptTemplate string  `toml:"prompt_template" yaml:"prompt_template"`
}

// Proxy routes outbound HTTP through a proxy when URL is set.
type Proxy struct {
	URL string `toml:"url" yaml:"url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for scholardigest.
//
// Configuration sections by subsystem:
//   - Paths: data store, reports, logs, and Gmail OAuth files
//   - Gmail: alert mailbox query
//   - Scoring: tier labels, timeouts, and the worker pool
//   - Enrichment: web article fetching
//   - Keywords: include topics and exclusion keywords
//   - Output: report template and tiers
//   - LLM: chat completion provider settings
//   - Proxy: outbound HTTP proxy
//   - Logging: log format and level
type Config struct {
	Paths          Paths      `toml:"paths" yaml:"paths"`
	Gmail          Gmail      `toml:"gmail" yaml:"gmail"`
	Scoring        Scoring    `toml:"scoring" yaml:"scoring"`
	Enrichment     Enrichment `toml:"enrichment" yaml:"enrichment"`
	Keywords       Keywords   `toml:"keywords" yaml:"keywords"`
	Output         Output     `toml:"output" yaml:"output"`
	LLM            LLM        `toml:"llm" yaml:"llm"`
	Proxy          Proxy      `toml:"proxy" yaml:"proxy"`
	Logging        Logging    `toml:"logging" yaml:"logging"`
	PromptTemplate string     `toml:"prompt_template" yaml:"prompt_template"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scholardigest/config.toml")
}

// Load locates, parses, and validates a configuration file. Files ending in
// .yml or .yaml are decoded as YAML; everything else as TOML. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err := yaml.NewDecoder(r).Decode(cfg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	default:
		return toml.NewDecoder(r).Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scholardigest.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, report, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.ReportDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RecordsCSVPath returns the flat article table location.
func (c *Config) RecordsCSVPath() string {
	return filepath.Join(c.Paths.DataDir, "scholar_articles.csv")
}

// RecordsDBPath returns the SQLite mirror location.
func (c *Config) RecordsDBPath() string {
	return filepath.Join(c.Paths.DataDir, "scholar_articles.db")
}

// WatermarkPath returns the last-run timestamp file location.
func (c *Config) WatermarkPath() string {
	return filepath.Join(c.Paths.DataDir, "last_run.txt")
}

// LockPath returns the run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scholardigest.lock")
}

// HighTier returns the configured high relevance label.
func (c *Config) HighTier() article.Tier {
	return article.Tier(c.Scoring.HighThreshold)
}

// MediumTier returns the configured medium relevance label.
func (c *Config) MediumTier() article.Tier {
	return article.Tier(c.Scoring.MediumThreshold)
}

// ScoreTiers returns the labels a scorer may assign, in precedence order.
func (c *Config) ScoreTiers() []article.Tier {
	return []article.Tier{c.HighTier(), c.MediumTier(), article.TierLow}
}

// EnrichmentTiers returns the tiers eligible for web enrichment.
func (c *Config) EnrichmentTiers() []article.Tier {
	return toTiers(c.Enrichment.TargetTiers)
}

// ReportTiers returns the report tier precedence.
func (c *Config) ReportTiers() []article.Tier {
	return toTiers(c.Output.ReportTiers)
}

// ScoringWorkers returns the effective scoring pool size.
func (c *Config) ScoringWorkers() int {
	if !c.Scoring.Parallel.Enable || c.Scoring.Parallel.Workers < 1 {
		return 1
	}
	return c.Scoring.Parallel.Workers
}

// Prompt returns the configured system prompt template.
func (c *Config) Prompt() string {
	if strings.TrimSpace(c.LLM.PromptTemplate) != "" {
		return c.LLM.PromptTemplate
	}
	return DefaultPromptTemplate
}

func toTiers(values []string) []article.Tier {
	out := make([]article.Tier, 0, len(values))
	for _, value := range values {
		out = append(out, article.Tier(value))
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved chat completion settings.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Temperature    float64
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the resolved LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       c.LLM.Provider,
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Temperature:    c.LLM.Temperature,
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

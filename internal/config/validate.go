package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"scholardigest/internal/article"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateProxy(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.ReportDir == "" {
		return errors.New("paths.report_dir must be set")
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.Parallel.Enable && c.Scoring.Parallel.Workers < 1 {
		return errors.New("scoring.parallel.workers must be >= 1")
	}
	if strings.EqualFold(c.Scoring.HighThreshold, c.Scoring.MediumThreshold) {
		return errors.New("scoring.high_threshold and scoring.medium_threshold must differ")
	}
	for _, label := range []string{c.Scoring.HighThreshold, c.Scoring.MediumThreshold} {
		if reservedTier(label) {
			return fmt.Errorf("scoring threshold label %q is reserved", label)
		}
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	for _, tier := range c.Enrichment.TargetTiers {
		if reservedTier(tier) {
			return fmt.Errorf("enrichment.target_tiers: %q tier is never enriched", tier)
		}
		if !c.knownTier(tier) {
			return fmt.Errorf("enrichment.target_tiers: unknown tier %q", tier)
		}
	}
	return nil
}

func (c *Config) validateOutput() error {
	for _, tier := range c.Output.ReportTiers {
		if !c.knownTier(tier) && !reservedTier(tier) {
			return fmt.Errorf("output.report_tiers: unknown tier %q", tier)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if _, ok := knownProviders[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm.provider: unsupported value %q (supported: openai, google, openrouter, mock)", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderMock {
		return nil
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	if c.LLM.APIKey == "" {
		env := providerKeyEnv[c.LLM.Provider]
		return fmt.Errorf("llm.api_key is required for provider %q. Set %s or edit the config file (create with 'scholardigest config init')", c.LLM.Provider, env)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateProxy() error {
	if c.Proxy.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Proxy.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("proxy.url: invalid url %q", c.Proxy.URL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) knownTier(label string) bool {
	return strings.EqualFold(label, c.Scoring.HighThreshold) ||
		strings.EqualFold(label, c.Scoring.MediumThreshold)
}

func reservedTier(label string) bool {
	return strings.EqualFold(label, string(article.TierLow)) ||
		strings.EqualFold(label, string(article.TierError))
}

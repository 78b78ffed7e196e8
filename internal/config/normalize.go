package config

import (
	"fmt"
	"os"
	"strings"

	"scholardigest/internal/article"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGmail()
	c.normalizeScoring()
	c.normalizeEnrichment()
	c.normalizeKeywords()
	c.normalizeOutput()
	c.normalizeLLM()
	c.Proxy.URL = strings.TrimSpace(c.Proxy.URL)
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if dir := strings.TrimSpace(c.Output.ReportDir); dir != "" {
		c.Paths.ReportDir = dir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(strings.TrimSpace(c.Paths.DataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.ReportDir, err = expandPath(strings.TrimSpace(c.Paths.ReportDir)); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CredentialsFile, err = expandPath(strings.TrimSpace(c.Paths.CredentialsFile)); err != nil {
		return fmt.Errorf("paths.credentials_file: %w", err)
	}
	if c.Paths.TokenFile, err = expandPath(strings.TrimSpace(c.Paths.TokenFile)); err != nil {
		return fmt.Errorf("paths.token_file: %w", err)
	}
	c.Output.ReportDir = c.Paths.ReportDir
	if c.Output.TemplateFile = strings.TrimSpace(c.Output.TemplateFile); c.Output.TemplateFile != "" {
		if c.Output.TemplateFile, err = expandPath(c.Output.TemplateFile); err != nil {
			return fmt.Errorf("output.template_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeGmail() {
	c.Gmail.User = strings.TrimSpace(c.Gmail.User)
	if c.Gmail.User == "" {
		c.Gmail.User = defaultGmailUser
	}
	c.Gmail.QuerySender = strings.TrimSpace(c.Gmail.QuerySender)
	if c.Gmail.QuerySender == "" {
		c.Gmail.QuerySender = defaultGmailSender
	}
	if c.Gmail.MaxResults <= 0 {
		c.Gmail.MaxResults = defaultGmailMaxResults
	}
	if c.Gmail.TimeoutSeconds <= 0 {
		c.Gmail.TimeoutSeconds = defaultGmailTimeoutSeconds
	}
}

func (c *Config) normalizeScoring() {
	c.Scoring.HighThreshold = strings.TrimSpace(c.Scoring.HighThreshold)
	if c.Scoring.HighThreshold == "" {
		c.Scoring.HighThreshold = defaultHighLabel
	}
	c.Scoring.MediumThreshold = strings.TrimSpace(c.Scoring.MediumThreshold)
	if c.Scoring.MediumThreshold == "" {
		c.Scoring.MediumThreshold = defaultMediumLabel
	}
	if c.Scoring.TimeoutSeconds <= 0 {
		c.Scoring.TimeoutSeconds = defaultScoringTimeout
	}
}

func (c *Config) normalizeEnrichment() {
	tiers := trimAll(c.Enrichment.TargetTiers)
	if len(tiers) == 0 {
		tiers = []string{c.Scoring.HighThreshold, c.Scoring.MediumThreshold}
	}
	c.Enrichment.TargetTiers = c.canonicalTiers(tiers)
	if c.Enrichment.TimeoutSeconds <= 0 {
		c.Enrichment.TimeoutSeconds = defaultEnrichmentTimeout
	}
	c.Enrichment.UserAgent = strings.TrimSpace(c.Enrichment.UserAgent)
	if c.Enrichment.UserAgent == "" {
		c.Enrichment.UserAgent = defaultEnrichmentUserAgent
	}
	if c.Enrichment.MaxChars <= 0 {
		c.Enrichment.MaxChars = defaultEnrichmentMaxChars
	}
}

func (c *Config) normalizeKeywords() {
	c.Keywords.Include = trimAll(c.Keywords.Include)
	c.Keywords.Exclude = trimAll(c.Keywords.Exclude)
}

func (c *Config) normalizeOutput() {
	tiers := trimAll(c.Output.ReportTiers)
	if len(tiers) == 0 {
		tiers = []string{c.Scoring.HighThreshold, c.Scoring.MediumThreshold}
	}
	c.Output.ReportTiers = c.canonicalTiers(tiers)
}

// canonicalTiers maps labels onto the configured spelling so stored values
// compare exactly.
func (c *Config) canonicalTiers(labels []string) []string {
	known := []string{c.Scoring.HighThreshold, c.Scoring.MediumThreshold, string(article.TierLow), string(article.TierError)}
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		for _, candidate := range known {
			if strings.EqualFold(label, candidate) {
				label = candidate
				break
			}
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

func (c *Config) normalizeLLM() {
	provider := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	model := strings.TrimSpace(c.LLM.Model)
	if prefix, rest, ok := strings.Cut(model, ":"); ok {
		if _, known := knownProviders[strings.ToLower(prefix)]; known {
			provider = strings.ToLower(prefix)
			model = strings.TrimSpace(rest)
		}
	}
	if provider == "" {
		provider = defaultLLMProvider
	}
	c.LLM.Provider = provider
	c.LLM.Model = model

	if override, ok := os.LookupEnv("SCHOLARDIGEST_LLM_API_KEY"); ok && strings.TrimSpace(override) != "" {
		c.LLM.APIKey = override
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		if name, ok := providerKeyEnv[provider]; ok {
			if value, ok := os.LookupEnv(name); ok {
				c.LLM.APIKey = value
			}
		}
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)

	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = providerBaseURLs[provider]
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if strings.TrimSpace(c.LLM.PromptTemplate) == "" {
		c.LLM.PromptTemplate = strings.TrimSpace(c.PromptTemplate)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

var knownProviders = map[string]struct{}{
	ProviderOpenAI:     {},
	ProviderGoogle:     {},
	ProviderOpenRouter: {},
	ProviderMock:       {},
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

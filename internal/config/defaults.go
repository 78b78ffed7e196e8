package config

const (
	defaultDataDir             = "~/.local/share/scholardigest"
	defaultReportDir           = "~/.local/share/scholardigest/reports"
	defaultLogDir              = "~/.local/share/scholardigest/logs"
	defaultCredentialsFile     = "~/.config/scholardigest/credentials.json"
	defaultTokenFile           = "~/.config/scholardigest/token.json"
	defaultGmailUser           = "me"
	defaultGmailSender         = "scholaralerts-noreply@google.com"
	defaultGmailMaxResults     = 100
	defaultGmailTimeoutSeconds = 30
	defaultHighLabel           = "High"
	defaultMediumLabel         = "Medium"
	defaultScoringTimeout      = 60
	defaultScoringWorkers      = 4
	defaultEnrichmentTimeout   = 10
	defaultEnrichmentMaxChars  = 1000
	defaultEnrichmentUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultLLMProvider         = ProviderOpenAI
	defaultLLMModel            = "gpt-4o-mini"
	defaultLLMTemperature      = 0.2
	defaultLLMTimeoutSeconds   = 60
	defaultLLMReferer          = "https://github.com/scholardigest/scholardigest"
	defaultLLMTitle            = "Scholar Digest"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// LLM provider identifiers accepted in llm.provider or the llm.model prefix.
const (
	ProviderOpenAI     = "openai"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

var providerBaseURLs = map[string]string{
	ProviderOpenAI:     "https://api.openai.com/v1/chat/completions",
	ProviderGoogle:     "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
	ProviderOpenRouter: "https://openrouter.ai/api/v1/chat/completions",
}

var providerKeyEnv = map[string]string{
	ProviderOpenAI:     "OPENAI_API_KEY",
	ProviderGoogle:     "GOOGLE_API_KEY",
	ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:         defaultDataDir,
			ReportDir:       defaultReportDir,
			LogDir:          defaultLogDir,
			CredentialsFile: defaultCredentialsFile,
			TokenFile:       defaultTokenFile,
		},
		Gmail: Gmail{
			User:           defaultGmailUser,
			QuerySender:    defaultGmailSender,
			MaxResults:     defaultGmailMaxResults,
			TimeoutSeconds: defaultGmailTimeoutSeconds,
		},
		Scoring: Scoring{
			HighThreshold:   defaultHighLabel,
			MediumThreshold: defaultMediumLabel,
			TimeoutSeconds:  defaultScoringTimeout,
			Parallel: Parallel{
				Enable:  false,
				Workers: defaultScoringWorkers,
			},
		},
		Enrichment: Enrichment{
			EnableWebArticle: false,
			TimeoutSeconds:   defaultEnrichmentTimeout,
			UserAgent:        defaultEnrichmentUserAgent,
			MaxChars:         defaultEnrichmentMaxChars,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			Model:          defaultLLMModel,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultPromptTemplate is used when no prompt_template is configured.
const DefaultPromptTemplate = `You are screening newly published research articles for a researcher.
Rate how relevant the article is to the researcher's interests using exactly one of these labels: {{high}}, {{medium}}, Low.
Topics of interest: {{include}}.
Prefer {{high}} only for articles that directly address these topics; use Low for unrelated work.`

package enrichment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/services"
	"scholardigest/internal/storage"
)

// DefaultMaxChars bounds stored enrichment text.
const DefaultMaxChars = 1000

// Fetcher retrieves readable text for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Store is the record store surface the gate needs.
type Store interface {
	LoadAll(ctx context.Context) ([]article.Record, error)
	UpdateMany(ctx context.Context, updates []article.Update) (storage.UpdateResult, error)
	EnsureSchema(ctx context.Context) error
}

// Settings holds the gate's knobs, resolved from configuration.
type Settings struct {
	Enabled  bool
	Tiers    []article.Tier
	MaxChars int
	Timeout  time.Duration
}

// SettingsFromConfig resolves gate settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Enabled:  cfg.Enrichment.EnableWebArticle,
		Tiers:    cfg.EnrichmentTiers(),
		MaxChars: cfg.Enrichment.MaxChars,
		Timeout:  time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
	}
}

// Result counts the outcome of one gate run.
type Result struct {
	Eligible int
	Enriched int
	Failed   int
	Empty    int
	Disabled bool
	Skipped  bool
}

// Gate selects tiered records lacking text, fetches them, and merges text.
type Gate struct {
	store    Store
	fetcher  Fetcher
	settings Settings
	logger   *slog.Logger
}

// NewGate constructs a gate from configuration.
func NewGate(cfg *config.Config, store Store, fetcher Fetcher, logger *slog.Logger) *Gate {
	return NewGateWithSettings(SettingsFromConfig(cfg), store, fetcher, logger)
}

// NewGateWithSettings constructs a gate from explicit settings. Low and
// Error are removed from the target tiers.
func NewGateWithSettings(settings Settings, store Store, fetcher Fetcher, logger *slog.Logger) *Gate {
	tiers := make([]article.Tier, 0, len(settings.Tiers))
	for _, tier := range settings.Tiers {
		if neverEnriched(tier) {
			continue
		}
		tiers = append(tiers, tier)
	}
	settings.Tiers = tiers
	if settings.MaxChars <= 0 {
		settings.MaxChars = DefaultMaxChars
	}
	return &Gate{
		store:    store,
		fetcher:  fetcher,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "enrichment"),
	}
}

func neverEnriched(tier article.Tier) bool {
	return strings.EqualFold(string(tier), string(article.TierLow)) ||
		strings.EqualFold(string(tier), string(article.TierError))
}

// Eligible returns records in tiers that have not been enriched yet.
func Eligible(records []article.Record, tiers []article.Tier) []article.Record {
	out := make([]article.Record, 0)
	for _, rec := range records {
		if rec.Enriched() || !rec.HasTier(tiers...) || rec.HasTier(article.TierLow, article.TierError) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Run enriches every eligible record and merges the text in one batch.
func (g *Gate) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, "enrichment")
	logger := logging.WithContext(ctx, g.logger)

	if !g.settings.Enabled {
		logging.Decision(logger, "web enrichment disabled", "enrichment_disabled", "enrichment.enable_web_article is false")
		if err := g.store.EnsureSchema(ctx); err != nil {
			return Result{Disabled: true}, err
		}
		return Result{Disabled: true}, nil
	}

	records, err := g.store.LoadAll(ctx)
	if err != nil {
		return Result{}, err
	}
	eligible := Eligible(records, g.settings.Tiers)
	result := Result{Eligible: len(eligible)}
	if len(eligible) == 0 {
		result.Skipped = true
		logging.Decision(logger, "enrichment skipped", "enrichment_empty", "no eligible records")
		return result, nil
	}
	if g.fetcher == nil {
		return result, services.Wrap(services.ErrConfiguration, "enrichment", "run", "no fetcher configured", nil)
	}

	logger.Info("enriching records", logging.Int("eligible", len(eligible)))
	updates := make([]article.Update, 0, len(eligible))
	for _, rec := range eligible {
		if ctx.Err() != nil {
			break
		}
		text, fetchErr := g.fetch(ctx, rec.Link)
		if fetchErr != nil && ctx.Err() != nil {
			break
		}
		outcome := Summarize(text, fetchErr, g.settings.MaxChars)
		switch {
		case outcome.Failed:
			result.Failed++
			logging.WarnWithContext(logger, "article fetch failed", "enrichment_fetch_failed",
				logging.String(logging.FieldContentHash, rec.ContentHash),
				logging.String("link", rec.Link),
				logging.Error(fetchErr),
				logging.String(logging.FieldImpact, "failure marker stored; record will not be retried"),
			)
		case outcome.Empty:
			result.Empty++
		default:
			result.Enriched++
		}
		updates = append(updates, article.Update{
			Key:    rec.ContentHash,
			Fields: article.Fields{EnrichedText: article.StringPtr(outcome.Text)},
		})
	}

	if len(updates) > 0 {
		if _, err := g.store.UpdateMany(context.WithoutCancel(ctx), updates); err != nil {
			return result, err
		}
	}
	logger.Info("enrichment complete",
		logging.Int("enriched", result.Enriched),
		logging.Int("empty", result.Empty),
		logging.Int("failed", result.Failed),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (g *Gate) fetch(ctx context.Context, link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", errors.New("record has no link")
	}
	callCtx := ctx
	if g.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.settings.Timeout)
		defer cancel()
	}
	return g.fetcher.Fetch(callCtx, link)
}

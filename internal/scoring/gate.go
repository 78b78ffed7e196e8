package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/services"
	"scholardigest/internal/storage"
	"scholardigest/internal/textutil"
)

// ExcludedReasonPrefix starts the reason stored for keyword exclusions.
const ExcludedReasonPrefix = "Auto-excluded by keyword: "

// Scorer assigns a relevance verdict to one article.
type Scorer interface {
	Score(ctx context.Context, input article.ScoreInput) (article.Verdict, error)
}

// Store is the record store surface the gate needs.
type Store interface {
	LoadAll(ctx context.Context) ([]article.Record, error)
	UpdateMany(ctx context.Context, updates []article.Update) (storage.UpdateResult, error)
}

// Settings holds the gate's knobs, resolved from configuration.
type Settings struct {
	Workers     int
	Timeout     time.Duration
	Exclude     []string
	Tiers       []article.Tier
	RetryErrors bool
}

// SettingsFromConfig resolves gate settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Workers:     cfg.ScoringWorkers(),
		Timeout:     time.Duration(cfg.Scoring.TimeoutSeconds) * time.Second,
		Exclude:     append([]string(nil), cfg.Keywords.Exclude...),
		Tiers:       cfg.ScoreTiers(),
		RetryErrors: cfg.Scoring.RetryErrors,
	}
}

// Result counts the outcome of one gate run.
type Result struct {
	Eligible  int
	Excluded  int
	Scored    int
	Failed    int
	Cancelled int
	Skipped   bool
}

// Gate selects unscored records, scores them, and merges verdicts.
type Gate struct {
	store    Store
	scorer   Scorer
	settings Settings
	logger   *slog.Logger
}

// NewGate constructs a gate from configuration.
func NewGate(cfg *config.Config, store Store, scorer Scorer, logger *slog.Logger) *Gate {
	return NewGateWithSettings(SettingsFromConfig(cfg), store, scorer, logger)
}

// NewGateWithSettings constructs a gate from explicit settings.
func NewGateWithSettings(settings Settings, store Store, scorer Scorer, logger *slog.Logger) *Gate {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &Gate{
		store:    store,
		scorer:   scorer,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "scoring"),
	}
}

// Eligible returns the records that need a verdict.
func Eligible(records []article.Record, retryErrors bool) []article.Record {
	out := make([]article.Record, 0)
	for _, rec := range records {
		if !rec.Scored() || (retryErrors && rec.HasTier(article.TierError)) {
			out = append(out, rec)
		}
	}
	return out
}

// ExcludedBy returns the first exclusion keyword found in the record's title
// or summary, matched case-insensitively.
func ExcludedBy(rec article.Record, keywords []string) (string, bool) {
	return textutil.FirstContainedFold(rec.Title+" "+rec.Summary, keywords)
}

type outcome struct {
	update article.Update
	done   bool
	failed bool
}

// Run scores every eligible record and merges the verdicts in one batch.
// If ctx is cancelled mid-run, completed verdicts are still merged, the
// remaining records stay unscored, and the context error is returned.
func (g *Gate) Run(ctx context.Context) (Result, error) {
	ctx = services.WithStage(ctx, "scoring")
	logger := logging.WithContext(ctx, g.logger)

	records, err := g.store.LoadAll(ctx)
	if err != nil {
		return Result{}, err
	}
	eligible := Eligible(records, g.settings.RetryErrors)
	result := Result{Eligible: len(eligible)}
	if len(eligible) == 0 {
		result.Skipped = true
		logging.Decision(logger, "scoring skipped", "scoring_empty", "no unscored records",
			logging.Int("stored", len(records)),
		)
		return result, nil
	}
	outcomes := make([]outcome, len(eligible))
	remote := make([]int, 0, len(eligible))
	for i, rec := range eligible {
		if keyword, ok := ExcludedBy(rec, g.settings.Exclude); ok {
			outcomes[i] = outcome{
				update: article.Update{
					Key:    rec.ContentHash,
					Fields: article.Verdict{Tier: article.TierLow, Reason: ExcludedReasonPrefix + keyword}.Fields(),
				},
				done: true,
			}
			result.Excluded++
			continue
		}
		remote = append(remote, i)
	}
	if len(remote) > 0 && g.scorer == nil {
		return result, services.Wrap(services.ErrConfiguration, "scoring", "run", "no scorer configured", nil)
	}

	logger.Info("scoring eligible records",
		logging.Int("eligible", len(eligible)),
		logging.Int("excluded", result.Excluded),
		logging.Int("submitted", len(remote)),
		logging.Int("workers", g.settings.Workers),
	)

	var group errgroup.Group
	group.SetLimit(g.settings.Workers)
	for _, idx := range remote {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			outcomes[idx] = g.scoreOne(ctx, logger, eligible[idx])
			return nil
		})
	}
	_ = group.Wait()

	updates := make([]article.Update, 0, len(eligible))
	for _, out := range outcomes {
		if !out.done {
			result.Cancelled++
			continue
		}
		if out.failed {
			result.Failed++
		}
		updates = append(updates, out.update)
	}
	result.Scored = len(updates) - result.Excluded - result.Failed

	// Completed verdicts survive cancellation.
	if len(updates) > 0 {
		if _, err := g.store.UpdateMany(context.WithoutCancel(ctx), updates); err != nil {
			return result, err
		}
	}
	logger.Info("scoring complete",
		logging.Int("scored", result.Scored),
		logging.Int("excluded", result.Excluded),
		logging.Int("failed", result.Failed),
		logging.Int("cancelled", result.Cancelled),
	)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (g *Gate) scoreOne(ctx context.Context, logger *slog.Logger, rec article.Record) outcome {
	callCtx := ctx
	if g.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.settings.Timeout)
		defer cancel()
	}
	verdict, err := g.scorer.Score(callCtx, article.ScoreInput{
		Key:     rec.ContentHash,
		Title:   rec.Title,
		Summary: rec.Summary,
	})
	if err == nil {
		verdict, err = g.normalize(verdict)
	}
	if err != nil {
		if ctx.Err() != nil {
			return outcome{}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = services.Wrap(services.ErrTimeout, "scoring", "score", fmt.Sprintf("no verdict within %s", g.settings.Timeout), err)
		}
		logging.WarnWithContext(logger, "scoring call failed", "scoring_call_failed",
			logging.String(logging.FieldContentHash, rec.ContentHash),
			logging.Error(err),
			logging.String(logging.FieldImpact, "record stored with Error tier"),
			logging.String(logging.FieldErrorHint, "enable scoring.retry_errors to retry on the next run"),
		)
		return outcome{
			update: article.Update{
				Key:    rec.ContentHash,
				Fields: article.Verdict{Tier: article.TierError, Reason: err.Error()}.Fields(),
			},
			done:   true,
			failed: true,
		}
	}
	logger.Debug("record scored",
		logging.String(logging.FieldContentHash, rec.ContentHash),
		logging.String("relevance", string(verdict.Tier)),
	)
	return outcome{
		update: article.Update{Key: rec.ContentHash, Fields: verdict.Fields()},
		done:   true,
	}
}

// normalize maps the verdict tier onto a configured label.
func (g *Gate) normalize(v article.Verdict) (article.Verdict, error) {
	tier, ok := article.ParseTier(string(v.Tier), g.settings.Tiers...)
	if !ok {
		return v, fmt.Errorf("unrecognized relevance label %q", v.Tier)
	}
	v.Tier = tier
	v.Reason = strings.TrimSpace(v.Reason)
	return v, nil
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"scholardigest/internal/config"
	"scholardigest/internal/enrichment"
	"scholardigest/internal/ingest"
	"scholardigest/internal/logging"
	"scholardigest/internal/report"
	"scholardigest/internal/scoring"
	"scholardigest/internal/services"
)

// Dependencies wires the collaborators a Runner drives.
type Dependencies struct {
	Config    *config.Config
	Store     Store
	Watermark Watermark
	Mail      MailSource
	Extractor Extractor
	Scorer    scoring.Scorer
	Fetcher   enrichment.Fetcher
	Renderer  Renderer
	Logger    *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes pipeline runs.
type Runner struct {
	deps       Dependencies
	merger     *ingest.Merger
	scoring    *scoring.Gate
	enrichment *enrichment.Gate
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner validates deps and builds the stage gates.
func NewRunner(deps Dependencies) (*Runner, error) {
	if deps.Config == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "config is required", nil)
	}
	if deps.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "store is required", nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.NewComponentLogger(deps.Logger, "pipeline")
	return &Runner{
		deps:       deps,
		merger:     ingest.NewMerger(deps.Store, deps.Logger, ingest.WithClock(now)),
		scoring:    scoring.NewGate(deps.Config, deps.Store, deps.Scorer, deps.Logger),
		enrichment: enrichment.NewGate(deps.Config, deps.Store, deps.Fetcher, deps.Logger),
		logger:     logger,
		now:        now,
	}, nil
}

// Run performs one full pipeline run. A failing stage stops the run and
// returns its error together with the summary so far.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, r.logger)

	if r.deps.Mail == nil || r.deps.Extractor == nil || r.deps.Watermark == nil {
		return summary, services.Wrap(services.ErrConfiguration, "pipeline", "run", "mail source, extractor, and watermark are required", nil)
	}

	since := opts.Since
	if since == nil {
		stored, err := r.deps.Watermark.Get()
		if err != nil {
			return summary, services.Wrap(services.ErrStorage, "pipeline", "read watermark", "", err)
		}
		since = stored
	}
	summary.Since = since
	if since != nil {
		logger.Info("run started", logging.Time("since", *since))
	} else {
		logger.Info("run started", logging.String("since", "beginning"))
	}

	if err := r.ingest(ctx, since, &summary); err != nil {
		return summary, err
	}

	scored, err := r.scoring.Run(ctx)
	summary.Scoring = scored
	if err != nil {
		return summary, err
	}

	enriched, err := r.enrichment.Run(ctx)
	summary.Enrichment = enriched
	if err != nil {
		return summary, err
	}

	if opts.SkipReport {
		logging.Decision(logger, "report skipped", "report_disabled", "requested by caller")
	} else {
		rendered, err := r.Report(ctx, since)
		if err != nil {
			return summary, err
		}
		summary.Report = &rendered
	}

	logger.Info("run complete",
		logging.Int("messages", summary.Messages),
		logging.Int("inserted", summary.Ingest.Inserted),
		logging.Int("scored", summary.Scoring.Scored),
		logging.Int("enriched", summary.Enrichment.Enriched),
		logging.Bool("watermark_advanced", summary.WatermarkAdvanced),
	)
	return summary, nil
}

// ingest fetches, extracts, and appends, then advances the watermark. The
// watermark only moves after the append committed.
func (r *Runner) ingest(ctx context.Context, since *time.Time, summary *Summary) error {
	ctx = services.WithStage(ctx, "ingest")
	logger := logging.WithContext(ctx, r.logger)

	messages, err := r.deps.Mail.FetchSince(ctx, since)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "ingest", "fetch messages", "", err)
	}
	summary.Messages = len(messages)
	if len(messages) == 0 {
		logging.Decision(logger, "ingestion skipped", "ingest_no_messages", "no new alert messages")
		return nil
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.After(messages[j].Timestamp)
	})

	var (
		candidates []ingest.Candidate
		processed  []time.Time
		failed     []time.Time
	)
	// Newest first for the watermark; candidates are built oldest first so a
	// title's earliest sighting is the one stored.
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		items, err := r.deps.Extractor.Extract(msg.Body)
		if err != nil {
			failed = append(failed, msg.Timestamp)
			logging.WarnWithContext(logger, "alert extraction failed", "extract_failed",
				logging.String("message_id", msg.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "watermark held below this message so it is retried"),
			)
			continue
		}
		processed = append(processed, msg.Timestamp)
		for _, item := range items {
			candidates = append(candidates, ingest.Candidate{
				Title:           item.Title,
				Link:            item.Link,
				Summary:         item.Summary,
				SourceMessageID: msg.ID,
				SourceTimestamp: msg.Timestamp,
			})
		}
	}
	summary.ExtractFailures = len(failed)

	merged, err := r.merger.Merge(ctx, candidates)
	summary.Ingest = merged
	if err != nil {
		return err
	}

	mark, ok := WatermarkCandidate(processed, failed)
	if !ok {
		logging.Decision(logger, "watermark unchanged", "watermark_hold", "no message processed ahead of a failed extraction")
		return nil
	}
	advanced, err := r.deps.Watermark.Advance(mark)
	if err != nil {
		return services.Wrap(services.ErrStorage, "ingest", "advance watermark", "", err)
	}
	summary.WatermarkAdvanced = advanced
	if advanced {
		summary.Watermark = &mark
		logger.Info("watermark advanced", logging.Time("watermark", mark))
	} else {
		logging.Decision(logger, "watermark unchanged", "watermark_not_newer", "batch maximum is not after the stored value",
			logging.Time("candidate", mark),
		)
	}
	return nil
}

// WatermarkCandidate returns the newest processed timestamp that is older
// than every failed one, so a failed message is fetched again next run.
func WatermarkCandidate(processed, failed []time.Time) (time.Time, bool) {
	var ceiling time.Time
	for i, ts := range failed {
		if i == 0 || ts.Before(ceiling) {
			ceiling = ts
		}
	}
	var mark time.Time
	found := false
	for _, ts := range processed {
		if len(failed) > 0 && !ts.Before(ceiling) {
			continue
		}
		if !found || ts.After(mark) {
			mark = ts
			found = true
		}
	}
	return mark, found
}

// Report renders stored records in the configured tiers received at or
// after since.
func (r *Runner) Report(ctx context.Context, since *time.Time) (ReportResult, error) {
	ctx = services.WithStage(ctx, "report")
	logger := logging.WithContext(ctx, r.logger)
	if r.deps.Renderer == nil {
		return ReportResult{}, services.Wrap(services.ErrConfiguration, "report", "run", "renderer is required", nil)
	}

	records, err := r.deps.Store.LoadAll(ctx)
	if err != nil {
		return ReportResult{}, err
	}
	tiers := r.deps.Config.ReportTiers()
	selected := report.Select(records, report.Criteria{Tiers: tiers, Since: since})
	if len(selected) == 0 {
		logging.Decision(logger, "report has no articles", "report_empty", "no records in report tiers for the window")
	}

	at := r.now()
	text, err := r.deps.Renderer.Render(selected, report.Parameters{GeneratedAt: at, Tiers: tiers, Since: since})
	if err != nil {
		return ReportResult{}, err
	}
	path, err := r.deps.Renderer.Persist(text, at)
	if err != nil {
		return ReportResult{}, err
	}
	logger.Info("report written", logging.String("path", path), logging.Int("articles", len(selected)))
	return ReportResult{Path: path, Articles: len(selected)}, nil
}

// IsCancelled reports whether err stems from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

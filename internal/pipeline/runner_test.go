package pipeline_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/pipeline"
	"scholardigest/internal/report"
	"scholardigest/internal/storage"
	"scholardigest/internal/testsupport"
	"scholardigest/internal/watermark"
)

type fakeMail struct {
	messages []pipeline.Message
	err      error
	since    *time.Time
	calls    int
}

func (f *fakeMail) FetchSince(_ context.Context, since *time.Time) ([]pipeline.Message, error) {
	f.calls++
	f.since = since
	if f.err != nil {
		return nil, f.err
	}
	return append([]pipeline.Message(nil), f.messages...), nil
}

// lineExtractor treats each body line "title|link" as one article. A body of
// "!fail" is an extraction error.
type lineExtractor struct{}

func (lineExtractor) Extract(body string) ([]pipeline.Extracted, error) {
	if body == "!fail" {
		return nil, errors.New("malformed alert")
	}
	var out []pipeline.Extracted
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		title, link, _ := strings.Cut(line, "|")
		out = append(out, pipeline.Extracted{Title: title, Link: link, Summary: "about " + title})
	}
	return out, nil
}

type countingScorer struct {
	calls atomic.Int32
	tier  article.Tier
}

func (s *countingScorer) Score(_ context.Context, input article.ScoreInput) (article.Verdict, error) {
	s.calls.Add(1)
	return article.Verdict{Tier: s.tier, Reason: "scored " + input.Title}, nil
}

type staticFetcher struct{ calls atomic.Int32 }

func (f *staticFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.calls.Add(1)
	return "full text of " + url, nil
}

type harness struct {
	cfg       *config.Config
	mail      *fakeMail
	scorer    *countingScorer
	fetcher   *staticFetcher
	watermark *watermark.Store
	runner    *pipeline.Runner
	store     *storage.Store
}

func newHarness(t *testing.T, messages []pipeline.Message, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	renderer, err := report.NewRenderer(cfg)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	h := &harness{
		cfg:       cfg,
		mail:      &fakeMail{messages: messages},
		scorer:    &countingScorer{tier: article.TierHigh},
		fetcher:   &staticFetcher{},
		watermark: watermark.New(cfg.WatermarkPath(), logging.NewNop()),
		store:     store,
	}
	h.runner, err = pipeline.NewRunner(pipeline.Dependencies{
		Config:    cfg,
		Store:     store,
		Watermark: h.watermark,
		Mail:      h.mail,
		Extractor: lineExtractor{},
		Scorer:    h.scorer,
		Fetcher:   h.fetcher,
		Renderer:  renderer,
		Logger:    logging.NewNop(),
		Now:       func() time.Time { return time.Date(2024, 5, 21, 8, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return h
}

func (h *harness) mustWatermark(t *testing.T) time.Time {
	t.Helper()
	ts, err := h.watermark.Get()
	if err != nil || ts == nil {
		t.Fatalf("watermark Get: %v %v", ts, err)
	}
	return *ts
}

func TestRunDeduplicatesAndAdvancesToBatchMaximum(t *testing.T) {
	h := newHarness(t, []pipeline.Message{
		{ID: "m-late", Timestamp: time.Unix(200, 0), Body: "quantum catalysis advances|https://example.org/late"},
		{ID: "m-early", Timestamp: time.Unix(100, 0), Body: "Quantum Catalysis Advances|https://example.org/early"},
	})

	summary, err := h.runner.Run(context.Background(), pipeline.RunOptions{SkipReport: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Ingest.Inserted != 1 || summary.Ingest.Duplicates != 1 {
		t.Fatalf("unexpected ingest result %+v", summary.Ingest)
	}
	records, _ := h.store.LoadAll(context.Background())
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].SourceTimestamp.Unix() != 100 || records[0].SourceMessageID != "m-early" {
		t.Fatalf("expected first occurrence provenance, got %d/%s", records[0].SourceTimestamp.Unix(), records[0].SourceMessageID)
	}
	if got := h.mustWatermark(t).Unix(); got != 200 {
		t.Fatalf("expected watermark 200, got %d", got)
	}
	if summary.RunID == "" {
		t.Fatal("expected a run id")
	}
}

func TestRunWatermarkIsBatchMaximum(t *testing.T) {
	h := newHarness(t, []pipeline.Message{
		{ID: "a", Timestamp: time.Unix(10, 0), Body: "Ten|https://x/10"},
		{ID: "b", Timestamp: time.Unix(30, 0), Body: "Thirty|https://x/30"},
		{ID: "c", Timestamp: time.Unix(20, 0), Body: "Twenty|https://x/20"},
	})
	if _, err := h.runner.Run(context.Background(), pipeline.RunOptions{SkipReport: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.mustWatermark(t).Unix(); got != 30 {
		t.Fatalf("expected watermark 30, got %d", got)
	}
}

func TestRunUsesStoredWatermarkAsSince(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.watermark.Set(time.Unix(500, 0)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	summary, err := h.runner.Run(context.Background(), pipeline.RunOptions{SkipReport: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.mail.since == nil || h.mail.since.Unix() != 500 {
		t.Fatalf("expected fetch since 500, got %v", h.mail.since)
	}
	if summary.WatermarkAdvanced {
		t.Fatal("empty fetch must not move the watermark")
	}
	if got := h.mustWatermark(t).Unix(); got != 500 {
		t.Fatalf("watermark changed to %d", got)
	}
}

func TestRunNeverRegressesWatermark(t *testing.T) {
	h := newHarness(t, []pipeline.Message{{ID: "old", Timestamp: time.Unix(50, 0), Body: "Old|https://x/old"}})
	if err := h.watermark.Set(time.Unix(90, 0)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	since := time.Unix(0, 0)
	summary, err := h.runner.Run(context.Background(), pipeline.RunOptions{Since: &since, SkipReport: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.WatermarkAdvanced {
		t.Fatal("expected watermark to stay")
	}
	if got := h.mustWatermark(t).Unix(); got != 90 {
		t.Fatalf("watermark regressed to %d", got)
	}
}

func TestRunMailFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, nil)
	h.mail.err = errors.New("gmail unavailable")
	if _, err := h.runner.Run(context.Background(), pipeline.RunOptions{}); err == nil {
		t.Fatal("expected mail failure to fail the run")
	}
	if _, err := os.Stat(h.cfg.WatermarkPath()); !os.IsNotExist(err) {
		t.Fatalf("expected no watermark file, stat err=%v", err)
	}
	if h.scorer.calls.Load() != 0 {
		t.Fatal("scoring ran after a failed fetch")
	}
}

func TestRunExtractionFailureHoldsWatermark(t *testing.T) {
	h := newHarness(t, []pipeline.Message{
		{ID: "ok-early", Timestamp: time.Unix(10, 0), Body: "Early|https://x/e"},
		{ID: "broken", Timestamp: time.Unix(20, 0), Body: "!fail"},
		{ID: "ok-late", Timestamp: time.Unix(30, 0), Body: "Late|https://x/l"},
	})
	summary, err := h.runner.Run(context.Background(), pipeline.RunOptions{SkipReport: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.ExtractFailures != 1 || summary.Ingest.Inserted != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := h.mustWatermark(t).Unix(); got != 10 {
		t.Fatalf("expected watermark held at 10, got %d", got)
	}
}

func TestRunExclusionKeywordSkipsScorer(t *testing.T) {
	h := newHarness(t, []pipeline.Message{
		{ID: "m", Timestamp: time.Unix(10, 0), Body: "Retracted: Battery Chemistry|https://x/r\nSolid Electrolytes|https://x/s"},
	}, testsupport.WithExcludeKeywords("retracted"))

	summary, err := h.runner.Run(context.Background(), pipeline.RunOptions{SkipReport: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Scoring.Excluded != 1 || h.scorer.calls.Load() != 1 {
		t.Fatalf("expected one exclusion and one scorer call, got %+v calls=%d", summary.Scoring, h.scorer.calls.Load())
	}
	byKey := testsupport.RecordsByKey(mustLoad(t, h.store))
	excluded := byKey[article.HashKey("Retracted: Battery Chemistry")]
	if excluded.Relevance == nil || *excluded.Relevance != article.TierLow {
		t.Fatalf("expected Low, got %v", excluded.Relevance)
	}
	if *excluded.RelevanceReason != "Auto-excluded by keyword: retracted" {
		t.Fatalf("unexpected reason %q", *excluded.RelevanceReason)
	}
}

func TestRunEndToEndWritesReport(t *testing.T) {
	h := newHarness(t, []pipeline.Message{
		{ID: "m", Timestamp: time.Unix(1716199200, 0), Body: "Operando Spectroscopy|https://x/op"},
	}, testsupport.WithEnrichment(true))

	summary, err := h.runner.Run(context.Background(), pipeline.RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Scoring.Scored != 1 || summary.Enrichment.Enriched != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Report == nil || summary.Report.Articles != 1 {
		t.Fatalf("expected one reported article, got %+v", summary.Report)
	}
	text := testsupport.ReadFile(t, summary.Report.Path)
	if !strings.Contains(text, "[Operando Spectroscopy](https://x/op)") ||
		!strings.Contains(text, "Full Text Snippet:** full text of https://x/op") {
		t.Fatalf("unexpected report:\n%s", text)
	}

	// A second run over the same mail neither rescores nor refetches.
	again, err := h.runner.Run(context.Background(), pipeline.RunOptions{SkipReport: true})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Ingest.Inserted != 0 || !again.Scoring.Skipped || !again.Enrichment.Skipped {
		t.Fatalf("expected idempotent rerun, got %+v", again)
	}
	if h.scorer.calls.Load() != 1 || h.fetcher.calls.Load() != 1 {
		t.Fatalf("collaborators called again: scorer=%d fetcher=%d", h.scorer.calls.Load(), h.fetcher.calls.Load())
	}
}

func TestReportUsesSinceWindow(t *testing.T) {
	h := newHarness(t, nil)
	testsupport.MustAppend(t, h.store,
		testsupport.Scored(testsupport.NewRecord("Old High", 10), article.TierHigh, "x"),
		testsupport.Scored(testsupport.NewRecord("New Medium", 30), article.TierMedium, "x"),
		testsupport.Scored(testsupport.NewRecord("New Low", 40), article.TierLow, "x"),
	)
	since := time.Unix(20, 0)
	result, err := h.runner.Report(context.Background(), &since)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if result.Articles != 1 {
		t.Fatalf("expected 1 article, got %d", result.Articles)
	}
	text := testsupport.ReadFile(t, result.Path)
	if !strings.Contains(text, "New Medium") || strings.Contains(text, "Old High") || strings.Contains(text, "New Low") {
		t.Fatalf("unexpected report:\n%s", text)
	}
}

func TestWatermarkCandidate(t *testing.T) {
	tests := []struct {
		name      string
		processed []int64
		failed    []int64
		want      int64
		ok        bool
	}{
		{name: "max", processed: []int64{10, 30, 20}, want: 30, ok: true},
		{name: "below failure", processed: []int64{10, 30}, failed: []int64{20}, want: 10, ok: true},
		{name: "earliest failure bounds", processed: []int64{5, 15, 25}, failed: []int64{20, 12}, want: 5, ok: true},
		{name: "all failed", failed: []int64{7}, ok: false},
		{name: "none", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pipeline.WatermarkCandidate(unixTimes(tt.processed), unixTimes(tt.failed))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Unix() != tt.want {
				t.Fatalf("got %d, want %d", got.Unix(), tt.want)
			}
		})
	}
}

func unixTimes(values []int64) []time.Time {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		out = append(out, time.Unix(v, 0))
	}
	return out
}

func mustLoad(t *testing.T, store *storage.Store) []article.Record {
	t.Helper()
	records, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return records
}

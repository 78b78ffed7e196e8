package enrichment_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"scholardigest/internal/article"
	"scholardigest/internal/enrichment"
	"scholardigest/internal/logging"
	"scholardigest/internal/testsupport"
)

type fakeFetcher struct {
	mu    sync.Mutex
	links []string
	pages map[string]string
	fail  map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	f.links = append(f.links, url)
	f.mu.Unlock()
	if err, ok := f.fail[url]; ok {
		return "", err
	}
	return f.pages[url], nil
}

func (f *fakeFetcher) fetched(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.links {
		if l == url {
			return true
		}
	}
	return false
}

func TestRunOnlyFetchesTargetTiers(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnrichment(true))
	store := testsupport.MustOpenStore(t, cfg)

	high := testsupport.Scored(testsupport.NewRecord("High One", 1), article.TierHigh, "core")
	medium := testsupport.Scored(testsupport.NewRecord("Medium One", 2), article.TierMedium, "adjacent")
	low := testsupport.Scored(testsupport.NewRecord("Low One", 3), article.TierLow, "off topic")
	failed := testsupport.Scored(testsupport.NewRecord("Error One", 4), article.TierError, "timeout")
	unscored := testsupport.NewRecord("Unscored One", 5)
	done := testsupport.Scored(testsupport.NewRecord("Done One", 6), article.TierHigh, "core")
	done.EnrichedText = article.StringPtr("already here")
	testsupport.MustAppend(t, store, high, medium, low, failed, unscored, done)

	long := strings.Repeat("x", 1500)
	fetcher := &fakeFetcher{
		pages: map[string]string{high.Link: long, medium.Link: "  "},
	}
	result, err := enrichment.NewGate(cfg, store, fetcher, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Eligible != 2 || result.Enriched != 1 || result.Empty != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, rec := range []article.Record{low, failed, unscored, done} {
		if fetcher.fetched(rec.Link) {
			t.Fatalf("fetched ineligible record %q", rec.Title)
		}
	}

	byKey := testsupport.RecordsByKey(mustLoad(t, store))
	text := *byKey[high.ContentHash].EnrichedText
	if text != strings.Repeat("x", 1000)+"..." {
		t.Fatalf("unexpected truncation: len=%d suffix=%q", len(text), text[len(text)-5:])
	}
	if got := *byKey[medium.ContentHash].EnrichedText; got != enrichment.EmptyTextMarker {
		t.Fatalf("unexpected empty marker %q", got)
	}
	if byKey[low.ContentHash].EnrichedText != nil || byKey[unscored.ContentHash].EnrichedText != nil {
		t.Fatal("ineligible records gained enriched text")
	}
	if *byKey[done.ContentHash].EnrichedText != "already here" {
		t.Fatal("existing enriched text was replaced")
	}
}

func TestRunStoresFailureMarker(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnrichment(true))
	store := testsupport.MustOpenStore(t, cfg)
	rec := testsupport.Scored(testsupport.NewRecord("Paywalled", 1), article.TierHigh, "core")
	testsupport.MustAppend(t, store, rec)

	fetcher := &fakeFetcher{fail: map[string]error{rec.Link: errors.New("webfetch: http 403 Forbidden")}}
	gate := enrichment.NewGate(cfg, store, fetcher, logging.NewNop())
	result, err := gate.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	got := *mustLoad(t, store)[0].EnrichedText
	if got != "Error retrieving full text: webfetch: http 403 Forbidden" {
		t.Fatalf("unexpected marker %q", got)
	}

	again, err := gate.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !again.Skipped {
		t.Fatalf("expected failed record not to be retried, got %+v", again)
	}
}

type cancellingFetcher struct {
	keep   string
	cancel context.CancelFunc
}

func (f *cancellingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if url == f.keep {
		return "full text of the article", nil
	}
	f.cancel()
	return "", ctx.Err()
}

func TestRunCancelledKeepsFetchedText(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEnrichment(true))
	store := testsupport.MustOpenStore(t, cfg)
	first := testsupport.Scored(testsupport.NewRecord("First", 1), article.TierHigh, "core")
	second := testsupport.Scored(testsupport.NewRecord("Second", 2), article.TierHigh, "core")
	testsupport.MustAppend(t, store, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancellingFetcher{keep: first.Link, cancel: cancel}
	result, err := enrichment.NewGate(cfg, store, fetcher, logging.NewNop()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Enriched != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	byKey := testsupport.RecordsByKey(mustLoad(t, store))
	if got := byKey[first.ContentHash].EnrichedText; got == nil || *got != "full text of the article" {
		t.Fatalf("expected fetched text to persist, got %v", got)
	}
	if got := byKey[second.ContentHash].EnrichedText; got != nil {
		t.Fatalf("expected cancelled record to stay unenriched, got %q", *got)
	}
}

func TestRunDisabledCompletesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, cfg.RecordsCSVPath(), "content_hash,title,link,summary,relevance\nk1,T,http://x,,High\n")
	store := testsupport.MustOpenStore(t, cfg)
	fetcher := &fakeFetcher{}

	result, err := enrichment.NewGate(cfg, store, fetcher, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Disabled {
		t.Fatalf("expected disabled result, got %+v", result)
	}
	if len(fetcher.links) != 0 {
		t.Fatal("disabled gate fetched links")
	}
	data, err := os.ReadFile(cfg.RecordsCSVPath())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if !strings.Contains(strings.SplitN(string(data), "\n", 2)[0], "enriched_text") {
		t.Fatalf("expected enriched_text column after schema completion:\n%s", data)
	}
	if rec := mustLoad(t, store)[0]; rec.EnrichedText != nil {
		t.Fatalf("expected nil enriched text, got %q", *rec.EnrichedText)
	}
}

func TestSettingsNeverTargetLowOrError(t *testing.T) {
	settings := enrichment.Settings{Enabled: true, Tiers: []article.Tier{article.TierLow, article.TierError}}
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	low := testsupport.Scored(testsupport.NewRecord("Low", 1), article.TierLow, "x")
	testsupport.MustAppend(t, store, low)
	fetcher := &fakeFetcher{}

	result, err := enrichment.NewGateWithSettings(settings, store, fetcher, logging.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Skipped || fetcher.fetched(low.Link) {
		t.Fatalf("expected Low record to be ignored, result=%+v", result)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
		want enrichment.Outcome
	}{
		{name: "short", text: " body ", want: enrichment.Outcome{Text: "body"}},
		{name: "empty", text: "", want: enrichment.Outcome{Text: enrichment.EmptyTextMarker, Empty: true}},
		{name: "error", err: errors.New(strings.Repeat("e", 150)), want: enrichment.Outcome{Text: enrichment.FailurePrefix + strings.Repeat("e", 100), Failed: true}},
		{name: "cut", text: "abcdef", want: enrichment.Outcome{Text: "abc..."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit := 1000
			if tt.name == "cut" {
				limit = 3
			}
			if got := enrichment.Summarize(tt.text, tt.err, limit); got != tt.want {
				t.Fatalf("Summarize = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func mustLoad(t *testing.T, store enrichment.Store) []article.Record {
	t.Helper()
	records, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	return records
}

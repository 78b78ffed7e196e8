package testsupport

import (
	"context"
	"testing"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/logging"
	"scholardigest/internal/storage"
)

// MustOpenStore opens a storage.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *storage.Store {
	t.Helper()

	store, err := storage.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord builds an unscored record keyed by title.
func NewRecord(title string, sourceUnix int64) article.Record {
	return article.Record{
		ContentHash:     article.HashKey(title),
		Title:           title,
		Link:            "https://example.org/" + article.HashKey(title)[:8],
		Summary:         "Summary of " + title,
		SourceMessageID: "msg-" + article.HashKey(title)[:6],
		SourceTimestamp: time.Unix(sourceUnix, 0).UTC(),
		CreatedAt:       time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
	}
}

// Scored returns rec with the given verdict applied.
func Scored(rec article.Record, tier article.Tier, reason string) article.Record {
	article.Verdict{Tier: tier, Reason: reason}.Fields().Apply(&rec)
	return rec
}

// MustAppend stores records and fails the test on error.
func MustAppend(t testing.TB, store *storage.Store, records ...article.Record) int {
	t.Helper()

	n, err := store.AppendNew(context.Background(), records)
	if err != nil {
		t.Fatalf("AppendNew: %v", err)
	}
	return n
}

// RecordsByKey indexes records by content hash.
func RecordsByKey(records []article.Record) map[string]article.Record {
	out := make(map[string]article.Record, len(records))
	for _, rec := range records {
		out[rec.ContentHash] = rec
	}
	return out
}

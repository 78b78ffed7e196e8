package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/logging"
	"scholardigest/internal/textutil"
)

// Candidate is one article extracted from a source message.
type Candidate struct {
	Title           string
	Link            string
	Summary         string
	SourceMessageID string
	SourceTimestamp time.Time
}

// Appender persists records that are not yet stored.
type Appender interface {
	AppendNew(ctx context.Context, records []article.Record) (int, error)
}

// Result counts the outcome of one merge.
type Result struct {
	Received   int
	Inserted   int
	Duplicates int
	Invalid    int
}

// Merger keys candidates and appends them to the store.
type Merger struct {
	store  Appender
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes a Merger.
type Option func(*Merger)

// WithClock overrides the CreatedAt clock.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMerger constructs a merger over store.
func NewMerger(store Appender, logger *slog.Logger, opts ...Option) *Merger {
	m := &Merger{
		store:  store,
		now:    time.Now,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge appends candidates not yet stored. Candidates without a title are
// dropped and counted as invalid.
func (m *Merger) Merge(ctx context.Context, candidates []Candidate) (Result, error) {
	result := Result{Received: len(candidates)}
	if len(candidates) == 0 {
		logging.Decision(m.logger, "ingestion skipped", "ingest_empty", "no candidates")
		return result, nil
	}

	createdAt := m.now().UTC()
	records := make([]article.Record, 0, len(candidates))
	for _, candidate := range candidates {
		title := textutil.CollapseWhitespace(candidate.Title)
		if title == "" {
			result.Invalid++
			continue
		}
		records = append(records, article.Record{
			ContentHash:     article.HashKey(title),
			Title:           title,
			Link:            strings.TrimSpace(candidate.Link),
			Summary:         strings.TrimSpace(candidate.Summary),
			SourceMessageID: candidate.SourceMessageID,
			SourceTimestamp: candidate.SourceTimestamp.UTC(),
			CreatedAt:       createdAt,
		})
	}

	inserted, err := m.store.AppendNew(ctx, records)
	if err != nil {
		return result, err
	}
	result.Inserted = inserted
	result.Duplicates = len(records) - inserted

	m.logger.Info("ingestion merged",
		logging.Int("received", result.Received),
		logging.Int("inserted", result.Inserted),
		logging.Int("duplicates", result.Duplicates),
		logging.Int("invalid", result.Invalid),
	)
	return result, nil
}

package pipeline

import (
	"context"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/enrichment"
	"scholardigest/internal/ingest"
	"scholardigest/internal/report"
	"scholardigest/internal/scoring"
)

// Message is one alert email.
type Message struct {
	ID        string
	Timestamp time.Time
	Body      string
}

// MailSource lists alert messages received at or after since. A nil since
// means no lower bound.
type MailSource interface {
	FetchSince(ctx context.Context, since *time.Time) ([]Message, error)
}

// Extracted is one article parsed out of a message body.
type Extracted struct {
	Title   string
	Link    string
	Summary string
}

// Extractor parses articles from a message body.
type Extractor interface {
	Extract(body string) ([]Extracted, error)
}

// Renderer turns selected records into a persisted report.
type Renderer interface {
	Render(records []article.Record, params report.Parameters) (string, error)
	Persist(text string, at time.Time) (string, error)
}

// Watermark tracks the newest processed message time.
type Watermark interface {
	Get() (*time.Time, error)
	Advance(ts time.Time) (bool, error)
}

// Store is the record store surface used across stages.
type Store interface {
	ingest.Appender
	enrichment.Store
}

// RunOptions controls one pipeline run.
type RunOptions struct {
	// Since overrides the stored watermark as the fetch lower bound.
	Since *time.Time
	// SkipReport stops the run after enrichment.
	SkipReport bool
}

// ReportResult describes a rendered report.
type ReportResult struct {
	Path     string
	Articles int
}

// Summary describes a completed run.
type Summary struct {
	RunID             string
	Since             *time.Time
	Messages          int
	ExtractFailures   int
	Ingest            ingest.Result
	Watermark         *time.Time
	WatermarkAdvanced bool
	Scoring           scoring.Result
	Enrichment        enrichment.Result
	Report            *ReportResult
}

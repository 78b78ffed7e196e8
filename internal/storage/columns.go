package storage

import (
	"fmt"
	"strings"
	"time"

	"scholardigest/internal/article"
)

const (
	colContentHash     = "content_hash"
	colTitle           = "title"
	colLink            = "link"
	colSummary         = "summary"
	colSourceMessageID = "source_message_id"
	colSourceTimestamp = "source_timestamp"
	colRelevance       = "relevance"
	colRelevanceReason = "relevance_reason"
	colEnrichedText    = "enriched_text"
	colCreatedAt       = "created_at"
)

// columns is the canonical column order for both tables.
var columns = []string{
	colContentHash,
	colTitle,
	colLink,
	colSummary,
	colSourceMessageID,
	colSourceTimestamp,
	colRelevance,
	colRelevanceReason,
	colEnrichedText,
	colCreatedAt,
}

// headerAliases maps normalized header names (lower case, no underscores) to
// canonical columns. It covers the canonical names, camelCase spellings, and
// the column names written by earlier versions of the tool.
var headerAliases = map[string]string{
	"contenthash":     colContentHash,
	"hash":            colContentHash,
	"title":           colTitle,
	"link":            colLink,
	"url":             colLink,
	"summary":         colSummary,
	"sourcemessageid": colSourceMessageID,
	"emailid":         colSourceMessageID,
	"sourcetimestamp": colSourceTimestamp,
	"emaildate":       colSourceTimestamp,
	"relevance":       colRelevance,
	"score":           colRelevance,
	"relevancereason": colRelevanceReason,
	"reason":          colRelevanceReason,
	"enrichedtext":    colEnrichedText,
	"fulltextsummary": colEnrichedText,
	"createdat":       colCreatedAt,
	"addedat":         colCreatedAt,
}

func canonicalColumn(header string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(header))
	key = strings.TrimPrefix(key, "\ufeff")
	key = strings.ReplaceAll(key, "_", "")
	col, ok := headerAliases[key]
	return col, ok
}

// recordValues renders r as canonical column strings. Nil optional fields
// render as empty cells.
func recordValues(r article.Record) []string {
	return []string{
		r.ContentHash,
		r.Title,
		r.Link,
		r.Summary,
		r.SourceMessageID,
		article.FormatEpoch(r.SourceTimestamp),
		derefTier(r.Relevance),
		deref(r.RelevanceReason),
		deref(r.EnrichedText),
		formatCreatedAt(r.CreatedAt),
	}
}

// recordFromValues builds a record from canonical column values. Missing
// entries are treated as empty.
func recordFromValues(values map[string]string) (article.Record, error) {
	rec := article.Record{
		ContentHash:     strings.TrimSpace(values[colContentHash]),
		Title:           values[colTitle],
		Link:            values[colLink],
		Summary:         values[colSummary],
		SourceMessageID: values[colSourceMessageID],
		Relevance:       nullableTier(values[colRelevance]),
		RelevanceReason: nullable(values[colRelevanceReason]),
		EnrichedText:    nullable(values[colEnrichedText]),
	}
	if rec.ContentHash == "" {
		if strings.TrimSpace(rec.Title) == "" {
			return rec, fmt.Errorf("row has neither %s nor %s", colContentHash, colTitle)
		}
		rec.ContentHash = article.HashKey(rec.Title)
	}
	if raw := strings.TrimSpace(values[colSourceTimestamp]); raw != "" {
		ts, err := parseTimestampText(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", colSourceTimestamp, err)
		}
		rec.SourceTimestamp = ts
	}
	if raw := strings.TrimSpace(values[colCreatedAt]); raw != "" {
		ts, err := parseTimestampText(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %w", colCreatedAt, err)
		}
		rec.CreatedAt = ts
	}
	return rec, nil
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestampText accepts epoch seconds or the layouts above.
func parseTimestampText(raw string) (time.Time, error) {
	if ts, err := article.ParseEpoch(raw); err == nil {
		return ts, nil
	}
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func formatCreatedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func nullableTier(value string) *article.Tier {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "nan") {
		return nil
	}
	tier := article.Tier(trimmed)
	return &tier
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func derefTier(value *article.Tier) string {
	if value == nil {
		return ""
	}
	return string(*value)
}

// dedupeFirst drops records whose key repeats, keeping the first occurrence.
func dedupeFirst(records []article.Record) []article.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]article.Record, 0, len(records))
	for _, rec := range records {
		if rec.ContentHash == "" {
			continue
		}
		if _, ok := seen[rec.ContentHash]; ok {
			continue
		}
		seen[rec.ContentHash] = struct{}{}
		out = append(out, rec)
	}
	return out
}

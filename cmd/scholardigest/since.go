package main

import (
	"fmt"
	"strings"
	"time"

	"scholardigest/internal/article"
)

var localTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimestamp accepts Unix seconds, RFC 3339, or a local
// YYYY-MM-DD[ HH:MM[:SS]] value.
func parseTimestamp(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := article.ParseEpoch(trimmed); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return ts, nil
	}
	for _, layout := range localTimeLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q (use Unix seconds, RFC 3339, or YYYY-MM-DD[ HH:MM[:SS]])", trimmed)
}

// optionalTimestamp parses value when set and returns nil otherwise.
func optionalTimestamp(flag, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	ts, err := parseTimestamp(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &ts, nil
}

func formatTimestamp(ts *time.Time) string {
	if ts == nil {
		return "never"
	}
	return ts.Local().Format("2006-01-02 15:04:05 MST")
}

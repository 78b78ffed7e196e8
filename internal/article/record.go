package article

import (
	"strings"
	"time"
)

// Tier is a relevance classification bucket.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
	TierError  Tier = "Error"
)

// String returns the tier label.
func (t Tier) String() string {
	return string(t)
}

// ParseTier maps a label to a Tier using the provided candidates.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseTier(value string, candidates ...Tier) (Tier, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", false
	}
	for _, candidate := range candidates {
		if strings.EqualFold(trimmed, string(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// Record is the unit of persistence.
type Record struct {
	ContentHash     string
	Title           string
	Link            string
	Summary         string
	SourceMessageID string
	SourceTimestamp time.Time
	Relevance       *Tier
	RelevanceReason *string
	EnrichedText    *string
	CreatedAt       time.Time
}

// Scored reports whether the record carries a relevance verdict.
func (r Record) Scored() bool {
	return r.Relevance != nil
}

// Enriched reports whether enrichment was attempted for the record.
func (r Record) Enriched() bool {
	return r.EnrichedText != nil
}

// HasTier reports whether the record's relevance equals one of tiers.
func (r Record) HasTier(tiers ...Tier) bool {
	if r.Relevance == nil {
		return false
	}
	for _, tier := range tiers {
		if *r.Relevance == tier {
			return true
		}
	}
	return false
}

// Fields is a partial update. Nil pointers leave the stored value untouched.
type Fields struct {
	Relevance       *Tier
	RelevanceReason *string
	EnrichedText    *string
}

// Empty reports whether no field is named.
func (f Fields) Empty() bool {
	return f.Relevance == nil && f.RelevanceReason == nil && f.EnrichedText == nil
}

// Apply overwrites the named fields on r.
func (f Fields) Apply(r *Record) {
	if r == nil {
		return
	}
	if f.Relevance != nil {
		tier := *f.Relevance
		r.Relevance = &tier
	}
	if f.RelevanceReason != nil {
		reason := *f.RelevanceReason
		r.RelevanceReason = &reason
	}
	if f.EnrichedText != nil {
		text := *f.EnrichedText
		r.EnrichedText = &text
	}
}

// Update addresses a partial update to one record.
type Update struct {
	Key    string
	Fields Fields
}

// ScoreInput is the text submitted to a relevance scorer.
type ScoreInput struct {
	Key     string
	Title   string
	Summary string
}

// Verdict is a scorer outcome.
type Verdict struct {
	Tier   Tier
	Reason string
}

// Fields converts the verdict into a scoring update.
func (v Verdict) Fields() Fields {
	tier := v.Tier
	reason := v.Reason
	return Fields{Relevance: &tier, RelevanceReason: &reason}
}

// TierPtr returns a pointer to t.
func TierPtr(t Tier) *Tier {
	return &t
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

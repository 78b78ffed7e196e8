package report

import (
	"sort"
	"time"

	"scholardigest/internal/article"
)

// Criteria narrows the records included in a report.
type Criteria struct {
	// Tiers lists the included tiers in precedence order.
	Tiers []article.Tier
	// Since excludes records older than the given instant when set.
	Since *time.Time
}

// Select returns the records matching criteria ordered by tier rank, then by
// source timestamp descending. The input slice is left untouched.
func Select(records []article.Record, criteria Criteria) []article.Record {
	rank := make(map[article.Tier]int, len(criteria.Tiers))
	for i, tier := range criteria.Tiers {
		if _, dup := rank[tier]; !dup {
			rank[tier] = i
		}
	}

	out := make([]article.Record, 0, len(records))
	for _, rec := range records {
		if rec.Relevance == nil {
			continue
		}
		if _, ok := rank[*rec.Relevance]; !ok {
			continue
		}
		if criteria.Since != nil && rec.SourceTimestamp.Before(*criteria.Since) {
			continue
		}
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank[*out[i].Relevance], rank[*out[j].Relevance]
		if ri != rj {
			return ri < rj
		}
		return out[i].SourceTimestamp.After(out[j].SourceTimestamp)
	})
	return out
}

// Group splits selected records into per-tier sections in precedence order.
// Tiers without records are kept so templates can render empty sections.
func Group(records []article.Record, tiers []article.Tier) []Section {
	sections := make([]Section, 0, len(tiers))
	index := make(map[article.Tier]int, len(tiers))
	for _, tier := range tiers {
		if _, dup := index[tier]; dup {
			continue
		}
		index[tier] = len(sections)
		sections = append(sections, Section{Tier: tier})
	}
	for _, rec := range records {
		if rec.Relevance == nil {
			continue
		}
		if i, ok := index[*rec.Relevance]; ok {
			sections[i].Records = append(sections[i].Records, rec)
		}
	}
	return sections
}

// Section is one tier's slice of a report.
type Section struct {
	Tier    article.Tier
	Records []article.Record
}

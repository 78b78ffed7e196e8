// Package enrichment attaches fetched web text to high-value records.
//
// The Gate selects records whose relevance is in the configured target tiers
// and whose enriched text is nil, fetches each link, and writes the outcome
// back in one batch. A failed fetch stores a short failure marker instead of
// leaving the field nil, so a record is attempted once; nil always means
// "not yet attempted". Low and Error records are never fetched.
//
// When web enrichment is disabled the gate only makes sure the stored table
// carries the enriched_text column.
package enrichment

// Package article defines the persisted article record and its content key.
//
// Records are addressed by ContentHash, a sha256 digest of the normalized
// title. Descriptive fields are written once at ingestion; only the scoring
// and enrichment fields change afterwards, through Fields-based partial
// updates applied by the storage package.
package article

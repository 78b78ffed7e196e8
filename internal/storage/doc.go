// Package storage persists article records keyed by content hash.
//
// A Store composes two Tables: the primary flat CSV file, which is the read
// source, and a SQLite mirror that offers indexed queries and idempotent
// INSERT OR IGNORE semantics on the content_hash primary key. Every write goes
// to the primary first and is then mirrored.
//
// Records are insert-if-absent: the first occurrence of a hash wins and its
// descriptive fields are never rewritten. Only relevance, relevance_reason,
// and enriched_text change after insertion, through UpdateMany.
//
// An unreadable primary is logged and read as empty so a run can proceed,
// but writes refuse to replace a file they could not parse (ErrCorruptStore).
// Legacy files with older column names or missing optional columns load with
// nil fields; EnsureSchema rewrites them with the full column set.
package storage

// Package ingest turns freshly extracted articles into stored records.
//
// The Merger keys each candidate by article.HashKey, stamps CreatedAt, and
// hands the batch to the record store's AppendNew, which drops anything
// already present. A batch made entirely of duplicates inserts nothing and
// is not an error.
package ingest

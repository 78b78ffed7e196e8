// Package textutil provides text helpers shared by the scoring, enrichment,
// and report packages.
//
// Truncation counts runes, not bytes, so multi-byte characters are never
// split. Case-insensitive matching uses Unicode case folding.
package textutil

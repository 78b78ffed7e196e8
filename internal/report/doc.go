// Package report selects scored records for the digest and renders them as
// Markdown.
//
// Select filters by tier and recency and orders the result by tier
// precedence, newest first within a tier. Renderer executes a text/template
// (the embedded default or output.template_file) and persists the output to
// a timestamped file in the report directory.
package report

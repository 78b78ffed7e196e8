// Package pipeline runs the digest stages in order: fetch alert messages,
// extract and ingest articles, advance the watermark, score, enrich, and
// render the report.
//
// Each stage reads one store snapshot and writes one batch. A failing stage
// stops the run; earlier stages' writes stay committed so the next run
// resumes from stored state. Lock serializes runs that mutate the data
// directory.
package pipeline

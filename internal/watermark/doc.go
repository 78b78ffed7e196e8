// Package watermark persists the timestamp of the newest source item that
// was durably ingested. The next run fetches only items after it.
//
// The value lives in a single text file holding Unix epoch seconds. Get
// treats a missing or unparsable file as "never set". Advance is the only
// writer used by the pipeline and never moves the value backwards; Set is
// reserved for manual overrides.
package watermark

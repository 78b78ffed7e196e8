// Package scoring assigns relevance tiers to stored records that lack one.
//
// Each run the Gate loads the full store, selects records whose relevance is
// nil, short-circuits those matching an exclusion keyword to Low, and sends
// the rest to a Scorer. Scorer calls may run on a bounded worker pool; a
// failed or timed-out call degrades that record to the Error tier without
// affecting its siblings. All verdicts are written back in one UpdateMany
// call keyed by content hash, so the outcome does not depend on completion
// order.
//
// Records already scored are never resubmitted. With scoring.retry_errors
// enabled, Error verdicts are treated as unscored and retried.
package scoring

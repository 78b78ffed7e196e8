// Package scholar extracts article entries from Google Scholar alert email
// HTML.
//
// Each entry is an h3 holding an a.gse_alrt_title anchor; the snippet is the
// first div.gse_alrt_sni sibling after it and before the next h3. Scholar
// redirect links are unwrapped to the publisher URL.
package scholar

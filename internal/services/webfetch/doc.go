// Package webfetch downloads article pages and reduces them to readable
// text for enrichment.
//
// The main content is taken from go-readability; pages where readability
// finds nothing fall back to the body text with script and style removed.
package webfetch

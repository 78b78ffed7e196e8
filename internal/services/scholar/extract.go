package scholar

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scholardigest/internal/pipeline"
	"scholardigest/internal/textutil"
)

const (
	titleSelector  = "a.gse_alrt_title"
	snippetClass   = "gse_alrt_sni"
	redirectPath   = "/scholar_url"
	redirectTarget = "url"
)

// Extractor parses alert bodies.
type Extractor struct {
	unwrap bool
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithRedirectLinks keeps scholar_url redirect links instead of unwrapping
// them.
func WithRedirectLinks() Option {
	return func(e *Extractor) {
		e.unwrap = false
	}
}

// NewExtractor constructs an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{unwrap: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the articles in body. Entries without a title or link are
// skipped. An empty body is an error.
func (e *Extractor) Extract(body string) ([]pipeline.Extracted, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("scholar: empty message body")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scholar: parse html: %w", err)
	}

	var out []pipeline.Extracted
	doc.Find("h3").Each(func(_ int, heading *goquery.Selection) {
		anchor := heading.Find(titleSelector).First()
		if anchor.Length() == 0 {
			return
		}
		title := textutil.CollapseWhitespace(anchor.Text())
		link := strings.TrimSpace(anchor.AttrOr("href", ""))
		if title == "" || link == "" {
			return
		}
		if e.unwrap {
			link = UnwrapLink(link)
		}
		out = append(out, pipeline.Extracted{
			Title:   title,
			Link:    link,
			Summary: snippet(heading),
		})
	})
	return out, nil
}

// snippet finds the summary div between heading and the next h3.
func snippet(heading *goquery.Selection) string {
	for sib := heading.Next(); sib.Length() > 0; sib = sib.Next() {
		if goquery.NodeName(sib) == "h3" {
			return ""
		}
		if goquery.NodeName(sib) == "div" && sib.HasClass(snippetClass) {
			return textutil.CollapseWhitespace(sib.Text())
		}
	}
	return ""
}

// UnwrapLink returns the target of a Scholar redirect link, or link itself
// when it is not one.
func UnwrapLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil || parsed.Path != redirectPath {
		return link
	}
	target := strings.TrimSpace(parsed.Query().Get(redirectTarget))
	if target == "" {
		return link
	}
	return target
}

package webfetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"scholardigest/internal/config"
	"scholardigest/internal/textutil"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 5 << 20
)

// Config holds fetcher settings.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	ProxyURL  string
}

// ConfigFromConfig resolves fetcher settings from the enrichment and proxy
// sections.
func ConfigFromConfig(cfg *config.Config) Config {
	return Config{
		UserAgent: cfg.Enrichment.UserAgent,
		Timeout:   time.Duration(cfg.Enrichment.TimeoutSeconds) * time.Second,
		ProxyURL:  cfg.Proxy.URL,
	}
}

// Fetcher retrieves page text over HTTP.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// New constructs a Fetcher. An invalid proxy URL is an error.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &http.Client{Timeout: cfg.Timeout}
	if proxy := strings.TrimSpace(cfg.ProxyURL); proxy != "" {
		parsed, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("webfetch: proxy url: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = http.ProxyURL(parsed)
		client.Transport = transport
	}
	f := &Fetcher{cfg: cfg, client: client}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch downloads link and returns its readable text with whitespace
// collapsed. Non-2xx responses are errors; a page with no text returns "".
func (f *Fetcher) Fetch(ctx context.Context, link string) (string, error) {
	pageURL, err := url.Parse(strings.TrimSpace(link))
	if err != nil || pageURL.Scheme == "" || pageURL.Host == "" {
		return "", fmt.Errorf("webfetch: invalid url %q", link)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("webfetch: build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webfetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("webfetch: http %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("webfetch: read body: %w", err)
	}
	if final := resp.Request; final != nil && final.URL != nil {
		pageURL = final.URL
	}
	return ExtractText(data, pageURL)
}

// ExtractText reduces an HTML document to readable text.
func ExtractText(data []byte, pageURL *url.URL) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}
	if parsed, err := readability.FromReader(bytes.NewReader(data), pageURL); err == nil {
		if text := textutil.CollapseWhitespace(parsed.TextContent); text != "" {
			return text, nil
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("webfetch: parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return textutil.CollapseWhitespace(doc.Find("body").Text()), nil
}

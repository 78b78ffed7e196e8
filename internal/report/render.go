package report

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
	"scholardigest/internal/fileutil"
	"scholardigest/internal/services"
	"scholardigest/internal/textutil"
)

//go:embed default.md.tmpl
var defaultTemplate string

const (
	snippetLimit = 250
	dateLayout   = "2006-01-02 15:04"
	fileLayout   = "20060102_150405"
	reportPrefix = "scholar_digest_report_"
	reportSuffix = ".md"
	missingField = "N/A"
	unknownTitle = "Untitled"
)

// Parameters carries run-level values into the template.
type Parameters struct {
	GeneratedAt time.Time
	Tiers       []article.Tier
	Since       *time.Time
}

// view is the template data.
type view struct {
	GeneratedAt time.Time
	Since       *time.Time
	Total       int
	Sections    []Section
}

// Renderer renders selected records to Markdown and writes report files.
type Renderer struct {
	dir  string
	tmpl *template.Template
}

// NewRenderer loads the configured template, falling back to the embedded
// default when output.template_file is unset.
func NewRenderer(cfg *config.Config) (*Renderer, error) {
	source := defaultTemplate
	name := "default"
	if path := strings.TrimSpace(cfg.Output.TemplateFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "report", "load template", path, err)
		}
		source = string(data)
		name = filepath.Base(path)
	}
	tmpl, err := parseTemplate(name, source)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "report", "parse template", name, err)
	}
	return &Renderer{dir: cfg.Paths.ReportDir, tmpl: tmpl}, nil
}

func parseTemplate(name, source string) (*template.Template, error) {
	return template.New(name).Funcs(template.FuncMap{
		"title":   func(rec article.Record) string { return orMissing(strings.TrimSpace(rec.Title), unknownTitle) },
		"tier":    func(rec article.Record) string { return orMissing(derefTier(rec.Relevance), missingField) },
		"reason":  func(rec article.Record) string { return orMissing(deref(rec.RelevanceReason), missingField) },
		"summary": func(rec article.Record) string { return orMissing(textutil.CollapseWhitespace(rec.Summary), missingField) },
		"snippet": Snippet,
		"date":    FormatDate,
	}).Parse(source)
}

// Render executes the template over records, which must already be selected
// and ordered.
func (r *Renderer) Render(records []article.Record, params Parameters) (string, error) {
	generated := params.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	data := view{
		GeneratedAt: generated,
		Since:       params.Since,
		Total:       len(records),
		Sections:    Group(records, params.Tiers),
	}
	var b strings.Builder
	if err := r.tmpl.Execute(&b, data); err != nil {
		return "", services.Wrap(services.ErrValidation, "report", "render", r.tmpl.Name(), err)
	}
	return b.String(), nil
}

// Persist writes text to a report file named after at and returns its path.
func (r *Renderer) Persist(text string, at time.Time) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrStorage, "report", "persist", "create report dir", err)
	}
	path := filepath.Join(r.dir, FileName(at))
	if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		return "", services.Wrap(services.ErrStorage, "report", "persist", path, err)
	}
	return path, nil
}

// FileName returns the report file name for a generation time.
func FileName(at time.Time) string {
	return reportPrefix + at.Format(fileLayout) + reportSuffix
}

// Snippet returns the first 250 runes of the enriched text on one line, or
// an empty string when the record was not enriched.
func Snippet(rec article.Record) string {
	if rec.EnrichedText == nil {
		return ""
	}
	flat := textutil.CollapseWhitespace(*rec.EnrichedText)
	if flat == "" {
		return ""
	}
	return textutil.Truncate(flat, snippetLimit)
}

// FormatDate renders the source timestamp in local time.
func FormatDate(rec article.Record) string {
	if rec.SourceTimestamp.IsZero() {
		return missingField
	}
	return rec.SourceTimestamp.Local().Format(dateLayout)
}

func orMissing(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func derefTier(t *article.Tier) string {
	if t == nil {
		return ""
	}
	return string(*t)
}

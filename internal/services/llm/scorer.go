package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"scholardigest/internal/article"
	"scholardigest/internal/config"
)

const formatInstruction = `Respond with a JSON object of the form {"score": "<label>", "reason": "<one sentence>"} where <label> is one of: %s.`

// Completer issues JSON chat completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Scorer assigns relevance verdicts through a chat completion model.
type Scorer struct {
	completer Completer
	tiers     []article.Tier
	system    string
}

// NewScorer builds a scorer for the configured labels and prompt.
func NewScorer(cfg *config.Config, completer Completer) *Scorer {
	tiers := cfg.ScoreTiers()
	return &Scorer{
		completer: completer,
		tiers:     tiers,
		system:    SystemPrompt(cfg.Prompt(), tiers, cfg.Keywords.Include),
	}
}

// NewClientFromConfig builds a Client from the llm and proxy sections.
func NewClientFromConfig(cfg *config.Config, opts ...Option) (*Client, error) {
	llmCfg := cfg.GetLLM()
	return NewClient(Config{
		APIKey:         llmCfg.APIKey,
		BaseURL:        llmCfg.BaseURL,
		Model:          llmCfg.Model,
		Temperature:    llmCfg.Temperature,
		Referer:        llmCfg.Referer,
		Title:          llmCfg.Title,
		TimeoutSeconds: llmCfg.TimeoutSeconds,
		ProxyURL:       cfg.Proxy.URL,
	}, opts...)
}

// SystemPrompt substitutes {{high}}, {{medium}} and {{include}} in template
// and appends the response format instruction.
func SystemPrompt(template string, tiers []article.Tier, include []string) string {
	labels := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		labels = append(labels, string(tier))
	}
	high, medium := "", ""
	if len(labels) > 0 {
		high = labels[0]
	}
	if len(labels) > 1 {
		medium = labels[1]
	}
	topics := strings.Join(include, ", ")
	if topics == "" {
		topics = "not specified"
	}
	body := strings.NewReplacer(
		"{{high}}", high,
		"{{medium}}", medium,
		"{{include}}", topics,
	).Replace(strings.TrimSpace(template))
	return body + "\n\n" + fmt.Sprintf(formatInstruction, strings.Join(labels, ", "))
}

// UserPrompt renders one article for scoring.
func UserPrompt(input article.ScoreInput) string {
	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		summary = "(no summary)"
	}
	return "Title: " + strings.TrimSpace(input.Title) + "\nSummary: " + summary
}

type verdictPayload struct {
	Score  json.RawMessage `json:"score"`
	Reason string          `json:"reason"`
}

// Score asks the model for a verdict. Labels are matched case-insensitively
// against the configured tiers; an unmatched label is returned verbatim for
// the caller to reject.
func (s *Scorer) Score(ctx context.Context, input article.ScoreInput) (article.Verdict, error) {
	content, err := s.completer.CompleteJSON(ctx, s.system, UserPrompt(input))
	if err != nil {
		return article.Verdict{}, err
	}
	var payload verdictPayload
	if err := DecodeJSON(content, &payload); err != nil {
		return article.Verdict{}, fmt.Errorf("llm score: parse payload: %w", err)
	}
	label := scoreLabel(payload.Score)
	if label == "" {
		return article.Verdict{}, fmt.Errorf("llm score: payload has no score (payload snippet: %s)", summarizePayloadSnippet(content))
	}
	reason := strings.TrimSpace(payload.Reason)
	if tier, ok := article.ParseTier(label, s.tiers...); ok {
		return article.Verdict{Tier: tier, Reason: reason}, nil
	}
	return article.Verdict{Tier: article.Tier(label), Reason: reason}, nil
}

// scoreLabel accepts a JSON string or a bare token such as a number.
func scoreLabel(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	return strings.Trim(strings.TrimSpace(string(raw)), `"`)
}

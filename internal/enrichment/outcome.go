package enrichment

import (
	"strings"

	"scholardigest/internal/textutil"
)

const (
	// EmptyTextMarker is stored when a fetch succeeded but yielded no text.
	EmptyTextMarker = "Could not retrieve full text."
	// FailurePrefix starts the marker stored for a failed fetch.
	FailurePrefix = "Error retrieving full text: "

	failureDetailLimit = 100
)

// Outcome is the stored result of one enrichment attempt.
type Outcome struct {
	Text   string
	Failed bool
	Empty  bool
}

// Summarize turns a fetch result into the text to store. Successful text is
// cut to maxChars runes with an ellipsis appended when cut.
func Summarize(text string, err error, maxChars int) Outcome {
	if err != nil {
		return Outcome{Text: FailurePrefix + textutil.Prefix(err.Error(), failureDetailLimit), Failed: true}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{Text: EmptyTextMarker, Empty: true}
	}
	return Outcome{Text: textutil.Truncate(text, maxChars)}
}

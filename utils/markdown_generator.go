package utils

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/meysamhadeli/gitshape/diffshape/models"
)

// PayloadLanguage returns the chroma lexer name for a strategy's payload.
func PayloadLanguage(strategy models.Strategy) string {
	if strategy.IsJSON() {
		return "json"
	}
	return "diff"
}

// HighlightPayload writes the payload to w, colored with the given theme.
// A payload is always newline terminated on output.
func HighlightPayload(w io.Writer, payload string, strategy models.Strategy, theme string) error {
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	return quick.Highlight(w, payload, PayloadLanguage(strategy), "terminal256", theme)
}

// WritePayload writes the payload to w without colors.
func WritePayload(w io.Writer, payload string) error {
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	_, err := io.WriteString(w, payload)
	return err
}

// PreviewBanner is the optional header printed above a payload.
func PreviewBanner(strategy models.Strategy, maxChars int) string {
	return fmt.Sprintf("=== gitshape LLM DIFF PREVIEW ===\nalg: %d - %s\nmax_chars: %d\n==================================\n\n",
		strategy.Number(), strategy, maxChars)
}

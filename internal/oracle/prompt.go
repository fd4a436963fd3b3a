package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/bookmerge/internal/catalog"
)

const maxPromptName = 100

const systemPrompt = "You are a bookmark classification assistant. You decide which group a website " +
	"belongs to from its name and URL. Reply with JSON only."

// BuildPrompt renders the system and user prompts for one batch. Records are
// listed with 1-based indexes.
func BuildPrompt(batch []catalog.Record, labels []string, defaultLabel string) (system, user string) {
	var b strings.Builder

	b.WriteString("Classify each bookmark below into exactly one group.\n\nAllowed groups:\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "- %s\n", l)
	}

	b.WriteString("\nBookmarks:\n")
	for i, rec := range batch {
		fmt.Fprintf(&b, "%d. name: %s\n   url: %s\n", i+1, truncate(rec.Name, maxPromptName), rec.URL)
	}

	b.WriteString("\nReply with a JSON array, one element per bookmark, in this shape:\n")
	b.WriteString(`[{"index": 1, "label": "group"}, {"index": 2, "label": "group"}]`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("1. Output only the JSON array, no other text.\n")
	b.WriteString("2. Every label must be one of the allowed groups, spelled exactly.\n")
	fmt.Fprintf(&b, "3. If you cannot decide, use %q.\n", defaultLabel)

	return systemPrompt, b.String()
}

// Answer is one parsed {index, label} pair. Index is 1-based.
type Answer struct {
	Index int
	Label string
}

type answerWire struct {
	Index *int    `json:"index"`
	Label *string `json:"label"`
	Group *string `json:"group"`
}

// ParseResponse extracts the label array from a completion. Markdown code
// fences are tolerated. Anything that is not an array of objects with an
// integer index and a string label (or group) is a *ParseError.
func ParseResponse(text string) ([]Answer, error) {
	body := stripFences(text)
	if body == "" {
		return nil, newParseError("empty response", text)
	}

	var wire []answerWire
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return nil, newParseError(err.Error(), text)
	}
	// null decodes without error but leaves the slice nil; only [] is empty.
	if wire == nil {
		return nil, newParseError("expected a JSON array", text)
	}

	answers := make([]Answer, 0, len(wire))
	for i, w := range wire {
		if w.Index == nil {
			return nil, newParseError(fmt.Sprintf("element %d has no index", i), text)
		}
		label := w.Label
		if label == nil {
			label = w.Group
		}
		if label == nil {
			return nil, newParseError(fmt.Sprintf("element %d has no label", i), text)
		}
		answers = append(answers, Answer{Index: *w.Index, Label: strings.TrimSpace(*label)})
	}
	return answers, nil
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

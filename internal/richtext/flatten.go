package richtext

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Flatten concatenates every leaf text of node in document order, normalizes
// the result to NFC, and trims surrounding whitespace. A tree without leaves
// yields the empty string.
func Flatten(node Node) string {
	var b strings.Builder
	walk(&b, node)
	return strings.TrimSpace(norm.NFC.String(b.String()))
}

func walk(b *strings.Builder, node Node) {
	switch n := node.(type) {
	case TextLeaf:
		b.WriteString(n.Text)
	case Paragraph:
		walk(b, n.Body)
	case SemanticContent:
		walk(b, n.Content)
	case FragmentList:
		for _, item := range n.Items {
			walk(b, item)
		}
	}
}

// Text parses and flattens raw in one step.
func Text(raw json.RawMessage) string {
	return Flatten(Parse(raw))
}

// Synopsis returns the flattened primary description. When that is empty it
// falls back to the first non-empty recommendation summary in alternate and
// reports usedFallback.
func Synopsis(primary, alternate json.RawMessage) (text string, usedFallback bool) {
	if text = Text(primary); text != "" {
		return text, false
	}
	for _, candidate := range alternateCandidates(alternate) {
		if text = Text(candidate); text != "" {
			return text, true
		}
	}
	return "", false
}

// alternateCandidates accepts {recommendations:[{summary}]}, a bare
// recommendation list, a single {summary}, or a fragment tree.
func alternateCandidates(raw json.RawMessage) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var envelope struct {
		Recommendations []json.RawMessage `json:"recommendations"`
		Summary         json.RawMessage   `json:"summary"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if len(envelope.Recommendations) > 0 {
			return summaries(envelope.Recommendations)
		}
		if len(envelope.Summary) > 0 {
			return []json.RawMessage{envelope.Summary}
		}
		return []json.RawMessage{raw}
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return summaries(list)
	}
	return []json.RawMessage{raw}
}

func summaries(items []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var rec struct {
			Summary json.RawMessage `json:"summary"`
		}
		if err := json.Unmarshal(item, &rec); err == nil && len(rec.Summary) > 0 {
			out = append(out, rec.Summary)
			continue
		}
		out = append(out, item)
	}
	return out
}

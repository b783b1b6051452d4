package richtext_test

import (
	"encoding/json"
	"testing"

	"stacks/internal/richtext"
)

func TestFlattenSupportedShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare string", raw: `"A quiet story."`, want: "A quiet story."},
		{name: "text", raw: `{"text":"A quiet story."}`, want: "A quiet story."},
		{name: "paragraph text", raw: `{"paragraph":{"text":"A quiet story."}}`, want: "A quiet story."},
		{name: "paragraph fragments", raw: `{"paragraph":{"fragments":[{"text":"A quiet "},{"text":"story."}]}}`, want: "A quiet story."},
		{name: "semantic content text", raw: `{"semanticContent":{"content":{"text":"A quiet story."}}}`, want: "A quiet story."},
		{name: "semantic content fragments", raw: `{"semanticContent":{"content":{"fragments":[{"text":"A quiet"},{"text":" story."}]}}}`, want: "A quiet story."},
		{name: "semantic content paragraph", raw: `{"semanticContent":{"content":{"paragraph":{"fragments":[{"text":"A quiet story."}]}}}}`, want: "A quiet story."},
		{name: "nested combination", raw: `{"fragments":[{"text":"A"},{"paragraph":{"fragments":[{"text":"B"}]}}]}`, want: "AB"},
		{name: "array at top", raw: `[{"text":"A"},"B",{"semanticContent":{"content":{"text":"C"}}}]`, want: "ABC"},
		{name: "deep nesting", raw: `{"semanticContent":{"content":{"fragments":[{"paragraph":{"fragments":[{"fragments":[{"text":"x"}]},{"text":"y"}]}},{"text":"z"}]}}}`, want: "xyz"},
		{name: "surrounding whitespace", raw: `{"fragments":[{"text":"  padded "},{"text":"text\n"}]}`, want: "padded text"},
		{name: "text beats fragments", raw: `{"text":"winner","fragments":[{"text":"loser"}]}`, want: "winner"},
		{name: "null text falls through", raw: `{"text":null,"paragraph":{"text":"fallthrough"}}`, want: "fallthrough"},
		{name: "null", raw: `null`, want: ""},
		{name: "number", raw: `42`, want: ""},
		{name: "boolean", raw: `true`, want: ""},
		{name: "unknown object", raw: `{"html":"<p>nope</p>"}`, want: ""},
		{name: "empty", raw: ``, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := richtext.Text(json.RawMessage(tt.raw)); got != tt.want {
				t.Fatalf("Text(%s) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEquivalentShapesProduceIdenticalOutput(t *testing.T) {
	variants := []string{
		`"Once upon a time"`,
		`{"text":"Once upon a time"}`,
		`{"paragraph":{"text":"Once upon a time"}}`,
		`{"paragraph":{"fragments":[{"text":"Once "},{"text":"upon a time"}]}}`,
		`{"semanticContent":{"content":{"text":"Once upon a time"}}}`,
		`{"semanticContent":{"content":{"fragments":[{"text":"Once upon"},{"text":" a time"}]}}}`,
		`{"fragments":[{"text":"Once "},{"paragraph":{"fragments":[{"semanticContent":{"content":{"text":"upon a time"}}}]}}]}`,
	}
	want := richtext.Text(json.RawMessage(variants[0]))
	for _, raw := range variants[1:] {
		if got := richtext.Text(json.RawMessage(raw)); got != want {
			t.Fatalf("Text(%s) = %q, want %q", raw, got, want)
		}
	}
}

func TestFlattenNormalizesToNFC(t *testing.T) {
	decomposed := `{"fragments":[{"text":"Cafe\u0301"}]}`
	if got := richtext.Text(json.RawMessage(decomposed)); got != "Caf\u00e9" {
		t.Fatalf("expected NFC output, got %q", got)
	}
}

func TestParseBuildsTaggedTree(t *testing.T) {
	node := richtext.Parse(json.RawMessage(`{"semanticContent":{"content":{"paragraph":{"text":"x"}}}}`))
	semantic, ok := node.(richtext.SemanticContent)
	if !ok {
		t.Fatalf("expected SemanticContent, got %T", node)
	}
	paragraph, ok := semantic.Content.(richtext.Paragraph)
	if !ok {
		t.Fatalf("expected Paragraph, got %T", semantic.Content)
	}
	if leaf, ok := paragraph.Body.(richtext.TextLeaf); !ok || leaf.Text != "x" {
		t.Fatalf("expected TextLeaf x, got %#v", paragraph.Body)
	}
	if list, ok := richtext.Parse(json.RawMessage(`7`)).(richtext.FragmentList); !ok || len(list.Items) != 0 {
		t.Fatalf("expected empty list for number, got %#v", list)
	}
}

func TestSynopsisFallback(t *testing.T) {
	alternate := json.RawMessage(`{"recommendations":[{"summary":null},{"summary":{"fragments":[{"text":"Alt "},{"text":"summary"}]}}]}`)

	tests := []struct {
		name         string
		primary      string
		alternate    json.RawMessage
		want         string
		usedFallback bool
	}{
		{name: "primary wins", primary: `{"text":"Main"}`, alternate: alternate, want: "Main"},
		{name: "empty primary uses alternate", primary: `{"paragraph":{"fragments":[]}}`, alternate: alternate, want: "Alt summary", usedFallback: true},
		{name: "null primary uses alternate", primary: `null`, alternate: alternate, want: "Alt summary", usedFallback: true},
		{name: "bare recommendation list", primary: ``, alternate: json.RawMessage(`[{"summary":"Listed"}]`), want: "Listed", usedFallback: true},
		{name: "both empty", primary: `"  "`, alternate: json.RawMessage(`{"recommendations":[]}`), want: ""},
		{name: "no alternate", primary: ``, alternate: nil, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fallback := richtext.Synopsis(json.RawMessage(tt.primary), tt.alternate)
			if got != tt.want || fallback != tt.usedFallback {
				t.Fatalf("Synopsis = (%q, %v), want (%q, %v)", got, fallback, tt.want, tt.usedFallback)
			}
		})
	}
}

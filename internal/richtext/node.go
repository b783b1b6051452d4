package richtext

import (
	"bytes"
	"encoding/json"
)

// Node is one element of a fragment tree.
type Node interface {
	isNode()
}

// TextLeaf holds literal text.
type TextLeaf struct {
	Text string
}

// Paragraph wraps a body that is itself a leaf or a fragment list.
type Paragraph struct {
	Body Node
}

// SemanticContent wraps the content node of a semanticContent envelope.
type SemanticContent struct {
	Content Node
}

// FragmentList is an ordered sequence of nodes. The zero value is the empty tree.
type FragmentList struct {
	Items []Node
}

func (TextLeaf) isNode()        {}
func (Paragraph) isNode()       {}
func (SemanticContent) isNode() {}
func (FragmentList) isNode()    {}

// Parse converts a raw JSON value of any shape into a Node. Shapes that carry
// no recognizable text (numbers, booleans, null, unknown objects) become an
// empty FragmentList.
//
// On a single object the first present key wins, in this order: text,
// paragraph, semanticContent, fragments.
func Parse(raw json.RawMessage) Node {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return FragmentList{}
	}
	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return FragmentList{}
		}
		return TextLeaf{Text: text}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return FragmentList{}
		}
		list := FragmentList{Items: make([]Node, 0, len(items))}
		for _, item := range items {
			list.Items = append(list.Items, Parse(item))
		}
		return list
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return FragmentList{}
		}
		return parseObject(fields)
	default:
		return FragmentList{}
	}
}

func parseObject(fields map[string]json.RawMessage) Node {
	if value, ok := present(fields, "text"); ok {
		return Parse(value)
	}
	if value, ok := present(fields, "paragraph"); ok {
		return Paragraph{Body: Parse(value)}
	}
	if value, ok := present(fields, "semanticContent"); ok {
		return SemanticContent{Content: parseSemantic(value)}
	}
	if value, ok := present(fields, "fragments"); ok {
		if list, isList := Parse(value).(FragmentList); isList {
			return list
		}
		return FragmentList{Items: []Node{Parse(value)}}
	}
	return FragmentList{}
}

func parseSemantic(raw json.RawMessage) Node {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Parse(raw)
	}
	if content, ok := present(fields, "content"); ok {
		return Parse(content)
	}
	return parseObject(fields)
}

func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	value, ok := fields[key]
	if !ok {
		return nil, false
	}
	value = bytes.TrimSpace(value)
	if len(value) == 0 || bytes.Equal(value, []byte("null")) {
		return nil, false
	}
	return value, true
}

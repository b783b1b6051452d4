// Package richtext flattens the provider's nested rich-text trees into plain
// text.
//
// Parse turns any JSON value into a tagged tree of TextLeaf, Paragraph,
// SemanticContent and FragmentList nodes; Flatten walks it depth-first. Every
// shape the provider has been seen to emit is handled by the single Parse
// switch, so a new shape is one new case there.
package richtext

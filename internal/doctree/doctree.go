// Package doctree models the rich-text document produced by the note editor.
//
// A document is a tree of nodes. Leaves are Text nodes carrying literal text;
// every other node is a Container with a type tag and ordered children. The
// JSON shape is the editor's: {"type": "...", "text": "...", "content": [...]}.
package doctree

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TypeText is the type tag of text leaves.
const TypeText = "text"

// TypeDoc is the type tag of the root container.
const TypeDoc = "doc"

// Node is a document tree node: either *Text or *Container.
type Node interface {
	// Type returns the node type tag.
	Type() string
	node()
}

// Mark is an inline formatting annotation attached to a text leaf.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Text is a leaf node with literal text.
type Text struct {
	Text  string `json:"text"`
	Marks []Mark `json:"marks,omitempty"`
}

// Type implements Node.
func (*Text) Type() string { return TypeText }
func (*Text) node()        {}

// Container is a non-text node with ordered children.
type Container struct {
	Kind     string
	Attrs    map[string]any
	Children []Node
}

// Type implements Node.
func (c *Container) Type() string { return c.Kind }
func (*Container) node()          {}

// Empty returns an empty document.
func Empty() *Container {
	return &Container{Kind: TypeDoc, Children: []Node{}}
}

// Paragraph returns a paragraph containing a single text leaf.
func Paragraph(text string) *Container {
	if text == "" {
		return &Container{Kind: "paragraph", Children: []Node{}}
	}
	return &Container{Kind: "paragraph", Children: []Node{&Text{Text: text}}}
}

// FromPlainText builds a document with one paragraph per line.
func FromPlainText(s string) *Container {
	doc := Empty()
	for _, line := range strings.Split(s, "\n") {
		doc.Children = append(doc.Children, Paragraph(line))
	}
	return doc
}

// WalkFunc is called for every node in depth-first pre-order.
// Returning false skips the children of n.
type WalkFunc func(n Node) bool

// Walk traverses the tree rooted at n depth-first. A nil root is a no-op.
func Walk(n Node, fn WalkFunc) {
	if n == nil || fn == nil {
		return
	}
	if !fn(n) {
		return
	}
	if c, ok := n.(*Container); ok {
		for _, child := range c.Children {
			Walk(child, fn)
		}
	}
}

// wireNode is the JSON representation shared by both variants.
type wireNode struct {
	Type    string            `json:"type"`
	Text    *string           `json:"text,omitempty"`
	Marks   []Mark            `json:"marks,omitempty"`
	Attrs   map[string]any    `json:"attrs,omitempty"`
	Content []json.RawMessage `json:"content,omitempty"`
}

// ErrMissingType is returned when a JSON node has no type tag.
var ErrMissingType = errors.New("doctree: node without type")

// Decode parses editor JSON into a Node. Empty input and JSON null decode to nil.
func Decode(data []byte) (Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var w wireNode
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, fmt.Errorf("doctree: decode: %w", err)
	}
	return fromWire(w)
}

func fromWire(w wireNode) (Node, error) {
	if w.Type == "" {
		return nil, ErrMissingType
	}
	if w.Type == TypeText {
		t := &Text{Marks: w.Marks}
		if w.Text != nil {
			t.Text = *w.Text
		}
		return t, nil
	}
	c := &Container{Kind: w.Type, Attrs: w.Attrs, Children: make([]Node, 0, len(w.Content))}
	for _, raw := range w.Content {
		var cw wireNode
		if err := json.Unmarshal(raw, &cw); err != nil {
			return nil, fmt.Errorf("doctree: decode child of %s: %w", w.Type, err)
		}
		child, err := fromWire(cw)
		if err != nil {
			return nil, err
		}
		c.Children = append(c.Children, child)
	}
	return c, nil
}

// Encode renders n as editor JSON. A nil node encodes as an empty document.
func Encode(n Node) ([]byte, error) {
	if n == nil {
		n = Empty()
	}
	return json.Marshal(toWire(n))
}

type encodedNode struct {
	Type    string         `json:"type"`
	Text    *string        `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []encodedNode  `json:"content,omitempty"`
}

func toWire(n Node) encodedNode {
	switch v := n.(type) {
	case *Text:
		text := v.Text
		return encodedNode{Type: TypeText, Text: &text, Marks: v.Marks}
	case *Container:
		out := encodedNode{Type: v.Kind, Attrs: v.Attrs}
		for _, child := range v.Children {
			out.Content = append(out.Content, toWire(child))
		}
		return out
	}
	return encodedNode{Type: n.Type()}
}

// Document wraps a Node so it can be embedded in JSON payloads.
type Document struct {
	Root Node
}

// MarshalJSON implements json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	return Encode(d.Root)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	n, err := Decode(data)
	if err != nil {
		return err
	}
	d.Root = n
	return nil
}

// Checksum returns the hex SHA-256 of the canonical encoding of n.
func Checksum(n Node) string {
	data, err := Encode(n)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

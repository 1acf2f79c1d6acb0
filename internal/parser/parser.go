// Package parser extracts wiki-links, inline tags, and plain text from note documents.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/learnlog/internal/doctree"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// ExtractLinks returns the raw inner text of every [[...]] in the text leaves
// of doc, deduplicated and ordered by first occurrence. Matches never span
// two text leaves.
func ExtractLinks(doc doctree.Node) []string {
	seen := make(map[string]struct{})
	out := []string{}
	eachText(doc, func(text string) {
		for _, m := range wikilinkRe.FindAllStringSubmatch(text, -1) {
			raw := m[1]
			if _, ok := seen[raw]; ok {
				continue
			}
			seen[raw] = struct{}{}
			out = append(out, raw)
		}
	})
	return out
}

// ExtractTags collects inline #tags from the text leaves of doc.
func ExtractTags(doc doctree.Node) []string {
	seen := make(map[string]struct{})
	out := []string{}
	eachText(doc, func(text string) {
		for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
			t := m[1]
			if _, dup := seen[t]; !dup {
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	})
	return out
}

// MergeTags returns explicit followed by the inline tags not already present.
func MergeTags(explicit, inline []string) []string {
	seen := make(map[string]struct{}, len(explicit)+len(inline))
	out := make([]string, 0, len(explicit)+len(inline))
	for _, list := range [][]string{explicit, inline} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// PlainText concatenates the text leaves of doc. Text inside one block is
// joined directly; sibling blocks are separated by a newline.
func PlainText(doc doctree.Node) string {
	var b strings.Builder
	var render func(n doctree.Node)
	render = func(n doctree.Node) {
		switch v := n.(type) {
		case *doctree.Text:
			b.WriteString(v.Text)
		case *doctree.Container:
			for _, child := range v.Children {
				render(child)
			}
			if isBlock(v) && b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
		}
	}
	if doc != nil {
		render(doc)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DeriveTitle returns the text of the first heading, otherwise the first
// non-empty line of plain text.
func DeriveTitle(doc doctree.Node) string {
	var title string
	doctree.Walk(doc, func(n doctree.Node) bool {
		if title != "" {
			return false
		}
		if c, ok := n.(*doctree.Container); ok && c.Kind == "heading" {
			title = strings.TrimSpace(PlainText(c))
			return false
		}
		return true
	})
	if title != "" {
		return title
	}
	for _, line := range strings.Split(PlainText(doc), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

func eachText(doc doctree.Node, fn func(string)) {
	doctree.Walk(doc, func(n doctree.Node) bool {
		if t, ok := n.(*doctree.Text); ok && t.Text != "" {
			fn(t.Text)
		}
		return true
	})
}

// isBlock reports whether c renders as its own line. Inline containers such
// as mentions do not.
func isBlock(c *doctree.Container) bool {
	switch c.Kind {
	case doctree.TypeDoc, "mention":
		return false
	}
	return true
}

// SPDX-License-Identifier: Apache-2.0

package structured

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/antchfx/xpath"
)

// ErrUnsupportedMarkup is returned when no parser accepts a sub-document.
var ErrUnsupportedMarkup = errors.New("unsupported markup")

// Match describes the node a path resolved to.
type Match struct {
	// Path is the canonical location of the element, e.g. /html[1]/body[1]/p[2].
	Path    string `json:"path"`
	Element string `json:"element"`
	Text    string `json:"text"`
}

// Tree is a parsed sub-document.
type Tree interface {
	// ClearMarks removes class from every element and returns how many
	// elements carried it.
	ClearMarks(class string) int
	// Mark adds class to the first node selected by expr in document order.
	Mark(expr *xpath.Expr, class string) (Match, bool)
	Render() string
}

// MarkupParser turns sub-document content into a Tree.
type MarkupParser interface {
	CanHandle(doc SubDocument) bool
	Parse(doc SubDocument) (Tree, error)
	Name() string
}

// DefaultParsers returns the built-in parsers in selection order.
func DefaultParsers() []MarkupParser {
	return []MarkupParser{
		NewXMLParser(),
		NewHTMLParser(),
		NewMarkdownParser(),
	}
}

// Parse picks the first parser that accepts doc.
func Parse(parsers []MarkupParser, doc SubDocument) (Tree, string, error) {
	for _, p := range parsers {
		if p.CanHandle(doc) {
			tree, err := p.Parse(doc)
			if err != nil {
				return nil, p.Name(), fmt.Errorf("parser %q: %w", p.Name(), err)
			}
			return tree, p.Name(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnsupportedMarkup, doc.Name)
}

// formatOf returns the declared or inferred format of doc.
func formatOf(doc SubDocument) string {
	if doc.Format != "" {
		return strings.ToLower(doc.Format)
	}
	switch strings.ToLower(path.Ext(doc.Path)) {
	case ".html", ".htm", ".xhtml":
		return "html"
	case ".xml":
		return "xml"
	case ".md", ".markdown":
		return "markdown"
	}
	return ""
}

func sniff(content string) string {
	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "<?xml"):
		return "xml"
	case strings.HasPrefix(trimmed, "<"):
		return "html"
	}
	return "markdown"
}

func detect(doc SubDocument) string {
	if f := formatOf(doc); f != "" {
		return f
	}
	return sniff(doc.Content)
}

func hasClass(attr, class string) bool {
	for _, c := range strings.Fields(attr) {
		if c == class {
			return true
		}
	}
	return false
}

func addClass(attr, class string) string {
	if hasClass(attr, class) {
		return attr
	}
	if strings.TrimSpace(attr) == "" {
		return class
	}
	return strings.TrimSpace(attr) + " " + class
}

func removeClass(attr, class string) string {
	fields := strings.Fields(attr)
	kept := fields[:0]
	for _, c := range fields {
		if c != class {
			kept = append(kept, c)
		}
	}
	return strings.Join(kept, " ")
}

const maxMatchText = 280

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= maxMatchText {
		return text
	}
	cut := maxMatchText
	for cut > 0 && !utf8Start(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

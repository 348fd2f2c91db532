// SPDX-License-Identifier: Apache-2.0

package structured

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MarkdownParser turns Markdown filings into an HTML tree. The document is
// converted with GitHub-flavoured Markdown, so tables, lists and code blocks
// keep their structure. Every heading then opens a
// <section data-heading="..."> nested by heading level, and paths like
// //section[@data-heading='Risk Factors']/p[2] address the text.
type MarkdownParser struct {
	md goldmark.Markdown
}

// NewMarkdownParser creates a new MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (p *MarkdownParser) Name() string {
	return "markdown"
}

// CanHandle returns true for the "markdown" format, .md paths, or content
// that does not look like markup.
func (p *MarkdownParser) CanHandle(doc SubDocument) bool {
	f := detect(doc)
	return f == "markdown" || f == "md"
}

func (p *MarkdownParser) Parse(doc SubDocument) (Tree, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(doc.Content), &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	body := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	blocks, err := html.ParseFragment(&buf, body)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markdown: %w", err)
	}

	root := &html.Node{Type: html.DocumentNode}
	article := element(atom.Article, "article")
	root.AppendChild(article)

	type open struct {
		level int
		node  *html.Node
	}
	stack := []open{{level: 0, node: article}}

	for _, block := range blocks {
		if block.Type == html.TextNode && strings.TrimSpace(block.Data) == "" {
			continue
		}
		trimWhitespace(block)

		level := headingLevel(block)
		if level == 0 {
			parent := stack[len(stack)-1].node
			if parent == article {
				// Content before the first heading.
				parent = preamble(article)
			}
			parent.AppendChild(block)
			continue
		}

		for len(stack) > 1 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		section := element(atom.Section, "section")
		section.Attr = []html.Attribute{
			{Key: "data-heading", Val: strings.TrimSpace(textContent(block))},
			{Key: "data-level", Val: strconv.Itoa(level)},
		}
		section.AppendChild(block)
		stack[len(stack)-1].node.AppendChild(section)
		stack = append(stack, open{level: level, node: section})
	}

	return &htmlTree{root: root}, nil
}

// headingLevel returns 1-6 for h1-h6 elements, or 0.
func headingLevel(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// trimWhitespace drops the whitespace-only text nodes the renderer puts
// between block elements. Preformatted content is left alone.
func trimWhitespace(n *html.Node) {
	if n.DataAtom == atom.Pre {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" && isBlockContainer(n) {
			n.RemoveChild(c)
		} else {
			trimWhitespace(c)
		}
		c = next
	}
}

func isBlockContainer(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Ul, atom.Ol, atom.Li, atom.Blockquote, atom.Table, atom.Thead, atom.Tbody, atom.Tr:
		return true
	}
	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func preamble(article *html.Node) *html.Node {
	if c := article.FirstChild; c != nil && c.Data == "section" && attr(c, "data-heading") == "preamble" {
		return c
	}
	pre := element(atom.Section, "section")
	pre.Attr = []html.Attribute{{Key: "data-heading", Val: "preamble"}}
	if article.FirstChild != nil {
		article.InsertBefore(pre, article.FirstChild)
	} else {
		article.AppendChild(pre)
	}
	return pre
}

func element(a atom.Atom, name string) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: name}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

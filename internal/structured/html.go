// SPDX-License-Identifier: Apache-2.0

package structured

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

// HTMLParser parses HTML sub-documents.
type HTMLParser struct{}

// NewHTMLParser creates a new HTMLParser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

func (p *HTMLParser) Name() string {
	return "html"
}

func (p *HTMLParser) CanHandle(doc SubDocument) bool {
	f := detect(doc)
	return f == "html" || f == "htm" || f == "xhtml"
}

func (p *HTMLParser) Parse(doc SubDocument) (Tree, error) {
	root, err := htmlquery.Parse(strings.NewReader(doc.Content))
	if err != nil {
		return nil, err
	}
	return &htmlTree{root: root}, nil
}

type htmlTree struct {
	root *html.Node
}

func (t *htmlTree) ClearMarks(class string) int {
	cleared := 0
	walkHTML(t.root, func(n *html.Node) {
		for i, a := range n.Attr {
			if a.Namespace == "" && a.Key == "class" && hasClass(a.Val, class) {
				n.Attr[i].Val = removeClass(a.Val, class)
				cleared++
			}
		}
	})
	return cleared
}

func (t *htmlTree) Mark(expr *xpath.Expr, class string) (match Match, ok bool) {
	n := htmlquery.QuerySelector(t.root, expr)
	for n != nil && n.Type != html.ElementNode {
		n = n.Parent
	}
	if n == nil {
		return Match{}, false
	}

	set := false
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == "class" {
			n.Attr[i].Val = addClass(a.Val, class)
			set = true
			break
		}
	}
	if !set {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	return Match{Path: htmlPath(n), Element: n.Data, Text: excerpt(htmlquery.InnerText(n))}, true
}

func (t *htmlTree) Render() string {
	var b strings.Builder
	if err := html.Render(&b, t.root); err != nil {
		return ""
	}
	return b.String()
}

func walkHTML(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, fn)
	}
}

func htmlPath(n *html.Node) string {
	var parts []string
	for ; n != nil && n.Type == html.ElementNode; n = n.Parent {
		idx := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == html.ElementNode && s.Data == n.Data {
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", n.Data, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

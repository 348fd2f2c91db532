// SPDX-License-Identifier: Apache-2.0

package structured

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// XMLParser parses XML sub-documents such as XBRL instance fragments.
type XMLParser struct{}

// NewXMLParser creates a new XMLParser.
func NewXMLParser() *XMLParser {
	return &XMLParser{}
}

func (p *XMLParser) Name() string {
	return "xml"
}

func (p *XMLParser) CanHandle(doc SubDocument) bool {
	return detect(doc) == "xml"
}

func (p *XMLParser) Parse(doc SubDocument) (Tree, error) {
	root, err := xmlquery.Parse(strings.NewReader(doc.Content))
	if err != nil {
		return nil, err
	}
	return &xmlTree{root: root}, nil
}

type xmlTree struct {
	root *xmlquery.Node
}

func (t *xmlTree) ClearMarks(class string) int {
	cleared := 0
	walkXML(t.root, func(n *xmlquery.Node) {
		if v := n.SelectAttr("class"); hasClass(v, class) {
			if rest := removeClass(v, class); rest == "" {
				n.RemoveAttr("class")
			} else {
				n.SetAttr("class", rest)
			}
			cleared++
		}
	})
	return cleared
}

func (t *xmlTree) Mark(expr *xpath.Expr, class string) (Match, bool) {
	n := xmlquery.QuerySelector(t.root, expr)
	for n != nil && n.Type != xmlquery.ElementNode {
		n = n.Parent
	}
	if n == nil {
		return Match{}, false
	}
	n.SetAttr("class", addClass(n.SelectAttr("class"), class))
	return Match{Path: xmlPath(n), Element: n.Data, Text: excerpt(n.InnerText())}, true
}

func (t *xmlTree) Render() string {
	return t.root.OutputXML(false)
}

func walkXML(n *xmlquery.Node, fn func(*xmlquery.Node)) {
	if n.Type == xmlquery.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkXML(c, fn)
	}
}

func xmlPath(n *xmlquery.Node) string {
	var parts []string
	for ; n != nil && n.Type == xmlquery.ElementNode; n = n.Parent {
		idx := 1
		for s := n.PrevSibling; s != nil; s = s.PrevSibling {
			if s.Type == xmlquery.ElementNode && s.Data == n.Data {
				idx++
			}
		}
		name := n.Data
		if n.Prefix != "" {
			name = n.Prefix + ":" + name
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", name, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

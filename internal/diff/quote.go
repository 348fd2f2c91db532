// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// SpanOp marks how a quote fragment changed.
type SpanOp string

const (
	SpanEqual  SpanOp = "equal"
	SpanInsert SpanOp = "insert"
	SpanDelete SpanOp = "delete"
)

// Span is one fragment of a quote-level delta.
type Span struct {
	Op   SpanOp `json:"op"`
	Text string `json:"text"`
}

// QuoteDelta returns a word-friendly character diff between two quotes, used
// to render "what changed" for updated items.
func QuoteDelta(previous, current string) []Span {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(previous, current, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	spans := make([]Span, 0, len(diffs))
	for _, d := range diffs {
		var op SpanOp
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = SpanInsert
		case diffmatchpatch.DiffDelete:
			op = SpanDelete
		default:
			op = SpanEqual
		}
		spans = append(spans, Span{Op: op, Text: d.Text})
	}
	return spans
}

// EditDistance is the Levenshtein distance between two quotes.
func EditDistance(previous, current string) int {
	dmp := diffmatchpatch.New()
	return dmp.DiffLevenshtein(dmp.DiffMain(previous, current, false))
}

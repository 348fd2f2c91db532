// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/finlens/evidence-mcp/internal/diff"
	"github.com/finlens/evidence-mcp/internal/evidence"
)

// MetadataDiffEvidenceSnapshots describes the diff_evidence_snapshots tool.
var MetadataDiffEvidenceSnapshots = &mcp.Tool{
	Name: "diff_evidence_snapshots",
	Description: "Compare two evidence snapshots from consecutive answer turns. " +
		"Every item in the current snapshot is classified as created, updated or unchanged by urnId; " +
		"items only in the previous snapshot are listed as removed. " +
		"An item is updated when its quote, section, page number, anchor, source reliability or self-check differ. " +
		"Updated quotes come with a word-level delta. " +
		"Snapshots marked partial are still streaming and are rejected.",
	InputSchema: map[string]interface{}{
		"type":     "object",
		"required": []string{"previous", "current"},
		"properties": map[string]interface{}{
			"previous": map[string]interface{}{
				"type":        "string",
				"description": "Previous snapshot: a list of evidence items or an object with an items field",
			},
			"current": map[string]interface{}{
				"type":        "string",
				"description": "Current snapshot in the same shape as previous",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Format of both snapshots. If omitted, auto-detection is used.",
				"enum":        []string{"json", "yaml"},
			},
			"previous_format": map[string]interface{}{
				"type":        "string",
				"description": "Format of the previous snapshot, overriding format",
				"enum":        []string{"json", "yaml"},
			},
			"current_format": map[string]interface{}{
				"type":        "string",
				"description": "Format of the current snapshot, overriding format",
				"enum":        []string{"json", "yaml"},
			},
		},
	},
}

// InputDiffEvidenceSnapshots is the input for the DiffEvidenceSnapshots tool.
type InputDiffEvidenceSnapshots struct {
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Format   string `json:"format"`
	// PreviousFormat and CurrentFormat override Format for one side.
	PreviousFormat string `json:"previous_format,omitempty"`
	CurrentFormat  string `json:"current_format,omitempty"`
}

func sideFormat(side, shared string) string {
	if side != "" {
		return side
	}
	return shared
}

// OutputDiffEvidenceSnapshots is the output for the DiffEvidenceSnapshots tool.
type OutputDiffEvidenceSnapshots struct {
	// Types maps every current urnId to its classification.
	Types map[string]evidence.DiffType `json:"types"`
	// Items are the current items annotated with diffType, in order.
	Items   []evidence.Item `json:"items"`
	Removed []evidence.Item `json:"removed"`
	Summary diff.Summary    `json:"summary"`
	// QuoteDeltas holds the text delta of every updated item whose quote changed.
	QuoteDeltas map[string][]diff.Span `json:"quote_deltas,omitempty"`
	ParserUsed  string                 `json:"parser_used"`
}

// DiffEvidenceSnapshots decodes both snapshots and classifies the current
// one against the previous one.
func (t *Tools) DiffEvidenceSnapshots(ctx context.Context, _ *mcp.CallToolRequest, input InputDiffEvidenceSnapshots) (*mcp.CallToolResult, OutputDiffEvidenceSnapshots, error) {
	if input.Current == "" {
		return nil, OutputDiffEvidenceSnapshots{}, fmt.Errorf("current is required")
	}

	previous := evidence.Snapshot{}
	if input.Previous != "" {
		res, err := t.pipeline.DecodeWithMeta(ctx, evidence.EvidenceSource{
			Content: []byte(input.Previous), Format: sideFormat(input.PreviousFormat, input.Format), ID: "previous",
		})
		if err != nil {
			return nil, OutputDiffEvidenceSnapshots{}, fmt.Errorf("previous: %w", err)
		}
		previous = res.Snapshot
	}
	current, err := t.pipeline.DecodeWithMeta(ctx, evidence.EvidenceSource{
		Content: []byte(input.Current), Format: sideFormat(input.CurrentFormat, input.Format), ID: "current",
	})
	if err != nil {
		return nil, OutputDiffEvidenceSnapshots{}, fmt.Errorf("current: %w", err)
	}

	result, err := diff.ComputeComplete(previous, current.Snapshot)
	if err != nil {
		return nil, OutputDiffEvidenceSnapshots{}, err
	}
	out := OutputDiffEvidenceSnapshots{
		Types:      result.Types,
		Items:      result.Annotate(),
		Removed:    result.Removed,
		Summary:    result.Summary(),
		ParserUsed: current.ParserUsed,
	}
	if out.Removed == nil {
		out.Removed = []evidence.Item{}
	}
	if out.Items == nil {
		out.Items = []evidence.Item{}
	}
	if out.Types == nil {
		out.Types = map[string]evidence.DiffType{}
	}

	before := previous.Index()
	for _, item := range current.Snapshot.Items {
		prev, ok := before[item.URN]
		if !ok || result.Types[item.URN] != evidence.DiffUpdated || prev.Quote == item.Quote {
			continue
		}
		if out.QuoteDeltas == nil {
			out.QuoteDeltas = make(map[string][]diff.Span)
		}
		out.QuoteDeltas[item.URN] = diff.QuoteDelta(prev.Quote, item.Quote)
	}
	return nil, out, nil
}

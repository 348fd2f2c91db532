// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"bytes"
	"context"
	"strings"

	"github.com/finlens/evidence-mcp/internal/evidence"
)

// JSONParser decodes evidence snapshots delivered as JSON by the answer
// backend, either as an envelope or as a bare item list.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Name() string {
	return "json"
}

// CanHandle returns true for the "json" format hint, or for content that
// opens with an object or array.
func (p *JSONParser) CanHandle(source evidence.EvidenceSource) bool {
	if strings.EqualFold(source.Format, "json") {
		return true
	}
	if source.Format != "" {
		return false
	}
	content := bytes.TrimSpace(source.Content)
	return len(content) > 0 && (content[0] == '{' || content[0] == '[')
}

func (p *JSONParser) Parse(_ context.Context, source evidence.EvidenceSource) (evidence.Snapshot, error) {
	return decodeSnapshot(source.Content, source.ID)
}

// SPDX-License-Identifier: Apache-2.0

package parsers

import (
	"context"
	"fmt"
	"strings"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/goccy/go-yaml"
)

// YAMLParser decodes evidence snapshots written as YAML, which is how
// fixtures and CLI inputs are usually authored. The document is converted to
// JSON first so the anchor shorthand rules apply identically.
type YAMLParser struct{}

func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

func (p *YAMLParser) Name() string {
	return "yaml"
}

func (p *YAMLParser) CanHandle(source evidence.EvidenceSource) bool {
	switch strings.ToLower(source.Format) {
	case "yaml", "yml":
		return true
	case "":
	default:
		return false
	}
	content := strings.TrimSpace(string(source.Content))
	if content == "" || strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return false
	}
	first := strings.SplitN(content, "\n", 2)[0]
	return strings.HasPrefix(first, "- ") || strings.HasPrefix(first, "---") || strings.Contains(first, ":")
}

func (p *YAMLParser) Parse(_ context.Context, source evidence.EvidenceSource) (evidence.Snapshot, error) {
	data, err := yaml.YAMLToJSON(source.Content)
	if err != nil {
		return evidence.Snapshot{}, fmt.Errorf("failed to convert YAML: %w", err)
	}
	return decodeSnapshot(data, source.ID)
}

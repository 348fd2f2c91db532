// SPDX-License-Identifier: Apache-2.0

package parsers

import "github.com/finlens/evidence-mcp/internal/evidence"

// NewDefaultPipeline builds a Pipeline with every built-in parser. JSON is
// registered first because a JSON document is also valid YAML.
func NewDefaultPipeline() (*evidence.Pipeline, error) {
	return evidence.NewPipeline(
		NewJSONParser(),
		NewYAMLParser(),
	)
}

// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Pipeline struct {
	parsers   []EvidenceParser
	validator *Validator
}

// NewPipeline creates a new Pipeline with the provided parsers.
// The schema Validator is created internally.
func NewPipeline(parsers ...EvidenceParser) (*Pipeline, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		parsers:   parsers,
		validator: validator,
	}, nil
}

// RunResult is the output of a successful decode.
type RunResult struct {
	Snapshot   Snapshot
	ParserUsed string
	ItemCount  int
}

func (p *Pipeline) Decode(ctx context.Context, source EvidenceSource) (Snapshot, error) {
	result, err := p.DecodeWithMeta(ctx, source)
	if err != nil {
		return Snapshot{}, err
	}
	return result.Snapshot, nil
}

func (p *Pipeline) DecodeWithMeta(ctx context.Context, source EvidenceSource) (RunResult, error) {
	parser, err := p.selectParser(source)
	if err != nil {
		return RunResult{}, err
	}

	snapshot, err := parser.Parse(ctx, source)
	if err != nil {
		return RunResult{}, fmt.Errorf("parser %q failed: %w", parser.Name(), err)
	}

	if err := p.validator.ValidateSnapshot(snapshot); err != nil {
		return RunResult{}, err
	}

	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	return RunResult{
		Snapshot:   snapshot,
		ParserUsed: parser.Name(),
		ItemCount:  len(snapshot.Items),
	}, nil
}

// selectParser returns the first registered parser that can handle the given source.
func (p *Pipeline) selectParser(source EvidenceSource) (EvidenceParser, error) {
	for _, parser := range p.parsers {
		if parser.CanHandle(source) {
			return parser, nil
		}
	}
	return nil, fmt.Errorf("%w: no parser found for source %q (format hint: %q)", ErrUnsupportedFormat, source.ID, source.Format)
}

// RegisteredParsers returns the names of all currently registered parsers.
func (p *Pipeline) RegisteredParsers() []string {
	names := make([]string, len(p.parsers))
	for i, parser := range p.parsers {
		names[i] = parser.Name()
	}
	return names
}

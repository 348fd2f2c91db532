// SPDX-License-Identifier: Apache-2.0

package structured

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/antchfx/xpath"

	"github.com/finlens/evidence-mcp/internal/evidence"
	"github.com/finlens/evidence-mcp/internal/logging"
)

// DefaultHighlightClass marks the resolved node.
const DefaultHighlightClass = "evidence-highlight"

var (
	ErrNoMatch         = errors.New("structural path matched nothing")
	ErrBadPath         = errors.New("malformed structural path")
	ErrNotLoaded       = errors.New("no structured document loaded")
	ErrUnknownDocument = errors.New("unknown sub-document")
	ErrSuperseded      = errors.New("load superseded")
)

// Availability is the load state of the structured pane.
type Availability string

const (
	AvailabilityIdle         Availability = "idle"
	AvailabilityLoading      Availability = "loading"
	AvailabilityReady        Availability = "ready"
	AvailabilityNotAvailable Availability = "not-available"
	AvailabilityError        Availability = "error"
)

// ScrollRequest asks the view to bring a node into view.
type ScrollRequest struct {
	Target   string `json:"target"`
	Block    string `json:"block"`
	Behavior string `json:"behavior"`
}

// Resolution is a successful path resolution.
type Resolution struct {
	Document string        `json:"document"`
	Match    Match         `json:"match"`
	Scroll   ScrollRequest `json:"scroll"`
}

// Resolver owns the structured pane of one panel.
type Resolver struct {
	fetcher Fetcher
	parsers []MarkupParser
	class   string

	gen atomic.Uint64

	mu           sync.Mutex
	cancel       context.CancelFunc
	documentID   string
	docs         []SubDocument
	active       int
	tree         Tree
	parseErr     error
	availability Availability
	message      string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithHighlightClass overrides DefaultHighlightClass.
func WithHighlightClass(class string) ResolverOption {
	return func(r *Resolver) {
		if class != "" {
			r.class = class
		}
	}
}

// WithParsers replaces DefaultParsers.
func WithParsers(parsers ...MarkupParser) ResolverOption {
	return func(r *Resolver) {
		r.parsers = parsers
	}
}

// NewResolver creates a resolver. fetcher may be nil when sub-documents are
// supplied through SetDocuments.
func NewResolver(fetcher Fetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fetcher:      fetcher,
		parsers:      DefaultParsers(),
		class:        DefaultHighlightClass,
		availability: AvailabilityIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Availability returns the pane state and its message.
func (r *Resolver) Availability() (Availability, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availability, r.message
}

// Load fetches the sub-documents of documentID, cancelling any earlier
// Load. The first sub-document becomes active.
func (r *Resolver) Load(ctx context.Context, documentID string) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	gen := r.gen.Add(1)
	r.availability, r.message = AvailabilityLoading, ""
	r.mu.Unlock()
	defer cancel()

	if r.fetcher == nil {
		return r.finish(gen, documentID, nil, ErrNotAvailable)
	}
	docs, err := r.fetcher.Fetch(ctx, documentID)
	if ctx.Err() != nil || r.gen.Load() != gen {
		logging.Debug().
			Add(logging.Component("structured")).
			Add(logging.DocumentID(documentID)).
			Add(logging.Generation(gen)).
			Msg("stale structured load discarded")
		return ErrSuperseded
	}
	return r.finish(gen, documentID, docs, err)
}

// SetDocuments installs sub-documents without fetching.
func (r *Resolver) SetDocuments(documentID string, docs []SubDocument) error {
	gen := r.gen.Add(1)
	if len(docs) == 0 {
		return r.finish(gen, documentID, nil, ErrNotAvailable)
	}
	return r.finish(gen, documentID, docs, nil)
}

func (r *Resolver) finish(gen uint64, documentID string, docs []SubDocument, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen.Load() != gen {
		return ErrSuperseded
	}

	r.documentID = documentID
	r.docs, r.tree, r.parseErr, r.active = nil, nil, nil, 0
	switch {
	case errors.Is(err, ErrNotAvailable):
		r.availability, r.message = AvailabilityNotAvailable, ""
		return err
	case err != nil:
		r.availability, r.message = AvailabilityError, err.Error()
		logging.Warn().
			Add(logging.Component("structured")).
			Add(logging.DocumentID(documentID)).
			Add(logging.ErrorField(err)).
			Msg("structured fetch failed")
		return err
	}

	r.docs = append([]SubDocument(nil), docs...)
	r.availability = AvailabilityReady
	r.parseLocked()
	return nil
}

// Documents lists the loaded sub-documents and the index of the active one.
func (r *Resolver) Documents() ([]SubDocument, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SubDocument(nil), r.docs...), r.active
}

// Select makes the sub-document named (or pathed) hint active and reparses
// it.
func (r *Resolver) Select(hint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.docs == nil {
		return ErrNotLoaded
	}
	idx := r.indexLocked(hint)
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrUnknownDocument, hint)
	}
	r.active = idx
	r.parseLocked()
	return nil
}

// Resolve highlights the node addressed by item. Earlier highlights are
// always cleared first. An explicit sub-document hint on the item switches
// the active sub-document before the path is evaluated.
//
// A nil Resolution with a nil error means the item carries no path.
func (r *Resolver) Resolve(item evidence.Item) (*Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.docs == nil {
		return nil, ErrNotLoaded
	}
	if hint := item.DocumentHint(); hint != "" {
		if idx := r.indexLocked(hint); idx >= 0 {
			if idx != r.active {
				r.active = idx
				r.parseLocked()
			}
		} else {
			logging.Debug().
				Add(logging.Component("structured")).
				Add(logging.URN(item.URN)).
				Msg("document hint names no loaded sub-document")
		}
	}

	if r.tree == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoMatch, r.parseErr)
	}
	r.tree.ClearMarks(r.class)

	path := item.PathHint()
	if path == "" {
		return nil, nil
	}
	expr, err := xpath.Compile(string(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPath, err)
	}

	match, ok, err := markSafely(r.tree, expr, r.class)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, path)
	}
	return &Resolution{
		Document: r.docs[r.active].Name,
		Match:    match,
		Scroll:   ScrollRequest{Target: match.Path, Block: "center", Behavior: "smooth"},
	}, nil
}

// Clear removes every highlight from the active tree.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tree != nil {
		r.tree.ClearMarks(r.class)
	}
}

// Markup renders the active sub-document including highlight marks.
func (r *Resolver) Markup() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tree == nil {
		if r.parseErr != nil {
			return "", r.parseErr
		}
		return "", ErrNotLoaded
	}
	return r.tree.Render(), nil
}

func (r *Resolver) indexLocked(hint string) int {
	for i, d := range r.docs {
		if d.Matches(hint) {
			return i
		}
	}
	return -1
}

func (r *Resolver) parseLocked() {
	doc := r.docs[r.active]
	tree, parser, err := Parse(r.parsers, doc)
	r.tree, r.parseErr = tree, err
	if err != nil {
		logging.Warn().
			Add(logging.Component("structured")).
			Add(logging.DocumentID(r.documentID)).
			Add(logging.ErrorField(err)).
			Msg("sub-document parse failed")
		return
	}
	logging.Debug().
		Add(logging.Component("structured")).
		Add(logging.DocumentID(r.documentID)).
		Add(logging.Source(parser)).
		Msg("sub-document parsed")
}

// markSafely evaluates expr, turning evaluation panics into ErrBadPath.
func markSafely(tree Tree, expr *xpath.Expr, class string) (m Match, ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: evaluation: %v", ErrBadPath, rec)
		}
	}()
	m, ok = tree.Mark(expr, class)
	return m, ok, nil
}

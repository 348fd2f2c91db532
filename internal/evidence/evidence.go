// SPDX-License-Identifier: Apache-2.0

package evidence

import (
	"context"
	"reflect"
)

// DiffType classifies an item relative to the previous snapshot.
type DiffType string

const (
	DiffCreated   DiffType = "created"
	DiffUpdated   DiffType = "updated"
	DiffUnchanged DiffType = "unchanged"
	DiffRemoved   DiffType = "removed"
)

// Verdict is the outcome of an externally computed self-check.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// SelfCheck is a trust signal attached to an item by the answer backend.
type SelfCheck struct {
	Verdict Verdict `json:"verdict"`
	Note    string  `json:"note,omitempty"`
}

// PageRect is a rectangle in source-document units with a top-left origin.
type PageRect struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// StructuralPath addresses one node in a structured source tree.
// Failing to resolve is an expected outcome.
type StructuralPath string

// Anchor ties an item to a position in its source rendering. At most one of
// Rect and Path is set. Document optionally names the structured
// sub-document the path should be evaluated against.
type Anchor struct {
	Rect     *PageRect      `json:"rect,omitempty"`
	Path     StructuralPath `json:"path,omitempty"`
	Document string         `json:"document,omitempty"`
}

// IsRect reports whether the anchor locates a page-image rectangle.
func (a *Anchor) IsRect() bool {
	return a != nil && a.Rect != nil
}

// IsPath reports whether the anchor carries a structural path.
func (a *Anchor) IsPath() bool {
	return a != nil && a.Path != ""
}

// Item is one quoted excerpt presented as support for a generated answer.
// URN is the identity and is stable across snapshots; every other field may
// be replaced on refresh.
type Item struct {
	URN               string            `json:"urnId"`
	Quote             string            `json:"quote"`
	Section           string            `json:"section,omitempty"`
	PageNumber        *int              `json:"pageNumber,omitempty"`
	Anchor            *Anchor           `json:"anchor,omitempty"`
	SourceURL         string            `json:"sourceUrl,omitempty"`
	SourceReliability *float64          `json:"sourceReliability,omitempty"`
	DiffType          DiffType          `json:"diffType,omitempty"`
	SelfCheck         *SelfCheck        `json:"selfCheck,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Metadata keys the structured resolver reads as hints.
const (
	MetaDocument = "document"
	MetaPath     = "path"
)

// DocumentHint returns the preferred structured sub-document for the item.
// An explicit anchor document wins over metadata.
func (i Item) DocumentHint() string {
	if i.Anchor != nil && i.Anchor.Document != "" {
		return i.Anchor.Document
	}
	return i.Metadata[MetaDocument]
}

// PathHint returns the structural path to resolve for the item, if any.
func (i Item) PathHint() StructuralPath {
	if i.Anchor.IsPath() {
		return i.Anchor.Path
	}
	return StructuralPath(i.Metadata[MetaPath])
}

// ContentEqual compares the fields that participate in diff classification:
// quote, section, page number, anchor, source reliability and self-check.
func (i Item) ContentEqual(other Item) bool {
	if i.Quote != other.Quote || i.Section != other.Section {
		return false
	}
	if !equalPtr(i.PageNumber, other.PageNumber) {
		return false
	}
	if !equalPtr(i.SourceReliability, other.SourceReliability) {
		return false
	}
	if !equalPtr(i.SelfCheck, other.SelfCheck) {
		return false
	}
	return reflect.DeepEqual(i.Anchor, other.Anchor)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Snapshot is the evidence set captured at one point in a conversation.
// Producers streaming a turn mark the snapshot Partial until the last item
// has arrived; only complete snapshots take part in diffing.
type Snapshot struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Turn      int    `json:"turn,omitempty"`
	Items     []Item `json:"items"`
	Partial   bool   `json:"partial,omitempty"`
}

// Complete reports whether the snapshot may be diffed.
func (s Snapshot) Complete() bool {
	return !s.Partial
}

// Index returns the snapshot items keyed by URN.
func (s Snapshot) Index() map[string]Item {
	idx := make(map[string]Item, len(s.Items))
	for _, item := range s.Items {
		idx[item.URN] = item
	}
	return idx
}

// Contains reports whether an item with the given URN is present.
func (s Snapshot) Contains(urn string) bool {
	for _, item := range s.Items {
		if item.URN == urn {
			return true
		}
	}
	return false
}

// EvidenceSource describes a raw evidence payload handed over by the
// retrieval collaborator.
type EvidenceSource struct {
	// Content is the raw payload.
	Content []byte
	Format  string
	ID      string
}

type EvidenceParser interface {
	CanHandle(source EvidenceSource) bool
	Parse(ctx context.Context, source EvidenceSource) (Snapshot, error)
	Name() string
}

// IntPtr and FloatPtr are small helpers for building optional fields.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

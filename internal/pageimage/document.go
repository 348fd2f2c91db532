// SPDX-License-Identifier: Apache-2.0

// Package pageimage renders one page of a paginated source document and
// places evidence highlights on top of the rendered raster.
package pageimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/finlens/evidence-mcp/internal/fetch"
)

func init() {
	// Keep pdfcpu from creating a config directory under $HOME.
	model.ConfigPath = "disable"
}

var (
	ErrNoPages     = errors.New("document has no pages")
	ErrPageRange   = errors.New("page out of range")
	ErrLoadFailure = errors.New("document load failed")
)

// Size is a page size in document units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is the geometry of a loaded paginated source. Documents read
// from PDF bytes also keep the bytes so a renderer can rasterize them.
type Document struct {
	Source    string
	sizes     []Size
	uniform   Size
	pages     int
	rotations map[int]int
	data      []byte
}

// NewDocument creates a document from its page sizes in page order.
func NewDocument(source string, sizes []Size) *Document {
	return &Document{Source: source, sizes: append([]Size(nil), sizes...), pages: len(sizes)}
}

// NewUniformDocument creates a document of pages pages that all share size.
// No per-page storage is allocated.
func NewUniformDocument(source string, pages int, size Size) *Document {
	if pages < 0 {
		pages = 0
	}
	return &Document{Source: source, uniform: size, pages: pages}
}

// WithRotation sets the display rotation for a page. Only multiples of 90
// are kept.
func (d *Document) WithRotation(page, degrees int) *Document {
	if d.rotations == nil {
		d.rotations = make(map[int]int)
	}
	d.rotations[page] = normalizeRotation(degrees)
	return d
}

// Data returns the raw PDF bytes, or nil for geometry-only documents.
func (d *Document) Data() []byte {
	return d.data
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.pages
}

// PageSize returns the native size of a 1-based page.
func (d *Document) PageSize(page int) (Size, error) {
	if page < 1 || page > d.pages {
		return Size{}, fmt.Errorf("%w: %d of %d", ErrPageRange, page, d.pages)
	}
	if d.sizes == nil {
		return d.uniform, nil
	}
	return d.sizes[page-1], nil
}

// Rotation returns the display rotation of a page in degrees.
func (d *Document) Rotation(page int) int {
	return d.rotations[page]
}

// ClampPage limits page to [1, PageCount].
func (d *Document) ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	if n := d.PageCount(); page > n {
		return n
	}
	return page
}

// Loader loads document geometry for a source reference.
type Loader interface {
	Load(ctx context.Context, source string) (*Document, error)
}

// PDFLoader reads PDF sources from HTTP(S) URLs or the local filesystem.
type PDFLoader struct {
	client *fetch.Client
}

// NewPDFLoader creates a loader. A nil client uses fetch defaults.
func NewPDFLoader(client *fetch.Client) *PDFLoader {
	if client == nil {
		client = fetch.New(fetch.DefaultConfig(), nil)
	}
	return &PDFLoader{client: client}
}

// Load fetches the source and reads its page dimensions.
func (l *PDFLoader) Load(ctx context.Context, source string) (*Document, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}
	return ParsePDF(source, data)
}

func (l *PDFLoader) read(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err := l.client.Get(ctx, source, "application/pdf")
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(strings.TrimPrefix(source, "file://"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	return data, nil
}

// ParsePDF reads the page geometry of an in-memory PDF.
func ParsePDF(source string, data []byte) (*Document, error) {
	dims, err := api.PageDims(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	if len(dims) == 0 {
		return nil, ErrNoPages
	}
	sizes := make([]Size, len(dims))
	for i, d := range dims {
		sizes[i] = Size{Width: d.Width, Height: d.Height}
	}
	doc := NewDocument(source, sizes)
	doc.data = data
	return doc, nil
}

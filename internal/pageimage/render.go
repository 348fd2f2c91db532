// SPDX-License-Identifier: Apache-2.0

package pageimage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/gen2brain/go-fitz"
)

// ErrCanvasSize is returned when a page would render to an empty or
// oversized raster.
var ErrCanvasSize = errors.New("invalid canvas size")

// defaultMaxPixels bounds a rendered page at 64 megapixels.
const defaultMaxPixels = 64 << 20

// Surface is a rendered page.
type Surface struct {
	Page   int
	Width  int
	Height int
	Image  image.Image
}

// Renderer rasterizes one page of a document at a viewport.
type Renderer interface {
	Render(ctx context.Context, doc *Document, page int, vp Viewport) (*Surface, error)
}

// PDFRenderer rasterizes PDF pages with MuPDF at the viewport scale and
// rotation. Documents that carry geometry only, with no PDF bytes, are
// passed to Fallback.
type PDFRenderer struct {
	// MaxPixels bounds the raster area. Zero means 64 megapixels.
	MaxPixels int
	// Fallback handles geometry-only documents. Nil means CanvasRenderer.
	Fallback Renderer
}

// Render implements Renderer.
func (r PDFRenderer) Render(ctx context.Context, doc *Document, page int, vp Viewport) (*Surface, error) {
	data := doc.Data()
	if data == nil {
		fallback := r.Fallback
		if fallback == nil {
			fallback = CanvasRenderer{MaxPixels: r.MaxPixels}
		}
		return fallback.Render(ctx, doc, page, vp)
	}
	if _, _, err := canvasSize(ctx, doc, page, vp, r.MaxPixels); err != nil {
		return nil, err
	}

	pdf, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer pdf.Close()

	if page > pdf.NumPage() {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, page, pdf.NumPage())
	}
	img, err := pdf.ImageDPI(page-1, 72*vp.Scale)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := rotate(img, vp.Rotation)
	b := out.Bounds()
	return &Surface{Page: page, Width: b.Dx(), Height: b.Dy(), Image: out}, nil
}

// CanvasRenderer allocates a blank page-sized canvas. It serves documents
// known only by their page geometry; the highlight layer still gets the
// right coordinate space but no page content is drawn.
type CanvasRenderer struct {
	// MaxPixels bounds the canvas area. Zero means 64 megapixels.
	MaxPixels int
}

// Render implements Renderer.
func (r CanvasRenderer) Render(ctx context.Context, doc *Document, page int, vp Viewport) (*Surface, error) {
	w, h, err := canvasSize(ctx, doc, page, vp, r.MaxPixels)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return &Surface{Page: page, Width: w, Height: h, Image: img}, nil
}

func canvasSize(ctx context.Context, doc *Document, page int, vp Viewport, maxPixels int) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if page < 1 || page > doc.PageCount() {
		return 0, 0, fmt.Errorf("%w: %d", ErrPageRange, page)
	}
	w, h := math.Ceil(vp.Width), math.Ceil(vp.Height)
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("%w: %vx%v", ErrCanvasSize, w, h)
	}
	limit := maxPixels
	if limit <= 0 {
		limit = defaultMaxPixels
	}
	if w*h > float64(limit) {
		return 0, 0, fmt.Errorf("%w: %vx%v exceeds %d pixels", ErrCanvasSize, w, h, limit)
	}
	return int(w), int(h), nil
}

// rotate turns img clockwise by a multiple of 90 degrees, matching the
// viewport transform.
func rotate(img *image.RGBA, degrees int) *image.RGBA {
	if degrees == 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var out *image.RGBA
	if degrees == 180 {
		out = image.NewRGBA(image.Rect(0, 0, w, h))
	} else {
		out = image.NewRGBA(image.Rect(0, 0, h, w))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			switch degrees {
			case 90:
				out.SetRGBA(h-1-y, x, c)
			case 180:
				out.SetRGBA(w-1-x, h-1-y, c)
			case 270:
				out.SetRGBA(y, w-1-x, c)
			}
		}
	}
	return out
}

// SPDX-License-Identifier: Apache-2.0

package pageimage

import (
	"errors"
	"fmt"
	"math"

	"github.com/finlens/evidence-mcp/internal/evidence"
)

// ErrTransform is returned when a point or rectangle cannot be mapped into
// display space.
var ErrTransform = errors.New("viewport transform failed")

// Rect is a rectangle in display units.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport maps document coordinates (top-left origin) onto a rendered page.
// Transform is the affine matrix [a b c d e f] with
// x' = a*x + c*y + e and y' = b*x + d*y + f.
type Viewport struct {
	Scale     float64    `json:"scale"`
	Rotation  int        `json:"rotation"`
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Transform [6]float64 `json:"transform"`
}

// NewViewport builds the viewport for a page of the given native size.
func NewViewport(page Size, scale float64, rotation int) (Viewport, error) {
	if !finite(scale) || scale <= 0 {
		return Viewport{}, fmt.Errorf("%w: scale %v", ErrTransform, scale)
	}
	if !finite(page.Width) || !finite(page.Height) || page.Width <= 0 || page.Height <= 0 {
		return Viewport{}, fmt.Errorf("%w: page size %vx%v", ErrTransform, page.Width, page.Height)
	}

	s, w, h := scale, page.Width, page.Height
	vp := Viewport{Scale: scale, Rotation: normalizeRotation(rotation)}
	switch vp.Rotation {
	case 90:
		vp.Transform = [6]float64{0, s, -s, 0, s * h, 0}
		vp.Width, vp.Height = s*h, s*w
	case 180:
		vp.Transform = [6]float64{-s, 0, 0, -s, s * w, s * h}
		vp.Width, vp.Height = s*w, s*h
	case 270:
		vp.Transform = [6]float64{0, -s, s, 0, 0, s * w}
		vp.Width, vp.Height = s*h, s*w
	default:
		vp.Transform = [6]float64{s, 0, 0, s, 0, 0}
		vp.Width, vp.Height = s*w, s*h
	}
	return vp, nil
}

// ConvertToViewportPoint maps a document point into display space.
func (v Viewport) ConvertToViewportPoint(x, y float64) (float64, float64, error) {
	if !finite(x) || !finite(y) {
		return 0, 0, fmt.Errorf("%w: point (%v, %v)", ErrTransform, x, y)
	}
	m := v.Transform
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5], nil
}

// ConvertToViewportRectangle maps the corners (x1, y1) and (x2, y2) and
// returns the normalized display rectangle [minX, minY, maxX, maxY].
func (v Viewport) ConvertToViewportRectangle(x1, y1, x2, y2 float64) ([4]float64, error) {
	ax, ay, err := v.ConvertToViewportPoint(x1, y1)
	if err != nil {
		return [4]float64{}, err
	}
	bx, by, err := v.ConvertToViewportPoint(x2, y2)
	if err != nil {
		return [4]float64{}, err
	}
	return [4]float64{math.Min(ax, bx), math.Min(ay, by), math.Max(ax, bx), math.Max(ay, by)}, nil
}

// DisplayRect converts an evidence rectangle into display units.
func (v Viewport) DisplayRect(r evidence.PageRect) (Rect, error) {
	if r.Width < 0 || r.Height < 0 {
		return Rect{}, fmt.Errorf("%w: negative size", ErrTransform)
	}
	box, err := v.ConvertToViewportRectangle(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
	if err != nil {
		return Rect{}, err
	}
	out := Rect{Left: box[0], Top: box[1], Width: box[2] - box[0], Height: box[3] - box[1]}
	if !finite(out.Left) || !finite(out.Top) || !finite(out.Width) || !finite(out.Height) {
		return Rect{}, fmt.Errorf("%w: overflow", ErrTransform)
	}
	return out, nil
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg / 90 * 90
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

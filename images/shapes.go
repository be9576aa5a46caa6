// Package images - Image decoding, resizing and tensor conversion utilities.
package images

import "image"

// Rect is a lightweight integer box in pixel space.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Width returns the horizontal extent of the box.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the vertical extent of the box.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Area returns the area in pixels, or 0 for degenerate boxes.
func (r Rect) Area() int {
	if r.Width() <= 0 || r.Height() <= 0 {
		return 0
	}
	return r.Width() * r.Height()
}

// Clamp restricts the box to [0, width) x [0, height).
func (r Rect) Clamp(width, height int) Rect {
	return Rect{
		X1: min(max(r.X1, 0), width),
		Y1: min(max(r.Y1, 0), height),
		X2: min(max(r.X2, 0), width),
		Y2: min(max(r.Y2, 0), height),
	}
}

// ImageRectangle converts the box into an image.Rectangle.
func (r Rect) ImageRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

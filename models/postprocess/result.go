// Package postprocess - Detection results and Non-Maximum Suppression.
package postprocess

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/nvr-ai/go-infer/images"
)

// Rectangle is an axis-aligned box in pixel space.
type Rectangle struct {
	X, Y, Width, Height float64
}

// NewRectangle builds a Rectangle from corner coordinates.
func NewRectangle(x1, y1, x2, y2 float64) Rectangle {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rectangle{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Area returns Width * Height.
func (r Rectangle) Area() float64 { return r.Width * r.Height }

// Intersect returns the overlapping region, or the zero Rectangle.
func (r Rectangle) Intersect(o Rectangle) Rectangle {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rectangle{}
	}
	return Rectangle{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IoU returns the Intersection over Union with o.
func (r Rectangle) IoU(o Rectangle) float64 {
	inter := r.Intersect(o).Area()
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Clamp restricts the rectangle to an image of the given size.
func (r Rectangle) Clamp(width, height float64) Rectangle {
	x1 := min(max(r.X, 0), width)
	y1 := min(max(r.Y, 0), height)
	x2 := min(max(r.X+r.Width, 0), width)
	y2 := min(max(r.Y+r.Height, 0), height)
	return NewRectangle(x1, y1, x2, y2)
}

// Rect rounds the rectangle to integer pixel coordinates.
func (r Rectangle) Rect() images.Rect {
	return images.Rect{
		X1: int(r.X + 0.5),
		Y1: int(r.Y + 0.5),
		X2: int(r.X + r.Width + 0.5),
		Y2: int(r.Y + r.Height + 0.5),
	}
}

// ImageRectangle converts the rectangle for drawing.
func (r Rectangle) ImageRectangle() image.Rectangle {
	return r.Rect().ImageRectangle()
}

// DetectedObject is a single labeled region.
type DetectedObject struct {
	// ClassName is the human-readable label from the synset.
	ClassName string `json:"class_name"`
	// Class is the index of the label in the synset.
	Class int `json:"class"`
	// Probability is the confidence score in [0, 1].
	Probability float64 `json:"probability"`
	// Box is the region in original image pixel space.
	Box Rectangle `json:"box"`
}

func (d DetectedObject) String() string {
	return fmt.Sprintf("%s (%.4f): [x=%.1f, y=%.1f, w=%.1f, h=%.1f]",
		d.ClassName, d.Probability, d.Box.X, d.Box.Y, d.Box.Width, d.Box.Height)
}

// DetectedObjects is the output of an object detection translator.
type DetectedObjects []DetectedObject

// Sort orders the objects by descending probability in place.
func (d DetectedObjects) Sort() {
	sort.SliceStable(d, func(i, j int) bool {
		return d[i].Probability > d[j].Probability
	})
}

// Filter returns the objects whose probability is at least threshold.
func (d DetectedObjects) Filter(threshold float64) DetectedObjects {
	out := make(DetectedObjects, 0, len(d))
	for _, obj := range d {
		if obj.Probability >= threshold {
			out = append(out, obj)
		}
	}
	return out
}

// Best returns the most probable object.
func (d DetectedObjects) Best() (DetectedObject, bool) {
	if len(d) == 0 {
		return DetectedObject{}, false
	}
	best := d[0]
	for _, obj := range d[1:] {
		if obj.Probability > best.Probability {
			best = obj
		}
	}
	return best, true
}

func (d DetectedObjects) String() string {
	lines := make([]string, len(d))
	for i, obj := range d {
		lines[i] = "\t" + obj.String()
	}
	return fmt.Sprintf("[\n%s\n]", strings.Join(lines, "\n"))
}

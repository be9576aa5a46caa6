// Package render - Draws detections onto images and saves them.
package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-infer/images"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// Label returns the tag drawn above a detection.
func Label(obj postprocess.DetectedObject) string {
	return fmt.Sprintf("%s %.2f", obj.ClassName, obj.Probability)
}

// placeLabel positions a label of textSize above box. Labels that would leave
// the top of the image are moved inside the box.
func placeLabel(box image.Rectangle, textSize image.Point, font Font, thickness int) (image.Rectangle, image.Point) {
	left := box.Min.X - thickness/2
	height := textSize.Y + font.TopPad + font.BottomPad
	top := box.Min.Y - height
	if top < 0 {
		top = box.Min.Y
	}
	rect := image.Rect(left, top, left+textSize.X+font.LeftPad+font.RightPad, top+height)
	return rect, image.Pt(left+font.LeftPad, rect.Max.Y-font.BottomPad)
}

// DetectionBoxes draws a rectangle and a "<label> <probability>" tag for
// every object. Colors follow the class index.
//
// Arguments:
//   - img: The BGR image to draw on.
//   - objects: Detections in img pixel space.
//   - font: The label font.
//   - thickness: The rectangle line thickness.
func DetectionBoxes(img *gocv.Mat, objects postprocess.DetectedObjects, font Font, thickness int) {
	labels := make([]boxLabel, 0, len(objects))

	for _, obj := range objects {
		clr := ClassColor(obj.Class)
		rect := obj.Box.ImageRectangle()
		gocv.Rectangle(img, rect, clr, thickness)

		text := Label(obj)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)
		bRect, pos := placeLabel(rect, textSize, font, thickness)
		labels = append(labels, boxLabel{rect: bRect, clr: clr, text: text, textPos: pos})
	}

	// labels go last so no box is drawn over them
	for _, l := range labels {
		gocv.Rectangle(img, l.rect, l.clr, -1)
		gocv.PutTextWithParams(img, l.text, l.textPos,
			font.Face, font.Scale, font.Color, font.Thickness, font.LineType, false)
	}
}

// SaveImage draws objects on img and writes the result to dir/name. The
// directory is created when missing and the format follows the extension.
//
// Arguments:
//   - dir: The output directory.
//   - name: The file name, e.g. "ssd.jpg".
//   - img: The original image.
//   - objects: Detections in img pixel space.
//
// Returns:
//   - string: The written path.
//   - error: An error if the image cannot be converted or written.
func SaveImage(dir, name string, img image.Image, objects postprocess.DetectedObjects) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}

	mat, err := images.ToMat(img)
	if err != nil {
		return "", err
	}
	defer mat.Close()

	DetectionBoxes(&mat, objects, DefaultFont(), 2)

	path := filepath.Join(dir, name)
	if ok := gocv.IMWrite(path, mat); !ok {
		return "", errors.Errorf("failed to write %s", path)
	}
	slog.Debug("saved detections", "path", path, "objects", len(objects))
	return path, nil
}

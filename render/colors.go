package render

import "image/color"

var (
	// palette holds one color per class index, wrapping around.
	palette = []color.RGBA{
		{R: 255, G: 56, B: 56, A: 255},
		{R: 255, G: 157, B: 151, A: 255},
		{R: 255, G: 112, B: 31, A: 255},
		{R: 255, G: 178, B: 29, A: 255},
		{R: 207, G: 210, B: 49, A: 255},
		{R: 72, G: 249, B: 10, A: 255},
		{R: 146, G: 204, B: 23, A: 255},
		{R: 61, G: 219, B: 134, A: 255},
		{R: 26, G: 147, B: 52, A: 255},
		{R: 0, G: 212, B: 187, A: 255},
		{R: 44, G: 153, B: 168, A: 255},
		{R: 0, G: 194, B: 255, A: 255},
		{R: 52, G: 69, B: 147, A: 255},
		{R: 100, G: 115, B: 255, A: 255},
		{R: 0, G: 24, B: 236, A: 255},
		{R: 132, G: 56, B: 255, A: 255},
		{R: 82, G: 0, B: 133, A: 255},
		{R: 203, G: 56, B: 255, A: 255},
		{R: 255, G: 149, B: 200, A: 255},
		{R: 255, G: 55, B: 199, A: 255},
	}

	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ClassColor returns the palette color for a class index.
func ClassColor(class int) color.RGBA {
	if class < 0 {
		class = -class
	}
	return palette[class%len(palette)]
}

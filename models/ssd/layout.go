package ssd

import (
	"math"

	"github.com/nvr-ai/go-infer/ndarray"
	"github.com/pkg/errors"
)

// Layout describes how an SSD export arranges its detections.
type Layout string

const (
	// LayoutMXNet is a single [1, N, 6] output with rows of
	// (class, score, x1, y1, x2, y2), coordinates normalized to [0, 1] and
	// class -1 for padding rows.
	LayoutMXNet Layout = "mxnet"
	// LayoutDetectionOutput is the Caffe/OpenCV DetectionOutput blob
	// [1, 1, N, 7] with rows of (image, class, score, x1, y1, x2, y2),
	// coordinates normalized.
	LayoutDetectionOutput Layout = "detection_output"
	// LayoutSplit is three outputs: class ids [N], scores [N] and boxes
	// [N, 4] as (x1, y1, x2, y2) in input pixels.
	LayoutSplit Layout = "split"
	// LayoutTensorFlow is the TF object detection API signature: boxes
	// [1, N, 4] as normalized (y1, x1, y2, x2), classes [1, N], scores
	// [1, N] and an optional count [1].
	LayoutTensorFlow Layout = "tensorflow"
)

// Layouts lists every supported layout.
var Layouts = []Layout{LayoutMXNet, LayoutDetectionOutput, LayoutSplit, LayoutTensorFlow}

// ParseLayout validates a layout name. Empty selects LayoutMXNet.
func ParseLayout(name string) (Layout, error) {
	if name == "" {
		return LayoutMXNet, nil
	}
	for _, l := range Layouts {
		if string(l) == name {
			return l, nil
		}
	}
	return "", errors.Errorf("unknown SSD output layout %q", name)
}

// detection is one decoded row with its box in model input pixels.
type detection struct {
	class          int
	score          float32
	x1, y1, x2, y2 float64
}

// decode turns the raw model outputs into rows for the layout. width and
// height are the model input size used to scale normalized coordinates.
func decode(layout Layout, outputs ndarray.NDList, width, height int) ([]detection, error) {
	switch layout {
	case LayoutMXNet:
		return decodeRows(outputs, 6, 0, width, height)
	case LayoutDetectionOutput:
		return decodeRows(outputs, 7, 1, width, height)
	case LayoutSplit:
		return decodeSplit(outputs)
	case LayoutTensorFlow:
		return decodeTensorFlow(outputs, width, height)
	default:
		return nil, errors.Errorf("unknown SSD output layout %q", layout)
	}
}

// decodeRows reads fixed-width rows where the class id sits at offset and is
// followed by score and a normalized x1, y1, x2, y2 box.
func decodeRows(outputs ndarray.NDList, cols, offset, width, height int) ([]detection, error) {
	if outputs.Len() == 0 {
		return nil, errors.New("no outputs")
	}
	rows, err := outputs.Get(0).Reshape(-1, cols)
	if err != nil {
		return nil, errors.Wrapf(err, "expected rows of %d values", cols)
	}

	data := rows.Float32s()
	out := make([]detection, 0, len(data)/cols)
	for i := 0; i+cols <= len(data); i += cols {
		v := data[i+offset:]
		out = append(out, detection{
			class: int(v[0]),
			score: v[1],
			x1:    float64(v[2]) * float64(width),
			y1:    float64(v[3]) * float64(height),
			x2:    float64(v[4]) * float64(width),
			y2:    float64(v[5]) * float64(height),
		})
	}
	return out, nil
}

func decodeSplit(outputs ndarray.NDList) ([]detection, error) {
	if outputs.Len() < 3 {
		return nil, errors.Errorf("expected class, score and box outputs, got %d", outputs.Len())
	}
	classes := outputs.Get(0).Float32s()
	scores := outputs.Get(1).Float32s()
	boxes, err := outputs.Get(2).Reshape(-1, 4)
	if err != nil {
		return nil, errors.Wrap(err, "boxes")
	}
	coords := boxes.Float32s()
	if len(classes) != len(scores) || len(coords) != 4*len(classes) {
		return nil, errors.Errorf("mismatched outputs: %d classes, %d scores, %d boxes",
			len(classes), len(scores), len(coords)/4)
	}

	out := make([]detection, len(classes))
	for i := range classes {
		b := coords[i*4:]
		out[i] = detection{
			class: int(classes[i]),
			score: scores[i],
			x1:    float64(b[0]),
			y1:    float64(b[1]),
			x2:    float64(b[2]),
			y2:    float64(b[3]),
		}
	}
	return out, nil
}

// tfOutput finds a TensorFlow output by name, falling back to position.
func tfOutput(outputs ndarray.NDList, name string, pos int) *ndarray.NDArray {
	if arr, ok := outputs.ByName(name); ok {
		return arr
	}
	return outputs.Get(pos)
}

func decodeTensorFlow(outputs ndarray.NDList, width, height int) ([]detection, error) {
	boxesArr := tfOutput(outputs, "detection_boxes", 0)
	classesArr := tfOutput(outputs, "detection_classes", 1)
	scoresArr := tfOutput(outputs, "detection_scores", 2)
	if boxesArr == nil || classesArr == nil || scoresArr == nil {
		return nil, errors.Errorf("expected boxes, classes and scores outputs, got %d", outputs.Len())
	}

	boxes, err := boxesArr.Reshape(-1, 4)
	if err != nil {
		return nil, errors.Wrap(err, "boxes")
	}
	coords := boxes.Float32s()
	classes := classesArr.Float32s()
	scores := scoresArr.Float32s()

	n := min(len(classes), len(scores), len(coords)/4)
	if count := tfOutput(outputs, "num_detections", 3); count != nil && count.Size() > 0 {
		c := float64(count.Float32s()[0])
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 {
			return nil, errors.Errorf("invalid detection count %v", c)
		}
		n = max(0, min(n, int(c)))
	}

	out := make([]detection, n)
	for i := 0; i < n; i++ {
		b := coords[i*4:]
		out[i] = detection{
			class: int(classes[i]),
			score: scores[i],
			x1:    float64(b[1]) * float64(width),
			y1:    float64(b[0]) * float64(height),
			x2:    float64(b[3]) * float64(width),
			y2:    float64(b[2]) * float64(height),
		}
	}
	return out, nil
}

package postprocess

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which the lower scored box is suppressed.
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAware suppresses only boxes that share a class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// MaxDetections caps the number of kept boxes. 0 means unlimited.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// DefaultNMSConfig returns a class-aware configuration with a 0.45 threshold.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{IoUThreshold: 0.45, ClassAware: true}
}

// ApplyNMS performs greedy Non-Maximum Suppression.
//
// The input is not modified. Detections are visited in descending probability
// order and every later detection whose IoU with a kept one exceeds the
// threshold is dropped.
//
// Arguments:
//   - detections: The candidate detections, in any order.
//   - config: The suppression parameters.
//
// Returns:
//   - DetectedObjects: The kept detections, highest probability first.
func ApplyNMS(detections DetectedObjects, config NMSConfig) DetectedObjects {
	n := len(detections)
	if n == 0 {
		return DetectedObjects{}
	}

	sorted := make(DetectedObjects, n)
	copy(sorted, detections)
	sorted.Sort()

	kept := make(DetectedObjects, 0, n)
	used := make([]bool, n)
	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		anchor := sorted[i]
		kept = append(kept, anchor)
		if config.MaxDetections > 0 && len(kept) == config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && sorted[j].Class != anchor.Class {
				continue
			}
			if anchor.Box.IoU(sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}
	return kept
}

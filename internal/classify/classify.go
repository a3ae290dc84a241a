// Package classify is the front door to the external symbol classifier: it
// derives the classifier's input features from a hand pose and reduces a
// ranked prediction list to "the winning label above a confidence floor, or
// nothing".
package classify

import (
	"math"

	"signroom/internal/room"
)

// Prediction is one (label, confidence) pair from the classifier.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier is the external model interface. Implementations return a
// ranked list of predictions for one frame's feature vector.
type Classifier interface {
	Classify(features []float64) ([]Prediction, error)
}

// Winner normalizes confidences to sum to one, then returns the top label
// when its normalized confidence clears the floor.
func Winner(preds []Prediction, floor float64) (string, bool) {
	var sum float64
	for _, p := range preds {
		sum += p.Confidence
	}
	if sum <= 0 {
		return "", false
	}
	best := preds[0]
	for _, p := range preds[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	if best.Confidence/sum < floor {
		return "", false
	}
	return best.Label, true
}

// JointOrder is the canonical hand keypoint order the model was trained
// with (MediaPipe hand landmarks).
var JointOrder = []string{
	"wrist",
	"thumb_cmc", "thumb_mcp", "thumb_ip", "thumb_tip",
	"index_finger_mcp", "index_finger_pip", "index_finger_dip", "index_finger_tip",
	"middle_finger_mcp", "middle_finger_pip", "middle_finger_dip", "middle_finger_tip",
	"ring_finger_mcp", "ring_finger_pip", "ring_finger_dip", "ring_finger_tip",
	"pinky_finger_mcp", "pinky_finger_pip", "pinky_finger_dip", "pinky_finger_tip",
}

// Connections are the skeleton edges, as index pairs into JointOrder.
var Connections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {0, 17}, {17, 18}, {18, 19}, {19, 20},
}

// Features flattens a joint map into the model's input vector: per joint
// the bounding-box-normalized x and y, then per skeleton connection the
// box-normalized distance and the angle divided by pi. Returns nil when
// any joint in JointOrder is missing.
func Features(joints map[string]room.Point) []float64 {
	pts := make([]room.Point, len(JointOrder))
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i, name := range JointOrder {
		p, ok := joints[name]
		if !ok {
			return nil
		}
		pts[i] = p
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	spanX := maxX - minX
	spanY := maxY - minY
	if spanX == 0 || spanY == 0 {
		return nil
	}

	out := make([]float64, 0, 2*len(pts)+2*len(Connections))
	for _, p := range pts {
		out = append(out, (p.X-minX)/spanX, (p.Y-minY)/spanY)
	}
	for _, c := range Connections {
		a, b := pts[c[0]], pts[c[1]]
		dx := (b.X - a.X) / spanX
		dy := (b.Y - a.Y) / spanY
		out = append(out, math.Sqrt(dx*dx+dy*dy), math.Atan2(dy, dx)/math.Pi)
	}
	return out
}

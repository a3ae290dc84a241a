package classify

import (
	"math"
	"testing"

	"signroom/internal/room"
)

func TestWinnerAppliesConfidenceFloor(t *testing.T) {
	preds := []Prediction{
		{Label: "A", Confidence: 0.5},
		{Label: "B", Confidence: 0.3},
		{Label: "C", Confidence: 0.2},
	}
	if label, ok := Winner(preds, 0.6); ok {
		t.Fatalf("0.5 must not clear a 0.6 floor, got %q", label)
	}
	label, ok := Winner(preds, 0.4)
	if !ok || label != "A" {
		t.Fatalf("expected winner A, got %q ok=%v", label, ok)
	}
}

func TestWinnerNormalizesConfidences(t *testing.T) {
	// Raw scores sum to 2; the top one normalizes to 0.75.
	preds := []Prediction{
		{Label: "A", Confidence: 1.5},
		{Label: "B", Confidence: 0.5},
	}
	if _, ok := Winner(preds, 0.8); ok {
		t.Fatalf("normalized 0.75 must not clear a 0.8 floor")
	}
	if label, ok := Winner(preds, 0.7); !ok || label != "A" {
		t.Fatalf("normalized 0.75 must clear a 0.7 floor, got %q ok=%v", label, ok)
	}
}

func TestWinnerDegenerateInputs(t *testing.T) {
	if _, ok := Winner(nil, 0.5); ok {
		t.Fatalf("no predictions, no winner")
	}
	if _, ok := Winner([]Prediction{{Label: "A", Confidence: 0}}, 0.5); ok {
		t.Fatalf("all-zero confidences have no winner")
	}
}

func fullHand() map[string]room.Point {
	joints := make(map[string]room.Point, len(JointOrder))
	for i, name := range JointOrder {
		joints[name] = room.Point{X: float64(10 + i*7), Y: float64(200 - i*3)}
	}
	return joints
}

func TestFeaturesVectorShape(t *testing.T) {
	features := Features(fullHand())
	want := 2*len(JointOrder) + 2*len(Connections)
	if len(features) != want {
		t.Fatalf("feature vector has %d values, want %d", len(features), want)
	}
	for i, v := range features[:2*len(JointOrder)] {
		if v < 0 || v > 1 {
			t.Fatalf("joint coordinate %d = %v outside the unit box", i, v)
		}
	}
	for i, v := range features[2*len(JointOrder):] {
		if i%2 == 1 && (v < -1 || v > 1) {
			t.Fatalf("angle feature %d = %v outside [-1, 1]", i, v)
		}
	}
}

func TestFeaturesTranslationAndScaleInvariant(t *testing.T) {
	base := fullHand()
	moved := make(map[string]room.Point, len(base))
	for name, p := range base {
		moved[name] = room.Point{X: p.X*3 + 500, Y: p.Y*3 - 40}
	}

	a := Features(base)
	b := Features(moved)
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			t.Fatalf("feature %d changed under translation/scale: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFeaturesRejectsIncompleteHand(t *testing.T) {
	joints := fullHand()
	delete(joints, "thumb_tip")
	if Features(joints) != nil {
		t.Fatalf("missing joint must yield no features")
	}

	flat := map[string]room.Point{}
	for _, name := range JointOrder {
		flat[name] = room.Point{X: 5, Y: 5}
	}
	if Features(flat) != nil {
		t.Fatalf("zero-span hand must yield no features")
	}
}

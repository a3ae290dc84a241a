package room

import (
	"math"
	"time"
)

// Point is a 2D position. Joint maps hold pixel coordinates locally and
// [0,1]-normalized coordinates on the wire.
type Point struct {
	X float64
	Y float64
}

// PoseSample is one captured hand pose. Transient: never persisted, cached
// per remote player only until it goes stale.
type PoseSample struct {
	ProducerID string
	Joints     map[string]Point
	CapturedAt time.Time
}

// poseRelay throttles outbound pose publication and converts between local
// pixel space and the normalized wire format. Outbound publication is gated
// on elapsed time since the last publish rather than a timer, so nothing is
// sent when no new pose exists. Inbound samples are denormalized with the
// receiver's own frame dimensions.
type poseRelay struct {
	frameW      float64
	frameH      float64
	minInterval time.Duration
	staleAfter  time.Duration
	lastPublish time.Time
}

func newPoseRelay(frameW, frameH float64, rate float64, staleAfter time.Duration) *poseRelay {
	interval := time.Duration(float64(time.Second) / rate)
	return &poseRelay{
		frameW:      frameW,
		frameH:      frameH,
		minInterval: interval,
		staleAfter:  staleAfter,
	}
}

// shouldPublish reports whether enough time has passed since the last
// publish, and records now as the publish time when it has.
func (pr *poseRelay) shouldPublish(now time.Time) bool {
	if !pr.lastPublish.IsZero() && now.Sub(pr.lastPublish) < pr.minInterval {
		return false
	}
	pr.lastPublish = now
	return true
}

// normalize converts pixel joints to [0,1] using the local frame size,
// rounded to 3 decimals to keep payloads small.
func (pr *poseRelay) normalize(joints map[string]Point) map[string]wirePoint {
	out := make(map[string]wirePoint, len(joints))
	for name, p := range joints {
		out[name] = wirePoint{
			X: round3(p.X / pr.frameW),
			Y: round3(p.Y / pr.frameH),
		}
	}
	return out
}

// denormalize maps normalized wire joints back into the receiver's own
// frame.
func (pr *poseRelay) denormalize(joints map[string]wirePoint) map[string]Point {
	out := make(map[string]Point, len(joints))
	for name, p := range joints {
		out[name] = Point{X: p.X * pr.frameW, Y: p.Y * pr.frameH}
	}
	return out
}

// fresh reports whether a cached sample is still renderable.
func (pr *poseRelay) fresh(s *PoseSample, now time.Time) bool {
	if s == nil {
		return false
	}
	return now.Sub(s.CapturedAt) <= pr.staleAfter
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

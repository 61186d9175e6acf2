package monitor

import "time"

// Quality is the negotiated streaming level. The protocol only carries the
// label; the numbers below are transmitting-side policy.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

func (q Quality) Valid() bool {
	switch q {
	case QualityLow, QualityMedium, QualityHigh:
		return true
	}
	return false
}

// FrameSpec is the capture policy for one quality level.
type FrameSpec struct {
	MaxWidth    int
	JPEGQuality int
	Interval    time.Duration
}

// SpecFor maps a quality level to its capture policy. Levels are
// monotonic: higher quality never shrinks the frame or slows the cadence.
func SpecFor(q Quality) FrameSpec {
	switch q {
	case QualityLow:
		return FrameSpec{MaxWidth: 320, JPEGQuality: 40, Interval: 2 * time.Second}
	case QualityHigh:
		return FrameSpec{MaxWidth: 1280, JPEGQuality: 80, Interval: 500 * time.Millisecond}
	default:
		return FrameSpec{MaxWidth: 640, JPEGQuality: 60, Interval: time.Second}
	}
}

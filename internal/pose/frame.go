package pose

import (
	"fmt"
	"math"
)

const (
	// NumLandmarks is the number of body points in one detection.
	NumLandmarks = 33
	// FrameSize is the length of a flattened landmark vector (x, y, z per point).
	FrameSize = NumLandmarks * 3
)

// Landmark indices used by the exercise rules (MediaPipe pose topology, left side).
const (
	LeftShoulder = 11
	LeftElbow    = 13
	LeftWrist    = 15
	LeftHip      = 23
	LeftKnee     = 25
	LeftAnkle    = 27
)

// Frame is one tick's flattened landmark vector: [x0, y0, z0, x1, y1, z1, ...].
// A nil Frame means nothing was detected this tick.
type Frame []float64

// Point is a single landmark in normalized image coordinates.
type Point struct {
	X, Y, Z float64
}

// Validate reports whether the frame has exactly FrameSize finite values.
func (f Frame) Validate() error {
	if len(f) != FrameSize {
		return fmt.Errorf("frame has %d values, want %d", len(f), FrameSize)
	}
	for i, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("frame value %d is not finite", i)
		}
	}
	return nil
}

// Point returns landmark i. The frame must be valid.
func (f Frame) Point(i int) Point {
	return Point{X: f[i*3], Y: f[i*3+1], Z: f[i*3+2]}
}

// Clone returns an independent copy of the frame.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	copy(out, f)
	return out
}

// Angle returns the angle ABC in degrees, measured in the image plane and
// folded into [0, 180].
func Angle(a, b, c Point) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)
	if angle > 180.0 {
		angle = 360 - angle
	}
	return angle
}

// JointAngle returns the angle at joint b between landmarks a and c.
func (f Frame) JointAngle(a, b, c int) float64 {
	return Angle(f.Point(a), f.Point(b), f.Point(c))
}

// Package posetest builds synthetic landmark frames with exact joint angles
// for use in tests.
package posetest

import (
	"math"

	"github.com/claude/repcoach/internal/pose"
)

// Builder assembles a frame point by point.
type Builder struct {
	f pose.Frame
}

// New returns a Builder with every landmark at the image centre.
func New() *Builder {
	f := make(pose.Frame, pose.FrameSize)
	for i := 0; i < pose.NumLandmarks; i++ {
		f[i*3] = 0.5
		f[i*3+1] = 0.5
	}
	return &Builder{f: f}
}

// Set places landmark i at (x, y).
func (b *Builder) Set(i int, x, y float64) *Builder {
	b.f[i*3] = x
	b.f[i*3+1] = y
	return b
}

// Bend places landmark c so that the angle a-j-c equals degrees. The
// distance j-c matches j-a (0.1 if a and j coincide).
func (b *Builder) Bend(a, j, c int, degrees float64) *Builder {
	pa, pj := b.f.Point(a), b.f.Point(j)
	r := math.Hypot(pa.X-pj.X, pa.Y-pj.Y)
	if r == 0 {
		r = 0.1
	}
	dir := math.Atan2(pa.Y-pj.Y, pa.X-pj.X) + degrees*math.Pi/180
	return b.Set(c, pj.X+r*math.Cos(dir), pj.Y+r*math.Sin(dir))
}

// Frame returns the assembled frame.
func (b *Builder) Frame() pose.Frame {
	return b.f.Clone()
}

// Curl returns a frame with the given shoulder-elbow-wrist angle.
func Curl(elbow float64) pose.Frame {
	return New().
		Set(pose.LeftShoulder, 0.5, 0.3).
		Set(pose.LeftElbow, 0.5, 0.5).
		Bend(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, elbow).
		Frame()
}

// Situp returns a frame with the given shoulder-hip-knee angle.
func Situp(torso float64) pose.Frame {
	return New().
		Set(pose.LeftHip, 0.5, 0.7).
		Set(pose.LeftShoulder, 0.25, 0.7).
		Bend(pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, torso).
		Frame()
}

// Squat returns a frame with the given hip-knee-ankle angle.
func Squat(knee float64) pose.Frame {
	return New().
		Set(pose.LeftHip, 0.5, 0.4).
		Set(pose.LeftKnee, 0.5, 0.6).
		Bend(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, knee).
		Frame()
}

// Pushup returns a horizontal-body frame with the given elbow angle,
// shoulder-hip-ankle angle and normalized shoulder height.
func Pushup(elbow, torso, shoulderY float64) pose.Frame {
	return New().
		Set(pose.LeftShoulder, 0.3, shoulderY).
		Set(pose.LeftElbow, 0.3, shoulderY+0.15).
		Bend(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, elbow).
		Set(pose.LeftHip, 0.55, shoulderY).
		Bend(pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle, torso).
		Frame()
}

// Plank returns a horizontal-body frame with the given body-line angle.
func Plank(body float64) pose.Frame {
	return Pushup(170, body, 0.5)
}

// Standing returns an upright frame: a straight body line with the shoulder
// far above the ankle.
func Standing() pose.Frame {
	return New().
		Set(pose.LeftShoulder, 0.5, 0.2).
		Set(pose.LeftHip, 0.5, 0.5).
		Set(pose.LeftAnkle, 0.5, 0.9).
		Set(pose.LeftElbow, 0.5, 0.35).
		Set(pose.LeftWrist, 0.5, 0.5).
		Set(pose.LeftKnee, 0.5, 0.7).
		Frame()
}

package pose

import "errors"

// DefaultWindow is the number of frames the sequence classifiers consume.
const DefaultWindow = 30

// ErrWindowNotFull is returned by Snapshot before the buffer has filled.
var ErrWindowNotFull = errors.New("sequence buffer not full")

// Buffer is a fixed-capacity FIFO window of landmark frames. The oldest
// frame is evicted once capacity is exceeded.
type Buffer struct {
	frames   []Frame
	capacity int
}

// NewBuffer creates a Buffer holding at most capacity frames. A non-positive
// capacity falls back to DefaultWindow.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Buffer{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest beyond capacity. A nil frame
// (no detection) is ignored. Returns true if the frame was stored.
func (b *Buffer) Push(f Frame) bool {
	if f == nil {
		return false
	}
	if len(b.frames) == b.capacity {
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:b.capacity-1]
	}
	b.frames = append(b.frames, f)
	return true
}

// Len returns the number of buffered frames.
func (b *Buffer) Len() int {
	return len(b.frames)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Full reports whether the buffer holds exactly Cap frames.
func (b *Buffer) Full() bool {
	return len(b.frames) == b.capacity
}

// Snapshot returns the buffered frames in temporal order, oldest first.
// The returned slice is a copy; the frames themselves are shared.
func (b *Buffer) Snapshot() ([]Frame, error) {
	if !b.Full() {
		return nil, ErrWindowNotFull
	}
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out, nil
}

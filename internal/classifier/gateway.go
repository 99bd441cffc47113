// Package classifier wraps the workout-type and form-quality sequence
// classifiers behind a uniform predict contract that never fails a tick.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/repcoach/internal/pose"
)

// Unknown is the label returned when a classifier produced no usable answer.
const Unknown = "unknown"

// ErrInvalidWindow is returned when the caller passes a window of the wrong
// shape. It is a configuration error, not a classifier failure.
var ErrInvalidWindow = errors.New("invalid classifier window")

// ErrUnavailable is returned by backends that cannot produce a label.
var ErrUnavailable = errors.New("classifier unavailable")

// Backend is one black-box sequence classifier.
type Backend interface {
	Predict(ctx context.Context, window []pose.Frame) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, window []pose.Frame) (string, error)

// Predict calls f.
func (f BackendFunc) Predict(ctx context.Context, window []pose.Frame) (string, error) {
	return f(ctx, window)
}

// Static returns a backend that always answers label.
func Static(label string) Backend {
	return BackendFunc(func(context.Context, []pose.Frame) (string, error) {
		return label, nil
	})
}

// Noop returns a backend that is always unavailable.
func Noop() Backend {
	return BackendFunc(func(context.Context, []pose.Frame) (string, error) {
		return "", ErrUnavailable
	})
}

// Stats counts gateway outcomes.
type Stats struct {
	WorkoutCalls    int
	WorkoutFailures int
	FormCalls       int
	FormFailures    int
}

// Gateway holds the two classifiers for one session.
type Gateway struct {
	workout Backend
	form    Backend
	window  int
	log     *slog.Logger
	stats   Stats
}

// NewGateway creates a Gateway over the workout-type and form backends.
// Either may be nil, in which case its predictions are always Unknown.
// windowSize is the exact number of frames a prediction requires. A nil log
// discards backend failures.
func NewGateway(workout, form Backend, windowSize int, log *slog.Logger) *Gateway {
	if windowSize <= 0 {
		windowSize = pose.DefaultWindow
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Gateway{workout: workout, form: form, window: windowSize, log: log}
}

// PredictWorkout returns the exercise-type label for the window, or Unknown.
func (g *Gateway) PredictWorkout(ctx context.Context, window []pose.Frame) (string, error) {
	if err := g.validate(window); err != nil {
		return Unknown, err
	}
	g.stats.WorkoutCalls++
	label, ok := g.call(ctx, "workout", g.workout, window)
	if !ok {
		g.stats.WorkoutFailures++
	}
	return label, nil
}

// PredictForm returns the form-quality label for the window, or Unknown.
func (g *Gateway) PredictForm(ctx context.Context, window []pose.Frame) (string, error) {
	if err := g.validate(window); err != nil {
		return Unknown, err
	}
	g.stats.FormCalls++
	label, ok := g.call(ctx, "form", g.form, window)
	if !ok {
		g.stats.FormFailures++
	}
	return label, nil
}

// Stats returns the outcome counters so far.
func (g *Gateway) Stats() Stats {
	return g.stats
}

func (g *Gateway) validate(window []pose.Frame) error {
	if len(window) != g.window {
		return fmt.Errorf("%w: %d frames, want %d", ErrInvalidWindow, len(window), g.window)
	}
	for i, f := range window {
		if len(f) != pose.FrameSize {
			return fmt.Errorf("%w: frame %d has %d values, want %d", ErrInvalidWindow, i, len(f), pose.FrameSize)
		}
	}
	return nil
}

// call invokes a backend, converting errors, panics and empty answers into Unknown.
func (g *Gateway) call(ctx context.Context, kind string, b Backend, window []pose.Frame) (label string, ok bool) {
	if b == nil {
		return Unknown, false
	}
	defer func() {
		if r := recover(); r != nil {
			g.log.Warn("classifier panicked", "classifier", kind, "panic", r)
			label, ok = Unknown, false
		}
	}()

	label, err := b.Predict(ctx, window)
	if err != nil {
		g.log.Debug("classifier failed", "classifier", kind, "error", err)
		return Unknown, false
	}
	if label == "" {
		return Unknown, false
	}
	return label, true
}

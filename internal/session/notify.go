package session

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/claude/repcoach/internal/exercise"
)

// EventKind identifies a progress notification.
type EventKind int

const (
	EventRep EventKind = iota + 1
	EventWorkoutChanged
	EventPlankProgress
	EventBreakPrompt
	EventBreakStarted
	EventCountdown
	EventBreakEnded
)

// Event is a human-facing progress notification.
type Event struct {
	Kind      EventKind
	Exercise  exercise.Tag
	Count     int           // EventRep: repetitions so far for Exercise
	Label     string        // EventRep: resolved form label
	Good      bool          // EventRep
	Seconds   int           // EventPlankProgress: whole seconds held
	Calories  float64       // session calories so far
	Remaining time.Duration // EventBreakStarted, EventCountdown
}

// String renders the event as a short spoken-style sentence.
func (e Event) String() string {
	switch e.Kind {
	case EventRep:
		form := "bad form"
		if e.Good {
			form = "good form"
		}
		return fmt.Sprintf("%s %d, %s, %.1f calories", e.Exercise, e.Count, form, e.Calories)
	case EventWorkoutChanged:
		return fmt.Sprintf("you are doing %s", e.Exercise)
	case EventPlankProgress:
		return fmt.Sprintf("plank %d seconds, %.1f calories", e.Seconds, e.Calories)
	case EventBreakPrompt:
		return "how long do you want to rest?"
	case EventBreakStarted:
		return fmt.Sprintf("taking a %d second break", int(e.Remaining.Round(time.Second).Seconds()))
	case EventCountdown:
		return fmt.Sprintf("%d", int(e.Remaining.Round(time.Second).Seconds()))
	case EventBreakEnded:
		return "break over, let's go"
	}
	return ""
}

// Notifier receives progress notifications on the session loop goroutine.
type Notifier interface {
	Notify(e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(e Event)

// Notify calls f.
func (f NotifierFunc) Notify(e Event) { f(e) }

// LogNotifier logs every event at Info.
type LogNotifier struct {
	Log *slog.Logger
}

// Notify logs e.
func (n LogNotifier) Notify(e Event) {
	n.Log.Info(e.String(), "event", int(e.Kind), "exercise", e.Exercise)
}

// TextNotifier writes one line per event, the way a speech sink would say it.
type TextNotifier struct {
	W io.Writer
}

// Notify writes e. Write errors are ignored; output is best effort.
func (n TextNotifier) Notify(e Event) {
	_, _ = fmt.Fprintln(n.W, e.String())
}

// Multi fans events out to several notifiers in order.
func Multi(ns ...Notifier) Notifier {
	return NotifierFunc(func(e Event) {
		for _, n := range ns {
			n.Notify(e)
		}
	})
}

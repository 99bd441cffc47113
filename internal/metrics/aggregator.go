// Package metrics accumulates a session's repetitions, plank time and
// calories into the summary handed to persistence.
package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/exercise"
)

// DateLayout is the calendar-date format summaries are keyed by.
const DateLayout = "2006-01-02"

// ExerciseTotals are the form-bucketed repetition counts for one exercise.
type ExerciseTotals struct {
	Good  int `json:"good"`
	Bad   int `json:"bad"`
	Total int `json:"total"`
}

// SessionSummary is the aggregated result of one session.
type SessionSummary struct {
	SessionID    uuid.UUID                       `json:"session_id"`
	UserID       string                          `json:"user_id"`
	Date         string                          `json:"date"`
	Mode         string                          `json:"mode"`
	StartedAt    time.Time                       `json:"started_at"`
	EndedAt      time.Time                       `json:"ended_at"`
	DurationSec  float64                         `json:"duration_sec"`
	Exercises    map[exercise.Tag]ExerciseTotals `json:"exercises"`
	PlankSeconds float64                         `json:"plank_seconds"`
	Calories     float64                         `json:"calories"`
}

// TotalReps returns the repetitions across every exercise.
func (s SessionSummary) TotalReps() int {
	n := 0
	for _, t := range s.Exercises {
		n += t.Total
	}
	return n
}

// Validate checks the fields persistence relies on.
func (s SessionSummary) Validate() error {
	if s.SessionID == uuid.Nil {
		return fmt.Errorf("summary: missing session_id")
	}
	if s.UserID == "" {
		return fmt.Errorf("summary: missing user_id")
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("summary: bad date %q: %w", s.Date, err)
	}
	for tag, t := range s.Exercises {
		if t.Good < 0 || t.Bad < 0 || t.Good+t.Bad != t.Total {
			return fmt.Errorf("summary: inconsistent counts for %s: %+v", tag, t)
		}
	}
	if s.PlankSeconds < 0 || s.Calories < 0 || s.DurationSec < 0 {
		return fmt.Errorf("summary: negative totals")
	}
	return nil
}

// Aggregator collects one session's metrics. It is owned by the session
// loop and is not safe for concurrent use.
type Aggregator struct {
	sessionID    uuid.UUID
	start        time.Time
	counts       map[exercise.Tag]exercise.Counts
	plankSeconds float64
	calories     float64
}

// NewAggregator starts a session at start with a fresh session ID.
func NewAggregator(start time.Time) *Aggregator {
	counts := make(map[exercise.Tag]exercise.Counts, len(exercise.Discrete))
	for _, tag := range exercise.Discrete {
		counts[tag] = exercise.Counts{}
	}
	return &Aggregator{sessionID: uuid.New(), start: start, counts: counts}
}

// SessionID identifies the session being aggregated.
func (a *Aggregator) SessionID() uuid.UUID {
	return a.sessionID
}

// RecordRep adds one committed repetition.
func (a *Aggregator) RecordRep(rep exercise.Rep) {
	c := a.counts[rep.Exercise]
	if rep.Good {
		c.Good++
	} else {
		c.Bad++
	}
	a.counts[rep.Exercise] = c
	a.calories += rep.Calories
}

// RecordPlank adds held plank time and the calories it burned.
func (a *Aggregator) RecordPlank(seconds, calories float64) {
	if seconds <= 0 {
		return
	}
	a.plankSeconds += seconds
	a.calories += calories
}

// Counts returns the running counts for tag.
func (a *Aggregator) Counts(tag exercise.Tag) exercise.Counts {
	return a.counts[tag]
}

// Calories returns the unrounded running calorie total.
func (a *Aggregator) Calories() float64 {
	return a.calories
}

// PlankSeconds returns the accumulated plank time.
func (a *Aggregator) PlankSeconds() float64 {
	return a.plankSeconds
}

// Summary builds the session summary for userID, ending at end. The
// summary is keyed by the calendar date the session started on.
func (a *Aggregator) Summary(userID, mode string, end time.Time) SessionSummary {
	ex := make(map[exercise.Tag]ExerciseTotals, len(a.counts))
	for tag, c := range a.counts {
		ex[tag] = ExerciseTotals{Good: c.Good, Bad: c.Bad, Total: c.Total()}
	}
	dur := end.Sub(a.start).Seconds()
	if dur < 0 {
		dur = 0
	}
	return SessionSummary{
		SessionID:    a.sessionID,
		UserID:       userID,
		Date:         a.start.Format(DateLayout),
		Mode:         mode,
		StartedAt:    a.start,
		EndedAt:      end,
		DurationSec:  math.Round(dur),
		Exercises:    ex,
		PlankSeconds: math.Round(a.plankSeconds*10) / 10,
		Calories:     RoundCalories(a.calories),
	}
}

// RoundCalories rounds to one decimal place.
func RoundCalories(c float64) float64 {
	return math.Round(c*10) / 10
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// ExerciseCounts holds form-bucketed repetition counts for one exercise.
type ExerciseCounts struct {
	Good  int `json:"good"`
	Bad   int `json:"bad"`
	Total int `json:"total"`
}

// NewExerciseCounts derives the total from the two buckets.
func NewExerciseCounts(good, bad int) ExerciseCounts {
	return ExerciseCounts{Good: good, Bad: bad, Total: good + bad}
}

// DailySummaryRow is one row of the daily_summaries table: every session a
// user finished on one calendar date, merged additively.
type DailySummaryRow struct {
	UserID       string                    `json:"user_id"`
	Date         string                    `json:"date"`
	Exercises    map[string]ExerciseCounts `json:"exercises"`
	PlankSeconds float64                   `json:"plank_seconds"`
	Calories     float64                   `json:"calories"`
	DurationSec  float64                   `json:"duration_sec"`
	Sessions     int                       `json:"sessions"`
}

// TotalReps returns the repetitions across every exercise.
func (r DailySummaryRow) TotalReps() int {
	n := 0
	for _, c := range r.Exercises {
		n += c.Total
	}
	return n
}

// SessionRow is one row of the merged_sessions table.
type SessionRow struct {
	SessionID   uuid.UUID `json:"session_id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	TotalReps   int       `json:"total_reps"`
	Calories    float64   `json:"calories"`
	DurationSec float64   `json:"duration_sec"`
	MergedAt    time.Time `json:"merged_at"`
}

// UserRow is one row of the users table.
type UserRow struct {
	Login     string    `json:"login"`
	CreatedAt time.Time `json:"created_at"`
	LastSeen  time.Time `json:"last_seen"`
}

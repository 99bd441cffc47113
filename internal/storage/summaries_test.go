package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
)

// TestFillWeek verifies that the weekly view always has seven days, oldest
// first, keeps stored rows in place and zero-fills the gaps.
func TestFillWeek(t *testing.T) {
	last := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	stored := emptySummary("alice", time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC))
	stored.Calories = 12.5
	stored.Sessions = 2

	week := fillWeek("alice", last, []models.DailySummaryRow{stored})

	if len(week) != WeekDays {
		t.Fatalf("days = %d, want %d", len(week), WeekDays)
	}
	wantDates := []string{"2026-02-24", "2026-02-25", "2026-02-26", "2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	for i, d := range wantDates {
		if week[i].Date != d {
			t.Errorf("day %d = %s, want %s", i, week[i].Date, d)
		}
	}
	if week[3].Calories != 12.5 || week[3].Sessions != 2 {
		t.Errorf("stored row not kept: %+v", week[3])
	}
	if week[0].Sessions != 0 || len(week[0].Exercises) != len(exercise.Discrete) {
		t.Errorf("gap not zero-filled: %+v", week[0])
	}
}

// TestCountsOfColumnOrder verifies the flattening used for the
// daily_summaries insert matches the column order.
func TestCountsOfColumnOrder(t *testing.T) {
	s := metrics.SessionSummary{
		SessionID: uuid.New(),
		Exercises: map[exercise.Tag]metrics.ExerciseTotals{
			exercise.Curls:   {Good: 1, Bad: 2, Total: 3},
			exercise.Squats:  {Good: 7, Bad: 8, Total: 15},
			exercise.Pushups: {Good: 3, Bad: 4, Total: 7},
		},
	}
	got := countsOf(s)
	want := []int{1, 2, 3, 4, 0, 0, 7, 8}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2026, 7, 9, 23, 59, 59, 0, time.FixedZone("CEST", 2*3600))
	got := dateOnly(in)
	if got.Format(metrics.DateLayout) != "2026-07-09" || got.Hour() != 0 || got.Location() != time.UTC {
		t.Errorf("dateOnly = %v", got)
	}
}

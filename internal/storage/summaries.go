package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/claude/repcoach/internal/exercise"
	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
)

// WeekDays is the number of days GetWeeklySummaries returns.
const WeekDays = 7

// MergeSessionSummary adds a session's totals to the user's row for the
// session date. The merge happens at most once per session ID: a repeated
// submission returns merged=false and changes nothing.
func (db *DB) MergeSessionSummary(ctx context.Context, s metrics.SessionSummary) (bool, error) {
	if err := s.Validate(); err != nil {
		return false, err
	}
	date, _ := time.Parse(metrics.DateLayout, s.Date)
	c := countsOf(s)

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning merge: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := touchUser(ctx, tx, s.UserID); err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO merged_sessions (session_id, user_id, date, mode, started_at, ended_at,
		 total_reps, calories, duration_sec)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (session_id) DO NOTHING`,
		s.SessionID, s.UserID, date, s.Mode, s.StartedAt, s.EndedAt,
		s.TotalReps(), s.Calories, s.DurationSec)
	if err != nil {
		return false, fmt.Errorf("recording session %s: %w", s.SessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO daily_summaries (user_id, date,
		 curls_good, curls_bad, pushups_good, pushups_bad,
		 situps_good, situps_bad, squats_good, squats_bad,
		 plank_seconds, calories, duration_sec, sessions)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,1)
		 ON CONFLICT (user_id, date) DO UPDATE SET
		   curls_good    = daily_summaries.curls_good    + EXCLUDED.curls_good,
		   curls_bad     = daily_summaries.curls_bad     + EXCLUDED.curls_bad,
		   pushups_good  = daily_summaries.pushups_good  + EXCLUDED.pushups_good,
		   pushups_bad   = daily_summaries.pushups_bad   + EXCLUDED.pushups_bad,
		   situps_good   = daily_summaries.situps_good   + EXCLUDED.situps_good,
		   situps_bad    = daily_summaries.situps_bad    + EXCLUDED.situps_bad,
		   squats_good   = daily_summaries.squats_good   + EXCLUDED.squats_good,
		   squats_bad    = daily_summaries.squats_bad    + EXCLUDED.squats_bad,
		   plank_seconds = daily_summaries.plank_seconds + EXCLUDED.plank_seconds,
		   calories      = ROUND((daily_summaries.calories + EXCLUDED.calories)::numeric, 1)::double precision,
		   duration_sec  = daily_summaries.duration_sec  + EXCLUDED.duration_sec,
		   sessions      = daily_summaries.sessions + 1,
		   updated_at    = NOW()`,
		s.UserID, date, c[0], c[1], c[2], c[3], c[4], c[5], c[6], c[7],
		s.PlankSeconds, s.Calories, s.DurationSec)
	if err != nil {
		return false, fmt.Errorf("merging daily summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing merge: %w", err)
	}
	return true, nil
}

// countsOf flattens the summary into column order: good/bad per exercise in
// exercise.Discrete order.
func countsOf(s metrics.SessionSummary) []int {
	out := make([]int, 0, len(exercise.Discrete)*2)
	for _, tag := range exercise.Discrete {
		t := s.Exercises[tag]
		out = append(out, t.Good, t.Bad)
	}
	return out
}

const summaryColumns = `user_id, date,
	curls_good, curls_bad, pushups_good, pushups_bad,
	situps_good, situps_bad, squats_good, squats_bad,
	plank_seconds, calories, duration_sec, sessions`

func scanSummary(row pgx.Row) (models.DailySummaryRow, error) {
	var r models.DailySummaryRow
	var date time.Time
	c := make([]int, len(exercise.Discrete)*2)
	if err := row.Scan(&r.UserID, &date, &c[0], &c[1], &c[2], &c[3], &c[4], &c[5], &c[6], &c[7],
		&r.PlankSeconds, &r.Calories, &r.DurationSec, &r.Sessions); err != nil {
		return r, err
	}
	r.Date = date.Format(metrics.DateLayout)
	r.Exercises = make(map[string]models.ExerciseCounts, len(exercise.Discrete))
	for i, tag := range exercise.Discrete {
		r.Exercises[string(tag)] = models.NewExerciseCounts(c[2*i], c[2*i+1])
	}
	return r, nil
}

// emptySummary is the row for a date with no sessions.
func emptySummary(userID string, date time.Time) models.DailySummaryRow {
	r := models.DailySummaryRow{
		UserID:    userID,
		Date:      date.Format(metrics.DateLayout),
		Exercises: make(map[string]models.ExerciseCounts, len(exercise.Discrete)),
	}
	for _, tag := range exercise.Discrete {
		r.Exercises[string(tag)] = models.ExerciseCounts{}
	}
	return r
}

// GetDailySummary returns the merged totals for one user and date. A date
// without sessions yields a zero row, not an error.
func (db *DB) GetDailySummary(ctx context.Context, userID string, date time.Time) (*models.DailySummaryRow, error) {
	r, err := scanSummary(db.Pool.QueryRow(ctx,
		`SELECT `+summaryColumns+` FROM daily_summaries WHERE user_id = $1 AND date = $2`,
		userID, dateOnly(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		r = emptySummary(userID, date)
		return &r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying daily summary: %w", err)
	}
	return &r, nil
}

// GetWeeklySummaries returns one row per day for the seven days ending on
// end, oldest first, with missing days zero-filled.
func (db *DB) GetWeeklySummaries(ctx context.Context, userID string, end time.Time) ([]models.DailySummaryRow, error) {
	last := dateOnly(end)
	first := last.AddDate(0, 0, -(WeekDays - 1))

	rows, err := db.Pool.Query(ctx,
		`SELECT `+summaryColumns+` FROM daily_summaries
		 WHERE user_id = $1 AND date >= $2 AND date <= $3
		 ORDER BY date ASC`,
		userID, first, last)
	if err != nil {
		return nil, fmt.Errorf("querying weekly summaries: %w", err)
	}
	defer rows.Close()

	var found []models.DailySummaryRow
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning daily summary: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return fillWeek(userID, last, found), nil
}

// fillWeek lays found rows onto the seven days ending at last.
func fillWeek(userID string, last time.Time, found []models.DailySummaryRow) []models.DailySummaryRow {
	byDate := make(map[string]models.DailySummaryRow, len(found))
	for _, r := range found {
		byDate[r.Date] = r
	}
	out := make([]models.DailySummaryRow, 0, WeekDays)
	for i := WeekDays - 1; i >= 0; i-- {
		day := last.AddDate(0, 0, -i)
		if r, ok := byDate[day.Format(metrics.DateLayout)]; ok {
			out = append(out, r)
			continue
		}
		out = append(out, emptySummary(userID, day))
	}
	return out
}

// dateOnly truncates t to midnight UTC of its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/repcoach/internal/metrics"
	"github.com/claude/repcoach/internal/models"
)

// QuerySessions returns the most recent merged sessions for a user.
func (db *DB) QuerySessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT session_id, user_id, date, mode, started_at, ended_at,
		 total_reps, calories, duration_sec, merged_at
		 FROM merged_sessions
		 WHERE user_id = $1
		 ORDER BY merged_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var result []models.SessionRow
	for rows.Next() {
		var s models.SessionRow
		var date time.Time
		if err := rows.Scan(&s.SessionID, &s.UserID, &date, &s.Mode, &s.StartedAt, &s.EndedAt,
			&s.TotalReps, &s.Calories, &s.DurationSec, &s.MergedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.Date = date.Format(metrics.DateLayout)
		result = append(result, s)
	}
	return result, rows.Err()
}

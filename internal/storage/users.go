package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/claude/repcoach/internal/models"
)

// touchUser creates the user on first sight and updates last_seen.
func touchUser(ctx context.Context, tx pgx.Tx, login string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (login)
		VALUES ($1)
		ON CONFLICT (login) DO UPDATE SET last_seen = NOW()
	`, login)
	if err != nil {
		return fmt.Errorf("upserting user %q: %w", login, err)
	}
	return nil
}

// ListUsers returns every user that has saved a session, most recent first.
func (db *DB) ListUsers(ctx context.Context) ([]models.UserRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT login, created_at, last_seen FROM users ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var result []models.UserRow
	for rows.Next() {
		var u models.UserRow
		if err := rows.Scan(&u.Login, &u.CreatedAt, &u.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

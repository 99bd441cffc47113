// Package spool keeps session summaries whose save failed in a local SQLite
// outbox so they can be replayed later without double counting.
package spool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/claude/repcoach/internal/metrics"
)

// Store is where spooled summaries are replayed to.
type Store interface {
	MergeSessionSummary(ctx context.Context, s metrics.SessionSummary) (bool, error)
}

// Entry is one spooled summary.
type Entry struct {
	Summary   metrics.SessionSummary
	Attempts  int
	LastError string
	QueuedAt  time.Time
}

// Spool is the SQLite outbox at dir/spool.db.
type Spool struct {
	db *sql.DB
}

// Open opens (or creates) the spool database at dir/spool.db.
func Open(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating spool dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "spool.db"))
	if err != nil {
		return nil, fmt.Errorf("opening spool db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_summaries (
		session_id  TEXT PRIMARY KEY,
		payload     TEXT NOT NULL,
		attempts    INTEGER NOT NULL DEFAULT 1,
		last_error  TEXT NOT NULL DEFAULT '',
		queued_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating spool table: %w", err)
	}

	return &Spool{db: db}, nil
}

// Enqueue stores a summary that could not be saved. Enqueuing the same
// session again keeps one entry and counts the attempt.
func (s *Spool) Enqueue(sum metrics.SessionSummary, cause error) error {
	payload, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err = s.db.Exec(
		`INSERT INTO pending_summaries (session_id, payload, last_error) VALUES (?, ?, ?)
		 ON CONFLICT (session_id) DO UPDATE SET
		   attempts = attempts + 1, last_error = excluded.last_error`,
		sum.SessionID.String(), string(payload), msg,
	)
	if err != nil {
		return fmt.Errorf("spooling session %s: %w", sum.SessionID, err)
	}
	return nil
}

// Pending returns the spooled summaries, oldest first.
func (s *Spool) Pending() ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT payload, attempts, last_error, queued_at FROM pending_summaries ORDER BY queued_at, session_id`)
	if err != nil {
		return nil, fmt.Errorf("querying spool: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&payload, &e.Attempts, &e.LastError, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scanning spool entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Summary); err != nil {
			return nil, fmt.Errorf("decoding spooled summary: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Remove drops a session from the spool.
func (s *Spool) Remove(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM pending_summaries WHERE session_id = ?`, id.String())
	return err
}

// Close closes the spool database.
func (s *Spool) Close() error {
	return s.db.Close()
}

// ReplayStats counts replay outcomes.
type ReplayStats struct {
	Merged        int
	AlreadyMerged int
	Failed        int
}

// Replay submits every spooled summary to store with its original session
// ID. Entries the store accepted, or had already merged, are removed;
// failures stay queued with their attempt count bumped.
func (s *Spool) Replay(ctx context.Context, store Store, log *slog.Logger) (ReplayStats, error) {
	var stats ReplayStats
	entries, err := s.Pending()
	if err != nil {
		return stats, err
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		id := e.Summary.SessionID
		merged, err := store.MergeSessionSummary(ctx, e.Summary)
		if err != nil {
			stats.Failed++
			log.Warn("replay failed", "session_id", id, "attempts", e.Attempts, "error", err)
			if err := s.Enqueue(e.Summary, err); err != nil {
				return stats, err
			}
			continue
		}
		if merged {
			stats.Merged++
		} else {
			stats.AlreadyMerged++
		}
		if err := s.Remove(id); err != nil {
			return stats, fmt.Errorf("removing session %s from spool: %w", id, err)
		}
		log.Info("replayed session", "session_id", id, "merged", merged)
	}
	return stats, nil
}

package mcp

import (
	"context"
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/claude/repcoach/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	GetDailySummary(ctx context.Context, userID string, date time.Time) (*models.DailySummaryRow, error)
	GetWeeklySummaries(ctx context.Context, userID string, end time.Time) ([]models.DailySummaryRow, error)
	QuerySessions(ctx context.Context, userID string, limit int) ([]models.SessionRow, error)
	ListUsers(ctx context.Context) ([]models.UserRow, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)

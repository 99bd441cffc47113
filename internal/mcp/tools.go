package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcoach/internal/exercise"
)

// defaultDay parses a date argument, defaulting to today.
func defaultDay(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return parseFlexTime(s)
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetDailySummary = mcp.NewTool("get_daily_summary",
	mcp.WithDescription("Get one user's merged totals for a calendar date: good and bad form repetitions per exercise, plank seconds, calories, training time and session count. Dates without sessions return zeros."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User login")),
	mcp.WithString("date", mcp.Description("Date (YYYY-MM-DD or ISO 8601). Defaults to today.")),
)

var toolGetWeeklySummary = mcp.NewTool("get_weekly_summary",
	mcp.WithDescription("Get seven daily summaries ending on the given date, oldest first, with missing days zero-filled."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User login")),
	mcp.WithString("end", mcp.Description("Last day of the week (YYYY-MM-DD or ISO 8601). Defaults to today.")),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List a user's most recently saved sessions with mode, timing, repetitions and calories."),
	mcp.WithString("user", mcp.Required(), mcp.Description("User login")),
	mcp.WithNumber("limit", mcp.Description("Maximum sessions to return. Defaults to 20.")),
)

var toolListUsers = mcp.NewTool("list_users",
	mcp.WithDescription("List users who have saved at least one session."),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List supported exercises with their kind (reps or hold), calorie rate and form labels."),
)

// --- Tool handlers ---

func (h *handlers) getDailySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError("user parameter is required"), nil
	}
	date, err := defaultDay(req.GetString("date", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	row, err := h.ds.GetDailySummary(ctx, user, date)
	if err != nil {
		h.log.Error("mcp get_daily_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(row)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeeklySummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError("user parameter is required"), nil
	}
	end, err := defaultDay(req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	rows, err := h.ds.GetWeeklySummaries(ctx, user, end)
	if err != nil {
		h.log.Error("mcp get_weekly_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	totals := map[string]int{}
	var calories, plank float64
	for _, r := range rows {
		for tag, c := range r.Exercises {
			totals[tag] += c.Total
		}
		calories += r.Calories
		plank += r.PlankSeconds
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"days":          rows,
		"reps":          totals,
		"plank_seconds": plank,
		"calories":      calories,
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError("user parameter is required"), nil
	}
	limit := req.GetInt("limit", 20)

	sessions, err := h.ds.QuerySessions(ctx, user, limit)
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listUsers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := h.ds.ListUsers(ctx)
	if err != nil {
		h.log.Error("mcp list_users", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(users)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listExercises(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(exercise.Catalog())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

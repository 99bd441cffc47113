package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/repcoach/internal/exercise"
)

func (h *handlers) exerciseCatalog(_ context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, exercise.Catalog())
}

func (h *handlers) users(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	users, err := h.ds.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, users)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

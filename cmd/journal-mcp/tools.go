package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hubenschmidt/voice-journal/internal/journal"
	"github.com/hubenschmidt/voice-journal/internal/store"
)

// tools exposes one user's journal as MCP tools.
type tools struct {
	store  *store.Store
	userID string
	log    *slog.Logger
}

func newServer(t *tools, version string) *server.MCPServer {
	s := server.NewMCPServer("journal", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List journal entries, newest first"),
		mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum entries to return (default %d, 0 for all)", journal.RecentLimit))),
	), t.listEntries)

	s.AddTool(mcp.NewTool("create_entry",
		mcp.WithDescription("Write a new journal entry"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Entry text")),
	), t.createEntry)

	s.AddTool(mcp.NewTool("update_entry",
		mcp.WithDescription("Replace the text of an existing entry"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New entry text")),
	), t.updateEntry)

	s.AddTool(mcp.NewTool("delete_entry",
		mcp.WithDescription("Delete a journal entry"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Entry id")),
	), t.deleteEntry)

	return s
}

func (t *tools) listEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", journal.RecentLimit)
	entries, err := t.store.ListEntries(ctx, t.userID, limit)
	if err != nil {
		t.log.Error("list entries", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	total, err := t.store.CountEntries(ctx, t.userID)
	if err != nil {
		t.log.Error("count entries", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"entries": entries, "total": total})
}

func (t *tools) createEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := requireContent(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := t.store.CreateEntry(ctx, t.userID, content)
	if err != nil {
		t.log.Error("create entry", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e)
}

func (t *tools) updateEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := requireContent(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := t.store.UpdateEntry(ctx, t.userID, id, content)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.log.Error("update entry", "error", err)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(e)
}

func (t *tools) deleteEntry(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err = t.store.DeleteEntry(ctx, t.userID, id); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.log.Error("delete entry", "error", err)
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("deleted " + id), nil
}

// requireContent reads the content argument, trimmed and non-blank.
func requireContent(req mcp.CallToolRequest) (string, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return "", err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", errors.New("content must not be blank")
	}
	return content, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

package kbtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aiknowsys/aiknowsys/internal/query"
)

// PlansTool handles the kb_query_plans MCP tool.
type PlansTool struct {
	dir string
}

// NewPlansTool creates a PlansTool with a default target directory.
func NewPlansTool(dir string) *PlansTool {
	return &PlansTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_query_plans.
func (t *PlansTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_query_plans",
		mcp.WithDescription(
			"Query implementation plans from the knowledge base. Filters combine with AND semantics.",
		),
		mcp.WithString("status",
			mcp.Description("Filter by status: ACTIVE, PAUSED, PLANNED, COMPLETE, CANCELLED"),
		),
		mcp.WithString("author",
			mcp.Description("Filter by author (exact match)"),
		),
		mcp.WithString("topic",
			mcp.Description("Filter by topic (substring or fuzzy match)"),
		),
		mcp.WithString("date_after",
			mcp.Description("Only plans created after this date (YYYY-MM-DD)"),
		),
		mcp.WithString("date_before",
			mcp.Description("Only plans created before this date (YYYY-MM-DD)"),
		),
		mcp.WithBoolean("include_content",
			mcp.Description("Include full markdown content (default: metadata only)"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_query_plans tool call.
func (t *PlansTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := query.Plans(targetDir(req, t.dir), query.PlanQuery{
		Status:         req.GetString("status", ""),
		Author:         req.GetString("author", ""),
		Topic:          req.GetString("topic", ""),
		DateAfter:      req.GetString("date_after", ""),
		DateBefore:     req.GetString("date_before", ""),
		IncludeContent: boolArg(req, "include_content", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query plans failed: %v", err)), nil
	}

	if result.Count == 0 {
		return mcp.NewToolResultText("No plans match the given filters."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d plans:\n\n", result.Count)
	for _, p := range result.Plans {
		fmt.Fprintf(&b, "- **%s** [%s] %s", p.ID, p.Status, p.Title)
		if p.Author != "" {
			fmt.Fprintf(&b, " (by %s)", p.Author)
		}
		if len(p.Topics) > 0 {
			fmt.Fprintf(&b, " | topics: %s", strings.Join(p.Topics, ", "))
		}
		b.WriteString("\n")
		if p.Content != "" {
			fmt.Fprintf(&b, "  %s\n", truncate(p.Content, 300))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SessionsTool handles the kb_query_sessions MCP tool.
type SessionsTool struct {
	dir string
}

// NewSessionsTool creates a SessionsTool with a default target directory.
func NewSessionsTool(dir string) *SessionsTool {
	return &SessionsTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_query_sessions.
func (t *SessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_query_sessions",
		mcp.WithDescription(
			"Query work sessions from the knowledge base, newest first.",
		),
		mcp.WithString("topic",
			mcp.Description("Filter by topic (substring or fuzzy match)"),
		),
		mcp.WithString("plan",
			mcp.Description("Filter by referenced plan id"),
		),
		mcp.WithString("date_after",
			mcp.Description("Only sessions after this date (YYYY-MM-DD); wins over last_n_days"),
		),
		mcp.WithString("date_before",
			mcp.Description("Only sessions before this date (YYYY-MM-DD)"),
		),
		mcp.WithNumber("last_n_days",
			mcp.Description("Convenience window: only sessions from the last N days"),
		),
		mcp.WithBoolean("include_content",
			mcp.Description("Include full markdown content (default: metadata only)"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_query_sessions tool call.
func (t *SessionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := query.Sessions(targetDir(req, t.dir), query.SessionQuery{
		Topic:          req.GetString("topic", ""),
		Plan:           req.GetString("plan", ""),
		DateAfter:      req.GetString("date_after", ""),
		DateBefore:     req.GetString("date_before", ""),
		LastNDays:      intArg(req, "last_n_days", 0),
		IncludeContent: boolArg(req, "include_content", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query sessions failed: %v", err)), nil
	}

	if result.Count == 0 {
		return mcp.NewToolResultText("No sessions match the given filters."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d sessions:\n\n", result.Count)
	for _, s := range result.Sessions {
		fmt.Fprintf(&b, "- **%s**", s.Date)
		if s.Topic != "" {
			fmt.Fprintf(&b, " — %s", s.Topic)
		}
		if s.Plan != "" {
			fmt.Fprintf(&b, " (plan: %s)", s.Plan)
		}
		if len(s.Phases) > 0 {
			fmt.Fprintf(&b, " | phases: %s", strings.Join(s.Phases, ", "))
		}
		b.WriteString("\n")
		if s.Content != "" {
			fmt.Fprintf(&b, "  %s\n", truncate(s.Content, 300))
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

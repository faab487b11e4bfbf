package kbtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aiknowsys/aiknowsys/internal/query"
)

// SearchTool handles the kb_search MCP tool.
type SearchTool struct {
	dir string
}

// NewSearchTool creates a SearchTool with a default target directory.
func NewSearchTool(dir string) *SearchTool {
	return &SearchTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_search",
		mcp.WithDescription(
			"Search the full markdown content of plans, sessions, and learned patterns "+
				"for a literal text match. Returns a context snippet per matching file.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to search for (case-insensitive literal match)"),
		),
		mcp.WithString("scope",
			mcp.Description("Restrict to: all (default), plans, sessions, learned"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := req.GetString("query", "")
	if q == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	result, err := query.Search(targetDir(req, t.dir), query.SearchQuery{
		Query: q,
		Scope: req.GetString("scope", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	if result.Count == 0 {
		return mcp.NewToolResultText("No matches found."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches:\n\n", result.Count)
	for i, r := range result.Results {
		fmt.Fprintf(&b, "[%d] %s (%s, line %d, relevance %.1f)\n    %s\n\n",
			i+1, r.File, r.Type, r.Line, r.Relevance, truncate(r.Context, 300))
	}
	return mcp.NewToolResultText(b.String()), nil
}

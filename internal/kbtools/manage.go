package kbtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aiknowsys/aiknowsys/internal/query"
)

// RebuildTool handles the kb_rebuild_index MCP tool.
type RebuildTool struct {
	dir string
}

// NewRebuildTool creates a RebuildTool with a default target directory.
func NewRebuildTool(dir string) *RebuildTool {
	return &RebuildTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_rebuild_index.
func (t *RebuildTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_rebuild_index",
		mcp.WithDescription(
			"Rebuild the knowledge index by rescanning the markdown source files. "+
				"The markdown files are the source of truth; this refreshes the derived cache.",
		),
		mcp.WithString("backend",
			mcp.Description("Force a backend: json or sqlite (default: auto-detect)"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_rebuild_index tool call.
func (t *RebuildTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := query.Rebuild(targetDir(req, t.dir), req.GetString("backend", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rebuild failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Index rebuilt: %d plans, %d sessions, %d learned patterns.\n",
		result.Plans, result.Sessions, result.Learned)
	if len(result.Errors) > 0 {
		fmt.Fprintf(&b, "\nSkipped %d files:\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// StatsTool handles the kb_stats MCP tool.
type StatsTool struct {
	dir string
}

// NewStatsTool creates a StatsTool with a default target directory.
func NewStatsTool(dir string) *StatsTool {
	return &StatsTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_stats.
func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_stats",
		mcp.WithDescription(
			"Show knowledge base statistics — stored plans, sessions, learned patterns, and backing file size.",
		),
		mcp.WithString("backend",
			mcp.Description("Force a backend: json or sqlite (default: auto-detect)"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_stats tool call.
func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := query.Stats(targetDir(req, t.dir), req.GetString("backend", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}

	var b strings.Builder
	b.WriteString("## Knowledge Base Statistics\n\n")
	fmt.Fprintf(&b, "- **Plans**: %d\n", stats.Plans)
	fmt.Fprintf(&b, "- **Sessions**: %d\n", stats.Sessions)
	fmt.Fprintf(&b, "- **Learned patterns**: %d\n", stats.Learned)
	if stats.Projects > 0 {
		fmt.Fprintf(&b, "- **Projects**: %d\n", stats.Projects)
	}
	fmt.Fprintf(&b, "- **Store**: %s (%d bytes)\n", stats.Path, stats.FileSize)
	return mcp.NewToolResultText(b.String()), nil
}

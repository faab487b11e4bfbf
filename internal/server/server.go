// Package server wires the MCP tool surface over the knowledge base.
//
// This is the composition root: it creates the tool handlers and
// registers them. No business logic lives here: tools call the query
// facade, which owns validation and adapter lifecycle, so the server
// holds no open storage handles between calls.
package server

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/aiknowsys/aiknowsys/internal/kbtools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with all knowledge-base tools registered.
// targetDir is the default directory tools operate on; callers may
// override it per call. Empty targetDir means the working directory.
func New(targetDir string) (*server.MCPServer, error) {
	if targetDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		targetDir = wd
	}

	s := server.NewMCPServer(
		"aiknowsys",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions()),
	)

	plansTool := kbtools.NewPlansTool(targetDir)
	s.AddTool(plansTool.Definition(), plansTool.Handle)

	sessionsTool := kbtools.NewSessionsTool(targetDir)
	s.AddTool(sessionsTool.Definition(), sessionsTool.Handle)

	searchTool := kbtools.NewSearchTool(targetDir)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	rebuildTool := kbtools.NewRebuildTool(targetDir)
	s.AddTool(rebuildTool.Definition(), rebuildTool.Handle)

	statsTool := kbtools.NewStatsTool(targetDir)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	detectTool := kbtools.NewDetectPatternsTool(targetDir)
	s.AddTool(detectTool.Definition(), detectTool.Handle)

	skillTool := kbtools.NewCreateSkillTool(targetDir)
	s.AddTool(skillTool.Definition(), skillTool.Handle)

	return s, nil
}

func instructions() string {
	return `aiknowsys keeps a queryable knowledge base of implementation plans,
work sessions, and learned patterns, backed by human-editable markdown files.

The markdown files are the source of truth. If query results look stale or
the index is corrupt, run kb_rebuild_index — every backend is a derived
cache that a rescan fully reproduces.

Typical flow:
1. kb_query_plans / kb_query_sessions to see what exists.
2. kb_search to find specific content across all files.
3. kb_detect_patterns to surface recurring lessons from recent sessions.
4. kb_create_skill to document a recurring pattern permanently.`
}

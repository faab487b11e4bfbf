// Package kbtools provides MCP tool handlers over the knowledge base.
//
// Each tool follows the same pattern:
// - A struct holding the default target directory
// - Definition() returns the mcp.Tool schema
// - Handle() processes the request and returns a result
//
// Tools never touch storage directly: everything goes through the
// query facade and the patterns package, which own validation and
// adapter lifecycle.
package kbtools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// targetDir resolves the per-call directory override, falling back to
// the tool's default.
func targetDir(req mcp.CallToolRequest, def string) string {
	if dir := req.GetString("dir", ""); dir != "" {
		return dir
	}
	return def
}

// truncate shortens a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package kbtools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aiknowsys/aiknowsys/internal/patterns"
)

// DetectPatternsTool handles the kb_detect_patterns MCP tool.
type DetectPatternsTool struct {
	dir string
}

// NewDetectPatternsTool creates a DetectPatternsTool with a default
// target directory.
func NewDetectPatternsTool(dir string) *DetectPatternsTool {
	return &DetectPatternsTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_detect_patterns.
func (t *DetectPatternsTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_detect_patterns",
		mcp.WithDescription(
			"Detect recurring lessons across recent session files by clustering "+
				"near-duplicate 'Key Learning:' observations. Patterns that recur often "+
				"enough are candidates for documentation as learned skills.",
		),
		mcp.WithNumber("window_days",
			mcp.Description("Trailing window of session history to examine (default: 30)"),
		),
		mcp.WithNumber("threshold",
			mcp.Description("Minimum recurrence before a pattern surfaces (default: 3)"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_detect_patterns tool call.
func (t *DetectPatternsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	found, err := patterns.DetectPatterns(targetDir(req, t.dir), patterns.DetectOptions{
		WindowDays:   intArg(req, "window_days", 0),
		MinFrequency: intArg(req, "threshold", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pattern detection failed: %v", err)), nil
	}

	if len(found) == 0 {
		return mcp.NewToolResultText("No recurring patterns detected in the window."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Detected %d recurring patterns:\n\n", len(found))
	for i, p := range found {
		fmt.Fprintf(&b, "[%d] ×%d (last seen %s)\n    %s\n", i+1, p.Frequency, p.LastSeen, p.Text)
		if len(p.Keywords) > 0 {
			fmt.Fprintf(&b, "    keywords: %s\n", strings.Join(p.Keywords, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Use kb_create_skill to document a pattern as a learned skill.")
	return mcp.NewToolResultText(b.String()), nil
}

// CreateSkillTool handles the kb_create_skill MCP tool.
type CreateSkillTool struct {
	dir string
}

// NewCreateSkillTool creates a CreateSkillTool with a default target
// directory.
func NewCreateSkillTool(dir string) *CreateSkillTool {
	return &CreateSkillTool{dir: dir}
}

// Definition returns the MCP tool definition for kb_create_skill.
func (t *CreateSkillTool) Definition() mcp.Tool {
	return mcp.NewTool("kb_create_skill",
		mcp.WithDescription(
			"Materialize a detected pattern into a learned-pattern markdown file under learned/. "+
				"Idempotent: an existing skill with the same slug is never overwritten.",
		),
		mcp.WithString("error",
			mcp.Required(),
			mcp.Description("The recurring observation text to document"),
		),
		mcp.WithString("resolution",
			mcp.Description("How to resolve or avoid the issue"),
		),
		mcp.WithNumber("frequency",
			mcp.Description("How often the pattern was observed"),
		),
		mcp.WithString("dir",
			mcp.Description("Target directory (default: the server's working directory)"),
		),
	)
}

// Handle processes the kb_create_skill tool call.
func (t *CreateSkillTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	errText := req.GetString("error", "")
	if errText == "" {
		return mcp.NewToolResultError("'error' is required"), nil
	}
	dir := targetDir(req, t.dir)

	result, err := patterns.CreateLearnedSkill(dir, patterns.SkillPattern{
		Error:      errText,
		Frequency:  intArg(req, "frequency", 1),
		Keywords:   patterns.Keywords(errText),
		Resolution: req.GetString("resolution", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create skill failed: %v", err)), nil
	}

	// Best-effort ledger update so later detection runs skip this
	// pattern. A ledger failure doesn't undo the created file.
	tracker := patterns.NewTracker(dir)
	if _, err := tracker.MarkDocumented(errText); err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Skill file at %s, but the pattern ledger could not be updated: %v", result.Path, err)), nil
	}

	if result.Existed {
		return mcp.NewToolResultText(fmt.Sprintf("Skill already documented at %s (left untouched).", result.Path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created skill at %s.", result.Path)), nil
}

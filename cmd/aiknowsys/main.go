// aiknowsys: markdown-backed knowledge base server
//
// Maintains a queryable knowledge base of implementation plans, work
// sessions, and learned patterns, exposed to AI coding tools over MCP
// (stdio transport).
//
// Usage:
//
//	aiknowsys serve [dir]   # Start the MCP server for dir (default: cwd)
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	kbserver "github.com/aiknowsys/aiknowsys/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		dir := ""
		if len(os.Args) > 2 {
			dir = os.Args[2]
		}
		if err := run(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("aiknowsys v%s\n", kbserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run(dir string) error {
	s, err := kbserver.New(dir)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return server.ServeStdio(s)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `aiknowsys v%s — markdown-backed knowledge base (MCP server)

Usage:
  aiknowsys serve [dir]   Start the MCP server (stdio transport)

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "aiknowsys": {
        "command": "aiknowsys",
        "args": ["serve"]
      }
    }
  }

Database location resolves in order: AIKNOWSYS_DB_PATH, the
.aiknowsys.config databasePath field, then ~/.aiknowsys/knowledge.db.
Without a database, a flat context-index.json cache is used instead.
`, kbserver.Version)
}

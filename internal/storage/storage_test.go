package storage_test

import (
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates a file under dir, creating parent directories.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// newKnowledgeDir builds a markdown source tree with two plans, two
// sessions, and one learned pattern.
func newKnowledgeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, dir, "PLAN_auth-refactor.md", `---
title: Auth refactor
status: ACTIVE
author: kim
created: 2026-01-10
topics: [auth, security]
---

Move token handling into middleware. The chalk of the old approach
stays until the cutover.
`)
	writeFile(t, dir, "plans/billing-v2.md", `---
title: Billing v2
status: COMPLETE
author: ana
created: 2026-02-01
topics: [billing]
---

Second billing iteration.
`)
	writeFile(t, dir, "sessions/2026-02-05-session.md", `---
topic: indexing work
plan: auth-refactor
topics: [search, indexing]
---

Key Learning: chalk v5 is ESM-only, pin v4 in CommonJS projects.
`)
	writeFile(t, dir, "sessions/2026-02-06-session.md", `---
topic: billing cleanup
plan: billing-v2
topics: [billing]
---

Wrapped up invoice rounding.
`)
	writeFile(t, dir, "learned/pin-chalk-version.md", `---
title: Pin the chalk version
category: learned
keywords: [chalk, esm]
---

chalk v5 is ESM-only. Pin chalk@4 until the project moves to ESM.
`)
	return dir
}

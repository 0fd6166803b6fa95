package agents

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleProfile = `---
name: researcher
description: Read-only exploration of the codebase
tools:
  - read_files
  - search_files
max_iterations: 5
---

You explore the repository and report findings. Never modify files.
`

func TestParseProfileMarkdown(t *testing.T) {
	p, err := ParseProfileMarkdown(sampleProfile)
	if err != nil {
		t.Fatalf("ParseProfileMarkdown() error: %v", err)
	}
	if p.Name != "researcher" {
		t.Errorf("Name = %q", p.Name)
	}
	if len(p.Tools) != 2 || p.Tools[1] != "search_files" {
		t.Errorf("Tools = %v", p.Tools)
	}
	if p.GetMaxIterations() != 5 {
		t.Errorf("GetMaxIterations() = %d", p.GetMaxIterations())
	}
	if p.SystemPrompt == "" || p.SystemPrompt[:11] != "You explore" {
		t.Errorf("SystemPrompt = %q", p.SystemPrompt)
	}
}

func TestParseProfileMarkdown_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"no frontmatter", "just text", ErrNoFrontmatter},
		{"unterminated frontmatter", "---\nname: x", ErrNoFrontmatter},
		{"missing name", "---\ndescription: d\n---\nbody", ErrMissingName},
		{"missing body", "---\nname: x\n---\n", ErrMissingSystemPrompt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfileMarkdown(tt.content)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProfile_AllowsTool(t *testing.T) {
	restricted := &Profile{Name: "r", Tools: []string{"read_files"}}
	if !restricted.AllowsTool("read_files", true) {
		t.Error("listed tool should be allowed")
	}
	if restricted.AllowsTool("write_file", false) {
		t.Error("unlisted tool should be denied")
	}

	open := &Profile{Name: "o"}
	if !open.AllowsTool("search_files", true) {
		t.Error("unrestricted profile should allow read-only tools")
	}
	if open.AllowsTool("run_command", false) {
		t.Error("unrestricted profile should deny write/execute tools")
	}
}

func TestRegistry_Refresh(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "researcher.md"), []byte(sampleProfile), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no frontmatter here"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistryWithPaths([]string{dir, filepath.Join(dir, "absent")})
	if err := reg.Refresh(); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if got := reg.List(); len(got) != 1 || got[0].Name != "researcher" {
		t.Fatalf("List() = %+v, want exactly the researcher profile", got)
	}

	if _, err := reg.Get("researcher"); err != nil {
		t.Errorf("Get(researcher) error: %v", err)
	}
	if _, err := reg.Get("absent"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Get(absent) error = %v, want ErrProfileNotFound", err)
	}
}

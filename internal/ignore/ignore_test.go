package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestMatcher(t *testing.T, ignoreContent string) (*Matcher, string) {
	t.Helper()
	dir := t.TempDir()
	if ignoreContent != "" {
		if err := os.WriteFile(filepath.Join(dir, ".zcodeignore"), []byte(ignoreContent), 0644); err != nil {
			t.Fatal(err)
		}
	}
	m, err := NewMatcher(dir)
	if err != nil {
		t.Fatalf("NewMatcher() error: %v", err)
	}
	return m, dir
}

func TestDefaultPatterns(t *testing.T) {
	m, _ := newTestMatcher(t, "")

	tests := []struct {
		path string
		want bool
	}{
		{"src/main.go", false},
		{".git/config", true},
		{"node_modules/pkg/index.js", true},
		{"deploy.pem", true},
		{"id_rsa", true},
		{"credentials.json", true},
		{"README.md", false},
	}
	for _, tt := range tests {
		if got := m.ShouldIgnore(tt.path); got != tt.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestCustomPatternsAndNegation(t *testing.T) {
	m, _ := newTestMatcher(t, "*.log\n!keep.log\nbuild/\n")

	tests := []struct {
		path string
		want bool
	}{
		{"debug.log", true},
		{"keep.log", false},
		{"src/app.go", false},
	}
	for _, tt := range tests {
		if got := m.ShouldIgnore(tt.path); got != tt.want {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestShouldIgnoreAbsolutePaths(t *testing.T) {
	m, dir := newTestMatcher(t, "secret.txt\n")

	if !m.ShouldIgnore(filepath.Join(dir, "secret.txt")) {
		t.Error("absolute path inside root should be relativized and matched")
	}
	if m.ShouldIgnore("/somewhere/else/secret.txt") {
		t.Error("absolute path outside root should not be ignored here")
	}
}

func TestValidatePath(t *testing.T) {
	m, dir := newTestMatcher(t, "blocked.txt\n")

	if err := m.ValidatePath("ok.txt"); err != nil {
		t.Errorf("ValidatePath(ok.txt) = %v", err)
	}

	err := m.ValidatePath("blocked.txt")
	if !IsIgnoredPathError(err) {
		t.Errorf("ValidatePath(blocked.txt) = %v, want IgnoredPathError", err)
	}

	err = m.ValidatePath(filepath.Join(dir, "..", "..", "etc", "passwd"))
	if !IsPathResolutionError(err) {
		t.Errorf("ValidatePath(escape) = %v, want PathResolutionError", err)
	}
}

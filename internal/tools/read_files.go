package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/ignore"
)

// ReadFilesTool reads one or more files in a single call. Each path may
// carry a trailing line-range suffix, e.g. "src/main.go:10-40".
type ReadFilesTool struct {
	BaseTool
}

// NewReadFilesTool creates a new multi-file read tool
func NewReadFilesTool() *ReadFilesTool {
	return &ReadFilesTool{
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:        "read_files",
				Description: "Read the contents of one or more files. Paths may include a line range suffix like 'path/to/file.go:10-40' to read only those lines.",
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"paths": {
							Type:        "array",
							Description: "The paths of the files to read, optionally with ':start-end' line ranges",
							Items:       &JSONSchema{Type: "string"},
						},
					},
					Required: []string{"paths"},
				},
				SupportedScopes: []Scope{ScopeAgent, ScopeAgentWithDiffBlocks},
				TitleTemplate:   "Reading {paths}",
			},
		},
	}
}

// Execute reads every requested file and concatenates the results, one
// header per file so the model can tell them apart.
func (t *ReadFilesTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	paths := stringSlice(args["paths"])
	if len(paths) == 0 {
		return ToolResult{Success: false, Error: "paths must contain at least one entry"}
	}

	base, _ := core.WorkingDirFromContext(ctx)
	matcher := matcherFor(base)

	var sb strings.Builder
	var failed []string
	for i, p := range paths {
		path, start, end := splitLineRange(p)
		resolved := resolvePath(base, path)
		if matcher != nil && matcher.ShouldIgnore(resolved) {
			failed = append(failed, fmt.Sprintf("%s: blocked by .zcodeignore", path))
			continue
		}

		content, err := os.ReadFile(resolved)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		text := string(content)
		label := path
		if start > 0 {
			text, err = sliceLines(text, start, end)
			if err != nil {
				failed = append(failed, fmt.Sprintf("%s: %v", path, err))
				continue
			}
			label = fmt.Sprintf("%s (lines %d-%d)", path, start, end)
		}

		if i > 0 || len(paths) > 1 {
			sb.WriteString(fmt.Sprintf(">>>>> FILE: %s\n", label))
		}
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteString("\n")
		}
	}

	if len(failed) == len(paths) {
		return ToolResult{Success: false, Error: strings.Join(failed, "; ")}
	}
	if len(failed) > 0 {
		sb.WriteString("\nFailed to read:\n")
		for _, f := range failed {
			sb.WriteString("- " + f + "\n")
		}
	}
	return ToolResult{Success: true, Output: sb.String()}
}

// splitLineRange separates a trailing ":start-end" suffix from a path.
// A suffix only counts if both ends parse as positive integers, so
// Windows-style "C:\x" or odd filenames pass through untouched.
func splitLineRange(p string) (path string, start, end int) {
	idx := strings.LastIndex(p, ":")
	if idx <= 0 {
		return p, 0, 0
	}
	suffix := p[idx+1:]
	dash := strings.Index(suffix, "-")
	if dash <= 0 {
		return p, 0, 0
	}
	s, err1 := strconv.Atoi(suffix[:dash])
	e, err2 := strconv.Atoi(suffix[dash+1:])
	if err1 != nil || err2 != nil || s < 1 || e < s {
		return p, 0, 0
	}
	return p[:idx], s, e
}

// sliceLines returns lines start..end (1-based, inclusive) of text.
func sliceLines(text string, start, end int) (string, error) {
	lines := strings.Split(text, "\n")
	if start > len(lines) {
		return "", fmt.Errorf("start line %d is past end of file (%d lines)", start, len(lines))
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// resolvePath anchors a relative path at the session's working directory.
func resolvePath(base, path string) string {
	if base == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// matcherFor returns the .zcodeignore matcher rooted at base, or nil if
// one can't be built (no base directory, unreadable ignore files).
func matcherFor(base string) *ignore.Matcher {
	if base == "" {
		return nil
	}
	m, err := ignore.NewMatcher(base)
	if err != nil {
		return nil
	}
	return m
}

// stringSlice coerces a JSON-decoded array value into []string.
func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vals == "" {
			return nil
		}
		return []string{vals}
	default:
		return nil
	}
}

package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/ignore"
)

// GlobFilesTool finds files matching a glob pattern.
type GlobFilesTool struct {
	BaseTool
}

// NewGlobFilesTool creates a new glob file search tool
func NewGlobFilesTool() *GlobFilesTool {
	return &GlobFilesTool{
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:        "glob_files",
				Description: "Find files matching a glob pattern. Supports patterns like '**/*.go', 'src/**/*.ts', '*.json'. Returns matching file paths.",
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"pattern": {
							Type:        "string",
							Description: "The glob pattern to match files (e.g., '**/*.go', 'src/*.ts')",
						},
						"path": {
							Type:        "string",
							Description: "The directory to search in (defaults to the working directory)",
						},
					},
					Required: []string{"pattern"},
				},
				SupportedScopes: []Scope{ScopeAgent, ScopeAgentWithDiffBlocks},
				TitleTemplate:   "Globbing {pattern}",
			},
		},
	}
}

// Execute searches for files matching the pattern
func (t *GlobFilesTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	pattern, _ := args["pattern"].(string)
	basePath, _ := args["path"].(string)

	base, _ := core.WorkingDirFromContext(ctx)
	if basePath == "" {
		basePath = "."
	}

	absPath, err := filepath.Abs(resolvePath(base, basePath))
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("invalid path: %v", err)}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("path not found: %v", err)}
	}
	if !info.IsDir() {
		return ToolResult{Success: false, Error: "path is not a directory"}
	}

	matcher := matcherFor(base)

	var matches []string
	if strings.Contains(pattern, "**") {
		matches, err = globRecursive(absPath, pattern, matcher)
	} else {
		fullPattern := filepath.Join(absPath, pattern)
		matches, err = filepath.Glob(fullPattern)
	}

	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("glob error: %v", err)}
	}

	sort.Strings(matches)

	relMatches := make([]string, 0, len(matches))
	for _, match := range matches {
		if matcher != nil && matcher.ShouldIgnore(match) {
			continue
		}
		rel, err := filepath.Rel(absPath, match)
		if err != nil {
			rel = match
		}
		relMatches = append(relMatches, rel)
	}

	if len(relMatches) == 0 {
		return ToolResult{
			Success: true,
			Output:  "No files found matching pattern: " + pattern,
		}
	}

	maxMatches := 100
	output := strings.Join(relMatches, "\n")
	if len(relMatches) > maxMatches {
		output = strings.Join(relMatches[:maxMatches], "\n")
		output += fmt.Sprintf("\n... and %d more files", len(relMatches)-maxMatches)
	}

	return ToolResult{
		Success: true,
		Output:  fmt.Sprintf("Found %d files:\n%s", len(relMatches), output),
	}
}

// globRecursive handles ** patterns for recursive matching
func globRecursive(basePath, pattern string, matcher *ignore.Matcher) ([]string, error) {
	var matches []string

	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], string(filepath.Separator))
	suffix := ""
	if len(parts) > 1 {
		suffix = strings.TrimPrefix(parts[1], string(filepath.Separator))
	}

	startPath := basePath
	if prefix != "" {
		startPath = filepath.Join(basePath, prefix)
	}

	// Permission errors and broken symlinks are silently skipped to give
	// best-effort results rather than failing on inaccessible files.
	err := filepath.Walk(startPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}

		if matcher != nil && matcher.ShouldIgnore(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && info.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}

		if suffix == "" {
			matches = append(matches, path)
			return nil
		}

		matched, err := filepath.Match(suffix, info.Name())
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(startPath, path)
		matchedPath, _ := filepath.Match(suffix, relPath)

		if matched || matchedPath {
			matches = append(matches, path)
		}

		return nil
	})

	return matches, err
}

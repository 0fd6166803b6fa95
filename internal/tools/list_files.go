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

// ListFilesTool lists directory contents, recursively up to max_depth.
type ListFilesTool struct {
	BaseTool
}

// NewListFilesTool creates a new directory listing tool
func NewListFilesTool() *ListFilesTool {
	return &ListFilesTool{
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:        "list_files",
				Description: "List files and directories under one or more paths. Directories are suffixed with '/'. Entries matched by .zcodeignore are omitted.",
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"paths": {
							Type:        "array",
							Description: "Directories to list (defaults to the working directory)",
							Items:       &JSONSchema{Type: "string"},
						},
						"max_depth": {
							Type:        "integer",
							Description: "How many directory levels to descend (default 1)",
						},
					},
				},
				SupportedScopes: []Scope{ScopeAgent, ScopeAgentWithDiffBlocks},
				TitleTemplate:   "Listing {paths}",
			},
		},
	}
}

// Execute lists each requested directory.
func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	paths := stringSlice(args["paths"])
	if len(paths) == 0 {
		paths = []string{"."}
	}
	maxDepth := 1
	if d, ok := args["max_depth"].(float64); ok && int(d) > 0 {
		maxDepth = int(d)
	}

	base, _ := core.WorkingDirFromContext(ctx)
	matcher := matcherFor(base)

	var sb strings.Builder
	for _, p := range paths {
		root := resolvePath(base, p)
		info, err := os.Stat(root)
		if err != nil {
			return ToolResult{Success: false, Error: fmt.Sprintf("cannot list %s: %v", p, err)}
		}
		if !info.IsDir() {
			sb.WriteString(p + "\n")
			continue
		}
		if len(paths) > 1 {
			sb.WriteString(p + ":\n")
		}
		if err := listDir(&sb, root, root, matcher, 0, maxDepth); err != nil {
			return ToolResult{Success: false, Error: fmt.Sprintf("cannot list %s: %v", p, err)}
		}
	}

	out := sb.String()
	if out == "" {
		out = "(empty)"
	}
	return ToolResult{Success: true, Output: out}
}

func listDir(sb *strings.Builder, root, dir string, matcher *ignore.Matcher, depth, maxDepth int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if matcher != nil && matcher.ShouldIgnore(full) {
			continue
		}
		rel, err := filepath.Rel(root, full)
		if err != nil {
			rel = e.Name()
		}
		if e.IsDir() {
			sb.WriteString(rel + "/\n")
			if depth+1 < maxDepth {
				if err := listDir(sb, root, full, matcher, depth+1, maxDepth); err != nil {
					return err
				}
			}
		} else {
			sb.WriteString(rel + "\n")
		}
	}
	return nil
}

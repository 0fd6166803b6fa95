package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ConfirmFunc is a function that asks for user confirmation
type ConfirmFunc func(prompt string) bool

// WriteFileTool writes content to a file
type WriteFileTool struct {
	BaseTool
	ConfirmFn ConfirmFunc
}

// NewWriteFileTool creates a new write file tool
func NewWriteFileTool(confirmFn ConfirmFunc) *WriteFileTool {
	return &WriteFileTool{
		ConfirmFn: confirmFn,
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:        "write_file",
				Description: "Write content to a file at the specified path",
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"path": {
							Type:        "string",
							Description: "The path to the file to write",
						},
						"content": {
							Type:        "string",
							Description: "The content to write to the file",
						},
					},
					Required: []string{"path", "content"},
				},
				SupportedScopes: []Scope{ScopeAgent, ScopeAgentWithDiffBlocks},
				TitleTemplate:   "Writing {path}",
			},
		},
	}
}

// Execute writes content to the file
func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	prompt := fmt.Sprintf("Write to file: %s (%d bytes)", path, len(content))
	if !confirmOrMediate(ctx, t.ConfirmFn, t.Def.Name, prompt, args) {
		return ToolResult{Success: false, Error: "denied by user"}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}

	err := os.WriteFile(path, []byte(content), 0644)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}

	return ToolResult{
		Success: true,
		Output:  fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path),
	}
}

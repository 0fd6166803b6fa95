package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/ignore"
)

// SearchFilesTool searches file contents for a regex pattern.
type SearchFilesTool struct {
	BaseTool
}

// SearchMatch represents a single match result
type SearchMatch struct {
	File    string
	Line    int
	Content string
}

// NewSearchFilesTool creates a new content search tool
func NewSearchFilesTool() *SearchFilesTool {
	return &SearchFilesTool{
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:        "search_files",
				Description: "Search for text or regex patterns in files. Returns matching lines with file paths and line numbers.",
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"regex": {
							Type:        "string",
							Description: "The text or regex pattern to search for",
						},
						"path": {
							Type:        "string",
							Description: "File or directory to search in (defaults to the working directory)",
						},
						"glob": {
							Type:        "string",
							Description: "Optional glob pattern to filter files (e.g., '*.go', '*.ts')",
						},
						"case_insensitive": {
							Type:        "boolean",
							Description: "If true, search is case-insensitive",
						},
					},
					Required: []string{"regex"},
				},
				SupportedScopes: []Scope{ScopeAgent, ScopeAgentWithDiffBlocks},
				TitleTemplate:   "Searching for {regex}",
			},
		},
	}
}

// Execute searches for the pattern in files
func (t *SearchFilesTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	pattern, _ := args["regex"].(string)
	searchPath, _ := args["path"].(string)
	globPattern, _ := args["glob"].(string)
	caseInsensitive, _ := args["case_insensitive"].(bool)

	base, _ := core.WorkingDirFromContext(ctx)
	if searchPath == "" {
		searchPath = "."
	}

	regexPattern := pattern
	if caseInsensitive {
		regexPattern = "(?i)" + pattern
	}

	// Invalid regex syntax falls back to a literal search rather than
	// failing the call; the model usually meant the text verbatim.
	var usedLiteralFallback bool
	re, err := regexp.Compile(regexPattern)
	if err != nil {
		usedLiteralFallback = true
		escaped := regexp.QuoteMeta(pattern)
		if caseInsensitive {
			escaped = "(?i)" + escaped
		}
		re = regexp.MustCompile(escaped)
	}

	absPath, err := filepath.Abs(resolvePath(base, searchPath))
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("invalid path: %v", err)}
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("path not found: %v", err)}
	}

	matcher := matcherFor(base)

	var matches []SearchMatch
	var warning string

	if info.IsDir() {
		matches, err = searchDirectory(absPath, re, globPattern, matcher)
		if err != nil && strings.Contains(err.Error(), "skipped") {
			warning = err.Error()
			err = nil
		}
	} else {
		matches, err = searchFile(absPath, re)
	}

	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("search error: %v", err)}
	}

	if len(matches) == 0 {
		msg := "No matches found for pattern: " + pattern
		if usedLiteralFallback {
			msg += " (note: pattern was treated as literal text due to invalid regex syntax)"
		}
		return ToolResult{Success: true, Output: msg}
	}

	var sb strings.Builder
	if usedLiteralFallback {
		sb.WriteString("Note: pattern was treated as literal text due to invalid regex syntax\n\n")
	}
	sb.WriteString(fmt.Sprintf("Found %d matches:\n\n", len(matches)))

	maxMatches := 50
	for i, match := range matches {
		if i >= maxMatches {
			sb.WriteString(fmt.Sprintf("\n... and %d more matches", len(matches)-maxMatches))
			break
		}
		content := match.Content
		if len(content) > 200 {
			content = content[:200] + "..."
		}
		sb.WriteString(fmt.Sprintf("%s:%d: %s\n", match.File, match.Line, content))
	}

	if warning != "" {
		sb.WriteString(fmt.Sprintf("\nNote: %s", warning))
	}

	return ToolResult{Success: true, Output: sb.String()}
}

// searchDirectory walks dirPath applying the .zcodeignore matcher instead
// of a hard-coded directory blacklist.
func searchDirectory(dirPath string, re *regexp.Regexp, globPattern string, matcher *ignore.Matcher) ([]SearchMatch, error) {
	var all []SearchMatch
	skippedCount := 0

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			skippedCount++
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

		if strings.HasPrefix(info.Name(), ".") || isBinaryFile(info.Name()) {
			return nil
		}

		if globPattern != "" {
			matched, _ := filepath.Match(globPattern, info.Name())
			if !matched {
				return nil
			}
		}

		matches, err := searchFile(path, re)
		if err != nil {
			skippedCount++
			return nil
		}

		for i := range matches {
			rel, err := filepath.Rel(dirPath, matches[i].File)
			if err == nil {
				matches[i].File = rel
			}
		}

		all = append(all, matches...)
		return nil
	})

	if skippedCount > 0 && err == nil {
		err = fmt.Errorf("skipped %d inaccessible files", skippedCount)
	}

	return all, err
}

// searchFile searches a single file.
// Uses a 1MB buffer to handle files with long lines (e.g., minified JS).
func searchFile(filePath string, re *regexp.Regexp) ([]SearchMatch, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var matches []SearchMatch
	scanner := bufio.NewScanner(file)
	const maxScanTokenSize = 1024 * 1024 // 1MB
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if re.MatchString(line) {
			matches = append(matches, SearchMatch{
				File:    filePath,
				Line:    lineNum,
				Content: strings.TrimSpace(line),
			})
		}
	}

	if err := scanner.Err(); err != nil {
		return matches, fmt.Errorf("scan incomplete: %w", err)
	}

	return matches, nil
}

// isBinaryFile checks if a file is likely binary based on extension
func isBinaryFile(name string) bool {
	binaryExts := []string{
		".exe", ".dll", ".so", ".dylib", ".bin",
		".png", ".jpg", ".jpeg", ".gif", ".ico", ".webp",
		".pdf", ".doc", ".docx", ".xls", ".xlsx",
		".zip", ".tar", ".gz", ".rar", ".7z",
		".mp3", ".mp4", ".avi", ".mov", ".wav",
		".ttf", ".otf", ".woff", ".woff2",
		".pyc", ".class", ".o", ".a",
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, binExt := range binaryExts {
		if ext == binExt {
			return true
		}
	}
	return false
}

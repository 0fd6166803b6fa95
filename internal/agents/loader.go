package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zcode-dev/agentcore/internal/zlog"
)

// Loader discovers and parses sub-agent profiles from markdown files.
type Loader struct {
	paths      []string
	globalPath string
}

// NewLoader creates a loader over the given search paths.
func NewLoader(paths []string) *Loader {
	globalPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalPath = filepath.Join(home, ".config", "zcode", "agents")
	}
	return &Loader{paths: paths, globalPath: globalPath}
}

// LoadAll discovers and loads every profile from every configured path.
// Individual unparseable files are logged and skipped rather than
// failing the whole discovery.
func (l *Loader) LoadAll() ([]*Profile, error) {
	var profiles []*Profile

	for _, basePath := range l.paths {
		isGlobal := l.globalPath != "" && basePath == l.globalPath

		info, err := os.Stat(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing %s: %w", basePath, err)
		}
		if !info.IsDir() {
			continue
		}

		entries, err := os.ReadDir(basePath)
		if err != nil {
			return nil, fmt.Errorf("error reading directory %s: %w", basePath, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}

			filePath := filepath.Join(basePath, entry.Name())
			profile, err := l.LoadFromFile(filePath)
			if err != nil {
				zlog.With("agents").Warn("failed to load sub-agent profile", "path", filePath, "error", err)
				continue
			}

			profile.IsGlobal = isGlobal
			profiles = append(profiles, profile)
		}
	}

	return profiles, nil
}

// LoadFromFile parses a single markdown file with YAML frontmatter.
func (l *Loader) LoadFromFile(filePath string) (*Profile, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	profile, err := ParseProfileMarkdown(string(content))
	if err != nil {
		return nil, err
	}

	profile.FilePath = filePath
	return profile, nil
}

// ParseProfileMarkdown parses markdown content with YAML frontmatter
// into a Profile.
func ParseProfileMarkdown(content string) (*Profile, error) {
	frontmatter, body, err := parseFrontmatter(content)
	if err != nil {
		return nil, err
	}

	var profile Profile
	if err := yaml.Unmarshal([]byte(frontmatter), &profile); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}

	profile.SystemPrompt = strings.TrimSpace(body)

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	return &profile, nil
}

// parseFrontmatter extracts YAML frontmatter and body from markdown
// content. Frontmatter must be enclosed in --- markers at the start of
// the file.
func parseFrontmatter(content string) (frontmatter, body string, err error) {
	content = strings.TrimSpace(content)

	if !strings.HasPrefix(content, "---") {
		return "", "", ErrNoFrontmatter
	}

	rest := content[3:]
	rest = strings.TrimLeft(rest, "\r\n")

	endIdx := strings.Index(rest, "\n---")
	if endIdx == -1 {
		endIdx = strings.Index(rest, "\r\n---")
		if endIdx == -1 {
			return "", "", ErrNoFrontmatter
		}
	}

	frontmatter = strings.TrimSpace(rest[:endIdx])
	body = strings.TrimSpace(rest[endIdx+4:])

	return frontmatter, body, nil
}

// DefaultPaths returns the default profile search paths: project-local
// .zcode/agents first, then the global config directory.
func DefaultPaths() []string {
	paths := []string{}

	cwd, err := os.Getwd()
	if err == nil {
		paths = append(paths, filepath.Join(cwd, ".zcode", "agents"))
	}

	home, err := os.UserHomeDir()
	if err == nil {
		paths = append(paths, filepath.Join(home, ".config", "zcode", "agents"))
	}

	return paths
}

// Package agents loads sub-agent profiles: named markdown files under
// .zcode/agents/ that give a spawned sub-agent its system prompt, its
// allowed tool subset, and an iteration cap. A profile is how a user
// customizes what the spawn_agent tool delegates to without touching
// the parent session's configuration.
package agents

// Profile is a sub-agent profile loaded from a markdown file with YAML
// frontmatter. The markdown body is the sub-agent's system prompt.
type Profile struct {
	// Name is the unique identifier for the profile
	Name string `yaml:"name"`

	// Description is a brief explanation of what the sub-agent does
	Description string `yaml:"description"`

	// SystemPrompt is the markdown content after the frontmatter
	SystemPrompt string `yaml:"-"`

	// Tools is the list of tool names this sub-agent may use.
	// Empty means the read-only default set.
	Tools []string `yaml:"tools"`

	// MaxIterations caps the sub-agent's model calls per task.
	// Default is 10 if not specified.
	MaxIterations int `yaml:"max_iterations"`

	// FilePath is the source file this profile was loaded from
	FilePath string `yaml:"-"`

	// IsGlobal indicates the profile came from the global config dir
	// rather than the project-local .zcode/agents/
	IsGlobal bool `yaml:"-"`
}

// Validate checks if the profile is usable.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return ErrMissingName
	}
	if p.SystemPrompt == "" {
		return ErrMissingSystemPrompt
	}
	return nil
}

// HasRestrictedTools returns true if the profile limits the tool set.
func (p *Profile) HasRestrictedTools() bool {
	return len(p.Tools) > 0
}

// GetMaxIterations returns the iteration cap, defaulting to 10.
func (p *Profile) GetMaxIterations() int {
	if p.MaxIterations <= 0 {
		return 10
	}
	return p.MaxIterations
}

// AllowsTool reports whether the profile permits the named tool. An
// unrestricted profile allows only read/search tools, so a delegated
// task can never write or execute without an explicit grant.
func (p *Profile) AllowsTool(name string, isReadOnly bool) bool {
	if !p.HasRestrictedTools() {
		return isReadOnly
	}
	for _, t := range p.Tools {
		if t == name {
			return true
		}
	}
	return false
}

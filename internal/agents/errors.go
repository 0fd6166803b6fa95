package agents

import "errors"

var (
	// ErrMissingName is returned when a profile has no name
	ErrMissingName = errors.New("sub-agent profile missing required 'name' field")

	// ErrMissingSystemPrompt is returned when a profile has no system prompt
	ErrMissingSystemPrompt = errors.New("sub-agent profile missing system prompt (markdown body)")

	// ErrProfileNotFound is returned when a profile is not in the registry
	ErrProfileNotFound = errors.New("sub-agent profile not found")

	// ErrInvalidFrontmatter is returned when YAML frontmatter parsing fails
	ErrInvalidFrontmatter = errors.New("invalid YAML frontmatter")

	// ErrNoFrontmatter is returned when a markdown file has no frontmatter
	ErrNoFrontmatter = errors.New("markdown file missing YAML frontmatter")
)

// Package content translates between the engine's internal ContentBlock
// model and the ACP/MCP content-block shapes, so a protocol adapter can
// hand prompts and resources across the boundary without either side
// knowing the other's types. Only the structural translation lives here;
// the protocol adapters themselves do not.
package content

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
)

// BlockKind discriminates the ACP-side content block a peer sends us.
type BlockKind string

const (
	BlockText     BlockKind = "text"
	BlockImage    BlockKind = "image"
	BlockResource BlockKind = "resource"
)

// ResourceKind discriminates an embedded-resource block's payload.
type ResourceKind string

const (
	ResourceTextual ResourceKind = "text"
	ResourceBlob    ResourceKind = "blob"
)

// Block is an ACP/MCP content block as received from a peer, prior to
// translation into the engine's core.ContentBlock model.
type Block struct {
	Kind BlockKind

	// BlockText
	Text string

	// BlockImage
	MediaType string
	Data      string

	// BlockResource
	ResourceKind ResourceKind
	URI          string
	ResourceText string // ResourceTextual
}

// ToContentBlocks translates a sequence of ACP/MCP blocks into the
// engine's core.ContentBlock model. basePath, if non-empty, is used to
// shorten embedded-resource file paths; an empty basePath leaves paths
// absolute.
func ToContentBlocks(blocks []Block, basePath string) []core.ContentBlock {
	out := make([]core.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case BlockText:
			out = append(out, core.TextBlock(b.Text))
		case BlockImage:
			out = append(out, core.ContentBlock{Kind: core.BlockImage, MediaType: b.MediaType, Data: b.Data})
		case BlockResource:
			if cb, ok := resourceToTextBlock(b, basePath); ok {
				out = append(out, cb)
			}
		}
	}
	return out
}

// resourceToTextBlock renders an embedded resource as a synthesized text
// block: textual resources become a fenced code block annotated with
// their path (and
// line range, if the URI carried a #L10:20 fragment); blob resources
// become a one-line placeholder noting the binary content was omitted.
func resourceToTextBlock(b Block, basePath string) (core.ContentBlock, bool) {
	path, lineRange := parseFileURI(b.URI)
	displayPath := relativize(path, basePath)
	if lineRange != "" {
		displayPath = fmt.Sprintf("%s:%s", displayPath, lineRange)
	}

	switch b.ResourceKind {
	case ResourceTextual:
		text := fmt.Sprintf("Content from `%s`:\n```\n%s\n```", displayPath, b.ResourceText)
		return core.TextBlock(text), true
	case ResourceBlob:
		text := fmt.Sprintf("[Binary content from `%s` - base64 encoded, not displayed]", displayPath)
		return core.TextBlock(text), true
	default:
		return core.ContentBlock{}, false
	}
}

// parseFileURI splits a "file:///path/to/file.ext#L10:20" URI into its
// path and a "10-20" line-range suffix. A URI with no fragment returns
// an empty line range.
func parseFileURI(uri string) (path string, lineRange string) {
	path = strings.TrimPrefix(uri, "file://")
	p, frag, hasFrag := strings.Cut(path, "#")
	if !hasFrag {
		return path, ""
	}
	rest, ok := strings.CutPrefix(frag, "L")
	if !ok {
		return p, frag
	}
	return p, strings.ReplaceAll(rest, ":", "-")
}

// relativize strips basePath from path when path is inside it. Paths
// outside basePath, or when basePath is empty, are returned unchanged.
func relativize(path, basePath string) string {
	if basePath == "" {
		return path
	}
	rel, err := filepath.Rel(basePath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

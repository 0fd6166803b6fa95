// Package dialect implements the three tool-invocation syntaxes a model
// may be configured to speak: XML-tagged, caret-delimited, and
// native-JSON. Each is a self-contained state machine behind the Parser
// interface; callers never need to know which one they're driving.
//
// No inheritance — three independent structs satisfy one interface,
// composed by whichever session configuration picked a dialect.
package dialect

import "github.com/zcode-dev/agentcore/internal/core"

// TruncatedResponse is every ContentBlock up to and including the block
// that contains the first tool invocation; it is what gets persisted as
// the assistant message, so subsequent turns see only the executed call.
// The caret parser is the exception: after a read-only tool it keeps the
// text and the further read-only tool blocks that follow.
type TruncatedResponse struct {
	Blocks []core.ContentBlock
}

// Text concatenates every text block (thinking blocks are skipped).
func (t TruncatedResponse) Text() string {
	var out string
	for _, b := range t.Blocks {
		if b.Kind == core.BlockText {
			out += b.Text
		}
	}
	return out
}

// Parser decodes a chunked model response into DisplayFragments in real
// time, and afterward yields the tool requests and truncated response.
// Implementations MUST be chunk-invariant: feeding the same
// logical input split across any chunk boundaries yields the same
// fragment sequence.
type Parser interface {
	// FeedChunk consumes one StreamingChunk and returns the
	// DisplayFragments it produced, if any.
	FeedChunk(chunk core.StreamingChunk) []core.DisplayFragment
	// Finish signals the stream ended (StreamingComplete or an error) and
	// returns the parsed tool requests (at most one is ever meant to be
	// executed) plus the truncated response to persist. err is
	// core.ErrToolLimitReached when the model produced non-whitespace
	// content after its allotted tool call; the truncated response is
	// still valid in that case.
	Finish() ([]core.ToolRequest, TruncatedResponse, error)
}

// New constructs the parser for the given dialect, numbered for the given
// request id (used to generate tool ids tool-{requestID}-{n}).
func New(d core.Dialect, requestID int) Parser {
	switch d {
	case core.DialectCaret:
		return NewCaretParser(requestID)
	case core.DialectJSON:
		return NewJSONParser(requestID)
	default:
		return NewXMLParser(requestID)
	}
}

// blockBuilder accumulates ContentBlocks for a TruncatedResponse, merging
// consecutive writes of the same kind into one block the way a model's
// own text/thinking runs naturally coalesce.
type blockBuilder struct {
	blocks []core.ContentBlock
}

func (b *blockBuilder) appendText(s string) {
	if s == "" {
		return
	}
	if n := len(b.blocks); n > 0 && b.blocks[n-1].Kind == core.BlockText {
		b.blocks[n-1].Text += s
		return
	}
	b.blocks = append(b.blocks, core.TextBlock(s))
}

func (b *blockBuilder) appendThinking(s string) {
	if s == "" {
		return
	}
	if n := len(b.blocks); n > 0 && b.blocks[n-1].Kind == core.BlockThinking {
		b.blocks[n-1].Text += s
		return
	}
	b.blocks = append(b.blocks, core.ContentBlock{Kind: core.BlockThinking, Text: s})
}

func (b *blockBuilder) appendToolUse(id, name string, input map[string]any) {
	b.blocks = append(b.blocks, core.ToolUseBlock(id, name, input))
}

func isNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

package dialect

import (
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
)

var xmlFixedTags = []string{"<thinking>", "</thinking>"}
var xmlDynamicPrefixes = []string{"<tool:", "</tool:", "<param:", "</param:"}

type xmlTagKind int

const (
	xmlNone xmlTagKind = iota
	xmlThinkingOpen
	xmlThinkingClose
	xmlToolOpen
	xmlToolClose
	xmlParamOpen
	xmlParamClose
)

// matchXMLTag reports whether s begins with a complete recognized tag,
// returning its kind, captured name (for tool/param tags) and byte length.
func matchXMLTag(s string) (kind xmlTagKind, name string, length int, ok bool) {
	if strings.HasPrefix(s, "<thinking>") {
		return xmlThinkingOpen, "", len("<thinking>"), true
	}
	if strings.HasPrefix(s, "</thinking>") {
		return xmlThinkingClose, "", len("</thinking>"), true
	}
	for _, p := range xmlDynamicPrefixes {
		if !strings.HasPrefix(s, p) {
			continue
		}
		rest := s[len(p):]
		gt := strings.IndexByte(rest, '>')
		if gt == -1 {
			return xmlNone, "", 0, false
		}
		nm := rest[:gt]
		if nm == "" || !validXMLName(nm) {
			continue
		}
		switch p {
		case "<tool:":
			return xmlToolOpen, nm, len(p) + gt + 1, true
		case "</tool:":
			return xmlToolClose, nm, len(p) + gt + 1, true
		case "<param:":
			return xmlParamOpen, nm, len(p) + gt + 1, true
		case "</param:":
			return xmlParamClose, nm, len(p) + gt + 1, true
		}
	}
	return xmlNone, "", 0, false
}

func validXMLName(s string) bool {
	for _, r := range s {
		if !isNameChar(r) {
			return false
		}
	}
	return true
}

// isPotentialXMLTagStart reports whether s (which starts with '<') could
// still grow into a recognized tag given more input, and so must be
// buffered rather than emitted as text.
func isPotentialXMLTagStart(s string) bool {
	for _, t := range xmlFixedTags {
		if strings.HasPrefix(t, s) {
			return true
		}
	}
	for _, p := range xmlDynamicPrefixes {
		if strings.HasPrefix(p, s) {
			return true
		}
		if strings.HasPrefix(s, p) {
			rest := s[len(p):]
			if strings.Contains(rest, ">") {
				continue // terminator present: matchXMLTag already decided
			}
			ok := true
			for _, r := range rest {
				if !isNameChar(r) {
					ok = false
					break
				}
			}
			if ok {
				return true
			}
		}
	}
	return false
}

// XMLParser decodes the <thinking>/<tool:NAME>/<param:NAME> dialect.
type XMLParser struct {
	requestID int
	pending   string
	blocks    blockBuilder
	requests  []core.ToolRequest

	inThinking bool

	// held is a trailing newline withheld from the last text run: if the
	// next token is a recognized tag the newline is dropped so block
	// boundaries render cleanly, otherwise it rejoins the following text.
	held string

	toolOpen    bool
	toolDone    bool
	toolLimitHit bool
	toolName    string
	toolID      string
	toolCounter int
	toolInput   map[string]any

	paramOpen bool
	paramName string
	paramBuf  strings.Builder
}

func NewXMLParser(requestID int) *XMLParser {
	return &XMLParser{requestID: requestID}
}

func (p *XMLParser) FeedChunk(chunk core.StreamingChunk) []core.DisplayFragment {
	if chunk.Kind == core.ChunkThinking {
		// natively-typed reasoning content: no tag scanning needed; a
		// withheld newline before this block boundary is trimmed the
		// same as before a <thinking> tag
		p.held = ""
		if chunk.Text == "" {
			return nil
		}
		p.blocks.appendThinking(chunk.Text)
		return []core.DisplayFragment{core.ThinkingText(chunk.Text)}
	}
	if chunk.Kind != core.ChunkText {
		return nil
	}
	p.pending += chunk.Text
	var out []core.DisplayFragment
	for {
		idx := strings.IndexByte(p.pending, '<')
		if idx == -1 {
			out = append(out, p.emitText(p.pending)...)
			p.pending = ""
			break
		}
		if idx > 0 {
			out = append(out, p.emitText(p.pending[:idx])...)
			p.pending = p.pending[idx:]
		}
		kind, name, length, ok := matchXMLTag(p.pending)
		if !ok {
			if isPotentialXMLTagStart(p.pending) {
				break // buffer, wait for more input
			}
			// a lone '<' that is not part of any recognized tag
			out = append(out, p.emitText(p.pending[:1])...)
			p.pending = p.pending[1:]
			continue
		}
		frags := p.handleTag(kind, name)
		out = append(out, frags...)
		p.pending = p.pending[length:]
	}
	return out
}

// emitText routes a run of plain text according to current state.
func (p *XMLParser) emitText(s string) []core.DisplayFragment {
	if s == "" {
		return nil
	}
	if p.toolDone {
		if isBlank(s) {
			return nil
		}
		p.toolLimitHit = true
		return nil
	}
	if p.toolOpen {
		if p.paramOpen {
			p.paramBuf.WriteString(s)
			return []core.DisplayFragment{core.ToolParameterFrag(p.toolID, p.paramName, s)}
		}
		return nil // stray whitespace between params inside a tool block
	}

	// Withhold a single trailing newline: dropped if a tag follows,
	// rejoined here if more text does.
	s = p.held + s
	p.held = ""
	trimmed := trimTrailingNewline(s)
	if trimmed != s {
		p.held = s[len(trimmed):]
		s = trimmed
	}
	if s == "" {
		return nil
	}

	if p.inThinking {
		p.blocks.appendThinking(s)
		return []core.DisplayFragment{core.ThinkingText(s)}
	}
	p.blocks.appendText(s)
	return []core.DisplayFragment{core.PlainText(s)}
}

// trimTrailingNewline strips a single trailing "\n" or "\r\n" so block
// boundaries render cleanly (applied uniformly to all tag kinds, since
// thinking/tool/param boundaries all read the same way here).
func trimTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "\n") {
		return s[:len(s)-1]
	}
	return s
}

func (p *XMLParser) handleTag(kind xmlTagKind, name string) []core.DisplayFragment {
	if kind != xmlParamOpen || p.toolOpen {
		// a recognized tag boundary: the withheld trailing newline before
		// it is trimmed (a param tag outside a tool is verbatim text, not
		// a boundary, so it keeps the newline)
		p.held = ""
	}
	switch kind {
	case xmlThinkingOpen:
		p.inThinking = true
		return nil
	case xmlThinkingClose:
		p.inThinking = false
		return nil
	case xmlToolOpen:
		if p.toolDone {
			p.toolLimitHit = true
			return nil
		}
		if p.toolOpen {
			return nil // nested tool open: ignore
		}
		p.toolCounter++
		p.toolOpen = true
		p.toolName = name
		p.toolID = core.NextToolID(p.requestID, p.toolCounter)
		p.toolInput = map[string]any{}
		return []core.DisplayFragment{core.ToolNameFrag(name, p.toolID)}
	case xmlToolClose:
		if !p.toolOpen {
			return nil
		}
		var out []core.DisplayFragment
		if p.paramOpen {
			p.toolInput[p.paramName] = p.paramBuf.String()
			p.paramOpen = false
		}
		out = append(out, core.ToolEndFrag(p.toolID))
		p.blocks.appendToolUse(p.toolID, p.toolName, copyInput(p.toolInput))
		p.requests = append(p.requests, core.ToolRequest{ID: p.toolID, Name: p.toolName, Input: copyInput(p.toolInput)})
		p.toolOpen = false
		p.toolDone = true
		return out
	case xmlParamOpen:
		if !p.toolOpen {
			return p.emitText("<param:" + name + ">")
		}
		if p.paramOpen {
			p.toolInput[p.paramName] = p.paramBuf.String()
		}
		p.paramOpen = true
		p.paramName = name
		p.paramBuf.Reset()
		return nil
	case xmlParamClose:
		if !p.toolOpen || !p.paramOpen {
			return nil
		}
		p.toolInput[p.paramName] = p.paramBuf.String()
		p.paramOpen = false
		return nil
	}
	return nil
}

func (p *XMLParser) Finish() ([]core.ToolRequest, TruncatedResponse, error) {
	// A newline still withheld at stream end was real trailing text.
	if p.held != "" {
		if p.inThinking {
			p.blocks.appendThinking(p.held)
		} else {
			p.blocks.appendText(p.held)
		}
		p.held = ""
	}
	// Finalize a tool left open when the stream ended without a closing
	// tag, so a truncated stream still yields a well-formed request.
	if p.toolOpen {
		if p.paramOpen {
			p.toolInput[p.paramName] = p.paramBuf.String()
			p.paramOpen = false
		}
		p.blocks.appendToolUse(p.toolID, p.toolName, copyInput(p.toolInput))
		p.requests = append(p.requests, core.ToolRequest{ID: p.toolID, Name: p.toolName, Input: copyInput(p.toolInput)})
		p.toolOpen = false
		p.toolDone = true
	}
	reqs := p.requests
	if len(reqs) > 1 {
		reqs = reqs[:1]
	}
	var err error
	if p.toolLimitHit {
		err = core.ErrToolLimitReached
	}
	return reqs, TruncatedResponse{Blocks: p.blocks.blocks}, err
}

func copyInput(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

package dialect

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
)

// readOnlyCaretTools is the hard-coded classification behind the caret
// dialect's tool filter: completing one of these permits further text
// and tool calls; any other tool name terminates the response once it
// closes.
var readOnlyCaretTools = map[string]bool{
	"read_files":     true,
	"list_files":     true,
	"search_files":   true,
	"glob_files":     true,
	"web_search":     true,
	"web_fetch":      true,
	"perplexity_ask": true,
}

var (
	caretOpenRe      = regexp.MustCompile(`^\^\^\^([a-zA-Z0-9_]+)$`)
	caretCloseRe     = `^^^`
	caretArrayOpenRe = regexp.MustCompile(`^([a-zA-Z0-9_]+): \[$`)
	caretArrayClose  = `]`
	caretMultiOpenRe = regexp.MustCompile(`^([a-zA-Z0-9_]+) ---$`)
	caretScalarRe    = regexp.MustCompile(`^([a-zA-Z0-9_]+): (.*)$`)
)

type caretState int

const (
	caretOutside caretState = iota
	caretInside
	caretArray
	caretMulti
)

// CaretParser decodes the ^^^NAME ... ^^^ dialect.
type CaretParser struct {
	requestID int
	lineBuf   strings.Builder

	state caretState
	blocks blockBuilder
	requests []core.ToolRequest

	toolCounter int
	toolName    string
	toolID      string
	toolInput   map[string]any

	paramName string
	arrayElems []string
	multiLines []string

	toolDone     bool // a non-read-only tool has completed: response is over
	toolLimitHit bool
}

func NewCaretParser(requestID int) *CaretParser {
	return &CaretParser{requestID: requestID}
}

func (p *CaretParser) FeedChunk(chunk core.StreamingChunk) []core.DisplayFragment {
	if chunk.Kind == core.ChunkThinking {
		if chunk.Text == "" {
			return nil
		}
		p.blocks.appendThinking(chunk.Text)
		return []core.DisplayFragment{core.ThinkingText(chunk.Text)}
	}
	if chunk.Kind != core.ChunkText {
		return nil
	}
	var out []core.DisplayFragment
	text := chunk.Text
	for {
		idx := strings.IndexByte(text, '\n')
		if idx == -1 {
			p.lineBuf.WriteString(text)
			break
		}
		p.lineBuf.WriteString(text[:idx])
		line := p.lineBuf.String()
		p.lineBuf.Reset()
		out = append(out, p.processLine(line, true)...)
		text = text[idx+1:]
	}
	return out
}

func (p *CaretParser) Finish() ([]core.ToolRequest, TruncatedResponse, error) {
	var final []core.DisplayFragment
	if p.lineBuf.Len() > 0 {
		final = p.processLine(p.lineBuf.String(), false)
		p.lineBuf.Reset()
	}
	_ = final // fragments from Finish are not surfaced; callers drop the stream once it ends
	if p.state != caretOutside {
		// Tool was left open when the stream ended: finalize tolerantly.
		p.finalizeOpenTool()
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

func (p *CaretParser) finalizeOpenTool() {
	if p.toolInput == nil {
		return
	}
	switch p.state {
	case caretMulti:
		p.toolInput[p.paramName] = strings.Join(p.multiLines, "\n")
	case caretArray:
		p.toolInput[p.paramName] = arrayLiteral(p.arrayElems)
	}
	p.blocks.appendToolUse(p.toolID, p.toolName, copyInput(p.toolInput))
	p.requests = append(p.requests, core.ToolRequest{ID: p.toolID, Name: p.toolName, Input: copyInput(p.toolInput)})
	p.toolInput = nil
	p.state = caretOutside
}

func arrayLiteral(elems []string) string {
	b, _ := json.Marshal(elems)
	return string(b)
}

func (p *CaretParser) processLine(line string, hadNewline bool) []core.DisplayFragment {
	switch p.state {
	case caretOutside:
		return p.processOutside(line, hadNewline)
	case caretInside:
		return p.processInside(line)
	case caretArray:
		return p.processArray(line)
	case caretMulti:
		return p.processMulti(line)
	}
	return nil
}

func (p *CaretParser) processOutside(line string, hadNewline bool) []core.DisplayFragment {
	if m := caretOpenRe.FindStringSubmatch(line); m != nil {
		if p.toolDone {
			p.toolLimitHit = true
			return nil
		}
		p.toolCounter++
		p.toolName = m[1]
		p.toolID = core.NextToolID(p.requestID, p.toolCounter)
		p.toolInput = map[string]any{}
		p.state = caretInside
		return []core.DisplayFragment{core.ToolNameFrag(p.toolName, p.toolID)}
	}
	if p.toolDone {
		if isBlank(line) {
			return nil
		}
		p.toolLimitHit = true
		return nil
	}
	text := line
	if hadNewline {
		text += "\n"
	}
	if text == "" {
		return nil
	}
	p.blocks.appendText(text)
	return []core.DisplayFragment{core.PlainText(text)}
}

func (p *CaretParser) processInside(line string) []core.DisplayFragment {
	if line == caretCloseRe {
		out := []core.DisplayFragment{core.ToolEndFrag(p.toolID)}
		p.blocks.appendToolUse(p.toolID, p.toolName, copyInput(p.toolInput))
		p.requests = append(p.requests, core.ToolRequest{ID: p.toolID, Name: p.toolName, Input: copyInput(p.toolInput)})
		if !readOnlyCaretTools[p.toolName] {
			p.toolDone = true
		}
		p.toolInput = nil
		p.state = caretOutside
		return out
	}
	if m := caretArrayOpenRe.FindStringSubmatch(line); m != nil {
		p.paramName = m[1]
		p.arrayElems = nil
		p.state = caretArray
		return nil
	}
	if m := caretMultiOpenRe.FindStringSubmatch(line); m != nil {
		p.paramName = m[1]
		p.multiLines = nil
		p.state = caretMulti
		return nil
	}
	if m := caretScalarRe.FindStringSubmatch(line); m != nil {
		key, value := m[1], strings.TrimSpace(m[2])
		p.toolInput[key] = value
		return []core.DisplayFragment{core.ToolParameterFrag(p.toolID, key, value)}
	}
	return nil
}

func (p *CaretParser) processArray(line string) []core.DisplayFragment {
	if line == caretArrayClose {
		value := arrayLiteral(p.arrayElems)
		p.toolInput[p.paramName] = value
		p.state = caretInside
		return []core.DisplayFragment{core.ToolParameterFrag(p.toolID, p.paramName, value)}
	}
	p.arrayElems = append(p.arrayElems, strings.TrimSpace(line))
	return nil
}

func (p *CaretParser) processMulti(line string) []core.DisplayFragment {
	if line == "--- "+p.paramName {
		value := strings.Join(p.multiLines, "\n")
		p.toolInput[p.paramName] = value
		p.state = caretInside
		return []core.DisplayFragment{core.ToolParameterFrag(p.toolID, p.paramName, value)}
	}
	p.multiLines = append(p.multiLines, line)
	return nil
}

package dialect

import (
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
)

// jsonState is the incremental JSON value state machine, used to
// incrementally parse a tool's JSON argument object one character at a
// time regardless of how the underlying content is chunked.
type jsonState int

const (
	jsonExpectOpenBrace jsonState = iota
	jsonExpectKeyOrClose
	jsonInKey
	jsonExpectColon
	jsonExpectValue
	jsonInValueString
	jsonInValueComplex
	jsonInValueSimple
	jsonExpectCommaOrClose
)

// JSONParser decodes the native tool-calling dialect: InputJson chunks
// whose first chunk carries (tool_name, tool_id) and whose content is a
// streamed JSON object of parameter values.
type JSONParser struct {
	requestID int
	blocks    blockBuilder
	requests  []core.ToolRequest

	toolCounter int
	toolName    string
	toolID      string
	toolInput   map[string]any

	state jsonState

	keyBuf strings.Builder
	curKey string

	strRun     strings.Builder
	strFull    strings.Builder
	strEmitted bool
	inEscape   bool

	complexBuf       strings.Builder
	complexDepth     int
	complexInString  bool
	complexEscape    bool

	simpleBuf strings.Builder
}

func NewJSONParser(requestID int) *JSONParser {
	return &JSONParser{requestID: requestID}
}

func (p *JSONParser) FeedChunk(chunk core.StreamingChunk) []core.DisplayFragment {
	switch chunk.Kind {
	case core.ChunkThinking:
		if chunk.Text == "" {
			return nil
		}
		p.blocks.appendThinking(chunk.Text)
		return []core.DisplayFragment{core.ThinkingText(chunk.Text)}
	case core.ChunkText:
		if chunk.Text == "" {
			return nil
		}
		p.blocks.appendText(chunk.Text)
		return []core.DisplayFragment{core.PlainText(chunk.Text)}
	case core.ChunkInputJSON:
		return p.feedInputJSON(chunk)
	default:
		return nil
	}
}

func (p *JSONParser) feedInputJSON(chunk core.StreamingChunk) []core.DisplayFragment {
	var out []core.DisplayFragment
	if chunk.ToolID != "" && chunk.ToolID != p.toolID {
		if p.toolInput != nil && len(p.requests) == 0 {
			// keep the first tool call; later ones are parsed for display only
			p.blocks.appendToolUse(p.toolID, p.toolName, copyInput(p.toolInput))
			p.requests = append(p.requests, core.ToolRequest{ID: p.toolID, Name: p.toolName, Input: copyInput(p.toolInput)})
		}
		p.resetForNewTool(chunk.ToolName, chunk.ToolID)
		out = append(out, core.ToolNameFrag(p.toolName, p.toolID))
	}
	if p.toolInput == nil {
		// InputJSON content arrived with no tool context yet; nothing
		// sensible to do with it.
		return out
	}
	out = append(out, p.consume(chunk.Content)...)
	return out
}

func (p *JSONParser) resetForNewTool(name, id string) {
	p.toolCounter++
	p.toolName = name
	p.toolID = id
	p.toolInput = map[string]any{}
	p.state = jsonExpectOpenBrace
	p.keyBuf.Reset()
	p.curKey = ""
	p.resetStringScan()
	p.complexBuf.Reset()
	p.complexDepth = 0
	p.complexInString = false
	p.complexEscape = false
	p.simpleBuf.Reset()
}

func (p *JSONParser) resetStringScan() {
	p.strRun.Reset()
	p.strFull.Reset()
	p.strEmitted = false
	p.inEscape = false
}

func isJSONWS(ch byte) bool { return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' }
func isJSONSimpleTerminator(ch byte) bool {
	return isJSONWS(ch) || ch == ',' || ch == '}' || ch == ']'
}

func (p *JSONParser) consume(content string) []core.DisplayFragment {
	var out []core.DisplayFragment
	i := 0
	for i < len(content) {
		ch := content[i]
		frags, reprocess := p.step(ch)
		out = append(out, frags...)
		if !reprocess {
			i++
		}
	}
	return out
}

// step feeds one character through the current state, returning any
// fragments produced and whether the same character must be fed again
// after a state transition (used when a terminator character belongs to
// the next state rather than the one that just finished).
func (p *JSONParser) step(ch byte) ([]core.DisplayFragment, bool) {
	switch p.state {
	case jsonExpectOpenBrace:
		if ch == '{' {
			p.state = jsonExpectKeyOrClose
		}
		return nil, false
	case jsonExpectKeyOrClose:
		if isJSONWS(ch) {
			return nil, false
		}
		if ch == '"' {
			p.keyBuf.Reset()
			p.state = jsonInKey
			return nil, false
		}
		if ch == '}' {
			return []core.DisplayFragment{core.ToolEndFrag(p.toolID)}, false
		}
		return nil, false
	case jsonInKey:
		if ch == '"' {
			p.curKey = p.keyBuf.String()
			p.state = jsonExpectColon
			return nil, false
		}
		p.keyBuf.WriteByte(ch)
		return nil, false
	case jsonExpectColon:
		if ch == ':' {
			p.state = jsonExpectValue
		}
		return nil, false
	case jsonExpectValue:
		if isJSONWS(ch) {
			return nil, false
		}
		switch {
		case ch == '"':
			p.resetStringScan()
			p.state = jsonInValueString
			return nil, false
		case ch == '{' || ch == '[':
			p.complexBuf.Reset()
			p.complexBuf.WriteByte(ch)
			p.complexDepth = 1
			p.complexInString = false
			p.complexEscape = false
			p.state = jsonInValueComplex
			return nil, false
		default:
			p.simpleBuf.Reset()
			p.simpleBuf.WriteByte(ch)
			p.state = jsonInValueSimple
			return nil, false
		}
	case jsonInValueString:
		return p.stepValueString(ch), false
	case jsonInValueComplex:
		return p.stepValueComplex(ch), false
	case jsonInValueSimple:
		if isJSONSimpleTerminator(ch) {
			p.toolInput[p.curKey] = p.simpleBuf.String()
			frag := core.ToolParameterFrag(p.toolID, p.curKey, p.simpleBuf.String())
			p.state = jsonExpectCommaOrClose
			return []core.DisplayFragment{frag}, true
		}
		p.simpleBuf.WriteByte(ch)
		return nil, false
	case jsonExpectCommaOrClose:
		if isJSONWS(ch) {
			return nil, false
		}
		if ch == ',' {
			p.state = jsonExpectKeyOrClose
			return nil, false
		}
		if ch == '}' {
			return []core.DisplayFragment{core.ToolEndFrag(p.toolID)}, false
		}
		return nil, false
	}
	return nil, false
}

func (p *JSONParser) stepValueString(ch byte) []core.DisplayFragment {
	var out []core.DisplayFragment
	if p.inEscape {
		p.inEscape = false
		var decoded string
		switch ch {
		case '"':
			decoded = "\""
		case '\\':
			decoded = "\\"
		case '/':
			decoded = "/"
		case 'b':
			decoded = "\b"
		case 'f':
			decoded = "\f"
		case 'n':
			decoded = "\n"
		case 'r':
			decoded = "\r"
		case 't':
			decoded = "\t"
		default:
			decoded = "\\" + string(ch)
		}
		if p.strRun.Len() > 0 {
			out = append(out, core.ToolParameterFrag(p.toolID, p.curKey, p.strRun.String()))
			p.strRun.Reset()
		}
		out = append(out, core.ToolParameterFrag(p.toolID, p.curKey, decoded))
		p.strEmitted = true
		p.strFull.WriteString(decoded)
		return out
	}
	if ch == '\\' {
		p.inEscape = true
		return nil
	}
	if ch == '"' {
		if p.strRun.Len() > 0 || !p.strEmitted {
			out = append(out, core.ToolParameterFrag(p.toolID, p.curKey, p.strRun.String()))
		}
		p.toolInput[p.curKey] = p.strFull.String()
		p.strRun.Reset()
		p.state = jsonExpectCommaOrClose
		return out
	}
	p.strRun.WriteByte(ch)
	p.strFull.WriteByte(ch)
	return nil
}

func (p *JSONParser) stepValueComplex(ch byte) []core.DisplayFragment {
	p.complexBuf.WriteByte(ch)
	if p.complexInString {
		if p.complexEscape {
			p.complexEscape = false
		} else if ch == '\\' {
			p.complexEscape = true
		} else if ch == '"' {
			p.complexInString = false
		}
		return nil
	}
	switch ch {
	case '"':
		p.complexInString = true
	case '{', '[':
		p.complexDepth++
	case '}', ']':
		p.complexDepth--
		if p.complexDepth == 0 {
			value := p.complexBuf.String()
			p.toolInput[p.curKey] = value
			p.state = jsonExpectCommaOrClose
			return []core.DisplayFragment{core.ToolParameterFrag(p.toolID, p.curKey, value)}
		}
	}
	return nil
}

func (p *JSONParser) Finish() ([]core.ToolRequest, TruncatedResponse, error) {
	if p.toolInput != nil && len(p.requests) == 0 {
		p.blocks.appendToolUse(p.toolID, p.toolName, copyInput(p.toolInput))
		p.requests = append(p.requests, core.ToolRequest{ID: p.toolID, Name: p.toolName, Input: copyInput(p.toolInput)})
	}
	reqs := p.requests
	if len(reqs) > 1 {
		reqs = reqs[:1]
	}
	return reqs, TruncatedResponse{Blocks: p.blocks.blocks}, nil
}

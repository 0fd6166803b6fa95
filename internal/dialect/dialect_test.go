package dialect

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
)

// coalesce merges adjacent fragments that the UI would concatenate
// (same-kind PlainText/ThinkingText runs, and ToolParameter runs for the
// same tool+parameter), so chunk-invariance compares logical output
// rather than how finely a given chunking happened to split it.
func coalesce(frags []core.DisplayFragment) []core.DisplayFragment {
	var out []core.DisplayFragment
	for _, f := range frags {
		if n := len(out); n > 0 {
			last := &out[n-1]
			switch {
			case f.Kind == core.FragPlainText && last.Kind == core.FragPlainText:
				last.Text += f.Text
				continue
			case f.Kind == core.FragThinkingText && last.Kind == core.FragThinkingText:
				last.Text += f.Text
				continue
			case f.Kind == core.FragToolParameter && last.Kind == core.FragToolParameter &&
				f.ToolID == last.ToolID && f.ParamName == last.ParamName:
				last.ParamValue += f.ParamValue
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// runChunked feeds text through a fresh parser split into chunks of size
// n (n==0 means "as one chunk") and returns the resulting fragments.
func runChunked(d core.Dialect, text string, n int) []core.DisplayFragment {
	p := New(d, 1)
	var out []core.DisplayFragment
	if n <= 0 || n >= len(text) {
		out = append(out, p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: text})...)
	} else {
		for i := 0; i < len(text); i += n {
			end := i + n
			if end > len(text) {
				end = len(text)
			}
			out = append(out, p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: text[i:end]})...)
		}
	}
	_, _, _ = p.Finish()
	return out
}

func assertChunkInvariant(t *testing.T, d core.Dialect, text string) []core.DisplayFragment {
	t.Helper()
	base := coalesce(runChunked(d, text, 0))
	for _, n := range []int{1, 2, 3, 5, 7, 10, len(text)} {
		got := coalesce(runChunked(d, text, n))
		if !reflect.DeepEqual(got, base) {
			t.Fatalf("chunk size %d diverged from baseline for %q\nbase=%#v\ngot =%#v", n, text, base, got)
		}
	}
	return base
}

func TestXMLChunkInvariance(t *testing.T) {
	text := "<tool:read_files><param:path>src/main.rs</param:path></tool:read_files>"
	frags := assertChunkInvariant(t, core.DialectXML, text)
	want := []core.DisplayFragment{
		core.ToolNameFrag("read_files", "tool-1-1"),
		core.ToolParameterFrag("tool-1-1", "path", "src/main.rs"),
		core.ToolEndFrag("tool-1-1"),
	}
	if !reflect.DeepEqual(frags, want) {
		t.Fatalf("got %#v want %#v", frags, want)
	}
}

func TestXMLSplitOpener(t *testing.T) {
	p := NewXMLParser(1)
	var frags []core.DisplayFragment
	for _, chunk := range []string{"<tool:read_", "files>", "<param:path>src/main.rs</param:path>", "</tool:read_files>"} {
		frags = append(frags, p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: chunk})...)
	}
	reqs, _, err := p.Finish()
	if err != nil {
		t.Fatalf("unexpected Finish error: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Input["path"] != "src/main.rs" {
		t.Fatalf("unexpected requests: %#v", reqs)
	}
	want := []core.DisplayFragment{
		core.ToolNameFrag("read_files", "tool-1-1"),
		core.ToolParameterFrag("tool-1-1", "path", "src/main.rs"),
		core.ToolEndFrag("tool-1-1"),
	}
	if !reflect.DeepEqual(frags, want) {
		t.Fatalf("got %#v want %#v", frags, want)
	}
}

func TestXMLThinking(t *testing.T) {
	text := "<thinking>let me check</thinking>ok<tool:noop></tool:noop>"
	assertChunkInvariant(t, core.DialectXML, text)
}

func TestXMLTrailingNewlineBeforeTagTrimmed(t *testing.T) {
	text := "intro line\n<thinking>hmm</thinking>"
	frags := assertChunkInvariant(t, core.DialectXML, text)
	want := []core.DisplayFragment{
		core.PlainText("intro line"),
		core.ThinkingText("hmm"),
	}
	if !reflect.DeepEqual(frags, want) {
		t.Fatalf("got %#v want %#v", frags, want)
	}

	// a newline not followed by a tag stays part of the text
	p := NewXMLParser(1)
	var got []core.DisplayFragment
	for _, chunk := range []string{"a\n", "b"} {
		got = append(got, p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: chunk})...)
	}
	_, _, _ = p.Finish()
	if joined := coalesce(got); len(joined) != 1 || joined[0].Text != "a\nb" {
		t.Fatalf("mid-text newline must be preserved, got %#v", got)
	}
}

func TestCaretChunkInvariance(t *testing.T) {
	text := "^^^write_file\nproject: p\npaths: [\na\nb\n]\ncontent ---\nhello\nworld\n--- content\n^^^\n"
	frags := assertChunkInvariant(t, core.DialectCaret, text)

	var sawPaths, sawContent bool
	for _, f := range frags {
		if f.Kind == core.FragToolParameter && f.ParamName == "paths" {
			sawPaths = true
			if f.ParamValue != `["a","b"]` {
				t.Fatalf("paths value = %q", f.ParamValue)
			}
		}
		if f.Kind == core.FragToolParameter && f.ParamName == "content" {
			sawContent = true
			if f.ParamValue != "hello\nworld" {
				t.Fatalf("content value = %q", f.ParamValue)
			}
		}
	}
	if !sawPaths || !sawContent {
		t.Fatalf("missing expected fragments: %#v", frags)
	}
}

func TestCaretLineAnchored(t *testing.T) {
	text := "Some text ^^^not_a_tool more text\n"
	frags := assertChunkInvariant(t, core.DialectCaret, text)
	for _, f := range frags {
		if f.Kind != core.FragPlainText {
			t.Fatalf("expected only PlainText fragments, got %#v", frags)
		}
	}
}

func TestCaretToolLimitAfterWrite(t *testing.T) {
	t.Run("whitespace after close is swallowed", func(t *testing.T) {
		p := NewCaretParser(1)
		p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: "^^^write_file\npath: a\n^^^\n"})
		frags := p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: "   \n"})
		if len(frags) != 0 {
			t.Fatalf("whitespace after close must be silently discarded, got %#v", frags)
		}
		if _, _, err := p.Finish(); err != nil {
			t.Fatalf("whitespace alone must not trip the tool limit, got %v", err)
		}
	})

	t.Run("non-whitespace after close is a tool-limit error", func(t *testing.T) {
		p := NewCaretParser(1)
		p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: "^^^write_file\npath: a\n^^^\n"})
		frags := p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: "more\n"})
		if len(frags) != 0 {
			t.Fatalf("no further fragments expected once the tool limit is reached, got %#v", frags)
		}
		reqs, _, err := p.Finish()
		if !errors.Is(err, core.ErrToolLimitReached) {
			t.Fatalf("Finish() error = %v, want ErrToolLimitReached", err)
		}
		if len(reqs) != 1 || reqs[0].Name != "write_file" {
			t.Fatalf("the first tool must still be returned, got %#v", reqs)
		}
	})
}

func TestCaretReadOnlyToolsPermitMore(t *testing.T) {
	p := NewCaretParser(1)
	text := "^^^read_files\npath: a\n^^^\nmore text\n^^^read_files\npath: b\n^^^\n"
	p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: text})
	if _, _, err := p.Finish(); err != nil {
		t.Fatalf("read-only tools should not trigger the tool limit, got %v", err)
	}
}

func TestXMLToolLimitSecondTool(t *testing.T) {
	p := NewXMLParser(1)
	p.FeedChunk(core.StreamingChunk{Kind: core.ChunkText, Text: "<tool:a></tool:a><tool:b></tool:b>"})
	reqs, _, err := p.Finish()
	if !errors.Is(err, core.ErrToolLimitReached) {
		t.Fatalf("Finish() error = %v, want ErrToolLimitReached", err)
	}
	if len(reqs) != 1 || reqs[0].Name != "a" {
		t.Fatalf("expected only the first tool to be retained, got %#v", reqs)
	}
}

func TestJSONEscapeFidelity(t *testing.T) {
	want := "\"\\\t\n"
	encoded, _ := json.Marshal(want)
	content := `{"esc_key":` + string(encoded) + `}`

	p := NewJSONParser(1)
	var got string
	first := true
	feed := func(s string) {
		chunk := core.StreamingChunk{Kind: core.ChunkInputJSON, Content: s}
		if first {
			chunk.ToolName = "noop"
			chunk.ToolID = "tool-1-1"
			first = false
		}
		for _, f := range p.FeedChunk(chunk) {
			if f.Kind == core.FragToolParameter && f.ParamName == "esc_key" {
				got += f.ParamValue
			}
		}
	}
	for i := 0; i < len(content); i++ {
		feed(content[i : i+1])
	}
	reqs, _, err := p.Finish()
	if err != nil {
		t.Fatalf("unexpected Finish error: %v", err)
	}
	if got != want {
		t.Fatalf("concatenated value = %q want %q", got, want)
	}
	if len(reqs) != 1 || reqs[0].Input["esc_key"] != want {
		t.Fatalf("unexpected requests: %#v", reqs)
	}
}

func TestJSONChunkInvariance(t *testing.T) {
	// Full InputJSON-chunked invariance check (distinct from the
	// text-chunk invariance helper, since this dialect's chunks carry
	// structured fields rather than raw text).
	content := `{"path":"src/main.rs","count":42,"tags":["a","b"]}`
	run := func(n int) []core.DisplayFragment {
		p := NewJSONParser(7)
		var out []core.DisplayFragment
		first := true
		step := func(s string) {
			chunk := core.StreamingChunk{Kind: core.ChunkInputJSON, Content: s}
			if first {
				chunk.ToolName = "edit"
				chunk.ToolID = "tool-7-1"
				first = false
			}
			out = append(out, p.FeedChunk(chunk)...)
		}
		if n <= 0 {
			step(content)
		} else {
			for i := 0; i < len(content); i += n {
				end := i + n
				if end > len(content) {
					end = len(content)
				}
				step(content[i:end])
			}
		}
		_, _, _ = p.Finish()
		return out
	}
	base := coalesce(run(0))
	for _, n := range []int{1, 2, 3, 5, 7, 10} {
		got := coalesce(run(n))
		if !reflect.DeepEqual(got, base) {
			t.Fatalf("chunk size %d diverged: base=%#v got=%#v", n, base, got)
		}
	}
}

package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// The record/playback mechanism intercepts the Provider interface and is
// transparent to the engine: a Recorder wraps a live provider and writes
// every streamed chunk to a JSONL file; a Playback provider replays such
// a file instead of calling a model at all. Useful for demos, bug
// reproductions, and deterministic end-to-end tests.

// recordLine is one line of a recording file.
type recordLine struct {
	Type     string `json:"type"` // "request" | "chunk"
	Text     string `json:"text,omitempty"`
	Thinking bool   `json:"thinking,omitempty"`
	Done     bool   `json:"done,omitempty"`
	DelayMs  int64  `json:"delay_ms,omitempty"`
}

// Recorder wraps a Provider, appending every streamed chunk to a file.
type Recorder struct {
	inner Provider

	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewRecorder opens (truncating) the record file at path.
func NewRecorder(inner Provider, path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create record file: %w", err)
	}
	return &Recorder{inner: inner, file: f, enc: json.NewEncoder(f)}, nil
}

// Close flushes and closes the record file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

func (r *Recorder) writeLine(line recordLine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(line)
}

// Generate delegates and records the full response as a single chunk.
func (r *Recorder) Generate(ctx context.Context, messages []Message) (string, error) {
	out, err := r.inner.Generate(ctx, messages)
	if err != nil {
		return out, err
	}
	r.writeLine(recordLine{Type: "request"})
	r.writeLine(recordLine{Type: "chunk", Text: out})
	r.writeLine(recordLine{Type: "chunk", Done: true})
	return out, nil
}

// GenerateStream delegates to the wrapped provider, copying every chunk
// to the record file with its inter-chunk delay.
func (r *Recorder) GenerateStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	inner, err := r.inner.GenerateStream(ctx, messages)
	if err != nil {
		return nil, err
	}
	r.writeLine(recordLine{Type: "request"})

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		last := time.Now()
		for chunk := range inner {
			if chunk.Error == nil {
				now := time.Now()
				r.writeLine(recordLine{
					Type:     "chunk",
					Text:     chunk.Text,
					Thinking: chunk.Thinking,
					Done:     chunk.Done,
					DelayMs:  now.Sub(last).Milliseconds(),
				})
				last = now
			}
			out <- chunk
		}
	}()
	return out, nil
}

// Playback replays a recording file request by request. Each
// GenerateStream call consumes the next recorded request; running out of
// recorded requests is an error (the conversation diverged from the
// recording).
type Playback struct {
	fast bool

	mu       sync.Mutex
	requests [][]recordLine
	next     int
}

// NewPlayback loads the recording at path. fast disables the recorded
// inter-chunk delays so tests replay at full speed.
func NewPlayback(path string, fast bool) (*Playback, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open playback file: %w", err)
	}
	defer f.Close()

	var requests [][]recordLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var line recordLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("parse playback file: %w", err)
		}
		switch line.Type {
		case "request":
			requests = append(requests, nil)
		case "chunk":
			if len(requests) == 0 {
				return nil, fmt.Errorf("playback file starts with a chunk before any request marker")
			}
			requests[len(requests)-1] = append(requests[len(requests)-1], line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read playback file: %w", err)
	}
	return &Playback{fast: fast, requests: requests}, nil
}

// Remaining reports how many recorded requests have not been replayed.
func (p *Playback) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests) - p.next
}

func (p *Playback) take() ([]recordLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.next >= len(p.requests) {
		return nil, fmt.Errorf("playback exhausted: %d recorded requests already replayed", len(p.requests))
	}
	lines := p.requests[p.next]
	p.next++
	return lines, nil
}

// Generate replays the next recorded request as one concatenated string.
func (p *Playback) Generate(ctx context.Context, messages []Message) (string, error) {
	lines, err := p.take()
	if err != nil {
		return "", err
	}
	var out string
	for _, l := range lines {
		if !l.Done && !l.Thinking {
			out += l.Text
		}
	}
	return out, nil
}

// GenerateStream replays the next recorded request chunk by chunk.
func (p *Playback) GenerateStream(ctx context.Context, messages []Message) (<-chan StreamChunk, error) {
	lines, err := p.take()
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for _, l := range lines {
			if !p.fast && l.DelayMs > 0 {
				select {
				case <-time.After(time.Duration(l.DelayMs) * time.Millisecond):
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- StreamChunk{Text: l.Text, Thinking: l.Thinking, Done: l.Done}:
			case <-ctx.Done():
				return
			}
			if l.Done {
				return
			}
		}
		// recording ended without a Done marker: synthesize one
		out <- StreamChunk{Done: true}
	}()
	return out, nil
}

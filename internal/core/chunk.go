package core

// ChunkKind discriminates the variants of StreamingChunk, the unit the
// Provider interface yields and the dialect parsers consume. The core does not care which wire protocol produced these; that's
// the provider's concern.
type ChunkKind string

const (
	ChunkText              ChunkKind = "text"
	ChunkThinking          ChunkKind = "thinking"
	ChunkInputJSON         ChunkKind = "input_json"
	ChunkRateLimit         ChunkKind = "rate_limit"
	ChunkRateLimitClear    ChunkKind = "rate_limit_clear"
	ChunkStreamingComplete ChunkKind = "streaming_complete"
)

// StreamingChunk is one element of a provider's streamed response.
type StreamingChunk struct {
	Kind ChunkKind

	Text string // ChunkText, ChunkThinking

	// ChunkInputJSON: ToolName/ToolID are present only on the first chunk
	// of a given tool call; subsequent chunks carry only Content.
	ToolName string
	ToolID   string
	Content  string

	SecondsRemaining int // ChunkRateLimit

	Err error // terminal error, if streaming ended abnormally
}

package content

import (
	"strings"
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
)

func TestToContentBlocksTextAndImage(t *testing.T) {
	blocks := []Block{
		{Kind: BlockText, Text: "hello"},
		{Kind: BlockImage, MediaType: "image/png", Data: "image-data"},
	}
	out := ToContentBlocks(blocks, "")
	if len(out) != 2 {
		t.Fatalf("got %d blocks, want 2", len(out))
	}
	if out[0].Kind != core.BlockText || out[0].Text != "hello" {
		t.Errorf("text block: %+v", out[0])
	}
	if out[1].Kind != core.BlockImage || out[1].MediaType != "image/png" || out[1].Data != "image-data" {
		t.Errorf("image block: %+v", out[1])
	}
}

func TestToContentBlocksTextResourceWithLineRange(t *testing.T) {
	blocks := []Block{
		{
			Kind:         BlockResource,
			ResourceKind: ResourceTextual,
			URI:          "file:///home/user/project/src/main.rs#L10:20",
			ResourceText: "fn main() {}",
		},
	}
	out := ToContentBlocks(blocks, "/home/user/project")
	if len(out) != 1 {
		t.Fatalf("got %d blocks, want 1", len(out))
	}
	text := out[0].Text
	if !strings.Contains(text, "src/main.rs:10-20") {
		t.Errorf("expected relative path with line range, got %q", text)
	}
	if !strings.Contains(text, "fn main() {}") {
		t.Errorf("expected resource text embedded, got %q", text)
	}
}

func TestToContentBlocksBlobResourcePlaceholder(t *testing.T) {
	blocks := []Block{
		{Kind: BlockResource, ResourceKind: ResourceBlob, URI: "file:///tmp/photo.png"},
	}
	out := ToContentBlocks(blocks, "")
	if len(out) != 1 {
		t.Fatalf("got %d blocks, want 1", len(out))
	}
	if !strings.Contains(out[0].Text, "Binary content from `/tmp/photo.png`") {
		t.Errorf("got %q", out[0].Text)
	}
	if !strings.Contains(out[0].Text, "not displayed") {
		t.Errorf("got %q", out[0].Text)
	}
}

func TestToContentBlocksPathOutsideBaseStaysAbsolute(t *testing.T) {
	blocks := []Block{
		{Kind: BlockResource, ResourceKind: ResourceTextual, URI: "file:///etc/hosts", ResourceText: "127.0.0.1"},
	}
	out := ToContentBlocks(blocks, "/home/user/project")
	if !strings.Contains(out[0].Text, "/etc/hosts") {
		t.Errorf("got %q", out[0].Text)
	}
}

package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
)

func TestBaseTool_Validate(t *testing.T) {
	tool := &BaseTool{
		Def: ToolDefinition{
			Name: "test_tool",
			Parameters: &JSONSchema{
				Type: "object",
				Properties: map[string]*JSONSchema{
					"path":    {Type: "string"},
					"content": {Type: "string"},
				},
				Required: []string{"path", "content"},
			},
		},
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
	}{
		{
			name:      "all required present",
			args:      map[string]any{"path": "/tmp", "content": "test"},
			wantError: false,
		},
		{
			name:      "missing required",
			args:      map[string]any{"path": "/tmp"},
			wantError: true,
		},
		{
			name:      "empty args",
			args:      map[string]any{},
			wantError: true,
		},
		{
			name:      "wrong type",
			args:      map[string]any{"path": 42, "content": "test"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tool.Validate(tt.args)
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError = %v", err, tt.wantError)
			}
		})
	}
}

func TestBaseTool_ValidateNoParams(t *testing.T) {
	tool := &BaseTool{
		Def: ToolDefinition{
			Name:       "no_params_tool",
			Parameters: nil,
		},
	}
	if err := tool.Validate(map[string]any{"anything": true}); err != nil {
		t.Errorf("Validate() with nil schema should accept anything, got %v", err)
	}
}

func TestReadFilesTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha\nbravo\ncharlie\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("delta\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := core.WithWorkingDir(context.Background(), dir)
	tool := NewReadFilesTool()

	t.Run("single file", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"paths": []any{"a.txt"}})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "alpha") {
			t.Errorf("output missing file content: %q", res.Output)
		}
	})

	t.Run("multiple files with headers", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"paths": []any{"a.txt", "b.txt"}})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, ">>>>> FILE: a.txt") || !strings.Contains(res.Output, ">>>>> FILE: b.txt") {
			t.Errorf("output missing per-file headers: %q", res.Output)
		}
		if !strings.Contains(res.Output, "delta") {
			t.Errorf("output missing second file content: %q", res.Output)
		}
	})

	t.Run("line range", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"paths": []any{"a.txt:2-3"}})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if strings.Contains(res.Output, "alpha") {
			t.Errorf("line 1 should be excluded: %q", res.Output)
		}
		if !strings.Contains(res.Output, "bravo") || !strings.Contains(res.Output, "charlie") {
			t.Errorf("lines 2-3 should be included: %q", res.Output)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"paths": []any{"nope.txt"}})
		if res.Success {
			t.Error("Execute() should fail when every path is unreadable")
		}
	})

	t.Run("partial failure still succeeds", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"paths": []any{"a.txt", "nope.txt"}})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "Failed to read") {
			t.Errorf("output should note the unreadable path: %q", res.Output)
		}
	})
}

func TestSplitLineRange(t *testing.T) {
	tests := []struct {
		in    string
		path  string
		start int
		end   int
	}{
		{"src/main.go:10-40", "src/main.go", 10, 40},
		{"src/main.go", "src/main.go", 0, 0},
		{"src/main.go:x-y", "src/main.go:x-y", 0, 0},
		{"src/main.go:40-10", "src/main.go:40-10", 0, 0},
		{"weird:file", "weird:file", 0, 0},
	}
	for _, tt := range tests {
		path, start, end := splitLineRange(tt.in)
		if path != tt.path || start != tt.start || end != tt.end {
			t.Errorf("splitLineRange(%q) = (%q,%d,%d), want (%q,%d,%d)", tt.in, path, start, end, tt.path, tt.start, tt.end)
		}
	}
}

func TestListFilesTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"top.go", "sub/inner.go"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ctx := core.WithWorkingDir(context.Background(), dir)
	tool := NewListFilesTool()

	t.Run("depth 1", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "top.go") || !strings.Contains(res.Output, "sub/") {
			t.Errorf("depth-1 listing incomplete: %q", res.Output)
		}
		if strings.Contains(res.Output, "inner.go") {
			t.Errorf("depth-1 listing should not descend: %q", res.Output)
		}
	})

	t.Run("depth 2", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"max_depth": float64(2)})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, filepath.Join("sub", "inner.go")) {
			t.Errorf("depth-2 listing should include nested file: %q", res.Output)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"paths": []any{"absent"}})
		if res.Success {
			t.Error("Execute() should fail for a missing directory")
		}
	})
}

func TestSearchFilesTool(t *testing.T) {
	dir := t.TempDir()
	content := "package main\n\nfunc main() {\n\tprintln(\"hello\")\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello from notes\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := core.WithWorkingDir(context.Background(), dir)
	tool := NewSearchFilesTool()

	t.Run("basic match", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"regex": "hello"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "main.go") || !strings.Contains(res.Output, "notes.txt") {
			t.Errorf("both files should match: %q", res.Output)
		}
	})

	t.Run("glob filter", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"regex": "hello", "glob": "*.go"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if strings.Contains(res.Output, "notes.txt") {
			t.Errorf("glob filter should exclude notes.txt: %q", res.Output)
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"regex": "HELLO", "case_insensitive": true})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "main.go") {
			t.Errorf("case-insensitive search should match: %q", res.Output)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"regex": "zzzznothing"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "No matches") {
			t.Errorf("expected no-matches message, got %q", res.Output)
		}
	})

	t.Run("invalid regex falls back to literal", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "weird.txt"), []byte("a [bracket\n"), 0644); err != nil {
			t.Fatal(err)
		}
		res := tool.Execute(ctx, map[string]any{"regex": "[bracket"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "weird.txt") {
			t.Errorf("literal fallback should find the text: %q", res.Output)
		}
	})
}

func TestGlobFilesTool(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src", "deep"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"root.go", "src/a.go", "src/deep/b.go", "src/c.txt"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ctx := core.WithWorkingDir(context.Background(), dir)
	tool := NewGlobFilesTool()

	t.Run("simple glob", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"pattern": "*.go"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "root.go") {
			t.Errorf("simple glob should match top-level file: %q", res.Output)
		}
	})

	t.Run("recursive glob", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"pattern": "**/*.go"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		for _, want := range []string{"root.go", "a.go", "b.go"} {
			if !strings.Contains(res.Output, want) {
				t.Errorf("recursive glob missing %s: %q", want, res.Output)
			}
		}
		if strings.Contains(res.Output, "c.txt") {
			t.Errorf("recursive glob should not match c.txt: %q", res.Output)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		res := tool.Execute(ctx, map[string]any{"pattern": "*.zig"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "No files found") {
			t.Errorf("expected no-files message, got %q", res.Output)
		}
	})
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.txt")

	t.Run("confirmed write", func(t *testing.T) {
		tool := NewWriteFileTool(func(string) bool { return true })
		res := tool.Execute(context.Background(), map[string]any{"path": target, "content": "hello"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		data, err := os.ReadFile(target)
		if err != nil || string(data) != "hello" {
			t.Errorf("file content = %q, err = %v", data, err)
		}
	})

	t.Run("denied write", func(t *testing.T) {
		tool := NewWriteFileTool(func(string) bool { return false })
		res := tool.Execute(context.Background(), map[string]any{"path": filepath.Join(dir, "denied.txt"), "content": "x"})
		if res.Success {
			t.Error("Execute() should fail when confirmation is denied")
		}
		if res.Error != "denied by user" {
			t.Errorf("Error = %q, want %q", res.Error, "denied by user")
		}
		if _, err := os.Stat(filepath.Join(dir, "denied.txt")); err == nil {
			t.Error("denied write should not create the file")
		}
	})
}

// mediator is a test PermissionMediator with a fixed answer.
type mediator bool

func (m mediator) RequestApproval(ctx context.Context, toolName string, input map[string]any) bool {
	return bool(m)
}

func TestWriteFileTool_Mediator(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "med.txt")

	tool := NewWriteFileTool(nil)
	ctx := core.WithPermissionMediator(context.Background(), mediator(false))
	res := tool.Execute(ctx, map[string]any{"path": target, "content": "x"})
	if res.Success {
		t.Error("Execute() should fail when the mediator denies")
	}

	ctx = core.WithPermissionMediator(context.Background(), mediator(true))
	res = tool.Execute(ctx, map[string]any{"path": target, "content": "x"})
	if !res.Success {
		t.Errorf("Execute() failed with approving mediator: %s", res.Error)
	}
}

func TestEditTool(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "edit.txt")
	if err := os.WriteFile(target, []byte("one two three two"), 0644); err != nil {
		t.Fatal(err)
	}

	tool := NewEditTool(func(string) bool { return true })

	t.Run("unique replacement", func(t *testing.T) {
		res := tool.Execute(context.Background(), map[string]any{
			"path": target, "old_string": "three", "new_string": "THREE",
		})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		data, _ := os.ReadFile(target)
		if !strings.Contains(string(data), "THREE") {
			t.Errorf("replacement not applied: %q", data)
		}
	})

	t.Run("ambiguous old_string", func(t *testing.T) {
		res := tool.Execute(context.Background(), map[string]any{
			"path": target, "old_string": "two", "new_string": "2",
		})
		if res.Success {
			t.Error("Execute() should fail when old_string is not unique")
		}
	})

	t.Run("missing old_string", func(t *testing.T) {
		res := tool.Execute(context.Background(), map[string]any{
			"path": target, "old_string": "absent text", "new_string": "x",
		})
		if res.Success {
			t.Error("Execute() should fail when old_string is not found")
		}
	})
}

// planSlot is a minimal core.PlanSlot for tests.
type planSlot struct {
	items []core.PlanItem
}

func (p *planSlot) SetPlan(items []core.PlanItem) { p.items = items }
func (p *planSlot) GetPlan() []core.PlanItem      { return p.items }

// eventSink records published UiEvents.
type eventSink struct {
	events    []core.UiEvent
	fragments []core.DisplayFragment
}

func (s *eventSink) Publish(e core.UiEvent)                 { s.events = append(s.events, e) }
func (s *eventSink) DisplayFragment(f core.DisplayFragment) { s.fragments = append(s.fragments, f) }

func TestUpdatePlanTool(t *testing.T) {
	tool := NewUpdatePlanTool()

	t.Run("no plan slot", func(t *testing.T) {
		res := tool.Execute(context.Background(), map[string]any{"entries": []any{}})
		if res.Success {
			t.Fatal("Execute() should fail without a plan slot")
		}
		if res.Error != "Plan state is unavailable in this context" {
			t.Errorf("Error = %q", res.Error)
		}
	})

	t.Run("replaces plan and publishes event", func(t *testing.T) {
		slot := &planSlot{}
		sink := &eventSink{}
		ctx := core.WithPlanSlot(context.Background(), slot)
		ctx = core.WithUISink(ctx, sink)

		entries := []any{
			map[string]any{"content": "first", "priority": "high", "status": "in_progress"},
			map[string]any{"content": "second", "priority": "low", "status": "pending"},
		}
		res := tool.Execute(ctx, map[string]any{"entries": entries})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if !strings.Contains(res.Output, "2 entries") {
			t.Errorf("Output = %q, want count of 2", res.Output)
		}
		if len(slot.items) != 2 || slot.items[0].Content != "first" || slot.items[1].Priority != core.PriorityLow {
			t.Errorf("plan slot = %+v", slot.items)
		}
		found := false
		for _, e := range sink.events {
			if e.Kind == core.EvUpdatePlan && len(e.Plan) == 2 {
				found = true
			}
		}
		if !found {
			t.Error("no UpdatePlan event with 2 entries was published")
		}
	})
}

// fakeRunner is a test SubAgentRunner that returns a canned result.
type fakeRunner struct {
	spawned   []string
	cancelled []string
	result    string
}

func (r *fakeRunner) Spawn(ctx context.Context, toolID, task string) (<-chan string, error) {
	r.spawned = append(r.spawned, toolID)
	ch := make(chan string, 1)
	ch <- r.result
	close(ch)
	return ch, nil
}

func (r *fakeRunner) Cancel(toolID string) bool {
	r.cancelled = append(r.cancelled, toolID)
	return true
}

func TestSpawnAgentTool(t *testing.T) {
	tool := NewSpawnAgentTool()

	t.Run("no runner", func(t *testing.T) {
		res := tool.Execute(context.Background(), map[string]any{"task": "do it"})
		if res.Success {
			t.Error("Execute() should fail without a runner in context")
		}
	})

	t.Run("delegates and returns result", func(t *testing.T) {
		runner := &fakeRunner{result: "sub-agent says done"}
		ctx := core.WithSubAgentRunner(context.Background(), runner)
		ctx = WithSpawnToolID(ctx, "tool-7-1")

		res := tool.Execute(ctx, map[string]any{"task": "summarize the repo"})
		if !res.Success {
			t.Fatalf("Execute() failed: %s", res.Error)
		}
		if res.Output != "sub-agent says done" {
			t.Errorf("Output = %q", res.Output)
		}
		if len(runner.spawned) != 1 || runner.spawned[0] != "tool-7-1" {
			t.Errorf("spawned ids = %v, want [tool-7-1]", runner.spawned)
		}
	})
}

// stubTool registers a definition without behavior.
type stubTool struct {
	def ToolDefinition
}

func (s *stubTool) Definition() ToolDefinition { return s.def }
func (s *stubTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	return ToolResult{Success: true}
}
func (s *stubTool) Validate(args map[string]any) error { return nil }

func TestRegistry_ScopeFiltering(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubTool{def: ToolDefinition{Name: "everywhere"}})
	reg.Register(&stubTool{def: ToolDefinition{Name: "agent_only", SupportedScopes: []Scope{ScopeAgent}}})
	reg.Register(&stubTool{def: ToolDefinition{Name: "hidden_tool", Hidden: true}})

	defs := reg.ListForScope(ScopeAgentWithDiffBlocks)
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
	}
	if !names["everywhere"] {
		t.Error("unrestricted tool should be listed in every scope")
	}
	if names["agent_only"] {
		t.Error("agent_only tool should not be listed for diff-blocks scope")
	}
	if names["hidden_tool"] {
		t.Error("hidden tool should never be listed")
	}
}

func TestRegistry_BuildSystemPrompt(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewReadFilesTool())
	reg.Register(NewWriteFileTool(nil))

	t.Run("xml dialect lists grammar", func(t *testing.T) {
		prompt := reg.BuildSystemPrompt(core.DialectXML, ScopeAgent)
		if !strings.Contains(prompt, "<tool:NAME>") {
			t.Errorf("xml prompt missing grammar example: %q", prompt)
		}
		if !strings.Contains(prompt, "read_files") {
			t.Errorf("xml prompt missing tool listing: %q", prompt)
		}
	})

	t.Run("caret dialect lists grammar", func(t *testing.T) {
		prompt := reg.BuildSystemPrompt(core.DialectCaret, ScopeAgent)
		if !strings.Contains(prompt, "^^^tool_name") {
			t.Errorf("caret prompt missing grammar example: %q", prompt)
		}
	})

	t.Run("native dialect emits nothing", func(t *testing.T) {
		if prompt := reg.BuildSystemPrompt(core.DialectJSON, ScopeAgent); prompt != "" {
			t.Errorf("native dialect prompt should be empty, got %q", prompt)
		}
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"read_files", KindRead},
		{"search_files", KindSearch},
		{"write_file", KindEdit},
		{"run_command", KindExecute},
		{"update_plan", KindOther},
		{"never_heard_of_it", KindOther},
	}
	for _, tt := range tests {
		if got := KindOf(tt.name); got != tt.want {
			t.Errorf("KindOf(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCoerceInput(t *testing.T) {
	schema := &JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"paths":   {Type: "array", Items: &JSONSchema{Type: "string"}},
			"count":   {Type: "integer"},
			"enabled": {Type: "boolean"},
			"name":    {Type: "string"},
		},
	}

	got := CoerceInput(schema, map[string]any{
		"paths":   `["a","b"]`,
		"count":   "42",
		"enabled": "true",
		"name":    "plain",
		"extra":   "untyped",
	})

	if arr, ok := got["paths"].([]any); !ok || len(arr) != 2 || arr[0] != "a" {
		t.Errorf("paths = %#v, want decoded array", got["paths"])
	}
	if got["count"] != float64(42) {
		t.Errorf("count = %#v, want 42", got["count"])
	}
	if got["enabled"] != true {
		t.Errorf("enabled = %#v, want true", got["enabled"])
	}
	if got["name"] != "plain" {
		t.Errorf("name = %#v, should stay a string", got["name"])
	}
	if got["extra"] != "untyped" {
		t.Errorf("extra = %#v, undeclared keys pass through", got["extra"])
	}

	// unparseable values stay strings so schema validation can report them
	got = CoerceInput(schema, map[string]any{"paths": "not json"})
	if got["paths"] != "not json" {
		t.Errorf("paths = %#v, unparseable value should stay a string", got["paths"])
	}
}

func TestToolDefinition_Title(t *testing.T) {
	def := ToolDefinition{Name: "edit_file", TitleTemplate: "Editing {path}"}
	got := def.Title(map[string]any{"path": "main.go"})
	if got != "Editing main.go" {
		t.Errorf("Title() = %q", got)
	}

	def = ToolDefinition{Name: "bare"}
	if got := def.Title(nil); got != "bare" {
		t.Errorf("Title() with no template = %q, want tool name", got)
	}
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zcode-dev/agentcore/internal/agentloop"
	"github.com/zcode-dev/agentcore/internal/agents"
	"github.com/zcode-dev/agentcore/internal/config"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/llm"
	"github.com/zcode-dev/agentcore/internal/persistence"
	"github.com/zcode-dev/agentcore/internal/prompts"
	"github.com/zcode-dev/agentcore/internal/session"
	"github.com/zcode-dev/agentcore/internal/subagent"
	"github.com/zcode-dev/agentcore/internal/tools"
	"github.com/zcode-dev/agentcore/internal/tui"
	"github.com/zcode-dev/agentcore/internal/zlog"
)

var (
	providerFlag     string
	modelFlag        string
	dialectFlag      string
	taskFlag         string
	continueFlag     bool
	recordFlag       string
	playbackFlag     string
	fastPlaybackFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "zcode [project-path]",
	Short: "AI coding assistant with interactive TUI",
	Long: `Z-Code is an AI-powered coding assistant that drives an LLM agent
through iterative tool calls against your source tree. Conversations are
persistent sessions; an interactive terminal UI streams the agent's
output, tool invocations, and task plan in real time.

Supported providers:
  claude     - Anthropic API (default, requires ANTHROPIC_API_KEY)
  openai     - OpenAI API (requires OPENAI_API_KEY)
  openrouter - OpenRouter API (requires OPENROUTER_API_KEY)
  litellm    - LiteLLM Proxy (unified interface to 100+ LLMs)`,
	Args: cobra.MaximumNArgs(1),
	Run:  runChat,
}

func runChat(cmd *cobra.Command, args []string) {
	cfg := config.Get()

	projectPath, _ := os.Getwd()
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Printf("Invalid project path: %v\n", err)
			os.Exit(1)
		}
		projectPath = abs
	}

	selectedProvider := firstNonEmpty(providerFlag, cfg.DefaultProvider, "claude")
	selectedModel := firstNonEmpty(modelFlag, cfg.DefaultModel)
	selectedDialect := firstNonEmpty(dialectFlag, cfg.DefaultDialect, "xml")

	provider, err := llm.New(selectedProvider, selectedModel)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	// record/playback intercept the provider interface; the rest of the
	// engine never knows the difference
	if playbackFlag != "" {
		pb, err := llm.NewPlayback(playbackFlag, fastPlaybackFlag)
		if err != nil {
			fmt.Printf("Cannot open playback file: %v\n", err)
			os.Exit(1)
		}
		provider = pb
	} else if recordFlag != "" {
		rec, err := llm.NewRecorder(provider, recordFlag)
		if err != nil {
			fmt.Printf("Cannot open record file: %v\n", err)
			os.Exit(1)
		}
		defer rec.Close()
		provider = rec
	}

	store, err := persistence.Open(config.SessionDBPath())
	if err != nil {
		fmt.Printf("Cannot open session store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	registry := buildToolRegistry()

	profiles := agents.NewRegistry()
	if err := profiles.Refresh(); err != nil {
		zlog.With("cmd").Warn("loading sub-agent profiles failed", "error", err)
	}

	// hot-reload profile directories while the TUI runs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if watcher, err := config.NewWatcher(func(string) { _ = profiles.Refresh() }, 0); err == nil {
		watcher.WatchConfiguredDirs()
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	sink := tui.NewSink()
	dialect := core.Dialect(selectedDialect)

	loop := agentloop.New(provider, registry, tools.ScopeAgent, prompts.ForSession)
	subExecute := subagent.LoopExecutor(provider, registry, profiles, dialect)
	loop.SubAgentsFor = sessionRunners(subExecute)

	manager := session.New(store,
		func(*core.Session) *agentloop.Loop { return loop },
		sink,
		func() core.SessionConfig {
			return core.SessionConfig{
				Dialect:       dialect,
				ProjectName:   filepath.Base(projectPath),
				ProjectPath:   projectPath,
				SandboxPolicy: sandboxPolicy(cfg),
			}
		},
		func() core.ModelConfig {
			return core.ModelConfig{Provider: selectedProvider, Model: selectedModel}
		},
	)

	sessionID, err := resolveSession(ctx, manager, filepath.Base(projectPath))
	if err != nil {
		fmt.Printf("Cannot open session: %v\n", err)
		os.Exit(1)
	}

	events, err := manager.SetActiveSession(ctx, sessionID)
	if err != nil {
		fmt.Printf("Cannot activate session: %v\n", err)
		os.Exit(1)
	}
	for _, e := range events {
		sink.Publish(e)
	}

	if taskFlag != "" {
		if err := manager.StartAgentForMessage(ctx, sessionID, []core.ContentBlock{core.TextBlock(taskFlag)}); err != nil {
			fmt.Printf("Cannot start initial task: %v\n", err)
			os.Exit(1)
		}
	}

	modelName := selectedModel
	if modelName == "" {
		modelName = selectedProvider
	}

	p := tea.NewProgram(
		tui.New(manager, sessionID, modelName, projectPath, sink, profiles),
		tea.WithAltScreen(),
		tea.WithoutBracketedPaste(), // Disable bracketed paste to avoid escape sequence issues
	)
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}

// resolveSession picks the session to attach to: the most recently
// updated one with --continue, a fresh one otherwise.
func resolveSession(ctx context.Context, manager *session.Manager, name string) (string, error) {
	if continueFlag {
		id, err := manager.GetLatestSessionID(ctx)
		if err == nil {
			if _, err := manager.LoadSession(ctx, id); err == nil {
				return id, nil
			}
		}
		// no previous session to continue: fall through to a new one
	}
	return manager.CreateSession(ctx, name)
}

// sessionRunners memoizes one sub-agent Runner per session so cancel
// lookups hit the registry that actually spawned the sub-agent.
func sessionRunners(execute func(ctx context.Context, toolID, task string) (string, error)) func(sess *core.Session) core.SubAgentRunner {
	runners := map[string]*subagent.Runner{}
	return func(sess *core.Session) core.SubAgentRunner {
		if r, ok := runners[sess.ID]; ok {
			return r
		}
		r := subagent.NewRunner(nil, sess.ID, execute)
		runners[sess.ID] = r
		return r
	}
}

// buildToolRegistry registers the full tool set. Confirmation is left to
// the permission mediator; tool-local ConfirmFuncs stay nil.
func buildToolRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewReadFilesTool())
	reg.Register(tools.NewListFilesTool())
	reg.Register(tools.NewSearchFilesTool())
	reg.Register(tools.NewGlobFilesTool())
	reg.Register(tools.NewWriteFileTool(nil))
	reg.Register(tools.NewEditTool(nil))
	reg.Register(tools.NewBashTool(nil))
	reg.Register(tools.NewUpdatePlanTool())
	reg.Register(tools.NewSpawnAgentTool())
	return reg
}

func sandboxPolicy(cfg *config.Config) core.SandboxPolicy {
	switch cfg.DefaultSandboxPolicy {
	case "read_only":
		return core.SandboxReadOnly
	case "workspace_write":
		return core.SandboxWorkspace
	default:
		return core.SandboxNone
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "LLM provider (claude, openai, openrouter, litellm)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to use (provider-specific)")
	rootCmd.Flags().StringVarP(&dialectFlag, "dialect", "d", "", "Tool syntax dialect (xml, caret, native_json)")
	rootCmd.Flags().StringVarP(&taskFlag, "task", "t", "", "Initial task to start the agent with")
	rootCmd.Flags().BoolVarP(&continueFlag, "continue", "c", false, "Continue the most recently updated session")
	rootCmd.Flags().StringVar(&recordFlag, "record", "", "Record all provider traffic to this file")
	rootCmd.Flags().StringVar(&playbackFlag, "playback", "", "Replay provider traffic from this file instead of calling a model")
	rootCmd.Flags().BoolVar(&fastPlaybackFlag, "fast-playback", false, "Replay without the recorded inter-chunk delays")
}

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/zcode-dev/agentcore/internal/agentloop"
	"github.com/zcode-dev/agentcore/internal/compaction"
	"github.com/zcode-dev/agentcore/internal/config"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/llm"
	"github.com/zcode-dev/agentcore/internal/persistence"
	"github.com/zcode-dev/agentcore/internal/prompts"
	"github.com/zcode-dev/agentcore/internal/session"
	"github.com/zcode-dev/agentcore/internal/tools"
	"github.com/zcode-dev/agentcore/internal/zlog"
)

var (
	serveAddr     string
	serveSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a long-lived daemon",
	Long: `Run zcode as a long-lived daemon: a periodic sweep compacts long
conversations of the sessions the daemon holds active, and Prometheus
metrics (/metrics) and a health check (/healthz) are exposed over HTTP.
The daemon serves no endpoint through which a front-end can drive a
session.`,
	Run: runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	log := zlog.With("serve")
	cfg := config.Get()

	provider, err := llm.New(firstNonEmpty(providerFlag, cfg.DefaultProvider, "claude"), firstNonEmpty(modelFlag, cfg.DefaultModel))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	store, err := persistence.Open(config.SessionDBPath())
	if err != nil {
		fmt.Printf("Cannot open session store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	loop := agentloop.New(provider, buildToolRegistry(), tools.ScopeAgent, prompts.ForSession)
	manager := session.New(store,
		func(*core.Session) *agentloop.Loop { return loop },
		nil, // headless: no UI sink
		func() core.SessionConfig {
			wd, _ := os.Getwd()
			return core.SessionConfig{
				Dialect:       core.Dialect(firstNonEmpty(dialectFlag, cfg.DefaultDialect, "xml")),
				ProjectPath:   wd,
				SandboxPolicy: sandboxPolicy(cfg),
			}
		},
		func() core.ModelConfig {
			return core.ModelConfig{Provider: cfg.DefaultProvider, Model: cfg.DefaultModel}
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := compaction.NewSweeper(manager, compaction.DefaultPolicy())
	if err := sweeper.Start(ctx, serveSchedule); err != nil {
		fmt.Printf("Cannot start compaction sweep: %v\n", err)
		os.Exit(1)
	}
	defer sweeper.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: serveAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("daemon started", "addr", serveAddr, "sweep", serveSchedule)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":9090", "Metrics/health listen address")
	serveCmd.Flags().StringVar(&serveSchedule, "compact-every", "@every 5m", "Compaction sweep schedule (cron syntax)")
	rootCmd.AddCommand(serveCmd)
}

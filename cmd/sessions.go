package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zcode-dev/agentcore/internal/config"
	"github.com/zcode-dev/agentcore/internal/persistence"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved sessions",
	Long: `Inspect and manage the persisted conversation sessions.

Examples:
  zcode sessions list
  zcode sessions show <id>
  zcode sessions delete <id>`,
	Run: func(cmd *cobra.Command, args []string) {
		listSessions()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Run: func(cmd *cobra.Command, args []string) {
		listSessions()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a session's conversation",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		sess, err := store.Load(context.Background(), args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s  (%s)\n", sess.Name, sess.ID)
		fmt.Printf("created %s, updated %s, %d messages, %d tool executions\n\n",
			sess.CreatedAt.Format("2006-01-02 15:04"),
			sess.UpdatedAt.Format("2006-01-02 15:04"),
			len(sess.Messages), len(sess.ToolExecutions))

		for _, m := range sess.Messages {
			text := m.Text()
			if text == "" {
				for _, b := range m.Content {
					if b.Kind == "tool_use" {
						text = fmt.Sprintf("[tool: %s]", b.ToolName)
					} else if b.Kind == "tool_result" {
						text = fmt.Sprintf("[tool result for %s]", b.ToolUseID)
					}
				}
			}
			if len(text) > 200 {
				text = text[:200] + "…"
			}
			fmt.Printf("%-12s %s\n", m.Role+":", text)
		}
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		if err := store.Delete(context.Background(), args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Deleted.")
	},
}

func listSessions() {
	store := openStore()
	defer store.Close()

	summaries, err := store.List(context.Background())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if len(summaries) == 0 {
		fmt.Println("No saved sessions.")
		return
	}
	for _, s := range summaries {
		fmt.Printf("%s  %-30s  updated %s\n", s.ID, s.Name, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Println("\nResume the latest with: zcode --continue")
}

func openStore() *persistence.Store {
	store, err := persistence.Open(config.SessionDBPath())
	if err != nil {
		fmt.Printf("Cannot open session store: %v\n", err)
		os.Exit(1)
	}
	return store
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

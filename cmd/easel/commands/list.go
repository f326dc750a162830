package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/pkg/board"
)

var (
	listArchived bool
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions on the instance",
	Long: `List the instance's active sessions (prompt and painting phases).

For each session, displays:
  • Session hash (truncated)
  • Phase
  • Canvas size
  • Iteration progress
  • Agreed prompt (painting sessions only)

Use --archived to list finalized sessions instead, and --json for
machine-readable output.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listArchived, "archived", false, "List finalized sessions instead of active ones")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	var sessions []*board.Session
	if listArchived {
		sessions, err = conn.board.ListArchived(ctx, 50, 0)
	} else {
		sessions, err = conn.board.ListActive(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		if listJSON {
			fmt.Println("[]")
		} else {
			fmt.Println("No sessions found.")
		}
		return nil
	}

	if listJSON {
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sessions: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("%-14s %-10s %-9s %-10s %s\n", "SESSION", "PHASE", "SIZE", "ITERATION", "PROMPT")
	for _, s := range sessions {
		fmt.Printf("%-14s %-10s %-9s %-10s %s\n",
			truncateDigest(s.Hash),
			s.Phase(),
			fmt.Sprintf("%dx%d", s.Columns, s.Rows),
			fmt.Sprintf("%d/%d", s.Iteration, s.MaxIterations),
			s.Prompt,
		)
	}
	return nil
}

// truncateDigest shortens a 0x-prefixed digest for table display.
func truncateDigest(digest string) string {
	if len(digest) <= 14 {
		return digest
	}
	return digest[:14]
}

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/printer"
	"github.com/easelhq/easel/pkg/board"
)

var showCmd = &cobra.Command{
	Use:   "show SESSION_HASH",
	Short: "Show one session in detail",
	Long: `Show a single session's full record: phase, dimensions, palette,
iteration progress, latest revision, and prompt state. During the
prompt phase the grouped prompt tallies are included.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sessionHash := args[0]

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := conn.board.GetSession(ctx, sessionHash)
	if err != nil {
		if board.IsNotFound(err) {
			return printer.Error(
				"session not found",
				fmt.Sprintf("No session %s on instance '%s'.", sessionHash, conn.instanceName),
				[]string{"Run 'easel list' to see active sessions"},
			)
		}
		return err
	}

	printer.Field("Session", session.Hash)
	printer.Field("Phase", session.Phase())
	printer.Field("Size", fmt.Sprintf("%dx%d", session.Columns, session.Rows))
	printer.Field("Palette", fmt.Sprintf("%d colors", len(session.Palette)))
	printer.Field("Iteration", fmt.Sprintf("%d/%d", session.Iteration, session.MaxIterations))
	printer.Field("Revision", session.Revision)
	printer.Field("Created", time.Unix(session.CreatedAt, 0).UTC().Format(time.RFC3339))
	if session.Prompt != "" {
		printer.Field("Prompt", session.Prompt)
	}

	if session.Phase() == board.PhasePrompt {
		tallies, err := conn.board.PromptTallies(ctx, session.Hash)
		if err != nil {
			return fmt.Errorf("failed to load prompt tallies: %w", err)
		}
		printer.Println()
		if len(tallies) == 0 {
			printer.Println("No prompt submissions yet.")
			return nil
		}
		printer.Printf("%-6s %s\n", "VOTES", "PROMPT")
		for _, t := range tallies {
			printer.Printf("%-6d %s\n", t.Votes, t.Text)
		}
	}
	return nil
}

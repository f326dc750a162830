package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	activityIdentity string
	activityTail     int
)

var activityCmd = &cobra.Command{
	Use:   "activity SESSION_HASH",
	Short: "Show a session's accepted paint activity",
	Long: `Show the ordered activity log of a session: every accepted paint
mutation with its painter, cell, color, iteration, and claimed base
revision.

Use --identity to restrict the log to one painter, and --tail to limit
the number of records shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runActivity,
}

func init() {
	activityCmd.Flags().StringVar(&activityIdentity, "identity", "", "Only show activity by this identity")
	activityCmd.Flags().IntVar(&activityTail, "tail", 0, "Only show the last N records (0 = all)")
	rootCmd.AddCommand(activityCmd)
}

func runActivity(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	log, err := conn.board.ActivityLog(ctx, args[0], activityIdentity)
	if err != nil {
		return fmt.Errorf("failed to load activity log: %w", err)
	}

	if activityTail > 0 && len(log) > activityTail {
		log = log[len(log)-activityTail:]
	}

	if len(log) == 0 {
		fmt.Println("No activity recorded.")
		return nil
	}

	fmt.Printf("%-20s %-44s %-6s %-6s %-5s %s\n", "TIME", "IDENTITY", "CELL", "COLOR", "ITER", "BASE")
	for _, a := range log {
		fmt.Printf("%-20s %-44s %-6d %-6d %-5d %s\n",
			time.Unix(a.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05"),
			a.Identity,
			a.PositionIndex,
			a.ColorIndex,
			a.Iteration,
			truncateDigest(a.Revision),
		)
	}
	return nil
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/printer"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream accepted paint activity live",
	Long: `Subscribe to the instance's activity event stream and print every
accepted paint mutation as it lands. Delivery is at-most-once; use
'easel activity' for the authoritative log.

Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, err := conn.board.SubscribeActivityEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer sub.Close()

	printer.Step("Watching activity on instance '%s'...\n", conn.instanceName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	for {
		select {
		case <-sigCh:
			printer.Println()
			return nil
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("%v\n", err)
		case a, ok := <-sub.Events():
			if !ok {
				return nil
			}
			fmt.Printf("%s  %s painted cell %d color %d (iteration %d)\n",
				time.Unix(a.CreatedAt, 0).UTC().Format("15:04:05"),
				a.Identity,
				a.PositionIndex,
				a.ColorIndex,
				a.Iteration,
			)
		}
	}
}

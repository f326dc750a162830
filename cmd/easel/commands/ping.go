package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/printer"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check connectivity to the instance's Redis",
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.board.Ping(ctx); err != nil {
		return printer.Error(
			"instance unreachable",
			err.Error(),
			[]string{"Check REDIS_URL and that the instance's Redis is running"},
		)
	}

	printer.Success("Instance '%s' is reachable\n", conn.instanceName)
	return nil
}

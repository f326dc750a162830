package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/settle"
)

var payoutsCmd = &cobra.Command{
	Use:   "payouts IDENTITY",
	Short: "List an identity's pending settlement transactions",
	Long: `List the settlement transactions recorded for an identity, newest
first. Each transaction references the artifact whose finalization
produced it.`,
	Args: cobra.ExactArgs(1),
	RunE: runPayouts,
}

func init() {
	rootCmd.AddCommand(payoutsCmd)
}

func runPayouts(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conn, err := connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	ledger, err := settle.NewClient(conn.redisOpts, conn.instanceName)
	if err != nil {
		return fmt.Errorf("failed to create settlement client: %w", err)
	}
	defer ledger.Close()

	txs, err := ledger.Pending(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}

	if len(txs) == 0 {
		fmt.Println("No transactions recorded.")
		return nil
	}

	fmt.Printf("%-20s %-8s %s\n", "TIME", "AMOUNT", "ARTIFACT")
	for _, tx := range txs {
		fmt.Printf("%-20s %-8d %s\n",
			time.Unix(tx.CreatedAt, 0).UTC().Format("2006-01-02 15:04:05"),
			tx.Amount,
			tx.Message,
		)
	}
	return nil
}

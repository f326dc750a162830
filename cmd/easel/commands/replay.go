package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/easelhq/easel/internal/artifact"
	"github.com/easelhq/easel/internal/printer"
)

var replayCmd = &cobra.Command{
	Use:   "replay ARTIFACT_FILE",
	Short: "Verify and score a finalized artifact file",
	Long: `Decode a finalized session artifact, replay its activity log over the
initial canvas, and verify the result matches the recorded final
revision. On success, prints the artifact header and the per-identity
contribution scores and payouts.

This command is fully offline; it needs no running instance.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return printer.Error(
			"cannot read artifact file",
			err.Error(),
			nil,
		)
	}

	a, err := artifact.Decode(data)
	if err != nil {
		return printer.Error(
			"malformed artifact",
			fmt.Sprintf("Decoding failed: %v", err),
			nil,
		)
	}

	if _, err := artifact.Replay(a); err != nil {
		return printer.Error(
			"replay verification failed",
			fmt.Sprintf("The activity log does not reproduce the recorded final revision: %v", err),
			[]string{"The artifact file may be corrupted or tampered with"},
		)
	}
	printer.Success("Replay verified: activity log reproduces the final revision\n")
	printer.Println()

	printer.Field("Session", a.SessionDigest)
	printer.Field("Final revision", a.FinalRevision)
	printer.Field("Size", fmt.Sprintf("%dx%d", a.Columns, a.Rows))
	printer.Field("Palette", fmt.Sprintf("%d colors", len(a.Palette)))
	printer.Field("Created", time.Unix(a.CreatedAt, 0).UTC().Format(time.RFC3339))
	printer.Field("Edits", len(a.Activity))
	printer.Field("Signatures", len(a.Signatures))

	contributions, err := artifact.Contributions(a)
	if err != nil {
		return fmt.Errorf("contribution scoring: %w", err)
	}
	if len(contributions) == 0 {
		return nil
	}

	printer.Println()
	printer.Printf("%-44s %-12s %s\n", "IDENTITY", "SCORE", "PAYOUT")
	for _, c := range contributions {
		printer.Printf("%-44s %-12.2f %d\n", c.Identity, c.Score, c.Payout)
	}
	return nil
}

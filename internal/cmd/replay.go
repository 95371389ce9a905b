package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vietanh2810/jobshadow-api/cmd/app"
)

var errReplayMismatch = errors.New("replayed outcome differs from the committed one")

var replayJobID uint

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-run a finished draw from its stored snapshot",
	Long: `Re-run a draw with its stored snapshot and seed, and compare the
outcome fingerprint with the one recorded when the job committed.

Exits with an error when the fingerprints differ.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().UintVar(&replayJobID, "job", 0, "lottery job id")
	_ = replayCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, _ []string) error {
	if replayJobID == 0 {
		return errors.New("--job must be a positive job id")
	}

	a, err := app.Bootstrap(configPath)
	if err != nil {
		return err
	}

	report, err := a.LotteryService().Replay(cmd.Context(), replayJobID)
	if err != nil {
		return fmt.Errorf("failed to replay job %d -> %w", replayJobID, err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err = enc.Encode(report); err != nil {
		return err
	}

	if !report.Match {
		return errReplayMismatch
	}

	return nil
}

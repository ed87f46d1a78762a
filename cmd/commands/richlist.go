package commands

// Command to preview the payout plan without executing it
// Fetches the richlist, applies the blacklist and rate policy
// Prints the holder/payout table; broadcasts nothing, records nothing

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payout-engine/internal/config"
	"payout-engine/internal/features/richlist"
	logging "payout-engine/internal/infra/log"
)

var richlistCmd = &cobra.Command{
	Use:   "richlist",
	Short: "Fetch the richlist and print the payout preview table",
	Long: `Fetch the current mining token richlist and print the payout each holder
would receive under the configured rate. Read-only: no transfers are
broadcast and no audit record is written.`,
	RunE: runRichlist,
}

func runRichlist(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Preview never broadcasts, so no signing credential is needed.
	cfg.Payout.DryRun = true

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner, err := buildRunner(cfg, nil)
	if err != nil {
		return err
	}

	plan, err := runner.PreparePlan(ctx)
	if err != nil {
		return fmt.Errorf("failed to build payout preview: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), richlist.Table(plan))

	logging.LogSuccess("Payout preview built",
		zap.Int("holders", len(plan.Entries)),
		zap.String("totalAmount", plan.TotalAmount().String()),
		zap.String("token", plan.TokenSymbol))
	return nil
}

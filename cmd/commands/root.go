package commands

// Root command for Cobra CLI
// Defines the main command structure of the application
// Registers all subcommands (run, richlist, blacklist, audit, daemon)

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payout-engine",
	Short: "Hive Engine token payout engine - daily ARCHON distributions to ARCHONM holders",
	Long: `Payout Engine computes and distributes daily Hive Engine token payouts:
it fetches the mining token richlist, applies the payout rate with exact
decimal arithmetic, broadcasts transfers one at a time through a signing
backend, and seals an audit record of every run.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(richlistCmd)
	rootCmd.AddCommand(blacklistCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(daemonCmd)
}

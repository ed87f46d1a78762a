package commands

// Command to manage the blacklisted accounts file
// list shows both the configured and the file-managed accounts
// add/remove edit DATA_DIR/blacklisted_accounts.json atomically

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payout-engine/internal/config"
	"payout-engine/internal/infra/fs"
	logging "payout-engine/internal/infra/log"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage accounts excluded from payouts",
	Long: `Manage the payout blacklist. A run excludes the union of the configured
accounts (BLACKLISTED_ACCOUNTS) and the accounts in the managed file,
so removing a configured account requires a config change.`,
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every account excluded from payouts",
	RunE:  runBlacklistList,
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add <account>",
	Short: "Add an account to the blacklist file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlacklistAdd,
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove <account>",
	Short: "Remove an account from the blacklist file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBlacklistRemove,
}

func init() {
	blacklistCmd.AddCommand(blacklistListCmd)
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
}

func runBlacklistList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fileAccounts, err := fs.LoadBlacklistedAccounts(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load blacklist file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configured (BLACKLISTED_ACCOUNTS):")
	if len(cfg.Payout.BlacklistedAccounts) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, account := range cfg.Payout.BlacklistedAccounts {
		fmt.Fprintf(out, "  %s\n", account)
	}

	fmt.Fprintf(out, "File (%s):\n", fs.BlacklistFileName)
	if len(fileAccounts) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, account := range fileAccounts {
		fmt.Fprintf(out, "  %s\n", account)
	}
	return nil
}

func runBlacklistAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	account := args[0]
	if err := fs.AddBlacklistedAccount(cfg.Storage.DataDir, account); err != nil {
		return fmt.Errorf("failed to add %s to blacklist: %w", account, err)
	}

	logging.LogSuccess("Account blacklisted", zap.String("account", account))
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s to the blacklist\n", account)
	return nil
}

func runBlacklistRemove(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	account := args[0]
	if err := fs.RemoveBlacklistedAccount(cfg.Storage.DataDir, account); err != nil {
		return fmt.Errorf("failed to remove %s from blacklist: %w", account, err)
	}

	logging.LogSuccess("Account removed from blacklist", zap.String("account", account))
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the blacklist\n", account)
	return nil
}

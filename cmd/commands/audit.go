package commands

// Command to inspect sealed payout audit records
// list prints the run keys in chronological order
// show prints one record as JSON (the latest when no key is given)

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"payout-engine/internal/audit"
	"payout-engine/internal/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect sealed payout audit records",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sealed run records, oldest first",
	RunE:  runAuditList,
}

var auditShowCmd = &cobra.Command{
	Use:   "show [run-key]",
	Short: "Print one run record as JSON (defaults to the latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditShow,
}

func init() {
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditShowCmd)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	writer, err := auditWriter()
	if err != nil {
		return err
	}

	keys, err := writer.List()
	if err != nil {
		return fmt.Errorf("failed to list audit records: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit records found")
		return nil
	}
	for _, key := range keys {
		fmt.Fprintln(cmd.OutOrStdout(), key)
	}
	return nil
}

func runAuditShow(cmd *cobra.Command, args []string) error {
	writer, err := auditWriter()
	if err != nil {
		return err
	}

	var key string
	if len(args) > 0 {
		key = args[0]
	} else {
		key, err = writer.Latest()
		if err != nil {
			return fmt.Errorf("failed to find latest audit record: %w", err)
		}
		if key == "" {
			return fmt.Errorf("no audit records found")
		}
	}

	report, err := writer.Load(key)
	if err != nil {
		return fmt.Errorf("failed to load audit record %s: %w", key, err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render audit record: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func auditWriter() (*audit.Writer, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return audit.NewWriter(cfg.Storage.DataDir), nil
}

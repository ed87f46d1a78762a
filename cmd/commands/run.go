package commands

// Command to execute one payout distribution run
// Fetches the richlist, builds the plan, broadcasts transfers sequentially
// Seals the audit record and sends the optional Telegram summary
// SIGINT/SIGTERM cancels between transfers and still seals the partial record

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payout-engine/internal/audit"
	"payout-engine/internal/clients_api/hiveengine"
	"payout-engine/internal/clients_api/signerbridge"
	"payout-engine/internal/clients_api/signerexec"
	"payout-engine/internal/config"
	"payout-engine/internal/features/distribution"
	"payout-engine/internal/features/richlist"
	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/notify"
	"payout-engine/internal/payout"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one payout distribution run",
	Long: `Execute one full distribution: fetch the richlist, build the payout plan,
broadcast the transfers one at a time and seal the audit record. With
--dry-run the plan is computed and recorded without touching the network.`,
	RunE: runDistribution,
}

var runDryRun bool

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Compute and record the plan without broadcasting transfers")
}

func runDistribution(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.LogError("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}
	if runDryRun {
		cfg.Payout.DryRun = true
	}
	if !cfg.Payout.DryRun {
		if err := cfg.ValidateLive(); err != nil {
			return fmt.Errorf("invalid live configuration: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The sink prints the holder table as soon as the plan exists, before
	// the first transfer goes out.
	runner, err := buildRunner(cfg, tableSink{out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}

	report, err := runner.RunOnce(ctx)
	if report == nil {
		logging.LogError("Payout run could not start", zap.Error(err))
		return fmt.Errorf("payout run could not start: %w", err)
	}
	if err != nil {
		return fmt.Errorf("payout run did not finish cleanly: %w", err)
	}

	summary := report.Summary()
	if summary.Failed > 0 {
		logging.LogWarn("Run finished with failed transfers, check the audit record",
			zap.Int("failed", summary.Failed),
			zap.Int("sent", summary.Sent))
	}
	return nil
}

// tableSink renders the richlist table on plan construction.
type tableSink struct {
	payout.NopSink
	out io.Writer
}

func (s tableSink) PlanBuilt(p *payout.Plan) {
	fmt.Fprint(s.out, richlist.Table(p))
}

// buildRunner translates the validated application config into a wired
// distribution runner. events may be nil.
func buildRunner(cfg *config.Config, events payout.EventSink) (*distribution.Runner, error) {
	rate, err := cfg.Payout.RateDecimal()
	if err != nil {
		return nil, fmt.Errorf("invalid payout rate: %w", err)
	}
	minDenom, err := cfg.Payout.MinDenominationDecimal()
	if err != nil {
		return nil, fmt.Errorf("invalid minimum denomination: %w", err)
	}

	var broadcaster payout.TransferBroadcaster
	if !cfg.Payout.DryRun {
		broadcaster, err = newBroadcaster(cfg)
		if err != nil {
			return nil, err
		}
	}

	var notifier distribution.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tg, err := notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logging.LogWarn("Failed to initialize Telegram notifier (continuing without it)", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	return distribution.NewRunner(distribution.Config{
		Ledger:          hiveengine.NewClient(cfg.Hive.EngineAPIURL),
		Broadcaster:     broadcaster,
		Audit:           audit.NewWriter(cfg.Storage.DataDir),
		Notifier:        notifier,
		Events:          events,
		TokenQuery:      cfg.Payout.TokenQuery,
		TokenName:       cfg.Payout.TokenName,
		Rate:            rate,
		MinDenomination: minDenom,
		Blacklist:       cfg.Payout.BlacklistedAccounts,
		DataDir:         cfg.Storage.DataDir,
		ChartsDir:       filepath.Join(cfg.Storage.DataDir, "charts"),
		DryRun:          cfg.Payout.DryRun,
		RateLimitDelay:  cfg.Payout.RateLimitDelay,
		MaxRetries:      cfg.Payout.MaxRetries,
	})
}

func newBroadcaster(cfg *config.Config) (payout.TransferBroadcaster, error) {
	memoFn := distribution.MemoBuilder(cfg.Payout.MemoTemplate,
		cfg.Payout.Rate, cfg.Payout.TokenName, cfg.Payout.TokenQuery)

	switch cfg.Broadcast.Mode {
	case config.BroadcastModeBridge:
		return signerbridge.New(signerbridge.Config{
			BaseURL:     cfg.Broadcast.BridgeURL,
			Token:       cfg.Hive.ActiveWIF,
			FromAccount: cfg.Payout.Account,
			TokenSymbol: cfg.Payout.TokenName,
			MemoFn:      memoFn,
			Timeout:     cfg.Broadcast.SignerTimeout,
		})
	case config.BroadcastModeExec:
		return signerexec.New(signerexec.Config{
			ScriptPath:  cfg.Broadcast.SignerScript,
			ActiveWIF:   cfg.Hive.ActiveWIF,
			FromAccount: cfg.Payout.Account,
			TokenSymbol: cfg.Payout.TokenName,
			MemoFn:      memoFn,
			Timeout:     cfg.Broadcast.SignerTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown broadcast mode %q", cfg.Broadcast.Mode)
	}
}

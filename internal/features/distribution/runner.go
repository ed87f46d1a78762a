// Package distribution orchestrates payout runs end to end: richlist
// fetch, plan construction, sequential execution, audit sealing and
// operator notification.
package distribution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payout-engine/internal/audit"
	"payout-engine/internal/clients_api/hiveengine"
	"payout-engine/internal/features/tg_charts"
	"payout-engine/internal/infra/fs"
	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

// LedgerReader is the read side of the ledger used to prepare a run.
type LedgerReader interface {
	Richlist(ctx context.Context, symbol string) ([]payout.HolderRecord, error)
	FetchTokenInfo(ctx context.Context, symbol string) (*hiveengine.TokenInfo, error)
}

// Notifier delivers a sealed run summary to an operator channel.
type Notifier interface {
	SendRunSummary(report *payout.Report, chartPath string) error
}

// Config wires one runner. Collaborators come in as interfaces; the
// numeric policy arrives already parsed, the runner reads no ambient
// configuration.
type Config struct {
	Ledger      LedgerReader
	Broadcaster payout.TransferBroadcaster // unused when DryRun
	Audit       *audit.Writer
	Notifier    Notifier         // optional
	Events      payout.EventSink // optional, fanned out with the logging sink
	Clock       clockwork.Clock

	TokenQuery      string
	TokenName       string
	Rate            decimal.Decimal
	MinDenomination decimal.Decimal // zero derives from the token's precision
	Blacklist       []string
	DataDir         string
	ChartsDir       string // empty disables chart rendering
	DryRun          bool
	RateLimitDelay  time.Duration
	MaxRetries      int
}

func (cfg *Config) Validate() error {
	if cfg.Ledger == nil {
		return errors.New("ledger reader is required")
	}
	if cfg.Audit == nil {
		return errors.New("audit writer is required")
	}
	if cfg.Broadcaster == nil && !cfg.DryRun {
		return errors.New("broadcaster is required unless dry run")
	}
	if cfg.TokenQuery == "" {
		return errors.New("token query is required")
	}
	if cfg.TokenName == "" {
		return errors.New("token name is required")
	}
	if cfg.DataDir == "" {
		return errors.New("data dir is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Runner executes distributions one at a time.
type Runner struct {
	cfg    Config
	events payout.EventSink
}

func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid distribution config: %w", err)
	}
	sinks := payout.MultiSink{payout.ZapSink{}}
	if cfg.Events != nil {
		sinks = append(sinks, cfg.Events)
	}
	return &Runner{cfg: cfg, events: sinks}, nil
}

// PreparePlan resolves the minimum denomination, fetches the richlist
// and builds the payout plan. It broadcasts nothing, records nothing and
// emits no run events, so the preview command can call it freely.
func (r *Runner) PreparePlan(ctx context.Context) (*payout.Plan, error) {
	minDenom, err := r.resolveMinDenomination(ctx)
	if err != nil {
		return nil, err
	}

	holders, err := r.cfg.Ledger.Richlist(ctx, r.cfg.TokenQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch richlist: %w", err)
	}

	blacklist, err := r.effectiveBlacklist()
	if err != nil {
		return nil, err
	}

	plan, err := payout.BuildPlan(holders, payout.PlanConfig{
		TokenSymbol:     r.cfg.TokenName,
		Rate:            r.cfg.Rate,
		MinDenomination: minDenom,
		Blacklist:       blacklist,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build payout plan: %w", err)
	}
	return plan, nil
}

// RunOnce executes one full distribution. A nil report means the run
// never started: nothing was broadcast and no audit record exists. A
// non-nil report is always sealed, partial or not, even when the
// returned error is non-nil.
func (r *Runner) RunOnce(ctx context.Context) (*payout.Report, error) {
	plan, err := r.PreparePlan(ctx)
	if err != nil {
		return nil, err
	}
	r.events.PlanBuilt(plan)

	executor, err := payout.NewExecutor(payout.ExecutorConfig{
		Broadcaster:    r.cfg.Broadcaster,
		DryRun:         r.cfg.DryRun,
		RateLimitDelay: r.cfg.RateLimitDelay,
		MaxRetries:     r.cfg.MaxRetries,
		Clock:          r.cfg.Clock,
		Events:         r.events,
	})
	if err != nil {
		return nil, err
	}

	report, runErr := executor.Execute(ctx, plan)

	// Seal regardless of how the run ended. Losing the record of a
	// partial run would orphan transfers that already happened.
	_, sealErr := r.cfg.Audit.Seal(report)
	if sealErr != nil {
		logging.LogError("Failed to seal audit record", zap.Error(sealErr))
	}

	r.notify(report)

	return report, errors.Join(runErr, sealErr)
}

// resolveMinDenomination prefers the configured value and falls back to
// the payout token's on-chain precision.
func (r *Runner) resolveMinDenomination(ctx context.Context) (decimal.Decimal, error) {
	if r.cfg.MinDenomination.IsPositive() {
		return r.cfg.MinDenomination, nil
	}
	info, err := r.cfg.Ledger.FetchTokenInfo(ctx, r.cfg.TokenName)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve %s precision: %w", r.cfg.TokenName, err)
	}
	minDenom := info.MinDenomination()
	logging.LogInfo("Derived minimum denomination from token precision",
		zap.String("token", r.cfg.TokenName),
		zap.Int("precision", info.Precision),
		zap.String("minDenomination", minDenom.String()))
	return minDenom, nil
}

// effectiveBlacklist merges the configured accounts with the managed
// blacklist file. Both sources exclude; neither overrides the other.
func (r *Runner) effectiveBlacklist() (map[string]struct{}, error) {
	fileAccounts, err := fs.LoadBlacklistedAccounts(r.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist file: %w", err)
	}
	return payout.BlacklistSet(append(append([]string(nil), r.cfg.Blacklist...), fileAccounts...)), nil
}

// notify is best effort. The audit record already holds the truth; a
// notification problem must not turn a finished run into a failure.
func (r *Runner) notify(report *payout.Report) {
	if r.cfg.Notifier == nil {
		return
	}

	chartPath := ""
	if r.cfg.ChartsDir != "" && len(report.Outcomes) > 0 {
		path, err := tg_charts.GeneratePayoutChart(report, r.cfg.ChartsDir)
		if err != nil {
			logging.LogWarn("Failed to render payout chart", zap.Error(err))
		} else {
			chartPath = path
		}
	}

	if err := r.cfg.Notifier.SendRunSummary(report, chartPath); err != nil {
		logging.LogWarn("Failed to send run notification", zap.Error(err))
	}
}

package distribution

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"payout-engine/internal/audit"
	"payout-engine/internal/clients_api/hiveengine"
	"payout-engine/internal/infra/fs"
	"payout-engine/internal/payout"
)

type mockLedger struct {
	mu            sync.Mutex
	richlistFn    func(ctx context.Context, symbol string) ([]payout.HolderRecord, error)
	tokenFn       func(ctx context.Context, symbol string) (*hiveengine.TokenInfo, error)
	richlistCalls []string
	tokenCalls    []string
}

func (m *mockLedger) Richlist(ctx context.Context, symbol string) ([]payout.HolderRecord, error) {
	m.mu.Lock()
	m.richlistCalls = append(m.richlistCalls, symbol)
	m.mu.Unlock()
	return m.richlistFn(ctx, symbol)
}

func (m *mockLedger) FetchTokenInfo(ctx context.Context, symbol string) (*hiveengine.TokenInfo, error) {
	m.mu.Lock()
	m.tokenCalls = append(m.tokenCalls, symbol)
	m.mu.Unlock()
	return m.tokenFn(ctx, symbol)
}

type mockBroadcaster struct {
	mu         sync.Mutex
	calls      []string
	transferFn func(account string, amount decimal.Decimal) (string, error)
}

func (m *mockBroadcaster) Transfer(_ context.Context, account string, amount decimal.Decimal) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, account)
	m.mu.Unlock()
	return m.transferFn(account, amount)
}

type mockNotifier struct {
	mu         sync.Mutex
	reports    []*payout.Report
	chartPaths []string
	err        error
}

func (m *mockNotifier) SendRunSummary(report *payout.Report, chartPath string) error {
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.chartPaths = append(m.chartPaths, chartPath)
	m.mu.Unlock()
	return m.err
}

type recordingSink struct {
	mu          sync.Mutex
	planLengths []int
	results     []payout.Status
	sealed      int
}

func (s *recordingSink) PlanBuilt(p *payout.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planLengths = append(s.planLengths, len(p.Entries))
}

func (s *recordingSink) EntryAttempted(payout.Entry, int) {}

func (s *recordingSink) EntryResult(o payout.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, o.Status)
}

func (s *recordingSink) RunSealed(*payout.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed++
}

func holders(pairs ...string) []payout.HolderRecord {
	out := make([]payout.HolderRecord, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, payout.HolderRecord{
			Account: pairs[i],
			Balance: decimal.RequireFromString(pairs[i+1]),
		})
	}
	return out
}

var runStart = time.Date(2025, 8, 24, 10, 0, 0, 0, time.UTC)

func baseConfig(t *testing.T, ledger *mockLedger) Config {
	t.Helper()
	dataDir := t.TempDir()
	return Config{
		Ledger:          ledger,
		Audit:           audit.NewWriter(dataDir),
		Clock:           clockwork.NewFakeClockAt(runStart),
		TokenQuery:      "ARCHONM",
		TokenName:       "ARCHON",
		Rate:            decimal.RequireFromString("0.25"),
		MinDenomination: decimal.RequireFromString("0.001"),
		Blacklist:       []string{"spammer"},
		DataDir:         dataDir,
		DryRun:          true,
	}
}

func TestPayout_Distribution_DryRunEndToEnd(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders(
				"alice", "100.5",
				"bob", "0.002",
				"spammer", "10",
				"upfundme", "40",
				"carol", "8",
			), nil
		},
	}
	notifier := &mockNotifier{}

	cfg := baseConfig(t, ledger)
	cfg.Notifier = notifier
	require.NoError(t, fs.SaveBlacklistedAccounts(cfg.DataDir, []string{"upfundme"}))

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	// spammer is excluded by config, upfundme by file, bob floors to zero.
	require.Len(t, report.Outcomes, 2)
	require.Equal(t, "alice", report.Outcomes[0].Account)
	require.True(t, report.Outcomes[0].Amount.Equal(decimal.RequireFromString("25.125")))
	require.Equal(t, "carol", report.Outcomes[1].Account)
	require.True(t, report.Outcomes[1].Amount.Equal(decimal.NewFromInt(2)))
	for _, o := range report.Outcomes {
		require.Equal(t, payout.StatusSkippedDryRun, o.Status)
	}

	// Explicit minimum denomination means no token metadata lookup.
	require.Empty(t, ledger.tokenCalls)
	require.Equal(t, []string{"ARCHONM"}, ledger.richlistCalls)

	keys, err := cfg.Audit.List()
	require.NoError(t, err)
	require.Equal(t, []string{audit.RunKey(runStart)}, keys)

	sealed, err := cfg.Audit.Load(keys[0])
	require.NoError(t, err)
	require.True(t, sealed.DryRun)
	require.Len(t, sealed.Outcomes, 2)

	require.Len(t, notifier.reports, 1)
	require.Equal(t, "", notifier.chartPaths[0])
}

func TestPayout_Distribution_LiveRunBroadcastsInOrder(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("alice", "100", "dave", "4"), nil
		},
	}
	broadcaster := &mockBroadcaster{
		transferFn: func(account string, _ decimal.Decimal) (string, error) {
			return "tx-" + account, nil
		},
	}
	notifier := &mockNotifier{}
	sink := &recordingSink{}

	cfg := baseConfig(t, ledger)
	cfg.DryRun = false
	cfg.Broadcaster = broadcaster
	cfg.Notifier = notifier
	cfg.Events = sink
	cfg.ChartsDir = t.TempDir()

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"alice", "dave"}, broadcaster.calls)
	require.Len(t, report.Outcomes, 2)
	require.Equal(t, payout.StatusSent, report.Outcomes[0].Status)
	require.Equal(t, "tx-alice", report.Outcomes[0].TxID)
	require.True(t, report.Outcomes[0].Amount.Equal(decimal.NewFromInt(25)))
	require.Equal(t, "tx-dave", report.Outcomes[1].TxID)

	// The extra sink sees the same events as the logging sink.
	require.Equal(t, []int{2}, sink.planLengths)
	require.Equal(t, []payout.Status{payout.StatusSent, payout.StatusSent}, sink.results)
	require.Equal(t, 1, sink.sealed)

	// The chart was rendered and handed to the notifier.
	require.Len(t, notifier.chartPaths, 1)
	require.NotEmpty(t, notifier.chartPaths[0])
	_, err = os.Stat(notifier.chartPaths[0])
	require.NoError(t, err)
}

func TestPayout_Distribution_FetchFailureStopsBeforeBroadcast(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return nil, fmt.Errorf("gateway unavailable")
		},
	}
	broadcaster := &mockBroadcaster{
		transferFn: func(string, decimal.Decimal) (string, error) {
			return "", fmt.Errorf("must not be called")
		},
	}
	notifier := &mockNotifier{}

	cfg := baseConfig(t, ledger)
	cfg.DryRun = false
	cfg.Broadcaster = broadcaster
	cfg.Notifier = notifier

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.Nil(t, report)
	require.ErrorContains(t, err, "failed to fetch richlist")

	require.Empty(t, broadcaster.calls)
	require.Empty(t, notifier.reports)

	keys, err := cfg.Audit.List()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestPayout_Distribution_DerivesMinDenominationFromPrecision(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("alice", "2.5"), nil
		},
		tokenFn: func(_ context.Context, symbol string) (*hiveengine.TokenInfo, error) {
			return &hiveengine.TokenInfo{Symbol: symbol, Precision: 3}, nil
		},
	}

	cfg := baseConfig(t, ledger)
	cfg.MinDenomination = decimal.Zero

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.NoError(t, err)

	// Metadata comes from the payout token, holders from the mining token.
	require.Equal(t, []string{"ARCHON"}, ledger.tokenCalls)
	require.Equal(t, []string{"ARCHONM"}, ledger.richlistCalls)

	require.Len(t, report.Outcomes, 1)
	require.True(t, report.Outcomes[0].Amount.Equal(decimal.RequireFromString("0.625")))
}

func TestPayout_Distribution_TokenInfoFailurePreventsRun(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("alice", "1"), nil
		},
		tokenFn: func(_ context.Context, _ string) (*hiveengine.TokenInfo, error) {
			return nil, fmt.Errorf("node down")
		},
	}

	cfg := baseConfig(t, ledger)
	cfg.MinDenomination = decimal.Zero

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.Nil(t, report)
	require.ErrorContains(t, err, "failed to resolve ARCHON precision")
	require.Empty(t, ledger.richlistCalls)
}

func TestPayout_Distribution_SealCollisionSurfacesError(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("alice", "100"), nil
		},
	}
	notifier := &mockNotifier{}

	cfg := baseConfig(t, ledger)
	cfg.Notifier = notifier

	// A record for the same start instant already exists.
	_, err := cfg.Audit.Seal(&payout.Report{TokenSymbol: "ARCHON", StartedAt: runStart})
	require.NoError(t, err)

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.NotNil(t, report)
	require.ErrorContains(t, err, "already exists")

	// The operator still hears about the run even when sealing failed.
	require.Len(t, notifier.reports, 1)
}

func TestPayout_Distribution_NotifierFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("alice", "100"), nil
		},
	}
	notifier := &mockNotifier{err: fmt.Errorf("telegram unreachable")}

	cfg := baseConfig(t, ledger)
	cfg.Notifier = notifier

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	require.Len(t, notifier.reports, 1)
}

func TestPayout_Distribution_EmptyPlanStillSeals(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("dust", "0.001"), nil
		},
	}

	cfg := baseConfig(t, ledger)

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	report, err := runner.RunOnce(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Outcomes)
	require.False(t, report.Aborted)

	keys, err := cfg.Audit.List()
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestPayout_Distribution_PreparePlanHasNoSideEffects(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{
		richlistFn: func(_ context.Context, _ string) ([]payout.HolderRecord, error) {
			return holders("alice", "100"), nil
		},
	}
	sink := &recordingSink{}

	cfg := baseConfig(t, ledger)
	cfg.Events = sink

	runner, err := NewRunner(cfg)
	require.NoError(t, err)

	plan, err := runner.PreparePlan(context.Background())
	require.NoError(t, err)
	require.Len(t, plan.Entries, 1)
	require.True(t, plan.Entries[0].Amount.Equal(decimal.NewFromInt(25)))

	keys, err := cfg.Audit.List()
	require.NoError(t, err)
	require.Empty(t, keys)
	require.Empty(t, sink.planLengths)
	require.Zero(t, sink.sealed)
}

func TestPayout_Distribution_ConfigValidation(t *testing.T) {
	t.Parallel()

	ledger := &mockLedger{}

	tests := []struct {
		name    string
		mutate  func(*Config)
		errPart string
	}{
		{"missing ledger", func(c *Config) { c.Ledger = nil }, "ledger reader is required"},
		{"missing audit", func(c *Config) { c.Audit = nil }, "audit writer is required"},
		{"live without broadcaster", func(c *Config) { c.DryRun = false }, "broadcaster is required"},
		{"missing token query", func(c *Config) { c.TokenQuery = "" }, "token query is required"},
		{"missing token name", func(c *Config) { c.TokenName = "" }, "token name is required"},
		{"missing data dir", func(c *Config) { c.DataDir = "" }, "data dir is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig(t, ledger)
			tt.mutate(&cfg)
			_, err := NewRunner(cfg)
			require.ErrorContains(t, err, tt.errPart)
		})
	}
}

func TestPayout_Distribution_MemoBuilder(t *testing.T) {
	t.Parallel()

	memo := MemoBuilder("{amount} = {rate} {token} mining share per {query}",
		"0.250", "ARCHON", "ARCHONM")
	require.Equal(t, "25.125 = 0.250 ARCHON mining share per ARCHONM",
		memo(decimal.RequireFromString("25.125")))

	twice := MemoBuilder("{amount} and again {amount}", "0.1", "A", "B")
	require.Equal(t, "7 and again 7", twice(decimal.NewFromInt(7)))

	unknown := MemoBuilder("pay {amount} {unknown}", "0.1", "A", "B")
	require.Equal(t, "pay 3 {unknown}", unknown(decimal.NewFromInt(3)))
}

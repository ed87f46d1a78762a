package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ExecutorConfig configures one distribution run.
type ExecutorConfig struct {
	// Broadcaster submits transfers. Required unless DryRun.
	Broadcaster TransferBroadcaster

	// DryRun records every entry as skipped without touching the network.
	DryRun bool

	// RateLimitDelay is slept before each retry and after each resolved
	// live entry, to stay under the ledger's request limits.
	RateLimitDelay time.Duration

	// MaxRetries bounds how often a transient failure is retried per entry.
	MaxRetries int

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// Events defaults to a no-op sink.
	Events EventSink
}

// Validate fills defaults and rejects unusable configurations.
func (c *ExecutorConfig) Validate() error {
	if c.Broadcaster == nil && !c.DryRun {
		return errors.New("broadcaster is required unless dry run")
	}
	if c.RateLimitDelay < 0 {
		return errors.New("rate limit delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Events == nil {
		c.Events = NopSink{}
	}
	return nil
}

// Executor walks a plan strictly sequentially, one transfer at a time.
// Sequential execution is a correctness requirement: concurrent transfers
// from one funding account break ledger sequencing and the remote rate
// limits. Entries resolve in plan order and the report preserves that order.
type Executor struct {
	cfg ExecutorConfig
}

func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	return &Executor{cfg: cfg}, nil
}

// Execute runs the plan and returns the sealed report. The report is always
// non-nil, also on error: a fatal broadcaster failure or a cancelled context
// aborts the remaining entries but seals the partial report, so every
// attempted transfer stays auditable. Per-entry failures are data in the
// report, never errors.
func (e *Executor) Execute(ctx context.Context, plan *Plan) (*Report, error) {
	report := &Report{
		TokenSymbol: plan.TokenSymbol,
		Rate:        plan.Rate,
		DryRun:      e.cfg.DryRun,
		StartedAt:   e.cfg.Clock.Now().UTC(),
		Outcomes:    make([]Outcome, 0, len(plan.Entries)),
	}

	var runErr error

	for _, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			e.abort(report, err)
			runErr = err
			break
		}

		if e.cfg.DryRun {
			e.record(report, Outcome{
				Account:   entry.Account,
				Amount:    entry.Amount,
				Status:    StatusSkippedDryRun,
				Timestamp: e.cfg.Clock.Now().UTC(),
			})
			continue
		}

		outcome, err := e.broadcastEntry(ctx, entry)
		e.record(report, outcome)
		if err != nil {
			e.abort(report, err)
			runErr = err
			break
		}

		if err := e.delay(ctx); err != nil {
			e.abort(report, err)
			runErr = err
			break
		}
	}

	report.FinishedAt = e.cfg.Clock.Now().UTC()
	e.cfg.Events.RunSealed(report)
	return report, runErr
}

// broadcastEntry drives the retry machine for one entry. The returned error
// is nil unless the run as a whole must stop (fatal failure or
// cancellation); an exhausted or non-transient entry failure comes back as
// a failed outcome with a nil error.
func (e *Executor) broadcastEntry(ctx context.Context, entry Entry) (Outcome, error) {
	machine := newBroadcastState(e.cfg.MaxRetries)
	out := Outcome{
		Account: entry.Account,
		Amount:  entry.Amount,
	}

	for {
		e.cfg.Events.EntryAttempted(entry, machine.retries+1)
		txID, err := e.cfg.Broadcaster.Transfer(ctx, entry.Account, entry.Amount)

		switch machine.observe(err) {
		case stateSucceeded:
			out.Status = StatusSent
			out.TxID = txID
			out.Retries = machine.retries
			out.Timestamp = e.cfg.Clock.Now().UTC()
			return out, nil

		case stateFailed:
			out.Status = StatusFailed
			out.ErrorDetail = err.Error()
			out.Retries = machine.retries
			out.Timestamp = e.cfg.Clock.Now().UTC()
			if IsFatal(err) {
				return out, err
			}
			return out, nil

		case stateRetrying:
			if derr := e.delay(ctx); derr != nil {
				// The entry was attempted, so it still gets an outcome in
				// the partial report.
				out.Status = StatusFailed
				out.ErrorDetail = fmt.Sprintf("%v (run cancelled during retry delay)", err)
				out.Retries = machine.retries
				out.Timestamp = e.cfg.Clock.Now().UTC()
				return out, derr
			}
		}
	}
}

func (e *Executor) record(report *Report, out Outcome) {
	report.Outcomes = append(report.Outcomes, out)
	e.cfg.Events.EntryResult(out)
}

func (e *Executor) abort(report *Report, err error) {
	report.Aborted = true
	report.AbortReason = err.Error()
}

func (e *Executor) delay(ctx context.Context) error {
	if e.cfg.RateLimitDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.cfg.Clock.After(e.cfg.RateLimitDelay):
		return nil
	}
}

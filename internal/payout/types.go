package payout

import (
	"time"

	"github.com/shopspring/decimal"
)

// HolderRecord is one (account, balance) pair from a richlist snapshot.
// Balances are exact decimals; ledger amounts never touch binary floats.
type HolderRecord struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// Entry is one computed payout, immutable once created.
type Entry struct {
	Account       string          `json:"account"`
	SourceBalance decimal.Decimal `json:"source_balance"`
	Amount        decimal.Decimal `json:"payout_amount"`
}

// Plan is the ordered set of payouts for one distribution run. Order follows
// the input richlist after filtering, so re-running over the same snapshot
// yields an identical plan. The plan carries no timestamps for that reason.
type Plan struct {
	TokenSymbol     string          `json:"token_symbol"`
	Rate            decimal.Decimal `json:"rate"`
	MinDenomination decimal.Decimal `json:"min_denomination"`
	Entries         []Entry         `json:"entries"`
}

// TotalAmount sums the planned payout amounts.
func (p *Plan) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Status of one attempted plan entry.
type Status string

const (
	StatusSent          Status = "sent"
	StatusFailed        Status = "failed"
	StatusSkippedDryRun Status = "skipped_dry_run"
)

// Outcome records what happened to one plan entry.
type Outcome struct {
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Status      Status          `json:"status"`
	TxID        string          `json:"tx_id,omitempty"`
	ErrorDetail string          `json:"error_detail,omitempty"`
	Retries     int             `json:"retries"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Report accumulates outcomes in plan order during execution and is sealed
// when the run ends. A partial report from an aborted or cancelled run is
// sealed the same way; it is never discarded.
type Report struct {
	TokenSymbol string          `json:"token_symbol"`
	Rate        decimal.Decimal `json:"rate"`
	DryRun      bool            `json:"dry_run"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Aborted     bool            `json:"aborted"`
	AbortReason string          `json:"abort_reason,omitempty"`
	Outcomes    []Outcome       `json:"outcomes"`
}

// RunSummary holds the run-level aggregates for operator output and the
// audit record.
type RunSummary struct {
	Attempted       int             `json:"total_attempted"`
	Sent            int             `json:"total_sent"`
	Failed          int             `json:"total_failed"`
	SkippedDryRun   int             `json:"total_skipped_dry_run"`
	TotalAmountSent decimal.Decimal `json:"total_amount_sent"`
	SuccessRate     float64         `json:"success_rate"`
	StartedAt       time.Time       `json:"started_at"`
	FinishedAt      time.Time       `json:"finished_at"`
	Aborted         bool            `json:"aborted"`
	AbortReason     string          `json:"abort_reason,omitempty"`
}

// Summary computes the aggregates. SuccessRate is the fraction of live
// attempts (sent + failed) that were sent; a pure dry run reports 0.
func (r *Report) Summary() RunSummary {
	s := RunSummary{
		TotalAmountSent: decimal.Zero,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		Aborted:         r.Aborted,
		AbortReason:     r.AbortReason,
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSent:
			s.Sent++
			s.TotalAmountSent = s.TotalAmountSent.Add(o.Amount)
		case StatusFailed:
			s.Failed++
		case StatusSkippedDryRun:
			s.SkippedDryRun++
		}
	}
	s.Attempted = len(r.Outcomes)
	if live := s.Sent + s.Failed; live > 0 {
		s.SuccessRate = float64(s.Sent) / float64(live)
	}
	return s
}

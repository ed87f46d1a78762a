package payout

import (
	logging "payout-engine/internal/infra/log"

	"go.uber.org/zap"
)

// ZapSink renders run events through the shared loggers: successes and
// failures reach the console, everything lands in the file log.
type ZapSink struct{}

func (ZapSink) PlanBuilt(p *Plan) {
	logging.LogSuccess("Payout plan built",
		zap.String("token", p.TokenSymbol),
		zap.Int("entries", len(p.Entries)),
		zap.String("rate", p.Rate.String()),
		zap.String("totalAmount", p.TotalAmount().String()))
}

func (ZapSink) EntryAttempted(e Entry, attempt int) {
	logging.LogInfo("Sending payout",
		zap.String("account", e.Account),
		zap.String("amount", e.Amount.String()),
		zap.Int("attempt", attempt))
}

func (ZapSink) EntryResult(o Outcome) {
	switch o.Status {
	case StatusSent:
		logging.LogSuccess("Payout sent",
			zap.String("account", o.Account),
			zap.String("amount", o.Amount.String()),
			zap.String("txId", o.TxID),
			zap.Int("retries", o.Retries))
	case StatusFailed:
		logging.LogError("Payout failed",
			zap.String("account", o.Account),
			zap.String("amount", o.Amount.String()),
			zap.Int("retries", o.Retries),
			zap.String("error", o.ErrorDetail))
	case StatusSkippedDryRun:
		logging.LogInfo("Payout skipped (dry run)",
			zap.String("account", o.Account),
			zap.String("amount", o.Amount.String()))
	}
}

func (ZapSink) RunSealed(r *Report) {
	s := r.Summary()
	if r.Aborted {
		logging.LogError("Payout run aborted",
			zap.String("reason", r.AbortReason),
			zap.Int("attempted", s.Attempted),
			zap.Int("sent", s.Sent),
			zap.Int("failed", s.Failed))
		return
	}
	logging.LogSuccess("Payout run finished",
		zap.Int("attempted", s.Attempted),
		zap.Int("sent", s.Sent),
		zap.Int("failed", s.Failed),
		zap.Int("skippedDryRun", s.SkippedDryRun),
		zap.String("totalSent", s.TotalAmountSent.String()))
}

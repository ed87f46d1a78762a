package payout

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PlanConfig carries the numeric policy for one distribution run. It is
// constructed once from the validated application config and passed in;
// the planner reads no ambient state.
type PlanConfig struct {
	TokenSymbol     string
	Rate            decimal.Decimal
	MinDenomination decimal.Decimal
	Blacklist       map[string]struct{}
}

// Validate rejects configurations that must never reach the network.
func (c *PlanConfig) Validate() error {
	if !c.Rate.IsPositive() || c.Rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w, got %s", ErrRateOutOfRange, c.Rate)
	}
	if !c.MinDenomination.IsPositive() {
		return fmt.Errorf("%w, got %s", ErrMinDenomination, c.MinDenomination)
	}
	return nil
}

// BuildPlan turns a richlist snapshot into the executable payout plan:
// blacklisted accounts are dropped, amounts are computed with the floor
// policy, and entries below the minimum denomination are dropped. Input
// order is preserved among survivors, so identical input yields an
// identical plan.
func BuildPlan(holders []HolderRecord, cfg PlanConfig) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(holders))
	for _, h := range holders {
		if IsExcluded(h.Account, cfg.Blacklist) {
			continue
		}
		amount := ComputeAmount(h.Balance, cfg.Rate, cfg.MinDenomination)
		if !IsPayable(amount, cfg.MinDenomination) {
			continue
		}
		entries = append(entries, Entry{
			Account:       h.Account,
			SourceBalance: h.Balance,
			Amount:        amount,
		})
	}

	return &Plan{
		TokenSymbol:     cfg.TokenSymbol,
		Rate:            cfg.Rate,
		MinDenomination: cfg.MinDenomination,
		Entries:         entries,
	}, nil
}

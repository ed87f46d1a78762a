package payout

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Payout policy: pure functions, no I/O. Everything here is deterministic so
// a plan can be rebuilt and audited from the same snapshot.

// IsExcluded reports whether account is blacklisted. Matching is exact and
// case-sensitive; ledger account names are canonical lowercase, so no
// folding happens here.
func IsExcluded(account string, blacklist map[string]struct{}) bool {
	_, ok := blacklist[account]
	return ok
}

// BlacklistSet builds the lookup set from a configured account list,
// trimming whitespace and dropping empties.
func BlacklistSet(accounts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		set[a] = struct{}{}
	}
	return set
}

// ComputeAmount multiplies balance by rate and floors the result to
// minDenomination granularity. Flooring, never rounding, guarantees the
// distributor cannot send more value than the rate authorizes. The QuoRem
// split keeps the arithmetic exact at any magnitude.
//
// minDenomination must be positive; a non-positive granularity yields zero,
// the safe direction.
func ComputeAmount(balance, rate, minDenomination decimal.Decimal) decimal.Decimal {
	if !minDenomination.IsPositive() {
		return decimal.Zero
	}
	raw := balance.Mul(rate)
	q, _ := raw.QuoRem(minDenomination, 0)
	return q.Mul(minDenomination)
}

// IsPayable reports whether amount clears the minimum transferable unit.
func IsPayable(amount, minDenomination decimal.Decimal) bool {
	if !minDenomination.IsPositive() {
		return false
	}
	return amount.GreaterThanOrEqual(minDenomination)
}

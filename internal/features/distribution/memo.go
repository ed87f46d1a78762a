package distribution

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MemoBuilder resolves a transfer memo template into a per-amount
// function for the broadcasters. Recognized placeholders: {amount},
// {rate}, {token}, {query}. Unknown placeholders pass through verbatim.
func MemoBuilder(template, rate, tokenName, tokenQuery string) func(decimal.Decimal) string {
	static := strings.NewReplacer(
		"{rate}", rate,
		"{token}", tokenName,
		"{query}", tokenQuery,
	).Replace(template)

	return func(amount decimal.Decimal) string {
		return strings.ReplaceAll(static, "{amount}", amount.String())
	}
}

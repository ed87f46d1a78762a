package payout

import (
	"context"

	"github.com/shopspring/decimal"
)

// RichlistFetcher retrieves the raw holder list for a token. Implementations
// return records as the ledger reports them; filtering belongs to the
// planner.
type RichlistFetcher interface {
	Richlist(ctx context.Context, symbol string) ([]HolderRecord, error)
}

// TransferBroadcaster submits one signed transfer to the ledger.
// Implementations are constructed holding the funding account, token symbol,
// memo builder and signing credential for the whole run; the executor only
// supplies the recipient and amount.
//
// Error classification contract: wrap retry-worthy failures with Transient,
// failures that doom every remaining transfer with Fatal; any other error
// fails the entry once with no retry.
type TransferBroadcaster interface {
	Transfer(ctx context.Context, account string, amount decimal.Decimal) (txID string, err error)
}

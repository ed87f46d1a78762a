package hiveengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

// richlistPageSize is the gateway's maximum page size for table queries.
const richlistPageSize = 1000

var _ payout.RichlistFetcher = (*Client)(nil)

// balanceRow is one row of the tokens contract balances table. Balances
// arrive as strings and stay exact.
type balanceRow struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
	Balance string `json:"balance"`
}

// Richlist returns every holder of the given token, paging through the
// balances table until a short page. Rows come back in table order and are
// not filtered here; exclusions are planner policy.
func (c *Client) Richlist(ctx context.Context, symbol string) ([]payout.HolderRecord, error) {
	if symbol == "" {
		return nil, fmt.Errorf("token symbol is required")
	}

	var holders []payout.HolderRecord
	for offset := 0; ; offset += richlistPageSize {
		params := tableQuery{
			Contract: "tokens",
			Table:    "balances",
			Query:    map[string]string{"symbol": symbol},
			Limit:    richlistPageSize,
			Offset:   offset,
		}

		raw, err := c.call(ctx, contractsEndpoint, "find", params)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch richlist page at offset %d: %w", offset, err)
		}

		var rows []balanceRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("failed to unmarshal balances page: %w", err)
		}

		for _, row := range rows {
			balance, err := decimal.NewFromString(row.Balance)
			if err != nil {
				// A corrupt row silently skipped would underpay that
				// holder, so the whole fetch fails instead.
				return nil, fmt.Errorf("malformed balance %q for account %q: %w", row.Balance, row.Account, err)
			}
			holders = append(holders, payout.HolderRecord{
				Account: row.Account,
				Balance: balance,
			})
		}

		if len(rows) < richlistPageSize {
			break
		}
	}

	logging.LogSuccess("Richlist fetched",
		zap.String("symbol", symbol),
		zap.Int("holders", len(holders)))

	return holders, nil
}

// TokenInfo is the tokens contract metadata row for one token.
type TokenInfo struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Issuer    string `json:"issuer"`
	Precision int    `json:"precision"`
	Supply    string `json:"supply"`
	MaxSupply string `json:"maxSupply"`
}

// MinDenomination is the smallest transferable unit implied by the token's
// precision, e.g. precision 3 means 0.001.
func (i *TokenInfo) MinDenomination() decimal.Decimal {
	return decimal.New(1, int32(-i.Precision))
}

// FetchTokenInfo looks up a token's metadata. It is how the engine derives
// the payout token's minimum denomination when none is configured.
func (c *Client) FetchTokenInfo(ctx context.Context, symbol string) (*TokenInfo, error) {
	if symbol == "" {
		return nil, fmt.Errorf("token symbol is required")
	}

	params := tableQuery{
		Contract: "tokens",
		Table:    "tokens",
		Query:    map[string]string{"symbol": symbol},
	}

	raw, err := c.call(ctx, contractsEndpoint, "findOne", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token info for %s: %w", symbol, err)
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("token %s does not exist", symbol)
	}

	var info TokenInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token info: %w", err)
	}
	if info.Precision < 0 || info.Precision > 8 {
		return nil, fmt.Errorf("token %s reports precision %d, expected 0..8", symbol, info.Precision)
	}

	return &info, nil
}

//go:build integration

package tests

import (
	"context"
	"os"
	"testing"
	"time"

	hiveengine "payout-engine/internal/clients_api/hiveengine"
)

func engineClient() *hiveengine.Client {
	url := os.Getenv("ENGINE_API_URL")
	if url == "" {
		url = hiveengine.MainnetAPI
	}
	return hiveengine.NewClient(url)
}

func querySymbol() string {
	if s := os.Getenv("TOKEN_QUERY"); s != "" {
		return s
	}
	// BEE is the sidechain's native token, it always exists and has holders.
	return "BEE"
}

func TestIntegration_HiveEngine_FetchTokenInfo(t *testing.T) {
	c := engineClient()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	info, err := c.FetchTokenInfo(ctx, querySymbol())
	if err != nil {
		t.Fatalf("FetchTokenInfo failed: %v", err)
	}
	if info == nil {
		t.Fatalf("expected token info, got nil")
	}
	if info.Symbol != querySymbol() {
		t.Fatalf("expected symbol %s, got %s", querySymbol(), info.Symbol)
	}
	if info.Precision < 0 || info.Precision > 8 {
		t.Fatalf("implausible precision %d", info.Precision)
	}
	if info.MinDenomination().IsZero() {
		t.Fatalf("min denomination must be positive for precision %d", info.Precision)
	}
}

func TestIntegration_HiveEngine_Richlist(t *testing.T) {
	c := engineClient()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	t.Cleanup(cancel)

	holders, err := c.Richlist(ctx, querySymbol())
	if err != nil {
		t.Fatalf("Richlist failed: %v", err)
	}
	if len(holders) == 0 {
		t.Fatalf("expected at least one holder of %s", querySymbol())
	}

	seen := make(map[string]bool, len(holders))
	for _, h := range holders {
		if h.Account == "" {
			t.Fatalf("holder with empty account in richlist")
		}
		if seen[h.Account] {
			t.Fatalf("duplicate account %q in richlist", h.Account)
		}
		seen[h.Account] = true
		if h.Balance.IsNegative() {
			t.Fatalf("negative balance %s for account %q", h.Balance, h.Account)
		}
	}
}

func TestIntegration_HiveEngine_UnknownTokenHasNoInfo(t *testing.T) {
	c := engineClient()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	_, err := c.FetchTokenInfo(ctx, "ZZZNOSUCHTOKENZZZ")
	if err == nil {
		t.Fatalf("expected an error for a token that does not exist")
	}
}

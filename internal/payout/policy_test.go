package payout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestPayout_Policy_ComputeAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		balance  string
		rate     string
		minDenom string
		want     string
	}{
		{
			name:     "whole balance floors to itself",
			balance:  "100",
			rate:     "0.25",
			minDenom: "0.001",
			want:     "25",
		},
		{
			name:     "dust balance floors to zero",
			balance:  "0.0001",
			rate:     "0.25",
			minDenom: "0.001",
			want:     "0",
		},
		{
			name:     "floors never round up",
			balance:  "7",
			rate:     "0.1",
			minDenom: "0.5",
			want:     "0.5",
		},
		{
			name:     "exact at repeating float boundary",
			balance:  "3",
			rate:     "0.1",
			minDenom: "0.001",
			want:     "0.3",
		},
		{
			name:     "large balance keeps full precision",
			balance:  "123456789012.12345678",
			rate:     "0.25",
			minDenom: "0.00000001",
			want:     "30864197253.03086419",
		},
		{
			name:     "rate of one passes balance through",
			balance:  "41.5",
			rate:     "1",
			minDenom: "0.001",
			want:     "41.5",
		},
		{
			name:     "zero balance stays zero",
			balance:  "0",
			rate:     "0.25",
			minDenom: "0.001",
			want:     "0",
		},
		{
			name:     "non-positive granularity yields zero",
			balance:  "100",
			rate:     "0.25",
			minDenom: "0",
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ComputeAmount(dec(t, tt.balance), dec(t, tt.rate), dec(t, tt.minDenom))
			require.True(t, got.Equal(dec(t, tt.want)),
				"ComputeAmount(%s, %s, %s) = %s, want %s", tt.balance, tt.rate, tt.minDenom, got, tt.want)
		})
	}
}

func TestPayout_Policy_ComputeAmount_Monotonic(t *testing.T) {
	t.Parallel()

	rate := dec(t, "0.25")
	minDenom := dec(t, "0.001")

	balances := []string{"0", "0.001", "0.004", "0.0041", "1", "1.5", "99.999", "100", "5000.12345"}
	prev := decimal.NewFromInt(-1)
	for _, b := range balances {
		amount := ComputeAmount(dec(t, b), rate, minDenom)
		require.True(t, amount.GreaterThanOrEqual(prev),
			"amount must not decrease as balance grows: balance=%s amount=%s prev=%s", b, amount, prev)
		prev = amount
	}
}

func TestPayout_Policy_IsExcluded(t *testing.T) {
	t.Parallel()

	blacklist := BlacklistSet([]string{"ufm.pay", "upfundme"})

	require.True(t, IsExcluded("ufm.pay", blacklist))
	require.True(t, IsExcluded("upfundme", blacklist))
	require.False(t, IsExcluded("alice", blacklist))
	// Matching is case-sensitive; ledger names are canonical lowercase.
	require.False(t, IsExcluded("UFM.PAY", blacklist))
	require.False(t, IsExcluded("", blacklist))
	require.False(t, IsExcluded("alice", nil))
}

func TestPayout_Policy_BlacklistSet(t *testing.T) {
	t.Parallel()

	set := BlacklistSet([]string{" ufm.pay ", "", "upfundme", "  "})
	require.Len(t, set, 2)
	require.Contains(t, set, "ufm.pay")
	require.Contains(t, set, "upfundme")
}

func TestPayout_Policy_IsPayable(t *testing.T) {
	t.Parallel()

	minDenom := dec(t, "0.001")

	require.True(t, IsPayable(dec(t, "0.001"), minDenom), "amount equal to the floor is payable")
	require.True(t, IsPayable(dec(t, "25"), minDenom))
	require.False(t, IsPayable(dec(t, "0.0009"), minDenom))
	require.False(t, IsPayable(dec(t, "0"), minDenom))
	require.False(t, IsPayable(dec(t, "-1"), minDenom))
	require.False(t, IsPayable(dec(t, "1"), dec(t, "0")), "unusable granularity never payable")
}

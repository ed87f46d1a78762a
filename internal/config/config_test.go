package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPayout_Config_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "0.250", cfg.Payout.Rate)
	require.Equal(t, "ARCHONM", cfg.Payout.TokenQuery)
	require.Equal(t, "ARCHON", cfg.Payout.TokenName)
	require.Equal(t, []string{"ufm.pay", "upfundme"}, cfg.Payout.BlacklistedAccounts)
	require.Equal(t, DefaultMemoTemplate, cfg.Payout.MemoTemplate)
	require.False(t, cfg.Payout.DryRun)
	require.Equal(t, time.Second, cfg.Payout.RateLimitDelay)
	require.Equal(t, 3, cfg.Payout.MaxRetries)

	require.Equal(t, "https://api.hive-engine.com/rpc/", cfg.Hive.EngineAPIURL)
	require.Equal(t, BroadcastModeBridge, cfg.Broadcast.Mode)
	require.Equal(t, 30*time.Second, cfg.Broadcast.SignerTimeout)
	require.Equal(t, "10:00", cfg.Schedule.PayoutTime)
	require.Equal(t, "UTC", cfg.Schedule.Timezone)
	require.Equal(t, "", cfg.Metrics.Addr)
	require.Equal(t, "data_out", cfg.Storage.DataDir)
}

func TestPayout_Config_EnvOverrides(t *testing.T) {
	t.Setenv("PAYOUT_RATE", "0.5")
	t.Setenv("TOKEN_QUERY", "LEOM")
	t.Setenv("TOKEN_NAME", "LEO")
	t.Setenv("MIN_DENOMINATION", "0.001")
	t.Setenv("BLACKLISTED_ACCOUNTS", "spam1, spam2,")
	t.Setenv("PAYOUT_ACCOUNT", "leo-pool")
	t.Setenv("DRY_RUN", "yes")
	t.Setenv("RATE_LIMIT_DELAY", "250ms")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("BROADCAST_MODE", "exec")
	t.Setenv("SIGNER_SCRIPT", "/opt/signer/sign.sh")
	t.Setenv("PAYOUT_TIME", "21:30")
	t.Setenv("DATA_DIR", "/var/lib/payouts")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "0.5", cfg.Payout.Rate)
	require.Equal(t, "LEOM", cfg.Payout.TokenQuery)
	require.Equal(t, "LEO", cfg.Payout.TokenName)
	require.Equal(t, "0.001", cfg.Payout.MinDenomination)
	require.Equal(t, []string{"spam1", "spam2"}, cfg.Payout.BlacklistedAccounts,
		"comma list is trimmed and empties dropped")
	require.Equal(t, "leo-pool", cfg.Payout.Account)
	require.True(t, cfg.Payout.DryRun, "DRY_RUN=yes is accepted")
	require.Equal(t, 250*time.Millisecond, cfg.Payout.RateLimitDelay)
	require.Equal(t, 5, cfg.Payout.MaxRetries)
	require.Equal(t, BroadcastModeExec, cfg.Broadcast.Mode)
	require.Equal(t, "/opt/signer/sign.sh", cfg.Broadcast.SignerScript)
	require.Equal(t, "21:30", cfg.Schedule.PayoutTime)
	require.Equal(t, "/var/lib/payouts", cfg.Storage.DataDir)
}

func TestPayout_Config_ValidationErrors(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		errPart string
	}{
		{"zero rate", map[string]string{"PAYOUT_RATE": "0"}, "(0, 1]"},
		{"negative rate", map[string]string{"PAYOUT_RATE": "-0.1"}, "(0, 1]"},
		{"rate above one", map[string]string{"PAYOUT_RATE": "1.5"}, "(0, 1]"},
		{"unparseable rate", map[string]string{"PAYOUT_RATE": "a-quarter"}, "not a decimal"},
		{"negative min denomination", map[string]string{"MIN_DENOMINATION": "-0.001"}, "positive"},
		{"empty token query", map[string]string{"TOKEN_QUERY": " "}, "token_query"},
		{"negative delay", map[string]string{"RATE_LIMIT_DELAY": "-1s"}, "rate_limit_delay"},
		{"negative retries", map[string]string{"MAX_RETRIES": "-1"}, "max_retries"},
		{"unknown broadcast mode", map[string]string{"BROADCAST_MODE": "carrier-pigeon"}, "broadcast.mode"},
		{"payout time out of range", map[string]string{"PAYOUT_TIME": "25:00"}, "time of day"},
		{"payout time not a time", map[string]string{"PAYOUT_TIME": "sometime"}, "HH:MM"},
		{"unknown timezone", map[string]string{"SCHEDULE_TZ": "Nowhere/City"}, "timezone"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestPayout_Config_ValidateLive(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Payout: PayoutConfig{Account: "archon-pool"},
			Hive:   HiveConfig{ActiveWIF: "5Kwif"},
			Broadcast: BroadcastConfig{
				Mode:         BroadcastModeBridge,
				BridgeURL:    "http://127.0.0.1:8091",
				SignerScript: "etc/tools/sign-transfer.mjs",
			},
		}
	}

	cfg := base()
	require.NoError(t, cfg.ValidateLive())

	cfg = base()
	cfg.Payout.Account = ""
	require.ErrorContains(t, cfg.ValidateLive(), "PAYOUT_ACCOUNT")

	cfg = base()
	cfg.Hive.ActiveWIF = ""
	require.ErrorContains(t, cfg.ValidateLive(), "ACTIVE_WIF")

	cfg = base()
	cfg.Broadcast.BridgeURL = ""
	require.ErrorContains(t, cfg.ValidateLive(), "SIGNER_BRIDGE_URL")

	cfg = base()
	cfg.Broadcast.Mode = BroadcastModeExec
	cfg.Broadcast.SignerScript = ""
	require.ErrorContains(t, cfg.ValidateLive(), "SIGNER_SCRIPT")
}

func TestPayout_Config_ParseClockTime(t *testing.T) {
	t.Parallel()

	hour, minute, err := ParseClockTime("10:00")
	require.NoError(t, err)
	require.Equal(t, 10, hour)
	require.Equal(t, 0, minute)

	hour, minute, err = ParseClockTime("21:30")
	require.NoError(t, err)
	require.Equal(t, 21, hour)
	require.Equal(t, 30, minute)

	_, _, err = ParseClockTime("24:00")
	require.Error(t, err)
	_, _, err = ParseClockTime("10:60")
	require.Error(t, err)
	_, _, err = ParseClockTime("")
	require.Error(t, err)
	_, _, err = ParseClockTime("noon")
	require.Error(t, err)
}

func TestPayout_Config_DecimalAccessors(t *testing.T) {
	t.Parallel()

	p := PayoutConfig{Rate: "0.250", MinDenomination: ""}

	rate, err := p.RateDecimal()
	require.NoError(t, err)
	require.True(t, rate.Equal(decimal.RequireFromString("0.25")))

	minDenom, err := p.MinDenominationDecimal()
	require.NoError(t, err)
	require.True(t, minDenom.IsZero(), "unset means derive from token precision")

	p.MinDenomination = "0.001"
	minDenom, err = p.MinDenominationDecimal()
	require.NoError(t, err)
	require.True(t, minDenom.Equal(decimal.RequireFromString("0.001")))
}

package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the engine's whole configuration, resolved once at startup.
// Nothing else in the codebase reads environment variables after this.
type Config struct {
	Payout    PayoutConfig    `mapstructure:"payout"`
	Hive      HiveConfig      `mapstructure:"hive"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type PayoutConfig struct {
	Rate                string        `mapstructure:"rate"`
	TokenQuery          string        `mapstructure:"token_query"`
	TokenName           string        `mapstructure:"token_name"`
	MinDenomination     string        `mapstructure:"min_denomination"`
	BlacklistedAccounts []string      `mapstructure:"blacklisted_accounts"`
	Account             string        `mapstructure:"account"`
	MemoTemplate        string        `mapstructure:"memo_template"`
	DryRun              bool          `mapstructure:"dry_run"`
	RateLimitDelay      time.Duration `mapstructure:"rate_limit_delay"`
	MaxRetries          int           `mapstructure:"max_retries"`
}

// RateDecimal parses the configured payout rate. LoadConfig has already
// validated it, so errors here mean the Config was built by hand.
func (p PayoutConfig) RateDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(p.Rate)
}

// MinDenominationDecimal parses the explicit minimum denomination. A zero
// value with nil error means none is configured and the token's precision
// decides.
func (p PayoutConfig) MinDenominationDecimal() (decimal.Decimal, error) {
	if p.MinDenomination == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(p.MinDenomination)
}

type HiveConfig struct {
	NodeURL      string `mapstructure:"node_url"`
	EngineAPIURL string `mapstructure:"engine_api_url"`
	ActiveWIF    string `mapstructure:"active_wif"`
	PostingWIF   string `mapstructure:"posting_wif"`
}

type BroadcastConfig struct {
	Mode          string        `mapstructure:"mode"`
	BridgeURL     string        `mapstructure:"bridge_url"`
	SignerScript  string        `mapstructure:"signer_script"`
	SignerTimeout time.Duration `mapstructure:"signer_timeout"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type ScheduleConfig struct {
	PayoutTime string `mapstructure:"payout_time"`
	Timezone   string `mapstructure:"timezone"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

const (
	BroadcastModeBridge = "bridge"
	BroadcastModeExec   = "exec"

	// DefaultMemoTemplate matches the memo the payout script always sent.
	DefaultMemoTemplate = "{amount} = {rate} {token} mining share per {query}"
)

// LoadConfig resolves configuration in layers: defaults, then config.yaml,
// then .env, then real environment variables (under the original script's
// names), then command-line flags.
func LoadConfig() (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.ReadInConfig() // optional file, ignore the error

	v.SetConfigType("env")
	v.SetConfigFile(".env")
	v.MergeInConfig() // optional file, ignore the error

	v.AutomaticEnv()

	setupEnvAliases(v)

	setupFlags(v)

	// Operators of the original script set DRY_RUN=yes. Viper only
	// understands strict booleans, so normalize before unmarshalling.
	if raw := strings.ToLower(strings.TrimSpace(v.GetString("payout.dry_run"))); raw == "yes" || raw == "y" {
		v.Set("payout.dry_run", true)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// The blacklist can arrive as a comma-separated string (.env) or a
	// list (config.yaml). Normalize both into a trimmed slice.
	if raw := v.Get("payout.blacklisted_accounts"); raw != nil {
		config.Payout.BlacklistedAccounts = normalizeList(raw)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func normalizeList(raw interface{}) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		if val == "" {
			return []string{}
		}
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []interface{}:
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	default:
		return []string{}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setupEnvAliases(v *viper.Viper) {
	// The env names are the ones the original payout script documented,
	// so an existing .env keeps working unchanged.

	// Payout
	v.BindEnv("payout.rate", "PAYOUT_RATE")
	v.BindEnv("payout.token_query", "TOKEN_QUERY")
	v.BindEnv("payout.token_name", "TOKEN_NAME")
	v.BindEnv("payout.min_denomination", "MIN_DENOMINATION")
	v.BindEnv("payout.blacklisted_accounts", "BLACKLISTED_ACCOUNTS")
	v.BindEnv("payout.account", "PAYOUT_ACCOUNT")
	v.BindEnv("payout.memo_template", "MEMO_TEMPLATE")
	v.BindEnv("payout.dry_run", "DRY_RUN")
	v.BindEnv("payout.rate_limit_delay", "RATE_LIMIT_DELAY")
	v.BindEnv("payout.max_retries", "MAX_RETRIES")

	// Hive
	v.BindEnv("hive.node_url", "NODE_URL")
	v.BindEnv("hive.engine_api_url", "HIVE_ENGINE_API_URL")
	v.BindEnv("hive.active_wif", "ACTIVE_WIF")
	v.BindEnv("hive.posting_wif", "POSTING_WIF")

	// Broadcast
	v.BindEnv("broadcast.mode", "BROADCAST_MODE")
	v.BindEnv("broadcast.bridge_url", "SIGNER_BRIDGE_URL")
	v.BindEnv("broadcast.signer_script", "SIGNER_SCRIPT")
	v.BindEnv("broadcast.signer_timeout", "SIGNER_TIMEOUT")

	// Telegram
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	// Schedule
	v.BindEnv("schedule.payout_time", "PAYOUT_TIME")
	v.BindEnv("schedule.timezone", "SCHEDULE_TZ")

	// Metrics / storage
	v.BindEnv("metrics.addr", "METRICS_ADDR")
	v.BindEnv("storage.data_dir", "DATA_DIR")
}

func setDefaults(v *viper.Viper) {
	// Payout defaults mirror the original script.
	v.SetDefault("payout.rate", "0.250")
	v.SetDefault("payout.token_query", "ARCHONM")
	v.SetDefault("payout.token_name", "ARCHON")
	v.SetDefault("payout.min_denomination", "")
	v.SetDefault("payout.blacklisted_accounts", []string{"ufm.pay", "upfundme"})
	v.SetDefault("payout.account", "")
	v.SetDefault("payout.memo_template", DefaultMemoTemplate)
	v.SetDefault("payout.dry_run", false)
	v.SetDefault("payout.rate_limit_delay", "1s")
	v.SetDefault("payout.max_retries", 3)

	// Hive
	v.SetDefault("hive.node_url", "https://api.hive.blog")
	v.SetDefault("hive.engine_api_url", "https://api.hive-engine.com/rpc/")
	v.SetDefault("hive.active_wif", "")
	v.SetDefault("hive.posting_wif", "")

	// Broadcast
	v.SetDefault("broadcast.mode", BroadcastModeBridge)
	v.SetDefault("broadcast.bridge_url", "http://127.0.0.1:8091")
	v.SetDefault("broadcast.signer_script", "etc/tools/sign-transfer.mjs")
	v.SetDefault("broadcast.signer_timeout", "30s")

	// Telegram
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	// Schedule
	v.SetDefault("schedule.payout_time", "10:00")
	v.SetDefault("schedule.timezone", "UTC")

	// Metrics / storage
	v.SetDefault("metrics.addr", "")
	v.SetDefault("storage.data_dir", "data_out")
}

var flagsOnce sync.Once

func setupFlags(v *viper.Viper) {
	// Flags are registered once; LoadConfig may run more than once in a
	// process (tests do this) and pflag panics on redefinition. Cobra owns
	// the subcommand flags, so unknown flags are left for it.
	flagsOnce.Do(func() {
		pflag.String("payout.rate", "0.250", "Payout rate per whole held token (env: PAYOUT_RATE)")
		pflag.String("payout.token_query", "ARCHONM", "Token whose richlist is paid on (env: TOKEN_QUERY)")
		pflag.String("payout.token_name", "ARCHON", "Token that gets paid out (env: TOKEN_NAME)")
		pflag.String("payout.min_denomination", "", "Smallest payable unit, empty derives from token precision (env: MIN_DENOMINATION)")
		pflag.String("payout.blacklisted_accounts", "", "Comma-separated accounts excluded from payouts (env: BLACKLISTED_ACCOUNTS)")
		pflag.String("payout.account", "", "Funding account transfers are sent from (env: PAYOUT_ACCOUNT)")
		pflag.String("payout.memo_template", DefaultMemoTemplate, "Transfer memo template (env: MEMO_TEMPLATE)")
		pflag.Bool("payout.dry_run", false, "Plan and record without broadcasting (env: DRY_RUN)")
		pflag.String("payout.rate_limit_delay", "1s", "Pause between broadcasts (env: RATE_LIMIT_DELAY)")
		pflag.Int("payout.max_retries", 3, "Retry budget per transfer for transient failures (env: MAX_RETRIES)")

		pflag.String("hive.node_url", "https://api.hive.blog", "Hive node URL (env: NODE_URL)")
		pflag.String("hive.engine_api_url", "https://api.hive-engine.com/rpc/", "Hive Engine RPC gateway (env: HIVE_ENGINE_API_URL)")

		pflag.String("broadcast.mode", BroadcastModeBridge, "Broadcast mode: bridge or exec (env: BROADCAST_MODE)")
		pflag.String("broadcast.bridge_url", "http://127.0.0.1:8091", "Signer bridge URL (env: SIGNER_BRIDGE_URL)")
		pflag.String("broadcast.signer_script", "etc/tools/sign-transfer.mjs", "Signer script path for exec mode (env: SIGNER_SCRIPT)")
		pflag.String("broadcast.signer_timeout", "30s", "Signer request timeout (env: SIGNER_TIMEOUT)")

		pflag.String("telegram.bot_token", "", "Telegram bot token for run summaries (env: TELEGRAM_BOT_TOKEN)")
		pflag.String("telegram.chat_id", "", "Telegram chat for run summaries (env: TELEGRAM_CHAT_ID)")

		pflag.String("schedule.payout_time", "10:00", "Daily payout time HH:MM (env: PAYOUT_TIME)")
		pflag.String("schedule.timezone", "UTC", "Timezone for the payout time (env: SCHEDULE_TZ)")

		pflag.String("metrics.addr", "", "Prometheus listen address, empty disables (env: METRICS_ADDR)")
		pflag.String("storage.data_dir", "data_out", "Directory for audit records and blacklist file (env: DATA_DIR)")

		pflag.CommandLine.ParseErrorsWhitelist.UnknownFlags = true
		pflag.Parse()
	})

	v.BindPFlags(pflag.CommandLine)
}

func validateConfig(cfg *Config) error {
	rate, err := cfg.Payout.RateDecimal()
	if err != nil {
		return fmt.Errorf("payout.rate is not a decimal: %q", cfg.Payout.Rate)
	}
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("payout.rate must be in (0, 1], got %s", rate)
	}

	if cfg.Payout.MinDenomination != "" {
		minDenom, err := cfg.Payout.MinDenominationDecimal()
		if err != nil {
			return fmt.Errorf("payout.min_denomination is not a decimal: %q", cfg.Payout.MinDenomination)
		}
		if minDenom.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("payout.min_denomination must be positive, got %s", minDenom)
		}
	}

	if strings.TrimSpace(cfg.Payout.TokenQuery) == "" {
		return fmt.Errorf("payout.token_query is required")
	}
	if strings.TrimSpace(cfg.Payout.TokenName) == "" {
		return fmt.Errorf("payout.token_name is required")
	}
	if cfg.Payout.RateLimitDelay < 0 {
		return fmt.Errorf("payout.rate_limit_delay must not be negative")
	}
	if cfg.Payout.MaxRetries < 0 {
		return fmt.Errorf("payout.max_retries must not be negative")
	}

	switch cfg.Broadcast.Mode {
	case BroadcastModeBridge, BroadcastModeExec:
	default:
		return fmt.Errorf("broadcast.mode must be %q or %q, got %q", BroadcastModeBridge, BroadcastModeExec, cfg.Broadcast.Mode)
	}

	if _, _, err := ParseClockTime(cfg.Schedule.PayoutTime); err != nil {
		return fmt.Errorf("schedule.payout_time: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone %q is not a known location: %w", cfg.Schedule.Timezone, err)
	}

	return nil
}

// ValidateLive checks the pieces only a live run needs. It runs after the
// command layer has resolved the final dry-run state, because a --dry-run
// flag can downgrade a run after LoadConfig returned. A dry run must work
// with nothing but defaults.
func (c *Config) ValidateLive() error {
	if c.Payout.Account == "" {
		return fmt.Errorf("payout.account (PAYOUT_ACCOUNT) is required for a live run")
	}
	if c.Hive.ActiveWIF == "" {
		return fmt.Errorf("hive.active_wif (ACTIVE_WIF) is required for a live run")
	}
	if c.Broadcast.Mode == BroadcastModeBridge && c.Broadcast.BridgeURL == "" {
		return fmt.Errorf("broadcast.bridge_url (SIGNER_BRIDGE_URL) is required for bridge mode")
	}
	if c.Broadcast.Mode == BroadcastModeExec && c.Broadcast.SignerScript == "" {
		return fmt.Errorf("broadcast.signer_script (SIGNER_SCRIPT) is required for exec mode")
	}
	return nil
}

// ParseClockTime parses an "HH:MM" wall-clock time.
func ParseClockTime(s string) (hour, minute int, err error) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("%q is not in HH:MM form", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q is not a valid time of day", s)
	}
	return hour, minute, nil
}

// Package signerexec broadcasts token transfers by running a local signer
// script. The script receives the transfer request as JSON on stdin, the
// active key through its environment, and prints {"txId": "..."} on success.
//
// Exit codes follow sysexits conventions: 75 (EX_TEMPFAIL) means try again
// later, 77 (EX_NOPERM) means the key was rejected. Anything else non-zero
// fails the one entry.
package signerexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	runner "payout-engine/internal/infra/exec"
	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

const (
	exitTempFail = 75
	exitNoPerm   = 77
)

type Config struct {
	ScriptPath  string
	ActiveWIF   string
	FromAccount string
	TokenSymbol string
	MemoFn      func(amount decimal.Decimal) string
	Timeout     time.Duration
}

func (c *Config) Validate() error {
	if c.ScriptPath == "" {
		return fmt.Errorf("signer script path is required")
	}
	if _, err := os.Stat(c.ScriptPath); err != nil {
		return fmt.Errorf("signer script not usable: %w", err)
	}
	if c.ActiveWIF == "" {
		return fmt.Errorf("active key is required for the signer script")
	}
	if c.FromAccount == "" {
		return fmt.Errorf("funding account is required")
	}
	if c.TokenSymbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return nil
}

type Client struct {
	cfg Config
}

var _ payout.TransferBroadcaster = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

type transferRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Quantity string `json:"quantity"`
	Symbol   string `json:"symbol"`
	Memo     string `json:"memo,omitempty"`
}

type transferResponse struct {
	TxID string `json:"txId"`
}

// Transfer runs the signer script once for one entry.
func (c *Client) Transfer(ctx context.Context, account string, amount decimal.Decimal) (string, error) {
	memo := ""
	if c.cfg.MemoFn != nil {
		memo = c.cfg.MemoFn(amount)
	}

	payload := transferRequest{
		From:     c.cfg.FromAccount,
		To:       account,
		Quantity: amount.String(),
		Symbol:   c.cfg.TokenSymbol,
		Memo:     memo,
	}
	stdin, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	extraEnv := []string{"ACTIVE_WIF=" + c.cfg.ActiveWIF}

	logging.LogInfo("Running signer script",
		zap.String("script", filepath.Base(c.cfg.ScriptPath)),
		zap.String("to", account),
		zap.String("quantity", payload.Quantity))

	var output []byte
	if isNodeScript(c.cfg.ScriptPath) {
		output, err = runner.RunSignerScript(ctx, c.cfg.ScriptPath, stdin, extraEnv, c.cfg.Timeout)
	} else {
		output, err = runner.RunCommand(ctx, c.cfg.ScriptPath, stdin, extraEnv, c.cfg.Timeout)
	}
	if err != nil {
		return "", classifyRunError(err)
	}

	var tr transferResponse
	if err := json.Unmarshal(output, &tr); err != nil {
		return "", fmt.Errorf("signer script printed unreadable output: %w", err)
	}
	if tr.TxID == "" {
		return "", fmt.Errorf("signer script exited cleanly without a transaction id")
	}
	return tr.TxID, nil
}

func isNodeScript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}

// classifyRunError maps script failures onto the executor's retry taxonomy.
// A timed-out script may already have broadcast, so it stays unclassified.
func classifyRunError(err error) error {
	if errors.Is(err, runner.ErrTimeout) {
		return fmt.Errorf("transfer outcome unknown, reconcile against the audit record: %w", err)
	}

	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		switch exitErr.ExitCode() {
		case exitTempFail:
			return payout.Transient(fmt.Errorf("signer script asked for retry (exit %d): %s", exitTempFail, stderr))
		case exitNoPerm:
			return payout.Fatal(fmt.Errorf("signer script rejected the key (exit %d): %s", exitNoPerm, stderr))
		default:
			return fmt.Errorf("signer script failed (exit %d): %s", exitErr.ExitCode(), stderr)
		}
	}

	return fmt.Errorf("failed to run signer script: %w", err)
}

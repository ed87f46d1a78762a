// Package signerbridge broadcasts token transfers through a local signing
// sidecar over HTTP. The sidecar holds the active key and talks to the
// chain; this client never sees key material beyond its bearer credential.
package signerbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/payout"
)

const maxResponseSize = 1 * 1024 * 1024

// Config wires one bridge client for a whole payout run. The funding
// account, token and memo builder are fixed up front so every transfer in
// the run is shaped the same way.
type Config struct {
	BaseURL     string
	Token       string
	FromAccount string
	TokenSymbol string
	MemoFn      func(amount decimal.Decimal) string
	Timeout     time.Duration
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("signer bridge URL is required")
	}
	if c.FromAccount == "" {
		return fmt.Errorf("funding account is required")
	}
	if c.TokenSymbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ payout.TransferBroadcaster = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
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

// Transfer submits one transfer to the bridge and classifies the outcome.
//
// Only failures where the request provably never reached the signer are
// reported transient. A timeout once the request is on the wire is left
// unclassified: the transfer may have been broadcast, and a retry could
// pay the holder twice.
func (c *Client) Transfer(ctx context.Context, account string, amount decimal.Decimal) (string, error) {
	requestID := logging.GenerateRequestID()

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
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal transfer request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/transfer"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	logging.LogRequest(requestID, http.MethodPost, "/transfer",
		zap.String("to", account),
		zap.String("quantity", payload.Quantity),
		zap.String("symbol", payload.Symbol))

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(),
			zap.String("endpoint", "/transfer"), zap.Error(err))
		if requestNeverSent(err) {
			return "", payout.Transient(fmt.Errorf("signer bridge unreachable: %w", err))
		}
		return "", fmt.Errorf("transfer outcome unknown, reconcile against the audit record: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read bridge response: %w", err)
	}

	duration := time.Since(startTime).Milliseconds()
	logging.LogResponse(requestID, resp.StatusCode, duration,
		zap.String("endpoint", "/transfer"))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var tr transferResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return "", fmt.Errorf("bridge returned %d with unreadable body: %w", resp.StatusCode, err)
		}
		if tr.TxID == "" {
			return "", fmt.Errorf("bridge returned %d without a transaction id", resp.StatusCode)
		}
		return tr.TxID, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		// Backpressure. The bridge refused before signing anything.
		return "", payout.Transient(fmt.Errorf("signer bridge busy (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The credential is bad for this run, every later entry would
		// fail the same way.
		return "", payout.Fatal(fmt.Errorf("signer bridge rejected credential (%d): %s", resp.StatusCode, strings.TrimSpace(string(body))))

	default:
		return "", fmt.Errorf("signer bridge error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// requestNeverSent reports whether the transport error guarantees the
// request was not delivered. Refused connections and failed lookups happen
// before anything is written; timeouts and resets do not qualify.
func requestNeverSent(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

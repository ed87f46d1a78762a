package hiveengine

// Package hiveengine is the read-only client for the Hive Engine sidechain
// RPC. It only queries contract tables; transfer broadcasting lives in the
// signer clients and is never routed through here, so every request in this
// package is safe to retry.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	logging "payout-engine/internal/infra/log"
	"payout-engine/internal/infra/retry"
)

const (
	// MainnetAPI is the public Hive Engine RPC gateway.
	MainnetAPI = "https://api.hive-engine.com/rpc/"

	// contractsEndpoint serves the contract table queries (find, findOne).
	contractsEndpoint = "contracts"
)

// rpcRequest is the JSON-RPC 2.0 envelope the sidechain nodes expect.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// tableQuery is the params object shared by the contracts find/findOne
// methods.
type tableQuery struct {
	Contract string      `json:"contract"`
	Table    string      `json:"table"`
	Query    interface{} `json:"query"`
	Limit    int         `json:"limit,omitempty"`
	Offset   int         `json:"offset,omitempty"`
	Indexes  []string    `json:"indexes,omitempty"`
}

// Client talks to one Hive Engine RPC gateway.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	rateLimiter     *rate.Limiter
	circuitBreaker  *gobreaker.CircuitBreaker
	maxResponseSize int64
	retryOpts       retry.Options
	nextID          atomic.Int64
}

// NewClient builds a client for the given gateway URL. An empty URL means
// the public mainnet gateway.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = MainnetAPI
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	// 10 requests per second with a burst of 20. The public gateways
	// throttle aggressively and a payout run has no hurry.
	rateLimiter := rate.NewLimiter(rate.Limit(10), 20)

	circuitBreaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "HiveEngineRPC",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		baseURL:         baseURL,
		rateLimiter:     rateLimiter,
		circuitBreaker:  circuitBreaker,
		maxResponseSize: 10 * 1024 * 1024,
		retryOpts: retry.Options{
			MaxRetries: 3,
			BaseDelay:  300 * time.Millisecond,
			MaxDelay:   5 * time.Second,
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DisableKeepAlives: false,
				MaxIdleConns:      10,
				IdleConnTimeout:   90 * time.Second,
			},
		},
	}
}

// call performs one JSON-RPC method call against an endpoint, with rate
// limiting, circuit breaking and retry for transient gateway errors, and
// returns the raw result payload.
func (c *Client) call(ctx context.Context, endpoint, method string, params interface{}) (json.RawMessage, error) {
	requestID := logging.GenerateRequestID()
	startTime := time.Now()

	if ctx.Err() != nil {
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	}

	envelope := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}

	var result json.RawMessage
	err := retry.Do(ctx, c.retryOpts, func() error {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return fmt.Errorf("rate limiter wait failed: %w", err)
			}
		}

		// Each attempt passes through the breaker separately so a run of
		// failed retries trips it and the remaining attempts fail fast.
		body, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.post(ctx, requestID, endpoint, envelope)
		})
		if err != nil {
			return err
		}
		result = body.(json.RawMessage)
		return nil
	})

	duration := time.Since(startTime).Milliseconds()
	if err != nil {
		logging.LogError("Hive Engine RPC failed",
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Int64("duration_ms", duration),
			zap.Error(err))
		return nil, err
	}

	return result, nil
}

// post sends one HTTP request and decodes the JSON-RPC envelope. Transport
// and gateway errors come back as retryable; RPC-level errors do not, the
// node understood the request and rejected it.
func (c *Client) post(ctx context.Context, requestID, endpoint string, envelope rpcRequest) (json.RawMessage, error) {
	jsonData, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logging.LogRequest(requestID, http.MethodPost, endpoint,
		zap.String("rpc_method", envelope.Method),
		zap.Int64("rpc_id", envelope.ID))

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.LogResponse(requestID, 0, time.Since(startTime).Milliseconds(),
			zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	limitedReader := io.LimitReader(resp.Body, c.maxResponseSize)
	respBody, err := io.ReadAll(limitedReader)
	if err != nil {
		logging.LogResponse(requestID, resp.StatusCode, time.Since(startTime).Milliseconds(),
			zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	duration := time.Since(startTime).Milliseconds()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.LogResponse(requestID, resp.StatusCode, duration,
			zap.String("endpoint", endpoint),
			zap.String("error", "gateway error response"))
		return nil, &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       respBody,
			RetryAfter: retry.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		logging.LogResponse(requestID, resp.StatusCode, duration,
			zap.String("endpoint", endpoint), zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		logging.LogResponse(requestID, resp.StatusCode, duration,
			zap.String("endpoint", endpoint),
			zap.String("error", rpcResp.Error.Message))
		return nil, rpcResp.Error
	}

	logging.LogResponse(requestID, resp.StatusCode, duration,
		zap.String("endpoint", endpoint), zap.String("status", "success"))

	return rpcResp.Result, nil
}

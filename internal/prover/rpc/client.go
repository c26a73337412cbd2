package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// SidecarClient is the JSON-RPC surface of the o1js sidecar. The sidecar
// owns the circuit and the oracle key material; this process only ever
// talks to it over localhost.
type SidecarClient interface {
	ProverInit(ctx context.Context) (*InitResult, error)
	ComputeBlockProof(ctx context.Context, params ComputeParams) (*ComputeResult, error)
	SignFields(ctx context.Context, fields []string, publicKey string) (string, error)
}

// Client speaks JSON-RPC 2.0 to the sidecar over plain HTTP.
type Client struct {
	httpClient *http.Client
	rpcURL     string
	requestID  atomic.Int64
	logger     *slog.Logger
}

func NewClient(rpcURL string, logger *slog.Logger) *Client {
	return &Client{
		// Circuit compilation can take minutes; per-call deadlines come
		// from the caller's context instead of the transport.
		httpClient: &http.Client{Timeout: 0},
		rpcURL:     rpcURL,
		logger:     logger,
	}
}

// errBodyLimit caps how much of a non-200 response gets quoted in the error.
const errBodyLimit = 4 << 10

func (c *Client) call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      int(c.requestID.Add(1)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		quoted, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(quoted))
	}

	var env Response
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if env.Error != nil {
		return nil, env.Error
	}

	c.logger.Debug("sidecar call complete", "method", method, "duration", time.Since(start))
	return env.Result, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	return resp, nil
}

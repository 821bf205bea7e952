package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// RPCClient is a minimal JSON-RPC 2.0 over HTTP client. It carries no
// domain knowledge of A2A methods; pkg/client's transports build on it.
type RPCClient struct {
	URL        string
	HTTPClient *http.Client
	// Intercept is called on every outgoing *http.Request before it is
	// sent, letting callers layer auth headers without this type knowing
	// about any particular scheme.
	Intercept func(*http.Request) error

	nextID atomic.Int64
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{URL: url, HTTPClient: http.DefaultClient}
}

// Call issues a single (non-batch, non-notification) JSON-RPC request and
// decodes its result into `result` (nil to discard the result payload).
func (c *RPCClient) Call(ctx context.Context, method string, params any, result any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}

	id := c.nextID.Add(1)
	payload := Request{
		Message: Message{MessageIdentifier: MessageIdentifier{ID: id}, JSONRPC: "2.0"},
		Method:  method,
	}
	if params != nil {
		payload.Params = params
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	if c.Intercept != nil {
		if err := c.Intercept(httpReq); err != nil {
			return fmt.Errorf("request interception failed: %w", err)
		}
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("unauthorized: invalid or expired credentials")
	}
	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("forbidden: insufficient permissions")
	}
	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("request payload too large")
	}

	var rpcResp RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		b, err := json.Marshal(rpcResp.Result)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, result); err != nil {
			return err
		}
	}

	return nil
}

// CallStream issues a JSON-RPC request expecting a text/event-stream
// response and returns the raw body for the caller to frame-parse; used by
// methods whose result is a stream of events (message/stream,
// tasks/resubscribe) rather than a single result object.
func (c *RPCClient) CallStream(ctx context.Context, method string, params any) (io.ReadCloser, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}

	id := c.nextID.Add(1)
	payload := Request{
		Message: Message{MessageIdentifier: MessageIdentifier{ID: id}, JSONRPC: "2.0"},
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	if c.Intercept != nil {
		if err := c.Intercept(httpReq); err != nil {
			return nil, fmt.Errorf("request interception failed: %w", err)
		}
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var rpcResp RPCResponse
		if json.NewDecoder(resp.Body).Decode(&rpcResp) == nil && rpcResp.Error != nil {
			return nil, rpcResp.Error
		}
		return nil, fmt.Errorf("unexpected status streaming %s: %d", method, resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/event-stream") {
		defer resp.Body.Close()
		return nil, fmt.Errorf("expected text/event-stream, got %q", ct)
	}

	return resp.Body, nil
}

package bitcoin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/go-resty/resty/v2"
)

// HTTPClient speaks JSON-RPC 1.0 over HTTP POST to a bitcoin node. Every
// RawRequest is exactly one HTTP attempt bound to the caller's context.
type HTTPClient struct {
	client *resty.Client
	url    string
	nextID atomic.Uint64
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      uint64            `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage   `json:"result"`
	Error  *btcjson.RPCError `json:"error"`
	ID     *uint64           `json:"id"`
}

// NewHTTPClient returns a client for the node at rawURL. Only http URLs with
// a host are accepted.
func NewHTTPClient(rawURL, user, password string) (*HTTPClient, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	client := resty.New().
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if user != "" || password != "" {
		client.SetBasicAuth(user, password)
	}

	return &HTTPClient{client: client, url: parsed.String()}, nil
}

// RawRequest posts method with params and returns the raw result. A node
// error payload comes back as *btcjson.RPCError.
func (c *HTTPClient) RawRequest(ctx context.Context, method string, params []json.RawMessage) (json.RawMessage, error) {
	if params == nil {
		params = []json.RawMessage{}
	}
	id := c.nextID.Add(1)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "1.0", ID: id, Method: method, Params: params}).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", method, err)
	}

	// bitcoind answers rpc errors with a non-200 status and a json body
	var reply rpcResponse
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		if resp.IsError() {
			return nil, fmt.Errorf("http status %d", resp.StatusCode())
		}
		return nil, &btcjson.RPCError{Code: btcjson.ErrRPCParse.Code, Message: fmt.Sprintf("decode reply: %v", err)}
	}
	if reply.Error != nil {
		return nil, reply.Error
	}
	if resp.IsError() {
		return nil, fmt.Errorf("http status %d", resp.StatusCode())
	}
	if reply.ID != nil && *reply.ID != id {
		return nil, &btcjson.RPCError{Code: btcjson.ErrRPCParse.Code, Message: fmt.Sprintf("reply id %d, want %d", *reply.ID, id)}
	}
	return reply.Result, nil
}

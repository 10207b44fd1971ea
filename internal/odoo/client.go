// Package odoo reads events from an Odoo backend over JSON-RPC.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/attendify/pos-event-sync/internal/candidates"
	"github.com/attendify/pos-event-sync/internal/models"
)

// DateTimeLayout is the server's datetime format. Values are UTC.
const DateTimeLayout = "2006-01-02 15:04:05"

// Client is an Odoo JSON-RPC client.
type Client struct {
	baseURL    string
	db         string
	user       string
	password   string
	httpClient *http.Client

	nextID atomic.Int64
	mu     sync.Mutex
	uid    int64
}

// NewClient creates a client for the server at baseURL. The timeout bounds
// every request.
func NewClient(baseURL, db, user, password string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		db:       db,
		user:     user,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// RPCRequest is a JSON-RPC 2.0 call.
type RPCRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  RPCParams `json:"params"`
	ID      int64     `json:"id"`
}

// RPCParams selects an Odoo service method.
type RPCParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

// RPCResponse is a JSON-RPC 2.0 response.
type RPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a server side fault.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *RPCError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("odoo error %d: %s", e.Code, e.Data.Message)
	}
	return fmt.Sprintf("odoo error %d: %s", e.Code, e.Message)
}

// Call executes service.method(args...) and unmarshals the result.
func (c *Client) Call(ctx context.Context, service, method string, args []any, result any) error {
	body, err := json.Marshal(RPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  RPCParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// Login authenticates and caches the user id.
func (c *Client) Login(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}

	var raw json.RawMessage
	if err := c.Call(ctx, "common", "login", []any{c.db, c.user, c.password}, &raw); err != nil {
		return 0, fmt.Errorf("login: %w", err)
	}
	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		return 0, fmt.Errorf("login: invalid credentials for %s on %s", c.user, c.db)
	}
	c.uid = uid
	return uid, nil
}

// ExecuteKW calls a model method as the logged in user.
func (c *Client) ExecuteKW(ctx context.Context, model, method string, args []any, kwargs map[string]any, result any) error {
	uid, err := c.Login(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return c.Call(ctx, "object", "execute_kw", []any{c.db, uid, c.password, model, method, args, kwargs}, result)
}

// eventRecord is an event.event row. Unset fields arrive as false.
type eventRecord struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ExternalUID json.RawMessage `json:"external_uid"`
	DateBegin   string          `json:"date_begin"`
	DateEnd     string          `json:"date_end"`
}

// FetchCandidates reads events whose end is at or after the filter time,
// earliest start first.
func (c *Client) FetchCandidates(ctx context.Context, f candidates.Filter) ([]models.Candidate, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = candidates.DefaultLimit
	}
	domain := []any{
		[]any{"date_end", ">=", f.ValidAfter.UTC().Format(DateTimeLayout)},
	}
	kwargs := map[string]any{
		"fields": []string{"id", "name", "external_uid", "date_begin", "date_end"},
		"order":  "date_begin asc",
		"limit":  limit,
	}

	var records []eventRecord
	if err := c.ExecuteKW(ctx, "event.event", "search_read", []any{domain}, kwargs, &records); err != nil {
		return nil, fmt.Errorf("search events: %w", err)
	}

	out := make([]models.Candidate, 0, len(records))
	for _, r := range records {
		begin, err := time.Parse(DateTimeLayout, r.DateBegin)
		if err != nil {
			return nil, fmt.Errorf("event %d: parse date_begin: %w", r.ID, err)
		}
		end, err := time.Parse(DateTimeLayout, r.DateEnd)
		if err != nil {
			return nil, fmt.Errorf("event %d: parse date_end: %w", r.ID, err)
		}
		out = append(out, models.Candidate{
			ID:          r.ID,
			Name:        r.Name,
			ExternalUID: optionalString(r.ExternalUID),
			ValidFrom:   begin,
			ValidUntil:  end,
		})
	}
	return out, nil
}

func optionalString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

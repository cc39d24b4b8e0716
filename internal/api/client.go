// Package api talks to the document analysis service over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iksnae/leby/internal"
)

// Session statuses reported by the status endpoint.
const (
	StatusReady      = "READY"
	StatusProcessing = "PROCESSING"
	StatusError      = "ERROR"
)

// StartRequest is the body of POST /session/start-from-text
type StartRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

// StartResponse is returned when a session has been created
type StartResponse struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
}

// StatusResponse reports background processing progress
type StatusResponse struct {
	Status  string `json:"status"`
	Summary string `json:"summary,omitempty"`
}

// QueryRequest is the body of POST /session/query
type QueryRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// QueryResponse carries the assistant's answer
type QueryResponse struct {
	Response string `json:"response"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Code   string          `json:"code"`
}

// Client is a thin HTTP client for the analysis service. It keeps no
// session state of its own.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client. A zero timeout keeps the transport default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// StartFromText creates a new analysis session for text.
func (c *Client) StartFromText(ctx context.Context, text, filename string) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, "start", http.MethodPost, "/session/start-from-text", StartRequest{Text: text, Filename: filename}, &out); err != nil {
		return nil, err
	}
	if out.SessionID == "" {
		return nil, &APIError{Op: "start", Kind: KindDecode, Detail: "service returned no session id"}
	}
	return &out, nil
}

// Status fetches the processing status of a session.
func (c *Client) Status(ctx context.Context, sessionID string) (*StatusResponse, error) {
	var out StatusResponse
	path := "/session/status/" + url.PathEscape(sessionID)
	if err := c.do(ctx, "status", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	out.Status = strings.ToUpper(strings.TrimSpace(out.Status))
	return &out, nil
}

// Query asks a question within a session.
func (c *Client) Query(ctx context.Context, sessionID, query string) (*QueryResponse, error) {
	var out QueryResponse
	if err := c.do(ctx, "query", http.MethodPost, "/session/query", QueryRequest{SessionID: sessionID, Query: query}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks that the service answers at its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/", nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &APIError{Op: op, Kind: KindUnknown, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return &APIError{Op: op, Kind: KindUnknown, Err: fmt.Errorf("create request: %w", err)}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	internal.LogDebug("%s %s", method, path)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &APIError{Op: op, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Kind: KindTransport, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		code, detail := parseErrorBody(data)
		internal.LogDebug("%s %s -> %d %s", method, path, resp.StatusCode, detail)
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     detail,
			Kind:       classify(resp.StatusCode, code, detail),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Kind: KindDecode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return nil
}

// parseErrorBody understands {"detail": "..."}, {"detail": {"code","message"}}
// and a top-level "code".
func parseErrorBody(data []byte) (code, detail string) {
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil {
		return "", strings.TrimSpace(string(data))
	}
	code = eb.Code

	var s string
	if err := json.Unmarshal(eb.Detail, &s); err == nil {
		return code, s
	}

	var nested struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(eb.Detail, &nested); err == nil {
		if code == "" {
			code = nested.Code
		}
		return code, nested.Message
	}
	return code, ""
}

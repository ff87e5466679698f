package ado

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "boardwatch/pkg/logx"
)

// Config configures a Client.
type Config struct {
	BaseURL      string // default "https://dev.azure.com"
	Organization string
	PAT          string // personal access token
	Timeout      time.Duration
}

// Client provides methods to interact with the Azure DevOps REST API.
// One call is one request; nothing is retried.
type Client struct {
	baseURL string // <base>/<organization>
	auth    string
	http    *http.Client
	log     logx.Logger
}

// NewClient creates a client for one organization.
func NewClient(cfg Config, log logx.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = "https://dev.azure.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	// Azure DevOps uses Basic auth with empty username and PAT as password
	auth := base64.StdEncoding.EncodeToString([]byte(":" + cfg.PAT))
	return &Client{
		baseURL: base + "/" + url.PathEscape(cfg.Organization),
		auth:    "Basic " + auth,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Call performs one request against <base>/<organization>/<path> and returns
// the raw JSON body. An empty body yields "{}".
func (c *Client) Call(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error) {
	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Method: method, URL: reqURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: method, URL: reqURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	c.log.Debug("ado request",
		logx.String("method", method),
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RequestError{Method: method, URL: reqURL, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(respBody), nil
}

// Get calls GET and decodes the response into out (if non-nil).
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

// Post calls POST with a JSON body and decodes the response into out (if non-nil).
func (c *Client) Post(ctx context.Context, path string, params url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, params, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	raw, err := c.Call(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// scope escapes and joins the leading path segments (project and team names
// may contain spaces).
func scope(parts ...string) string {
	esc := make([]string, len(parts))
	for i, p := range parts {
		esc[i] = url.PathEscape(p)
	}
	return strings.Join(esc, "/")
}

func apiVersion(v string) url.Values {
	return url.Values{"api-version": {v}}
}

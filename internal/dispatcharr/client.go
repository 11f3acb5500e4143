// Package dispatcharr talks to the channel-management API: channel lists,
// per-channel stream lists, token exchange and API health.
package dispatcharr

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

	"go.uber.org/zap"

	"github.com/hamed0406/channelcheck/internal/domain"
	"github.com/hamed0406/channelcheck/internal/envelope"
)

const (
	DefaultTimeout = 10 * time.Second
	statusTimeout  = 3 * time.Second
	maxErrBody     = 512
	maxBody        = 16 << 20
)

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

func New(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
}

// FetchChannels returns every channel in API order.
func (c *Client) FetchChannels(ctx context.Context) ([]domain.Channel, error) {
	const op = "fetch_channels"
	body, err := c.get(ctx, op, "/api/channels/channels/")
	if err != nil {
		return nil, err
	}
	items, err := envelope.Items(body)
	if err != nil {
		return nil, &APIError{Sentinel: ErrBadResponse, Op: op, Err: err}
	}
	out := make([]domain.Channel, 0, len(items))
	for _, it := range items {
		var ch domain.Channel
		if err := json.Unmarshal(it, &ch); err != nil {
			c.Logger.Debug("channel_skipped", zap.Error(err))
			continue
		}
		if ch.ID == "" {
			continue
		}
		out = append(out, ch)
	}
	return out, nil
}

// FetchChannelStreams returns the raw stream-list payload of one channel.
func (c *Client) FetchChannelStreams(ctx context.Context, id domain.ChannelID) ([]byte, error) {
	return c.get(ctx, "fetch_channel_streams", "/api/channels/channels/"+url.PathEscape(string(id))+"/streams/")
}

// Token exchanges credentials for an access token.
func (c *Client) Token(ctx context.Context, username, password string) (string, error) {
	const op = "token"
	payload, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/accounts/token/", bytes.NewReader(payload))
	if err != nil {
		return "", &APIError{Sentinel: ErrTransport, Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	body, err := c.do(req, op)
	if err != nil {
		return "", err
	}
	var tok struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.Access == "" {
		return "", &APIError{Sentinel: ErrBadResponse, Op: op, Err: err}
	}
	return tok.Access, nil
}

func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, &APIError{Sentinel: ErrTransport, Op: op, Err: err}
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, op)
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &APIError{Sentinel: ErrTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &APIError{Sentinel: ErrTransport, Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrBody {
			snippet = snippet[:maxErrBody]
		}
		c.Logger.Warn("api_error",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &APIError{Sentinel: statusSentinel(resp.StatusCode), Op: op, Status: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

// APIStatus summarizes reachability of the API.
type APIStatus struct {
	State     string `json:"state"` // online, error or offline
	LatencyMS int64  `json:"latency_ms"`
	Version   string `json:"version,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Status checks the health endpoint and reads the server version. It never
// fails; problems are reported in the returned state.
func (c *Client) Status(ctx context.Context) APIStatus {
	st := APIStatus{State: "offline"}

	hctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	start := time.Now()
	_, err := c.get(hctx, "health", "/api/health/")
	st.LatencyMS = time.Since(start).Milliseconds()
	switch {
	case err == nil:
		st.State = "online"
	case StatusCode(err) > 0:
		st.State = "error"
		st.Detail = fmt.Sprintf("HTTP %d", StatusCode(err))
	default:
		st.Detail = err.Error()
		return st
	}

	vctx, vcancel := context.WithTimeout(ctx, statusTimeout)
	defer vcancel()
	body, err := c.get(vctx, "version", "/api/core/version/")
	if err != nil {
		return st
	}
	var v struct {
		Version string `json:"version"`
	}
	if json.Unmarshal(body, &v) == nil {
		st.Version = v.Version
	}
	return st
}

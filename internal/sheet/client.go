// Package sheet is a client for the tabular record-store API that backs campaigns.
package sheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opencode-ai/wavecast/internal/logging"
	"github.com/opencode-ai/wavecast/internal/models"
	"github.com/rs/zerolog"
)

const (
	defaultTimeout  = 30 * time.Second
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
	maxErrorBody    = 512
)

// ErrNoBaseURL is returned when the client has no store URL.
var ErrNoBaseURL = errors.New("record store url is required")

// StoreError is a failure reported by the record store.
type StoreError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *StoreError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Detail)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// Tabs names the tabs used by a campaign.
type Tabs struct {
	Recipients string
	Messages   string
	Variables  string
	Authors    string
	Log        string
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Tabs       Tabs
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the record store over HTTP.
type Client struct {
	baseURL    string
	tabs       Tabs
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a record-store client.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, ErrNoBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid record store url: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    base,
		tabs:       opts.Tabs,
		httpClient: httpClient,
		logger:     logging.Component("sheet"),
	}, nil
}

// Recipients returns the raw recipient rows in tab order.
func (c *Client) Recipients(ctx context.Context) ([]Row, error) {
	return c.fetch(ctx, c.tabs.Recipients, true)
}

// Messages returns the raw message rows.
func (c *Client) Messages(ctx context.Context) ([]Row, error) {
	return c.fetch(ctx, c.tabs.Messages, false)
}

// Variables returns the raw variable rows.
func (c *Client) Variables(ctx context.Context) ([]Row, error) {
	return c.fetch(ctx, c.tabs.Variables, true)
}

// Authors returns the raw author rows. An unconfigured tab yields no rows.
func (c *Client) Authors(ctx context.Context) ([]Row, error) {
	if c.tabs.Authors == "" {
		return nil, nil
	}
	return c.fetch(ctx, c.tabs.Authors, true)
}

// UpdateRecipient writes back a recipient's progression state.
func (c *Client) UpdateRecipient(ctx context.Context, rowIndex int, update models.RecipientUpdate) error {
	path := "/tabs/" + url.PathEscape(c.tabs.Recipients) + "/" + strconv.Itoa(rowIndex)
	c.logger.Info().Str("method", http.MethodPatch).Str("path", path).Msg("updating recipient row")
	return c.write(ctx, http.MethodPatch, path, update)
}

type logRow struct {
	Name      string `json:"name"`
	Number    string `json:"number"`
	Timestamp string `json:"timestamp"`
	Handle    string `json:"handle"`
	Message   string `json:"message"`
}

// AppendLog appends an audit log row.
func (c *Client) AppendLog(ctx context.Context, entry models.LogEntry) error {
	path := "/tabs/" + url.PathEscape(c.tabs.Log)
	c.logger.Info().Str("method", http.MethodPost).Str("path", path).Msg("appending log row")
	return c.write(ctx, http.MethodPost, path, logRow{
		Name:      entry.Name,
		Number:    entry.Number,
		Timestamp: entry.Timestamp.Format(timestampLayout),
		Handle:    entry.Handle,
		Message:   entry.Message,
	})
}

func (c *Client) fetch(ctx context.Context, tab string, records bool) ([]Row, error) {
	if strings.TrimSpace(tab) == "" {
		return nil, errors.New("tab name is required")
	}
	path := "/tabs/" + url.PathEscape(tab)
	target := c.baseURL + path
	if records {
		target += "?_format=records"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tab %s: %w", tab, err)
	}
	if err := checkResponse(http.MethodGet, path, status, body); err != nil {
		return nil, err
	}

	var rows []Row
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode tab %s: %w", tab, err)
	}
	return rows, nil
}

func (c *Client) write(ctx context.Context, method, path string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return checkResponse(method, path, status, body)
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// checkResponse treats non-2xx statuses and any object carrying "detail" as failures.
func checkResponse(method, path string, status int, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Detail any `json:"detail"`
		}
		if err := sonic.Unmarshal(trimmed, &envelope); err == nil && envelope.Detail != nil {
			return &StoreError{Method: method, Path: path, Status: status, Detail: fmt.Sprint(envelope.Detail)}
		}
	}
	if status < 200 || status > 299 {
		detail := string(trimmed)
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody]
		}
		return &StoreError{Method: method, Path: path, Status: status, Detail: detail}
	}
	return nil
}

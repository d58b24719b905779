package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/opencode-ai/wavecast/internal/models"
)

const (
	defaultSMSTimeout = 30 * time.Second
	maxSMSErrorBody   = 512
)

// ErrNoGateway is returned when the SMS client has no gateway URL.
var ErrNoGateway = errors.New("sms gateway url is required")

// SMSOptions configures an SMSClient.
type SMSOptions struct {
	URL        string
	Token      string
	Sender     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// SMSClient posts messages to an HTTP SMS gateway.
type SMSClient struct {
	url        string
	token      string
	sender     string
	httpClient *http.Client
}

type smsRequest struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

// NewSMSClient creates a gateway client.
func NewSMSClient(opts SMSOptions) (*SMSClient, error) {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil, ErrNoGateway
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultSMSTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &SMSClient{url: url, token: opts.Token, sender: opts.Sender, httpClient: httpClient}, nil
}

// Send posts one message. Any non-2xx response is a failure.
func (c *SMSClient) Send(ctx context.Context, number, content string) error {
	payload, err := sonic.Marshal(smsRequest{To: number, From: c.sender, Body: content})
	if err != nil {
		return &DeliveryError{Channel: models.ChannelSMS, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return &DeliveryError{Channel: models.ChannelSMS, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Channel: models.ChannelSMS, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxSMSErrorBody))
		return &DeliveryError{
			Channel: models.ChannelSMS,
			Err:     fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return nil
}

package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/opencode-ai/wavecast/internal/models"
)

type fakeExecutor struct {
	stdout []byte
	stderr []byte
	err    error
	name   string
	args   []string
	calls  int
}

func (f *fakeExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls++
	f.name = name
	f.args = args
	return f.stdout, f.stderr, f.err
}

const (
	slf4jBanner     = "SLF4J(I): Connected with provider of type [ch.qos.logback.classic.spi.LogbackServiceProvider]\n"
	receiveReminder = "INFO  AccountHelper - The Signal protocol expects that incoming messages are regularly received.\n"
	cdsiWarning     = "WARN  RefreshRecipientsJob - Full CDSI recipients refresh failed, ignoring: org.signal.libsignal.net.NetworkProtocolException: HTTP error: 404 Not Found (IOException)\n"
)

func TestSignalArgvWithoutShell(t *testing.T) {
	exec := &fakeExecutor{}
	client := NewSignalClient(exec, "signal-cli", []string{"-a", "+4900"}, nil)

	content := `He said "hi" & left; $(rm -rf /)`
	if err := client.Send(context.Background(), "+49170111", content); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if exec.name != "signal-cli" {
		t.Fatalf("unexpected program: %q", exec.name)
	}
	want := []string{"-a", "+4900", "send", "+49170111", "-m", content}
	if !reflect.DeepEqual(exec.args, want) {
		t.Fatalf("unexpected args: %q", exec.args)
	}
}

func TestSignalBenignStderr(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
	}{
		{"empty", ""},
		{"periodic refresh reminder", receiveReminder},
		{"banner and reminder", slf4jBanner + receiveReminder},
		{"banner reminder and cdsi", slf4jBanner + receiveReminder + cdsiWarning},
		{"blank lines and crlf", "\n" + slf4jBanner[:len(slf4jBanner)-1] + "\r\n\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewSignalClient(&fakeExecutor{stderr: []byte(tt.stderr)}, "signal-cli", nil, nil)
			if err := client.Send(context.Background(), "+1", "hi"); err != nil {
				t.Fatalf("expected success, got %v", err)
			}
		})
	}
}

func TestSignalUnexpectedStderr(t *testing.T) {
	stderr := receiveReminder + "ERROR SendHelper - Failed to send message: Unregistered user\n"
	client := NewSignalClient(&fakeExecutor{stderr: []byte(stderr)}, "signal-cli", nil, nil)

	err := client.Send(context.Background(), "+1", "hi")
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if deliveryErr.Channel != models.ChannelSignal || deliveryErr.Stderr != stderr {
		t.Fatalf("unexpected error fields: %+v", deliveryErr)
	}
}

func TestSignalNonZeroExit(t *testing.T) {
	boom := errors.New("exit status 1")
	client := NewSignalClient(&fakeExecutor{err: boom}, "signal-cli", nil, nil)

	err := client.Send(context.Background(), "+1", "hi")
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped DeliveryError, got %v", err)
	}
}

func TestSignalConfiguredPrefixEntries(t *testing.T) {
	extra := ParseBenignLines([]string{"WARN  ReceiveHelper*", "  ", "INFO  Exact line"})
	if len(extra) != 2 || !extra[0].Prefix || extra[1].Prefix {
		t.Fatalf("unexpected parsed lines: %+v", extra)
	}

	stderr := "WARN  ReceiveHelper - something transient\nINFO  Exact line\n"
	client := NewSignalClient(&fakeExecutor{stderr: []byte(stderr)}, "signal-cli", nil, extra)
	if err := client.Send(context.Background(), "+1", "hi"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	client = NewSignalClient(&fakeExecutor{stderr: []byte("INFO  Exact line and more\n")}, "signal-cli", nil, extra)
	if err := client.Send(context.Background(), "+1", "hi"); err == nil {
		t.Fatal("exact entries must not match as prefixes")
	}
}

func TestSMSSend(t *testing.T) {
	var got smsRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client, err := NewSMSClient(SMSOptions{URL: server.URL, Token: "secret", Sender: "Fishy"})
	if err != nil {
		t.Fatalf("NewSMSClient: %v", err)
	}
	if err := client.Send(context.Background(), "+49170111", "Hallo"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", auth)
	}
	if got.To != "+49170111" || got.Body != "Hallo" || got.From != "Fishy" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestSMSGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewSMSClient(SMSOptions{URL: server.URL})
	if err != nil {
		t.Fatalf("NewSMSClient: %v", err)
	}
	err = client.Send(context.Background(), "+1", "hi")
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) || deliveryErr.Channel != models.ChannelSMS {
		t.Fatalf("expected sms DeliveryError, got %v", err)
	}

	if _, err := NewSMSClient(SMSOptions{}); !errors.Is(err, ErrNoGateway) {
		t.Fatalf("expected ErrNoGateway, got %v", err)
	}
}

type fakeSender struct {
	calls int
	err   error
}

func (f *fakeSender) Send(ctx context.Context, number, content string) error {
	f.calls++
	return f.err
}

func TestRouter(t *testing.T) {
	sms := &fakeSender{}
	signal := &fakeSender{}
	router := NewRouter(sms, signal)

	if err := router.Deliver(context.Background(), models.ChannelSMS, "+1", "hi"); err != nil {
		t.Fatalf("sms Deliver: %v", err)
	}
	if err := router.Deliver(context.Background(), models.ChannelSignal, "+1", "hi"); err != nil {
		t.Fatalf("signal Deliver: %v", err)
	}
	if sms.calls != 1 || signal.calls != 1 {
		t.Fatalf("unexpected calls: sms=%d signal=%d", sms.calls, signal.calls)
	}

	err := router.Deliver(context.Background(), models.Channel("fax"), "+1", "hi")
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatalf("expected DeliveryError for unknown channel, got %v", err)
	}

	smsOnly := NewRouter(sms, nil)
	if err := smsOnly.Deliver(context.Background(), models.ChannelSignal, "+1", "hi"); err == nil {
		t.Fatal("expected error for unconfigured channel")
	}
}

package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opencode-ai/wavecast/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL: server.URL + "/",
		Tabs: Tabs{
			Recipients: "recipients",
			Messages:   "messages",
			Variables:  "variables",
			Log:        "log",
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestRecipientsUsesRecordsFormat(t *testing.T) {
	var gotPath, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[{"name":"Ada","number":"+49 170","lastWave":2,"active":"TRUE"}]`))
	})

	rows, err := client.Recipients(context.Background())
	if err != nil {
		t.Fatalf("Recipients: %v", err)
	}
	if gotPath != "/tabs/recipients" || gotQuery != "_format=records" {
		t.Fatalf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].String("lastWave") != "2" {
		t.Fatalf("expected numeric cell as text, got %q", rows[0].String("lastWave"))
	}
	if rows[0].String("name") != "Ada" {
		t.Fatalf("unexpected name %q", rows[0].String("name"))
	}
}

func TestMessagesOmitsRecordsFormat(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	if _, err := client.Messages(context.Background()); err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if gotQuery != "" {
		t.Fatalf("expected no query, got %q", gotQuery)
	}
}

func TestAuthorsWithoutTab(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request to %s", r.URL.Path)
	})

	rows, err := client.Authors(context.Background())
	if err != nil || rows != nil {
		t.Fatalf("expected no rows and no error, got %v %v", rows, err)
	}
}

func TestUpdateRecipient(t *testing.T) {
	var method, path string
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.Write([]byte(`{"ok":true}`))
	})

	err := client.UpdateRecipient(context.Background(), 4, models.RecipientUpdate{
		LastWave:    3,
		LastHandle:  "reminder",
		LastContent: "Hallo Ada",
	})
	if err != nil {
		t.Fatalf("UpdateRecipient: %v", err)
	}
	if method != http.MethodPatch || path != "/tabs/recipients/4" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	if body["lastWave"] != float64(3) || body["lastHandle"] != "reminder" || body["lastContent"] != "Hallo Ada" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestAppendLogDetailIsFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail":"quota exceeded"}`))
	})

	err := client.AppendLog(context.Background(), models.LogEntry{
		Name:      "Ada",
		Number:    "+49170",
		Timestamp: time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC),
		Handle:    "invite",
		Message:   "hi",
	})
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Detail != "quota exceeded" {
		t.Fatalf("unexpected detail %q", storeErr.Detail)
	}
}

func TestAppendLogTimestampFormat(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		w.Write([]byte(`{}`))
	})

	err := client.AppendLog(context.Background(), models.LogEntry{
		Name:      "Ada",
		Number:    "+49170",
		Timestamp: time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC),
		Handle:    "invite",
		Message:   "hi",
	})
	if err != nil {
		t.Fatalf("AppendLog: %v", err)
	}
	if body["timestamp"] != "2024-11-01T10:00:00.000Z" {
		t.Fatalf("unexpected timestamp %v", body["timestamp"])
	}
}

func TestFetchNon2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Variables(context.Background())
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Status != http.StatusBadGateway {
		t.Fatalf("expected 502 StoreError, got %v", err)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrNoBaseURL) {
		t.Fatalf("expected ErrNoBaseURL, got %v", err)
	}
}

func TestRowString(t *testing.T) {
	row := Row{"a": 1.5, "b": true, "c": nil, "d": " x "}
	if row.String("a") != "1.5" || row.String("b") != "TRUE" || row.String("c") != "" {
		t.Fatalf("unexpected conversions: %q %q %q", row.String("a"), row.String("b"), row.String("c"))
	}
	if row.Trimmed("d") != "x" {
		t.Fatalf("unexpected trimmed value %q", row.Trimmed("d"))
	}
}

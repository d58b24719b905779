package models

import (
	"strings"
	"time"
)

// RecipientUpdate is the row-scoped state written back after a send.
type RecipientUpdate struct {
	LastWave    int    `json:"lastWave"`
	LastHandle  string `json:"lastHandle"`
	LastContent string `json:"lastContent"`
}

// LogEntry is one row appended to the store's audit log.
type LogEntry struct {
	Name      string    `json:"name"`
	Number    string    `json:"number"`
	Timestamp time.Time `json:"timestamp"`
	Handle    string    `json:"handle"`
	Message   string    `json:"message"`
}

// DispatchStatus is the journaled outcome of one recipient step.
type DispatchStatus string

const (
	// DispatchStatusSent means delivery and persistence both completed (or were gated off
	// after a real delivery).
	DispatchStatusSent DispatchStatus = "sent"

	// DispatchStatusSimulated means hot-send was off and nothing was delivered.
	DispatchStatusSimulated DispatchStatus = "simulated"

	// DispatchStatusSkipped means no eligible message, or a duplicate claim.
	DispatchStatusSkipped DispatchStatus = "skipped"

	// DispatchStatusFailed means rendering or delivery failed before anything was sent.
	DispatchStatusFailed DispatchStatus = "failed"

	// DispatchStatusUnrecorded means the message was delivered but the store update or log
	// append failed.
	DispatchStatusUnrecorded DispatchStatus = "unrecorded"
)

// DispatchRecord is one local journal row.
type DispatchRecord struct {
	// ID is the unique identifier for the record.
	ID string `json:"id"`

	// RunID groups records from one process invocation.
	RunID string `json:"run_id"`

	// Iteration is the zero-based pass number within the run.
	Iteration int `json:"iteration"`

	// Timestamp is when the step finished.
	Timestamp time.Time `json:"timestamp"`

	// Name and Number identify the recipient.
	Name   string `json:"name"`
	Number string `json:"number"`

	// Channel is the recipient's delivery channel.
	Channel Channel `json:"channel,omitempty"`

	// Handle and Wave identify the selected message, if any.
	Handle string `json:"handle,omitempty"`
	Wave   int    `json:"wave,omitempty"`

	// Status is the outcome.
	Status DispatchStatus `json:"status"`

	// Stage names the step that failed, if any.
	Stage string `json:"stage,omitempty"`

	// Content is the rendered text.
	Content string `json:"content,omitempty"`

	// Error holds the failure message.
	Error string `json:"error,omitempty"`
}

// Validate checks if the record is valid.
func (r *DispatchRecord) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(r.RunID) == "" {
		validation.AddMessage("run_id", "run_id is required")
	}
	if strings.TrimSpace(r.Number) == "" {
		validation.AddMessage("number", "number is required")
	}
	switch r.Status {
	case DispatchStatusSent, DispatchStatusSimulated, DispatchStatusSkipped,
		DispatchStatusFailed, DispatchStatusUnrecorded:
	default:
		validation.AddMessage("status", "unknown status "+string(r.Status))
	}
	return validation.Err()
}

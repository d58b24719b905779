package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/opencode-ai/wavecast/internal/models"
)

// ErrAlreadyClaimed marks a recipient skipped by the send guard.
var ErrAlreadyClaimed = errors.New("message already claimed for this recipient")

// Outcome is the result of one recipient step.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeSimulated Outcome = "simulated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeHeld      Outcome = "held"
	OutcomeFailed    Outcome = "failed"
)

// Stages at which a recipient step can stop.
const (
	StageRender  = "render"
	StageGuard   = "guard"
	StageDeliver = "deliver"
	StageUpdate  = "update"
	StageLog     = "log"
)

// PersistenceError reports a failed store write. Delivered is true when the message had
// already reached the recipient.
type PersistenceError struct {
	Stage     string
	Delivered bool
	Err       error
}

func (e *PersistenceError) Error() string {
	if e.Delivered {
		return fmt.Sprintf("delivered but %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one recipient in one pass.
type Result struct {
	Iteration int
	Recipient models.Recipient
	Message   *models.Message
	Content   string
	Outcome   Outcome
	Stage     string
	Delivered bool
	Err       error
	Timestamp time.Time
}

// Record converts the result into a journal row.
func (r Result) Record(runID string) models.DispatchRecord {
	record := models.DispatchRecord{
		RunID:     runID,
		Iteration: r.Iteration,
		Timestamp: r.Timestamp,
		Name:      r.Recipient.Name,
		Number:    r.Recipient.Number,
		Channel:   r.Recipient.Channel,
		Stage:     r.Stage,
		Content:   r.Content,
	}
	if r.Message != nil {
		record.Handle = r.Message.Handle
		record.Wave = r.Message.Wave
	}
	if r.Err != nil {
		record.Error = r.Err.Error()
	}

	switch r.Outcome {
	case OutcomeSent:
		record.Status = models.DispatchStatusSent
	case OutcomeSimulated:
		record.Status = models.DispatchStatusSimulated
	case OutcomeSkipped:
		record.Status = models.DispatchStatusSkipped
	case OutcomeHeld:
		record.Status = models.DispatchStatusUnrecorded
	default:
		record.Status = models.DispatchStatusFailed
	}
	return record
}

// Summary aggregates a run. A held recipient appears once, in the pass that held it.
type Summary struct {
	RunID      string
	HotSend    bool
	HotUpdate  bool
	Iterations int
	Results    []Result

	Sent      int
	Simulated int
	Skipped   int
	Held      int
	Failed    int
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case OutcomeSent:
		s.Sent++
	case OutcomeSimulated:
		s.Simulated++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeHeld:
		s.Held++
	case OutcomeFailed:
		s.Failed++
	}
}

// Unrecorded returns the persistence failures that followed a real delivery.
func (s *Summary) Unrecorded() []*PersistenceError {
	var out []*PersistenceError
	for _, r := range s.Results {
		var perr *PersistenceError
		if errors.As(r.Err, &perr) && perr.Delivered {
			out = append(out, perr)
		}
	}
	return out
}

// HasFailures reports whether any recipient failed or was held.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0 || s.Held > 0
}

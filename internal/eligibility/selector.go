package eligibility

import (
	"errors"

	"github.com/opencode-ai/wavecast/internal/models"
)

// ErrNothingToSend reports that no message is eligible for a recipient. It is not a failure.
var ErrNothingToSend = errors.New("nothing to send")

// Select returns the first message, in catalog order, that the recipient may receive.
// Messages must already be sorted ascending by wave.
func Select(messages []models.Message, r models.Recipient) (models.Message, bool) {
	for _, m := range messages {
		if m.Wave <= r.LastWave {
			continue
		}
		if !m.HighPriority && !r.HighIntensity {
			continue
		}
		if !Evaluate(m.Condition, r) {
			continue
		}
		return m, true
	}
	return models.Message{}, false
}

// Next is Select with ErrNothingToSend in place of the boolean.
func Next(messages []models.Message, r models.Recipient) (models.Message, error) {
	m, ok := Select(messages, r)
	if !ok {
		return models.Message{}, ErrNothingToSend
	}
	return m, nil
}

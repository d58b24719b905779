package dispatch

import (
	"github.com/opencode-ai/wavecast/internal/catalog"
	"github.com/opencode-ai/wavecast/internal/eligibility"
	"github.com/opencode-ai/wavecast/internal/models"
)

// Selection is the message a recipient would receive next. Message is nil when nothing is
// eligible.
type Selection struct {
	Recipient models.Recipient
	Message   *models.Message
}

// Preview selects without rendering or sending.
func Preview(cat *catalog.Catalog) []Selection {
	selections := make([]Selection, 0, len(cat.Recipients))
	for _, r := range cat.Recipients {
		sel := Selection{Recipient: r}
		if msg, ok := eligibility.Select(cat.Messages, r); ok {
			sel.Message = &msg
		}
		selections = append(selections, sel)
	}
	return selections
}

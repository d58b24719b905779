package models

// Variable names read from the variables tab.
const (
	VariableSystemPrompt   = "system_prompt"
	VariableSlotsLeft      = "slots_left"
	VariableSlotsConfirmed = "slots_confirmed"
	VariableSlotsUnknown   = "slots_unknown"
)

// VariableSet holds run-wide values. It is read once per run and never mutated.
type VariableSet struct {
	SystemPrompt   string `json:"system_prompt"`
	SlotsLeft      int    `json:"slots_left"`
	SlotsConfirmed int    `json:"slots_confirmed"`
	SlotsUnknown   int    `json:"slots_unknown"`
}

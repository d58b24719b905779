package eligibility

import (
	"errors"
	"reflect"
	"testing"

	"github.com/opencode-ai/wavecast/internal/models"
)

func TestEvaluate(t *testing.T) {
	known := func(n int) models.Recipient { return models.Recipient{Slots: models.KnownSlots(n)} }
	unknown := models.Recipient{Slots: models.UnknownSlots()}
	newcomer := models.Recipient{Tags: []string{"vip", models.TagNewToFishy}}
	regular := models.Recipient{Tags: []string{"vip"}}
	german := models.Recipient{Language: models.LanguageGerman}
	english := models.Recipient{Language: models.LanguageEnglish}

	tests := []struct {
		name      string
		condition models.Condition
		recipient models.Recipient
		want      bool
	}{
		{"none always passes", models.ConditionNone, unknown, true},
		{"slots_unknown with unknown", models.ConditionSlotsUnknown, unknown, true},
		{"slots_unknown with zero", models.ConditionSlotsUnknown, known(0), false},
		{"coming with two", models.ConditionComing, known(2), true},
		{"coming with one", models.ConditionComing, known(1), true},
		{"coming with zero", models.ConditionComing, known(0), false},
		{"coming with unknown", models.ConditionComing, unknown, false},
		{"not_coming with zero", models.ConditionNotComing, known(0), true},
		{"not_coming with one", models.ConditionNotComing, known(1), false},
		{"not_coming with unknown", models.ConditionNotComing, unknown, false},
		{"new_to_fishy tagged", models.ConditionNewToFishy, newcomer, true},
		{"new_to_fishy untagged", models.ConditionNewToFishy, regular, false},
		{"knows_fishy untagged", models.ConditionKnowsFishy, regular, true},
		{"knows_fishy tagged", models.ConditionKnowsFishy, newcomer, false},
		{"de german", models.ConditionGerman, german, true},
		{"de english", models.ConditionGerman, english, false},
		{"en english", models.ConditionEnglish, english, true},
		{"en german", models.ConditionEnglish, german, false},
		{"unknown condition", models.Condition("vip"), regular, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.condition, tt.recipient); got != tt.want {
				t.Fatalf("Evaluate(%q) = %v, want %v", tt.condition, got, tt.want)
			}
		})
	}
}

func catalogFixture() []models.Message {
	return []models.Message{
		{Handle: "welcome", Wave: 1, HighPriority: true},
		{Handle: "nudge", Wave: 2, Condition: models.ConditionNotComing, Type: models.MessageTypeTemplate, Content: "Hallo {name}"},
		{Handle: "reminder", Wave: 2, HighPriority: true, Condition: models.ConditionComing},
		{Handle: "final", Wave: 3, HighPriority: true},
	}
}

func TestSelectExampleRecipient(t *testing.T) {
	r := models.Recipient{LastWave: 1, Slots: models.KnownSlots(0), Language: models.LanguageGerman, HighIntensity: true}

	msg, ok := Select(catalogFixture(), r)
	if !ok {
		t.Fatal("expected a message")
	}
	if msg.Handle != "nudge" {
		t.Fatalf("expected nudge, got %q", msg.Handle)
	}
}

func TestSelectRequiresPriorityOrIntensity(t *testing.T) {
	r := models.Recipient{LastWave: 1, Slots: models.KnownSlots(0)}

	msg, ok := Select(catalogFixture(), r)
	if !ok || msg.Handle != "final" {
		t.Fatalf("expected final, got %q ok=%v", msg.Handle, ok)
	}
}

func TestSelectNeverReturnsDeliveredWave(t *testing.T) {
	messages := catalogFixture()
	for lastWave := 0; lastWave <= 4; lastWave++ {
		for _, slots := range []models.Slots{models.KnownSlots(0), models.KnownSlots(3), models.UnknownSlots()} {
			r := models.Recipient{LastWave: lastWave, Slots: slots, HighIntensity: lastWave%2 == 0}
			msg, ok := Select(messages, r)
			if ok && msg.Wave <= lastWave {
				t.Fatalf("selected wave %d for lastWave %d", msg.Wave, lastWave)
			}
		}
	}
}

func TestSelectNothingToSend(t *testing.T) {
	r := models.Recipient{LastWave: 3, HighIntensity: true}
	if _, ok := Select(catalogFixture(), r); ok {
		t.Fatal("expected no message")
	}
	if _, err := Next(catalogFixture(), r); !errors.Is(err, ErrNothingToSend) {
		t.Fatalf("expected ErrNothingToSend, got %v", err)
	}
	if _, ok := Select(nil, r); ok {
		t.Fatal("expected no message from empty catalog")
	}
}

func TestSelectIsPure(t *testing.T) {
	messages := catalogFixture()
	before := append([]models.Message(nil), messages...)
	r := models.Recipient{LastWave: 1, Slots: models.KnownSlots(0), Tags: []string{"a"}, HighIntensity: true}

	first, _ := Select(messages, r)
	second, _ := Select(messages, r)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated selection differs: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(messages, before) {
		t.Fatal("catalog was modified")
	}
	if r.LastWave != 1 {
		t.Fatal("recipient was modified")
	}
}

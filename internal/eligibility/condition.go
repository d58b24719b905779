// Package eligibility decides which catalog message, if any, a recipient receives next.
package eligibility

import "github.com/opencode-ai/wavecast/internal/models"

// Evaluate reports whether recipient r satisfies condition c. It has no side effects.
func Evaluate(c models.Condition, r models.Recipient) bool {
	switch c {
	case models.ConditionNone:
		return true
	case models.ConditionSlotsUnknown:
		return r.Slots.Unknown()
	case models.ConditionComing:
		count, known := r.Slots.Count()
		return known && count >= 1
	case models.ConditionNotComing:
		count, known := r.Slots.Count()
		return known && count == 0
	case models.ConditionNewToFishy:
		return r.HasTag(models.TagNewToFishy)
	case models.ConditionKnowsFishy:
		return !r.HasTag(models.TagNewToFishy)
	case models.ConditionGerman:
		return r.Language == models.LanguageGerman
	case models.ConditionEnglish:
		return r.Language == models.LanguageEnglish
	default:
		// Unparsed conditions never reach here; treat them as unsatisfied.
		return false
	}
}

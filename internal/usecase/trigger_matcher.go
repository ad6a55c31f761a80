package usecase

import "strings"

// triggerMatcher scans transcript fragments for configured trigger words.
// When several words occur in one fragment the first configured word wins.
type triggerMatcher struct {
	words []string
}

func newTriggerMatcher(words []string) triggerMatcher {
	return triggerMatcher{words: NormalizeTriggerWords(words)}
}

// Match reports the first configured word contained in text, ignoring case.
func (m triggerMatcher) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return "", false
	}
	for _, word := range m.words {
		if strings.Contains(lower, word) {
			return word, true
		}
	}
	return "", false
}

// NormalizeTriggerWords lower-cases words, collapses their whitespace and
// drops duplicates, keeping the configured order.
func NormalizeTriggerWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, word := range words {
		normalized := strings.Join(strings.Fields(strings.ToLower(word)), " ")
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

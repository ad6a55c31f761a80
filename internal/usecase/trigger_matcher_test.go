package usecase

import "testing"

func TestTriggerMatcherFirstConfiguredWordWins(t *testing.T) {
	t.Parallel()

	m := newTriggerMatcher([]string{"sos", "help"})
	word, ok := m.Match("Help! SOS!")
	if !ok || word != "sos" {
		t.Fatalf("expected sos, got %q (ok=%t)", word, ok)
	}
}

func TestTriggerMatcherSubstringCaseInsensitive(t *testing.T) {
	t.Parallel()

	m := newTriggerMatcher([]string{"HELP"})
	if word, ok := m.Match("somebody HeLpMe"); !ok || word != "help" {
		t.Fatalf("expected help match, got %q (ok=%t)", word, ok)
	}
	if _, ok := m.Match("all good here"); ok {
		t.Fatalf("unexpected match")
	}
	if _, ok := m.Match("   "); ok {
		t.Fatalf("blank transcript must not match")
	}
}

func TestNormalizeTriggerWords(t *testing.T) {
	t.Parallel()

	got := NormalizeTriggerWords([]string{" Help", "", "sos", "HELP", "  "})
	if len(got) != 2 || got[0] != "help" || got[1] != "sos" {
		t.Fatalf("unexpected words: %v", got)
	}
}

func TestNormalizeTriggerWordsCollapsesWhitespace(t *testing.T) {
	t.Parallel()

	got := NormalizeTriggerWords([]string{"Call  Police", "call\tpolice", " call police "})
	if len(got) != 1 || got[0] != "call police" {
		t.Fatalf("unexpected words: %v", got)
	}
}

package vocabulary

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoadWordsAndAliases(t *testing.T) {
	t.Parallel()

	path := writeVocabulary(t, `
# trigger words
help
SOS
help
s o s => sos
s/\bhel+p\b/help/g
`)

	v, err := Load(path, []string{"danger"}, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := v.Words(); !reflect.DeepEqual(got, []string{"help", "sos"}) {
		t.Fatalf("unexpected words: %v", got)
	}
	if got := v.Normalize("Please   HELLLP me, S O S"); got != "please help me, sos" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	v, err := Load(filepath.Join(t.TempDir(), "missing.vocab"), []string{" Help ", "sos", ""}, 0)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := v.Words(); !reflect.DeepEqual(got, []string{"help", "sos"}) {
		t.Fatalf("unexpected words: %v", got)
	}
	if got := v.Normalize(" Call  for HELP "); got != "call for help" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestLoadAliasOnlyFileKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeVocabulary(t, "may day => mayday\n")
	v, err := Load(path, []string{"mayday"}, 0)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := v.Words(); !reflect.DeepEqual(got, []string{"mayday"}) {
		t.Fatalf("unexpected words: %v", got)
	}
	if got := v.Normalize("May Day may day"); got != "mayday mayday" {
		t.Fatalf("unexpected normalized text: %q", got)
	}
}

func TestNormalizeIteratesUntilStable(t *testing.T) {
	t.Parallel()

	path := writeVocabulary(t, "a => b\nb => c\n")
	v, err := Load(path, nil, 5)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := v.Normalize("a"); got != "c" {
		t.Fatalf("expected c, got %q", got)
	}
}

func TestNormalizeStopsAtIterationLimit(t *testing.T) {
	t.Parallel()

	path := writeVocabulary(t, "s/x/xx/\n")
	v, err := Load(path, nil, 3)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := v.Normalize("x"); got != "xxxx" {
		t.Fatalf("expected growth bounded by the limit, got %q", got)
	}
}

func TestRegexAliasWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	a, err := parseRegexAlias(`s/foo/bar/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	output, changed := a.apply("foo foo")
	if !changed || output != "bar foo" {
		t.Fatalf("unexpected output: %q changed=%t", output, changed)
	}
}

func TestRegexAliasSupportsCaptureGroups(t *testing.T) {
	t.Parallel()

	a, err := parseRegexAlias(`s/(\w+) me please/$1/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if output, _ := a.apply("help me please now"); output != "help now" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestParseRejectsBadEntries(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unsupported flag": `s/foo/bar/x`,
		"unterminated":     `s/foo/bar`,
		"empty source":     ` => sos`,
		"self alias":       `sos => SOS`,
		"symbols":          `!!!`,
	}
	for name, line := range cases {
		if _, _, err := parse(line); err == nil {
			t.Fatalf("%s: expected parse error for %q", name, line)
		} else if !strings.Contains(err.Error(), "line 1") {
			t.Fatalf("%s: expected line number in %v", name, err)
		}
	}
}

func TestNewCleansWords(t *testing.T) {
	t.Parallel()

	v := New([]string{"Help", "help", "  ", "Danger  Zone"})
	if got := v.Words(); !reflect.DeepEqual(got, []string{"help", "danger zone"}) {
		t.Fatalf("unexpected words: %v", got)
	}
	if got := v.Normalize("HELP"); got != "help" {
		t.Fatalf("unexpected normalize: %q", got)
	}
}

func writeVocabulary(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triggers.vocab")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write vocabulary: %v", err)
	}
	return path
}

// Package vocabulary loads the trigger-word list and the spoken aliases that
// are rewritten into trigger words before matching.
//
// A vocabulary file holds one entry per line:
//
//	# comments and blank lines are ignored
//	help
//	s o s => sos
//	s/\bhel+p\b/help/g
//
// Bare lines are trigger words, "a => b" lines are literal aliases and
// "s/pattern/replacement/flags" lines are regex aliases.
package vocabulary

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var wordLine = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}' -]*$`)

// Vocabulary is immutable after Load and safe for concurrent use.
type Vocabulary struct {
	words          []string
	aliases        []alias
	iterationLimit int
}

// New builds a vocabulary with no aliases.
func New(words []string) *Vocabulary {
	return &Vocabulary{words: cleanWords(words), iterationLimit: 30}
}

// Load reads a vocabulary file. A blank path or a missing file yields the
// default words with no aliases; words listed in the file replace the
// defaults.
func Load(path string, defaults []string, iterationLimit int) (*Vocabulary, error) {
	if iterationLimit <= 0 {
		iterationLimit = 30
	}
	v := &Vocabulary{words: cleanWords(defaults), iterationLimit: iterationLimit}

	if strings.TrimSpace(path) == "" {
		return v, nil
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
		return nil, fmt.Errorf("read vocabulary file %q: %w", path, err)
	}

	words, aliases, err := parse(string(contents))
	if err != nil {
		return nil, fmt.Errorf("parse vocabulary file %q: %w", path, err)
	}
	if len(words) > 0 {
		v.words = cleanWords(words)
	}
	v.aliases = aliases
	return v, nil
}

// Words returns the trigger words in configured order.
func (v *Vocabulary) Words() []string {
	return append([]string(nil), v.words...)
}

// Normalize lower-cases the transcript, collapses whitespace and applies the
// aliases until the text stops changing or the iteration limit is reached.
func (v *Vocabulary) Normalize(text string) string {
	result := collapseSpaces(strings.ToLower(text))
	for i := 0; i < v.iterationLimit && len(v.aliases) > 0; i++ {
		changed := false
		for _, a := range v.aliases {
			if next, ok := a.apply(result); ok {
				result = next
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return result
}

func parse(contents string) ([]string, []alias, error) {
	var (
		words   []string
		aliases []alias
	)
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "s/"):
			a, err := parseRegexAlias(line)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			aliases = append(aliases, a)
		case strings.Contains(line, "=>"):
			a, err := parseLiteralAlias(line)
			if err != nil {
				return nil, nil, fmt.Errorf("line %d: %w", index+1, err)
			}
			aliases = append(aliases, a)
		case wordLine.MatchString(line):
			words = append(words, line)
		default:
			return nil, nil, fmt.Errorf("line %d: unsupported vocabulary entry", index+1)
		}
	}
	return words, aliases, nil
}

func cleanWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, word := range words {
		word = collapseSpaces(strings.ToLower(word))
		if word == "" {
			continue
		}
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

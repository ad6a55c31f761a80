package vocabulary

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// alias rewrites a recognised phrase into its canonical trigger form.
type alias interface {
	apply(input string) (output string, changed bool)
}

// literalAlias replaces every occurrence of a phrase, e.g. "s o s => sos".
type literalAlias struct {
	re          *regexp.Regexp
	replacement string
}

func parseLiteralAlias(line string) (alias, error) {
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return nil, errors.New("invalid literal alias")
	}
	from = collapseSpaces(strings.ToLower(from))
	to = collapseSpaces(strings.ToLower(to))
	if from == "" {
		return nil, errors.New("alias source cannot be empty")
	}
	if from == to {
		return nil, errors.New("alias maps a phrase onto itself")
	}

	re, err := regexp.Compile(regexp.QuoteMeta(from))
	if err != nil {
		return nil, fmt.Errorf("invalid alias source: %w", err)
	}
	return literalAlias{re: re, replacement: to}, nil
}

func (a literalAlias) apply(input string) (string, bool) {
	output := a.re.ReplaceAllLiteralString(input, a.replacement)
	return output, output != input
}

// regexAlias is a sed-style substitution: s/pattern/replacement/flags.
// Matching is always case-insensitive; g replaces every match.
type regexAlias struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func parseRegexAlias(line string) (alias, error) {
	pattern, pos, err := readDelimited(line, 2, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid alias pattern: %w", err)
	}
	replacement, pos, err := readDelimited(line, pos, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid alias replacement: %w", err)
	}

	global := false
	for _, flag := range strings.TrimSpace(line[pos:]) {
		switch flag {
		case 'g':
			global = true
		case 'i', ' ':
		default:
			return nil, fmt.Errorf("unsupported alias flag %q", flag)
		}
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid alias regex: %w", err)
	}
	return regexAlias{re: re, replacement: strings.ToLower(replacement), global: global}, nil
}

func (a regexAlias) apply(input string) (string, bool) {
	if a.global {
		output := a.re.ReplaceAllString(input, a.replacement)
		return output, output != input
	}

	loc := a.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}
	expanded := a.re.ExpandString(nil, a.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}

func readDelimited(line string, start int, delim byte) (string, int, error) {
	if start >= len(line) {
		return "", 0, errors.New("unexpected end of expression")
	}

	var builder strings.Builder
	escaped := false
	for index := start; index < len(line); index++ {
		char := line[index]
		switch {
		case escaped:
			if char != delim {
				builder.WriteByte('\\')
			}
			builder.WriteByte(char)
			escaped = false
		case char == '\\':
			escaped = true
		case char == delim:
			return builder.String(), index + 1, nil
		default:
			builder.WriteByte(char)
		}
	}
	return "", 0, errors.New("unterminated expression")
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

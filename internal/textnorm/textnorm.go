// Package textnorm turns raw document text into the normalized form every
// extraction and matching step works on.
package textnorm

import (
	"strings"
	"unicode"
)

// technical characters survive normalization because they carry meaning
// inside skill names such as c++, c#, node.js or ci/cd.
const technical = "+#./-"

// Normalize lowercases text, replaces every rune outside letters, digits,
// whitespace and "+#./-" with a space, collapses whitespace runs and trims
// the result. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	space := true
	for _, r := range strings.ToLower(text) {
		r = foldDash(r)
		if !keep(r) || unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}

	return strings.TrimSuffix(b.String(), " ")
}

// TokenizeWords splits text into lowercase word tokens. Technical characters
// stay inside tokens, but leading and trailing dots, slashes and dashes are
// trimmed so sentence punctuation does not stick to words.
func TokenizeWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		r = foldDash(r)
		return !keep(r) || unicode.IsSpace(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.Trim(field, "./-")
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}

	return tokens
}

// TokenizeCSV splits a comma separated list, trimming every entry and dropping
// empty ones. Casing is preserved.
func TokenizeCSV(text string) []string {
	parts := strings.Split(text, ",")
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tokens = append(tokens, part)
	}
	return tokens
}

// IndexPhrase returns the byte offset of the first whole-phrase occurrence of
// needle in haystack at or after from, or -1. Both arguments are expected to
// be normalized already.
func IndexPhrase(haystack, needle string, from int) int {
	if needle == "" || from < 0 {
		return -1
	}

	for from <= len(haystack)-len(needle) {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return -1
		}
		start := from + idx
		end := start + len(needle)
		if IsBoundary(haystack, start, end) {
			return start
		}
		from = start + 1
	}

	return -1
}

// ContainsPhrase reports whether needle occurs in haystack as a whole phrase.
// Both arguments are normalized before comparison.
func ContainsPhrase(haystack, needle string) bool {
	return IndexPhrase(Normalize(haystack), Normalize(needle), 0) >= 0
}

// IsBoundary reports whether text[start:end] is delimited by phrase
// boundaries on both sides. Letters, digits, '+' and '#' glue to a phrase, a
// dot glues only when it sits between two word characters (asp.net).
func IsBoundary(text string, start, end int) bool {
	if start > 0 {
		prev := text[start-1]
		if glue(prev) {
			return false
		}
		if prev == '.' && start > 1 && wordByte(text[start-2]) {
			return false
		}
	}

	if end < len(text) {
		next := text[end]
		if glue(next) {
			return false
		}
		if next == '.' && end+1 < len(text) && wordByte(text[end+1]) {
			return false
		}
	}

	return true
}

func keep(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(technical, r)
}

func foldDash(r rune) rune {
	switch r {
	case '‐', '‑', '‒', '–', '—', '―', '−':
		return '-'
	}
	return r
}

func glue(b byte) bool {
	return wordByte(b) || b == '+' || b == '#'
}

// wordByte treats every non-ASCII byte as part of a word so multi-byte
// letters never split a phrase.
func wordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}

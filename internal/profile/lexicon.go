package profile

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spigell/resume-matcher/internal/textnorm"
)

//go:embed skills.txt
var defaultSkills []byte

var (
	defaultLexicon     *Lexicon
	defaultLexiconErr  error
	defaultLexiconOnce sync.Once
)

type entry struct {
	display string
	key     string
	order   int
}

// Lexicon is a compiled, read-only skill dictionary. Entries are kept both in
// file order, which defines the output order, and longest-first, which
// defines the scan order.
type Lexicon struct {
	entries []entry
	scan    []entry
}

// DefaultLexicon returns the embedded skill dictionary, compiled on first use.
func DefaultLexicon() (*Lexicon, error) {
	defaultLexiconOnce.Do(func() {
		defaultLexicon, defaultLexiconErr = ParseLexicon(defaultSkills)
	})
	return defaultLexicon, defaultLexiconErr
}

// LoadLexicon compiles a dictionary file with one skill per line.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skill lexicon %q: %w", path, err)
	}
	return ParseLexicon(data)
}

// ParseLexicon compiles a dictionary. Blank lines and lines starting with '#'
// are skipped, entries that normalize to the same key are kept once.
func ParseLexicon(data []byte) (*Lexicon, error) {
	lex := &Lexicon{}
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := textnorm.Normalize(line)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		lex.entries = append(lex.entries, entry{display: line, key: key, order: len(lex.entries)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing skill lexicon: %w", err)
	}

	if len(lex.entries) == 0 {
		return nil, fmt.Errorf("skill lexicon is empty")
	}

	lex.scan = append([]entry(nil), lex.entries...)
	sort.SliceStable(lex.scan, func(i, j int) bool {
		return len(lex.scan[i].key) > len(lex.scan[j].key)
	})

	return lex, nil
}

func (l *Lexicon) Len() int {
	return len(l.entries)
}

// Match returns the skills found in normalized text, in dictionary order.
// Longer entries are matched first and claim their span, so a shorter entry
// never matches inside text already attributed to a longer one.
func (l *Lexicon) Match(normalized string) []string {
	if normalized == "" {
		return nil
	}

	claimed := make([]bool, len(normalized))
	found := make([]bool, len(l.entries))

	for _, e := range l.scan {
		from := 0
		for {
			idx := textnorm.IndexPhrase(normalized, e.key, from)
			if idx < 0 {
				break
			}
			end := idx + len(e.key)
			if free(claimed, idx, end) {
				for i := idx; i < end; i++ {
					claimed[i] = true
				}
				found[e.order] = true
			}
			from = idx + 1
		}
	}

	var skills []string
	for i, ok := range found {
		if ok {
			skills = append(skills, l.entries[i].display)
		}
	}
	return skills
}

func free(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return false
		}
	}
	return true
}

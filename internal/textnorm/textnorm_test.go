package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "empty", input: "", expect: ""},
		{name: "only noise", input: " \t\n•••\n", expect: ""},
		{name: "lowercases and collapses", input: "  Python,\n\tDjango  SQL ", expect: "python django sql"},
		{name: "keeps technical characters", input: "C++ / C# / Node.js / CI/CD", expect: "c++ / c# / node.js / ci/cd"},
		{name: "folds unicode dashes", input: "Jan 2019 – Mar 2024", expect: "jan 2019 - mar 2024"},
		{name: "drops punctuation", input: "Objective: (Backend) Developer!", expect: "objective backend developer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"John Smith\nEmail: john.smith@email.com | Phone: +91-9876543210",
		"Software Engineer - TechFirm Pvt Ltd          2021 - 2024",
		"ÄÖÜ Straße — İstanbul, naïve café",
		"   ...---///   ",
	}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestTokenizeWords(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"c++", "asp.net", "dev"}, TokenizeWords("C++ / ASP.NET dev."))
	assert.Equal(t, []string{"senior", "python", "developer"}, TokenizeWords("Senior Python Developer"))
	assert.Equal(t, []string{"ci/cd", "pipelines"}, TokenizeWords("(CI/CD) pipelines."))
	assert.Empty(t, TokenizeWords("  , ; . -  "))
}

func TestTokenizeCSV(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		[]string{"Python", "Django", "SQL", "REST API"},
		TokenizeCSV("Python, Django, SQL, REST API"),
	)
	assert.Equal(t, []string{"Go"}, TokenizeCSV(" ,Go,, ,"))
	assert.Empty(t, TokenizeCSV(""))
}

func TestContainsPhrase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		haystack string
		needle   string
		expect   bool
	}{
		{haystack: "Core Java", needle: "java", expect: true},
		{haystack: "JavaScript", needle: "java", expect: false},
		{haystack: "C++", needle: "c", expect: false},
		{haystack: "python/django", needle: "django", expect: true},
		{haystack: "asp.net mvc", needle: "net", expect: false},
		{haystack: "knows python.", needle: "python", expect: true},
		{haystack: "anything", needle: "", expect: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, ContainsPhrase(tt.haystack, tt.needle), "%q in %q", tt.needle, tt.haystack)
	}
}

func TestIndexPhraseSkipsEmbeddedMatches(t *testing.T) {
	t.Parallel()

	text := "javascript and java"
	assert.Equal(t, 15, IndexPhrase(text, "java", 0))
	assert.Equal(t, -1, IndexPhrase(text, "java", 16))
}

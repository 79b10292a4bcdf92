package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "Python, Django", limit: 0, expect: ""},
		{name: "fits", input: "SQL", limit: 10, expect: "SQL"},
		{name: "cut with ellipsis", input: "Objective: Backend Developer", limit: 9, expect: "Objective..."},
		{name: "trims before counting", input: "  Go  ", limit: 2, expect: "Go"},
		{name: "counts runes", input: "Küche und Straße", limit: 5, expect: "Küche..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

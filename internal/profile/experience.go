package profile

import (
	"regexp"
	"strconv"
	"time"
)

const maxPlausibleYears = 50

var (
	explicitYearsRe = regexp.MustCompile(`\b(\d{1,2})\s*\+?\s*(?:years?|yrs?)\b`)

	months      = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`
	yearRangeRe = regexp.MustCompile(
		`\b(?:` + months + `\s+)?((?:19|20)\d{2})\s*(?:-|to)\s*(?:` + months + `\s+)?((?:19|20)\d{2}|present|current|till date|now)\b`,
	)
)

// extractExperience returns the largest plausible explicit "N years"
// mention. Without one, year ranges of at least a year are summed. nil means
// nothing usable was found.
func extractExperience(normalized string, now time.Time) *int {
	best := -1
	for _, match := range explicitYearsRe.FindAllStringSubmatch(normalized, -1) {
		years, err := strconv.Atoi(match[1])
		if err != nil || years > maxPlausibleYears {
			continue
		}
		if years > best {
			best = years
		}
	}
	if best >= 0 {
		return &best
	}

	total := 0
	for _, match := range yearRangeRe.FindAllStringSubmatch(normalized, -1) {
		start, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		end := now.Year()
		if n, err := strconv.Atoi(match[2]); err == nil {
			end = n
		}

		if end > now.Year() || end-start < 1 {
			continue
		}
		total += end - start
	}

	if total == 0 {
		return nil
	}
	total = min(total, maxPlausibleYears)
	return &total
}

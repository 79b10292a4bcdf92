package matching

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/resume-matcher/internal/textnorm"
)

// Factor weights. They sum to 1.
const (
	WeightSkill      = 0.5
	WeightRole       = 0.3
	WeightExperience = 0.2
)

const (
	// neutralExperience is used when the requirement cannot be parsed.
	neutralExperience = 0.5
	// unknownExperiencePenalty scales range and minimum scores when the
	// candidate's experience is unknown, so a known zero always wins.
	unknownExperiencePenalty = 0.5
	overqualifiedDecay       = 0.1
	fresherDecay             = 0.2
	// maxRequiredYears bounds a parsed requirement. Larger numbers are
	// treated as unparseable.
	maxRequiredYears = 100
)

var stopWords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "a": {}, "an": {}, "of": {}, "in": {}, "at": {}, "for": {},
}

var (
	rangeRe   = regexp.MustCompile(`(\d+)\s*(?:-|–|—|to)\s*(\d+)\s*\+?\s*(?:years?|yrs?)?`)
	minimumRe = regexp.MustCompile(`(\d+)\s*\+\s*(?:years?|yrs?)?|(?:minimum|min\.?|at least)\s*(?:of\s*)?(\d+)\s*(?:years?|yrs?)`)
	fresherRe = regexp.MustCompile(`\b(?:fresher|freshers|entry[\s-]level|no experience)\b`)
)

// skillMatch compares the job's skill list with the candidate's skills. It
// returns the fraction of job skills covered, the candidate skills that
// matched and the job skills nobody covered.
func skillMatch(candidate []string, jobFunction string) (float64, []string, []string) {
	required := textnorm.TokenizeCSV(jobFunction)
	if len(required) == 0 {
		return 0, []string{}, []string{}
	}

	matched := []string{}
	missing := []string{}
	seen := make(map[string]struct{})

	hits := 0
	for _, req := range required {
		skill, ok := coveredBy(req, candidate)
		if !ok {
			missing = append(missing, req)
			continue
		}
		hits++
		key := strings.ToLower(skill)
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			matched = append(matched, skill)
		}
	}

	return float64(hits) / float64(len(required)), matched, missing
}

// coveredBy reports the first candidate skill that equals the requirement
// after normalisation, or contains it or is contained by it as a whole
// phrase. Containment is stricter than a plain substring test: it must start
// and end on word boundaries, so "Java" does not cover "JavaScript" and
// "Node" does not cover "Node.js".
func coveredBy(requirement string, candidate []string) (string, bool) {
	req := textnorm.Normalize(requirement)
	if req == "" {
		return "", false
	}

	for _, skill := range candidate {
		s := textnorm.Normalize(skill)
		if s == "" {
			continue
		}
		if s == req || textnorm.ContainsPhrase(requirement, skill) || textnorm.ContainsPhrase(skill, requirement) {
			return skill, true
		}
	}
	return "", false
}

// roleMatch is the share of the candidate's role words found in the job
// title. It is asymmetric: extra title words cost nothing.
func roleMatch(role, title string) float64 {
	roleWords := contentWords(role)
	if len(roleWords) == 0 {
		return 0
	}

	titleWords := contentWords(title)
	common := 0
	for word := range roleWords {
		if _, ok := titleWords[word]; ok {
			common++
		}
	}

	return float64(common) / float64(len(roleWords))
}

func contentWords(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, token := range textnorm.TokenizeWords(text) {
		if _, stop := stopWords[token]; stop {
			continue
		}
		words[token] = struct{}{}
	}
	return words
}

// experienceMatch scores the candidate's years against free-text
// requirements. Ranges are checked first, then minimums, then fresher
// wording. Anything else is neutral.
func experienceMatch(years *int, requirement string) float64 {
	text := strings.ToLower(strings.TrimSpace(requirement))
	if text == "" {
		return neutralExperience
	}

	known := years != nil
	y := 0
	if known {
		y = *years
	}

	penalize := func(score float64) float64 {
		if known {
			return score
		}
		return score * unknownExperiencePenalty
	}

	if m := rangeRe.FindStringSubmatch(text); m != nil {
		low, okLow := requiredYears(m[1])
		high, okHigh := requiredYears(m[2])
		if !okLow || !okHigh {
			return neutralExperience
		}
		if low > high {
			low, high = high, low
		}
		switch {
		case y < low:
			return penalize(below(y, low))
		case y > high:
			return penalize(math.Max(0, 1-overqualifiedDecay*float64(y-high)))
		default:
			return penalize(1)
		}
	}

	if m := minimumRe.FindStringSubmatch(text); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		minimum, ok := requiredYears(raw)
		if !ok {
			return neutralExperience
		}
		if y >= minimum {
			return penalize(1)
		}
		return penalize(below(y, minimum))
	}

	if fresherRe.MatchString(text) {
		if y <= 1 {
			return 1
		}
		return math.Max(0, 1-fresherDecay*float64(y-1))
	}

	return neutralExperience
}

func requiredYears(digits string) (int, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil || n > maxRequiredYears {
		return 0, false
	}
	return n, true
}

// below decays proportionally with the shortfall and stays above zero.
func below(years, required int) float64 {
	return 1 - float64(required-years)/float64(required+1)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent renders a factor score in [0,1] as a 0-100 value with two decimals.
func Percent(v float64) float64 {
	return round2(v * 100)
}

// LabelFor maps a rounded 0-100 score to its band.
func LabelFor(score float64) string {
	switch {
	case score >= 80:
		return LabelExcellent
	case score >= 60:
		return LabelGood
	case score >= 40:
		return LabelPartial
	default:
		return LabelLow
	}
}

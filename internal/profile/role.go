package profile

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/resume-matcher/internal/textnorm"
)

// roleWindow is how many words after a marker are searched for a role.
const roleWindow = 12

var roleKeywords = sortedLongestFirst([]string{
	"software engineer",
	"software developer",
	"backend developer",
	"backend engineer",
	"frontend developer",
	"frontend engineer",
	"fullstack developer",
	"full stack developer",
	"full-stack developer",
	"data scientist",
	"data analyst",
	"data engineer",
	"machine learning engineer",
	"devops engineer",
	"cloud engineer",
	"network engineer",
	"security engineer",
	"embedded systems engineer",
	"mechanical engineer",
	"design engineer",
	"civil engineer",
	"site engineer",
	"electrical engineer",
	"qa engineer",
	"qa analyst",
	"qa tester",
	"test engineer",
	"automation engineer",
	"business analyst",
	"systems analyst",
	"database administrator",
	"system administrator",
	"cloud architect",
	"solutions architect",
	"ui/ux designer",
	"ui designer",
	"ux designer",
	"product manager",
	"project manager",
	"scrum master",
	"developer",
	"engineer",
	"analyst",
	"designer",
	"manager",
	"consultant",
	"architect",
	"administrator",
	"scientist",
	"tester",
	"devops",
	"backend",
	"frontend",
	"fullstack",
	"full stack",
	"mechanical",
	"civil",
	"electrical",
	"embedded",
})

// Markers that introduce the role the candidate is after, strongest first.
var (
	explicitMarkers = []string{"title", "position", "desired role", "applying for"}
	sectionMarkers  = []string{"career objective", "objective", "summary"}
)

var acronyms = map[string]string{
	"qa":     "QA",
	"ui":     "UI",
	"ux":     "UX",
	"ui/ux":  "UI/UX",
	"devops": "DevOps",
}

// extractRole runs the role heuristics in order: explicit markers, a
// capitalized header line, objective/summary sections and finally a scan of
// the whole text. raw is used only for the header line heuristic.
func extractRole(raw, normalized string) string {
	if role := roleAfterMarkers(normalized, explicitMarkers); role != "" {
		return role
	}
	if role := roleFromHeaderLine(raw); role != "" {
		return role
	}
	if role := roleAfterMarkers(normalized, sectionMarkers); role != "" {
		return role
	}
	if kw := longestKeyword(normalized); kw != "" {
		return displayRole(kw)
	}
	return ""
}

type markerHit struct {
	pos int
	end int
}

func roleAfterMarkers(normalized string, markers []string) string {
	var hits []markerHit
	for _, marker := range markers {
		from := 0
		for {
			idx := textnorm.IndexPhrase(normalized, marker, from)
			if idx < 0 {
				break
			}
			hits = append(hits, markerHit{pos: idx, end: idx + len(marker)})
			from = idx + 1
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	for _, hit := range hits {
		if kw := longestKeyword(window(normalized[hit.end:])); kw != "" {
			return displayRole(kw)
		}
	}
	return ""
}

// window returns up to roleWindow words, stopping after a word that ends a
// sentence.
func window(text string) string {
	words := strings.Fields(text)
	var picked []string
	for _, word := range words {
		if len(picked) == roleWindow {
			break
		}
		trimmed := strings.TrimRight(word, ".")
		if trimmed != "" {
			picked = append(picked, trimmed)
		}
		if trimmed != word {
			break
		}
	}
	return strings.Join(picked, " ")
}

func roleFromHeaderLine(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 || len(words) > 5 {
			continue
		}

		capitalized := true
		for _, word := range words {
			r, _ := utf8.DecodeRuneInString(word)
			if !unicode.IsUpper(r) {
				capitalized = false
				break
			}
		}
		if !capitalized {
			continue
		}

		normalized := textnorm.Normalize(line)
		for _, kw := range roleKeywords {
			if strings.HasSuffix(normalized, kw) && textnorm.IsBoundary(normalized, len(normalized)-len(kw), len(normalized)) {
				return strings.Join(words, " ")
			}
		}
	}
	return ""
}

func longestKeyword(text string) string {
	for _, kw := range roleKeywords {
		if textnorm.IndexPhrase(text, kw, 0) >= 0 {
			return kw
		}
	}
	return ""
}

func displayRole(keyword string) string {
	words := strings.Fields(keyword)
	for i, word := range words {
		if acronym, ok := acronyms[word]; ok {
			words[i] = acronym
			continue
		}
		parts := strings.Split(word, "-")
		for j, part := range parts {
			if part == "" {
				continue
			}
			parts[j] = strings.ToUpper(part[:1]) + part[1:]
		}
		words[i] = strings.Join(parts, "-")
	}
	return strings.Join(words, " ")
}

func sortedLongestFirst(keywords []string) []string {
	sorted := append([]string(nil), keywords...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	return sorted
}

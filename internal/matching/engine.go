// Package matching scores job postings against a candidate profile. Scores
// depend only on the profile and the postings, never on call order or
// previous calls.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/profile"
)

const (
	LabelExcellent = "Excellent Match"
	LabelGood      = "Good Match"
	LabelPartial   = "Partial Match"
	LabelLow       = "Low Match"
)

// Result is the score of one posting. Skill, Role and Experience are the raw
// factor scores in [0,1]; FinalScore is their weighted sum scaled to 0-100
// and rounded to two decimals.
type Result struct {
	JobID      catalog.JobID `json:"job_id"`
	Rank       int           `json:"rank"`
	FinalScore float64       `json:"final_score"`
	Label      string        `json:"label"`

	Skill      float64 `json:"skill"`
	Role       float64 `json:"role"`
	Experience float64 `json:"experience"`

	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`

	Company            string `json:"company,omitempty"`
	JobTitle           string `json:"job_title,omitempty"`
	JobFunction        string `json:"job_function,omitempty"`
	Qualification      string `json:"qualification,omitempty"`
	ExperienceRequired string `json:"experience_required,omitempty"`
	Vacancies          string `json:"vacancies,omitempty"`
}

// Engine holds no per-request state and is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Validate checks the inputs Match refuses to score.
func Validate(p profile.Profile, jobs []catalog.JobPosting) error {
	if p.ExperienceYears != nil && *p.ExperienceYears < 0 {
		return NewValidationError("resume_profile.experience_years", "must not be negative")
	}

	for i, job := range jobs {
		if job.ID.IsZero() {
			return NewValidationError(fmt.Sprintf("jobs[%d].id", i), "is required")
		}
	}
	return nil
}

// Match scores every posting and returns the results ordered by FinalScore,
// highest first. Ties keep the input order.
func (e *Engine) Match(p profile.Profile, jobs []catalog.JobPosting) ([]Result, error) {
	if err := Validate(p, jobs); err != nil {
		return nil, err
	}

	skills := dedupe(p.Skills)

	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		result := score(skills, p, job)
		e.logger.Debug("job scored",
			zap.String("job_id", job.ID.String()),
			zap.Float64("skill", result.Skill),
			zap.Float64("role", result.Role),
			zap.Float64("experience", result.Experience),
			zap.Float64("final", result.FinalScore),
		)
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	fields := []zap.Field{zap.Int("jobs", len(results))}
	if len(results) > 0 {
		fields = append(fields,
			zap.String("top_job_id", results[0].JobID.String()),
			zap.Float64("top_score", results[0].FinalScore),
		)
	}
	e.logger.Info("matching complete", fields...)

	return results, nil
}

func score(skills []string, p profile.Profile, job catalog.JobPosting) Result {
	skill, matched, missing := skillMatch(skills, job.JobFunction)
	skill = clamp01(skill)
	role := clamp01(roleMatch(p.Role, job.JobTitle))
	experience := clamp01(experienceMatch(p.ExperienceYears, job.Experience))

	final := round2((WeightSkill*skill + WeightRole*role + WeightExperience*experience) * 100)

	return Result{
		JobID:              job.ID,
		FinalScore:         final,
		Label:              LabelFor(final),
		Skill:              skill,
		Role:               role,
		Experience:         experience,
		MatchedSkills:      matched,
		MissingSkills:      missing,
		Company:            job.Company,
		JobTitle:           job.JobTitle,
		JobFunction:        job.JobFunction,
		Qualification:      job.Qualification,
		ExperienceRequired: job.Experience,
		Vacancies:          job.Vacancies,
	}
}

// dedupe drops empty and case-insensitively repeated skills, first one wins.
func dedupe(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}
	return out
}

// Explain renders a short human readable breakdown of a result.
func Explain(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s at %s: %.2f (%s)\n", r.JobTitle, r.Company, r.FinalScore, r.Label)
	fmt.Fprintf(&b, "  skills      %5.1f%% x %.1f", r.Skill*100, WeightSkill)
	if len(r.MatchedSkills) > 0 {
		fmt.Fprintf(&b, "  matched: %s", strings.Join(r.MatchedSkills, ", "))
	}
	if len(r.MissingSkills) > 0 {
		fmt.Fprintf(&b, "  missing: %s", strings.Join(r.MissingSkills, ", "))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  role        %5.1f%% x %.1f\n", r.Role*100, WeightRole)
	fmt.Fprintf(&b, "  experience  %5.1f%% x %.1f", r.Experience*100, WeightExperience)
	if r.ExperienceRequired != "" {
		fmt.Fprintf(&b, "  required: %s", r.ExperienceRequired)
	}
	b.WriteString("\n")
	return b.String()
}

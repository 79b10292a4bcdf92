package server

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/pipeline"
	"github.com/spigell/resume-matcher/internal/profile"
)

type profileRequest struct {
	ExtractedSkills []string `json:"extracted_skills" validate:"max=1000,dive,max=200"`
	ParsedRole      string   `json:"parsed_role" validate:"max=200"`
	ExperienceYears *int     `json:"experience_years" validate:"omitnil,gte=0"`
}

func (p *profileRequest) toProfile() profile.Profile {
	return profile.Profile{
		Skills:          p.ExtractedSkills,
		Role:            p.ParsedRole,
		ExperienceYears: p.ExperienceYears,
	}
}

type matchRequest struct {
	ResumeProfile *profileRequest  `json:"resume_profile" validate:"required"`
	Jobs          []map[string]any `json:"jobs" validate:"required"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type profileResponse struct {
	ExtractedSkills  []string `json:"extracted_skills"`
	ParsedRole       string   `json:"parsed_role"`
	ExperienceYears  *int     `json:"experience_years"`
	TotalSkillsFound int      `json:"total_skills_found"`
}

type jobMatchResponse struct {
	JobID              catalog.JobID `json:"job_id"`
	Company            string        `json:"company"`
	JobTitle           string        `json:"job_title"`
	JobFunction        string        `json:"job_function"`
	Vacancies          string        `json:"vacancies"`
	Qualification      string        `json:"qualification"`
	ExperienceRequired string        `json:"experience_required"`
	FinalScore         float64       `json:"final_score"`
	SkillScore         float64       `json:"skill_score"`
	RoleScore          float64       `json:"role_score"`
	ExperienceScore    float64       `json:"experience_score"`
	Label              string        `json:"label"`
	MatchLabel         string        `json:"match_label"`
	MatchedSkills      []string      `json:"matched_skills"`
	MissingSkills      []string      `json:"missing_skills"`
	Rank               int           `json:"rank"`
}

type uploadResponse struct {
	Success           bool               `json:"success"`
	Message           string             `json:"message"`
	ResumeProfile     profileResponse    `json:"resume_profile"`
	JobMatches        []jobMatchResponse `json:"job_matches"`
	TotalJobsAnalysed int                `json:"total_jobs_analysed"`
	ProcessingTimeMS  int64              `json:"processing_time_ms"`
}

type matchResponse struct {
	Success           bool               `json:"success"`
	Message           string             `json:"message"`
	JobMatches        []jobMatchResponse `json:"job_matches"`
	TotalJobsAnalysed int                `json:"total_jobs_analysed"`
	ProcessingTimeMS  int64              `json:"processing_time_ms"`
}

type jobsResponse struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Jobs    []catalog.JobPosting `json:"jobs"`
	Total   int                  `json:"total"`
}

func newProfileResponse(p profile.Profile) profileResponse {
	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}
	return profileResponse{
		ExtractedSkills:  skills,
		ParsedRole:       p.Role,
		ExperienceYears:  p.ExperienceYears,
		TotalSkillsFound: len(skills),
	}
}

func newJobMatches(results []matching.Result) []jobMatchResponse {
	out := make([]jobMatchResponse, 0, len(results))
	for _, r := range results {
		out = append(out, jobMatchResponse{
			JobID:              r.JobID,
			Company:            r.Company,
			JobTitle:           r.JobTitle,
			JobFunction:        r.JobFunction,
			Vacancies:          r.Vacancies,
			Qualification:      r.Qualification,
			ExperienceRequired: r.ExperienceRequired,
			FinalScore:         r.FinalScore,
			SkillScore:         matching.Percent(r.Skill),
			RoleScore:          matching.Percent(r.Role),
			ExperienceScore:    matching.Percent(r.Experience),
			Label:              r.Label,
			MatchLabel:         r.Label,
			MatchedSkills:      nonNil(r.MatchedSkills),
			MissingSkills:      nonNil(r.MissingSkills),
			Rank:               r.Rank,
		})
	}
	return out
}

func newUploadResponse(report *pipeline.Report) uploadResponse {
	return uploadResponse{
		Success:           true,
		Message:           "Resume processed successfully",
		ResumeProfile:     newProfileResponse(report.Profile),
		JobMatches:        newJobMatches(report.Matches),
		TotalJobsAnalysed: report.TotalJobs,
		ProcessingTimeMS:  report.ProcessingTime.Milliseconds(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

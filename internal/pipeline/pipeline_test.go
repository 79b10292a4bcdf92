package pipeline

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/filtering"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/profile"
)

const backendResume = `John Smith
Objective: Seeking a position as a Backend Developer with 3 years of experience.
Skills: Python, Django, SQL, PostgreSQL, REST API, Git, Docker, Linux
3 years of experience in software development`

func newService(t *testing.T, cfg *filtering.Config) (*Service, string) {
	t.Helper()

	lex, err := profile.DefaultLexicon()
	require.NoError(t, err)
	jobs, err := catalog.Sample()
	require.NoError(t, err)

	dir := t.TempDir()
	svc, err := New(Options{
		Lexicon:      lex,
		Catalog:      jobs,
		FilterConfig: cfg,
		TempDir:      dir,
		Clock:        func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc, dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessUpload(t *testing.T) {
	t.Parallel()

	svc, dir := newService(t, nil)

	report, err := svc.ProcessUpload(context.Background(), "resume.txt", strings.NewReader(backendResume))
	require.NoError(t, err)
	assertEmptyDir(t, dir)

	assert.Equal(t, "Backend Developer", report.Profile.Role)
	require.NotNil(t, report.Profile.ExperienceYears)
	assert.Equal(t, 3, *report.Profile.ExperienceYears)
	assert.Contains(t, report.Profile.Skills, "Django")

	require.Equal(t, 12, report.TotalJobs)
	top := report.Matches[0]
	assert.Equal(t, "1", top.JobID.String())
	assert.InDelta(t, 85.0, top.FinalScore, 1e-9)
	assert.Equal(t, matching.LabelExcellent, top.Label)
}

func TestProcessUploadAppliesFilters(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, &filtering.Config{ExcludeCompanies: []string{"TechCorp Hyderabad"}})

	report, err := svc.ProcessDocument(context.Background(), "resume.txt", []byte(backendResume))
	require.NoError(t, err)
	assert.Equal(t, 11, report.TotalJobs)
	for _, m := range report.Matches {
		assert.NotEqual(t, "1", m.JobID.String())
	}

	assert.Len(t, svc.Jobs(), 12, "catalog listing is never filtered")
}

func TestProcessUploadRejectsUnreadableDocuments(t *testing.T) {
	t.Parallel()

	svc, dir := newService(t, nil)

	_, err := svc.ProcessUpload(context.Background(), "resume.pdf", strings.NewReader("not a pdf"))
	var extraction *document.ExtractionError
	require.True(t, errors.As(err, &extraction))
	assertEmptyDir(t, dir)

	_, err = svc.ProcessUpload(context.Background(), "image", strings.NewReader("\x00\x01\x02\xff"))
	require.True(t, errors.As(err, &extraction))
	assert.True(t, extraction.Unsupported)
	assertEmptyDir(t, dir)
}

func TestMatch(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)

	results, err := svc.Match(context.Background(), profile.Profile{Skills: []string{"SQL"}}, svc.Jobs())
	require.NoError(t, err)
	assert.Len(t, results, 12)

	_, err = svc.Match(context.Background(), profile.Profile{}, []catalog.JobPosting{{}})
	var validation *matching.ValidationError
	assert.True(t, errors.As(err, &validation))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.Match(ctx, profile.Profile{}, svc.Jobs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)
	health := svc.Health()

	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.LexiconLoaded)
	assert.GreaterOrEqual(t, health.LexiconSize, 75)
	assert.Equal(t, 12, health.JobsLoaded)
	assert.InDelta(t, 1.0, health.MatchingFactors["skill_match"]+health.MatchingFactors["role_match"]+health.MatchingFactors["experience_match"], 1e-9)
	assert.Len(t, health.Filters, 3)
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	lex, err := profile.DefaultLexicon()
	require.NoError(t, err)

	_, err = New(Options{Catalog: catalog.NewJobs(nil)})
	assert.Error(t, err)
	_, err = New(Options{Lexicon: lex})
	assert.Error(t, err)
	_, err = New(Options{Lexicon: lex, Catalog: catalog.NewJobs(nil), FilterConfig: &filtering.Config{ExcludeFile: "/does/not/exist.json"}})
	assert.Error(t, err)
}

func TestTempPattern(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "resume_*.pdf", tempPattern("CV.PDF"))
	assert.Equal(t, "resume_*.docx", tempPattern("cv.docx"))
	assert.Equal(t, "resume_*", tempPattern("cv.exe"))
	assert.Equal(t, "resume_*", tempPattern(""))
}

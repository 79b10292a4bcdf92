package cmd

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/matching"
)

func TestConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("RESUME_MATCHER_SERVER_ADDRESS", ":9090")
	t.Setenv("RESUME_MATCHER_WORKER_CONCURRENCY", "8")
	t.Setenv("RESUME_MATCHER_STORAGE_BUCKET", "uploads")
	t.Setenv("RESUME_MATCHER_SECRETS_AMQP_URL_FILE", "/run/secrets/amqp")
	t.Setenv("RESUME_MATCHER_FILTERS_DISABLED", "exclude_file,duplicate_ids")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var config Config
	require.NoError(t, v.Unmarshal(&config))

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, int64(10<<20), config.Server.MaxUploadBytes)
	assert.InDelta(t, 20.0, config.Server.RateLimit, 1e-9)
	assert.Equal(t, 40, config.Server.RateBurst)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)

	assert.Equal(t, 8, config.Worker.Concurrency)
	assert.Equal(t, "match_requests", config.Worker.Queue)
	assert.Equal(t, "match_results", config.Worker.Exchange)
	assert.Equal(t, 500*time.Millisecond, config.Worker.DownloadBackoff)

	assert.Equal(t, "uploads", config.Storage.Bucket)
	assert.Equal(t, "/run/secrets/amqp", config.Secrets.AMQPURLFile)
	assert.Empty(t, config.Catalog)
	assert.Equal(t, []string{"exclude_file", "duplicate_ids"}, config.Filters.Disabled)
	assert.Empty(t, config.Filters.ExcludeCompanies)
}

func TestParseMatchFile(t *testing.T) {
	t.Parallel()

	fallback := []catalog.JobPosting{{ID: catalog.IntID(1)}, {ID: catalog.IntID(2)}}

	p, jobs, err := parseMatchFile(zap.NewNop(), []byte(`{"resume_profile":{"extracted_skills":["SQL"],"parsed_role":"Data Analyst","experience_years":1}}`), fallback)
	require.NoError(t, err)
	assert.Equal(t, []string{"SQL"}, p.Skills)
	assert.Equal(t, "Data Analyst", p.Role)
	require.NotNil(t, p.ExperienceYears)
	assert.Equal(t, 1, *p.ExperienceYears)
	assert.Len(t, jobs, 2)

	_, jobs, err = parseMatchFile(zap.NewNop(), []byte(`{"resume_profile":{},"jobs":[{"id":10,"job_title":"QA Engineer"}]}`), fallback)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "10", jobs[0].ID.String())

	_, _, err = parseMatchFile(zap.NewNop(), []byte(`{"jobs":[]}`), fallback)
	var validation *matching.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "resume_profile", validation.Field)

	_, _, err = parseMatchFile(zap.NewNop(), []byte(`{"resume_profile":{},"jobs":[{"id":1.5}]}`), fallback)
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, "jobs", validation.Field)

	_, _, err = parseMatchFile(zap.NewNop(), []byte(`not json`), fallback)
	assert.Error(t, err)
}

func TestAppendToExcludeFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "excluded.json")
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := catalog.NewJobs([]catalog.JobPosting{{ID: catalog.IntID(1), Company: "TechCorp Hyderabad", JobTitle: "Python Backend Engineer"}})
	excluded, err := appendToExcludeFile(path, first, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, excluded.JobIDs())

	second := catalog.NewJobs([]catalog.JobPosting{{ID: catalog.StringID("x-2"), Company: "DataVision"}})
	_, err = appendToExcludeFile(path, second, now)
	require.NoError(t, err)

	stored, err := catalog.GetExcludedJobsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "x-2"}, stored.JobIDs())
	assert.Equal(t, now, stored.Items[0].ExcludedAt)
}

func TestResultHelpers(t *testing.T) {
	t.Parallel()

	results := []matching.Result{
		{JobID: catalog.IntID(3), FinalScore: 85, JobTitle: "Backend Developer", Company: "CloudNative Solutions"},
		{JobID: catalog.StringID("a7"), FinalScore: 40.5, JobTitle: "QA Engineer", Company: "QualityFirst"},
	}

	assert.Equal(t, "3  85.00 Backend Developer / CloudNative Solutions", resultLabel(results[0]))

	found := findResult(results, "a7")
	require.NotNil(t, found)
	assert.Equal(t, "QA Engineer", found.JobTitle)
	assert.Nil(t, findResult(results, "missing"))

	kept := dropResult(results, "3")
	require.Len(t, kept, 1)
	assert.Equal(t, "a7", kept[0].JobID.String())
}

func TestCatalogName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "built-in sample", catalogName(""))
	assert.Equal(t, "/data/jobs.json", catalogName("/data/jobs.json"))
}

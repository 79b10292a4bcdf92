package filtering

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
)

type companiesFilter struct {
	toggle
	companies []string
}

// NewCompanies creates a filter that removes jobs posted by the given companies.
func NewCompanies(companies []string) Filter {
	return &companiesFilter{companies: companies}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Validate(*Config) error {
	for _, company := range f.companies {
		if strings.TrimSpace(company) == "" {
			return errors.New("empty company name in exclude list")
		}
	}
	return nil
}

func (f *companiesFilter) Apply(_ context.Context, deps Deps, jobs *catalog.Jobs) (*catalog.Jobs, Step, error) {
	initial := jobs.Len()
	if len(f.companies) == 0 {
		return jobs, Step{Initial: initial, Dropped: 0, Left: jobs.Len()}, nil
	}

	excluded := jobs.Exclude(catalog.JobCompanyField, f.companies)
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Debug("excluding jobs by company",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"companies": strconv.Itoa(len(f.companies))},
	}
}

type duplicateIDsFilter struct {
	toggle
}

// NewDuplicateIDs creates a filter that keeps only the first job of every id.
func NewDuplicateIDs() Filter {
	return &duplicateIDsFilter{}
}

func (f *duplicateIDsFilter) Name() string { return "duplicate_ids" }

func (f *duplicateIDsFilter) Validate(*Config) error { return nil }

func (f *duplicateIDsFilter) Apply(_ context.Context, deps Deps, jobs *catalog.Jobs) (*catalog.Jobs, Step, error) {
	initial := jobs.Len()

	seen := make(map[string]struct{}, jobs.Len())
	kept := make([]*catalog.JobPosting, 0, jobs.Len())
	var dropped []string
	for _, job := range jobs.Items {
		id := job.ID.String()
		if _, ok := seen[id]; ok {
			dropped = append(dropped, id)
			continue
		}
		seen[id] = struct{}{}
		kept = append(kept, job)
	}
	jobs.Items = kept

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Warn("catalog contains duplicate job ids", zap.Strings("job_ids", dropped))
	}

	return jobs, Step{Initial: initial, Dropped: len(dropped), Left: jobs.Len()}, nil
}

func (f *duplicateIDsFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

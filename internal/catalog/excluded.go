package catalog

import (
	"encoding/json"
	"os"
	"time"
)

// ExcludedJobs is the on-disk list of postings an operator never wants to
// see again.
type ExcludedJobs struct {
	Items []*ExcludedJob
}

type ExcludedJob struct {
	ID         string
	Company    string
	Title      string
	ExcludedAt time.Time
}

// ToExcluded converts the collection into exclude entries stamped with now.
func (j *Jobs) ToExcluded(now time.Time) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, job := range j.Items {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:         job.ID.String(),
			Company:    job.Company,
			Title:      job.JobTitle,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

// GetExcludedJobsFromFile reads an exclude file. An empty file is a valid
// empty list.
func GetExcludedJobsFromFile(path string) (*ExcludedJobs, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.NewDecoder(file).Decode(&excluded); err != nil {
		return nil, err
	}
	return &excluded, nil
}

func (e *ExcludedJobs) Append(s *ExcludedJobs) {
	e.Items = append(e.Items, s.Items...)
}

func (e *ExcludedJobs) JobIDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, job := range e.Items {
		ids = append(ids, job.ID)
	}
	return ids
}

func (e *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

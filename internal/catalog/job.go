package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	JobIDField      = "ID"
	JobCompanyField = "Company"
)

// JobID identifies a posting. Callers may send integers or strings; the
// original JSON kind is kept so results echo the id back unchanged.
type JobID struct {
	text    string
	numeric bool
}

// StringID builds a textual job id.
func StringID(s string) JobID {
	return JobID{text: s}
}

// IntID builds a numeric job id.
func IntID(n int64) JobID {
	return JobID{text: strconv.FormatInt(n, 10), numeric: true}
}

// ParseJobID accepts the shapes JSON decoding produces for an id.
func ParseJobID(v any) (JobID, error) {
	switch id := v.(type) {
	case nil:
		return JobID{}, nil
	case JobID:
		return id, nil
	case string:
		return StringID(strings.TrimSpace(id)), nil
	case json.Number:
		if _, err := id.Int64(); err != nil {
			return JobID{}, fmt.Errorf("job id %q is not an integer", id.String())
		}
		return JobID{text: id.String(), numeric: true}, nil
	case int:
		return IntID(int64(id)), nil
	case int64:
		return IntID(id), nil
	case float64:
		if id != math.Trunc(id) {
			return JobID{}, fmt.Errorf("job id %v is not an integer", id)
		}
		return IntID(int64(id)), nil
	default:
		return JobID{}, fmt.Errorf("unsupported job id type %T", v)
	}
}

func (id JobID) String() string { return id.text }

// IsZero reports whether the id is missing or empty.
func (id JobID) IsZero() bool { return id.text == "" }

func (id JobID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.text), nil
	}
	return json.Marshal(id.text)
}

func (id *JobID) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	parsed, err := ParseJobID(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// JobPosting is a single catalog entry. JobFunction holds the comma separated
// skill list used for scoring, Qualification is informational only.
type JobPosting struct {
	ID            JobID  `json:"id"`
	Company       string `json:"company,omitempty"`
	JobTitle      string `json:"job_title,omitempty"`
	JobFunction   string `json:"job_function,omitempty"`
	Qualification string `json:"qualification,omitempty"`
	Experience    string `json:"experience,omitempty"`
	Vacancies     string `json:"vacancies,omitempty"`
}

func (j *JobPosting) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return j.ID.String()
	case JobCompanyField:
		return j.Company
	default:
		return ""
	}
}

// Jobs is an ordered collection of postings.
type Jobs struct {
	Items []*JobPosting
}

// NewJobs wraps postings into a collection, keeping their order.
func NewJobs(postings []JobPosting) *Jobs {
	jobs := &Jobs{Items: make([]*JobPosting, 0, len(postings))}
	for i := range postings {
		job := postings[i]
		jobs.Items = append(jobs.Items, &job)
	}
	return jobs
}

func (j *Jobs) Len() int {
	return len(j.Items)
}

// Postings returns value copies of the items in order.
func (j *Jobs) Postings() []JobPosting {
	postings := make([]JobPosting, 0, len(j.Items))
	for _, job := range j.Items {
		postings = append(postings, *job)
	}
	return postings
}

// Clone returns a deep copy that can be filtered without touching the source.
func (j *Jobs) Clone() *Jobs {
	return NewJobs(j.Postings())
}

func (j *Jobs) FindByID(id string) *JobPosting {
	for _, job := range j.Items {
		if job.ID.String() == id {
			return job
		}
	}
	return nil
}

// Exclude drops every job whose field matches one of targets, compared
// case-insensitively. Order of the remaining jobs is preserved. The ids of
// removed jobs are returned.
func (j *Jobs) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		target = strings.ToLower(strings.TrimSpace(target))
		if target != "" {
			set[target] = struct{}{}
		}
	}

	var excluded []string
	kept := j.Items[:0]
	for _, job := range j.Items {
		if _, ok := set[strings.ToLower(strings.TrimSpace(job.GetStringField(name)))]; ok {
			excluded = append(excluded, job.ID.String())
			continue
		}
		kept = append(kept, job)
	}
	j.Items = kept

	return excluded
}

// ReportByCompany groups postings by company for human readable output.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range j.Items {
		key := job.Company
		if key == "" {
			key = "unknown company"
		}
		report[key] = append(report[key], map[string]string{
			"id":            job.ID.String(),
			"title":         job.JobTitle,
			"skills":        job.JobFunction,
			"experience":    job.Experience,
			"qualification": job.Qualification,
			"vacancies":     job.Vacancies,
		})
	}
	return report
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j.Postings()); err != nil {
		return "", err
	}
	return file.Name(), nil
}

package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

//go:embed jobs_data.json
var sampleJobs []byte

var jobIDType = reflect.TypeOf(JobID{})

// textFields are the posting keys that must hold a scalar.
var textFields = []string{"company", "job_title", "job_function", "qualification", "experience", "vacancies"}

// DecodeJobs converts loosely typed job objects, as they arrive in request
// bodies and queue messages, into postings. Numbers are accepted for text
// fields and ids keep their JSON kind. Unknown keys are ignored. A text field
// holding an object or a list is blanked with a warning so only that posting
// loses it; a malformed id fails the whole batch.
func DecodeJobs(logger *zap.Logger, raw []map[string]any) ([]JobPosting, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	jobs := make([]JobPosting, 0, len(raw))
	for i, item := range raw {
		var job JobPosting

		cfg := &mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			DecodeHook:       jobIDHook,
			Result:           &job,
		}
		decoder, err := mapstructure.NewDecoder(cfg)
		if err != nil {
			return nil, err
		}

		if err := decoder.Decode(scalarFields(logger, i, item)); err != nil {
			return nil, fmt.Errorf("decoding job %d: %w", i, err)
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// scalarFields returns item with non-scalar text fields replaced by "".
// The input map is left untouched.
func scalarFields(logger *zap.Logger, index int, item map[string]any) map[string]any {
	var cleaned map[string]any
	for _, key := range textFields {
		v, ok := item[key]
		if !ok || isScalar(v) {
			continue
		}

		if cleaned == nil {
			cleaned = make(map[string]any, len(item))
			for k, v := range item {
				cleaned[k] = v
			}
		}
		cleaned[key] = ""

		logger.Warn("ignoring malformed job field",
			zap.Int("index", index),
			zap.Any("job_id", item["id"]),
			zap.String("field", key),
			zap.String("type", fmt.Sprintf("%T", v)),
		)
	}

	if cleaned == nil {
		return item
	}
	return cleaned
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number, float64, float32, int, int64, int32:
		return true
	default:
		return false
	}
}

func jobIDHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != jobIDType {
		return data, nil
	}
	return ParseJobID(data)
}

// Parse reads a JSON array of job objects.
func Parse(data []byte) ([]JobPosting, error) {
	var raw []map[string]any

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing job catalog: %w", err)
	}

	jobs, err := DecodeJobs(zap.NewNop(), raw)
	if err != nil {
		return nil, err
	}

	for i, job := range jobs {
		if job.ID.IsZero() {
			return nil, fmt.Errorf("job %d has no id", i)
		}
	}

	return jobs, nil
}

// Load reads a catalog file. An empty path selects the embedded sample
// catalog.
func Load(path string) (*Jobs, error) {
	if path == "" {
		return Sample()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading job catalog %q: %w", path, err)
	}

	jobs, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewJobs(jobs), nil
}

// Sample returns the embedded demo catalog.
func Sample() (*Jobs, error) {
	jobs, err := Parse(sampleJobs)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	return NewJobs(jobs), nil
}

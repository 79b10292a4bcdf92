package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/pipeline"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/storage"
)

const backendResume = `John Smith
Objective: Seeking a position as a Backend Developer with 3 years of experience.
Skills: Python, Django, SQL, PostgreSQL, REST API, Git, Docker, Linux
3 years of experience in software development`

type fakeDownloader struct {
	mu      sync.Mutex
	objects map[string][]byte
	// failures makes the first n calls fail with a transient error.
	failures int
	calls    int
}

func (f *fakeDownloader) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset by peer")
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("uploads/%s: %w", key, storage.ErrNotFound)
	}
	return data, nil
}

type published struct {
	key  string
	body []byte
}

type fakePublisher struct {
	err  error
	sent []published
}

func (f *fakePublisher) Publish(_ context.Context, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{key: key, body: body})
	return nil
}

type fakeAcknowledger struct {
	acked    int
	nacked   int
	rejected int
	requeue  bool
}

func (f *fakeAcknowledger) Ack(uint64, bool) error {
	f.acked++
	return nil
}

func (f *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	f.rejected++
	f.requeue = requeue
	return nil
}

func newWorker(t *testing.T, downloader Downloader, log *zap.Logger) *Worker {
	t.Helper()

	lex, err := profile.DefaultLexicon()
	require.NoError(t, err)
	jobs, err := catalog.Sample()
	require.NoError(t, err)

	svc, err := pipeline.New(pipeline.Options{Lexicon: lex, Catalog: jobs, TempDir: t.TempDir()})
	require.NoError(t, err)

	w, err := New(Config{DownloadAttempts: 3, DownloadBackoff: time.Millisecond}, svc, downloader, log)
	require.NoError(t, err)
	return w
}

func message(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleStoredResume(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.InfoLevel)
	downloader := &fakeDownloader{objects: map[string][]byte{"resumes/42/cv.txt": []byte(backendResume)}, failures: 2}
	w := newWorker(t, downloader, zap.New(core))

	result, err := w.Handle(context.Background(), message(t, map[string]any{
		"request_id": "req-1",
		"user_id":    "user-7",
		"resume_key": "resumes/42/cv.txt",
	}))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "user-7", result.UserID)
	assert.Equal(t, 3, downloader.calls)
	require.NotNil(t, result.ResumeProfile)
	assert.Equal(t, "Backend Developer", result.ResumeProfile.Role)
	require.Len(t, result.JobMatches, 12)
	assert.Equal(t, "1", result.JobMatches[0].JobID.String())
	assert.Equal(t, matching.LabelExcellent, result.JobMatches[0].Label)
	assert.Equal(t, matching.LabelExcellent, result.JobMatches[0].MatchLabel)

	entries := observed.FilterMessage("match request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields[logger.FieldRequestID])
	assert.Equal(t, "amqp", fields[logger.FieldSource])
	assert.Equal(t, "user-7", fields[logger.FieldUserID])
}

func TestHandleDownloadFailures(t *testing.T) {
	t.Parallel()

	missing := &fakeDownloader{objects: map[string][]byte{}}
	result, err := newWorker(t, missing, nil).Handle(context.Background(), message(t, map[string]any{
		"request_id": "req-2",
		"resume_key": "resumes/none.pdf",
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "object not found")
	assert.Equal(t, 1, missing.calls, "missing objects are not retried")

	flaky := &fakeDownloader{failures: 10}
	result, err = newWorker(t, flaky, nil).Handle(context.Background(), message(t, map[string]any{
		"request_id": "req-3",
		"resume_key": "resumes/cv.pdf",
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 3, flaky.calls)

	result, err = newWorker(t, nil, nil).Handle(context.Background(), message(t, map[string]any{
		"request_id": "req-4",
		"resume_key": "resumes/cv.pdf",
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "not configured")
}

func TestHandleUnreadableDocument(t *testing.T) {
	t.Parallel()

	downloader := &fakeDownloader{objects: map[string][]byte{"cv.pdf": []byte("not a pdf")}}
	result, err := newWorker(t, downloader, nil).Handle(context.Background(), message(t, map[string]any{
		"request_id": "req-5",
		"resume_key": "cv.pdf",
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "extraction error")
	assert.Nil(t, result.ResumeProfile)
	assert.Nil(t, result.JobMatches)
}

func TestHandleProfile(t *testing.T) {
	t.Parallel()

	w := newWorker(t, nil, nil)

	result, err := w.Handle(context.Background(), message(t, map[string]any{
		"request_id":     "req-6",
		"resume_profile": map[string]any{"extracted_skills": []string{"Python", "SQL"}, "parsed_role": "Data Analyst", "experience_years": 2},
		"jobs": []any{
			map[string]any{"id": 7, "job_title": "Data Analyst", "job_function": "Python, SQL", "experience": "1-3 years"},
			map[string]any{"id": "x-1", "job_title": "Welder", "job_function": "Welding"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, result.Status)
	require.Len(t, result.JobMatches, 2)
	assert.Equal(t, "7", result.JobMatches[0].JobID.String())
	assert.InDelta(t, 100.0, result.JobMatches[0].FinalScore, 1e-9)
	assert.Equal(t, 2, result.JobMatches[1].Rank)
	assert.Nil(t, result.ResumeProfile)

	result, err = w.Handle(context.Background(), message(t, map[string]any{
		"request_id":     "req-7",
		"resume_profile": map[string]any{"extracted_skills": []string{"SQL"}},
	}))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Len(t, result.JobMatches, 12, "the catalog is used when no jobs are sent")
}

func TestHandleInvalidRequests(t *testing.T) {
	t.Parallel()

	w := newWorker(t, nil, nil)

	tests := []struct {
		name string
		body any
		want string
	}{
		{
			name: "missing job id",
			body: map[string]any{"request_id": "a", "resume_profile": map[string]any{}, "jobs": []any{map[string]any{"job_title": "QA"}}},
			want: "jobs[0].id",
		},
		{
			name: "negative experience",
			body: map[string]any{"request_id": "b", "resume_profile": map[string]any{"experience_years": -2}, "jobs": []any{}},
			want: "experience_years",
		},
		{
			name: "nothing to match",
			body: map[string]any{"request_id": "c"},
			want: "neither resume_key nor resume_profile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := w.Handle(context.Background(), message(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, result.Status)
			assert.Contains(t, result.Error, tt.want)
		})
	}
}

func TestHandleMalformed(t *testing.T) {
	t.Parallel()

	w := newWorker(t, nil, nil)

	_, err := w.Handle(context.Background(), []byte("{broken"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = w.Handle(context.Background(), message(t, map[string]any{"user_id": "u"}))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = w.Handle(context.Background(), message(t, map[string]any{"request_id": "r", "jobs": "nope"}))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestHandleCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newWorker(t, nil, nil).Handle(ctx, message(t, map[string]any{
		"request_id":     "r",
		"resume_profile": map[string]any{},
	}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessSettlesDeliveries(t *testing.T) {
	t.Parallel()

	w := newWorker(t, nil, nil)

	t.Run("published and acked", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}
		w.process(context.Background(), amqp.Delivery{Acknowledger: ack, Body: message(t, map[string]any{
			"request_id":     "req-9",
			"user_id":        "u-1",
			"resume_profile": map[string]any{"extracted_skills": []string{"SQL"}},
		})}, pub)

		assert.Equal(t, 1, ack.acked)
		require.Len(t, pub.sent, 1)
		assert.Equal(t, "match.req-9", pub.sent[0].key)

		var result map[string]any
		require.NoError(t, json.Unmarshal(pub.sent[0].body, &result))
		assert.Equal(t, "completed", result["status"])
		assert.Equal(t, "u-1", result["user_id"])
		assert.Len(t, result["job_matches"], 12)
	})

	t.Run("failed requests are still published", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}
		w.process(context.Background(), amqp.Delivery{Acknowledger: ack, Body: message(t, map[string]any{"request_id": "req-10"})}, pub)

		assert.Equal(t, 1, ack.acked)
		require.Len(t, pub.sent, 1)
		assert.Contains(t, string(pub.sent[0].body), `"status":"failed"`)
	})

	t.Run("malformed rejected", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{}
		w.process(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not json")}, pub)

		assert.Equal(t, 1, ack.rejected)
		assert.False(t, ack.requeue)
		assert.Empty(t, pub.sent)
	})

	t.Run("publish failure requeues", func(t *testing.T) {
		ack := &fakeAcknowledger{}
		pub := &fakePublisher{err: errors.New("channel closed")}
		w.process(context.Background(), amqp.Delivery{Acknowledger: ack, Body: message(t, map[string]any{
			"request_id":     "req-11",
			"resume_profile": map[string]any{},
		})}, pub)

		assert.Equal(t, 0, ack.acked)
		assert.Equal(t, 1, ack.nacked)
		assert.True(t, ack.requeue)
	})
}

func TestNewAndDefaults(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, nil, nil)
	assert.Error(t, err)

	w := newWorker(t, nil, nil)
	w2, err := New(Config{}, w.svc, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "match_requests", w2.cfg.Queue)
	assert.Equal(t, "match_results", w2.cfg.Exchange)
	assert.Equal(t, 3, w2.cfg.Concurrency)

	assert.Error(t, w2.Run(context.Background()), "a url is required")
	assert.Equal(t, "match.abc", RoutingKey("abc"))
}

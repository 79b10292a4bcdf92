// Package worker runs match requests delivered over RabbitMQ and publishes
// the ranked results back to an exchange.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/pipeline"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/storage"
	"github.com/spigell/resume-matcher/internal/utils"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	sourceAMQP = "amqp"

	defaultQueue            = "match_requests"
	defaultExchange         = "match_results"
	defaultConcurrency      = 3
	defaultDownloadAttempts = 3
	defaultDownloadBackoff  = 500 * time.Millisecond
)

// ErrMalformed marks a message that can never be processed. Such messages
// are rejected without requeue.
var ErrMalformed = errors.New("malformed message")

// Message is a match request. With ResumeKey the document is downloaded and
// the full pipeline runs, otherwise ResumeProfile is matched against Jobs or
// the catalog when Jobs is absent.
type Message struct {
	RequestID      string           `json:"request_id"`
	UserID         string           `json:"user_id"`
	ResumeKey      string           `json:"resume_key,omitempty"`
	ResumeFilename string           `json:"resume_filename,omitempty"`
	ResumeProfile  *profile.Profile `json:"resume_profile,omitempty"`
	Jobs           []map[string]any `json:"jobs,omitempty"`
}

type JobMatch struct {
	JobID           catalog.JobID `json:"job_id"`
	Rank            int           `json:"rank"`
	FinalScore      float64       `json:"final_score"`
	SkillScore      float64       `json:"skill_score"`
	RoleScore       float64       `json:"role_score"`
	ExperienceScore float64       `json:"experience_score"`
	Label           string        `json:"label"`
	MatchLabel      string        `json:"match_label"`
	MatchedSkills   []string      `json:"matched_skills"`
	MissingSkills   []string      `json:"missing_skills"`
}

// Result is published for every processed message, successful or not.
type Result struct {
	RequestID     string           `json:"request_id"`
	UserID        string           `json:"user_id"`
	Status        string           `json:"status"`
	ResumeProfile *profile.Profile `json:"resume_profile,omitempty"`
	JobMatches    []JobMatch       `json:"job_matches,omitempty"`
	Error         string           `json:"error,omitempty"`
}

type Pipeline interface {
	ProcessDocument(ctx context.Context, filename string, data []byte) (*pipeline.Report, error)
	Match(ctx context.Context, p profile.Profile, jobs []catalog.JobPosting) ([]matching.Result, error)
	Jobs() []catalog.JobPosting
}

type Downloader interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type Config struct {
	URL              string        `mapstructure:"-"`
	Queue            string        `mapstructure:"queue"`
	Exchange         string        `mapstructure:"exchange"`
	Concurrency      int           `mapstructure:"concurrency"`
	DownloadAttempts int           `mapstructure:"download-attempts"`
	DownloadBackoff  time.Duration `mapstructure:"download-backoff"`
}

func (c *Config) setDefaults() {
	if c.Queue == "" {
		c.Queue = defaultQueue
	}
	if c.Exchange == "" {
		c.Exchange = defaultExchange
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.DownloadAttempts <= 0 {
		c.DownloadAttempts = defaultDownloadAttempts
	}
	if c.DownloadBackoff <= 0 {
		c.DownloadBackoff = defaultDownloadBackoff
	}
}

type Worker struct {
	cfg        Config
	svc        Pipeline
	downloader Downloader
	logger     *zap.Logger
}

// New builds a worker. downloader may be nil, in which case messages that
// reference a stored document fail.
func New(cfg Config, svc Pipeline, downloader Downloader, logger *zap.Logger) (*Worker, error) {
	if svc == nil {
		return nil, errors.New("pipeline is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.setDefaults()

	return &Worker{cfg: cfg, svc: svc, downloader: downloader, logger: logger}, nil
}

// RoutingKey is the key a result for requestID is published with.
func RoutingKey(requestID string) string {
	return "match." + requestID
}

// Handle processes one message body. Processing failures are reported in
// the returned Result; the error is only set for malformed messages
// (ErrMalformed) and cancellation.
func (w *Worker) Handle(ctx context.Context, body []byte) (Result, error) {
	msg, err := decodeMessage(body)
	if err != nil {
		return Result{}, err
	}

	log := logger.WithRequestFields(w.logger, msg.RequestID, sourceAMQP, msg.UserID)
	result := Result{RequestID: msg.RequestID, UserID: msg.UserID}

	switch {
	case msg.ResumeKey != "":
		err = w.handleDocument(ctx, log, msg, &result)
	case msg.ResumeProfile != nil:
		err = w.handleProfile(ctx, log, msg, &result)
	default:
		err = errors.New("message has neither resume_key nor resume_profile")
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}

	if err != nil {
		log.Warn("match request failed", zap.Error(err))
		result.Status = StatusFailed
		result.Error = err.Error()
		result.ResumeProfile = nil
		result.JobMatches = nil
		return result, nil
	}

	result.Status = StatusCompleted
	log.Info("match request completed", zap.Int("matches", len(result.JobMatches)))
	return result, nil
}

func decodeMessage(body []byte) (*Message, error) {
	var msg Message

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	msg.RequestID = strings.TrimSpace(msg.RequestID)
	msg.ResumeKey = strings.TrimSpace(msg.ResumeKey)
	if msg.RequestID == "" {
		return nil, fmt.Errorf("%w: request_id is required", ErrMalformed)
	}

	return &msg, nil
}

func (w *Worker) handleDocument(ctx context.Context, log *zap.Logger, msg *Message, result *Result) error {
	data, err := w.download(ctx, log, msg.ResumeKey)
	if err != nil {
		return err
	}

	filename := msg.ResumeFilename
	if filename == "" {
		filename = path.Base(msg.ResumeKey)
	}

	report, err := w.svc.ProcessDocument(ctx, filename, data)
	if err != nil {
		return err
	}

	result.ResumeProfile = &report.Profile
	result.JobMatches = newJobMatches(report.Matches)
	return nil
}

func (w *Worker) handleProfile(ctx context.Context, log *zap.Logger, msg *Message, result *Result) error {
	jobs := w.svc.Jobs()
	if msg.Jobs != nil {
		decoded, err := catalog.DecodeJobs(log, msg.Jobs)
		if err != nil {
			return matching.NewValidationError("jobs", err.Error())
		}
		jobs = decoded
	}

	results, err := w.svc.Match(ctx, *msg.ResumeProfile, jobs)
	if err != nil {
		return err
	}

	result.JobMatches = newJobMatches(results)
	return nil
}

// download retries transient storage failures. Missing and oversized
// objects fail at once.
func (w *Worker) download(ctx context.Context, log *zap.Logger, key string) ([]byte, error) {
	if w.downloader == nil {
		return nil, errors.New("resume downloads are not configured")
	}

	var (
		data      []byte
		permanent error
	)
	err := utils.Retry(ctx, w.cfg.DownloadAttempts, w.cfg.DownloadBackoff, func(attempt int) error {
		var err error
		data, err = w.downloader.Download(ctx, key)
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrTooLarge) {
			permanent = err
			return nil
		}
		if err != nil {
			log.Warn("downloading resume", zap.String("key", key), zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
	if permanent != nil {
		return nil, permanent
	}
	if err != nil {
		return nil, fmt.Errorf("downloading %s after %d attempts: %w", key, w.cfg.DownloadAttempts, err)
	}

	return data, nil
}

// process handles a delivery end to end and settles it. Results are acked
// only once published, so a broker outage redelivers the request.
func (w *Worker) process(ctx context.Context, d amqp.Delivery, pub Publisher) {
	log := w.logger.With(zap.Uint64("delivery_tag", d.DeliveryTag))

	result, err := w.Handle(ctx, d.Body)
	switch {
	case errors.Is(err, ErrMalformed):
		log.Warn("rejecting message", zap.Error(err), zap.String("body", utils.TruncateForLog(string(d.Body), 200)))
		if err := d.Reject(false); err != nil {
			log.Error("rejecting delivery", zap.Error(err))
		}
		return
	case err != nil:
		log.Info("requeueing message", zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			log.Error("nacking delivery", zap.Error(err))
		}
		return
	}

	body, err := json.Marshal(result)
	if err == nil {
		err = pub.Publish(ctx, RoutingKey(result.RequestID), body)
	}
	if err != nil {
		log.Error("publishing result", zap.String(logger.FieldRequestID, result.RequestID), zap.Error(err))
		if err := d.Nack(false, true); err != nil {
			log.Error("nacking delivery", zap.Error(err))
		}
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("acking delivery", zap.Error(err))
	}
}

func newJobMatches(results []matching.Result) []JobMatch {
	out := make([]JobMatch, 0, len(results))
	for _, r := range results {
		out = append(out, JobMatch{
			JobID:           r.JobID,
			Rank:            r.Rank,
			FinalScore:      r.FinalScore,
			SkillScore:      matching.Percent(r.Skill),
			RoleScore:       matching.Percent(r.Role),
			ExperienceScore: matching.Percent(r.Experience),
			Label:           r.Label,
			MatchLabel:      r.Label,
			MatchedSkills:   r.MatchedSkills,
			MissingSkills:   r.MissingSkills,
		})
	}
	return out
}

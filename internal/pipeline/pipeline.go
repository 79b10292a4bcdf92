// Package pipeline wires document extraction, profile extraction and
// matching into the two flows the transports expose: full résumé analysis
// and match-only scoring of a known profile.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
	"github.com/spigell/resume-matcher/internal/document"
	"github.com/spigell/resume-matcher/internal/filtering"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/utils"
)

const previewLength = 120

type Options struct {
	Logger  *zap.Logger
	Lexicon *profile.Lexicon
	Catalog *catalog.Jobs
	// Filters narrow the catalog for the full pipeline. Nil means the
	// default chain built from FilterConfig.
	Filters      []filtering.Filter
	FilterConfig *filtering.Config
	// TempDir holds uploads while they are parsed. Empty means os.TempDir.
	TempDir string
	Clock   func() time.Time
}

// Service is shared by every request. It holds only read-only state.
type Service struct {
	logger    *zap.Logger
	documents *document.Extractor
	profiles  *profile.Extractor
	engine    *matching.Engine
	catalog   *catalog.Jobs
	filters   []filtering.Filter
	filterCfg *filtering.Config
	tempDir   string
	clock     func() time.Time
}

// Report is the outcome of the full pipeline.
type Report struct {
	Profile        profile.Profile
	Matches        []matching.Result
	TotalJobs      int
	ProcessingTime time.Duration
}

type Health struct {
	Status          string             `json:"status"`
	LexiconLoaded   bool               `json:"lexicon_loaded"`
	LexiconSize     int                `json:"lexicon_size"`
	JobsLoaded      int                `json:"jobs_loaded"`
	MatchingFactors map[string]float64 `json:"matching_factors"`
	Filters         []filtering.Status `json:"filters"`
}

func New(opts Options) (*Service, error) {
	if opts.Lexicon == nil {
		return nil, errors.New("skill lexicon is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("job catalog is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	filterCfg := opts.FilterConfig
	if filterCfg == nil {
		filterCfg = &filtering.Config{}
	}
	filters := opts.Filters
	if filters == nil {
		filters = filtering.Default(filterCfg)
	}
	if err := filtering.Validate(filterCfg, filters); err != nil {
		return nil, err
	}

	return &Service{
		logger:    logger,
		documents: document.NewExtractor(logger.Named("document")),
		profiles:  profile.NewExtractor(opts.Lexicon, profile.WithClock(clock), profile.WithLogger(logger.Named("profile"))),
		engine:    matching.NewEngine(logger.Named("matching")),
		catalog:   opts.Catalog,
		filters:   filters,
		filterCfg: filterCfg,
		tempDir:   opts.TempDir,
		clock:     clock,
	}, nil
}

// ProcessUpload runs the full pipeline on an uploaded document. The upload is
// spooled to a temporary file that is always removed before returning.
func (s *Service) ProcessUpload(ctx context.Context, filename string, r io.Reader) (*Report, error) {
	start := s.clock()

	var text string
	err := document.WithTempFile(s.logger, s.tempDir, tempPattern(filename), r, func(path string) error {
		var err error
		text, err = s.documents.ExtractFile(path)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("document text extracted",
		zap.String("file", filename),
		zap.Int("chars", len(text)),
		zap.String("preview", utils.TruncateForLog(text, previewLength)),
	)

	return s.Analyse(ctx, text, start)
}

// ProcessDocument is ProcessUpload for documents already held in memory.
func (s *Service) ProcessDocument(ctx context.Context, filename string, data []byte) (*Report, error) {
	return s.ProcessUpload(ctx, filename, bytes.NewReader(data))
}

// Analyse extracts a profile from text and matches it against the filtered
// catalog. start is used to report processing time.
func (s *Service) Analyse(ctx context.Context, text string, start time.Time) (*Report, error) {
	p := s.profiles.Extract(text)

	jobs, err := filtering.Run(ctx, s.filterCfg, filtering.Deps{Logger: s.logger.Named("filtering")}, s.filters, s.catalog)
	if err != nil {
		return nil, err
	}

	matches, err := s.Match(ctx, p, jobs.Postings())
	if err != nil {
		return nil, err
	}

	return &Report{
		Profile:        p,
		Matches:        matches,
		TotalJobs:      len(matches),
		ProcessingTime: s.clock().Sub(start),
	}, nil
}

// Match scores a known profile against the given postings.
func (s *Service) Match(ctx context.Context, p profile.Profile, jobs []catalog.JobPosting) ([]matching.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.engine.Match(p, jobs)
}

// Jobs returns a copy of the internal catalog, unfiltered.
func (s *Service) Jobs() []catalog.JobPosting {
	return s.catalog.Postings()
}

func (s *Service) Health() Health {
	return Health{
		Status:        "healthy",
		LexiconLoaded: s.profiles.Lexicon() != nil,
		LexiconSize:   s.profiles.Lexicon().Len(),
		JobsLoaded:    s.catalog.Len(),
		MatchingFactors: map[string]float64{
			"skill_match":      matching.WeightSkill,
			"role_match":       matching.WeightRole,
			"experience_match": matching.WeightExperience,
		},
		Filters: filtering.Describe(s.filters),
	}
}

// tempPattern keeps a known extension so the extractor can tell the kind
// without sniffing.
func tempPattern(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf", ".docx", ".txt":
		return "resume_*" + ext
	default:
		return "resume_*"
	}
}

// Package profile builds a candidate profile out of résumé text using a skill
// dictionary and a handful of role and experience heuristics.
package profile

import (
	"time"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/textnorm"
)

// Profile is what the matching engine knows about a candidate.
type Profile struct {
	Skills []string `json:"extracted_skills"`
	Role   string   `json:"parsed_role"`
	// ExperienceYears is nil when the résumé gives no usable hint.
	ExperienceYears *int `json:"experience_years"`
}

// Extractor is safe for concurrent use; it only reads its lexicon.
type Extractor struct {
	lexicon *Lexicon
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Extractor)

// WithClock replaces the clock used to resolve "present" in year ranges.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExtractor(lexicon *Lexicon, opts ...Option) *Extractor {
	e := &Extractor{
		lexicon: lexicon,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Lexicon exposes the dictionary the extractor was built with.
func (e *Extractor) Lexicon() *Lexicon {
	return e.lexicon
}

// Extract never fails: missing information yields empty fields.
func (e *Extractor) Extract(text string) Profile {
	normalized := textnorm.Normalize(text)

	p := Profile{
		Skills:          e.lexicon.Match(normalized),
		Role:            extractRole(text, normalized),
		ExperienceYears: extractExperience(normalized, e.now()),
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}

	fields := []zap.Field{
		zap.Int("skills", len(p.Skills)),
		zap.String("role", p.Role),
	}
	if p.ExperienceYears != nil {
		fields = append(fields, zap.Int("experience_years", *p.ExperienceYears))
	}
	e.logger.Debug("profile extracted", fields...)

	return p
}

// Package filtering narrows the internal job catalog before matching.
package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/catalog"
)

// Filter represents a single filtering step applied to the catalog.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, jobs *catalog.Jobs) (*catalog.Jobs, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
	ExcludeFile      string   `mapstructure:"exclude-file"`
	// Disabled lists filter names kept in the chain but skipped.
	Disabled         []string `mapstructure:"disabled"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard filter chain for cfg.
func Default(cfg *Config) []Filter {
	steps := []Filter{
		NewDuplicateIDs(),
		NewCompanies(cfg.ExcludeCompanies),
		NewExcludeFile(cfg.ExcludeFile),
	}
	for _, name := range cfg.Disabled {
		DisableByName(steps, name, "disabled in configuration")
	}
	return steps
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Validate checks every enabled step against cfg.
func Validate(cfg *Config, steps []Filter) error {
	for _, name := range cfg.Disabled {
		if !hasStep(steps, name) {
			return fmt.Errorf("unknown filter %q in disabled list", name)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
	}
	return nil
}

func hasStep(steps []Filter, name string) bool {
	for _, step := range steps {
		if step.Name() == name {
			return true
		}
	}
	return false
}

// Run validates and then applies the enabled filters in order. The input
// collection is cloned first, so callers may share it between requests.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, jobs *catalog.Jobs) (*catalog.Jobs, error) {
	if err := Validate(cfg, steps); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	jobs = jobs.Clone()
	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next, info, err := step.Apply(ctx, deps, jobs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		jobs = next
	}

	return jobs, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// toggle carries the enabled flag shared by the concrete filters.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

package config

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AndreyAkinshin/conform/internal/compare"
	"github.com/AndreyAkinshin/conform/internal/engine"
)

// MaxJobs is the largest accepted worker count.
const MaxJobs = 256

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a suite for errors and returns warnings for non-fatal
// issues.
func Validate(s *Suite) (warnings []string, err error) {
	if s.Index == "" {
		return nil, &ValidationError{Field: "index", Message: "is required"}
	}
	if s.Match != MatchAll && s.Match != MatchAny {
		return nil, &ValidationError{Field: "match", Message: `must be "all" or "any"`}
	}

	for i, f := range s.Filters {
		if !doublestar.ValidatePattern(f) {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("filters[%d]", i),
				Message: fmt.Sprintf("invalid glob %q", f),
			}
		}
	}

	patterns, err := s.Patterns()
	if err != nil {
		return nil, err
	}
	if _, err := compare.New(patterns, s.Prefixes, s.Aliases, compare.Options{}); err != nil {
		return nil, &ValidationError{Field: "custom_compare_patterns", Message: err.Error()}
	}

	if _, err := s.Severities(); err != nil {
		return nil, err
	}
	if _, err := s.Additional(); err != nil {
		return nil, err
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return nil, err
	}

	if s.Jobs < 0 || s.Jobs > MaxJobs {
		return nil, &ValidationError{Field: "jobs", Message: fmt.Sprintf("must be between 0 and %d", MaxJobs)}
	}

	if s.Jobs > 0 && !s.Parallel {
		warnings = append(warnings, "jobs has no effect unless parallel is enabled")
	}
	if s.Engine.Suffix != "" && s.Engine.Name != engine.ReplayEngineName {
		warnings = append(warnings, fmt.Sprintf("engine.suffix is only used by the %s engine", engine.ReplayEngineName))
	}
	if len(s.Engine.Command) > 0 && s.Engine.Name != engine.CommandEngineName {
		warnings = append(warnings, fmt.Sprintf("engine.command is only used by the %s engine", engine.CommandEngineName))
	}

	return warnings, nil
}

package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/AndreyAkinshin/conform/internal/compare"
	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	"github.com/AndreyAkinshin/conform/internal/engine"
	"github.com/AndreyAkinshin/conform/internal/loader"
	"github.com/AndreyAkinshin/conform/internal/scheduler"
)

// Constraint converts c. An unset count defaults to one unless a range is
// given; an unset severity defaults to error.
func (c ConstraintConfig) Constraint() (constraint.Constraint, error) {
	var out constraint.Constraint
	if c.Code != "" && c.QName != "" {
		return out, &ValidationError{Field: "constraint", Message: "code and qname are mutually exclusive"}
	}
	if c.QName != "" {
		q, ok := diag.ParseClark(c.QName)
		if !ok || q.Local == "" {
			return out, &ValidationError{Field: "constraint.qname", Message: fmt.Sprintf("%q is not a {namespace}local name", c.QName)}
		}
		out.QName = &q
	}
	out.Pattern = c.Code

	out.Severity = diag.Error
	if c.Severity != "" {
		sev, err := diag.ParseSeverity(c.Severity)
		if err != nil {
			return out, &ValidationError{Field: "constraint.severity", Message: err.Error()}
		}
		out.Severity = sev
	}

	if c.Min != nil || c.Max != nil {
		if c.Count != nil {
			return out, &ValidationError{Field: "constraint", Message: "count cannot be combined with min or max"}
		}
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return out, &ValidationError{Field: "constraint", Message: fmt.Sprintf("min %d is greater than max %d", *c.Min, *c.Max)}
		}
		out.Min, out.Max = c.Min, c.Max
		return out, nil
	}

	out.Count = 1
	if c.Count != nil {
		if *c.Count < 0 {
			return out, &ValidationError{Field: "constraint.count", Message: "must not be negative"}
		}
		out.Count = *c.Count
	}
	return out, nil
}

// Additional converts the suite-wide additional constraints.
func (s *Suite) Additional() ([]constraint.Additional, error) {
	out := make([]constraint.Additional, 0, len(s.AdditionalConstraints))
	for i, a := range s.AdditionalConstraints {
		if a.Suffix == "" {
			return nil, &ValidationError{Field: fmt.Sprintf("additional_constraints[%d].suffix", i), Message: "is required"}
		}
		add := constraint.Additional{Suffix: a.Suffix}
		for _, c := range a.Constraints {
			converted, err := c.Constraint()
			if err != nil {
				if ve, ok := err.(*ValidationError); ok {
					ve.Field = fmt.Sprintf("additional_constraints[%d].%s", i, ve.Field)
				}
				return nil, err
			}
			add.Constraints = append(add.Constraints, converted)
		}
		out = append(out, add)
	}
	return out, nil
}

// Patterns parses the custom compare patterns.
func (s *Suite) Patterns() ([]compare.Pattern, error) {
	out := make([]compare.Pattern, 0, len(s.CustomComparePatterns))
	for i, raw := range s.CustomComparePatterns {
		p, err := compare.ParsePattern(raw)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("custom_compare_patterns[%d]", i), Message: err.Error()}
		}
		out = append(out, p)
	}
	return out, nil
}

// Severities parses the ignored severities.
func (s *Suite) Severities() ([]diag.Severity, error) {
	out := make([]diag.Severity, 0, len(s.IgnoredSeverities))
	for i, name := range s.IgnoredSeverities {
		sev, err := diag.ParseSeverity(name)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("ignored_severities[%d]", i), Message: err.Error()}
		}
		out = append(out, sev)
	}
	return out, nil
}

// TimeoutDuration parses the timeout. An empty timeout means no limit.
func (s *Suite) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, &ValidationError{Field: "timeout", Message: err.Error()}
	}
	if d < 0 {
		return 0, &ValidationError{Field: "timeout", Message: "must not be negative"}
	}
	return d, nil
}

// EngineOptions returns the options passed to the engine. Suite plugins are
// added to any plugins already listed in the options.
func (s *Suite) EngineOptions() engine.Options {
	opts := engine.Options{}
	maps.Copy(opts, s.Options)
	if len(s.Plugins) == 0 {
		return opts
	}

	var plugins []string
	if existing, ok := opts[engine.KeyPlugins].(string); ok && existing != "" {
		plugins = strings.Split(existing, "|")
	}
	for _, p := range s.Plugins {
		if !slices.Contains(plugins, p) {
			plugins = append(plugins, p)
		}
	}
	opts[engine.KeyPlugins] = strings.Join(plugins, "|")
	return opts
}

// LoaderOptions returns the options for loading the suite index.
func (s *Suite) LoaderOptions() (loader.Options, error) {
	severities, err := s.Severities()
	if err != nil {
		return loader.Options{}, err
	}
	return loader.Options{
		MatchAll:             s.Match != MatchAny,
		CompareFormulaOutput: s.CompareFormulaOutput,
		IgnoredSeverities:    severities,
	}, nil
}

// Plan builds the scheduler plan of the suite.
func (s *Suite) Plan() (scheduler.Plan, error) {
	additional, err := s.Additional()
	if err != nil {
		return scheduler.Plan{}, err
	}
	patterns, err := s.Patterns()
	if err != nil {
		return scheduler.Plan{}, err
	}
	timeout, err := s.TimeoutDuration()
	if err != nil {
		return scheduler.Plan{}, err
	}

	return scheduler.Plan{
		Engine: s.Engine.Name,
		Settings: engine.Settings{
			Command: s.Engine.Command,
			Dir:     s.Path(s.Engine.Dir),
			Env:     s.Engine.Env,
			Suffix:  s.Engine.Suffix,
		},
		Options:          s.EngineOptions(),
		Filters:          s.Filters,
		LogDirectory:     s.Path(s.LogDirectory),
		MatchAll:         s.Match != MatchAny,
		Additional:       additional,
		Patterns:         patterns,
		Prefixes:         s.Prefixes,
		Aliases:          s.Aliases,
		MatchLastSegment: s.MatchCodeSuffix,
		Timeout:          timeout,
	}, nil
}

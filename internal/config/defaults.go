package config

import "github.com/AndreyAkinshin/conform/internal/engine"

// Default configuration values.
const (
	DefaultMatch  = MatchAll
	DefaultEngine = engine.CommandEngineName
)

// Match policies.
const (
	MatchAll = "all"
	MatchAny = "any"
)

// applyDefaults fills in default values for unset configuration fields.
func applyDefaults(s *Suite) {
	if s.Match == "" {
		s.Match = DefaultMatch
	}
	if s.Engine.Name == "" {
		s.Engine.Name = DefaultEngine
	}
	if s.Name == "" {
		s.Name = s.Index
	}
}

// NewSuite returns a suite for an index named on the command line. Relative
// paths resolve against dir.
func NewSuite(index, dir string) *Suite {
	s := &Suite{Index: index, Dir: dir}
	applyDefaults(s)
	return s
}

package scheduler

import (
	"log/slog"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AndreyAkinshin/conform/internal/compare"
	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// Plan is the complete configuration a scheduler needs to run variations.
// It is sent to every worker process so each can rebuild the scheduler.
type Plan struct {
	Engine   string          `msgpack:"engine"`
	Settings engine.Settings `msgpack:"settings"`
	Options  engine.Options  `msgpack:"options"`

	// Filters are globs over full variation IDs; "**" crosses path
	// separators. An empty list selects every variation.
	Filters      []string                `msgpack:"filters"`
	LogDirectory string                  `msgpack:"log_directory"`
	MatchAll     bool                    `msgpack:"match_all"`
	Additional   []constraint.Additional `msgpack:"additional"`

	Patterns         []compare.Pattern            `msgpack:"patterns"`
	Prefixes         map[string]string            `msgpack:"prefixes"`
	Aliases          map[string]map[string]string `msgpack:"aliases"`
	MatchLastSegment bool                         `msgpack:"match_last_segment"`

	// Timeout bounds one engine run. Zero means no limit.
	Timeout time.Duration `msgpack:"timeout"`
}

// Validate checks the parts of p that can be checked without running
// anything.
func (p Plan) Validate() error {
	if p.Engine == "" {
		return conformerrors.Config("no engine configured")
	}
	for _, f := range p.Filters {
		if !doublestar.ValidatePattern(f) {
			return conformerrors.Configf("invalid filter pattern %q", f)
		}
	}
	if p.Timeout < 0 {
		return conformerrors.Configf("timeout must not be negative, got %s", p.Timeout)
	}
	return CheckOptions(p.Options)
}

// CompareContext builds the comparison configuration of p. log receives
// debug records about custom patterns.
func (p Plan) CompareContext(log *slog.Logger) (*compare.Context, error) {
	prefixes := make(map[string]string, len(compare.DefaultPrefixes)+len(p.Prefixes))
	for k, v := range compare.DefaultPrefixes {
		prefixes[k] = v
	}
	for k, v := range p.Prefixes {
		prefixes[k] = v
	}
	return compare.New(p.Patterns, prefixes, p.Aliases, compare.Options{
		MatchLastSegment: p.MatchLastSegment,
		Logger:           log,
	})
}

// Selected reports whether the variation with the given full ID passes the
// filters.
func (p Plan) Selected(fullID string) bool {
	if len(p.Filters) == 0 {
		return true
	}
	for _, f := range p.Filters {
		if ok, err := doublestar.Match(f, fullID); err == nil && ok {
			return true
		}
	}
	return false
}

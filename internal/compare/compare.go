// Package compare decides whether an observed diagnostic satisfies an
// expected constraint. Lexically different identifiers are folded together
// through prefix and alias tables and suite-specific regex pairs.
package compare

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"sync"

	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// Placeholder is replaced in an actual pattern by the expected text.
const Placeholder = "~"

// DefaultPrefixes maps the error-code prefixes used by conformance suites to
// their namespaces. Suite configuration extends or overrides it.
var DefaultPrefixes = map[string]string{
	"err":     "http://www.w3.org/2005/xqt-errors",
	"utre":    "http://www.xbrl.org/2009/utr/errors",
	"xbrldie": "http://xbrl.org/2005/xbrldi/errors",
	"xbrldte": "http://xbrl.org/2005/xbrldt/errors",
	"xbrlfe":  "http://xbrl.org/2008/formula/error",
	"xbrlte":  "http://xbrl.org/2014/table/error",
	"xbrlve":  "http://xbrl.org/2008/variable/error",
}

// Pattern is a custom equivalence rule. When expected text fully matches
// Expected, an actual code fully matching Actual (with Placeholder replaced
// by the expected text) satisfies it.
type Pattern struct {
	Expected string `json:"expected" msgpack:"expected"`
	Actual   string `json:"actual" msgpack:"actual"`
}

// ParsePattern parses the "expected|actual" command-line form.
func ParsePattern(s string) (Pattern, error) {
	expected, actual, ok := strings.Cut(s, "|")
	if !ok || expected == "" || actual == "" {
		return Pattern{}, conformerrors.Configf("custom compare pattern %q must have the form \"expected|actual\"", s)
	}
	return Pattern{Expected: expected, Actual: actual}, nil
}

// ActualPatternFor returns the actual pattern with Placeholder replaced by
// expected.
func (p Pattern) ActualPatternFor(expected string) string {
	return strings.ReplaceAll(p.Actual, Placeholder, expected)
}

func (p Pattern) String() string {
	return p.Expected + "|" + p.Actual
}

// Options tunes code matching.
type Options struct {
	// MatchLastSegment lets a qualified-name constraint match a dotted code
	// whose last segment equals the local name.
	MatchLastSegment bool
	// Logger receives debug records about actual patterns that fail to
	// compile. Nil discards them.
	Logger *slog.Logger
}

type compiledPattern struct {
	Pattern
	expected *regexp.Regexp
}

type actualKey struct {
	pattern  int
	expected string
}

// Context is an immutable comparison configuration. It is safe for
// concurrent use.
type Context struct {
	patterns []compiledPattern
	prefixes map[string]string
	aliases  map[string]map[string]string
	opts     Options
	log      *slog.Logger

	// actual caches the compiled actual pattern per pattern and expected
	// text; a nil value records a pattern that does not compile.
	actual sync.Map
}

// New builds a Context. prefixes maps a code prefix to a namespace; aliases
// maps a namespace to a table of local-name aliases and their canonical
// names. The tables are copied. An expected pattern that does not compile is
// a configuration error.
func New(patterns []Pattern, prefixes map[string]string, aliases map[string]map[string]string, opts Options) (*Context, error) {
	ctx := &Context{
		prefixes: maps.Clone(prefixes),
		aliases:  make(map[string]map[string]string, len(aliases)),
		opts:     opts,
		log:      opts.Logger,
	}
	if ctx.log == nil {
		ctx.log = slog.New(slog.DiscardHandler)
	}
	if ctx.prefixes == nil {
		ctx.prefixes = map[string]string{}
	}
	for ns, table := range aliases {
		ctx.aliases[ns] = maps.Clone(table)
	}
	for _, p := range patterns {
		re, err := regexp.Compile(fullMatch(p.Expected))
		if err != nil {
			return nil, conformerrors.WrapConfig(err, fmt.Sprintf("invalid expected pattern %q", p.Expected))
		}
		ctx.patterns = append(ctx.patterns, compiledPattern{Pattern: p, expected: re})
	}
	return ctx, nil
}

// Default returns a Context with DefaultPrefixes and no custom patterns.
func Default() *Context {
	ctx, _ := New(nil, DefaultPrefixes, nil, Options{})
	return ctx
}

func fullMatch(pattern string) string {
	return "^(?:" + pattern + ")$"
}

// Compare reports whether signal satisfies c. The code check runs first,
// then the qualified-name check, then the custom patterns.
func (ctx *Context) Compare(c constraint.Constraint, signal diag.Signal) bool {
	if c.Pattern == constraint.Wildcard || c.MatchesAnything() {
		return true
	}
	code := signal.Identity()
	if ctx.MatchesCode(c, code) {
		return true
	}
	qname := ctx.ToQName(code)
	if signal.QName != nil {
		qname = ctx.canonical(*signal.QName)
	}
	if ctx.MatchesQName(c, qname) {
		return true
	}
	expected := c.Pattern
	if expected == "" && c.QName != nil {
		expected = c.QName.String()
	}
	return ctx.MatchesCustom(expected, code)
}

// MatchesCode reports whether code satisfies c lexically.
func (ctx *Context) MatchesCode(c constraint.Constraint, code string) bool {
	if c.Pattern == constraint.Wildcard {
		return true
	}
	if c.QName != nil {
		if code == c.QName.String() || code == c.QName.Local {
			return true
		}
		if ctx.opts.MatchLastSegment && lastSegment(code) == c.QName.Local {
			return true
		}
	}
	if c.Pattern != "" {
		if c.Pattern == code || strings.Contains(code, c.Pattern) {
			return true
		}
	}
	return false
}

func lastSegment(code string) string {
	if i := strings.LastIndexByte(code, '.'); i >= 0 {
		return code[i+1:]
	}
	return code
}

// ToQName splits code on its first ':' into prefix and local name, resolves
// the prefix through the prefix table and remaps the local name through the
// alias table of the resolved namespace. An unknown prefix leaves the
// namespace empty.
func (ctx *Context) ToQName(code string) diag.QName {
	prefix, local, ok := strings.Cut(code, ":")
	if !ok {
		prefix, local = "", code
	}
	return ctx.canonical(diag.QName{
		Namespace: ctx.prefixes[prefix],
		Prefix:    prefix,
		Local:     local,
	})
}

func (ctx *Context) canonical(q diag.QName) diag.QName {
	if alias, ok := ctx.aliases[q.Namespace][q.Local]; ok {
		q.Local = alias
	}
	return q
}

// MatchesQName reports whether qname satisfies c: either c has no qualified
// name and its pattern equals the local name, or the names are equal.
func (ctx *Context) MatchesQName(c constraint.Constraint, qname diag.QName) bool {
	if c.QName == nil {
		return c.Pattern != "" && c.Pattern == qname.Local
	}
	return c.QName.Equal(qname)
}

// MatchesCustom reports whether any custom pattern pair relates expected to
// actual. An actual pattern that does not compile after substitution never
// matches.
func (ctx *Context) MatchesCustom(expected, actual string) bool {
	if expected == "" {
		return false
	}
	for i, p := range ctx.patterns {
		if !p.expected.MatchString(expected) {
			continue
		}
		if re := ctx.actualPattern(i, expected); re != nil && re.MatchString(actual) {
			return true
		}
	}
	return false
}

func (ctx *Context) actualPattern(i int, expected string) *regexp.Regexp {
	k := actualKey{pattern: i, expected: expected}
	if v, ok := ctx.actual.Load(k); ok {
		return v.(*regexp.Regexp)
	}
	p := ctx.patterns[i]
	re, err := regexp.Compile(fullMatch(p.ActualPatternFor(expected)))
	if err != nil {
		ctx.log.Debug("custom compare pattern does not compile",
			"pattern", p.String(), "expected", expected, "error", err)
		re = nil
	}
	v, _ := ctx.actual.LoadOrStore(k, re)
	return v.(*regexp.Regexp)
}

// Patterns returns the custom patterns in order.
func (ctx *Context) Patterns() []Pattern {
	out := make([]Pattern, len(ctx.patterns))
	for i, p := range ctx.patterns {
		out[i] = p.Pattern
	}
	return out
}

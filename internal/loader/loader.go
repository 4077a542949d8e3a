// Package loader turns a conformance suite's XML testcase index into
// variations.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

const (
	// ParameterSeparator joins variation parameters.
	ParameterSeparator = "\n"
	// TargetSeparator joins a variation ID and its inline target.
	TargetSeparator = "|"
	// DefaultTarget names the untargeted instance when a variation has
	// several.
	DefaultTarget = "(default)"

	conformanceNamespace = "https://xbrl.org/2023/conformance"
)

var calcModes = map[string]string{
	"truncate": "truncation",
}

// Options controls how variations are built.
type Options struct {
	MatchAll bool
	// CompareFormulaOutput routes expected result instances to formula
	// output comparison instead of instance comparison.
	CompareFormulaOutput bool
	IgnoredSeverities    []diag.Severity
}

type loader struct {
	opts    Options
	root    string
	visited map[string]bool
	out     []testcase.Variation
}

// Load reads the index at path and returns its variations in document order.
// Nested indexes are followed; a document reached twice is loaded once.
func Load(path string, opts Options) ([]testcase.Variation, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xml") {
		return nil, conformerrors.Configf("no testcase loader available for %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, conformerrors.NotFound("testcase index", path)
		}
		return nil, err
	}
	l := &loader{
		opts:    opts,
		root:    filepath.Dir(path),
		visited: make(map[string]bool),
	}
	if err := l.loadDocument(path); err != nil {
		return nil, err
	}
	return l.out, nil
}

func (l *loader) loadDocument(path string) error {
	key := filepath.Clean(path)
	if l.visited[key] {
		return nil
	}
	l.visited[key] = true

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	root, err := parseXML(f)
	if err != nil {
		return conformerrors.Validationf("failed to parse %s: %v", path, err)
	}

	if root.name.Local == "testcase" {
		return l.loadTestcase(path, root)
	}

	dir := filepath.Dir(path)
	if base := root.attr("root"); base != "" {
		dir = filepath.Join(dir, filepath.FromSlash(base))
	}
	for _, ref := range root.descendants("testcase") {
		uri := ref.attr("uri")
		if uri == "" {
			continue
		}
		if err := l.loadDocument(filepath.Join(dir, filepath.FromSlash(uri))); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) loadTestcase(path string, doc *node) error {
	base := filepath.ToSlash(path)
	short := base
	if rel, err := filepath.Rel(l.root, path); err == nil {
		short = filepath.ToSlash(rel)
	}
	for _, v := range doc.descendants("variation") {
		built, err := l.buildVariations(path, base, short, v)
		if err != nil {
			return err
		}
		l.out = append(l.out, built...)
	}
	return nil
}

func (l *loader) buildVariations(path, base, short string, v *node) ([]testcase.Variation, error) {
	id := v.attr("id")
	if id == "" {
		return nil, conformerrors.Validationf("%s: variation without id", path)
	}
	if strings.Contains(id, TargetSeparator) {
		return nil, conformerrors.Validationf("%s: variation ID %q contains the reserved separator %q", path, id, TargetSeparator)
	}

	results := v.descendants("result")
	calcMode, err := readCalcMode(results)
	if err != nil {
		return nil, conformerrors.Validationf("%s:%s: %v", path, id, err)
	}
	params, err := readParameters(v)
	if err != nil {
		return nil, conformerrors.Validationf("%s:%s: %v", path, id, err)
	}
	constraints, err := buildConstraints(results)
	if err != nil {
		return nil, conformerrors.Validationf("%s:%s: %v", path, id, err)
	}

	blocked := v.attr("blockedMessageCodes")
	for _, r := range results {
		if b := r.attr("blockedMessageCodes"); b != "" && blocked == "" {
			blocked = b
		}
	}

	description := ""
	if d := v.first("description"); d != nil {
		description = d.value()
	}

	var out []testcase.Variation
	for _, target := range targets(results) {
		localID := id
		if target != "" {
			localID = id + TargetSeparator + target
		}
		variation := testcase.Variation{
			ID:                 localID,
			Name:               v.attr("name"),
			Description:        description,
			Base:               base,
			ReadFirst:          readFirst(v),
			ShortName:          short + ":" + localID,
			Status:             v.attr("status"),
			Constraints:        constraint.Set{Constraints: constraints, MatchAll: l.opts.MatchAll},
			BlockedCodePattern: blocked,
			IgnoredSeverities:  l.opts.IgnoredSeverities,
			CalcMode:           calcMode,
			Parameters:         params,
		}
		if target != DefaultTarget {
			variation.InlineTarget = target
		}
		if uri := instanceURI(results, target); uri != "" {
			resolved := filepath.ToSlash(filepath.Join(filepath.Dir(path), filepath.FromSlash(uri)))
			if l.opts.CompareFormulaOutput {
				variation.CompareFormulaOutputURI = resolved
			} else {
				variation.CompareInstanceURI = resolved
			}
		}
		out = append(out, variation)
	}
	return out, nil
}

// readCalcMode returns the single calculation mode declared by results.
func readCalcMode(results []*node) (string, error) {
	var mode string
	for _, r := range results {
		m := r.attrNS(conformanceNamespace, "mode")
		if m == "" {
			continue
		}
		if mapped, ok := calcModes[m]; ok {
			m = mapped
		}
		if mode != "" && mode != m {
			return "", fmt.Errorf("multiple calculation modes found: %q and %q", mode, m)
		}
		mode = m
	}
	return mode, nil
}

func readParameters(v *node) (string, error) {
	var params []string
	for _, data := range v.elements("data") {
		for _, p := range data.elements("parameter") {
			name := p.attr("name")
			if q, ok := p.resolve(name); ok {
				name = q.Clark()
			}
			param := name + "=" + p.attr("value")
			if strings.Contains(param, ParameterSeparator) {
				return "", fmt.Errorf("parameter %q contains the parameter separator", name)
			}
			params = append(params, param)
		}
	}
	return strings.Join(params, ParameterSeparator), nil
}

// readFirst returns the entry documents: those flagged readMeFirst, or every
// data document when none is flagged.
func readFirst(v *node) []string {
	var flagged, all []string
	for _, data := range v.elements("data") {
		for _, d := range data.elements("") {
			if d.name.Local == "parameter" {
				continue
			}
			uri := d.value()
			if uri == "" {
				continue
			}
			all = append(all, uri)
			if b, err := strconv.ParseBool(d.attr("readMeFirst")); err == nil && b {
				flagged = append(flagged, uri)
			}
		}
	}
	if len(flagged) > 0 {
		return flagged
	}
	return all
}

// buildConstraints builds the expected diagnostics of a variation. Declared error
// codes take precedence over a bare "invalid" expectation, which otherwise
// becomes a wildcard.
func buildConstraints(results []*node) ([]constraint.Constraint, error) {
	var (
		codes      []constraint.Constraint
		assertions []constraint.Constraint
		warnings   []constraint.Constraint
		invalid    bool
	)
	for _, r := range results {
		switch expected := r.attr("expected"); expected {
		case "", "valid":
		case "invalid":
			invalid = true
		default:
			return nil, fmt.Errorf("unexpected result %q", expected)
		}
		for _, e := range r.elements("error") {
			if code := e.value(); code != "" {
				codes = append(codes, codeConstraint(e, code))
			}
		}
		for _, w := range r.elements("warning") {
			if code := w.value(); code != "" {
				warnings = append(warnings, codeConstraint(w, code))
			}
		}
		for _, a := range r.elements("assertionTests") {
			id := a.attr("assertionID")
			if id == "" {
				return nil, fmt.Errorf("assertionTests without assertionID")
			}
			for _, level := range []struct {
				attr     string
				severity diag.Severity
			}{
				{"countSatisfied", diag.Satisfied},
				{"countNotSatisfied", diag.NotSatisfied},
			} {
				if !a.hasAttr(level.attr) {
					continue
				}
				n, err := strconv.Atoi(strings.TrimSpace(a.attr(level.attr)))
				if err != nil || n < 0 {
					return nil, fmt.Errorf("assertion %q: invalid %s %q", id, level.attr, a.attr(level.attr))
				}
				if n > 0 {
					assertions = append(assertions, constraint.Constraint{Pattern: id, Count: n, Severity: level.severity})
				}
			}
		}
	}

	var out []constraint.Constraint
	out = append(out, codes...)
	out = append(out, assertions...)
	if invalid && len(codes) == 0 && len(assertions) == 0 {
		out = append(out, constraint.Invalid())
	}
	out = append(out, warnings...)
	return out, nil
}

func codeConstraint(n *node, code string) constraint.Constraint {
	if q, ok := n.resolve(code); ok {
		return constraint.Named(q)
	}
	return constraint.Code(code)
}

// targets lists the inline targets named by result instances, or a single
// empty target.
func targets(results []*node) []string {
	var out []string
	for _, r := range results {
		for _, inst := range r.descendants("instance") {
			out = append(out, inst.attr("target"))
		}
	}
	if len(out) == 0 {
		return []string{""}
	}
	if len(out) > 1 {
		for i, t := range out {
			if t == "" {
				out[i] = DefaultTarget
			}
		}
	}
	return out
}

func instanceURI(results []*node, target string) string {
	var first string
	for _, r := range results {
		for _, inst := range r.descendants("instance") {
			uri := inst.value()
			if first == "" {
				first = uri
			}
			t := inst.attr("target")
			if t == target || (t == "" && target == DefaultTarget) {
				return uri
			}
		}
	}
	return first
}

package diag

import (
	"slices"

	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
)

// Diagnostic is one raw value from an engine diagnostic channel. It is one
// of CodeDiagnostic, QNameDiagnostic or TallyDiagnostic.
type Diagnostic interface {
	isDiagnostic()
}

// CodeDiagnostic is a plain string identifier reported at error level.
type CodeDiagnostic struct {
	Code string
}

// QNameDiagnostic is a qualified-name identifier reported at error level.
type QNameDiagnostic struct {
	QName QName
}

// Tally counts assertion outcomes per severity for one code.
type Tally struct {
	Satisfied    int
	NotSatisfied int
	Ok           int
	Warning      int
	Error        int
}

// TallyEntry is the tally of a single assertion code.
type TallyEntry struct {
	Code  string
	Tally Tally
}

// TallyDiagnostic is a per-severity assertion tally keyed by code.
type TallyDiagnostic struct {
	Entries []TallyEntry
}

func (CodeDiagnostic) isDiagnostic()  {}
func (QNameDiagnostic) isDiagnostic() {}
func (TallyDiagnostic) isDiagnostic() {}

// Flatten normalizes raw diagnostics into signals. Each nonzero tally count
// becomes one signal carrying that count; the Error count is skipped because
// engines report failing assertions separately as plain errors. Signals of
// an ignored severity are dropped. A nil or unknown diagnostic is a
// malformed-shape error.
func Flatten(diags []Diagnostic, ignored []Severity) ([]Signal, error) {
	var signals []Signal
	keep := func(s Severity) bool { return !slices.Contains(ignored, s) }
	for i, d := range diags {
		switch v := d.(type) {
		case CodeDiagnostic:
			if keep(Error) {
				signals = append(signals, Signal{Code: v.Code, Severity: Error})
			}
		case QNameDiagnostic:
			if keep(Error) {
				q := v.QName
				signals = append(signals, Signal{QName: &q, Severity: Error})
			}
		case TallyDiagnostic:
			for _, e := range v.Entries {
				for _, lc := range []struct {
					sev   Severity
					count int
				}{
					{Satisfied, e.Tally.Satisfied},
					{NotSatisfied, e.Tally.NotSatisfied},
					{Ok, e.Tally.Ok},
					{Warning, e.Tally.Warning},
				} {
					if lc.count < 1 || !keep(lc.sev) {
						continue
					}
					s := Signal{Code: e.Code, Severity: lc.sev}
					if lc.count > 1 {
						s.Count = lc.count
					}
					signals = append(signals, s)
				}
			}
		default:
			return nil, conformerrors.Malformedf("diagnostic %d has unexpected type %T", i, d)
		}
	}
	return signals, nil
}

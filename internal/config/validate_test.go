package config

import (
	"errors"
	"reflect"
	"testing"

	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
)

func intPtr(n int) *int { return &n }

func validSuite() *Suite {
	s := &Suite{Index: "index.xml"}
	applyDefaults(s)
	return s
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	warnings, err := Validate(validSuite())
	if err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("Validate() warnings = %v, want none", warnings)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		modify func(*Suite)
		field  string
	}{
		{"missing index", func(s *Suite) { s.Index = "" }, "index"},
		{"bad match", func(s *Suite) { s.Match = "some" }, "match"},
		{"bad filter", func(s *Suite) { s.Filters = []string{"ok", "[unclosed"} }, "filters[1]"},
		{"pattern without separator", func(s *Suite) { s.CustomComparePatterns = []string{"abc"} }, "custom_compare_patterns[0]"},
		{"pattern does not compile", func(s *Suite) { s.CustomComparePatterns = []string{"(|x"} }, "custom_compare_patterns"},
		{"bad severity", func(s *Suite) { s.IgnoredSeverities = []string{"ok", "fatal"} }, "ignored_severities[1]"},
		{"bad timeout", func(s *Suite) { s.Timeout = "soon" }, "timeout"},
		{"negative timeout", func(s *Suite) { s.Timeout = "-1s" }, "timeout"},
		{"too many jobs", func(s *Suite) { s.Jobs = MaxJobs + 1 }, "jobs"},
		{"negative jobs", func(s *Suite) { s.Jobs = -1 }, "jobs"},
		{"additional without suffix", func(s *Suite) {
			s.AdditionalConstraints = []AdditionalConfig{{Constraints: []ConstraintConfig{{Code: "a"}}}}
		}, "additional_constraints[0].suffix"},
		{"additional with bad constraint", func(s *Suite) {
			s.AdditionalConstraints = []AdditionalConfig{{Suffix: "x", Constraints: []ConstraintConfig{{Code: "a", QName: "b"}}}}
		}, "additional_constraints[0].constraint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSuite()
			tt.modify(s)

			_, err := Validate(s)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()
	s := validSuite()
	s.Jobs = 4
	s.Engine.Suffix = ".json"
	s.Engine.Name = "replay"
	s.Engine.Command = []string{"validate"}

	warnings, err := Validate(s)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := []string{
		"jobs has no effect unless parallel is enabled",
		"engine.command is only used by the command engine",
	}
	if !reflect.DeepEqual(warnings, want) {
		t.Errorf("warnings = %q, want %q", warnings, want)
	}
}

func TestValidationError_Error(t *testing.T) {
	t.Parallel()
	err := &ValidationError{Field: "index", Message: "is required"}
	if got := err.Error(); got != "index: is required" {
		t.Errorf("Error() = %q", got)
	}
}

func TestConstraintConfig_Constraint(t *testing.T) {
	t.Parallel()
	q := diag.QName{Namespace: "http://www.xbrl.org/2003", Local: "schemaImportError"}
	tests := []struct {
		name string
		in   ConstraintConfig
		want constraint.Constraint
	}{
		{"code defaults", ConstraintConfig{Code: "EFM.6.05.20"}, constraint.Code("EFM.6.05.20")},
		{"qname", ConstraintConfig{QName: "{http://www.xbrl.org/2003}schemaImportError"}, constraint.Named(q)},
		{"any", ConstraintConfig{}, constraint.Constraint{Count: 1, Severity: diag.Error}},
		{"count and severity", ConstraintConfig{Code: "a", Count: intPtr(3), Severity: "not_satisfied"},
			constraint.Constraint{Pattern: "a", Count: 3, Severity: diag.NotSatisfied}},
		{"zero count", ConstraintConfig{Code: "a", Count: intPtr(0)}, constraint.Constraint{Pattern: "a", Severity: diag.Error}},
		{"range", ConstraintConfig{Code: "a", Min: intPtr(1), Max: intPtr(3)},
			constraint.Constraint{Pattern: "a", Min: intPtr(1), Max: intPtr(3), Severity: diag.Error}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Constraint()
			if err != nil {
				t.Fatalf("Constraint() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Constraint() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConstraintConfig_ConstraintErrors(t *testing.T) {
	t.Parallel()
	tests := map[string]ConstraintConfig{
		"code and qname":  {Code: "a", QName: "b"},
		"bad qname":       {QName: "{ns}"},
		"bad severity":    {Code: "a", Severity: "fatal"},
		"count and range": {Code: "a", Count: intPtr(1), Max: intPtr(2)},
		"min above max":   {Code: "a", Min: intPtr(3), Max: intPtr(2)},
		"negative count":  {Code: "a", Count: intPtr(-1)},
	}
	for name, c := range tests {
		if _, err := c.Constraint(); err == nil {
			t.Errorf("%s: Constraint() error = nil, want error", name)
		}
	}
}

// Package config loads and validates conform suite files.
package config

// Suite is the configuration of one conformance suite run.
type Suite struct {
	Name   string       `json:"name,omitempty"`
	Index  string       `json:"index"`
	Match  string       `json:"match,omitempty"`
	Engine EngineConfig `json:"engine,omitempty"`

	// Options are passed through to the engine for every variation.
	Options map[string]any `json:"options,omitempty"`
	Plugins []string       `json:"plugins,omitempty"`

	Filters               []string                     `json:"filters,omitempty"`
	CustomComparePatterns []string                     `json:"custom_compare_patterns,omitempty"`
	Prefixes              map[string]string            `json:"prefixes,omitempty"`
	Aliases               map[string]map[string]string `json:"aliases,omitempty"`
	MatchCodeSuffix       bool                         `json:"match_code_suffix,omitempty"`
	AdditionalConstraints []AdditionalConfig           `json:"additional_constraints,omitempty"`
	ExpectedFailures      []string                     `json:"expected_failures,omitempty"`
	IgnoredSeverities     []string                     `json:"ignored_severities,omitempty"`
	CompareFormulaOutput  bool                         `json:"compare_formula_output,omitempty"`

	Parallel     bool   `json:"parallel,omitempty"`
	Jobs         int    `json:"jobs,omitempty"`
	Timeout      string `json:"timeout,omitempty"`
	LogDirectory string `json:"log_directory,omitempty"`

	// Dir is the directory of the suite file. Relative paths in the suite
	// are resolved against it.
	Dir string `json:"-"`
}

// EngineConfig selects and configures the target engine.
type EngineConfig struct {
	Name    string            `json:"name,omitempty"`
	Command []string          `json:"command,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Suffix  string            `json:"suffix,omitempty"` // replay engine only
}

// AdditionalConfig lists constraints added to every variation whose full ID
// ends with Suffix.
type AdditionalConfig struct {
	Suffix      string             `json:"suffix"`
	Constraints []ConstraintConfig `json:"constraints"`
}

// ConstraintConfig is the file form of a constraint. Code and QName are
// mutually exclusive; a constraint with neither matches any diagnostic.
type ConstraintConfig struct {
	Code     string `json:"code,omitempty"`
	QName    string `json:"qname,omitempty"` // Clark notation: {namespace}local
	Severity string `json:"severity,omitempty"`
	Count    *int   `json:"count,omitempty"`
	Min      *int   `json:"min,omitempty"`
	Max      *int   `json:"max,omitempty"`
}

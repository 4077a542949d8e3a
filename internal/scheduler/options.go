package scheduler

import (
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/loader"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

// Runtime option keys owned by the harness.
const (
	optCompareFormulaOutput = "compareFormulaOutput"
	optCompareInstance      = "compareInstance"
	optKeepOpen             = "keepOpen"
	optLogFile              = "logFile"
	optParameterSeparator   = "parameterSeparator"
	optParameters           = "parameters"
	optValidate             = "validate"

	pluginOptInlineTarget = "inlineTarget"
)

// ReservedOptions are set by the harness for every run and may not be
// supplied by the caller.
var ReservedOptions = []string{
	optCompareFormulaOutput,
	optCompareInstance,
	engine.KeyEntrypointFile,
	optKeepOpen,
	optLogFile,
	optParameterSeparator,
	optParameters,
	optValidate,
}

// ReservedPluginOptions are the plugin option keys set by the harness.
var ReservedPluginOptions = []string{pluginOptInlineTarget}

// DefaultPluginOptions are merged into pluginOptions for each plugin named
// in the plugins option.
var DefaultPluginOptions = map[string]map[string]any{
	"EDGAR/render": {
		"keepFilingOpen": true,
	},
	"xule": {
		"xule_time":           2.0,
		"xule_rule_stats_log": true,
	},
}

var inlineExtensions = []string{".htm", ".html", ".xhtml"}

// CheckOptions reports a configuration conflict when caller options set a
// reserved key.
func CheckOptions(opts engine.Options) error {
	for _, key := range ReservedOptions {
		if _, ok := opts[key]; ok {
			return conformerrors.Configf("the option %q is reserved by the test harness", key)
		}
	}
	plugin, err := pluginOptions(opts)
	if err != nil {
		return err
	}
	for _, key := range ReservedPluginOptions {
		if _, ok := plugin[key]; ok {
			return conformerrors.Configf("the plugin option %q is reserved by the test harness", key)
		}
	}
	return nil
}

func pluginOptions(opts engine.Options) (map[string]any, error) {
	raw, ok := opts[engine.KeyPluginOptions]
	if !ok || raw == nil {
		return map[string]any{}, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, conformerrors.Configf("the option %q must be an object", engine.KeyPluginOptions)
	}
	return maps.Clone(m), nil
}

// BuildOptions resolves the engine options of one run. The caller's options
// are copied, never modified.
func BuildOptions(v testcase.Variation, caller engine.Options, logFile string) (engine.Options, error) {
	if err := CheckOptions(caller); err != nil {
		return nil, err
	}
	opts := maps.Clone(caller)
	if opts == nil {
		opts = engine.Options{}
	}
	plugin, err := pluginOptions(caller)
	if err != nil {
		return nil, err
	}

	if v.CalcMode != "" {
		if calcs, ok := opts[engine.KeyCalcs]; ok && fmt.Sprint(calcs) != v.CalcMode {
			return nil, conformerrors.Configf("conflicting %q values from variation (%s) and options (%v)", engine.KeyCalcs, v.CalcMode, calcs)
		}
		opts[engine.KeyCalcs] = v.CalcMode
	}

	if plugins, ok := opts[engine.KeyPlugins].(string); ok {
		for _, name := range strings.Split(plugins, "|") {
			for k, val := range DefaultPluginOptions[strings.TrimSpace(name)] {
				if _, set := plugin[k]; !set {
					plugin[k] = val
				}
			}
		}
	}
	if v.InlineTarget != "" {
		plugin[pluginOptInlineTarget] = v.InlineTarget
	}
	if len(plugin) > 0 {
		opts[engine.KeyPluginOptions] = plugin
	}

	opts[engine.KeyEntrypointFile] = strings.Join(EntrypointURIs(v), engine.EntrySeparator)
	opts[optKeepOpen] = true
	opts[optValidate] = true
	opts[optParameters] = v.Parameters
	opts[optParameterSeparator] = loader.ParameterSeparator
	if logFile != "" {
		opts[optLogFile] = logFile
	}
	if v.CompareFormulaOutputURI != "" {
		opts[optCompareFormulaOutput] = v.CompareFormulaOutputURI
	}
	if v.CompareInstanceURI != "" {
		opts[optCompareInstance] = v.CompareInstanceURI
	}
	return opts, nil
}

// EntrypointURIs resolves the read-first documents of v against its base
// directory. Several inline documents become one inline document set.
func EntrypointURIs(v testcase.Variation) []string {
	dir := path.Dir(v.Base)
	uris := make([]string, 0, len(v.ReadFirst))
	for _, doc := range v.ReadFirst {
		if isAbsolute(doc) {
			uris = append(uris, doc)
			continue
		}
		uris = append(uris, path.Join(dir, doc))
	}
	if len(uris) > 1 && allInline(uris) {
		surrogate := path.Join(path.Dir(uris[0]), engine.DocumentSetName)
		return []string{surrogate + engine.DocumentSetSeparator + strings.Join(uris, engine.DocumentSetSeparator)}
	}
	return uris
}

func isAbsolute(uri string) bool {
	return path.IsAbs(uri) || strings.Contains(uri, "://") || filepath.IsAbs(uri)
}

func allInline(uris []string) bool {
	for _, uri := range uris {
		if !slices.Contains(inlineExtensions, strings.ToLower(path.Ext(uri))) {
			return false
		}
	}
	return true
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"|?*\x00-\x1F]`)

// LogFilename turns a variation name into a portable file name.
func LogFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	return strings.Trim(strings.TrimSpace(name), ".")
}

// LogPath returns the log artifact path of v inside dir, or "" when dir is
// empty.
func LogPath(dir string, v testcase.Variation) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, LogFilename(v.ShortName)+"-log.txt")
}

// writeLog records the resolved options before the engine runs.
func writeLog(logFile string, v testcase.Variation, opts engine.Options) error {
	if logFile == "" {
		return nil
	}
	rendered, err := opts.JSON()
	if err != nil {
		return fmt.Errorf("failed to render options for %s: %w", v.FullID(), err)
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	content := fmt.Sprintf("Running [%s] with options:\n%s\n------\n", v.FullID(), rendered)
	if err := os.WriteFile(logFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}
	return nil
}

package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/conform/internal/constraint"
	"github.com/AndreyAkinshin/conform/internal/diag"
	"github.com/AndreyAkinshin/conform/internal/diff"
	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/logger"
	"github.com/AndreyAkinshin/conform/internal/testcase"
	"github.com/AndreyAkinshin/conform/internal/testing/mocks"
)

func variation(id string, docs []string, constraints ...constraint.Constraint) testcase.Variation {
	return testcase.Variation{
		ID:          id,
		Base:        "suite/tc.xml",
		ReadFirst:   docs,
		ShortName:   "tc.xml:" + id,
		Constraints: constraint.Set{Constraints: constraints, MatchAll: true},
	}
}

func newScheduler(t *testing.T, plan Plan) *Scheduler {
	t.Helper()
	s, err := New(plan, testRegistry(), logger.Discard())
	require.NoError(t, err)
	return s
}

func mockScheduler(t *testing.T, m *mocks.Engine, plan Plan) *Scheduler {
	t.Helper()
	r := engine.NewRegistry()
	require.NoError(t, r.Register("mock", m.Factory()))
	plan.Engine = "mock"
	s, err := New(plan, r, logger.Discard())
	require.NoError(t, err)
	return s
}

func TestRunVariation_EndToEnd(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "docs"})
	ctx := context.Background()

	r, err := s.RunVariation(ctx, variation("V-01", []string{"utr:invalid"}, constraint.Code("utr:invalid")))
	require.NoError(t, err)
	assert.True(t, r.Passed)
	assert.Equal(t, testcase.StatusPass, r.Status())
	assert.Equal(t, []testcase.ConstraintResult{{Code: "utr:invalid", Severity: diag.Error, Diff: 0}}, r.ConstraintResults)
	assert.Equal(t, []diag.Signal{{Code: "utr:invalid", Severity: diag.Error}}, r.Actual)

	r, err = s.RunVariation(ctx, variation("V-01", nil, constraint.Code("utr:invalid")))
	require.NoError(t, err)
	assert.False(t, r.Passed)
	assert.Equal(t, testcase.StatusFail, r.Status())
	assert.Equal(t, []testcase.ConstraintResult{{Code: "utr:invalid", Severity: diag.Error, Diff: -1}}, r.ConstraintResults)
}

func TestRunVariation_FilteredIsSkipped(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock").WithCodes("x")
	s := mockScheduler(t, m, Plan{Filters: []string{"**/other.xml:*"}, MatchAll: true})

	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"a.xml"}))
	require.NoError(t, err)
	assert.True(t, r.Skip)
	assert.Equal(t, testcase.StatusSkip, r.Status())
	assert.Zero(t, r.Duration)
	assert.Empty(t, r.Actual)
	assert.True(t, r.Applied.MatchAll)
	assert.Equal(t, int32(0), m.RunCount())
}

func TestRunVariation_FilterSelects(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock")
	s := mockScheduler(t, m, Plan{Filters: []string{"suite/*.xml:V-0*"}})

	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"a.xml"}))
	require.NoError(t, err)
	assert.False(t, r.Skip)
	assert.Equal(t, int32(1), m.RunCount())
}

func TestRunVariation_Options(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock")
	s := mockScheduler(t, m, Plan{Options: engine.Options{
		"plugins":          "xule|other",
		"pluginOptions":    map[string]any{"xule_time": 9.0},
		"calcs":            "truncation",
		"disclosureSystem": "efm",
	}})

	v := variation("V-01", []string{"a.xml"})
	v.CalcMode = "truncation"
	v.InlineTarget = "sec"
	v.Parameters = "a=1\nb=2"
	v.CompareInstanceURI = "suite/expected.xml"

	_, err := s.RunVariation(context.Background(), v)
	require.NoError(t, err)

	opts := m.LastOptions()
	assert.Equal(t, "suite/a.xml", opts[engine.KeyEntrypointFile])
	assert.Equal(t, true, opts["keepOpen"])
	assert.Equal(t, true, opts["validate"])
	assert.Equal(t, "a=1\nb=2", opts["parameters"])
	assert.Equal(t, "\n", opts["parameterSeparator"])
	assert.Equal(t, "truncation", opts[engine.KeyCalcs])
	assert.Equal(t, "suite/expected.xml", opts["compareInstance"])
	assert.Equal(t, "efm", opts["disclosureSystem"])
	assert.NotContains(t, opts, "compareFormulaOutput")
	assert.NotContains(t, opts, "logFile")
	assert.Equal(t, map[string]any{
		"xule_time":           9.0,
		"xule_rule_stats_log": true,
		"inlineTarget":        "sec",
	}, opts[engine.KeyPluginOptions])
}

func TestRunVariation_CallerOptionsUnchanged(t *testing.T) {
	t.Parallel()
	plugin := map[string]any{}
	caller := engine.Options{"plugins": "xule", "pluginOptions": plugin}
	m := mocks.NewEngine("mock")
	s := mockScheduler(t, m, Plan{Options: caller})

	v := variation("V-01", []string{"a.xml"})
	v.InlineTarget = "sec"
	_, err := s.RunVariation(context.Background(), v)
	require.NoError(t, err)

	assert.Empty(t, plugin)
	assert.Len(t, caller, 2)
}

func TestNew_ReservedOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts engine.Options
	}{
		{"runtime option", engine.Options{"entrypointFile": "x.xml"}},
		{"log file", engine.Options{"logFile": "x.txt"}},
		{"plugin option", engine.Options{"pluginOptions": map[string]any{"inlineTarget": "x"}}},
		{"plugin options not an object", engine.Options{"pluginOptions": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Plan{Engine: "docs", Options: tt.opts}, testRegistry(), logger.Discard())
			require.Error(t, err)
			assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))
		})
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(Plan{}, testRegistry(), logger.Discard())
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))

	_, err = New(Plan{Engine: "missing"}, testRegistry(), logger.Discard())
	assert.Equal(t, conformerrors.KindNotFound, conformerrors.KindOf(err))

	_, err = New(Plan{Engine: "docs", Filters: []string{"[a"}}, testRegistry(), logger.Discard())
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))

	_, err = New(Plan{Engine: "docs", Timeout: -time.Second}, testRegistry(), logger.Discard())
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))
}

func TestRunVariation_CalcModeConflict(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock")
	s := mockScheduler(t, m, Plan{Options: engine.Options{"calcs": "round"}})

	v := variation("V-01", []string{"a.xml"})
	v.CalcMode = "truncation"
	_, err := s.RunVariation(context.Background(), v)
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))
	assert.Equal(t, int32(0), m.RunCount())

	v.CalcMode = ""
	_, err = s.RunVariation(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "round", m.LastOptions()[engine.KeyCalcs])
}

func TestRunVariation_EngineFailureIsRecorded(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "fail"})

	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"a.xml"}, constraint.Invalid()))
	require.NoError(t, err)
	assert.Equal(t, testcase.StatusError, r.Status())
	assert.Equal(t, conformerrors.KindEngine, r.ErrorKind)
	assert.Contains(t, r.Error, "engine exploded")
	assert.Contains(t, r.Error, "suite/tc.xml:V-01")
	assert.Equal(t, []constraint.Constraint{constraint.Invalid()}, r.Applied.Constraints)
}

func TestRunVariation_MalformedDiagnostic(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock").WithDocument("a.xml", nil)
	s := mockScheduler(t, m, Plan{})

	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"a.xml"}))
	require.NoError(t, err)
	assert.Equal(t, testcase.StatusError, r.Status())
	assert.Equal(t, conformerrors.KindMalformed, r.ErrorKind)
}

func TestRunVariation_Timeout(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "hang", Timeout: 50 * time.Millisecond})

	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"a.xml"}))
	require.NoError(t, err)
	assert.Equal(t, testcase.StatusError, r.Status())
	assert.Contains(t, r.Error, "timed out after 50ms")
}

func TestRunVariation_BlockedCodes(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "docs"})

	v := variation("V-01", []string{"EFM.6.05.20", "x"}, constraint.Code("x"))
	v.BlockedCodePattern = `EFM\.6\.05\.20`
	r, err := s.RunVariation(context.Background(), v)
	require.NoError(t, err)
	assert.True(t, r.Passed)
	assert.Equal(t, []diff.Blocked{{Code: "EFM.6.05.20", Count: 1}}, r.Blocked)
	assert.Equal(t, []diag.Signal{{Code: "x", Severity: diag.Error}}, r.Actual)
}

func TestRunVariation_InvalidBlockedPattern(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock")
	s := mockScheduler(t, m, Plan{})

	v := variation("V-01", []string{"a.xml"})
	v.BlockedCodePattern = "(unclosed"
	_, err := s.RunVariation(context.Background(), v)
	require.Error(t, err)
	assert.Equal(t, conformerrors.KindConfig, conformerrors.KindOf(err))
	assert.Equal(t, int32(0), m.RunCount())
}

func TestRunVariation_AdditionalConstraints(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{
		Engine: "docs",
		Additional: []constraint.Additional{
			{Suffix: "tc.xml:V-01", Constraints: []constraint.Constraint{constraint.Code("extra")}},
			{Suffix: "tc.xml:V-02", Constraints: []constraint.Constraint{constraint.Code("never")}},
		},
	})

	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"extra"}))
	require.NoError(t, err)
	assert.True(t, r.Passed)
	assert.Equal(t, []constraint.Constraint{constraint.Code("extra")}, r.Applied.Constraints)
}

func TestRunVariation_IgnoredSeverities(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock").WithDocument("a.xml", diag.TallyDiagnostic{Entries: []diag.TallyEntry{
		{Code: "assertion1", Tally: diag.Tally{Satisfied: 2, Warning: 1}},
	}})
	s := mockScheduler(t, m, Plan{})

	v := variation("V-01", []string{"a.xml"})
	v.IgnoredSeverities = []diag.Severity{diag.Warning}
	r, err := s.RunVariation(context.Background(), v)
	require.NoError(t, err)
	assert.True(t, r.Passed, "satisfied leftovers never fail and the warning is ignored")
	assert.Equal(t, []diag.Signal{{Code: "assertion1", Severity: diag.Satisfied, Count: 2}}, r.Actual)
}

func TestRunVariation_LargeTally(t *testing.T) {
	t.Parallel()
	m := mocks.NewEngine("mock").WithDocument("a.xml", diag.TallyDiagnostic{Entries: []diag.TallyEntry{
		{Code: "assertion1", Tally: diag.Tally{Satisfied: 3000000, NotSatisfied: 1}},
	}})
	s := mockScheduler(t, m, Plan{})

	expect := constraint.Constraint{Pattern: "assertion1", Count: 3000000, Severity: diag.Satisfied}
	r, err := s.RunVariation(context.Background(), variation("V-01", []string{"a.xml"}, expect))
	require.NoError(t, err)
	assert.Len(t, r.Actual, 2)
	assert.False(t, r.Passed, "the unsatisfied assertion is unexpected")
	require.Len(t, r.ConstraintResults, 2)
	assert.Equal(t, 0, r.ConstraintResults[0].Diff)
	assert.Equal(t, 1, r.ConstraintResults[1].Diff)
}

func TestRunVariation_WritesLogBeforeRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	var logged string
	m := mocks.NewEngine("mock").WithRunFunc(func(ctx context.Context, opts engine.Options) (engine.Output, error) {
		data, err := os.ReadFile(opts["logFile"].(string))
		logged = string(data)
		return engine.Output{}, err
	})
	s := mockScheduler(t, m, Plan{LogDirectory: dir})

	v := variation("V-01", []string{"a.xml"})
	v.ShortName = "nested/tc.xml:V-01"
	r, err := s.RunVariation(context.Background(), v)
	require.NoError(t, err)
	require.Empty(t, r.Error)

	assert.Equal(t, filepath.Join(dir, "nested", "tc.xml_V-01-log.txt"), m.LastOptions()["logFile"])
	assert.True(t, strings.HasPrefix(logged, "Running [suite/tc.xml:V-01] with options:\n{\n    \"entrypointFile\": \"suite/a.xml\",\n"), logged)
	assert.True(t, strings.HasSuffix(logged, "}\n------\n"), logged)
}

func TestLogFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"tc.xml:V-01", "tc.xml_V-01"},
		{`a<b>"c"|d?*`, "a_b__c__d__"},
		{" ..x:y.. ", "x_y"},
		{"ctl\x01\x1f", "ctl__"},
		{"dir/tc.xml:V-01|sec", "dir/tc.xml_V-01_sec"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, LogFilename(tt.input))
		})
	}
	assert.Equal(t, "", LogPath("", variation("V-01", nil)))
}

func TestEntrypointURIs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		docs []string
		want []string
	}{
		{"none", nil, []string{}},
		{"single", []string{"a.xml"}, []string{"suite/a.xml"}},
		{"single inline", []string{"a.htm"}, []string{"suite/a.htm"}},
		{"several", []string{"a.xml", "b.xsd"}, []string{"suite/a.xml", "suite/b.xsd"}},
		{"inline set", []string{"d/a.htm", "d/b.xhtml"}, []string{"suite/d/_IXDS#?#suite/d/a.htm#?#suite/d/b.xhtml"}},
		{"mixed", []string{"a.htm", "b.xml"}, []string{"suite/a.htm", "suite/b.xml"}},
		{"absolute", []string{"/abs/a.xml", "http://example.com/b.xml"}, []string{"/abs/a.xml", "http://example.com/b.xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EntrypointURIs(variation("V", tt.docs)))
		})
	}
}

func TestBuildOptions_InlineSetEntrypoint(t *testing.T) {
	t.Parallel()

	opts, err := BuildOptions(variation("V", []string{"a.html", "b.html"}), nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"suite/a.html", "suite/b.html"}, engine.EntryDocuments(opts.EntrypointFile()))
}

func TestRunSerial_StreamsInOrder(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "docs", Filters: []string{"**/*:V-0[13]"}})

	variations := []testcase.Variation{
		variation("V-01", []string{"a"}, constraint.Code("a")),
		variation("V-02", []string{"b"}, constraint.Code("b")),
		variation("V-03", []string{"c"}, constraint.Code("wrong")),
	}
	var emitted []string
	results, err := s.RunSerial(context.Background(), variations, func(r testcase.Result) {
		emitted = append(emitted, r.Variation.ID+":"+string(r.Status()))
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"V-01:pass", "V-02:skip", "V-03:fail"}, emitted)
}

func TestRunSerial_StopsOnConfigError(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "docs"})

	bad := variation("V-02", []string{"b"})
	bad.BlockedCodePattern = "("
	results, err := s.RunSerial(context.Background(), []testcase.Variation{
		variation("V-01", []string{"a"}, constraint.Code("a")),
		bad,
		variation("V-03", []string{"c"}, constraint.Code("c")),
	}, nil)
	require.Error(t, err)
	assert.Len(t, results, 1)
}

func TestRunSerial_ContextCanceled(t *testing.T) {
	t.Parallel()
	s := newScheduler(t, Plan{Engine: "docs"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := s.RunSerial(ctx, []testcase.Variation{variation("V-01", nil)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestJobs(t *testing.T) {
	s := newScheduler(t, Plan{Engine: "docs"})

	t.Setenv(ParallelEnv, "")
	assert.GreaterOrEqual(t, s.Jobs(0), 1)
	assert.Equal(t, 3, s.Jobs(3))
	assert.Equal(t, maxParallelWorkers, s.Jobs(1000))

	t.Setenv(ParallelEnv, "4")
	assert.Equal(t, 4, s.Jobs(0))
	assert.Equal(t, 2, s.Jobs(2))

	for _, val := range []string{"invalid", "0", "-1", "257"} {
		t.Setenv(ParallelEnv, val)
		assert.GreaterOrEqual(t, s.Jobs(0), 1, val)
	}

	t.Setenv(ParallelEnv, "256")
	assert.Equal(t, 256, s.Jobs(0))
}

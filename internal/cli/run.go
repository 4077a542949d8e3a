package cli

import (
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndreyAkinshin/conform/internal/config"
	"github.com/AndreyAkinshin/conform/internal/engine"
	conformerrors "github.com/AndreyAkinshin/conform/internal/errors"
	"github.com/AndreyAkinshin/conform/internal/loader"
	"github.com/AndreyAkinshin/conform/internal/output"
	"github.com/AndreyAkinshin/conform/internal/report"
	"github.com/AndreyAkinshin/conform/internal/scheduler"
	"github.com/AndreyAkinshin/conform/internal/testcase"
)

type runOptions struct {
	suite         string
	index         string
	filters       []string
	logDirectory  string
	matchAll      bool
	matchAny      bool
	parallel      bool
	jobs          int
	options       string
	patterns      []string
	timeout       time.Duration
	exitZero      bool
	junit         string
	engine        string
	engineCommand string
	replaySuffix  string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a conformance suite",
		Long: "Run every variation of a conformance suite and report the differences\n" +
			"between expected and actual diagnostics. Flags override the suite file.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, rootOpts, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.suite, "suite", "", "suite file (default: conform.yaml, .yml, .toml or .json from the working directory up)")
	f.StringVar(&opts.index, "index", "", "testcase index document")
	f.StringArrayVar(&opts.filters, "filter", nil, "glob over full variation IDs to run (repeatable)")
	f.StringVar(&opts.logDirectory, "log-directory", "", "directory for per-variation engine logs")
	f.BoolVar(&opts.matchAll, "match-all", false, "expect every listed diagnostic")
	f.BoolVar(&opts.matchAny, "match-any", false, "expect at least one listed diagnostic")
	f.BoolVar(&opts.parallel, "parallel", false, "run each variation in its own worker process")
	f.IntVarP(&opts.jobs, "jobs", "j", 0, "worker processes in parallel mode (default: $"+scheduler.ParallelEnv+" or CPU count)")
	f.StringVar(&opts.options, "options", "", "engine options as inline JSON or a JSON file path")
	f.StringArrayVar(&opts.patterns, "custom-compare-pattern", nil, "expected|actual regular expressions treated as equal (repeatable)")
	f.DurationVar(&opts.timeout, "timeout", 0, "time limit of one engine run (0 for none)")
	f.BoolVar(&opts.exitZero, "exit-zero", false, "exit 0 even when variations fail")
	f.StringVar(&opts.junit, "junit", "", "write a JUnit XML report to this file")
	f.StringVar(&opts.engine, "engine", "", "engine name ("+engine.CommandEngineName+" or "+engine.ReplayEngineName+")")
	f.StringVar(&opts.engineCommand, "engine-command", "", "command of the command engine, split on whitespace")
	f.StringVar(&opts.replaySuffix, "replay-suffix", "", "recorded diagnostics suffix of the replay engine")
	cmd.MarkFlagsMutuallyExclusive("match-all", "match-any")

	return cmd
}

func runSuite(cmd *cobra.Command, rootOpts *RootOptions, opts *runOptions) error {
	start := time.Now()
	out := rootOpts.writer(cmd)
	log, err := rootOpts.logger(cmd)
	if err != nil {
		return err
	}

	suite, warnings, err := loadSuite(opts.suite, opts.index)
	if err != nil {
		printWarnings(out, warnings)
		return err
	}
	if err := opts.apply(cmd, suite); err != nil {
		return err
	}
	warnings, err = revalidate(suite, warnings)
	printWarnings(out, warnings)
	if err != nil {
		return err
	}

	plan, err := suite.Plan()
	if err != nil {
		return err
	}
	loaderOpts, err := suite.LoaderOptions()
	if err != nil {
		return err
	}
	index := suite.Path(suite.Index)
	variations, err := loader.Load(index, loaderOpts)
	if err != nil {
		return err
	}
	out.Info("Loaded %d testcase variations from %s", len(variations), index)

	sched, err := scheduler.New(plan, engine.DefaultRegistry(), log)
	if err != nil {
		return err
	}

	runStart := time.Now()
	var results []testcase.Result
	if suite.Parallel {
		jobs := sched.Jobs(suite.Jobs)
		out.Info("Running in parallel with %d workers...", jobs)
		launch := scheduler.SelfLauncher("--log-level", rootOpts.LogLevel)
		results, err = sched.RunParallel(cmd.Context(), variations, launch, jobs)
		for _, r := range results {
			printResult(out, r)
		}
	} else {
		out.Info("Running in series...")
		results, err = sched.RunSerial(cmd.Context(), variations, func(r testcase.Result) {
			printResult(out, r)
		})
	}
	if err != nil {
		return err
	}

	timing := report.Timing{Real: time.Since(runStart)}
	for _, r := range results {
		timing.Test += r.Duration
	}
	timing.Total = time.Since(start)

	expected := report.ExpectedFailures(suite.ExpectedFailures)
	summary := report.Summarize(results, expected, timing)
	summary.Print(out)

	if opts.junit != "" {
		if err := report.WriteJUnitFile(opts.junit, suite.Name, results, expected); err != nil {
			return err
		}
		log.Info("wrote JUnit report", "file", opts.junit)
	}

	if !summary.Ok() && !opts.exitZero {
		return errVariationsFailed
	}
	return nil
}

// apply copies the flags set on cmd into s.
func (o *runOptions) apply(cmd *cobra.Command, s *config.Suite) error {
	flags := cmd.Flags()
	if flags.Changed("index") {
		abs, err := filepath.Abs(o.index)
		if err != nil {
			return conformerrors.Wrap(err, "failed to resolve index path")
		}
		s.Index = abs
	}
	if flags.Changed("log-directory") {
		abs, err := filepath.Abs(o.logDirectory)
		if err != nil {
			return conformerrors.Wrap(err, "failed to resolve log directory")
		}
		s.LogDirectory = abs
	}
	if flags.Changed("filter") {
		s.Filters = o.filters
	}
	switch {
	case o.matchAll:
		s.Match = config.MatchAll
	case o.matchAny:
		s.Match = config.MatchAny
	}
	if flags.Changed("parallel") {
		s.Parallel = o.parallel
	}
	if flags.Changed("jobs") {
		s.Jobs = o.jobs
	}
	if flags.Changed("timeout") {
		s.Timeout = o.timeout.String()
	}
	s.CustomComparePatterns = append(s.CustomComparePatterns, o.patterns...)
	if flags.Changed("engine") {
		s.Engine.Name = o.engine
	}
	if flags.Changed("engine-command") {
		s.Engine.Command = strings.Fields(o.engineCommand)
	}
	if flags.Changed("replay-suffix") {
		s.Engine.Suffix = o.replaySuffix
	}
	if flags.Changed("options") {
		extra, err := config.LoadOptions(o.options)
		if err != nil {
			return err
		}
		if s.Options == nil {
			s.Options = map[string]any{}
		}
		maps.Copy(s.Options, extra)
	}
	return nil
}

// printResult prints the report of every variation that ran.
func printResult(out *output.Writer, r testcase.Result) {
	if r.Skip {
		return
	}
	out.Report(r.Report(), r.Status() == testcase.StatusPass)
}

func printWarnings(out *output.Writer, warnings []string) {
	for _, w := range warnings {
		out.Warning("%s", w)
	}
}

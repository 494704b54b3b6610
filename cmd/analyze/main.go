// Package analyze implements the `sockreport analyze` subcommand: load one
// suite of sockperf reports, print the per-test summary and render the
// summary dashboard.
package analyze

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/loader"
	"github.com/saveenergy/sockreport/internal/logging"
	"github.com/saveenergy/sockreport/internal/render"
	"github.com/saveenergy/sockreport/internal/results"
)

var (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	configPath  string
	dir         string
	suite       string
	output      string
	format      string
	jsonOut     bool
	noImage     bool
	archive     bool
	concurrency int
	verbose     bool
}

func Run(args []string, version string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	flagSet := flag.NewFlagSet("sockreport analyze", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var opts options
	flagSet.StringVar(&opts.configPath, "config", "", "Suite config file (YAML)")
	flagSet.StringVar(&opts.dir, "dir", "", "Directory holding the report files")
	flagSet.StringVar(&opts.dir, "d", "", "Directory holding the report files (short)")
	flagSet.StringVar(&opts.suite, "suite", "dual", "Suite to analyse: dual or single")
	flagSet.StringVar(&opts.output, "output", "", "Dashboard PNG path")
	flagSet.StringVar(&opts.output, "o", "", "Dashboard PNG path (short)")
	flagSet.StringVar(&opts.format, "format", "interactive", "Console format: interactive, plain or json")
	flagSet.BoolVar(&opts.jsonOut, "json", false, "Shorthand for --format json")
	flagSet.BoolVar(&opts.noImage, "no-image", false, "Skip the dashboard PNG")
	flagSet.BoolVar(&opts.archive, "archive", false, "Store the run in the local archive")
	flagSet.IntVar(&opts.concurrency, "concurrency", 0, "Reports parsed in parallel")
	flagSet.BoolVar(&opts.verbose, "verbose", false, "Debug logging")
	flagSet.BoolVar(&opts.verbose, "v", false, "Debug logging (short)")
	help := flagSet.Bool("help", false, "Show help")
	flagSet.BoolVar(help, "h", false, "Show help (short)")

	if err := flagSet.Parse(args); err != nil {
		return exitUsage
	}
	if *help {
		printUsage(stdout)
		return exitSuccess
	}
	if flagSet.NArg() > 0 {
		fmt.Fprintln(stderr, "sockreport analyze: unexpected positional arguments")
		return exitUsage
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport analyze: %v\n", err)
		return exitUsage
	}
	suite, err := pickSuite(cfg, opts.suite)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport analyze: %v\n", err)
		return exitUsage
	}

	format := opts.format
	if opts.jsonOut {
		format = "json"
	}
	formatter, err := render.NewFormatter(format, stdout, render.IsTerminal(stdout), cfg.NoColor)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport analyze: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := loader.Load(ctx, suite, loader.Options{
		Concurrency: cfg.Concurrency,
		Notify:      render.Notices(stderr, cfg.NoColor || !render.IsTerminal(stderr)),
	})
	if err != nil {
		fmt.Fprintf(stderr, "sockreport analyze: %v\n", err)
		return exitFailure
	}

	if err := formatter.FormatSummary(run); err != nil {
		fmt.Fprintf(stderr, "sockreport analyze: write report: %v\n", err)
		return exitFailure
	}

	if len(run.Results) == 0 {
		fmt.Fprintf(stderr, "sockreport analyze: no report files found in %s\n", suite.Dir)
		return exitFailure
	}

	if !opts.noImage {
		dash := render.Summary(run, cfg.Title, cfg.Subtitle())
		if err := dash.WriteFile(cfg.SummaryOutput, cfg.ImageWidth, cfg.ImageHeight); err != nil {
			fmt.Fprintf(stderr, "sockreport analyze: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stderr, "Dashboard saved to %s\n", cfg.SummaryOutput)
	}

	if cfg.Archive {
		id, err := archive(cfg, run)
		if err != nil {
			fmt.Fprintf(stderr, "sockreport analyze: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stderr, "Run archived as %s\n", id)
	}
	return exitSuccess
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dir != "" {
		cfg.Dual.Dir = opts.dir
		cfg.Single.Dir = opts.dir
	}
	if opts.output != "" {
		cfg.SummaryOutput = opts.output
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if opts.archive {
		cfg.Archive = true
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.GetLogger().SetLevel(level)
	return cfg, nil
}

func pickSuite(cfg *config.Config, name string) (config.Suite, error) {
	switch name {
	case "dual":
		return cfg.Dual, nil
	case "single":
		return cfg.Single, nil
	default:
		return config.Suite{}, fmt.Errorf("unknown suite %q (want dual or single)", name)
	}
}

func archive(cfg *config.Config, run *loader.Run) (string, error) {
	store, err := results.Open(cfg)
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Save(run.Label, run)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: sockreport analyze [flags]

Parse one suite of sockperf reports, print the summary and render the
summary dashboard (2x3 panels).

Flags:
  -h, --help              Show help
  --config string         Suite config file (default: $XDG_CONFIG_HOME/sockreport/config.yaml)
  -d, --dir string        Directory holding the report files (default: .)
  --suite string          Suite to analyse: dual or single (default: dual)
  -o, --output string     Dashboard PNG path (default: test_results_visualization.png)
  --format string         interactive, plain or json (default: interactive)
  --json                  Shorthand for --format json
  --no-image              Skip the dashboard PNG
  --archive               Store the run in the local archive
  --concurrency int       Reports parsed in parallel (default: 4)
  -v, --verbose           Debug logging

Exit codes:
  0   Success
  1   No reports found or an error occurred
  2   Usage error

Examples:
  sockreport analyze
  sockreport analyze -d ./results --json
  sockreport analyze --suite single -o single.png
`)
}

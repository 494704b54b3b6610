// Package compare implements the `sockreport compare` subcommand: load the
// dual board and single board suites, pair them by test name and report the
// differences.
package compare

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/saveenergy/sockreport/internal/comparison"
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
	dualDir     string
	singleDir   string
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
	flagSet := flag.NewFlagSet("sockreport compare", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var opts options
	flagSet.StringVar(&opts.configPath, "config", "", "Suite config file (YAML)")
	flagSet.StringVar(&opts.dualDir, "dual-dir", "", "Directory holding the dual board reports")
	flagSet.StringVar(&opts.singleDir, "single-dir", "", "Directory holding the single board reports")
	flagSet.StringVar(&opts.output, "output", "", "Comparison dashboard PNG path")
	flagSet.StringVar(&opts.output, "o", "", "Comparison dashboard PNG path (short)")
	flagSet.StringVar(&opts.format, "format", "interactive", "Console format: interactive, plain or json")
	flagSet.BoolVar(&opts.jsonOut, "json", false, "Shorthand for --format json")
	flagSet.BoolVar(&opts.noImage, "no-image", false, "Skip the dashboard PNG")
	flagSet.BoolVar(&opts.archive, "archive", false, "Store both runs in the local archive")
	flagSet.IntVar(&opts.concurrency, "concurrency", 0, "Reports parsed in parallel per suite")
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

	// Optional positional dirs: compare [dual-dir [single-dir]]
	rest := flagSet.Args()
	if len(rest) > 2 {
		fmt.Fprintln(stderr, "sockreport compare: too many positional arguments")
		return exitUsage
	}
	if len(rest) > 0 && opts.dualDir == "" {
		opts.dualDir = rest[0]
	}
	if len(rest) > 1 && opts.singleDir == "" {
		opts.singleDir = rest[1]
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport compare: %v\n", err)
		return exitUsage
	}

	format := opts.format
	if opts.jsonOut {
		format = "json"
	}
	formatter, err := render.NewFormatter(format, stdout, render.IsTerminal(stdout), cfg.NoColor)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport compare: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dual, single, err := loadBoth(ctx, cfg, render.Notices(stderr, cfg.NoColor || !render.IsTerminal(stderr)))
	if err != nil {
		fmt.Fprintf(stderr, "sockreport compare: %v\n", err)
		return exitFailure
	}

	report := comparison.Compare(dual, single, cfg.Dual.Tests)
	if err := formatter.FormatComparison(report); err != nil {
		fmt.Fprintf(stderr, "sockreport compare: write report: %v\n", err)
		return exitFailure
	}

	if report.Findings.PairedTests == 0 {
		fmt.Fprintln(stderr, "sockreport compare: no test has reports from both suites")
		return exitFailure
	}

	if !opts.noImage {
		dash := render.Comparison(report, dual, single, cfg.Title+": Dual vs Single Board", cfg.Subtitle())
		if err := dash.WriteFile(cfg.ComparisonOutput, cfg.ImageWidth, cfg.ImageHeight); err != nil {
			fmt.Fprintf(stderr, "sockreport compare: %v\n", err)
			return exitFailure
		}
		fmt.Fprintf(stderr, "Comparison saved to %s\n", cfg.ComparisonOutput)
	}

	if cfg.Archive {
		if err := archive(cfg, dual, single, stderr); err != nil {
			fmt.Fprintf(stderr, "sockreport compare: %v\n", err)
			return exitFailure
		}
	}
	return exitSuccess
}

// loadBoth loads the two suites concurrently. Notices are serialised so the
// two suites never interleave within a line.
func loadBoth(ctx context.Context, cfg *config.Config, notify loader.Notifier) (*loader.Run, *loader.Run, error) {
	notices := make(chan loader.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range notices {
			notify(e)
		}
	}()
	forward := func(e loader.Event) { notices <- e }

	var dual, single *loader.Run
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dual, err = loader.Load(gctx, cfg.Dual, loader.Options{Concurrency: cfg.Concurrency, Notify: forward})
		return err
	})
	g.Go(func() error {
		var err error
		single, err = loader.Load(gctx, cfg.Single, loader.Options{Concurrency: cfg.Concurrency, Notify: forward})
		return err
	})
	err := g.Wait()
	close(notices)
	<-done
	if err != nil {
		return nil, nil, err
	}
	return dual, single, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.dualDir != "" {
		cfg.Dual.Dir = opts.dualDir
	}
	if opts.singleDir != "" {
		cfg.Single.Dir = opts.singleDir
	}
	if opts.output != "" {
		cfg.ComparisonOutput = opts.output
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

func archive(cfg *config.Config, dual, single *loader.Run, stderr io.Writer) error {
	store, err := results.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	for _, run := range []*loader.Run{dual, single} {
		id, err := store.Save(run.Label, run)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "%s run archived as %s\n", run.Label, id)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: sockreport compare [flags] [dual-dir [single-dir]]

Compare the dual board suite against the single board suite test by test and
render the comparison dashboard (3x3 panels).

Flags:
  -h, --help              Show help
  --config string         Suite config file (default: $XDG_CONFIG_HOME/sockreport/config.yaml)
  --dual-dir string       Directory holding the dual board reports (default: .)
  --single-dir string     Directory holding the single board reports (default: .)
  -o, --output string     Dashboard PNG path (default: comparison_dual_vs_single.png)
  --format string         interactive, plain or json (default: interactive)
  --json                  Shorthand for --format json
  --no-image              Skip the dashboard PNG
  --archive               Store both runs in the local archive
  --concurrency int       Reports parsed in parallel per suite (default: 4)
  -v, --verbose           Debug logging

Exit codes:
  0   Success
  1   No paired tests or an error occurred
  2   Usage error

Examples:
  sockreport compare
  sockreport compare ./dual ./single --json
`)
}

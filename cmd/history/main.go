// Package history implements the `sockreport history` subcommand: list the
// archived runs, or show one of them again.
package history

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/saveenergy/sockreport/internal/config"
	"github.com/saveenergy/sockreport/internal/logging"
	"github.com/saveenergy/sockreport/internal/render"
	"github.com/saveenergy/sockreport/internal/results"
)

var (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func Run(args []string, version string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	flagSet := flag.NewFlagSet("sockreport history", flag.ContinueOnError)
	flagSet.SetOutput(stderr)

	var (
		configPath string
		limit      int
		format     string
		jsonOut    bool
	)
	flagSet.StringVar(&configPath, "config", "", "Suite config file (YAML)")
	flagSet.IntVar(&limit, "limit", 20, "Runs listed, newest first (0 = all)")
	flagSet.StringVar(&format, "format", "interactive", "Output for show: interactive, plain or json")
	flagSet.BoolVar(&jsonOut, "json", false, "JSON output")
	help := flagSet.Bool("help", false, "Show help")
	flagSet.BoolVar(help, "h", false, "Show help (short)")

	if err := flagSet.Parse(args); err != nil {
		return exitUsage
	}
	if *help {
		printUsage(stdout)
		return exitSuccess
	}
	if limit < 0 {
		fmt.Fprintln(stderr, "sockreport history: limit must be >= 0")
		return exitUsage
	}

	rest := flagSet.Args()
	action := "list"
	if len(rest) > 0 {
		action = rest[0]
	}
	if (action == "list" && len(rest) > 1) || (action == "show" && len(rest) != 2) {
		printUsage(stderr)
		return exitUsage
	}
	if action != "list" && action != "show" {
		fmt.Fprintf(stderr, "sockreport history: unknown action %q\n", action)
		return exitUsage
	}

	cfg, err := config.Load(configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitUsage
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logging.GetLogger().SetLevel(level)

	store, err := results.Open(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitFailure
	}
	defer store.Close()

	if jsonOut {
		format = "json"
	}
	if action == "show" {
		return show(store, cfg, rest[1], format, stdout, stderr)
	}
	return list(store, limit, format == "json", stdout, stderr)
}

func list(store *results.Store, limit int, jsonOut bool, stdout, stderr io.Writer) int {
	entries, err := store.List(limit)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitFailure
	}
	if jsonOut {
		if err := json.NewEncoder(stdout).Encode(entries); err != nil {
			fmt.Fprintf(stderr, "sockreport history: json encode error: %v\n", err)
			return exitFailure
		}
		return exitSuccess
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No archived runs.")
		return exitSuccess
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tCREATED\tTESTS\tMISSING")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", e.ID, e.Label, e.CreatedAt.Local().Format(time.DateTime), e.Tests, e.Missing)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitFailure
	}
	return exitSuccess
}

func show(store *results.Store, cfg *config.Config, id, format string, stdout, stderr io.Writer) int {
	rec, err := store.Get(id)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitFailure
	}
	if rec == nil {
		fmt.Fprintf(stderr, "sockreport history: no archived run %q\n", id)
		return exitFailure
	}

	suite := cfg.Dual
	if rec.Label == cfg.Single.Label {
		suite = cfg.Single
	}
	formatter, err := render.NewFormatter(format, stdout, render.IsTerminal(stdout), cfg.NoColor)
	if err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitUsage
	}
	if err := formatter.FormatSummary(rec.Run(suite)); err != nil {
		fmt.Fprintf(stderr, "sockreport history: %v\n", err)
		return exitFailure
	}
	return exitSuccess
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: sockreport history [flags] [list | show <id>]

List archived runs (newest first) or show one archived run again.
Runs are archived by "analyze --archive" and "compare --archive".

Flags:
  -h, --help              Show help
  --config string         Suite config file (default: $XDG_CONFIG_HOME/sockreport/config.yaml)
  --limit int             Runs listed (default: 20, 0 = all)
  --format string         Output for show: interactive, plain or json
  --json                  JSON output

Examples:
  sockreport history
  sockreport history --format plain show 3f1c2b9e-4d8a-4e0b-9a51-2c6f0d7e8a14
`)
}

package main

import (
	"fmt"
	"os"
	"strings"

	analyze "github.com/saveenergy/sockreport/cmd/analyze"
	compare "github.com/saveenergy/sockreport/cmd/compare"
	history "github.com/saveenergy/sockreport/cmd/history"
	mcpcmd "github.com/saveenergy/sockreport/cmd/mcp"
	parse "github.com/saveenergy/sockreport/cmd/parse"
)

var version = "dev"

var (
	runAnalyze = analyze.Run
	runCompare = compare.Run
	runParse   = parse.Run
	runHistory = history.Run
	runMCP     = mcpcmd.Run
)

func main() {
	os.Exit(run(os.Args[1:], version))
}

func run(args []string, version string) int {
	if len(args) == 0 {
		return runAnalyze(nil, version)
	}

	switch args[0] {
	case "analyze":
		return runAnalyze(args[1:], version)
	case "compare":
		return runCompare(args[1:], version)
	case "parse":
		return runParse(args[1:], version)
	case "history":
		return runHistory(args[1:], version)
	case "mcp":
		return runMCP(version)
	case "help", "-h", "--help":
		printUsage()
		return 0
	case "version", "--version":
		fmt.Printf("sockreport %s\n", version)
		return 0
	default:
		if strings.HasPrefix(args[0], "-") {
			return runAnalyze(args, version)
		}
		fmt.Fprintf(os.Stderr, "sockreport: unknown command %q\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintf(os.Stdout, `Usage: sockreport <command> [args]

Commands:
  analyze   Summarise one suite of sockperf reports (default when no command provided)
  compare   Compare the dual board suite against the single board suite
  parse     Extract the metrics of a single report file or stdin
  history   List or show archived runs
  mcp       Run as MCP server (stdio transport, for AI agents)

Examples:
  sockreport analyze -d ./results
  sockreport compare ./dual ./single
  sockreport parse --plain sockperf_throughput_udp.txt
  sockreport history
  sockreport mcp
`)
}

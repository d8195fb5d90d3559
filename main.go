package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sambeau/brine/pkg/brine/evaluator"
	"github.com/sambeau/brine/pkg/brine/repl"
)

// Version is set at build time via -ldflags
var Version = "0.1.0-dev"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// defineFlags collects repeated -D name=value variable definitions.
type defineFlags []string

func (d *defineFlags) String() string { return strings.Join(*d, ",") }

func (d *defineFlags) Set(value string) error {
	if !strings.Contains(value, "=") {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	*d = append(*d, value)
	return nil
}

// run is the entry point, separated from main for testability.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	flags := flag.NewFlagSet("brine", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var defines defineFlags
	var (
		configPath  = flags.String("c", "", "Path to config file")
		execute     = flags.String("e", "", "Execute commands and exit")
		scriptFile  = flags.String("f", "", "Run a script file ('-' for stdin) and exit")
		showVersion = flags.Bool("version", false, "Show version")
		showHelp    = flags.Bool("help", false, "Show help")
	)
	flags.Var(&defines, "D", "Define a variable (name=value, repeatable)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showHelp {
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintf(stdout, "brine version %s\n", Version)
		return nil
	}

	s := evaluator.NewSession(evaluator.NewRootNamespace())
	s.Stdin = stdin
	s.Logger = evaluator.WriterLogger(stdout)

	if err := s.Vars.Load(*configPath, getenv); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	for _, def := range defines {
		name, value, _ := strings.Cut(def, "=")
		if err := s.Vars.Set(name, value); err != nil {
			return fmt.Errorf("-D %s: %w", def, err)
		}
	}

	if *execute != "" {
		return runBatch(s, *execute, "<command-line>")
	}
	if *scriptFile != "" {
		source := *scriptFile
		var data []byte
		var err error
		if source == "-" {
			source = "<stdin>"
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(source)
		}
		if err != nil {
			return err
		}
		return runBatch(s, string(data), source)
	}

	repl.Start(s, stdout, Version)
	return nil
}

// runBatch runs a script. Run prints runtime errors itself and only an
// exit command surfaces, which is a normal end here, not a failure.
func runBatch(s *evaluator.Session, input, source string) error {
	_ = s.Run(input, source)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `brine - an interactive shell for appliance administration

Usage:
  brine [options]

Options:
  -c PATH          Path to config file (default: auto-detect)
  -e COMMANDS      Execute commands and exit
  -f FILE          Run a script file ('-' for stdin) and exit
  -D NAME=VALUE    Define a variable (repeatable)
  --version        Show version
  --help           Show this help

Config Resolution:
  1. -c flag
  2. BRINE_CONFIG environment variable
  3. ./brine.yaml
  4. ~/.config/brine/brine.yaml

Examples:
  brine                         Start the interactive shell
  brine -e "account user show"  Run one command
  brine -f setup.brine          Run a script
  brine -D debug=true           Start with a variable set

`)
}

// funcwarn reports which functions may be affected when a function changes.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/sayantanmandal1/function-dependency-warner/internal/config"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{stdout: stdout, stderr: stderr, logger: slog.New(slog.DiscardHandler)}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	stdout, stderr io.Writer
	cfg            config.Config
	logger         *slog.Logger
	flags          globalFlags
}

type globalFlags struct {
	configPath string
	root       string
	logLevel   string
	logJSON    bool

	format        string
	dependency    string
	direction     string
	exclude       []string
	workers       int
	maxFileSize   int64
	cacheDir      string
	backfill      bool
	maxDependents int
	maxDepth      int
	debounce      string
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "funcwarn",
		Short: "Warn about functions affected by a change",
		Long: `funcwarn reads a dependency document that maps function names to the
functions they affect, finds the transitive dependents of a changed
function, and locates every definition in the workspace.

The document is a JSON or YAML object of name -> [names]. By default
"A": ["B"] means changing A may affect B; use --direction depends-on
when the document lists what each function depends on instead.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	pf.StringVar(&a.flags.root, "root", "", "workspace root (default .)")
	pf.StringVar(&a.flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.logJSON, "log-json", false, "always log JSON to stderr")

	pf.StringVarP(&a.flags.format, "format", "f", "text", "output format: "+strings.Join(config.Formats, ", "))
	pf.StringVarP(&a.flags.dependency, "deps", "d", "", "dependency document, relative to root")
	pf.StringVar(&a.flags.direction, "direction", "affects", "edge direction: affects, depends-on")
	pf.StringSliceVar(&a.flags.exclude, "exclude", nil, "extra ignore patterns in .gitignore syntax")
	pf.IntVar(&a.flags.workers, "workers", 0, "files scanned at once (default GOMAXPROCS)")
	pf.Int64Var(&a.flags.maxFileSize, "max-file-size", 1<<20, "skip files larger than this many bytes")
	pf.StringVar(&a.flags.cacheDir, "cache-dir", "", "keep extracted definitions on disk in this directory")
	pf.BoolVar(&a.flags.backfill, "backfill", true, "run the heuristic pass for definitions not found")
	pf.IntVar(&a.flags.maxDependents, "max-dependents", 0, "report at most this many dependents (0 = all)")
	pf.IntVar(&a.flags.maxDepth, "max-depth", 0, "follow at most this many edges (0 = unlimited)")
	pf.StringVar(&a.flags.debounce, "debounce", "300ms", "quiet period before watch re-runs")

	root.AddCommand(
		newImpactCmd(a),
		newDiffCmd(a),
		newFunctionsCmd(a),
		newWatchCmd(a),
		newInitCmd(a),
	)
	return root
}

// setup loads the layered config and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.setupLogger(); err != nil {
		return err
	}
	cfg, err := config.Load(a.flags.configPath, a.flags.root)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	a.cfg = cfg
	a.logger.Debug("config loaded", "root", cfg.Root, "deps", cfg.DependencyPath(), "direction", cfg.Direction)
	return nil
}

// applyFlags overrides cfg with the flags set on the command line.
func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("root") {
		cfg.Root = a.flags.root
	}
	if f.Changed("format") {
		cfg.Format = a.flags.format
	}
	if f.Changed("deps") {
		cfg.DependencyFile = a.flags.dependency
	}
	if f.Changed("direction") {
		cfg.Direction = a.flags.direction
	}
	if f.Changed("exclude") {
		cfg.Exclude = a.flags.exclude
	}
	if f.Changed("workers") {
		cfg.Workers = a.flags.workers
	}
	if f.Changed("max-file-size") {
		cfg.MaxFileSize = a.flags.maxFileSize
	}
	if f.Changed("cache-dir") {
		cfg.CacheDir = a.flags.cacheDir
	}
	if f.Changed("backfill") {
		cfg.Backfill = a.flags.backfill
	}
	if f.Changed("max-dependents") {
		cfg.MaxDependents = a.flags.maxDependents
	}
	if f.Changed("max-depth") {
		cfg.MaxDepth = a.flags.maxDepth
	}
	if f.Changed("debounce") {
		cfg.Debounce = a.flags.debounce
	}
}

func (a *app) setupLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.flags.logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	a.logger = newLogger(a.stderr, level, a.flags.logJSON)
	return nil
}

// newLogger logs text to a terminal and JSON to anything else.
func newLogger(w io.Writer, level slog.Level, forceJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if !forceJSON && isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

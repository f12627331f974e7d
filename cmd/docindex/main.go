// Command docindex builds documentation search indices and inspects them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
)

const usage = `docindex builds and inspects documentation search indices.

Usage:
  docindex <command> [flags]

Commands:
  build     build searchindex.js from documentation sources
  validate  check an index file against its invariants
  query     run a search against an index file
  lookup    show the posting lists stored for a term
  stats     print table sizes and the fingerprint

Run "docindex <command> --help" for the flags of a command.
`

type command func(ctx context.Context, args []string, stdout io.Writer) error

var commands = map[string]command{
	"build":    runBuild,
	"validate": runValidate,
	"query":    runQuery,
	"lookup":   runLookup,
	"stats":    runStats,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Print(usage)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q, want one of %v\n\n", name, commandNames())
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd(ctx, os.Args[2:], os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "docindex %s: %v\n", name, err)
		os.Exit(1)
	}
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// flagSet creates a flag set with the options every command shares. Logs go
// to stderr so they never mix with command output.
type flagSet struct {
	*flag.FlagSet
	logLevel *string
}

func newFlagSet(name, defaultLevel string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SortFlags = false
	return &flagSet{
		FlagSet:  fs,
		logLevel: fs.String("log-level", defaultLevel, "log level: debug, info, warn or error"),
	}
}

func (fs *flagSet) parse(args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	slog.SetDefault(logger.New(os.Stderr, *fs.logLevel, "text"))
	return nil
}

// indexPath registers the --index flag, defaulting to DI_INDEX_PATH or the
// configured default location.
func (fs *flagSet) indexPath() *string {
	def := os.Getenv("DI_INDEX_PATH")
	if def == "" {
		def = config.Default().Index.Path
	}
	return fs.StringP("index", "i", def, "searchindex.js to read")
}

// Command kemctl lists, benchmarks and exercises the KEM algorithms linked
// into this build.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/awnumar/memguard"
	"go.uber.org/zap"

	"github.com/example/oqskem/internal/platform/logging"
	"github.com/example/oqskem/pkg/kem"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

// env carries process-wide dependencies into subcommands.
type env struct {
	logger      *zap.Logger
	stdout      io.Writer
	environment string
}

var commands = []command{
	{"list", "list catalogued algorithms and whether they are enabled", runList},
	{"bench", "time keypair, encapsulate and decapsulate", runBench},
	{"keygen", "generate a key pair and store it", runKeygen},
	{"selftest", "run startup self tests and admission policy", runSelftest},
	{"demo", "exchange sealed messages over a fresh KEM session", runDemo},
}

func main() {
	code := run(os.Args[1:], os.Stdout, os.Stderr)
	memguard.Purge()
	os.Exit(code)
}

func run(args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("kemctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	var (
		level   = global.String("log-level", envOr("KEMCTL_LOG_LEVEL", "warn"), "log level (debug|info|warn|error)")
		envName = global.String("env", envOr("KEMCTL_ENV", "dev"), "deployment environment label")
	)
	global.Usage = func() { usage(stderr, global) }
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		usage(stderr, global)
		return 2
	}

	name, rest := global.Arg(0), global.Args()[1:]
	var cmd *command
	for i := range commands {
		if commands[i].name == name {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "kemctl: unknown command %q\n", name)
		usage(stderr, global)
		return 2
	}

	logger, cleanup, err := logging.Global(logging.Config{
		ServiceName: "kemctl",
		Environment: *envName,
		Level:       *level,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		fmt.Fprintf(stderr, "logger init: %v\n", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = cleanup(ctx)
	}()

	kem.Init()
	defer kem.Cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = cmd.run(ctx, &env{logger: logger.Named(name), stdout: stdout, environment: *envName}, rest)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "kemctl %s: %v\n", name, err)
		return 2
	default:
		logger.Error("command failed", zap.String("command", name), zap.Error(err))
		fmt.Fprintf(stderr, "kemctl %s: %v\n", name, err)
		return 1
	}
}

var errUsage = errors.New("invalid usage")

func usage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "usage: kemctl [flags] <command> [command flags]")
	fmt.Fprintln(w, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w, "\nflags:")
	fs.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseAlgorithms resolves a comma separated list. "enabled" selects every
// algorithm this build provides.
func parseAlgorithms(list string) ([]kem.Algorithm, error) {
	if strings.TrimSpace(list) == "enabled" {
		var out []kem.Algorithm
		for _, alg := range kem.Algorithms() {
			if alg.IsEnabled() {
				out = append(out, alg)
			}
		}
		return out, nil
	}
	var out []kem.Algorithm
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		alg, err := kem.ParseAlgorithm(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		out = append(out, alg)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no algorithms given", errUsage)
	}
	return out, nil
}

func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stdout)
	return fs
}

// parseFlags maps flag errors other than -h onto errUsage.
func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %w", errUsage, err)
}

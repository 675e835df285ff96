// sqlitesec keeps SQLite database files encrypted while they are not in
// use. Each subcommand takes the master secret from the SQLITESEC_SECRET
// environment variable, or prompts for it when stdin is a terminal.
//
//	sqlitesec encrypt app.db      seal a plaintext database in place
//	sqlitesec decrypt app.db      unseal it and leave it plaintext
//	sqlitesec status app.db       report absent, at-rest or open
//	sqlitesec exec app.db "SQL"   run one statement inside a session
//	sqlitesec rekey app.db        reseal under a new secret
//	sqlitesec demo                walk through a full open/close cycle
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

// command is one sqlitesec subcommand
type command struct {
	summary string
	run     func(env *environment, args []string) error
}

var commands = map[string]command{
	"encrypt": {"seal a plaintext database file in place", runEncrypt},
	"decrypt": {"unseal an encrypted database file in place", runDecrypt},
	"status":  {"report whether a database is absent, at rest or open", runStatus},
	"exec":    {"run one SQL statement against an encrypted database", runExec},
	"rekey":   {"reseal a database under a new secret", runRekey},
	"demo":    {"create, write, seal and read back a demo database", runDemo},
}

// environment carries what every subcommand shares
type environment struct {
	stdout    io.Writer
	logger    *slog.Logger
	secrets   secretSource
	verbose   bool
	logFormat string
}

func run(args []string, stdout io.Writer) error {
	env := &environment{stdout: stdout, secrets: defaultSecretSource()}

	flagSet := pflag.NewFlagSet("sqlitesec", pflag.ContinueOnError)
	flagSet.BoolVarP(&env.verbose, "verbose", "v", false, "log every encrypt and decrypt step")
	flagSet.StringVar(&env.logFormat, "log-format", "", "log format: text or json (default: text on a terminal, json otherwise)")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return usageErrorf("%v", err)
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(flagSet)
		return usageErrorf("no command given")
	}

	cmd, ok := commands[rest[0]]
	if !ok {
		return usageErrorf("unknown command %q", rest[0])
	}

	logger, err := newCommandLogger(env.logFormat, env.verbose)
	if err != nil {
		return usageErrorf("%v", err)
	}
	env.logger = logger.With("command", rest[0])

	return cmd.run(env, rest[1:])
}

// newFlagSet returns a subcommand flag set whose usage line is usage
func newFlagSet(name, usage string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sqlitesec %s\n%s", usage, flagSet.FlagUsages())
	}
	return flagSet
}

// parseCommandFlags parses a subcommand's flags and checks its positional
// argument count
func parseCommandFlags(flagSet *pflag.FlagSet, args []string, want int) ([]string, error) {
	if err := flagSet.Parse(args); err != nil {
		return nil, usageErrorf("%v", err)
	}
	positional := flagSet.Args()
	if len(positional) != want {
		return nil, usageErrorf("%s: expected %d argument(s), got %d", flagSet.Name(), want, len(positional))
	}
	return positional, nil
}

func printUsage(flagSet *pflag.FlagSet) {
	var b strings.Builder
	b.WriteString("Usage: sqlitesec [global flags] <command> [flags] [args]\n\nCommands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "  %-9s %s\n", name, commands[name].summary)
	}

	b.WriteString("\nThe master secret is read from SQLITESEC_SECRET, or prompted for on a terminal.\n\nGlobal flags:\n")
	b.WriteString(flagSet.FlagUsages())
	fmt.Fprint(os.Stderr, b.String())
}

// usageError is a command line mistake. It exits with status 2.
type usageError struct {
	msg string
}

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func (e *usageError) Error() string { return e.msg }

// ExitCode returns the process exit status for usage errors
func (e *usageError) ExitCode() int { return 2 }

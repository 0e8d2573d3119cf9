// Package cli implements the protomerge command line interface: comparing
// two schema versions, merging many, and watching directories for changes.
package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
)

// Exit codes returned by Execute via ExitCode.
const (
	ExitOK       = 0
	ExitBreaking = 1
	ExitUsage    = 2
	ExitInternal = 3
)

// Command is one CLI command with its own flag set.
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the protomerge root command with all subcommands
// registered.
func NewRootCommand() *Command {
	root := &Command{
		Name:        "protomerge",
		Description: "Compare and merge versioned protobuf schemas",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("protomerge", flag.ContinueOnError),
	}

	root.Subcommands["diff"] = newDiffCommand()
	root.Subcommands["report"] = newReportCommand()

	return root
}

// Execute dispatches to a subcommand based on os.Args.
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		c.usage()
		return usageErrorf("no command given")
	}

	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage()
		return nil
	}

	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	c.usage()
	return usageErrorf("unknown command: %s", args[0])
}

func (c *Command) usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags]\n\nCommands:\n", c.Name)
	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, c.Subcommands[name].Description)
	}
}

// usageError marks a bad invocation: missing arguments, unknown flags,
// unreadable inputs named on the command line.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

// breakingError signals that the comparison itself succeeded but found
// error-severity breaking changes and --fail-on-breaking asked for a
// distinct exit status.
type breakingError struct{ errors, warnings int }

func (e breakingError) Error() string {
	return fmt.Sprintf("breaking changes detected: %d errors, %d warnings", e.errors, e.warnings)
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	switch err.(type) {
	case nil:
		return ExitOK
	case breakingError:
		return ExitBreaking
	case usageError:
		return ExitUsage
	default:
		return ExitInternal
	}
}

// SetupLogging configures the process logger. Quiet mode keeps errors only.
func SetupLogging(quiet, verbose bool) {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	switch {
	case quiet:
		logrus.SetLevel(logrus.ErrorLevel)
	case verbose:
		logrus.SetLevel(logrus.DebugLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

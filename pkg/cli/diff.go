package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/protoverse/protomerge/pkg/diff"
	"github.com/protoverse/protomerge/pkg/schema"
)

func newDiffCommand() *Command {
	return &Command{
		Name:        "diff",
		Description: "Compare two schema version directories and report breaking changes",
		Flags:       flag.NewFlagSet("diff", flag.ContinueOnError),
		Run:         runDiff,
	}
}

type diffOptions struct {
	oldDir, newDir string
	oldName        string
	newName        string
	format         string
	output         string
	breakingOnly   bool
	failOnBreaking bool
	failOnWarning  bool
	quiet          bool
	verbose        bool
	watch          bool
}

func parseDiffOptions(args []string) (*diffOptions, error) {
	flags := flag.NewFlagSet("diff", flag.ContinueOnError)
	opts := &diffOptions{}
	flags.StringVar(&opts.oldName, "v1-name", "", "Version name for the first directory (default: directory basename)")
	flags.StringVar(&opts.newName, "v2-name", "", "Version name for the second directory (default: directory basename)")
	flags.StringVar(&opts.format, "format", "text", "Report format: text, json, markdown")
	flags.StringVar(&opts.output, "output", "", "Write the report to a file instead of stdout")
	flags.BoolVar(&opts.breakingOnly, "breaking-only", false, "Report only breaking changes")
	flags.BoolVar(&opts.failOnBreaking, "fail-on-breaking", false, "Exit non-zero when error-severity breaking changes are found")
	flags.BoolVar(&opts.failOnWarning, "fail-on-warning", false, "Exit non-zero on warnings too (implies -fail-on-breaking)")
	flags.BoolVar(&opts.quiet, "q", false, "Suppress log output")
	flags.BoolVar(&opts.verbose, "v", false, "Verbose log output")
	flags.BoolVar(&opts.watch, "watch", false, "Re-run the comparison when either directory changes")

	if err := flags.Parse(args); err != nil {
		return nil, usageErrorf("%v", err)
	}
	rest := flags.Args()
	if len(rest) != 2 {
		return nil, usageErrorf("usage: protomerge diff [flags] <old-dir> <new-dir>")
	}
	opts.oldDir, opts.newDir = rest[0], rest[1]

	if opts.oldName == "" {
		opts.oldName = filepath.Base(opts.oldDir)
	}
	if opts.newName == "" {
		opts.newName = filepath.Base(opts.newDir)
	}
	if opts.failOnWarning {
		opts.failOnBreaking = true
	}
	return opts, nil
}

func runDiff(args []string) error {
	opts, err := parseDiffOptions(args)
	if err != nil {
		return err
	}
	SetupLogging(opts.quiet, opts.verbose)

	formatter, err := diff.NewFormatter(opts.format)
	if err != nil {
		return usageErrorf("%v", err)
	}

	for _, dir := range []string{opts.oldDir, opts.newDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return usageErrorf("cannot read %s: %v", dir, err)
		}
		if !info.IsDir() {
			return usageErrorf("%s is not a directory", dir)
		}
	}

	if opts.watch {
		return watchDiff(context.Background(), opts, formatter)
	}
	return runDiffOnce(context.Background(), opts, formatter)
}

func runDiffOnce(ctx context.Context, opts *diffOptions, formatter diff.Formatter) error {
	compiler := schema.NewCompiler()
	analyzer := &schema.Analyzer{}

	oldSchema, err := compileVersion(ctx, compiler, analyzer, opts.oldDir, opts.oldName)
	if err != nil {
		return err
	}
	newSchema, err := compileVersion(ctx, compiler, analyzer, opts.newDir, opts.newName)
	if err != nil {
		return err
	}

	d := diff.NewEngine().Compare(oldSchema, newSchema)

	out := io.Writer(os.Stdout)
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("cannot write report: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := formatter.Format(out, d, opts.breakingOnly); err != nil {
		return err
	}

	failed := opts.failOnBreaking && d.HasBreakingErrors() ||
		opts.failOnWarning && d.HasBreakingWarnings()
	if failed {
		return breakingError{
			errors:   d.Summary.BreakingErrors,
			warnings: d.Summary.BreakingWarnings,
		}
	}
	return nil
}

// compileVersion compiles one version directory and extracts its schema.
func compileVersion(ctx context.Context, compiler *schema.Compiler,
	analyzer *schema.Analyzer, dir, version string) (*schema.VersionSchema, error) {

	set, err := compiler.CompileDir(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", dir, err)
	}
	vs := analyzer.Analyze(set, version)
	logrus.WithFields(logrus.Fields{
		"dir":     dir,
		"version": version,
	}).Debug(vs.Stats())
	return vs, nil
}

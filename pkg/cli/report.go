package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/protoverse/protomerge/pkg/merge"
	"github.com/protoverse/protomerge/pkg/schema"
)

func newReportCommand() *Command {
	return &Command{
		Name:        "report",
		Description: "Merge several schema version directories and report type conflicts",
		Flags:       flag.NewFlagSet("report", flag.ContinueOnError),
		Run:         runReport,
	}
}

func runReport(args []string) error {
	flags := flag.NewFlagSet("report", flag.ContinueOnError)
	mappingsPath := flags.String("mappings", "", "YAML file with field identity overrides")
	names := flags.String("names", "", "Comma-separated version names (default: directory basenames)")
	output := flags.String("output", "", "Write the report to a file instead of stdout")
	parallel := flags.Bool("parallel", false, "Merge top-level messages concurrently")
	quiet := flags.Bool("q", false, "Suppress log output")
	verbose := flags.Bool("v", false, "Verbose log output")

	if err := flags.Parse(args); err != nil {
		return usageErrorf("%v", err)
	}
	dirs := flags.Args()
	if len(dirs) < 2 {
		return usageErrorf("usage: protomerge report [flags] <dir>... (at least two version directories)")
	}
	SetupLogging(*quiet, *verbose)

	versionNames, err := resolveVersionNames(dirs, *names)
	if err != nil {
		return err
	}

	merger := merge.NewMerger()
	merger.Config.Parallel = *parallel
	if *mappingsPath != "" {
		mappings, err := merge.LoadFieldMappings(*mappingsPath)
		if err != nil {
			return usageErrorf("cannot load mappings: %v", err)
		}
		merger.Config.FieldMappings = mappings
	}

	ctx := context.Background()
	compiler := schema.NewCompiler()
	analyzer := &schema.Analyzer{}

	schemas := make([]*schema.VersionSchema, len(dirs))
	for i, dir := range dirs {
		vs, err := compileVersion(ctx, compiler, analyzer, dir, versionNames[i])
		if err != nil {
			return err
		}
		schemas[i] = vs
	}

	merged, err := merger.Merge(ctx, schemas)
	if err != nil {
		return err
	}

	out := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("cannot write report: %w", err)
		}
		defer f.Close()
		out = f
	}
	writeMergeReport(out, merged)
	return nil
}

func resolveVersionNames(dirs []string, names string) ([]string, error) {
	if names == "" {
		out := make([]string, len(dirs))
		for i, dir := range dirs {
			out[i] = filepath.Base(dir)
		}
		return out, nil
	}
	out := strings.Split(names, ",")
	if len(out) != len(dirs) {
		return nil, usageErrorf("-names lists %d names for %d directories", len(out), len(dirs))
	}
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out, nil
}

func writeMergeReport(w io.Writer, merged *merge.MergedSchema) {
	fmt.Fprintf(w, "Merged %d versions: %s\n\n", len(merged.Versions()),
		strings.Join(merged.Versions(), ", "))

	conflicts := 0
	for _, msg := range merged.Messages() {
		conflicts += writeMessageReport(w, msg, msg.Name)
	}

	if promoted := merged.EquivalentEnumMappings(); len(promoted) > 0 {
		fmt.Fprintln(w, "Promoted equivalent enums:")
		for nested, topLevel := range promoted {
			fmt.Fprintf(w, "  %s -> %s\n", nested, topLevel)
		}
		fmt.Fprintln(w)
	}

	if enums := merged.ConflictEnums(); len(enums) > 0 {
		fmt.Fprintln(w, "Synthesized conflict enums:")
		for _, ce := range enums {
			fmt.Fprintf(w, "  %s\n", ce)
		}
		fmt.Fprintln(w)
	}

	if conflicts == 0 {
		fmt.Fprintln(w, "No field conflicts.")
	} else {
		fmt.Fprintf(w, "%d field conflicts in total.\n", conflicts)
	}
}

// writeMessageReport prints the conflicting fields and oneof conflicts of one
// message and its nested messages, returning the conflict count.
func writeMessageReport(w io.Writer, msg *merge.MergedMessage, path string) int {
	var lines []string
	for _, f := range msg.Fields() {
		if f.Conflict == merge.ConflictNone && f.MapValueConflict == merge.ConflictNone {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s", f))
	}
	for _, o := range msg.Oneofs() {
		for _, c := range o.Conflicts {
			lines = append(lines, fmt.Sprintf("  oneof %s: [%s] %s", o.Name, c.Type, c.Description))
		}
	}
	for _, c := range msg.OneofMembershipConflicts() {
		lines = append(lines, fmt.Sprintf("  field %s: [%s] %s", c.FieldName, c.Type, c.Description))
	}

	if len(lines) > 0 {
		fmt.Fprintf(w, "message %s:\n", path)
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
		fmt.Fprintln(w)
	}

	count := len(lines)
	for _, nested := range msg.NestedMessages() {
		count += writeMessageReport(w, nested, path+"."+nested.Name)
	}
	return count
}

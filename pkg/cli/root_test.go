package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protoverse/protomerge/pkg/merge"
	"github.com/protoverse/protomerge/pkg/schema"
)

func TestNewRootCommand(t *testing.T) {
	root := NewRootCommand()

	assert.Equal(t, "protomerge", root.Name)
	require.Contains(t, root.Subcommands, "diff")
	require.Contains(t, root.Subcommands, "report")
	assert.Len(t, root.Subcommands, 2)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitBreaking, ExitCode(breakingError{errors: 1}))
	assert.Equal(t, ExitUsage, ExitCode(usageErrorf("bad flag")))
	assert.Equal(t, ExitInternal, ExitCode(errors.New("boom")))
}

func TestParseDiffOptions(t *testing.T) {
	opts, err := parseDiffOptions([]string{
		"-format", "json", "-fail-on-warning", "testdata/v1", "testdata/v2",
	})
	require.NoError(t, err)

	assert.Equal(t, "testdata/v1", opts.oldDir)
	assert.Equal(t, "testdata/v2", opts.newDir)
	assert.Equal(t, "v1", opts.oldName, "version name defaults to the directory basename")
	assert.Equal(t, "v2", opts.newName)
	assert.Equal(t, "json", opts.format)
	assert.True(t, opts.failOnBreaking, "-fail-on-warning implies -fail-on-breaking")
}

func TestParseDiffOptionsExplicitNames(t *testing.T) {
	opts, err := parseDiffOptions([]string{
		"-v1-name", "baseline", "-v2-name", "candidate", "a", "b",
	})
	require.NoError(t, err)
	assert.Equal(t, "baseline", opts.oldName)
	assert.Equal(t, "candidate", opts.newName)
}

func TestParseDiffOptionsRejectsWrongArity(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"only-one"},
		{"a", "b", "c"},
	} {
		_, err := parseDiffOptions(args)
		require.Error(t, err)
		assert.Equal(t, ExitUsage, ExitCode(err))
	}
}

func TestResolveVersionNames(t *testing.T) {
	names, err := resolveVersionNames([]string{"schemas/v1", "schemas/v2"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, names)

	names, err = resolveVersionNames([]string{"a", "b"}, "first, second")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, names)

	_, err = resolveVersionNames([]string{"a", "b"}, "only-one")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestWriteMergeReport(t *testing.T) {
	v1 := schema.NewVersionSchema("v1")
	m1 := schema.NewMessage("Money")
	m1.AddField(&schema.FieldInfo{Name: "amount", Number: 1, Type: schema.TypeInt32, OneofIndex: -1})
	v1.AddMessage(m1)

	v2 := schema.NewVersionSchema("v2")
	m2 := schema.NewMessage("Money")
	m2.AddField(&schema.FieldInfo{Name: "amount", Number: 1, Type: schema.TypeInt64, OneofIndex: -1})
	v2.AddMessage(m2)

	merged, err := merge.NewMerger().Merge(context.Background(), []*schema.VersionSchema{v1, v2})
	require.NoError(t, err)

	var buf bytes.Buffer
	writeMergeReport(&buf, merged)
	out := buf.String()

	assert.Contains(t, out, "Merged 2 versions: v1, v2")
	assert.Contains(t, out, "message Money:")
	assert.Contains(t, out, "WIDENING")
	assert.Contains(t, out, "1 field conflicts in total.")
}

func TestWriteMergeReportNoConflicts(t *testing.T) {
	v1 := schema.NewVersionSchema("v1")
	m1 := schema.NewMessage("Money")
	m1.AddField(&schema.FieldInfo{Name: "amount", Number: 1, Type: schema.TypeInt64, OneofIndex: -1})
	v1.AddMessage(m1)

	merged, err := merge.NewMerger().Merge(context.Background(), []*schema.VersionSchema{v1})
	require.NoError(t, err)

	var buf bytes.Buffer
	writeMergeReport(&buf, merged)
	assert.Contains(t, buf.String(), "No field conflicts.")
}

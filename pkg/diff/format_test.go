package diff

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protoverse/protomerge/pkg/schema"
)

func sampleDiff(t *testing.T) *SchemaDiff {
	t.Helper()
	old := versionSchema("v1", message("Order",
		field("id", 1, schema.TypeString),
		field("total", 2, schema.TypeInt32),
		field("note", 3, schema.TypeString)))
	new := versionSchema("v2", message("Order",
		field("id", 1, schema.TypeString),
		field("total", 2, schema.TypeInt64)))
	return NewEngine().Compare(old, new)
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"", "text", "json", "markdown", "md"} {
		f, err := NewFormatter(name)
		require.NoError(t, err, name)
		require.NotNil(t, f, name)
	}

	_, err := NewFormatter("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")
}

func TestTextFormat(t *testing.T) {
	d := sampleDiff(t)

	var buf bytes.Buffer
	require.NoError(t, TextFormatter{}.Format(&buf, d, false))
	out := buf.String()

	assert.Contains(t, out, "Schema diff: v1 -> v2")
	assert.Contains(t, out, "~ message Order")
	assert.Contains(t, out, `field "note" removed`)
	assert.Contains(t, out, "Breaking changes (1 errors, 1 warnings):")
	assert.Contains(t, out, "ERROR Order.note")
	assert.Contains(t, out, "WARNING Order.total")
}

func TestTextFormatBreakingOnly(t *testing.T) {
	d := sampleDiff(t)

	var buf bytes.Buffer
	require.NoError(t, TextFormatter{}.Format(&buf, d, true))
	out := buf.String()

	assert.NotContains(t, out, "~ message")
	assert.Contains(t, out, "ERROR Order.note")
}

func TestTextFormatNoChanges(t *testing.T) {
	s := versionSchema("v1", message("Order", field("id", 1, schema.TypeString)))
	d := NewEngine().Compare(s, s)

	var buf bytes.Buffer
	require.NoError(t, TextFormatter{}.Format(&buf, d, false))
	assert.Contains(t, buf.String(), "No changes.")
}

func TestJSONFormatRoundTrip(t *testing.T) {
	d := sampleDiff(t)

	var buf bytes.Buffer
	require.NoError(t, JSONFormatter{}.Format(&buf, d, false))

	var decoded SchemaDiff
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "v1", decoded.OldVersion)
	assert.Equal(t, "v2", decoded.NewVersion)
	require.Len(t, decoded.Messages, 1)
	assert.Equal(t, d.Summary, decoded.Summary)
}

func TestJSONFormatBreakingOnly(t *testing.T) {
	d := sampleDiff(t)

	var buf bytes.Buffer
	require.NoError(t, JSONFormatter{}.Format(&buf, d, true))

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "breaking")
	assert.Contains(t, decoded, "summary")
	assert.NotContains(t, decoded, "messages")
}

func TestMarkdownFormat(t *testing.T) {
	d := sampleDiff(t)

	var buf bytes.Buffer
	require.NoError(t, MarkdownFormatter{}.Format(&buf, d, false))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# Schema diff: v1"))
	assert.Contains(t, out, "## Messages")
	assert.Contains(t, out, "- **Order**: modified")
	assert.Contains(t, out, "## Breaking changes")
	assert.Contains(t, out, "| Severity | Path | Change |")
	assert.Contains(t, out, "`Order.note`")
}

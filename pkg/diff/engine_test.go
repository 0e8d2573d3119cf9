package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protoverse/protomerge/pkg/schema"
)

func field(name string, number int, t schema.FieldType) *schema.FieldInfo {
	return &schema.FieldInfo{
		Name:       name,
		CamelName:  schema.CamelCase(name),
		Number:     number,
		Type:       t,
		OneofIndex: -1,
	}
}

func message(name string, fields ...*schema.FieldInfo) *schema.MessageInfo {
	m := schema.NewMessage(name)
	for _, f := range fields {
		m.AddField(f)
	}
	return m
}

func versionSchema(version string, msgs ...*schema.MessageInfo) *schema.VersionSchema {
	s := schema.NewVersionSchema(version)
	for _, m := range msgs {
		s.AddMessage(m)
	}
	return s
}

func changesOfKind(changes []FieldChange, kind FieldChangeKind) []FieldChange {
	var out []FieldChange
	for _, c := range changes {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func TestCompareSelfIsEmpty(t *testing.T) {
	s := versionSchema("v1",
		message("Order",
			field("id", 1, schema.TypeString),
			field("total", 2, schema.TypeInt64)))
	s.AddEnum(&schema.EnumInfo{Name: "Status", Values: []schema.EnumValue{
		{Name: "STATUS_UNSPECIFIED", Number: 0},
	}})

	d := NewEngine().Compare(s, s)

	assert.False(t, d.HasChanges())
	assert.Empty(t, d.Messages)
	assert.Empty(t, d.Enums)
	assert.Empty(t, d.Breaking)
	assert.Equal(t, Summary{}, d.Summary)
}

func TestCompareMessageAddedAndRemoved(t *testing.T) {
	old := versionSchema("v1", message("Legacy", field("id", 1, schema.TypeString)))
	new := versionSchema("v2", message("Modern", field("id", 1, schema.TypeString)))

	d := NewEngine().Compare(old, new)
	require.Len(t, d.Messages, 2)

	statuses := map[string]ChangeType{}
	for _, m := range d.Messages {
		statuses[m.Name] = m.Status
	}
	assert.Equal(t, Removed, statuses["Legacy"])
	assert.Equal(t, Added, statuses["Modern"])

	assert.Equal(t, 1, d.Summary.MessagesAdded)
	assert.Equal(t, 1, d.Summary.MessagesRemoved)
	require.Len(t, d.Breaking, 1)
	assert.Equal(t, SeverityError, d.Breaking[0].Severity)
	assert.Equal(t, "Legacy", d.Breaking[0].Path)
}

func TestCompareFieldChanges(t *testing.T) {
	old := versionSchema("v1", message("Order",
		field("id", 1, schema.TypeString),
		field("total", 2, schema.TypeInt32),
		field("note", 3, schema.TypeString)))
	new := versionSchema("v2", message("Order",
		field("id", 1, schema.TypeString),
		field("total", 2, schema.TypeInt64),
		field("created", 4, schema.TypeInt64)))

	d := NewEngine().Compare(old, new)
	require.Len(t, d.Messages, 1)
	order := d.Messages[0]
	assert.Equal(t, Modified, order.Status)

	added := changesOfKind(order.FieldChanges, FieldAdded)
	require.Len(t, added, 1)
	assert.Equal(t, "created", added[0].Name)

	removed := changesOfKind(order.FieldChanges, FieldRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "note", removed[0].Name)

	typeChanged := changesOfKind(order.FieldChanges, FieldTypeChanged)
	require.Len(t, typeChanged, 1)
	assert.Equal(t, "int32", typeChanged[0].OldType)
	assert.Equal(t, "int64", typeChanged[0].NewType)
}

func TestBreakingSeverities(t *testing.T) {
	old := versionSchema("v1", message("Order",
		field("total", 1, schema.TypeInt32),
		field("id", 2, schema.TypeString),
		field("note", 3, schema.TypeString)))
	new := versionSchema("v2", message("Order",
		field("total", 1, schema.TypeInt64),
		field("id", 2, schema.TypeInt32)))

	d := NewEngine().Compare(old, new)

	bySeverity := map[Severity][]BreakingChange{}
	for _, b := range d.Breaking {
		bySeverity[b.Severity] = append(bySeverity[b.Severity], b)
	}

	// total: int32 -> int64 widening is a warning, not an error.
	require.Len(t, bySeverity[SeverityWarning], 1)
	assert.Equal(t, "Order.total", bySeverity[SeverityWarning][0].Path)

	// id: string -> int32 is incompatible; note: removed.
	require.Len(t, bySeverity[SeverityError], 2)
	assert.Equal(t, 2, d.Summary.BreakingErrors)
	assert.Equal(t, 1, d.Summary.BreakingWarnings)
	assert.True(t, d.HasBreakingErrors())
}

func TestCompareCardinalityChange(t *testing.T) {
	repeatedTags := field("tags", 1, schema.TypeString)
	repeatedTags.Label = schema.LabelRepeated

	old := versionSchema("v1", message("Post", field("tags", 1, schema.TypeString)))
	new := versionSchema("v2", message("Post", repeatedTags))

	d := NewEngine().Compare(old, new)
	card := changesOfKind(d.Messages[0].FieldChanges, FieldCardinalityChanged)
	require.Len(t, card, 1)
	assert.Equal(t, "optional", card[0].OldType)
	assert.Equal(t, "repeated", card[0].NewType)
	require.Len(t, d.Breaking, 1)
	assert.Equal(t, SeverityError, d.Breaking[0].Severity)
}

func TestCompareRenameVsRenumber(t *testing.T) {
	// Same number, new name: a rename, warning only.
	old := versionSchema("v1", message("Order", field("note", 3, schema.TypeString)))
	new := versionSchema("v2", message("Order", field("comment", 3, schema.TypeString)))

	d := NewEngine().Compare(old, new)
	renamed := changesOfKind(d.Messages[0].FieldChanges, FieldRenamed)
	require.Len(t, renamed, 1)
	assert.Equal(t, "note", renamed[0].OldName)
	assert.Equal(t, "comment", renamed[0].NewName)
	require.Len(t, d.Breaking, 1)
	assert.Equal(t, SeverityWarning, d.Breaking[0].Severity)

	// Same name, new number: a renumber, wire-breaking.
	old = versionSchema("v1", message("Order", field("note", 3, schema.TypeString)))
	new = versionSchema("v2", message("Order", field("note", 7, schema.TypeString)))

	d = NewEngine().Compare(old, new)
	renumbered := changesOfKind(d.Messages[0].FieldChanges, FieldRenamed)
	require.Len(t, renumbered, 1)
	assert.Contains(t, renumbered[0].Detail, "renumbered from 3 to 7")
	assert.Empty(t, changesOfKind(d.Messages[0].FieldChanges, FieldAdded),
		"a renumbered field must not double-report as add/remove")
	require.Len(t, d.Breaking, 1)
	assert.Equal(t, SeverityError, d.Breaking[0].Severity)
}

func TestCompareOneofMembershipChange(t *testing.T) {
	inOneof := field("note", 5, schema.TypeString)
	inOneof.OneofName = "extras"
	inOneof.OneofIndex = 0

	m2 := schema.NewMessage("Order")
	m2.AddOneof(&schema.OneofInfo{Name: "extras", Index: 0})
	m2.AddField(inOneof)

	old := versionSchema("v1", message("Order", field("note", 5, schema.TypeString)))
	new := versionSchema("v2", m2)

	d := NewEngine().Compare(old, new)
	oneofChanges := changesOfKind(d.Messages[0].FieldChanges, FieldOneofChanged)
	require.Len(t, oneofChanges, 1)
	assert.Contains(t, oneofChanges[0].Detail, "oneof extras")
	require.Len(t, d.Breaking, 1)
	assert.Equal(t, SeverityWarning, d.Breaking[0].Severity)
}

func TestCompareEnumChanges(t *testing.T) {
	old := versionSchema("v1")
	old.AddEnum(&schema.EnumInfo{Name: "Status", Values: []schema.EnumValue{
		{Name: "STATUS_UNSPECIFIED", Number: 0},
		{Name: "STATUS_OPEN", Number: 1},
		{Name: "STATUS_CLOSED", Number: 2},
	}})
	new := versionSchema("v2")
	new.AddEnum(&schema.EnumInfo{Name: "Status", Values: []schema.EnumValue{
		{Name: "STATUS_UNSPECIFIED", Number: 0},
		{Name: "STATUS_OPEN", Number: 5},
		{Name: "STATUS_ARCHIVED", Number: 3},
	}})

	d := NewEngine().Compare(old, new)
	require.Len(t, d.Enums, 1)
	status := d.Enums[0]

	require.Len(t, status.AddedValues, 1)
	assert.Equal(t, "STATUS_ARCHIVED", status.AddedValues[0].Name)
	require.Len(t, status.RemovedValues, 1)
	assert.Equal(t, "STATUS_CLOSED", status.RemovedValues[0].Name)
	require.Len(t, status.RenumberedValues, 1)
	assert.Equal(t, EnumValueChange{Name: "STATUS_OPEN", OldNumber: 1, NewNumber: 5}, status.RenumberedValues[0])

	// Removed value and renumbered value are both errors.
	assert.Equal(t, 2, d.Summary.BreakingErrors)
}

func TestCompareNestedMessages(t *testing.T) {
	oldItem := message("LineItem", field("qty", 1, schema.TypeInt32))
	oldOrder := message("Order", field("id", 1, schema.TypeString))
	oldOrder.AddNestedMessage(oldItem)

	newItem := message("LineItem", field("qty", 1, schema.TypeString))
	newOrder := message("Order", field("id", 1, schema.TypeString))
	newOrder.AddNestedMessage(newItem)

	d := NewEngine().Compare(versionSchema("v1", oldOrder), versionSchema("v2", newOrder))
	require.Len(t, d.Messages, 1)
	require.Len(t, d.Messages[0].Nested, 1)

	nested := d.Messages[0].Nested[0]
	assert.Equal(t, "LineItem", nested.Name)
	require.Len(t, changesOfKind(nested.FieldChanges, FieldTypeChanged), 1)

	require.Len(t, d.Breaking, 1)
	assert.Equal(t, "Order.LineItem.qty", d.Breaking[0].Path)
}

func TestRequiredFieldAdditionIsBreaking(t *testing.T) {
	required := field("tax_id", 2, schema.TypeString)
	required.Label = schema.LabelRequired

	old := versionSchema("v1", message("Company", field("name", 1, schema.TypeString)))
	new := versionSchema("v2", message("Company", field("name", 1, schema.TypeString), required))

	d := NewEngine().Compare(old, new)
	require.Len(t, d.Breaking, 1)
	assert.Equal(t, SeverityError, d.Breaking[0].Severity)
	assert.Equal(t, "Company.tax_id", d.Breaking[0].Path)

	// A plain optional addition is not breaking.
	optional := versionSchema("v2", message("Company",
		field("name", 1, schema.TypeString),
		field("tax_id", 2, schema.TypeString)))
	d = NewEngine().Compare(old, optional)
	assert.Empty(t, d.Breaking)
	assert.True(t, d.HasChanges())
}

func TestOptionalFieldNamedRequiredIsNotBreaking(t *testing.T) {
	// Classification must read the label, not the field name.
	old := versionSchema("v1", message("Company", field("name", 1, schema.TypeString)))
	new := versionSchema("v2", message("Company",
		field("name", 1, schema.TypeString),
		field("tax_required", 2, schema.TypeBool)))

	d := NewEngine().Compare(old, new)
	assert.Empty(t, d.Breaking)

	added := changesOfKind(d.Messages[0].FieldChanges, FieldAdded)
	require.Len(t, added, 1)
	assert.False(t, added[0].Required)
}

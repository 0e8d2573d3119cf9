package diff

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/protoverse/protomerge/pkg/schema"
)

// Engine compares two version schemas. An Engine is stateless and safe for
// concurrent use.
type Engine struct {
	Logger *logrus.Logger
}

// NewEngine creates an Engine.
func NewEngine() *Engine { return &Engine{} }

func (e *Engine) logger() *logrus.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return logrus.StandardLogger()
}

// Compare walks both schemas' message and enum trees and reports every
// difference, then classifies the breaking subset. Comparing a schema against
// itself yields an empty diff.
func (e *Engine) Compare(oldSchema, newSchema *schema.VersionSchema) *SchemaDiff {
	d := &SchemaDiff{
		OldVersion: oldSchema.Version(),
		NewVersion: newSchema.Version(),
	}

	for _, name := range unionOrdered(oldSchema.MessageNames(), newSchema.MessageNames()) {
		oldMsg, oldOK := oldSchema.Message(name)
		newMsg, newOK := newSchema.Message(name)
		md := compareMessages(name, oldMsg, oldOK, newMsg, newOK)
		if md.HasChanges() {
			d.Messages = append(d.Messages, md)
		}
	}

	for _, name := range unionOrdered(oldSchema.EnumNames(), newSchema.EnumNames()) {
		oldEnum, oldOK := oldSchema.Enum(name)
		newEnum, newOK := newSchema.Enum(name)
		ed := compareEnums(name, oldEnum, oldOK, newEnum, newOK)
		if ed.HasChanges() {
			d.Enums = append(d.Enums, ed)
		}
	}

	d.Breaking = detectBreaking(d)
	d.Summary = summarize(d)

	e.logger().WithFields(logrus.Fields{
		"old":      d.OldVersion,
		"new":      d.NewVersion,
		"messages": len(d.Messages),
		"enums":    len(d.Enums),
		"breaking": len(d.Breaking),
	}).Debug("schema comparison complete")

	return d
}

func compareMessages(name string, oldMsg *schema.MessageInfo, oldOK bool,
	newMsg *schema.MessageInfo, newOK bool) *MessageDiff {

	md := &MessageDiff{Name: name}
	switch {
	case !oldOK:
		md.Status = Added
		return md
	case !newOK:
		md.Status = Removed
		return md
	}

	md.FieldChanges = compareFields(oldMsg, newMsg)

	for _, nestedName := range unionOrdered(nestedNames(oldMsg), nestedNames(newMsg)) {
		oldNested, oldHas := findNested(oldMsg, nestedName)
		newNested, newHas := findNested(newMsg, nestedName)
		nd := compareMessages(nestedName, oldNested, oldHas, newNested, newHas)
		if nd.HasChanges() {
			md.Nested = append(md.Nested, nd)
		}
	}

	if len(md.FieldChanges) > 0 || len(md.Nested) > 0 {
		md.Status = Modified
	}
	return md
}

// compareFields aligns by number, then checks the renumber pattern (same
// name, different number) to avoid reporting one renumbered field as an
// unrelated add/remove pair.
func compareFields(oldMsg, newMsg *schema.MessageInfo) []FieldChange {
	var changes []FieldChange

	numbers := make(map[int]bool)
	var order []int
	for _, f := range oldMsg.Fields() {
		if !numbers[f.Number] {
			numbers[f.Number] = true
			order = append(order, f.Number)
		}
	}
	for _, f := range newMsg.Fields() {
		if !numbers[f.Number] {
			numbers[f.Number] = true
			order = append(order, f.Number)
		}
	}

	// Renumbered fields: present by name on both sides under different
	// numbers. Their numbers are excluded from plain add/remove reporting.
	renumbered := make(map[int]bool)
	for _, oldField := range oldMsg.Fields() {
		newField, ok := newMsg.FieldByName(oldField.Name)
		if !ok || newField.Number == oldField.Number {
			continue
		}
		if _, taken := oldMsg.Field(newField.Number); taken {
			continue
		}
		if _, taken := newMsg.Field(oldField.Number); taken {
			continue
		}
		renumbered[oldField.Number] = true
		renumbered[newField.Number] = true
		changes = append(changes, FieldChange{
			Kind:   FieldRenamed,
			Name:   oldField.Name,
			Number: oldField.Number,
			Detail: fmt.Sprintf("field %q renumbered from %d to %d",
				oldField.Name, oldField.Number, newField.Number),
		})
	}

	for _, n := range order {
		if renumbered[n] {
			continue
		}
		oldField, oldOK := oldMsg.Field(n)
		newField, newOK := newMsg.Field(n)

		switch {
		case !oldOK:
			required := newField.Label == schema.LabelRequired
			label := ""
			if required {
				label = "required "
			}
			changes = append(changes, FieldChange{
				Kind:     FieldAdded,
				Name:     newField.Name,
				Number:   n,
				NewType:  newField.FormatType(),
				Required: required,
				Detail:   fmt.Sprintf("%sfield %q added with type %s", label, newField.Name, newField.FormatType()),
			})
		case !newOK:
			changes = append(changes, FieldChange{
				Kind:    FieldRemoved,
				Name:    oldField.Name,
				Number:  n,
				OldType: oldField.FormatType(),
				Detail:  fmt.Sprintf("field %q removed", oldField.Name),
			})
		default:
			changes = append(changes, compareFieldPair(oldField, newField)...)
		}
	}

	return changes
}

func compareFieldPair(oldField, newField *schema.FieldInfo) []FieldChange {
	var changes []FieldChange

	if oldField.Name != newField.Name {
		changes = append(changes, FieldChange{
			Kind:    FieldRenamed,
			Name:    newField.Name,
			Number:  newField.Number,
			OldName: oldField.Name,
			NewName: newField.Name,
			Detail:  fmt.Sprintf("field #%d renamed from %q to %q", newField.Number, oldField.Name, newField.Name),
		})
	}

	if oldField.TypeIdentity() != newField.TypeIdentity() ||
		oldField.IsMap() != newField.IsMap() {
		changes = append(changes, FieldChange{
			Kind:    FieldTypeChanged,
			Name:    newField.Name,
			Number:  newField.Number,
			OldType: oldField.FormatType(),
			NewType: newField.FormatType(),
			Detail: fmt.Sprintf("field %q changed type from %s to %s",
				newField.Name, oldField.FormatType(), newField.FormatType()),
		})
	}

	if oldField.Label != newField.Label && oldField.IsMap() == newField.IsMap() {
		changes = append(changes, FieldChange{
			Kind:    FieldCardinalityChanged,
			Name:    newField.Name,
			Number:  newField.Number,
			OldType: oldField.Label.String(),
			NewType: newField.Label.String(),
			Detail: fmt.Sprintf("field %q changed cardinality from %s to %s",
				newField.Name, oldField.Label, newField.Label),
		})
	}

	if oldField.OneofName != newField.OneofName {
		changes = append(changes, FieldChange{
			Kind:   FieldOneofChanged,
			Name:   newField.Name,
			Number: newField.Number,
			Detail: fmt.Sprintf("field %q oneof membership changed from %s to %s",
				newField.Name, oneofLabel(oldField), oneofLabel(newField)),
		})
	}

	return changes
}

func compareEnums(name string, oldEnum *schema.EnumInfo, oldOK bool,
	newEnum *schema.EnumInfo, newOK bool) *EnumDiff {

	ed := &EnumDiff{Name: name}
	switch {
	case !oldOK:
		ed.Status = Added
		return ed
	case !newOK:
		ed.Status = Removed
		return ed
	}

	oldByName := make(map[string]schema.EnumValue)
	for _, v := range oldEnum.Values {
		oldByName[v.Name] = v
	}
	newByName := make(map[string]schema.EnumValue)
	for _, v := range newEnum.Values {
		newByName[v.Name] = v
	}

	for _, v := range newEnum.Values {
		old, ok := oldByName[v.Name]
		switch {
		case !ok:
			ed.AddedValues = append(ed.AddedValues, v)
		case old.Number != v.Number:
			ed.RenumberedValues = append(ed.RenumberedValues, EnumValueChange{
				Name:      v.Name,
				OldNumber: old.Number,
				NewNumber: v.Number,
			})
		}
	}
	for _, v := range oldEnum.Values {
		if _, ok := newByName[v.Name]; !ok {
			ed.RemovedValues = append(ed.RemovedValues, v)
		}
	}

	if ed.HasChanges() {
		ed.Status = Modified
	}
	return ed
}

func summarize(d *SchemaDiff) Summary {
	var s Summary
	for _, m := range d.Messages {
		switch m.Status {
		case Added:
			s.MessagesAdded++
		case Removed:
			s.MessagesRemoved++
		case Modified:
			s.MessagesModified++
		}
		s.FieldChanges += countFieldChanges(m)
	}
	for _, e := range d.Enums {
		switch e.Status {
		case Added:
			s.EnumsAdded++
		case Removed:
			s.EnumsRemoved++
		case Modified:
			s.EnumsModified++
		}
	}
	for _, b := range d.Breaking {
		if b.Severity == SeverityError {
			s.BreakingErrors++
		} else {
			s.BreakingWarnings++
		}
	}
	return s
}

func countFieldChanges(m *MessageDiff) int {
	n := len(m.FieldChanges)
	for _, nested := range m.Nested {
		n += countFieldChanges(nested)
	}
	return n
}

func nestedNames(m *schema.MessageInfo) []string {
	names := make([]string, 0, len(m.NestedMessages()))
	for _, n := range m.NestedMessages() {
		names = append(names, n.Name)
	}
	return names
}

func findNested(m *schema.MessageInfo, name string) (*schema.MessageInfo, bool) {
	for _, n := range m.NestedMessages() {
		if n.Name == name {
			return n, true
		}
	}
	return nil, false
}

func oneofLabel(f *schema.FieldInfo) string {
	if f.OneofName == "" {
		return "none"
	}
	return "oneof " + f.OneofName
}

func unionOrdered(a, b []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range [][]string{a, b} {
		for _, n := range s {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

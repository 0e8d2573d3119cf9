// Package diff compares exactly two schema versions and classifies every
// difference, including which changes break consumers built against the old
// version. It shares the field-identity and type primitives of the merge
// pipeline but reports differences instead of computing unified types.
package diff

import (
	"fmt"

	"github.com/protoverse/protomerge/pkg/schema"
)

// ChangeType is the top-level status of a message or enum between versions.
type ChangeType int

const (
	Unchanged ChangeType = iota
	Added
	Removed
	Modified
)

func (c ChangeType) String() string {
	return [...]string{"UNCHANGED", "ADDED", "REMOVED", "MODIFIED"}[c]
}

// FieldChangeKind is one specific kind of field-level difference. A field may
// carry several kinds at once (e.g. renamed and type-changed); each is
// reported separately.
type FieldChangeKind int

const (
	FieldAdded FieldChangeKind = iota
	FieldRemoved
	FieldTypeChanged
	FieldCardinalityChanged
	FieldRenamed
	FieldOneofChanged
)

var fieldChangeNames = [...]string{
	"FIELD_ADDED",
	"FIELD_REMOVED",
	"TYPE_CHANGED",
	"CARDINALITY_CHANGED",
	"RENAMED",
	"ONEOF_CHANGED",
}

func (k FieldChangeKind) String() string { return fieldChangeNames[k] }

// FieldChange is one field-level difference between two versions of a
// message.
type FieldChange struct {
	Kind   FieldChangeKind `json:"kind"`
	Name   string          `json:"name"`
	Number int             `json:"number"`

	OldType string `json:"oldType,omitempty"`
	NewType string `json:"newType,omitempty"`
	OldName string `json:"oldName,omitempty"`
	NewName string `json:"newName,omitempty"`

	// Required marks a FieldAdded change whose field carries the required
	// label. Breaking-change classification branches on it.
	Required bool `json:"required,omitempty"`

	Detail string `json:"detail,omitempty"`
}

func (c FieldChange) String() string {
	return fmt.Sprintf("[%s] %s (#%d): %s", c.Kind, c.Name, c.Number, c.Detail)
}

// MessageDiff is the full difference report for one message name.
type MessageDiff struct {
	Name   string     `json:"name"`
	Status ChangeType `json:"status"`

	FieldChanges []FieldChange  `json:"fieldChanges,omitempty"`
	Nested       []*MessageDiff `json:"nested,omitempty"`
}

// HasChanges reports whether this message or any nested message differs.
func (d *MessageDiff) HasChanges() bool {
	if d.Status != Unchanged || len(d.FieldChanges) > 0 {
		return true
	}
	for _, n := range d.Nested {
		if n.HasChanges() {
			return true
		}
	}
	return false
}

// EnumValueChange is an enum constant that kept its name but changed number.
type EnumValueChange struct {
	Name      string `json:"name"`
	OldNumber int    `json:"oldNumber"`
	NewNumber int    `json:"newNumber"`
}

// EnumDiff is the difference report for one enum name.
type EnumDiff struct {
	Name   string     `json:"name"`
	Status ChangeType `json:"status"`

	AddedValues      []schema.EnumValue `json:"addedValues,omitempty"`
	RemovedValues    []schema.EnumValue `json:"removedValues,omitempty"`
	RenumberedValues []EnumValueChange  `json:"renumberedValues,omitempty"`
}

// HasChanges reports whether the enum differs at all.
func (d *EnumDiff) HasChanges() bool {
	return d.Status != Unchanged ||
		len(d.AddedValues) > 0 || len(d.RemovedValues) > 0 || len(d.RenumberedValues) > 0
}

// Severity grades a breaking change.
type Severity int

const (
	// SeverityWarning flags changes that are wire-compatible but can surprise
	// consumers, e.g. a field rename.
	SeverityWarning Severity = iota
	// SeverityError flags changes that invalidate consumers of the old
	// version.
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}
	return "WARNING"
}

// BreakingChange is one diff entry classified as breaking.
type BreakingChange struct {
	Severity Severity `json:"severity"`
	// Path locates the change, e.g. "Order.total" or "Status.STATUS_OLD".
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (b BreakingChange) String() string {
	return fmt.Sprintf("%s %s: %s", b.Severity, b.Path, b.Message)
}

// Summary aggregates counts for quick reporting and exit-code decisions.
type Summary struct {
	MessagesAdded    int `json:"messagesAdded"`
	MessagesRemoved  int `json:"messagesRemoved"`
	MessagesModified int `json:"messagesModified"`
	EnumsAdded       int `json:"enumsAdded"`
	EnumsRemoved     int `json:"enumsRemoved"`
	EnumsModified    int `json:"enumsModified"`
	FieldChanges     int `json:"fieldChanges"`

	BreakingErrors   int `json:"breakingErrors"`
	BreakingWarnings int `json:"breakingWarnings"`
}

// SchemaDiff is the complete comparison of two versions.
type SchemaDiff struct {
	OldVersion string `json:"oldVersion"`
	NewVersion string `json:"newVersion"`

	Messages []*MessageDiff   `json:"messages,omitempty"`
	Enums    []*EnumDiff      `json:"enums,omitempty"`
	Breaking []BreakingChange `json:"breaking,omitempty"`

	Summary Summary `json:"summary"`
}

// HasChanges reports whether any difference was found.
func (d *SchemaDiff) HasChanges() bool {
	for _, m := range d.Messages {
		if m.HasChanges() {
			return true
		}
	}
	for _, e := range d.Enums {
		if e.HasChanges() {
			return true
		}
	}
	return false
}

// HasBreakingErrors reports whether any error-severity breaking change was
// found.
func (d *SchemaDiff) HasBreakingErrors() bool { return d.Summary.BreakingErrors > 0 }

// HasBreakingWarnings reports whether any warning-severity change was found.
func (d *SchemaDiff) HasBreakingWarnings() bool { return d.Summary.BreakingWarnings > 0 }

package diff

import (
	"fmt"
)

// detectBreaking classifies the breaking subset of a computed diff.
//
// Errors invalidate existing consumers: removals, renumberings,
// incompatible type changes, cardinality changes. Warnings are
// wire-compatible but behavior-affecting: renames, widenings, oneof
// membership moves.
func detectBreaking(d *SchemaDiff) []BreakingChange {
	var breaking []BreakingChange

	for _, m := range d.Messages {
		breaking = append(breaking, detectMessageBreaking(m.Name, m)...)
	}

	for _, e := range d.Enums {
		if e.Status == Removed {
			breaking = append(breaking, BreakingChange{
				Severity: SeverityError,
				Path:     e.Name,
				Message:  "enum removed",
			})
			continue
		}
		for _, v := range e.RemovedValues {
			breaking = append(breaking, BreakingChange{
				Severity: SeverityError,
				Path:     e.Name + "." + v.Name,
				Message:  "enum value removed",
			})
		}
		for _, v := range e.RenumberedValues {
			breaking = append(breaking, BreakingChange{
				Severity: SeverityError,
				Path:     e.Name + "." + v.Name,
				Message:  fmt.Sprintf("enum value renumbered from %d to %d", v.OldNumber, v.NewNumber),
			})
		}
	}

	return breaking
}

func detectMessageBreaking(path string, m *MessageDiff) []BreakingChange {
	var breaking []BreakingChange

	if m.Status == Removed {
		return []BreakingChange{{
			Severity: SeverityError,
			Path:     path,
			Message:  "message removed",
		}}
	}

	for _, c := range m.FieldChanges {
		fieldPath := path + "." + c.Name
		switch c.Kind {
		case FieldRemoved:
			breaking = append(breaking, BreakingChange{
				Severity: SeverityError,
				Path:     fieldPath,
				Message:  fmt.Sprintf("field removed (was %s)", c.OldType),
			})

		case FieldTypeChanged:
			severity := SeverityError
			msg := fmt.Sprintf("incompatible type change %s -> %s", c.OldType, c.NewType)
			if compatibleTypeChange(c.OldType, c.NewType) {
				severity = SeverityWarning
				msg = fmt.Sprintf("compatible type change %s -> %s", c.OldType, c.NewType)
			}
			breaking = append(breaking, BreakingChange{Severity: severity, Path: fieldPath, Message: msg})

		case FieldCardinalityChanged:
			severity := SeverityError
			msg := fmt.Sprintf("cardinality changed %s -> %s", c.OldType, c.NewType)
			if c.NewType == "required" || c.OldType == "required" {
				msg = "required constraint changed: " + msg
			}
			breaking = append(breaking, BreakingChange{Severity: severity, Path: fieldPath, Message: msg})

		case FieldRenamed:
			if c.OldName == "" {
				// Renumber pattern: same name, different wire tag. Old
				// payloads decode the value into the wrong (or no) field.
				breaking = append(breaking, BreakingChange{
					Severity: SeverityError,
					Path:     fieldPath,
					Message:  c.Detail,
				})
			} else {
				breaking = append(breaking, BreakingChange{
					Severity: SeverityWarning,
					Path:     fieldPath,
					Message:  fmt.Sprintf("field renamed from %q to %q", c.OldName, c.NewName),
				})
			}

		case FieldOneofChanged:
			breaking = append(breaking, BreakingChange{
				Severity: SeverityWarning,
				Path:     fieldPath,
				Message:  c.Detail,
			})

		case FieldAdded:
			// Additions are compatible unless a required field appears.
			if c.Required {
				breaking = append(breaking, BreakingChange{
					Severity: SeverityError,
					Path:     fieldPath,
					Message:  "required field added",
				})
			}
		}
	}

	for _, nested := range m.Nested {
		breaking = append(breaking, detectMessageBreaking(path+"."+nested.Name, nested)...)
	}

	return breaking
}

// widenings maps each narrow wire type to the type it can widen into without
// breaking old payloads.
var widenings = map[string]string{
	"int32":    "int64",
	"uint32":   "uint64",
	"sint32":   "sint64",
	"fixed32":  "fixed64",
	"sfixed32": "sfixed64",
	"float":    "double",
}

// compatibleTypeChange reports type changes old payloads survive: integer
// widening within a signedness family, float to double, and the
// string/bytes pair which shares a wire type.
func compatibleTypeChange(oldType, newType string) bool {
	if widenings[oldType] == newType {
		return true
	}
	if (oldType == "string" && newType == "bytes") || (oldType == "bytes" && newType == "string") {
		return true
	}
	return false
}

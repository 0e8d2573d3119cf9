package merge

import (
	"github.com/protoverse/protomerge/pkg/schema"
)

// msgWithVersion pairs one version's copy of a message with its version id.
type msgWithVersion struct {
	version string
	msg     *schema.MessageInfo
}

// fieldGroup is one field identity: every version's FieldInfo that aligns to
// the same logical field.
type fieldGroup struct {
	// number is the canonical field number, taken from the first version in
	// which the identity appears.
	number  int
	name    string
	entries []fieldWithVersion
}

// alignFields groups a message's fields across versions into identity groups.
// The default key is the field number. Overrides take precedence: a mapping
// claims one field per version (by pinned number, or by proto name), and
// claimed fields never also join a number-based group. Every input field ends
// up in exactly one group.
func alignFields(messageName string, msgs []msgWithVersion, overrides []FieldMapping) []*fieldGroup {
	type fieldKey struct {
		version string
		number  int
	}
	claimed := make(map[fieldKey]bool)

	var groups []*fieldGroup

	for _, ov := range overrides {
		if ov.Message != messageName {
			continue
		}
		g := &fieldGroup{name: ov.FieldName}
		for _, mv := range msgs {
			var f *schema.FieldInfo
			if number, ok := ov.VersionNumbers[mv.version]; ok {
				f, _ = mv.msg.Field(number)
			} else {
				f, _ = mv.msg.FieldByName(ov.FieldName)
			}
			if f == nil {
				continue
			}
			key := fieldKey{mv.version, f.Number}
			if claimed[key] {
				continue
			}
			claimed[key] = true
			if len(g.entries) == 0 {
				g.number = f.Number
			}
			g.entries = append(g.entries, fieldWithVersion{version: mv.version, field: f})
		}
		if len(g.entries) > 0 {
			groups = append(groups, g)
		}
	}

	byNumber := make(map[int]*fieldGroup)
	for _, mv := range msgs {
		for _, f := range mv.msg.Fields() {
			if claimed[fieldKey{mv.version, f.Number}] {
				continue
			}
			g, ok := byNumber[f.Number]
			if !ok {
				g = &fieldGroup{number: f.Number, name: f.Name}
				byNumber[f.Number] = g
				groups = append(groups, g)
			}
			g.entries = append(g.entries, fieldWithVersion{version: mv.version, field: f})
		}
	}

	return groups
}

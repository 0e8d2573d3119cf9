package merge

import (
	"github.com/sirupsen/logrus"

	"github.com/protoverse/protomerge/pkg/schema"
)

// detectEquivalentEnums promotes nested enums that are structurally identical
// to a top-level enum of the same name in some version: the nested copy is
// removed and a path mapping ("Product.TaxType" -> "TaxType") is recorded.
//
// Only enums nested directly inside a top-level message are eligible. Deeper
// nesting is deliberately left alone; lifting that restriction would change
// the promotion contract for existing consumers.
//
// Anything short of an exact name and value-set match keeps both enums
// separate. Merging near-identical enums would silently lose values.
func (m *Merger) detectEquivalentEnums(merged *MergedSchema, schemas []*schema.VersionSchema) {
	topLevel := make(map[string]*schema.EnumInfo)
	for _, s := range schemas {
		for _, e := range s.Enums() {
			if _, ok := topLevel[e.Name]; !ok {
				topLevel[e.Name] = e
			}
		}
	}
	if len(topLevel) == 0 {
		return
	}

	for _, msg := range merged.Messages() {
		var promote []string
		for _, nested := range msg.NestedEnums() {
			top, ok := topLevel[nested.Name]
			if !ok {
				continue
			}
			nestedInfo := findNestedEnumInfo(schemas, msg.Name, nested.Name)
			if nestedInfo == nil || !nestedInfo.EquivalentTo(top) {
				continue
			}
			promote = append(promote, nested.Name)
		}

		for _, name := range promote {
			path := msg.Name + "." + name
			merged.equivalentEnums[path] = name
			msg.removeNestedEnum(name)
			m.logger().WithFields(logrus.Fields{
				"nested":   path,
				"topLevel": name,
			}).Info("promoted equivalent nested enum")
		}
	}
}

func findNestedEnumInfo(schemas []*schema.VersionSchema, messageName, enumName string) *schema.EnumInfo {
	for _, s := range schemas {
		msg, ok := s.Message(messageName)
		if !ok {
			continue
		}
		for _, e := range msg.NestedEnums() {
			if e.Name == enumName {
				return e
			}
		}
	}
	return nil
}

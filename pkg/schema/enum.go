package schema

import (
	"google.golang.org/protobuf/types/descriptorpb"
)

// EnumInfo describes one enum type in one schema version.
type EnumInfo struct {
	Name       string
	SourceFile string
	Values     []EnumValue
}

// EnumValue is a single named enum constant.
type EnumValue struct {
	Name   string
	Number int
}

// NewEnumInfo builds an EnumInfo from an enum descriptor.
func NewEnumInfo(desc *descriptorpb.EnumDescriptorProto, sourceFile string) *EnumInfo {
	e := &EnumInfo{Name: desc.GetName(), SourceFile: sourceFile}
	for _, v := range desc.GetValue() {
		e.Values = append(e.Values, EnumValue{Name: v.GetName(), Number: int(v.GetNumber())})
	}
	return e
}

// Value returns the value with the given name.
func (e *EnumInfo) Value(name string) (EnumValue, bool) {
	for _, v := range e.Values {
		if v.Name == name {
			return v, true
		}
	}
	return EnumValue{}, false
}

// EquivalentTo reports whether two enums are structurally identical: same
// type name and the same name-to-number value set, declaration order ignored.
// This is the bar for merging a nested enum with a top-level one; anything
// less than an exact match keeps them separate.
func (e *EnumInfo) EquivalentTo(other *EnumInfo) bool {
	if other == nil || e.Name != other.Name || len(e.Values) != len(other.Values) {
		return false
	}
	byName := make(map[string]int, len(other.Values))
	for _, v := range other.Values {
		byName[v.Name] = v.Number
	}
	for _, v := range e.Values {
		n, ok := byName[v.Name]
		if !ok || n != v.Number {
			return false
		}
	}
	return true
}

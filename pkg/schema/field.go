package schema

import (
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// FieldType is the protobuf wire type of a field. We reuse the descriptor
// enumeration directly so no mapping table can drift out of sync with the
// compiler's view of the schema.
type FieldType = descriptorpb.FieldDescriptorProto_Type

// Wire type aliases, re-exported so callers don't need to import descriptorpb.
const (
	TypeDouble   = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE
	TypeFloat    = descriptorpb.FieldDescriptorProto_TYPE_FLOAT
	TypeInt64    = descriptorpb.FieldDescriptorProto_TYPE_INT64
	TypeUint64   = descriptorpb.FieldDescriptorProto_TYPE_UINT64
	TypeInt32    = descriptorpb.FieldDescriptorProto_TYPE_INT32
	TypeFixed64  = descriptorpb.FieldDescriptorProto_TYPE_FIXED64
	TypeFixed32  = descriptorpb.FieldDescriptorProto_TYPE_FIXED32
	TypeBool     = descriptorpb.FieldDescriptorProto_TYPE_BOOL
	TypeString   = descriptorpb.FieldDescriptorProto_TYPE_STRING
	TypeGroup    = descriptorpb.FieldDescriptorProto_TYPE_GROUP
	TypeMessage  = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	TypeBytes    = descriptorpb.FieldDescriptorProto_TYPE_BYTES
	TypeUint32   = descriptorpb.FieldDescriptorProto_TYPE_UINT32
	TypeEnum     = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	TypeSfixed32 = descriptorpb.FieldDescriptorProto_TYPE_SFIXED32
	TypeSfixed64 = descriptorpb.FieldDescriptorProto_TYPE_SFIXED64
	TypeSint32   = descriptorpb.FieldDescriptorProto_TYPE_SINT32
	TypeSint64   = descriptorpb.FieldDescriptorProto_TYPE_SINT64
)

// FieldLabel is the cardinality of a field.
type FieldLabel int

const (
	LabelOptional FieldLabel = iota
	LabelRequired
	LabelRepeated
)

func (l FieldLabel) String() string {
	return []string{"optional", "required", "repeated"}[l]
}

// FieldInfo describes one field of one message in one schema version.
type FieldInfo struct {
	// Name is the proto field name (snake_case).
	Name string
	// CamelName is the derived identifier used by generators (UpperCamelCase).
	CamelName string
	// Number is the wire field number, the stable cross-version identity key.
	Number int
	// Type is the protobuf wire type.
	Type FieldType
	// TypeName is the fully qualified referenced type for message/enum fields,
	// without the leading dot. Empty for scalar fields.
	TypeName string
	// Label is the declared cardinality.
	Label FieldLabel
	// Proto3Optional marks proto3 `optional` fields. Their synthetic oneof is
	// not treated as oneof membership.
	Proto3Optional bool
	// OneofName is the containing oneof group, or "" for regular fields.
	OneofName string
	// OneofIndex is the declaration index of the containing oneof, or -1.
	OneofIndex int
	// Map holds key/value typing when the field is a map, nil otherwise.
	Map *MapInfo
}

// MapInfo describes the key and value types of a map field.
type MapInfo struct {
	KeyType       FieldType
	ValueType     FieldType
	ValueTypeName string
}

// HasEnumValue reports whether the map value type is an enum.
func (m *MapInfo) HasEnumValue() bool { return m.ValueType == TypeEnum }

// HasMessageValue reports whether the map value type is a message.
func (m *MapInfo) HasMessageValue() bool { return m.ValueType == TypeMessage }

func newFieldInfo(desc *descriptorpb.FieldDescriptorProto, parent *descriptorpb.DescriptorProto) *FieldInfo {
	f := &FieldInfo{
		Name:           desc.GetName(),
		CamelName:      CamelCase(desc.GetName()),
		Number:         int(desc.GetNumber()),
		Type:           desc.GetType(),
		TypeName:       strings.TrimPrefix(desc.GetTypeName(), "."),
		Proto3Optional: desc.GetProto3Optional(),
		OneofIndex:     -1,
	}

	switch desc.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		f.Label = LabelRequired
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		f.Label = LabelRepeated
	default:
		f.Label = LabelOptional
	}

	// Proto3 optional fields sit in a synthetic single-member oneof. That is
	// presence tracking, not a tagged union, so it never counts as membership.
	if desc.OneofIndex != nil && !desc.GetProto3Optional() {
		idx := int(desc.GetOneofIndex())
		f.OneofIndex = idx
		if parent != nil && idx < len(parent.GetOneofDecl()) {
			f.OneofName = parent.GetOneofDecl()[idx].GetName()
		}
	}

	if f.Type == TypeMessage && parent != nil {
		if entry := findMapEntry(parent, f.TypeName); entry != nil {
			var key, value *descriptorpb.FieldDescriptorProto
			for _, ef := range entry.GetField() {
				switch ef.GetNumber() {
				case 1:
					key = ef
				case 2:
					value = ef
				}
			}
			if key != nil && value != nil {
				f.Map = &MapInfo{
					KeyType:       key.GetType(),
					ValueType:     value.GetType(),
					ValueTypeName: strings.TrimPrefix(value.GetTypeName(), "."),
				}
			}
		}
	}

	return f
}

func findMapEntry(parent *descriptorpb.DescriptorProto, typeName string) *descriptorpb.DescriptorProto {
	simple := simpleName(typeName)
	for _, nested := range parent.GetNestedType() {
		if nested.GetName() == simple && nested.GetOptions().GetMapEntry() {
			return nested
		}
	}
	return nil
}

// IsRepeated reports whether the field is repeated (maps included; use IsMap
// to distinguish).
func (f *FieldInfo) IsRepeated() bool { return f.Label == LabelRepeated }

// IsMap reports whether the field is a map.
func (f *FieldInfo) IsMap() bool { return f.Map != nil }

// IsMessage reports whether the field references a message type. Map fields
// are excluded; their entry message is an encoding detail.
func (f *FieldInfo) IsMessage() bool {
	return (f.Type == TypeMessage || f.Type == TypeGroup) && !f.IsMap()
}

// IsEnum reports whether the field references an enum type.
func (f *FieldInfo) IsEnum() bool { return f.Type == TypeEnum }

// IsScalar reports whether the field has a primitive wire type.
func (f *FieldInfo) IsScalar() bool {
	return !f.IsMessage() && !f.IsEnum() && !f.IsMap()
}

// IsOptionalLabel reports the proto2 optional/required distinction. Repeated
// fields report true; only explicit `required` is false.
func (f *FieldInfo) IsOptionalLabel() bool { return f.Label != LabelRequired }

// InOneof reports whether the field is a member of a real (non-synthetic)
// oneof group.
func (f *FieldInfo) InOneof() bool { return f.OneofIndex >= 0 }

// TypeIdentity is the cross-version comparable identity of the field's type:
// the wire type name for scalars, the simple type name for messages and
// enums. Versions usually live in different proto packages, so comparing full
// names would make every message-typed field look changed.
func (f *FieldInfo) TypeIdentity() string {
	if f.TypeName != "" {
		return simpleName(f.TypeName)
	}
	return typeKeyword(f.Type)
}

// FormatType renders the field type the way it appears in proto source,
// e.g. "int32", "Money" or "map<string, int64>".
func (f *FieldInfo) FormatType() string {
	if f.Map != nil {
		value := f.Map.ValueTypeName
		if value == "" {
			value = typeKeyword(f.Map.ValueType)
		} else {
			value = simpleName(value)
		}
		return "map<" + typeKeyword(f.Map.KeyType) + ", " + value + ">"
	}
	return f.TypeIdentity()
}

func simpleName(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func typeKeyword(t FieldType) string {
	// TYPE_DOUBLE..TYPE_SINT64 stringify as "TYPE_DOUBLE" etc.
	return strings.ToLower(strings.TrimPrefix(t.String(), "TYPE_"))
}

// CamelCase converts a snake_case proto identifier to UpperCamelCase, the
// derived identifier used for generated accessors.
func CamelCase(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(toUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}

// Signedness / width predicates used by the conflict classifier.

// IsSigned32 reports a signed 32-bit integer wire type.
func IsSigned32(t FieldType) bool {
	return t == TypeInt32 || t == TypeSint32 || t == TypeSfixed32
}

// IsUnsigned32 reports an unsigned 32-bit integer wire type.
func IsUnsigned32(t FieldType) bool {
	return t == TypeUint32 || t == TypeFixed32
}

// IsSigned64 reports a signed 64-bit integer wire type.
func IsSigned64(t FieldType) bool {
	return t == TypeInt64 || t == TypeSint64 || t == TypeSfixed64
}

// IsUnsigned64 reports an unsigned 64-bit integer wire type.
func IsUnsigned64(t FieldType) bool {
	return t == TypeUint64 || t == TypeFixed64
}

// IsInt32Family reports any 32-bit integer wire type.
func IsInt32Family(t FieldType) bool { return IsSigned32(t) || IsUnsigned32(t) }

// IsInt64Family reports any 64-bit integer wire type.
func IsInt64Family(t FieldType) bool { return IsSigned64(t) || IsUnsigned64(t) }

// IsInteger reports any integer wire type.
func IsInteger(t FieldType) bool { return IsInt32Family(t) || IsInt64Family(t) }

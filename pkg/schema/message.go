package schema

import (
	"google.golang.org/protobuf/types/descriptorpb"
)

// MessageInfo describes one message type in one schema version, including its
// nested types and oneof groups.
type MessageInfo struct {
	Name       string
	FullName   string
	SourceFile string

	fields         []*FieldInfo
	fieldsByNumber map[int]*FieldInfo
	nestedMessages []*MessageInfo
	nestedEnums    []*EnumInfo
	oneofs         []*OneofInfo

	mapEntry bool
}

// NewMessageInfo builds a MessageInfo from a message descriptor.
func NewMessageInfo(desc *descriptorpb.DescriptorProto, pkg, sourceFile string) *MessageInfo {
	fullName := desc.GetName()
	if pkg != "" {
		fullName = pkg + "." + fullName
	}
	m := &MessageInfo{
		Name:           desc.GetName(),
		FullName:       fullName,
		SourceFile:     sourceFile,
		fieldsByNumber: make(map[int]*FieldInfo),
		mapEntry:       desc.GetOptions().GetMapEntry(),
	}

	for _, fd := range desc.GetField() {
		f := newFieldInfo(fd, desc)
		m.fields = append(m.fields, f)
		m.fieldsByNumber[f.Number] = f
	}

	for _, nested := range desc.GetNestedType() {
		// Map entry messages are an encoding artifact of map fields.
		if nested.GetOptions().GetMapEntry() {
			continue
		}
		m.nestedMessages = append(m.nestedMessages, NewMessageInfo(nested, fullName, sourceFile))
	}

	for _, nested := range desc.GetEnumType() {
		m.nestedEnums = append(m.nestedEnums, NewEnumInfo(nested, sourceFile))
	}

	for i, decl := range desc.GetOneofDecl() {
		oneof := &OneofInfo{Name: decl.GetName(), Index: i}
		for _, f := range m.fields {
			if f.OneofIndex == i {
				oneof.Fields = append(oneof.Fields, f)
			}
		}
		// A oneof with no members is the synthetic shell of a proto3 optional
		// field; it carries no union semantics.
		if len(oneof.Fields) > 0 {
			m.oneofs = append(m.oneofs, oneof)
		}
	}

	return m
}

// NewMessage creates an empty MessageInfo for programmatic construction,
// e.g. synthesizing schemas without going through a descriptor.
func NewMessage(name string) *MessageInfo {
	return &MessageInfo{
		Name:           name,
		FullName:       name,
		fieldsByNumber: make(map[int]*FieldInfo),
	}
}

// AddField appends a field. A field with an OneofIndex matching a registered
// oneof is also added to that group.
func (m *MessageInfo) AddField(f *FieldInfo) {
	m.fields = append(m.fields, f)
	m.fieldsByNumber[f.Number] = f
	if f.OneofIndex >= 0 {
		for _, o := range m.oneofs {
			if o.Index == f.OneofIndex {
				o.Fields = append(o.Fields, f)
			}
		}
	}
}

// AddNestedMessage appends a nested message type.
func (m *MessageInfo) AddNestedMessage(n *MessageInfo) {
	m.nestedMessages = append(m.nestedMessages, n)
}

// AddNestedEnum appends a nested enum type.
func (m *MessageInfo) AddNestedEnum(e *EnumInfo) {
	m.nestedEnums = append(m.nestedEnums, e)
}

// AddOneof registers a oneof group. Fields added afterwards with a matching
// OneofIndex join it automatically.
func (m *MessageInfo) AddOneof(o *OneofInfo) {
	m.oneofs = append(m.oneofs, o)
}

// Fields returns the message fields in declaration order.
func (m *MessageInfo) Fields() []*FieldInfo { return m.fields }

// Field returns the field with the given number.
func (m *MessageInfo) Field(number int) (*FieldInfo, bool) {
	f, ok := m.fieldsByNumber[number]
	return f, ok
}

// FieldByName returns the field with the given proto name.
func (m *MessageInfo) FieldByName(name string) (*FieldInfo, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// NestedMessages returns directly nested message types, map entries excluded.
func (m *MessageInfo) NestedMessages() []*MessageInfo { return m.nestedMessages }

// NestedEnums returns directly nested enum types.
func (m *MessageInfo) NestedEnums() []*EnumInfo { return m.nestedEnums }

// Oneofs returns the real oneof groups, synthetic proto3-optional shells
// excluded.
func (m *MessageInfo) Oneofs() []*OneofInfo { return m.oneofs }

// OneofByName returns the oneof group with the given name.
func (m *MessageInfo) OneofByName(name string) (*OneofInfo, bool) {
	for _, o := range m.oneofs {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}

// IsMapEntry reports whether this message is a synthetic map entry type.
func (m *MessageInfo) IsMapEntry() bool { return m.mapEntry }

// OneofInfo describes one oneof group of one message in one version.
type OneofInfo struct {
	Name   string
	Index  int
	Fields []*FieldInfo
}

// FieldNumbers returns the member field numbers in declaration order.
func (o *OneofInfo) FieldNumbers() []int {
	nums := make([]int, len(o.Fields))
	for i, f := range o.Fields {
		nums[i] = f.Number
	}
	return nums
}

// NumberSet returns the member field numbers as a set.
func (o *OneofInfo) NumberSet() map[int]bool {
	set := make(map[int]bool, len(o.Fields))
	for _, f := range o.Fields {
		set[f.Number] = true
	}
	return set
}

// Package merge unifies multiple independently evolved schema versions into a
// single merged model: fields aligned by number, type conflicts classified
// into a closed taxonomy, oneof restructurings detected and recorded as
// metadata. A merge always completes; incompatibilities are data, not errors.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/protoverse/protomerge/pkg/schema"
)

// UnifiedType is the canonical wire type computed for a merged field: the
// widest type satisfiable by every version's representation.
type UnifiedType struct {
	Type schema.FieldType
	// TypeName is the simple type name for message/enum types, including
	// synthetic conflict enums. Empty for scalars.
	TypeName string
	Repeated bool
}

func (u UnifiedType) String() string {
	name := u.TypeName
	if name == "" {
		name = strings.ToLower(strings.TrimPrefix(u.Type.String(), "TYPE_"))
	}
	if u.Repeated {
		return "repeated " + name
	}
	return name
}

// MergedField is the unification result for one field identity across all
// versions. Absence in a version is significant: VersionField returns false
// there, and the conflict tag is computed only over present versions.
type MergedField struct {
	Name      string
	CamelName string
	Number    int

	Conflict ConflictType
	Unified  UnifiedType

	// MapValueConflict carries a value-type conflict for map fields. Map
	// fields keep a field-level tag of NONE; the map shape itself is shared
	// and only the value type diverges.
	MapValueConflict ConflictType
	// UnifiedMapValue is set when MapValueConflict is not NONE.
	UnifiedMapValue *UnifiedType

	versions      []string
	versionFields map[string]*schema.FieldInfo
}

func newMergedField(name string, number int) *MergedField {
	return &MergedField{
		Name:          name,
		CamelName:     schema.CamelCase(name),
		Number:        number,
		versionFields: make(map[string]*schema.FieldInfo),
	}
}

func (f *MergedField) addVersionField(version string, info *schema.FieldInfo) {
	if _, ok := f.versionFields[version]; !ok {
		f.versions = append(f.versions, version)
	}
	f.versionFields[version] = info
}

// VersionField returns the raw field as seen by one version.
func (f *MergedField) VersionField(version string) (*schema.FieldInfo, bool) {
	fi, ok := f.versionFields[version]
	return fi, ok
}

// PresentInVersions returns the versions containing this field, in merge
// input order.
func (f *MergedField) PresentInVersions() []string {
	return append([]string(nil), f.versions...)
}

// ExistsIn reports whether the field exists in the given version.
func (f *MergedField) ExistsIn(version string) bool {
	_, ok := f.versionFields[version]
	return ok
}

// IsUniversal reports whether the field exists in every listed version.
func (f *MergedField) IsUniversal(allVersions []string) bool {
	for _, v := range allVersions {
		if !f.ExistsIn(v) {
			return false
		}
	}
	return true
}

// MutationSupported reports whether builder-style write access can be
// generated for this field. Cardinality conflicts and element-wise conflicts
// on repeated fields are read-only: the element conversion is not safely
// invertible.
func (f *MergedField) MutationSupported() bool {
	if f.Conflict == ConflictRepeatedSingle || f.Conflict == ConflictIncompatible {
		return false
	}
	if f.Unified.Repeated && f.Conflict != ConflictNone && f.Conflict != ConflictOptionalRequired {
		return false
	}
	return true
}

func (f *MergedField) String() string {
	return fmt.Sprintf("%s #%d %s [%s] in %v", f.Name, f.Number, f.Unified, f.Conflict, f.versions)
}

// MergedMessage is a unified message type across all versions.
type MergedMessage struct {
	Name string

	fields         []*MergedField
	nestedMessages []*MergedMessage
	nestedEnums    []*MergedEnum
	oneofs         []*MergedOneof

	// membershipConflicts are FIELD_MEMBERSHIP_CHANGE entries. They live on
	// the message because the affected field may not belong to any surviving
	// oneof group.
	membershipConflicts []OneofConflictInfo

	versions    []string
	sourceFiles map[string]string
}

func newMergedMessage(name string) *MergedMessage {
	return &MergedMessage{Name: name, sourceFiles: make(map[string]string)}
}

func (m *MergedMessage) addVersion(version string) {
	for _, v := range m.versions {
		if v == version {
			return
		}
	}
	m.versions = append(m.versions, version)
}

func (m *MergedMessage) addSourceFile(version, file string) {
	m.sourceFiles[version] = file
}

func (m *MergedMessage) addField(f *MergedField) { m.fields = append(m.fields, f) }

// Fields returns the merged fields in field-number order.
func (m *MergedMessage) Fields() []*MergedField {
	sorted := append([]*MergedField(nil), m.fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return sorted
}

// Field returns the merged field with the given number.
func (m *MergedMessage) Field(number int) (*MergedField, bool) {
	for _, f := range m.fields {
		if f.Number == number {
			return f, true
		}
	}
	return nil, false
}

// FieldByName returns the merged field with the given proto name.
func (m *MergedMessage) FieldByName(name string) (*MergedField, bool) {
	for _, f := range m.fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// NestedMessages returns the recursively merged nested message types.
func (m *MergedMessage) NestedMessages() []*MergedMessage { return m.nestedMessages }

// NestedEnums returns the merged nested enums. Enums promoted to top level by
// equivalence detection are removed from this list.
func (m *MergedMessage) NestedEnums() []*MergedEnum { return m.nestedEnums }

// Oneofs returns the merged oneof groups.
func (m *MergedMessage) Oneofs() []*MergedOneof { return m.oneofs }

// OneofByName returns the merged oneof with the given canonical name.
func (m *MergedMessage) OneofByName(name string) (*MergedOneof, bool) {
	for _, o := range m.oneofs {
		if o.Name == name {
			return o, true
		}
	}
	return nil, false
}

// OneofMembershipConflicts returns fields that are oneof members in some
// versions and regular fields in others.
func (m *MergedMessage) OneofMembershipConflicts() []OneofConflictInfo {
	return m.membershipConflicts
}

// PresentInVersions returns the versions in which this message exists.
func (m *MergedMessage) PresentInVersions() []string {
	return append([]string(nil), m.versions...)
}

// SourceFile returns the proto file that declared this message in a version.
func (m *MergedMessage) SourceFile(version string) (string, bool) {
	f, ok := m.sourceFiles[version]
	return f, ok
}

func (m *MergedMessage) removeNestedEnum(name string) {
	for i, e := range m.nestedEnums {
		if e.Name == name {
			m.nestedEnums = append(m.nestedEnums[:i], m.nestedEnums[i+1:]...)
			return
		}
	}
}

// MergedEnum is a unified enum across all versions. Individual values carry
// their own presence sets; a value added in v3 is present in {v3} even though
// the enum exists since v1.
type MergedEnum struct {
	Name string

	values      []*MergedEnumValue
	versions    []string
	sourceFiles map[string]string
}

func newMergedEnum(name string) *MergedEnum {
	return &MergedEnum{Name: name, sourceFiles: make(map[string]string)}
}

func (e *MergedEnum) addVersion(version string) {
	for _, v := range e.versions {
		if v == version {
			return
		}
	}
	e.versions = append(e.versions, version)
}

// Values returns the merged values in number order.
func (e *MergedEnum) Values() []*MergedEnumValue {
	sorted := append([]*MergedEnumValue(nil), e.values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	return sorted
}

// Value returns the merged value with the given name.
func (e *MergedEnum) Value(name string) (*MergedEnumValue, bool) {
	for _, v := range e.values {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// PresentInVersions returns the versions in which this enum type exists.
func (e *MergedEnum) PresentInVersions() []string {
	return append([]string(nil), e.versions...)
}

// MergedEnumValue is one enum constant with its own version-presence set.
type MergedEnumValue struct {
	Name     string
	Number   int
	versions []string
}

func (v *MergedEnumValue) addVersion(version string) {
	for _, existing := range v.versions {
		if existing == version {
			return
		}
	}
	v.versions = append(v.versions, version)
}

// PresentInVersions returns the versions defining this specific value.
func (v *MergedEnumValue) PresentInVersions() []string {
	return append([]string(nil), v.versions...)
}

// ExistsIn reports whether the value exists in the given version.
func (v *MergedEnumValue) ExistsIn(version string) bool {
	for _, existing := range v.versions {
		if existing == version {
			return true
		}
	}
	return false
}

// NotSetCaseNumber is the reserved discriminator value for "no member set".
// Field number 0 can never collide with a real member.
const NotSetCaseNumber = 0

// CaseConstant is one discriminator constant of a merged oneof.
type CaseConstant struct {
	Name   string
	Number int
}

// MergedOneof is a unified tagged-union group. Conflicts are advisory
// metadata; a conflicted oneof is still fully merged.
type MergedOneof struct {
	// Name is the canonical group name. For renamed groups this is the most
	// common historical name.
	Name string
	// MergedFromNames lists every historical name, canonical one included,
	// when the group was renamed across versions.
	MergedFromNames []string

	Fields    []*MergedField
	Cases     []CaseConstant
	Conflicts []OneofConflictInfo

	versions      []string
	versionOneofs map[string]*schema.OneofInfo
}

func newMergedOneof(name string) *MergedOneof {
	return &MergedOneof{Name: name, versionOneofs: make(map[string]*schema.OneofInfo)}
}

func (o *MergedOneof) addVersionOneof(version string, info *schema.OneofInfo) {
	if _, ok := o.versionOneofs[version]; !ok {
		o.versions = append(o.versions, version)
	}
	o.versionOneofs[version] = info
}

// VersionOneof returns the raw oneof as declared in one version.
func (o *MergedOneof) VersionOneof(version string) (*schema.OneofInfo, bool) {
	info, ok := o.versionOneofs[version]
	return info, ok
}

// PresentInVersions returns the versions declaring this group under any of
// its names.
func (o *MergedOneof) PresentInVersions() []string {
	return append([]string(nil), o.versions...)
}

// CaseName derives the discriminator constant name for a member field.
func CaseName(fieldName string) string {
	return strings.ToUpper(fieldName)
}

func buildCaseConstants(fields []*MergedField) []CaseConstant {
	cases := make([]CaseConstant, 0, len(fields)+1)
	for _, f := range fields {
		cases = append(cases, CaseConstant{Name: CaseName(f.Name), Number: f.Number})
	}
	cases = append(cases, CaseConstant{Name: "NOT_SET", Number: NotSetCaseNumber})
	return cases
}

// ConflictEnumInfo describes the synthetic unified enum generated for an
// INT_ENUM field conflict: the union of every enum-typed version's values,
// exposed alongside a raw integer accessor.
type ConflictEnumInfo struct {
	MessageName string
	FieldName   string
	// EnumName is the generated type name, derived from the field name
	// unless set explicitly.
	EnumName string

	Values []schema.EnumValue
	// versionEnumTypes maps version -> fully qualified proto enum name, for
	// versions where the field is enum-typed.
	versionEnumTypes map[string]string
	enumVersions     []string
}

// FullPath returns "Message.field", the lookup key for this conflict enum.
func (c *ConflictEnumInfo) FullPath() string {
	return c.MessageName + "." + c.FieldName
}

// ProtoEnumType returns the proto enum type used by a version, if that
// version types the field as an enum.
func (c *ConflictEnumInfo) ProtoEnumType(version string) (string, bool) {
	t, ok := c.versionEnumTypes[version]
	return t, ok
}

// EnumVersions returns the versions where the field is enum-typed.
func (c *ConflictEnumInfo) EnumVersions() []string {
	return append([]string(nil), c.enumVersions...)
}

// IsEnumInVersion reports whether a version types the field as an enum.
func (c *ConflictEnumInfo) IsEnumInVersion(version string) bool {
	_, ok := c.versionEnumTypes[version]
	return ok
}

func (c *ConflictEnumInfo) String() string {
	return fmt.Sprintf("ConflictEnum[%s -> %s with %d values]", c.FullPath(), c.EnumName, len(c.Values))
}

// MergedSchema is the immutable result of a merge: every message and enum
// name seen in any version, unified.
type MergedSchema struct {
	versions []string

	messages      []*MergedMessage
	messagesByKey map[string]*MergedMessage
	enums         []*MergedEnum
	enumsByKey    map[string]*MergedEnum

	conflictEnums []*ConflictEnumInfo
	// equivalentEnums maps a qualified nested path ("Product.TaxType") to the
	// top-level enum name it was promoted to.
	equivalentEnums map[string]string
}

func newMergedSchema(versions []string) *MergedSchema {
	return &MergedSchema{
		versions:        append([]string(nil), versions...),
		messagesByKey:   make(map[string]*MergedMessage),
		enumsByKey:      make(map[string]*MergedEnum),
		equivalentEnums: make(map[string]string),
	}
}

// Versions returns the full set of version identifiers considered.
func (s *MergedSchema) Versions() []string {
	return append([]string(nil), s.versions...)
}

func (s *MergedSchema) addMessage(m *MergedMessage) {
	s.messages = append(s.messages, m)
	s.messagesByKey[m.Name] = m
}

func (s *MergedSchema) addEnum(e *MergedEnum) {
	s.enums = append(s.enums, e)
	s.enumsByKey[e.Name] = e
}

// Messages returns the merged messages in first-seen name order.
func (s *MergedSchema) Messages() []*MergedMessage { return s.messages }

// Enums returns the merged top-level enums, promoted equivalents included.
func (s *MergedSchema) Enums() []*MergedEnum { return s.enums }

// Message returns the merged message with the given name.
func (s *MergedSchema) Message(name string) (*MergedMessage, bool) {
	m, ok := s.messagesByKey[name]
	return m, ok
}

// Enum returns the merged top-level enum with the given name.
func (s *MergedSchema) Enum(name string) (*MergedEnum, bool) {
	e, ok := s.enumsByKey[name]
	return e, ok
}

// ConflictEnums returns the synthetic enums created for INT_ENUM conflicts.
func (s *MergedSchema) ConflictEnums() []*ConflictEnumInfo { return s.conflictEnums }

// ConflictEnum returns the conflict enum for a "Message.field" path.
func (s *MergedSchema) ConflictEnum(path string) (*ConflictEnumInfo, bool) {
	for _, c := range s.conflictEnums {
		if c.FullPath() == path {
			return c, true
		}
	}
	return nil, false
}

// EquivalentTopLevelEnum resolves a qualified nested enum path to the
// top-level enum it was promoted to.
func (s *MergedSchema) EquivalentTopLevelEnum(nestedPath string) (string, bool) {
	name, ok := s.equivalentEnums[nestedPath]
	return name, ok
}

// HasEquivalentTopLevelEnum reports whether a nested enum path was promoted.
func (s *MergedSchema) HasEquivalentTopLevelEnum(nestedPath string) bool {
	_, ok := s.equivalentEnums[nestedPath]
	return ok
}

// EquivalentEnumMappings returns a copy of all promotion mappings.
func (s *MergedSchema) EquivalentEnumMappings() map[string]string {
	out := make(map[string]string, len(s.equivalentEnums))
	for k, v := range s.equivalentEnums {
		out[k] = v
	}
	return out
}

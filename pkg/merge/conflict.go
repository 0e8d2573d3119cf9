package merge

import (
	"github.com/protoverse/protomerge/pkg/schema"
)

// ConflictType classifies the type relationship of one field identity across
// versions. The set is closed; consumers branch exhaustively over it.
// Classification never fails: anything unrecognized is INCOMPATIBLE, which is
// a representable state, not an error.
type ConflictType int

const (
	// ConflictNone means all present versions agree on type and cardinality.
	ConflictNone ConflictType = iota
	// ConflictWidening is a 32-bit versus 64-bit integer of the same
	// signedness family (or an integer versus floating point); unified to the
	// wider type.
	ConflictWidening
	// ConflictFloatDouble is float versus double; unified to double.
	ConflictFloatDouble
	// ConflictSignedUnsigned is a signedness or wire-encoding mismatch within
	// the integer family; unified to int64 so large unsigned-32 values stay
	// positive.
	ConflictSignedUnsigned
	// ConflictIntEnum is a 32-bit integer versus an enum; a synthetic unified
	// enum is generated from the enum-typed versions. 64-bit integers do not
	// unify with enums.
	ConflictIntEnum
	// ConflictEnumEnum is two structurally different enum types; unified to
	// the raw int32 discriminant.
	ConflictEnumEnum
	// ConflictStringBytes is string versus bytes; string is the primary
	// accessor, converting as UTF-8 both ways.
	ConflictStringBytes
	// ConflictPrimitiveMessage is a bare scalar versus a wrapper message; the
	// message shape wins.
	ConflictPrimitiveMessage
	// ConflictRepeatedSingle is a cardinality mismatch; reads unify on the
	// repeated shape, mutation is not supported.
	ConflictRepeatedSingle
	// ConflictOptionalRequired is an optional/required label mismatch with
	// otherwise identical types. Reported only when no type conflict exists.
	ConflictOptionalRequired
	// ConflictIncompatible means no unification is possible. The field is
	// still modeled; downstream consumers decide how to surface it.
	ConflictIncompatible
)

var conflictNames = map[ConflictType]string{
	ConflictNone:             "NONE",
	ConflictWidening:         "WIDENING",
	ConflictFloatDouble:      "FLOAT_DOUBLE",
	ConflictSignedUnsigned:   "SIGNED_UNSIGNED",
	ConflictIntEnum:          "INT_ENUM",
	ConflictEnumEnum:         "ENUM_ENUM",
	ConflictStringBytes:      "STRING_BYTES",
	ConflictPrimitiveMessage: "PRIMITIVE_MESSAGE",
	ConflictRepeatedSingle:   "REPEATED_SINGLE",
	ConflictOptionalRequired: "OPTIONAL_REQUIRED",
	ConflictIncompatible:     "INCOMPATIBLE",
}

func (c ConflictType) String() string {
	if name, ok := conflictNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Convertible reports whether values convert losslessly into the unified type
// from every version.
func (c ConflictType) Convertible() bool {
	switch c {
	case ConflictNone, ConflictWidening, ConflictFloatDouble, ConflictSignedUnsigned,
		ConflictIntEnum, ConflictStringBytes, ConflictOptionalRequired:
		return true
	default:
		return false
	}
}

// fieldWithVersion pairs a raw field with the version it came from. Groups
// preserve merge input order, which keeps classification deterministic.
type fieldWithVersion struct {
	version string
	field   *schema.FieldInfo
}

// classify assigns exactly one conflict tag to an aligned field group and
// computes the unified type. The group must be non-empty. Order of versions
// within the group never changes the tag, only which equivalent
// representative is picked for unified type names.
func classify(group []fieldWithVersion) (ConflictType, UnifiedType) {
	first := group[0].field
	if len(group) == 1 {
		return ConflictNone, unifiedOf(first)
	}

	// Cardinality conflicts first: they are orthogonal to element typing and
	// would otherwise masquerade as a type mismatch.
	if hasRepeatedSingleConflict(group) {
		elem := unifiedOf(elementField(group))
		elem.Repeated = true
		return ConflictRepeatedSingle, elem
	}

	// Signedness conflicts are invisible to identity comparison when both
	// sides land in the same family bucket, so they get their own check
	// before the identity-driven classification.
	if hasSignedUnsignedConflict(group) {
		return ConflictSignedUnsigned, UnifiedType{Type: schema.TypeInt64, Repeated: first.IsRepeated()}
	}

	identities := make(map[string]bool)
	for _, fv := range group {
		identities[fv.field.TypeIdentity()] = true
	}

	if len(identities) == 1 {
		if hasOptionalRequiredConflict(group) {
			return ConflictOptionalRequired, unifiedOf(first)
		}
		return ConflictNone, unifiedOf(first)
	}

	// Map fields with diverging value types keep a field-level tag of NONE;
	// the value conflict is classified separately.
	if allMaps(group) {
		return ConflictNone, unifiedOf(first)
	}

	tag, unified := classifyTypeMismatch(group)
	if tag == ConflictNone && hasOptionalRequiredConflict(group) {
		return ConflictOptionalRequired, unified
	}
	return tag, unified
}

// classifyTypeMismatch handles groups whose type identities genuinely differ.
func classifyTypeMismatch(group []fieldWithVersion) (ConflictType, UnifiedType) {
	first := group[0].field
	repeated := first.IsRepeated()

	var hasInt32, hasInt64, hasFloat, hasDouble bool
	var hasEnum, hasMessage, hasScalar, hasString, hasBytes bool
	allEnums := true

	for _, fv := range group {
		f := fv.field
		switch {
		case f.IsEnum():
			hasEnum = true
		case f.IsMessage():
			hasMessage = true
			allEnums = false
		default:
			hasScalar = true
			allEnums = false
		}
		if schema.IsInt32Family(f.Type) {
			hasInt32 = true
		}
		if schema.IsInt64Family(f.Type) {
			hasInt64 = true
		}
		switch f.Type {
		case schema.TypeFloat:
			hasFloat = true
		case schema.TypeDouble:
			hasDouble = true
		case schema.TypeString:
			hasString = true
		case schema.TypeBytes:
			hasBytes = true
		}
	}
	hasAnyInt := hasInt32 || hasInt64

	switch {
	case hasInt32 && !hasInt64 && hasEnum:
		// Only 32-bit integers unify with an enum: the enum discriminant is a
		// 32-bit value. Unified type name is filled in later from the richest
		// enum-typed version; the tag alone is enough here.
		return ConflictIntEnum, UnifiedType{Type: schema.TypeEnum, Repeated: repeated}

	case allEnums:
		return ConflictEnumEnum, UnifiedType{Type: schema.TypeInt32, Repeated: repeated}

	case hasFloat && hasDouble && !hasAnyInt && !hasMessage && !hasEnum:
		return ConflictFloatDouble, UnifiedType{Type: schema.TypeDouble, Repeated: repeated}

	case hasInt32 && hasInt64 && !hasFloat && !hasDouble && !hasMessage && !hasEnum:
		return ConflictWidening, UnifiedType{Type: schema.TypeInt64, Repeated: repeated}

	case hasAnyInt && (hasFloat || hasDouble) && !hasMessage && !hasEnum:
		// Integer widened into floating point.
		wider := schema.TypeDouble
		if hasFloat && !hasDouble {
			wider = schema.TypeFloat
		}
		return ConflictWidening, UnifiedType{Type: wider, Repeated: repeated}

	case hasString && hasBytes && !hasAnyInt && !hasFloat && !hasDouble && !hasMessage && !hasEnum:
		return ConflictStringBytes, UnifiedType{Type: schema.TypeString, Repeated: repeated}

	case hasMessage && (hasScalar || hasEnum):
		// The message shape wins; scalar versions are wrapped on read.
		for _, fv := range group {
			if fv.field.IsMessage() {
				return ConflictPrimitiveMessage, UnifiedType{
					Type:     schema.TypeMessage,
					TypeName: fv.field.TypeIdentity(),
					Repeated: repeated,
				}
			}
		}
		fallthrough

	default:
		return ConflictIncompatible, unifiedOf(first)
	}
}

// classifyMapValue classifies a value-type divergence across map fields.
// Returns ConflictNone when all value types agree or not all fields are maps.
func classifyMapValue(group []fieldWithVersion) (ConflictType, *UnifiedType) {
	if !allMaps(group) {
		return ConflictNone, nil
	}

	identities := make(map[string]bool)
	var hasInt32, hasInt64, hasEnumValue bool
	for _, fv := range group {
		mi := fv.field.Map
		id := mi.ValueTypeName
		if id == "" {
			id = mi.ValueType.String()
		}
		identities[id] = true
		if schema.IsInt32Family(mi.ValueType) {
			hasInt32 = true
		}
		if schema.IsInt64Family(mi.ValueType) {
			hasInt64 = true
		}
		if mi.HasEnumValue() {
			hasEnumValue = true
		}
	}
	if len(identities) <= 1 {
		return ConflictNone, nil
	}

	switch {
	case hasInt32 && !hasInt64 && hasEnumValue:
		return ConflictIntEnum, &UnifiedType{Type: schema.TypeInt32}
	case hasInt32 && hasInt64:
		return ConflictWidening, &UnifiedType{Type: schema.TypeInt64}
	default:
		return ConflictIncompatible, nil
	}
}

func hasRepeatedSingleConflict(group []fieldWithVersion) bool {
	var hasRepeated, hasSingular, hasMap bool
	for _, fv := range group {
		if fv.field.IsMap() {
			hasMap = true
		} else if fv.field.IsRepeated() {
			hasRepeated = true
		} else {
			hasSingular = true
		}
	}
	return hasRepeated && hasSingular && !hasMap
}

func hasOptionalRequiredConflict(group []fieldWithVersion) bool {
	var hasOptional, hasRequired bool
	for _, fv := range group {
		if fv.field.IsOptionalLabel() {
			hasOptional = true
		} else {
			hasRequired = true
		}
	}
	return hasOptional && hasRequired
}

// hasSignedUnsignedConflict reports integer groups whose wire types differ in
// signedness or encoding: int32 vs uint32, int64 vs fixed64, but also int32
// vs sint32, which share a value range yet encode differently on the wire.
func hasSignedUnsignedConflict(group []fieldWithVersion) bool {
	types := make(map[schema.FieldType]bool)
	for _, fv := range group {
		if fv.field.IsEnum() || fv.field.IsMessage() || fv.field.IsMap() {
			return false
		}
		types[fv.field.Type] = true
	}
	if len(types) <= 1 {
		return false
	}
	for t := range types {
		if !schema.IsInteger(t) {
			return false
		}
	}

	var signed32, unsigned32, signed64, unsigned64 bool
	signedVariants32 := 0
	signedVariants64 := 0
	for t := range types {
		switch {
		case schema.IsSigned32(t):
			signed32 = true
			signedVariants32++
		case schema.IsUnsigned32(t):
			unsigned32 = true
		case schema.IsSigned64(t):
			signed64 = true
			signedVariants64++
		case schema.IsUnsigned64(t):
			unsigned64 = true
		}
	}

	if signed32 && unsigned32 {
		return true
	}
	if signed64 && unsigned64 {
		return true
	}
	// Same signedness, different encodings (int32 vs sint32 vs sfixed32).
	return signedVariants32 > 1 || signedVariants64 > 1
}

func allMaps(group []fieldWithVersion) bool {
	for _, fv := range group {
		if !fv.field.IsMap() {
			return false
		}
	}
	return true
}

// elementField picks the field whose type is the base element type for a
// REPEATED_SINGLE group: the singular side carries it directly.
func elementField(group []fieldWithVersion) *schema.FieldInfo {
	for _, fv := range group {
		if !fv.field.IsRepeated() {
			return fv.field
		}
	}
	return group[0].field
}

func unifiedOf(f *schema.FieldInfo) UnifiedType {
	u := UnifiedType{Type: f.Type, Repeated: f.IsRepeated() && !f.IsMap()}
	if f.TypeName != "" {
		u.TypeName = f.TypeIdentity()
	}
	return u
}

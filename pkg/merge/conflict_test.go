package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protoverse/protomerge/pkg/schema"
)

func scalar(name string, number int, t schema.FieldType) *schema.FieldInfo {
	return &schema.FieldInfo{
		Name:       name,
		CamelName:  schema.CamelCase(name),
		Number:     number,
		Type:       t,
		OneofIndex: -1,
	}
}

func repeated(name string, number int, t schema.FieldType) *schema.FieldInfo {
	f := scalar(name, number, t)
	f.Label = schema.LabelRepeated
	return f
}

func typed(name string, number int, t schema.FieldType, typeName string) *schema.FieldInfo {
	f := scalar(name, number, t)
	f.TypeName = typeName
	return f
}

func group(fields ...*schema.FieldInfo) []fieldWithVersion {
	g := make([]fieldWithVersion, len(fields))
	for i, f := range fields {
		g[i] = fieldWithVersion{version: "v" + string(rune('1'+i)), field: f}
	}
	return g
}

func TestClassifyTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		group   []fieldWithVersion
		tag     ConflictType
		unified string
	}{
		{
			name:    "identical types",
			group:   group(scalar("amount", 1, schema.TypeInt32), scalar("amount", 1, schema.TypeInt32)),
			tag:     ConflictNone,
			unified: "int32",
		},
		{
			name:    "int32 to int64 widening",
			group:   group(scalar("amount", 1, schema.TypeInt32), scalar("amount", 1, schema.TypeInt64)),
			tag:     ConflictWidening,
			unified: "int64",
		},
		{
			name:    "int to double widening",
			group:   group(scalar("rate", 1, schema.TypeInt32), scalar("rate", 1, schema.TypeDouble)),
			tag:     ConflictWidening,
			unified: "double",
		},
		{
			name:    "float double",
			group:   group(scalar("weight", 1, schema.TypeFloat), scalar("weight", 1, schema.TypeDouble)),
			tag:     ConflictFloatDouble,
			unified: "double",
		},
		{
			name:    "signed unsigned 32",
			group:   group(scalar("count", 1, schema.TypeInt32), scalar("count", 1, schema.TypeUint32)),
			tag:     ConflictSignedUnsigned,
			unified: "int64",
		},
		{
			name:    "signed unsigned 64",
			group:   group(scalar("count", 1, schema.TypeInt64), scalar("count", 1, schema.TypeFixed64)),
			tag:     ConflictSignedUnsigned,
			unified: "int64",
		},
		{
			name:    "varint vs zigzag encoding",
			group:   group(scalar("delta", 1, schema.TypeInt32), scalar("delta", 1, schema.TypeSint32)),
			tag:     ConflictSignedUnsigned,
			unified: "int64",
		},
		{
			name: "int enum",
			group: group(
				scalar("unit_type", 1, schema.TypeInt32),
				typed("unit_type", 1, schema.TypeEnum, "shop.v2.UnitType")),
			tag: ConflictIntEnum,
		},
		{
			name: "int64 enum is incompatible",
			group: group(
				scalar("unit_type", 1, schema.TypeInt64),
				typed("unit_type", 1, schema.TypeEnum, "shop.v2.UnitType")),
			tag:     ConflictIncompatible,
			unified: "int64",
		},
		{
			name: "enum enum",
			group: group(
				typed("status", 1, schema.TypeEnum, "shop.v1.OldStatus"),
				typed("status", 1, schema.TypeEnum, "shop.v2.NewStatus")),
			tag:     ConflictEnumEnum,
			unified: "int32",
		},
		{
			name:    "string bytes",
			group:   group(scalar("token", 1, schema.TypeString), scalar("token", 1, schema.TypeBytes)),
			tag:     ConflictStringBytes,
			unified: "string",
		},
		{
			name: "primitive message",
			group: group(
				scalar("price", 1, schema.TypeInt32),
				typed("price", 1, schema.TypeMessage, "shop.v2.Money")),
			tag:     ConflictPrimitiveMessage,
			unified: "Money",
		},
		{
			name:    "repeated single",
			group:   group(scalar("tag", 1, schema.TypeString), repeated("tag", 1, schema.TypeString)),
			tag:     ConflictRepeatedSingle,
			unified: "repeated string",
		},
		{
			name:    "string vs int is incompatible",
			group:   group(scalar("id", 1, schema.TypeString), scalar("id", 1, schema.TypeInt32)),
			tag:     ConflictIncompatible,
			unified: "string",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tag, unified := classify(tc.group)
			assert.Equal(t, tc.tag, tag)
			if tc.unified != "" {
				assert.Equal(t, tc.unified, unified.String())
			}
		})
	}
}

func TestClassifyIsCommutative(t *testing.T) {
	pairs := [][2]*schema.FieldInfo{
		{scalar("a", 1, schema.TypeInt32), scalar("a", 1, schema.TypeInt64)},
		{scalar("a", 1, schema.TypeFloat), scalar("a", 1, schema.TypeDouble)},
		{scalar("a", 1, schema.TypeInt32), scalar("a", 1, schema.TypeUint32)},
		{scalar("a", 1, schema.TypeString), scalar("a", 1, schema.TypeBytes)},
		{scalar("a", 1, schema.TypeInt32), typed("a", 1, schema.TypeEnum, "v.E")},
		{scalar("a", 1, schema.TypeInt32), typed("a", 1, schema.TypeMessage, "v.M")},
		{scalar("a", 1, schema.TypeString), repeated("a", 1, schema.TypeString)},
		{scalar("a", 1, schema.TypeBool), scalar("a", 1, schema.TypeString)},
	}

	for _, p := range pairs {
		forward, _ := classify(group(p[0], p[1]))
		backward, _ := classify(group(p[1], p[0]))
		assert.Equal(t, forward, backward, "classification of %s vs %s must not depend on version order",
			p[0].TypeIdentity(), p[1].TypeIdentity())
	}
}

func TestClassifySingleVersionIsAlwaysNone(t *testing.T) {
	for _, f := range []*schema.FieldInfo{
		scalar("a", 1, schema.TypeInt32),
		repeated("b", 2, schema.TypeString),
		typed("c", 3, schema.TypeMessage, "v.Money"),
	} {
		tag, _ := classify(group(f))
		assert.Equal(t, ConflictNone, tag)
	}
}

func TestClassifyNoneImpliesSingleTypeAndCardinality(t *testing.T) {
	tag, _ := classify(group(scalar("a", 1, schema.TypeInt32), repeated("a", 1, schema.TypeInt32)))
	assert.NotEqual(t, ConflictNone, tag, "cardinality mismatch must not classify as NONE")
}

func TestClassifyRepeatedElementWise(t *testing.T) {
	tag, unified := classify(group(
		repeated("amounts", 1, schema.TypeInt32),
		repeated("amounts", 1, schema.TypeInt64)))
	assert.Equal(t, ConflictWidening, tag)
	assert.Equal(t, "repeated int64", unified.String())
}

func TestRepeatedWithElementConflictIsReadOnly(t *testing.T) {
	f := newMergedField("amounts", 1)
	f.addVersionField("v1", repeated("amounts", 1, schema.TypeInt32))
	f.addVersionField("v2", repeated("amounts", 1, schema.TypeInt64))
	f.Conflict, f.Unified = classify(group(
		repeated("amounts", 1, schema.TypeInt32),
		repeated("amounts", 1, schema.TypeInt64)))

	assert.False(t, f.MutationSupported())

	plain := newMergedField("amount", 2)
	plain.Conflict = ConflictWidening
	plain.Unified = UnifiedType{Type: schema.TypeInt64}
	assert.True(t, plain.MutationSupported())
}

func TestClassifyOptionalRequired(t *testing.T) {
	required := scalar("id", 1, schema.TypeString)
	required.Label = schema.LabelRequired

	tag, _ := classify(group(scalar("id", 1, schema.TypeString), required))
	assert.Equal(t, ConflictOptionalRequired, tag)

	// A type conflict takes precedence over the label mismatch.
	requiredLong := scalar("id", 1, schema.TypeInt64)
	requiredLong.Label = schema.LabelRequired
	tag, _ = classify(group(scalar("id", 1, schema.TypeInt32), requiredLong))
	assert.Equal(t, ConflictWidening, tag)
}

func TestClassifyMapValueConflict(t *testing.T) {
	mapField := func(valueType schema.FieldType, valueTypeName string) *schema.FieldInfo {
		f := repeated("stock", 1, schema.TypeMessage)
		f.TypeName = "shop.Inventory.StockEntry"
		f.Map = &schema.MapInfo{KeyType: schema.TypeString, ValueType: valueType, ValueTypeName: valueTypeName}
		return f
	}

	g := group(mapField(schema.TypeInt32, ""), mapField(schema.TypeInt64, ""))
	fieldTag, _ := classify(g)
	assert.Equal(t, ConflictNone, fieldTag, "map value conflicts stay off the field-level tag")

	valueTag, unified := classifyMapValue(g)
	assert.Equal(t, ConflictWidening, valueTag)
	require.NotNil(t, unified)
	assert.Equal(t, schema.TypeInt64, unified.Type)

	g = group(mapField(schema.TypeInt32, ""), mapField(schema.TypeEnum, "shop.v2.UnitType"))
	valueTag, unified = classifyMapValue(g)
	assert.Equal(t, ConflictIntEnum, valueTag)
	require.NotNil(t, unified)
	assert.Equal(t, schema.TypeInt32, unified.Type)

	// 64-bit integer values do not unify with an enum discriminant.
	g = group(mapField(schema.TypeInt64, ""), mapField(schema.TypeEnum, "shop.v2.UnitType"))
	valueTag, unified = classifyMapValue(g)
	assert.Equal(t, ConflictIncompatible, valueTag)
	assert.Nil(t, unified)
}

func TestWideningConversionSemantics(t *testing.T) {
	// An unsigned-32 bit pattern above 2^31-1 must stay a large positive
	// value after unification.
	assert.Equal(t, int64(3_000_000_000), WidenUnsigned32(3_000_000_000))
	assert.Equal(t, int64(-100), WidenSigned32(-100))
	assert.Equal(t, float64(1.5), WidenFloat(1.5))

	_, err := NarrowToSigned32("amount", 3_000_000_000)
	assert.Error(t, err)
	v, err := NarrowToUnsigned32("amount", 3_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint32(3_000_000_000), v)
	_, err = NarrowToUnsigned32("amount", -1)
	assert.Error(t, err)

	_, err = NarrowToFloat("rate", 1e300)
	assert.Error(t, err)
	f, err := NarrowToFloat("rate", 2.5)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), f)
}

func TestConflictTypeStrings(t *testing.T) {
	assert.Equal(t, "NONE", ConflictNone.String())
	assert.Equal(t, "SIGNED_UNSIGNED", ConflictSignedUnsigned.String())
	assert.Equal(t, "INCOMPATIBLE", ConflictIncompatible.String())
	assert.True(t, ConflictWidening.Convertible())
	assert.False(t, ConflictIncompatible.Convertible())
	assert.False(t, ConflictRepeatedSingle.Convertible())
}

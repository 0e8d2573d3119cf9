package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func scalarField(name string, number int32, t descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   t.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalarField(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func TestNewMessageInfoBasics(t *testing.T) {
	desc := &descriptorpb.DescriptorProto{
		Name: proto.String("Order"),
		Field: []*descriptorpb.FieldDescriptorProto{
			scalarField("order_id", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			scalarField("total_cents", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
			messageField("payment", 3, ".shop.v1.Payment"),
		},
	}

	m := NewMessageInfo(desc, "shop.v1", "shop/v1/order.proto")
	assert.Equal(t, "Order", m.Name)
	assert.Equal(t, "shop.v1.Order", m.FullName)
	require.Len(t, m.Fields(), 3)

	id, ok := m.Field(1)
	require.True(t, ok)
	assert.Equal(t, "OrderId", id.CamelName)
	assert.True(t, id.IsScalar())
	assert.Equal(t, "string", id.TypeIdentity())

	pay, ok := m.FieldByName("payment")
	require.True(t, ok)
	assert.True(t, pay.IsMessage())
	assert.Equal(t, "shop.v1.Payment", pay.TypeName)
	assert.Equal(t, "Payment", pay.TypeIdentity())
}

func TestProto3OptionalIsNotOneofMembership(t *testing.T) {
	desc := &descriptorpb.DescriptorProto{
		Name: proto.String("Customer"),
		Field: []*descriptorpb.FieldDescriptorProto{
			func() *descriptorpb.FieldDescriptorProto {
				f := scalarField("nickname", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)
				f.OneofIndex = proto.Int32(0)
				f.Proto3Optional = proto.Bool(true)
				return f
			}(),
			func() *descriptorpb.FieldDescriptorProto {
				f := scalarField("email", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING)
				f.OneofIndex = proto.Int32(1)
				return f
			}(),
			func() *descriptorpb.FieldDescriptorProto {
				f := scalarField("phone", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING)
				f.OneofIndex = proto.Int32(1)
				return f
			}(),
		},
		OneofDecl: []*descriptorpb.OneofDescriptorProto{
			{Name: proto.String("_nickname")},
			{Name: proto.String("contact")},
		},
	}

	m := NewMessageInfo(desc, "shop.v1", "shop/v1/customer.proto")

	nick, _ := m.FieldByName("nickname")
	assert.False(t, nick.InOneof())
	assert.True(t, nick.Proto3Optional)

	// Only the real union survives; the synthetic _nickname shell is dropped.
	require.Len(t, m.Oneofs(), 1)
	contact := m.Oneofs()[0]
	assert.Equal(t, "contact", contact.Name)
	assert.Equal(t, []int{2, 3}, contact.FieldNumbers())
}

func TestMapFieldExtraction(t *testing.T) {
	desc := &descriptorpb.DescriptorProto{
		Name: proto.String("Inventory"),
		Field: []*descriptorpb.FieldDescriptorProto{
			func() *descriptorpb.FieldDescriptorProto {
				f := messageField("stock", 1, ".shop.v1.Inventory.StockEntry")
				f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
				return f
			}(),
		},
		NestedType: []*descriptorpb.DescriptorProto{
			{
				Name:    proto.String("StockEntry"),
				Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
					scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				},
			},
		},
	}

	m := NewMessageInfo(desc, "shop.v1", "shop/v1/inventory.proto")
	// The entry message is folded into the map field, not kept as a nested type.
	assert.Empty(t, m.NestedMessages())

	stock, ok := m.FieldByName("stock")
	require.True(t, ok)
	require.True(t, stock.IsMap())
	assert.False(t, stock.IsMessage())
	assert.Equal(t, TypeString, stock.Map.KeyType)
	assert.Equal(t, TypeInt32, stock.Map.ValueType)
	assert.Equal(t, "map<string, int32>", stock.FormatType())
}

func TestEnumEquivalence(t *testing.T) {
	base := &EnumInfo{Name: "TaxType", Values: []EnumValue{
		{Name: "TAX_TYPE_UNSPECIFIED", Number: 0},
		{Name: "TAX_TYPE_VAT", Number: 1},
	}}

	same := &EnumInfo{Name: "TaxType", Values: []EnumValue{
		{Name: "TAX_TYPE_VAT", Number: 1},
		{Name: "TAX_TYPE_UNSPECIFIED", Number: 0},
	}}
	assert.True(t, base.EquivalentTo(same), "order must not matter")

	renumbered := &EnumInfo{Name: "TaxType", Values: []EnumValue{
		{Name: "TAX_TYPE_UNSPECIFIED", Number: 0},
		{Name: "TAX_TYPE_VAT", Number: 2},
	}}
	assert.False(t, base.EquivalentTo(renumbered))

	extra := &EnumInfo{Name: "TaxType", Values: []EnumValue{
		{Name: "TAX_TYPE_UNSPECIFIED", Number: 0},
		{Name: "TAX_TYPE_VAT", Number: 1},
		{Name: "TAX_TYPE_SALES", Number: 2},
	}}
	assert.False(t, base.EquivalentTo(extra))

	renamed := &EnumInfo{Name: "TaxKind", Values: base.Values}
	assert.False(t, base.EquivalentTo(renamed))
}

func TestCamelCase(t *testing.T) {
	assert.Equal(t, "OrderId", CamelCase("order_id"))
	assert.Equal(t, "TaxType", CamelCase("tax_type"))
	assert.Equal(t, "A", CamelCase("a"))
	assert.Equal(t, "XY", CamelCase("x_y"))
}

func TestAnalyzerSkipsWellKnownTypes(t *testing.T) {
	set := &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{
			{
				Name:    proto.String("google/protobuf/timestamp.proto"),
				Package: proto.String("google.protobuf"),
				MessageType: []*descriptorpb.DescriptorProto{
					{Name: proto.String("Timestamp")},
				},
			},
			{
				Name:    proto.String("shop/v1/order.proto"),
				Package: proto.String("shop.v1"),
				MessageType: []*descriptorpb.DescriptorProto{
					{Name: proto.String("Order")},
				},
				EnumType: []*descriptorpb.EnumDescriptorProto{
					{Name: proto.String("Status"), Value: []*descriptorpb.EnumValueDescriptorProto{
						{Name: proto.String("STATUS_UNSPECIFIED"), Number: proto.Int32(0)},
					}},
				},
			},
		},
	}

	a := &Analyzer{}
	s := a.Analyze(set, "v1")
	assert.Equal(t, "v1", s.Version())
	assert.Equal(t, []string{"Order"}, s.MessageNames())
	assert.Equal(t, []string{"Status"}, s.EnumNames())

	_, ok := s.Message("Timestamp")
	assert.False(t, ok)
}

func TestVersionSchemaReplaceKeepsOrder(t *testing.T) {
	s := NewVersionSchema("v2")
	s.AddMessage(&MessageInfo{Name: "A"})
	s.AddMessage(&MessageInfo{Name: "B"})
	s.AddMessage(&MessageInfo{Name: "A", FullName: "pkg.A"})

	assert.Equal(t, []string{"A", "B"}, s.MessageNames())
	a, _ := s.Message("A")
	assert.Equal(t, "pkg.A", a.FullName)
}

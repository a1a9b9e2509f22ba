package mapping

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"struct-mapper/store"
	"struct-mapper/warehouse"
)

func newCustomer(email string) (*warehouse.Customer, error) {
	if email == "" {
		return nil, errors.New("email required")
	}

	return &warehouse.Customer{Email: email}, nil
}

// demoRegistries registers the demo domain types and the functions the
// demo rule files reference.
func demoRegistries(t *testing.T) (*TypeRegistry, *TransformRegistry) {
	t.Helper()

	types := NewTypeRegistry()
	require.NoError(t, types.Register(
		reflect.TypeFor[store.Customer](),
		reflect.TypeFor[store.Address](),
		reflect.TypeFor[*store.Order](),
		reflect.TypeFor[store.OrderItem](),
		reflect.TypeFor[store.CardPayment](),
		reflect.TypeFor[store.TransferPayment](),
		reflect.TypeFor[warehouse.Customer](),
		reflect.TypeFor[warehouse.Address](),
		reflect.TypeFor[warehouse.Order](),
		reflect.TypeFor[warehouse.OrderItem](),
		reflect.TypeFor[warehouse.CardPayment](),
		reflect.TypeFor[warehouse.TransferPayment](),
		reflect.TypeFor[warehouse.Payment](),
	))

	transforms, err := NewTransformRegistry(map[string]any{
		"fullName":    store.FullName,
		"orderTotal":  store.Total,
		"newCustomer": newCustomer,
	})
	require.NoError(t, err)

	return types, transforms
}

func TestTypeRegistryResolve(t *testing.T) {
	types, _ := demoRegistries(t)

	tests := []struct {
		id   string
		want reflect.Type
	}{
		{"store.Order", reflect.TypeFor[store.Order]()},
		{"struct-mapper/warehouse.Order", reflect.TypeFor[warehouse.Order]()},
		{"OrderItem", nil}, // ambiguous
		{"Payment", reflect.TypeFor[warehouse.Payment]()},
		{"*store.Customer", reflect.TypeFor[*store.Customer]()},
		{"[]*warehouse.OrderItem", reflect.TypeFor[[]*warehouse.OrderItem]()},
		{"map[string][]store.OrderItem", reflect.TypeFor[map[string][]store.OrderItem]()},
		{"int64", reflect.TypeFor[int64]()},
		{"time.Time", reflect.TypeFor[time.Time]()},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := types.Resolve(tt.id)
			if tt.want == nil {
				require.ErrorIs(t, err, ErrAmbiguousType)
				assert.Contains(t, err.Error(), "struct-mapper/store.OrderItem, struct-mapper/warehouse.OrderItem")

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTypeRegistryErrors(t *testing.T) {
	types, _ := demoRegistries(t)

	for _, id := range []string{"", "store.Missing", "Missing", "map[string]int", "map[[]int]string", "[]Nope"} {
		_, err := types.Resolve(id)
		if id == "map[string]int" {
			assert.NoError(t, err, id)
			continue
		}

		assert.Error(t, err, id)
	}

	_, err := types.Resolve("map[[]int]string")
	require.ErrorIs(t, err, ErrUnknownType)
	assert.Contains(t, err.Error(), "not comparable")

	err = types.Register(reflect.TypeFor[[]store.Order]())
	require.ErrorIs(t, err, ErrUnknownType)

	// registering twice is harmless
	require.NoError(t, types.Register(reflect.TypeFor[store.Order]()))
	assert.Contains(t, types.Names(), "store.Order")
	assert.True(t, IsBasicTypeName("int"))
	assert.False(t, IsBasicTypeName("time.Time"))
}

func TestTransformRegistry(t *testing.T) {
	_, registry := demoRegistries(t)

	assert.Equal(t, []string{"fullName", "newCustomer", "orderTotal"}, registry.Names())
	assert.True(t, registry.Has("fullName"))
	assert.False(t, registry.Has("missing"))
	assert.Nil(t, registry.Get("missing"))

	vt := registry.Get("fullName")
	require.NotNil(t, vt)
	assert.Nil(t, vt.Def)
	assert.Equal(t, "fullName(string, string) string", vt.Signature())
	assert.Equal(t, "newCustomer(string) (*warehouse.Customer, error)", registry.Get("newCustomer").Signature())
}

func TestTransformRegistryRejects(t *testing.T) {
	tests := []struct {
		name string
		fn   any
	}{
		{"nil", nil},
		{"not a function", 42},
		{"no result", func(string) {}},
		{"second result not error", func(string) (string, int) { return "", 0 }},
		{"three results", func() (int, int, error) { return 0, 0, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransformRegistry(map[string]any{"bad": tt.fn})
			require.ErrorIs(t, err, ErrInvalidTransform)
		})
	}
}

func TestTransformDeclare(t *testing.T) {
	types, registry := demoRegistries(t)

	defs := []TransformDef{
		{Name: "fullName", SourceType: "string", TargetType: "string", Description: "joins names"},
		{Name: "orderTotal", SourceType: "store.Order", TargetType: "int64"},
	}

	assert.Empty(t, registry.Declare(defs, types))
	require.NotNil(t, registry.Get("fullName").Def)
	assert.Equal(t, "joins names", registry.Get("fullName").Def.Description)

	errs := registry.Declare([]TransformDef{
		{Name: "missing"},
		{Name: "fullName", SourceType: "int"},
		{Name: "orderTotal", TargetType: "string"},
		{Name: "newCustomer", SourceType: "store.Nope"},
	}, types)

	require.Len(t, errs, 4)
	require.ErrorIs(t, errs[0], ErrInvalidTransform)
	assert.Contains(t, errs[0].Error(), "declared but not registered")
	assert.Contains(t, errs[1].Error(), "does not take int")
	assert.Contains(t, errs[2].Error(), "returns int64, declared string")
	require.ErrorIs(t, errs[3], ErrUnknownType)
}

func TestGenerateTransformName(t *testing.T) {
	tests := []struct {
		sources  StringArray
		targets  StringArray
		expected string
	}{
		{StringArray{"FirstName", "LastName"}, StringArray{"FullName"}, "FirstNameLastNameToFullName"},
		{StringArray{"Address.City"}, StringArray{"City"}, "CityToCity"},
		{StringArray{"Items[].SKU"}, StringArray{"SKUs"}, "SKUToSKUs"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateTransformName(tt.sources, tt.targets))
		})
	}
}

func TestGenerateStub(t *testing.T) {
	stub := GenerateStub("fullName", []string{"string", ""}, "")

	assert.Equal(t, `// fullName is registered with options.WithTransform("fullName", fullName).
func fullName(v1 string, v2 any) (any, error) {
	panic("not implemented")
}`, stub)
}

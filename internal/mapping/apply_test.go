package mapping

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"struct-mapper/internal/datasource"
	"struct-mapper/internal/plan"
	"struct-mapper/node"
	"struct-mapper/options"
	"struct-mapper/primitive"
	"struct-mapper/store"
	"struct-mapper/warehouse"
)

func applyYAML(t *testing.T, yaml string) *plan.Rules {
	t.Helper()

	mf, err := Parse([]byte(yaml))
	require.NoError(t, err)

	types, transforms := demoRegistries(t)
	rules := plan.NewRules()

	require.NoError(t, Apply(mf, types, transforms, rules))

	return rules
}

func TestApply(t *testing.T) {
	rules := applyYAML(t, orderRulesYAML)

	orderPair := node.Pair{Src: reflect.TypeFor[store.Order](), Dst: reflect.TypeFor[warehouse.Order]()}
	pr := rules.Pairs[orderPair]
	require.NotNil(t, pr)

	assert.Equal(t, []datasource.Configured{{Origin: datasource.Origin121, Paths: []string{"Number"}}}, pr.Members["OrderNumber"])

	status := pr.Members["Status"]
	require.Len(t, status, 2)
	assert.Equal(t, datasource.Configured{Origin: datasource.OriginFields, Constant: "pending", HasConstant: true}, status[0])
	assert.Equal(t, datasource.Configured{Origin: datasource.OriginFields, Paths: []string{"Number"}}, status[1])

	total := pr.Members["TotalAmount"]
	require.Len(t, total, 1)
	assert.Equal(t, "orderTotal", total[0].Label)
	assert.Empty(t, total[0].Paths)
	require.True(t, total[0].Func.IsValid())
	assert.Equal(t, reflect.TypeOf(store.Total), total[0].Func.Type())

	assert.Contains(t, pr.Ignore, "Warehouse")
	assert.Equal(t, "ID", rules.Identities[reflect.TypeFor[store.Order]()])
	assert.Equal(t, "ID", rules.Identities[reflect.TypeFor[warehouse.Order]()])
	assert.Equal(t, []node.Pair{{Src: reflect.TypeFor[store.CardPayment](), Dst: reflect.TypeFor[warehouse.CardPayment]()}}, rules.Derived)

	customer := rules.Pairs[node.Pair{Src: reflect.TypeFor[store.Customer](), Dst: reflect.TypeFor[warehouse.Customer]()}]
	require.NotNil(t, customer)

	fullName := customer.Members["FullName"]
	require.Len(t, fullName, 1)
	assert.Equal(t, datasource.OriginFields, fullName[0].Origin)
	assert.Equal(t, []string{"FirstName", "LastName"}, fullName[0].Paths)
	assert.Equal(t, "fullName", fullName[0].Label)

	assert.Equal(t, []datasource.Configured{{Origin: datasource.OriginAuto, Paths: []string{"Email"}}}, customer.Members["Email"])
}

func TestApplyPointerTypes(t *testing.T) {
	// pairs are keyed by the pointed-to types
	rules := applyYAML(t, `
mappings:
  - source: "*store.Customer"
    target: "*warehouse.Customer"
    ignore: [Orders]
`)

	pr := rules.Pairs[node.Pair{Src: reflect.TypeFor[store.Customer](), Dst: reflect.TypeFor[warehouse.Customer]()}]
	require.NotNil(t, pr)
	assert.Contains(t, pr.Ignore, "Orders")
}

func TestApplyFactory(t *testing.T) {
	rules := applyYAML(t, `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    create:
      func: newCustomer
      params: [contact]
    121:
      Email: contact
`)

	factories := rules.Factories[reflect.TypeFor[warehouse.Customer]()]
	require.Len(t, factories, 1)
	assert.True(t, factories[0].Consumes("contact"))
}

func TestApplyInvalid(t *testing.T) {
	mf, err := Parse([]byte(`
mappings:
  - source: store.Order
    target: warehouse.Order
    ignore: [Depot]
  - source: store.Customer
    target: warehouse.Customer
    ignore: [Orders]
`))
	require.NoError(t, err)

	types, transforms := demoRegistries(t)
	rules := plan.NewRules()

	err = Apply(mf, types, transforms, rules)
	require.ErrorIs(t, err, ErrInvalidRules)
	assert.Contains(t, err.Error(), "Depot")

	// nothing is applied from a file with errors
	assert.Empty(t, rules.Pairs)
}

func TestApplyCompiles(t *testing.T) {
	rules := applyYAML(t, orderRulesYAML)

	settings, err := options.Build(options.WithCategories(primitive.CategoryAll))
	require.NoError(t, err)

	compiler, err := plan.NewCompiler(settings, rules)
	require.NoError(t, err)

	p, err := compiler.Compile(reflect.TypeFor[*store.Customer](), reflect.TypeFor[*warehouse.Customer](), plan.CreateNew)
	require.NoError(t, err)

	src := store.Sample()

	var out *warehouse.Customer
	require.NoError(t, p.Execute(reflect.ValueOf(src), reflect.ValueOf(&out).Elem()))
	require.NotNil(t, out)

	assert.Equal(t, "Ada Lovelace", out.FullName)
	assert.Equal(t, "ada@example.com", out.Email)
	require.Len(t, out.Orders, 2)

	first := out.Orders[0]
	assert.Same(t, out, first.Customer)
	assert.Equal(t, "A-100", first.OrderNumber)
	assert.Equal(t, "pending", first.Status)
	assert.Equal(t, store.Total(*src.Orders[0]), first.TotalAmount)
	assert.Equal(t, "1843-09-01T10:00:00Z", first.OrderedAt)
	assert.Equal(t, warehouse.CardPayment{Last4: "1843", Cents: 126000}, first.Payment)
	assert.Empty(t, first.Warehouse)

	assert.Nil(t, out.Orders[1].Payment)
}

func TestSettingsOptions(t *testing.T) {
	var none *SettingsDef

	opts, err := none.Options()
	require.NoError(t, err)
	assert.Empty(t, opts)

	strict, suggestions := true, 7

	def := &SettingsDef{
		Strict:         &strict,
		Categories:     []string{"safe_number", "datetime"},
		IdentityNames:  []string{"SKU"},
		MaxSuggestions: &suggestions,
	}

	opts, err = def.Options()
	require.NoError(t, err)

	settings, err := options.Build(opts...)
	require.NoError(t, err)

	assert.True(t, settings.Strict)
	assert.Equal(t, primitive.CategorySafeNumber|primitive.CategoryDatetime, settings.Categories)
	assert.Equal(t, []string{"SKU"}, settings.IdentityNames)
	assert.Equal(t, 7, settings.MaxSuggestions)

	_, err = (&SettingsDef{Categories: []string{"bogus"}}).Options()
	require.ErrorIs(t, err, primitive.ErrUnknownCategory)
}

func TestSettingsOptionsOverride(t *testing.T) {
	mf, err := Parse([]byte(`
settings:
  strict: false
  max_suggestions: 0
  identity_names: [SKU]
`))
	require.NoError(t, err)

	fileOpts, err := mf.Settings.Options()
	require.NoError(t, err)

	base := []options.Option{
		options.WithStrict(),
		options.WithMaxSuggestions(5),
		options.WithIdentityNames("Code", "ID"),
	}

	settings, err := options.Build(append(base, fileOpts...)...)
	require.NoError(t, err)

	assert.False(t, settings.Strict)
	assert.Negative(t, settings.MaxSuggestions, "zero disables suggestions")
	assert.Equal(t, []string{"SKU"}, settings.IdentityNames)

	unset, err := (&SettingsDef{}).Options()
	require.NoError(t, err)

	settings, err = options.Build(append(base, unset...)...)
	require.NoError(t, err)

	assert.True(t, settings.Strict, "unset fields keep the options")
	assert.Equal(t, 5, settings.MaxSuggestions)
	assert.Equal(t, []string{"Code", "ID"}, settings.IdentityNames)
}

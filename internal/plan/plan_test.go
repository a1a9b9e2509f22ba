package plan

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"struct-mapper/internal/creation"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/diagnostic"
	"struct-mapper/options"
	"struct-mapper/primitive"
)

type address struct {
	Street string
	City   string
}

type customer struct {
	Name    string
	Address *address
}

type lineItem struct {
	ID  int
	SKU string
	Qty int
}

type order struct {
	ID       int
	Customer *customer
	Items    []lineItem
	Tags     map[string]int
	Notes    []string
	Status   string
}

type status string

type addressDTO struct {
	Street string
	City   string
}

type customerDTO struct {
	Name    string
	Address addressDTO
}

type lineItemDTO struct {
	ID  int64
	SKU string
	Qty uint16
}

type orderDTO struct {
	ID           string
	CustomerName string
	Customer     *customerDTO
	Items        []*lineItemDTO
	Tags         map[string]int64
	Notes        []string
	Status       status
}

func compilePlan(t *testing.T, src, dst reflect.Type, rs RuleSet, rules *Rules, opts ...options.Option) *Plan {
	t.Helper()

	settings, err := options.Build(opts...)
	require.NoError(t, err)

	c, err := NewCompiler(settings, rules)
	require.NoError(t, err)

	p, err := c.Compile(src, dst, rs)
	require.NoError(t, err)

	return p
}

func execute[S, T any](t *testing.T, p *Plan, src S, dst T) T {
	t.Helper()

	require.NoError(t, p.Execute(reflect.ValueOf(&src).Elem(), reflect.ValueOf(&dst).Elem()))

	return dst
}

func sampleOrder() order {
	return order{
		ID: 7,
		Customer: &customer{
			Name:    "Ann",
			Address: &address{Street: "Main St", City: "Springfield"},
		},
		Items: []lineItem{
			{ID: 1, SKU: "apple", Qty: 2},
			{ID: 2, SKU: "pear", Qty: 5},
		},
		Tags:   map[string]int{"a": 1, "b": 2},
		Notes:  []string{"fragile"},
		Status: "open",
	}
}

func TestCompileCreateNew(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[order](), reflect.TypeFor[orderDTO](), CreateNew, nil)
	assert.Empty(t, p.Diagnostics.Warnings)
	assert.Len(t, p.Diagnostics.ByCode(diagnostic.CodeFlattened), 1)

	src := sampleOrder()
	got := execute(t, p, src, orderDTO{ID: "ignored"})

	want := orderDTO{
		ID:           "7",
		CustomerName: "Ann",
		Customer: &customerDTO{
			Name:    "Ann",
			Address: addressDTO{Street: "Main St", City: "Springfield"},
		},
		Items: []*lineItemDTO{
			{ID: 1, SKU: "apple", Qty: 2},
			{ID: 2, SKU: "pear", Qty: 5},
		},
		Tags:   map[string]int64{"a": 1, "b": 2},
		Notes:  []string{"fragile"},
		Status: "open",
	}

	assert.Empty(t, cmp.Diff(want, got), spew.Sdump(got))

	src.Notes[0] = "changed"
	assert.Equal(t, "fragile", got.Notes[0], "slices are copied")

	desc := p.Describe()
	assert.Contains(t, desc, "plan.order -> plan.orderDTO (create_new)\n")
	assert.Contains(t, desc, "  CustomerName <- Customer.Name (direct_assign)\n")
	assert.Contains(t, desc, "  Items <- Items (slice_map by ID)\n")
	assert.Contains(t, desc, "    ID <- ID (convert safe_number)\n")
	assert.Contains(t, desc, "  Status <- Status (convert enum_string)\n")
	assert.Empty(t, p.Submappings())
}

func TestCompileDeepClone(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[order](), reflect.TypeFor[order](), CreateNew, nil)

	src := sampleOrder()
	got := execute(t, p, src, order{})

	assert.Empty(t, cmp.Diff(src, got))
	assert.NotSame(t, src.Customer, got.Customer)
	assert.NotSame(t, src.Customer.Address, got.Customer.Address)

	got.Tags["a"] = 100
	assert.Equal(t, 1, src.Tags["a"], "maps are copied")
}

func TestCompileNilSource(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[*order](), reflect.TypeFor[*orderDTO](), CreateNew, nil)
	got := execute(t, p, (*order)(nil), &orderDTO{ID: "x"})
	assert.Nil(t, got)

	got = execute(t, p, &order{}, (*orderDTO)(nil))
	require.NotNil(t, got)
	assert.Nil(t, got.Customer)
	assert.Empty(t, got.CustomerName)
	assert.Nil(t, got.Items)
}

func TestCompileMerge(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[order](), reflect.TypeFor[orderDTO](), Merge, nil)

	existingItem := &lineItemDTO{ID: 1, SKU: "kept"}
	existingCustomer := &customerDTO{Address: addressDTO{City: "Old Town"}}
	dst := orderDTO{
		ID:       "keep",
		Customer: existingCustomer,
		Items:    []*lineItemDTO{existingItem, {ID: 9, SKU: "other"}},
		Tags:     map[string]int64{"a": 100},
		Notes:    []string{"fragile"},
	}

	src := sampleOrder()
	src.Notes = append(src.Notes, "urgent")

	got := execute(t, p, src, dst)

	assert.Equal(t, "keep", got.ID)
	assert.Same(t, existingCustomer, got.Customer)
	assert.Equal(t, customerDTO{Name: "Ann", Address: addressDTO{Street: "Main St", City: "Old Town"}}, *got.Customer)

	require.Len(t, got.Items, 3, spew.Sdump(got.Items))
	assert.Same(t, existingItem, got.Items[0])
	assert.Equal(t, lineItemDTO{ID: 1, SKU: "kept", Qty: 2}, *got.Items[0])
	assert.Equal(t, "other", got.Items[1].SKU)
	assert.Equal(t, lineItemDTO{ID: 2, SKU: "pear", Qty: 5}, *got.Items[2])

	assert.Equal(t, map[string]int64{"a": 100, "b": 2}, got.Tags)
	assert.Equal(t, []string{"fragile", "urgent"}, got.Notes)
}

func TestCompileOverwrite(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[order](), reflect.TypeFor[orderDTO](), Overwrite, nil)

	existingItem := &lineItemDTO{ID: 2, SKU: "old", Qty: 1}
	dst := orderDTO{
		ID:           "old",
		CustomerName: "Bob",
		Customer:     &customerDTO{Name: "Bob"},
		Items:        []*lineItemDTO{{ID: 9}, existingItem},
		Tags:         map[string]int64{"a": 100, "z": 5},
		Notes:        []string{"a", "b", "c"},
	}

	src := sampleOrder()
	src.Customer = nil

	got := execute(t, p, src, dst)

	assert.Equal(t, "7", got.ID)
	assert.Empty(t, got.CustomerName, "nil on the way resets the member")
	assert.Nil(t, got.Customer)

	require.Len(t, got.Items, 2)
	assert.Equal(t, lineItemDTO{ID: 1, SKU: "apple", Qty: 2}, *got.Items[0])
	assert.Same(t, existingItem, got.Items[1])
	assert.Equal(t, lineItemDTO{ID: 2, SKU: "pear", Qty: 5}, *existingItem)

	assert.Equal(t, map[string]int64{"a": 1, "b": 2}, got.Tags)
	assert.Equal(t, []string{"fragile"}, got.Notes)
}

func TestCompileConversionError(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[order](), reflect.TypeFor[orderDTO](), CreateNew, nil)

	src := sampleOrder()
	src.Items[1].Qty = 70000

	var dst orderDTO

	err := p.Execute(reflect.ValueOf(src), reflect.ValueOf(&dst).Elem())
	require.ErrorIs(t, err, primitive.ErrOverflow)

	var me *MemberError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "plan.lineItemDTO.Qty", me.Path)
}

func TestCompileCategories(t *testing.T) {
	t.Parallel()

	settings, err := options.Build(options.WithCategories(primitive.CategorySafeNumber))
	require.NoError(t, err)

	c, err := NewCompiler(settings, nil)
	require.NoError(t, err)

	p, err := c.Compile(reflect.TypeFor[order](), reflect.TypeFor[orderDTO](), CreateNew)
	require.NoError(t, err, "automatic matches only warn")

	conversions := p.Diagnostics.ByCode(diagnostic.CodeConversion)
	require.NotEmpty(t, conversions)
	assert.Equal(t, "plan.orderDTO.ID", conversions[0].FieldPath)

	strict, err := NewCompiler(options.Settings{Categories: primitive.CategorySafeNumber, Strict: true}, nil)
	require.NoError(t, err)

	_, err = strict.Compile(reflect.TypeFor[order](), reflect.TypeFor[orderDTO](), CreateNew)
	require.ErrorIs(t, err, ErrCompileFailed)
}

type account struct {
	Owner   string
	Balance int
	Kind    string
}

type accountDTO struct {
	owner   string
	Owner   string
	Balance int
	Audit   string
	Level   string
	Secret  string
}

func newAccountDTO(owner string) *accountDTO {
	return &accountDTO{owner: strings.ToUpper(owner), Owner: owner}
}

func newAccountWithLimit(owner string, limit int) accountDTO {
	return accountDTO{owner: owner, Balance: limit}
}

func TestCompileFactoriesAndConfiguration(t *testing.T) {
	t.Parallel()

	greedy, err := creation.NewFactory(newAccountWithLimit, "owner", "limit")
	require.NoError(t, err)

	simple, err := creation.NewFactory(newAccountDTO, "owner")
	require.NoError(t, err)

	src, dst := reflect.TypeFor[account](), reflect.TypeFor[accountDTO]()

	rules := NewRules()
	rules.Factories[dst] = []creation.Factory{greedy, simple}

	pr := rules.Pair(src, dst)
	pr.Ignore["Secret"] = struct{}{}
	pr.Members["Audit"] = []datasource.Configured{{
		Origin: datasource.OriginAPI,
		Label:  "audit",
		Func: reflect.ValueOf(func(a account) string {
			return fmt.Sprintf("%s:%d", a.Owner, a.Balance)
		}),
	}}
	pr.Members["Level"] = []datasource.Configured{
		{
			Origin:      datasource.OriginAPI,
			HasConstant: true,
			Constant:    "gold",
			Condition: func(v reflect.Value) bool {
				return v.Interface().(account).Balance > 1000
			},
		},
		{Origin: datasource.OriginAPI, Paths: []string{"Kind"}},
	}

	p := compilePlan(t, src, dst, CreateNew, rules)

	got := execute(t, p, account{Owner: "ann", Balance: 5000, Kind: "basic"}, accountDTO{})
	assert.Equal(t, accountDTO{owner: "ANN", Owner: "ann", Balance: 5000, Audit: "ann:5000", Level: "gold"}, got)

	got = execute(t, p, account{Owner: "bob", Balance: 10, Kind: "basic"}, accountDTO{})
	assert.Equal(t, "basic", got.Level)

	desc := p.Describe()
	assert.Contains(t, desc, "  create using plan.newAccountDTO(owner string)\n")
	assert.Contains(t, desc, "    (owner) <- Owner (direct_assign)\n")
	assert.Contains(t, desc, "  Owner (created)\n")
	assert.Contains(t, desc, "  Audit <- audit(source) (transform)\n")
	assert.Contains(t, desc, "  Level <- constant gold (constant) when matched\n")
	assert.Contains(t, desc, "  Level <- Kind (direct_assign)\n")
	assert.Contains(t, desc, "  Secret (ignore)\n")
}

func TestCompileUnknownConfiguredMember(t *testing.T) {
	t.Parallel()

	src, dst := reflect.TypeFor[account](), reflect.TypeFor[accountDTO]()

	rules := NewRules()
	rules.Pair(src, dst).Ignore["Nope"] = struct{}{}
	rules.Pair(src, dst).Members["Audit"] = []datasource.Configured{{Origin: datasource.OriginAPI, Paths: []string{"Missing"}}}

	settings, err := options.Build()
	require.NoError(t, err)

	c, err := NewCompiler(settings, rules)
	require.NoError(t, err)

	p, err := c.Compile(src, dst, CreateNew)
	require.ErrorIs(t, err, ErrCompileFailed)
	require.ErrorIs(t, err, diagnostic.ErrDiagnostic)
	assert.Len(t, p.Diagnostics.ByCode(diagnostic.CodeUnknownMember), 2)
}

type cents int64

type price struct{ Amount cents }

type priceDTO struct{ Amount string }

func TestCompileCustomConverter(t *testing.T) {
	t.Parallel()

	format := func(c cents) (string, error) {
		if c < 0 {
			return "", errors.New("negative amount")
		}

		return fmt.Sprintf("%d.%02d", c/100, c%100), nil
	}

	p := compilePlan(t, reflect.TypeFor[price](), reflect.TypeFor[priceDTO](), CreateNew, nil,
		options.WithConverter(format))

	got := execute(t, p, price{Amount: 1234}, priceDTO{})
	assert.Equal(t, "12.34", got.Amount)
	assert.Contains(t, p.Describe(), "(custom_convert plan.TestCompileCustomConverter.func1)")

	var dst priceDTO

	err := p.Execute(reflect.ValueOf(price{Amount: -1}), reflect.ValueOf(&dst).Elem())
	require.EqualError(t, err, "plan.priceDTO.Amount: plan.TestCompileCustomConverter.func1: negative amount")
}

type animal interface{ Sound() string }

type dog struct {
	Name  string
	Breed string
}

func (dog) Sound() string { return "woof" }

type cat struct {
	Name  string
	Lives int
}

func (*cat) Sound() string { return "meow" }

type bird struct{ Name string }

func (bird) Sound() string { return "tweet" }

type pet interface{ isPet() }

type dogDTO struct {
	Name  string
	Breed string
}

func (dogDTO) isPet() {}

type catDTO struct {
	Name  string
	Lives int
}

func (*catDTO) isPet() {}

type zoo struct {
	Animals []animal
	Star    animal
}

type zooDTO struct {
	Animals []pet
	Star    pet
}

func zooRules() *Rules {
	rules := NewRules()
	rules.AddDerived(reflect.TypeFor[dog](), reflect.TypeFor[dogDTO]())
	rules.AddDerived(reflect.TypeFor[cat](), reflect.TypeFor[catDTO]())
	rules.AddDerived(reflect.TypeFor[dog](), reflect.TypeFor[dogDTO]())

	return rules
}

func TestCompileDerived(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[zoo](), reflect.TypeFor[zooDTO](), CreateNew, zooRules())
	assert.Equal(t, []string{"map1", "map2"}, p.Submappings())

	got := execute(t, p, zoo{
		Animals: []animal{dog{Name: "Rex", Breed: "lab"}, &cat{Name: "Tom", Lives: 9}},
		Star:    dog{Name: "Lassie"},
	}, zooDTO{})

	want := zooDTO{
		Animals: []pet{dogDTO{Name: "Rex", Breed: "lab"}, &catDTO{Name: "Tom", Lives: 9}},
		Star:    dogDTO{Name: "Lassie"},
	}
	assert.Equal(t, want, got)

	desc := p.Describe()
	assert.Contains(t, desc, "  Star <- Star (derived map1, map2)\n")
	assert.Contains(t, desc, "map2: plan.cat -> plan.catDTO\n  Name <- Name (direct_assign)\n")

	var dst zooDTO

	err := p.Execute(reflect.ValueOf(zoo{Star: bird{Name: "Tweety"}}), reflect.ValueOf(&dst).Elem())
	require.ErrorIs(t, err, ErrNoDerivedPair)
}

type envelope struct{ Payload any }

type envelopeDTO struct{ Payload addressDTO }

func TestCompileDynamicSource(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[envelope](), reflect.TypeFor[envelopeDTO](), CreateNew, nil)

	var wg sync.WaitGroup

	results := make([]envelopeDTO, 8)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			var payload any = &address{Street: "Elm", City: fmt.Sprint(i)}
			if i%2 == 1 {
				payload = map[string]any{"street": "Elm", "city": fmt.Sprint(i)}
			}

			var dst envelopeDTO
			if err := p.Execute(reflect.ValueOf(envelope{Payload: payload}), reflect.ValueOf(&dst).Elem()); err == nil {
				results[i] = dst
			}
		}()
	}

	wg.Wait()

	for i, res := range results {
		assert.Equal(t, addressDTO{Street: "Elm", City: fmt.Sprint(i)}, res.Payload)
	}
}

func TestCompileDictionaries(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[map[string]any](), reflect.TypeFor[customerDTO](), CreateNew, nil)

	got := execute(t, p, map[string]any{
		"name":           "Ann",
		"address.street": "Main St",
		"Address.City":   "Springfield",
	}, customerDTO{})

	assert.Equal(t, customerDTO{Name: "Ann", Address: addressDTO{Street: "Main St", City: "Springfield"}}, got)

	back := compilePlan(t, reflect.TypeFor[customer](), reflect.TypeFor[map[string]any](), CreateNew, nil)

	src := customer{Name: "Ann", Address: &address{City: "Springfield"}}
	dict := execute(t, back, src, map[string]any(nil))

	require.Len(t, dict, 2)
	assert.Equal(t, "Ann", dict["Name"])
	require.IsType(t, &address{}, dict["Address"])
	assert.NotSame(t, src.Address, dict["Address"])
	assert.Equal(t, *src.Address, *dict["Address"].(*address))

	dict = execute(t, back, customer{Name: "Bob"}, map[string]any(nil))
	assert.Equal(t, map[string]any{"Name": "Bob"}, dict)

	overwrite := compilePlan(t, reflect.TypeFor[customer](), reflect.TypeFor[map[string]any](), Overwrite, nil)
	dict = execute(t, overwrite, customer{Name: "Bob"}, map[string]any{"Address": 1, "extra": true})
	assert.Equal(t, map[string]any{"Name": "Bob", "extra": true}, dict)
}

type shipment struct {
	ShipToStreet string
	ShipToCity   string
}

type shipmentDTO struct {
	ShipTo *addressDTO
}

func TestCompileUnflattening(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[shipment](), reflect.TypeFor[shipmentDTO](), CreateNew, nil)

	got := execute(t, p, shipment{ShipToStreet: "Main St", ShipToCity: "Springfield"}, shipmentDTO{})
	require.NotNil(t, got.ShipTo)
	assert.Equal(t, addressDTO{Street: "Main St", City: "Springfield"}, *got.ShipTo)
	assert.Contains(t, p.Describe(), "  ShipTo <- ShipTo* (pointer_wrap)\n    Street <- ShipToStreet (direct_assign)\n")
}

type tagged struct {
	Label string
	Color chan int
}

type taggedDTO struct {
	Label string
	Color string
	Extra string
}

func TestCompileWarnings(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[tagged](), reflect.TypeFor[taggedDTO](), CreateNew, nil)

	assert.Len(t, p.Diagnostics.ByCode(diagnostic.CodeUnsupported), 1)

	unmapped := p.Diagnostics.ByCode(diagnostic.CodeUnmapped)
	require.Len(t, unmapped, 1)
	assert.Equal(t, "plan.taggedDTO.Extra", unmapped[0].FieldPath)
	assert.Contains(t, p.Describe(), "  Extra (unmapped)\n")

	settings, err := options.Build(options.WithStrict())
	require.NoError(t, err)

	c, err := NewCompiler(settings, nil)
	require.NoError(t, err)

	_, err = c.Compile(reflect.TypeFor[tagged](), reflect.TypeFor[taggedDTO](), CreateNew)
	require.ErrorIs(t, err, ErrCompileFailed)
}

type category struct {
	Name     string
	Parent   *category
	Children []*category
}

type categoryDTO struct {
	Name     string
	Parent   *categoryDTO
	Children []*categoryDTO
}

func TestCompileRecursive(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[*category](), reflect.TypeFor[*categoryDTO](), CreateNew, nil)

	var paths []string
	for _, d := range p.Diagnostics.ByCode(diagnostic.CodeRecursive) {
		paths = append(paths, d.FieldPath)
	}

	assert.Equal(t, []string{"plan.categoryDTO.Parent", "plan.categoryDTO.Children[]"}, paths)
	assert.NotEmpty(t, p.Submappings())

	root := &category{Name: "root"}
	root.Children = []*category{{Name: "leaf", Parent: root}}

	got := execute(t, p, root, (*categoryDTO)(nil))
	require.NotNil(t, got)
	require.Len(t, got.Children, 1)
	assert.Equal(t, "leaf", got.Children[0].Name)
	assert.Same(t, got, got.Children[0].Parent)
	assert.Nil(t, got.Parent)
}

func TestExecuteInvalidArguments(t *testing.T) {
	t.Parallel()

	p := compilePlan(t, reflect.TypeFor[price](), reflect.TypeFor[price](), CreateNew, nil)

	var dst price

	require.ErrorIs(t, p.Execute(reflect.ValueOf(price{}), reflect.ValueOf(dst)), ErrInvalidTarget)
	require.ErrorIs(t, p.Execute(reflect.ValueOf(priceDTO{}), reflect.ValueOf(&dst).Elem()), ErrInvalidSource)
	require.NoError(t, p.Execute(reflect.Value{}, reflect.ValueOf(&dst).Elem()))
}

func TestRuleSetNames(t *testing.T) {
	t.Parallel()

	for _, rs := range []RuleSet{CreateNew, Merge, Overwrite} {
		parsed, err := ParseRuleSet(rs.String())
		require.NoError(t, err)
		assert.Equal(t, rs, parsed)
	}

	_, err := ParseRuleSet("upsert")
	require.ErrorIs(t, err, ErrInvalidRuleSet)
	assert.Equal(t, "unknown", RuleSet(7).String())
	assert.Equal(t, "struct_to_map", StrategyStructToMap.String())
}

func TestRulesClone(t *testing.T) {
	t.Parallel()

	rules := zooRules()
	rules.Pair(reflect.TypeFor[zoo](), reflect.TypeFor[zooDTO]()).Ignore["Star"] = struct{}{}

	clone := rules.Clone()
	clone.Pair(reflect.TypeFor[zoo](), reflect.TypeFor[zooDTO]()).Ignore["Animals"] = struct{}{}
	clone.AddDerived(reflect.TypeFor[bird](), reflect.TypeFor[dogDTO]())

	assert.Len(t, rules.Derived, 2)
	assert.Len(t, clone.Derived, 3)
	assert.Len(t, rules.Pair(reflect.TypeFor[zoo](), reflect.TypeFor[zooDTO]()).Ignore, 1)
}

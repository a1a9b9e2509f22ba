package mapping

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"struct-mapper/internal/diagnostic"
)

func validateYAML(t *testing.T, yaml string) *diagnostic.Diagnostics {
	t.Helper()

	mf, err := Parse([]byte(yaml))
	require.NoError(t, err)

	types, transforms := demoRegistries(t)

	return Validate(mf, types, transforms)
}

func TestValidateValidMapping(t *testing.T) {
	diags := validateYAML(t, orderRulesYAML)

	assert.True(t, diags.IsValid(), "unexpected errors: %v", diags.Error())
	assert.Empty(t, diags.Warnings)
}

func TestValidateNil(t *testing.T) {
	diags := Validate(nil, nil, nil)
	require.Len(t, diags.Errors, 1)
	assert.Equal(t, diagnostic.CodeInvalidRule, diags.Errors[0].Code)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		code    string
		message string
	}{
		{
			name: "unknown source type",
			yaml: `
mappings:
  - source: store.Missing
    target: warehouse.Order
`,
			code:    diagnostic.CodeUnknownType,
			message: "source: unknown type",
		},
		{
			name: "ambiguous target type",
			yaml: `
mappings:
  - source: store.Order
    target: Address
`,
			code:    diagnostic.CodeUnknownType,
			message: "ambiguous type name",
		},
		{
			name: "target is not a struct",
			yaml: `
mappings:
  - source: store.Order
    target: "[]warehouse.Order"
`,
			code:    diagnostic.CodeInvalidRule,
			message: "target type must be a struct",
		},
		{
			name: "duplicate pair",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
  - source: struct-mapper/store.Order
    target: warehouse.Order
`,
			code:    diagnostic.CodeInvalidRule,
			message: "duplicate mapping",
		},
		{
			name: "unknown 121 source",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    121:
      Numbr: OrderNumber
`,
			code:    diagnostic.CodeUnknownMember,
			message: "invalid 121 path",
		},
		{
			name: "unknown target member",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - target: Reference
        source: Number
`,
			code:    diagnostic.CodeUnknownMember,
			message: `target member "Reference" not found`,
		},
		{
			name: "nested target",
			yaml: `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    fields:
      - target: Address.City
        source: Address.City
`,
			code:    diagnostic.CodeInvalidRule,
			message: "configure the nested type pair instead",
		},
		{
			name: "element source path",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - target: Tags
        source: Items[].SKU
`,
			code:    diagnostic.CodeUnknownMember,
			message: "elements are mapped by their own type pair",
		},
		{
			name: "many to one without transform",
			yaml: `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    fields:
      - target: FullName
        source: [FirstName, LastName]
`,
			code:    diagnostic.CodeInvalidRule,
			message: "N:1 mapping requires transform, e.g. FirstNameLastNameToFullName",
		},
		{
			name: "unregistered transform",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - target: TotalAmount
        transform: sumItems
`,
			code:    diagnostic.CodeInvalidRule,
			message: `transform "sumItems" is not registered`,
		},
		{
			name: "transform arity",
			yaml: `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    fields:
      - target: FullName
        source: FirstName
        transform: fullName
`,
			code:    diagnostic.CodeInvalidRule,
			message: "takes 2 arguments, mapping passes 1",
		},
		{
			name: "default with source",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - target: Status
        source: Status
        default: pending
`,
			code:    diagnostic.CodeInvalidRule,
			message: "default excludes source and transform",
		},
		{
			name: "nothing to map from",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    auto:
      - target: Status
`,
			code:    diagnostic.CodeInvalidRule,
			message: "must specify source, transform or default",
		},
		{
			name: "missing target",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - source: Status
`,
			code:    diagnostic.CodeInvalidRule,
			message: "must specify target",
		},
		{
			name: "unknown ignored member",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    ignore: [Depot]
`,
			code:    diagnostic.CodeUnknownMember,
			message: `"Depot" not found`,
		},
		{
			name: "identity missing on one side",
			yaml: `
mappings:
  - source: store.OrderItem
    target: warehouse.OrderItem
    identify: Quantity
  - source: store.Address
    target: warehouse.Address
    identify: Street
  - source: store.Customer
    target: warehouse.Customer
    identify: Email
  - source: store.Order
    target: warehouse.Order
    identify: Number
`,
			code:    diagnostic.CodeUnknownMember,
			message: `identity member "Number" not found in warehouse.Order`,
		},
		{
			name: "unknown derived type",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    derived:
      - source: store.CashPayment
        target: warehouse.CardPayment
`,
			code:    diagnostic.CodeUnknownType,
			message: "derived source",
		},
		{
			name: "unregistered factory",
			yaml: `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    create:
      func: makeCustomer
`,
			code:    diagnostic.CodeInvalidRule,
			message: `factory "makeCustomer" is not registered`,
		},
		{
			name: "factory parameter count",
			yaml: `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    create:
      func: newCustomer
      params: [email, name]
`,
			code:    diagnostic.CodeInvalidRule,
			message: "takes 1 parameters, 2 names given",
		},
		{
			name: "factory builds another type",
			yaml: `
mappings:
  - source: store.Customer
    target: warehouse.Address
    create:
      func: newCustomer
      params: [email]
`,
			code:    diagnostic.CodeInvalidRule,
			message: "builds warehouse.Customer, not warehouse.Address",
		},
		{
			name: "bad category",
			yaml: `
settings:
  categories: [safe_number, bogus]
mappings: []
`,
			code:    diagnostic.CodeInvalidRule,
			message: "settings.categories",
		},
		{
			name: "max suggestions out of range",
			yaml: `
settings:
  max_suggestions: 50
mappings: []
`,
			code:    diagnostic.CodeInvalidRule,
			message: "settings.max_suggestions must be between 0 and 20",
		},
		{
			name: "mapped and ignored",
			yaml: `
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - target: OrderNumber
        source: Number
    ignore: [OrderNumber]
`,
			code:    diagnostic.CodeInvalidRule,
			message: `member "OrderNumber" is both mapped and ignored`,
		},
		{
			name: "invalid identity name",
			yaml: `
settings:
  identity_names: [ID, "order-id"]
mappings: []
`,
			code:    diagnostic.CodeInvalidRule,
			message: `invalid identifier "order-id"`,
		},
		{
			name: "duplicate transform declaration",
			yaml: `
mappings: []
transforms:
  - name: fullName
  - name: fullName
`,
			code:    diagnostic.CodeInvalidRule,
			message: `duplicate transform "fullName"`,
		},
		{
			name: "declared transform not registered",
			yaml: `
mappings: []
transforms:
  - name: sumItems
`,
			code:    diagnostic.CodeInvalidRule,
			message: "declared but not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := validateYAML(t, tt.yaml)
			require.True(t, diags.HasErrors())

			var messages []string

			for _, d := range diags.ByCode(tt.code) {
				if d.Severity == diagnostic.DiagnosticError && strings.Contains(d.Message, tt.message) {
					return
				}

				messages = append(messages, d.Message)
			}

			t.Errorf("no %s error containing %q, got %q", tt.code, tt.message, messages)
		})
	}
}

func TestValidateFactoryParamsAreTargets(t *testing.T) {
	diags := validateYAML(t, `
mappings:
  - source: store.Customer
    target: warehouse.Customer
    create:
      func: newCustomer
      params: [contact]
    121:
      Email: contact
`)

	assert.True(t, diags.IsValid(), "unexpected errors: %v", diags.Error())
}

func TestMissingTransforms(t *testing.T) {
	mf, err := Parse([]byte(`
mappings:
  - source: store.Order
    target: warehouse.Order
    fields:
      - target: TotalAmount
        transform: sumItems
    auto:
      - target: Status
        source: Status
        transform: statusText
  - source: store.Customer
    target: warehouse.Customer
    create:
      func: newCustomer
      params: [email]
    fields:
      - target: FullName
        source: [FirstName, LastName]
        transform: fullName
`))
	require.NoError(t, err)

	_, transforms := demoRegistries(t)

	assert.Equal(t, []string{"statusText", "sumItems"}, MissingTransforms(mf, transforms))
	assert.Equal(t, []string{"fullName", "newCustomer", "statusText", "sumItems"}, MissingTransforms(mf, nil))
}

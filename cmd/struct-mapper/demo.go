package main

import (
	"reflect"

	"go.uber.org/zap"

	"struct-mapper/mapper"
	"struct-mapper/options"
	"struct-mapper/store"
	"struct-mapper/warehouse"
)

// demoTypes are the types rule files may name.
var demoTypes = []reflect.Type{
	reflect.TypeFor[store.Customer](),
	reflect.TypeFor[store.Address](),
	reflect.TypeFor[store.Order](),
	reflect.TypeFor[store.OrderItem](),
	reflect.TypeFor[store.CardPayment](),
	reflect.TypeFor[store.TransferPayment](),
	reflect.TypeFor[warehouse.Customer](),
	reflect.TypeFor[warehouse.Address](),
	reflect.TypeFor[warehouse.Order](),
	reflect.TypeFor[warehouse.OrderItem](),
	reflect.TypeFor[warehouse.CardPayment](),
	reflect.TypeFor[warehouse.TransferPayment](),
}

// demoTransforms are the functions rule files may call.
var demoTransforms = map[string]any{
	"fullName":   store.FullName,
	"orderTotal": store.Total,
}

// newDemoMapper returns a mapper knowing the demo types and transforms,
// configured with the rule file at path when one is given.
func newDemoMapper(logger *zap.Logger, path string) (*mapper.Mapper, error) {
	opts := []options.Option{options.WithLogger(logger)}
	for name, fn := range demoTransforms {
		opts = append(opts, options.WithTransform(name, fn))
	}

	m := mapper.New(opts...)

	types := make([]any, len(demoTypes))
	for i, t := range demoTypes {
		types[i] = t
	}

	if err := m.RegisterTypes(types...); err != nil {
		return nil, err
	}

	if path == "" {
		configureDemo(m)
		return m, m.Err()
	}

	if err := m.LoadRules(path); err != nil {
		return nil, err
	}

	return m, nil
}

// configureDemo is the built-in configuration used without a rule file.
func configureDemo(m *mapper.Mapper) {
	mapper.Configure[store.Customer, warehouse.Customer](m).
		Member("FullName").Transform("fullName", "FirstName", "LastName")

	mapper.Configure[store.Order, warehouse.Order](m).
		Member("OrderNumber").From("Number").
		Member("TotalAmount").Transform("orderTotal").
		Done().Ignore("Warehouse")

	mapper.DerivedPair[store.CardPayment, warehouse.CardPayment](m)
	mapper.DerivedPair[store.TransferPayment, warehouse.TransferPayment](m)
}

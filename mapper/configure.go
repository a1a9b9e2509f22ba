package mapper

import (
	"fmt"
	"reflect"

	"struct-mapper/internal/creation"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/member"
	"struct-mapper/internal/plan"
	"struct-mapper/node"
)

// PairConfig configures the mapping of S to T. Pointer types configure the
// pointed-to pair. Every call takes effect immediately; mistakes that can
// only be found against the types are reported when plans are compiled.
type PairConfig[S, T any] struct {
	m        *Mapper
	src, dst reflect.Type
}

// Configure starts the configuration of the S to T mapping.
//
//	mapper.Configure[store.Order, warehouse.Order](m).
//		Member("OrderNumber").From("Number").
//		Member("Warehouse").Constant("north").
//		Done().Ignore("Payment")
func Configure[S, T any](m *Mapper) *PairConfig[S, T] {
	return &PairConfig[S, T]{
		m:   m,
		src: member.Indirect(reflect.TypeFor[S]()),
		dst: member.Indirect(reflect.TypeFor[T]()),
	}
}

func (c *PairConfig[S, T]) pair() string {
	return node.Pair{Src: c.src, Dst: c.dst}.String()
}

func (c *PairConfig[S, T]) add(name string, cfg datasource.Configured) *PairConfig[S, T] {
	cfg.Origin = datasource.OriginAPI

	c.m.update(c.pair()+" "+name, func() error {
		pr := c.m.rules.Pair(c.src, c.dst)
		pr.Members[name] = append(pr.Members[name], cfg)

		return nil
	})

	return c
}

// Member selects a target member to configure.
func (c *PairConfig[S, T]) Member(name string) *MemberConfig[S, T] {
	return &MemberConfig[S, T]{pair: c, name: name}
}

// Ignore excludes target members from mapping.
func (c *PairConfig[S, T]) Ignore(names ...string) *PairConfig[S, T] {
	c.m.update(c.pair()+" ignore", func() error {
		pr := c.m.rules.Pair(c.src, c.dst)
		for _, name := range names {
			pr.Ignore[name] = struct{}{}
		}

		return nil
	})

	return c
}

// CreateUsing registers fn as a factory of T. params name the target members
// or source members its parameters are sourced from, in order.
func (c *PairConfig[S, T]) CreateUsing(fn any, params ...string) *PairConfig[S, T] {
	c.m.update(c.pair()+" factory", func() error {
		factory, err := creation.NewFactory(fn, params...)
		if err != nil {
			return err
		}

		if factory.Target != c.dst {
			return fmt.Errorf("%w: %s builds %s", creation.ErrInvalidFactory, factory.Name, factory.Target)
		}

		c.m.rules.Factories[c.dst] = append(c.m.rules.Factories[c.dst], factory)

		return nil
	})

	return c
}

// Identify names the member identifying S and T values in collections.
func (c *PairConfig[S, T]) Identify(name string) *PairConfig[S, T] {
	c.m.update(c.pair()+" identity", func() error {
		c.m.rules.Identities[c.src] = name
		c.m.rules.Identities[c.dst] = name

		return nil
	})

	return c
}

// MemberConfig configures the data sources of one target member. Sources are
// tried in configuration order; conditional sources before the rest.
type MemberConfig[S, T any] struct {
	pair *PairConfig[S, T]
	name string
	when func(reflect.Value) bool
}

// When makes the next source apply only when cond holds for the source.
func (mc *MemberConfig[S, T]) When(cond func(src S) bool) *MemberConfig[S, T] {
	mc.when = func(v reflect.Value) bool {
		s, ok := asSource[S](v)
		return ok && cond(s)
	}

	return mc
}

// Member continues with another target member.
func (mc *MemberConfig[S, T]) Member(name string) *MemberConfig[S, T] {
	return mc.pair.Member(name)
}

// From sources the member from a dotted source path, e.g. "Customer.Email".
func (mc *MemberConfig[S, T]) From(path string) *MemberConfig[S, T] {
	return mc.add(datasource.Configured{Paths: []string{path}})
}

// FromFunc sources the member from fn applied to the source. fn takes S or
// *S and returns V or (V, error).
func (mc *MemberConfig[S, T]) FromFunc(fn any) *MemberConfig[S, T] {
	v := reflect.ValueOf(fn)

	label := "func"
	if v.Kind() == reflect.Func && !v.IsNil() {
		_, label = node.FuncName(v)
	}

	return mc.add(datasource.Configured{Func: v, Label: label})
}

// Constant sets the member to v. Each mapping receives its own copy.
func (mc *MemberConfig[S, T]) Constant(v any) *MemberConfig[S, T] {
	return mc.add(datasource.Configured{Constant: v, HasConstant: true})
}

// Transform sources the member from a transform registered with
// options.WithTransform, called with the values of the source paths.
func (mc *MemberConfig[S, T]) Transform(name string, sources ...string) *MemberConfig[S, T] {
	m := mc.pair.m

	fn, ok := m.Settings().Transforms[name]
	if !ok {
		m.update(mc.pair.pair()+" "+mc.name, func() error {
			return fmt.Errorf("transform %q is not registered", name)
		})

		return mc
	}

	cfg := datasource.Configured{Func: reflect.ValueOf(fn), Label: name, Paths: sources}
	if len(sources) == 0 {
		cfg.Paths = nil
	}

	return mc.add(cfg)
}

// Ignore excludes the member from mapping.
func (mc *MemberConfig[S, T]) Ignore() *PairConfig[S, T] {
	return mc.pair.Ignore(mc.name)
}

// Done returns the pair configuration.
func (mc *MemberConfig[S, T]) Done() *PairConfig[S, T] {
	return mc.pair
}

func (mc *MemberConfig[S, T]) add(cfg datasource.Configured) *MemberConfig[S, T] {
	if mc.when != nil {
		cfg.Condition = mc.when
		mc.when = nil
	}

	mc.pair.add(mc.name, cfg)

	return mc
}

// asSource converts the pair source value into S.
func asSource[S any](v reflect.Value) (S, bool) {
	var zero S

	want := reflect.TypeFor[S]()
	if want.Kind() == reflect.Ptr && v.Type() == want.Elem() {
		if v.CanAddr() {
			return v.Addr().Interface().(S), true
		}

		p := reflect.New(v.Type())
		p.Elem().Set(v)

		return p.Interface().(S), true
	}

	s, ok := v.Interface().(S)
	if !ok {
		return zero, false
	}

	return s, true
}

// DerivedPair registers SD to TD as the mapping used when a source of an
// interface type holds an SD, or a target of an interface type is built from one.
func DerivedPair[SD, TD any](m *Mapper) {
	src, dst := reflect.TypeFor[SD](), reflect.TypeFor[TD]()

	m.update("derived "+node.Pair{Src: src, Dst: dst}.String(), func() error {
		if src.Kind() == reflect.Interface {
			return fmt.Errorf("%w: derived source %s is an interface", plan.ErrUnsupported, src)
		}

		m.rules.AddDerived(src, dst)

		return nil
	})
}

package plan

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"struct-mapper/internal/common"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/member"
	nodepkg "struct-mapper/node"
	"struct-mapper/options"
	"struct-mapper/primitive"
)

// Compiler turns type pairs into executable plans. It is safe for
// concurrent use as long as its rules are not modified.
type Compiler struct {
	settings   options.Settings
	categories primitive.CategoryEnum
	rules      *Rules
	resolver   *datasource.Resolver
	casters    map[nodepkg.Pair]nodepkg.Caster
	logger     *zap.Logger
}

// NewCompiler creates a Compiler. Custom converters from settings are parsed
// here, so a bad converter signature fails early.
func NewCompiler(settings options.Settings, rules *Rules) (*Compiler, error) {
	if rules == nil {
		rules = NewRules()
	}

	categories := settings.Categories
	if categories == primitive.CategoryNone {
		categories = primitive.CategoryAll
	}

	logger := settings.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	casters := make(map[nodepkg.Pair]nodepkg.Caster, len(settings.Converters))

	for _, fn := range settings.Converters {
		caster, err := nodepkg.ParseCaster(fn)
		if err != nil {
			return nil, fmt.Errorf("converter %T: %w", fn, err)
		}

		casters[nodepkg.Pair{Src: caster.Src, Dst: caster.Dst}] = caster
	}

	return &Compiler{
		settings:   settings,
		categories: categories,
		rules:      rules,
		resolver: &datasource.Resolver{
			Categories:     categories,
			Strict:         settings.Strict,
			MaxSuggestions: settings.MaxSuggestions,
		},
		casters: casters,
		logger:  logger,
	}, nil
}

// Compile builds the plan mapping src to dst under rs. When compilation
// reports errors the plan is returned along with an ErrCompileFailed error
// so its diagnostics can be inspected; it must not be executed.
func (c *Compiler) Compile(src, dst reflect.Type, rs RuleSet) (*Plan, error) {
	if rs < CreateNew || rs > Overwrite {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRuleSet, rs)
	}

	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: nil type", ErrUnsupported)
	}

	pair := nodepkg.Pair{Src: src, Dst: dst}
	p := &Plan{Source: src, Target: dst, RuleSet: rs, compiler: c}
	cc := newCompilation(c, p, &p.Diagnostics, "map")

	root, err := cc.compile(src, dst, nil)
	if err != nil {
		p.Diagnostics.AddError(diagnostic.CodeUnsupported, err.Error(), pair.String(), "")
	}

	cc.drain()

	p.root = root
	p.subs = cc.subs

	c.logger.Debug("compiled plan",
		zap.Stringer("pair", pair),
		zap.Stringer("rule_set", rs),
		zap.Int("submappings", len(p.subs)),
		zap.Int("warnings", len(p.Diagnostics.Warnings)),
		zap.Int("errors", len(p.Diagnostics.Errors)),
	)

	if p.Diagnostics.HasErrors() {
		return p, fmt.Errorf("%w: %w", ErrCompileFailed, p.Diagnostics.Error())
	}

	return p, nil
}

type derivedEntry struct {
	name string
	c    *compiled
}

// compilation is the state of one Compile call.
type compilation struct {
	*Compiler

	rs    RuleSet
	plan  *Plan
	diags *diagnostic.Diagnostics

	// units holds every struct unit, cached before its members are compiled.
	units map[pairKey]*unit
	// active marks units whose members are being compiled.
	active map[pairKey]bool

	stem    *nodepkg.Stem
	subs    []submapping
	dealer  nodepkg.Dealer
	derived map[nodepkg.Pair]*derivedEntry
}

func newCompilation(c *Compiler, p *Plan, diags *diagnostic.Diagnostics, stem string) *compilation {
	return &compilation{
		Compiler: c,
		rs:       p.RuleSet,
		plan:     p,
		diags:    diags,
		units:    make(map[pairKey]*unit),
		active:   make(map[pairKey]bool),
		stem:     nodepkg.NewStem(stem, nil),
		derived:  make(map[nodepkg.Pair]*derivedEntry),
	}
}

// compile dispatches a type pair to its strategy. A non-empty prefix means
// dst is populated member-wise from src itself, see datasource.DataSource.
func (cc *compilation) compile(src, dst reflect.Type, prefix []string) (compiled, error) {
	if len(prefix) > 0 {
		if dst.Kind() == reflect.Ptr {
			inner, err := cc.compile(src, dst.Elem(), prefix)
			if err != nil {
				return compiled{}, err
			}

			return cc.wrap(src, dst, inner), nil
		}

		if dst.Kind() != reflect.Struct {
			return compiled{}, unsupported(src, dst)
		}

		return cc.structPair(src, dst, prefix), nil
	}

	if caster, ok := cc.casters[nodepkg.Pair{Src: src, Dst: dst}]; ok {
		return cc.custom(caster, dst), nil
	}

	if src == dst && !deepCopied(src) {
		return cc.direct(), nil
	}

	if src.Kind() == reflect.Interface || dst.Kind() == reflect.Interface {
		return cc.iface(src, dst)
	}

	switch nodepkg.Dispatch(src, dst) {
	case nodepkg.DispatcherPointer:
		return cc.pointer(src, dst)
	case nodepkg.DispatcherPrimitive:
		return cc.scalar(src, dst)
	case nodepkg.DispatcherSlice:
		return cc.slice(src, dst)
	case nodepkg.DispatcherMap:
		return cc.mapMap(src, dst)
	case nodepkg.DispatcherStructToMap:
		return cc.structToMap(src, dst)
	case nodepkg.DispatcherStruct, nodepkg.DispatcherMapToStruct:
		return cc.structPair(src, dst, nil), nil
	}

	if src.AssignableTo(dst) {
		return cc.direct(), nil
	}

	return compiled{}, unsupported(src, dst)
}

// drain compiles the derived pairs queued while compiling.
func (cc *compilation) drain() {
	for {
		src, dst, ok := cc.dealer.NextNeeds()
		if !ok {
			return
		}

		pair := nodepkg.Pair{Src: src, Dst: dst}

		c, err := cc.compile(src, dst, nil)
		if err != nil {
			cc.diags.AddError(diagnostic.CodeUnsupported, err.Error(), pair.String(), "")
			continue
		}

		*cc.derived[pair].c = c
	}
}

// derivedRef names a derived pair and queues its compilation.
func (cc *compilation) derivedRef(pair nodepkg.Pair) *derivedEntry {
	if e, ok := cc.derived[pair]; ok {
		return e
	}

	e := &derivedEntry{name: cc.stem.Next(), c: &compiled{}}
	cc.derived[pair] = e
	cc.subs = append(cc.subs, submapping{name: e.name, pair: pair, c: e.c})
	cc.dealer.Needs(pair.Src, pair.Dst)

	return e
}

// keep reports whether Merge leaves the existing simple value d in place.
func (cc *compilation) keep(d reflect.Value) bool {
	return cc.rs == Merge && d.IsValid() && !d.IsZero()
}

// absent returns the target value for a nil or missing source.
func (cc *compilation) absent(d reflect.Value, t reflect.Type) reflect.Value {
	if cc.rs == Merge && d.IsValid() {
		return d
	}

	return reflect.Zero(t)
}

func (cc *compilation) direct() compiled {
	return compiled{
		strategy: StrategyDirectAssign,
		fn: func(_ *state, s, d reflect.Value) (reflect.Value, error) {
			if cc.keep(d) {
				return d, nil
			}

			return s, nil
		},
	}
}

func (cc *compilation) custom(caster nodepkg.Caster, dst reflect.Type) compiled {
	simple := !isComplex(dst)

	return compiled{
		strategy: StrategyCustomConvert,
		note:     caster.String(),
		fn: func(_ *state, s, d reflect.Value) (reflect.Value, error) {
			if simple && cc.keep(d) {
				return d, nil
			}

			v, ok, err := caster.Call(s)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("%s: %w", caster, err)
			}

			if !ok {
				return cc.absent(d, dst), nil
			}

			return v, nil
		},
	}
}

func (cc *compilation) scalar(src, dst reflect.Type) (compiled, error) {
	if src.AssignableTo(dst) {
		return cc.direct(), nil
	}

	conv, category, ok := primitive.Converter(src, dst, cc.categories)
	if !ok {
		return compiled{}, unsupported(src, dst)
	}

	return compiled{
		strategy: StrategyConvert,
		note:     category.String(),
		fn: func(_ *state, s, d reflect.Value) (reflect.Value, error) {
			if cc.keep(d) {
				return d, nil
			}

			return conv(s)
		},
	}, nil
}

func (cc *compilation) pointer(src, dst reflect.Type) (compiled, error) {
	switch {
	case src.Kind() == reflect.Ptr && dst.Kind() == reflect.Ptr:
		inner, err := cc.compile(src.Elem(), dst.Elem(), nil)
		if err != nil {
			return compiled{}, err
		}

		res := inner
		res.fn = func(st *state, s, d reflect.Value) (reflect.Value, error) {
			if s.IsNil() {
				return cc.absent(d, dst), nil
			}

			if v, ok := st.lookup(s, dst); ok {
				return v, nil
			}

			out, cur := reflect.New(dst.Elem()), reflect.Value{}
			if cc.rs != CreateNew && d.IsValid() && !d.IsNil() {
				out, cur = d, d.Elem()
			}

			st.remember(s, out)

			v, err := inner.fn(st, s.Elem(), cur)
			if err != nil {
				return reflect.Value{}, err
			}

			out.Elem().Set(v)

			return out, nil
		}

		return res, nil

	case src.Kind() == reflect.Ptr:
		inner, err := cc.compile(src.Elem(), dst, nil)
		if err != nil {
			return compiled{}, err
		}

		return compiled{
			strategy: StrategyPointerDeref,
			unit:     inner.unit,
			fn: func(st *state, s, d reflect.Value) (reflect.Value, error) {
				if s.IsNil() {
					return cc.absent(d, dst), nil
				}

				return inner.fn(st, s.Elem(), d)
			},
		}, nil

	default:
		inner, err := cc.compile(src, dst.Elem(), nil)
		if err != nil {
			return compiled{}, err
		}

		return cc.wrap(src, dst, inner), nil
	}
}

// wrap maps a value source into a pointer target.
func (cc *compilation) wrap(src, dst reflect.Type, inner compiled) compiled {
	return compiled{
		strategy: StrategyPointerWrap,
		unit:     inner.unit,
		fn: func(st *state, s, d reflect.Value) (reflect.Value, error) {
			if isNil(s) {
				return cc.absent(d, dst), nil
			}

			if v, ok := st.lookup(s, dst); ok {
				return v, nil
			}

			out, cur := reflect.New(dst.Elem()), reflect.Value{}
			if cc.rs != CreateNew && d.IsValid() && !d.IsNil() {
				out, cur = d, d.Elem()
			}

			st.remember(s, out)

			v, err := inner.fn(st, s, cur)
			if err != nil {
				return reflect.Value{}, err
			}

			out.Elem().Set(v)

			return out, nil
		},
	}
}

// iface maps pairs with an interface on either side. Static sources use a
// derived pair registered for them; interface sources dispatch on the dynamic
// type at run time.
func (cc *compilation) iface(src, dst reflect.Type) (compiled, error) {
	if src.Kind() != reflect.Interface {
		return cc.staticIface(src, dst)
	}

	type route struct {
		entry *derivedEntry
		dst   reflect.Type
		adapt func(reflect.Value) reflect.Value
	}

	var (
		routes = make(map[reflect.Type]route)
		names  []string
	)

	for _, pair := range cc.rules.Derived {
		if _, seen := routes[pair.Src]; seen || !implements(pair.Src, src) {
			continue
		}

		adapt, ok := toTarget(pair.Dst, dst)
		if !ok {
			continue
		}

		e := cc.derivedRef(pair)
		routes[pair.Src] = route{entry: e, dst: pair.Dst, adapt: adapt}
		names = append(names, e.name)
	}

	call := func(st *state, r route, s, d reflect.Value) (reflect.Value, error) {
		v, err := r.entry.c.fn(st, s, existingFor(d, r.dst))
		if err != nil {
			return reflect.Value{}, err
		}

		return r.adapt(v), nil
	}

	// callRef maps a *X source through the route of X. The target is
	// allocated and remembered before mapping, so references back to s
	// resolve to it instead of recursing.
	callRef := func(st *state, r route, s, d reflect.Value) (reflect.Value, error) {
		ref := reflect.PointerTo(r.dst)

		result := func(out reflect.Value) reflect.Value {
			if r.dst.AssignableTo(dst) {
				return out.Elem()
			}

			return out
		}

		if v, ok := st.lookup(s, ref); ok {
			return result(v), nil
		}

		out, cur := reflect.New(r.dst), reflect.Value{}

		if cc.rs != CreateNew {
			e := d
			if e.IsValid() && e.Kind() == reflect.Interface && !e.IsNil() {
				e = e.Elem()
			}

			if e.IsValid() && e.Type() == ref && !e.IsNil() {
				out, cur = e, e.Elem()
			} else {
				cur = existingFor(d, r.dst)
			}
		}

		st.remember(s, out)

		v, err := r.entry.c.fn(st, s.Elem(), cur)
		if err != nil {
			return reflect.Value{}, err
		}

		out.Elem().Set(v)

		return result(out), nil
	}

	return compiled{
		strategy: StrategyDerived,
		note:     strings.Join(names, ", "),
		fn: func(st *state, s, d reflect.Value) (reflect.Value, error) {
			if s.Kind() == reflect.Interface && !s.IsNil() {
				s = s.Elem()
			}

			if isNil(s) {
				return cc.absent(d, dst), nil
			}

			if r, ok := routes[s.Type()]; ok {
				return call(st, r, s, d)
			}

			if s.Kind() == reflect.Ptr {
				if r, ok := routes[s.Type().Elem()]; ok {
					return callRef(st, r, s, d)
				}
			}

			dyn := s.Type()
			if dst.Kind() == reflect.Interface {
				if !dyn.AssignableTo(dst) {
					return reflect.Value{}, fmt.Errorf("%w: %s to %s",
						ErrNoDerivedPair, common.TypeName(dyn), common.TypeName(dst))
				}

				if !deepCopied(dyn) {
					return s, nil
				}

				fn, err := cc.plan.dynamicFunc(dyn, dyn)
				if err != nil {
					return reflect.Value{}, err
				}

				return fn(st, s, existingFor(d, dyn))
			}

			fn, err := cc.plan.dynamicFunc(dyn, dst)
			if err != nil {
				return reflect.Value{}, err
			}

			return fn(st, s, d)
		},
	}, nil
}

func (cc *compilation) staticIface(src, dst reflect.Type) (compiled, error) {
	for _, pair := range cc.rules.derivedFor(src) {
		adapt, ok := toTarget(pair.Dst, dst)
		if !ok {
			continue
		}

		e := cc.derivedRef(pair)

		return compiled{
			strategy: StrategyDerived,
			note:     e.name,
			fn: func(st *state, s, d reflect.Value) (reflect.Value, error) {
				if isNil(s) {
					return cc.absent(d, dst), nil
				}

				v, err := e.c.fn(st, s, existingFor(d, pair.Dst))
				if err != nil {
					return reflect.Value{}, err
				}

				return adapt(v), nil
			},
		}, nil
	}

	if !src.AssignableTo(dst) {
		return compiled{}, unsupported(src, dst)
	}

	if !deepCopied(src) {
		return cc.direct(), nil
	}

	inner, err := cc.compile(src, src, nil)
	if err != nil {
		return compiled{}, err
	}

	res := inner
	res.fn = func(st *state, s, d reflect.Value) (reflect.Value, error) {
		if isNil(s) {
			return cc.absent(d, dst), nil
		}

		return inner.fn(st, s, existingFor(d, src))
	}

	return res, nil
}

// toTarget returns how a value of a derived target type t is stored into dst.
func toTarget(t, dst reflect.Type) (func(reflect.Value) reflect.Value, bool) {
	switch {
	case t.AssignableTo(dst):
		return func(v reflect.Value) reflect.Value { return v }, true
	case t.Kind() != reflect.Ptr && dst.Kind() == reflect.Interface && reflect.PointerTo(t).AssignableTo(dst):
		return func(v reflect.Value) reflect.Value {
			p := reflect.New(t)
			p.Elem().Set(v)

			return p
		}, true
	default:
		return nil, false
	}
}

// existingFor extracts the existing value of type t from a target slot that
// may hold it behind an interface or a pointer.
func existingFor(d reflect.Value, t reflect.Type) reflect.Value {
	if !d.IsValid() {
		return d
	}

	if d.Kind() == reflect.Interface {
		if d.IsNil() {
			return reflect.Value{}
		}

		d = d.Elem()
	}

	switch {
	case d.Type() == t:
		return d
	case d.Kind() == reflect.Ptr && d.Type().Elem() == t && !d.IsNil():
		return d.Elem()
	default:
		return reflect.Value{}
	}
}

func implements(t, iface reflect.Type) bool {
	return t.AssignableTo(iface) || (t.Kind() != reflect.Ptr && reflect.PointerTo(t).AssignableTo(iface))
}

// deepCopied reports whether values of t own references that a mapping
// between identical types must copy rather than share.
func deepCopied(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	case reflect.Array:
		return deepCopied(t.Elem())
	case reflect.Struct:
		return !primitive.IsScalar(t) && len(member.Fields(t)) > 0
	default:
		return false
	}
}

// isComplex reports whether Merge descends into an existing value of t
// instead of keeping it whole.
func isComplex(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr:
		return isComplex(t.Elem())
	case reflect.Struct:
		return !primitive.IsScalar(t)
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array, reflect.Map:
		return true
	default:
		return false
	}
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return !v.IsValid()
	}
}

func unsupported(src, dst reflect.Type) error {
	return fmt.Errorf("%w: %s to %s", ErrUnsupported, common.TypeName(src), common.TypeName(dst))
}

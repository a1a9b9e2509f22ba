package plan

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"go.uber.org/zap"

	"struct-mapper/internal/common"
	"struct-mapper/internal/creation"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/member"
	nodepkg "struct-mapper/node"
)

// mapFunc maps src into a value of the target type it was compiled for. dst
// is the existing target value, invalid when there is none. The result is
// always a valid value of the target type.
type mapFunc func(st *state, src, dst reflect.Value) (reflect.Value, error)

// compiled is one node of the closure tree.
type compiled struct {
	fn       mapFunc
	strategy Strategy
	// unit is the struct unit reached by fn, if any, for descriptions.
	unit *unit
	// note qualifies the strategy in descriptions, e.g. a submapping name.
	note string
}

func (c compiled) label() string {
	if c.note == "" {
		return c.strategy.String()
	}

	return c.strategy.String() + " " + c.note
}

type pairKey struct {
	src, dst reflect.Type
	prefix   string
}

// unit is the compiled mapping of a struct-like type pair.
type unit struct {
	key     pairKey
	name    string // submapping name, empty while inlined
	fn      mapFunc
	factory *creation.Factory
	params  []memberPlan
	members []memberPlan
}

type memberPlan struct {
	target   member.Member
	path     string
	ignored  bool
	consumed bool // populated by the factory
	sources  []sourcePlan
	// zeroOnAbsent makes Overwrite reset the member when no source has a
	// value; dictionary-only members keep their value on missing keys.
	zeroOnAbsent bool
}

type sourcePlan struct {
	ds datasource.DataSource
	compiled
}

// value reads the first present data source and maps it onto cur.
func (mp *memberPlan) value(st *state, src, cur reflect.Value) (reflect.Value, bool, error) {
	for _, sp := range mp.sources {
		if sp.ds.Condition != nil && !sp.ds.Condition(src) {
			continue
		}

		v, ok, err := sp.ds.Value(src)
		if err != nil {
			return reflect.Value{}, false, wrapErr(mp.path, err)
		}

		if !ok {
			continue
		}

		res, err := sp.fn(st, v, cur)
		if err != nil {
			return reflect.Value{}, false, wrapErr(mp.path, err)
		}

		return res, true, nil
	}

	return reflect.Value{}, false, nil
}

// submapping is a named, separately described part of a plan.
type submapping struct {
	name string
	pair nodepkg.Pair
	c    *compiled
}

// Plan is an executable mapping from Source to Target under a rule set.
type Plan struct {
	Source, Target reflect.Type
	RuleSet        RuleSet
	Diagnostics    diagnostic.Diagnostics

	root     compiled
	subs     []submapping
	compiler *Compiler
	dynamic  sync.Map // nodepkg.Pair -> mapFunc
}

// Execute maps src onto dst, which must be a settable value of the target
// type. Under CreateNew the current value of dst is ignored.
func (p *Plan) Execute(src, dst reflect.Value) error {
	if !dst.IsValid() || !dst.CanSet() || dst.Type() != p.Target {
		return fmt.Errorf("%w: want a settable %s", ErrInvalidTarget, common.TypeName(p.Target))
	}

	if !src.IsValid() {
		src = reflect.Zero(p.Source)
	}

	if src.Type() != p.Source && !(p.Source.Kind() == reflect.Interface && src.Type().Implements(p.Source)) {
		return fmt.Errorf("%w: source %s, plan expects %s",
			ErrInvalidSource, common.TypeName(src.Type()), common.TypeName(p.Source))
	}

	var existing reflect.Value
	if p.RuleSet != CreateNew {
		existing = dst
	}

	res, err := p.root.fn(newState(), src, existing)
	if err != nil {
		return err
	}

	dst.Set(res)

	return nil
}

// dynamicFunc returns the mapping of a pair met only at run time, compiling
// it on first use.
func (p *Plan) dynamicFunc(src, dst reflect.Type) (mapFunc, error) {
	key := nodepkg.Pair{Src: src, Dst: dst}
	if fn, ok := p.dynamic.Load(key); ok {
		return fn.(mapFunc), nil
	}

	var diags diagnostic.Diagnostics

	cc := newCompilation(p.compiler, p, &diags, "dyn")

	c, err := cc.compile(src, dst, nil)
	if err == nil {
		cc.drain()
		err = diags.Error()
	}

	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", key, err)
	}

	p.compiler.logger.Debug("compiled dynamic pair",
		zap.Stringer("pair", key),
		zap.Stringer("rule_set", p.RuleSet),
	)

	fn, _ := p.dynamic.LoadOrStore(key, c.fn)

	return fn.(mapFunc), nil
}

// Submappings returns the names of the extracted submappings in naming order.
func (p *Plan) Submappings() []string {
	names := make([]string, len(p.subs))
	for i, s := range p.subs {
		names[i] = s.name
	}

	return names
}

// Describe renders the plan: the root mapping with inlined nested mappings,
// then every named submapping.
func (p *Plan) Describe() string {
	var sb strings.Builder

	sb.WriteString(nodepkg.Pair{Src: p.Source, Dst: p.Target}.String())
	sb.WriteString(" (" + p.RuleSet.String() + ")")

	if p.root.unit != nil && p.root.unit.name != "" {
		sb.WriteString(" as " + p.root.unit.name)
	}

	sb.WriteString("\n")
	describeCompiled(&sb, p.root, 1)

	for _, s := range p.subs {
		if s.c.unit != nil && s.c.unit == p.root.unit {
			continue
		}

		sb.WriteString(s.name + ": " + s.pair.String() + "\n")
		describeCompiled(&sb, *s.c, 1)
	}

	return sb.String()
}

func describeCompiled(sb *strings.Builder, c compiled, depth int) {
	if c.unit == nil {
		sb.WriteString(strings.Repeat("  ", depth) + "(" + c.label() + ")\n")
		return
	}

	describeUnit(sb, c.unit, depth)
}

func describeUnit(sb *strings.Builder, u *unit, depth int) {
	indent := strings.Repeat("  ", depth)

	if u.factory != nil {
		sb.WriteString(indent + "create using " + u.factory.String() + "\n")

		for i := range u.params {
			describeMember(sb, &u.params[i], depth+1)
		}
	}

	for i := range u.members {
		describeMember(sb, &u.members[i], depth)
	}
}

func describeMember(sb *strings.Builder, mp *memberPlan, depth int) {
	indent := strings.Repeat("  ", depth)
	name := mp.target.Name

	switch mp.target.Kind {
	case member.KindEntry:
		name = `["` + name + `"]`
	case member.KindParam:
		name = "(" + name + ")"
	}

	switch {
	case mp.ignored:
		sb.WriteString(indent + name + " (" + StrategyIgnore.String() + ")\n")
		return
	case mp.consumed:
		sb.WriteString(indent + name + " (created)\n")
		return
	case len(mp.sources) == 0:
		sb.WriteString(indent + name + " (unmapped)\n")
		return
	}

	for _, sp := range mp.sources {
		label := sp.label()
		if sp.unit != nil && sp.unit.name != "" && sp.note == "" {
			label += " " + sp.unit.name
		}

		line := indent + name + " <- " + sp.ds.Describe + " (" + label + ")"
		if sp.ds.Conditional() {
			line += " when matched"
		}

		sb.WriteString(line + "\n")

		// named units are described on their own
		if sp.unit != nil && sp.unit.name == "" {
			describeUnit(sb, sp.unit, depth+1)
		}
	}
}

// identity keys run-time reference values already mapped.
type identity struct {
	addr     uintptr
	src, dst reflect.Type
}

// state is the per-execution context.
type state struct {
	seen map[identity]reflect.Value
}

func newState() *state {
	return &state{seen: make(map[identity]reflect.Value)}
}

func identityOf(src reflect.Value, dst reflect.Type) (identity, bool) {
	switch src.Kind() {
	case reflect.Ptr, reflect.Map:
		if src.IsNil() {
			return identity{}, false
		}

		return identity{addr: src.Pointer(), src: src.Type(), dst: dst}, true
	default:
		return identity{}, false
	}
}

// lookup returns the target already mapped from the reference src.
func (st *state) lookup(src reflect.Value, dst reflect.Type) (reflect.Value, bool) {
	id, ok := identityOf(src, dst)
	if !ok {
		return reflect.Value{}, false
	}

	v, ok := st.seen[id]

	return v, ok
}

// remember records the target mapped from src before its members are mapped,
// so that references back to src resolve to it.
func (st *state) remember(src, target reflect.Value) {
	if id, ok := identityOf(src, target.Type()); ok {
		st.seen[id] = target
	}
}

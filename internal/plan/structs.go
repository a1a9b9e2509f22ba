package plan

import (
	"errors"
	"reflect"
	"strings"

	"struct-mapper/internal/common"
	"struct-mapper/internal/creation"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/member"
	nodepkg "struct-mapper/node"
	"struct-mapper/primitive"
)

// structPair returns the unit of a struct target populated member by member,
// from a struct or a dictionary. Units are cached before their members are
// compiled: meeting a unit that is still being compiled means the type graph
// is recursive, and the unit becomes a named submapping.
func (cc *compilation) structPair(src, dst reflect.Type, prefix []string) compiled {
	key := pairKey{src: src, dst: dst, prefix: strings.Join(prefix, ".")}

	strategy := StrategyNested
	if member.IsDictionary(src) {
		strategy = StrategyMapToStruct
	}

	if u, ok := cc.units[key]; ok {
		if !cc.active[key] && u.name == "" {
			return compiled{strategy: strategy, unit: u, fn: u.fn}
		}

		cc.extract(u)

		return compiled{
			strategy: StrategySubmapping,
			note:     u.name,
			unit:     u,
			fn: func(st *state, s, d reflect.Value) (reflect.Value, error) {
				return u.fn(st, s, d)
			},
		}
	}

	u := &unit{key: key}
	cc.units[key] = u
	cc.active[key] = true

	cc.buildUnit(u, src, dst, prefix)
	delete(cc.active, key)

	return compiled{strategy: strategy, unit: u, fn: u.fn}
}

// extract names a unit as a submapping.
func (cc *compilation) extract(u *unit) {
	if u.name != "" {
		return
	}

	u.name = cc.stem.Next()

	c := &compiled{strategy: StrategyNested, unit: u}
	c.fn = func(st *state, s, d reflect.Value) (reflect.Value, error) {
		return u.fn(st, s, d)
	}

	cc.subs = append(cc.subs, submapping{
		name: u.name,
		pair: nodepkg.Pair{Src: u.key.src, Dst: u.key.dst},
		c:    c,
	})
}

func (cc *compilation) buildUnit(u *unit, src, dst reflect.Type, prefix []string) {
	pairName := nodepkg.Pair{Src: src, Dst: dst}.String()
	srcRoot, dstRoot := member.Root(src), member.Root(dst)

	var rules *PairRules
	if len(prefix) == 0 {
		rules = cc.rules.pair(src, dst)
	}

	request := func(target member.Qualified) datasource.Request {
		req := datasource.Request{Source: srcRoot, Target: target, Prefix: prefix, Pair: pairName}

		if rules != nil {
			name := target.Leaf().Name
			req.Configured = configuredFor(rules, name)
			_, req.Ignored = rules.Ignore[name]
		}

		return req
	}

	if factories := cc.rules.factories(dst); len(factories) > 0 {
		canSource := func(p member.Member) bool {
			return cc.resolver.CanSource(request(dstRoot.Append(p)))
		}

		if f, ok := creation.Select(factories, canSource); ok {
			u.factory = &f

			for _, p := range f.Params {
				u.params = append(u.params, cc.memberPlan(request(dstRoot.Append(p)), cc.diags))
			}

			cc.diags.AddInfo(diagnostic.CodeFactory, "created using "+f.String(), pairName, dstRoot.Path())
		}
	}

	for _, f := range member.Fields(dst) {
		consumed := u.factory != nil && u.factory.Consumes(f.Name)

		diags := cc.diags
		if consumed {
			diags = nil
		}

		mp := cc.memberPlan(request(dstRoot.Append(f)), diags)
		mp.consumed = consumed
		u.members = append(u.members, mp)

		if q := elementOf(dstRoot.Append(f)); q.Recursive() && len(mp.sources) > 0 {
			cc.diags.AddInfo(diagnostic.CodeRecursive,
				"refers back to "+common.TypeName(member.Indirect(q.Type())), pairName, q.Path())
		}
	}

	if rules != nil {
		cc.checkRules(rules, u, pairName, dstRoot)
	}

	u.fn = cc.structFunc(u, src, dst)
}

// elementOf extends q to the element of a collection member, so that
// recursion through slices and maps is seen.
func elementOf(q member.Qualified) member.Qualified {
	switch t := member.Indirect(q.Type()); t.Kind() {
	case reflect.Slice, reflect.Array:
		return q.Append(member.Element(t.Elem()))
	case reflect.Map:
		if !member.IsDictionary(t) {
			return q.Append(member.Element(t.Elem()))
		}
	}

	return q
}

// checkRules reports configured names that match no target member.
func (cc *compilation) checkRules(rules *PairRules, u *unit, pairName string, dstRoot member.Qualified) {
	known := func(name string) bool {
		if _, ok := member.FieldByName(dstRoot.Root, name); ok {
			return true
		}

		return u.factory != nil && u.factory.Consumes(name)
	}

	for name := range rules.Members {
		if !known(name) {
			cc.diags.AddError(diagnostic.CodeUnknownMember, "configured member "+name+" does not exist", pairName, dstRoot.Path())
		}
	}

	for name := range rules.Ignore {
		if !known(name) {
			cc.diags.AddError(diagnostic.CodeUnknownMember, "ignored member "+name+" does not exist", pairName, dstRoot.Path())
		}
	}
}

func configuredFor(rules *PairRules, name string) []datasource.Configured {
	if cfg, ok := rules.Members[name]; ok {
		return cfg
	}

	for key, cfg := range rules.Members {
		if strings.EqualFold(key, name) {
			return cfg
		}
	}

	return nil
}

// memberPlan resolves and compiles the data sources of one target member.
// A nil diags silences diagnostics.
func (cc *compilation) memberPlan(req datasource.Request, diags *diagnostic.Diagnostics) memberPlan {
	target := req.Target.Leaf()
	mp := memberPlan{target: target, path: req.Target.Path(), ignored: req.Ignored}

	for _, ds := range cc.resolver.Resolve(req, diags) {
		c, err := cc.compileSource(ds, target.Type)
		if err != nil {
			if diags != nil {
				cc.reportSource(ds, err, req, diags)
			}

			continue
		}

		mp.sources = append(mp.sources, sourcePlan{ds: ds, compiled: c})

		if ds.Kind != datasource.KindEntry {
			mp.zeroOnAbsent = true
		}
	}

	return mp
}

func (cc *compilation) compileSource(ds datasource.DataSource, t reflect.Type) (compiled, error) {
	c, err := cc.compile(ds.Type, t, ds.Prefix)
	if err != nil {
		return compiled{}, err
	}

	switch ds.Kind {
	case datasource.KindConstant:
		c.strategy, c.note = StrategyConstant, ""
	case datasource.KindFunc:
		c.strategy, c.note = StrategyTransform, ""
	}

	return c, nil
}

// reportSource reports a data source whose type cannot reach the member.
// Configured sources are errors; automatic matches only warn unless strict.
func (cc *compilation) reportSource(ds datasource.DataSource, err error, req datasource.Request, diags *diagnostic.Diagnostics) {
	severity := diagnostic.DiagnosticWarning

	switch {
	case cc.settings.Strict:
		severity = diagnostic.DiagnosticError
	case ds.Kind == datasource.KindConfigured, ds.Kind == datasource.KindFunc, ds.Kind == datasource.KindConstant:
		severity = diagnostic.DiagnosticError
	}

	code := diagnostic.CodeUnsupported
	if errors.Is(err, ErrUnsupported) && isScalarPair(ds.Type, req.Target.Type()) {
		code = diagnostic.CodeConversion
	}

	diags.Add(diagnostic.Diagnostic{
		Severity:  severity,
		Code:      code,
		Message:   ds.Describe + ": " + err.Error(),
		TypePair:  req.Pair,
		FieldPath: req.Target.Path(),
	})
}

func (cc *compilation) structFunc(u *unit, src, dst reflect.Type) mapFunc {
	identical := src == dst && u.key.prefix == ""

	return func(st *state, s, d reflect.Value) (reflect.Value, error) {
		created := cc.rs == CreateNew || !d.IsValid()
		out := reflect.New(dst).Elem()

		switch {
		case !created:
			out.Set(d)
		case u.factory != nil:
			v, err := cc.construct(st, u, s)
			if err != nil {
				return reflect.Value{}, err
			}

			out.Set(v)
		case identical:
			// unexported state travels with the shallow copy
			out.Set(s)
		}

		for i := range u.members {
			mp := &u.members[i]
			if mp.ignored || len(mp.sources) == 0 || (created && mp.consumed) {
				continue
			}

			field := out.FieldByIndex(mp.target.Index)

			var cur reflect.Value
			if !created {
				if cc.rs == Merge && !isComplex(mp.target.Type) && !field.IsZero() {
					continue
				}

				cur = field
			}

			v, ok, err := mp.value(st, s, cur)
			if err != nil {
				return reflect.Value{}, err
			}

			switch {
			case ok:
				field.Set(v)
			case cc.rs == Overwrite && !created && mp.zeroOnAbsent:
				field.SetZero()
			}
		}

		return out, nil
	}
}

// construct calls the selected factory with sourced arguments; arguments
// without a value are zero.
func (cc *compilation) construct(st *state, u *unit, s reflect.Value) (reflect.Value, error) {
	args := make([]reflect.Value, len(u.params))

	for i := range u.params {
		pp := &u.params[i]

		v, ok, err := pp.value(st, s, reflect.Value{})
		if err != nil {
			return reflect.Value{}, err
		}

		if !ok {
			v = reflect.Zero(pp.target.Type)
		}

		args[i] = v
	}

	v, err := u.factory.Call(args)
	if err != nil {
		return reflect.Value{}, wrapErr(common.TypeName(u.key.dst), err)
	}

	return v, nil
}

func isScalarPair(src, dst reflect.Type) bool {
	return primitive.IsScalar(src) && primitive.IsScalar(dst)
}

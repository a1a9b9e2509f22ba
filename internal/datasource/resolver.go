package datasource

import (
	"fmt"
	"reflect"
	"strings"

	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/match"
	"struct-mapper/internal/member"
	"struct-mapper/primitive"
)

// Resolver enumerates data sources for target members.
type Resolver struct {
	Categories     primitive.CategoryEnum
	Strict         bool
	MaxSuggestions int
}

// Request describes one target member to resolve.
type Request struct {
	// Source is the pair source in context; its leaf type is the source type.
	Source member.Qualified
	// Target is the target member in context.
	Target member.Qualified
	// Prefix holds the names of enclosing target members populated from the
	// same source, see DataSource.Prefix.
	Prefix     []string
	Configured []Configured
	Ignored    bool
	// Pair labels diagnostics, e.g. "store.Order -> warehouse.Order".
	Pair string
}

func (r Request) sourceType() reflect.Type {
	return member.Indirect(r.Source.Type())
}

// Resolve returns the data sources of a target member in priority order:
// configured sources, a matching source member, a flattened source path,
// dictionary entries. A member without any is reported to diags as unmapped;
// diags may be nil.
func (r *Resolver) Resolve(req Request, diags *diagnostic.Diagnostics) []DataSource {
	if req.Ignored {
		return nil
	}

	sources, closed := r.configured(req, diags)
	if closed {
		return sources
	}

	if ds, ok := r.automatic(req, diags); ok {
		return append(sources, ds...)
	}

	if len(sources) == 0 && diags != nil {
		r.reportUnmapped(req, diags)
	}

	return sources
}

// CanSource reports whether the target member has at least one data source.
func (r *Resolver) CanSource(req Request) bool {
	return len(r.Resolve(req, nil)) > 0
}

// configured resolves configured sources. closed is true once an
// unconditional source ends the chain.
func (r *Resolver) configured(req Request, diags *diagnostic.Diagnostics) (sources []DataSource, closed bool) {
	for _, c := range sortConfigured(req.Configured) {
		ds, err := r.configuredSource(req, c)
		if err != nil {
			if diags != nil {
				diags.AddError(diagnostic.CodeUnknownMember, err.Error(), req.Pair, req.Target.Path())
			}

			continue
		}

		ds.Condition = c.Condition
		sources = append(sources, ds)

		if c.Condition == nil {
			return sources, true
		}
	}

	return sources, false
}

func (r *Resolver) configuredSource(req Request, c Configured) (DataSource, error) {
	src := req.sourceType()

	switch {
	case c.HasConstant:
		ds := constantSource(c, req.Target.Type())
		ds.Source = req.Source

		return ds, nil

	case c.Func.IsValid() && len(c.Paths) == 0:
		return r.funcSource(req, c)

	case c.Func.IsValid():
		return r.transformSource(req, c)

	case len(c.Paths) == 1:
		local, err := member.Lookup(src, c.Paths[0])
		if err != nil {
			return DataSource{}, err
		}

		return DataSource{
			Kind:     KindConfigured,
			Origin:   c.Origin,
			Source:   inContext(req.Source, local),
			Type:     local.Type(),
			Describe: local.RelativePath(),
			Value:    getter(local),
		}, nil

	default:
		return DataSource{}, fmt.Errorf("%w: %d source paths without a transform", ErrBadFunc, len(c.Paths))
	}
}

func (r *Resolver) funcSource(req Request, c Configured) (DataSource, error) {
	fnType := c.Func.Type()
	if fnType.NumIn() != 1 {
		return DataSource{}, fmt.Errorf("%w: %s must take the source value", ErrBadFunc, fnType)
	}

	if err := checkResults(fnType); err != nil {
		return DataSource{}, err
	}

	arg, ok := sourceArg(fnType.In(0), req.sourceType())
	if !ok {
		return DataSource{}, fmt.Errorf("%w: %s does not accept %s", ErrBadFunc, fnType, req.Source.Type())
	}

	label := c.Label
	if label == "" {
		label = "func"
	}

	return DataSource{
		Kind:     KindFunc,
		Origin:   c.Origin,
		Source:   req.Source,
		Type:     fnType.Out(0),
		Describe: label + "(source)",
		Value: func(src reflect.Value) (reflect.Value, bool, error) {
			return callResult(c.Func, []reflect.Value{arg(src)})
		},
	}, nil
}

func (r *Resolver) transformSource(req Request, c Configured) (DataSource, error) {
	fnType := c.Func.Type()
	if fnType.NumIn() != len(c.Paths) || fnType.IsVariadic() {
		return DataSource{}, fmt.Errorf("%w: %s takes %d arguments, %d source paths given",
			ErrBadFunc, fnType, fnType.NumIn(), len(c.Paths))
	}

	if err := checkResults(fnType); err != nil {
		return DataSource{}, err
	}

	locals := make([]member.Qualified, len(c.Paths))
	for i, path := range c.Paths {
		local, err := member.Lookup(req.sourceType(), path)
		if err != nil {
			return DataSource{}, err
		}

		locals[i] = local
	}

	allowed := r.Categories

	return DataSource{
		Kind:     KindFunc,
		Origin:   c.Origin,
		Source:   req.Source,
		Type:     fnType.Out(0),
		Describe: c.Label + "(" + strings.Join(c.Paths, ", ") + ")",
		Value: func(src reflect.Value) (reflect.Value, bool, error) {
			args := make([]reflect.Value, len(locals))

			for i, local := range locals {
				in := fnType.In(i)

				v, ok := local.Get(src)
				if !ok {
					args[i] = reflect.Zero(in)
					continue
				}

				arg, err := Adapt(v, in, allowed)
				if err != nil {
					return reflect.Value{}, false, fmt.Errorf("%s argument %d: %w", c.Label, i+1, err)
				}

				args[i] = arg
			}

			return callResult(c.Func, args)
		},
	}, nil
}

// automatic finds a data source by name: a source member, a flattened path,
// a prefixed nested population or dictionary entries.
func (r *Resolver) automatic(req Request, diags *diagnostic.Diagnostics) ([]DataSource, bool) {
	src := req.sourceType()
	leaf := req.Target.Leaf()

	if member.IsDictionary(src) {
		return r.entries(req, diags)
	}

	name := strings.Join(req.Prefix, "") + leaf.MapName()

	if f, ok := matchMember(src, leaf, name, len(req.Prefix) == 0); ok {
		local := member.Root(src).Append(f)

		return []DataSource{{
			Kind:     KindMember,
			Source:   inContext(req.Source, local),
			Type:     f.Type,
			Describe: local.RelativePath(),
			Value:    getter(local),
		}}, true
	}

	if chain, ok := flatten(src, match.Tokens(name), 0); ok {
		local := member.Root(src)
		for _, m := range chain {
			local = local.Append(m)
		}

		if diags != nil {
			diags.AddInfo(diagnostic.CodeFlattened, "sourced from "+local.RelativePath(), req.Pair, req.Target.Path())
		}

		return []DataSource{{
			Kind:     KindFlattened,
			Source:   inContext(req.Source, local),
			Type:     local.Type(),
			Describe: local.RelativePath(),
			Value:    getter(local),
		}}, true
	}

	if isComplex(leaf.Type) && hasPrefixedField(src, name) {
		prefix := append(append([]string(nil), req.Prefix...), leaf.MapName())

		if diags != nil {
			diags.AddInfo(diagnostic.CodeFlattened, "populated from members prefixed "+name, req.Pair, req.Target.Path())
		}

		return []DataSource{{
			Kind:     KindFlattened,
			Source:   req.Source,
			Type:     src,
			Prefix:   prefix,
			Describe: name + "*",
			Value: func(src reflect.Value) (reflect.Value, bool, error) {
				return src, true, nil
			},
		}}, true
	}

	return nil, false
}

// entries resolves a target member against a string-keyed map source.
func (r *Resolver) entries(req Request, diags *diagnostic.Diagnostics) ([]DataSource, bool) {
	src := req.sourceType()
	leaf := req.Target.Leaf()

	keys := []string{joinPrefix(req.Prefix, ".", leaf.MapName())}
	if len(req.Prefix) > 0 {
		keys = append(keys, strings.Join(req.Prefix, "")+leaf.MapName())
	}

	if tag := leaf.JSONName(); tag != "" && len(req.Prefix) == 0 && !strings.EqualFold(tag, leaf.MapName()) {
		keys = append(keys, tag)
	}

	var sources []DataSource

	for _, key := range keys {
		local := member.Root(src).Append(member.Entry(key, src.Elem()))
		sources = append(sources, DataSource{
			Kind:     KindEntry,
			Source:   inContext(req.Source, local),
			Type:     src.Elem(),
			Describe: local.RelativePath(),
			Value:    getter(local),
		})
	}

	if isComplex(leaf.Type) {
		prefix := append(append([]string(nil), req.Prefix...), leaf.MapName())
		dotted := strings.ToLower(strings.Join(prefix, ".") + ".")

		sources = append(sources, DataSource{
			Kind:     KindEntry,
			Source:   req.Source,
			Type:     src,
			Prefix:   prefix,
			Describe: `["` + strings.Join(prefix, ".") + `.*"]`,
			Value: func(src reflect.Value) (reflect.Value, bool, error) {
				iter := src.MapRange()
				for iter.Next() {
					if strings.HasPrefix(strings.ToLower(iter.Key().String()), dotted) {
						return src, true, nil
					}
				}

				return reflect.Value{}, false, nil
			},
		})
	}

	if diags != nil {
		diags.AddInfo(diagnostic.CodeDictionaryEntry, "sourced from dictionary key "+keys[0], req.Pair, req.Target.Path())
	}

	return sources, true
}

func (r *Resolver) reportUnmapped(req Request, diags *diagnostic.Diagnostics) {
	diag := diagnostic.Diagnostic{
		Severity:  diagnostic.DiagnosticWarning,
		Code:      diagnostic.CodeUnmapped,
		Message:   "no data source for target member",
		TypePair:  req.Pair,
		FieldPath: req.Target.Path(),
	}

	if r.Strict {
		diag.Severity = diagnostic.DiagnosticError
	}

	diag.Suggestions = match.Suggest(req.Target.Leaf(), member.Fields(req.sourceType()), r.Categories, r.MaxSuggestions)
	diags.Add(diag)
}

// matchMember finds the source member for a target member: `map` tag or exact
// name, case-insensitive name, then equal json tags.
func matchMember(src reflect.Type, target member.Member, name string, useJSON bool) (member.Member, bool) {
	fields := member.Fields(src)

	for _, f := range fields {
		if f.Name == name || f.MapName() == name {
			return f, true
		}
	}

	for _, f := range fields {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.MapName(), name) {
			return f, true
		}
	}

	if tag := target.JSONName(); useJSON && tag != "" {
		for _, f := range fields {
			if f.JSONName() == tag {
				return f, true
			}
		}
	}

	return member.Member{}, false
}

// flatten splits name tokens into a source member prefix and a remainder
// resolved below it: "CustomerAddressCity" finds Customer.Address.City.
func flatten(src reflect.Type, tokens []string, depth int) ([]member.Member, bool) {
	if depth > 0 {
		if f, ok := member.FieldByNameFold(src, strings.Join(tokens, "")); ok {
			return []member.Member{f}, true
		}
	}

	for i := 1; i < len(tokens); i++ {
		head, ok := member.FieldByNameFold(src, strings.Join(tokens[:i], ""))
		if !ok || !isComplex(head.Type) {
			continue
		}

		if rest, ok := flatten(member.Indirect(head.Type), tokens[i:], depth+1); ok {
			return append([]member.Member{head}, rest...), true
		}
	}

	return nil, false
}

func hasPrefixedField(src reflect.Type, prefix string) bool {
	prefix = strings.ToLower(prefix)

	for _, f := range member.Fields(src) {
		name := strings.ToLower(f.MapName())
		if len(name) > len(prefix) && strings.HasPrefix(name, prefix) {
			return true
		}
	}

	return false
}

// isComplex reports whether t (pointers unwrapped) is a struct populated
// member by member rather than a scalar.
func isComplex(t reflect.Type) bool {
	t = member.Indirect(t)
	return t.Kind() == reflect.Struct && !primitive.IsScalar(t)
}

func getter(local member.Qualified) func(reflect.Value) (reflect.Value, bool, error) {
	return func(src reflect.Value) (reflect.Value, bool, error) {
		v, ok := local.Get(src)
		return v, ok, nil
	}
}

func inContext(ctx, local member.Qualified) member.Qualified {
	for _, m := range local.Chain {
		ctx = ctx.Append(m)
	}

	return ctx
}

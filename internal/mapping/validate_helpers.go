package mapping

import (
	"fmt"
	"reflect"
	"sort"

	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/member"
)

// typeMappingValidator validates one type mapping whose types are resolved.
type typeMappingValidator struct {
	res        *diagnostic.Diagnostics
	tm         *TypeMapping
	pair       string
	src, dst   reflect.Type
	transforms *TransformRegistry
}

func (v *typeMappingValidator) validate() {
	params := v.validateCreate()

	sources := make([]string, 0, len(v.tm.OneToOne))
	for sp := range v.tm.OneToOne {
		sources = append(sources, sp)
	}

	sort.Strings(sources)

	for _, sp := range sources {
		v.validateSource(sp, "121")
		v.validateTarget(v.tm.OneToOne[sp], params)
	}

	for i := range v.tm.Fields {
		v.validateFieldMapping(&v.tm.Fields[i], params)
	}

	for i := range v.tm.Auto {
		v.validateFieldMapping(&v.tm.Auto[i], params)
	}

	for _, ig := range v.tm.Ignore {
		v.validateTarget(ig, params)

		for i := range v.tm.Fields {
			if v.tm.Fields[i].Target.Contains(ig) {
				v.res.AddError(diagnostic.CodeInvalidRule, fmt.Sprintf("member %q is both mapped and ignored", ig), v.pair, ig)
			}
		}
	}

	if v.tm.Identify != "" {
		for _, t := range []reflect.Type{v.src, v.dst} {
			if _, ok := member.FieldByName(member.Indirect(t), v.tm.Identify); !ok {
				v.res.AddError(diagnostic.CodeUnknownMember,
					fmt.Sprintf("identity member %q not found in %s", v.tm.Identify, t), v.pair, v.tm.Identify)
			}
		}
	}
}

// validateCreate checks the factory and returns its parameter names.
func (v *typeMappingValidator) validateCreate() []string {
	c := v.tm.Create
	if c == nil {
		return nil
	}

	vt := v.transforms.Get(c.Func)
	if vt == nil {
		v.res.AddError(diagnostic.CodeInvalidRule, fmt.Sprintf("factory %q is not registered", c.Func), v.pair, "")
		return c.Params
	}

	fnType := vt.Func.Type()
	if fnType.NumIn() != len(c.Params) {
		v.res.AddError(diagnostic.CodeInvalidRule,
			fmt.Sprintf("factory %q takes %d parameters, %d names given", c.Func, fnType.NumIn(), len(c.Params)), v.pair, "")
	}

	if out := member.Indirect(fnType.Out(0)); out != member.Indirect(v.dst) {
		v.res.AddError(diagnostic.CodeInvalidRule,
			fmt.Sprintf("factory %q builds %s, not %s", c.Func, out, v.tm.Target), v.pair, "")
	}

	return c.Params
}

func (v *typeMappingValidator) validateFieldMapping(fm *FieldMapping, params []string) {
	if fm.Target.IsEmpty() {
		v.res.AddError(diagnostic.CodeInvalidRule, "field mapping must specify target", v.pair, "")
	}

	for _, t := range fm.Target {
		v.validateTarget(t, params)
	}

	switch {
	case fm.Default != nil:
		if !fm.Source.IsEmpty() || fm.Transform != "" {
			v.res.AddError(diagnostic.CodeInvalidRule, "default excludes source and transform", v.pair, fm.Target.First())
		}

		return
	case fm.NeedsTransform() && fm.Transform == "":
		v.res.AddError(diagnostic.CodeInvalidRule,
			fmt.Sprintf("%s mapping requires transform, e.g. %s", fm.GetCardinality(), GenerateTransformName(fm.Source, fm.Target)),
			v.pair, fm.Target.First())
	case fm.Source.IsEmpty() && fm.Transform == "":
		v.res.AddError(diagnostic.CodeInvalidRule, "field mapping must specify source, transform or default", v.pair, fm.Target.First())
	}

	for _, s := range fm.Source {
		v.validateSource(s, "source")
	}

	if fm.Transform == "" {
		return
	}

	vt := v.transforms.Get(fm.Transform)
	if vt == nil {
		v.res.AddError(diagnostic.CodeInvalidRule, fmt.Sprintf("transform %q is not registered", fm.Transform), v.pair, fm.Target.First())
		return
	}

	want := len(fm.Source)
	if want == 0 {
		want = 1 // the whole source value
	}

	if got := vt.Func.Type().NumIn(); got != want {
		v.res.AddError(diagnostic.CodeInvalidRule,
			fmt.Sprintf("transform %q takes %d arguments, mapping passes %d", fm.Transform, got, want), v.pair, fm.Target.First())
	}
}

func (v *typeMappingValidator) validateSource(path, section string) {
	if err := validatePathAgainstType(path, v.src); err != nil {
		v.res.AddError(diagnostic.CodeUnknownMember, fmt.Sprintf("invalid %s path: %v", section, err), v.pair, path)
	}
}

// validateTarget checks a target member name; targets are members of the
// target type itself or factory parameters.
func (v *typeMappingValidator) validateTarget(name string, params []string) {
	fp, err := ParsePath(name)
	if err != nil {
		v.res.AddError(diagnostic.CodeInvalidRule, "invalid target path: "+err.Error(), v.pair, name)
		return
	}

	if !fp.IsSimple() {
		v.res.AddError(diagnostic.CodeInvalidRule,
			fmt.Sprintf("target %q is nested; configure the nested type pair instead", name), v.pair, name)

		return
	}

	if _, ok := member.FieldByNameFold(member.Indirect(v.dst), name); ok {
		return
	}

	for _, p := range params {
		if p == name {
			return
		}
	}

	v.res.AddError(diagnostic.CodeUnknownMember,
		fmt.Sprintf("target member %q not found in %s", name, v.tm.Target), v.pair, name)
}

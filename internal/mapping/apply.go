package mapping

import (
	"errors"
	"fmt"
	"reflect"

	"struct-mapper/internal/creation"
	"struct-mapper/internal/datasource"
	"struct-mapper/internal/member"
	"struct-mapper/internal/plan"
	"struct-mapper/options"
	"struct-mapper/primitive"
)

var ErrInvalidRules = errors.New("invalid mapping rules")

// Apply validates mf and adds its mappings to rules. Nothing is added when
// validation reports errors; the returned error then wraps ErrInvalidRules
// and lists every diagnostic error.
func Apply(mf *MappingFile, types *TypeRegistry, transforms *TransformRegistry, rules *plan.Rules) error {
	if types == nil {
		types = NewTypeRegistry()
	}

	if transforms == nil {
		transforms = &TransformRegistry{transforms: map[string]*ValidatedTransform{}}
	}

	diags := Validate(mf, types, transforms)
	if diags.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidRules, diags.Error())
	}

	for i := range mf.TypeMappings {
		tm := mf.TypeMappings[i]

		// types resolve here since validation passed
		src, _ := types.Resolve(tm.Source)
		dst, _ := types.Resolve(tm.Target)

		if err := applyTypeMapping(&tm, member.Indirect(src), member.Indirect(dst), types, transforms, rules); err != nil {
			return fmt.Errorf("%s: %w", tm.String(), err)
		}
	}

	return nil
}

func applyTypeMapping(tm *TypeMapping, src, dst reflect.Type, types *TypeRegistry, transforms *TransformRegistry, rules *plan.Rules) error {
	pr := rules.Pair(src, dst)

	for source, target := range tm.OneToOne {
		pr.Members[target] = append(pr.Members[target], datasource.Configured{
			Origin: datasource.Origin121,
			Paths:  []string{source},
		})
	}

	for i := range tm.Fields {
		addFieldMapping(pr, &tm.Fields[i], datasource.OriginFields, transforms)
	}

	for i := range tm.Auto {
		addFieldMapping(pr, &tm.Auto[i], datasource.OriginAuto, transforms)
	}

	for _, name := range tm.Ignore {
		pr.Ignore[name] = struct{}{}
	}

	if tm.Identify != "" {
		rules.Identities[src] = tm.Identify
		rules.Identities[dst] = tm.Identify
	}

	for _, d := range tm.Derived {
		ds, _ := types.Resolve(d.Source)
		dd, _ := types.Resolve(d.Target)
		rules.AddDerived(ds, dd)
	}

	if tm.Create != nil {
		factory, err := creation.NewFactory(transforms.Get(tm.Create.Func).Func.Interface(), tm.Create.Params...)
		if err != nil {
			return err
		}

		rules.Factories[dst] = append(rules.Factories[dst], factory)
	}

	return nil
}

func addFieldMapping(pr *plan.PairRules, fm *FieldMapping, origin datasource.Origin, transforms *TransformRegistry) {
	cfg := datasource.Configured{Origin: origin, Paths: []string(fm.Source)}

	switch {
	case fm.Default != nil:
		cfg = datasource.Configured{Origin: origin, Constant: *fm.Default, HasConstant: true}
	case fm.Transform != "":
		cfg.Func = transforms.Get(fm.Transform).Func
		cfg.Label = fm.Transform
	}

	for _, target := range fm.Target {
		pr.Members[target] = append(pr.Members[target], cfg)
	}
}

// Options converts file settings into mapper options.
func (s *SettingsDef) Options() ([]options.Option, error) {
	if s == nil {
		return nil, nil
	}

	var opts []options.Option

	if len(s.Categories) > 0 {
		categories, err := primitive.ParseCategories(s.Categories)
		if err != nil {
			return nil, err
		}

		opts = append(opts, options.WithCategories(categories))
	}

	switch {
	case s.Strict == nil:
	case *s.Strict:
		opts = append(opts, options.WithStrict())
	default:
		opts = append(opts, options.WithLenient())
	}

	if len(s.IdentityNames) > 0 {
		opts = append(opts, options.WithIdentityNames(s.IdentityNames...))
	}

	if s.MaxSuggestions != nil {
		opts = append(opts, options.WithMaxSuggestions(*s.MaxSuggestions))
	}

	return opts, nil
}

package mapping

import (
	"fmt"
	"reflect"
	"sort"

	"struct-mapper/internal/diagnostic"
	"struct-mapper/internal/member"
	"struct-mapper/primitive"
	"struct-mapper/utils"
)

// maxSuggestionsLimit bounds settings.max_suggestions.
const maxSuggestionsLimit = 20

// Validate validates a rule file against registered types and transforms.
// It checks names and paths only; type compatibility of configured sources
// is checked when plans are compiled.
func Validate(mf *MappingFile, types *TypeRegistry, transforms *TransformRegistry) *diagnostic.Diagnostics {
	res := &diagnostic.Diagnostics{}
	if mf == nil {
		res.AddError(diagnostic.CodeInvalidRule, "mapping file is nil", "", "")
		return res
	}

	if types == nil {
		types = NewTypeRegistry()
	}

	if transforms == nil {
		transforms = &TransformRegistry{transforms: map[string]*ValidatedTransform{}}
	}

	validateSettings(res, mf.Settings)

	seenTransforms := map[string]struct{}{}

	for i := range mf.Transforms {
		name := mf.Transforms[i].Name
		if name == "" {
			res.AddError(diagnostic.CodeInvalidRule, "transform without name", "", "")
			continue
		}

		if _, ok := seenTransforms[name]; ok {
			res.AddError(diagnostic.CodeInvalidRule, fmt.Sprintf("duplicate transform %q", name), "", name)
			continue
		}

		seenTransforms[name] = struct{}{}
	}

	for _, err := range transforms.Declare(mf.Transforms, types) {
		res.AddError(diagnostic.CodeInvalidRule, err.Error(), "", "")
	}

	seenPairs := map[string]struct{}{}

	for i := range mf.TypeMappings {
		tm := &mf.TypeMappings[i]
		tpStr := tm.String()

		srcT, err := types.Resolve(tm.Source)
		if err != nil {
			res.AddError(diagnostic.CodeUnknownType, "source: "+err.Error(), tpStr, tm.Source)
			continue
		}

		dstT, err := types.Resolve(tm.Target)
		if err != nil {
			res.AddError(diagnostic.CodeUnknownType, "target: "+err.Error(), tpStr, tm.Target)
			continue
		}

		key := srcT.String() + "|" + dstT.String()
		if _, dup := seenPairs[key]; dup {
			res.AddError(diagnostic.CodeInvalidRule, "duplicate mapping of the type pair", tpStr, "")
			continue
		}

		seenPairs[key] = struct{}{}

		if member.Indirect(dstT).Kind() != reflect.Struct {
			res.AddError(diagnostic.CodeInvalidRule, "target type must be a struct", tpStr, tm.Target)
			continue
		}

		v := typeMappingValidator{res: res, tm: tm, pair: tpStr, src: srcT, dst: dstT, transforms: transforms}
		v.validate()
		validateDerived(res, tpStr, tm.Derived, types)
	}

	return res
}

func validateSettings(res *diagnostic.Diagnostics, s *SettingsDef) {
	if s == nil {
		return
	}

	if _, err := primitive.ParseCategories(s.Categories); err != nil {
		res.AddError(diagnostic.CodeInvalidRule, "settings.categories: "+err.Error(), "", "")
	}

	if s.MaxSuggestions != nil && !utils.IsInRange(0, *s.MaxSuggestions, maxSuggestionsLimit) {
		res.AddError(diagnostic.CodeInvalidRule,
			fmt.Sprintf("settings.max_suggestions must be between 0 and %d", maxSuggestionsLimit), "", "")
	}

	for _, name := range s.IdentityNames {
		if !isValidIdent(name) {
			res.AddError(diagnostic.CodeInvalidRule, fmt.Sprintf("settings.identity_names: invalid identifier %q", name), "", "")
		}
	}
}

func validateDerived(res *diagnostic.Diagnostics, tpStr string, derived []DerivedDef, types *TypeRegistry) {
	for _, d := range derived {
		if _, err := types.Resolve(d.Source); err != nil {
			res.AddError(diagnostic.CodeUnknownType, "derived source: "+err.Error(), tpStr, d.Source)
		}

		if _, err := types.Resolve(d.Target); err != nil {
			res.AddError(diagnostic.CodeUnknownType, "derived target: "+err.Error(), tpStr, d.Target)
		}
	}
}

// validatePathAgainstType resolves a dotted source path below t.
func validatePathAgainstType(pathStr string, t reflect.Type) error {
	fp, err := ParsePath(pathStr)
	if err != nil {
		return err
	}

	if fp.HasElements() {
		return fmt.Errorf("%w %q: elements are mapped by their own type pair", ErrInvalidPath, pathStr)
	}

	_, err = member.Lookup(t, pathStr)

	return err
}

// MissingTransforms lists the transform names referenced by mappings that
// are not registered, sorted.
func MissingTransforms(mf *MappingFile, transforms *TransformRegistry) []string {
	missing := map[string]struct{}{}

	check := func(name string) {
		if name != "" && (transforms == nil || !transforms.Has(name)) {
			missing[name] = struct{}{}
		}
	}

	for i := range mf.TypeMappings {
		tm := &mf.TypeMappings[i]

		for _, fm := range tm.Fields {
			check(fm.Transform)
		}

		for _, fm := range tm.Auto {
			check(fm.Transform)
		}

		if tm.Create != nil {
			check(tm.Create.Func)
		}
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

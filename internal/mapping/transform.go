package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"struct-mapper/internal/common"
)

var ErrInvalidTransform = errors.New("invalid transform")

// TransformRegistry holds the functions rule files reference by name.
type TransformRegistry struct {
	transforms map[string]*ValidatedTransform
}

// ValidatedTransform is a registered function checked against its declaration.
type ValidatedTransform struct {
	Name string
	Func reflect.Value
	// Def is the declaration from a rule file, nil for undeclared functions.
	Def *TransformDef
}

// NewTransformRegistry creates a registry of the given functions by name.
func NewTransformRegistry(fns map[string]any) (*TransformRegistry, error) {
	registry := &TransformRegistry{transforms: make(map[string]*ValidatedTransform, len(fns))}

	for name, fn := range fns {
		if err := registry.Add(name, fn); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Add registers fn under name. fn must return V or (V, error).
func (r *TransformRegistry) Add(name string, fn any) error {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return fmt.Errorf("%w: %q is %T, not a function", ErrInvalidTransform, name, fn)
	}

	t := v.Type()
	if t.NumOut() == 0 || t.NumOut() > 2 || (t.NumOut() == 2 && t.Out(1) != reflect.TypeFor[error]()) {
		return fmt.Errorf("%w: %q must return V or (V, error), got %s", ErrInvalidTransform, name, t)
	}

	r.transforms[name] = &ValidatedTransform{Name: name, Func: v}

	return nil
}

// Get returns a transform by name, or nil if not found.
func (r *TransformRegistry) Get(name string) *ValidatedTransform {
	return r.transforms[name]
}

// Has returns true if a transform with the given name exists.
func (r *TransformRegistry) Has(name string) bool {
	_, exists := r.transforms[name]
	return exists
}

// Names returns all transform names, sorted.
func (r *TransformRegistry) Names() []string {
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Declare checks the declarations of a rule file against the registered
// functions and attaches them. Declared types are resolved with types.
func (r *TransformRegistry) Declare(defs []TransformDef, types *TypeRegistry) []error {
	var errs []error

	for i := range defs {
		def := &defs[i]

		vt := r.transforms[def.Name]
		if vt == nil {
			errs = append(errs, fmt.Errorf("%w: %q is declared but not registered", ErrInvalidTransform, def.Name))
			continue
		}

		fnType := vt.Func.Type()

		if def.SourceType != "" {
			want, err := types.Resolve(def.SourceType)

			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("transform %q: source type: %w", def.Name, err))
			case fnType.NumIn() == 0 || !want.AssignableTo(fnType.In(0)):
				errs = append(errs, fmt.Errorf("%w: %q does not take %s", ErrInvalidTransform, def.Name, def.SourceType))
			}
		}

		if def.TargetType != "" {
			want, err := types.Resolve(def.TargetType)

			switch {
			case err != nil:
				errs = append(errs, fmt.Errorf("transform %q: target type: %w", def.Name, err))
			case !fnType.Out(0).AssignableTo(want):
				errs = append(errs, fmt.Errorf("%w: %q returns %s, declared %s",
					ErrInvalidTransform, def.Name, common.TypeName(fnType.Out(0)), def.TargetType))
			}
		}

		vt.Def = def
	}

	return errs
}

// Signature renders the registered function type.
func (t *ValidatedTransform) Signature() string {
	return t.Name + strings.TrimPrefix(t.Func.Type().String(), "func")
}

// GenerateTransformName generates a transform name for a field mapping:
// "FirstNameLastNameToFullName".
func GenerateTransformName(sources, targets StringArray) string {
	var parts []string

	for _, s := range sources {
		parts = append(parts, extractFieldName(s))
	}

	parts = append(parts, "To")

	for _, t := range targets {
		parts = append(parts, extractFieldName(t))
	}

	return strings.Join(parts, "")
}

// extractFieldName extracts the last member name from a path.
// "Items[].ProductID" -> "ProductID".
func extractFieldName(path string) string {
	path = strings.ReplaceAll(path, "[]", "")

	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}

	return path
}

// GenerateStub renders the Go function a missing transform should be
// registered with, for tooling output.
func GenerateStub(name string, sourceTypes []string, targetType string) string {
	if targetType == "" {
		targetType = "any"
	}

	params := make([]string, len(sourceTypes))
	for i, st := range sourceTypes {
		if st == "" {
			st = "any"
		}

		params[i] = fmt.Sprintf("v%d %s", i+1, st)
	}

	return fmt.Sprintf(`// %s is registered with options.WithTransform(%q, %s).
func %s(%s) (%s, error) {
	panic("not implemented")
}`, name, name, name, name, strings.Join(params, ", "), targetType)
}

// Package datasource finds the candidate expressions that can supply a value
// for a target member, in priority order.
package datasource

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/copystructure"

	"struct-mapper/internal/common"
	"struct-mapper/internal/member"
	"struct-mapper/primitive"
)

var (
	ErrBadFunc       = errors.New("unsupported data source function")
	ErrNotAssignable = errors.New("value is not assignable")
)

// Kind tells where the value of a data source comes from.
type Kind int

const (
	KindConfigured Kind = iota // configured source member path
	KindFunc                   // configured function of the source, or a named transform
	KindConstant               // configured constant
	KindMember                 // matching source member
	KindFlattened              // nested source path matched by name tokens
	KindEntry                  // dictionary entry
)

// String returns a human-readable name for the data source kind.
func (k Kind) String() string {
	switch k {
	case KindConfigured:
		return "configured"
	case KindFunc:
		return "func"
	case KindConstant:
		return "constant"
	case KindMember:
		return "member"
	case KindFlattened:
		return "flattened"
	case KindEntry:
		return "entry"
	default:
		return common.UnknownStr
	}
}

// Origin ranks configured sources. Higher origins are tried first.
type Origin int

const (
	OriginAuto   Origin = iota // "auto" section of a rule file
	OriginAPI                  // fluent configuration
	OriginFields               // "fields" section of a rule file
	Origin121                  // "121" section of a rule file
)

// String returns the rule-file section name of the origin.
func (o Origin) String() string {
	switch o {
	case OriginAuto:
		return "auto"
	case OriginAPI:
		return "api"
	case OriginFields:
		return "fields"
	case Origin121:
		return "121"
	default:
		return common.UnknownStr
	}
}

// Configured is a user supplied data source for one target member.
//
// With Func unset, a single path names the source member. With Func set and
// no paths, Func receives the whole source value. With Func set and paths,
// Func is a transform receiving one argument per path.
type Configured struct {
	Origin      Origin
	Paths       []string
	Func        reflect.Value
	Constant    any
	HasConstant bool
	Condition   func(src reflect.Value) bool
	Label       string
}

// DataSource is one resolved way of producing a value for a target member.
type DataSource struct {
	Kind   Kind
	Origin Origin
	// Source is the source member in context; the pair source itself for
	// functions, constants and prefixed sources.
	Source member.Qualified
	// Type of the values returned by Value.
	Type reflect.Type
	// Prefix is set when the target member is populated member-wise from
	// the pair source itself, e.g. target Customer from source CustomerName
	// or from dictionary keys "Customer.Name".
	Prefix    []string
	Condition func(src reflect.Value) bool
	Describe  string
	// Value reads the data from the pair source value. ok is false when the
	// data is absent, e.g. a nil pointer was crossed on the way.
	Value func(src reflect.Value) (v reflect.Value, ok bool, err error)
}

// Conditional reports whether the data source only applies under a condition.
func (ds DataSource) Conditional() bool {
	return ds.Condition != nil
}

// sortConfigured orders configured sources by origin, conditional ones first
// within the same origin, keeping configuration order otherwise.
func sortConfigured(cfg []Configured) []Configured {
	sorted := append([]Configured(nil), cfg...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Origin != sorted[j].Origin {
			return sorted[i].Origin > sorted[j].Origin
		}

		return sorted[i].Condition != nil && sorted[j].Condition == nil
	})

	return sorted
}

func constantSource(c Configured, target reflect.Type) DataSource {
	typ := reflect.TypeOf(c.Constant)
	if typ == nil {
		typ = target
	}

	return DataSource{
		Kind:     KindConstant,
		Origin:   c.Origin,
		Type:     typ,
		Describe: fmt.Sprintf("constant %v", c.Constant),
		Value: func(reflect.Value) (reflect.Value, bool, error) {
			if c.Constant == nil {
				return reflect.Zero(typ), true, nil
			}

			// constants are copied per use so targets never share them
			dup, err := copystructure.Copy(c.Constant)
			if err != nil {
				return reflect.Value{}, false, fmt.Errorf("copy constant: %w", err)
			}

			return reflect.ValueOf(dup), true, nil
		},
	}
}

func callResult(fn reflect.Value, args []reflect.Value) (reflect.Value, bool, error) {
	out := fn.Call(args)

	if len(out) == 2 && !out[1].IsNil() {
		return reflect.Value{}, false, out[1].Interface().(error)
	}

	return out[0], true, nil
}

func checkResults(fnType reflect.Type) error {
	switch {
	case fnType.NumOut() == 1:
		return nil
	case fnType.NumOut() == 2 && fnType.Out(1) == reflect.TypeFor[error]():
		return nil
	default:
		return fmt.Errorf("%w: %s must return V or (V, error)", ErrBadFunc, fnType)
	}
}

// sourceArg adapts the pair source value to the function input type, which
// may be the source type, a pointer to it or an interface it implements.
func sourceArg(in, src reflect.Type) (func(reflect.Value) reflect.Value, bool) {
	switch {
	case src.AssignableTo(in):
		return func(v reflect.Value) reflect.Value { return v }, true
	case reflect.PointerTo(src).AssignableTo(in):
		return func(v reflect.Value) reflect.Value {
			if v.CanAddr() {
				return v.Addr()
			}

			p := reflect.New(src)
			p.Elem().Set(v)

			return p
		}, true
	default:
		return nil, false
	}
}

// Adapt makes v usable as a value of type t: assignable values pass through,
// scalars are converted within the allowed categories.
func Adapt(v reflect.Value, t reflect.Type, allowed primitive.CategoryEnum) (reflect.Value, error) {
	if v.Type().AssignableTo(t) {
		return v, nil
	}

	if conv, _, ok := primitive.Converter(v.Type(), t, allowed); ok {
		return conv(v)
	}

	return reflect.Value{}, fmt.Errorf("%w: %s to %s", ErrNotAssignable, common.TypeName(v.Type()), common.TypeName(t))
}

func joinPrefix(prefix []string, sep string, name string) string {
	if len(prefix) == 0 {
		return name
	}

	return strings.Join(prefix, sep) + sep + name
}

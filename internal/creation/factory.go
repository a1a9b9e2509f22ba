// Package creation decides how target objects come to life: through the
// greediest registered factory whose parameters can all be sourced, or as a
// zero value.
package creation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"struct-mapper/internal/common"
	"struct-mapper/internal/member"
	"struct-mapper/node"
)

var (
	ErrInvalidFactory = errors.New("invalid factory")
	ErrNilResult      = errors.New("factory returned nil")
)

// Factory is a registered constructor for a target type. Go functions carry
// no parameter names at run time, so they are given at registration.
type Factory struct {
	Target reflect.Type // constructed type, pointers stripped
	Params []member.Member
	Name   string

	returnsPtr bool
	hasErr     bool
	fn         reflect.Value
}

// NewFactory validates fn and binds its parameter names. Accepted shapes are
// func(p1, ..., pn) T, (T, error), *T and (*T, error).
func NewFactory(fn any, params ...string) (Factory, error) {
	if fn == nil {
		return Factory{}, fmt.Errorf("%w: nil function", ErrInvalidFactory)
	}

	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	if fnType.Kind() != reflect.Func || fnType.IsVariadic() {
		return Factory{}, fmt.Errorf("%w: %s is not a plain function", ErrInvalidFactory, fnType)
	}

	if fnType.NumIn() != len(params) {
		return Factory{}, fmt.Errorf("%w: %d parameters but %d names given", ErrInvalidFactory, fnType.NumIn(), len(params))
	}

	var hasErr bool

	switch fnType.NumOut() {
	case 1:
	case 2:
		if fnType.Out(1) != reflect.TypeFor[error]() {
			return Factory{}, fmt.Errorf("%w: second result of %s must be error", ErrInvalidFactory, fnType)
		}

		hasErr = true
	default:
		return Factory{}, fmt.Errorf("%w: %s must return T or (T, error)", ErrInvalidFactory, fnType)
	}

	target := fnType.Out(0)
	returnsPtr := target.Kind() == reflect.Ptr
	if returnsPtr {
		target = target.Elem()
	}

	if target.Kind() == reflect.Ptr {
		return Factory{}, fmt.Errorf("%w: %s returns a double pointer", ErrInvalidFactory, fnType)
	}

	seen := make(map[string]struct{}, len(params))
	members := make([]member.Member, len(params))

	for i, name := range params {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup || name == "" {
			return Factory{}, fmt.Errorf("%w: bad or duplicate parameter name %q", ErrInvalidFactory, name)
		}

		seen[key] = struct{}{}
		members[i] = member.Param(name, fnType.In(i))
	}

	alias, fnName := node.FuncName(fnVal)

	return Factory{
		Target:     target,
		Params:     members,
		Name:       alias + "." + fnName,
		returnsPtr: returnsPtr,
		hasErr:     hasErr,
		fn:         fnVal,
	}, nil
}

// Call invokes the factory and returns the constructed value of type Target.
func (f Factory) Call(args []reflect.Value) (reflect.Value, error) {
	out := f.fn.Call(args)

	if f.hasErr {
		if errVal := out[1]; !errVal.IsNil() {
			return reflect.Value{}, fmt.Errorf("%s: %w", f.Name, errVal.Interface().(error))
		}
	}

	res := out[0]
	if f.returnsPtr {
		if res.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: %s", ErrNilResult, f.Name)
		}

		res = res.Elem()
	}

	return res, nil
}

// Consumes reports whether a target member of the given name is populated by
// one of the factory parameters. Names compare case-insensitively.
func (f Factory) Consumes(name string) bool {
	for _, p := range f.Params {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}

	return false
}

// String renders the factory signature with parameter names.
func (f Factory) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.Name + " " + common.TypeName(p.Type)
	}

	return f.Name + "(" + strings.Join(params, ", ") + ")"
}

// Select picks the factory with the most parameters among those whose every
// parameter canSource accepts. Ties go to the earlier registration. The
// result is false when no factory is usable and the zero value must be used.
func Select(factories []Factory, canSource func(member.Member) bool) (Factory, bool) {
	best, found := Factory{}, false

	for _, f := range factories {
		if found && len(f.Params) <= len(best.Params) {
			continue
		}

		usable := true
		for _, p := range f.Params {
			if !canSource(p) {
				usable = false
				break
			}
		}

		if usable {
			best, found = f, true
		}
	}

	return best, found
}

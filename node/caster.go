package node

import (
	"errors"
	"path"
	"reflect"
	"runtime"
	"strings"

	"struct-mapper/utils"
)

var (
	ErrIsNotACaster         = errors.New("provided function is not a recognizable caster")
	ErrCasterIsNotAFunction = errors.New("provided caster is not a function")
	ErrDoublePointer        = errors.New("caster function does not support double pointers")
)

// Caster is a user supplied conversion between one source and one target type.
type Caster struct {
	Src, Dst     reflect.Type
	PackageAlias string
	Name         string
	HasBool      bool
	HasErr       bool

	fn reflect.Value
}

// ParseCaster inspects the provided function and returns a Caster struct if it is a valid caster function.
//
// Supports interfaces:
//   - func(src Type) (dst Type)
//   - func(src Type) (dst Type, bool)
//   - func(src Type) (dst Type, error)
//   - func(src Type) (dst Type, bool, error)
//
// A false bool result means the caster has no value for the source; the
// target is left untouched.
func ParseCaster(fn any) (Caster, error) {
	if fn == nil {
		return Caster{}, ErrCasterIsNotAFunction
	}

	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return Caster{}, ErrCasterIsNotAFunction
	}

	if fnType.NumIn() != 1 || fnType.NumOut() == 0 || fnType.IsVariadic() {
		return Caster{}, ErrIsNotACaster
	}

	src := fnType.In(0)
	if src.Kind() == reflect.Ptr && src.Elem().Kind() == reflect.Ptr {
		return Caster{}, ErrDoublePointer
	}

	dst := fnType.Out(0)
	if dst.Kind() == reflect.Ptr && dst.Elem().Kind() == reflect.Ptr {
		return Caster{}, ErrDoublePointer
	}

	alias, name := FuncName(fnVal)

	caster := Caster{
		Src:          src,
		Dst:          dst,
		Name:         name,
		PackageAlias: alias,
		fn:           fnVal,
	}

	switch fnType.NumOut() {
	default:
		return Caster{}, ErrIsNotACaster

	case 1:
		return caster, nil

	case 2:
		last := fnType.Out(1)

		switch {
		default:
			return Caster{}, ErrIsNotACaster
		case last.Kind() == reflect.Bool:
			caster.HasBool = true
		case isError(last):
			caster.HasErr = true
		}
		return caster, nil

	case 3:
		tbool, terr := fnType.Out(1), fnType.Out(2)
		if tbool.Kind() != reflect.Bool || !isError(terr) {
			return Caster{}, ErrIsNotACaster
		}

		caster.HasBool = true
		caster.HasErr = true
		return caster, nil
	}
}

// Call runs the caster on src. ok is false when the caster reported no value.
func (c Caster) Call(src reflect.Value) (dst reflect.Value, ok bool, err error) {
	out := c.fn.Call([]reflect.Value{src})

	dst, ok = out[0], true

	if c.HasBool {
		ok = out[1].Bool()
	}

	if c.HasErr {
		if errVal := out[len(out)-1]; !errVal.IsNil() {
			return reflect.Value{}, false, errVal.Interface().(error)
		}
	}

	return dst, ok, nil
}

// String renders the caster as "pkg.Name".
func (c Caster) String() string {
	if c.PackageAlias == "" {
		return c.Name
	}

	return c.PackageAlias + "." + c.Name
}

// FuncName returns the package alias and the name of a function value, e.g.
// ("strconv", "Itoa"). Closures keep their generated suffix ("Outer.func1").
func FuncName(fn reflect.Value) (alias, name string) {
	fnPC := runtime.FuncForPC(fn.Pointer())
	if fnPC == nil {
		return "", "func"
	}

	alias, name = utils.Unpack2(strings.SplitN(utils.Second(path.Split(fnPC.Name())), ".", 2))
	if name == "" {
		return "", alias
	}

	return alias, name
}

func isError(t reflect.Type) bool {
	if t == nil {
		return false
	}

	return t.Implements(reflect.TypeFor[error]())
}

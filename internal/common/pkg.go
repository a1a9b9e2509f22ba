package common

import (
	"path"
	"reflect"
)

// UnknownStr is returned by String methods for out-of-range enum values.
const UnknownStr = "unknown"

// PkgAlias returns the package alias (last element of path) for a given package path.
// Returns empty string if pkgPath is empty.
func PkgAlias(pkgPath string) string {
	if pkgPath == "" {
		return ""
	}

	return path.Base(pkgPath)
}

// TypeName returns a short, readable name for t: "store.Order", "[]*store.Item",
// "map[string]int". Unnamed composite types are spelled out recursively.
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	if t.Name() != "" {
		if alias := PkgAlias(t.PkgPath()); alias != "" {
			return alias + "." + t.Name()
		}

		return t.Name()
	}

	switch t.Kind() {
	case reflect.Ptr:
		return "*" + TypeName(t.Elem())
	case reflect.Slice:
		return "[]" + TypeName(t.Elem())
	case reflect.Map:
		return "map[" + TypeName(t.Key()) + "]" + TypeName(t.Elem())
	default:
		return t.String()
	}
}

// FullTypeName returns "pkg/path.Name" for named types and TypeName otherwise.
func FullTypeName(t reflect.Type) string {
	if t != nil && t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}

	return TypeName(t)
}

package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"struct-mapper/internal/common"
)

var (
	ErrUnknownType   = errors.New("unknown type")
	ErrAmbiguousType = errors.New("ambiguous type name")
)

var builtinTypes = map[string]reflect.Type{
	"bool":     reflect.TypeFor[bool](),
	"string":   reflect.TypeFor[string](),
	"int":      reflect.TypeFor[int](),
	"int8":     reflect.TypeFor[int8](),
	"int16":    reflect.TypeFor[int16](),
	"int32":    reflect.TypeFor[int32](),
	"int64":    reflect.TypeFor[int64](),
	"uint":     reflect.TypeFor[uint](),
	"uint8":    reflect.TypeFor[uint8](),
	"uint16":   reflect.TypeFor[uint16](),
	"uint32":   reflect.TypeFor[uint32](),
	"uint64":   reflect.TypeFor[uint64](),
	"byte":     reflect.TypeFor[byte](),
	"rune":     reflect.TypeFor[rune](),
	"float32":  reflect.TypeFor[float32](),
	"float64":  reflect.TypeFor[float64](),
	"any":      reflect.TypeFor[any](),
	"error":    reflect.TypeFor[error](),

	"time.Time":     reflect.TypeFor[time.Time](),
	"time.Duration": reflect.TypeFor[time.Duration](),
}

// IsBasicTypeName returns true if the name refers to a Go builtin type.
func IsBasicTypeName(name string) bool {
	_, ok := builtinTypes[name]
	return ok && !strings.Contains(name, ".")
}

// TypeRegistry names run-time types for rule files. A registered type is
// known by its full name ("struct-mapper/store.Order"), its short name
// ("store.Order") and, when unique, its bare name ("Order").
type TypeRegistry struct {
	mu    sync.RWMutex
	full  map[string]reflect.Type
	short map[string][]reflect.Type
	bare  map[string][]reflect.Type
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		full:  make(map[string]reflect.Type),
		short: make(map[string][]reflect.Type),
		bare:  make(map[string][]reflect.Type),
	}
}

// Register adds named types. Pointer types register their element type.
func (r *TypeRegistry) Register(types ...reflect.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range types {
		for t != nil && t.Kind() == reflect.Ptr {
			t = t.Elem()
		}

		if t == nil || t.Name() == "" || t.PkgPath() == "" {
			return fmt.Errorf("%w: only named package types can be registered, got %s", ErrUnknownType, common.TypeName(t))
		}

		full := common.FullTypeName(t)
		if _, ok := r.full[full]; ok {
			continue
		}

		r.full[full] = t
		r.short[common.TypeName(t)] = append(r.short[common.TypeName(t)], t)
		r.bare[t.Name()] = append(r.bare[t.Name()], t)
	}

	return nil
}

// Resolve resolves a type identifier like:
//   - "store.Order" (short)
//   - "struct-mapper/store.Order" (full)
//   - "Order" (name only, when unique)
//   - builtin names ("int", "string", "time.Time")
//   - composites of the above: "*store.Order", "[]store.Item", "map[string]int"
func (r *TypeRegistry) Resolve(id string) (reflect.Type, error) {
	id = strings.TrimSpace(id)

	switch {
	case id == "":
		return nil, fmt.Errorf("%w: empty type name", ErrUnknownType)
	case strings.HasPrefix(id, "*"):
		elem, err := r.Resolve(id[1:])
		if err != nil {
			return nil, err
		}

		return reflect.PointerTo(elem), nil
	case strings.HasPrefix(id, "[]"):
		elem, err := r.Resolve(id[2:])
		if err != nil {
			return nil, err
		}

		return reflect.SliceOf(elem), nil
	case strings.HasPrefix(id, "map["):
		return r.resolveMap(id)
	}

	if t, ok := builtinTypes[id]; ok {
		return t, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.full[id]; ok {
		return t, nil
	}

	candidates := r.short[id]
	if !strings.Contains(id, ".") {
		candidates = r.bare[id]
	}

	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, id)
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, len(candidates))
		for i, t := range candidates {
			names[i] = common.FullTypeName(t)
		}

		sort.Strings(names)

		return nil, fmt.Errorf("%w: %q matches %s", ErrAmbiguousType, id, strings.Join(names, ", "))
	}
}

func (r *TypeRegistry) resolveMap(id string) (reflect.Type, error) {
	depth := 0

	for i := len("map"); i < len(id); i++ {
		switch id[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth > 0 {
				continue
			}

			key, err := r.Resolve(id[len("map["):i])
			if err != nil {
				return nil, err
			}

			elem, err := r.Resolve(id[i+1:])
			if err != nil {
				return nil, err
			}

			if !key.Comparable() {
				return nil, fmt.Errorf("%w: map key %s is not comparable", ErrUnknownType, common.TypeName(key))
			}

			return reflect.MapOf(key, elem), nil
		}
	}

	return nil, fmt.Errorf("%w: malformed map type %q", ErrUnknownType, id)
}

// Names returns the short names of all registered types, sorted.
func (r *TypeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.short))
	for name := range r.short {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

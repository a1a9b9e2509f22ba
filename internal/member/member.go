// Package member models the accessible members of a type graph.
//
// A Member is one step inside a type: a struct field, a factory parameter, a
// dictionary entry or a collection element. A Qualified member chains steps
// from a root type and renders diagnostics paths such as
// "store.Order.Items[].ProductID".
package member

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"struct-mapper/internal/common"
)

// Kind tells how a member is reached from its parent.
type Kind int

const (
	KindRoot Kind = iota
	KindField
	KindParam
	KindEntry
	KindElement
)

// String returns a human-readable name for the member kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindField:
		return "field"
	case KindParam:
		return "param"
	case KindEntry:
		return "entry"
	case KindElement:
		return "element"
	default:
		return common.UnknownStr
	}
}

// TagName is the struct tag consulted for member renames and exclusions.
const TagName = "map"

// Member describes a single step in a type graph.
type Member struct {
	Name     string            // Go field name, parameter name or dictionary key
	Type     reflect.Type      // Member type
	Kind     Kind              // How the member is reached
	Index    []int             // Field index path, promoted fields included
	Tag      reflect.StructTag // Raw struct tag
	Embedded bool              // Whether the field is an embedded struct
}

// MapName returns the name used when matching: the `map` tag name if present,
// otherwise the member name.
func (m Member) MapName() string {
	if tag := tagName(m.Tag.Get(TagName)); tag != "" {
		return tag
	}

	return m.Name
}

// JSONName returns the JSON tag name if present, otherwise an empty string.
func (m Member) JSONName() string {
	return tagName(m.Tag.Get("json"))
}

// Ignored reports whether the member is excluded with `map:"-"`.
func (m Member) Ignored() bool {
	return m.Tag.Get(TagName) == "-"
}

func tagName(tag string) string {
	if tag == "" || tag == "-" {
		return ""
	}

	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}

	return tag
}

// Field returns a field member of a struct.
func Field(f reflect.StructField, index []int) Member {
	return Member{
		Name:     f.Name,
		Type:     f.Type,
		Kind:     KindField,
		Index:    index,
		Tag:      f.Tag,
		Embedded: f.Anonymous,
	}
}

// Param returns a factory parameter member.
func Param(name string, t reflect.Type) Member {
	return Member{Name: name, Type: t, Kind: KindParam}
}

// Entry returns a dictionary entry member.
func Entry(key string, t reflect.Type) Member {
	return Member{Name: key, Type: t, Kind: KindEntry}
}

// Element returns a collection element member.
func Element(t reflect.Type) Member {
	return Member{Name: "[]", Type: t, Kind: KindElement}
}

var fieldCache sync.Map // map[reflect.Type][]Member

// Fields returns the exported fields of struct type t, with fields of embedded
// structs promoted. Pointers are dereferenced; non-struct types have no fields.
// Shadowed promoted fields follow Go selector rules: the shallowest wins and
// ambiguous names at the same depth are dropped.
func Fields(t reflect.Type) []Member {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]Member)
	}

	fields := collectFields(t)
	fieldCache.Store(t, fields)

	return fields
}

// FieldByName finds a field by exact Go name.
func FieldByName(t reflect.Type, name string) (Member, bool) {
	for _, f := range Fields(t) {
		if f.Name == name {
			return f, true
		}
	}

	return Member{}, false
}

type candidate struct {
	member Member
	depth  int
	count  int
}

func collectFields(root reflect.Type) []Member {
	var (
		order  []string
		byName = map[string]*candidate{}
		visit  func(t reflect.Type, prefix []int, depth int, seen map[reflect.Type]bool)
	)

	visit = func(t reflect.Type, prefix []int, depth int, seen map[reflect.Type]bool) {
		if seen[t] {
			return
		}

		seen[t] = true
		defer delete(seen, t)

		for i := range t.NumField() {
			sf := t.Field(i)
			index := append(append([]int(nil), prefix...), i)

			if sf.Anonymous && sf.Tag.Get(TagName) != "-" {
				embedded := sf.Type
				if embedded.Kind() == reflect.Ptr {
					embedded = embedded.Elem()
				}

				// value embeds are flattened into promoted fields; pointer embeds
				// stay a single member since a nil embed has no addressable fields
				if embedded.Kind() == reflect.Struct && sf.Type.Kind() != reflect.Ptr {
					visit(embedded, index, depth+1, seen)
					continue
				}
			}

			if !sf.IsExported() {
				continue
			}

			m := Field(sf, index)
			if m.Ignored() {
				continue
			}

			existing, ok := byName[sf.Name]
			switch {
			case !ok:
				byName[sf.Name] = &candidate{member: m, depth: depth, count: 1}
				order = append(order, sf.Name)
			case depth < existing.depth:
				*existing = candidate{member: m, depth: depth, count: 1}
			case depth == existing.depth:
				existing.count++
			}
		}
	}

	visit(root, nil, 0, map[reflect.Type]bool{})

	res := make([]Member, 0, len(order))
	for _, name := range order {
		if c := byName[name]; c.count == 1 {
			res = append(res, c.member)
		}
	}

	return res
}

// ErrUnknownMember is returned by Lookup when a path segment names nothing.
var ErrUnknownMember = errors.New("unknown member")

// FieldByNameFold finds a field by Go name, then by `map` tag name, then
// case-insensitively.
func FieldByNameFold(t reflect.Type, name string) (Member, bool) {
	fields := Fields(t)

	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}

	for _, f := range fields {
		if f.MapName() == name {
			return f, true
		}
	}

	for _, f := range fields {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.MapName(), name) {
			return f, true
		}
	}

	return Member{}, false
}

// Lookup resolves a dotted path such as "Customer.Address.City" below root.
// Segments name struct fields (see FieldByNameFold) or, below a string-keyed
// map, dictionary entries.
func Lookup(root reflect.Type, path string) (Qualified, error) {
	q := Root(root)
	if path == "" {
		return q, fmt.Errorf("%w: empty path below %s", ErrUnknownMember, common.TypeName(root))
	}

	for _, segment := range strings.Split(path, ".") {
		current := Indirect(q.Type())

		switch {
		case segment == "":
			return q, fmt.Errorf("%w: empty segment in %q", ErrUnknownMember, path)
		case IsDictionary(current):
			q = q.Append(Entry(segment, current.Elem()))
		default:
			f, ok := FieldByNameFold(current, segment)
			if !ok {
				return q, fmt.Errorf("%w: %s has no member %q", ErrUnknownMember, q.Path(), segment)
			}

			q = q.Append(f)
		}
	}

	return q, nil
}

// Qualified is a member reference carrying its full path from a root type.
type Qualified struct {
	Root  reflect.Type
	Chain []Member
}

// Root returns the qualified member for the root of a type graph.
func Root(t reflect.Type) Qualified {
	return Qualified{Root: t}
}

// Append returns a copy of q extended with m.
func (q Qualified) Append(m Member) Qualified {
	chain := make([]Member, len(q.Chain), len(q.Chain)+1)
	copy(chain, q.Chain)

	return Qualified{Root: q.Root, Chain: append(chain, m)}
}

// Type returns the type of the last member in the chain.
func (q Qualified) Type() reflect.Type {
	if q.IsRoot() {
		return q.Root
	}

	return q.Chain[len(q.Chain)-1].Type
}

// Leaf returns the last member, or a root member for an empty chain.
func (q Qualified) Leaf() Member {
	if q.IsRoot() {
		return Member{Name: common.TypeName(q.Root), Type: q.Root, Kind: KindRoot}
	}

	return q.Chain[len(q.Chain)-1]
}

// Depth returns the number of steps below the root.
func (q Qualified) Depth() int {
	return len(q.Chain)
}

// IsRoot reports whether q refers to the root itself.
func (q Qualified) IsRoot() bool {
	return len(q.Chain) == 0
}

// Recursive reports whether the leaf type (pointers unwrapped) already occurs
// higher up the chain, which means the type graph loops back on itself here.
func (q Qualified) Recursive() bool {
	if q.IsRoot() {
		return false
	}

	leaf := Indirect(q.Type())
	if Indirect(q.Root) == leaf {
		return true
	}

	for _, m := range q.Chain[:q.Depth()-1] {
		if Indirect(m.Type) == leaf {
			return true
		}
	}

	return false
}

// Path returns the readable path of the member: "store.Order.Items[].ProductID",
// dictionary entries render as `["key"]`.
func (q Qualified) Path() string {
	var sb strings.Builder

	sb.WriteString(common.TypeName(q.Root))

	for _, m := range q.Chain {
		switch m.Kind {
		case KindElement:
			sb.WriteString("[]")
		case KindEntry:
			sb.WriteString("[" + strconv.Quote(m.Name) + "]")
		case KindParam:
			sb.WriteString("(" + m.Name + ")")
		default:
			sb.WriteString("." + m.Name)
		}
	}

	return sb.String()
}

// RelativePath returns the path below the root: "Items[].ProductID".
func (q Qualified) RelativePath() string {
	full := q.Path()
	root := common.TypeName(q.Root)

	return strings.TrimPrefix(strings.TrimPrefix(full, root), ".")
}

// String implements fmt.Stringer.
func (q Qualified) String() string {
	return q.Path()
}

// Get reads the member value starting from a root value. It returns false when
// a nil pointer, nil interface or missing dictionary entry is crossed on the way.
// Element steps cannot be read directly and also report false.
func (q Qualified) Get(v reflect.Value) (reflect.Value, bool) {
	for _, m := range q.Chain {
		var ok bool

		v, ok = deref(v)
		if !ok {
			return reflect.Value{}, false
		}

		switch m.Kind {
		case KindField:
			v, ok = fieldByIndex(v, m.Index)
			if !ok {
				return reflect.Value{}, false
			}
		case KindEntry:
			if v.Kind() != reflect.Map {
				return reflect.Value{}, false
			}

			v, ok = LookupEntry(v, m.Name)
			if !ok {
				return reflect.Value{}, false
			}
		default:
			return reflect.Value{}, false
		}
	}

	return v, v.IsValid()
}

// LookupEntry finds key in a string-keyed map, falling back to a
// case-insensitive match. Interface values are unwrapped.
func LookupEntry(dict reflect.Value, key string) (reflect.Value, bool) {
	if dict.IsNil() {
		return reflect.Value{}, false
	}

	keyType := dict.Type().Key()
	if keyType.Kind() != reflect.String {
		return reflect.Value{}, false
	}

	v := dict.MapIndex(reflect.ValueOf(key).Convert(keyType))
	if !v.IsValid() {
		iter := dict.MapRange()
		for iter.Next() {
			if strings.EqualFold(iter.Key().String(), key) {
				v = iter.Value()
				break
			}
		}
	}

	if !v.IsValid() {
		return reflect.Value{}, false
	}

	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}

		v = v.Elem()
	}

	return v, true
}

func deref(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}

		v = v.Elem()
	}

	return v, v.IsValid()
}

func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}

			v = v.Elem()
		}

		v = v.Field(x)
	}

	return v, true
}

// Indirect strips all pointer levels from t.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return t
}

// IsDictionary reports whether t is a string-keyed map, which the mapper treats
// as a dictionary of named entries rather than a plain collection.
func IsDictionary(t reflect.Type) bool {
	t = Indirect(t)
	return t != nil && t.Kind() == reflect.Map && t.Key().Kind() == reflect.String
}

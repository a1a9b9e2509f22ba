package member

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Audit struct {
	CreatedBy string
	Version   int
}

type Node struct {
	Audit
	ID       int    `json:"id"`
	Label    string `map:"Title"`
	Secret   string `map:"-"`
	internal int
	Next     *Node
	Children []Node
	Attrs    map[string]any
}

type left struct{ Name string }
type right struct{ Name string }

type ambiguous struct {
	left
	right
	Kept int
}

func TestFields(t *testing.T) {
	t.Parallel()

	fields := Fields(reflect.TypeFor[*Node]())

	var names []string
	for _, f := range fields {
		names = append(names, f.Name)
	}

	assert.Equal(t, []string{"CreatedBy", "Version", "ID", "Label", "Next", "Children", "Attrs"}, names)

	createdBy, ok := FieldByName(reflect.TypeFor[Node](), "CreatedBy")
	require.True(t, ok)
	assert.Equal(t, []int{0, 0}, createdBy.Index)

	label, ok := FieldByName(reflect.TypeFor[Node](), "Label")
	require.True(t, ok)
	assert.Equal(t, "Title", label.MapName())

	id, _ := FieldByName(reflect.TypeFor[Node](), "ID")
	assert.Equal(t, "id", id.JSONName())

	assert.Nil(t, Fields(reflect.TypeFor[int]()))
}

func TestFieldsAmbiguousPromotion(t *testing.T) {
	t.Parallel()

	fields := Fields(reflect.TypeFor[ambiguous]())
	require.Len(t, fields, 1)
	assert.Equal(t, "Kept", fields[0].Name)
}

func TestQualifiedPath(t *testing.T) {
	t.Parallel()

	root := Root(reflect.TypeFor[Node]())
	children, _ := FieldByName(reflect.TypeFor[Node](), "Children")
	label, _ := FieldByName(reflect.TypeFor[Node](), "Label")

	q := root.Append(children).Append(Element(reflect.TypeFor[Node]())).Append(label)
	assert.Equal(t, "member.Node.Children[].Label", q.Path())
	assert.Equal(t, "Children[].Label", q.RelativePath())
	assert.Equal(t, 3, q.Depth())
	assert.False(t, q.IsRoot())
	assert.True(t, root.IsRoot())
	assert.Equal(t, reflect.TypeFor[string](), q.Type())
	assert.False(t, q.Recursive())

	entry := root.Append(Entry("color", reflect.TypeFor[any]()))
	assert.Equal(t, `member.Node["color"]`, entry.Path())

	next, _ := FieldByName(reflect.TypeFor[Node](), "Next")
	assert.True(t, root.Append(next).Recursive())
	assert.True(t, root.Append(children).Append(Element(reflect.TypeFor[*Node]())).Recursive())
	assert.Equal(t, "member.Node", root.Leaf().Name)
}

func TestQualifiedGet(t *testing.T) {
	t.Parallel()

	nodeType := reflect.TypeFor[Node]()
	next, _ := FieldByName(nodeType, "Next")
	label, _ := FieldByName(nodeType, "Label")
	attrs, _ := FieldByName(nodeType, "Attrs")
	createdBy, _ := FieldByName(nodeType, "CreatedBy")

	n := &Node{
		Audit: Audit{CreatedBy: "me"},
		Next:  &Node{Label: "second"},
		Attrs: map[string]any{"Color": "red", "empty": nil},
	}

	v, ok := Root(nodeType).Append(next).Append(label).Get(reflect.ValueOf(n))
	require.True(t, ok)
	assert.Equal(t, "second", v.String())

	_, ok = Root(nodeType).Append(next).Append(next).Append(label).Get(reflect.ValueOf(n))
	assert.False(t, ok, "nil pointer on the way")

	v, ok = Root(nodeType).Append(attrs).Append(Entry("color", reflect.TypeFor[any]())).Get(reflect.ValueOf(n))
	require.True(t, ok)
	assert.Equal(t, "red", v.Interface())

	_, ok = Root(nodeType).Append(attrs).Append(Entry("empty", reflect.TypeFor[any]())).Get(reflect.ValueOf(n))
	assert.False(t, ok)

	v, ok = Root(nodeType).Append(createdBy).Get(reflect.ValueOf(n))
	require.True(t, ok)
	assert.Equal(t, "me", v.String())
}

func TestIsDictionary(t *testing.T) {
	t.Parallel()

	type Key string

	assert.True(t, IsDictionary(reflect.TypeFor[map[string]int]()))
	assert.True(t, IsDictionary(reflect.TypeFor[*map[Key]any]()))
	assert.False(t, IsDictionary(reflect.TypeFor[map[int]string]()))
	assert.False(t, IsDictionary(reflect.TypeFor[[]string]()))
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "element", KindElement.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	q, err := Lookup(reflect.TypeFor[Node](), "next.Title")
	require.NoError(t, err)
	assert.Equal(t, "member.Node.Next.Label", q.Path())

	q, err = Lookup(reflect.TypeFor[Node](), "Attrs.color")
	require.NoError(t, err)
	assert.Equal(t, `member.Node.Attrs["color"]`, q.Path())
	assert.Equal(t, reflect.TypeFor[any](), q.Type())

	_, err = Lookup(reflect.TypeFor[Node](), "Next.Missing")
	require.ErrorIs(t, err, ErrUnknownMember)
	assert.Contains(t, err.Error(), `member.Node.Next has no member "Missing"`)

	_, err = Lookup(reflect.TypeFor[Node](), "Next..ID")
	require.ErrorIs(t, err, ErrUnknownMember)

	_, err = Lookup(reflect.TypeFor[Node](), "Secret")
	require.ErrorIs(t, err, ErrUnknownMember, "excluded members cannot be looked up")
}

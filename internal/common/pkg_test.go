package common_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"struct-mapper/internal/common"
)

type sample struct{}

func TestTypeName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "common_test.sample", common.TypeName(reflect.TypeFor[sample]()))
	assert.Equal(t, "*common_test.sample", common.TypeName(reflect.TypeFor[*sample]()))
	assert.Equal(t, "[]int", common.TypeName(reflect.TypeFor[[]int]()))
	assert.Equal(t, "map[string]*common_test.sample", common.TypeName(reflect.TypeFor[map[string]*sample]()))
	assert.Equal(t, "<nil>", common.TypeName(nil))
	assert.Equal(t, "struct-mapper/internal/common_test.sample", common.FullTypeName(reflect.TypeFor[sample]()))
}

func TestFilter(t *testing.T) {
	t.Parallel()

	even := common.Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{2, 4}, even)

	first, ok := common.First(even)
	assert.True(t, ok)
	assert.Equal(t, 2, first)
	assert.True(t, common.IsMultiple(even))
}

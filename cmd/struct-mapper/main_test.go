package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"struct-mapper/internal/mapping"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestCheck(t *testing.T) {
	out, err := run(t, "check", "testdata/shop.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "testdata/shop.yaml: 2 mappings ok")
	assert.NotContains(t, out, "error:")
}

func TestCheckMissingTransform(t *testing.T) {
	out, err := run(t, "check", "testdata/shop.toml")
	require.ErrorIs(t, err, errCheckFailed)

	assert.Contains(t, out, `transform "normalizeEmail" is not registered`)
	assert.Contains(t, out, "missing transforms:")
	assert.Contains(t, out, "func normalizeEmail(v1 string) (string, error) {")
}

func TestCheckArgs(t *testing.T) {
	_, err := run(t, "check")
	require.Error(t, err)

	_, err = run(t, "check", "testdata/missing.yaml")
	require.Error(t, err)
}

func TestPlan(t *testing.T) {
	out, err := run(t, "plan", "--rule-set", "merge")
	require.NoError(t, err)
	assert.Contains(t, out, "*store.Customer -> *warehouse.Customer (merge)")
	assert.Contains(t, out, "FullName <- fullName(FirstName, LastName) (transform)")

	out, err = run(t, "plan", "--rules", "testdata/shop.yaml", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "(create_new)")

	_, err = run(t, "plan", "--rule-set", "upsert")
	require.Error(t, err)
}

func TestMap(t *testing.T) {
	out, err := run(t, "map")
	require.NoError(t, err)

	assert.Contains(t, out, `"Ada Lovelace"`)
	assert.Contains(t, out, `"A-101"`)
	assert.Contains(t, out, "already shown", "the order back-references are elided")
}

func TestNormalize(t *testing.T) {
	out, err := run(t, "normalize", "testdata/shop.yaml")
	require.NoError(t, err)

	assert.NotContains(t, out, "121:")
	assert.Contains(t, out, "target: OrderNumber")

	mf, err := mapping.Parse([]byte(out))
	require.NoError(t, err)
	require.Len(t, mf.TypeMappings, 2)

	order := mf.TypeMappings[1]
	assert.Empty(t, order.OneToOne)
	require.Len(t, order.Fields, 2)
	assert.Equal(t, mapping.FieldMapping{Source: mapping.StringArray{"Number"}, Target: mapping.StringArray{"OrderNumber"}}, order.Fields[0])
	assert.Equal(t, mapping.StringArray{"FirstName", "LastName"}, mf.TypeMappings[0].Fields[0].Source)

	path := filepath.Join(t.TempDir(), "shop.yaml")

	out, err = run(t, "normalize", "testdata/shop.toml", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 mappings written to "+path)

	mf, err = mapping.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, mf.TypeMappings, 1)
	assert.Equal(t, "normalizeEmail", mf.TypeMappings[0].Fields[1].Transform)
}

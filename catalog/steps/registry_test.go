package steps

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	require.Equal(t, 5, r.Count())

	multi := map[int]bool{1: false, 2: true, 3: true, 4: true, 5: false}
	for pos, want := range multi {
		got, err := r.IsMultiSelect(pos)
		require.NoError(t, err)
		assert.Equal(t, want, got, "position %d", pos)
	}

	power, err := r.Get(3)
	require.NoError(t, err)
	assert.True(t, power.ByRange())
	assert.Equal(t, "power", power.Key)
	assert.True(t, r.Leaf().Leaf)

	st, ok := r.ByKey("brand")
	require.True(t, ok)
	assert.Equal(t, 4, st.Position)
}

func TestGetOutOfRange(t *testing.T) {
	r := Default()
	for _, pos := range []int{0, -1, 6} {
		_, err := r.Get(pos)
		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr), "position %d", pos)
		assert.Equal(t, pos, cfgErr.Position)
	}
	_, err := r.IsMultiSelect(9)
	require.Error(t, err)
}

func TestNewRejectsNonContiguous(t *testing.T) {
	def := DefaultDefinition()
	def.Steps[2].Position = 7
	_, err := New(def)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 7, cfgErr.Position)
}

func TestNewRejectsUnreachableAttribute(t *testing.T) {
	def := DefaultDefinition()
	// brand is only joined at step 4
	def.Steps[1].Where = MustAttribute("brand.name")
	_, err := New(def)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 2, cfgErr.Position)
	assert.Contains(t, cfgErr.Error(), "not reachable")
}

func TestNewRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "power_range", "prev", "multiple", strings.Repeat("k", MaxKeyBytes+1)} {
		def := DefaultDefinition()
		def.Steps[0].Key = key
		_, err := New(def)
		require.Error(t, err, "key %q", key)
	}

	def := DefaultDefinition()
	def.Steps[1].Key = "category"
	_, err := New(def)
	require.Error(t, err)
}

func TestNewRequiresTrailingLeaf(t *testing.T) {
	def := DefaultDefinition()
	def.Steps = def.Steps[:4]
	_, err := New(def)
	require.Error(t, err)

	def = DefaultDefinition()
	def.Steps[2].Leaf = true
	_, err = New(def)
	require.Error(t, err)
}

func TestParseAttribute(t *testing.T) {
	ref, err := ParseAttribute("product.pdf_url as doc_url")
	require.NoError(t, err)
	assert.Equal(t, AttributeRef{Entity: "product", Column: "pdf_url", As: "doc_url"}, ref)
	assert.Equal(t, "doc_url", ref.Name())

	ref, err = ParseAttribute("brand.name")
	require.NoError(t, err)
	assert.Equal(t, "name", ref.Name())

	for _, bad := range []string{"name", ".name", "a.b c", "a.b as"} {
		_, err := ParseAttribute(bad)
		require.Error(t, err, bad)
	}
}

const stepsYAML = `
base: product
steps:
  - position: 1
    key: category
    prompt: Pick a category
    select: [typeproduct.name as label]
    group: [typeproduct.name]
    order: [typeproduct.name]
    where: typeproduct.name
    joins: [typeproduct]
  - position: 2
    key: power
    prompt: Pick power
    select:
      - {entity: product, column: power, as: value}
    where: product.power
    multi_select: true
    range: {width: 1, step: 0.5, precision: 1}
  - position: 3
    key: model
    prompt: Pick a model
    select: [product.id, product.model as label]
    order: [product.model]
    leaf: true
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "steps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(stepsYAML), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, r.Count())

	power, err := r.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "value", power.Select[0].Name())
	assert.InDelta(t, 1.5, power.Range.Period(), 1e-9)
	assert.Equal(t, "Pick a category", r.Steps()[0].Prompt)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

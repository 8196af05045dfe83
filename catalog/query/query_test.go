package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/facetbot/catalog/bucket"
	"github.com/m3rciful/facetbot/catalog/steps"
)

type spySelections struct {
	values map[int][]string
	reads  []int
}

func (s *spySelections) Values(position int) []string {
	s.reads = append(s.reads, position)
	return s.values[position]
}

func TestComposeNeverReadsTargetOrLater(t *testing.T) {
	reg := steps.Default()
	sel := &spySelections{values: map[int][]string{
		1: {"Split"},
		2: {"Inverter"},
		3: {"0.5 - 0.9"},
		4: {"Acme"},
		5: {"42"},
	}}

	for target := 1; target <= reg.Count(); target++ {
		sel.reads = nil
		q, err := Compose(reg, sel, target)
		require.NoError(t, err)
		for _, pos := range sel.reads {
			assert.Less(t, pos, target, "target %d read position %d", target, pos)
		}
		for _, p := range q.Where {
			assert.Less(t, p.Step(), target)
		}
		assert.Len(t, q.Where, target-1)
	}
}

func TestComposeMultiSelectIsDisjunction(t *testing.T) {
	reg := steps.Default()
	sel := &spySelections{values: map[int][]string{
		1: {"Split"},
		2: {"A", "C"},
	}}
	q, err := Compose(reg, sel, 3)
	require.NoError(t, err)
	require.Len(t, q.Where, 2)

	in, ok := q.Where[1].(InPredicate)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "C"}, in.Values)
	assert.Equal(t, "character", in.Attr.Entity)

	assert.Equal(t, []string{"typeproduct", "character"}, q.Joins)
}

func TestComposeJoinsAccumulateWithoutDuplicates(t *testing.T) {
	reg := steps.Default()
	q, err := Compose(reg, &spySelections{}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"typeproduct", "character", "brand"}, q.Joins)
	assert.Equal(t, []string{"typeproduct", "character", "brand"}, q.Outer)
	assert.Empty(t, q.Where)
	assert.True(t, q.Leaf)
}

func TestComposeUnselectedStepsUseOuterJoins(t *testing.T) {
	reg := steps.Default()
	sel := &spySelections{values: map[int][]string{1: {"Split"}}}
	q, err := Compose(reg, sel, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"typeproduct", "character", "brand"}, q.Joins)
	assert.Equal(t, []string{"character"}, q.Outer)

	stmt, _, err := q.SQL(DefaultSchema())
	require.NoError(t, err)
	assert.Contains(t, stmt, ` JOIN "typeproduct" ON`)
	assert.NotContains(t, stmt, `LEFT JOIN "typeproduct"`)
	assert.Contains(t, stmt, `LEFT JOIN "product_character_association" ON`)
	assert.Contains(t, stmt, `LEFT JOIN "character" ON`)
	assert.NotContains(t, stmt, `LEFT JOIN "brand"`)

	sel.values[2] = []string{"Inverter"}
	q, err = Compose(reg, sel, 4)
	require.NoError(t, err)
	assert.Empty(t, q.Outer)
}

func TestComposeRangePredicate(t *testing.T) {
	reg := steps.Default()
	sel := &spySelections{values: map[int][]string{3: {"0.0 - 0.4", "1.0 - 1.4"}}}
	q, err := Compose(reg, sel, 4)
	require.NoError(t, err)
	require.Len(t, q.Where, 1)

	rp, ok := q.Where[0].(RangePredicate)
	require.True(t, ok)
	require.Len(t, rp.Buckets, 2)
	assert.Equal(t, 0, rp.Buckets[0].Index)
	assert.Equal(t, 2, rp.Buckets[1].Index)
}

func TestComposeMalformedRange(t *testing.T) {
	reg := steps.Default()
	sel := &spySelections{values: map[int][]string{3: {"0.3 - 0.7"}}}
	_, err := Compose(reg, sel, 4)

	var mre *MalformedRangeError
	require.ErrorAs(t, err, &mre)
	assert.Equal(t, 3, mre.Position)
	assert.True(t, errors.Is(err, bucket.ErrMalformedRange))
}

func TestComposeTargetOutOfRange(t *testing.T) {
	_, err := Compose(steps.Default(), &spySelections{}, 9)
	var cfgErr *steps.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestSQLRender(t *testing.T) {
	reg := steps.Default()
	sel := &spySelections{values: map[int][]string{
		1: {"Split"},
		2: {"A", "C"},
		3: {"0.0 - 0.4", "0.5 - 0.9"},
	}}
	q, err := Compose(reg, sel, 4)
	require.NoError(t, err)

	stmt, args, err := q.SQL(DefaultSchema())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stmt, `SELECT "brand"."name" AS "label" FROM "product"`), stmt)
	assert.Contains(t, stmt, `JOIN "typeproduct" ON "typeproduct"."id" = "product"."typeproduct_id"`)
	assert.Contains(t, stmt, `JOIN "product_character_association" ON "product_character_association"."product_id" = "product"."id"`)
	assert.Contains(t, stmt, `JOIN "brand" ON "brand"."id" = "product"."brand_id"`)
	assert.Contains(t, stmt, `"typeproduct"."name" IN (?)`)
	assert.Contains(t, stmt, `"character"."name" IN (?, ?)`)
	assert.Contains(t, stmt, `("product"."power" IS NULL OR "product"."power" < 0 OR floor("product"."power" / ?) > ? OR floor("product"."power" / ?) = ?) OR floor("product"."power" / ?) = ?`)
	assert.True(t, strings.HasSuffix(stmt, `GROUP BY "brand"."name" ORDER BY "brand"."name"`), stmt)

	assert.Equal(t, []any{"Split", "A", "C", 0.5, bucket.MaxIndex, 0.5, 0, 0.5, 1}, args)
}

func TestSQLUnknownJoin(t *testing.T) {
	q := &Query{Base: "product", Joins: []string{"warehouse"}, Project: []steps.AttributeRef{steps.MustAttribute("product.id")}}
	_, _, err := q.SQL(DefaultSchema())
	assert.ErrorIs(t, err, ErrUnknownJoin)
}

func TestSchemaValidate(t *testing.T) {
	require.NoError(t, DefaultSchema().Validate(steps.Default()))
	assert.ErrorIs(t, Schema{}.Validate(steps.Default()), ErrUnknownJoin)
}

func f(v float64) *float64 { return &v }

func TestElementsBucketsSortedAndDeduped(t *testing.T) {
	reg := steps.Default()
	power, err := reg.Get(3)
	require.NoError(t, err)

	rows := []Row{{Raw: f(1.2)}, {Raw: f(0.3)}, {Raw: f(0.1)}, {Raw: nil}, {Raw: f(0.6)}}
	out, clamped := Elements(power, rows)
	assert.Equal(t, 1, clamped)
	require.Len(t, out, 3)
	assert.Equal(t, "0.0 - 0.4", out[0].Label)
	assert.Equal(t, "0.5 - 0.9", out[1].Label)
	assert.Equal(t, "1.0 - 1.4", out[2].Label)
	assert.Equal(t, out[2].Label, out[2].Value)
}

func TestElementsLeafUsesID(t *testing.T) {
	leaf := steps.Default().Leaf()
	out, _ := Elements(leaf, []Row{{ID: 42, Label: "X-100"}})
	require.Len(t, out, 1)
	assert.Equal(t, "42", out[0].Value)
	assert.Equal(t, "X-100", out[0].Label)
}

func TestElementsFacetDedupes(t *testing.T) {
	st, _ := steps.Default().ByKey("brand")
	out, _ := Elements(st, []Row{{Label: "A"}, {Label: "B"}, {Label: "A"}})
	assert.Equal(t, []Row{{Label: "A", Value: "A"}, {Label: "B", Value: "B"}}, out)
}

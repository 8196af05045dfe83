package query

import (
	"context"
	"sort"
	"strconv"

	"github.com/m3rciful/facetbot/catalog/steps"
)

// Executor evaluates a composed query.
type Executor interface {
	Execute(ctx context.Context, q *Query) ([]Row, error)
}

// Row is one facet value or leaf record. Value is the token that identifies the
// row in actions: the label for facet values, the id for leaf records.
type Row struct {
	ID          int64    `json:"id,omitempty"`
	Label       string   `json:"label"`
	Value       string   `json:"value,omitempty"`
	Raw         *float64 `json:"raw,omitempty"`
	Description string   `json:"description,omitempty"`
	DocURL      string   `json:"doc_url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// Elements turns executor rows into the options of step st. Bucketed steps collapse
// raw values into one row per bucket ordered by bucket index; clamped counts values
// that were negative or missing.
func Elements(st steps.Step, rows []Row) (out []Row, clamped int) {
	switch {
	case st.Leaf:
		out = make([]Row, 0, len(rows))
		for _, r := range rows {
			r.Value = strconv.FormatInt(r.ID, 10)
			out = append(out, r)
		}
		return out, 0

	case st.ByRange():
		type item struct {
			index int
			row   Row
		}
		seen := make(map[int]struct{})
		items := make([]item, 0, len(rows))
		for _, r := range rows {
			b, c := st.Range.Bucketize(r.Raw)
			if c {
				clamped++
			}
			if _, dup := seen[b.Index]; dup {
				continue
			}
			seen[b.Index] = struct{}{}
			items = append(items, item{index: b.Index, row: Row{Label: b.Label, Value: b.Label}})
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].index < items[j].index })
		out = make([]Row, 0, len(items))
		for _, it := range items {
			out = append(out, it.row)
		}
		return out, clamped

	default:
		seen := make(map[string]struct{})
		out = make([]Row, 0, len(rows))
		for _, r := range rows {
			if _, dup := seen[r.Label]; dup {
				continue
			}
			seen[r.Label] = struct{}{}
			r.Value = r.Label
			out = append(out, r)
		}
		return out, 0
	}
}

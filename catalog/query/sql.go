package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/facetbot/catalog/bucket"
	"github.com/m3rciful/facetbot/catalog/steps"
)

// SQL renders q as a SELECT with '?' bind vars. Callers rebind for their driver.
func (q *Query) SQL(schema Schema) (string, []any, error) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT ")
	for i, a := range q.Project {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column(a))
		b.WriteString(" AS ")
		b.WriteString(pq.QuoteIdentifier(a.Name()))
	}
	b.WriteString(" FROM ")
	b.WriteString(pq.QuoteIdentifier(q.Base))

	for _, name := range q.Joins {
		hops, ok := schema.Relations[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownJoin, name)
		}
		kind := "JOIN"
		if slices.Contains(q.Outer, name) {
			kind = "LEFT JOIN"
		}
		for _, h := range hops {
			fmt.Fprintf(&b, " %s %s ON %s = %s", kind, pq.QuoteIdentifier(h.Table), ident(h.Left), ident(h.Right))
		}
	}

	if len(q.Where) > 0 {
		b.WriteString(" WHERE ")
		for i, p := range q.Where {
			if i > 0 {
				b.WriteString(" AND ")
			}
			switch p := p.(type) {
			case InPredicate:
				b.WriteString(column(p.Attr))
				b.WriteString(" IN (?)")
				args = append(args, p.Values)
			case RangePredicate:
				col := column(p.Attr)
				ors := make([]string, 0, len(p.Buckets))
				for _, bk := range p.Buckets {
					cond := fmt.Sprintf("floor(%s / ?) = ?", col)
					if bk.Index == 0 {
						// bucket 0 also holds values the bucketizer clamps; NaN sorts above every number
						cond = fmt.Sprintf("(%s IS NULL OR %s < 0 OR floor(%s / ?) > ? OR %s)", col, col, col, cond)
						args = append(args, p.Spec.Period(), bucket.MaxIndex)
					}
					args = append(args, p.Spec.Period(), bk.Index)
					ors = append(ors, cond)
				}
				b.WriteString("(" + strings.Join(ors, " OR ") + ")")
			default:
				return "", nil, fmt.Errorf("query: unsupported predicate %T", p)
			}
		}
	}

	writeList(&b, " GROUP BY ", q.Group)
	writeList(&b, " ORDER BY ", q.Order)

	out, args, err := sqlx.In(b.String(), args...)
	if err != nil {
		return "", nil, fmt.Errorf("query: expand args: %w", err)
	}
	return out, args, nil
}

func writeList(b *strings.Builder, prefix string, attrs []steps.AttributeRef) {
	if len(attrs) == 0 {
		return
	}
	b.WriteString(prefix)
	for i, a := range attrs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(column(a))
	}
}

func column(a steps.AttributeRef) string {
	return pq.QuoteIdentifier(a.Entity) + "." + pq.QuoteIdentifier(a.Column)
}

func ident(ref string) string {
	entity, col, ok := strings.Cut(ref, ".")
	if !ok {
		return pq.QuoteIdentifier(ref)
	}
	return pq.QuoteIdentifier(entity) + "." + pq.QuoteIdentifier(col)
}

// Package query composes catalog filters from wizard selections and evaluates them.
package query

import (
	"errors"
	"fmt"
	"slices"

	"github.com/m3rciful/facetbot/catalog/bucket"
	"github.com/m3rciful/facetbot/catalog/steps"
)

// SelectionReader exposes the values chosen at a step position.
type SelectionReader interface {
	Values(position int) []string
}

// Predicate is a filter condition. The set of implementations is closed:
// InPredicate and RangePredicate.
type Predicate interface {
	predicate()
	// Step returns the position whose selection produced the predicate.
	Step() int
}

// InPredicate matches rows whose attribute equals one of Values.
type InPredicate struct {
	Position int
	Attr     steps.AttributeRef
	Values   []string
}

// RangePredicate matches rows whose attribute falls into one of Buckets.
type RangePredicate struct {
	Position int
	Attr     steps.AttributeRef
	Spec     bucket.Spec
	Buckets  []bucket.Bucket
}

func (InPredicate) predicate()    {}
func (RangePredicate) predicate() {}

func (p InPredicate) Step() int    { return p.Position }
func (p RangePredicate) Step() int { return p.Position }

// Query is the composed filter for one target step.
type Query struct {
	Base    string
	Target  int
	Joins   []string
	// Outer lists the joins that only belong to earlier steps without a selection.
	// They render as LEFT JOIN so rows lacking the relation still match.
	Outer   []string
	Where   []Predicate
	Project []steps.AttributeRef
	Group   []steps.AttributeRef
	Order   []steps.AttributeRef
	Leaf    bool
	Range   bucket.Spec
}

// MalformedRangeError reports a stored bucket label that no longer parses.
type MalformedRangeError struct {
	Position int
	Label    string
	Err      error
}

func (e *MalformedRangeError) Error() string {
	return fmt.Sprintf("query: position %d: range %q: %v", e.Position, e.Label, e.Err)
}

func (e *MalformedRangeError) Unwrap() error { return e.Err }

// QueryExecutionError wraps any failure of the executor.
type QueryExecutionError struct {
	Target int
	Err    error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("query: execute target %d: %v", e.Target, e.Err)
}

func (e *QueryExecutionError) Unwrap() error { return e.Err }

// ErrUnknownJoin reports a join name the schema does not define.
var ErrUnknownJoin = errors.New("query: unknown join")

// Compose builds the query for target. Only selections at positions strictly lower
// than target are read.
func Compose(reg *steps.Registry, sel SelectionReader, target int) (*Query, error) {
	st, err := reg.Get(target)
	if err != nil {
		return nil, err
	}

	q := &Query{
		Base:    reg.Base(),
		Target:  target,
		Project: slices.Clone(st.Select),
		Group:   slices.Clone(st.Group),
		Order:   slices.Clone(st.Order),
		Leaf:    st.Leaf,
		Range:   st.Range,
	}

	seen := make(map[string]struct{})
	outer := make(map[string]bool)
	for pos := 1; pos <= target; pos++ {
		prev, err := reg.Get(pos)
		if err != nil {
			return nil, err
		}
		var values []string
		if pos < target {
			values = sel.Values(pos)
		}
		required := pos == target || len(values) > 0
		for _, j := range prev.Joins {
			if _, dup := seen[j]; dup {
				if required {
					delete(outer, j)
				}
				continue
			}
			seen[j] = struct{}{}
			q.Joins = append(q.Joins, j)
			if !required {
				outer[j] = true
			}
		}
		if pos == target {
			break
		}
		if len(values) == 0 {
			continue
		}
		if !prev.ByRange() {
			q.Where = append(q.Where, InPredicate{Position: pos, Attr: prev.Where, Values: slices.Clone(values)})
			continue
		}
		rp := RangePredicate{Position: pos, Attr: prev.Where, Spec: prev.Range}
		for _, label := range values {
			b, err := prev.Range.Parse(label)
			if err != nil {
				return nil, &MalformedRangeError{Position: pos, Label: label, Err: err}
			}
			rp.Buckets = append(rp.Buckets, b)
		}
		q.Where = append(q.Where, rp)
	}
	for _, j := range q.Joins {
		if outer[j] {
			q.Outer = append(q.Outer, j)
		}
	}
	return q, nil
}

// Package bucket groups continuous catalog attributes into fixed-width labeled ranges.
package bucket

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// LabelSeparator joins the lower and upper bound inside a bucket label.
const LabelSeparator = " - "

// ErrMalformedRange reports a bucket label that cannot be mapped back to a bucket.
var ErrMalformedRange = errors.New("bucket: malformed range label")

// Spec configures bucketing for one step.
// Width is the visible range R, Step the extra gap S; buckets repeat every R+S.
type Spec struct {
	Width     float64 `yaml:"width"`
	Step      float64 `yaml:"step"`
	Precision int     `yaml:"precision"`
}

// Bucket is one labeled interval produced by Spec.Bucketize.
type Bucket struct {
	Index int
	Lower float64
	Upper float64
	Label string
}

// Enabled reports whether values are bucketed at all. A zero spec means exact matching.
func (s Spec) Enabled() bool {
	return s.Width != 0 || s.Step != 0
}

// Period returns W = R + S.
func (s Spec) Period() float64 {
	return s.Width + s.Step
}

// Validate checks that s describes a usable grid.
func (s Spec) Validate() error {
	if !s.Enabled() {
		return nil
	}
	if s.Width < 0 || s.Step < 0 {
		return fmt.Errorf("bucket: width and step must be >= 0 (width=%v step=%v)", s.Width, s.Step)
	}
	if s.Period() <= 0 {
		return fmt.Errorf("bucket: width + step must be > 0")
	}
	if s.Precision < 0 || s.Precision > 6 {
		return fmt.Errorf("bucket: precision %d out of range [0,6]", s.Precision)
	}
	return nil
}

// MaxIndex is the highest bucket index Bucketize produces.
const MaxIndex = math.MaxInt32

// Bucketize maps v to its bucket. Nil, NaN, negative values and values whose index
// would exceed MaxIndex (including +Inf) collapse into bucket 0; clamped reports
// that this happened so callers can flag the data-quality issue.
func (s Spec) Bucketize(v *float64) (b Bucket, clamped bool) {
	k := 0
	switch {
	case v == nil || math.IsNaN(*v) || *v < 0:
		clamped = true
	default:
		if q := math.Floor(*v / s.Period()); q <= MaxIndex {
			k = int(q)
		} else {
			clamped = true
		}
	}
	return s.At(k), clamped
}

// At returns the bucket with index k.
func (s Spec) At(k int) Bucket {
	if k < 0 {
		k = 0
	}
	lower := round(float64(k)*s.Period(), s.Precision)
	upper := round(float64(k)*s.Period()+s.Width, s.Precision)
	return Bucket{
		Index: k,
		Lower: lower,
		Upper: upper,
		Label: s.format(lower) + LabelSeparator + s.format(upper),
	}
}

// Parse re-derives the bucket from label text. The label must sit exactly on the grid
// described by s, otherwise ErrMalformedRange is returned.
func (s Spec) Parse(label string) (Bucket, error) {
	lower, _, err := ParseLabel(label)
	if err != nil {
		return Bucket{}, err
	}
	if !s.Enabled() {
		return Bucket{}, fmt.Errorf("%w: %q: bucketing disabled", ErrMalformedRange, label)
	}
	q := math.Round(lower / s.Period())
	if q > MaxIndex {
		return Bucket{}, fmt.Errorf("%w: %q: beyond the last bucket", ErrMalformedRange, label)
	}
	b := s.At(int(q))
	if b.Label != strings.TrimSpace(label) {
		return Bucket{}, fmt.Errorf("%w: %q is not on the bucket grid", ErrMalformedRange, label)
	}
	return b, nil
}

// ParseLabel splits "<lower> - <upper>" into numeric bounds.
func ParseLabel(label string) (lower, upper float64, err error) {
	parts := strings.Split(strings.TrimSpace(label), LabelSeparator)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedRange, label)
	}
	lower, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", ErrMalformedRange, label, err)
	}
	upper, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q: %v", ErrMalformedRange, label, err)
	}
	if upper < lower {
		return 0, 0, fmt.Errorf("%w: %q: upper below lower", ErrMalformedRange, label)
	}
	return lower, upper, nil
}

func (s Spec) format(v float64) string {
	return strconv.FormatFloat(v, 'f', s.Precision, 64)
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

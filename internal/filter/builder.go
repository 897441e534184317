// Package filter provides a fluent, backend-agnostic builder for composing
// metadata predicates. The builder's output is a plain condition tree
// (must / should / must_not slots over match, range, and nested-group nodes)
// that can be compiled to a concrete backend syntax without changing the
// builder itself. The Qdrant compiler lives in qdrant.go.
package filter

import (
	"fmt"
	"time"
)

// Filter is a composed predicate tree over chunk metadata.
// Must conditions are ANDed, Should conditions are ORed (at least one must
// hold when present), and MustNot conditions are ANDed negations.
//
// A nil *Filter means "no restriction"; callers must never interpret it as
// "match nothing".
type Filter struct {
	// Must holds conditions that all must hold.
	Must []Condition

	// Should holds conditions of which at least one must hold, when non-empty.
	Should []Condition

	// MustNot holds conditions that all must fail.
	MustNot []Condition
}

// Empty reports whether the filter has no conditions in any slot.
func (f *Filter) Empty() bool {
	return f == nil || len(f.Must)+len(f.Should)+len(f.MustNot) == 0
}

// Condition is a single node in the filter tree. Exactly one of Match, Range,
// or Group is set. Group conditions carry a nested Filter and ignore Field;
// they exist so compound predicates ("source is bookfeed AND userId is X")
// can be combined with other groups via Should.
type Condition struct {
	// Field is the metadata key this condition binds to. Unused for Group.
	Field string

	// Match requires the field to equal a value exactly.
	Match *Match

	// Range requires the field to fall within numeric or date bounds.
	Range *Range

	// Group is a nested filter evaluated as a single condition.
	Group *Filter
}

// Match is an exact-equality predicate. Value may be a string, bool, integer,
// or []string (any element matches an array-valued field).
type Match struct {
	// Value is the value the field must equal.
	Value any
}

// Range is a numeric or date bound predicate. Each bound is either a float64
// (numeric comparison) or an RFC 3339 string (datetime comparison); nil bounds
// are open. Mixing numeric and date bounds in one Range is invalid.
type Range struct {
	GT  any
	GTE any
	LT  any
	LTE any
}

// Eq returns an exact-match condition for field = value.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Match: &Match{Value: value}}
}

// Group returns a condition wrapping a nested filter.
func Group(f *Filter) Condition {
	return Condition{Group: f}
}

// Builder composes a Filter incrementally. The zero value is ready to use.
// Builders are not safe for concurrent use; construct one per request.
type Builder struct {
	must    []Condition
	should  []Condition
	mustNot []Condition
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Equals adds a must condition requiring field = value.
func (b *Builder) Equals(field string, value any) *Builder {
	b.must = append(b.must, Eq(field, value))
	return b
}

// In adds a must condition requiring field to equal any of values.
// A single value degenerates to a plain equality; multiple values expand to
// a nested OR group. No values is a no-op.
func (b *Builder) In(field string, values ...any) *Builder {
	switch len(values) {
	case 0:
		return b
	case 1:
		return b.Equals(field, values[0])
	}
	group := &Filter{}
	for _, v := range values {
		group.Should = append(group.Should, Eq(field, v))
	}
	b.must = append(b.must, Group(group))
	return b
}

// Range adds a must condition requiring gte <= field <= lte.
// Either bound may be nil to leave that side open.
func (b *Builder) Range(field string, gte, lte any) *Builder {
	b.must = append(b.must, Condition{Field: field, Range: &Range{GTE: gte, LTE: lte}})
	return b
}

// GreaterThan adds a must condition requiring field > value.
func (b *Builder) GreaterThan(field string, value any) *Builder {
	b.must = append(b.must, Condition{Field: field, Range: &Range{GT: value}})
	return b
}

// GreaterThanOrEqual adds a must condition requiring field >= value.
func (b *Builder) GreaterThanOrEqual(field string, value any) *Builder {
	b.must = append(b.must, Condition{Field: field, Range: &Range{GTE: value}})
	return b
}

// LessThan adds a must condition requiring field < value.
func (b *Builder) LessThan(field string, value any) *Builder {
	b.must = append(b.must, Condition{Field: field, Range: &Range{LT: value}})
	return b
}

// LessThanOrEqual adds a must condition requiring field <= value.
func (b *Builder) LessThanOrEqual(field string, value any) *Builder {
	b.must = append(b.must, Condition{Field: field, Range: &Range{LTE: value}})
	return b
}

// DateRange adds a must condition requiring start <= field <= end.
// Dates are normalised to RFC 3339 UTC strings before comparison so every
// backend sees one canonical form. Zero times leave that bound open; two
// zero times are a no-op.
func (b *Builder) DateRange(field string, start, end time.Time) *Builder {
	r := &Range{}
	if !start.IsZero() {
		r.GTE = NormalizeDate(start)
	}
	if !end.IsZero() {
		r.LTE = NormalizeDate(end)
	}
	if r.GTE == nil && r.LTE == nil {
		return b
	}
	b.must = append(b.must, Condition{Field: field, Range: r})
	return b
}

// Must appends a raw condition to the must slot. Escape hatch for predicates
// the fluent API does not cover.
func (b *Builder) Must(c Condition) *Builder {
	b.must = append(b.must, c)
	return b
}

// Should appends a raw condition to the should slot.
func (b *Builder) Should(c Condition) *Builder {
	b.should = append(b.should, c)
	return b
}

// MustNot appends a raw condition to the must_not slot.
func (b *Builder) MustNot(c Condition) *Builder {
	b.mustNot = append(b.mustNot, c)
	return b
}

// Build returns the composed filter, or nil when no conditions were added.
// Callers must treat nil as "no restriction", never as a contradiction.
func (b *Builder) Build() *Filter {
	if len(b.must)+len(b.should)+len(b.mustNot) == 0 {
		return nil
	}
	return &Filter{
		Must:    b.must,
		Should:  b.should,
		MustNot: b.mustNot,
	}
}

// Reset clears all three condition slots so the builder can be reused.
func (b *Builder) Reset() {
	b.must = nil
	b.should = nil
	b.mustNot = nil
}

// NormalizeDate converts t to the canonical RFC 3339 UTC string used for all
// date comparisons in filters and stored payloads.
func NormalizeDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseDate parses a user- or model-supplied date string. RFC 3339 and plain
// YYYY-MM-DD are accepted; an empty string parses to the zero time, which
// DateRange treats as an open bound.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("filter: invalid date %q, want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

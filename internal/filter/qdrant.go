package filter

import (
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ToQdrant compiles the filter tree into the Qdrant gRPC filter syntax.
// A nil or empty filter compiles to nil, which Qdrant treats as unfiltered,
// preserving the "empty filter means no restriction" invariant.
//
// Conditions with values the backend cannot represent (e.g. an unparseable
// date string) are dropped rather than compiled into a contradiction; the
// store query then over-selects and callers post-filter in memory.
func ToQdrant(f *Filter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}

	qf := &qdrant.Filter{}
	for _, c := range f.Must {
		if qc := conditionToQdrant(c); qc != nil {
			qf.Must = append(qf.Must, qc)
		}
	}
	for _, c := range f.Should {
		if qc := conditionToQdrant(c); qc != nil {
			qf.Should = append(qf.Should, qc)
		}
	}
	for _, c := range f.MustNot {
		if qc := conditionToQdrant(c); qc != nil {
			qf.MustNot = append(qf.MustNot, qc)
		}
	}

	if len(qf.Must)+len(qf.Should)+len(qf.MustNot) == 0 {
		return nil
	}
	return qf
}

// conditionToQdrant converts a single condition node. Returns nil for
// conditions that cannot be represented.
func conditionToQdrant(c Condition) *qdrant.Condition {
	switch {
	case c.Group != nil:
		nested := ToQdrant(c.Group)
		if nested == nil {
			return nil
		}
		return &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Filter{Filter: nested},
		}

	case c.Match != nil:
		return matchToQdrant(c.Field, c.Match.Value)

	case c.Range != nil:
		return rangeToQdrant(c.Field, c.Range)
	}
	return nil
}

// matchToQdrant converts an exact-match condition for the supported payload
// value types.
func matchToQdrant(field string, value any) *qdrant.Condition {
	switch v := value.(type) {
	case string:
		return qdrant.NewMatch(field, v)
	case bool:
		return qdrant.NewMatchBool(field, v)
	case int:
		return qdrant.NewMatchInt(field, int64(v))
	case int64:
		return qdrant.NewMatchInt(field, v)
	case float64:
		// Payload integers round-trip to float64 through JSON; match the
		// integral value, drop anything with a fractional part.
		if v == float64(int64(v)) {
			return qdrant.NewMatchInt(field, int64(v))
		}
		return nil
	case []string:
		return qdrant.NewMatchKeywords(field, v...)
	}
	return nil
}

// rangeToQdrant converts a range condition. All bounds must agree on kind:
// float64 bounds compile to a numeric range, RFC 3339 strings to a datetime
// range.
func rangeToQdrant(field string, r *Range) *qdrant.Condition {
	if s, ok := firstString(r); ok && s != "" {
		return datetimeRangeToQdrant(field, r)
	}

	qr := &qdrant.Range{}
	any := false
	if v, ok := toFloat(r.GT); ok {
		qr.Gt, any = qdrant.PtrOf(v), true
	}
	if v, ok := toFloat(r.GTE); ok {
		qr.Gte, any = qdrant.PtrOf(v), true
	}
	if v, ok := toFloat(r.LT); ok {
		qr.Lt, any = qdrant.PtrOf(v), true
	}
	if v, ok := toFloat(r.LTE); ok {
		qr.Lte, any = qdrant.PtrOf(v), true
	}
	if !any {
		return nil
	}
	return qdrant.NewRange(field, qr)
}

// datetimeRangeToQdrant converts a range whose bounds are canonical RFC 3339
// strings into a Qdrant datetime range.
func datetimeRangeToQdrant(field string, r *Range) *qdrant.Condition {
	qr := &qdrant.DatetimeRange{}
	any := false
	if ts, ok := toTimestamp(r.GT); ok {
		qr.Gt, any = ts, true
	}
	if ts, ok := toTimestamp(r.GTE); ok {
		qr.Gte, any = ts, true
	}
	if ts, ok := toTimestamp(r.LT); ok {
		qr.Lt, any = ts, true
	}
	if ts, ok := toTimestamp(r.LTE); ok {
		qr.Lte, any = ts, true
	}
	if !any {
		return nil
	}
	return qdrant.NewDatetimeRange(field, qr)
}

// firstString returns the first non-nil bound if it is a string.
func firstString(r *Range) (string, bool) {
	for _, v := range []any{r.GT, r.GTE, r.LT, r.LTE} {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		return s, ok
	}
	return "", false
}

// toFloat widens the supported numeric bound types to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// toTimestamp parses a canonical RFC 3339 bound into a protobuf timestamp.
func toTimestamp(v any) (*timestamppb.Timestamp, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return timestamppb.New(t), true
}

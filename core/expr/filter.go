package expr

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FilterOp is a metadata comparison operator.
type FilterOp string

const (
	FilterEq  FilterOp = "eq"
	FilterNeq FilterOp = "neq"
	FilterLt  FilterOp = "lt"
	FilterLte FilterOp = "lte"
	FilterGt  FilterOp = "gt"
	FilterGte FilterOp = "gte"
)

// Filter is a scene-metadata predicate. Comparisons go through decimal so a
// config literal like 60 matches metadata exactly, without float drift.
type Filter struct {
	Field string          `json:"field"`
	Op    FilterOp        `json:"op"`
	Value decimal.Decimal `json:"value"`
}

// Lte builds a field <= v predicate.
func Lte(field string, v float64) Filter {
	return Filter{Field: field, Op: FilterLte, Value: decimal.NewFromFloat(v)}
}

// Gte builds a field >= v predicate.
func Gte(field string, v float64) Filter {
	return Filter{Field: field, Op: FilterGte, Value: decimal.NewFromFloat(v)}
}

// Eq builds a field == v predicate.
func Eq(field string, v float64) Filter {
	return Filter{Field: field, Op: FilterEq, Value: decimal.NewFromFloat(v)}
}

// Matches evaluates the predicate against a metadata value.
func (f Filter) Matches(v float64) bool {
	d := decimal.NewFromFloat(v)
	switch f.Op {
	case FilterEq:
		return d.Equal(f.Value)
	case FilterNeq:
		return !d.Equal(f.Value)
	case FilterLt:
		return d.LessThan(f.Value)
	case FilterLte:
		return d.LessThanOrEqual(f.Value)
	case FilterGt:
		return d.GreaterThan(f.Value)
	case FilterGte:
		return d.GreaterThanOrEqual(f.Value)
	}
	return false
}

// String renders the predicate for logs and errors.
func (f Filter) String() string {
	return fmt.Sprintf("%s %s %s", f.Field, f.Op, f.Value)
}

// Package spec defines the resolved query specification types produced by
// the query parser and consumed by the dataflow plan builder.
package spec

import (
	"time"

	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

// TimeGranularity is a supported time dimension granularity, ordered from
// finest to coarsest.
type TimeGranularity string

// Time granularities.
const (
	GranularityDay     TimeGranularity = "day"
	GranularityWeek    TimeGranularity = "week"
	GranularityMonth   TimeGranularity = "month"
	GranularityQuarter TimeGranularity = "quarter"
	GranularityYear    TimeGranularity = "year"
)

// granularityOrder assigns each granularity a rank for coarseness checks.
var granularityOrder = map[TimeGranularity]int{
	GranularityDay:     0,
	GranularityWeek:    1,
	GranularityMonth:   2,
	GranularityQuarter: 3,
	GranularityYear:    4,
}

// Valid reports whether g is a known granularity.
func (g TimeGranularity) Valid() bool {
	_, ok := granularityOrder[g]
	return ok
}

// AtLeastAsCoarseAs reports whether g is the same or coarser than other.
func (g TimeGranularity) AtLeastAsCoarseAs(other TimeGranularity) bool {
	return granularityOrder[g] >= granularityOrder[other]
}

// MetricSpec identifies a queried metric.
type MetricSpec struct {
	Name string
}

// DimensionSpec identifies a queried categorical dimension, optionally
// reached through an entity link ("listing__country_latest").
type DimensionSpec struct {
	Name       string
	EntityLink string
}

// QualifiedName returns the dunder-joined output column name.
func (d DimensionSpec) QualifiedName() string {
	if d.EntityLink == "" {
		return d.Name
	}
	return d.EntityLink + NameSeparator + d.Name
}

// TimeDimensionSpec identifies a queried time dimension at a granularity.
// A zero Granularity means the dimension's native grain.
type TimeDimensionSpec struct {
	Name        string
	EntityLink  string
	Granularity TimeGranularity
}

// QualifiedName returns the dunder-joined output column name, including
// the granularity suffix when one was requested.
func (d TimeDimensionSpec) QualifiedName() string {
	name := d.Name
	if d.EntityLink != "" {
		name = d.EntityLink + NameSeparator + name
	}
	if d.Granularity != "" {
		name = name + NameSeparator + string(d.Granularity)
	}
	return name
}

// OrderBySpec orders query output by a named output column.
type OrderBySpec struct {
	Name       string
	Descending bool
}

// TimeRangeConstraint restricts the primary time dimension to an
// inclusive range.
type TimeRangeConstraint struct {
	Start time.Time
	End   time.Time
}

// WhereFilterSpec holds a parsed where filter along with the element
// names it references, in first-appearance order.
type WhereFilterSpec struct {
	SQL      string
	Expr     sqlplan.Expr
	Elements []string
}

// QuerySpec is the fully resolved request handed to the dataflow plan
// builder.
type QuerySpec struct {
	Metrics        []MetricSpec
	Dimensions     []DimensionSpec
	TimeDimensions []TimeDimensionSpec
	Where          *WhereFilterSpec
	TimeRange      *TimeRangeConstraint
	OrderBys       []OrderBySpec
	Limit          *int64
}

// GroupByNames returns the output column names of all group-by elements
// in declaration order, time dimensions last.
func (q QuerySpec) GroupByNames() []string {
	names := make([]string, 0, len(q.Dimensions)+len(q.TimeDimensions))
	for _, d := range q.Dimensions {
		names = append(names, d.QualifiedName())
	}
	for _, d := range q.TimeDimensions {
		names = append(names, d.QualifiedName())
	}
	return names
}

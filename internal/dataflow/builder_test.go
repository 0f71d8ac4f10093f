package dataflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/semantic"
	"github.com/leapstack-labs/metriq/pkg/spec"
	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

func testLookup() *semantic.Lookup {
	return semantic.NewLookup(&semantic.Manifest{
		DataSources: []*semantic.DataSource{
			{
				Name:     "bookings_source",
				SQLQuery: "SELECT * FROM demo.fct_bookings",
				Entities: []*semantic.Entity{
					{Name: "booking", Type: semantic.EntityPrimary, Expr: "booking_id"},
					{Name: "listing", Type: semantic.EntityForeign, Expr: "listing_id"},
				},
				Measures: []*semantic.Measure{
					{Name: "bookings", Agg: semantic.AggregationSum, Expr: "1"},
					{Name: "booking_value", Agg: semantic.AggregationSum},
				},
				Dimensions: []*semantic.Dimension{
					{Name: "ds", Type: semantic.DimensionTime, TypeParams: &semantic.DimensionTypeParams{
						TimeGranularity: spec.GranularityDay,
						IsPrimary:       true,
					}},
					{Name: "is_instant", Type: semantic.DimensionCategorical},
				},
			},
			{
				Name:     "listings_source",
				SQLTable: "demo.dim_listings",
				Entities: []*semantic.Entity{
					{Name: "listing", Type: semantic.EntityPrimary, Expr: "listing_id"},
				},
				Dimensions: []*semantic.Dimension{
					{Name: "country_latest", Type: semantic.DimensionCategorical, Expr: "country"},
					{Name: "created_at", Type: semantic.DimensionTime, TypeParams: &semantic.DimensionTypeParams{
						TimeGranularity: spec.GranularityDay,
						IsPrimary:       true,
					}},
				},
			},
			{
				Name:     "visits_source",
				SQLTable: "demo.fct_visits",
				Entities: []*semantic.Entity{
					{Name: "visit", Type: semantic.EntityPrimary, Expr: "visit_id"},
				},
				Measures: []*semantic.Measure{
					{Name: "visits", Agg: semantic.AggregationCount, Expr: "1"},
				},
				Dimensions: []*semantic.Dimension{
					{Name: "ds", Type: semantic.DimensionTime, TypeParams: &semantic.DimensionTypeParams{
						TimeGranularity: spec.GranularityDay,
						IsPrimary:       true,
					}},
				},
			},
		},
		Metrics: []*semantic.Metric{
			{Name: "bookings", Type: semantic.MetricSimple, TypeParams: semantic.MetricTypeParams{Measure: "bookings"}},
			{Name: "booking_value", Type: semantic.MetricSimple, TypeParams: semantic.MetricTypeParams{Measure: "booking_value"}},
			{Name: "instant_bookings", Type: semantic.MetricSimple,
				TypeParams: semantic.MetricTypeParams{Measure: "bookings"},
				Filter:     "is_instant",
			},
			{Name: "bookings_per_booking_value", Type: semantic.MetricRatio,
				TypeParams: semantic.MetricTypeParams{Numerator: "bookings", Denominator: "booking_value"}},
			{Name: "visits", Type: semantic.MetricSimple, TypeParams: semantic.MetricTypeParams{Measure: "visits"}},
		},
	})
}

func nodeChain(sink Node) []string {
	var chain []string
	for n := sink; n != nil; {
		chain = append(chain, nodeTypeName(n))
		inputs := n.Inputs()
		if len(inputs) == 0 {
			break
		}
		n = inputs[0]
	}
	return chain
}

func TestBuildMetricPlan_Shape(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics:    []spec.MetricSpec{{Name: "bookings"}},
		Dimensions: []spec.DimensionSpec{{Name: "is_instant"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "plan0", plan.ID)
	assert.Equal(t, []string{
		"ComputeMetricsNode",
		"AggregateMeasuresNode",
		"FilterElementsNode",
		"ReadSqlSourceNode",
	}, nodeChain(plan.Sink))

	metrics := plan.Sink.(*ComputeMetricsNode)
	require.Len(t, metrics.Metrics, 1)
	assert.Equal(t, "bookings", metrics.Metrics[0].Name)
	assert.Equal(t, []string{"is_instant"}, metrics.GroupBys)

	agg := metrics.Input.(*AggregateMeasuresNode)
	require.Len(t, agg.Measures, 1)
	assert.Equal(t, MeasureAggregation{Name: "bookings", Fn: "SUM"}, agg.Measures[0])

	pass := agg.Input.(*FilterElementsNode)
	assert.Equal(t, []string{"bookings", "is_instant"}, pass.Include)

	read := pass.Input.(*ReadSqlSourceNode)
	assert.Equal(t, "bookings_source", read.Source.Name)
	assert.Equal(t, []string{"bookings", "booking_value", "ds", "is_instant", "booking", "listing"},
		OutputColumns(read))
}

func TestBuildMetricPlan_WhereAndOrder(t *testing.T) {
	b := NewBuilder(testLookup())

	where, err := ParseFilter("is_instant")
	require.NoError(t, err)

	limit := int64(10)
	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics:        []spec.MetricSpec{{Name: "bookings"}},
		TimeDimensions: []spec.TimeDimensionSpec{{Name: "ds"}},
		Where:          where,
		OrderBys:       []spec.OrderBySpec{{Name: "ds", Descending: true}},
		Limit:          &limit,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"OrderByLimitNode",
		"ComputeMetricsNode",
		"AggregateMeasuresNode",
		"FilterElementsNode",
		"WhereConstraintNode",
		"ReadSqlSourceNode",
	}, nodeChain(plan.Sink))

	order := plan.Sink.(*OrderByLimitNode)
	assert.Equal(t, "Order By ['ds'] Limit 10", order.Description())
}

func TestBuildMetricPlan_MetricTimeGrain(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics: []spec.MetricSpec{{Name: "bookings"}},
		TimeDimensions: []spec.TimeDimensionSpec{
			{Name: spec.MetricTimeName, Granularity: spec.GranularityMonth},
		},
	})
	require.NoError(t, err)

	pass := plan.Sink.(*ComputeMetricsNode).Input.(*AggregateMeasuresNode).Input.(*FilterElementsNode)
	assert.Equal(t, []string{"bookings", "metric_time__month"}, pass.Include)

	read := pass.Input.(*ReadSqlSourceNode)
	assert.Contains(t, OutputColumns(read), "metric_time__month")
}

func TestBuildMetricPlan_FinerGrainRejected(t *testing.T) {
	lookup := semantic.NewLookup(&semantic.Manifest{
		DataSources: []*semantic.DataSource{
			{
				Name:     "monthly_source",
				SQLTable: "demo.fct_monthly",
				Entities: []*semantic.Entity{
					{Name: "account", Type: semantic.EntityPrimary, Expr: "account_id"},
				},
				Measures: []*semantic.Measure{
					{Name: "revenue", Agg: semantic.AggregationSum},
				},
				Dimensions: []*semantic.Dimension{
					{Name: "ds", Type: semantic.DimensionTime, TypeParams: &semantic.DimensionTypeParams{
						TimeGranularity: spec.GranularityMonth,
						IsPrimary:       true,
					}},
				},
			},
		},
		Metrics: []*semantic.Metric{
			{Name: "revenue", Type: semantic.MetricSimple, TypeParams: semantic.MetricTypeParams{Measure: "revenue"}},
		},
	})
	b := NewBuilder(lookup)

	_, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics: []spec.MetricSpec{{Name: "revenue"}},
		TimeDimensions: []spec.TimeDimensionSpec{
			{Name: spec.MetricTimeName, Granularity: spec.GranularityDay},
		},
	})
	require.Error(t, err)
	var unsat *UnableToSatisfyQueryError
	require.ErrorAs(t, err, &unsat)
	assert.Contains(t, err.Error(), "finer grain")
}

func TestBuildMetricPlan_JoinedDimension(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics:    []spec.MetricSpec{{Name: "bookings"}},
		Dimensions: []spec.DimensionSpec{{Name: "country_latest", EntityLink: "listing"}},
	})
	require.NoError(t, err)

	pass := plan.Sink.(*ComputeMetricsNode).Input.(*AggregateMeasuresNode).Input.(*FilterElementsNode)
	assert.Equal(t, []string{"bookings", "listing__country_latest"}, pass.Include)

	join := pass.Input.(*JoinOnEntityNode)
	assert.Equal(t, "listing", join.Entity)
	assert.Equal(t, "bookings_source", join.Left.(*ReadSqlSourceNode).Source.Name)
	right := join.Right.(*ReadSqlSourceNode)
	assert.Equal(t, "listings_source", right.Source.Name)
	require.Len(t, right.Elements, 2)
	assert.Equal(t, "listing", right.Elements[0].Name)
	assert.Equal(t, "country_latest", right.Elements[1].Name)
	assert.Contains(t, OutputColumns(join), "listing__country_latest")
}

func TestBuildMetricPlan_JoinedTimeDimension(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics:        []spec.MetricSpec{{Name: "bookings"}},
		TimeDimensions: []spec.TimeDimensionSpec{{Name: "created_at", EntityLink: "listing"}},
	})
	require.NoError(t, err)

	pass := plan.Sink.(*ComputeMetricsNode).Input.(*AggregateMeasuresNode).Input.(*FilterElementsNode)
	assert.Equal(t, []string{"bookings", "listing__created_at"}, pass.Include)

	join := pass.Input.(*JoinOnEntityNode)
	assert.Equal(t, "listing", join.Entity)
	right := join.Right.(*ReadSqlSourceNode)
	assert.Equal(t, "listings_source", right.Source.Name)
	require.Len(t, right.Elements, 2)
	assert.Equal(t, "created_at", right.Elements[1].Name)
	assert.Equal(t, ElementTimeDimension, right.Elements[1].Kind)
	assert.Contains(t, OutputColumns(join), "listing__created_at")
}

func TestBuildMetricPlan_JoinedTimeDimensionGrain(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics: []spec.MetricSpec{{Name: "bookings"}},
		TimeDimensions: []spec.TimeDimensionSpec{
			{Name: "created_at", EntityLink: "listing", Granularity: spec.GranularityMonth},
		},
	})
	require.NoError(t, err)

	pass := plan.Sink.(*ComputeMetricsNode).Input.(*AggregateMeasuresNode).Input.(*FilterElementsNode)
	assert.Equal(t, []string{"bookings", "listing__created_at__month"}, pass.Include)

	right := pass.Input.(*JoinOnEntityNode).Right.(*ReadSqlSourceNode)
	require.Len(t, right.Elements, 2)
	assert.Equal(t, "created_at__month", right.Elements[1].Name)
	trunc, ok := right.Elements[1].Expr.(*sqlplan.DateTrunc)
	require.True(t, ok)
	assert.Equal(t, "month", trunc.Grain)
}

func TestBuildMetricPlan_MetricFilter(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics:    []spec.MetricSpec{{Name: "instant_bookings"}},
		Dimensions: []spec.DimensionSpec{{Name: "ds"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ComputeMetricsNode",
		"AggregateMeasuresNode",
		"FilterElementsNode",
		"WhereConstraintNode",
		"ReadSqlSourceNode",
	}, nodeChain(plan.Sink))

	_, err = b.BuildMetricPlan(spec.QuerySpec{
		Metrics: []spec.MetricSpec{{Name: "instant_bookings"}, {Name: "bookings"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestBuildMetricPlan_TimeRange(t *testing.T) {
	b := NewBuilder(testLookup())

	plan, err := b.BuildMetricPlan(spec.QuerySpec{
		Metrics:        []spec.MetricSpec{{Name: "bookings"}},
		TimeDimensions: []spec.TimeDimensionSpec{{Name: spec.MetricTimeName}},
		TimeRange: &spec.TimeRangeConstraint{
			Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	pass := plan.Sink.(*ComputeMetricsNode).Input.(*AggregateMeasuresNode).Input.(*FilterElementsNode)
	where := pass.Input.(*WhereConstraintNode)
	assert.Equal(t, "metric_time BETWEEN '2020-01-01' AND '2020-01-31'", where.Filter.SQL)
}

func TestBuildMetricPlan_Errors(t *testing.T) {
	b := NewBuilder(testLookup())

	_, err := b.BuildMetricPlan(spec.QuerySpec{})
	assert.ErrorContains(t, err, "no metrics")

	_, err = b.BuildMetricPlan(spec.QuerySpec{Metrics: []spec.MetricSpec{{Name: "nope"}}})
	assert.ErrorContains(t, err, `unknown metric "nope"`)

	_, err = b.BuildMetricPlan(spec.QuerySpec{
		Metrics:    []spec.MetricSpec{{Name: "bookings"}},
		Dimensions: []spec.DimensionSpec{{Name: "country_latest"}},
	})
	assert.ErrorContains(t, err, "not defined on data source")

	_, err = b.BuildMetricPlan(spec.QuerySpec{
		Metrics: []spec.MetricSpec{{Name: "bookings"}, {Name: "visits"}},
	})
	assert.ErrorContains(t, err, "different data sources")

	_, err = b.BuildMetricPlan(spec.QuerySpec{
		Metrics:  []spec.MetricSpec{{Name: "bookings"}},
		OrderBys: []spec.OrderBySpec{{Name: "is_instant"}},
	})
	assert.ErrorContains(t, err, "not in the query output")
}

func TestBuildElementsPlan_Shape(t *testing.T) {
	b := NewBuilder(testLookup())

	where, err := ParseFilter("ds = '2020-01-01'")
	require.NoError(t, err)

	plan, err := b.BuildElementsPlan([]string{"bookings"}, spec.QuerySpec{
		TimeDimensions: []spec.TimeDimensionSpec{{Name: "ds"}},
		Where:          where,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"WhereConstraintNode",
		"FilterElementsNode",
		"ReadSqlSourceNode",
	}, nodeChain(plan.Sink))
	assert.Equal(t, []string{"bookings", "ds"}, OutputColumns(plan.Sink))

	pass := plan.Sink.(*WhereConstraintNode).Input.(*FilterElementsNode)
	assert.Equal(t, "Pass Only Elements: ['bookings', 'ds']", pass.Description())
}

func TestBuildElementsPlan_FilterNeedsSelectedElement(t *testing.T) {
	b := NewBuilder(testLookup())

	where, err := ParseFilter("is_instant")
	require.NoError(t, err)

	_, err = b.BuildElementsPlan([]string{"bookings"}, spec.QuerySpec{
		TimeDimensions: []spec.TimeDimensionSpec{{Name: "ds"}},
		Where:          where,
	})
	assert.ErrorContains(t, err, `references "is_instant"`)
}

func TestParseFilter_Elements(t *testing.T) {
	filter, err := ParseFilter("is_instant AND ds = '2020-01-01'")
	require.NoError(t, err)
	assert.Equal(t, []string{"is_instant", "ds"}, filter.Elements)
}

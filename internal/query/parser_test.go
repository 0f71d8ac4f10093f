package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/semantic"
	"github.com/leapstack-labs/metriq/pkg/spec"
)

func testParser() *Parser {
	return NewParser(semantic.NewLookup(&semantic.Manifest{
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
				},
			},
		},
		Metrics: []*semantic.Metric{
			{Name: "bookings", Type: semantic.MetricSimple, TypeParams: semantic.MetricTypeParams{Measure: "bookings"}},
		},
	}))
}

func TestParse_GroupByClassification(t *testing.T) {
	p := testParser()

	q, err := p.Parse(Request{
		Metrics:  []string{"bookings"},
		GroupBys: []string{"is_instant", "listing__country_latest", "metric_time__month", "ds"},
	})
	require.NoError(t, err)

	assert.Equal(t, []spec.MetricSpec{{Name: "bookings"}}, q.Metrics)
	assert.Equal(t, []spec.DimensionSpec{
		{Name: "is_instant"},
		{Name: "country_latest", EntityLink: "listing"},
	}, q.Dimensions)
	assert.Equal(t, []spec.TimeDimensionSpec{
		{Name: "metric_time", Granularity: spec.GranularityMonth},
		{Name: "ds"},
	}, q.TimeDimensions)
}

func TestParse_WhereOrderLimit(t *testing.T) {
	p := testParser()

	limit := int64(100)
	q, err := p.Parse(Request{
		Metrics:   []string{"bookings"},
		GroupBys:  []string{"ds"},
		Where:     "ds = '2020-01-01'",
		OrderBys:  []string{"-bookings", "ds"},
		Limit:     &limit,
		TimeStart: "2020-01-01",
		TimeEnd:   "2020-01-31",
	})
	require.NoError(t, err)

	require.NotNil(t, q.Where)
	assert.Equal(t, []string{"ds"}, q.Where.Elements)

	assert.Equal(t, []spec.OrderBySpec{
		{Name: "bookings", Descending: true},
		{Name: "ds"},
	}, q.OrderBys)

	require.NotNil(t, q.Limit)
	assert.Equal(t, int64(100), *q.Limit)

	require.NotNil(t, q.TimeRange)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), q.TimeRange.Start)
}

func TestParse_Errors(t *testing.T) {
	p := testParser()

	tests := []struct {
		name    string
		req     Request
		wantSub string
	}{
		{
			name:    "unknown metric",
			req:     Request{Metrics: []string{"revenue"}},
			wantSub: `unknown metric "revenue"; known metrics: bookings`,
		},
		{
			name:    "unknown dimension",
			req:     Request{Metrics: []string{"bookings"}, GroupBys: []string{"country"}},
			wantSub: `unknown dimension "country"`,
		},
		{
			name:    "unknown dimension lists candidates",
			req:     Request{Metrics: []string{"bookings"}, GroupBys: []string{"country"}},
			wantSub: "listing__country_latest",
		},
		{
			name:    "grain on categorical",
			req:     Request{Metrics: []string{"bookings"}, GroupBys: []string{"is_instant__month"}},
			wantSub: "has no granularity",
		},
		{
			name:    "metric_time via entity",
			req:     Request{Metrics: []string{"bookings"}, GroupBys: []string{"listing__metric_time"}},
			wantSub: "cannot be reached through an entity link",
		},
		{
			name:    "bad where",
			req:     Request{Metrics: []string{"bookings"}, Where: "ds ="},
			wantSub: "parsing where filter",
		},
		{
			name:    "order by unknown output",
			req:     Request{Metrics: []string{"bookings"}, OrderBys: []string{"ds"}},
			wantSub: "not a queried metric or group by",
		},
		{
			name:    "half open time range",
			req:     Request{Metrics: []string{"bookings"}, TimeStart: "2020-01-01"},
			wantSub: "both a start and an end",
		},
		{
			name:    "inverted time range",
			req:     Request{Metrics: []string{"bookings"}, TimeStart: "2020-02-01", TimeEnd: "2020-01-01"},
			wantSub: "before start",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestParse_NegativeLimit(t *testing.T) {
	p := testParser()
	limit := int64(-1)
	_, err := p.Parse(Request{Metrics: []string{"bookings"}, Limit: &limit})
	assert.ErrorContains(t, err, "limit must not be negative")
}

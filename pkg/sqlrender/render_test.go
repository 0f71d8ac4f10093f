package sqlrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/metriq/pkg/dialect"
	"github.com/leapstack-labs/metriq/pkg/sqlplan"
)

func duckdb(t *testing.T) *dialect.Dialect {
	t.Helper()
	d, ok := dialect.Get("duckdb")
	require.True(t, ok)
	return d
}

func TestRender_SimpleSelect(t *testing.T) {
	stmt := &sqlplan.SelectStatement{
		Description: []string{"Read Elements From Semantic Model 'bookings_source'"},
		Columns: []sqlplan.SelectColumn{
			{Expr: &sqlplan.Literal{Type: sqlplan.LiteralNumber, Value: "1"}, Alias: "bookings"},
			{Expr: &sqlplan.ColumnRef{Table: "bookings_source_src_10000", Column: "ds"}, Alias: "ds"},
		},
		From:      sqlplan.Source{RawSQL: "SELECT * FROM demo.fct_bookings"},
		FromAlias: "bookings_source_src_10000",
	}

	want := `-- Read Elements From Semantic Model 'bookings_source'
SELECT
  1 AS bookings
  , bookings_source_src_10000.ds AS ds
FROM (
  -- User Defined SQL Query
  SELECT * FROM demo.fct_bookings
) bookings_source_src_10000
`
	assert.Equal(t, want, Render(stmt, duckdb(t)))
}

func TestRender_NestedSelectWithWhere(t *testing.T) {
	inner := &sqlplan.SelectStatement{
		Description: []string{"Read Elements From Semantic Model 'bookings_source'"},
		Columns: []sqlplan.SelectColumn{
			{Expr: &sqlplan.ColumnRef{Column: "ds"}},
		},
		From:      sqlplan.Source{Table: "demo.fct_bookings"},
		FromAlias: "bookings_source_src_10000",
	}
	outer := &sqlplan.SelectStatement{
		Description: []string{"Constrain Output with WHERE"},
		Columns: []sqlplan.SelectColumn{
			{Expr: &sqlplan.ColumnRef{Table: "subq_0", Column: "ds"}, Alias: "ds"},
		},
		From:      sqlplan.Source{Select: inner},
		FromAlias: "subq_0",
		Where: &sqlplan.Comparison{
			Left:  &sqlplan.ColumnRef{Table: "subq_0", Column: "ds"},
			Op:    sqlplan.CompareEq,
			Right: &sqlplan.Literal{Type: sqlplan.LiteralString, Value: "2020-01-01"},
		},
	}

	want := `-- Constrain Output with WHERE
SELECT
  subq_0.ds AS ds
FROM (
  -- Read Elements From Semantic Model 'bookings_source'
  SELECT
    ds
  FROM demo.fct_bookings bookings_source_src_10000
) subq_0
WHERE subq_0.ds = '2020-01-01'
`
	assert.Equal(t, want, Render(outer, duckdb(t)))
}

func TestRender_JoinGroupByOrderLimit(t *testing.T) {
	left := &sqlplan.SelectStatement{
		Columns:   []sqlplan.SelectColumn{{Expr: &sqlplan.ColumnRef{Column: "listing"}}},
		From:      sqlplan.Source{Table: "demo.fct_bookings"},
		FromAlias: "bookings_source_src_10000",
	}
	right := &sqlplan.SelectStatement{
		Columns:   []sqlplan.SelectColumn{{Expr: &sqlplan.ColumnRef{Column: "listing"}}},
		From:      sqlplan.Source{Table: "demo.dim_listings"},
		FromAlias: "listings_source_src_10001",
	}
	limit := int64(10)
	stmt := &sqlplan.SelectStatement{
		Description: []string{"Join Standard Outputs"},
		Columns: []sqlplan.SelectColumn{
			{Expr: &sqlplan.ColumnRef{Table: "subq_0", Column: "listing"}, Alias: "listing"},
			{
				Expr:  &sqlplan.AggregateCall{Fn: sqlplan.AggSum, Arg: &sqlplan.ColumnRef{Table: "subq_0", Column: "bookings"}},
				Alias: "bookings",
			},
		},
		From:      sqlplan.Source{Select: left},
		FromAlias: "subq_0",
		Joins: []sqlplan.Join{
			{
				Type:  sqlplan.JoinLeftOuter,
				Right: sqlplan.Source{Select: right},
				Alias: "subq_1",
				On: &sqlplan.Comparison{
					Left:  &sqlplan.ColumnRef{Table: "subq_0", Column: "listing"},
					Op:    sqlplan.CompareEq,
					Right: &sqlplan.ColumnRef{Table: "subq_1", Column: "listing"},
				},
			},
		},
		GroupBys: []sqlplan.Expr{&sqlplan.ColumnRef{Table: "subq_0", Column: "listing"}},
		OrderBys: []sqlplan.OrderBy{{Expr: &sqlplan.ColumnRef{Column: "bookings"}, Desc: true}},
		Limit:    &limit,
	}

	want := `-- Join Standard Outputs
SELECT
  subq_0.listing AS listing
  , SUM(subq_0.bookings) AS bookings
FROM (
  SELECT
    listing
  FROM demo.fct_bookings bookings_source_src_10000
) subq_0
LEFT OUTER JOIN (
  SELECT
    listing
  FROM demo.dim_listings listings_source_src_10001
) subq_1
ON
  subq_0.listing = subq_1.listing
GROUP BY
  subq_0.listing
ORDER BY bookings DESC
LIMIT 10
`
	assert.Equal(t, want, Render(stmt, duckdb(t)))
}

func TestRenderExpr(t *testing.T) {
	d := duckdb(t)
	tests := []struct {
		name string
		expr sqlplan.Expr
		want string
	}{
		{
			"string literal",
			&sqlplan.Literal{Type: sqlplan.LiteralString, Value: "it's"},
			"'it''s'",
		},
		{
			"null literal",
			sqlplan.Null(),
			"NULL",
		},
		{
			"logical with parens",
			&sqlplan.Logical{Op: sqlplan.LogicalAnd, Operands: []sqlplan.Expr{
				&sqlplan.Logical{Op: sqlplan.LogicalOr, Operands: []sqlplan.Expr{
					&sqlplan.ColumnRef{Column: "a"},
					&sqlplan.ColumnRef{Column: "b"},
				}},
				&sqlplan.ColumnRef{Column: "c"},
			}},
			"(a OR b) AND c",
		},
		{
			"not",
			&sqlplan.Not{Operand: &sqlplan.ColumnRef{Column: "is_instant"}},
			"NOT is_instant",
		},
		{
			"in list",
			&sqlplan.InList{
				Target: &sqlplan.ColumnRef{Column: "country"},
				Values: []sqlplan.Expr{
					&sqlplan.Literal{Type: sqlplan.LiteralString, Value: "us"},
					&sqlplan.Literal{Type: sqlplan.LiteralString, Value: "ca"},
				},
			},
			"country IN ('us', 'ca')",
		},
		{
			"count distinct",
			&sqlplan.AggregateCall{Fn: sqlplan.AggCountDistinct, Arg: &sqlplan.ColumnRef{Column: "guest"}},
			"COUNT(DISTINCT guest)",
		},
		{
			"date trunc",
			&sqlplan.DateTrunc{Grain: "month", Arg: &sqlplan.ColumnRef{Column: "ds"}},
			"DATE_TRUNC('month', ds)",
		},
		{
			"ratio shape",
			&sqlplan.Arithmetic{
				Left: &sqlplan.CastDouble{Arg: &sqlplan.ColumnRef{Column: "bookings"}},
				Op:   sqlplan.ArithDiv,
				Right: &sqlplan.CastDouble{Arg: &sqlplan.NullIf{
					Left:  &sqlplan.ColumnRef{Column: "bookers"},
					Right: &sqlplan.Literal{Type: sqlplan.LiteralNumber, Value: "0"},
				}},
			},
			"CAST(bookings AS DOUBLE) / CAST(NULLIF(bookers, 0) AS DOUBLE)",
		},
		{
			"arithmetic precedence",
			&sqlplan.Arithmetic{
				Left: &sqlplan.Arithmetic{
					Left:  &sqlplan.ColumnRef{Column: "a"},
					Op:    sqlplan.ArithAdd,
					Right: &sqlplan.ColumnRef{Column: "b"},
				},
				Op:    sqlplan.ArithMul,
				Right: &sqlplan.ColumnRef{Column: "c"},
			},
			"(a + b) * c",
		},
		{
			"between",
			&sqlplan.BetweenRange{
				Target: &sqlplan.ColumnRef{Column: "ds"},
				Low:    &sqlplan.Literal{Type: sqlplan.LiteralString, Value: "2020-01-01"},
				High:   &sqlplan.Literal{Type: sqlplan.LiteralString, Value: "2020-01-31"},
			},
			"ds BETWEEN '2020-01-01' AND '2020-01-31'",
		},
		{
			"reserved identifier quoted",
			&sqlplan.ColumnRef{Column: "order"},
			`"order"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderExpr(tt.expr, d))
		})
	}
}

func TestRender_DistinctAndBareColumns(t *testing.T) {
	stmt := &sqlplan.SelectStatement{
		Distinct: true,
		Columns: []sqlplan.SelectColumn{
			{Expr: &sqlplan.ColumnRef{Column: "bookings"}, Alias: "bookings"},
			{Expr: &sqlplan.ColumnRef{Column: "ds"}, Alias: "ds"},
		},
		From:      sqlplan.Source{Table: "demo.fct_bookings"},
		FromAlias: "b",
	}
	want := `SELECT DISTINCT
  bookings
  , ds
FROM demo.fct_bookings b
`
	assert.Equal(t, want, Render(stmt, duckdb(t)))
}

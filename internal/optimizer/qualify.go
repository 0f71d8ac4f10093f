package optimizer

import "github.com/leapstack-labs/metriq/pkg/sqlplan"

// simplifyQualifiers strips the source qualifier from references in
// selects with a single source. With no joins the qualifier is
// redundant, and rendering then drops "AS name" for columns that are
// plain same-named references.
func simplifyQualifiers(stmt *sqlplan.SelectStatement) {
	if len(stmt.Joins) == 0 && stmt.FromAlias != "" {
		alias := stmt.FromAlias
		strip := func(expr sqlplan.Expr) sqlplan.Expr {
			return sqlplan.RewriteColumnRefs(expr, func(ref *sqlplan.ColumnRef) sqlplan.Expr {
				if ref.Table == alias {
					return &sqlplan.ColumnRef{Column: ref.Column}
				}
				cp := *ref
				return &cp
			})
		}

		for i := range stmt.Columns {
			stmt.Columns[i].Expr = strip(stmt.Columns[i].Expr)
		}
		if stmt.Where != nil {
			stmt.Where = strip(stmt.Where)
		}
		for i := range stmt.GroupBys {
			stmt.GroupBys[i] = strip(stmt.GroupBys[i])
		}
		for i := range stmt.OrderBys {
			stmt.OrderBys[i].Expr = strip(stmt.OrderBys[i].Expr)
		}
	}

	if stmt.From.Select != nil {
		simplifyQualifiers(stmt.From.Select)
	}
	for _, join := range stmt.Joins {
		if join.Right.Select != nil {
			simplifyQualifiers(join.Right.Select)
		}
	}
}

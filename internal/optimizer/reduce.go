package optimizer

import "github.com/leapstack-labs/metriq/pkg/sqlplan"

// reduceSubqueries merges trivial pass-through selects into their
// parents. A FROM sub-query is merged when it only renames nothing:
// every column a bare reference with the same output name, and no
// joins, filters, grouping, ordering, limit or distinct of its own.
// Descriptions stack on the parent, outermost first.
func reduceSubqueries(stmt *sqlplan.SelectStatement) {
	for {
		child := stmt.From.Select
		if child == nil || !mergeable(child) {
			break
		}

		// Parent references into the child resolve directly to what the
		// child selects from.
		exprFor := make(map[string]sqlplan.Expr, len(child.Columns))
		for _, col := range child.Columns {
			exprFor[col.Name()] = col.Expr
		}
		childAlias := stmt.FromAlias
		rewrite := func(expr sqlplan.Expr) sqlplan.Expr {
			return sqlplan.RewriteColumnRefs(expr, func(ref *sqlplan.ColumnRef) sqlplan.Expr {
				if ref.Table != childAlias {
					cp := *ref
					return &cp
				}
				if resolved, ok := exprFor[ref.Column]; ok {
					return resolved
				}
				cp := *ref
				return &cp
			})
		}

		for i := range stmt.Columns {
			stmt.Columns[i].Expr = rewrite(stmt.Columns[i].Expr)
		}
		if stmt.Where != nil {
			stmt.Where = rewrite(stmt.Where)
		}
		for i := range stmt.GroupBys {
			stmt.GroupBys[i] = rewrite(stmt.GroupBys[i])
		}
		for i := range stmt.OrderBys {
			stmt.OrderBys[i].Expr = rewrite(stmt.OrderBys[i].Expr)
		}
		for i := range stmt.Joins {
			stmt.Joins[i].On = rewrite(stmt.Joins[i].On)
		}

		stmt.From = child.From
		stmt.FromAlias = child.FromAlias
		stmt.Description = append(stmt.Description, child.Description...)
	}

	if stmt.From.Select != nil {
		reduceSubqueries(stmt.From.Select)
	}
	for _, join := range stmt.Joins {
		if join.Right.Select != nil {
			reduceSubqueries(join.Right.Select)
		}
	}
}

// mergeable reports whether a sub-query is a pure pass-through that a
// parent can absorb without changing semantics.
func mergeable(child *sqlplan.SelectStatement) bool {
	if len(child.Joins) > 0 || child.Where != nil || child.Distinct {
		return false
	}
	if len(child.GroupBys) > 0 || len(child.OrderBys) > 0 || child.Limit != nil {
		return false
	}
	for _, col := range child.Columns {
		if !col.IsPassthrough() {
			return false
		}
	}
	return true
}

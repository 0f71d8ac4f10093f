package optimizer

import "github.com/leapstack-labs/metriq/pkg/sqlplan"

// pruneColumns drops sub-query output columns nothing upstream reads.
// required lists the output names the parent needs from stmt; nil means
// every column is required, which holds for the plan root.
func pruneColumns(stmt *sqlplan.SelectStatement, required map[string]bool) {
	if required != nil {
		kept := stmt.Columns[:0]
		for _, col := range stmt.Columns {
			if required[col.Name()] {
				kept = append(kept, col)
			}
		}
		// An empty select list is not valid SQL; keep the first column
		// when nothing upstream reads this select.
		if len(kept) == 0 && len(stmt.Columns) > 0 {
			kept = stmt.Columns[:1]
		}
		stmt.Columns = kept
	}

	refs := referencedColumns(stmt)
	if child := stmt.From.Select; child != nil {
		pruneColumns(child, requiredFor(refs, stmt.FromAlias))
	}
	for _, join := range stmt.Joins {
		if join.Right.Select != nil {
			pruneColumns(join.Right.Select, requiredFor(refs, join.Alias))
		}
	}
}

// referencedColumns collects every column reference in the statement's
// own clauses, grouped by qualifier. Unqualified references count
// against every source under the empty key.
func referencedColumns(stmt *sqlplan.SelectStatement) map[string]map[string]bool {
	refs := make(map[string]map[string]bool)
	record := func(ref *sqlplan.ColumnRef) {
		if refs[ref.Table] == nil {
			refs[ref.Table] = make(map[string]bool)
		}
		refs[ref.Table][ref.Column] = true
	}

	for _, col := range stmt.Columns {
		sqlplan.WalkColumnRefs(col.Expr, record)
	}
	sqlplan.WalkColumnRefs(stmt.Where, record)
	for _, g := range stmt.GroupBys {
		sqlplan.WalkColumnRefs(g, record)
	}
	for _, o := range stmt.OrderBys {
		sqlplan.WalkColumnRefs(o.Expr, record)
	}
	for _, join := range stmt.Joins {
		sqlplan.WalkColumnRefs(join.On, record)
	}
	return refs
}

// requiredFor merges the references against one source alias with the
// unqualified references, which could resolve to any source.
func requiredFor(refs map[string]map[string]bool, alias string) map[string]bool {
	required := make(map[string]bool)
	for name := range refs[alias] {
		required[name] = true
	}
	for name := range refs[""] {
		required[name] = true
	}
	return required
}

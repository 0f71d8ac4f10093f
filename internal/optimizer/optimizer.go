// Package optimizer rewrites SQL query plans into the compact form
// rendered next to the unoptimized plan. Passes run in a fixed order:
// column pruning, sub-query reduction, then qualifier simplification.
// All passes preserve query semantics; they only drop unused columns,
// merge trivial pass-through selects and shorten references.
package optimizer

import "github.com/leapstack-labs/metriq/pkg/sqlplan"

// Optimize rewrites the plan in place and returns it. Callers that
// need the unoptimized form as well should lower the dataflow plan a
// second time rather than copying the SQL plan.
func Optimize(plan *sqlplan.Plan) *sqlplan.Plan {
	pruneColumns(plan.Root, nil)
	reduceSubqueries(plan.Root)
	simplifyQualifiers(plan.Root)
	return plan
}

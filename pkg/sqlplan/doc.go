// Package sqlplan defines the SQL query plan representation produced by
// lowering a dataflow plan. A plan is a tree of SELECT statements with
// typed expressions; rendering to SQL text is handled by pkg/sqlrender
// and optimization passes operate on this representation in place.
package sqlplan
